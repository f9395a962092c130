package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MicahParks/keyfunc/v3"
	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/opsdesk/callback-service/internal/config"
)

// Verifier establishes trust in inbound bearer tokens against the identity
// provider's published signing keys. The key set is fetched lazily on first
// use and refreshed by the keyfunc library on key rotation.
type Verifier struct {
	audience string
	issuers  []string
	jwksURL  string

	mu   sync.Mutex
	keys jwt.Keyfunc
}

// NewVerifier derives the accepted issuer set and JWKS location from the
// configured tenant. Tokens from both the v2.0 and the legacy issuer format
// of the same tenant are accepted.
func NewVerifier(cfg config.AzureADConfig) *Verifier {
	issuer := fmt.Sprintf("https://login.microsoftonline.com/%s/v2.0", cfg.TenantID)
	legacyIssuer := fmt.Sprintf("https://sts.windows.net/%s/", cfg.TenantID)
	return &Verifier{
		audience: cfg.APIAudience,
		issuers:  []string{issuer, legacyIssuer},
		jwksURL:  issuer + "/discovery/v2.0/keys",
	}
}

// Verify validates signature, audience and issuer of a bearer token and
// returns its claim set. Every failure mode, key-set fetch included, comes
// back as a plain error; callers respond with a uniform 401 and log the cause.
func (v *Verifier) Verify(ctx context.Context, token string) (map[string]any, error) {
	keys, err := v.keyfunc(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch signing keys: %w", err)
	}

	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(token, claims, keys,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
	); err != nil {
		return nil, err
	}

	issuer, err := claims.GetIssuer()
	if err != nil {
		return nil, err
	}
	if !v.trustedIssuer(issuer) {
		return nil, fmt.Errorf("untrusted issuer %q: %w", issuer, jwt.ErrTokenInvalidIssuer)
	}

	return claims, nil
}

func (v *Verifier) trustedIssuer(issuer string) bool {
	for _, trusted := range v.issuers {
		if issuer == trusted {
			return true
		}
	}
	return false
}

// keyfunc returns the cached JWKS keyfunc, building it on first call. A
// failed build is not cached so a later request can retry; until then every
// verification fails closed.
func (v *Verifier) keyfunc(ctx context.Context) (jwt.Keyfunc, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.keys != nil {
		return v.keys, nil
	}

	if v.jwksURL == "" {
		return nil, errors.New("no JWKS endpoint configured")
	}
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{v.jwksURL})
	if err != nil {
		return nil, err
	}
	v.keys = jwks.Keyfunc
	return v.keys, nil
}
