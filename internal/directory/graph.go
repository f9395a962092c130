package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/opsdesk/callback-service/internal/config"
	"github.com/opsdesk/callback-service/internal/domain"
	apperrors "github.com/opsdesk/callback-service/pkg/util/errorutil"
)

const defaultUsersURL = "https://graph.microsoft.com/v1.0/users" +
	"?$select=id,displayName,mail,userPrincipalName,accountEnabled&$orderby=displayName&$top=999"

// Client lists assignable users from the external identity graph.
type Client interface {
	ListUsers(ctx context.Context) ([]domain.DirectoryUser, error)
}

// GraphClient queries Microsoft Graph with a client-credentials token. The
// oauth2 transport acquires and renews the service token on demand.
type GraphClient struct {
	http     *http.Client
	usersURL string
}

// NewGraphClient wires the client-credentials grant for the configured tenant.
func NewGraphClient(cfg config.AzureADConfig) *GraphClient {
	grant := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.TenantID),
		Scopes:       []string{cfg.GraphScope},
	}
	// Bound every upstream call; a stuck Graph request must not pin handlers.
	base := &http.Client{Timeout: 10 * time.Second}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	return &GraphClient{http: grant.Client(ctx), usersURL: defaultUsersURL}
}

type graphUser struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
	AccountEnabled    *bool  `json:"accountEnabled"`
}

type graphUserPage struct {
	Value []graphUser `json:"value"`
}

// ListUsers fetches enabled directory accounts, normalizes blank fields to the
// principal name and sorts by display name with locale-aware collation.
func (g *GraphClient) ListUsers(ctx context.Context) ([]domain.DirectoryUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.usersURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.http.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, apperrors.NewUpstreamError("failed to fetch directory access token", retrieveErr)
		}
		return nil, apperrors.NewUpstreamError("failed to reach directory graph", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, apperrors.NewUpstreamError("directory graph request failed",
			fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	var page graphUserPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, apperrors.NewUpstreamError("malformed directory graph response", err)
	}

	return normalizeUsers(page.Value), nil
}

// normalizeUsers keeps enabled accounts (absent flag means enabled), applies
// the displayName/mail fallbacks and returns them display-sorted.
func normalizeUsers(raw []graphUser) []domain.DirectoryUser {
	users := make([]domain.DirectoryUser, 0, len(raw))
	for _, u := range raw {
		if u.AccountEnabled != nil && !*u.AccountEnabled {
			continue
		}
		displayName := strings.TrimSpace(u.DisplayName)
		if displayName == "" {
			displayName = u.UserPrincipalName
		}
		email := strings.TrimSpace(u.Mail)
		if email == "" {
			email = u.UserPrincipalName
		}
		users = append(users, domain.DirectoryUser{
			ID:                u.ID,
			DisplayName:       displayName,
			Email:             email,
			UserPrincipalName: u.UserPrincipalName,
		})
	}

	collator := collate.New(language.English)
	sort.SliceStable(users, func(i, j int) bool {
		return collator.CompareString(users[i].DisplayName, users[j].DisplayName) < 0
	})
	return users
}
