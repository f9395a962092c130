package domain

// DirectoryUser mirrors an enabled account from the external identity graph.
// It is never persisted locally.
type DirectoryUser struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Email             string `json:"email"`
	UserPrincipalName string `json:"userPrincipalName"`
}
