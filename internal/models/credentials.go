package models

import "strings"

// CredentialSource records where a set of credentials came from
type CredentialSource string

const (
	SourceUser   CredentialSource = "user"
	SourceServer CredentialSource = "server"
)

// Credentials identify one upstream chat-completion endpoint.
// A value is always taken whole from a single source; fields are never mixed.
type Credentials struct {
	APIKey  string           `json:"-"`
	BaseURL string           `json:"base_url"`
	ModelID string           `json:"model"`
	Source  CredentialSource `json:"source"`
}

// Complete reports whether key, base URL and model are all non-blank
func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.APIKey) != "" &&
		strings.TrimSpace(c.BaseURL) != "" &&
		strings.TrimSpace(c.ModelID) != ""
}
