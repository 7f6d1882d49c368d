package domain

import "time"

// Client is a registered OAuth2 client application.
type Client struct {
	ID                 string    `bson:"_id,omitempty"`
	ClientID           string    `bson:"client_id"`
	ClientSecretHash   string    `bson:"client_secret_hash,omitempty"`
	Name               string    `bson:"name"`
	RedirectURIs       []string  `bson:"redirect_uris"`
	DefaultRedirectURI string    `bson:"default_redirect_uri,omitempty"`
	AllowedScopes      []string  `bson:"allowed_scopes,omitempty"`
	DefaultScopes      []string  `bson:"default_scopes,omitempty"`
	RequirePKCE        bool      `bson:"require_pkce"`
	IsActive           bool      `bson:"is_active"`
	CreatedAt          time.Time `bson:"created_at"`
	UpdatedAt          time.Time `bson:"updated_at"`
}

// AllowsRedirectURI reports whether uri is in the client's allow-list.
func (c *Client) AllowsRedirectURI(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}
