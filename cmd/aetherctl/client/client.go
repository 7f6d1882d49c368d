// Package client is a thin HTTP client for the aether-identity admin
// endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AdminClient talks to the server's bearer-gated admin API.
type AdminClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewAdminClient creates an AdminClient for the given server base URL and
// admin token.
func NewAdminClient(baseURL, token string) *AdminClient {
	return &AdminClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// RotateKeys triggers a signing key rotation and returns the new active
// key ID.
func (c *AdminClient) RotateKeys(ctx context.Context) (string, error) {
	var out struct {
		ActiveKeyID string `json:"active_key_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/admin/keys/rotate", nil, &out); err != nil {
		return "", err
	}
	return out.ActiveKeyID, nil
}

// ListKeys returns the raw key metadata document.
func (c *AdminClient) ListKeys(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/v1/admin/keys", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RunCleanup triggers an immediate cleanup sweep and returns the per-task
// deletion counts.
func (c *AdminClient) RunCleanup(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/api/v1/admin/cleanup", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// TokenStats returns the live token counters.
func (c *AdminClient) TokenStats(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/v1/admin/token-stats", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RevokeUserTokens revokes all refresh tokens and SSO sessions a user
// holds.
func (c *AdminClient) RevokeUserTokens(ctx context.Context, userID string) (json.RawMessage, error) {
	var out json.RawMessage
	path := "/api/v1/admin/users/" + userID + "/revoke-tokens"
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *AdminClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
