// Package entityhttp implements crestauth.EntityStore against a remote
// entity service speaking JSON over HTTP. Entity endpoints live under
// /api/v1; lookups use query parameters and partial updates use PATCH.
//
// Error mapping follows the store contract: 404 is ErrNotFound, 409 is
// ErrDuplicate, and everything else, transport failures included, is
// ErrStoreUnavailable.
package entityhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/crestauth/crestauth"
)

const defaultTimeout = 5 * time.Second

// Config holds client parameters.
type Config struct {
	// BaseURL is the entity service root, without the /api/v1 suffix.
	BaseURL string
	// AuthToken, when set, is sent as a bearer token.
	AuthToken string
	// Timeout bounds each request. Zero selects the 5s default.
	Timeout time.Duration
	// HTTPClient overrides the underlying client, e.g. for custom
	// transports. Its own Timeout is left alone when set.
	HTTPClient *http.Client
}

// Client is a crestauth.EntityStore backed by the entity service.
type Client struct {
	baseURL   string
	authToken string
	http      *http.Client
}

func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("entityhttp: base URL required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("entityhttp: invalid base URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:   base,
		authToken: cfg.AuthToken,
		http:      httpClient,
	}, nil
}

func (c *Client) CreateUser(ctx context.Context, user *crestauth.Principal) error {
	return c.do(ctx, http.MethodPost, "/api/v1/users", nil, userToDTO(user), nil)
}

func (c *Client) GetUser(ctx context.Context, id string) (*crestauth.Principal, error) {
	var dto userDTO
	if err := c.do(ctx, http.MethodGet, "/api/v1/users/"+url.PathEscape(id), nil, nil, &dto); err != nil {
		return nil, err
	}
	return dto.toPrincipal(), nil
}

func (c *Client) FindUserByUsername(ctx context.Context, username string) (*crestauth.Principal, error) {
	return c.findUser(ctx, url.Values{"username": {username}})
}

func (c *Client) FindUserByEmail(ctx context.Context, email string) (*crestauth.Principal, error) {
	return c.findUser(ctx, url.Values{"email": {email}})
}

func (c *Client) findUser(ctx context.Context, query url.Values) (*crestauth.Principal, error) {
	var dto userDTO
	if err := c.do(ctx, http.MethodGet, "/api/v1/users", query, nil, &dto); err != nil {
		return nil, err
	}
	return dto.toPrincipal(), nil
}

func (c *Client) UpdateUser(ctx context.Context, id string, patch crestauth.PrincipalPatch) error {
	return c.do(ctx, http.MethodPatch, "/api/v1/users/"+url.PathEscape(id), nil, userPatchToDTO(patch), nil)
}

func (c *Client) CreateAPIKey(ctx context.Context, key *crestauth.APIKey) error {
	return c.do(ctx, http.MethodPost, "/api/v1/api-keys", nil, apiKeyToDTO(key), nil)
}

func (c *Client) GetAPIKey(ctx context.Context, id string) (*crestauth.APIKey, error) {
	var dto apiKeyDTO
	if err := c.do(ctx, http.MethodGet, "/api/v1/api-keys/"+url.PathEscape(id), nil, nil, &dto); err != nil {
		return nil, err
	}
	return dto.toAPIKey(), nil
}

func (c *Client) FindAPIKeyByDigest(ctx context.Context, digest string) (*crestauth.APIKey, error) {
	var dto apiKeyDTO
	query := url.Values{"digest": {digest}}
	if err := c.do(ctx, http.MethodGet, "/api/v1/api-keys", query, nil, &dto); err != nil {
		return nil, err
	}
	return dto.toAPIKey(), nil
}

func (c *Client) ListAPIKeysByUser(ctx context.Context, userID string) ([]*crestauth.APIKey, error) {
	var dtos []apiKeyDTO
	query := url.Values{"user_id": {userID}}
	if err := c.do(ctx, http.MethodGet, "/api/v1/api-keys", query, nil, &dtos); err != nil {
		return nil, err
	}
	keys := make([]*crestauth.APIKey, 0, len(dtos))
	for i := range dtos {
		keys = append(keys, dtos[i].toAPIKey())
	}
	return keys, nil
}

func (c *Client) UpdateAPIKey(ctx context.Context, id string, patch crestauth.APIKeyPatch) error {
	body := apiKeyPatchDTO{
		Active:     patch.Active,
		LastUsedAt: patch.LastUsedAt,
	}
	return c.do(ctx, http.MethodPatch, "/api/v1/api-keys/"+url.PathEscape(id), nil, body, nil)
}

func (c *Client) CreateResetToken(ctx context.Context, token *crestauth.ResetToken) error {
	return c.do(ctx, http.MethodPost, "/api/v1/reset-tokens", nil, resetTokenToDTO(token), nil)
}

func (c *Client) FindResetTokenByDigest(ctx context.Context, digest string) (*crestauth.ResetToken, error) {
	var dto resetTokenDTO
	query := url.Values{"digest": {digest}}
	if err := c.do(ctx, http.MethodGet, "/api/v1/reset-tokens", query, nil, &dto); err != nil {
		return nil, err
	}
	return dto.toResetToken(), nil
}

func (c *Client) UpdateResetToken(ctx context.Context, id string, patch crestauth.ResetTokenPatch) error {
	body := resetTokenPatchDTO{Used: patch.Used}
	return c.do(ctx, http.MethodPatch, "/api/v1/reset-tokens/"+url.PathEscape(id), nil, body, nil)
}

func (c *Client) InvalidateResetTokensForUser(ctx context.Context, userID string) error {
	body := invalidateResetTokensDTO{UserID: userID}
	return c.do(ctx, http.MethodPost, "/api/v1/reset-tokens/invalidate", nil, body, nil)
}

func (c *Client) CreateSSOLinkage(ctx context.Context, linkage *crestauth.SSOLinkage) error {
	return c.do(ctx, http.MethodPost, "/api/v1/sso-linkages", nil, linkageToDTO(linkage), nil)
}

func (c *Client) FindSSOLinkage(ctx context.Context, provider, subjectID string) (*crestauth.SSOLinkage, error) {
	var dto linkageDTO
	query := url.Values{"provider": {provider}, "subject_id": {subjectID}}
	if err := c.do(ctx, http.MethodGet, "/api/v1/sso-linkages", query, nil, &dto); err != nil {
		return nil, err
	}
	return dto.toLinkage(), nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", crestauth.ErrStoreUnavailable, err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", crestauth.ErrStoreUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	if id := crestauth.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", crestauth.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return crestauth.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		return crestauth.ErrDuplicate
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: entity service returned %d", crestauth.ErrStoreUnavailable, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", crestauth.ErrStoreUnavailable, err)
	}
	return nil
}
