package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ProviderError means the payment processor was unreachable or rejected the
// request. Never retried automatically; surfaced to the caller.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string { return fmt.Sprintf("payment provider: %s: %v", e.Op, e.Err) }
func (e *ProviderError) Unwrap() error { return e.Err }

type SessionLine struct {
	Name        string `json:"name"`
	AmountCents int    `json:"amount_cents"`
	Qty         int    `json:"quantity"`
}

type SessionRequest struct {
	Lines      []SessionLine `json:"lines"`
	SuccessURL string        `json:"success_url"`
	CancelURL  string        `json:"cancel_url"`
}

type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// SessionClient is the consumed collaborator contract: open a hosted
// checkout session and patch its metadata afterwards.
type SessionClient interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	PatchSessionMetadata(ctx context.Context, sessionID string, meta map[string]string) error
}

// HTTPSessionClient talks JSON to the provider's REST API.
type HTTPSessionClient struct {
	BaseURL   string
	SecretKey string
	Client    *http.Client
}

func NewHTTPSessionClient(baseURL, secretKey string) *HTTPSessionClient {
	return &HTTPSessionClient{
		BaseURL:   baseURL,
		SecretKey: secretKey,
		Client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPSessionClient) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", req, &out); err != nil {
		return Session{}, &ProviderError{Op: "create session", Err: err}
	}
	if out.ID == "" {
		return Session{}, &ProviderError{Op: "create session", Err: fmt.Errorf("empty session id in response")}
	}
	return out, nil
}

func (c *HTTPSessionClient) PatchSessionMetadata(ctx context.Context, sessionID string, meta map[string]string) error {
	body := map[string]any{"metadata": meta}
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions/"+sessionID, body, nil); err != nil {
		return &ProviderError{Op: "patch session", Err: err}
	}
	return nil
}

func (c *HTTPSessionClient) do(ctx context.Context, method, path string, in, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
