package bitable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// refreshMargin renews the token well before the server-side expiry so
// in-flight requests never race the deadline.
const refreshMargin = 5 * time.Minute

// TokenManager caches the app access token and refreshes it single-flight:
// concurrent callers block on the same refresh instead of issuing duplicates.
type TokenManager struct {
	appID      string
	appSecret  string
	baseURL    string
	httpClient *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewTokenManager(appID, appSecret, baseURL string, httpClient *http.Client) *TokenManager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &TokenManager{
		appID:      appID,
		appSecret:  appSecret,
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && time.Until(m.expiresAt) > refreshMargin {
		return m.token, nil
	}
	if err := m.refresh(ctx); err != nil {
		return "", err
	}
	return m.token, nil
}

func (m *TokenManager) refresh(ctx context.Context) error {
	payload, err := json.Marshal(map[string]string{
		"app_id":     m.appID,
		"app_secret": m.appSecret,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.baseURL+"/auth/v3/app_access_token/internal", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Message: string(body)}
	}

	var out struct {
		Code           int    `json:"code"`
		Msg            string `json:"msg"`
		AppAccessToken string `json:"app_access_token"`
		Expire         int64  `json:"expire"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	if out.Code != 0 {
		return &APIError{Status: resp.StatusCode, Code: out.Code, Message: out.Msg}
	}

	m.token = out.AppAccessToken
	m.expiresAt = time.Now().Add(time.Duration(out.Expire) * time.Second)
	return nil
}
