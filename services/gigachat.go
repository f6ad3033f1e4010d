package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultGigaChatAuthURL = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"
	DefaultGigaChatAPIURL  = "https://gigachat.devices.sberbank.ru/api/v1/chat/completions"
	DefaultGigaChatScope   = "GIGACHAT_API_PERS"
	DefaultGigaChatModel   = "GigaChat"

	defaultTokenTTL  = 30 * time.Minute
	tokenExpirySkew  = 30 * time.Second
	maxErrorBodySize = 4096
)

// APIError is a non-2xx reply from the chat provider
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gigachat %s API error: %d - %s", e.Op, e.StatusCode, e.Body)
}

type GigaChatConfig struct {
	ClientID           string
	ClientSecret       string
	Scope              string
	AuthURL            string
	APIURL             string
	Model              string
	MaxTokens          int
	Temperature        float64
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// TokenCache owns one bearer token and its expiry. Concurrent callers of
// EnsureValid wait for a single in-flight refresh.
type TokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
	refresh   func(ctx context.Context) (string, time.Time, error)
	now       func() time.Time
}

func NewTokenCache(refresh func(ctx context.Context) (string, time.Time, error)) *TokenCache {
	return &TokenCache{refresh: refresh, now: time.Now}
}

// EnsureValid returns the cached token, refreshing it first when it is missing or about to expire
func (t *TokenCache) EnsureValid(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && t.now().Add(tokenExpirySkew).Before(t.expiresAt) {
		return t.token, nil
	}

	token, expiresAt, err := t.refresh(ctx)
	if err != nil {
		chatTokenRefreshes.WithLabelValues("error").Inc()
		return "", err
	}
	chatTokenRefreshes.WithLabelValues("ok").Inc()

	t.token = token
	t.expiresAt = expiresAt
	slog.Info("Chat access token refreshed", "expires_at", expiresAt)
	return token, nil
}

// Invalidate drops the cached token so the next call refreshes it
func (t *TokenCache) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = ""
	t.expiresAt = time.Time{}
}

type gigaChatTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
	ExpiresIn   int64  `json:"expires_in"`
}

type gigaChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

type gigaChatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// GigaChatClient is a Completer for the GigaChat REST API
type GigaChatClient struct {
	config GigaChatConfig
	client *http.Client
	tokens *TokenCache
}

func NewGigaChatClient(config GigaChatConfig) *GigaChatClient {
	if config.AuthURL == "" {
		config.AuthURL = DefaultGigaChatAuthURL
	}
	if config.APIURL == "" {
		config.APIURL = DefaultGigaChatAPIURL
	}
	if config.Scope == "" {
		config.Scope = DefaultGigaChatScope
	}
	if config.Model == "" {
		config.Model = DefaultGigaChatModel
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if config.InsecureSkipVerify {
		// The provider's certificates are issued by a national CA that is not in most trust stores
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	c := &GigaChatClient{
		config: config,
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
	}
	c.tokens = NewTokenCache(c.fetchToken)
	return c
}

func (c *GigaChatClient) Provider() string { return "gigachat" }

func (c *GigaChatClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	token, err := c.tokens.EnsureValid(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get access token: %w", err)
	}

	payload, err := json.Marshal(gigaChatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
		Stream:      false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.APIURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		if resp.StatusCode == http.StatusUnauthorized {
			c.tokens.Invalidate()
		}
		slog.Error("GigaChat API error", "status", resp.StatusCode, "body", string(body))
		return "", &APIError{Op: "completion", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result gigaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return emptyCompletionAnswer, nil
	}

	slog.Debug("GigaChat completion received", "total_tokens", result.Usage.TotalTokens)
	return result.Choices[0].Message.Content, nil
}

// fetchToken performs the client-credentials exchange
func (c *GigaChatClient) fetchToken(ctx context.Context) (string, time.Time, error) {
	form := url.Values{"scope": {c.config.Scope}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create token request: %w", err)
	}

	credentials := base64.StdEncoding.EncodeToString([]byte(c.config.ClientID + ":" + c.config.ClientSecret))
	req.Header.Set("Authorization", "Basic "+credentials)
	req.Header.Set("RqUID", uuid.New().String())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	slog.Info("Requesting GigaChat access token")
	resp, err := c.client.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to make token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		slog.Error("GigaChat token error", "status", resp.StatusCode, "body", string(body))
		return "", time.Time{}, &APIError{Op: "auth", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var token gigaChatTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", time.Time{}, fmt.Errorf("token response has no access_token")
	}

	return token.AccessToken, tokenExpiry(token, c.tokens.now()), nil
}

func tokenExpiry(token gigaChatTokenResponse, now time.Time) time.Time {
	switch {
	case token.ExpiresAt > 0:
		return time.UnixMilli(token.ExpiresAt)
	case token.ExpiresIn > 0:
		return now.Add(time.Duration(token.ExpiresIn) * time.Second)
	default:
		return now.Add(defaultTokenTTL)
	}
}
