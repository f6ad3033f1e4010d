package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGigaChat struct {
	tokenCalls      atomic.Int32
	completionCalls atomic.Int32
	tokenStatus     int
	completionCode  int
	expiresAt       int64
	reply           string
	lastAuth        string
	lastRqUID       string
	lastScope       string
	lastBearer      string
	lastRequest     gigaChatRequest
	mu              sync.Mutex
}

func (f *fakeGigaChat) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		assert.NoError(t, r.ParseForm())
		f.mu.Lock()
		f.lastAuth = r.Header.Get("Authorization")
		f.lastRqUID = r.Header.Get("RqUID")
		f.lastScope = r.PostForm.Get("scope")
		f.mu.Unlock()

		if f.tokenStatus != 0 {
			w.WriteHeader(f.tokenStatus)
			w.Write([]byte(`{"message":"bad credentials"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": fmt.Sprintf("token-%d", f.tokenCalls.Load()),
			"expires_at":   f.expiresAt,
		})
	})
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		f.completionCalls.Add(1)
		f.mu.Lock()
		f.lastBearer = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&f.lastRequest)
		f.mu.Unlock()

		if f.completionCode != 0 {
			w.WriteHeader(f.completionCode)
			w.Write([]byte(`{"message":"upstream failure"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": f.reply}}},
			"usage":   map[string]int{"total_tokens": 12},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type seenRequest struct {
	auth, rqUID, scope, bearer string
	body                       gigaChatRequest
}

func (f *fakeGigaChat) seen() seenRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return seenRequest{auth: f.lastAuth, rqUID: f.lastRqUID, scope: f.lastScope, bearer: f.lastBearer, body: f.lastRequest}
}

func newTestGigaChat(t *testing.T, fake *fakeGigaChat) *GigaChatClient {
	srv := fake.server(t)
	return NewGigaChatClient(GigaChatConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		AuthURL:      srv.URL + "/oauth",
		APIURL:       srv.URL + "/chat",
		MaxTokens:    2000,
		Temperature:  0.7,
		Timeout:      5 * time.Second,
	})
}

func TestGigaChatCompleteReusesToken(t *testing.T) {
	fake := &fakeGigaChat{reply: "Что такое интерфейс в Go?", expiresAt: time.Now().Add(time.Hour).UnixMilli()}
	client := newTestGigaChat(t, fake)

	messages := []ChatMessage{{Role: RoleSystem, Content: "prompt"}}
	for i := 0; i < 3; i++ {
		text, err := client.Complete(context.Background(), messages)
		require.NoError(t, err)
		assert.Equal(t, "Что такое интерфейс в Go?", text)
	}

	assert.Equal(t, int32(1), fake.tokenCalls.Load())
	assert.Equal(t, int32(3), fake.completionCalls.Load())

	seen := fake.seen()
	expectedBasic := "Basic " + base64.StdEncoding.EncodeToString([]byte("client:secret"))
	assert.Equal(t, expectedBasic, seen.auth)
	assert.Equal(t, DefaultGigaChatScope, seen.scope)
	_, err := uuid.Parse(seen.rqUID)
	assert.NoError(t, err, "RqUID must be a uuid")
	assert.Equal(t, "Bearer token-1", seen.bearer)

	assert.Equal(t, DefaultGigaChatModel, seen.body.Model)
	assert.Equal(t, 2000, seen.body.MaxTokens)
	assert.InDelta(t, 0.7, seen.body.Temperature, 1e-9)
	assert.False(t, seen.body.Stream)
	assert.Equal(t, messages, seen.body.Messages)
}

func TestGigaChatRefreshesExpiredToken(t *testing.T) {
	fake := &fakeGigaChat{reply: "ok", expiresAt: time.Now().Add(10 * time.Second).UnixMilli()}
	client := newTestGigaChat(t, fake)

	_, err := client.Complete(context.Background(), nil)
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, int32(2), fake.tokenCalls.Load(), "token inside the expiry skew is refreshed")
}

func TestGigaChatUpstreamError(t *testing.T) {
	fake := &fakeGigaChat{completionCode: http.StatusInternalServerError, expiresAt: time.Now().Add(time.Hour).UnixMilli()}
	client := newTestGigaChat(t, fake)

	_, err := client.Complete(context.Background(), nil)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "completion", apiErr.Op)
	assert.Contains(t, apiErr.Body, "upstream failure")
}

func TestGigaChatUnauthorizedInvalidatesToken(t *testing.T) {
	fake := &fakeGigaChat{completionCode: http.StatusUnauthorized, expiresAt: time.Now().Add(time.Hour).UnixMilli()}
	client := newTestGigaChat(t, fake)

	_, err := client.Complete(context.Background(), nil)
	require.Error(t, err)
	_, err = client.Complete(context.Background(), nil)
	require.Error(t, err)

	assert.Equal(t, int32(2), fake.tokenCalls.Load())
}

func TestGigaChatAuthFailure(t *testing.T) {
	fake := &fakeGigaChat{tokenStatus: http.StatusUnauthorized}
	client := newTestGigaChat(t, fake)

	_, err := client.Complete(context.Background(), nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "auth", apiErr.Op)
	assert.Equal(t, int32(0), fake.completionCalls.Load())
}

func TestGigaChatEmptyReply(t *testing.T) {
	fake := &fakeGigaChat{reply: "", expiresAt: time.Now().Add(time.Hour).UnixMilli()}
	client := newTestGigaChat(t, fake)

	text, err := client.Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, emptyCompletionAnswer, text)
}

func TestTokenExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	at := now.Add(20 * time.Minute)
	assert.True(t, at.Equal(tokenExpiry(gigaChatTokenResponse{ExpiresAt: at.UnixMilli()}, now)))
	assert.Equal(t, now.Add(5*time.Minute), tokenExpiry(gigaChatTokenResponse{ExpiresIn: 300}, now))
	assert.Equal(t, now.Add(defaultTokenTTL), tokenExpiry(gigaChatTokenResponse{}, now))
}

func TestTokenCacheSingleRefresh(t *testing.T) {
	var calls atomic.Int32
	cache := NewTokenCache(func(ctx context.Context) (string, time.Time, error) {
		calls.Add(1)
		time.Sleep(10 * time.Millisecond)
		return "shared", time.Now().Add(time.Hour), nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := cache.EnsureValid(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "shared", token)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

type stubCompleter struct {
	reply    string
	err      error
	messages [][]ChatMessage
}

func (s *stubCompleter) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	s.messages = append(s.messages, messages)
	return s.reply, s.err
}

func (s *stubCompleter) Provider() string { return "stub" }

func TestChatServiceWrapsProviderErrors(t *testing.T) {
	stub := &stubCompleter{err: errors.New("connection refused")}
	chat := NewChatService(stub, false)
	ictx := newTestContext()

	_, err := chat.GenerateQuestion(context.Background(), "Go PostgreSQL", "Go developer", "middle", ictx)
	assert.ErrorIs(t, err, ErrChatProvider)

	_, err = chat.EvaluateAnswer(context.Background(), "Q", "A", ictx)
	assert.ErrorIs(t, err, ErrChatProvider)

	_, err = chat.GenerateSummary(context.Background(), ictx)
	assert.ErrorIs(t, err, ErrChatProvider)
}

func TestChatServiceDevModeFallbackQuestion(t *testing.T) {
	stub := &stubCompleter{err: errors.New("no credentials")}
	chat := NewChatService(stub, true)

	question, err := chat.GenerateQuestion(context.Background(), "Kubernetes and Go", "DevOps", "senior", newTestContext())
	require.NoError(t, err)
	assert.Equal(t, "Вопрос по DevOps (уровень: senior): Расскажите о вашем опыте работы с Kubernetes?", question)

	question, err = chat.GenerateQuestion(context.Background(), "", "QA", "junior", nil)
	require.NoError(t, err)
	assert.Contains(t, question, fallbackTechnology)
}

func TestChatServiceHintNeverFails(t *testing.T) {
	chat := NewChatService(&stubCompleter{err: errors.New("timeout")}, false)
	hint, err := chat.GenerateHint(context.Background(), "Q", newTestContext())
	require.NoError(t, err)
	assert.Equal(t, fallbackHint, hint)

	chat = NewChatService(&stubCompleter{reply: "  Можете рассказать о каналах?  "}, false)
	hint, err = chat.GenerateHint(context.Background(), "Q", newTestContext())
	require.NoError(t, err)
	assert.Equal(t, "Можете рассказать о каналах?", hint)
}

func TestChatServiceQuestionPromptCarriesHint(t *testing.T) {
	stub := &stubCompleter{reply: " Как работает индекс? "}
	chat := NewChatService(stub, false)
	ictx := newTestContext()
	ictx.AddMessage(RoleAssistant, "Q1")
	ictx.AddMessage(RoleUser, "A1")

	question, err := chat.GenerateQuestionFromHint(context.Background(), "desc", "Go developer", "middle", "индексы", ictx)
	require.NoError(t, err)
	assert.Equal(t, "Как работает индекс?", question)

	require.Len(t, stub.messages, 1)
	sent := stub.messages[0]
	require.Len(t, sent, 4)
	assert.Equal(t, RoleSystem, sent[0].Role)
	assert.Equal(t, "Q1", sent[1].Content)
	assert.Equal(t, "A1", sent[2].Content)
	assert.Contains(t, sent[3].Content, "индексы")
}

func TestIsDevelopmentCredential(t *testing.T) {
	assert.True(t, IsDevelopmentCredential(""))
	assert.True(t, IsDevelopmentCredential("development_secret"))
	assert.False(t, IsDevelopmentCredential("MDE5YzQ1"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "При", truncate("Привет", 3))
	assert.Equal(t, "abc", truncate("abc", 10))
}
