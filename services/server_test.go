package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/interviewhelper/backend/repository"
	"github.com/interviewhelper/backend/testhelpers"
	ws "github.com/interviewhelper/backend/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		AI:        AIConfig{Provider: "gigachat"},
		GigaChat:  GigaChatConfig{ClientID: "development"},
		JWT:       testJWTConfig,
		Session:   SessionConfig{TTL: time.Hour, CleanupInterval: time.Minute},
		Interview: InterviewConfig{TimeoutSchedule: "@every 1h", IdleTimeout: time.Hour},
		WebSocket: WebSocketConfig{AllowedOrigins: "http://localhost:3000"},
		CORS:      CORSConfig{AllowedOrigins: "http://localhost:3000"},
	}
}

func chiRouterWith(auth *AuthService, handler *WebSocketHandler) http.Handler {
	r := chi.NewRouter()
	r.With(auth.Middleware).Get("/interview/{interviewId}/ws", handler.ServeHTTP)
	return r
}

func uintString(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func newTestServer(t *testing.T, config *Config) *Server {
	t.Helper()
	server := NewServer(config, repository.NewGORMRepository(testhelpers.SetupTestDB(t)))
	require.NoError(t, server.InitializeServices(context.Background()))
	t.Cleanup(server.Shutdown)
	return server
}

func TestInitializeServicesRequiresSecret(t *testing.T) {
	config := testConfig()
	config.JWT.Secret = ""
	server := NewServer(config, repository.NewGORMRepository(testhelpers.SetupTestDB(t)))
	assert.Error(t, server.InitializeServices(context.Background()))
}

func TestInitializeServicesUnknownProvider(t *testing.T) {
	config := testConfig()
	config.AI.Provider = "openai"
	server := NewServer(config, repository.NewGORMRepository(testhelpers.SetupTestDB(t)))
	t.Cleanup(server.Shutdown)
	assert.Error(t, server.InitializeServices(context.Background()))
}

func TestGigaChatDevModeFollowsClientID(t *testing.T) {
	tests := []struct {
		name     string
		clientID string
		secret   string
		devMode  bool
	}{
		{"placeholder id with real secret", "development-client", "real-secret", true},
		{"real id without secret", "real-client-id", "", false},
		{"missing id", "", "real-secret", true},
		{"real credentials", "real-client-id", "real-secret", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig()
			config.GigaChat.ClientID = tt.clientID
			config.GigaChat.ClientSecret = tt.secret
			server := NewServer(config, nil)

			completer, devMode, err := server.newCompleter(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "gigachat", completer.Provider())
			assert.Equal(t, tt.devMode, devMode)
		})
	}
}

func TestServerRoutes(t *testing.T) {
	server := newTestServer(t, testConfig())
	assert.True(t, server.chatService.devMode, "placeholder credentials enable development mode")
	router := server.SetupRoutes()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "up", health.Database)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "interview_helper_http_in_flight_requests")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/get/interview", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/interview/1/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodOptions, "/register", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServerDevModeInterview(t *testing.T) {
	// Development mode with an unreachable provider still produces a templated first question
	config := testConfig()
	config.GigaChat.AuthURL = "http://127.0.0.1:1/oauth"
	config.GigaChat.APIURL = "http://127.0.0.1:1/chat"
	config.GigaChat.Timeout = time.Second
	server := newTestServer(t, config)
	router := server.SetupRoutes()

	rec := httptest.NewRecorder()
	body := `{"username":"dev","email":"dev@example.com","password":"secret123"}`
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var auth AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &auth))

	req := httptest.NewRequest(http.MethodPost, "/interview/start", strings.NewReader(`{"jobTitle":"Go developer","jobDescription":"Go"}`))
	req.Header.Set("Authorization", "Bearer "+auth.Token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var started StartInterviewResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	assert.Equal(t, "Вопрос по Go developer (уровень: middle): Расскажите о вашем опыте работы с Go?", started.FirstQuestion)
}

func TestWebSocketTurn(t *testing.T) {
	f := newServiceFixture(t)
	auth := NewAuthService(f.repo, testJWTConfig)
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	handler := NewWebSocketHandler(f.service, hub, "http://localhost:3000")
	router := chiRouterWith(auth, handler)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	started := f.start(t)
	token, err := auth.IssueToken(f.user)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/interview/" + uintString(started.InterviewID) + "/ws?access_token=" + token
	header := http.Header{"Origin": {"http://localhost:3000"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	read := func() map[string]any {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var event map[string]any
		require.NoError(t, conn.ReadJSON(&event))
		return event
	}

	require.NoError(t, conn.WriteJSON(ws.Message{Type: ws.MessageTypeHint, QuestionID: started.QuestionID}))
	event := read()
	assert.Equal(t, ws.MessageTypeHint, event["type"])

	require.NoError(t, conn.WriteJSON(ws.Message{Type: ws.MessageTypeAnswer, QuestionID: started.QuestionID, UserAnswer: "Каналы"}))
	event = read()
	assert.Equal(t, ws.MessageTypeEvaluation, event["type"])
	data, ok := event["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(8), data["score"])

	require.NoError(t, conn.WriteJSON(ws.Message{Type: ws.MessageTypeAnswer, QuestionID: started.QuestionID, UserAnswer: "Снова"}))
	event = read()
	assert.Equal(t, ws.MessageTypeError, event["type"])
	assert.Contains(t, event["error"], ErrQuestionAnswered.Error())

	require.NoError(t, conn.WriteJSON(ws.Message{Type: "dance"}))
	assert.Equal(t, ws.MessageTypeError, read()["type"])
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	f := newServiceFixture(t)
	auth := NewAuthService(f.repo, testJWTConfig)
	hub := ws.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(chiRouterWith(auth, NewWebSocketHandler(f.service, hub, "http://localhost:3000")))
	t.Cleanup(srv.Close)

	started := f.start(t)
	token, err := auth.IssueToken(f.user)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/interview/" + uintString(started.InterviewID) + "/ws?access_token=" + token
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
