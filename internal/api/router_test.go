package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/flagr/internal/api"
	"github.com/Rrens/flagr/internal/api/middleware"
	"github.com/Rrens/flagr/internal/config"
	"github.com/Rrens/flagr/internal/document"
	"github.com/Rrens/flagr/internal/domain"
	"github.com/Rrens/flagr/internal/llm"
	"github.com/Rrens/flagr/internal/repository/memory"
	"github.com/Rrens/flagr/internal/repository/redis"
	"github.com/Rrens/flagr/internal/security"
	"github.com/Rrens/flagr/internal/service"
	"github.com/Rrens/flagr/internal/session"
)

const analysisJSON = `{"plainLanguageSummary":"Employment terms.","flags":[` +
	`{"id":"f1","title":"Non-compete","clause":"shall not compete","explanation":"broad","severity":"High","suggestedRewrite":"narrow it"},` +
	`{"id":"f2","title":"Duties","clause":"other duties","explanation":"vague","severity":"Low","suggestedRewrite":"list them"}],` +
	`"riskAssessment":{"overallSummary":"ok","risks":[]},"aiInsights":{"overallSummary":"ok","recommendations":[]}}`

type stubProvider struct{}

func (stubProvider) Name() string              { return "stub" }
func (stubProvider) AvailableModels() []string { return []string{"stub-1"} }
func (stubProvider) DefaultModel() string      { return "stub-1" }
func (stubProvider) IsConfigured() bool        { return true }

func (stubProvider) Analyze(context.Context, llm.AnalysisRequest) (string, error) {
	return analysisJSON, nil
}

func (stubProvider) StreamChat(context.Context, llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk, 3)
	ch <- llm.StreamChunk{Text: "Hel"}
	ch <- llm.StreamChunk{Text: "lo"}
	ch <- llm.StreamChunk{Text: " world"}
	close(ch)
	return ch, nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string) (redis.Decision, error) {
	return redis.Decision{Allowed: false, Limit: 60, ResetAt: time.Unix(1700000000, 0)}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   any             `json:"error"`
}

type testAPI struct {
	t   *testing.T
	srv *httptest.Server
}

func newTestAPI(t *testing.T, limiter middleware.Limiter) *testAPI {
	t.Helper()

	cfg := &config.Config{
		Server:   config.ServerConfig{MiddlewareTimeout: 5 * time.Second, AllowedOrigins: []string{"*"}},
		Analysis: config.AnalysisConfig{MaxUploadBytes: 1 << 20},
	}

	kv := memory.NewStore()
	mgr := session.NewManager(kv)
	providers := llm.NewRouter("stub")
	providers.RegisterProvider(stubProvider{})
	jwtManager := security.NewJWTManager("router-test-secret-32-characters", 15*time.Minute, time.Hour)

	deps := api.Dependencies{
		Storage:     kv,
		Sessions:    mgr,
		Providers:   providers,
		Auth:        service.NewAuthService(kv, jwtManager, mgr, nil),
		Analysis:    service.NewAnalysisService(mgr, providers, document.NewExtractor(), security.NewUploadValidator(1<<20), nil, 0),
		Chat:        service.NewChatService(mgr, providers),
		Preferences: service.NewPreferencesService(kv),
	}
	if limiter != nil {
		deps.Limiter = limiter
	}

	srv := httptest.NewServer(api.NewRouter(cfg, deps))
	t.Cleanup(srv.Close)
	return &testAPI{t: t, srv: srv}
}

func (a *testAPI) do(method, path, token string, body io.Reader, contentType string) *http.Response {
	a.t.Helper()
	req, err := http.NewRequest(method, a.srv.URL+path, body)
	require.NoError(a.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(a.t, err)
	return resp
}

func (a *testAPI) json(method, path, token string, body any, out any) int {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	}

	resp := a.do(method, path, token, reader, "application/json")
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode
	}

	var env envelope
	require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&env))
	if out != nil && len(env.Data) > 0 {
		require.NoError(a.t, json.Unmarshal(env.Data, out))
	}
	return resp.StatusCode
}

func (a *testAPI) upload(token, filename, content string, out any) (int, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(a.t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(a.t, err)
	require.NoError(a.t, mw.Close())

	resp := a.do(http.MethodPost, "/api/v1/documents", token, &buf, mw.FormDataContentType())
	defer resp.Body.Close()

	var env envelope
	require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&env))
	if out != nil && len(env.Data) > 0 {
		require.NoError(a.t, json.Unmarshal(env.Data, out))
	}
	return resp.StatusCode, env
}

func (a *testAPI) signIn() string {
	a.t.Helper()
	creds := map[string]string{"email": "jane@example.com", "password": "correct horse"}
	require.Equal(a.t, http.StatusCreated, a.json(http.MethodPost, "/api/v1/auth/register", "", creds, nil))

	var tokens domain.TokenPair
	require.Equal(a.t, http.StatusOK, a.json(http.MethodPost, "/api/v1/auth/login", "", creds, &tokens))
	require.NotEmpty(a.t, tokens.AccessToken)
	return tokens.AccessToken
}

type sessionList struct {
	Sessions []domain.ChatSession `json:"sessions"`
	ActiveID string               `json:"activeId"`
}

func TestAPI_AuthFlow(t *testing.T) {
	a := newTestAPI(t, nil)

	assert.Equal(t, http.StatusBadRequest, a.json(http.MethodPost, "/api/v1/auth/register", "", map[string]string{"email": "not-an-email", "password": "x"}, nil))

	token := a.signIn()

	creds := map[string]string{"email": "jane@example.com", "password": "correct horse"}
	assert.Equal(t, http.StatusConflict, a.json(http.MethodPost, "/api/v1/auth/register", "", creds, nil))
	assert.Equal(t, http.StatusUnauthorized, a.json(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "jane@example.com", "password": "wrong"}, nil))

	var me domain.User
	require.Equal(t, http.StatusOK, a.json(http.MethodGet, "/api/v1/auth/me", token, nil, &me))
	assert.Equal(t, "jane", me.Username)

	assert.Equal(t, http.StatusUnauthorized, a.json(http.MethodGet, "/api/v1/sessions", "", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, a.json(http.MethodGet, "/api/v1/sessions", "garbage", nil, nil))

	assert.Equal(t, http.StatusNoContent, a.json(http.MethodPost, "/api/v1/auth/logout", token, nil, nil))
}

func TestAPI_SessionLifecycle(t *testing.T) {
	a := newTestAPI(t, nil)
	token := a.signIn()

	var list sessionList
	require.Equal(t, http.StatusOK, a.json(http.MethodGet, "/api/v1/sessions", token, nil, &list))
	require.Len(t, list.Sessions, 1)
	first := list.Sessions[0]
	assert.Equal(t, first.ID, list.ActiveID)

	var created domain.ChatSession
	require.Equal(t, http.StatusCreated, a.json(http.MethodPost, "/api/v1/sessions", token, nil, &created))
	assert.Equal(t, domain.DefaultSessionTitle, created.Title)

	var renamed domain.ChatSession
	assert.Equal(t, http.StatusBadRequest, a.json(http.MethodPatch, "/api/v1/sessions/"+created.ID, token, map[string]string{"title": "   "}, nil))
	require.Equal(t, http.StatusOK, a.json(http.MethodPatch, "/api/v1/sessions/"+created.ID, token, map[string]string{"title": "  Lease review "}, &renamed))
	assert.Equal(t, "Lease review", renamed.Title)

	var active map[string]string
	require.Equal(t, http.StatusOK, a.json(http.MethodPost, "/api/v1/sessions/"+first.ID+"/activate", token, nil, &active))
	assert.Equal(t, first.ID, active["activeId"])

	assert.Equal(t, http.StatusNotFound, a.json(http.MethodGet, "/api/v1/sessions/missing", token, nil, nil))
	assert.Equal(t, http.StatusNotFound, a.json(http.MethodDelete, "/api/v1/sessions/missing", token, nil, nil))

	require.Equal(t, http.StatusOK, a.json(http.MethodDelete, "/api/v1/sessions/"+first.ID, token, nil, &list))
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, created.ID, list.ActiveID)

	require.Equal(t, http.StatusOK, a.json(http.MethodDelete, "/api/v1/sessions/"+created.ID, token, nil, &list))
	require.Len(t, list.Sessions, 1, "deleting the last session creates a fresh one")
	assert.NotEqual(t, created.ID, list.ActiveID)
}

func TestAPI_DocumentThenChat(t *testing.T) {
	a := newTestAPI(t, nil)
	token := a.signIn()

	var sess domain.ChatSession
	status, _ := a.upload(token, "contract.txt", "This Employment Agreement ...", &sess)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Contract/Agreement: contract.txt", sess.Title)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, `Analyzed document: "contract.txt"`, sess.Messages[0].Content)
	require.NotNil(t, sess.Analysis)
	assert.Len(t, sess.Analysis.Flags, 2)

	var list sessionList
	require.Equal(t, http.StatusOK, a.json(http.MethodGet, "/api/v1/sessions", token, nil, &list))
	assert.Len(t, list.Sessions, 2)
	assert.Equal(t, sess.ID, list.ActiveID)

	resp := a.do(http.MethodPost, "/api/v1/sessions/"+sess.ID+"/messages", token,
		strings.NewReader(`{"content":"Is the non-compete enforceable?"}`), "application/json")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, "data: {\"chunk\":\"Hel\"}\n\n")
	assert.Contains(t, text, "data: {\"chunk\":\" world\"}\n\n")
	assert.Contains(t, text, "event: session\n")
	assert.True(t, strings.HasSuffix(text, "data: [DONE]\n\n"))

	var updated domain.ChatSession
	require.Equal(t, http.StatusOK, a.json(http.MethodGet, "/api/v1/sessions/"+sess.ID, token, nil, &updated))
	require.Len(t, updated.Messages, 4)
	assert.Equal(t, "Hello world", updated.Messages[3].Content)
	assert.Equal(t, "Contract/Agreement: contract.txt", updated.Title)
}

func TestAPI_MessageRejectedBeforeStreaming(t *testing.T) {
	a := newTestAPI(t, nil)
	token := a.signIn()

	resp := a.do(http.MethodPost, "/api/v1/sessions/missing/messages", token, strings.NewReader(`{"content":"hi"}`), "application/json")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	assert.Equal(t, http.StatusBadRequest, a.json(http.MethodPost, "/api/v1/sessions/missing/messages", token, map[string]string{"content": ""}, nil))
}

func TestAPI_DocumentRejections(t *testing.T) {
	a := newTestAPI(t, nil)
	token := a.signIn()

	status, env := a.upload(token, "old.doc", "binary", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "Error processing file 'old.doc': .doc files are not supported. Please convert to .docx, .pdf, or a text format.", env.Error)

	status, env = a.upload(token, "blank.txt", "   \n  ", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "File 'blank.txt' is empty or could not be read.", env.Error)

	status, _ = a.upload(token, "run.sh", "echo hi", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	var list sessionList
	require.Equal(t, http.StatusOK, a.json(http.MethodGet, "/api/v1/sessions", token, nil, &list))
	assert.Len(t, list.Sessions, 1, "rejected uploads create no session")
}

func TestAPI_AsyncDocument(t *testing.T) {
	a := newTestAPI(t, nil)
	token := a.signIn()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "terms.md")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("These Terms of Service govern your use"))
	require.NoError(t, mw.Close())

	resp := a.do(http.MethodPost, "/api/v1/documents?async=true", token, &buf, mw.FormDataContentType())
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	var pending service.PendingAnalysis
	require.NoError(t, json.Unmarshal(env.Data, &pending))
	assert.Equal(t, "Terms of Service", pending.DocType)

	assert.Eventually(t, func() bool {
		var sess domain.ChatSession
		if a.json(http.MethodGet, "/api/v1/sessions/"+pending.SessionID, token, nil, &sess) != http.StatusOK {
			return false
		}
		return sess.Analysis != nil && len(sess.Messages) == 2
	}, 2*time.Second, 20*time.Millisecond)
}

func TestAPI_Preferences(t *testing.T) {
	a := newTestAPI(t, nil)
	token := a.signIn()

	var state map[string]bool
	require.Equal(t, http.StatusOK, a.json(http.MethodGet, "/api/v1/preferences/sidebar", token, nil, &state))
	assert.True(t, state["expanded"])

	assert.Equal(t, http.StatusBadRequest, a.json(http.MethodPut, "/api/v1/preferences/sidebar", token, map[string]any{}, nil))
	require.Equal(t, http.StatusOK, a.json(http.MethodPut, "/api/v1/preferences/sidebar", token, map[string]bool{"expanded": false}, nil))
	require.Equal(t, http.StatusOK, a.json(http.MethodGet, "/api/v1/preferences/sidebar", token, nil, &state))
	assert.False(t, state["expanded"])
}

func TestAPI_PublicEndpoints(t *testing.T) {
	a := newTestAPI(t, nil)

	var health map[string]string
	require.Equal(t, http.StatusOK, a.json(http.MethodGet, "/api/v1/health", "", nil, &health))
	assert.Equal(t, "ok", health["status"])

	require.Equal(t, http.StatusOK, a.json(http.MethodGet, "/api/v1/ready", "", nil, &health))
	assert.Equal(t, "ready", health["status"])

	var providers struct {
		Providers       []llm.ProviderInfo `json:"providers"`
		DefaultProvider string             `json:"default_provider"`
	}
	require.Equal(t, http.StatusOK, a.json(http.MethodGet, "/api/v1/llm-providers", "", nil, &providers))
	assert.Equal(t, "stub", providers.DefaultProvider)
	require.Len(t, providers.Providers, 1)
	assert.True(t, providers.Providers[0].Configured)
}

func TestAPI_RateLimited(t *testing.T) {
	a := newTestAPI(t, denyLimiter{})
	token := a.signIn()

	resp := a.do(http.MethodGet, "/api/v1/sessions", token, nil, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1700000000", resp.Header.Get("X-RateLimit-Reset"))
}

func TestAPI_LogoutRevokesTokens(t *testing.T) {
	a := newTestAPI(t, nil)

	creds := map[string]string{"email": "jane@example.com", "password": "correct horse"}
	require.Equal(t, http.StatusCreated, a.json(http.MethodPost, "/api/v1/auth/register", "", creds, nil))
	var tokens domain.TokenPair
	require.Equal(t, http.StatusOK, a.json(http.MethodPost, "/api/v1/auth/login", "", creds, &tokens))

	refresh := map[string]string{"refresh_token": tokens.RefreshToken}
	require.Equal(t, http.StatusOK, a.json(http.MethodPost, "/api/v1/auth/refresh", "", refresh, nil))

	require.Equal(t, http.StatusNoContent, a.json(http.MethodPost, "/api/v1/auth/logout", tokens.AccessToken, nil, nil))

	assert.Equal(t, http.StatusUnauthorized, a.json(http.MethodPost, "/api/v1/auth/refresh", "", refresh, nil))
	assert.Equal(t, http.StatusUnauthorized, a.json(http.MethodGet, "/api/v1/sessions", tokens.AccessToken, nil, nil))
	assert.Equal(t, http.StatusUnauthorized, a.json(http.MethodPost, "/api/v1/auth/refresh", "", refresh, nil),
		"a replayed access token must not sign the user back in")

	var again domain.TokenPair
	require.Equal(t, http.StatusOK, a.json(http.MethodPost, "/api/v1/auth/login", "", creds, &again))
	assert.Equal(t, http.StatusOK, a.json(http.MethodGet, "/api/v1/sessions", again.AccessToken, nil, nil))
}
