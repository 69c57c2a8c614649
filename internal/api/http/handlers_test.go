package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/capability"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/scriptbox/internal/sandbox"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockExecutor struct {
	mock.Mock
}

func (m *mockExecutor) Execute(ctx context.Context, req sandbox.Request) sandbox.Result {
	args := m.Called(ctx, req)
	return args.Get(0).(sandbox.Result)
}

func (m *mockExecutor) Capabilities() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

func newRouter(exec Executor) *gin.Engine {
	router := gin.New()
	NewHandlers(exec, monitoring.NewMetrics(), "test").Register(router)
	return router
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestExecuteMapsRequest(t *testing.T) {
	want := sandbox.Request{
		Code:      "return 1",
		Input:     map[string]any{"n": float64(1)},
		Timeout:   250 * time.Millisecond,
		InputMode: sandbox.InputRaw,
		APIPick:   []string{"a"},
		APIMode:   sandbox.APIRaw,
		Tier:      sandbox.TierIsolated,
	}
	exec := new(mockExecutor)
	exec.On("Execute", mock.Anything, want).Return(sandbox.Result{OK: true, Result: "r", Logs: []string{"l"}}).Once()
	router := newRouter(exec)

	w := do(router, http.MethodPost, "/v1/execute", `{
		"code": "return 1",
		"input": {"n": 1},
		"timeoutMs": 250,
		"inputMode": "raw",
		"apiPick": ["a"],
		"apiMode": "raw",
		"tier": "isolated"
	}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"ok": true, "result": "r", "logs": []any{"l"}}, decode(t, w))
	exec.AssertExpectations(t)
}

func TestExecuteFailureIsStill200(t *testing.T) {
	exec := new(mockExecutor)
	exec.On("Execute", mock.Anything, mock.AnythingOfType("sandbox.Request")).
		Return(sandbox.Result{Error: "Timeout", Kind: sandbox.KindTimeout, Logs: []string{}})

	w := do(newRouter(exec), http.MethodPost, "/v1/execute", `{"code": "while(true){}"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"ok": false, "error": "Timeout", "kind": "timeout", "logs": []any{}}, decode(t, w))
}

func TestExecuteRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"code": `},
		{"wrong type", `{"code": 1}`},
		{"negative timeout", `{"code": "", "timeoutMs": -1}`},
		{"unknown tier", `{"code": "", "tier": "remote"}`},
		{"unknown input mode", `{"code": "", "inputMode": "deep"}`},
		{"unknown api mode", `{"code": "", "apiMode": "sealed"}`},
		{"bad pick name", `{"code": "", "apiPick": ["a.b"]}`},
		{"deep input", `{"code": "", "input": ` + strings.Repeat("[", 70) + strings.Repeat("]", 70) + `}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := new(mockExecutor)
			w := do(newRouter(exec), http.MethodPost, "/v1/execute", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decode(t, w), "error")
			exec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
		})
	}
}

func TestExecuteAgainstEngine(t *testing.T) {
	reg := capability.NewRegistry()
	require.NoError(t, reg.Register("greet", func(name string) string { return "hi " + name }))
	engine, err := sandbox.New(sandbox.Config{}, reg)
	require.NoError(t, err)
	defer engine.Close()

	w := do(newRouter(engine), http.MethodPost, "/v1/execute",
		`{"code": "log('x'); return api.greet(input.name)", "input": {"name": "bo"}}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"ok": true, "result": "hi bo", "logs": []any{"x"}}, decode(t, w))

	w = do(newRouter(engine), http.MethodPost, "/v1/execute", `{"code": "("}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "validation", body["kind"])
}

func TestExecuteRendersNonFiniteNumbersAsNull(t *testing.T) {
	engine, err := sandbox.New(sandbox.Config{}, capability.NewRegistry())
	require.NoError(t, err)
	defer engine.Close()
	router := newRouter(engine)

	w := do(router, http.MethodPost, "/v1/execute", `{"code": "return 0/0"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"ok": true, "logs": []any{}}, decode(t, w))

	w = do(router, http.MethodPost, "/v1/execute", `{"code": "log(1); return {n: 1/0, m: -1/0, k: [0/0]}"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{
		"ok":     true,
		"result": map[string]any{"n": nil, "m": nil, "k": []any{nil}},
		"logs":   []any{"1"},
	}, decode(t, w))
}

func TestReadEndpoints(t *testing.T) {
	exec := new(mockExecutor)
	exec.On("Capabilities").Return([]string{"a", "b"})
	router := newRouter(exec)

	w := do(router, http.MethodGet, "/v1/capabilities", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{"a", "b"}, decode(t, w)["capabilities"])

	w = do(router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	w = do(router, http.MethodGet, "/", "")
	assert.Equal(t, "test", decode(t, w)["version"])

	w = do(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "scriptbox_uptime_seconds")
}
