package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelbrown/snipforge/internal/interp"
	"github.com/michaelbrown/snipforge/internal/interp/backends"
	"github.com/michaelbrown/snipforge/internal/logging"
	"github.com/michaelbrown/snipforge/internal/runner"
	"github.com/michaelbrown/snipforge/internal/sandbox"
	"github.com/michaelbrown/snipforge/internal/storage"
	"github.com/michaelbrown/snipforge/internal/storage/sqlite"
)

// scriptSandbox acts on the contents of the written artifact:
// "die" fails at runtime, "nobinary" fails to launch, "block" waits for
// cancellation, anything else is echoed back.
type scriptSandbox struct{}

func (scriptSandbox) Exec(ctx context.Context, opts sandbox.ExecOpts) (*sandbox.ExecResult, error) {
	var artifact string
	for _, a := range opts.Command {
		if strings.HasPrefix(a, opts.Dir+string(filepath.Separator)) {
			artifact = a
			break
		}
	}
	code, err := os.ReadFile(artifact)
	if err != nil {
		return nil, err
	}

	switch string(code) {
	case "die":
		return &sandbox.ExecResult{Stderr: []byte("Died at main.pl line 1.\n"), ExitCode: 255}, nil
	case "nobinary":
		return nil, fmt.Errorf("%w: %s: executable file not found", sandbox.ErrLaunch, opts.Command[0])
	case "block":
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &sandbox.ExecResult{Stdout: code}, nil
}

func newTestServer(t *testing.T, withStore bool) (*Server, storage.Store) {
	t.Helper()

	reg := interp.NewRegistry()
	require.NoError(t, backends.Register(reg, scriptSandbox{}, []backends.Definition{
		{Name: "Foo_a", Languages: []string{"foo"}, Binary: "foo", Extension: "foo"},
		{Name: "Foo_b", Languages: []string{"foo"}, Binary: "foo", Extension: "foo"},
	}))

	var store storage.Store
	if withStore {
		s, err := sqlite.Open(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		store = s
	}

	rn := runner.New(reg, runner.Options{
		WorkDir: t.TempDir(),
		Isolate: true,
		Store:   store,
	})
	srv := New(rn, store, logging.Discard())
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv, store
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v), w.Body.String())
	return v
}

func TestListInterpreters(t *testing.T) {
	srv, _ := newTestServer(t, false)

	w := do(t, srv, http.MethodGet, "/api/interpreters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	infos := decode[[]interpreterInfo](t, w)
	byName := map[string]interpreterInfo{}
	for _, in := range infos {
		byName[in.Name] = in
	}
	perl, ok := byName["Perl_original"]
	require.True(t, ok)
	assert.Equal(t, []string{"Perl", "perl", "pm", "pl"}, perl.Languages)
	assert.Equal(t, interp.Bloc, perl.MaxLevel)
	assert.True(t, perl.DefaultForFiletype)
	assert.True(t, perl.ReplLike)
	assert.Contains(t, byName, "Foo_a")
}

func TestGetInterpreter(t *testing.T) {
	srv, _ := newTestServer(t, false)

	w := do(t, srv, http.MethodGet, "/api/interpreters/Perl_original", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"max_level":"bloc"`)

	w = do(t, srv, http.MethodGet, "/api/interpreters/Cobol_original", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRun_Success(t *testing.T) {
	srv, _ := newTestServer(t, false)

	w := do(t, srv, http.MethodPost, "/api/run", runRequest{Language: "perl", Bloc: `print "Hello,World!"`})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decode[runner.Result](t, w)
	assert.Equal(t, `print "Hello,World!"`, res.Output)
	assert.Equal(t, "Perl_original", res.Interpreter)
	assert.Equal(t, interp.Bloc, res.Level)
	assert.NotEmpty(t, res.RunID)
	assert.Zero(t, srv.tracker.Count())
}

func TestRun_Errors(t *testing.T) {
	srv, _ := newTestServer(t, false)

	tests := []struct {
		name   string
		body   any
		status int
		kind   string
	}{
		{"runtime", runRequest{Language: "perl", Line: "die"}, http.StatusUnprocessableEntity, "runtime"},
		{"launch", runRequest{Language: "perl", Line: "nobinary"}, http.StatusBadGateway, "launch"},
		{"unknown language", runRequest{Language: "brainfuck", Line: "+"}, http.StatusNotFound, "not_found"},
		{"unknown interpreter", runRequest{Interpreter: "Cobol_original", Line: "x"}, http.StatusNotFound, "not_found"},
		{"ambiguous", runRequest{Language: "foo", Line: "x"}, http.StatusConflict, "ambiguous"},
		{"invalid json", "{", http.StatusBadRequest, ""},
		{"no language", runRequest{Line: "x"}, http.StatusBadRequest, ""},
		{"bad level", runRequest{Language: "perl", Line: "x", Level: "galaxy"}, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, "/api/run", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())

			body := decode[errorBody](t, w)
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tt.kind, body.Kind)
		})
	}
}

func TestRun_RuntimeErrorBody(t *testing.T) {
	srv, _ := newTestServer(t, false)

	w := do(t, srv, http.MethodPost, "/api/run", runRequest{Language: "pl", Bloc: "die"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	body := decode[errorBody](t, w)
	assert.Equal(t, "Died at main.pl line 1.\n", body.Stderr)
	assert.Equal(t, 255, body.ExitCode)
}

func TestRuns_History(t *testing.T) {
	srv, _ := newTestServer(t, true)

	w := do(t, srv, http.MethodPost, "/api/run", runRequest{Language: "perl", Line: "1", Args: []string{"a"}})
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[runner.Result](t, w)

	do(t, srv, http.MethodPost, "/api/run", runRequest{Language: "perl", Line: "die"})

	w = do(t, srv, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]storage.Run](t, w), 2)

	w = do(t, srv, http.MethodGet, "/api/runs?status=failed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	failed := decode[[]storage.Run](t, w)
	require.Len(t, failed, 1)
	assert.Equal(t, "runtime", failed[0].ErrorKind)

	w = do(t, srv, http.MethodGet, "/api/runs/"+res.RunID[:8], nil)
	require.Equal(t, http.StatusOK, w.Code)
	run := decode[storage.Run](t, w)
	assert.Equal(t, res.RunID, run.ID)
	assert.Equal(t, []string{"a"}, run.Args)

	w = do(t, srv, http.MethodDelete, "/api/runs/"+res.RunID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, srv, http.MethodGet, "/api/runs/"+res.RunID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodDelete, "/api/runs/"+res.RunID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRuns_HistoryDisabled(t *testing.T) {
	srv, _ := newTestServer(t, false)

	for _, path := range []string{"/api/runs", "/api/runs/abc"} {
		w := do(t, srv, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
}

func dialWS(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) wsOutgoing {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg wsOutgoing
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocket_Run(t *testing.T) {
	srv, _ := newTestServer(t, false)
	conn := dialWS(t, srv)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "run", "id": "1", "language": "perl", "bloc": "say 1",
	}))
	msg := readWS(t, conn)
	assert.Equal(t, "result", msg.Type)
	assert.Equal(t, "1", msg.ID)
	assert.Equal(t, "say 1", msg.Content)
	assert.NotEmpty(t, msg.RunID)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "run", "id": "2", "language": "perl", "line": "die",
	}))
	msg = readWS(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "2", msg.ID)
	assert.Equal(t, "runtime", msg.Kind)
	assert.Equal(t, "Died at main.pl line 1.\n", msg.Content)
	assert.Equal(t, 255, msg.ExitCode)
}

func TestWebSocket_InvalidMessages(t *testing.T) {
	srv, _ := newTestServer(t, false)
	conn := dialWS(t, srv)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "run"}))
	msg := readWS(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "request", msg.Kind)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "dance", "id": "x"}))
	msg = readWS(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "x", msg.ID)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "cancel", "id": "missing"}))
	msg = readWS(t, conn)
	assert.Equal(t, "no such run", msg.Content)
}

func TestWebSocket_Cancel(t *testing.T) {
	srv, _ := newTestServer(t, false)
	conn := dialWS(t, srv)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "run", "id": "slow", "language": "perl", "line": "block",
	}))
	require.Eventually(t, func() bool { return srv.tracker.Count() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "cancel", "id": "slow"}))
	msg := readWS(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "slow", msg.ID)
	assert.Equal(t, "interrupted", msg.Content)
}

func TestWebSocket_CloseCancelsRuns(t *testing.T) {
	srv, _ := newTestServer(t, false)
	conn := dialWS(t, srv)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "run", "id": "slow", "language": "perl", "line": "block",
	}))
	require.Eventually(t, func() bool { return srv.tracker.Count() == 1 }, 5*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return srv.tracker.Count() == 0 }, 5*time.Second, 10*time.Millisecond)
}
