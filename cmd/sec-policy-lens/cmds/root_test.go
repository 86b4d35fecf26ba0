package cmds

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/stretchr/testify/require"

	"github.com/rupeshbug/sec-policy-lens/pkg/config"
	"github.com/rupeshbug/sec-policy-lens/pkg/session"
	"github.com/rupeshbug/sec-policy-lens/pkg/versions"
)

type capturedRequest struct {
	Query   string  `json:"query"`
	Version *string `json:"version"`
	Mode    string  `json:"mode"`
}

func newAnsweringServer(t *testing.T, status int, body string) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var got []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			_, _ = w.Write([]byte(`{"status":"ok"}`))
			return
		case "/disclosure-analysis":
		default:
			http.NotFound(w, r)
			return
		}
		var req capturedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		got = append(got, req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

// rowCollector stands in for the glazed output pipeline.
type rowCollector struct {
	rows []types.Row
}

func (r *rowCollector) AddRow(_ context.Context, row types.Row) error {
	r.rows = append(r.rows, row)
	return nil
}

func (r *rowCollector) Close(context.Context) error { return nil }

func cell(t *testing.T, row types.Row, name string) interface{} {
	t.Helper()
	v, ok := row.Get(name)
	require.True(t, ok, "missing field %s", name)
	return v
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a, root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	base := []string{
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"--log-level", "disabled",
	}
	root.SetArgs(append(args, base...))
	err := a.execute(root)
	return out.String(), err
}

func newTestApp(t *testing.T, serviceURL string) *app {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Service.URL = serviceURL
	cfg.Logging.Level = "disabled"
	a := &app{cfg: cfg}
	t.Cleanup(a.close)
	return a
}

func TestAskEmitsAnswerRowWithCitations(t *testing.T) {
	srv, got := newAnsweringServer(t, http.StatusOK,
		`{"answer":"Scope 3 is not required.","sources":[{"doc":"Final Rule","version":"2024_final","section":"II.H.3"}]}`)
	a := newTestApp(t, srv.URL)
	rows := &rowCollector{}

	err := a.ask(context.Background(), &AskSettings{
		Version:  "2024_final",
		Question: []string{"Is", "Scope 3", "required?"},
	}, rows)
	require.NoError(t, err)
	require.False(t, a.unanswered)

	require.Len(t, *got, 1)
	require.Equal(t, "Is Scope 3 required?", (*got)[0].Query)
	require.NotNil(t, (*got)[0].Version)
	require.Equal(t, "2024_final", *(*got)[0].Version)
	require.Equal(t, "fast", (*got)[0].Mode)

	require.Len(t, rows.rows, 1)
	row := rows.rows[0]
	require.Equal(t, "Is Scope 3 required?", cell(t, row, "question"))
	require.Equal(t, "2024_final", cell(t, row, "version"))
	require.Equal(t, "Scope 3 is not required.", cell(t, row, "answer"))
	require.Equal(t, false, cell(t, row, "failed"))
	require.Equal(t, []map[string]interface{}{
		{"doc": "Final Rule", "version": "2024_final", "section": "II.H.3"},
	}, cell(t, row, "citations"))
}

func TestAskExampleWithoutVersion(t *testing.T) {
	srv, got := newAnsweringServer(t, http.StatusOK, `{"answer":"Because investors asked for it."}`)
	a := newTestApp(t, srv.URL)
	rows := &rowCollector{}

	require.NoError(t, a.ask(context.Background(), &AskSettings{Example: 1}, rows))
	require.Len(t, *got, 1)
	require.Equal(t, session.DefaultExamples[0], (*got)[0].Query)
	require.Nil(t, (*got)[0].Version)

	require.Len(t, rows.rows, 1)
	require.Equal(t, session.DefaultExamples[0], cell(t, rows.rows[0], "question"))
	require.Equal(t, "none", cell(t, rows.rows[0], "version"))
	require.Equal(t, []map[string]interface{}{}, cell(t, rows.rows[0], "citations"))
}

func TestAskFallbackMarksUnanswered(t *testing.T) {
	srv, _ := newAnsweringServer(t, http.StatusInternalServerError, `boom`)
	a := newTestApp(t, srv.URL)
	rows := &rowCollector{}

	require.NoError(t, a.ask(context.Background(), &AskSettings{Question: []string{"anything"}}, rows))
	require.True(t, a.unanswered)
	require.Len(t, rows.rows, 1)
	require.Equal(t, true, cell(t, rows.rows[0], "failed"))
	require.Equal(t, session.FallbackMessage, cell(t, rows.rows[0], "answer"))
}

func TestAskValidatesArguments(t *testing.T) {
	a := newTestApp(t, "http://127.0.0.1:1")
	ctx := context.Background()

	require.Error(t, a.ask(ctx, &AskSettings{}, &rowCollector{}))
	require.Error(t, a.ask(ctx, &AskSettings{Example: 1, Question: []string{"also a question"}}, &rowCollector{}))
	require.Error(t, a.ask(ctx, &AskSettings{Version: "2019_draft", Question: []string{"q"}}, &rowCollector{}))
	require.ErrorIs(t, a.ask(ctx, &AskSettings{Example: 99}, &rowCollector{}), session.ErrUnknownExample)
}

func TestExampleRows(t *testing.T) {
	rows := &rowCollector{}
	require.NoError(t, exampleRows(context.Background(), session.DefaultExamples, rows))
	require.Len(t, rows.rows, len(session.DefaultExamples))
	require.Equal(t, 1, cell(t, rows.rows[0], "index"))
	require.Equal(t, session.DefaultExamples[0], cell(t, rows.rows[0], "question"))
}

func TestVersionRows(t *testing.T) {
	rows := &rowCollector{}
	require.NoError(t, (&VersionsCommand{}).RunIntoGlazeProcessor(context.Background(), nil, rows))
	require.Len(t, rows.rows, len(versions.All()))
	require.Equal(t, versions.None.String(), cell(t, rows.rows[0], "version"))
	require.Equal(t, versions.None.Label(), cell(t, rows.rows[0], "label"))
}

func TestHealth(t *testing.T) {
	srv, _ := newAnsweringServer(t, http.StatusOK, "")
	out, err := run(t, "health", "--service-url", srv.URL)
	require.NoError(t, err)
	require.Equal(t, "ok "+srv.URL+"\n", out)
}

func TestInvalidServiceURLRejected(t *testing.T) {
	_, err := run(t, "health", "--service-url", "not a url")
	require.Error(t, err)
}

func TestConfigPrintsFlagOverrides(t *testing.T) {
	out, err := run(t, "config", "--service-url", "http://localhost:8000", "--redis-addr", "redis:6379")
	require.NoError(t, err)
	require.Contains(t, out, "url: http://localhost:8000")
	require.Contains(t, out, "addr: redis:6379")
}

func TestExecuteClosesLogFileWhenCommandFails(t *testing.T) {
	srv, _ := newAnsweringServer(t, http.StatusOK, "")
	srv.Close()

	logFile := filepath.Join(t.TempDir(), "client.log")
	a, root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{
		"health",
		"--service-url", srv.URL,
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"--log-level", "debug",
		"--log-file", logFile,
	})

	require.Error(t, a.execute(root))
	require.Nil(t, a.logCloser)
	_, err := os.Stat(logFile)
	require.NoError(t, err)
}

func TestExecuteReportsUnansweredQuestion(t *testing.T) {
	a, root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"config", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	a.unanswered = true

	require.ErrorIs(t, a.execute(root), errNotAnswered)
}
