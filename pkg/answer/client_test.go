package answer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func TestAsk_EncodesRequestAndDecodesSources(t *testing.T) {
	var got map[string]any
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/disclosure-analysis", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NotEmpty(t, r.Header.Get("X-Request-ID"))
		b, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(b, &got))
		_, _ = w.Write([]byte(`{"answer":"Because investors asked.","sources":[
			{"doc":"Release No. 33-11275","version":"2024_final","section":"II.A"},
			{"doc":"Release No. 33-11042","version":"2022_proposed","section":"I"}]}`))
	})

	v := "2022_proposed"
	resp, err := c.Ask(context.Background(), Request{Query: "why?", Version: &v, Mode: ModeFast})
	require.NoError(t, err)
	require.Equal(t, "Because investors asked.", *resp.Answer)
	require.Len(t, resp.Sources, 2)
	require.Equal(t, "Release No. 33-11275", resp.Sources[0].Doc)
	require.Equal(t, "I", resp.Sources[1].Section)

	require.Equal(t, "why?", got["query"])
	require.Equal(t, "2022_proposed", got["version"])
	require.Equal(t, "fast", got["mode"])
}

func TestAsk_NoVersionIsSentAsNull(t *testing.T) {
	var raw map[string]json.RawMessage
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{"answer":"ok"}`))
	})

	resp, err := c.Ask(context.Background(), Request{Query: "q", Mode: ModeFast})
	require.NoError(t, err)
	require.Empty(t, resp.Sources)
	require.Contains(t, raw, "version")
	require.Equal(t, "null", string(raw["version"]))
}

func TestAsk_NonSuccessStatus(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := c.Ask(context.Background(), Request{Query: "q", Mode: ModeFast})
	require.Error(t, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusBadGateway, se.StatusCode)
	require.Equal(t, "boom", se.Body)
}

func TestAsk_MalformedPayloads(t *testing.T) {
	bodies := map[string]string{
		"not json":       `<html>oops</html>`,
		"missing answer": `{"sources":[]}`,
		"null answer":    `{"answer":null}`,
		"blank answer":   `{"answer":"   "}`,
		"numeric answer": `{"answer":42}`,
		"bad sources":    `{"answer":"x","sources":"nope"}`,
	}
	for name, body := range bodies {
		body := body
		t.Run(name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := c.Ask(context.Background(), Request{Query: "q", Mode: ModeFast})
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrMalformedResponse), err.Error())
		})
	}
}

func TestAsk_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Ask(context.Background(), Request{Query: "q", Mode: ModeFast})
	require.Error(t, err)
	var se *StatusError
	require.False(t, errors.As(err, &se))
}

func TestHealth(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	require.NoError(t, c.Health(context.Background()))

	bad := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"degraded"}`))
	})
	require.Error(t, bad.Health(context.Background()))
}

func TestNewClient_DefaultsAndTrimsBaseURL(t *testing.T) {
	require.Equal(t, DefaultBaseURL, NewClient("").BaseURL())
	require.Equal(t, "http://localhost:8000", NewClient("http://localhost:8000//").BaseURL())
}
