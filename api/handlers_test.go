package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"book-digest/pipeline"
	"book-digest/utils"
)

type starter struct {
	mu   sync.Mutex
	runs []pipeline.RunConfig
}

func (s *starter) start(rc pipeline.RunConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, rc)
}

func newTestServer(t *testing.T) (*httptest.Server, *starter) {
	t.Helper()
	st := &starter{}
	srv := NewServer(
		func() []string { return []string{"Baazh Book", "Tor Books"} },
		st.start,
		pipeline.RunConfig{PerPublisherCap: 3, Concurrent: true},
		utils.NewLoggerTo(io.Discard, "error"),
	)
	ts := httptest.NewServer(srv.Router(nil))
	t.Cleanup(ts.Close)
	return ts, st
}

func post(t *testing.T, ts *httptest.Server, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/subscribe", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestPublishers(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/publishers")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Publishers []string `json:"publishers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, []string{"Baazh Book", "Tor Books"}, out.Publishers)
}

func TestSubscribeStartsRun(t *testing.T) {
	ts, st := newTestServer(t)
	resp, out := post(t, ts, `{"email":"Reader <reader@example.com>","publishers":["Tor Books"," ","Nope"]}`)

	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Equal(t, "Subscription accepted. Scraping started.", out["message"])

	require.Len(t, st.runs, 1)
	require.Equal(t, pipeline.RunConfig{
		Publishers:      []string{"Tor Books", "Nope"},
		Recipient:       "reader@example.com",
		PerPublisherCap: 3,
		Concurrent:      true,
	}, st.runs[0])
}

func TestSubscribeValidation(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"publishers":["Tor Books"]}`, "email required"},
		{`{"email":"not an address","publishers":["Tor Books"]}`, "invalid email"},
		{`{"email":"reader@example.com"}`, "please select at least one publisher"},
		{`{"email":"reader@example.com","publishers":["  "]}`, "please select at least one publisher"},
		{`{"email":`, "invalid JSON body"},
	}
	for _, tt := range tests {
		ts, st := newTestServer(t)
		resp, out := post(t, ts, tt.body)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, tt.body)
		require.Equal(t, tt.want, out["error"])
		require.Empty(t, st.runs)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t)
	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/subscribe", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://form.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
