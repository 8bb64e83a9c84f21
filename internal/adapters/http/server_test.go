package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/lattice"
	httpadapter "github.com/aretw0/lattice/internal/adapters/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, map[string]lattice.State) {
	t.Helper()

	vocab := lattice.States("idle", "working", "done")
	idle, working, done := vocab["idle"], vocab["working"], vocab["done"]

	m := lattice.New(lattice.WithInitialState(idle))
	require.NoError(t, m.AddTransition(idle, lattice.Rule{
		Fn: func(ctx context.Context, input ...any) (lattice.Outcome, error) {
			return lattice.Goto(working, input...), nil
		},
	}))
	require.NoError(t, m.AddTransition(working, lattice.Rule{Next: done}))

	journal := lattice.LogTransitions(m, nil)
	server := httpadapter.NewServer(map[string]*httpadapter.Hosted{
		"worker": {Machine: m, Journal: journal, Finals: []lattice.State{done}},
	})

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts, vocab
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func postJSON(t *testing.T, url, body string, v any) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func TestServer_ListAndInspect(t *testing.T) {
	ts, _ := newTestServer(t)

	var list map[string][]string
	status := getJSON(t, ts.URL+"/v1/machines", &list)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"worker"}, list["machines"])

	var inspect map[string]any
	status = getJSON(t, ts.URL+"/v1/machines/worker", &inspect)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "idle", inspect["state"])
	assert.Equal(t, false, inspect["in_transition"])

	var missing map[string]any
	status = getJSON(t, ts.URL+"/v1/machines/ghost", &missing)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_Advance(t *testing.T) {
	ts, _ := newTestServer(t)

	var resp map[string]any
	status := postJSON(t, ts.URL+"/v1/machines/worker/advance", `{"input": ["job-1"]}`, &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "working", resp["state"])
	assert.Equal(t, []any{"job-1"}, resp["output"])

	// Journal picked up the committed transition.
	var journal map[string][]map[string]any
	status = getJSON(t, ts.URL+"/v1/machines/worker/journal", &journal)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, journal["records"], 1)
	assert.Equal(t, "idle", journal["records"][0]["from"])
	assert.Equal(t, "working", journal["records"][0]["to"])
}

func TestServer_RunToFinal(t *testing.T) {
	ts, _ := newTestServer(t)

	var resp map[string]any
	status := postJSON(t, ts.URL+"/v1/machines/worker/run", `{"input": ["job-2"]}`, &resp)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "done", resp["state"])
}

func TestServer_DeadEndIsUnprocessable(t *testing.T) {
	ts, _ := newTestServer(t)

	// Drive to done (no rules out of it), then one more advance.
	var resp map[string]any
	postJSON(t, ts.URL+"/v1/machines/worker/run", ``, &resp)

	var errResp map[string]any
	status := postJSON(t, ts.URL+"/v1/machines/worker/advance", ``, &errResp)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, errResp["error"], "no valid transition")
}

func TestServer_BadBody(t *testing.T) {
	ts, _ := newTestServer(t)

	var resp map[string]any
	status := postJSON(t, ts.URL+"/v1/machines/worker/advance", `{"input":`, &resp)
	assert.Equal(t, http.StatusBadRequest, status)
}
