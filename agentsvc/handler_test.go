package agentsvc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"

	"github.com/gantry-ci/gantry/agent"
	"github.com/gantry-ci/gantry/scheduler"
)

// fakeProvisioner records requests and hands the registered result
// handlers back to the test.
type fakeProvisioner struct {
	err      error
	requests []agent.Spec
	handlers map[string]agent.ResultHandler
	cancels  []string
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{handlers: make(map[string]agent.ResultHandler)}
}

func (f *fakeProvisioner) RequestAgent(spec agent.Spec, handler agent.ResultHandler) error {
	if f.err != nil {
		return f.err
	}
	f.requests = append(f.requests, spec)
	f.handlers[spec.Name] = handler
	return nil
}

func (f *fakeProvisioner) CancelAgent(name string) {
	f.cancels = append(f.cancels, name)
}

func newTestService() (*fakeProvisioner, *http.ServeMux) {
	provisioner := newFakeProvisioner()
	mux := http.NewServeMux()
	NewHandler(provisioner, tally.NoopScope).Register(mux)
	return provisioner, mux
}

func do(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decodeRecord(t *testing.T, w *httptest.ResponseRecorder) Record {
	var rec Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	return rec
}

func TestCreateAgent(t *testing.T) {
	provisioner, mux := newTestService()

	w := do(mux, http.MethodPost, "/v1/agents",
		`{"name":"builder-1","cpus":2,"mem_mb":1024,"attributes":{"rack":"us-east-1a"}}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	rec := decodeRecord(t, w)
	assert.Equal(t, "builder-1", rec.Name)
	assert.Equal(t, 2.0, rec.CPUs)
	assert.Equal(t, 1024.0, rec.MemMB)
	assert.Equal(t, StatePending, rec.State)
	assert.Equal(t, map[string]string{"rack": "us-east-1a"}, rec.Attributes)

	require.Len(t, provisioner.requests, 1)
	assert.Equal(t, "builder-1", provisioner.requests[0].Name)
	assert.Equal(t, 2.0, provisioner.requests[0].CPUs)
}

func TestCreateAgentDefaults(t *testing.T) {
	provisioner, mux := newTestService()

	w := do(mux, http.MethodPost, "/v1/agents", `{}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	rec := decodeRecord(t, w)
	assert.True(t, strings.HasPrefix(rec.Name, "agent-"))
	assert.True(t, len(rec.Name) > len("agent-"))
	assert.Equal(t, 0.1, rec.CPUs)
	assert.Equal(t, 512.0, rec.MemMB)

	require.Len(t, provisioner.requests, 1)
	assert.Equal(t, rec.Name, provisioner.requests[0].Name)
}

func TestCreateAgentBadBody(t *testing.T) {
	_, mux := newTestService()

	w := do(mux, http.MethodPost, "/v1/agents", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateAgentDuplicate(t *testing.T) {
	provisioner, mux := newTestService()
	provisioner.err = scheduler.ErrDuplicateAgent

	w := do(mux, http.MethodPost, "/v1/agents", `{"name":"builder-1"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	// The rejected record must not linger.
	w = do(mux, http.MethodGet, "/v1/agents/builder-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateAgentRejected(t *testing.T) {
	provisioner, mux := newTestService()
	provisioner.err = scheduler.ErrNegativeResources

	w := do(mux, http.MethodPost, "/v1/agents", `{"name":"builder-1","cpus":-1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAgentLifecycleStates(t *testing.T) {
	provisioner, mux := newTestService()

	do(mux, http.MethodPost, "/v1/agents", `{"name":"builder-1"}`)
	handler := provisioner.handlers["builder-1"]
	require.NotNil(t, handler)

	handler.Running(agent.Handle{HostID: "host-7"})
	rec := decodeRecord(t, do(mux, http.MethodGet, "/v1/agents/builder-1", ""))
	assert.Equal(t, StateRunning, rec.State)
	assert.Equal(t, "host-7", rec.HostID)

	handler.Finished(agent.Handle{HostID: "host-7"})
	rec = decodeRecord(t, do(mux, http.MethodGet, "/v1/agents/builder-1", ""))
	assert.Equal(t, StateFinished, rec.State)
}

func TestAgentFailureState(t *testing.T) {
	provisioner, mux := newTestService()

	do(mux, http.MethodPost, "/v1/agents", `{"name":"builder-1"}`)
	provisioner.handlers["builder-1"].Failed(agent.Handle{HostID: "host-7"})

	rec := decodeRecord(t, do(mux, http.MethodGet, "/v1/agents/builder-1", ""))
	assert.Equal(t, StateFailed, rec.State)
}

func TestCancelPendingAgent(t *testing.T) {
	provisioner, mux := newTestService()

	do(mux, http.MethodPost, "/v1/agents", `{"name":"builder-1"}`)
	w := do(mux, http.MethodDelete, "/v1/agents/builder-1", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"builder-1"}, provisioner.cancels)

	rec := decodeRecord(t, do(mux, http.MethodGet, "/v1/agents/builder-1", ""))
	assert.Equal(t, StateCancelled, rec.State)
}

func TestCancelledAgentKeepsStateAfterKill(t *testing.T) {
	provisioner, mux := newTestService()

	do(mux, http.MethodPost, "/v1/agents", `{"name":"builder-1"}`)
	handler := provisioner.handlers["builder-1"]
	handler.Running(agent.Handle{HostID: "host-7"})

	do(mux, http.MethodDelete, "/v1/agents/builder-1", "")

	// The kill resolves through a failure notification; the record keeps
	// the cancellation as its outcome.
	handler.Failed(agent.Handle{HostID: "host-7"})
	rec := decodeRecord(t, do(mux, http.MethodGet, "/v1/agents/builder-1", ""))
	assert.Equal(t, StateCancelled, rec.State)
}

func TestCancelResolvedAgentIsAcknowledged(t *testing.T) {
	provisioner, mux := newTestService()

	do(mux, http.MethodPost, "/v1/agents", `{"name":"builder-1"}`)
	provisioner.handlers["builder-1"].Finished(agent.Handle{})

	w := do(mux, http.MethodDelete, "/v1/agents/builder-1", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Empty(t, provisioner.cancels)

	rec := decodeRecord(t, do(mux, http.MethodGet, "/v1/agents/builder-1", ""))
	assert.Equal(t, StateFinished, rec.State)
}

func TestCancelUnknownAgent(t *testing.T) {
	_, mux := newTestService()

	w := do(mux, http.MethodDelete, "/v1/agents/ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetUnknownAgent(t *testing.T) {
	_, mux := newTestService()

	w := do(mux, http.MethodGet, "/v1/agents/ghost", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAgents(t *testing.T) {
	_, mux := newTestService()

	do(mux, http.MethodPost, "/v1/agents", `{"name":"zeta"}`)
	do(mux, http.MethodPost, "/v1/agents", `{"name":"alpha"}`)

	w := do(mux, http.MethodGet, "/v1/agents", "")
	require.Equal(t, http.StatusOK, w.Code)

	var records []Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "alpha", records[0].Name)
	assert.Equal(t, "zeta", records[1].Name)
}

func TestMethodNotAllowed(t *testing.T) {
	_, mux := newTestService()

	w := do(mux, http.MethodPut, "/v1/agents", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = do(mux, http.MethodPost, "/v1/agents/builder-1", `{}`)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
