// Copyright (c) 2019 The Gantry Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package agentsvc exposes agent provisioning over HTTP for CI masters
// that drive gantry remotely.
package agentsvc

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pborman/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally"

	"github.com/gantry-ci/gantry/agent"
	"github.com/gantry-ci/gantry/scheduler"
)

const _basePath = "/v1/agents"

// Agent lifecycle states as reported by the API. Cancellation wins over
// the failure its kill produces.
const (
	StatePending   = "PENDING"
	StateRunning   = "RUNNING"
	StateFinished  = "FINISHED"
	StateFailed    = "FAILED"
	StateCancelled = "CANCELLED"
)

const (
	_defaultCPUs  = 0.1
	_defaultMemMB = 512

	_generatedNamePrefix = "agent-"
)

// Provisioner is the slice of the scheduler the service drives.
// *scheduler.Scheduler satisfies it.
type Provisioner interface {
	RequestAgent(spec agent.Spec, handler agent.ResultHandler) error
	CancelAgent(name string)
}

// Record is the service's view of one requested agent.
type Record struct {
	Name       string            `json:"name"`
	CPUs       float64           `json:"cpus"`
	MemMB      float64           `json:"mem_mb"`
	Attributes map[string]string `json:"attributes,omitempty"`
	State      string            `json:"state"`
	HostID     string            `json:"host_id,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

type createRequest struct {
	Name       string            `json:"name"`
	CPUs       float64           `json:"cpus"`
	MemMB      float64           `json:"mem_mb"`
	Attributes map[string]string `json:"attributes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves the agent provisioning API and tracks the state of every
// agent requested through it. State is in-memory only; terminal records
// stay visible until the process exits or the name is reused.
type Handler struct {
	provisioner Provisioner
	metrics     *Metrics

	mu     sync.Mutex
	agents map[string]*Record
}

// NewHandler creates the provisioning API handler backed by the given
// provisioner.
func NewHandler(provisioner Provisioner, parent tally.Scope) *Handler {
	return &Handler{
		provisioner: provisioner,
		metrics:     NewMetrics(parent.SubScope("agentsvc")),
		agents:      make(map[string]*Record),
	}
}

// Register installs the service routes on the given mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc(_basePath, h.handleCollection)
	mux.HandleFunc(_basePath+"/", h.handleItem)
}

func (h *Handler) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleItem(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, _basePath+"/")
	if name == "" || strings.Contains(name, "/") {
		writeError(w, http.StatusNotFound, "no such agent")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, name)
	case http.MethodDelete:
		h.cancel(w, name)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.CreateFail.Inc(1)
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	if req.Name == "" {
		req.Name = _generatedNamePrefix + uuid.New()
	}
	if req.CPUs == 0 {
		req.CPUs = _defaultCPUs
	}
	if req.MemMB == 0 {
		req.MemMB = _defaultMemMB
	}

	now := time.Now()
	rec := &Record{
		Name:       req.Name,
		CPUs:       req.CPUs,
		MemMB:      req.MemMB,
		Attributes: req.Attributes,
		State:      StatePending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// Insert before requesting so notifications arriving right after the
	// request always find the record. Rolled back if the request is
	// rejected.
	h.mu.Lock()
	h.agents[req.Name] = rec
	h.mu.Unlock()

	err := h.provisioner.RequestAgent(agent.Spec{
		Name:       req.Name,
		CPUs:       req.CPUs,
		MemMB:      req.MemMB,
		Attributes: req.Attributes,
	}, &stateTracker{svc: h, name: req.Name})
	if err != nil {
		h.mu.Lock()
		delete(h.agents, req.Name)
		h.mu.Unlock()
		h.metrics.CreateFail.Inc(1)

		status := http.StatusBadRequest
		if err == scheduler.ErrDuplicateAgent {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}

	h.metrics.Create.Inc(1)
	log.WithField("name", req.Name).Info("Agent requested through API")
	writeJSON(w, http.StatusAccepted, rec.snapshot())
}

func (h *Handler) list(w http.ResponseWriter) {
	h.mu.Lock()
	records := make([]Record, 0, len(h.agents))
	for _, rec := range h.agents {
		records = append(records, rec.snapshot())
	}
	h.mu.Unlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) get(w http.ResponseWriter, name string) {
	h.mu.Lock()
	rec, ok := h.agents[name]
	var out Record
	if ok {
		out = rec.snapshot()
	}
	h.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "no such agent")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) cancel(w http.ResponseWriter, name string) {
	h.mu.Lock()
	rec, ok := h.agents[name]
	cancellable := ok && (rec.State == StatePending || rec.State == StateRunning)
	if cancellable {
		rec.State = StateCancelled
		rec.UpdatedAt = time.Now()
	}
	h.mu.Unlock()

	if !ok {
		h.metrics.CancelNotFound.Inc(1)
		writeError(w, http.StatusNotFound, "no such agent")
		return
	}

	// Cancelling an already resolved agent acknowledges without touching
	// the scheduler.
	if cancellable {
		h.provisioner.CancelAgent(name)
		h.metrics.Cancel.Inc(1)
		log.WithField("name", name).Info("Agent cancelled through API")
	}
	w.WriteHeader(http.StatusAccepted)
}

// transition moves an agent's record to the given state. A failure
// reported for a cancelled agent is the kill finishing, so the cancelled
// state is kept.
func (h *Handler) transition(name, state, hostID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec, ok := h.agents[name]
	if !ok {
		return
	}
	if rec.State == StateCancelled && state == StateFailed {
		state = StateCancelled
	}
	rec.State = state
	if hostID != "" {
		rec.HostID = hostID
	}
	rec.UpdatedAt = time.Now()
}

func (r *Record) snapshot() Record {
	return *r
}

// stateTracker is the result handler the service registers for each
// requested agent; it folds scheduler notifications into the record.
type stateTracker struct {
	svc  *Handler
	name string
}

func (t *stateTracker) Running(handle agent.Handle) {
	t.svc.transition(t.name, StateRunning, handle.HostID)
}

func (t *stateTracker) Finished(handle agent.Handle) {
	t.svc.transition(t.name, StateFinished, handle.HostID)
}

func (t *stateTracker) Failed(handle agent.Handle) {
	t.svc.transition(t.name, StateFailed, handle.HostID)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("Failed to encode API response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
