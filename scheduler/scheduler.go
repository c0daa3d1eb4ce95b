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

// Package scheduler matches queued build-agent requests against Mesos
// resource offers, launches one task per matched request, and resolves the
// status updates of launched tasks into caller notifications.
package scheduler

import (
	"errors"
	"sync"

	"github.com/gogo/protobuf/proto"
	mesos "github.com/mesos/mesos-go/api/v0/mesosproto"
	"github.com/mesos/mesos-go/api/v0/mesosutil"
	sched "github.com/mesos/mesos-go/api/v0/scheduler"
	pkgerrors "github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally"

	"github.com/gantry-ci/gantry/agent"
	"github.com/gantry-ci/gantry/common/lifecycle"
)

// Request validation errors. ErrDuplicateAgent is returned while an agent
// under the same name is queued or live, which callers may retry after the
// earlier agent resolves.
var (
	ErrEmptyAgentName    = errors.New("agent name cannot be empty")
	ErrNegativeResources = errors.New("agent resources cannot be negative")
	ErrDuplicateAgent    = errors.New("agent name already queued or running")
)

// Scheduler is the offer-matching and task-lifecycle core. It implements
// sched.Scheduler for the driver's callbacks and exposes the request
// surface callers provision agents through.
//
// One mutex guards the request queue, the result registry, and the driver
// handle. Driver calls may happen while it is held; result handler
// notifications never do.
type Scheduler struct {
	cfg     *Config
	metrics *Metrics
	builder *taskBuilder
	factory DriverFactory

	lc lifecycle.LifeCycle

	mu       sync.Mutex
	queue    *requestQueue
	registry *resultRegistry
	driver   Driver
}

var _ sched.Scheduler = (*Scheduler)(nil)

// New creates a Scheduler from the given configuration. The factory is
// invoked on Start to build the driver session.
func New(cfg *Config, parent tally.Scope, factory DriverFactory) *Scheduler {
	cfg.normalize()
	return &Scheduler{
		cfg:      cfg,
		metrics:  NewMetrics(parent.SubScope("scheduler")),
		builder:  newTaskBuilder(cfg),
		factory:  factory,
		lc:       lifecycle.NewLifeCycle(),
		queue:    newRequestQueue(),
		registry: newResultRegistry(),
	}
}

// Start builds the driver and runs its session on a dedicated goroutine.
// Starting an already running scheduler is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.driver != nil {
		log.Info("Scheduler already running")
		return nil
	}

	driver, err := s.factory(s)
	if err != nil {
		return pkgerrors.Wrap(err, "create mesos scheduler driver")
	}

	s.driver = driver
	s.lc.Start()
	go s.runSession(driver)
	return nil
}

// runSession blocks in driver.Run until the session ends, then clears the
// session state so the scheduler can be started again.
func (s *Scheduler) runSession(driver Driver) {
	defer s.lc.StopComplete()

	log.Info("Mesos driver session starting")
	status, err := driver.Run()
	if err != nil {
		log.WithError(err).
			WithField("status", status.String()).
			Error("Mesos driver session ended with error")
	} else {
		log.WithField("status", status.String()).
			Info("Mesos driver session ended")
	}

	s.mu.Lock()
	s.driver = nil
	s.mu.Unlock()
	s.metrics.Registered.Update(0)

	// Flip the lifecycle in case the session ended on its own, such as
	// after a driver abort.
	s.lc.Stop()
}

// Stop shuts the driver session down and waits for it to exit. Safe to call
// at any time, including before Start and more than once.
func (s *Scheduler) Stop() {
	if !s.lc.Stop() {
		log.Info("Scheduler already stopped")
		return
	}

	s.mu.Lock()
	driver := s.driver
	s.mu.Unlock()

	if driver != nil {
		if _, err := driver.Stop(false); err != nil {
			log.WithError(err).Error("Error stopping mesos driver")
		}
	}
	s.lc.Wait()
}

// IsRunning reports whether a driver session is currently up.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver != nil
}

// RequestAgent queues a request for one build agent. The handler receives
// lifecycle notifications once the request is matched and launched. A nil
// attribute set on the spec falls back to the configured default
// attributes.
func (s *Scheduler) RequestAgent(spec agent.Spec, handler agent.ResultHandler) error {
	if spec.Name == "" {
		return ErrEmptyAgentName
	}
	if spec.CPUs < 0 || spec.MemMB < 0 {
		return ErrNegativeResources
	}
	if spec.Attributes == nil {
		spec.Attributes = s.cfg.DefaultAgentAttributes
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queue.contains(spec.Name) || s.registry.contains(spec.Name) {
		return ErrDuplicateAgent
	}

	log.WithFields(log.Fields{
		"name": spec.Name,
		"cpus": spec.CPUs,
		"mem":  spec.MemMB,
	}).Info("Queueing agent request")

	s.queue.push(&pendingEntry{spec: spec, handler: handler})
	s.metrics.AgentsRequested.Inc(1)
	s.metrics.PendingRequests.Update(float64(s.queue.len()))
	return nil
}

// CancelAgent stops a previously requested agent. A launched agent's task
// is killed and its handler still receives the terminal notification the
// kill produces; a queued request is silently dropped; an unknown name is a
// no-op.
func (s *Scheduler) CancelAgent(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.registry.contains(name) {
		log.WithField("task_id", name).Info("Killing launched agent task")
		s.killTask(name)
		return
	}

	if entry := s.queue.remove(name); entry != nil {
		log.WithField("name", name).Info("Removing queued agent request")
		s.metrics.AgentsCancelled.Inc(1)
		s.metrics.PendingRequests.Update(float64(s.queue.len()))
		return
	}

	log.WithField("name", name).Warn("Asked to cancel unknown agent")
	s.metrics.CancelNotFound.Inc(1)
}

// killTask submits a kill for a live task. Caller must hold s.mu.
func (s *Scheduler) killTask(taskID string) {
	if s.driver == nil {
		log.WithField("task_id", taskID).
			Warn("No driver session to kill task with")
		s.metrics.KillTasksFail.Inc(1)
		return
	}
	if _, err := s.driver.KillTask(mesosutil.NewTaskID(taskID)); err != nil {
		log.WithError(err).
			WithField("task_id", taskID).
			Error("Failed to kill agent task")
		s.metrics.KillTasksFail.Inc(1)
		return
	}
	s.metrics.KillTasks.Inc(1)
}

// Stats returns the pending request count and the live task count.
func (s *Scheduler) Stats() (pending, active int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.len(), s.registry.len()
}

// RefreshGauges republishes the queue and registry gauges; wired as
// periodic background work so the gauges stay fresh between events.
func (s *Scheduler) RefreshGauges() {
	pending, active := s.Stats()
	s.metrics.PendingRequests.Update(float64(pending))
	s.metrics.ActiveTasks.Update(float64(active))
}

// Registered is called when the framework registers with a master.
func (s *Scheduler) Registered(_ sched.SchedulerDriver, frameworkID *mesos.FrameworkID, masterInfo *mesos.MasterInfo) {
	log.WithFields(log.Fields{
		"framework_id": frameworkID.GetValue(),
		"master":       masterInfo.GetHostname(),
	}).Info("Framework registered with mesos master")
	s.metrics.Registered.Update(1)
}

// Reregistered is called when the framework re-registers with a new master.
func (s *Scheduler) Reregistered(_ sched.SchedulerDriver, masterInfo *mesos.MasterInfo) {
	log.WithField("master", masterInfo.GetHostname()).
		Info("Framework re-registered with mesos master")
	s.metrics.Registered.Update(1)
}

// Disconnected is called when the driver loses its master connection.
func (s *Scheduler) Disconnected(_ sched.SchedulerDriver) {
	log.Warn("Framework disconnected from mesos master")
	s.metrics.Registered.Update(0)
}

// ResourceOffers runs one scheduling round: each offer is given to the
// first queued request it can host, remaining offers are declined.
func (s *Scheduler) ResourceOffers(_ sched.SchedulerDriver, offers []*mesos.Offer) {
	log.WithField("count", len(offers)).Debug("Received resource offers")
	s.metrics.OfferEvents.Inc(int64(len(offers)))

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.driver == nil {
		// Session already torn down; the master will reoffer.
		return
	}

	for _, offer := range offers {
		if !s.matchOffer(offer) {
			s.declineOffer(offer)
		}
	}
	s.metrics.PendingRequests.Update(float64(s.queue.len()))
	s.metrics.ActiveTasks.Update(float64(s.registry.len()))
}

// matchOffer scans the queue in order and launches the first request the
// offer can host, reporting whether the offer was consumed. Caller must
// hold s.mu.
func (s *Scheduler) matchOffer(offer *mesos.Offer) bool {
	for i, entry := range s.queue.entries {
		if !matches(offer, entry.spec) {
			continue
		}

		task, err := s.builder.build(offer, entry.spec)
		if err != nil {
			// Configuration problem; no request can launch until it
			// is fixed, so leave the queue alone and give the offer
			// back.
			log.WithError(err).
				WithField("name", entry.spec.Name).
				Error("Cannot build task for matched agent request")
			return false
		}

		if err := s.launch(offer, task, entry); err != nil {
			// The offer was spent on the failed submission. The
			// request stays queued for a later offer.
			return true
		}

		s.queue.removeAt(i)
		return true
	}
	return false
}

// launch registers the result entry and submits the task against its
// offer. The entry is registered before submission so a status update
// arriving immediately still finds it. Caller must hold s.mu.
func (s *Scheduler) launch(offer *mesos.Offer, task *mesos.TaskInfo, entry *pendingEntry) error {
	taskID := task.GetTaskId().GetValue()
	log.WithFields(log.Fields{
		"task_id": taskID,
		"host":    offer.GetHostname(),
	}).Info("Launching agent task")

	s.registry.register(taskID, entry.handler, agent.Handle{
		HostID: offer.GetSlaveId().GetValue(),
	})

	filters := &mesos.Filters{
		RefuseSeconds: proto.Float64(s.cfg.RefusalSeconds),
	}
	_, err := s.driver.LaunchTasks(
		[]*mesos.OfferID{offer.GetId()},
		[]*mesos.TaskInfo{task},
		filters)
	if err != nil {
		log.WithError(err).
			WithField("task_id", taskID).
			Error("Failed to launch agent task")
		s.metrics.LaunchTasksFail.Inc(1)
		s.registry.remove(taskID)
		return err
	}

	s.metrics.LaunchTasks.Inc(1)
	return nil
}

// declineOffer gives an unmatched offer back to the master. Caller must
// hold s.mu.
func (s *Scheduler) declineOffer(offer *mesos.Offer) {
	log.WithField("offer_id", offer.GetId().GetValue()).
		Debug("Declining unmatched offer")

	if s.driver == nil {
		return
	}
	if _, err := s.driver.DeclineOffer(offer.GetId(), nil); err != nil {
		log.WithError(err).
			WithField("offer_id", offer.GetId().GetValue()).
			Error("Failed to decline offer")
		s.metrics.DeclineOffersFail.Inc(1)
		return
	}
	s.metrics.DeclineOffers.Inc(1)
}

// OfferRescinded is called when the master withdraws an offer before it was
// used. Offers are consumed synchronously inside the offer callback, so
// there is nothing to roll back.
func (s *Scheduler) OfferRescinded(_ sched.SchedulerDriver, offerID *mesos.OfferID) {
	log.WithField("offer_id", offerID.GetValue()).Info("Offer rescinded")
	s.metrics.RescindEvents.Inc(1)
}

// StatusUpdate resolves a task status event against the result registry:
// transitional states are ignored, running is reported once, and terminal
// states resolve and remove the entry. A status for an unknown task or an
// unrecognized state is a protocol violation that aborts the session.
func (s *Scheduler) StatusUpdate(_ sched.SchedulerDriver, status *mesos.TaskStatus) {
	taskID := status.GetTaskId().GetValue()
	state := status.GetState()

	log.WithFields(log.Fields{
		"task_id": taskID,
		"state":   state.String(),
	}).Info("Task status update")
	s.metrics.UpdateEvents.Inc(1)

	var notify func(agent.Handle)
	var handle agent.Handle

	s.mu.Lock()

	entry, ok := s.registry.lookup(taskID)
	if !ok {
		s.mu.Unlock()
		s.metrics.UnknownTasks.Inc(1)
		s.fatal(log.Fields{"task_id": taskID},
			"Status update for unknown task")
		return
	}

	switch state {
	case mesos.TaskState_TASK_STAGING, mesos.TaskState_TASK_STARTING:
		// transitional, nothing to report yet

	case mesos.TaskState_TASK_RUNNING:
		if !entry.notifiedRunning {
			entry.notifiedRunning = true
			notify = entry.handler.Running
			s.metrics.TasksRunning.Inc(1)
		}

	case mesos.TaskState_TASK_FINISHED:
		s.registry.remove(taskID)
		notify = entry.handler.Finished
		s.metrics.TasksFinished.Inc(1)

	case mesos.TaskState_TASK_FAILED,
		mesos.TaskState_TASK_KILLED,
		mesos.TaskState_TASK_LOST:
		s.registry.remove(taskID)
		notify = entry.handler.Failed
		s.metrics.TasksFailed.Inc(1)

	default:
		s.mu.Unlock()
		s.metrics.InvalidStates.Inc(1)
		s.fatal(log.Fields{"task_id": taskID, "state": state.String()},
			"Unrecognized task state")
		return
	}

	handle = entry.handle
	s.metrics.ActiveTasks.Update(float64(s.registry.len()))
	s.mu.Unlock()

	// Notify outside the lock; handlers are allowed to call back in.
	if notify != nil {
		notify(handle)
	}
}

// fatal reports a protocol violation the scheduler cannot reason about and
// aborts the driver session rather than continue on corrupted state.
func (s *Scheduler) fatal(fields log.Fields, msg string) {
	log.WithFields(fields).Error(msg)

	s.mu.Lock()
	driver := s.driver
	s.mu.Unlock()

	if driver != nil {
		if _, err := driver.Abort(); err != nil {
			log.WithError(err).Error("Failed to abort mesos driver")
		}
	}
}

// FrameworkMessage is called for executor messages; agent executors do not
// send any.
func (s *Scheduler) FrameworkMessage(_ sched.SchedulerDriver, executorID *mesos.ExecutorID, slaveID *mesos.SlaveID, data string) {
	log.WithFields(log.Fields{
		"executor_id": executorID.GetValue(),
		"slave_id":    slaveID.GetValue(),
	}).Info("Received framework message")
}

// SlaveLost is called when a host drops out of the cluster. Tasks on it
// are resolved through their own TASK_LOST updates.
func (s *Scheduler) SlaveLost(_ sched.SchedulerDriver, slaveID *mesos.SlaveID) {
	log.WithField("slave_id", slaveID.GetValue()).Warn("Slave lost")
}

// ExecutorLost is called when a custom executor terminates.
func (s *Scheduler) ExecutorLost(_ sched.SchedulerDriver, executorID *mesos.ExecutorID, slaveID *mesos.SlaveID, status int) {
	log.WithFields(log.Fields{
		"executor_id": executorID.GetValue(),
		"slave_id":    slaveID.GetValue(),
		"status":      status,
	}).Warn("Executor lost")
}

// Error is called on unrecoverable driver errors; the driver aborts itself
// after delivering it.
func (s *Scheduler) Error(_ sched.SchedulerDriver, message string) {
	log.WithField("message", message).Error("Mesos driver error")
}
