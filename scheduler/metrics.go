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

package scheduler

import (
	"github.com/uber-go/tally"
)

// Metrics tracks various metrics at the scheduler level.
type Metrics struct {
	// metrics for driver events
	OfferEvents   tally.Counter
	RescindEvents tally.Counter
	UpdateEvents  tally.Counter

	// metrics for driver calls
	DeclineOffers     tally.Counter
	DeclineOffersFail tally.Counter
	LaunchTasks       tally.Counter
	LaunchTasksFail   tally.Counter
	KillTasks         tally.Counter
	KillTasksFail     tally.Counter

	// metrics for the external request surface
	AgentsRequested tally.Counter
	AgentsCancelled tally.Counter
	CancelNotFound  tally.Counter

	// metrics for task outcomes
	TasksRunning  tally.Counter
	TasksFinished tally.Counter
	TasksFailed   tally.Counter

	// protocol violations that abort the driver session
	UnknownTasks  tally.Counter
	InvalidStates tally.Counter

	PendingRequests tally.Gauge
	ActiveTasks     tally.Gauge
	Registered      tally.Gauge
}

// NewMetrics returns a new Metrics struct, with all metrics initialized
// and rooted at the given tally.Scope.
func NewMetrics(scope tally.Scope) *Metrics {
	eventScope := scope.SubScope("events")
	callScope := scope.SubScope("call")
	failScope := scope.SubScope("fail")
	requestScope := scope.SubScope("requests")
	taskScope := scope.SubScope("tasks")
	violationScope := scope.SubScope("violations")

	return &Metrics{
		OfferEvents:   eventScope.Counter("offer"),
		RescindEvents: eventScope.Counter("rescind"),
		UpdateEvents:  eventScope.Counter("update"),

		DeclineOffers:     callScope.Counter("decline"),
		DeclineOffersFail: failScope.Counter("decline"),
		LaunchTasks:       callScope.Counter("launch"),
		LaunchTasksFail:   failScope.Counter("launch"),
		KillTasks:         callScope.Counter("kill"),
		KillTasksFail:     failScope.Counter("kill"),

		AgentsRequested: requestScope.Counter("enqueued"),
		AgentsCancelled: requestScope.Counter("cancelled"),
		CancelNotFound:  requestScope.Counter("cancel_not_found"),

		TasksRunning:  taskScope.Counter("running"),
		TasksFinished: taskScope.Counter("finished"),
		TasksFailed:   taskScope.Counter("failed"),

		UnknownTasks:  violationScope.Counter("unknown_task"),
		InvalidStates: violationScope.Counter("invalid_state"),

		PendingRequests: requestScope.Gauge("pending"),
		ActiveTasks:     taskScope.Gauge("active"),
		Registered:      scope.Gauge("registered"),
	}
}
