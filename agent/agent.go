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

// Package agent defines the contract between gantry and the callers it
// provisions build agents for.
package agent

// Spec describes one requested build agent. The name doubles as the Mesos
// task ID, so it must be unique among agents that are queued or live.
type Spec struct {
	// Name identifies the agent to the CI master and to Mesos.
	Name string

	// CPUs is the number of CPUs reserved for the agent task.
	CPUs float64

	// MemMB is the JVM heap requirement in megabytes. The task reserves
	// more than this to leave headroom for JVM overhead.
	MemMB float64

	// Attributes restricts placement to hosts whose offers advertise
	// every listed key with exactly the listed text value. Nil means the
	// configured default attributes apply; an empty map accepts any host.
	Attributes map[string]string
}

// Handle identifies a launched agent back to its requester.
type Handle struct {
	// HostID is the Mesos agent ID of the host the task was placed on.
	HostID string
}

// ResultHandler receives lifecycle notifications for one requested agent.
// Notifications are delivered outside scheduler locks, so implementations
// may call back into the scheduler.
type ResultHandler interface {
	// Running is called at most once, when the agent's task starts
	// running on a host.
	Running(h Handle)

	// Finished is called when the agent's task terminates successfully.
	Finished(h Handle)

	// Failed is called when the agent's task fails, is killed, or is
	// lost by the cluster.
	Failed(h Handle)
}
