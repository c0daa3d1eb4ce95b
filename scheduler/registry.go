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
	"github.com/gantry-ci/gantry/agent"
)

// registryEntry tracks one launched task until a terminal status resolves
// it.
type registryEntry struct {
	handler agent.ResultHandler
	handle  agent.Handle

	// notifiedRunning suppresses repeat running notifications when the
	// master re-delivers a RUNNING update for a task already reported.
	notifiedRunning bool
}

// resultRegistry maps live task IDs to their entries. Entries are created
// by the launcher before a launch returns and removed when a terminal
// status arrives, so task IDs stay unique among live tasks. Not safe for
// concurrent use; the scheduler's mutex guards it.
type resultRegistry struct {
	entries map[string]*registryEntry
}

func newResultRegistry() *resultRegistry {
	return &resultRegistry{
		entries: make(map[string]*registryEntry),
	}
}

// register records a launched task under its task ID.
func (r *resultRegistry) register(taskID string, handler agent.ResultHandler, handle agent.Handle) {
	r.entries[taskID] = &registryEntry{
		handler: handler,
		handle:  handle,
	}
}

// lookup returns the entry for the task ID, if the task is live.
func (r *resultRegistry) lookup(taskID string) (*registryEntry, bool) {
	e, ok := r.entries[taskID]
	return e, ok
}

func (r *resultRegistry) contains(taskID string) bool {
	_, ok := r.entries[taskID]
	return ok
}

func (r *resultRegistry) remove(taskID string) {
	delete(r.entries, taskID)
}

func (r *resultRegistry) len() int {
	return len(r.entries)
}
