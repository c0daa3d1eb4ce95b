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

package lifecycle

import (
	"sync"
)

// LifeCycle coordinates start and stop of a component that runs work on its
// own goroutine, such as a scheduler driver session:
//	lc := NewLifeCycle()
//	lc.Start()
//	go func() {
//		defer lc.StopComplete()
//		<-lc.StopCh()
//		// shut down
//	}()
//	lc.Stop() // broadcast stop
//	lc.Wait() // block until the goroutine acknowledged
type LifeCycle interface {
	// Start marks the component started. It is idempotent and returns
	// false when the component is already running.
	Start() bool

	// Stop broadcasts stop on the channel returned by StopCh and marks
	// the component stopped. It is idempotent and returns false when the
	// component is not running.
	Stop() bool

	// StopCh returns the channel closed by Stop. When called after Stop
	// it returns an already-closed channel so that late listeners do not
	// block forever.
	StopCh() <-chan struct{}

	// StopComplete acknowledges that shutdown finished. Safe to call more
	// than once per cycle; it unblocks Wait.
	StopComplete()

	// Wait blocks until StopComplete is called.
	Wait()
}

// NewLifeCycle creates an instance in the stopped state.
func NewLifeCycle() LifeCycle {
	return &lifeCycle{
		completeCh: make(chan struct{}, 1),
	}
}

type lifeCycle struct {
	mu sync.RWMutex

	// stopCh is non-nil exactly while the component is running.
	stopCh     chan struct{}
	completeCh chan struct{}
}

func (l *lifeCycle) Start() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopCh != nil {
		return false
	}

	// Drop a leftover acknowledgement from a previous cycle where nobody
	// called Wait, so the next Wait blocks until this cycle completes.
	select {
	case <-l.completeCh:
	default:
	}

	l.stopCh = make(chan struct{})
	return true
}

func (l *lifeCycle) Stop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopCh == nil {
		return false
	}

	close(l.stopCh)
	l.stopCh = nil
	return true
}

func (l *lifeCycle) StopCh() <-chan struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.stopCh == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return l.stopCh
}

func (l *lifeCycle) StopComplete() {
	select {
	case l.completeCh <- struct{}{}:
	default:
		// already acknowledged this cycle
	}
}

func (l *lifeCycle) Wait() {
	<-l.completeCh
}
