package background

import (
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

var (
	errEmptyName     = errors.New("background work name cannot be empty")
	errDuplicateName = errors.New("duplicate background work name")
)

// Work is a piece of work that needs to happen periodically, such as
// refreshing queue gauges.
type Work struct {
	Name string
	// Func receives the running flag of its runner so that long work can
	// bail out early once the runner is asked to stop.
	Func         func(*atomic.Bool)
	Period       time.Duration
	InitialDelay time.Duration
}

// Manager allows multiple background Works to be registered and
// started/stopped together.
type Manager interface {
	// Start starts all registered background works.
	Start()
	// Stop stops all registered background works and waits for their
	// runners to exit.
	Stop()
	// RegisterWorks registers background works against the Manager.
	RegisterWorks(works ...Work) error
}

type manager struct {
	runners map[string]*runner
}

// NewManager creates a Manager with no registered work.
func NewManager() Manager {
	return &manager{
		runners: make(map[string]*runner),
	}
}

func (m *manager) RegisterWorks(works ...Work) error {
	for _, work := range works {
		if work.Name == "" {
			return errEmptyName
		}
		if _, ok := m.runners[work.Name]; ok {
			return errDuplicateName
		}

		m.runners[work.Name] = &runner{
			work:     work,
			stopChan: make(chan struct{}, 1),
		}
	}
	return nil
}

func (m *manager) Start() {
	for _, r := range m.runners {
		r.start()
	}
}

func (m *manager) Stop() {
	for _, r := range m.runners {
		r.stop()
	}
}

type runner struct {
	mu sync.Mutex

	work Work

	running  atomic.Bool
	stopChan chan struct{}
	doneChan chan struct{}
}

func (r *runner) start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running.Swap(true) {
		log.WithField("name", r.work.Name).
			Info("Background work already running, no-op")
		return
	}

	log.WithField("name", r.work.Name).
		WithField("period", r.work.Period).
		Info("Starting background work")

	done := make(chan struct{})
	r.doneChan = done

	go func() {
		defer close(done)
		defer r.running.Store(false)

		if r.work.InitialDelay > 0 {
			delay := time.NewTimer(r.work.InitialDelay)
			select {
			case <-r.stopChan:
				delay.Stop()
				log.WithField("name", r.work.Name).
					Info("Background work stopped before first run")
				return
			case <-delay.C:
			}
			r.work.Func(&r.running)
		}

		ticker := time.NewTicker(r.work.Period)
		defer ticker.Stop()
		for {
			select {
			case <-r.stopChan:
				log.WithField("name", r.work.Name).
					Info("Background work stopped")
				return
			case <-ticker.C:
				r.work.Func(&r.running)
			}
		}
	}()
}

func (r *runner) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running.Load() {
		log.WithField("name", r.work.Name).
			Warn("Background work not running, no-op")
		return
	}

	r.stopChan <- struct{}{}
	<-r.doneChan
}
