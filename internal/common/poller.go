package common

import (
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
)

// Poller invokes an action at a fixed interval until stopped. Each tick
// fires independently; the poller does not wait for a slow action before
// scheduling the next tick, so consumers must guard re-entrancy with their
// own busy/paused flags. Action panics are recovered and logged so a bad
// tick never terminates the schedule.
type Poller struct {
	action   func()
	logger   arbor.ILogger
	mu       sync.Mutex
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
	running  bool
}

// NewPoller creates a poller for the given action. Start must be called to
// begin ticking.
func NewPoller(interval time.Duration, action func(), logger arbor.ILogger) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{
		action:   action,
		interval: interval,
		logger:   logger,
	}
}

// Start begins invoking the action every interval. Calling Start on a
// running poller is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})

	go p.loop(p.stop, p.done, p.interval)
}

// Stop halts the schedule and waits for the loop goroutine to exit. Safe to
// call from any teardown path; repeated calls are no-ops.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stop, done := p.stop, p.done
	p.mu.Unlock()

	close(stop)
	<-done
}

// SetInterval changes the tick interval. The change applies to the next
// scheduled tick, not retroactively to the one in flight.
func (p *Poller) SetInterval(interval time.Duration) {
	if interval <= 0 {
		return
	}
	p.mu.Lock()
	p.interval = interval
	p.mu.Unlock()
}

// IsRunning reports whether the poller is currently scheduled.
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) loop(stop <-chan struct{}, done chan<- struct{}, interval time.Duration) {
	defer close(done)

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			p.tick()

			p.mu.Lock()
			next := p.interval
			p.mu.Unlock()
			timer.Reset(next)
		}
	}
}

func (p *Poller) tick() {
	defer func() {
		if r := recover(); r != nil {
			if p.logger != nil {
				p.logger.Error().
					Str("panic", fmt.Sprintf("%v", r)).
					Msg("PANIC RECOVERED in poller action")
			}
		}
	}()

	p.action()
}
