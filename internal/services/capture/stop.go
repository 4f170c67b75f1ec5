package capture

import (
	"sync"
	"sync/atomic"
)

// StopSignal is the cancellation flag shared by one recording session and
// all of its camera sessions. It only ever goes from unset to set; a new
// session gets a new StopSignal.
type StopSignal struct {
	set  atomic.Bool
	once sync.Once
	done chan struct{}
}

// NewStopSignal returns an unset signal.
func NewStopSignal() *StopSignal {
	return &StopSignal{done: make(chan struct{})}
}

// Set raises the signal. Safe to call from any goroutine, any number of times.
func (s *StopSignal) Set() {
	s.once.Do(func() {
		s.set.Store(true)
		close(s.done)
	})
}

// IsSet reports whether the signal was raised.
func (s *StopSignal) IsSet() bool {
	return s.set.Load()
}

// Done is closed once the signal is raised.
func (s *StopSignal) Done() <-chan struct{} {
	return s.done
}
