package broker

import "sync"

// boolSignal is a one-shot boolean signal with a single consumer: the
// first Fire wins, every later Fire is a no-op. C() is meant to be read
// from exactly one select statement (the supervisor's).
type boolSignal struct {
	once sync.Once
	ch   chan bool
}

func newBoolSignal() *boolSignal {
	return &boolSignal{ch: make(chan bool, 1)}
}

// Fire delivers v to C() exactly once per signal, no matter how many
// times Fire is called or from how many goroutines.
func (s *boolSignal) Fire(v bool) {
	s.once.Do(func() {
		s.ch <- v
		close(s.ch)
	})
}

// C returns a channel that is closed after delivering the fired value.
// Only the first receive gets that value; every later receive returns
// false immediately because the channel is closed.
func (s *boolSignal) C() <-chan bool {
	return s.ch
}
