package feed

import (
	"context"
	"sync"
)

// ScrollFraction normalises a scroll position to 0-100. A document that
// cannot scroll has its end in view, so it reports 100.
func ScrollFraction(scrollTop, scrollHeight, clientHeight float64) float64 {
	height := scrollHeight - clientHeight
	if height <= 0 {
		return 100
	}

	scrolled := scrollTop / height * 100
	if scrolled < 0 {
		return 0
	} else if scrolled > 100 {
		return 100
	}
	return scrolled
}

// ScrollSignal carries scroll fractions from the viewport to the pager.
// Only the latest value is kept; positions published faster than they are
// consumed are dropped.
type ScrollSignal struct {
	ch     chan float64
	latest float64

	closed bool
	lock   sync.Mutex
}

func NewScrollSignal() *ScrollSignal {
	return &ScrollSignal{
		ch: make(chan float64, 1),
	}
}

// Publish never blocks.
func (s *ScrollSignal) Publish(fraction float64) {
	if fraction < 0 {
		fraction = 0
	} else if fraction > 100 {
		fraction = 100
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return
	}
	s.latest = fraction

	// Replace whatever is still waiting to be read
	select {
	case <-s.ch:
	default:
	}
	s.ch <- fraction
}

func (s *ScrollSignal) Latest() float64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.latest
}

// Observe returns the live stream of fractions. The stream ends when ctx is
// cancelled or the signal is closed. A signal should only be observed once.
func (s *ScrollSignal) Observe(ctx context.Context) <-chan float64 {
	out := make(chan float64)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case fraction, ok := <-s.ch:
				if !ok {
					return
				}
				select {
				case out <- fraction:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (s *ScrollSignal) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
