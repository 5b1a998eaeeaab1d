package store

import (
	"context"
	"sync"
)

// Subscription is a live change subscription. It ends when Close is called,
// when its context ends, or when the feed fails. A failure is delivered on
// Err so the caller can resubscribe and catch up on what it missed.
type Subscription interface {
	Err() <-chan error
	Close()
}

type feedSubscription struct {
	errs   chan error
	cancel context.CancelFunc
	once   sync.Once
}

func newFeedSubscription(cancel context.CancelFunc) *feedSubscription {
	return &feedSubscription{errs: make(chan error, 1), cancel: cancel}
}

func (s *feedSubscription) Err() <-chan error {
	return s.errs
}

func (s *feedSubscription) Close() {
	s.once.Do(s.cancel)
}

// fail reports err and stops the subscription. Only the first failure is kept.
func (s *feedSubscription) fail(err error) {
	select {
	case s.errs <- err:
	default:
	}
	s.Close()
}
