package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"physiotrack-backend/internal/model"
	"physiotrack-backend/internal/store"
)

// Status is the connection state of the reconciliation listener.
type Status string

const (
	StatusOffline      Status = "OFFLINE"
	StatusConnecting   Status = "CONNECTING"
	StatusSubscribed   Status = "SUBSCRIBED"
	StatusChannelError Status = "CHANNEL_ERROR"
	StatusClosed       Status = "CLOSED"
)

// Listener keeps the synchronizer in step with the remote store: an initial
// fetch, then a change subscription, reconnecting with exponential backoff.
type Listener struct {
	sync     *Synchronizer
	remote   store.RemoteStore
	bedCount int
	logger   *zap.Logger

	minBackoff time.Duration
	maxBackoff time.Duration

	mu      sync.RWMutex
	status  Status
	lastErr error
}

// NewListener creates a listener. It is Offline until Run.
func NewListener(s *Synchronizer, remote store.RemoteStore, logger *zap.Logger) *Listener {
	if remote == nil {
		remote = store.Offline{}
	}
	return &Listener{
		sync:       s,
		remote:     remote,
		bedCount:   s.Count(),
		logger:     logger,
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
		status:     StatusOffline,
	}
}

// Status reports the current connection state and the last error seen.
func (l *Listener) Status() (Status, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.status, l.lastErr
}

func (l *Listener) setStatus(st Status, err error) {
	l.mu.Lock()
	l.status = st
	l.lastErr = err
	l.mu.Unlock()
}

// Run blocks until ctx is cancelled. A session that ends with an error,
// including a failed remote write, moves the listener to CHANNEL_ERROR and
// reconnects with backoff.
func (l *Listener) Run(ctx context.Context) {
	backoff := l.minBackoff

	for {
		subscribed, err := l.connect(ctx)
		if ctx.Err() != nil {
			l.setStatus(StatusClosed, nil)
			l.logger.Info("reconciliation listener closed")
			return
		}
		if errors.Is(err, store.ErrRemoteDisabled) {
			l.setStatus(StatusOffline, nil)
			l.logger.Info("no remote store configured, running offline")
			<-ctx.Done()
			l.setStatus(StatusClosed, nil)
			return
		}
		if subscribed {
			backoff = l.minBackoff
		}

		l.setStatus(StatusChannelError, err)
		l.logger.Error("remote sync failed",
			zap.Error(err),
			zap.Duration("backoff", backoff),
		)

		select {
		case <-ctx.Done():
			l.setStatus(StatusClosed, nil)
			return
		case <-time.After(backoff):
			backoff *= 2
			if backoff > l.maxBackoff {
				backoff = l.maxBackoff
			}
		}
	}
}

// connect runs one session: seed, subscribe, fetch and merge, then stay
// subscribed until ctx ends or the remote fails. Subscribing before the
// fetch means a change written in between arrives on the feed.
func (l *Listener) connect(ctx context.Context) (bool, error) {
	l.setStatus(StatusConnecting, nil)

	if err := l.remote.EnsureBeds(ctx, l.bedCount); err != nil {
		return false, err
	}

	sub, err := l.remote.Subscribe(ctx, func(row model.BedRow) {
		l.sync.ApplyRemote([]model.BedRow{row})
	})
	if err != nil {
		return false, err
	}
	defer sub.Close()

	rows, err := l.remote.FetchAll(ctx)
	if err != nil {
		return false, err
	}
	applied := l.sync.ApplyRemote(rows)
	l.logger.Info("remote state merged", zap.Int("rows", len(rows)), zap.Int("applied", applied))

	// Write failures from before this session belong to the outage that just ended.
	l.drainWriteErrors()

	l.setStatus(StatusSubscribed, nil)
	l.logger.Info("subscribed to remote bed changes")

	select {
	case <-ctx.Done():
		return true, nil
	case err := <-sub.Err():
		return true, fmt.Errorf("change feed: %w", err)
	case err := <-l.sync.WriteErrors():
		return true, fmt.Errorf("remote write: %w", err)
	}
}

func (l *Listener) drainWriteErrors() {
	for {
		select {
		case <-l.sync.WriteErrors():
		default:
			return
		}
	}
}
