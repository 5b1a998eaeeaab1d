package store

import (
	"context"
	"errors"

	"physiotrack-backend/internal/model"
)

var (
	// ErrNotFound is returned when a bed row does not exist remotely.
	ErrNotFound = errors.New("bed not found")
	// ErrRemoteDisabled is returned by the Offline remote store.
	ErrRemoteDisabled = errors.New("remote store is disabled")
)

// LocalStore persists the whole bed collection on this device.
type LocalStore interface {
	Load() ([]model.Bed, error)
	Save(beds []model.Bed) error
}

// RemoteStore is the shared, row-oriented store synchronised across clients.
type RemoteStore interface {
	FetchAll(ctx context.Context) ([]model.BedRow, error)
	// UpdateByID writes only the given columns of one row.
	UpdateByID(ctx context.Context, id int, columns map[string]any) error
	// EnsureBeds creates missing rows for beds 1..n.
	EnsureBeds(ctx context.Context, n int) error
	// Subscribe calls fn for every row changed by any client until the
	// subscription is closed, ctx ends, or the feed fails. Changes made
	// before Subscribe returns may be missed, so callers fetch after it.
	Subscribe(ctx context.Context, fn func(model.BedRow)) (Subscription, error)
}

// ChangeFeed carries row change notifications between clients.
type ChangeFeed interface {
	Publish(ctx context.Context, row model.BedRow) error
	Subscribe(ctx context.Context, fn func(model.BedRow)) (Subscription, error)
}

// Offline is the RemoteStore used when no remote store is configured.
type Offline struct{}

func (Offline) FetchAll(context.Context) ([]model.BedRow, error) { return nil, ErrRemoteDisabled }

func (Offline) UpdateByID(context.Context, int, map[string]any) error { return ErrRemoteDisabled }

func (Offline) EnsureBeds(context.Context, int) error { return ErrRemoteDisabled }

func (Offline) Subscribe(context.Context, func(model.BedRow)) (Subscription, error) {
	return nil, ErrRemoteDisabled
}
