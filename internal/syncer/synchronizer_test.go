package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"physiotrack-backend/internal/model"
	"physiotrack-backend/internal/store"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type memLocal struct {
	mu    sync.Mutex
	beds  []model.Bed
	saves int
	err   error
}

func (m *memLocal) Load() ([]model.Bed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.beds, m.err
}

func (m *memLocal) Save(beds []model.Bed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.beds = beds
	m.saves++
	return nil
}

func (m *memLocal) saved() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type update struct {
	id      int
	columns map[string]any
}

type fakeSub struct {
	errs   chan error
	closed chan struct{}
	once   sync.Once
}

func (s *fakeSub) Err() <-chan error { return s.errs }

func (s *fakeSub) Close() { s.once.Do(func() { close(s.closed) }) }

type fakeRemote struct {
	mu         sync.Mutex
	rows       []model.BedRow
	fetchErrs  []error
	updateErr  error
	ensured    int
	calls      []string
	subscriber func(model.BedRow)
	sub        *fakeSub
	updates    chan update
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{updates: make(chan update, 16)}
}

func (f *fakeRemote) FetchAll(context.Context) ([]model.BedRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "fetch")
	if len(f.fetchErrs) > 0 {
		err := f.fetchErrs[0]
		f.fetchErrs = f.fetchErrs[1:]
		return nil, err
	}
	return f.rows, nil
}

func (f *fakeRemote) UpdateByID(_ context.Context, id int, columns map[string]any) error {
	f.updates <- update{id: id, columns: columns}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updateErr
}

func (f *fakeRemote) EnsureBeds(_ context.Context, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "ensure")
	f.ensured = n
	return nil
}

func (f *fakeRemote) Subscribe(_ context.Context, fn func(model.BedRow)) (store.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "subscribe")
	f.subscriber = fn
	f.sub = &fakeSub{errs: make(chan error, 1), closed: make(chan struct{})}
	return f.sub, nil
}

func (f *fakeRemote) push(row model.BedRow) bool {
	f.mu.Lock()
	fn := f.subscriber
	f.mu.Unlock()
	if fn == nil {
		return false
	}
	fn(row)
	return true
}

// breakFeed ends the current subscription with err.
func (f *fakeRemote) breakFeed(err error) {
	f.mu.Lock()
	sub := f.sub
	f.mu.Unlock()
	sub.errs <- err
}

func (f *fakeRemote) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newTestSync(t *testing.T, local *memLocal, remote store.RemoteStore, clk *clock) *Synchronizer {
	t.Helper()
	s := New(local, remote, Options{
		BedCount:          3,
		SuppressionWindow: 5 * time.Second,
		ZombieMaxAge:      12 * time.Hour,
		Clock:             clk.Now,
	}, zap.NewNop())
	require.NoError(t, s.Load())
	return s
}

func pause(bed model.Bed, _ time.Time) (model.BedUpdate, bool) {
	return model.BedUpdate{IsPaused: model.Some(!bed.IsPaused)}, true
}

func activeRow(id int64, presetID string, updated time.Time) model.BedRow {
	start := t0.UnixMilli()
	return model.BedRow{
		ID:              id,
		Status:          string(model.BedStatusActive),
		CurrentPresetID: &presetID,
		Queue:           model.IntList{},
		StartTime:       &start,
		Memos:           model.MemoMap{},
		UpdatedAt:       updated,
	}
}

func TestSynchronizer_MutateWritesLocallyThenRemotely(t *testing.T) {
	local := &memLocal{}
	remote := newFakeRemote()
	clk := &clock{now: t0}
	s := newTestSync(t, local, remote, clk)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	bed, changed, err := s.Mutate(2, pause)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, bed.IsPaused)
	assert.Equal(t, t0, bed.LastLocalWrite)
	assert.Equal(t, 1, local.saved())

	select {
	case u := <-remote.updates:
		assert.Equal(t, 2, u.id)
		assert.Equal(t, map[string]any{"is_paused": true}, u.columns)
	case <-time.After(time.Second):
		t.Fatal("remote write was not sent")
	}
}

func TestSynchronizer_RemoteFailureKeepsLocalState(t *testing.T) {
	local := &memLocal{}
	remote := newFakeRemote()
	remote.updateErr = errors.New("connection refused")
	clk := &clock{now: t0}
	s := newTestSync(t, local, remote, clk)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	_, _, err := s.Mutate(1, pause)
	require.NoError(t, err)

	select {
	case <-remote.updates:
	case <-time.After(time.Second):
		t.Fatal("remote write was not attempted")
	}

	bed, ok := s.Bed(1)
	require.True(t, ok)
	assert.True(t, bed.IsPaused)
	assert.True(t, local.beds[0].IsPaused)
}

func TestSynchronizer_MutateNoopAndUnknownBed(t *testing.T) {
	local := &memLocal{}
	clk := &clock{now: t0}
	s := newTestSync(t, local, nil, clk)

	_, changed, err := s.Mutate(1, func(model.Bed, time.Time) (model.BedUpdate, bool) {
		return model.BedUpdate{}, false
	})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Zero(t, local.saved())

	_, _, err = s.Mutate(9, pause)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSynchronizer_EchoSuppression(t *testing.T) {
	local := &memLocal{}
	clk := &clock{now: t0}
	s := newTestSync(t, local, nil, clk)

	_, _, err := s.Mutate(1, pause)
	require.NoError(t, err)

	row := activeRow(1, "preset-basic", t0)

	clk.Set(t0.Add(3 * time.Second))
	assert.Equal(t, 0, s.ApplyRemote([]model.BedRow{row}))
	bed, _ := s.Bed(1)
	assert.Equal(t, model.BedStatusIdle, bed.Status)
	assert.True(t, bed.IsPaused)

	clk.Set(t0.Add(6 * time.Second))
	assert.Equal(t, 1, s.ApplyRemote([]model.BedRow{row}))
	bed, _ = s.Bed(1)
	assert.Equal(t, model.BedStatusActive, bed.Status)
	assert.Equal(t, "preset-basic", bed.Preset.ID())
	assert.False(t, bed.IsPaused)
	assert.Equal(t, t0, bed.LastLocalWrite)
}

func TestSynchronizer_ApplyRemoteDropsStaleRows(t *testing.T) {
	clk := &clock{now: t0.Add(time.Hour)}
	s := newTestSync(t, &memLocal{}, nil, clk)

	newer := activeRow(1, "preset-neck", t0.Add(2*time.Second))
	older := activeRow(1, "preset-basic", t0.Add(time.Second))

	assert.Equal(t, 1, s.ApplyRemote([]model.BedRow{newer}))
	assert.Equal(t, 0, s.ApplyRemote([]model.BedRow{older}))
	bed, _ := s.Bed(1)
	assert.Equal(t, "preset-neck", bed.Preset.ID())

	// The same version again is harmless.
	assert.Equal(t, 1, s.ApplyRemote([]model.BedRow{newer}))
}

func TestSynchronizer_ReportsRemoteWriteFailures(t *testing.T) {
	remote := newFakeRemote()
	remote.updateErr = errors.New("connection refused")
	s := newTestSync(t, &memLocal{}, remote, &clock{now: t0})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	_, _, err := s.Mutate(1, pause)
	require.NoError(t, err)

	select {
	case err := <-s.WriteErrors():
		assert.ErrorContains(t, err, "connection refused")
	case <-time.After(time.Second):
		t.Fatal("write failure was not reported")
	}
}

func TestSynchronizer_ApplyRemoteKeepsLocalRemainingForRunningBeds(t *testing.T) {
	local := &memLocal{}
	clk := &clock{now: t0.Add(time.Minute)}
	s := newTestSync(t, local, nil, clk)

	s.Observe(func(bed *model.Bed) {
		if bed.ID == 1 {
			bed.RemainingTime = 540
		}
	})

	row := activeRow(1, "preset-basic", t0)
	row.RemainingTime = 999
	paused := activeRow(2, "preset-basic", t0)
	paused.IsPaused = true
	paused.RemainingTime = 120

	assert.Equal(t, 2, s.ApplyRemote([]model.BedRow{row, paused, activeRow(42, "x", t0)}))

	bed, _ := s.Bed(1)
	assert.Equal(t, 540, bed.RemainingTime)
	bed, _ = s.Bed(2)
	assert.Equal(t, 120, bed.RemainingTime)
	assert.Equal(t, 1, local.saved())
}

func TestSynchronizer_LoadResetsZombiesAndPads(t *testing.T) {
	stale := t0.Add(-13 * time.Hour)
	fresh := t0.Add(-10 * time.Minute)
	local := &memLocal{beds: []model.Bed{
		{ID: 1, Status: model.BedStatusActive, Preset: model.CatalogRef("preset-basic"), StartTime: &stale, Memos: map[int]string{0: "x"}},
		{ID: 2, Status: model.BedStatusActive, Preset: model.CatalogRef("preset-neck"), StartTime: &fresh},
		{ID: 7, Status: model.BedStatusActive},
	}}
	clk := &clock{now: t0}
	s := newTestSync(t, local, nil, clk)

	beds := s.Snapshot()
	require.Len(t, beds, 3)

	assert.Equal(t, model.BedStatusIdle, beds[0].Status)
	assert.Nil(t, beds[0].StartTime)
	assert.Empty(t, beds[0].Memos)

	assert.Equal(t, model.BedStatusActive, beds[1].Status)
	assert.NotNil(t, beds[1].Queue)
	assert.NotNil(t, beds[1].Memos)

	assert.Equal(t, model.NewIdleBed(3), beds[2])
	assert.Equal(t, []int{1, 2, 3}, s.IDs())
}

func TestSynchronizer_LoadErrorStartsFresh(t *testing.T) {
	local := &memLocal{err: errors.New("corrupt")}
	s := New(local, nil, Options{BedCount: 2, Clock: (&clock{now: t0}).Now}, zap.NewNop())

	assert.Error(t, s.Load())
	assert.Equal(t, model.NewBeds(2), s.Snapshot())
}

func TestSynchronizer_SnapshotIsACopy(t *testing.T) {
	clk := &clock{now: t0}
	s := newTestSync(t, &memLocal{}, nil, clk)

	beds := s.Snapshot()
	beds[0].Memos[0] = "changed"
	beds[0].Queue = append(beds[0].Queue, 4)

	bed, _ := s.Bed(1)
	assert.Empty(t, bed.Memos)
	assert.Empty(t, bed.Queue)
}
