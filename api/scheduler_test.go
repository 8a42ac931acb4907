package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artsia/hr-portal/absence"
	"github.com/artsia/hr-portal/auth"
	"github.com/artsia/hr-portal/store/sqlite"
)

type fakeMaintenanceStore struct {
	mu           sync.Mutex
	subsBefore   []time.Time
	sessionsAt   []time.Time
	subsErr      error
	pruneResults [2]int64
}

func (f *fakeMaintenanceStore) DeleteStaleSubscriptions(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subsBefore = append(f.subsBefore, before)
	return f.pruneResults[0], f.subsErr
}

func (f *fakeMaintenanceStore) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionsAt = append(f.sessionsAt, now)
	return f.pruneResults[1], nil
}

func (f *fakeMaintenanceStore) runs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessionsAt)
}

func TestMaintenanceScheduler_RunOnce(t *testing.T) {
	// GIVEN: a fixed clock and a 30 day retention
	now := time.Date(2025, 6, 10, 3, 0, 0, 0, time.UTC)
	store := &fakeMaintenanceStore{pruneResults: [2]int64{2, 5}}
	ms := NewMaintenanceScheduler(store)
	ms.Logger = zerolog.Nop()
	ms.Now = func() time.Time { return now }
	ms.PushRetention = 30 * 24 * time.Hour

	// WHEN
	res := ms.RunOnce(context.Background())

	// THEN: both prunes ran with the right cut-offs
	assert.Equal(t, MaintenanceResult{SubscriptionsPruned: 2, SessionsPruned: 5}, res)
	assert.Equal(t, []time.Time{now.AddDate(0, 0, -30)}, store.subsBefore)
	assert.Equal(t, []time.Time{now}, store.sessionsAt)
}

func TestMaintenanceScheduler_StepFailureDoesNotStopPass(t *testing.T) {
	store := &fakeMaintenanceStore{subsErr: errors.New("disk I/O error"), pruneResults: [2]int64{0, 1}}
	ms := NewMaintenanceScheduler(store)
	ms.Logger = zerolog.Nop()

	res := ms.RunOnce(context.Background())

	assert.Equal(t, int64(1), res.SessionsPruned)
	assert.Equal(t, 1, store.runs())
}

func TestMaintenanceScheduler_StartRunsImmediatelyAndStops(t *testing.T) {
	store := &fakeMaintenanceStore{}
	ms := NewMaintenanceScheduler(store)
	ms.Logger = zerolog.Nop()
	ms.CheckInterval = time.Hour

	ms.Start()
	ms.Start() // no second goroutine
	require.Eventually(t, func() bool { return store.runs() == 1 }, time.Second, 5*time.Millisecond)

	ms.Stop()
	ms.Stop()
	assert.Equal(t, 1, store.runs())
}

func TestMaintenanceScheduler_ZeroIntervalFallsBack(t *testing.T) {
	store := &fakeMaintenanceStore{}
	ms := NewMaintenanceScheduler(store)
	ms.Logger = zerolog.Nop()
	ms.CheckInterval = 0

	require.NotPanics(t, ms.Start)
	require.Eventually(t, func() bool { return store.runs() == 1 }, time.Second, 5*time.Millisecond)
	ms.Stop()
	assert.Equal(t, time.Hour, ms.CheckInterval)
}

func TestMaintenanceScheduler_Disabled(t *testing.T) {
	store := &fakeMaintenanceStore{}
	ms := NewMaintenanceScheduler(store)
	ms.Logger = zerolog.Nop()
	ms.Enabled = false

	ms.Start()
	ms.Stop()
	assert.Zero(t, store.runs())
}

func TestMaintenanceScheduler_SQLiteStore(t *testing.T) {
	// GIVEN: one stale and one fresh subscription, one expired session
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	emp, err := store.CreateEmployee(ctx, absence.Employee{Name: "Luca Verdi", Email: "luca@artsia.it", Team: absence.TeamSviluppo, Role: absence.RoleEmployee})
	require.NoError(t, err)

	now := time.Now().UTC()
	stale, err := store.UpsertSubscription(ctx, absence.PushSubscription{EmployeeID: emp.ID, Endpoint: "https://push.example/old", P256dh: "k", Auth: "a"})
	require.NoError(t, err)
	require.NoError(t, store.TouchSubscription(ctx, stale.ID, now.AddDate(0, 0, -90)))
	_, err = store.UpsertSubscription(ctx, absence.PushSubscription{EmployeeID: emp.ID, Endpoint: "https://push.example/new", P256dh: "k", Auth: "a"})
	require.NoError(t, err)
	require.NoError(t, store.CreateSession(ctx, auth.Session{
		Token: "7d1c2b9e-0000-4000-8000-000000000001", EmployeeID: emp.ID,
		ExpiresAt: now.Add(-time.Minute), CreatedAt: now.Add(-time.Hour),
	}))

	ms := NewMaintenanceScheduler(store)
	ms.Logger = zerolog.Nop()

	// WHEN
	res := ms.RunOnce(ctx)

	// THEN
	assert.Equal(t, MaintenanceResult{SubscriptionsPruned: 1, SessionsPruned: 1}, res)
	subs, err := store.ListSubscriptions(ctx, emp.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "https://push.example/new", subs[0].Endpoint)
}
