// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// sequenceCreator hands out ids in order and records calls.
type sequenceCreator struct {
	ids   []string
	err   error
	calls int
}

func (c *sequenceCreator) NewSessionID(context.Context) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	id := c.ids[0]
	c.ids = c.ids[1:]
	return id, nil
}

func newTestManager(t *testing.T, ids ...string) (*Manager, *MemoryStore, *fakeClock, *sequenceCreator) {
	t.Helper()
	store := NewMemoryStore()
	clock := newFakeClock()
	creator := &sequenceCreator{ids: ids}
	return NewManager(store, creator, WithClock(clock.Now)), store, clock, creator
}

// =============================================================================
// CREATE TESTS
// =============================================================================

func TestManager_CreatePersistsRecord(t *testing.T) {
	mgr, store, clock, _ := newTestManager(t, "sess-a")

	id, err := mgr.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sess-a", id)

	raw, ok, err := store.Get(StorageKey)
	require.NoError(t, err)
	require.True(t, ok)

	var rec Record
	require.NoError(t, json.Unmarshal(raw, &rec))
	assert.Equal(t, "sess-a", rec.SessionID)
	assert.Equal(t, clock.Now().UnixMilli(), rec.Timestamp)
	assert.Equal(t, clock.Now().Add(24*time.Hour).UnixMilli(), rec.ExpiresAt)
}

func TestManager_CreateClearsHistory(t *testing.T) {
	mgr, _, _, _ := newTestManager(t, "sess-a", "sess-b")
	resets := 0
	mgr.OnReset(func() { resets++ })

	_, err := mgr.Create(context.Background())
	require.NoError(t, err)
	id, err := mgr.Create(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, resets)
	got, ok := mgr.Get()
	require.True(t, ok)
	assert.Equal(t, id, got, "the newest session supersedes the old one")
}

func TestManager_CreateFailureKeepsOldRecord(t *testing.T) {
	mgr, _, _, creator := newTestManager(t, "sess-a")
	resets := 0
	mgr.OnReset(func() { resets++ })

	_, err := mgr.Create(context.Background())
	require.NoError(t, err)

	creator.err = errors.New("backend down")
	_, err = mgr.Create(context.Background())

	var createErr *SessionCreationError
	require.ErrorAs(t, err, &createErr)
	assert.ErrorIs(t, err, creator.err)

	id, ok := mgr.Get()
	assert.True(t, ok)
	assert.Equal(t, "sess-a", id)
	assert.Equal(t, 1, resets, "a failed create must not clear history")
}

func TestManager_CreateRejectsEmptyID(t *testing.T) {
	mgr, store, _, _ := newTestManager(t, "")

	_, err := mgr.Create(context.Background())
	var createErr *SessionCreationError
	require.ErrorAs(t, err, &createErr)

	_, ok, _ := store.Get(StorageKey)
	assert.False(t, ok)
}

// =============================================================================
// EXPIRY TESTS
// =============================================================================

func TestManager_GetExpiresLazily(t *testing.T) {
	mgr, store, clock, _ := newTestManager(t, "sess-a")
	_, err := mgr.Create(context.Background())
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	_, ok := mgr.Get()
	assert.True(t, ok, "a session is valid at exactly its expiry")

	clock.Advance(time.Millisecond)
	_, ok = mgr.Get()
	assert.False(t, ok)

	_, present, _ := store.Get(StorageKey)
	assert.False(t, present, "reading an expired session clears storage")
}

func TestManager_CorruptRecordRemoved(t *testing.T) {
	mgr, store, _, _ := newTestManager(t)
	require.NoError(t, store.Set(StorageKey, []byte("{not json")))

	_, ok := mgr.Get()
	assert.False(t, ok)
	_, present, _ := store.Get(StorageKey)
	assert.False(t, present)
}

func TestManager_EnsureCreatesOnce(t *testing.T) {
	mgr, _, clock, creator := newTestManager(t, "sess-a", "sess-b")

	id, err := mgr.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sess-a", id)

	id, err = mgr.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sess-a", id)
	assert.Equal(t, 1, creator.calls)

	clock.Advance(25 * time.Hour)
	id, err = mgr.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sess-b", id)
}

// =============================================================================
// EXTEND TESTS
// =============================================================================

func TestManager_ExtendSlidesExpiry(t *testing.T) {
	mgr, _, clock, creator := newTestManager(t, "sess-a")
	_, err := mgr.Create(context.Background())
	require.NoError(t, err)

	// An active user never expires.
	for i := 0; i < 5; i++ {
		clock.Advance(20 * time.Hour)
		require.True(t, mgr.Extend())
	}
	id, ok := mgr.Get()
	assert.True(t, ok)
	assert.Equal(t, "sess-a", id)
	assert.Equal(t, 1, creator.calls, "extend must not contact the backend")

	rec, ok := mgr.Info()
	require.True(t, ok)
	assert.Equal(t, clock.Now().Add(24*time.Hour).UnixMilli(), rec.ExpiresAt)
}

func TestManager_ExtendWithoutSession(t *testing.T) {
	mgr, store, _, _ := newTestManager(t)
	assert.False(t, mgr.Extend())
	_, present, _ := store.Get(StorageKey)
	assert.False(t, present)
}

func TestManager_ExtendExpiredSession(t *testing.T) {
	mgr, _, clock, _ := newTestManager(t, "sess-a")
	_, err := mgr.Create(context.Background())
	require.NoError(t, err)

	clock.Advance(30 * time.Hour)
	assert.False(t, mgr.Extend(), "an expired session cannot be revived")
}

// =============================================================================
// INFO / RESET TESTS
// =============================================================================

func TestManager_TimeUntilExpiry(t *testing.T) {
	mgr, _, clock, _ := newTestManager(t, "sess-a")
	assert.Zero(t, mgr.TimeUntilExpiry())
	assert.Empty(t, mgr.FormatTimeUntilExpiry())

	_, err := mgr.Create(context.Background())
	require.NoError(t, err)

	clock.Advance(20*time.Hour + 48*time.Minute)
	assert.Equal(t, 3*time.Hour+12*time.Minute, mgr.TimeUntilExpiry())
	assert.Equal(t, "3h 12m", mgr.FormatTimeUntilExpiry())

	clock.Advance(3*time.Hour + 30*time.Second)
	assert.Equal(t, "11m", mgr.FormatTimeUntilExpiry())
}

func TestManager_Reset(t *testing.T) {
	mgr, _, _, _ := newTestManager(t, "sess-a")
	cleared := false
	mgr.OnReset(func() { cleared = true })

	_, err := mgr.Create(context.Background())
	require.NoError(t, err)
	cleared = false

	require.NoError(t, mgr.Reset())
	assert.True(t, cleared)
	_, ok := mgr.Get()
	assert.False(t, ok)
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0m"},
		{-time.Minute, "0m"},
		{59 * time.Second, "0m"},
		{12 * time.Minute, "12m"},
		{time.Hour, "1h 0m"},
		{23*time.Hour + 59*time.Minute, "23h 59m"},
	}
	for _, tt := range tests {
		if got := FormatRemaining(tt.in); got != tt.want {
			t.Errorf("FormatRemaining(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// =============================================================================
// STORE FAILURE TESTS
// =============================================================================

// brokenStore fails every operation.
type brokenStore struct{ err error }

func (s brokenStore) Get(string) ([]byte, bool, error) { return nil, false, s.err }
func (s brokenStore) Set(string, []byte) error         { return s.err }
func (s brokenStore) Remove(string) error              { return s.err }

func TestManager_StoreFailures(t *testing.T) {
	boom := errors.New("disk full")
	mgr := NewManager(brokenStore{err: boom}, CreatorFunc(func(context.Context) (string, error) {
		return "sess-x", nil
	}))

	_, err := mgr.Create(context.Background())
	assert.ErrorIs(t, err, boom)

	_, ok := mgr.Get()
	assert.False(t, ok)
	assert.ErrorIs(t, mgr.Reset(), boom)
}
