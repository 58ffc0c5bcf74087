// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/ragchat/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// StorageKey is the key the session record is stored under.
	StorageKey = "midm_chat_session"

	// DefaultLifetime is how long a session lives after creation or the
	// last extension.
	DefaultLifetime = 24 * time.Hour
)

// =============================================================================
// RECORD
// =============================================================================

// Record is the persisted session. Times are Unix milliseconds.
type Record struct {
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
	ExpiresAt int64  `json:"expiresAt"`
}

// CreatedTime returns the record's creation time.
func (r Record) CreatedTime() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// ExpiresTime returns the record's expiry time.
func (r Record) ExpiresTime() time.Time {
	return time.UnixMilli(r.ExpiresAt)
}

// expired reports whether the record is past its expiry at now. A record
// is still valid at exactly its expiry instant.
func (r Record) expired(now time.Time) bool {
	return now.UnixMilli() > r.ExpiresAt
}

// =============================================================================
// CREATOR
// =============================================================================

// Creator asks the backend for a new session id.
type Creator interface {
	NewSessionID(ctx context.Context) (string, error)
}

// CreatorFunc adapts a function to Creator.
type CreatorFunc func(ctx context.Context) (string, error)

// NewSessionID implements Creator.
func (f CreatorFunc) NewSessionID(ctx context.Context) (string, error) {
	return f(ctx)
}

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager owns the single persisted session record.
type Manager struct {
	mu sync.Mutex

	store    Store
	creator  Creator
	lifetime time.Duration
	now      func() time.Time
	logger   *zap.Logger

	// Called whenever the session is superseded or reset.
	resetters []func()
}

// Option configures a Manager.
type Option func(*Manager)

// WithLifetime overrides DefaultLifetime.
func WithLifetime(d time.Duration) Option {
	return func(m *Manager) { m.lifetime = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a manager persisting to store and creating sessions
// through creator.
func NewManager(store Store, creator Creator, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		creator:  creator,
		lifetime: DefaultLifetime,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnReset registers fn to clear local message state when the session is
// superseded or reset.
func (m *Manager) OnReset(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetters = append(m.resetters, fn)
}

// Create requests a new session from the backend and persists it,
// superseding any existing record and clearing local history. On backend
// failure the existing record is left untouched and a
// *SessionCreationError is returned.
func (m *Manager) Create(ctx context.Context) (string, error) {
	id, err := m.creator.NewSessionID(ctx)
	if err == nil && id == "" {
		err = errors.New("backend returned an empty session id")
	}
	if err != nil {
		m.logger.Warn("session creation failed", zap.Error(err))
		return "", &SessionCreationError{Err: err}
	}

	m.mu.Lock()
	now := m.now()
	rec := Record{
		SessionID: id,
		Timestamp: now.UnixMilli(),
		ExpiresAt: now.Add(m.lifetime).UnixMilli(),
	}
	if err := m.saveLocked(rec); err != nil {
		m.mu.Unlock()
		return "", err
	}
	resetters := m.resetters
	m.mu.Unlock()

	runResetters(resetters)
	m.logger.Info("session created",
		zap.String("session_id", id),
		zap.Time("expires_at", rec.ExpiresTime()))
	return id, nil
}

// Get returns the session id if a record exists and has not expired. An
// expired or unreadable record is removed.
func (m *Manager) Get() (string, bool) {
	rec, ok := m.Info()
	if !ok {
		return "", false
	}
	return rec.SessionID, true
}

// Info returns the full session record if it exists and has not expired.
func (m *Manager) Info() (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked()
}

// Ensure returns the current session id, creating a session when none is
// valid.
func (m *Manager) Ensure(ctx context.Context) (string, error) {
	if id, ok := m.Get(); ok {
		return id, nil
	}
	return m.Create(ctx)
}

// Extend pushes the expiry of the current session to now plus the lifetime
// without contacting the backend. It reports false when there is no valid
// session.
func (m *Manager) Extend() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.loadLocked()
	if !ok {
		return false
	}
	rec.ExpiresAt = m.now().Add(m.lifetime).UnixMilli()
	if err := m.saveLocked(rec); err != nil {
		m.logger.Warn("session extend failed", zap.Error(err))
		return false
	}
	return true
}

// TimeUntilExpiry returns the time left before the session expires, or
// zero when there is no valid session.
func (m *Manager) TimeUntilExpiry() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.loadLocked()
	if !ok {
		return 0
	}
	left := rec.ExpiresTime().Sub(m.now())
	if left < 0 {
		return 0
	}
	return left
}

// FormatTimeUntilExpiry renders the time left as "3h 12m" or "12m". It
// returns an empty string when there is no valid session.
func (m *Manager) FormatTimeUntilExpiry() string {
	if _, ok := m.Info(); !ok {
		return ""
	}
	return FormatRemaining(m.TimeUntilExpiry())
}

// Reset removes the session record and clears local history.
func (m *Manager) Reset() error {
	m.mu.Lock()
	err := m.store.Remove(StorageKey)
	resetters := m.resetters
	m.mu.Unlock()

	runResetters(resetters)
	if err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// loadLocked reads and validates the record. Callers must hold m.mu.
func (m *Manager) loadLocked() (Record, bool) {
	data, ok, err := m.store.Get(StorageKey)
	if err != nil {
		m.logger.Warn("session read failed", zap.Error(err))
		m.removeLocked()
		return Record{}, false
	}
	if !ok {
		return Record{}, false
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil || rec.SessionID == "" {
		m.logger.Warn("discarding corrupt session record", zap.ByteString("record", data))
		m.removeLocked()
		return Record{}, false
	}
	if rec.expired(m.now()) {
		m.logger.Info("session expired", zap.String("session_id", rec.SessionID))
		m.removeLocked()
		return Record{}, false
	}
	return rec, true
}

func (m *Manager) saveLocked(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := m.store.Set(StorageKey, data); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

func (m *Manager) removeLocked() {
	if err := m.store.Remove(StorageKey); err != nil {
		m.logger.Warn("session remove failed", zap.Error(err))
	}
}

func runResetters(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}

// FormatRemaining renders a duration as hours and minutes, dropping the
// hours when there are none.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	mins := int((d % time.Hour) / time.Minute)
	if hours > 0 {
		return util.IntToString(hours) + "h " + util.IntToString(mins) + "m"
	}
	return util.IntToString(mins) + "m"
}
