package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"warvox/internal/types"
)

// Store errors.
var (
	// ErrSessionNotFound is returned for an unknown session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnitNotFound is returned for an unknown unit id.
	ErrUnitNotFound = errors.New("unit not found")
)

// Store is the narrow read/write contract the pipeline consumes. Every
// write is atomic with respect to its own record (single unit or single
// session field); concurrent writers use last-write-wins semantics at the
// field level. Implementations must clamp resource counters at zero and
// keep roster-backed units consistent (see normalizeUnit).
type Store interface {
	// Snapshot returns a deep copy of the session state.
	Snapshot(ctx context.Context, sessionID string) (*SessionState, error)

	SetPhase(ctx context.Context, sessionID string, phase types.Phase) (previous types.Phase, err error)
	SetRound(ctx context.Context, sessionID string, round int) (previous int, err error)
	SetTurn(ctx context.Context, sessionID string, side types.Side) error

	// AdjustCP and AdjustVP return the balance before and after the
	// change; the after value is clamped at zero.
	AdjustCP(ctx context.Context, sessionID string, side types.Side, delta int) (before, after int, err error)
	AdjustVP(ctx context.Context, sessionID string, side types.Side, delta int) (before, after int, err error)
	SetObjective(ctx context.Context, sessionID string, objective int, side types.Side) error

	// UpdateUnit applies fn to the named unit under the store lock and
	// returns a copy of the unit after invariant clamping.
	UpdateUnit(ctx context.Context, sessionID, unitID string, fn func(*UnitInstance) error) (*UnitInstance, error)

	RecordStratagem(ctx context.Context, sessionID string, use StratagemUse) error
	RecordCombat(ctx context.Context, sessionID string, log CombatLog) error

	// AppendTimeline appends an immutable record to the session timeline.
	AppendTimeline(ctx context.Context, sessionID string, rec TimelineRecord) error
	Timeline(ctx context.Context, sessionID string) ([]TimelineRecord, error)
}

// MemoryStore is the in-memory Store implementation. It backs live play
// and all tests; a sqlite TimelineMirror can be attached to persist the
// timeline for post-game review.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]*SessionState
	timelines map[string][]TimelineRecord

	mirror *TimelineMirror
	logger *zap.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		sessions:  make(map[string]*SessionState),
		timelines: make(map[string][]TimelineRecord),
		logger:    logger,
	}
}

// AttachMirror routes future timeline appends to a durable mirror.
// Mirror failures are logged, never surfaced to operations.
func (s *MemoryStore) AttachMirror(m *TimelineMirror) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirror = m
}

// PutSession registers a session, replacing any prior state under the
// same id.
func (s *MemoryStore) PutSession(session *SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range session.Units {
		normalizeUnit(u)
	}
	s.sessions[session.SessionID] = session
}

func (s *MemoryStore) session(sessionID string) (*SessionState, error) {
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return session, nil
}

// Snapshot returns a deep copy of the session state.
func (s *MemoryStore) Snapshot(ctx context.Context, sessionID string) (*SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return session.Clone(), nil
}

// SetPhase writes the current phase and returns the previous one.
func (s *MemoryStore) SetPhase(ctx context.Context, sessionID string, phase types.Phase) (types.Phase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.session(sessionID)
	if err != nil {
		return "", err
	}
	previous := session.Phase
	session.Phase = phase
	return previous, nil
}

// SetRound writes the battle round and returns the previous one.
func (s *MemoryStore) SetRound(ctx context.Context, sessionID string, round int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.session(sessionID)
	if err != nil {
		return 0, err
	}
	previous := session.Round
	session.Round = round
	return previous, nil
}

// SetTurn writes whose turn it is.
func (s *MemoryStore) SetTurn(ctx context.Context, sessionID string, side types.Side) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	session.Turn = side
	return nil
}

// AdjustCP changes a side's command points, clamping the balance at zero.
func (s *MemoryStore) AdjustCP(ctx context.Context, sessionID string, side types.Side, delta int) (int, int, error) {
	return s.adjustResource(sessionID, side, delta, true)
}

// AdjustVP changes a side's victory points, clamping the balance at zero.
func (s *MemoryStore) AdjustVP(ctx context.Context, sessionID string, side types.Side, delta int) (int, int, error) {
	return s.adjustResource(sessionID, side, delta, false)
}

func (s *MemoryStore) adjustResource(sessionID string, side types.Side, delta int, cp bool) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.session(sessionID)
	if err != nil {
		return 0, 0, err
	}
	counters := session.VP
	if cp {
		counters = session.CP
	}
	before := counters[side]
	after := before + delta
	if after < 0 {
		after = 0
	}
	counters[side] = after
	return before, after, nil
}

// SetObjective assigns control of a numbered objective marker.
func (s *MemoryStore) SetObjective(ctx context.Context, sessionID string, objective int, side types.Side) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	session.Objectives[objective] = side
	return nil
}

// UpdateUnit applies fn to the unit under the store lock, clamps the
// invariants, and returns a copy of the result.
func (s *MemoryStore) UpdateUnit(ctx context.Context, sessionID, unitID string, fn func(*UnitInstance) error) (*UnitInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	unit, ok := session.Units[unitID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnitNotFound, unitID)
	}
	if err := fn(unit); err != nil {
		return nil, err
	}
	normalizeUnit(unit)
	copied := *unit
	copied.Models = append([]ModelEntry(nil), unit.Models...)
	copied.Effects = append([]string(nil), unit.Effects...)
	return &copied, nil
}

// RecordStratagem appends a stratagem use to the session history.
func (s *MemoryStore) RecordStratagem(ctx context.Context, sessionID string, use StratagemUse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	if use.UsedAt.IsZero() {
		use.UsedAt = time.Now().UTC()
	}
	session.UsedStratagems = append(session.UsedStratagems, use)
	return nil
}

// RecordCombat appends a combat log entry.
func (s *MemoryStore) RecordCombat(ctx context.Context, sessionID string, log CombatLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}
	if log.LoggedAt.IsZero() {
		log.LoggedAt = time.Now().UTC()
	}
	session.CombatLogs = append(session.CombatLogs, log)
	return nil
}

// AppendTimeline appends an immutable record; mirror failures are logged
// and swallowed so a persistence hiccup never fails the operation.
func (s *MemoryStore) AppendTimeline(ctx context.Context, sessionID string, rec TimelineRecord) error {
	s.mu.Lock()
	if _, err := s.session(sessionID); err != nil {
		s.mu.Unlock()
		return err
	}
	s.timelines[sessionID] = append(s.timelines[sessionID], rec)
	mirror := s.mirror
	s.mu.Unlock()

	if mirror != nil {
		if err := mirror.Append(ctx, sessionID, rec); err != nil {
			s.logger.Warn("timeline mirror append failed",
				zap.String("session_id", sessionID),
				zap.String("record_id", rec.ID),
				zap.Error(err))
		}
	}
	return nil
}

// Timeline returns a copy of the session timeline in append order.
func (s *MemoryStore) Timeline(ctx context.Context, sessionID string) ([]TimelineRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, err := s.session(sessionID); err != nil {
		return nil, err
	}
	return append([]TimelineRecord(nil), s.timelines[sessionID]...), nil
}

// normalizeUnit clamps the data-layer invariants after any mutation:
// wounds and model counts never exceed their starting values or drop
// below zero, roster-backed units report the roster's totals, and a unit
// at zero models or zero wounds is destroyed.
func normalizeUnit(u *UnitInstance) {
	if u.HasRoster() {
		for i := range u.Models {
			m := &u.Models[i]
			if m.CurrentWounds > m.MaxWounds {
				m.CurrentWounds = m.MaxWounds
			}
			if m.CurrentWounds <= 0 {
				m.CurrentWounds = 0
				m.Destroyed = true
			}
		}
		u.CurrentModels = u.AliveModels()
		u.CurrentWounds = u.RosterWounds()
	}
	if u.CurrentModels > u.StartingModels {
		u.CurrentModels = u.StartingModels
	}
	if u.CurrentModels < 0 {
		u.CurrentModels = 0
	}
	if u.CurrentWounds > u.StartingWounds {
		u.CurrentWounds = u.StartingWounds
	}
	if u.CurrentWounds < 0 {
		u.CurrentWounds = 0
	}
	if u.CurrentModels == 0 || u.CurrentWounds == 0 {
		u.Destroyed = true
	}
	if u.Destroyed {
		u.CurrentModels = 0
		u.CurrentWounds = 0
		for i := range u.Models {
			u.Models[i].CurrentWounds = 0
			u.Models[i].Destroyed = true
		}
	}
}
