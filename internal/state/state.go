// Package state models live game-session state and the narrow store
// contract that operation handlers mutate it through. The store is keyed
// by session id and injected into every handler so that tests can run
// against the in-memory implementation.
package state

import (
	"time"

	"warvox/internal/types"
)

// ModelRole tags an individual model inside a unit roster. Roles form the
// protection order used when distributing wounds: regular models die first,
// leaders last.
type ModelRole string

const (
	RoleLeader  ModelRole = "leader"
	RoleSpecial ModelRole = "special"
	RoleHeavy   ModelRole = "heavy"
	RoleRegular ModelRole = "regular"
)

// RolePriority returns the sacrifice order for a role; lower values absorb
// damage first.
func RolePriority(r ModelRole) int {
	switch r {
	case RoleRegular:
		return 0
	case RoleSpecial:
		return 1
	case RoleHeavy:
		return 2
	case RoleLeader:
		return 3
	}
	return 0
}

// ParseRole normalizes a spoken/LLM-provided role name. Unknown values
// return "" so callers can distinguish "no restriction" from a bad value.
func ParseRole(s string) ModelRole {
	switch s {
	case "leader", "sergeant", "champion":
		return RoleLeader
	case "special":
		return RoleSpecial
	case "heavy":
		return RoleHeavy
	case "regular", "trooper":
		return RoleRegular
	}
	return ""
}

// ModelEntry is one model in a unit's roster with its own wound pool.
type ModelEntry struct {
	Role          ModelRole `json:"role"`
	CurrentWounds int       `json:"current_wounds"`
	MaxWounds     int       `json:"max_wounds"`
	Destroyed     bool      `json:"destroyed"`
}

// UnitInstance is one deployed unit. Instances are created at session
// start and mutated for the session's lifetime; they are never deleted.
type UnitInstance struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Side           types.Side   `json:"side"`
	Datasheet      string       `json:"datasheet"`
	StartingModels int          `json:"starting_models"`
	CurrentModels  int          `json:"current_models"`
	StartingWounds int          `json:"starting_wounds"`
	CurrentWounds  int          `json:"current_wounds"`
	Models         []ModelEntry `json:"models,omitempty"`
	Destroyed      bool         `json:"destroyed"`
	Battleshocked  bool         `json:"battleshocked"`
	Effects        []string     `json:"effects,omitempty"`
	AttachedTo     string       `json:"attached_to,omitempty"`

	// LastReferenced orders resolver tie-breaks; updated whenever an
	// operation successfully resolves this unit from speech.
	LastReferenced time.Time `json:"last_referenced,omitempty"`
}

// HasRoster reports whether the unit tracks per-model wounds.
func (u *UnitInstance) HasRoster() bool {
	return len(u.Models) > 0
}

// AliveModels counts non-destroyed roster entries.
func (u *UnitInstance) AliveModels() int {
	n := 0
	for _, m := range u.Models {
		if !m.Destroyed {
			n++
		}
	}
	return n
}

// RosterWounds sums remaining wounds across non-destroyed roster entries.
func (u *UnitInstance) RosterWounds() int {
	total := 0
	for _, m := range u.Models {
		if !m.Destroyed {
			total += m.CurrentWounds
		}
	}
	return total
}

// HasEffect reports whether the named effect is active on the unit.
func (u *UnitInstance) HasEffect(name string) bool {
	for _, e := range u.Effects {
		if e == name {
			return true
		}
	}
	return false
}

// Stratagem is one catalog entry a side may play.
type Stratagem struct {
	Name        string      `json:"name"`
	Cost        int         `json:"cost"`
	Phase       types.Phase `json:"phase,omitempty"`
	Description string      `json:"description,omitempty"`
}

// StratagemUse records one played stratagem for duplicate-use checks.
type StratagemUse struct {
	Name   string      `json:"name"`
	Side   types.Side  `json:"side"`
	Cost   int         `json:"cost"`
	Phase  types.Phase `json:"phase"`
	Round  int         `json:"round"`
	UsedAt time.Time   `json:"used_at"`
}

// CombatLog records one spoken combat exchange.
type CombatLog struct {
	Attacker string    `json:"attacker"`
	Defender string    `json:"defender"`
	Summary  string    `json:"summary"`
	LoggedAt time.Time `json:"logged_at"`
}

// SessionState is the complete mutable state of one game session.
type SessionState struct {
	SessionID  string                   `json:"session_id"`
	Round      int                      `json:"round"`
	Turn       types.Side               `json:"turn"`
	Phase      types.Phase              `json:"phase"`
	CP         map[types.Side]int       `json:"cp"`
	VP         map[types.Side]int       `json:"vp"`
	Objectives map[int]types.Side       `json:"objectives"`
	Units      map[string]*UnitInstance `json:"units"`
	Stratagems map[types.Side][]Stratagem `json:"stratagems"`
	UsedStratagems []StratagemUse       `json:"used_stratagems"`
	CombatLogs     []CombatLog          `json:"combat_logs"`
	StartedAt      time.Time            `json:"started_at"`
}

// Summary is the compact session digest used in the minimal context tier
// and in classifier prompts.
type Summary struct {
	SessionID  string      `json:"session_id"`
	Round      int         `json:"round"`
	Turn       types.Side  `json:"turn"`
	Phase      types.Phase `json:"phase"`
	PlayerCP   int         `json:"player_cp"`
	OpponentCP int         `json:"opponent_cp"`
	PlayerVP   int         `json:"player_vp"`
	OpponentVP int         `json:"opponent_vp"`
}

// Summarize builds the compact digest from a full snapshot.
func (s *SessionState) Summarize() Summary {
	return Summary{
		SessionID:  s.SessionID,
		Round:      s.Round,
		Turn:       s.Turn,
		Phase:      s.Phase,
		PlayerCP:   s.CP[types.SidePlayer],
		OpponentCP: s.CP[types.SideOpponent],
		PlayerVP:   s.VP[types.SidePlayer],
		OpponentVP: s.VP[types.SideOpponent],
	}
}

// Clone deep-copies the session state so snapshots never alias live data.
func (s *SessionState) Clone() *SessionState {
	out := *s
	out.CP = make(map[types.Side]int, len(s.CP))
	for k, v := range s.CP {
		out.CP[k] = v
	}
	out.VP = make(map[types.Side]int, len(s.VP))
	for k, v := range s.VP {
		out.VP[k] = v
	}
	out.Objectives = make(map[int]types.Side, len(s.Objectives))
	for k, v := range s.Objectives {
		out.Objectives[k] = v
	}
	out.Units = make(map[string]*UnitInstance, len(s.Units))
	for id, u := range s.Units {
		cu := *u
		cu.Models = append([]ModelEntry(nil), u.Models...)
		cu.Effects = append([]string(nil), u.Effects...)
		out.Units[id] = &cu
	}
	out.Stratagems = make(map[types.Side][]Stratagem, len(s.Stratagems))
	for k, v := range s.Stratagems {
		out.Stratagems[k] = append([]Stratagem(nil), v...)
	}
	out.UsedStratagems = append([]StratagemUse(nil), s.UsedStratagems...)
	out.CombatLogs = append([]CombatLog(nil), s.CombatLogs...)
	return &out
}
