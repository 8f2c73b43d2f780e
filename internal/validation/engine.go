// Package validation runs advisory rule checks over proposed state
// changes. Findings never block execution; they annotate the operation
// result with a graded severity.
package validation

import (
	"fmt"
	"time"

	"warvox/internal/state"
	"warvox/internal/types"
)

// Severity grades a finding. Everything from warning up requires an
// explicit acknowledgment in the caller's UI, but the mutation has
// already taken effect by the time the finding surfaces.
type Severity string

const (
	SeverityValid    Severity = "valid"
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Result is one advisory finding.
type Result struct {
	Severity         Severity `json:"severity"`
	Message          string   `json:"message"`
	RuleID           string   `json:"rule_id"`
	Suggestion       string   `json:"suggestion,omitempty"`
	RequiresOverride bool     `json:"requires_override"`
}

// Thresholds are the tunable rule boundaries. They are configuration
// rather than constants so a different ruleset can shift them.
type Thresholds struct {
	// CPGainWarning and CPGainCritical bound per-adjustment CP gains.
	CPGainWarning  int `yaml:"cp_gain_warning" env:"WARVOX_CP_GAIN_WARNING"`
	CPGainCritical int `yaml:"cp_gain_critical" env:"WARVOX_CP_GAIN_CRITICAL"`

	// Rolling windows for stratagem duplicate-use detection.
	PhaseWindow time.Duration `yaml:"phase_window" env:"WARVOX_STRAT_PHASE_WINDOW"`
	TurnWindow  time.Duration `yaml:"turn_window" env:"WARVOX_STRAT_TURN_WINDOW"`
	RoundWindow time.Duration `yaml:"round_window" env:"WARVOX_STRAT_ROUND_WINDOW"`
}

// DefaultThresholds returns the stock ruleset boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CPGainWarning:  3,
		CPGainCritical: 4,
		PhaseWindow:    5 * time.Minute,
		TurnWindow:     15 * time.Minute,
		RoundWindow:    30 * time.Minute,
	}
}

// Engine evaluates the rule families. Checks are independent per
// operation; the engine holds no mutable state.
type Engine struct {
	thresholds Thresholds
	clock      func() time.Time
}

// NewEngine creates an engine. Zero-valued thresholds take defaults.
func NewEngine(thresholds Thresholds) *Engine {
	defaults := DefaultThresholds()
	if thresholds.CPGainWarning <= 0 {
		thresholds.CPGainWarning = defaults.CPGainWarning
	}
	if thresholds.CPGainCritical <= 0 {
		thresholds.CPGainCritical = defaults.CPGainCritical
	}
	if thresholds.PhaseWindow <= 0 {
		thresholds.PhaseWindow = defaults.PhaseWindow
	}
	if thresholds.TurnWindow <= 0 {
		thresholds.TurnWindow = defaults.TurnWindow
	}
	if thresholds.RoundWindow <= 0 {
		thresholds.RoundWindow = defaults.RoundWindow
	}
	return &Engine{thresholds: thresholds, clock: time.Now}
}

// SetClock overrides the time source for tests.
func (e *Engine) SetClock(clock func() time.Time) {
	e.clock = clock
}

// finalize fills in the override flag from the severity.
func finalize(r Result) Result {
	switch r.Severity {
	case SeverityWarning, SeverityError, SeverityCritical:
		r.RequiresOverride = true
	}
	return r
}

// CheckPhaseTransition grades a phase change: forward progression is
// valid, skipping ahead is informational, repeating the same phase is a
// warning, and any backward move is an error.
func (e *Engine) CheckPhaseTransition(from, to types.Phase) Result {
	fromIdx, toIdx := types.PhaseIndex(from), types.PhaseIndex(to)
	if toIdx < 0 {
		return finalize(Result{
			Severity: SeverityError,
			Message:  fmt.Sprintf("unknown phase %q", to),
			RuleID:   "phase.unknown",
		})
	}
	switch {
	case fromIdx < 0 || toIdx == fromIdx+1 || (fromIdx == len(types.PhaseOrder)-1 && toIdx == 0):
		return Result{
			Severity: SeverityValid,
			Message:  fmt.Sprintf("phase advanced to %s", to),
			RuleID:   "phase.forward",
		}
	case toIdx == fromIdx:
		return finalize(Result{
			Severity:   SeverityWarning,
			Message:    fmt.Sprintf("phase is already %s", to),
			RuleID:     "phase.repeat",
			Suggestion: "confirm the phase actually changed",
		})
	case toIdx > fromIdx:
		return finalize(Result{
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("skipped ahead from %s to %s", from, to),
			RuleID:   "phase.skip",
		})
	default:
		return finalize(Result{
			Severity:   SeverityError,
			Message:    fmt.Sprintf("phase moved backward from %s to %s", from, to),
			RuleID:     "phase.backward",
			Suggestion: "if this is a correction, say so explicitly",
		})
	}
}

// CheckRoundAdvance grades a round change: sequential +1 is valid, a
// skip is an error, any decrease is critical.
func (e *Engine) CheckRoundAdvance(from, to int) Result {
	switch {
	case to == from+1:
		return Result{
			Severity: SeverityValid,
			Message:  fmt.Sprintf("round advanced to %d", to),
			RuleID:   "round.sequential",
		}
	case to > from+1:
		return finalize(Result{
			Severity:   SeverityError,
			Message:    fmt.Sprintf("round jumped from %d to %d", from, to),
			RuleID:     "round.skip",
			Suggestion: fmt.Sprintf("expected round %d next", from+1),
		})
	default:
		return finalize(Result{
			Severity:   SeverityCritical,
			Message:    fmt.Sprintf("round moved backward from %d to %d", from, to),
			RuleID:     "round.backward",
			Suggestion: "rounds never decrease; check the transcript",
		})
	}
}

// CheckCPChange grades a command-point adjustment against the balance
// before the change. Gains of 1-2 are normal; larger gains escalate.
// Spending beyond the balance is an error even though the store clamps
// the balance at zero.
func (e *Engine) CheckCPChange(delta, balanceBefore int) Result {
	switch {
	case delta == 0:
		return Result{
			Severity: SeverityValid,
			Message:  "no CP change",
			RuleID:   "resource.cp_noop",
		}
	case delta < 0:
		if -delta > balanceBefore {
			return finalize(Result{
				Severity:   SeverityError,
				Message:    fmt.Sprintf("spent %d CP with only %d available", -delta, balanceBefore),
				RuleID:     "resource.cp_overspend",
				Suggestion: "balance clamped at 0; verify the stated cost",
			})
		}
		return Result{
			Severity: SeverityValid,
			Message:  fmt.Sprintf("spent %d CP", -delta),
			RuleID:   "resource.cp_spend",
		}
	case delta >= e.thresholds.CPGainCritical:
		return finalize(Result{
			Severity:   SeverityCritical,
			Message:    fmt.Sprintf("gained %d CP at once", delta),
			RuleID:     "resource.cp_gain_excessive",
			Suggestion: "CP gains above 3 per turn are almost certainly a mishearing",
		})
	case delta >= e.thresholds.CPGainWarning:
		return finalize(Result{
			Severity:   SeverityWarning,
			Message:    fmt.Sprintf("gained %d CP at once", delta),
			RuleID:     "resource.cp_gain_high",
			Suggestion: "typical gains are 1-2 CP per turn",
		})
	default:
		return Result{
			Severity: SeverityValid,
			Message:  fmt.Sprintf("gained %d CP", delta),
			RuleID:   "resource.cp_gain",
		}
	}
}

// CheckStratagem grades a stratagem play: insufficient CP for the stated
// cost is an error; a repeat by the same side inside the phase window is
// a warning, inside the turn or round window an info.
func (e *Engine) CheckStratagem(name string, side types.Side, cost, balance int, history []state.StratagemUse) Result {
	if cost > balance {
		return finalize(Result{
			Severity:   SeverityError,
			Message:    fmt.Sprintf("%s costs %d CP but only %d available", name, cost, balance),
			RuleID:     "stratagem.insufficient_cp",
			Suggestion: "verify the CP total before the next play",
		})
	}

	now := e.clock()
	var lastUse *state.StratagemUse
	for i := range history {
		use := &history[i]
		if use.Name != name || use.Side != side {
			continue
		}
		if lastUse == nil || use.UsedAt.After(lastUse.UsedAt) {
			lastUse = use
		}
	}
	if lastUse != nil {
		age := now.Sub(lastUse.UsedAt)
		switch {
		case age <= e.thresholds.PhaseWindow:
			return finalize(Result{
				Severity:   SeverityWarning,
				Message:    fmt.Sprintf("%s already used this phase", name),
				RuleID:     "stratagem.duplicate_phase",
				Suggestion: "most stratagems are once per phase",
			})
		case age <= e.thresholds.TurnWindow:
			return finalize(Result{
				Severity: SeverityInfo,
				Message:  fmt.Sprintf("%s already used this turn", name),
				RuleID:   "stratagem.duplicate_turn",
			})
		case age <= e.thresholds.RoundWindow:
			return finalize(Result{
				Severity: SeverityInfo,
				Message:  fmt.Sprintf("%s already used this round", name),
				RuleID:   "stratagem.duplicate_round",
			})
		}
	}

	return Result{
		Severity: SeverityValid,
		Message:  fmt.Sprintf("%s logged for %d CP", name, cost),
		RuleID:   "stratagem.logged",
	}
}
