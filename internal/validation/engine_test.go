package validation

import (
	"testing"
	"time"

	"warvox/internal/state"
	"warvox/internal/types"
)

func TestPhaseForwardIsValid(t *testing.T) {
	e := NewEngine(Thresholds{})
	r := e.CheckPhaseTransition(types.PhaseMovement, types.PhaseShooting)
	if r.Severity != SeverityValid {
		t.Errorf("severity = %s, want valid", r.Severity)
	}
	if r.RequiresOverride {
		t.Error("valid finding must not require override")
	}
}

func TestPhaseSkipIsInfo(t *testing.T) {
	e := NewEngine(Thresholds{})
	r := e.CheckPhaseTransition(types.PhaseCommand, types.PhaseCharge)
	if r.Severity != SeverityInfo {
		t.Errorf("severity = %s, want info", r.Severity)
	}
}

func TestPhaseRepeatIsWarning(t *testing.T) {
	e := NewEngine(Thresholds{})
	r := e.CheckPhaseTransition(types.PhaseShooting, types.PhaseShooting)
	if r.Severity != SeverityWarning {
		t.Errorf("severity = %s, want warning", r.Severity)
	}
	if !r.RequiresOverride {
		t.Error("warning must require override")
	}
}

func TestPhaseBackwardIsError(t *testing.T) {
	e := NewEngine(Thresholds{})
	r := e.CheckPhaseTransition(types.PhaseFight, types.PhaseMovement)
	if r.Severity != SeverityError {
		t.Errorf("severity = %s, want error", r.Severity)
	}
	if r.RuleID != "phase.backward" {
		t.Errorf("rule id = %s, want phase.backward", r.RuleID)
	}
}

func TestPhaseWrapToNextTurnIsValid(t *testing.T) {
	e := NewEngine(Thresholds{})
	if r := e.CheckPhaseTransition(types.PhaseFight, types.PhaseCommand); r.Severity != SeverityValid {
		t.Errorf("fight -> command severity = %s, want valid", r.Severity)
	}
}

func TestRoundGrades(t *testing.T) {
	e := NewEngine(Thresholds{})
	cases := []struct {
		from, to int
		want     Severity
	}{
		{2, 3, SeverityValid},
		{2, 4, SeverityError},
		{3, 2, SeverityCritical},
		{1, 1, SeverityCritical},
	}
	for _, tc := range cases {
		r := e.CheckRoundAdvance(tc.from, tc.to)
		if r.Severity != tc.want {
			t.Errorf("round %d -> %d severity = %s, want %s", tc.from, tc.to, r.Severity, tc.want)
		}
	}
}

func TestCPGainGrades(t *testing.T) {
	e := NewEngine(Thresholds{})
	cases := []struct {
		delta int
		want  Severity
	}{
		{1, SeverityValid},
		{2, SeverityValid},
		{3, SeverityWarning},
		{4, SeverityCritical},
		{7, SeverityCritical},
	}
	for _, tc := range cases {
		r := e.CheckCPChange(tc.delta, 0)
		if r.Severity != tc.want {
			t.Errorf("gain %d severity = %s, want %s", tc.delta, r.Severity, tc.want)
		}
	}
}

func TestCPOverspendIsError(t *testing.T) {
	e := NewEngine(Thresholds{})
	r := e.CheckCPChange(-3, 1)
	if r.Severity != SeverityError {
		t.Errorf("severity = %s, want error", r.Severity)
	}
	if r.RuleID != "resource.cp_overspend" {
		t.Errorf("rule id = %s", r.RuleID)
	}
}

func TestCPSpendWithinBalanceIsValid(t *testing.T) {
	e := NewEngine(Thresholds{})
	if r := e.CheckCPChange(-2, 3); r.Severity != SeverityValid {
		t.Errorf("severity = %s, want valid", r.Severity)
	}
}

func TestConfigurableThresholds(t *testing.T) {
	e := NewEngine(Thresholds{CPGainWarning: 5, CPGainCritical: 8})
	if r := e.CheckCPChange(4, 0); r.Severity != SeverityValid {
		t.Errorf("gain 4 under raised threshold severity = %s, want valid", r.Severity)
	}
	if r := e.CheckCPChange(6, 0); r.Severity != SeverityWarning {
		t.Errorf("gain 6 severity = %s, want warning", r.Severity)
	}
}

func TestStratagemDuplicateSamePhase(t *testing.T) {
	e := NewEngine(Thresholds{})
	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	e.SetClock(func() time.Time { return now })

	history := []state.StratagemUse{{
		Name:   "Transhuman Physiology",
		Side:   types.SidePlayer,
		Cost:   1,
		UsedAt: now.Add(-2 * time.Minute),
	}}
	r := e.CheckStratagem("Transhuman Physiology", types.SidePlayer, 1, 3, history)
	if r.Severity != SeverityWarning {
		t.Errorf("severity = %s, want warning", r.Severity)
	}
	if r.RuleID != "stratagem.duplicate_phase" {
		t.Errorf("rule id = %s", r.RuleID)
	}
}

func TestStratagemDuplicateSameTurn(t *testing.T) {
	e := NewEngine(Thresholds{})
	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	e.SetClock(func() time.Time { return now })

	history := []state.StratagemUse{{
		Name:   "Armour of Contempt",
		Side:   types.SidePlayer,
		UsedAt: now.Add(-10 * time.Minute),
	}}
	r := e.CheckStratagem("Armour of Contempt", types.SidePlayer, 1, 3, history)
	if r.Severity != SeverityInfo {
		t.Errorf("severity = %s, want info", r.Severity)
	}
}

func TestStratagemDuplicateSameRound(t *testing.T) {
	e := NewEngine(Thresholds{})
	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	e.SetClock(func() time.Time { return now })

	history := []state.StratagemUse{{
		Name:   "Armour of Contempt",
		Side:   types.SidePlayer,
		UsedAt: now.Add(-20 * time.Minute),
	}}
	r := e.CheckStratagem("Armour of Contempt", types.SidePlayer, 1, 3, history)
	if r.Severity != SeverityInfo {
		t.Errorf("severity = %s, want info", r.Severity)
	}
	if r.RuleID != "stratagem.duplicate_round" {
		t.Errorf("rule id = %s, want stratagem.duplicate_round", r.RuleID)
	}
}

func TestStratagemOutsideRoundWindowIsValid(t *testing.T) {
	e := NewEngine(Thresholds{})
	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	e.SetClock(func() time.Time { return now })

	history := []state.StratagemUse{{
		Name:   "Armour of Contempt",
		Side:   types.SidePlayer,
		UsedAt: now.Add(-45 * time.Minute),
	}}
	if r := e.CheckStratagem("Armour of Contempt", types.SidePlayer, 1, 3, history); r.Severity != SeverityValid {
		t.Errorf("severity = %s, want valid", r.Severity)
	}
}

func TestStratagemOtherSideDoesNotCollide(t *testing.T) {
	e := NewEngine(Thresholds{})
	now := time.Now()
	history := []state.StratagemUse{{
		Name:   "Counter-Offensive",
		Side:   types.SideOpponent,
		UsedAt: now.Add(-time.Minute),
	}}
	r := e.CheckStratagem("Counter-Offensive", types.SidePlayer, 2, 3, history)
	if r.Severity != SeverityValid {
		t.Errorf("severity = %s, want valid", r.Severity)
	}
}

func TestStratagemInsufficientCP(t *testing.T) {
	e := NewEngine(Thresholds{})
	r := e.CheckStratagem("Counter-Offensive", types.SidePlayer, 2, 1, nil)
	if r.Severity != SeverityError {
		t.Errorf("severity = %s, want error", r.Severity)
	}
	if r.RuleID != "stratagem.insufficient_cp" {
		t.Errorf("rule id = %s", r.RuleID)
	}
}
