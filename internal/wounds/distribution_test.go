package wounds

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"warvox/internal/state"
)

func regulars(n, woundsEach int) []state.ModelEntry {
	roster := make([]state.ModelEntry, n)
	for i := range roster {
		roster[i] = state.ModelEntry{Role: state.RoleRegular, CurrentWounds: woundsEach, MaxWounds: woundsEach}
	}
	return roster
}

func TestSixWoundsKillsTwoOfSixRegulars(t *testing.T) {
	roster := regulars(6, 3)
	out := DistributeWounds(roster, 6, "")

	if out.ModelsDestroyed != 2 {
		t.Errorf("ModelsDestroyed = %d, want 2", out.ModelsDestroyed)
	}
	alive := 0
	for _, m := range out.Roster {
		if !m.Destroyed {
			alive++
			if m.CurrentWounds != 3 {
				t.Errorf("survivor at %d wounds, want full 3", m.CurrentWounds)
			}
		}
	}
	if alive != 4 {
		t.Errorf("alive = %d, want 4", alive)
	}
	if out.Summary != "2 regular models destroyed" {
		t.Errorf("Summary = %q, want %q", out.Summary, "2 regular models destroyed")
	}
}

func TestRolePriorityProtectsLeaderAndHeavy(t *testing.T) {
	roster := []state.ModelEntry{
		{Role: state.RoleLeader, CurrentWounds: 3, MaxWounds: 3},
		{Role: state.RoleHeavy, CurrentWounds: 3, MaxWounds: 3},
		{Role: state.RoleRegular, CurrentWounds: 3, MaxWounds: 3},
		{Role: state.RoleRegular, CurrentWounds: 3, MaxWounds: 3},
		{Role: state.RoleRegular, CurrentWounds: 3, MaxWounds: 3},
		{Role: state.RoleRegular, CurrentWounds: 3, MaxWounds: 3},
	}
	out := DistributeWounds(roster, 9, "")

	if out.ModelsDestroyed != 3 {
		t.Errorf("ModelsDestroyed = %d, want 3", out.ModelsDestroyed)
	}
	if out.Roster[0].Destroyed || out.Roster[0].CurrentWounds != 3 {
		t.Error("leader should be untouched")
	}
	if out.Roster[1].Destroyed || out.Roster[1].CurrentWounds != 3 {
		t.Error("heavy should be untouched")
	}
	destroyed := 0
	for _, m := range out.Roster[2:] {
		if m.Destroyed {
			destroyed++
		}
	}
	if destroyed != 3 {
		t.Errorf("regular models destroyed = %d, want 3", destroyed)
	}
}

func TestWoundedModelAbsorbsFirst(t *testing.T) {
	roster := regulars(3, 3)
	roster[2].CurrentWounds = 1 // previously wounded

	out := DistributeWounds(roster, 1, "")
	if !out.Roster[2].Destroyed {
		t.Error("already-wounded model should absorb first and die")
	}
	if out.Roster[0].CurrentWounds != 3 || out.Roster[1].CurrentWounds != 3 {
		t.Error("fresh models should be untouched")
	}
}

func TestExcessPoolDiscarded(t *testing.T) {
	roster := regulars(2, 2)
	out := DistributeWounds(roster, 10, "")

	if out.ModelsDestroyed != 2 {
		t.Errorf("ModelsDestroyed = %d, want 2", out.ModelsDestroyed)
	}
	if out.Discarded != 6 {
		t.Errorf("Discarded = %d, want 6", out.Discarded)
	}
	for _, m := range out.Roster {
		if m.CurrentWounds < 0 {
			t.Error("wounds must never go below zero")
		}
	}
}

func TestNeverRevivesDestroyedModel(t *testing.T) {
	roster := regulars(3, 3)
	roster[0].Destroyed = true
	roster[0].CurrentWounds = 0

	out := DistributeWounds(roster, 2, "")
	if !out.Roster[0].Destroyed || out.Roster[0].CurrentWounds != 0 {
		t.Error("destroyed model must stay destroyed")
	}
	for _, mut := range out.Mutations {
		if mut.Index == 0 {
			t.Error("destroyed model must not receive allocations")
		}
	}
}

func TestRoleOverrideRestrictsCandidates(t *testing.T) {
	roster := []state.ModelEntry{
		{Role: state.RoleRegular, CurrentWounds: 2, MaxWounds: 2},
		{Role: state.RoleHeavy, CurrentWounds: 3, MaxWounds: 3},
	}
	out := DistributeWounds(roster, 3, state.RoleHeavy)

	if !out.Roster[1].Destroyed {
		t.Error("heavy should absorb the restricted allocation")
	}
	if out.Roster[0].CurrentWounds != 2 {
		t.Error("regular should be untouched under heavy restriction")
	}
}

func TestRoleOverrideNoCandidatesIsNoOp(t *testing.T) {
	roster := regulars(3, 2)
	out := DistributeWounds(roster, 4, state.RoleLeader)

	if !out.NoOp {
		t.Fatal("expected no-op when no models match the role")
	}
	if out.Reason == "" {
		t.Error("no-op must carry an explanation")
	}
	if diff := cmp.Diff(roster, out.Roster); diff != "" {
		t.Errorf("roster changed on no-op (-want +got):\n%s", diff)
	}
}

func TestIdempotentReplay(t *testing.T) {
	start := []state.ModelEntry{
		{Role: state.RoleLeader, CurrentWounds: 4, MaxWounds: 4},
		{Role: state.RoleSpecial, CurrentWounds: 2, MaxWounds: 2},
		{Role: state.RoleRegular, CurrentWounds: 2, MaxWounds: 2},
		{Role: state.RoleRegular, CurrentWounds: 2, MaxWounds: 2},
		{Role: state.RoleHeavy, CurrentWounds: 3, MaxWounds: 3},
	}
	sequence := []int{3, 1, 4, 2}

	run := func() []state.ModelEntry {
		roster := append([]state.ModelEntry(nil), start...)
		for _, dmg := range sequence {
			roster = DistributeWounds(roster, dmg, "").Roster
		}
		return roster
	}

	first := run()
	second := run()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("replay diverged (-first +second):\n%s", diff)
	}
}

func TestRemoveModelsConsumesWholeModels(t *testing.T) {
	roster := []state.ModelEntry{
		{Role: state.RoleLeader, CurrentWounds: 3, MaxWounds: 3},
		{Role: state.RoleRegular, CurrentWounds: 2, MaxWounds: 2},
		{Role: state.RoleRegular, CurrentWounds: 2, MaxWounds: 2},
	}
	out := RemoveModels(roster, 2, "")

	if out.ModelsDestroyed != 2 {
		t.Errorf("ModelsDestroyed = %d, want 2", out.ModelsDestroyed)
	}
	if out.Roster[0].Destroyed {
		t.Error("leader should be removed last")
	}
	if !out.Roster[1].Destroyed || !out.Roster[2].Destroyed {
		t.Error("regular models should be removed first")
	}
	if out.WoundsApplied != 4 {
		t.Errorf("WoundsApplied = %d, want 4 (full remaining wounds)", out.WoundsApplied)
	}
}

func TestRemoveModelsRoleNoOp(t *testing.T) {
	out := RemoveModels(regulars(2, 2), 1, state.RoleSpecial)
	if !out.NoOp {
		t.Fatal("expected no-op for missing role")
	}
}

func TestInputRosterNeverMutated(t *testing.T) {
	roster := regulars(4, 3)
	want := append([]state.ModelEntry(nil), roster...)
	DistributeWounds(roster, 7, "")
	RemoveModels(roster, 2, "")
	if diff := cmp.Diff(want, roster); diff != "" {
		t.Errorf("input roster mutated (-want +got):\n%s", diff)
	}
}
