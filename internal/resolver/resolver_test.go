package resolver

import (
	"testing"
	"time"

	"warvox/internal/state"
	"warvox/internal/types"
)

func testSession() *state.SessionState {
	session := state.NewDemoSession("s1")
	session.Units["u-assault-intercessors"] = &state.UnitInstance{
		ID:             "u-assault-intercessors",
		Name:           "Assault Intercessor Squad",
		Side:           types.SidePlayer,
		Datasheet:      "Assault Intercessor Squad",
		StartingModels: 5,
		CurrentModels:  5,
		StartingWounds: 10,
		CurrentWounds:  10,
	}
	return session
}

func TestExactMatchCaseInsensitive(t *testing.T) {
	r := New(nil, nil)
	res := r.Resolve("warboss", types.SideOpponent, testSession())
	if res.Status != StatusResolved {
		t.Fatalf("status = %s, want resolved", res.Status)
	}
	if res.Unit.ID != "u-warboss" {
		t.Errorf("unit = %s, want u-warboss", res.Unit.ID)
	}
	if res.Strategy != "exact_name" {
		t.Errorf("strategy = %s, want exact_name", res.Strategy)
	}
}

func TestPartialSpokenReference(t *testing.T) {
	r := New(nil, nil)
	res := r.Resolve("my terminators", types.SidePlayer, testSession())
	if res.Status != StatusResolved {
		t.Fatalf("status = %s, want resolved", res.Status)
	}
	if res.Unit.ID != "u-terminators" {
		t.Errorf("unit = %s, want u-terminators", res.Unit.ID)
	}
}

func TestSideFilter(t *testing.T) {
	r := New(nil, nil)
	res := r.Resolve("warboss", types.SidePlayer, testSession())
	if res.Status != StatusNotFound {
		t.Fatalf("opponent unit must not resolve on player side, got %s", res.Status)
	}
}

func TestTemplateMatch(t *testing.T) {
	session := testSession()
	// Display name diverges from the datasheet name.
	session.Units["u-boyz"].Name = "Da Green Tide"
	r := New(nil, nil)
	res := r.Resolve("boyz", types.SideOpponent, session)
	if res.Status != StatusResolved {
		t.Fatalf("status = %s, want resolved", res.Status)
	}
	if res.Unit.ID != "u-boyz" {
		t.Errorf("unit = %s, want u-boyz", res.Unit.ID)
	}
	if res.Strategy != "template_name" {
		t.Errorf("strategy = %s, want template_name", res.Strategy)
	}
}

func TestAliasMatch(t *testing.T) {
	r := New(map[string]string{"termies": "Terminator Squad"}, nil)
	res := r.Resolve("termies", types.SidePlayer, testSession())
	if res.Status != StatusResolved || res.Unit.ID != "u-terminators" {
		t.Fatalf("alias resolution failed: %+v", res)
	}
	if res.Strategy != "alias" {
		t.Errorf("strategy = %s, want alias", res.Strategy)
	}
}

func TestNotFoundNeverGuesses(t *testing.T) {
	r := New(nil, nil)
	res := r.Resolve("land raider", types.SidePlayer, testSession())
	if res.Status != StatusNotFound {
		t.Fatalf("status = %s, want not_found", res.Status)
	}
	if res.Unit != nil {
		t.Error("not-found must not carry a unit")
	}
}

func TestTieBreakPrefersMostRecentlyReferenced(t *testing.T) {
	session := testSession()
	// "intercessors" partial-matches both intercessor squads.
	session.Units["u-assault-intercessors"].LastReferenced = time.Now()
	r := New(nil, nil)

	res := r.Resolve("intercessors", types.SidePlayer, session)
	if res.Status != StatusResolved {
		t.Fatalf("status = %s, want resolved", res.Status)
	}
	if res.Unit.ID != "u-assault-intercessors" {
		t.Errorf("unit = %s, want most recently referenced u-assault-intercessors", res.Unit.ID)
	}
	if len(res.Candidates) != 1 {
		t.Errorf("losing candidates = %d, want 1", len(res.Candidates))
	}
}

func TestTieBreakIsDeterministicWithoutHistory(t *testing.T) {
	r := New(nil, nil)
	var firstID string
	for i := 0; i < 10; i++ {
		res := r.Resolve("intercessors", types.SidePlayer, testSession())
		if res.Status != StatusResolved {
			t.Fatalf("status = %s, want resolved", res.Status)
		}
		if firstID == "" {
			firstID = res.Unit.ID
		} else if res.Unit.ID != firstID {
			t.Fatalf("tie-break not deterministic: %s then %s", firstID, res.Unit.ID)
		}
	}
	// Longest name wins when nothing was ever referenced.
	if firstID != "u-assault-intercessors" {
		t.Errorf("unit = %s, want longest-name u-assault-intercessors", firstID)
	}
}

func TestResolveStrictReportsAmbiguity(t *testing.T) {
	r := New(nil, nil)
	res := r.ResolveStrict("intercessors", types.SidePlayer, testSession())
	if res.Status != StatusAmbiguous {
		t.Fatalf("status = %s, want ambiguous", res.Status)
	}
	if len(res.Candidates) != 2 {
		t.Errorf("candidates = %d, want 2", len(res.Candidates))
	}
}

func TestEmptyReference(t *testing.T) {
	r := New(nil, nil)
	if res := r.Resolve("  ", types.SidePlayer, testSession()); res.Status != StatusNotFound {
		t.Errorf("blank reference should be not_found, got %s", res.Status)
	}
}
