package types

import "testing"

func TestPhaseIndexOrder(t *testing.T) {
	for i, p := range PhaseOrder {
		if got := PhaseIndex(p); got != i {
			t.Errorf("PhaseIndex(%s) = %d, want %d", p, got, i)
		}
	}
	if got := PhaseIndex(Phase("psychic")); got != -1 {
		t.Errorf("PhaseIndex(unknown) = %d, want -1", got)
	}
}

func TestParsePhase(t *testing.T) {
	cases := []struct {
		in   string
		want Phase
	}{
		{"Shooting", PhaseShooting},
		{"shooting phase", PhaseShooting},
		{"  Move ", PhaseMovement},
		{"melee", PhaseFight},
		{"deployment", ""},
	}
	for _, tc := range cases {
		if got := ParsePhase(tc.in); got != tc.want {
			t.Errorf("ParsePhase(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeForcesFullTierForUnclear(t *testing.T) {
	c := IntentClassification{Intent: IntentUnclear, ContextTier: TierMinimal, Confidence: 0.4}
	got := c.Normalize()
	if got.ContextTier != TierFull {
		t.Errorf("UNCLEAR tier = %s, want full", got.ContextTier)
	}
}

func TestNormalizeRepairsGarbage(t *testing.T) {
	c := IntentClassification{Intent: "BANANA", ContextTier: "huge", Confidence: 3.2}
	got := c.Normalize()
	if got.Intent != IntentUnclear {
		t.Errorf("intent = %s, want UNCLEAR", got.Intent)
	}
	if got.ContextTier != TierFull {
		t.Errorf("tier = %s, want full", got.ContextTier)
	}
	if got.Confidence != 1 {
		t.Errorf("confidence = %f, want clamped to 1", got.Confidence)
	}
}

func TestFallbackClassification(t *testing.T) {
	fb := FallbackClassification()
	if !fb.IsGameRelated || fb.Intent != IntentUnclear || fb.ContextTier != TierFull || fb.Confidence != 0 {
		t.Errorf("unexpected fallback: %+v", fb)
	}
}

func TestParseSide(t *testing.T) {
	if got := ParseSide("Enemy"); got != SideOpponent {
		t.Errorf("ParseSide(Enemy) = %s", got)
	}
	if got := ParseSide("mine"); got != SidePlayer {
		t.Errorf("ParseSide(mine) = %s", got)
	}
}
