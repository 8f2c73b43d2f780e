// Package types holds the leaf types shared across the warvox pipeline.
// It has no dependencies on other internal packages so that every layer
// (trigger, classifier, assembler, dispatcher) can exchange values without
// import cycles.
package types

import (
	"strings"
	"time"
)

// Side identifies which player owns a unit or resource.
type Side string

const (
	SidePlayer   Side = "player"
	SideOpponent Side = "opponent"
)

// ParseSide normalizes a spoken/LLM-provided side string.
// Unrecognized values default to the player side.
func ParseSide(s string) Side {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "opponent", "enemy", "their", "theirs":
		return SideOpponent
	default:
		return SidePlayer
	}
}

// Phase is one of the battle-round phases, in play order.
type Phase string

const (
	PhaseCommand  Phase = "command"
	PhaseMovement Phase = "movement"
	PhaseShooting Phase = "shooting"
	PhaseCharge   Phase = "charge"
	PhaseFight    Phase = "fight"
)

// PhaseOrder is the canonical progression within a turn.
var PhaseOrder = []Phase{PhaseCommand, PhaseMovement, PhaseShooting, PhaseCharge, PhaseFight}

// PhaseIndex returns the position of p in PhaseOrder, or -1 if unknown.
func PhaseIndex(p Phase) int {
	for i, candidate := range PhaseOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}

// ParsePhase normalizes a spoken/LLM-provided phase name.
// Returns "" when the value does not name a known phase.
func ParsePhase(s string) Phase {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.TrimSuffix(normalized, " phase")
	switch normalized {
	case "command":
		return PhaseCommand
	case "movement", "move":
		return PhaseMovement
	case "shooting", "shoot":
		return PhaseShooting
	case "charge":
		return PhaseCharge
	case "fight", "combat", "melee":
		return PhaseFight
	}
	return ""
}

// Fragment is one finalized unit of transcribed speech.
type Fragment struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Seq       int       `json:"seq"`
}

// TriggerKind identifies which evaluator check promoted a fragment batch.
type TriggerKind string

const (
	TriggerNone            TriggerKind = ""
	TriggerPriorityKeyword TriggerKind = "priority_keyword"
	TriggerActionComplete  TriggerKind = "action_complete"
	TriggerLongSilence     TriggerKind = "long_silence"
	TriggerAccumulation    TriggerKind = "accumulation"
	TriggerSafetyNet       TriggerKind = "safety_net"
)

// TriggerDecision is the evaluator's verdict for one incoming fragment.
// When Triggered is true, Fragments holds the flushed buffer (including
// the fragment that caused the trigger).
type TriggerDecision struct {
	Triggered  bool
	Kind       TriggerKind
	Confidence float64
	Timestamp  time.Time
	Fragments  []Fragment
}

// Intent is the coarse action category produced by the classifier.
type Intent string

const (
	IntentSimpleState   Intent = "SIMPLE_STATE"
	IntentUnitOperation Intent = "UNIT_OPERATION"
	IntentStrategic     Intent = "STRATEGIC"
	IntentUnclear       Intent = "UNCLEAR"
)

// ContextTier sizes the state snapshot assembled for an analysis.
type ContextTier string

const (
	TierMinimal ContextTier = "minimal"
	TierMedium  ContextTier = "medium"
	TierFull    ContextTier = "full"
)

// IntentClassification is the combined relevance + intent verdict for one
// analysis pass. One external-model call produces it; on failure callers
// substitute FallbackClassification.
type IntentClassification struct {
	IsGameRelated bool        `json:"is_game_related"`
	Intent        Intent      `json:"intent"`
	ContextTier   ContextTier `json:"context_tier"`
	Confidence    float64     `json:"confidence"`
	Reasoning     string      `json:"reasoning"`
}

// FallbackClassification is used when the classification call fails or
// times out. It fails toward more context so the utterance is never
// silently dropped.
func FallbackClassification() IntentClassification {
	return IntentClassification{
		IsGameRelated: true,
		Intent:        IntentUnclear,
		ContextTier:   TierFull,
		Confidence:    0,
	}
}

// Normalize repairs a classification parsed from model output: unknown
// intents become UNCLEAR, UNCLEAR always forces the full tier, and the
// confidence is clamped to [0,1].
func (c IntentClassification) Normalize() IntentClassification {
	switch c.Intent {
	case IntentSimpleState, IntentUnitOperation, IntentStrategic:
	default:
		c.Intent = IntentUnclear
	}
	switch c.ContextTier {
	case TierMinimal, TierMedium, TierFull:
	default:
		c.ContextTier = TierFull
	}
	if c.Intent == IntentUnclear {
		c.ContextTier = TierFull
	}
	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}
	return c
}
