// Package dispatch owns the operation catalog exposed to the generative
// model and executes the operations it proposes. All operations in one
// batch run concurrently; they mutate disjoint or commutative state and
// never assume a sibling has committed.
package dispatch

import (
	"warvox/internal/types"
)

// Kind is the closed set of callable operations. Adding one means adding
// a catalog entry, a handler table entry, and (for state-changing kinds)
// a timeline record; the dispatcher rejects names outside this set.
type Kind string

const (
	KindSetPhase         Kind = "set_phase"
	KindAdvanceRound     Kind = "advance_round"
	KindSetTurn          Kind = "set_turn"
	KindAdjustCP         Kind = "adjust_cp"
	KindAdjustVP         Kind = "adjust_vp"
	KindLogStratagem     Kind = "log_stratagem"
	KindSetObjective     Kind = "set_objective_control"
	KindRecordWounds     Kind = "record_wounds"
	KindRecordModelsLost Kind = "record_models_lost"
	KindRestoreWounds    Kind = "restore_wounds"
	KindDestroyUnit      Kind = "destroy_unit"
	KindRestoreUnit      Kind = "restore_unit"
	KindSetBattleshock   Kind = "set_battleshock"
	KindAddEffect        Kind = "add_unit_effect"
	KindRemoveEffect     Kind = "remove_unit_effect"
	KindLogUnitAction    Kind = "log_unit_action"
	KindLogCombat        Kind = "log_combat"
	KindGetAdvice        Kind = "get_tactical_advice"
)

// stateChanging marks the kinds that append a timeline record.
var stateChanging = map[Kind]bool{
	KindSetPhase: true, KindAdvanceRound: true, KindSetTurn: true,
	KindAdjustCP: true, KindAdjustVP: true, KindLogStratagem: true,
	KindSetObjective: true, KindRecordWounds: true, KindRecordModelsLost: true,
	KindRestoreWounds: true, KindDestroyUnit: true, KindRestoreUnit: true,
	KindSetBattleshock: true, KindAddEffect: true, KindRemoveEffect: true,
	KindLogUnitAction: true, KindLogCombat: true,
}

// IsStateChanging reports whether the kind mutates game state.
func IsStateChanging(k Kind) bool { return stateChanging[k] }

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

func enumProp(desc string, values ...string) map[string]any {
	enum := make([]any, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return map[string]any{"type": "string", "description": desc, "enum": enum}
}

func schema(required []string, properties map[string]any) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

var sideProp = enumProp("which player: player (the app user) or opponent", "player", "opponent")
var roleProp = enumProp("restrict damage to models of this role", "leader", "special", "heavy", "regular")

// catalog is the full tool catalog sent with every dispatch call.
var catalog = []types.ToolDefinition{
	{
		Name:        string(KindSetPhase),
		Description: "Set the current game phase (command, movement, shooting, charge, fight).",
		InputSchema: schema([]string{"phase"}, map[string]any{
			"phase": enumProp("the phase being entered", "command", "movement", "shooting", "charge", "fight"),
		}),
	},
	{
		Name:        string(KindAdvanceRound),
		Description: "Advance to the next battle round, or to an explicitly stated round number.",
		InputSchema: schema(nil, map[string]any{
			"round": prop("integer", "target round; omit to advance by one"),
		}),
	},
	{
		Name:        string(KindSetTurn),
		Description: "Record whose turn it is now.",
		InputSchema: schema([]string{"side"}, map[string]any{"side": sideProp}),
	},
	{
		Name:        string(KindAdjustCP),
		Description: "Adjust a side's command points. Positive for gains, negative for spends.",
		InputSchema: schema([]string{"side", "amount"}, map[string]any{
			"side":   sideProp,
			"amount": prop("integer", "signed CP change"),
			"reason": prop("string", "what the CP was gained from or spent on"),
		}),
	},
	{
		Name:        string(KindAdjustVP),
		Description: "Adjust a side's victory points. Positive for scoring, negative for corrections.",
		InputSchema: schema([]string{"side", "amount"}, map[string]any{
			"side":   sideProp,
			"amount": prop("integer", "signed VP change"),
			"reason": prop("string", "what scored"),
		}),
	},
	{
		Name:        string(KindLogStratagem),
		Description: "Log a stratagem being played, spending its CP cost.",
		InputSchema: schema([]string{"name", "side", "cost"}, map[string]any{
			"name": prop("string", "stratagem name as spoken"),
			"side": sideProp,
			"cost": prop("integer", "CP cost stated or known"),
		}),
	},
	{
		Name:        string(KindSetObjective),
		Description: "Record which side controls a numbered objective marker.",
		InputSchema: schema([]string{"objective", "side"}, map[string]any{
			"objective": prop("integer", "objective marker number"),
			"side":      sideProp,
		}),
	},
	{
		Name:        string(KindRecordWounds),
		Description: "Record wounds lost by a unit. Damage is allocated across the unit's models automatically.",
		InputSchema: schema([]string{"unit", "side", "amount"}, map[string]any{
			"unit":   prop("string", "unit reference as spoken"),
			"side":   sideProp,
			"amount": prop("integer", "wounds lost"),
			"role":   roleProp,
		}),
	},
	{
		Name:        string(KindRecordModelsLost),
		Description: "Record whole models removed from a unit.",
		InputSchema: schema([]string{"unit", "side", "count"}, map[string]any{
			"unit":  prop("string", "unit reference as spoken"),
			"side":  sideProp,
			"count": prop("integer", "models removed"),
			"role":  roleProp,
		}),
	},
	{
		Name:        string(KindRestoreWounds),
		Description: "Restore wounds to a unit (healing or a correction of over-recorded damage).",
		InputSchema: schema([]string{"unit", "side", "amount"}, map[string]any{
			"unit":   prop("string", "unit reference as spoken"),
			"side":   sideProp,
			"amount": prop("integer", "wounds restored"),
		}),
	},
	{
		Name:        string(KindDestroyUnit),
		Description: "Mark a unit as completely destroyed.",
		InputSchema: schema([]string{"unit", "side"}, map[string]any{
			"unit": prop("string", "unit reference as spoken"),
			"side": sideProp,
		}),
	},
	{
		Name:        string(KindRestoreUnit),
		Description: "Undo an accidental destruction, restoring the unit to full strength.",
		InputSchema: schema([]string{"unit", "side"}, map[string]any{
			"unit": prop("string", "unit reference as spoken"),
			"side": sideProp,
		}),
	},
	{
		Name:        string(KindSetBattleshock),
		Description: "Set or clear a unit's battle-shocked status.",
		InputSchema: schema([]string{"unit", "side"}, map[string]any{
			"unit":    prop("string", "unit reference as spoken"),
			"side":    sideProp,
			"shocked": prop("boolean", "true when the unit failed its battle-shock test; defaults to true"),
		}),
	},
	{
		Name:        string(KindAddEffect),
		Description: "Attach a named ongoing effect to a unit (stratagem buff, debuff, aura).",
		InputSchema: schema([]string{"unit", "side", "effect"}, map[string]any{
			"unit":   prop("string", "unit reference as spoken"),
			"side":   sideProp,
			"effect": prop("string", "effect name"),
		}),
	},
	{
		Name:        string(KindRemoveEffect),
		Description: "Remove a named ongoing effect from a unit.",
		InputSchema: schema([]string{"unit", "side", "effect"}, map[string]any{
			"unit":   prop("string", "unit reference as spoken"),
			"side":   sideProp,
			"effect": prop("string", "effect name"),
		}),
	},
	{
		Name:        string(KindLogUnitAction),
		Description: "Log a unit action that changes no tracked numbers (advanced, fell back, deep struck).",
		InputSchema: schema([]string{"unit", "side", "action"}, map[string]any{
			"unit":   prop("string", "unit reference as spoken"),
			"side":   sideProp,
			"action": prop("string", "what the unit did"),
		}),
	},
	{
		Name:        string(KindLogCombat),
		Description: "Log a combat exchange between two units.",
		InputSchema: schema([]string{"attacker", "defender", "summary"}, map[string]any{
			"attacker": prop("string", "attacking unit as spoken"),
			"defender": prop("string", "defending unit as spoken"),
			"summary":  prop("string", "one-line summary of the exchange"),
		}),
	},
	{
		Name:        string(KindGetAdvice),
		Description: "Answer a tactical question using the current game state. Read-only.",
		InputSchema: schema([]string{"question"}, map[string]any{
			"question": prop("string", "the question asked"),
		}),
	},
}

// Catalog returns the tool definitions for the dispatch call.
func Catalog() []types.ToolDefinition {
	return catalog
}
