package dispatch

import (
	"context"
	"fmt"
	"time"

	"warvox/internal/resolver"
	"warvox/internal/state"
	"warvox/internal/types"
	"warvox/internal/validation"
	"warvox/internal/wounds"
)

// OperationResult is the outcome of executing one proposed operation.
// Success reports whether the mutation (or lookup) took effect; the
// validation finding is advisory and present even on successful ops.
type OperationResult struct {
	Kind       Kind               `json:"kind"`
	CallID     string             `json:"call_id"`
	Success    bool               `json:"success"`
	Message    string             `json:"message"`
	Data       map[string]any     `json:"data,omitempty"`
	Validation *validation.Result `json:"validation,omitempty"`
}

func failure(format string, args ...any) OperationResult {
	return OperationResult{Success: false, Message: fmt.Sprintf(format, args...)}
}

func success(format string, args ...any) OperationResult {
	return OperationResult{Success: true, Message: fmt.Sprintf(format, args...)}
}

type handlerFunc func(d *Dispatcher, ctx context.Context, sessionID string, args map[string]any) OperationResult

// handlers maps every catalog kind to its executor. Kinds absent here
// fail dispatch at init, not at runtime.
var handlers = map[Kind]handlerFunc{
	KindSetPhase:         (*Dispatcher).handleSetPhase,
	KindAdvanceRound:     (*Dispatcher).handleAdvanceRound,
	KindSetTurn:          (*Dispatcher).handleSetTurn,
	KindAdjustCP:         (*Dispatcher).handleAdjustCP,
	KindAdjustVP:         (*Dispatcher).handleAdjustVP,
	KindLogStratagem:     (*Dispatcher).handleLogStratagem,
	KindSetObjective:     (*Dispatcher).handleSetObjective,
	KindRecordWounds:     (*Dispatcher).handleRecordWounds,
	KindRecordModelsLost: (*Dispatcher).handleRecordModelsLost,
	KindRestoreWounds:    (*Dispatcher).handleRestoreWounds,
	KindDestroyUnit:      (*Dispatcher).handleDestroyUnit,
	KindRestoreUnit:      (*Dispatcher).handleRestoreUnit,
	KindSetBattleshock:   (*Dispatcher).handleSetBattleshock,
	KindAddEffect:        (*Dispatcher).handleAddEffect,
	KindRemoveEffect:     (*Dispatcher).handleRemoveEffect,
	KindLogUnitAction:    (*Dispatcher).handleLogUnitAction,
	KindLogCombat:        (*Dispatcher).handleLogCombat,
	KindGetAdvice:        (*Dispatcher).handleGetAdvice,
}

func init() {
	for _, def := range catalog {
		if _, ok := handlers[Kind(def.Name)]; !ok {
			panic("dispatch: catalog entry without handler: " + def.Name)
		}
	}
}

// resolveUnit maps a spoken reference to a unit and stamps its
// LastReferenced so later ambiguous references prefer it.
func (d *Dispatcher) resolveUnit(ctx context.Context, sessionID, reference string, side types.Side) (*state.UnitInstance, error) {
	snapshot, err := d.store.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	res := d.resolver.Resolve(reference, side, snapshot)
	if res.Status != resolver.StatusResolved {
		return nil, fmt.Errorf("no unit matches %q on side %s", reference, side)
	}
	now := d.clock()
	return d.store.UpdateUnit(ctx, sessionID, res.Unit.ID, func(u *state.UnitInstance) error {
		u.LastReferenced = now
		return nil
	})
}

func (d *Dispatcher) handleSetPhase(ctx context.Context, sessionID string, args map[string]any) OperationResult {
	phase, err := phaseArg(args)
	if err != nil {
		return failure("set_phase: %v", err)
	}
	previous, err := d.store.SetPhase(ctx, sessionID, phase)
	if err != nil {
		return failure("set_phase: %v", err)
	}
	check := d.validator.CheckPhaseTransition(previous, phase)
	res := success("phase set to %s", phase)
	res.Data = map[string]any{"previous": string(previous), "phase": string(phase)}
	res.Validation = &check
	return res
}

func (d *Dispatcher) handleAdvanceRound(ctx context.Context, sessionID string, args map[string]any) OperationResult {
	target, err := optIntArg(args, "round", 0)
	if err != nil {
		return failure("advance_round: %v", err)
	}
	if target == 0 {
		snapshot, err := d.store.Snapshot(ctx, sessionID)
		if err != nil {
			return failure("advance_round: %v", err)
		}
		target = snapshot.Round + 1
	}
	previous, err := d.store.SetRound(ctx, sessionID, target)
	if err != nil {
		return failure("advance_round: %v", err)
	}
	check := d.validator.CheckRoundAdvance(previous, target)
	res := success("round set to %d", target)
	res.Data = map[string]any{"previous": previous, "round": target}
	res.Validation = &check
	return res
}

func (d *Dispatcher) handleSetTurn(ctx context.Context, sessionID string, args map[string]any) OperationResult {
	side, err := sideArg(args)
	if err != nil {
		return failure("set_turn: %v", err)
	}
	if err := d.store.SetTurn(ctx, sessionID, side); err != nil {
		return failure("set_turn: %v", err)
	}
	res := success("%s turn", side)
	res.Data = map[string]any{"side": string(side)}
	return res
}

func (d *Dispatcher) handleAdjustCP(ctx context.Context, sessionID string, args map[string]any) OperationResult {
	side, err := sideArg(args)
	if err != nil {
		return failure("adjust_cp: %v", err)
	}
	amount, err := intArg(args, "amount")
	if err != nil {
		return failure("adjust_cp: %v", err)
	}
	before, after, err := d.store.AdjustCP(ctx, sessionID, side, amount)
	if err != nil {
		return failure("adjust_cp: %v", err)
	}
	check := d.validator.CheckCPChange(amount, before)
	res := success("%s CP %d -> %d", side, before, after)
	res.Data = map[string]any{
		"side": string(side), "amount": amount,
		"before": before, "after": after,
		"reason": optStringArg(args, "reason"),
	}
	res.Validation = &check
	return res
}

func (d *Dispatcher) handleAdjustVP(ctx context.Context, sessionID string, args map[string]any) OperationResult {
	side, err := sideArg(args)
	if err != nil {
		return failure("adjust_vp: %v", err)
	}
	amount, err := intArg(args, "amount")
	if err != nil {
		return failure("adjust_vp: %v", err)
	}
	before, after, err := d.store.AdjustVP(ctx, sessionID, side, amount)
	if err != nil {
		return failure("adjust_vp: %v", err)
	}
	res := success("%s VP %d -> %d", side, before, after)
	res.Data = map[string]any{
		"side": string(side), "amount": amount,
		"before": before, "after": after,
		"reason": optStringArg(args, "reason"),
	}
	return res
}

func (d *Dispatcher) handleLogStratagem(ctx context.Context, sessionID string, args map[string]any) OperationResult {
	name, err := stringArg(args, "name")
	if err != nil {
		return failure("log_stratagem: %v", err)
	}
	side, err := sideArg(args)
	if err != nil {
		return failure("log_stratagem: %v", err)
	}
	cost, err := optIntArg(args, "cost", -1)
	if err != nil {
		return failure("log_stratagem: %v", err)
	}

	snapshot, err := d.store.Snapshot(ctx, sessionID)
	if err != nil {
		return failure("log_stratagem: %v", err)
	}
	if cost < 0 {
		cost = catalogCost(snapshot, side, name)
	}

	check := d.validator.CheckStratagem(name, side, cost, snapshot.CP[side], snapshot.UsedStratagems)

	if _, _, err := d.store.AdjustCP(ctx, sessionID, side, -cost); err != nil {
		return failure("log_stratagem: %v", err)
	}
	use := state.StratagemUse{
		Name:   name,
		Side:   side,
		Cost:   cost,
		Phase:  snapshot.Phase,
		Round:  snapshot.Round,
		UsedAt: d.clock(),
	}
	if err := d.store.RecordStratagem(ctx, sessionID, use); err != nil {
		return failure("log_stratagem: %v", err)
	}
	res := success("%s played %s for %d CP", side, name, cost)
	res.Data = map[string]any{"name": name, "side": string(side), "cost": cost}
	res.Validation = &check
	return res
}

// catalogCost looks up the cost of a named stratagem in the side's
// catalog; 1 CP when the name is unknown, the most common cost.
func catalogCost(snapshot *state.SessionState, side types.Side, name string) int {
	for _, strat := range snapshot.Stratagems[side] {
		if strat.Name == name {
			return strat.Cost
		}
	}
	return 1
}

func (d *Dispatcher) handleSetObjective(ctx context.Context, sessionID string, args map[string]any) OperationResult {
	objective, err := intArg(args, "objective")
	if err != nil {
		return failure("set_objective_control: %v", err)
	}
	side, err := sideArg(args)
	if err != nil {
		return failure("set_objective_control: %v", err)
	}
	if err := d.store.SetObjective(ctx, sessionID, objective, side); err != nil {
		return failure("set_objective_control: %v", err)
	}
	res := success("objective %d held by %s", objective, side)
	res.Data = map[string]any{"objective": objective, "side": string(side)}
	return res
}

func (d *Dispatcher) handleRecordWounds(ctx context.Context, sessionID string, args map[string]any) OperationResult {
	reference, err := stringArg(args, "unit")
	if err != nil {
		return failure("record_wounds: %v", err)
	}
	side, err := sideArg(args)
	if err != nil {
		return failure("record_wounds: %v", err)
	}
	amount, err := intArg(args, "amount")
	if err != nil {
		return failure("record_wounds: %v", err)
	}
	role, err := roleArg(args)
	if err != nil {
		return failure("record_wounds: %v", err)
	}
	unit, err := d.resolveUnit(ctx, sessionID, reference, side)
	if err != nil {
		return failure("record_wounds: %v", err)
	}

	var outcome wounds.Outcome
	updated, err := d.store.UpdateUnit(ctx, sessionID, unit.ID, func(u *state.UnitInstance) error {
		if u.HasRoster() {
			outcome = wounds.DistributeWounds(u.Models, amount, role)
			if !outcome.NoOp {
				u.Models = outcome.Roster
			}
			return nil
		}
		u.CurrentWounds -= amount
		outcome = wounds.Outcome{
			WoundsApplied: amount,
			Summary:       fmt.Sprintf("%d wounds recorded", amount),
		}
		return nil
	})
	if err != nil {
		return failure("record_wounds: %v", err)
	}
	if outcome.NoOp {
		res := success("%s: %s", unit.Name, outcome.Reason)
		res.Data = map[string]any{"unit_id": unit.ID, "no_op": true}
		return res
	}
	res := success("%s: %s", unit.Name, outcome.Summary)
	res.Data = map[string]any{
		"unit_id":          unit.ID,
		"wounds_applied":   outcome.WoundsApplied,
		"models_destroyed": outcome.ModelsDestroyed,
		"unit_destroyed":   updated.Destroyed,
	}
	if updated.Destroyed {
		res.Message += "; unit destroyed"
	}
	return res
}

func (d *Dispatcher) handleRecordModelsLost(ctx context.Context, sessionID string, args map[string]any) OperationResult {
	reference, err := stringArg(args, "unit")
	if err != nil {
		return failure("record_models_lost: %v", err)
	}
	side, err := sideArg(args)
	if err != nil {
		return failure("record_models_lost: %v", err)
	}
	count, err := intArg(args, "count")
	if err != nil {
		return failure("record_models_lost: %v", err)
	}
	role, err := roleArg(args)
	if err != nil {
		return failure("record_models_lost: %v", err)
	}
	unit, err := d.resolveUnit(ctx, sessionID, reference, side)
	if err != nil {
		return failure("record_models_lost: %v", err)
	}

	var outcome wounds.Outcome
	updated, err := d.store.UpdateUnit(ctx, sessionID, unit.ID, func(u *state.UnitInstance) error {
		if u.HasRoster() {
			outcome = wounds.RemoveModels(u.Models, count, role)
			if !outcome.NoOp {
				u.Models = outcome.Roster
			}
			return nil
		}
		perModel := 1
		if u.StartingModels > 0 {
			perModel = u.StartingWounds / u.StartingModels
		}
		u.CurrentModels -= count
		u.CurrentWounds -= count * perModel
		outcome = wounds.Outcome{
			ModelsDestroyed: count,
			Summary:         fmt.Sprintf("%d models removed", count),
		}
		return nil
	})
	if err != nil {
		return failure("record_models_lost: %v", err)
	}
	if outcome.NoOp {
		res := success("%s: %s", unit.Name, outcome.Reason)
		res.Data = map[string]any{"unit_id": unit.ID, "no_op": true}
		return res
	}
	res := success("%s: %s", unit.Name, outcome.Summary)
	res.Data = map[string]any{
		"unit_id":          unit.ID,
		"models_destroyed": outcome.ModelsDestroyed,
		"unit_destroyed":   updated.Destroyed,
	}
	if updated.Destroyed {
		res.Message += "; unit destroyed"
	}
	return res
}

func (d *Dispatcher) handleRestoreWounds(ctx context.Context, sessionID string, args map[string]any) OperationResult {
	reference, err := stringArg(args, "unit")
	if err != nil {
		return failure("restore_wounds: %v", err)
	}
	side, err := sideArg(args)
	if err != nil {
		return failure("restore_wounds: %v", err)
	}
	amount, err := intArg(args, "amount")
	if err != nil {
		return failure("restore_wounds: %v", err)
	}
	unit, err := d.resolveUnit(ctx, sessionID, reference, side)
	if err != nil {
		return failure("restore_wounds: %v", err)
	}

	restored := 0
	updated, err := d.store.UpdateUnit(ctx, sessionID, unit.ID, func(u *state.UnitInstance) error {
		if !u.HasRoster() {
			before := u.CurrentWounds
			u.CurrentWounds += amount
			if u.CurrentWounds > u.StartingWounds {
				u.CurrentWounds = u.StartingWounds
			}
			restored = u.CurrentWounds - before
			return nil
		}
		// Heal surviving wounded models most-protected first; destroyed
		// models stay destroyed (use restore_unit to undo a destruction).
		pool := amount
		for pass := 3; pass >= 0 && pool > 0; pass-- {
			for i := range u.Models {
				m := &u.Models[i]
				if m.Destroyed || state.RolePriority(m.Role) != pass {
					continue
				}
				heal := m.MaxWounds - m.CurrentWounds
				if heal > pool {
					heal = pool
				}
				m.CurrentWounds += heal
				pool -= heal
				restored += heal
				if pool == 0 {
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return failure("restore_wounds: %v", err)
	}
	res := success("%s: %d wounds restored", updated.Name, restored)
	res.Data = map[string]any{"unit_id": updated.ID, "restored": restored}
	return res
}

func (d *Dispatcher) handleDestroyUnit(ctx context.Context, sessionID string, args map[string]any) OperationResult {
	reference, err := stringArg(args, "unit")
	if err != nil {
		return failure("destroy_unit: %v", err)
	}
	side, err := sideArg(args)
	if err != nil {
		return failure("destroy_unit: %v", err)
	}
	unit, err := d.resolveUnit(ctx, sessionID, reference, side)
	if err != nil {
		return failure("destroy_unit: %v", err)
	}
	updated, err := d.store.UpdateUnit(ctx, sessionID, unit.ID, func(u *state.UnitInstance) error {
		u.Destroyed = true
		return nil
	})
	if err != nil {
		return failure("destroy_unit: %v", err)
	}
	res := success("%s destroyed", updated.Name)
	res.Data = map[string]any{"unit_id": updated.ID}
	return res
}

func (d *Dispatcher) handleRestoreUnit(ctx context.Context, sessionID string, args map[string]any) OperationResult {
	reference, err := stringArg(args, "unit")
	if err != nil {
		return failure("restore_unit: %v", err)
	}
	side, err := sideArg(args)
	if err != nil {
		return failure("restore_unit: %v", err)
	}
	unit, err := d.resolveUnit(ctx, sessionID, reference, side)
	if err != nil {
		return failure("restore_unit: %v", err)
	}
	// Pre-destruction wounds are not tracked, so restoration means full
	// strength.
	updated, err := d.store.UpdateUnit(ctx, sessionID, unit.ID, func(u *state.UnitInstance) error {
		u.Destroyed = false
		u.CurrentModels = u.StartingModels
		u.CurrentWounds = u.StartingWounds
		for i := range u.Models {
			u.Models[i].Destroyed = false
			u.Models[i].CurrentWounds = u.Models[i].MaxWounds
		}
		return nil
	})
	if err != nil {
		return failure("restore_unit: %v", err)
	}
	res := success("%s restored to full strength", updated.Name)
	res.Data = map[string]any{"unit_id": updated.ID}
	return res
}

func (d *Dispatcher) handleSetBattleshock(ctx context.Context, sessionID string, args map[string]any) OperationResult {
	reference, err := stringArg(args, "unit")
	if err != nil {
		return failure("set_battleshock: %v", err)
	}
	side, err := sideArg(args)
	if err != nil {
		return failure("set_battleshock: %v", err)
	}
	shocked, err := boolArg(args, "shocked", true)
	if err != nil {
		return failure("set_battleshock: %v", err)
	}
	unit, err := d.resolveUnit(ctx, sessionID, reference, side)
	if err != nil {
		return failure("set_battleshock: %v", err)
	}
	updated, err := d.store.UpdateUnit(ctx, sessionID, unit.ID, func(u *state.UnitInstance) error {
		u.Battleshocked = shocked
		return nil
	})
	if err != nil {
		return failure("set_battleshock: %v", err)
	}
	verb := "battle-shocked"
	if !shocked {
		verb = "recovered from battle-shock"
	}
	res := success("%s %s", updated.Name, verb)
	res.Data = map[string]any{"unit_id": updated.ID, "shocked": shocked}
	return res
}

func (d *Dispatcher) handleAddEffect(ctx context.Context, sessionID string, args map[string]any) OperationResult {
	return d.handleEffect(ctx, sessionID, args, true)
}

func (d *Dispatcher) handleRemoveEffect(ctx context.Context, sessionID string, args map[string]any) OperationResult {
	return d.handleEffect(ctx, sessionID, args, false)
}

func (d *Dispatcher) handleEffect(ctx context.Context, sessionID string, args map[string]any, add bool) OperationResult {
	op := "remove_unit_effect"
	if add {
		op = "add_unit_effect"
	}
	reference, err := stringArg(args, "unit")
	if err != nil {
		return failure("%s: %v", op, err)
	}
	side, err := sideArg(args)
	if err != nil {
		return failure("%s: %v", op, err)
	}
	effect, err := stringArg(args, "effect")
	if err != nil {
		return failure("%s: %v", op, err)
	}
	unit, err := d.resolveUnit(ctx, sessionID, reference, side)
	if err != nil {
		return failure("%s: %v", op, err)
	}
	updated, err := d.store.UpdateUnit(ctx, sessionID, unit.ID, func(u *state.UnitInstance) error {
		if add {
			if !u.HasEffect(effect) {
				u.Effects = append(u.Effects, effect)
			}
			return nil
		}
		kept := u.Effects[:0]
		for _, e := range u.Effects {
			if e != effect {
				kept = append(kept, e)
			}
		}
		u.Effects = kept
		return nil
	})
	if err != nil {
		return failure("%s: %v", op, err)
	}
	verb := "removed from"
	if add {
		verb = "active on"
	}
	res := success("%s %s %s", effect, verb, updated.Name)
	res.Data = map[string]any{"unit_id": updated.ID, "effect": effect}
	return res
}

func (d *Dispatcher) handleLogUnitAction(ctx context.Context, sessionID string, args map[string]any) OperationResult {
	reference, err := stringArg(args, "unit")
	if err != nil {
		return failure("log_unit_action: %v", err)
	}
	side, err := sideArg(args)
	if err != nil {
		return failure("log_unit_action: %v", err)
	}
	action, err := stringArg(args, "action")
	if err != nil {
		return failure("log_unit_action: %v", err)
	}
	unit, err := d.resolveUnit(ctx, sessionID, reference, side)
	if err != nil {
		return failure("log_unit_action: %v", err)
	}
	res := success("%s %s", unit.Name, action)
	res.Data = map[string]any{"unit_id": unit.ID, "action": action}
	return res
}

func (d *Dispatcher) handleLogCombat(ctx context.Context, sessionID string, args map[string]any) OperationResult {
	attackerRef, err := stringArg(args, "attacker")
	if err != nil {
		return failure("log_combat: %v", err)
	}
	defenderRef, err := stringArg(args, "defender")
	if err != nil {
		return failure("log_combat: %v", err)
	}
	summary, err := stringArg(args, "summary")
	if err != nil {
		return failure("log_combat: %v", err)
	}

	// Combatants may be on either side; resolve without a side filter and
	// fall back to the spoken reference when no unit matches.
	attacker := attackerRef
	if unit, err := d.resolveUnit(ctx, sessionID, attackerRef, ""); err == nil {
		attacker = unit.Name
	}
	defender := defenderRef
	if unit, err := d.resolveUnit(ctx, sessionID, defenderRef, ""); err == nil {
		defender = unit.Name
	}

	log := state.CombatLog{
		Attacker: attacker,
		Defender: defender,
		Summary:  summary,
		LoggedAt: d.clock(),
	}
	if err := d.store.RecordCombat(ctx, sessionID, log); err != nil {
		return failure("log_combat: %v", err)
	}
	res := success("%s vs %s: %s", attacker, defender, summary)
	res.Data = map[string]any{"attacker": attacker, "defender": defender}
	return res
}

const adviceSystemPrompt = `You are a tabletop wargame advisor at the table mid-game. Answer the
player's question using the game state below. Be concrete and brief:
two or three sentences, grounded in the units, resources, and
objectives actually in play. Do not invent units or rules.`

func (d *Dispatcher) handleGetAdvice(ctx context.Context, sessionID string, args map[string]any) OperationResult {
	question, err := stringArg(args, "question")
	if err != nil {
		return failure("get_tactical_advice: %v", err)
	}
	payload := payloadFrom(ctx)
	if payload == nil {
		return failure("get_tactical_advice: no context payload available")
	}
	answer, err := d.client.CompleteWithSystem(ctx, adviceSystemPrompt,
		payload.Render()+"\nQuestion: "+question)
	if err != nil {
		return failure("get_tactical_advice: %v", err)
	}
	res := success("%s", answer)
	res.Data = map[string]any{"question": question}
	return res
}

// clock returns the dispatcher's time source in UTC.
func (d *Dispatcher) clock() time.Time {
	return d.now().UTC()
}
