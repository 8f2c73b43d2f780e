// Package wounds allocates incoming damage across a unit's per-model
// roster. Allocation is deterministic: replaying the same cumulative
// damage sequence from the same starting roster always yields the same
// final roster.
package wounds

import (
	"fmt"
	"sort"
	"strings"

	"warvox/internal/state"
)

// Mutation is one per-model change produced by an allocation.
type Mutation struct {
	Index        int             `json:"index"`
	Role         state.ModelRole `json:"role"`
	WoundsBefore int             `json:"wounds_before"`
	WoundsAfter  int             `json:"wounds_after"`
	Destroyed    bool            `json:"destroyed"`
}

// Outcome is the result of one allocation pass. Roster is a fresh copy
// with the mutations applied; the input roster is never modified.
type Outcome struct {
	Roster          []state.ModelEntry
	Mutations       []Mutation
	ModelsDestroyed int
	WoundsApplied   int
	Discarded       int

	// NoOp is set when a role restriction leaves no candidates. The
	// allocation reports an explanation instead of failing.
	NoOp   bool
	Reason string

	// Summary is the human-readable line for the timeline record.
	Summary string
}

// DistributeWounds applies a wound pool to the roster. Candidates are
// ordered already-wounded-but-alive first, then regular, special, heavy,
// leader; the pool drains into the first candidate until it is destroyed,
// then advances. Leftover pool after every model is destroyed is
// discarded. A role restriction limits candidates to that role.
func DistributeWounds(roster []state.ModelEntry, pool int, role state.ModelRole) Outcome {
	out := Outcome{Roster: cloneRoster(roster)}
	if pool <= 0 {
		out.Summary = "no wounds to allocate"
		return out
	}

	order := candidateOrder(out.Roster, role)
	if len(order) == 0 {
		return noOpOutcome(out.Roster, role)
	}

	for _, idx := range order {
		if pool <= 0 {
			break
		}
		m := &out.Roster[idx]
		before := m.CurrentWounds
		taken := pool
		if taken > m.CurrentWounds {
			taken = m.CurrentWounds
		}
		m.CurrentWounds -= taken
		pool -= taken
		out.WoundsApplied += taken
		if m.CurrentWounds == 0 {
			m.Destroyed = true
			out.ModelsDestroyed++
		}
		out.Mutations = append(out.Mutations, Mutation{
			Index:        idx,
			Role:         m.Role,
			WoundsBefore: before,
			WoundsAfter:  m.CurrentWounds,
			Destroyed:    m.Destroyed,
		})
	}
	out.Discarded = pool
	out.Summary = summarize(out)
	return out
}

// RemoveModels removes count whole models using the same ordering as
// DistributeWounds; each removal consumes the model's full remaining
// wounds.
func RemoveModels(roster []state.ModelEntry, count int, role state.ModelRole) Outcome {
	out := Outcome{Roster: cloneRoster(roster)}
	if count <= 0 {
		out.Summary = "no models to remove"
		return out
	}

	order := candidateOrder(out.Roster, role)
	if len(order) == 0 {
		return noOpOutcome(out.Roster, role)
	}

	for _, idx := range order {
		if count <= 0 {
			break
		}
		m := &out.Roster[idx]
		before := m.CurrentWounds
		out.WoundsApplied += before
		m.CurrentWounds = 0
		m.Destroyed = true
		out.ModelsDestroyed++
		count--
		out.Mutations = append(out.Mutations, Mutation{
			Index:        idx,
			Role:         m.Role,
			WoundsBefore: before,
			WoundsAfter:  0,
			Destroyed:    true,
		})
	}
	out.Summary = summarize(out)
	return out
}

// candidateOrder returns indices of alive models in allocation order:
// wounded-but-alive first, then by role priority (regular, special,
// heavy, leader), then by roster position for determinism.
func candidateOrder(roster []state.ModelEntry, role state.ModelRole) []int {
	var order []int
	for i, m := range roster {
		if m.Destroyed || m.CurrentWounds <= 0 {
			continue
		}
		if role != "" && m.Role != role {
			continue
		}
		order = append(order, i)
	}
	sort.SliceStable(order, func(a, b int) bool {
		ma, mb := roster[order[a]], roster[order[b]]
		woundedA := ma.CurrentWounds < ma.MaxWounds
		woundedB := mb.CurrentWounds < mb.MaxWounds
		if woundedA != woundedB {
			return woundedA
		}
		pa, pb := state.RolePriority(ma.Role), state.RolePriority(mb.Role)
		if pa != pb {
			return pa < pb
		}
		return order[a] < order[b]
	})
	return order
}

func noOpOutcome(roster []state.ModelEntry, role state.ModelRole) Outcome {
	reason := "no surviving models to allocate to"
	if role != "" {
		reason = fmt.Sprintf("no surviving %s models to allocate to", role)
	}
	return Outcome{
		Roster:  roster,
		NoOp:    true,
		Reason:  reason,
		Summary: reason,
	}
}

// summarize renders the distribution for the timeline record, e.g.
// "2 regular models destroyed, 1 heavy model wounded (1/3)".
func summarize(out Outcome) string {
	destroyedByRole := map[state.ModelRole]int{}
	var parts []string
	for _, mut := range out.Mutations {
		if mut.Destroyed {
			destroyedByRole[mut.Role]++
		}
	}
	for _, role := range []state.ModelRole{state.RoleRegular, state.RoleSpecial, state.RoleHeavy, state.RoleLeader} {
		if n := destroyedByRole[role]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s %s destroyed", n, role, plural(n, "model", "models")))
		}
	}
	for _, mut := range out.Mutations {
		if !mut.Destroyed && mut.WoundsAfter < mut.WoundsBefore {
			parts = append(parts, fmt.Sprintf("1 %s model wounded (%d left)", mut.Role, mut.WoundsAfter))
		}
	}
	if out.Discarded > 0 {
		parts = append(parts, fmt.Sprintf("%d excess %s discarded", out.Discarded, plural(out.Discarded, "wound", "wounds")))
	}
	if len(parts) == 0 {
		return "no damage allocated"
	}
	return strings.Join(parts, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func cloneRoster(roster []state.ModelEntry) []state.ModelEntry {
	return append([]state.ModelEntry(nil), roster...)
}
