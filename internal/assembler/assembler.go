// Package assembler builds the tiered read-only state snapshot handed to
// the generative model. It never mutates state and honors whatever tier
// it is given regardless of the caller's intent category.
package assembler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"warvox/internal/state"
	"warvox/internal/types"
)

// Fragment window sizes per tier.
const (
	minimalFragments = 5
	mediumFragments  = 10
	fullFragments    = 20
)

// rulesReference is the static rules digest included at the full tier.
const rulesReference = `Battle rounds run command, movement, shooting, charge, fight.
Each player takes one turn per battle round. Command points accrue 1 per
command phase; most stratagems are once per phase. Objectives score in
the command phase. A unit at zero models or zero wounds is destroyed.
Battle-shocked units have an objective control of zero.`

// UnitSummary is the medium-tier digest of one unit.
type UnitSummary struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Side          types.Side  `json:"side"`
	Models        string      `json:"models"` // "4/5"
	Wounds        string      `json:"wounds"` // "10/15"
	Destroyed     bool        `json:"destroyed,omitempty"`
	Battleshocked bool        `json:"battleshocked,omitempty"`
}

// Payload is the read-only snapshot for one analysis pass.
type Payload struct {
	Tier            types.ContextTier                `json:"tier"`
	Summary         state.Summary                    `json:"summary"`
	Units           []UnitSummary                    `json:"units,omitempty"`
	UnitDetail      []*state.UnitInstance            `json:"unit_detail,omitempty"`
	Stratagems      map[types.Side][]state.Stratagem `json:"stratagems,omitempty"`
	RecentFragments []types.Fragment                 `json:"recent_fragments"`
	RulesReference  string                           `json:"rules_reference,omitempty"`
	BuiltAt         time.Time                        `json:"built_at"`
}

// Assembler builds payloads from store snapshots.
type Assembler struct {
	store state.Store
	clock func() time.Time
}

// New creates an assembler over the given store.
func New(store state.Store) *Assembler {
	return &Assembler{store: store, clock: time.Now}
}

// Build assembles a payload at the requested tier.
//   - minimal: session summary + last 5 fragments
//   - medium:  minimal + unit summaries both sides + last 10 fragments
//   - full:    medium + full unit detail + stratagem catalogs + last 20
//     fragments + static rules reference
func (a *Assembler) Build(ctx context.Context, sessionID string, tier types.ContextTier, recent []types.Fragment) (*Payload, error) {
	snapshot, err := a.store.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("snapshot for context build: %w", err)
	}

	p := &Payload{
		Tier:    tier,
		Summary: snapshot.Summarize(),
		BuiltAt: a.clock().UTC(),
	}

	window := minimalFragments
	switch tier {
	case types.TierMedium:
		window = mediumFragments
	case types.TierFull:
		window = fullFragments
	}
	p.RecentFragments = tail(recent, window)

	if tier == types.TierMedium || tier == types.TierFull {
		p.Units = summarizeUnits(snapshot)
	}
	if tier == types.TierFull {
		p.UnitDetail = unitDetail(snapshot)
		p.Stratagems = snapshot.Stratagems
		p.RulesReference = rulesReference
	}
	return p, nil
}

// Render formats the payload as prompt text for the tool-dispatch call.
func (p *Payload) Render() string {
	var b strings.Builder
	s := p.Summary
	fmt.Fprintf(&b, "Round %d, %s turn, %s phase. CP %d/%d, VP %d/%d (player/opponent).\n",
		s.Round, s.Turn, s.Phase, s.PlayerCP, s.OpponentCP, s.PlayerVP, s.OpponentVP)

	if len(p.Units) > 0 {
		b.WriteString("\nUnits:\n")
		for _, u := range p.Units {
			status := ""
			if u.Destroyed {
				status = " DESTROYED"
			} else if u.Battleshocked {
				status = " battle-shocked"
			}
			fmt.Fprintf(&b, "- [%s] %s: models %s, wounds %s%s\n", u.Side, u.Name, u.Models, u.Wounds, status)
		}
	}
	if len(p.UnitDetail) > 0 {
		b.WriteString("\nRosters:\n")
		for _, u := range p.UnitDetail {
			if !u.HasRoster() || u.Destroyed {
				continue
			}
			fmt.Fprintf(&b, "- %s:", u.Name)
			for _, m := range u.Models {
				if m.Destroyed {
					continue
				}
				fmt.Fprintf(&b, " %s %d/%d;", m.Role, m.CurrentWounds, m.MaxWounds)
			}
			b.WriteString("\n")
		}
	}
	if len(p.Stratagems) > 0 {
		b.WriteString("\nStratagems:\n")
		for _, side := range []types.Side{types.SidePlayer, types.SideOpponent} {
			for _, strat := range p.Stratagems[side] {
				fmt.Fprintf(&b, "- [%s] %s (%d CP)\n", side, strat.Name, strat.Cost)
			}
		}
	}
	if len(p.RecentFragments) > 0 {
		b.WriteString("\nRecent speech:\n")
		for _, f := range p.RecentFragments {
			fmt.Fprintf(&b, "- %s\n", f.Text)
		}
	}
	if p.RulesReference != "" {
		b.WriteString("\nRules reference:\n")
		b.WriteString(p.RulesReference)
		b.WriteString("\n")
	}
	return b.String()
}

func summarizeUnits(snapshot *state.SessionState) []UnitSummary {
	out := make([]UnitSummary, 0, len(snapshot.Units))
	for _, u := range snapshot.Units {
		out = append(out, UnitSummary{
			ID:            u.ID,
			Name:          u.Name,
			Side:          u.Side,
			Models:        fmt.Sprintf("%d/%d", u.CurrentModels, u.StartingModels),
			Wounds:        fmt.Sprintf("%d/%d", u.CurrentWounds, u.StartingWounds),
			Destroyed:     u.Destroyed,
			Battleshocked: u.Battleshocked,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func unitDetail(snapshot *state.SessionState) []*state.UnitInstance {
	out := make([]*state.UnitInstance, 0, len(snapshot.Units))
	for _, u := range snapshot.Units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func tail(fragments []types.Fragment, n int) []types.Fragment {
	if len(fragments) <= n {
		return append([]types.Fragment(nil), fragments...)
	}
	return append([]types.Fragment(nil), fragments[len(fragments)-n:]...)
}
