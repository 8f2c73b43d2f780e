package state

import (
	"time"

	"warvox/internal/types"
)

// NewDemoSession seeds a small two-sided session so the CLI and the
// replay command work out of the box without an import pipeline.
func NewDemoSession(sessionID string) *SessionState {
	now := time.Now().UTC()
	return &SessionState{
		SessionID: sessionID,
		Round:     1,
		Turn:      types.SidePlayer,
		Phase:     types.PhaseCommand,
		CP:        map[types.Side]int{types.SidePlayer: 3, types.SideOpponent: 3},
		VP:        map[types.Side]int{types.SidePlayer: 0, types.SideOpponent: 0},
		Objectives: map[int]types.Side{},
		Units: map[string]*UnitInstance{
			"u-terminators": {
				ID:             "u-terminators",
				Name:           "Terminator Squad",
				Side:           types.SidePlayer,
				Datasheet:      "Terminator Squad",
				StartingModels: 5,
				CurrentModels:  5,
				StartingWounds: 15,
				CurrentWounds:  15,
				Models: []ModelEntry{
					{Role: RoleLeader, CurrentWounds: 3, MaxWounds: 3},
					{Role: RoleHeavy, CurrentWounds: 3, MaxWounds: 3},
					{Role: RoleRegular, CurrentWounds: 3, MaxWounds: 3},
					{Role: RoleRegular, CurrentWounds: 3, MaxWounds: 3},
					{Role: RoleRegular, CurrentWounds: 3, MaxWounds: 3},
				},
			},
			"u-intercessors": {
				ID:             "u-intercessors",
				Name:           "Intercessor Squad",
				Side:           types.SidePlayer,
				Datasheet:      "Intercessor Squad",
				StartingModels: 10,
				CurrentModels:  10,
				StartingWounds: 20,
				CurrentWounds:  20,
			},
			"u-boyz": {
				ID:             "u-boyz",
				Name:           "Boyz Mob",
				Side:           types.SideOpponent,
				Datasheet:      "Boyz",
				StartingModels: 20,
				CurrentModels:  20,
				StartingWounds: 20,
				CurrentWounds:  20,
			},
			"u-warboss": {
				ID:             "u-warboss",
				Name:           "Warboss",
				Side:           types.SideOpponent,
				Datasheet:      "Warboss",
				StartingModels: 1,
				CurrentModels:  1,
				StartingWounds: 6,
				CurrentWounds:  6,
			},
		},
		Stratagems: map[types.Side][]Stratagem{
			types.SidePlayer: {
				{Name: "Transhuman Physiology", Cost: 1, Description: "Reduce incoming damage for one unit."},
				{Name: "Armour of Contempt", Cost: 1, Description: "Improve saves against one attack."},
				{Name: "Counter-Offensive", Cost: 2, Phase: types.PhaseFight, Description: "Fight next after an enemy unit."},
			},
			types.SideOpponent: {
				{Name: "Careen!", Cost: 1, Description: "Move a wrecked vehicle before it explodes."},
				{Name: "Orks Is Never Beaten", Cost: 2, Description: "Fight on death."},
			},
		},
		StartedAt: now,
	}
}
