package dungeon

import (
	"sync"

	"github.com/clicker-pokemon/server/game/battle"
	"github.com/clicker-pokemon/server/game/pokemon"
	"github.com/clicker-pokemon/server/model"
)

// Status is the dungeon run lifecycle state.
type Status string

const (
	StatusReady      Status = "READY"
	StatusInProgress Status = "IN_PROGRESS"
	StatusBattle     Status = "BATTLE"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// BattleState is the live fight against one opponent. At most one per
// session.
type BattleState struct {
	ID             string
	Player         *battle.Combatant
	Enemy          *battle.Combatant
	Turn           int
	AwaitingSwitch bool
}

// Session is one trainer's dungeon run. All fields are guarded by mu;
// every mutation path (gateway calls and scheduler continuations) locks
// it, so a trainer's run is serialized while different trainers proceed
// independently.
type Session struct {
	mu sync.Mutex

	TrainerID int64
	Dungeon   *model.Dungeon
	Team      []*battle.Combatant
	Opponents []*battle.Combatant
	Defeated  int
	Status    Status
	Battle    *BattleState

	dead map[int64]bool // owned pokemon ids knocked out this run
}

// teamMember returns the team combatant for an owned pokemon id.
func (s *Session) teamMember(ownedID int64) *battle.Combatant {
	for _, c := range s.Team {
		if id, ok := pokemon.OwnedID(c.ID); ok && id == ownedID {
			return c
		}
	}
	return nil
}

// isDead reports whether a team member was knocked out this run.
func (s *Session) isDead(ownedID int64) bool {
	return s.dead[ownedID]
}

// markDead adds a team member to the run's dead set.
func (s *Session) markDead(ownedID int64) {
	s.dead[ownedID] = true
}

// livingMembers returns the team members not yet knocked out.
func (s *Session) livingMembers() []*battle.Combatant {
	var out []*battle.Combatant
	for _, c := range s.Team {
		if id, ok := pokemon.OwnedID(c.ID); ok && !s.dead[id] {
			out = append(out, c)
		}
	}
	return out
}
