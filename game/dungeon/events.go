package dungeon

import (
	"github.com/clicker-pokemon/server/game/battle"
	"gorm.io/datatypes"
)

// Outbound event types, delivered through the EventSink.
const (
	EventDungeonReady  = "DUNGEON_READY"
	EventBattleStarted = "BATTLE_STARTED"
	EventAttackResult  = "ATTACK_RESULT"
	EventPokemonKO     = "POKEMON_KO"
	EventEnemyDefeated = "ENEMY_DEFEATED"
	EventForceSwitch   = "FORCE_POKEMON_SWITCH"
	EventDungeonWin    = "DUNGEON_COMPLETED_WIN"
	EventDungeonLoose  = "DUNGEON_COMPLETED_LOOSE"
)

// EventSink receives dungeon events for one trainer. The WS gateway
// implements it; tests use a recording sink. Implementations must not
// block: they are called with the session lock held.
type EventSink interface {
	Emit(trainerID int64, event string, payload interface{})
}

// DungeonInfo is the static dungeon description echoed to the client.
type DungeonInfo struct {
	ID      int64          `json:"id"`
	Name    string         `json:"name"`
	Zone    int            `json:"zone"`
	Rewards datatypes.JSON `json:"rewards"`
}

// ReadyPayload is emitted once the run is set up and awaiting the first
// fight selection.
type ReadyPayload struct {
	Status     Status              `json:"session"`
	Dungeon    DungeonInfo         `json:"dungeonInfo"`
	PlayerTeam []*battle.Combatant `json:"playerTeam"`
	Enemies    []*battle.Combatant `json:"enemies"`
	Boss       *battle.Combatant   `json:"boss"`
	Rewards    datatypes.JSON      `json:"rewards"`
}

// BattleStartedPayload announces a new fight (or a switch-in).
type BattleStartedPayload struct {
	BattleID     string            `json:"battleId"`
	Player       *battle.Combatant `json:"playerPokemon"`
	Enemy        *battle.Combatant `json:"enemyPokemon"`
	EnemyNumber  int               `json:"enemyNumber"`
	TotalEnemies int               `json:"totalEnemies"`
	IsBoss       bool              `json:"isBoss"`
}

// KOPayload reports a knockout on either side.
type KOPayload struct {
	KOed   string `json:"koedPokemon"`
	Winner string `json:"winner"`
}

// EnemyDefeatedPayload reports run progress after a minion falls.
type EnemyDefeatedPayload struct {
	DefeatedEnemies int `json:"defeatedEnemies"`
	TotalEnemies    int `json:"totalEnemies"`
}

// ForceSwitchPayload asks the player to pick a living replacement.
type ForceSwitchPayload struct {
	Available []*battle.Combatant `json:"availablePokemons"`
	BattleID  string              `json:"battleId"`
}

// WinPayload is the terminal success event.
type WinPayload struct {
	Rewards         datatypes.JSON `json:"rewards"`
	DefeatedEnemies int            `json:"defeatedEnemies"`
}
