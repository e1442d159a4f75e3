package capture

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/clicker-pokemon/server/cache"
	"github.com/clicker-pokemon/server/catalog"
	"github.com/clicker-pokemon/server/game/encounter"
	"github.com/clicker-pokemon/server/game/pokemon"
	"github.com/clicker-pokemon/server/model"
	"github.com/clicker-pokemon/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func intp(v int) *int { return &v }

func newTestResolver(t *testing.T, seed int64, catchRate *int) (*Resolver, *pokemon.Store, *gorm.DB, cache.PubSub) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	_, ps := testutil.SetupTestCache(t)

	provider := catalog.NewStatic()
	provider.AddSpecies(1, &catalog.Species{
		ID: 25, Name: "Pikachu", Types: []string{"Électrik"}, CatchRate: catchRate,
		Stats:  catalog.BaseStats{HP: 35, Attack: 55, Defense: 40, Speed: 90},
		Gender: &catalog.GenderRatio{Male: 50, Female: 50},
	})
	provider.Moves[25] = []catalog.Move{
		{ID: 84, Name: "thunder-shock", Type: "Électrik", Power: intp(40), Accuracy: intp(100), PP: 30, Level: 1},
		{ID: 98, Name: "quick-attack", Type: "Normal", Power: intp(40), Accuracy: intp(100), PP: 30, Priority: 1, Level: 1},
	}

	rng := rand.New(rand.NewSource(seed))
	gen := encounter.New(provider, rng, encounter.Config{}, zap.NewNop())
	store := pokemon.NewStore(db)
	movesets := pokemon.NewMoveSet(provider, rng, zap.NewNop())
	return NewResolver(db, gen, store, movesets, ps, rng, zap.NewNop()), store, db, ps
}

func TestProbability(t *testing.T) {
	// min(45/255*1.5, 0.95)
	assert.InDelta(t, 0.2647, Probability(intp(45)), 0.0001)
	// 255/255*1.5 = 1.5, capped
	assert.Equal(t, 0.95, Probability(intp(255)))
	// out-of-range rates stay capped
	assert.Equal(t, 0.95, Probability(intp(10000)))
	assert.Equal(t, 0.0, Probability(intp(-5)))
	// missing rate defaults to 35
	assert.InDelta(t, float64(35)/255*1.5, Probability(nil), 0.0001)
}

func TestGetOrCreateIsStablePerZone(t *testing.T) {
	r, _, _, _ := newTestResolver(t, 42, intp(45))
	ctx := context.Background()

	first, err := r.GetOrCreate(ctx, 1, 1)
	require.NoError(t, err)
	second, err := r.GetOrCreate(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, first.Level, second.Level)
	assert.Equal(t, first.SpeciesID, second.SpeciesID)
}

func TestAttemptWithoutPending(t *testing.T) {
	r, _, _, _ := newTestResolver(t, 42, intp(45))
	_, err := r.Attempt(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrNoPending)
}

func TestSuccessfulCaptureChainsNewEncounter(t *testing.T) {
	// Catch rate 255 → probability 0.95: seed 42's first roll succeeds.
	r, store, db, _ := newTestResolver(t, 42, intp(255))
	ctx := context.Background()

	_, err := r.GetOrCreate(ctx, 1, 1)
	require.NoError(t, err)

	var res *Result
	for i := 0; i < 20; i++ {
		res, err = r.Attempt(ctx, 1, 1)
		require.NoError(t, err)
		if res.Caught {
			break
		}
	}
	require.True(t, res.Caught)
	require.NotNil(t, res.Owned)
	assert.Equal(t, 25, res.Owned.SpeciesID)
	assert.NotEmpty(t, res.Owned.Moves)
	assert.LessOrEqual(t, len(res.Owned.Moves), 4)

	// The capture chained straight into a fresh pending encounter.
	require.NotNil(t, res.Next)
	var count int64
	db.Model(&model.WildEncounter{}).Where("trainer_id = ?", 1).Count(&count)
	assert.Equal(t, int64(1), count)

	owned, err := store.ListByTrainer(1)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Zero(t, owned[0].BoostAtk)

	// Throw history recorded the successful attempt.
	var attempts []model.CaptureAttempt
	require.NoError(t, db.Find(&attempts).Error)
	assert.NotEmpty(t, attempts)
}

func TestFailedCaptureLeavesEncounter(t *testing.T) {
	zero := 0
	r, store, db, _ := newTestResolver(t, 42, &zero)
	ctx := context.Background()

	first, err := r.GetOrCreate(ctx, 1, 1)
	require.NoError(t, err)

	res, err := r.Attempt(ctx, 1, 1)
	require.NoError(t, err)
	assert.False(t, res.Caught)
	assert.Nil(t, res.Owned)
	assert.Nil(t, res.Next)
	require.NotNil(t, res.Wild)
	assert.Equal(t, first.SpeciesID, res.Wild.SpeciesID)

	// The pending encounter is untouched.
	again, err := r.GetOrCreate(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, first.Level, again.Level)

	owned, err := store.ListByTrainer(1)
	require.NoError(t, err)
	assert.Empty(t, owned)

	var count int64
	db.Model(&model.WildEncounter{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestReleaseReplacesPending(t *testing.T) {
	r, _, db, _ := newTestResolver(t, 42, intp(45))
	ctx := context.Background()

	_, err := r.GetOrCreate(ctx, 1, 1)
	require.NoError(t, err)

	_, err = r.Release(ctx, 1, 1)
	require.NoError(t, err)

	// At most one pending encounter per trainer, ever.
	var count int64
	db.Model(&model.WildEncounter{}).Where("trainer_id = ?", 1).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCaptureCeilingOverManyTrials(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	trials := 10000
	successes := 0
	for i := 0; i < trials; i++ {
		if rng.Float64() < Probability(intp(255)) {
			successes++
		}
	}
	rate := float64(successes) / float64(trials)
	assert.InDelta(t, 0.95, rate, 0.01)
}

// A successful throw must land on the activity feed alongside dungeon
// clears.
func TestSuccessfulCapturePublishesActivity(t *testing.T) {
	r, _, _, ps := newTestResolver(t, 42, intp(255))
	ctx := context.Background()

	feed, unsub, err := ps.Subscribe(ctx, cache.ActivityChannel)
	require.NoError(t, err)
	defer unsub()

	_, err = r.GetOrCreate(ctx, 1, 1)
	require.NoError(t, err)

	caught := false
	for i := 0; i < 20 && !caught; i++ {
		res, err := r.Attempt(ctx, 1, 1)
		require.NoError(t, err)
		caught = res.Caught
	}
	require.True(t, caught)

	select {
	case msg := <-feed:
		assert.Contains(t, msg.Payload, "capture")
		assert.Contains(t, msg.Payload, "Pikachu")
	case <-time.After(time.Second):
		t.Fatal("no activity message after capture")
	}
}
