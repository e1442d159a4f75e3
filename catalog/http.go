package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/clicker-pokemon/server/cache"
	"go.uber.org/zap"
)

// tyradexSpecies mirrors the upstream JSON shape for one pokedex entry.
type tyradexSpecies struct {
	PokedexID int `json:"pokedex_id"`
	Name      struct {
		FR string `json:"fr"`
		EN string `json:"en"`
	} `json:"name"`
	Sprites struct {
		Regular string `json:"regular"`
	} `json:"sprites"`
	Types []struct {
		Name string `json:"name"`
	} `json:"types"`
	Stats struct {
		HP  int `json:"hp"`
		Atk int `json:"atk"`
		Def int `json:"def"`
		Spe int `json:"spe"`
	} `json:"stats"`
	CatchRate *int `json:"catch_rate"`
	Sexe      *struct {
		Male   float64 `json:"male"`
		Female float64 `json:"female"`
	} `json:"sexe"`
}

func (t *tyradexSpecies) toSpecies() *Species {
	s := &Species{
		ID:        t.PokedexID,
		Sprite:    t.Sprites.Regular,
		CatchRate: t.CatchRate,
		Stats: BaseStats{
			HP:      t.Stats.HP,
			Attack:  t.Stats.Atk,
			Defense: t.Stats.Def,
			Speed:   t.Stats.Spe,
		},
	}
	s.Name = t.Name.FR
	if s.Name == "" {
		s.Name = t.Name.EN
	}
	for _, typ := range t.Types {
		s.Types = append(s.Types, typ.Name)
	}
	if t.Sexe != nil {
		s.Gender = &GenderRatio{Male: t.Sexe.Male, Female: t.Sexe.Female}
	}
	return s
}

// learnsetEntry mirrors the upstream learnset JSON: a move reference plus
// the level it is learned at.
type learnsetResponse struct {
	Moves []struct {
		Move struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"move"`
		VersionGroupDetails []struct {
			LevelLearnedAt  int `json:"level_learned_at"`
			MoveLearnMethod struct {
				Name string `json:"name"`
			} `json:"move_learn_method"`
		} `json:"version_group_details"`
	} `json:"moves"`
}

type moveDetail struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Power    *int   `json:"power"`
	Accuracy *int   `json:"accuracy"`
	PP       int    `json:"pp"`
	Priority int    `json:"priority"`
	Type     struct {
		Name string `json:"name"`
	} `json:"type"`
	DamageClass struct {
		Name string `json:"name"`
	} `json:"damage_class"`
}

// Client is the HTTP catalog provider. Species and learnset lookups are
// cached so the upstream API is hit at most once per TTL per key.
type Client struct {
	baseURL     string
	learnsetURL string
	hc          *http.Client
	cache       cache.Cache
	ttl         time.Duration
	logger      *zap.Logger
}

// ClientConfig holds the HTTP catalog settings.
type ClientConfig struct {
	BaseURL     string // species endpoint root, e.g. https://tyradex.vercel.app/api/v1
	LearnsetURL string // learnset endpoint root, e.g. https://pokeapi.co/api/v2
	Timeout     time.Duration
	CacheTTL    time.Duration
}

// NewClient creates an HTTP catalog provider backed by the given cache.
func NewClient(cfg ClientConfig, c cache.Cache, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	learnset := cfg.LearnsetURL
	if learnset == "" {
		learnset = "https://pokeapi.co/api/v2"
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		learnsetURL: learnset,
		hc:          &http.Client{Timeout: timeout},
		cache:       c,
		ttl:         ttl,
		logger:      logger,
	}
}

// SpeciesByID returns the catalog record for a pokedex id, serving the
// documented fallback record when the upstream fails.
func (c *Client) SpeciesByID(ctx context.Context, id int) (*Species, error) {
	key := fmt.Sprintf("catalog:species:%d", id)
	if raw, err := c.cache.Get(ctx, key); err == nil {
		var s Species
		if err := json.Unmarshal([]byte(raw), &s); err == nil {
			return &s, nil
		}
	}

	var ts tyradexSpecies
	if err := c.getJSON(ctx, fmt.Sprintf("%s/pokemon/%d", c.baseURL, id), &ts); err != nil {
		c.logger.Warn("species lookup failed, serving fallback",
			zap.Int("species", id), zap.Error(err))
		return Fallback(id), nil
	}
	s := ts.toSpecies()
	c.cacheJSON(ctx, key, s)
	return s, nil
}

// SpeciesPool returns the species list for a zone (a pokedex generation
// upstream). Empty pools and upstream failures are errors: encounter
// generation must not run on fabricated pools.
func (c *Client) SpeciesPool(ctx context.Context, zone int) ([]Species, error) {
	key := fmt.Sprintf("catalog:pool:%d", zone)
	if raw, err := c.cache.Get(ctx, key); err == nil {
		var pool []Species
		if err := json.Unmarshal([]byte(raw), &pool); err == nil {
			return pool, nil
		}
	}

	var list []tyradexSpecies
	if err := c.getJSON(ctx, fmt.Sprintf("%s/gen/%d", c.baseURL, zone), &list); err != nil {
		return nil, fmt.Errorf("%w: pool for zone %d: %v", ErrUpstream, zone, err)
	}
	if len(list) == 0 {
		return nil, ErrEmptyPool
	}
	pool := make([]Species, 0, len(list))
	for i := range list {
		pool = append(pool, *list[i].toSpecies())
	}
	c.cacheJSON(ctx, key, pool)
	return pool, nil
}

// MovesForSpecies returns every move the species can know at the given
// level (level-up moves learned at or below it, plus machine moves).
// Failures propagate: captured pokemon must not get fabricated movesets.
func (c *Client) MovesForSpecies(ctx context.Context, speciesID, level int) ([]Move, error) {
	learnset, err := c.learnset(ctx, speciesID)
	if err != nil {
		return nil, err
	}
	var out []Move
	for _, m := range learnset {
		if m.Level == 0 || m.Level <= level {
			out = append(out, m)
		}
	}
	return out, nil
}

// learnset fetches (or loads from cache) the full move list for a species,
// including per-move details.
func (c *Client) learnset(ctx context.Context, speciesID int) ([]Move, error) {
	key := fmt.Sprintf("catalog:moves:%d", speciesID)
	if raw, err := c.cache.Get(ctx, key); err == nil {
		var moves []Move
		if err := json.Unmarshal([]byte(raw), &moves); err == nil {
			return moves, nil
		}
	}

	var ls learnsetResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/pokemon/%d", c.learnsetURL, speciesID), &ls); err != nil {
		return nil, fmt.Errorf("%w: learnset for species %d: %v", ErrUpstream, speciesID, err)
	}

	moves := make([]Move, 0, len(ls.Moves))
	for _, entry := range ls.Moves {
		learnLevel := 0
		for _, d := range entry.VersionGroupDetails {
			if d.MoveLearnMethod.Name == "level-up" && d.LevelLearnedAt > learnLevel {
				learnLevel = d.LevelLearnedAt
			}
		}
		var detail moveDetail
		if err := c.getJSON(ctx, entry.Move.URL, &detail); err != nil {
			return nil, fmt.Errorf("%w: move %s: %v", ErrUpstream, entry.Move.Name, err)
		}
		moves = append(moves, Move{
			ID:          detail.ID,
			Name:        detail.Name,
			Type:        detail.Type.Name,
			Power:       detail.Power,
			Accuracy:    detail.Accuracy,
			PP:          detail.PP,
			Priority:    detail.Priority,
			DamageClass: detail.DamageClass.Name,
			Level:       learnLevel,
		})
	}
	c.cacheJSON(ctx, key, moves)
	return moves, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) cacheJSON(ctx context.Context, key string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, string(raw), c.ttl); err != nil {
		c.logger.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}
