package catalog

import "context"

// Static is an in-memory Provider used by tests and offline mode.
type Static struct {
	Species map[int]*Species
	Pools   map[int][]Species
	Moves   map[int][]Move
}

// NewStatic creates an empty static provider.
func NewStatic() *Static {
	return &Static{
		Species: make(map[int]*Species),
		Pools:   make(map[int][]Species),
		Moves:   make(map[int][]Move),
	}
}

// AddSpecies registers a species and appends it to the given zone's pool.
func (s *Static) AddSpecies(zone int, sp *Species) {
	s.Species[sp.ID] = sp
	s.Pools[zone] = append(s.Pools[zone], *sp)
}

func (s *Static) SpeciesByID(_ context.Context, id int) (*Species, error) {
	if sp, ok := s.Species[id]; ok {
		return sp, nil
	}
	return Fallback(id), nil
}

func (s *Static) SpeciesPool(_ context.Context, zone int) ([]Species, error) {
	pool := s.Pools[zone]
	if len(pool) == 0 {
		return nil, ErrEmptyPool
	}
	return pool, nil
}

func (s *Static) MovesForSpecies(_ context.Context, speciesID, level int) ([]Move, error) {
	var out []Move
	for _, m := range s.Moves[speciesID] {
		if m.Level == 0 || m.Level <= level {
			out = append(out, m)
		}
	}
	return out, nil
}
