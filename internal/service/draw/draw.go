package draw

import (
	"math/rand/v2"

	"github.com/justtherip/packvault/internal/apperrors"
	"github.com/justtherip/packvault/internal/models"
)

// Source yields uniform values in [0, 1). Injectable so tests can force
// specific draws.
type Source interface {
	Float64() float64
}

type Engine struct {
	rand Source
}

// New creates an engine with the given random source.
// Pass nil to use the default seeded PCG source.
func New(src Source) *Engine {
	if src == nil {
		src = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Engine{rand: src}
}

// Draw performs one weighted random selection over the pool snapshot.
// A uniform value r in [0, total) is drawn and the pool is walked in
// order, returning the first entry whose cumulative weight strictly
// exceeds r. Entries with non-positive weight never win.
func (e *Engine) Draw(pool []models.PoolEntry) (models.PoolEntry, error) {
	total := totalWeight(pool)
	if total <= 0 {
		return models.PoolEntry{}, apperrors.ErrEmptyPool
	}

	r := e.rand.Float64() * total

	cumulative := 0.0
	for _, entry := range pool {
		if entry.Weight <= 0 {
			continue
		}
		cumulative += entry.Weight
		if cumulative > r {
			return entry, nil
		}
	}

	// Float accumulation can land r on the boundary; the last weighted
	// entry owns the remainder.
	for i := len(pool) - 1; i >= 0; i-- {
		if pool[i].Weight > 0 {
			return pool[i], nil
		}
	}

	return models.PoolEntry{}, apperrors.ErrEmptyPool
}

// Probability of one pool entry
type Probability struct {
	Entry       models.PoolEntry
	Probability float64
}

// Probabilities returns weight/total for every entry. Pure function:
// no randomness, same pool in, same distribution out.
func (e *Engine) Probabilities(pool []models.PoolEntry) ([]Probability, error) {
	total := totalWeight(pool)
	if total <= 0 {
		return nil, apperrors.ErrEmptyPool
	}

	probs := make([]Probability, 0, len(pool))
	for _, entry := range pool {
		w := entry.Weight
		if w < 0 {
			w = 0
		}
		probs = append(probs, Probability{
			Entry:       entry,
			Probability: w / total,
		})
	}

	return probs, nil
}

// Summary describes the value spread of a pool
type Summary struct {
	FloorCents   int64
	CeilingCents int64
	EVCents      float64
}

// Summarize computes floor, ceiling and probability-weighted expected
// value over a pool, for storefront display.
func (e *Engine) Summarize(pool []models.PoolEntry) (Summary, error) {
	probs, err := e.Probabilities(pool)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{FloorCents: probs[0].Entry.ValueCents, CeilingCents: probs[0].Entry.ValueCents}
	for _, p := range probs {
		v := p.Entry.ValueCents
		if v < s.FloorCents {
			s.FloorCents = v
		}
		if v > s.CeilingCents {
			s.CeilingCents = v
		}
		s.EVCents += p.Probability * float64(v)
	}

	return s, nil
}

// Simulate draws n times and counts wins per card, for admin tooling
func (e *Engine) Simulate(pool []models.PoolEntry, n int) (map[string]int, error) {
	if _, err := e.Probabilities(pool); err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(pool))
	for i := 0; i < n; i++ {
		entry, err := e.Draw(pool)
		if err != nil {
			return nil, err
		}
		counts[entry.CardID.String()]++
	}

	return counts, nil
}

func totalWeight(pool []models.PoolEntry) float64 {
	total := 0.0
	for _, entry := range pool {
		if entry.Weight > 0 {
			total += entry.Weight
		}
	}
	return total
}
