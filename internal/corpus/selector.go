package corpus

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Conceptual-Machines/blessing-api/internal/models"
)

// MaxExamples caps the few-shot examples per prompt
const MaxExamples = 3

// MatchLevel records how far the search relaxed before it found entries
type MatchLevel string

const (
	MatchExact             MatchLevel = "exact"
	MatchRelaxed           MatchLevel = "relaxed"
	MatchCrossRelationship MatchLevel = "cross-relationship"
)

// FewShot is the selection handed to the prompt builder
type FewShot struct {
	Examples   []string   `json:"examples"`
	MatchLevel MatchLevel `json:"match_level"`
}

// Empty reports whether there is nothing to show the model
func (f *FewShot) Empty() bool {
	return f == nil || len(f.Examples) == 0
}

// Selector finds and samples few-shot examples from a Corpus
type Selector struct {
	corpus *Corpus

	mu  sync.Mutex
	rng *rand.Rand
}

// SelectorOption configures a Selector
type SelectorOption func(*Selector)

// WithRand makes sampling deterministic
func WithRand(rng *rand.Rand) SelectorOption {
	return func(s *Selector) {
		if rng != nil {
			s.rng = rng
		}
	}
}

// NewSelector creates a selector over c
func NewSelector(c *Corpus, opts ...SelectorOption) *Selector {
	seed := uint64(time.Now().UnixNano())
	s := &Selector{
		corpus: c,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Corpus returns the underlying corpus
func (s *Selector) Corpus() *Corpus {
	return s.corpus
}

// Search runs the relaxation ladder and returns the first non-empty level.
//
//  1. exact cell (rel, mapped buckets, length)         -> exact
//  2. same rel and buckets, every length               -> relaxed
//  3. same rel, every bucket, every length             -> relaxed
//  4. every other rel, mapped buckets, every length    -> cross-relationship
func (s *Selector) Search(rel models.Relationship, style models.Style, length models.Length) ([]Entry, MatchLevel) {
	if s.corpus == nil {
		return nil, MatchCrossRelationship
	}
	buckets := StyleBuckets[style]

	if found := s.corpus.collect(rel, buckets, []models.Length{length}); len(found) > 0 {
		return found, MatchExact
	}
	if found := s.corpus.collect(rel, buckets, models.Lengths); len(found) > 0 {
		return found, MatchRelaxed
	}
	if found := s.corpus.collect(rel, AllBuckets, models.Lengths); len(found) > 0 {
		return found, MatchRelaxed
	}

	var found []Entry
	for _, other := range s.corpus.Relationships() {
		if other == rel {
			continue
		}
		found = append(found, s.corpus.collect(other, buckets, models.Lengths)...)
	}
	return found, MatchCrossRelationship
}

// Select returns up to MaxExamples distinct texts for the cell
func (s *Selector) Select(rel models.Relationship, style models.Style, length models.Length) FewShot {
	found, level := s.Search(rel, style, length)
	picked := s.PickRandom(dedupe(found), MaxExamples, nil)

	examples := make([]string, 0, len(picked))
	for _, e := range picked {
		examples = append(examples, e.Text)
	}
	return FewShot{Examples: examples, MatchLevel: level}
}

// PickRandom samples with the selector's random source
func (s *Selector) PickRandom(entries []Entry, count int, exclude map[string]struct{}) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return PickRandom(s.rng, entries, count, exclude)
}

// PickRandom samples up to count entries without replacement.
// Entries whose text is in exclude are dropped first, unless that leaves nothing.
// The input slice is never modified.
func PickRandom(rng *rand.Rand, entries []Entry, count int, exclude map[string]struct{}) []Entry {
	pool := entries
	if len(exclude) > 0 {
		filtered := make([]Entry, 0, len(entries))
		for _, e := range entries {
			if _, skip := exclude[e.Text]; !skip {
				filtered = append(filtered, e)
			}
		}
		if len(filtered) > 0 {
			pool = filtered
		}
	}

	if count <= 0 || len(pool) == 0 {
		return nil
	}
	if count > len(pool) {
		count = len(pool)
	}

	work := make([]Entry, len(pool))
	copy(work, pool)

	// partial Fisher-Yates from the tail
	out := make([]Entry, 0, count)
	for i := len(work) - 1; i >= len(work)-count; i-- {
		j := rng.IntN(i + 1)
		work[i], work[j] = work[j], work[i]
		out = append(out, work[i])
	}
	return out
}

func dedupe(entries []Entry) []Entry {
	seen := make(map[string]struct{}, len(entries))
	out := entries[:0:0]
	for _, e := range entries {
		if _, ok := seen[e.Text]; ok {
			continue
		}
		seen[e.Text] = struct{}{}
		out = append(out, e)
	}
	return out
}
