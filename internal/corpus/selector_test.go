package corpus

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/Conceptual-Machines/blessing-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `{
  "blessings": {
    "friend": {
      "funny":  {"short": [{"text": "马上暴富", "char_count": 4, "source": "t"}]},
      "casual": {"long":  [{"text": "新的一年一起吃好喝好", "source": "t"}]},
      "brief":  {"long":  [{"text": "新年快乐"}]}
    },
    "elder": {
      "formal": {"medium": [{"text": "福如东海"}]}
    },
    "leader": {
      "funny": {"medium": [{"text": "老板马年发大财"}]}
    },
    "customer": {
      "literary": {"long": [{"text": "春风送暖"}]},
      "formal":   {"short": [{"text": "合作共赢"}]}
    }
  }
}`

func loadFixture(t *testing.T) *Corpus {
	t.Helper()
	c, err := Load([]byte(fixture))
	require.NoError(t, err)
	return c
}

func seeded() *rand.Rand {
	return rand.New(rand.NewPCG(42, 7))
}

func texts(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Text)
	}
	return out
}

func TestLoad(t *testing.T) {
	c := loadFixture(t)

	assert.Equal(t, 7, c.Size())
	got := c.Entries(models.RelationshipFriend, BucketCasual, models.LengthLong)
	require.Len(t, got, 1)
	assert.Equal(t, 10, got[0].CharCount, "char count is derived from runes when absent")

	_, err := Load([]byte("{"))
	assert.Error(t, err)

	empty, err := Load([]byte(`{}`))
	require.NoError(t, err)
	assert.Zero(t, empty.Size())
}

func TestSearchLevels(t *testing.T) {
	s := NewSelector(loadFixture(t), WithRand(seeded()))

	tests := []struct {
		name   string
		rel    models.Relationship
		style  models.Style
		length models.Length
		level  MatchLevel
		want   []string
	}{
		{"exact", models.RelationshipFriend, models.StyleAbstract, models.LengthShort, MatchExact, []string{"马上暴富"}},
		{"relax length", models.RelationshipFriend, models.StyleNormal, models.LengthShort, MatchRelaxed, []string{"新的一年一起吃好喝好", "新年快乐"}},
		{"relax style", models.RelationshipElder, models.StyleAbstract, models.LengthShort, MatchRelaxed, []string{"福如东海"}},
		{"cross relationship", models.RelationshipPartner, models.StyleAbstract, models.LengthLong, MatchCrossRelationship, []string{"马上暴富", "老板马年发大财"}},
		{"cross relationship over several buckets", models.RelationshipPartner, models.StyleLiterary, models.LengthLong, MatchCrossRelationship, []string{"春风送暖", "合作共赢", "福如东海"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, level := s.Search(tt.rel, tt.style, tt.length)
			assert.Equal(t, tt.level, level)
			assert.ElementsMatch(t, tt.want, texts(found))
		})
	}
}

func TestSearchRelaxedStaysInRelationshipAndStyle(t *testing.T) {
	s := NewSelector(loadFixture(t))

	found, level := s.Search(models.RelationshipFriend, models.StyleNormal, models.LengthMedium)
	assert.Equal(t, MatchRelaxed, level)
	for _, text := range texts(found) {
		assert.NotEqual(t, "马上暴富", text, "funny bucket belongs to another variant")
	}
}

func TestSelectEmptyCorpus(t *testing.T) {
	c, err := Load([]byte(`{"blessings": {}}`))
	require.NoError(t, err)

	fs := NewSelector(c).Select(models.RelationshipFriend, models.StyleNormal, models.LengthShort)
	assert.Equal(t, MatchCrossRelationship, fs.MatchLevel)
	assert.Empty(t, fs.Examples)
	assert.True(t, fs.Empty())
}

func TestSelectDedupesAndCaps(t *testing.T) {
	doc := `{"blessings":{"friend":{"casual":{"short":[
		{"text":"a"},{"text":"a"},{"text":"b"},{"text":"c"},{"text":"d"},{"text":"e"}
	]}}}}`
	c, err := Load([]byte(doc))
	require.NoError(t, err)

	s := NewSelector(c, WithRand(seeded()))
	for i := 0; i < 20; i++ {
		fs := s.Select(models.RelationshipFriend, models.StyleNormal, models.LengthShort)
		require.Len(t, fs.Examples, MaxExamples)
		assert.Len(t, uniq(fs.Examples), MaxExamples)
		assert.Equal(t, MatchExact, fs.MatchLevel)
	}
}

func uniq(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, s := range in {
		out[s] = struct{}{}
	}
	return out
}

func tenEntries() []Entry {
	out := make([]Entry, 10)
	for i := range out {
		out[i] = Entry{Text: fmt.Sprintf("entry-%d", i)}
	}
	return out
}

func TestPickRandomDistinctFromPool(t *testing.T) {
	pool := tenEntries()
	inPool := uniq(texts(pool))
	rng := seeded()

	for i := 0; i < 100; i++ {
		got := PickRandom(rng, pool, 3, nil)
		require.Len(t, got, 3)
		assert.Len(t, uniq(texts(got)), 3)
		for _, e := range got {
			assert.Contains(t, inPool, e.Text)
		}
	}

	assert.Equal(t, tenEntries(), pool, "input must not be reordered")
}

func TestPickRandomExhaustedExclusionFallsBack(t *testing.T) {
	pool := tenEntries()
	exclude := uniq(texts(pool))

	got := PickRandom(seeded(), pool, 3, exclude)
	assert.Len(t, got, 3)
}

func TestPickRandomHonorsExclusion(t *testing.T) {
	pool := tenEntries()
	exclude := map[string]struct{}{}
	for i := 0; i < 8; i++ {
		exclude[pool[i].Text] = struct{}{}
	}

	got := PickRandom(seeded(), pool, 3, exclude)
	assert.ElementsMatch(t, []string{"entry-8", "entry-9"}, texts(got))
}

func TestPickRandomBounds(t *testing.T) {
	assert.Nil(t, PickRandom(seeded(), nil, 3, nil))
	assert.Nil(t, PickRandom(seeded(), tenEntries(), 0, nil))
	assert.Len(t, PickRandom(seeded(), tenEntries()[:2], 3, nil), 2)
}

func TestPickRandomCoversWholePool(t *testing.T) {
	pool := tenEntries()
	rng := seeded()
	seen := map[string]int{}
	for i := 0; i < 2000; i++ {
		for _, e := range PickRandom(rng, pool, 3, nil) {
			seen[e.Text]++
		}
	}
	require.Len(t, seen, 10)
	for text, n := range seen {
		// expected 600 per entry
		assert.InDelta(t, 600, n, 150, text)
	}
}
