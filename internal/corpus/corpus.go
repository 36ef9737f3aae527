package corpus

import (
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/Conceptual-Machines/blessing-api/internal/models"
)

// Entry is one sample greeting
type Entry struct {
	Text      string `json:"text"`
	CharCount int    `json:"char_count"`
	SourceTag string `json:"source"`
}

// Bucket is a corpus-side style grouping. Variants map onto one or more buckets.
type Bucket string

const (
	BucketFormal   Bucket = "formal"
	BucketCasual   Bucket = "casual"
	BucketFunny    Bucket = "funny"
	BucketLiterary Bucket = "literary"
	BucketBrief    Bucket = "brief"
)

// AllBuckets is every corpus bucket, in lookup order
var AllBuckets = []Bucket{BucketFormal, BucketCasual, BucketFunny, BucketLiterary, BucketBrief}

// StyleBuckets maps a variant to the corpus buckets it draws examples from
var StyleBuckets = map[models.Style][]Bucket{
	models.StyleNormal:   {BucketCasual, BucketBrief},
	models.StyleLiterary: {BucketLiterary, BucketFormal},
	models.StyleAbstract: {BucketFunny},
}

type document struct {
	Blessings map[string]map[string]map[string][]Entry `json:"blessings"`
}

// Corpus is read-only after Load and safe for concurrent readers
type Corpus struct {
	index map[models.Relationship]map[Bucket]map[models.Length][]Entry
	size  int
}

// Load parses the corpus document. Unknown keys are kept; they are simply never queried.
func Load(data []byte) (*Corpus, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse corpus: %w", err)
	}

	c := &Corpus{index: make(map[models.Relationship]map[Bucket]map[models.Length][]Entry)}
	for rel, buckets := range doc.Blessings {
		byBucket := make(map[Bucket]map[models.Length][]Entry, len(buckets))
		for bucket, lengths := range buckets {
			byLength := make(map[models.Length][]Entry, len(lengths))
			for length, entries := range lengths {
				list := make([]Entry, 0, len(entries))
				for _, e := range entries {
					if e.Text == "" {
						continue
					}
					if e.CharCount == 0 {
						e.CharCount = utf8.RuneCountInString(e.Text)
					}
					list = append(list, e)
				}
				byLength[models.Length(length)] = list
				c.size += len(list)
			}
			byBucket[Bucket(bucket)] = byLength
		}
		c.index[models.Relationship(rel)] = byBucket
	}
	return c, nil
}

// Entries returns the cell at (rel, bucket, length). The slice must not be modified.
func (c *Corpus) Entries(rel models.Relationship, bucket Bucket, length models.Length) []Entry {
	return c.index[rel][bucket][length]
}

// Size is the total number of entries
func (c *Corpus) Size() int {
	return c.size
}

// Relationships lists the relationships present in the corpus, sorted
func (c *Corpus) Relationships() []models.Relationship {
	out := make([]models.Relationship, 0, len(c.index))
	for rel := range c.index {
		out = append(out, rel)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *Corpus) collect(rel models.Relationship, buckets []Bucket, lengths []models.Length) []Entry {
	var out []Entry
	for _, b := range buckets {
		for _, l := range lengths {
			out = append(out, c.Entries(rel, b, l)...)
		}
	}
	return out
}
