// Package concerts is the upcoming-events index: an embedded vector
// database over the concert listings, searched by free text and
// narrowed by structured filters.
package concerts

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	chromem "github.com/philippgille/chromem-go"
)

//go:embed data/concerts.json
var seedRaw []byte

const collectionName = "concerts"

// Concert is one listed event.
type Concert struct {
	ID               string  `json:"id"`
	Artist           string  `json:"artist"`
	Genre            string  `json:"genre"`
	Venue            string  `json:"venue"`
	City             string  `json:"city"`
	Country          string  `json:"country"`
	Date             string  `json:"date"`
	PriceFrom        float64 `json:"price_from"`
	TicketsAvailable bool    `json:"tickets_available"`
}

// Filter narrows a search beyond the free-text query. Zero values mean
// no constraint.
type Filter struct {
	Genre         string
	Location      string
	MaxPrice      *float64
	OnlyAvailable bool
}

// Result pairs a concert with its similarity to the query.
type Result struct {
	Concert
	Score float32 `json:"score"`
}

// Index is the in-process vector index over the listings.
type Index struct {
	db       *chromem.DB
	embed    chromem.EmbeddingFunc
	concerts map[string]Concert
}

// New builds an index with the given embedding function. Pass nil to
// use the deterministic local embedding, which needs no external
// service.
func New(embed chromem.EmbeddingFunc) *Index {
	if embed == nil {
		embed = DeterministicEmbedding()
	}
	return &Index{
		db:       chromem.NewDB(),
		embed:    embed,
		concerts: make(map[string]Concert),
	}
}

// Load indexes the embedded concert listings.
func (x *Index) Load(ctx context.Context) error {
	var concerts []Concert
	if err := json.Unmarshal(seedRaw, &concerts); err != nil {
		return fmt.Errorf("decode concert listings: %w", err)
	}
	return x.Add(ctx, concerts)
}

// Add indexes listings, replacing any with the same id.
func (x *Index) Add(ctx context.Context, concerts []Concert) error {
	if len(concerts) == 0 {
		return nil
	}
	collection, err := x.db.GetOrCreateCollection(collectionName, nil, x.embed)
	if err != nil {
		return fmt.Errorf("concert collection: %w", err)
	}

	docs := make([]chromem.Document, 0, len(concerts))
	for _, c := range concerts {
		if c.ID == "" {
			return fmt.Errorf("concert without id: %s", c.Artist)
		}
		x.concerts[c.ID] = c
		docs = append(docs, chromem.Document{
			ID:      c.ID,
			Content: describe(c),
			Metadata: map[string]string{
				"genre": strings.ToLower(c.Genre),
			},
		})
	}
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("index concerts: %w", err)
	}
	return nil
}

// Search finds concerts matching the query and filter, best match
// first.
func (x *Index) Search(ctx context.Context, query string, filter Filter, limit int) ([]Result, error) {
	collection := x.db.GetCollection(collectionName, x.embed)
	if collection == nil || collection.Count() == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	var where map[string]string
	if g := strings.TrimSpace(filter.Genre); g != "" {
		where = map[string]string{"genre": strings.ToLower(g)}
	}

	// Over-fetch so post-filtering on location, price, and
	// availability still fills the limit.
	k := collection.Count()
	hits, err := collection.Query(ctx, query, k, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query concerts: %w", err)
	}

	out := make([]Result, 0, limit)
	for _, hit := range hits {
		concert, ok := x.concerts[hit.ID]
		if !ok {
			continue
		}
		if !matches(concert, filter) {
			continue
		}
		out = append(out, Result{Concert: concert, Score: hit.Similarity})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func matches(c Concert, filter Filter) bool {
	if filter.OnlyAvailable && !c.TicketsAvailable {
		return false
	}
	if filter.MaxPrice != nil && c.PriceFrom > *filter.MaxPrice {
		return false
	}
	if loc := strings.ToLower(strings.TrimSpace(filter.Location)); loc != "" {
		if !strings.Contains(strings.ToLower(c.City), loc) && !strings.Contains(strings.ToLower(c.Country), loc) {
			return false
		}
	}
	return true
}

func describe(c Concert) string {
	return fmt.Sprintf("%s, a %s concert at %s in %s, %s on %s",
		c.Artist, c.Genre, c.Venue, c.City, c.Country, c.Date)
}

// DeterministicEmbedding is a local bag-of-words embedding: each token
// hashes to a dimension. It has no semantic depth but is stable,
// dependency-free, and good enough to rank keyword overlap, which
// keeps the index usable without an embeddings API key.
func DeterministicEmbedding() chromem.EmbeddingFunc {
	const dims = 256
	return func(ctx context.Context, text string) ([]float32, error) {
		vec := make([]float32, dims)
		for _, tok := range strings.Fields(strings.ToLower(text)) {
			tok = strings.Trim(tok, ".,!?;:'\"()")
			if tok == "" {
				continue
			}
			h := fnv.New32a()
			h.Write([]byte(tok))
			vec[h.Sum32()%dims]++
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		if norm == 0 {
			vec[0] = 1
			return vec, nil
		}
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
		return vec, nil
	}
}
