// Package policy provides the policy-snippet retrieval collaborator: a
// query → ordered snippets interface plus a local implementation that ranks
// chunks of a warranty policy document by term overlap.
package policy

import (
	"context"
	"os"
	"sort"
	"strings"
	"time"
	"unicode"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Retriever returns policy text snippets relevant to a query, most
// relevant first.
type Retriever interface {
	Query(ctx context.Context, query string) ([]string, error)
}

const (
	defaultTopK         = 4
	defaultChunkSize    = 800
	defaultChunkOverlap = 150
	defaultCacheTTL     = 24 * time.Hour
)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithTopK sets the number of snippets returned per query.
func WithTopK(k int) StoreOption {
	return func(s *Store) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithChunking sets the chunk size and overlap, in characters.
func WithChunking(size, overlap int) StoreOption {
	return func(s *Store) {
		if size > 0 {
			s.chunkSize = size
		}
		if overlap >= 0 && overlap < size {
			s.chunkOverlap = overlap
		}
	}
}

// WithCacheTTL sets how long query results are cached.
func WithCacheTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

type chunk struct {
	text  string
	terms map[string]int
}

// Store is a local policy snippet index. It is built once at startup and
// is safe for concurrent queries.
type Store struct {
	chunks       []chunk
	topK         int
	chunkSize    int
	chunkOverlap int
	cacheTTL     time.Duration
	cache        *gocache.Cache
}

// NewStore loads a policy document from disk and indexes it.
func NewStore(path string, opts ...StoreOption) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "policy: read document")
	}
	return NewStoreFromText(string(data), opts...), nil
}

// NewStoreFromText indexes already-loaded policy text.
func NewStoreFromText(text string, opts ...StoreOption) *Store {
	s := &Store{
		topK:         defaultTopK,
		chunkSize:    defaultChunkSize,
		chunkOverlap: defaultChunkOverlap,
		cacheTTL:     defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = gocache.New(s.cacheTTL, s.cacheTTL)

	for _, piece := range splitChunks(text, s.chunkSize, s.chunkOverlap) {
		s.chunks = append(s.chunks, chunk{
			text:  piece,
			terms: termCounts(piece),
		})
	}

	zap.L().Info("policy: document indexed",
		zap.Int("chunks", len(s.chunks)),
		zap.Int("chunk_size", s.chunkSize),
	)

	return s
}

// Query returns the topK most relevant snippets for the query. Results are
// cached per query string.
func (s *Store) Query(_ context.Context, query string) ([]string, error) {
	if cached, ok := s.cache.Get(query); ok {
		return cached.([]string), nil
	}

	queryTerms := termCounts(query)

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, 0, len(s.chunks))
	for i, ch := range s.chunks {
		sc := overlapScore(queryTerms, ch.terms)
		if sc > 0 {
			ranked = append(ranked, scored{idx: i, score: sc})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	k := s.topK
	if k > len(ranked) {
		k = len(ranked)
	}
	snippets := make([]string, 0, k)
	for _, r := range ranked[:k] {
		snippets = append(snippets, s.chunks[r.idx].text)
	}

	s.cache.Set(query, snippets, gocache.DefaultExpiration)
	return snippets, nil
}

// splitChunks slices text into overlapping windows, preferring to break at
// whitespace near the window boundary.
func splitChunks(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	step := size - overlap
	for start := 0; start < len(text); start += step {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, strings.TrimSpace(text[start:]))
			break
		}
		// Back up to the nearest whitespace so words stay whole.
		cut := end
		for cut > start && !unicode.IsSpace(rune(text[cut-1])) {
			cut--
		}
		if cut == start {
			cut = end
		}
		chunks = append(chunks, strings.TrimSpace(text[start:cut]))
	}
	return chunks
}

// termCounts tokenizes text into lowercase terms and counts occurrences.
func termCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(tok) < 2 {
			continue
		}
		counts[tok]++
	}
	return counts
}

// overlapScore sums chunk term frequencies for terms shared with the query,
// normalized by chunk length so long chunks don't dominate.
func overlapScore(query, chunkTerms map[string]int) float64 {
	var total int
	for term := range query {
		total += chunkTerms[term]
	}
	if total == 0 {
		return 0
	}
	var chunkLen int
	for _, n := range chunkTerms {
		chunkLen += n
	}
	return float64(total) / float64(chunkLen+1)
}
