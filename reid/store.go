package reid

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

// identity is one stored embedding, averaged over every match update.
type identity struct {
	id          string
	vector      []float32
	appearances int
	lastSeen    time.Time
}

// Store is an insertion-ordered, soft-capped embedding store matched by
// cosine similarity, adapted from other_examples/adverant-.../
// person_reid.go's PersonReID.findBestMatch/computeFeatureDistance, with
// the distance metric flipped to similarity (spec.md §4.F's default
// threshold of 0.7 is a similarity floor, not a distance ceiling), and
// the 70/30 feature/attribute blend dropped since this pipeline has no
// attribute signal, only the appearance vector.
type Store struct {
	mu        sync.Mutex
	threshold float64
	maxSize   int
	order     []string
	byID      map[string]*identity
}

// NewStore creates a Store with threshold as the minimum cosine
// similarity to accept a match, and maxSize as the soft cap before
// oldest-insertion eviction.
func NewStore(threshold float64, maxSize int) *Store {
	return &Store{
		threshold: threshold,
		maxSize:   maxSize,
		byID:      make(map[string]*identity),
	}
}

// Match returns the best-matching existing ReID ID for vector if its
// cosine similarity clears the store's threshold, updating that
// identity's averaged embedding; otherwise it allocates and inserts a new
// identity, evicting the oldest insertion if the store is at capacity.
func (s *Store) Match(vector []float32) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var bestID string
	bestScore := s.threshold

	for id, ident := range s.byID {
		score := cosineSimilarity(vector, ident.vector)
		if score > bestScore {
			bestScore = score
			bestID = id
		}
	}

	if bestID != "" {
		ident := s.byID[bestID]
		ident.appearances++
		ident.lastSeen = time.Now()
		ident.vector = averageVectors(ident.vector, vector, ident.appearances)
		return bestID
	}

	id := uuid.NewString()
	s.byID[id] = &identity{id: id, vector: vector, appearances: 1, lastSeen: time.Now()}
	s.order = append(s.order, id)

	if s.maxSize > 0 && len(s.byID) > s.maxSize {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.byID, oldest)
	}

	return id
}

// Len returns the number of stored identities.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return -1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return -1
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// averageVectors folds newVec into the running average of an identity
// that has been seen appearances times (appearances already incremented),
// matching person_reid.go's updateAveragedFeatures.
func averageVectors(avg, newVec []float32, appearances int) []float32 {
	if len(avg) != len(newVec) || appearances <= 1 {
		return newVec
	}
	out := make([]float32, len(avg))
	n := float32(appearances)
	for i := range avg {
		out[i] = avg[i] + (newVec[i]-avg[i])/n
	}
	return out
}
