package sampler

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"exam-simulator/internal/bank"
	"exam-simulator/internal/domain"
)

const (
	// DefaultFillAttempts bounds the random draws used to fill a rank shortfall.
	DefaultFillAttempts = 1000
	// DefaultShufflePasses is the number of Fisher-Yates passes over the final selection.
	DefaultShufflePasses = 3
)

// Sampler selects non-repeating question subsets. It is safe for concurrent use.
type Sampler struct {
	fillAttempts  int
	shufflePasses int

	mu  sync.Mutex
	rnd *rand.Rand
}

type Option func(*Sampler)

// WithFillAttempts overrides the fill-attempt budget.
func WithFillAttempts(n int) Option {
	return func(s *Sampler) {
		if n > 0 {
			s.fillAttempts = n
		}
	}
}

// WithShufflePasses overrides how often the final selection is reshuffled (minimum 1).
func WithShufflePasses(n int) Option {
	return func(s *Sampler) {
		if n > 0 {
			s.shufflePasses = n
		}
	}
}

func New(opts ...Option) *Sampler {
	s := &Sampler{
		fillAttempts:  DefaultFillAttempts,
		shufflePasses: DefaultShufflePasses,
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select draws up to targetCount questions from pool. Without weights it is a
// plain shuffle-and-take; with weights each rank contributes
// floor(targetCount*weight) questions before the shortfall is filled from the
// whole pool. The result carries display ids 1..n and keeps the bank id in
// OriginalID. A pool smaller than targetCount yields a partial exam.
func (s *Sampler) Select(pool []domain.Question, targetCount int, weights domain.RankWeights) []domain.Question {
	if targetCount <= 0 || len(pool) == 0 {
		return []domain.Question{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var selected []domain.Question
	if len(weights) == 0 {
		selected = s.take(pool, targetCount)
	} else {
		selected = s.weighted(pool, targetCount, weights)
		for i := 0; i < s.shufflePasses; i++ {
			s.shuffle(selected)
		}
	}
	return renumber(selected)
}

func (s *Sampler) weighted(pool []domain.Question, targetCount int, weights domain.RankWeights) []domain.Question {
	groups := bank.GroupByRank(pool)
	selected := make([]domain.Question, 0, targetCount)
	for _, rank := range domain.Ranks {
		w := weights[rank]
		if w <= 0 {
			continue
		}
		need := int(math.Floor(float64(targetCount) * w))
		selected = append(selected, s.take(groups[rank], need)...)
	}
	if len(selected) > targetCount {
		selected = selected[:targetCount]
	}
	return s.fill(selected, pool, targetCount)
}

// fill tops selected up with random pool members it does not hold yet. After
// the attempt budget is spent the shortfall is accepted.
func (s *Sampler) fill(selected, pool []domain.Question, targetCount int) []domain.Question {
	taken := make(map[int]struct{}, targetCount)
	for _, q := range selected {
		taken[q.SourceID()] = struct{}{}
	}
	for attempts := 0; len(selected) < targetCount && attempts < s.fillAttempts; attempts++ {
		candidate := pool[s.rnd.Intn(len(pool))]
		if _, dup := taken[candidate.SourceID()]; dup {
			continue
		}
		taken[candidate.SourceID()] = struct{}{}
		selected = append(selected, candidate)
	}
	return selected
}

// take returns n distinct members of questions in random order, or all of them
// when fewer are available. The input slice is left untouched.
func (s *Sampler) take(questions []domain.Question, n int) []domain.Question {
	if n <= 0 || len(questions) == 0 {
		return nil
	}
	shuffled := make([]domain.Question, len(questions))
	copy(shuffled, questions)
	s.shuffle(shuffled)
	if n < len(shuffled) {
		shuffled = shuffled[:n]
	}
	return shuffled
}

// shuffle is an in-place Fisher-Yates pass.
func (s *Sampler) shuffle(questions []domain.Question) {
	for i := len(questions) - 1; i > 0; i-- {
		j := s.rnd.Intn(i + 1)
		questions[i], questions[j] = questions[j], questions[i]
	}
}

func renumber(questions []domain.Question) []domain.Question {
	out := make([]domain.Question, len(questions))
	for i, q := range questions {
		q.OriginalID = q.SourceID()
		q.ID = i + 1
		q.Choices = append([]domain.Choice(nil), q.Choices...)
		out[i] = q
	}
	return out
}

// Distribution counts questions per rank, unranked ones under the default rank.
func Distribution(questions []domain.Question) map[domain.Rank]int {
	dist := make(map[domain.Rank]int, len(domain.Ranks))
	for _, q := range questions {
		dist[q.Rank.OrDefault()]++
	}
	return dist
}
