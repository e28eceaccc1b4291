package app_test

import (
	"sync"
	"time"

	"exam-simulator/internal/domain"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: t0} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func question(id, correct int, rank domain.Rank) domain.Question {
	return domain.Question{
		ID:        id,
		Rank:      rank,
		Statement: "question",
		Choices: []domain.Choice{
			{ID: 1, Text: "one"},
			{ID: 2, Text: "two"},
			{ID: 3, Text: "three"},
		},
		CorrectChoiceID: correct,
	}
}

// twoQuestions has question 1 answered correctly by choice 2 and question 2 by choice 3.
func twoQuestions() []domain.Question {
	return []domain.Question{question(1, 2, domain.RankA), question(2, 3, domain.RankB)}
}

func rankedBank(id string, n int) domain.Bank {
	b := domain.Bank{ID: id}
	for i := 1; i <= n; i++ {
		b.Questions = append(b.Questions, question(i, 1+i%3, domain.Ranks[i%len(domain.Ranks)]))
	}
	return b
}
