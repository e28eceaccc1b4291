package bank

import (
	"context"
	"math"
	"strings"

	"exam-simulator/internal/domain"
)

// Loader fetches a question bank from a backing store.
type Loader interface {
	LoadBank(ctx context.Context, bankID string) (domain.Bank, error)
}

// GroupByRank buckets questions by rank; unranked questions land in the default rank.
func GroupByRank(questions []domain.Question) map[domain.Rank][]domain.Question {
	groups := make(map[domain.Rank][]domain.Question, len(domain.Ranks))
	for _, q := range questions {
		r := q.Rank.OrDefault()
		groups[r] = append(groups[r], q)
	}
	return groups
}

// Ranked returns only the questions that carry an explicit rank.
func Ranked(questions []domain.Question) []domain.Question {
	out := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		if q.Rank != "" {
			out = append(out, q)
		}
	}
	return out
}

// Filter keeps questions of the given rank. An empty rank keeps everything.
func Filter(questions []domain.Question, rank domain.Rank) []domain.Question {
	if rank == "" {
		return questions
	}
	out := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		if q.Rank.OrDefault() == rank {
			out = append(out, q)
		}
	}
	return out
}

// Search returns questions whose statement or any choice contains query,
// case-insensitively. A blank query returns all questions.
func Search(questions []domain.Question, query string) []domain.Question {
	term := strings.ToLower(strings.TrimSpace(query))
	if term == "" {
		return questions
	}
	var out []domain.Question
	for _, q := range questions {
		if strings.Contains(strings.ToLower(q.Statement), term) {
			out = append(out, q)
			continue
		}
		for _, c := range q.Choices {
			if strings.Contains(strings.ToLower(c.Text), term) {
				out = append(out, q)
				break
			}
		}
	}
	return out
}

// RankCount is the share of a bank held by one rank.
type RankCount struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Statistics summarizes a bank.
type Statistics struct {
	BankID         string                    `json:"bankId"`
	Total          int                       `json:"total"`
	ByRank         map[domain.Rank]RankCount `json:"byRank"`
	AverageChoices float64                   `json:"averageChoices"`
}

// Stats computes Statistics for b.
func Stats(b domain.Bank) Statistics {
	total := len(b.Questions)
	stats := Statistics{BankID: b.ID, Total: total, ByRank: make(map[domain.Rank]RankCount)}
	if total == 0 {
		return stats
	}
	choices := 0
	for rank, qs := range GroupByRank(b.Questions) {
		stats.ByRank[rank] = RankCount{
			Count:      len(qs),
			Percentage: round1(float64(len(qs)) / float64(total) * 100),
		}
	}
	for _, q := range b.Questions {
		choices += len(q.Choices)
	}
	stats.AverageChoices = round1(float64(choices) / float64(total))
	return stats
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
