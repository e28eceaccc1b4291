package scorer

import (
	"testing"

	"exam-simulator/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func q(id, correct int, rank domain.Rank) domain.Question {
	return domain.Question{
		ID:              id,
		Rank:            rank,
		Statement:       "s",
		Choices:         []domain.Choice{{ID: 1, Text: "a"}, {ID: 2, Text: "b"}, {ID: 5, Text: "c"}},
		CorrectChoiceID: correct,
	}
}

func TestScoreOneOfTwo(t *testing.T) {
	questions := []domain.Question{q(1, 2, ""), q(2, 5, "")}
	result := Score(questions, map[int]int{1: 2}, DefaultPassingThreshold)

	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Correct)
	assert.Equal(t, 50, result.Percentage)
	assert.Equal(t, 1, result.Unanswered)
	assert.False(t, result.Passed)
	require.Len(t, result.Details, 2)
	assert.True(t, result.Details[0].Correct)
	assert.Nil(t, result.Details[1].SelectedChoice)
}

func TestScoreNoAnswers(t *testing.T) {
	questions := []domain.Question{q(1, 1, domain.RankA), q(2, 1, domain.RankB), q(3, 2, "")}
	result := Score(questions, nil, DefaultPassingThreshold)
	assert.Zero(t, result.Correct)
	assert.Zero(t, result.Percentage)
	assert.False(t, result.Passed)
	assert.Equal(t, 3, result.Unanswered)
}

func TestScoreEmptyExam(t *testing.T) {
	result := Score(nil, map[int]int{1: 1}, DefaultPassingThreshold)
	assert.Zero(t, result.Total)
	assert.Zero(t, result.Percentage)
	assert.False(t, result.Passed)
}

func TestScorePassingBoundaryAndRounding(t *testing.T) {
	var questions []domain.Question
	answers := map[int]int{}
	for i := 1; i <= 5; i++ {
		questions = append(questions, q(i, 1, ""))
	}
	answers[1], answers[2], answers[3] = 1, 1, 1
	result := Score(questions, answers, 0.6)
	assert.True(t, result.Passed, "3/5 meets a 0.6 threshold")
	assert.Equal(t, 60, result.Percentage)

	three := []domain.Question{q(1, 1, ""), q(2, 1, ""), q(3, 1, "")}
	result = Score(three, map[int]int{1: 1, 2: 1}, 0.6)
	assert.Equal(t, 67, result.Percentage)
}

func TestScorePerRankDefaultsToD(t *testing.T) {
	questions := []domain.Question{q(1, 1, domain.RankA), q(2, 1, domain.RankA), q(3, 1, ""), q(4, 1, domain.RankD)}
	result := Score(questions, map[int]int{1: 1, 3: 1, 4: 2}, DefaultPassingThreshold)

	assert.Equal(t, domain.RankStat{Total: 2, Correct: 1, Accuracy: 50}, result.PerRank[domain.RankA])
	assert.Equal(t, domain.RankStat{Total: 2, Correct: 1, Accuracy: 50}, result.PerRank[domain.RankD])
	_, hasB := result.PerRank[domain.RankB]
	assert.False(t, hasB)
}

func TestScoreIsPure(t *testing.T) {
	questions := []domain.Question{q(1, 1, domain.RankA), q(2, 2, domain.RankC)}
	answers := map[int]int{1: 1, 2: 1}
	first := Score(questions, answers, DefaultPassingThreshold)
	second := Score(questions, answers, DefaultPassingThreshold)
	assert.Equal(t, first, second)
	assert.Equal(t, map[int]int{1: 1, 2: 1}, answers)
}

func TestWeaknessesSortedAscending(t *testing.T) {
	result := domain.ScoreResult{PerRank: map[domain.Rank]domain.RankStat{
		domain.RankA: {Total: 4, Correct: 1, Accuracy: 25},
		domain.RankB: {Total: 2, Correct: 2, Accuracy: 100},
		domain.RankC: {Total: 2, Correct: 1, Accuracy: 50},
	}}
	got := Weaknesses(result, DefaultPassingThreshold)
	require.Len(t, got, 2)
	assert.Equal(t, domain.RankA, got[0].Rank)
	assert.Equal(t, domain.RankC, got[1].Rank)
	assert.NotEmpty(t, got[0].Suggestion)
}

func TestSummary(t *testing.T) {
	assert.Equal(t, 12, NeededToPass(20, 0.6))
	failed := domain.ScoreResult{Total: 20, Correct: 10, Percentage: 50}
	assert.Contains(t, Summary(failed, 0.6), "12 correct answers are needed")
	passed := domain.ScoreResult{Total: 20, Correct: 15, Percentage: 75, Passed: true}
	assert.Contains(t, Summary(passed, 0.6), "Passed")
}
