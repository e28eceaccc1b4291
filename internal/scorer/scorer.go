package scorer

import (
	"fmt"
	"math"
	"sort"

	"exam-simulator/internal/domain"
)

// DefaultPassingThreshold is the fraction of correct answers needed to pass.
const DefaultPassingThreshold = 0.6

// Score grades questions against answers. Unanswered questions count as
// incorrect. It is a pure function of its inputs.
func Score(questions []domain.Question, answers map[int]int, passingThreshold float64) domain.ScoreResult {
	result := domain.ScoreResult{
		Total:   len(questions),
		PerRank: make(map[domain.Rank]domain.RankStat),
		Details: make([]domain.QuestionResult, 0, len(questions)),
	}

	for i, q := range questions {
		rank := q.Rank.OrDefault()
		detail := domain.QuestionResult{
			Number:          i + 1,
			QuestionID:      q.ID,
			OriginalID:      q.SourceID(),
			Rank:            rank,
			Statement:       q.Statement,
			CorrectChoiceID: q.CorrectChoiceID,
			Explanation:     q.Explanation,
		}
		stat := result.PerRank[rank]
		stat.Total++

		if selected, ok := answers[q.ID]; ok {
			choice := selected
			detail.SelectedChoice = &choice
			detail.Correct = selected == q.CorrectChoiceID
		} else {
			result.Unanswered++
		}
		if detail.Correct {
			result.Correct++
			stat.Correct++
		}
		result.PerRank[rank] = stat
		result.Details = append(result.Details, detail)
	}

	for rank, stat := range result.PerRank {
		stat.Accuracy = accuracy(stat.Correct, stat.Total)
		result.PerRank[rank] = stat
	}

	if result.Total > 0 {
		ratio := float64(result.Correct) / float64(result.Total)
		result.Percentage = int(math.Round(100 * ratio))
		result.Passed = ratio >= passingThreshold
	}
	return result
}

func accuracy(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total) * 100
}

// Weakness is a rank whose accuracy fell below the passing line.
type Weakness struct {
	Rank       domain.Rank `json:"rank"`
	Accuracy   float64     `json:"accuracy"`
	Correct    int         `json:"correct"`
	Total      int         `json:"total"`
	Suggestion string      `json:"suggestion"`
}

var suggestions = map[domain.Rank]string{
	domain.RankA: "Top-priority, frequently examined material. Review it first and practise similar questions.",
	domain.RankB: "Important fundamentals. Go back over the reference text to firm them up.",
	domain.RankC: "Standard questions. Working through past papers builds familiarity.",
	domain.RankD: "Supplementary material. Reviewing it widens your coverage.",
}

// Weaknesses lists ranks with accuracy below threshold, weakest first.
func Weaknesses(result domain.ScoreResult, threshold float64) []Weakness {
	var out []Weakness
	for rank, stat := range result.PerRank {
		if stat.Total == 0 || stat.Accuracy >= threshold*100 {
			continue
		}
		out = append(out, Weakness{
			Rank:       rank,
			Accuracy:   stat.Accuracy,
			Correct:    stat.Correct,
			Total:      stat.Total,
			Suggestion: suggestions[rank],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Accuracy != out[j].Accuracy {
			return out[i].Accuracy < out[j].Accuracy
		}
		return out[i].Rank < out[j].Rank
	})
	return out
}

// NeededToPass is the smallest correct count that passes an exam of total questions.
func NeededToPass(total int, threshold float64) int {
	return int(math.Ceil(threshold * float64(total)))
}

// Summary renders a one-paragraph verdict for the results view.
func Summary(result domain.ScoreResult, threshold float64) string {
	if result.Passed {
		return fmt.Sprintf("Passed. Score %d%% (%d/%d correct).", result.Percentage, result.Correct, result.Total)
	}
	return fmt.Sprintf("Not passed. Score %d%% (%d/%d correct); %d correct answers are needed to pass.",
		result.Percentage, result.Correct, result.Total, NeededToPass(result.Total, threshold))
}
