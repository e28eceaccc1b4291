package bank

import (
	"errors"
	"fmt"
	"strings"

	"exam-simulator/internal/domain"
	govalidator "github.com/go-playground/validator/v10"
)

var validate = govalidator.New(govalidator.WithRequiredStructEnabled())

// Validate checks every question of b and returns a *domain.DataIntegrityError
// describing all problems, or nil when the bank is sound.
func Validate(b domain.Bank) error {
	problems := make([]domain.IntegrityProblem, 0)
	if len(b.Questions) == 0 {
		problems = append(problems, domain.IntegrityProblem{Index: 0, Reason: "bank has no questions"})
	}

	seen := make(map[int]int, len(b.Questions))
	for i, q := range b.Questions {
		for _, reason := range checkQuestion(q) {
			problems = append(problems, domain.IntegrityProblem{Index: i + 1, QuestionID: q.ID, Reason: reason})
		}
		if prev, ok := seen[q.ID]; ok && q.ID != 0 {
			problems = append(problems, domain.IntegrityProblem{
				Index:      i + 1,
				QuestionID: q.ID,
				Reason:     fmt.Sprintf("duplicate question id (first at #%d)", prev),
			})
			continue
		}
		seen[q.ID] = i + 1
	}

	if len(problems) == 0 {
		return nil
	}
	return &domain.DataIntegrityError{BankID: b.ID, Problems: problems}
}

func checkQuestion(q domain.Question) []string {
	var reasons []string
	if err := validate.Struct(q); err != nil {
		var ve govalidator.ValidationErrors
		if errors.As(err, &ve) {
			for _, fe := range ve {
				reasons = append(reasons, describe(fe))
			}
		} else {
			reasons = append(reasons, err.Error())
		}
	}

	ids := make(map[int]struct{}, len(q.Choices))
	matches := 0
	for _, c := range q.Choices {
		if _, dup := ids[c.ID]; dup {
			reasons = append(reasons, fmt.Sprintf("duplicate choice id %d", c.ID))
		}
		ids[c.ID] = struct{}{}
		if c.ID == q.CorrectChoiceID {
			matches++
		}
	}
	if q.CorrectChoiceID != 0 && matches != 1 {
		reasons = append(reasons, fmt.Sprintf("answerId %d matches %d choices", q.CorrectChoiceID, matches))
	}
	return reasons
}

func describe(fe govalidator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Question.")
	switch fe.Tag() {
	case "required":
		return field + " is empty"
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", field, fe.Param())
	case "gt":
		return field + " is missing"
	case "oneof":
		return fmt.Sprintf("%s %v is not one of %s", field, fe.Value(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}
