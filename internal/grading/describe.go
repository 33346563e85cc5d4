package grading

import (
	"encoding/json"
	"strings"

	"github.com/autoescuela/campus/internal/model"
)

// Expected renders the reference answer of a question for review screens.
// Multi-part answers show the first alternative of each part: "a) x; b) y".
func Expected(q model.Question) string {
	switch q.Type {
	case model.QuestionMultipleChoice:
		if o, ok := q.CorrectOption(); ok {
			return o.Text
		}
		return ""
	case model.QuestionOpenText:
		if len(q.AnswerParts) == 1 {
			return first(q.AnswerParts[0])
		}
		labeled := make([]string, len(q.AnswerParts))
		for i, alts := range q.AnswerParts {
			labeled[i] = partLabel(i) + ") " + first(alts)
		}
		return strings.Join(labeled, "; ")
	}
	return ""
}

// Given renders what the student answered. Stored multi-part answers are
// joined with " | ".
func Given(q model.Question, a model.AttemptAnswer) string {
	if q.Type == model.QuestionMultipleChoice {
		if a.OptionID == nil {
			return ""
		}
		for _, o := range q.Options {
			if o.ID == *a.OptionID {
				return o.Text
			}
		}
		return ""
	}
	if a.TextAnswer == nil {
		return ""
	}
	text := *a.TextAnswer
	if q.OpenTextParts() > 1 && strings.HasPrefix(text, "[") {
		var parts []string
		if err := json.Unmarshal([]byte(text), &parts); err == nil {
			return strings.Join(parts, " | ")
		}
	}
	return text
}

func partLabel(i int) string {
	return string(rune('a' + i))
}

func first(alts []string) string {
	if len(alts) == 0 {
		return ""
	}
	return alts[0]
}
