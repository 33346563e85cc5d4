// Package grading decides whether submitted answers are correct and turns
// correctness counts into scores.
package grading

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/autoescuela/campus/internal/model"
)

// MaxParts is the largest number of labeled parts an open-text question may have.
const MaxParts = 26

const partDelimiter = "|||"

// ModelAnswer lists, for every part of an open-text question, the accepted alternatives.
type ModelAnswer [][]string

// Normalize prepares text for comparison: NFC, case folding, trimming and
// collapsing whitespace runs to a single space.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// ParseDelimited reads the packed form where parts are joined by "|||" and the
// alternatives of a part are separated by newlines.
func ParseDelimited(s string) ModelAnswer {
	var parts ModelAnswer
	for _, raw := range strings.Split(s, partDelimiter) {
		raw = strings.ReplaceAll(raw, "\r\n", "\n")
		parts = append(parts, strings.Split(raw, "\n"))
	}
	return Clean(parts)
}

// Clean trims every alternative, drops empty and duplicate alternatives, and
// drops parts left without alternatives.
func Clean(m ModelAnswer) ModelAnswer {
	var out ModelAnswer
	for _, alts := range m {
		seen := make(map[string]bool)
		var kept []string
		for _, alt := range alts {
			alt = strings.TrimSpace(alt)
			key := Normalize(alt)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			kept = append(kept, alt)
		}
		if len(kept) > 0 {
			out = append(out, kept)
		}
	}
	return out
}

// Validate checks that a cleaned model answer can be graded.
func (m ModelAnswer) Validate() error {
	if len(m) == 0 {
		return model.Invalid("answer_parts", "at least one accepted answer is required")
	}
	if len(m) > MaxParts {
		return model.Invalid("answer_parts", "at most %d parts are allowed", MaxParts)
	}
	return nil
}

// Matches reports whether every part of submitted equals one of that part's
// alternatives after normalization. Missing parts count as empty and never match.
func (m ModelAnswer) Matches(submitted []string) bool {
	if len(m) == 0 {
		return false
	}
	for i, alts := range m {
		var got string
		if i < len(submitted) {
			got = Normalize(submitted[i])
		}
		if got == "" || !matchesAny(got, alts) {
			return false
		}
	}
	return true
}

func matchesAny(normalized string, alts []string) bool {
	for _, alt := range alts {
		if Normalize(alt) == normalized {
			return true
		}
	}
	return false
}

// Submitted returns the texts of an answer padded or cut to n parts.
func Submitted(in model.AnswerInput, n int) []string {
	texts := in.TextAnswers
	if len(texts) == 0 && in.TextAnswer != nil {
		texts = []string{*in.TextAnswer}
	}
	out := make([]string, n)
	copy(out, texts)
	return out
}

// Grade checks one answer against its question and returns the row to store.
func Grade(q model.Question, in model.AnswerInput) (model.AttemptAnswer, error) {
	ans := model.AttemptAnswer{QuestionID: q.ID}
	switch q.Type {
	case model.QuestionMultipleChoice:
		if in.OptionID != nil && hasOption(q, *in.OptionID) {
			id := *in.OptionID
			ans.OptionID = &id
			if correct, ok := q.CorrectOption(); ok {
				ans.IsCorrect = correct.ID == id
			}
		}
	case model.QuestionOpenText:
		n := q.OpenTextParts()
		texts := Submitted(in, n)
		ans.IsCorrect = ModelAnswer(q.AnswerParts).Matches(texts)
		stored, err := encodeTexts(in, texts)
		if err != nil {
			return ans, err
		}
		ans.TextAnswer = stored
	default:
		return ans, fmt.Errorf("question %s: unknown type %q", q.ID, q.Type)
	}
	return ans, nil
}

// encodeTexts keeps a single-part answer as typed and stores multi-part
// answers as a JSON array.
func encodeTexts(in model.AnswerInput, texts []string) (*string, error) {
	if len(texts) > 1 {
		data, err := json.Marshal(texts)
		if err != nil {
			return nil, fmt.Errorf("encode text answers: %w", err)
		}
		s := string(data)
		return &s, nil
	}
	if in.TextAnswer != nil {
		s := *in.TextAnswer
		return &s, nil
	}
	if len(in.TextAnswers) > 0 {
		s := in.TextAnswers[0]
		return &s, nil
	}
	return nil, nil
}

func hasOption(q model.Question, id uuid.UUID) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// Score returns the percentage of correct answers, or 0 when there are none.
func Score(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(correct) * 100 / float64(total)
}

// Passed reports whether score reaches the passing score.
func Passed(score float64, passingScore int) bool {
	return score >= float64(passingScore)
}
