package practice

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/proenglish/go_proenglish/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// CheckAnswer grades answer. Option-based challenges compare option ids;
// spoken and dictated ones compare normalised text.
func CheckAnswer(ch model.Challenge, answer model.AnswerSubmission) (bool, error) {
	switch ch.Type {
	case model.ChallengeSelect, model.ChallengeAssist:
		if answer.OptionID == "" {
			return false, ErrEmptyAnswer
		}
		for _, o := range ch.Options {
			if o.ID == answer.OptionID {
				return o.Correct, nil
			}
		}
		return false, nil
	case model.ChallengeSpeaking, model.ChallengeListening:
		got := Normalize(answer.Text)
		if got == "" {
			return false, ErrEmptyAnswer
		}
		return got == Normalize(ch.Answer), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownChallengeType, ch.Type)
	}
}

// Normalize strips accents and punctuation, folds case and collapses whitespace,
// so "Héllo,  World!" and "hello world" compare equal.
func Normalize(s string) string {
	t := transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Map(func(r rune) rune {
			if unicode.IsPunct(r) || unicode.IsSymbol(r) {
				return ' '
			}
			return r
		}),
		norm.NFC,
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(folder.String(out)), " ")
}
