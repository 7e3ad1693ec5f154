// Package practice holds the gamification rules of the practice lab:
// hearts, grading, points, achievements and the leaderboard.
package practice

import (
	"errors"
	"fmt"
	"slices"

	"github.com/proenglish/go_proenglish/internal/model"
)

const (
	DefaultMaxHearts   = 5
	PointsPerChallenge = 10
)

var (
	ErrNoHearts             = errors.New("practice: no hearts left")
	ErrUnknownChallengeType = errors.New("practice: unknown challenge type")
	ErrEmptyAnswer          = errors.New("practice: answer is empty")
	ErrChallengeMismatch    = errors.New("practice: answer is for another challenge")
)

// Rules applies the hearts and points economy.
type Rules struct {
	MaxHearts int
}

// NewRules returns Rules with maxHearts, falling back to DefaultMaxHearts.
func NewRules(maxHearts int) Rules {
	if maxHearts <= 0 {
		maxHearts = DefaultMaxHearts
	}
	return Rules{MaxHearts: maxHearts}
}

// ConsumeHeart removes one heart.
func (r Rules) ConsumeHeart(p *model.StudentProgress) error {
	if p.Hearts <= 0 {
		return ErrNoHearts
	}
	p.Hearts--
	return nil
}

// RefillHearts restores hearts to the maximum.
func (r Rules) RefillHearts(p *model.StudentProgress) {
	p.Hearts = r.MaxHearts
}

// ApplyAnswer grades answer against ch and returns the updated progress.
// p is not modified.
//
// A first correct answer completes the challenge. Answering a completed
// challenge again is practice: correct answers also restore a heart and wrong
// ones cost nothing.
func (r Rules) ApplyAnswer(p model.StudentProgress, ch model.Challenge, answer model.AnswerSubmission, achievements []model.Achievement) (model.AnswerResult, error) {
	if answer.ChallengeID != "" && answer.ChallengeID != ch.ID {
		return model.AnswerResult{}, fmt.Errorf("%w: %s != %s", ErrChallengeMismatch, answer.ChallengeID, ch.ID)
	}
	correct, err := CheckAnswer(ch, answer)
	if err != nil {
		return model.AnswerResult{}, err
	}

	next := p
	next.CompletedChallenges = slices.Clone(p.CompletedChallenges)
	if next.CompletedChallenges == nil {
		next.CompletedChallenges = []string{}
	}
	practice := p.HasCompleted(ch.ID)

	switch {
	case correct && practice:
		next.Points += PointsPerChallenge
		if next.Hearts < r.MaxHearts {
			next.Hearts++
		}
	case correct:
		next.Points += PointsPerChallenge
		next.CompletedChallenges = append(next.CompletedChallenges, ch.ID)
	case !practice:
		if err := r.ConsumeHeart(&next); err != nil {
			return model.AnswerResult{}, err
		}
	}

	return model.AnswerResult{
		Correct:  correct,
		Practice: practice,
		Progress: next,
		Unlocked: NewlyUnlocked(achievements, p.Points, next.Points),
	}, nil
}

// Annotate returns achievements with Unlocked set for p.
func Annotate(achievements []model.Achievement, p model.StudentProgress) []model.Achievement {
	out := make([]model.Achievement, len(achievements))
	for i, a := range achievements {
		a.Unlocked = p.Points >= a.Points
		out[i] = a
	}
	return out
}

// NewlyUnlocked returns achievements crossed when points went from before to after.
func NewlyUnlocked(achievements []model.Achievement, before, after int) []model.Achievement {
	var out []model.Achievement
	for _, a := range achievements {
		if before < a.Points && after >= a.Points {
			a.Unlocked = true
			out = append(out, a)
		}
	}
	return out
}
