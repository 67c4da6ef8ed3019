package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// maxAvoidQuestions bounds the avoid-list carried by a uniqueness prompt.
const maxAvoidQuestions = 50

// enforceUniqueness re-dispatches slots whose question repeats an earlier
// accepted one, up to UniqueRounds times. Slots still duplicated afterwards
// become failures. outcomes is updated in place.
func (r *generationRun) enforceUniqueness(requests []models.GenerationRequest, outcomes []slotOutcome) {
	for round := 1; round <= r.opts.UniqueRounds; round++ {
		dups := duplicateSlots(outcomes)
		if len(dups) == 0 || context.Cause(r.dispatchCtx) != nil {
			break
		}

		avoid := acceptedQuestions(outcomes, dups)
		retryRequests := make([]models.GenerationRequest, len(dups))
		for i, idx := range dups {
			retryRequests[i] = requests[idx]
		}
		r.logger.Info("Re-generating duplicate questions",
			zap.Int("round", round),
			zap.Int("duplicates", len(dups)))

		redone := r.dispatch(retryRequests, round, avoid)
		for i, idx := range dups {
			redone[i].attempts += outcomes[idx].attempts
			if redone[i].failure != nil {
				redone[i].failure.Attempts = redone[i].attempts
			}
			outcomes[idx] = redone[i]
		}
	}

	for _, idx := range duplicateSlots(outcomes) {
		item := outcomes[idx].item
		outcomes[idx] = slotOutcome{
			attempts: outcomes[idx].attempts,
			failure: &models.SlotFailure{
				Difficulty: item.Difficulty,
				Slot:       item.Slot,
				Attempts:   outcomes[idx].attempts,
				Kind:       "duplicate",
				LastError:  fmt.Errorf("%w: %q", apperrors.ErrDuplicateQuestion, item.Question).Error(),
			},
		}
	}
}

// duplicateSlots returns the indexes of accepted outcomes whose question was
// already accepted at an earlier index. Outcomes are in (difficulty, slot)
// order, so the earliest slot keeps its question.
func duplicateSlots(outcomes []slotOutcome) []int {
	seen := make(map[string]bool)
	var dups []int
	for i, out := range outcomes {
		if out.item == nil {
			continue
		}
		key := questionKey(out.item.Question)
		if seen[key] {
			dups = append(dups, i)
			continue
		}
		seen[key] = true
	}
	return dups
}

// acceptedQuestions lists, per difficulty, the accepted questions that are
// not being re-generated.
func acceptedQuestions(outcomes []slotOutcome, exclude []int) map[models.Difficulty][]string {
	skip := make(map[int]bool, len(exclude))
	for _, idx := range exclude {
		skip[idx] = true
	}
	avoid := make(map[models.Difficulty][]string)
	for i, out := range outcomes {
		if out.item == nil || skip[i] {
			continue
		}
		d := out.item.Difficulty
		if len(avoid[d]) < maxAvoidQuestions {
			avoid[d] = append(avoid[d], out.item.Question)
		}
	}
	return avoid
}

// questionKey folds case, whitespace and trailing punctuation.
func questionKey(q string) string {
	q = strings.Join(strings.Fields(strings.ToLower(q)), " ")
	return strings.TrimRight(q, "?.! ")
}
