package router

import (
	"fmt"

	"github.com/codefleet/foreman/pkg/models"
)

// decompositionHighThreshold is the complexity at which decomposition
// planning moves to the highest tier.
const decompositionHighThreshold = 8.0

// GetFixDecision is the retry policy consulted after a task failure.
// Retries escalate through the paid tiers; the third failure goes to a
// human, not another model.
func GetFixDecision(failureCount int) models.FixDecision {
	switch {
	case failureCount <= 1:
		return models.FixDecision{
			Tier:   models.TierLowCost,
			Reason: "first failure, low-cost retry",
		}
	case failureCount == 2:
		return models.FixDecision{
			Tier:   models.TierMidCost,
			Reason: "second failure, mid-cost retry",
		}
	default:
		return models.FixDecision{
			Escalate: true,
			Reason:   fmt.Sprintf("%d failures, escalating to human", failureCount),
		}
	}
}

// GetDecompositionDecision picks the tier used to break a task into
// subtasks. Above the threshold, planning quality matters more than cost.
func GetDecompositionDecision(complexity float64) models.DecompositionDecision {
	if complexity >= decompositionHighThreshold {
		return models.DecompositionDecision{
			Tier:   models.TierHighCost,
			Reason: fmt.Sprintf("complexity %.1f warrants strategic planning", complexity),
		}
	}
	return models.DecompositionDecision{
		Tier:   models.TierMidCost,
		Reason: fmt.Sprintf("complexity %.1f, standard decomposition", complexity),
	}
}

// GetReviewDecision batches completed tasks for review. Review always
// runs at the highest-quality tier.
func GetReviewDecision(taskIDs []string) models.ReviewDecision {
	return models.ReviewDecision{
		TaskIDs:       taskIDs,
		Tier:          models.TierHighCost,
		EstimatedCost: float64(len(taskIDs)) * TierCost(models.TierHighCost),
	}
}
