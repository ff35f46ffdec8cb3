// Package router picks an agent and execution tier for each task based
// on complexity, capability requirements and fleet availability.
package router

import (
	"github.com/anthropics/anthropic-sdk-go"

	"github.com/codefleet/foreman/pkg/models"
)

// tierCosts is the estimated credit cost of one execution at each tier.
var tierCosts = map[models.Tier]float64{
	models.TierLocal:    0,
	models.TierLowCost:  0.01,
	models.TierMidCost:  0.15,
	models.TierHighCost: 0.75,
}

// tierModels maps execution tiers to the model hint handed to the
// execution runtime. The local tier carries no hint: it runs on whatever
// the runtime has on hand.
var tierModels = map[models.Tier]anthropic.Model{
	models.TierLowCost:  anthropic.ModelClaude3_5Haiku20241022,
	models.TierMidCost:  anthropic.ModelClaudeSonnet4_20250514,
	models.TierHighCost: anthropic.ModelClaudeOpus4_1_20250805,
}

// TierCost returns the estimated credit cost of one execution at the tier.
func TierCost(tier models.Tier) float64 {
	return tierCosts[tier]
}

// TierModel returns the model hint for the tier, or "" for the local tier.
func TierModel(tier models.Tier) anthropic.Model {
	return tierModels[tier]
}

// complexityPaidThreshold is the final score at which routing moves off
// the free tier.
const complexityPaidThreshold = 4.0

// tierForComplexity picks the default tier for a complexity score.
func tierForComplexity(score float64) models.Tier {
	if score >= complexityPaidThreshold {
		return models.TierLowCost
	}
	return models.TierLocal
}
