package models

// Tier represents a cost/quality bracket for task execution.
type Tier string

const (
	// TierLocal is the free tier backed by a local model.
	TierLocal Tier = "local"
	// TierLowCost is the cheapest paid tier.
	TierLowCost Tier = "low_cost"
	// TierMidCost is the mid-range paid tier.
	TierMidCost Tier = "mid_cost"
	// TierHighCost is the highest-quality, most expensive tier.
	TierHighCost Tier = "high_cost"
)

// Valid returns true if the tier is a known value.
func (t Tier) Valid() bool {
	switch t {
	case TierLocal, TierLowCost, TierMidCost, TierHighCost:
		return true
	default:
		return false
	}
}

// Paid returns true if execution at this tier consumes credits.
func (t Tier) Paid() bool {
	return t != TierLocal
}
