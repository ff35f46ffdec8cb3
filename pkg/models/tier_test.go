package models

import (
	"testing"
	"time"
)

func TestTierValid(t *testing.T) {
	tests := []struct {
		name string
		tier Tier
		want bool
	}{
		{"local", TierLocal, true},
		{"low_cost", TierLowCost, true},
		{"mid_cost", TierMidCost, true},
		{"high_cost", TierHighCost, true},
		{"empty", Tier(""), false},
		{"unknown", Tier("premium"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tier.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTierPaid(t *testing.T) {
	if TierLocal.Paid() {
		t.Error("local tier should be free")
	}
	for _, tier := range []Tier{TierLowCost, TierMidCost, TierHighCost} {
		if !tier.Paid() {
			t.Errorf("tier %q should be paid", tier)
		}
	}
}

func TestFileLockExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name      string
		expiresAt *time.Time
		want      bool
	}{
		{"indefinite", nil, false},
		{"future expiry", &future, false},
		{"past expiry", &past, true},
		{"exactly now", &now, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lock := &FileLock{Path: "src/main.go", AgentID: "coder-01", ExpiresAt: tt.expiresAt}
			if got := lock.Expired(now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}
