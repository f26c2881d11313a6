package billing

import "testing"

func TestMaxItems(t *testing.T) {
	tests := []struct {
		name string
		plan PlanTier
		want int
	}{
		{name: "Basic", plan: PlanBasic, want: 3},
		{name: "Pro", plan: PlanPro, want: 10},
		{name: "Unknown Tier Defaults To Basic", plan: PlanTier("legacy-gold"), want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.plan.MaxItems(); got != tt.want {
				t.Errorf("MaxItems() = %d, want %d", got, tt.want)
			}
		})
	}

	t.Run("Enterprise Is Effectively Unlimited", func(t *testing.T) {
		if PlanEnterprise.MaxItems() < 1<<30 {
			t.Errorf("MaxItems() = %d, want effectively unlimited", PlanEnterprise.MaxItems())
		}
	})
}

func TestIsActive(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{status: "active", want: true},
		{status: "trialing", want: true},
		{status: "canceled", want: false},
		{status: "past_due", want: false},
		{status: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			s := &Subscription{Status: tt.status}
			if got := s.IsActive(); got != tt.want {
				t.Errorf("IsActive() with status %q = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}
