package panel

import "testing"

func TestMergeKAnonymity(t *testing.T) {
	rows := []GroupRow{
		{Key: "FOOD", Users: 12, Sums: []float64{1000, 2000}},
		{Key: "PHARMA", Users: 3, Sums: []float64{100, 150}},
		{Key: "PETS", Users: 2, Sums: []float64{50, 60}},
		{Key: UnknownValue, Users: 1, Sums: []float64{10, 20}, IsUnknown: true},
	}

	merged := MergeKAnonymity(rows, 5)

	if len(merged) != 3 {
		t.Fatalf("rows after merge = %d, want 3", len(merged))
	}
	if merged[0].Key != "FOOD" || merged[1].Key != UnknownValue {
		t.Fatalf("unexpected row order: %v, %v", merged[0].Key, merged[1].Key)
	}

	other := merged[2]
	if other.Key != OtherSuppressedKey {
		t.Fatalf("merged key = %q, want %q", other.Key, OtherSuppressedKey)
	}
	if other.Users != 5 {
		t.Errorf("merged users = %d, want 5", other.Users)
	}
	if other.Sums[0] != 150 || other.Sums[1] != 210 {
		t.Errorf("merged sums = %v, want [150 210]", other.Sums)
	}
}

func TestMergeKAnonymityNoMerge(t *testing.T) {
	rows := []GroupRow{{Key: "FOOD", Users: 2, Sums: []float64{10}}}

	if got := MergeKAnonymity(rows, 1); len(got) != 1 || got[0].Key != "FOOD" {
		t.Errorf("k=1 must be a no-op, got %v", got)
	}

	got := MergeKAnonymity(rows, 5)
	if len(got) != 1 || got[0].Key != OtherSuppressedKey {
		t.Errorf("single low-support group must still merge, got %v", got)
	}
}

func TestWindowTrust(t *testing.T) {
	tests := []struct {
		name     string
		users    int
		coverage float64
		want     TrustLevel
	}{
		{"below_min_n", 9, 100, TrustSuppressed},
		{"below_coverage", 200, 59.9, TrustSuppressed},
		{"low", 10, 80, TrustLow},
		{"low_upper_bound", 29, 80, TrustLow},
		{"medium", 30, 80, TrustMedium},
		{"medium_upper_bound", 99, 80, TrustMedium},
		{"high", 100, 80, TrustHigh},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WindowTrust(tt.users, 10, tt.coverage, 60)
			if got != tt.want {
				t.Errorf("WindowTrust(%d, %0.1f) = %s, want %s", tt.users, tt.coverage, got, tt.want)
			}
		})
	}
}

// Trust must be monotonic: more eligible users at fixed coverage never lowers
// the tier.
func TestWindowTrustMonotonic(t *testing.T) {
	rank := map[TrustLevel]int{TrustSuppressed: 0, TrustLow: 1, TrustMedium: 2, TrustHigh: 3}

	prev := WindowTrust(0, 10, 80, 60)
	for users := 1; users <= 150; users++ {
		cur := WindowTrust(users, 10, 80, 60)
		if rank[cur] < rank[prev] {
			t.Fatalf("trust dropped from %s to %s at %d users", prev, cur, users)
		}
		prev = cur
	}
}

func TestSuppressionReasons(t *testing.T) {
	reasons := SuppressionReasons(3, 10, 40, 60)
	if len(reasons) != 2 {
		t.Fatalf("reasons = %v, want both causes", reasons)
	}
	if got := SuppressionReasons(50, 10, 90, 60); len(got) != 0 {
		t.Errorf("healthy window must have no reasons, got %v", got)
	}
}
