package panel

import (
	"errors"
	"testing"
	"time"
)

func TestResolveDimension(t *testing.T) {
	tests := []struct {
		name      string
		spec      DimensionSpec
		wantLevel Level
		wantErr   error
	}{
		{
			name:      "no_prefix_uses_requested_level",
			spec:      DimensionSpec{Domain: DomainProduct, Level: LevelL2},
			wantLevel: LevelL2,
		},
		{
			name:      "one_prefix_entry_groups_one_deeper",
			spec:      DimensionSpec{Domain: DomainProduct, Level: LevelL1, Path: []string{"FOOD"}},
			wantLevel: LevelL2,
		},
		{
			name:      "two_prefix_entries_group_by_l3",
			spec:      DimensionSpec{Domain: DomainCommerce, Level: LevelL1, Path: []string{"RETAIL", "GROCERY"}},
			wantLevel: LevelL3,
		},
		{
			name:      "blank_entry_ends_the_prefix",
			spec:      DimensionSpec{Domain: DomainProduct, Level: LevelL1, Path: []string{"FOOD", "", "IGNORED"}},
			wantLevel: LevelL2,
		},
		{
			name:    "full_path_has_nothing_deeper",
			spec:    DimensionSpec{Domain: DomainProduct, Level: LevelL1, Path: []string{"A", "B", "C", "D"}},
			wantErr: ErrInvalidDimension,
		},
		{
			name:    "unknown_domain",
			spec:    DimensionSpec{Domain: "loyalty", Level: LevelL1},
			wantErr: ErrInvalidDimension,
		},
		{
			name:    "unknown_level",
			spec:    DimensionSpec{Domain: DomainProduct, Level: "l5"},
			wantErr: ErrInvalidDimension,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dim, err := ResolveDimension(tt.spec)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("got err %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dim.Level != tt.wantLevel {
				t.Errorf("level = %s, want %s", dim.Level, tt.wantLevel)
			}
		})
	}
}

func TestDimensionValueOf(t *testing.T) {
	line := TransactionLine{
		Product:  CategoryPath{"FOOD", "DAIRY", "", "UHT"},
		Commerce: CategoryPath{"RETAIL"},
	}

	dim, _ := ResolveDimension(DimensionSpec{Domain: DomainProduct, Level: LevelL2})
	if got := dim.ValueOf(line); got != "DAIRY" {
		t.Errorf("l2 value = %q, want DAIRY", got)
	}

	dim, _ = ResolveDimension(DimensionSpec{Domain: DomainProduct, Level: LevelL3})
	if got := dim.ValueOf(line); got != UnknownValue {
		t.Errorf("blank l3 value = %q, want %q", got, UnknownValue)
	}

	dim, _ = ResolveDimension(DimensionSpec{Domain: DomainCommerce, Level: LevelL2})
	if got := dim.ValueOf(line); got != UnknownValue {
		t.Errorf("missing commerce l2 = %q, want %q", got, UnknownValue)
	}
}

func TestDimensionMatchesPathKeepsUnknown(t *testing.T) {
	dim, err := ResolveDimension(DimensionSpec{Domain: DomainProduct, Level: LevelL1, Path: []string{"FOOD"}})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	matching := testLine("u1", "i1", time.Now(), "X", 10, "FOOD")
	other := testLine("u1", "i2", time.Now(), "X", 10, "PHARMA")
	unknown := testLine("u1", "i3", time.Now(), "X", 10, "")

	if !dim.MatchesPath(matching) {
		t.Error("matching line should pass the path filter")
	}
	if dim.MatchesPath(other) {
		t.Error("non-matching line should be filtered")
	}
	if !dim.MatchesPath(unknown) {
		t.Error("UNKNOWN is never dropped by filters")
	}
}
