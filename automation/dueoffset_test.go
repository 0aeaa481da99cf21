package automation

import (
	"testing"
	"time"
)

func TestApplyDueOffset(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		offset  string
		want    time.Time
		wantErr bool
	}{
		{"+15d", time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC), false},
		{"15d", time.Date(2025, 1, 16, 0, 0, 0, 0, time.UTC), false},
		{"-3d", time.Date(2024, 12, 29, 0, 0, 0, 0, time.UTC), false},
		{"+2w", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), false},
		{"+1m", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), false},
		{"-1m", time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), false},
		{"", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), false},
		{"abc", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"+5h", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"++3d", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"d", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.offset, func(t *testing.T) {
			got, err := ApplyDueOffset(base, tt.offset)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ApplyDueOffset(%q) = %v, want %v", tt.offset, got, tt.want)
			}
		})
	}
}

func TestApplyDueOffset_MonthEndClamp(t *testing.T) {
	// AddDate normalizes Jan 31 + 1 month to Mar 2/3; the behavior is
	// the standard library's, asserted here so a change is noticed.
	base := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	got, err := ApplyDueOffset(base, "+1m")
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if got.Month() != time.March {
		t.Errorf("Jan 31 +1m = %v, want normalized into March", got)
	}
}
