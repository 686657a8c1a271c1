package cmd

import (
	"strings"
	"testing"
	"time"

	"thornfield.dev/daybook/pkg/activity"
	"thornfield.dev/daybook/pkg/config"
)

func testWindowConfig() *config.Config {
	return &config.Config{
		Git:         config.GitConfig{Timezone: "utc"},
		Incremental: config.IncrementalConfig{LookbackHours: 24},
	}
}

func testAggregatorForWindow() *activity.Aggregator {
	return activity.NewAggregator(nil, nil, nil)
}

func TestWindowFlags_Date(t *testing.T) {
	t.Parallel()

	flags := &windowFlags{date: "2025-03-10"}
	window, explicit, err := flags.resolve(testWindowConfig(), testAggregatorForWindow())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !explicit {
		t.Error("--date should be an explicit window")
	}

	wantStart := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if !window.Start.Equal(wantStart) {
		t.Errorf("window start = %v, want %v", window.Start, wantStart)
	}
	if !window.End.Equal(wantStart.AddDate(0, 0, 1)) {
		t.Errorf("window end = %v, want %v", window.End, wantStart.AddDate(0, 0, 1))
	}
}

func TestWindowFlags_DateShorthands(t *testing.T) {
	t.Parallel()

	for _, shorthand := range []string{"today", "yesterday"} {
		flags := &windowFlags{date: shorthand}
		window, _, err := flags.resolve(testWindowConfig(), testAggregatorForWindow())
		if err != nil {
			t.Fatalf("resolve(%q) failed: %v", shorthand, err)
		}

		ref := time.Now().UTC()
		if shorthand == "yesterday" {
			ref = ref.AddDate(0, 0, -1)
		}
		if !window.Contains(ref) {
			t.Errorf("%q window %v..%v should contain %v", shorthand, window.Start, window.End, ref)
		}
	}
}

func TestWindowFlags_Range(t *testing.T) {
	t.Parallel()

	flags := &windowFlags{from: "2025-03-10", to: "2025-03-12"}
	window, explicit, err := flags.resolve(testWindowConfig(), testAggregatorForWindow())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !explicit {
		t.Error("--from/--to should be an explicit window")
	}

	// Both days inclusive: three calendar days.
	if got := window.End.Sub(window.Start); got != 72*time.Hour {
		t.Errorf("window length = %v, want 72h", got)
	}
}

func TestWindowFlags_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		flags       windowFlags
		wantContain string
	}{
		{"date with from", windowFlags{date: "2025-03-10", from: "2025-03-09"}, "cannot be combined"},
		{"from without to", windowFlags{from: "2025-03-10"}, "together"},
		{"to without from", windowFlags{to: "2025-03-10"}, "together"},
		{"from after to", windowFlags{from: "2025-03-12", to: "2025-03-10"}, "after"},
		{"garbage date", windowFlags{date: "march 10"}, "invalid date"},
		{"garbage from", windowFlags{from: "10-03-2025", to: "2025-03-12"}, "invalid date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := tt.flags.resolve(testWindowConfig(), testAggregatorForWindow())
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.wantContain) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantContain)
			}
		})
	}
}

func TestWindowFlags_Full(t *testing.T) {
	t.Parallel()

	flags := &windowFlags{full: true}
	window, explicit, err := flags.resolve(testWindowConfig(), testAggregatorForWindow())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !explicit {
		t.Error("--full should be treated as explicit")
	}
	if got := window.End.Sub(window.Start); got != 24*time.Hour {
		t.Errorf("lookback window length = %v, want 24h", got)
	}
}

func TestWindowFlags_DefaultIsIncremental(t *testing.T) {
	t.Parallel()

	flags := &windowFlags{}
	window, explicit, err := flags.resolve(testWindowConfig(), testAggregatorForWindow())
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if explicit {
		t.Error("no flags should resolve to the incremental window")
	}
	if !window.Valid() {
		t.Errorf("incremental window %v..%v should be valid", window.Start, window.End)
	}
}

func TestDateLabel(t *testing.T) {
	t.Parallel()

	day := activity.DayWindow(time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC), time.UTC)
	if got := dateLabel(day, time.UTC); got != "2025-03-10" {
		t.Errorf("day window label = %q, want 2025-03-10", got)
	}

	// An incremental window ending mid-day is labeled with that day.
	incremental := activity.Window{
		Start: time.Date(2025, 3, 9, 16, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC),
	}
	if got := dateLabel(incremental, time.UTC); got != "2025-03-10" {
		t.Errorf("incremental window label = %q, want 2025-03-10", got)
	}
}
