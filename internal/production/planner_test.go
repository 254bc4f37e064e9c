package production

import (
	"math"
	"testing"
)

func TestPlanTarget(t *testing.T) {
	cases := []struct {
		name      string
		narration float64
		extended  bool
		want      float64
	}{
		{"short message", 5.2, false, 9.5},      // ceil(5.2)+3.5
		{"exact seconds", 4.0, false, 7.5},      // ceil(4)+3.5
		{"extended floor", 2.0, true, 15.0},     // max(ceil(2)+3.5, 15)
		{"extended long", 14.0, true, 17.5},     // already past the floor
		{"unknown narration", 0, false, 8.5},    // fallback 5s → ceil(5)+3.5
		{"negative treated unknown", -1, false, 8.5},
	}

	for _, tc := range cases {
		got := PlanTarget(tc.narration, tc.extended)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: PlanTarget(%v, %v) = %v, want %v", tc.name, tc.narration, tc.extended, got, tc.want)
		}
	}
}

func TestSegmentsNeeded(t *testing.T) {
	cases := []struct {
		target float64
		want   int
	}{
		{9.5, 2},
		{7.0, 1},
		{7.01, 2},
		{15.0, 3},
		{21.0, 3},
		{0, 1},
	}

	for _, tc := range cases {
		if got := SegmentsNeeded(tc.target); got != tc.want {
			t.Errorf("SegmentsNeeded(%v) = %d, want %d", tc.target, got, tc.want)
		}
	}
}

func TestChooseProfile(t *testing.T) {
	refs := []ReferenceImage{{Role: RoleSubject}}

	if got := ChooseProfile(nil, 1); got != ProfileFast {
		t.Errorf("no refs, one segment: got %s, want %s", got, ProfileFast)
	}
	if got := ChooseProfile(refs, 1); got != ProfileQuality {
		t.Errorf("with refs: got %s, want %s", got, ProfileQuality)
	}
	if got := ChooseProfile(nil, 2); got != ProfileQuality {
		t.Errorf("multi segment: got %s, want %s", got, ProfileQuality)
	}
}

func TestIsTransient(t *testing.T) {
	transient := []string{
		"Internal error encountered",
		"HTTP 503: service unavailable",
		"RESOURCE_EXHAUSTED: resource has been exhausted",
		"deadline exceeded while waiting",
	}
	for _, msg := range transient {
		if !IsTransient(msg) {
			t.Errorf("expected transient: %q", msg)
		}
	}

	permanent := []string{
		"blocked by safety filters",
		"invalid argument: prompt too long",
		"API key expired",
		"",
	}
	for _, msg := range permanent {
		if IsTransient(msg) {
			t.Errorf("expected permanent: %q", msg)
		}
	}
}
