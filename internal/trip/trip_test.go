package trip

import (
	"reflect"
	"testing"
)

func TestTripPairsDeterministic(t *testing.T) {
	e := DefaultEnumerator()

	first := e.TripPairs()
	second := e.TripPairs()
	if !reflect.DeepEqual(first, second) {
		t.Fatal("repeated enumeration must yield the identical sequence")
	}

	want := len(e.Windows) * len(e.DepartureDays) * len(e.ReturnOffsets)
	if len(first) != want {
		t.Fatalf("expected %d pairs, got %d", want, len(first))
	}
}

func TestTripPairsContent(t *testing.T) {
	e := Enumerator{
		Windows:       []Window{{Label: "March 2026", Month: "2026-03"}},
		DepartureDays: []int{8},
		ReturnOffsets: []int{11},
	}

	pairs := e.TripPairs()
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	got := pairs[0]
	if got.Departure != "2026-03-08" || got.Return != "2026-03-19" {
		t.Fatalf("unexpected dates: %+v", got)
	}
	if got.Label != "March 2026 d8+11" {
		t.Fatalf("unexpected label: %s", got.Label)
	}
}

func TestStayWindows(t *testing.T) {
	e := Enumerator{
		Windows:       []Window{{Label: "April 2026", Month: "2026-04"}},
		DepartureDays: []int{1, 15},
		StayNights:    9,
	}

	windows := e.StayWindows()
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(windows))
	}
	if windows[0].CheckIn != "2026-04-01" || windows[0].CheckOut != "2026-04-10" {
		t.Fatalf("unexpected first window: %+v", windows[0])
	}
	if windows[1].CheckIn != "2026-04-15" {
		t.Fatalf("ordering should follow configuration: %+v", windows[1])
	}
}

func TestNeighborhoodLabel(t *testing.T) {
	if got := NeighborhoodLabel("asakusa"); got != "Asakusa / Taito Ward" {
		t.Fatalf("unexpected label: %s", got)
	}
	if got := NeighborhoodLabel("unknown"); got != "unknown" {
		t.Fatalf("unknown keys should pass through: %s", got)
	}
}
