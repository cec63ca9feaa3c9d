package trip

import (
	"fmt"
	"time"
)

// Route is one monitored flight connection.
type Route struct {
	Origin      string
	Destination string
	Label       string
}

// Window is a candidate travel month.
type Window struct {
	Label string
	Month string // "2026-03"
}

// Neighborhood is one monitored Tokyo area with its search label.
type Neighborhood struct {
	Key   string
	Label string
}

// Routes lists the monitored connections.
var Routes = []Route{
	{Origin: "BUD", Destination: "NRT", Label: "Budapest → Narita"},
	{Origin: "BUD", Destination: "HND", Label: "Budapest → Haneda"},
}

// Neighborhoods lists the monitored stay areas.
var Neighborhoods = []Neighborhood{
	{Key: "asakusa", Label: "Asakusa / Taito Ward"},
	{Key: "ueno", Label: "Ueno"},
	{Key: "sumida", Label: "Sumida"},
	{Key: "nakano", Label: "Nakano"},
	{Key: "koenji", Label: "Koenji"},
	{Key: "ikebukuro", Label: "Ikebukuro"},
	{Key: "kuramae", Label: "Kuramae"},
}

// NeighborhoodLabel resolves a neighborhood key to its display label.
func NeighborhoodLabel(key string) string {
	for _, n := range Neighborhoods {
		if n.Key == key {
			return n.Label
		}
	}
	return key
}

// DatePair is one departure/return combination to search, with a diagnostic
// label ("March 2026 d8+11").
type DatePair struct {
	Departure string
	Return    string
	Label     string
}

// StayWindow is one check-in/check-out combination to search.
type StayWindow struct {
	CheckIn  string
	CheckOut string
	Label    string
}

// Enumerator generates the cartesian search space. It is pure: identical
// configuration always yields the identical ordered sequence.
type Enumerator struct {
	Windows       []Window
	DepartureDays []int
	ReturnOffsets []int
	StayNights    int
}

// DefaultEnumerator carries the monitored travel windows: weekly departure
// samples across three candidate months, 9 to 14 day trips, 9-night stays.
func DefaultEnumerator() Enumerator {
	return Enumerator{
		Windows: []Window{
			{Label: "March 2026", Month: "2026-03"},
			{Label: "April 2026", Month: "2026-04"},
			{Label: "October 2026", Month: "2026-10"},
		},
		DepartureDays: []int{1, 8, 15, 22},
		ReturnOffsets: []int{9, 11, 14},
		StayNights:    9,
	}
}

const dayFormat = "2006-01-02"

// TripPairs enumerates every (window × departure day × return offset)
// combination, in configuration order.
func (e Enumerator) TripPairs() []DatePair {
	pairs := make([]DatePair, 0, len(e.Windows)*len(e.DepartureDays)*len(e.ReturnOffsets))
	for _, window := range e.Windows {
		for _, day := range e.DepartureDays {
			departure, err := monthDay(window.Month, day)
			if err != nil {
				continue
			}
			for _, offset := range e.ReturnOffsets {
				pairs = append(pairs, DatePair{
					Departure: departure.Format(dayFormat),
					Return:    departure.AddDate(0, 0, offset).Format(dayFormat),
					Label:     fmt.Sprintf("%s d%d+%d", window.Label, day, offset),
				})
			}
		}
	}
	return pairs
}

// StayWindows enumerates every (window × departure day) check-in with the
// fixed stay length.
func (e Enumerator) StayWindows() []StayWindow {
	windows := make([]StayWindow, 0, len(e.Windows)*len(e.DepartureDays))
	for _, window := range e.Windows {
		for _, day := range e.DepartureDays {
			checkIn, err := monthDay(window.Month, day)
			if err != nil {
				continue
			}
			windows = append(windows, StayWindow{
				CheckIn:  checkIn.Format(dayFormat),
				CheckOut: checkIn.AddDate(0, 0, e.StayNights).Format(dayFormat),
				Label:    fmt.Sprintf("%s d%d", window.Label, day),
			})
		}
	}
	return windows
}

func monthDay(month string, day int) (time.Time, error) {
	return time.Parse(dayFormat, fmt.Sprintf("%s-%02d", month, day))
}
