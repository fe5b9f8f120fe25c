// Package decay computes recall strength for memory records.
//
// Strength is a pure function of a record's raw fields — category,
// significance, base strength, and the time of last access. Nothing in
// this package touches storage or the clock; callers pass "now" in.
package decay

import (
	"math"
	"time"
)

// Category is the closed set of record categories.
type Category string

const (
	Knowledge    Category = "knowledge"
	CurrentState Category = "current_state"
	Decision     Category = "decision"
	Session      Category = "session"
	Recovered    Category = "recovered"
)

// Valid reports whether c is a recognised category.
func (c Category) Valid() bool {
	switch c {
	case Knowledge, CurrentState, Decision, Session, Recovered:
		return true
	}
	return false
}

// Permanent reports whether records in this category never decay.
func (c Category) Permanent() bool {
	return c == Knowledge || c == CurrentState
}

// Status is the derived recall band for a record.
type Status string

const (
	Clear  Status = "clear"  // strength > 0.7
	Fuzzy  Status = "fuzzy"  // 0.4 <= strength <= 0.7
	Fading Status = "fading" // strength < 0.4
)

const (
	// RecallBoost is added to current strength on every full read.
	RecallBoost = 0.15

	// PruneFloor is the strength below which a significance < 5 record
	// becomes eligible for deletion.
	PruneFloor = 0.10

	// SignificantFloor is the minimum strength for significance >= 5
	// records. They fade, but never below this.
	SignificantFloor = 0.05

	// Week is the unit of the decay rate table.
	Week = 7 * 24 * time.Hour
)

// rates maps significance to weekly decay. Significance 10 never decays
// regardless of category.
var rates = [11]float64{
	0,    // unused (significance is 1-10)
	0.50, // 1: gone in a couple of weeks
	0.30, // 2
	0.20, // 3
	0.15, // 4
	0.10, // 5
	0.08, // 6
	0.05, // 7
	0.02, // 8
	0.01, // 9
	0.00, // 10: foundational
}

// Rate returns the weekly decay rate for a category/significance pair.
func Rate(category Category, significance int) float64 {
	if category.Permanent() {
		return 0
	}
	if significance < 1 {
		significance = 1
	}
	if significance > 10 {
		significance = 10
	}
	return rates[significance]
}

// Floor returns the minimum strength a record can decay to.
func Floor(significance int) float64 {
	if significance >= 5 {
		return SignificantFloor
	}
	return 0
}

// Strength computes current recall strength. base is the strength at
// lastAccessed (1.0 at creation, re-anchored by Boost on each read).
// Compounding decay: base * (1-rate)^weeks, clamped at the floor.
func Strength(category Category, significance int, base float64, lastAccessed, now time.Time) float64 {
	if category.Permanent() {
		return 1.0
	}
	rate := Rate(category, significance)
	if rate == 0 {
		return base
	}
	elapsed := now.Sub(lastAccessed)
	if elapsed <= 0 {
		return base
	}
	weeks := float64(elapsed) / float64(Week)
	s := base * math.Pow(1-rate, weeks)
	if floor := Floor(significance); s < floor {
		s = floor
	}
	return s
}

// Boost returns the re-anchored base strength after one full read:
// current strength plus RecallBoost, capped at 1.0. Applied once per
// access; the caller resets lastAccessed to now alongside it.
func Boost(current float64) float64 {
	b := current + RecallBoost
	if b > 1.0 {
		b = 1.0
	}
	return b
}

// StatusOf maps a strength value to its band.
func StatusOf(strength float64) Status {
	switch {
	case strength > 0.7:
		return Clear
	case strength >= 0.4:
		return Fuzzy
	default:
		return Fading
	}
}

// PruneEligible reports whether a record may be permanently deleted.
// Significance >= 5 and permanent categories are never eligible.
func PruneEligible(category Category, significance int, strength float64) bool {
	if category.Permanent() || significance >= 5 {
		return false
	}
	return strength < PruneFloor
}
