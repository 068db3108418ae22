package utils

import (
	"math"
	"strings"
)

const (
	barFilled = "🟩"
	barEmpty  = "⬜"
)

// Progress returns steps/goal capped at 1. A non-positive goal counts as met.
func Progress(steps, goal int) float64 {
	if goal <= 0 {
		return 1
	}
	return math.Min(float64(steps)/float64(goal), 1)
}

// DistanceKm estimates the distance walked, rounded to two decimals.
func DistanceKm(steps int, stepLengthMeters float64) float64 {
	return math.Round(float64(steps)*stepLengthMeters/1000*100) / 100
}

// ProgressBar renders progress as width blocks.
func ProgressBar(progress float64, width int) string {
	filled := int(math.Round(progress * float64(width)))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat(barFilled, filled) + strings.Repeat(barEmpty, width-filled)
}

// StatusEmoji marks a day as met or not.
func StatusEmoji(steps, goal int) string {
	if steps >= goal {
		return "✅"
	}
	if steps == 0 {
		return "💤"
	}
	return "🚶"
}
