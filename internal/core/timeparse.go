// Package core contains the business logic for Forest: task scoring and
// selection, strategy evolution, block completion, and the configuration
// manager for the engine tunables.
package core

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultDurationMinutes is assumed when a duration cannot be parsed.
const DefaultDurationMinutes = 30

var durationPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(minutes|minute|mins|min|hours|hour|hrs|hr|h)?`)

// ParseTimeToMinutes converts a free-form duration ("30 minutes", "1 hour",
// "45 min", "90") to whole minutes. Hour-family units multiply by 60; a bare
// number is taken as minutes; anything unparseable falls back to
// DefaultDurationMinutes. The scorer and the selector share this function so
// their time comparisons always agree.
func ParseTimeToMinutes(value string) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return DefaultDurationMinutes
	}

	match := durationPattern.FindStringSubmatch(trimmed)
	if match == nil {
		return DefaultDurationMinutes
	}

	amount, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return DefaultDurationMinutes
	}

	unit := strings.ToLower(match[2])
	switch unit {
	case "hour", "hours", "hr", "hrs", "h":
		amount *= 60
	}

	return int(amount)
}
