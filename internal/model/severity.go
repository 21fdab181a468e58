package model

import (
	"encoding/json"
	"strings"
)

// Severity is the closed set of finding severities reported by the scanner.
// Anything the scanner sends outside this set decodes as SeverityUnknown.
type Severity string

const (
	SeverityCritical      Severity = "Critical"
	SeverityHigh          Severity = "High"
	SeverityMedium        Severity = "Medium"
	SeverityLow           Severity = "Low"
	SeverityInformational Severity = "Informational"
	SeverityUnknown       Severity = "Unknown"
)

// Severities returns every level, highest first.
func Severities() []Severity {
	return []Severity{
		SeverityCritical,
		SeverityHigh,
		SeverityMedium,
		SeverityLow,
		SeverityInformational,
		SeverityUnknown,
	}
}

// ParseSeverity maps a free-form severity string onto the closed set.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "medium", "moderate":
		return SeverityMedium
	case "low":
		return SeverityLow
	case "informational", "info", "information":
		return SeverityInformational
	default:
		return SeverityUnknown
	}
}

// Rank orders severities; higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 5
	case SeverityHigh:
		return 4
	case SeverityMedium:
		return 3
	case SeverityLow:
		return 2
	case SeverityInformational:
		return 1
	default:
		return 0
	}
}

func (s Severity) String() string {
	return string(s)
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		// Non-string severities (numbers, null) are not part of the contract.
		*s = SeverityUnknown
		return nil
	}
	*s = ParseSeverity(raw)
	return nil
}
