package protocol

import (
	"fmt"
	"strings"
)

// Priority orders buffered frames. The zero value means normal.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
	PriorityLow    Priority = "low"
)

// Rank returns the drain order of p: lower ranks are sent first
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// OrDefault returns p, or PriorityNormal when p is empty
func (p Priority) OrDefault() Priority {
	if p == "" {
		return PriorityNormal
	}
	return p
}

// Valid reports whether p is empty or one of the three known classes
func (p Priority) Valid() bool {
	switch p {
	case "", PriorityHigh, PriorityNormal, PriorityLow:
		return true
	}
	return false
}

func (p Priority) String() string {
	return string(p.OrDefault())
}

// ParsePriority accepts the wire names in any case
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown priority %q", s)
	}
	return p.OrDefault(), nil
}
