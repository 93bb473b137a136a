package network

import (
	"fmt"
	"slices"
)

// MTR is a method traversal record: the index of the child chosen at every
// choice point (Root and SelectOne composites) on the way to a plan. Lower
// indices are higher priority.
type MTR []int

// Compare orders m against other: -1 when m is higher priority, 1 when
// lower, 0 when identical. The first differing index decides; at an equal
// prefix the longer record wins.
func (m MTR) Compare(other MTR) int {
	for i := range min(len(m), len(other)) {
		switch {
		case m[i] < other[i]:
			return -1
		case m[i] > other[i]:
			return 1
		}
	}
	switch {
	case len(m) > len(other):
		return -1
	case len(m) < len(other):
		return 1
	default:
		return 0
	}
}

// Clone returns an independent copy.
func (m MTR) Clone() MTR {
	return slices.Clone(m)
}

func (m MTR) String() string {
	return fmt.Sprint([]int(m))
}

// IsHigherPriority reports whether candidate should preempt current. A plan
// that is not running always loses to one that is; otherwise the records are
// compared, and identical records do not preempt.
func IsHigherPriority(candidate, current *TaskNetworkPlan) bool {
	if candidate == nil || !candidate.IsRunning() {
		return false
	}
	if current == nil || !current.IsRunning() {
		return true
	}
	return candidate.MTR().Compare(current.MTR()) < 0
}
