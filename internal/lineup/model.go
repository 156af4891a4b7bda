package lineup

import "time"

// PerformanceMode describes how an artist appears in a slot.
type PerformanceMode string

// Performance modes.
const (
	ModeNone     PerformanceMode = "none"
	ModeB2B      PerformanceMode = "b2b"
	ModePresents PerformanceMode = "presents"
)

// RawRow is a single schedule row as read from the source, before any
// name cleaning or splitting.
type RawRow struct {
	StartRaw string
	EndRaw   string
	NameRaw  string
	Stage    string
}

// PerformanceSlot is one artist's appearance in one time slot. Collaborative
// slots produce several PerformanceSlots sharing the same stage and bounds.
type PerformanceSlot struct {
	ArtistNameRaw string
	Stage         string
	Start         time.Time
	End           time.Time
	Mode          PerformanceMode
	// CustomName preserves the combined label ("A B2B B") for display
	// after splitting. Empty for solo slots.
	CustomName string
}

// GroupKey identifies a collaboration group: slots sharing stage, bounds
// and mode belong to one shared performance.
type GroupKey struct {
	Stage string
	Start time.Time
	End   time.Time
	Mode  PerformanceMode
}

// CollaborationGroup is the set of slots that become one event–artist link.
type CollaborationGroup struct {
	Key   GroupKey
	Slots []PerformanceSlot
}

// CustomName returns the shared combined label of the group, or "" when the
// group is a solo performance without one.
func (g *CollaborationGroup) CustomName() string {
	for _, s := range g.Slots {
		if s.CustomName != "" {
			return s.CustomName
		}
	}
	return ""
}

// FestivalDay is a contiguous cluster of slots separated from its neighbors
// by more than the configured maximum gap.
type FestivalDay struct {
	Name     string
	StartUTC time.Time
	EndUTC   time.Time
}

// GroupSlots partitions slots into collaboration groups, preserving the
// order in which each group's key first appears.
func GroupSlots(slots []PerformanceSlot) []CollaborationGroup {
	index := make(map[GroupKey]int)
	var groups []CollaborationGroup
	for _, s := range slots {
		key := GroupKey{Stage: s.Stage, Start: s.Start, End: s.End, Mode: s.Mode}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, CollaborationGroup{Key: key})
		}
		groups[i].Slots = append(groups[i].Slots, s)
	}
	return groups
}
