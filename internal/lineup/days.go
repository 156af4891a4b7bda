package lineup

import (
	"fmt"
	"sort"
	"time"
)

// DefaultDayGap is the maximum quiet period inside one festival day. A
// longer pause between the previous slot's end and the next slot's start
// closes the day, provided the slots also fall on different festival
// dates.
const DefaultDayGap = 4 * time.Hour

// dayRoll shifts wall-clock times back before taking the calendar date, so
// sets running past midnight (and an evening headliner after a long
// afternoon break) still count toward the previous evening's festival day.
const dayRoll = 7 * time.Hour

// SegmentDays clusters time-ordered slots into festival days and collects
// the distinct stages observed. Slot times are UTC instants; loc is the
// festival's timezone, used to decide which local date a slot belongs to
// (nil means UTC).
//
// A day closes when the gap between the previous slot's end and the next
// slot's start exceeds maxGap and the two fall on different rolled local
// dates. Every slot lands in exactly one day; days come out in
// chronological order named "Day 1".."Day N".
func SegmentDays(slots []PerformanceSlot, loc *time.Location, maxGap time.Duration) ([]FestivalDay, []string) {
	if maxGap <= 0 {
		maxGap = DefaultDayGap
	}
	if loc == nil {
		loc = time.UTC
	}

	stageSet := make(map[string]bool)
	for _, s := range slots {
		if s.Stage != "" {
			stageSet[s.Stage] = true
		}
	}
	stages := make([]string, 0, len(stageSet))
	for stage := range stageSet {
		stages = append(stages, stage)
	}
	sort.Strings(stages)

	if len(slots) == 0 {
		return nil, stages
	}

	ordered := make([]PerformanceSlot, len(slots))
	copy(ordered, slots)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Start.Before(ordered[j].Start)
	})

	var days []FestivalDay
	dayStart := ordered[0].Start
	dayEnd := ordered[0].End
	for _, s := range ordered[1:] {
		if s.Start.Sub(dayEnd) > maxGap && rolledDate(s.Start, loc) != rolledDate(dayEnd, loc) {
			days = append(days, FestivalDay{StartUTC: dayStart, EndUTC: dayEnd})
			dayStart = s.Start
			dayEnd = s.End
			continue
		}
		if s.End.After(dayEnd) {
			dayEnd = s.End
		}
	}
	days = append(days, FestivalDay{StartUTC: dayStart, EndUTC: dayEnd})

	for i := range days {
		days[i].Name = fmt.Sprintf("Day %d", i+1)
	}
	return days, stages
}

// rolledDate returns the local calendar date of t shifted back by dayRoll.
func rolledDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Add(-dayRoll).Format("2006-01-02")
}
