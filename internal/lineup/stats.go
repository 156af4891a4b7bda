package lineup

// Stats aggregates counts over a parsed lineup for observability.
type Stats struct {
	Slots           int            `json:"slots"`
	DistinctArtists int            `json:"distinct_artists"`
	Collaborations  int            `json:"collaborations"`
	PerStage        map[string]int `json:"per_stage"`
	PerHourUTC      map[int]int    `json:"per_hour_utc"`
	PerArtist       map[string]int `json:"per_artist"`
}

// Collect builds Stats from the expanded slots of one event.
func Collect(slots []PerformanceSlot) Stats {
	st := Stats{
		Slots:      len(slots),
		PerStage:   make(map[string]int),
		PerHourUTC: make(map[int]int),
		PerArtist:  make(map[string]int),
	}
	for _, s := range slots {
		st.PerStage[s.Stage]++
		st.PerHourUTC[s.Start.UTC().Hour()]++
		st.PerArtist[s.ArtistNameRaw]++
	}
	st.DistinctArtists = len(st.PerArtist)
	for _, g := range GroupSlots(slots) {
		if len(g.Slots) > 1 {
			st.Collaborations++
		}
	}
	return st
}
