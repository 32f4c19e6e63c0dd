package model

// Stats holds the aggregate triage counters. They are a historical tally:
// undo never decrements them.
type Stats struct {
	ProcessedToday int `json:"processedToday" db:"processed_today"`
	ForLater       int `json:"forLater" db:"for_later"`
	Archived       int `json:"archived" db:"archived"`
}

// Progress returns the share of processed items given the number still
// pending, as a percentage in [0, 100].
func (s Stats) Progress(remaining int) float64 {
	total := s.ProcessedToday + remaining
	if total <= 0 {
		return 0
	}
	return float64(s.ProcessedToday) / float64(total) * 100
}
