package model

// ScoreBucket counts block groups whose score falls in [Min, Max).
type ScoreBucket struct {
	Label string `json:"label"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
	Count int    `json:"count"`
}

// Summary describes the score distribution of a set of block groups.
type Summary struct {
	AvgWalkability    float64       `json:"avg_walkability"`
	MedianWalkability float64       `json:"median_walkability"`
	BlockGroupCount   int           `json:"block_group_count"`
	Population        int64         `json:"population"`
	Buckets           []ScoreBucket `json:"buckets"`
}

// StateAverage is the block-group average score of one state.
type StateAverage struct {
	StateFIPS       string  `json:"state_fips"`
	Abbr            string  `json:"abbr"`
	AvgWalkability  float64 `json:"avg_walkability"`
	BlockGroupCount int     `json:"block_group_count"`
}

// StateForecast is a heuristic projection of a state's average score.
// States without data carry zeros.
type StateForecast struct {
	StateFIPS       string  `json:"state_fips"`
	Abbr            string  `json:"abbr"`
	Current         float64 `json:"current"`
	Projected       float64 `json:"projected"`
	BlockGroupCount int     `json:"block_group_count"`
}

// Priority ranks how urgently a state should act on walkability.
type Priority string

const (
	PriorityHigh      Priority = "High"
	PriorityModerate  Priority = "Moderate"
	PriorityMaintain  Priority = "Maintain"
	PriorityExemplary Priority = "Exemplary"
)

// StateRecommendation pairs a state's current score with a suggested focus.
type StateRecommendation struct {
	StateFIPS      string   `json:"state_fips"`
	Abbr           string   `json:"abbr"`
	CurrentScore   float64  `json:"current_score"`
	Priority       Priority `json:"priority"`
	Recommendation string   `json:"recommendation"`
}
