package leadscore

// HeatLevel is a discrete outreach-priority classification derived from a
// contact's clamped total score.
type HeatLevel string

const (
	HeatCold    HeatLevel = "cold"
	HeatWarm    HeatLevel = "warm"
	HeatHot     HeatLevel = "hot"
	HeatBurning HeatLevel = "burning"
)

// HeatLevelConfig is one row of the ordered heat classification table.
// Ranges are inclusive on both ends; the table must be contiguous,
// non-overlapping, and jointly exhaustive over [MinScore, MaxScore].
type HeatLevelConfig struct {
	Level    HeatLevel `json:"level"`
	MinScore int       `json:"min_score"`
	MaxScore int       `json:"max_score"`
	Color    string    `json:"color"`
	Icon     string    `json:"icon"`
	Label    string    `json:"label"`
}

// DefaultHeatLevels returns the standard classification table.
func DefaultHeatLevels() []HeatLevelConfig {
	return []HeatLevelConfig{
		{Level: HeatCold, MinScore: MinScore, MaxScore: 20, Color: "#60a5fa", Icon: "❄️", Label: "Cold"},
		{Level: HeatWarm, MinScore: 21, MaxScore: 50, Color: "#fbbf24", Icon: "🌤️", Label: "Warm"},
		{Level: HeatHot, MinScore: 51, MaxScore: 100, Color: "#f97316", Icon: "🔥", Label: "Hot"},
		{Level: HeatBurning, MinScore: 101, MaxScore: MaxScore, Color: "#ef4444", Icon: "🌋", Label: "Burning"},
	}
}

// ClassifyHeat returns the level of the first table row whose inclusive
// range contains score. The scan order is part of the partition contract.
// Scores are clamped first so a match always exists; the final row is a
// fallback for a malformed table.
func ClassifyHeat(levels []HeatLevelConfig, score int) HeatLevel {
	score = clampScore(score)
	for _, lvl := range levels {
		if score >= lvl.MinScore && score <= lvl.MaxScore {
			return lvl.Level
		}
	}
	if len(levels) > 0 {
		return levels[len(levels)-1].Level
	}
	return HeatCold
}
