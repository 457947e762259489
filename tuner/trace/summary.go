package trace

// Summary aggregates statistics from parsed reward points.
type Summary struct {
	Rounds          int            `yaml:"rounds"`
	MeanReward      float64        `yaml:"mean_reward"`
	MinReward       float64        `yaml:"min_reward"`
	MaxReward       float64        `yaml:"max_reward"`
	BestArm         []int          `yaml:"best_arm,flow"`
	FinalArm        []int          `yaml:"final_arm,flow"`
	ArmChanges      int            `yaml:"arm_changes"`
	ArmDistribution map[string]int `yaml:"arm_distribution"` // FormatArm(arm) → rounds that chose it
}

// Summarize computes aggregate statistics. Safe for nil or empty input
// (returns zero-value fields).
func Summarize(points []RewardPoint) *Summary {
	s := &Summary{ArmDistribution: make(map[string]int)}
	if len(points) == 0 {
		return s
	}
	s.Rounds = len(points)
	s.MinReward, s.MaxReward = points[0].Reward, points[0].Reward
	s.BestArm = points[0].Arm
	total := 0.0
	var prev string
	for i, p := range points {
		total += p.Reward
		if p.Reward > s.MaxReward {
			s.MaxReward = p.Reward
			s.BestArm = p.Arm
		}
		if p.Reward < s.MinReward {
			s.MinReward = p.Reward
		}
		key := FormatArm(p.Arm)
		s.ArmDistribution[key]++
		if i > 0 && key != prev {
			s.ArmChanges++
		}
		prev = key
	}
	s.MeanReward = total / float64(len(points))
	s.FinalArm = points[len(points)-1].Arm
	return s
}
