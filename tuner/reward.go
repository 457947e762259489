package tuner

// contributions returns each pool's share of the round reward and their sum.
// Each learning unit regresses on its own pool's contribution, so the sum of
// per-pool estimates for an arm estimates the round reward.
func contributions(mode RewardMode, throughputs, ctx []float64) ([]float64, float64) {
	parts := make([]float64, len(throughputs))
	total := 0.0
	for i, t := range throughputs {
		switch mode {
		case RewardWeighted:
			parts[i] = ctx[i] * t
		default:
			parts[i] = t
		}
		total += parts[i]
	}
	return parts, total
}

// degenerate reports whether no pool saw any throughput. Such rounds carry
// no signal and must not perturb the model.
func degenerate(throughputs []float64) bool {
	for _, t := range throughputs {
		if t > 0 {
			return false
		}
	}
	return true
}
