package scheduler

import "strings"

// MaxConcurrency bounds how many accounts one run drives at once.
const MaxConcurrency = 80

// Modes accepted by OptimalConcurrency.
const (
	ModeConservative = "conservative"
	ModeBalanced     = "balanced"
	ModeAggressive   = "aggressive"
	ModeHybrid       = "hybrid"
)

func baseAccounts(target int) int {
	switch {
	case target <= 10:
		return 2
	case target <= 25:
		return 3
	case target <= 50:
		return 5
	case target <= 100:
		return 8
	case target <= 200:
		return 15
	case target <= 400:
		return 25
	case target <= 800:
		return 40
	default:
		return 60
	}
}

// OptimalConcurrency suggests how many accounts to run for a target. The
// result is always in [1, min(pool, MaxConcurrency)], or 0 for an empty pool.
func OptimalConcurrency(target int, mode, keyword string, pool int) int {
	if pool <= 0 {
		return 0
	}
	b := baseAccounts(target)
	opt := b
	switch strings.ToLower(mode) {
	case ModeConservative:
		opt = max(1, int(float64(b)*0.6))
	case ModeAggressive:
		opt = min(int(float64(b)*1.5), pool)
	case ModeHybrid:
		if strings.TrimSpace(keyword) != "" {
			opt = max(3, min(b, int(float64(pool)*0.3)))
		} else {
			opt = min(int(float64(b)*1.2), pool)
		}
	}
	return max(1, min(opt, pool, MaxConcurrency))
}

// TaskSize is the desired yield of one task: an even share of the target,
// never below 25.
func TaskSize(target, concurrency int) int {
	if concurrency <= 0 {
		concurrency = 1
	}
	return max(target/concurrency, 25)
}
