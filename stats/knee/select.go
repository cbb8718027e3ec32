package knee

import "math"

// Selection is the outcome of [Select].
type Selection struct {
	// Index is the chosen candidate.
	Index int
	// KneeIndex is the raw knee position in the score curve.
	KneeIndex int
	// MinIndex is the position of the smallest finite score.
	MinIndex int
	// Score is the score at the chosen score position.
	Score float64
}

// Option configures [Select].
type Option func(*config)

type config struct {
	guard      float64
	offset     int
	candidates int
}

// WithGlobalMinGuard switches to the global minimum when the knee score
// differs from it by more than ratio of the score range.
func WithGlobalMinGuard(ratio float64) Option {
	return func(c *config) {
		if ratio > 0 {
			c.guard = ratio
		}
	}
}

// WithOffset maps score position i to candidate i+k. Use k=1 when scores
// are differences between consecutive candidates.
func WithOffset(k int) Option {
	return func(c *config) {
		c.offset = k
	}
}

// WithCandidates sets the number of candidates the result is clipped to.
// Defaults to len(scores)+offset.
func WithCandidates(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.candidates = n
		}
	}
}

// Select picks a candidate from its scores by the knee of the score curve.
// Non-finite scores are never chosen while a finite one exists.
func Select(scores []float64, opts ...Option) (Selection, error) {
	var cfg config
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	_, kneeIdx, err := Point(scores)
	if err != nil {
		return Selection{}, err
	}

	minIdx := -1
	lo, hi := math.Inf(1), math.Inf(-1)

	for i, v := range scores {
		if !isFinite(v) {
			continue
		}

		if minIdx < 0 || v < scores[minIdx] {
			minIdx = i
		}

		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	idx := kneeIdx
	if !isFinite(scores[idx]) {
		idx = minIdx
	}

	if cfg.guard > 0 {
		ratio := math.Abs(scores[idx]-scores[minIdx]) / (hi - lo + 1e-18)
		if ratio > cfg.guard {
			idx = minIdx
		}
	}

	sel := Selection{
		KneeIndex: kneeIdx,
		MinIndex:  minIdx,
		Score:     scores[idx],
	}

	count := cfg.candidates
	if count <= 0 {
		count = len(scores) + cfg.offset
	}

	sel.Index = max(0, min(idx+cfg.offset, count-1))

	return sel, nil
}

// SelectBy scores candidates 0..n-1 with score and selects one with
// [Select]. The scores are returned alongside the selection.
func SelectBy(n int, score func(i int) float64, opts ...Option) (Selection, []float64, error) {
	if n <= 0 {
		return Selection{}, nil, ErrEmpty
	}

	scores := make([]float64, n)
	for i := range scores {
		scores[i] = score(i)
	}

	sel, err := Select(scores, opts...)

	return sel, scores, err
}
