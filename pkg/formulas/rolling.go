package formulas

// Rolling estimators update a statistic computed over a fixed-size moving window in
// O(1), given the observation entering the window and the one leaving it.
// n is the window size and must be the same for every update of a window.

// RollingMean returns the mean of the window after newObs replaces lostObs.
func RollingMean(prevMean, newObs, lostObs float64, n int) float64 {
	return prevMean + (newObs-lostObs)/float64(n)
}

// RollingVariance returns the unbiased variance of the window after newObs replaces lostObs.
func RollingVariance(prevVar, prevMean, newObs, lostObs float64, n int) float64 {
	nf := float64(n)
	nextMean := RollingMean(prevMean, newObs, lostObs, n)
	return prevVar + (nf/(nf-1))*((newObs*newObs-lostObs*lostObs)/nf+(prevMean*prevMean-nextMean*nextMean))
}

// RollingCovariance returns the unbiased covariance of the paired window after
// (newX, newY) replaces (lostX, lostY). prevMeanX and prevMeanY are the means before
// the update.
func RollingCovariance(prevCov, newX, lostX, prevMeanX, newY, lostY, prevMeanY float64, n int) float64 {
	nf := float64(n)
	newSumTerm := newX*newY - lostX*lostY
	xyCross := prevMeanX * (newY - lostY)
	yxCross := prevMeanY * (newX - lostX)
	perturbation := (newX - lostX) * (newY - lostY) / nf
	return prevCov + (newSumTerm-xyCross-yxCross-perturbation)/(nf-1)
}

// RollingWindow tracks the mean and variance of a fixed-size window of a chronological
// series. The window size is fixed when the window is seeded.
type RollingWindow struct {
	values   []float64 // ring buffer, oldest at head
	head     int
	mean     float64
	variance float64
}

// NewRollingWindow seeds a window from its first len(seed) observations, oldest first.
func NewRollingWindow(seed []float64) (*RollingWindow, error) {
	if len(seed) <= 1 {
		return nil, sizeError("rolling window", len(seed), 2)
	}
	mean, _ := Mean(seed)
	variance, _ := Variance(seed)

	values := make([]float64, len(seed))
	copy(values, seed)
	return &RollingWindow{values: values, mean: mean, variance: variance}, nil
}

// Size returns the fixed window length.
func (w *RollingWindow) Size() int { return len(w.values) }

// Mean returns the current window mean.
func (w *RollingWindow) Mean() float64 { return w.mean }

// Variance returns the current unbiased window variance.
func (w *RollingWindow) Variance() float64 { return w.variance }

// Push slides the window forward by one observation and returns the retired one.
func (w *RollingWindow) Push(obs float64) float64 {
	n := len(w.values)
	lost := w.values[w.head]

	w.variance = RollingVariance(w.variance, w.mean, obs, lost, n)
	w.mean = RollingMean(w.mean, obs, lost, n)

	w.values[w.head] = obs
	w.head = (w.head + 1) % n
	return lost
}

// Values returns the window contents, oldest first.
func (w *RollingWindow) Values() []float64 {
	n := len(w.values)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = w.values[(w.head+i)%n]
	}
	return out
}

// RollingPairWindow tracks the covariance of two paired series over a fixed window.
type RollingPairWindow struct {
	x, y       *RollingWindow
	covariance float64
}

// NewRollingPairWindow seeds a paired window. x and y must have equal length.
func NewRollingPairWindow(seedX, seedY []float64) (*RollingPairWindow, error) {
	cov, err := Covariance(seedX, seedY)
	if err != nil {
		return nil, err
	}
	x, err := NewRollingWindow(seedX)
	if err != nil {
		return nil, err
	}
	y, err := NewRollingWindow(seedY)
	if err != nil {
		return nil, err
	}
	return &RollingPairWindow{x: x, y: y, covariance: cov}, nil
}

// Covariance returns the current window covariance.
func (w *RollingPairWindow) Covariance() float64 { return w.covariance }

// MeanX returns the current mean of the x series.
func (w *RollingPairWindow) MeanX() float64 { return w.x.Mean() }

// MeanY returns the current mean of the y series.
func (w *RollingPairWindow) MeanY() float64 { return w.y.Mean() }

// Push slides both series forward by one paired observation.
func (w *RollingPairWindow) Push(newX, newY float64) {
	prevMeanX, prevMeanY := w.x.Mean(), w.y.Mean()
	lostX := w.x.Push(newX)
	lostY := w.y.Push(newY)
	w.covariance = RollingCovariance(w.covariance, newX, lostX, prevMeanX, newY, lostY, prevMeanY, w.x.Size())
}
