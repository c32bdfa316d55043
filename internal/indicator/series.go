package indicator

import "math"

// SMA calculates a simple moving average over a rolling window.
// Uses a preallocated circular buffer for zero-allocation updates.
type SMA struct {
	period  int
	buf     []float64
	idx     int
	count   int
	sum     float64
	current float64
}

// NewSMA creates a new SMA with the given period.
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		buf:    make([]float64, period),
	}
}

func (s *SMA) Update(price float64) {
	if s.count >= s.period {
		// Subtract the oldest value being overwritten
		s.sum -= s.buf[s.idx]
	}

	s.buf[s.idx] = price
	s.sum += price
	s.idx = (s.idx + 1) % s.period
	s.count++

	if s.count >= s.period {
		s.current = s.sum / float64(s.period)
	} else {
		// Partial window: average over what has been seen so far
		s.current = s.sum / float64(s.count)
	}
}

func (s *SMA) Value() float64 { return s.current }
func (s *SMA) Ready() bool    { return s.count >= s.period }

// EMA calculates an exponential moving average, seeded with the SMA of the
// first period values. O(1) per update.
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
	sum        float64
}

// NewEMA creates a new EMA with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Update(price float64) {
	e.count++

	if e.count <= e.period {
		// Accumulate for the initial SMA seed; report the running mean
		// until the seed completes so short windows stay defined.
		e.sum += price
		e.current = e.sum / float64(e.count)
		return
	}

	// EMA = price*multiplier + prev*(1-multiplier)
	e.current = (price * e.multiplier) + (e.current * (1 - e.multiplier))
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.count >= e.period }

// emaSeries runs an EMA over the whole series and returns the value at every
// position. Positions before the seed completes carry the running mean.
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	ema := NewEMA(period)
	for i, v := range values {
		ema.Update(v)
		out[i] = ema.Value()
	}
	return out
}

// lastSMA returns the mean of the trailing window, shrinking the window when
// fewer than period values exist.
func lastSMA(values []float64, period int) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	if n > period {
		values = values[n-period:]
	}
	return mean(values)
}

// lastStdDev returns the sample standard deviation of the trailing window,
// shrinking like lastSMA. Zero when fewer than two values exist.
func lastStdDev(values []float64, period int) float64 {
	n := len(values)
	if n > period {
		values = values[n-period:]
	}
	return stdDev(values)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stdDev is the sample standard deviation (n-1 denominator).
func stdDev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	m := mean(values)
	ss := 0.0
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}
