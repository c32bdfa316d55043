package predictor

import (
	"fmt"
	"math"
	"sync"

	"dailytrader/internal/indicator"
	"dailytrader/internal/model"
)

// minSamples is the minimum number of usable feature rows for a fit.
const minSamples = 50

// LinearConfig tunes the ridge regressor.
type LinearConfig struct {
	Lambda     float64 // ridge penalty; defaults to 1e-3
	SplitRatio float64 // train fraction of the chronological split; defaults to 0.8
	Indicators indicator.Config
}

// Linear forecasts the next close with ridge regression over engineered
// indicator features. Features are z-score scaled with statistics from the
// training split; the split is chronological (no shuffling) so validation
// always lies in the future of training.
type Linear struct {
	mu      sync.RWMutex
	cfg     LinearConfig
	weights []float64 // one per feature, plus trailing bias term
	means   []float64
	stds    []float64
	trained bool
}

// NewLinear creates an untrained ridge regressor.
func NewLinear(cfg LinearConfig) *Linear {
	if cfg.Lambda <= 0 {
		cfg.Lambda = 1e-3
	}
	if cfg.SplitRatio <= 0 || cfg.SplitRatio >= 1 {
		cfg.SplitRatio = 0.8
	}
	if cfg.Indicators.TrendPeriod == 0 {
		cfg.Indicators = indicator.DefaultConfig()
	}
	return &Linear{cfg: cfg}
}

// Trained reports whether the model has been fitted.
func (l *Linear) Trained() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.trained
}

// Train fits the regressor on the bar history and reports in/out-of-sample
// accuracy.
func (l *Linear) Train(bars []model.Bar) (Report, error) {
	rows, targets, err := featureMatrix(bars, l.cfg.Indicators)
	if err != nil {
		return Report{}, err
	}
	if len(rows) < minSamples {
		return Report{}, fmt.Errorf("%w: have %d samples, need %d",
			ErrInsufficientData, len(rows), minSamples)
	}

	split := int(float64(len(rows)) * l.cfg.SplitRatio)
	trainX, trainY := rows[:split], targets[:split]
	valX, valY := rows[split:], targets[split:]

	means, stds := columnStats(trainX)
	weights, err := ridgeFit(scale(trainX, means, stds), trainY, l.cfg.Lambda)
	if err != nil {
		return Report{}, err
	}

	l.mu.Lock()
	l.weights = weights
	l.means = means
	l.stds = stds
	l.trained = true
	l.mu.Unlock()

	trainPred := predictAll(scale(trainX, means, stds), weights)
	valPred := predictAll(scale(valX, means, stds), weights)

	return Report{
		TrainR2:   rSquared(trainY, trainPred),
		ValR2:     rSquared(valY, valPred),
		TrainRMSE: rmse(trainY, trainPred),
		ValRMSE:   rmse(valY, valPred),
		Features:  len(featureNames),
		Samples:   len(rows),
	}, nil
}

// Predict forecasts the next close from the window's last bar.
func (l *Linear) Predict(bars []model.Bar) (Prediction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.trained {
		return Prediction{}, model.ErrNotTrained
	}
	if len(bars) <= minHistory {
		return Prediction{}, fmt.Errorf("%w: have %d bars, need more than %d",
			ErrInsufficientData, len(bars), minHistory)
	}

	row, err := featureRow(bars, len(bars)-1, l.cfg.Indicators)
	if err != nil {
		return Prediction{}, err
	}

	scaled := make([]float64, len(row))
	for j, v := range row {
		scaled[j] = (v - l.means[j]) / l.stds[j]
	}
	predicted := dot(scaled, l.weights)

	current := bars[len(bars)-1].Close
	change := predicted - current
	changePct := 0.0
	if current != 0 {
		changePct = change / current * 100
	}

	return Prediction{
		PredictedPrice:     predicted,
		CurrentPrice:       current,
		PredictedChange:    change,
		PredictedChangePct: changePct,
	}, nil
}

// columnStats computes per-column mean and standard deviation. Constant
// columns get a standard deviation of 1 so scaling zeroes them out.
func columnStats(rows [][]float64) (means, stds []float64) {
	cols := len(rows[0])
	means = make([]float64, cols)
	stds = make([]float64, cols)

	for _, row := range rows {
		for j, v := range row {
			means[j] += v
		}
	}
	n := float64(len(rows))
	for j := range means {
		means[j] /= n
	}

	for _, row := range rows {
		for j, v := range row {
			d := v - means[j]
			stds[j] += d * d
		}
	}
	for j := range stds {
		stds[j] = math.Sqrt(stds[j] / n)
		if stds[j] < 1e-12 {
			stds[j] = 1
		}
	}
	return means, stds
}

func scale(rows [][]float64, means, stds []float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - means[j]) / stds[j]
		}
		out[i] = scaled
	}
	return out
}

// ridgeFit solves (XᵀX + λI)w = Xᵀy with an unpenalized intercept column.
func ridgeFit(rows [][]float64, targets []float64, lambda float64) ([]float64, error) {
	d := len(rows[0]) + 1 // trailing intercept

	// Normal equations.
	xtx := make([][]float64, d)
	for i := range xtx {
		xtx[i] = make([]float64, d)
	}
	xty := make([]float64, d)

	for r, row := range rows {
		for i := 0; i < d; i++ {
			xi := 1.0
			if i < len(row) {
				xi = row[i]
			}
			xty[i] += xi * targets[r]
			for j := i; j < d; j++ {
				xj := 1.0
				if j < len(row) {
					xj = row[j]
				}
				xtx[i][j] += xi * xj
			}
		}
	}
	for i := 0; i < d; i++ {
		for j := 0; j < i; j++ {
			xtx[i][j] = xtx[j][i]
		}
	}
	for i := 0; i < d-1; i++ {
		xtx[i][i] += lambda
	}

	return solveLinear(xtx, xty)
}

// solveLinear performs Gaussian elimination with partial pivoting.
func solveLinear(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, fmt.Errorf("singular design matrix at column %d", col)
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < n; r++ {
			f := a[r][col] / a[col][col]
			for c := col; c < n; c++ {
				a[r][c] -= f * a[col][c]
			}
			b[r] -= f * b[col]
		}
	}

	x := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		sum := b[r]
		for c := r + 1; c < n; c++ {
			sum -= a[r][c] * x[c]
		}
		x[r] = sum / a[r][r]
	}
	return x, nil
}

// dot applies weights (with trailing intercept) to a scaled feature row.
func dot(row, weights []float64) float64 {
	sum := weights[len(weights)-1] // intercept
	for j, v := range row {
		sum += v * weights[j]
	}
	return sum
}

func predictAll(rows [][]float64, weights []float64) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = dot(row, weights)
	}
	return out
}

func rSquared(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	m := 0.0
	for _, y := range actual {
		m += y
	}
	m /= float64(len(actual))

	var ssRes, ssTot float64
	for i, y := range actual {
		d := y - predicted[i]
		ssRes += d * d
		t := y - m
		ssTot += t * t
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

func rmse(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	var ss float64
	for i, y := range actual {
		d := y - predicted[i]
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(actual)))
}
