// Package predictor provides next-close price forecasting models.
//
// A Predictor is optional and gated by its Trained flag: calling Predict
// before training is a programming error, not a business rejection.
package predictor

import (
	"errors"

	"dailytrader/internal/model"
)

// ErrInsufficientData indicates too few usable samples to fit a model.
var ErrInsufficientData = errors.New("insufficient data for training")

// ErrPretrained indicates a Train call on a model that ships pretrained.
var ErrPretrained = errors.New("model is pretrained and cannot be retrained")

// Prediction is a one-step-ahead price forecast.
type Prediction struct {
	PredictedPrice     float64 `json:"predicted_price"`
	CurrentPrice       float64 `json:"current_price"`
	PredictedChange    float64 `json:"predicted_change"`
	PredictedChangePct float64 `json:"predicted_change_pct"`
}

// Report summarizes a training run.
type Report struct {
	TrainR2   float64 `json:"train_r2"`
	ValR2     float64 `json:"val_r2"`
	TrainRMSE float64 `json:"train_rmse"`
	ValRMSE   float64 `json:"val_rmse"`
	Features  int     `json:"n_features"`
	Samples   int     `json:"n_samples"`
}

// Predictor forecasts the next close from a daily bar window.
type Predictor interface {
	Trained() bool
	Train(bars []model.Bar) (Report, error)
	Predict(bars []model.Bar) (Prediction, error)
}
