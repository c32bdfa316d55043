package model

import "errors"

// Programming-error conditions propagate as hard errors. Expected business
// outcomes (insufficient funds/shares) are returned as rejected Orders, not
// errors, and external-advisory failures are downgraded to reasoning notes
// by the fusion engine.
var (
	// ErrNoData indicates an empty bar series for the requested symbol and
	// window. Fatal for that symbol's analysis only.
	ErrNoData = errors.New("no market data available")

	// ErrNotConnected indicates a broker operation before Connect.
	ErrNotConnected = errors.New("broker not connected")

	// ErrInvalidSide indicates an order side other than buy/sell.
	ErrInvalidSide = errors.New("invalid order side")

	// ErrPriceRequired indicates a market order without a simulated fill price.
	ErrPriceRequired = errors.New("price required for market order simulation")

	// ErrInvalidQuantity indicates an order quantity <= 0.
	ErrInvalidQuantity = errors.New("order quantity must be positive")

	// ErrOrderNotFound indicates a lookup for an unknown order ID.
	ErrOrderNotFound = errors.New("order not found")

	// ErrNotTrained indicates a predict call on an untrained model.
	ErrNotTrained = errors.New("model must be trained before predicting")
)
