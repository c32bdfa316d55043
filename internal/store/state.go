// Package store persists portfolio snapshots and session history as JSON
// files, indented for easy diffing under version control.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"dailytrader/internal/broker"
	"dailytrader/internal/model"
)

const (
	portfolioFile = "portfolio_state.json"
	historyFile   = "trading_history.json"
	analysisDir   = "analysis"
)

// PortfolioState is the on-disk portfolio snapshot.
type PortfolioState struct {
	broker.State
	LastUpdated time.Time `json:"last_updated"`
}

// SessionEntry records one trading session's outcome.
type SessionEntry struct {
	Timestamp      time.Time      `json:"timestamp"`
	Symbols        []string       `json:"symbols"`
	Signals        []model.Signal `json:"signals"`
	OrdersPlaced   []model.Order  `json:"orders_placed"`
	PortfolioValue float64        `json:"portfolio_value"`
}

// StateStore reads and writes portfolio data under a single directory.
type StateStore struct {
	dir string
	now func() time.Time
}

// NewStateStore creates the data directory (and its analysis subdirectory)
// if missing.
func NewStateStore(dir string) (*StateStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, analysisDir), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return &StateStore{dir: dir, now: time.Now}, nil
}

// SavePortfolio writes the broker snapshot, stamped with the current time.
func (s *StateStore) SavePortfolio(state broker.State) error {
	return s.writeJSON(portfolioFile, PortfolioState{
		State:       state,
		LastUpdated: s.now(),
	})
}

// LoadPortfolio reads the last saved snapshot. A missing file is not an
// error; ok reports whether a snapshot existed.
func (s *StateStore) LoadPortfolio() (state PortfolioState, ok bool, err error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, portfolioFile))
	if errors.Is(err, fs.ErrNotExist) {
		return PortfolioState{}, false, nil
	}
	if err != nil {
		return PortfolioState{}, false, err
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return PortfolioState{}, false, fmt.Errorf("decode %s: %w", portfolioFile, err)
	}
	return state, true, nil
}

// AppendHistory appends a session entry to the trading history file,
// stamping it with the current time.
func (s *StateStore) AppendHistory(entry SessionEntry) error {
	entry.Timestamp = s.now()

	var history []SessionEntry
	raw, err := os.ReadFile(filepath.Join(s.dir, historyFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return err
	default:
		if err := json.Unmarshal(raw, &history); err != nil {
			return fmt.Errorf("decode %s: %w", historyFile, err)
		}
	}

	history = append(history, entry)
	return s.writeJSON(historyFile, history)
}

// History returns session entries, oldest first. A positive limit returns
// only the most recent entries.
func (s *StateStore) History(limit int) ([]SessionEntry, error) {
	raw, err := os.ReadFile(filepath.Join(s.dir, historyFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var history []SessionEntry
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("decode %s: %w", historyFile, err)
	}
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history, nil
}

// SaveAnalysis writes one day's signals under analysis/analysis_YYYY-MM-DD.json.
func (s *StateStore) SaveAnalysis(date time.Time, signals []model.Signal) error {
	name := filepath.Join(analysisDir,
		fmt.Sprintf("analysis_%s.json", date.Format("2006-01-02")))
	return s.writeJSON(name, signals)
}

// writeJSON writes atomically: a temp file in the same directory, then a
// rename over the target.
func (s *StateStore) writeJSON(name string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	target := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(filepath.Dir(target), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), target)
}
