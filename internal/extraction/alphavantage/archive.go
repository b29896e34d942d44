package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"market-etl/internal/domain"
	"market-etl/internal/extraction"
)

// ErrNotArchived is returned by Replay for symbols without a stored payload.
var ErrNotArchived = errors.New("payload not archived")

// Archive stores raw payloads as <dir>/<SYMBOL>.json.
type Archive struct {
	dir string
}

// NewArchive returns the archive of one run under rawDir.
func NewArchive(rawDir, runID string) *Archive {
	return &Archive{dir: filepath.Join(rawDir, runID)}
}

// OpenArchive uses dir directly.
func OpenArchive(dir string) *Archive {
	return &Archive{dir: dir}
}

// Dir returns the archive directory.
func (a *Archive) Dir() string {
	return a.dir
}

// Path returns the file holding symbol's payload.
func (a *Archive) Path(symbol string) string {
	return filepath.Join(a.dir, symbol+".json")
}

// Load reads a stored payload. ok is false when none exists.
func (a *Archive) Load(symbol string) (p Payload, ok bool, err error) {
	data, err := os.ReadFile(a.Path(symbol))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read archived payload: %w", err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false, fmt.Errorf("decode archived payload %s: %w", a.Path(symbol), err)
	}
	return p, true, nil
}

// Save writes a payload, creating the directory if needed.
func (a *Archive) Save(symbol string, p Payload) error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := os.WriteFile(a.Path(symbol), data, 0o644); err != nil {
		return fmt.Errorf("write archived payload: %w", err)
	}
	return nil
}

// Replay serves series from an archive without touching the network.
// Implements extraction.Source interface.
type Replay struct {
	archive *Archive
}

var _ extraction.Source = (*Replay)(nil)

// NewReplay creates a replay source over dir.
func NewReplay(dir string) *Replay {
	return &Replay{archive: OpenArchive(dir)}
}

// Fetch parses the archived payload for ticker.
func (r *Replay) Fetch(ctx context.Context, ticker domain.Ticker) (*extraction.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, ok, err := r.archive.Load(ticker.Symbol)
	if err != nil {
		return nil, &domain.ExtractionError{Ticker: ticker.Symbol, Err: err}
	}
	if !ok {
		return nil, &domain.ExtractionError{Ticker: ticker.Symbol, Err: ErrNotArchived}
	}

	points, err := ParsePayload(p, ticker)
	if err != nil {
		return nil, &domain.ExtractionError{Ticker: ticker.Symbol, Err: err}
	}
	return &extraction.Series{Ticker: ticker.Symbol, Points: points}, nil
}

// Calls is always zero.
func (r *Replay) Calls() int { return 0 }
