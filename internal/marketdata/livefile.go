package marketdata

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/onlytrade/room-server/internal/clock"
)

// snapshotFile is the on-disk shape of one live JSON market snapshot:
// symbol -> interval -> ascending frames.
type snapshotFile struct {
	Frames map[string]map[string][]Frame `json:"frames"`
}

// Status mirrors one provider's health for the preflight endpoint.
type Status struct {
	FilePath           string `json:"file_path"`
	LastLoadTsMs       int64  `json:"last_load_ts_ms"`
	LastMtimeMs        int64  `json:"last_mtime_ms"`
	FrameCount         int    `json:"frame_count"`
	SymbolsPerInterval int    `json:"symbols_per_interval"`
	LastError          string `json:"last_error,omitempty"`
	Stale              bool   `json:"stale"`
}

// LiveFileProvider holds a cached parse of one JSON market snapshot,
// refreshing it on read once refreshMs has elapsed or the file's mtime
// moves. TTL+mtime caching generalized from a single price value to a
// full symbol/interval frame index.
type LiveFileProvider struct {
	mu           sync.RWMutex
	path         string
	refreshMs    int64
	staleAfterMs int64
	clk          clock.Clock

	snapshot     map[string]map[string][]Frame
	lastLoadMs   int64
	lastMtimeMs  int64
	lastError    string
}

func NewLiveFileProvider(path string, refreshMs, staleAfterMs int64, clk clock.Clock) *LiveFileProvider {
	return &LiveFileProvider{
		path:         path,
		refreshMs:    refreshMs,
		staleAfterMs: staleAfterMs,
		clk:          clk,
		snapshot:     make(map[string]map[string][]Frame),
	}
}

// ensureFresh re-reads the file when due. Parse failures are swallowed
// into lastError, leaving the previous good parse in place (zero-throw).
func (p *LiveFileProvider) ensureFresh() {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clk.Now().UnixMilli()
	if now-p.lastLoadMs < p.refreshMs {
		return
	}

	info, err := os.Stat(p.path)
	if err != nil {
		p.lastError = err.Error()
		p.lastLoadMs = now
		return
	}
	mtimeMs := info.ModTime().UnixMilli()
	// An unchanged file is not re-parsed and does not advance lastLoadMs,
	// so it reports stale once staleAfterMs has passed since the last load.
	if mtimeMs == p.lastMtimeMs && p.lastError == "" {
		return
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		p.lastError = err.Error()
		p.lastLoadMs = now
		return
	}

	var parsed snapshotFile
	if err := json.Unmarshal(data, &parsed); err != nil {
		p.lastError = err.Error()
		p.lastLoadMs = now
		return
	}

	p.snapshot = parsed.Frames
	p.lastMtimeMs = mtimeMs
	p.lastLoadMs = now
	p.lastError = ""
}

// GetFrames returns at most limit frames for (symbol, interval), sorted
// ascending; the caller trims to limit from the tail (most recent).
func (p *LiveFileProvider) GetFrames(symbol string, interval Interval, limit int) []Frame {
	p.ensureFresh()

	p.mu.RLock()
	defer p.mu.RUnlock()

	bySymbol, ok := p.snapshot[symbol]
	if !ok {
		return nil
	}
	frames := bySymbol[string(interval)]
	if len(frames) <= limit || limit <= 0 {
		return append([]Frame(nil), frames...)
	}
	return append([]Frame(nil), frames[len(frames)-limit:]...)
}

func (p *LiveFileProvider) Status() Status {
	p.ensureFresh()

	p.mu.RLock()
	defer p.mu.RUnlock()

	frameCount := 0
	for _, byInterval := range p.snapshot {
		for _, frames := range byInterval {
			frameCount += len(frames)
		}
	}

	now := p.clk.Now().UnixMilli()
	return Status{
		FilePath:           p.path,
		LastLoadTsMs:       p.lastLoadMs,
		LastMtimeMs:        p.lastMtimeMs,
		FrameCount:         frameCount,
		SymbolsPerInterval: len(p.snapshot),
		LastError:          p.lastError,
		Stale:              now-p.lastLoadMs > p.staleAfterMs,
	}
}

func (p *LiveFileProvider) Erroring() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastError != ""
}

