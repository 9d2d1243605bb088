package marketdata

import (
	"context"
	"fmt"

	"github.com/onlytrade/room-server/internal/apperr"
)

// Adapter is the uniform entry point every consumer (decision context
// builder, HTTP handlers) uses to fetch bars, regardless of which of the
// three backing modes is configured.
type Adapter struct {
	strictLive bool
	liveFiles  map[Market]*LiveFileProvider
	replay     *ReplayEngine
	upstream   *UpstreamProvider
	mode       string // "live_file" | "replay" | "mock"
	marketOf   func(symbol string) Market
}

func NewAdapter(mode string, strictLive bool, liveFiles map[Market]*LiveFileProvider, replay *ReplayEngine, upstream *UpstreamProvider, marketOf func(string) Market) *Adapter {
	return &Adapter{
		strictLive: strictLive,
		liveFiles:  liveFiles,
		replay:     replay,
		upstream:   upstream,
		mode:       mode,
		marketOf:   marketOf,
	}
}

// GetFrames returns at most limit frames for symbol/interval, sorted
// ascending by window start (providers already store ascending order).
func (a *Adapter) GetFrames(ctx context.Context, symbol string, interval Interval, limit int) (Batch, error) {
	switch a.mode {
	case "live_file":
		p, ok := a.liveFiles[a.marketOf(symbol)]
		if !ok {
			return Batch{}, apperr.Upstream(apperr.CodeLiveFramesUnavailable, fmt.Errorf("no live file provider for symbol %s", symbol))
		}
		if p.Erroring() {
			return Batch{}, apperr.Upstream(apperr.CodeLiveFileError, fmt.Errorf("live file provider erroring for %s", symbol))
		}
		frames := p.GetFrames(symbol, interval, limit)
		return Batch{Frames: frames, Mode: ModeLive, Provider: "live_file"}, nil

	case "replay":
		if a.strictLive {
			return Batch{}, apperr.Upstream(apperr.CodeLiveFramesUnavailable, fmt.Errorf("strict live mode forbids replay"))
		}
		if a.replay == nil {
			return Batch{}, apperr.Upstream(apperr.CodeLiveFramesUnavailable, fmt.Errorf("replay engine not configured"))
		}
		frames := a.replay.GetFrames(symbol, interval, limit)
		return Batch{Frames: frames, Mode: ModeReal, Provider: "replay"}, nil

	default:
		if a.strictLive {
			return Batch{}, apperr.Upstream(apperr.CodeLiveFramesUnavailable, fmt.Errorf("strict live mode forbids upstream/mock"))
		}
		if a.upstream == nil {
			return Batch{Frames: nil, Mode: ModeMock, Provider: "mock"}, nil
		}
		frames, err := a.upstream.GetFrames(ctx, symbol, interval, limit)
		if err != nil {
			return Batch{}, apperr.Upstream(apperr.CodeMarketProxyError, err)
		}
		return Batch{Frames: frames, Mode: ModeReal, Provider: "upstream"}, nil
	}
}

func (a *Adapter) GetKlines(ctx context.Context, symbol string, interval Interval, limit int) ([]Kline, error) {
	b, err := a.GetFrames(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}
	return b.Klines(), nil
}

// MarketErroringOrStale reports whether the market's live file provider
// is currently erroring or stale, used by the symbol candidate filter.
func (a *Adapter) MarketErroringOrStale(m Market) bool {
	p, ok := a.liveFiles[m]
	if !ok {
		return a.mode == "live_file"
	}
	st := p.Status()
	return st.LastError != "" || st.Stale
}

func (a *Adapter) LiveFileStatus(m Market) (Status, bool) {
	p, ok := a.liveFiles[m]
	if !ok {
		return Status{}, false
	}
	return p.Status(), true
}
