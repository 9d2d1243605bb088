// Package marketdata gives every other component uniform access to
// intraday/daily bars regardless of whether they come from a live JSON
// snapshot, a recorded replay, or an upstream HTTP endpoint.
package marketdata

// Interval names the bar size requested from the adapter.
type Interval string

const (
	Interval1m Interval = "1m"
	Interval1d Interval = "1d"
)

// Mode names which backing served a batch.
type Mode string

const (
	ModeMock Mode = "mock"
	ModeReal Mode = "real"
	ModeLive Mode = "live"
)

// Frame is one OHLCV bar. WindowStartMs anchors sort order; the last
// frame of a batch may be partial (still forming).
type Frame struct {
	WindowStartMs int64   `json:"window_start_ms"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	Volume        float64 `json:"volume"`
	QuoteVolume   float64 `json:"quote_volume"`
	Partial       bool    `json:"partial,omitempty"`
}

// Kline is a Frame projected to the wire shape GetKlines returns.
type Kline struct {
	OpenTime    int64   `json:"openTime"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      float64 `json:"volume"`
	QuoteVolume float64 `json:"quoteVolume"`
}

// Batch is the adapter's response envelope.
type Batch struct {
	Frames   []Frame `json:"frames"`
	Mode     Mode    `json:"mode"`
	Provider string  `json:"provider"`
}

func (b Batch) Klines() []Kline {
	out := make([]Kline, 0, len(b.Frames))
	for _, f := range b.Frames {
		out = append(out, Kline{
			OpenTime:    f.WindowStartMs,
			Open:        f.Open,
			High:        f.High,
			Low:         f.Low,
			Close:       f.Close,
			Volume:      f.Volume,
			QuoteVolume: f.QuoteVolume,
		})
	}
	return out
}

// Market names the exchange grouping a symbol belongs to, which in turn
// selects the Live File Provider and session calendar to use.
type Market string

const (
	MarketCNA Market = "CN-A"
	MarketUS  Market = "US"
)
