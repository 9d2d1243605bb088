package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// tokenBucket is a small rate limiter guarding the upstream HTTP calls:
// a token bucket refilled by elapsed wall time.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate int
	lastRefill time.Time
}

func newTokenBucket(maxTokens, refillPerSec int) *tokenBucket {
	return &tokenBucket{tokens: maxTokens, maxTokens: maxTokens, refillRate: refillPerSec, lastRefill: time.Now()}
}

func (b *tokenBucket) wait() {
	for {
		b.mu.Lock()
		elapsed := time.Since(b.lastRefill).Seconds()
		if add := int(elapsed * float64(b.refillRate)); add > 0 {
			b.tokens += add
			if b.tokens > b.maxTokens {
				b.tokens = b.maxTokens
			}
			b.lastRefill = time.Now()
		}
		if b.tokens > 0 {
			b.tokens--
			b.mu.Unlock()
			return
		}
		b.mu.Unlock()
		time.Sleep(50 * time.Millisecond)
	}
}

// UpstreamProvider fetches bars from an HTTP JSON endpoint returning
// Binance-shaped kline arrays: [openTime, open, high, low, close,
// volume, closeTime, quoteVolume, trades, ...].
type UpstreamProvider struct {
	baseURL string
	client  *http.Client
	limiter *tokenBucket
}

func NewUpstreamProvider(baseURL string) *UpstreamProvider {
	return &UpstreamProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: newTokenBucket(15, 15),
	}
}

func (u *UpstreamProvider) GetFrames(ctx context.Context, symbol string, interval Interval, limit int) ([]Frame, error) {
	u.limiter.wait()

	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d", u.baseURL, symbol, interval, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream returned status %d", resp.StatusCode)
	}

	var raw [][]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("upstream decode failed: %w", err)
	}

	frames := make([]Frame, 0, len(raw))
	for _, row := range raw {
		f, err := parseKlineRow(row)
		if err != nil {
			continue
		}
		frames = append(frames, f)
	}
	return frames, nil
}

func parseKlineRow(raw []any) (Frame, error) {
	if len(raw) < 8 {
		return Frame{}, fmt.Errorf("short kline row")
	}
	openTime, ok := raw[0].(float64)
	if !ok {
		return Frame{}, fmt.Errorf("invalid openTime")
	}
	open, err := parseStrField(raw[1])
	if err != nil {
		return Frame{}, err
	}
	high, err := parseStrField(raw[2])
	if err != nil {
		return Frame{}, err
	}
	low, err := parseStrField(raw[3])
	if err != nil {
		return Frame{}, err
	}
	cl, err := parseStrField(raw[4])
	if err != nil {
		return Frame{}, err
	}
	vol, err := parseStrField(raw[5])
	if err != nil {
		return Frame{}, err
	}
	quoteVol, _ := parseStrField(raw[7])

	return Frame{
		WindowStartMs: int64(openTime),
		Open:          open,
		High:          high,
		Low:           low,
		Close:         cl,
		Volume:        vol,
		QuoteVolume:   quoteVol,
	}, nil
}

func parseStrField(v any) (float64, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("expected string field")
	}
	return strconv.ParseFloat(s, 64)
}
