// Package tts routes chat narration text through a provider chain
// (OpenAI, self-hosted) with per-room voice/speed overrides and a text
// sanitizer.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/onlytrade/room-server/internal/apperr"
	"github.com/onlytrade/room-server/internal/common"
	"github.com/onlytrade/room-server/internal/llm"
)

type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderSelfHosted Provider = "selfhosted"
)

// Profile is one room's persisted override (// data/chat/tts_profiles.json).
type Profile struct {
	RoomID   string   `json:"room_id"`
	Voice    string   `json:"voice,omitempty"`
	Speed    float64  `json:"speed,omitempty"`
	Provider Provider `json:"provider,omitempty"`
	Fallback Provider `json:"fallback,omitempty"`
}

// Config carries the CHAT_TTS_* knobs.
type Config struct {
	Enabled           bool
	DefaultProvider   Provider
	DefaultFallback   Provider
	DefaultVoice      string
	DefaultSpeed      float64
	MaxChars          int
	OpenAIModel       string
	SelfHostedURL     string
	SelfHostedTimeout time.Duration
	ResponseFormat    string
}

// Dispatcher routes synthesis requests through the provider chain and
// persists per-room profile overrides.
type Dispatcher struct {
	cfg    Config
	openai *llm.OpenAIClient
	http   *http.Client

	mu          sync.Mutex
	profilePath string
	profiles    map[string]Profile
}

func NewDispatcher(cfg Config, openai *llm.OpenAIClient, profilePath string) *Dispatcher {
	d := &Dispatcher{
		cfg:         cfg,
		openai:      openai,
		http:        &http.Client{},
		profilePath: profilePath,
		profiles:    make(map[string]Profile),
	}
	var loaded map[string]Profile
	if err := common.ReadJSON(profilePath, &loaded); err == nil {
		d.profiles = loaded
	}
	return d
}

func (d *Dispatcher) Config() Config { return d.cfg }

func (d *Dispatcher) ProfileFor(roomID string) Profile {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.profiles[roomID]; ok {
		return p
	}
	return Profile{
		RoomID:   roomID,
		Voice:    d.cfg.DefaultVoice,
		Speed:    d.cfg.DefaultSpeed,
		Provider: d.cfg.DefaultProvider,
		Fallback: d.cfg.DefaultFallback,
	}
}

func (d *Dispatcher) SetProfile(p Profile) error {
	d.mu.Lock()
	d.profiles[p.RoomID] = p
	snapshot := make(map[string]Profile, len(d.profiles))
	for k, v := range d.profiles {
		snapshot[k] = v
	}
	d.mu.Unlock()
	return common.WriteJSONAtomic(d.profilePath, snapshot)
}

func (d *Dispatcher) DeleteProfile(roomID string) error {
	d.mu.Lock()
	delete(d.profiles, roomID)
	snapshot := make(map[string]Profile, len(d.profiles))
	for k, v := range d.profiles {
		snapshot[k] = v
	}
	d.mu.Unlock()
	return common.WriteJSONAtomic(d.profilePath, snapshot)
}

var (
	tickerToken  = regexp.MustCompile(`\b[A-Z0-9]{1,6}\.(SH|SZ|O|N)\b`)
	bareNumToken = regexp.MustCompile(`\b\d{3,}(\.\d+)?\b`)
)

// Sanitize strips ticker tokens and bare numeric tokens to improve
// narration prosody, and compacts to a single line bounded by MaxChars.
func (d *Dispatcher) Sanitize(text string) string {
	text = tickerToken.ReplaceAllString(text, "")
	text = bareNumToken.ReplaceAllString(text, "")
	text = strings.Join(strings.Fields(text), " ")
	if d.cfg.MaxChars > 0 && len(text) > d.cfg.MaxChars {
		text = text[:d.cfg.MaxChars]
	}
	return text
}

// Speak dispatches through [profile.Provider, profile.Fallback],
// retrying the fallback automatically if the primary fails.
func (d *Dispatcher) Speak(ctx context.Context, roomID, text string) ([]byte, string, error) {
	if !d.cfg.Enabled {
		return nil, "", apperr.ServiceUnavailable(apperr.CodeChatTTSDisabled)
	}
	profile := d.ProfileFor(roomID)
	sanitized := d.Sanitize(text)
	if sanitized == "" {
		return nil, "", apperr.Validation(apperr.CodeTextRequired)
	}

	chain := []Provider{profile.Provider}
	if profile.Fallback != "" && profile.Fallback != profile.Provider {
		chain = append(chain, profile.Fallback)
	}

	var lastErr error
	for _, p := range chain {
		audio, ct, err := d.speakOnce(ctx, p, profile, sanitized)
		if err == nil {
			return audio, ct, nil
		}
		lastErr = err
	}
	failErr := apperr.ServiceUnavailable(apperr.CodeChatTTSDispatchFailed)
	failErr.Cause = lastErr
	return nil, "", failErr
}

func (d *Dispatcher) speakOnce(ctx context.Context, provider Provider, profile Profile, text string) ([]byte, string, error) {
	switch provider {
	case ProviderOpenAI:
		if d.openai == nil || !d.openai.Enabled() {
			return nil, "", fmt.Errorf("openai tts not configured")
		}
		return d.openai.Speech(ctx, d.cfg.OpenAIModel, profile.Voice, text, d.cfg.ResponseFormat, profile.Speed)
	case ProviderSelfHosted:
		return d.speakSelfHosted(ctx, profile, text)
	default:
		return nil, "", apperr.Validation(apperr.CodeProviderRequired)
	}
}

// speakSelfHosted posts a differently-shaped payload to a self-hosted
// TTS endpoint.
func (d *Dispatcher) speakSelfHosted(ctx context.Context, profile Profile, text string) ([]byte, string, error) {
	if d.cfg.SelfHostedURL == "" {
		return nil, "", fmt.Errorf("selfhosted tts not configured")
	}
	cctx, cancel := context.WithTimeout(ctx, d.cfg.SelfHostedTimeout)
	defer cancel()

	reqBody := map[string]any{
		"text":  text,
		"voice": profile.Voice,
		"speed": profile.Speed,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(cctx, http.MethodPost, d.cfg.SelfHostedURL, bytes.NewReader(body))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		if cctx.Err() != nil {
			return nil, "", fmt.Errorf("selfhosted_tts_timeout_%d", d.cfg.SelfHostedTimeout.Milliseconds())
		}
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("selfhosted_tts_http_%d", resp.StatusCode)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "audio/mpeg"
	}
	return audio, ct, nil
}
