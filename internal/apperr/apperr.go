// Package apperr carries the stable error-code taxonomy so the HTTP
// layer can map any failure to its documented {code, status} pair
// without re-deriving it from error strings.
package apperr

import "net/http"

// Error is a typed, HTTP-mappable failure.
type Error struct {
	Code    string
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Cause }

func new_(status int, code string, cause error) *Error {
	return &Error{Code: code, Status: status, Message: code, Cause: cause}
}

func Validation(code string) *Error  { return new_(http.StatusBadRequest, code, nil) }
func Unauthorized(code string) *Error { return new_(http.StatusUnauthorized, code, nil) }
func NotFound(code string) *Error     { return new_(http.StatusNotFound, code, nil) }
func Conflict(code string) *Error     { return new_(http.StatusConflict, code, nil) }
func Locked(code string) *Error       { return new_(http.StatusLocked, code, nil) }
func Upstream(code string, cause error) *Error {
	return new_(http.StatusBadGateway, code, cause)
}
func ServiceUnavailable(code string) *Error { return new_(http.StatusServiceUnavailable, code, nil) }
func Internal(code string, cause error) *Error {
	return new_(http.StatusInternalServerError, code, cause)
}

// As extracts an *Error, falling back to a generic internal error tagged
// with fallbackCode: anything else becomes a 500 under a generic
// <endpoint>_failed code.
func As(err error, fallbackCode string) *Error {
	if err == nil {
		return nil
	}
	if ae, ok := err.(*Error); ok {
		return ae
	}
	return Internal(fallbackCode, err)
}

// Stable codes returned in the JSON envelope's error.code field.
const (
	CodeInvalidRoomID              = "invalid_room_id"
	CodeInvalidTraderID            = "invalid_trader_id"
	CodeInvalidUserSessionID       = "invalid_user_session_id"
	CodeInvalidAction              = "invalid_action"
	CodeInvalidCycleMs             = "invalid_cycle_ms"
	CodeInvalidDecisionEveryBars   = "invalid_decision_every_bars"
	CodeInvalidSpeed               = "invalid_speed"
	CodeInvalidCursorIndex         = "invalid_cursor_index"
	CodeInvalidLoop                = "invalid_loop"
	CodeInvalidFallbackProvider    = "invalid_fallback_provider"
	CodeInvalidDayKey              = "invalid_day_key"
	CodeResetConfirmationRequired  = "reset_confirmation_required"
	CodeNoResetScopeSelected       = "no_reset_scope_selected"
	CodeRoomIDRequired             = "room_id_required"
	CodeTextRequired               = "text_required"
	CodeProviderRequired           = "provider_required"

	CodeUnauthorizedControlToken = "unauthorized_control_token"
	CodeKillSwitchActive         = "kill_switch_active"

	CodeRoomNotFound           = "room_not_found"
	CodeTraderNotFound         = "trader_not_found"
	CodeAgentManifestNotFound  = "agent_manifest_not_found"
	CodeAgentNotRegistered     = "agent_not_registered"
	CodeMemoryNotFound         = "memory_not_found"

	CodeRateLimited                     = "rate_limited"
	CodeBettingClosedBefore30m          = "betting_closed_before_market_close_30m"
	CodeTraderNotAvailableForBet        = "trader_not_available_for_bet"

	CodeLiveFileError          = "live_file_error"
	CodeLiveFileStale          = "live_file_stale"
	CodeLiveFramesUnavailable  = "live_frames_unavailable"
	CodeMarketProxyError       = "market_proxy_error"
	CodeChatTTSDisabled        = "chat_tts_disabled"
	CodeChatTTSUnavailable     = "chat_tts_unavailable"
	CodeChatTTSDispatchFailed  = "chat_tts_dispatch_failed"

	CodeStreamPacketFailed        = "stream_packet_failed"
	CodeDecisionAuditLatestFailed = "decision_audit_latest_failed"
	CodeDecisionAuditDayFailed    = "decision_audit_day_failed"
	CodeBetsMarketFailed          = "bets_market_failed"
	CodeBetsPlaceFailed           = "bets_place_failed"
	CodeFactoryResetFailed        = "factory_reset_failed"
	CodeResetAgentFailed          = "reset_agent_failed"
)
