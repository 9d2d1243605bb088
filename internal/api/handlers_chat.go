package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/onlytrade/room-server/internal/apperr"
	"github.com/onlytrade/room-server/internal/chatservice"
	"github.com/onlytrade/room-server/internal/models"
	"github.com/onlytrade/room-server/internal/tts"
)

func (s *Server) handleChatBootstrap(c *gin.Context) {
	ok(c, gin.H{"session_id": chatservice.NewSessionID()})
}

func (s *Server) handleChatPublic(c *gin.Context) {
	roomID := c.Param("id")
	if roomID == "" {
		fail(c, apperr.Validation(apperr.CodeInvalidRoomID), apperr.CodeInvalidRoomID)
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	var before int64
	if v := c.Query("before_ts_ms"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			before = n
		}
	}
	msgs, err := s.chat.ListPublic(roomID, limit, before)
	if err != nil {
		fail(c, err, "chat_list_failed")
		return
	}
	ok(c, msgs)
}

func (s *Server) handleChatPrivate(c *gin.Context) {
	roomID := c.Param("id")
	if roomID == "" {
		fail(c, apperr.Validation(apperr.CodeInvalidRoomID), apperr.CodeInvalidRoomID)
		return
	}
	session := c.Query("session_id")
	if session == "" {
		fail(c, apperr.Validation(apperr.CodeInvalidUserSessionID), apperr.CodeInvalidUserSessionID)
		return
	}
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	var before int64
	if v := c.Query("before_ts_ms"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			before = n
		}
	}
	msgs, err := s.chat.ListPrivate(roomID, session, limit, before)
	if err != nil {
		fail(c, err, "chat_list_failed")
		return
	}
	ok(c, msgs)
}

type chatPostRequest struct {
	SessionID  string `json:"session_id"`
	Nickname   string `json:"nickname"`
	Text       string `json:"text"`
	Visibility string `json:"visibility"`
}

func (s *Server) handleChatPostMessage(c *gin.Context) {
	roomID := c.Param("id")
	if roomID == "" {
		fail(c, apperr.Validation(apperr.CodeInvalidRoomID), apperr.CodeInvalidRoomID)
		return
	}
	var req chatPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validation(apperr.CodeTextRequired), apperr.CodeTextRequired)
		return
	}
	if req.SessionID == "" {
		fail(c, apperr.Validation(apperr.CodeInvalidUserSessionID), apperr.CodeInvalidUserSessionID)
		return
	}

	visibility := models.VisibilityPublic
	if req.Visibility == string(models.VisibilityPrivate) {
		visibility = models.VisibilityPrivate
	}

	msg, err := s.chat.PostMessage(roomID, req.SessionID, req.Nickname, visibility, models.SenderUser, req.Text)
	if err != nil {
		fail(c, err, "chat_post_failed")
		return
	}
	s.touchActivity(roomID)
	okStatus(c, 201, msg)
}

func (s *Server) handleTTSConfig(c *gin.Context) {
	if s.tts == nil {
		fail(c, apperr.ServiceUnavailable(apperr.CodeChatTTSDisabled), apperr.CodeChatTTSDisabled)
		return
	}
	ok(c, s.tts.Config())
}

func (s *Server) handleTTSProfileGet(c *gin.Context) {
	roomID := c.Param("id")
	if s.tts == nil {
		fail(c, apperr.ServiceUnavailable(apperr.CodeChatTTSDisabled), apperr.CodeChatTTSDisabled)
		return
	}
	ok(c, s.tts.ProfileFor(roomID))
}

func (s *Server) handleTTSProfilePut(c *gin.Context) {
	roomID := c.Param("id")
	if s.tts == nil {
		fail(c, apperr.ServiceUnavailable(apperr.CodeChatTTSDisabled), apperr.CodeChatTTSDisabled)
		return
	}
	var profile tts.Profile
	if err := c.ShouldBindJSON(&profile); err != nil {
		fail(c, apperr.Validation(apperr.CodeProviderRequired), apperr.CodeProviderRequired)
		return
	}
	profile.RoomID = roomID
	err := s.tts.SetProfile(profile)
	s.writeAudit(c, "chat_tts_profile_set", roomID, resultOf(err), err)
	if err != nil {
		fail(c, apperr.Internal("chat_tts_profile_failed", err), "chat_tts_profile_failed")
		return
	}
	ok(c, profile)
}

func (s *Server) handleTTSProfileDelete(c *gin.Context) {
	roomID := c.Param("id")
	if s.tts == nil {
		fail(c, apperr.ServiceUnavailable(apperr.CodeChatTTSDisabled), apperr.CodeChatTTSDisabled)
		return
	}
	err := s.tts.DeleteProfile(roomID)
	s.writeAudit(c, "chat_tts_profile_delete", roomID, resultOf(err), err)
	if err != nil {
		fail(c, apperr.Internal("chat_tts_profile_failed", err), "chat_tts_profile_failed")
		return
	}
	ok(c, gin.H{"room_id": roomID, "deleted": true})
}

type chatTTSSpeakRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleTTSSpeak(c *gin.Context) {
	roomID := c.Param("id")
	if s.tts == nil {
		fail(c, apperr.ServiceUnavailable(apperr.CodeChatTTSDisabled), apperr.CodeChatTTSDisabled)
		return
	}
	var req chatTTSSpeakRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
		fail(c, apperr.Validation(apperr.CodeTextRequired), apperr.CodeTextRequired)
		return
	}
	audio, contentType, err := s.tts.Speak(c.Request.Context(), roomID, req.Text)
	if err != nil {
		fail(c, err, apperr.CodeChatTTSDispatchFailed)
		return
	}
	c.Data(200, contentType, audio)
}
