package api

import (
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/onlytrade/room-server/internal/apperr"
	"github.com/onlytrade/room-server/internal/applog"
	"github.com/onlytrade/room-server/internal/common"
)

func (s *Server) writeAudit(c *gin.Context, action, target, result string, err error) {
	if s.audit == nil {
		return
	}
	entry := applog.AuditEntry{
		TS:     s.clk.Now(),
		Action: action,
		Actor:  c.ClientIP(),
		IP:     c.ClientIP(),
		Target: target,
		Result: result,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	_ = s.audit.Write(entry)
}

func (s *Server) handleAgentRuntimeStatus(c *gin.Context) {
	ok(c, s.runtime.GetStatus())
}

type runtimeControlRequest struct {
	Action    string `json:"action"`
	CycleMs   int    `json:"cycle_ms"`
	EveryBars int    `json:"every_bars"`
}

func (s *Server) handleAgentRuntimeControl(c *gin.Context) {
	var req runtimeControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validation(apperr.CodeInvalidAction), apperr.CodeInvalidAction)
		return
	}

	var err error
	switch req.Action {
	case "pause":
		s.runtime.Pause()
	case "resume":
		if !s.runtime.Resume() {
			err = apperr.Conflict(apperr.CodeKillSwitchActive)
		}
	case "step":
		s.runtime.EnqueueReplayStep()
	case "set_cycle_ms":
		if req.CycleMs <= 0 {
			err = apperr.Validation(apperr.CodeInvalidCycleMs)
		} else {
			s.runtime.SetCycleMs(req.CycleMs)
		}
	case "set_decision_every_bars":
		if !s.cadence.SetEveryBars(req.EveryBars) {
			err = apperr.Validation(apperr.CodeInvalidDecisionEveryBars)
		}
	default:
		err = apperr.Validation(apperr.CodeInvalidAction)
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	s.writeAudit(c, "agent_runtime_control:"+req.Action, "agent_runtime", result, err)
	if err != nil {
		fail(c, err, apperr.CodeInvalidAction)
		return
	}
	ok(c, s.runtime.GetStatus())
}

type killSwitchRequest struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

func (s *Server) handleKillSwitchControl(c *gin.Context) {
	var req killSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validation(apperr.CodeInvalidAction), apperr.CodeInvalidAction)
		return
	}

	var err error
	switch req.Action {
	case "activate":
		err = s.killSwitch.Activate(req.Reason, req.Actor)
	case "deactivate":
		err = s.killSwitch.Deactivate(req.Actor)
	default:
		err = apperr.Validation(apperr.CodeInvalidAction)
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	s.writeAudit(c, "kill_switch:"+req.Action, "agent_runtime", result, err)
	if err != nil {
		fail(c, err, "kill_switch_failed")
		return
	}
	ok(c, s.killSwitch.State())
}

func (s *Server) handleReplayRuntimeStatus(c *gin.Context) {
	if s.replay == nil {
		fail(c, apperr.ServiceUnavailable("replay_not_configured"), "replay_not_configured")
		return
	}
	cursor, length, running, speed, loop := s.replay.Status()
	ok(c, gin.H{
		"cursor": cursor, "length": length, "running": running,
		"speed": speed, "loop": loop,
	})
}

type replayControlRequest struct {
	Action      string  `json:"action"`
	Speed       float64 `json:"speed"`
	CursorIndex int     `json:"cursor_index"`
	Loop        bool    `json:"loop"`
}

func (s *Server) handleReplayRuntimeControl(c *gin.Context) {
	if s.replay == nil {
		fail(c, apperr.ServiceUnavailable("replay_not_configured"), "replay_not_configured")
		return
	}
	var req replayControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validation(apperr.CodeInvalidAction), apperr.CodeInvalidAction)
		return
	}

	var err error
	switch req.Action {
	case "pause":
		s.replay.Pause()
	case "resume":
		s.replay.Resume()
	case "step":
		s.replay.Step()
	case "set_speed":
		if req.Speed <= 0 {
			err = apperr.Validation(apperr.CodeInvalidSpeed)
		} else {
			s.replay.SetSpeed(req.Speed)
		}
	case "set_cursor":
		if !s.replay.SetCursor(req.CursorIndex) {
			err = apperr.Validation(apperr.CodeInvalidCursorIndex)
		}
	case "set_loop":
		s.replay.SetLoop(req.Loop)
	default:
		err = apperr.Validation(apperr.CodeInvalidAction)
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	s.writeAudit(c, "replay_runtime_control:"+req.Action, "replay_runtime", result, err)
	if err != nil {
		fail(c, err, apperr.CodeInvalidAction)
		return
	}
	cursor, length, running, speed, loop := s.replay.Status()
	ok(c, gin.H{"cursor": cursor, "length": length, "running": running, "speed": speed, "loop": loop})
}

func (s *Server) handleLivePreflight(c *gin.Context) {
	cnStatus, cnOK := s.adapter.LiveFileStatus("CN-A")
	usStatus, usOK := s.adapter.LiveFileStatus("US")
	ok(c, gin.H{
		"cn_a": gin.H{"status": cnStatus, "configured": cnOK},
		"us":   gin.H{"status": usStatus, "configured": usOK},
	})
}

func (s *Server) handleAgentsAvailable(c *gin.Context) {
	ok(c, s.allTraders())
}

func (s *Server) handleAgentsRegistered(c *gin.Context) {
	ok(c, s.registry.Registered())
}

func (s *Server) handleAgentAsset(c *gin.Context) {
	id := c.Param("id")
	file := c.Param("file")
	base := filepath.Join(s.cfg.DataDir, "agents", "assets", id)
	path, err := common.SafeJoin(base, file)
	if err != nil {
		fail(c, apperr.Validation("invalid_asset_path"), "invalid_asset_path")
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.File(path)
}

func (s *Server) handleAgentRegister(c *gin.Context) {
	id := c.Param("id")
	err := s.registry.Register(id)
	s.writeAudit(c, "agent_register", id, resultOf(err), err)
	if err != nil {
		fail(c, err, apperr.CodeAgentManifestNotFound)
		return
	}
	ok(c, gin.H{"trader_id": id, "registered": true})
}

func (s *Server) handleAgentUnregister(c *gin.Context) {
	id := c.Param("id")
	err := s.registry.Unregister(id)
	s.writeAudit(c, "agent_unregister", id, resultOf(err), err)
	if err != nil {
		fail(c, err, "agent_unregister_failed")
		return
	}
	ok(c, gin.H{"trader_id": id, "registered": false})
}

func (s *Server) handleAgentStart(c *gin.Context) {
	id := c.Param("id")
	err := s.registry.StartTrader(id)
	s.writeAudit(c, "agent_start", id, resultOf(err), err)
	if err != nil {
		fail(c, err, apperr.CodeAgentNotRegistered)
		return
	}
	ok(c, gin.H{"trader_id": id, "status": "running"})
}

func (s *Server) handleAgentStop(c *gin.Context) {
	id := c.Param("id")
	err := s.registry.StopTrader(id)
	s.writeAudit(c, "agent_stop", id, resultOf(err), err)
	if err != nil {
		fail(c, err, apperr.CodeAgentNotRegistered)
		return
	}
	ok(c, gin.H{"trader_id": id, "status": "stopped"})
}

func resultOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
