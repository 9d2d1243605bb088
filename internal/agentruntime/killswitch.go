package agentruntime

import (
	"sync"
	"time"

	"github.com/onlytrade/room-server/internal/applog"
	"github.com/onlytrade/room-server/internal/common"
)

// KillSwitchState is the persisted document.
type KillSwitchState struct {
	Active        bool   `json:"active"`
	Reason        string `json:"reason,omitempty"`
	ActivatedAt   int64  `json:"activated_at,omitempty"`
	ActivatedBy   string `json:"activated_by,omitempty"`
	DeactivatedAt int64  `json:"deactivated_at,omitempty"`
	DeactivatedBy string `json:"deactivated_by,omitempty"`
}

// KillSwitch is a single persisted document guarded by one mutex: state
// is a single document with a simple mutex, not a row per market.
type KillSwitch struct {
	mu    sync.Mutex
	path  string
	state KillSwitchState
	audit *applog.AuditLog
}

func NewKillSwitch(path string, audit *applog.AuditLog) *KillSwitch {
	ks := &KillSwitch{path: path, audit: audit}
	_ = common.ReadJSON(path, &ks.state)
	return ks
}

func (k *KillSwitch) Active() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state.Active
}

func (k *KillSwitch) State() KillSwitchState {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}

func (k *KillSwitch) Activate(reason, actor string) error {
	k.mu.Lock()
	k.state.Active = true
	k.state.Reason = reason
	k.state.ActivatedBy = actor
	k.state.ActivatedAt = time.Now().UnixMilli()
	state := k.state
	k.mu.Unlock()

	if k.audit != nil {
		_ = k.audit.Write(applog.AuditEntry{
			TS:     time.Now(),
			Action: "kill_switch_activate",
			Actor:  actor,
			Target: "agent_runtime",
			Result: "ok",
		})
	}
	return common.WriteJSONAtomic(k.path, state)
}

func (k *KillSwitch) Deactivate(actor string) error {
	k.mu.Lock()
	k.state.Active = false
	k.state.DeactivatedBy = actor
	k.state.DeactivatedAt = time.Now().UnixMilli()
	state := k.state
	k.mu.Unlock()

	if k.audit != nil {
		_ = k.audit.Write(applog.AuditEntry{
			TS:     time.Now(),
			Action: "kill_switch_deactivate",
			Actor:  actor,
			Target: "agent_runtime",
			Result: "ok",
		})
	}
	return common.WriteJSONAtomic(k.path, state)
}
