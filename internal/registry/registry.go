// Package registry reconciles the on-disk agent manifest directory
// (data/agents/manifests/{trader_id}.yaml) against the running set of
// registered traders, polling for changes so agents can be added or
// removed without a restart.
package registry

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/onlytrade/room-server/internal/apperr"
	"github.com/onlytrade/room-server/internal/applog"
	"github.com/onlytrade/room-server/internal/common"
	"github.com/onlytrade/room-server/internal/models"
)

// RegistryState is the persisted document.
type RegistryState struct {
	RegisteredAgentIDs []string                       `json:"registered_agent_ids"`
	StatusByAgentID    map[string]models.TraderStatus `json:"status_by_agent_id"`
}

// Hooks let the registry drive the agent runtime without importing it
// directly (avoids a package cycle; agentruntime knows nothing about
// manifests).
type Hooks struct {
	OnRegister   func(trader models.Trader)
	OnUnregister func(traderID string)
	OnStart      func(traderID string)
	OnStop       func(traderID string)
}

// Registry owns the manifest directory scan, the available/registered
// trader sets, and their persisted status.
type Registry struct {
	mu sync.Mutex

	manifestDir string
	statePath   string
	log         *applog.Logger
	hooks       Hooks

	available  map[string]models.Trader
	state      RegistryState

	stop chan struct{}
}

func New(manifestDir, statePath string, log *applog.Logger, hooks Hooks) *Registry {
	r := &Registry{
		manifestDir: manifestDir,
		statePath:   statePath,
		log:         log,
		hooks:       hooks,
		available:   make(map[string]models.Trader),
		state:       RegistryState{StatusByAgentID: make(map[string]models.TraderStatus)},
	}
	_ = common.ReadJSON(statePath, &r.state)
	if r.state.StatusByAgentID == nil {
		r.state.StatusByAgentID = make(map[string]models.TraderStatus)
	}
	return r
}

// Start performs an initial scan then polls every pollInterval
// (AGENT_MANIFEST_POLL_MS, default 30000).
func (r *Registry) Start(pollInterval time.Duration) {
	r.reconcile()

	r.mu.Lock()
	if r.stop != nil {
		r.mu.Unlock()
		return
	}
	r.stop = make(chan struct{})
	stop := r.stop
	r.mu.Unlock()

	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				r.reconcile()
			}
		}
	}()
}

func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
}

func (r *Registry) reconcile() {
	entries, err := os.ReadDir(r.manifestDir)
	if err != nil {
		if r.log != nil && !os.IsNotExist(err) {
			r.log.Warn("manifest scan failed", "error", err.Error())
		}
		return
	}

	found := make(map[string]models.Trader)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(r.manifestDir, e.Name())
		b, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var trader models.Trader
		if err := yaml.Unmarshal(b, &trader); err != nil {
			if r.log != nil {
				r.log.Warn("manifest parse failed", "file", e.Name(), "error", err.Error())
			}
			continue
		}
		if trader.TraderID == "" {
			trader.TraderID = strings.TrimSuffix(e.Name(), ".yaml")
		}
		found[trader.TraderID] = trader
	}

	r.mu.Lock()
	for id, trader := range found {
		if _, existed := r.available[id]; !existed && r.hooks.OnRegister != nil {
			r.hooks.OnRegister(trader)
		}
		r.available[id] = trader
	}
	for id := range r.available {
		if _, stillPresent := found[id]; !stillPresent {
			delete(r.available, id)
			if r.hooks.OnUnregister != nil {
				r.hooks.OnUnregister(id)
			}
		}
	}
	r.mu.Unlock()
}

func (r *Registry) Available() []models.Trader {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Trader, 0, len(r.available))
	for _, t := range r.available {
		out = append(out, t)
	}
	return out
}

func (r *Registry) Registered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.state.RegisteredAgentIDs))
	copy(out, r.state.RegisteredAgentIDs)
	return out
}

func (r *Registry) Register(traderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.available[traderID]; !ok {
		return apperr.NotFound(apperr.CodeAgentManifestNotFound)
	}
	for _, id := range r.state.RegisteredAgentIDs {
		if id == traderID {
			return r.persistLocked()
		}
	}
	r.state.RegisteredAgentIDs = append(r.state.RegisteredAgentIDs, traderID)
	r.state.StatusByAgentID[traderID] = models.TraderStopped
	return r.persistLocked()
}

func (r *Registry) Unregister(traderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.state.RegisteredAgentIDs[:0]
	for _, id := range r.state.RegisteredAgentIDs {
		if id != traderID {
			out = append(out, id)
		}
	}
	r.state.RegisteredAgentIDs = out
	delete(r.state.StatusByAgentID, traderID)
	if r.hooks.OnUnregister != nil {
		r.hooks.OnUnregister(traderID)
	}
	return r.persistLocked()
}

func (r *Registry) setStatus(traderID string, status models.TraderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.state.StatusByAgentID[traderID]; !ok {
		return apperr.NotFound(apperr.CodeAgentNotRegistered)
	}
	r.state.StatusByAgentID[traderID] = status
	return r.persistLocked()
}

func (r *Registry) StartTrader(traderID string) error {
	if err := r.setStatus(traderID, models.TraderRunning); err != nil {
		return err
	}
	if r.hooks.OnStart != nil {
		r.hooks.OnStart(traderID)
	}
	return nil
}

func (r *Registry) StopTrader(traderID string) error {
	if err := r.setStatus(traderID, models.TraderStopped); err != nil {
		return err
	}
	if r.hooks.OnStop != nil {
		r.hooks.OnStop(traderID)
	}
	return nil
}

func (r *Registry) Status(traderID string) (models.TraderStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.state.StatusByAgentID[traderID]
	return s, ok
}

func (r *Registry) persistLocked() error {
	return common.WriteJSONAtomic(r.statePath, r.state)
}
