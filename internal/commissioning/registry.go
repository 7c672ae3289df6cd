// Package commissioning ingests the output of commissioning scripts run on a
// node and reconciles it into the inventory.
package commissioning

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/jbweber/homelab/rack/internal/domain"
	"github.com/jbweber/homelab/rack/internal/repository"
)

// Well-known commissioning script names.
const (
	ScriptLSHW              = "00-lshw"
	ScriptCPUInfo           = "00-cpuinfo"
	ScriptVirtuality        = "00-virtuality"
	ScriptLLDP              = "99-capture-lldp"
	ScriptNetworkInterfaces = "99-network-interfaces"
	ScriptBlockDevices      = "99-block-devices"
)

// DefaultMinBlockDeviceSize is the smallest block device worth recording.
const DefaultMinBlockDeviceSize int64 = 4 * 1024 * 1024

// Env is what a hook may touch while it runs. Repos is bound to the
// ingestion transaction.
type Env struct {
	Repos              *repository.Repositories
	Logger             *slog.Logger
	MinBlockDeviceSize int64
}

// Hook post-processes one script result for a node. Hooks swallow bad probe
// output and return errors only when the store fails.
type Hook func(ctx context.Context, env *Env, node *domain.Node, output []byte, exitStatus int) error

// Registry maps script names to hooks.
type Registry struct {
	mu    sync.RWMutex
	hooks map[string]Hook
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{hooks: make(map[string]Hook)}
}

// DefaultRegistry returns a registry holding the built-in hooks.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.mustRegister(ScriptLSHW, UpdateHardwareDetails)
	r.mustRegister(ScriptCPUInfo, ParseCPUInfo)
	r.mustRegister(ScriptVirtuality, SetVirtualTag)
	r.mustRegister(ScriptLLDP, UpdateRouters)
	r.mustRegister(ScriptNetworkInterfaces, UpdateNetworkInterfaces)
	r.mustRegister(ScriptBlockDevices, UpdateBlockDevices)
	return r
}

// Register adds a hook for name. Registering a name twice is an error.
func (r *Registry) Register(name string, hook Hook) error {
	if name == "" || hook == nil {
		return fmt.Errorf("hook registration needs a script name and a hook")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.hooks[name]; ok {
		return fmt.Errorf("hook for script %q already registered", name)
	}
	r.hooks[name] = hook
	return nil
}

func (r *Registry) mustRegister(name string, hook Hook) {
	if err := r.Register(name, hook); err != nil {
		panic(err)
	}
}

// Lookup returns the hook registered for name.
func (r *Registry) Lookup(name string) (Hook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hook, ok := r.hooks[name]
	return hook, ok
}

// Names lists the registered script names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.hooks))
	for name := range r.hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
