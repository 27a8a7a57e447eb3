// Package registry holds the devices found by the most recent discovery
// pass. It is process-lifetime, in-memory state: discovery replaces the
// contents wholesale, everything else only reads.
package registry

import (
	"strings"
	"sync"
	"time"

	"github.com/monpham/mcp-homecast/internal/domain"
)

type Registry struct {
	mu            sync.RWMutex
	devices       []domain.Device
	lastDiscovery time.Time
}

func New() *Registry {
	return &Registry{}
}

// Replace swaps the registry contents for the given discovery result. There
// is deliberately no incremental merge: a new scan supersedes everything.
func (r *Registry) Replace(devices []domain.Device, at time.Time) {
	copied := make([]domain.Device, len(devices))
	copy(copied, devices)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = copied
	r.lastDiscovery = at
}

// Snapshot returns a copy of the current devices in discovery order, plus
// the last discovery time (zero before the first pass).
func (r *Registry) Snapshot() ([]domain.Device, time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	copied := make([]domain.Device, len(r.devices))
	copy(copied, r.devices)
	return copied, r.lastDiscovery
}

// Find resolves a device name case-insensitively against both the internal
// name and the friendly name. First match in discovery order wins.
func (r *Registry) Find(name string) (domain.Device, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Device{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, dev := range r.devices {
		if strings.EqualFold(dev.Name, name) || strings.EqualFold(dev.FriendlyName, name) {
			return dev, true
		}
	}
	return domain.Device{}, false
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}
