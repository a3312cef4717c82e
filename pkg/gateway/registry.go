// Package gateway exposes a read-only HTTP introspection surface over
// this module's runtime and reassembly state, mirroring the teacher's
// pkg/gateway/http package (itself a CiA 309-5 surface over node SDO/OD
// access): "expose internal protocol state over HTTP" without owning any
// protocol state machine itself. Callers feed it observations; it never
// originates SD traffic or reassembly decisions.
package gateway

import (
	"sync"
	"time"
)

// ServiceInfo is the last-seen state of one discovered service instance,
// as observed from inbound Service Discovery traffic.
type ServiceInfo struct {
	Service      uint16
	Instance     uint16
	MajorVersion uint8
	MinorVersion uint32
	TTL          uint32
	LastSeen     time.Time
}

// ReassemblyInfo summarizes one package's TP reassembler counters, for
// the /reassembly endpoint.
type ReassemblyInfo struct {
	ActiveSessions int
	Completed      uint64
	Dropped        uint64
	Evicted        uint64
}

// Registry is the mutex-guarded state the gateway reads from, fed by
// whatever wires the SD message model and TP reassembler into a running
// endpoint (cmd/someipd feeds it only the application list). It owns no
// network I/O.
type Registry struct {
	mu         sync.Mutex
	services   map[uint32]ServiceInfo // key: Service<<16 | Instance
	reassembly ReassemblyInfo
	appNames   []string
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[uint32]ServiceInfo)}
}

func serviceKey(service, instance uint16) uint32 {
	return uint32(service)<<16 | uint32(instance)
}

// ObserveService records or refreshes a discovered service instance.
func (r *Registry) ObserveService(info ServiceInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[serviceKey(info.Service, info.Instance)] = info
}

// ForgetService removes a service instance, e.g. on a StopOffer entry.
func (r *Registry) ForgetService(service, instance uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services, serviceKey(service, instance))
}

// Services returns a snapshot of all currently known service instances.
func (r *Registry) Services() []ServiceInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ServiceInfo, 0, len(r.services))
	for _, info := range r.services {
		out = append(out, info)
	}
	return out
}

// SetReassemblyInfo replaces the reassembly counters snapshot.
func (r *Registry) SetReassemblyInfo(info ReassemblyInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reassembly = info
}

// ReassemblyInfo returns the last snapshot set by SetReassemblyInfo.
func (r *Registry) ReassemblyInfo() ReassemblyInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reassembly
}

// SetApplications replaces the known application-name list, typically
// sourced from pkg/runtime's Applications method.
func (r *Registry) SetApplications(names []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appNames = append([]string(nil), names...)
}

// Applications returns the last snapshot set by SetApplications.
func (r *Registry) Applications() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.appNames...)
}
