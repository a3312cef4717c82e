// Package runtime implements the process-wide SOME/IP runtime factory
// (C4): the one place that stamps protocol/interface versions and
// default return codes onto newly created messages, and tracks
// registered application names. It mirrors the teacher's pattern of a
// small mutex-guarded registry (see bus_manager.go's listeners map)
// rather than the original's shared_ptr/weak_ptr application graph —
// Go's garbage collector already owns object lifetime, so the registry
// only needs to hand out unique names and let the caller release them
// explicitly.
package runtime

import (
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/samsamfire/gosomeip/pkg/wire"
	log "github.com/sirupsen/logrus"
)

// ProtocolVersion is the only SOME/IP protocol version this runtime
// stamps onto messages it creates.
const ProtocolVersion uint8 = 1

// Runtime is the process-wide message and application factory.
type Runtime struct {
	mu                  sync.Mutex
	defaultMajorVersion uint8
	applications        map[string]string // name -> correlation id
}

var (
	singleton     *Runtime
	singletonOnce sync.Once
)

// Get returns the process-wide Runtime, constructing it on first use
// with the given default interface major version. Subsequent calls
// ignore defaultMajorVersion and return the existing instance.
func Get(defaultMajorVersion uint8) *Runtime {
	singletonOnce.Do(func() {
		singleton = New(defaultMajorVersion)
	})
	return singleton
}

// New creates a standalone Runtime, for callers (tests, multi-runtime
// embedders) that do not want the process-wide singleton.
func New(defaultMajorVersion uint8) *Runtime {
	return &Runtime{
		defaultMajorVersion: defaultMajorVersion,
		applications:        make(map[string]string),
	}
}

func (r *Runtime) stampedHeader(mt wire.MessageType) wire.Header {
	return wire.Header{
		ProtocolVer:  ProtocolVersion,
		InterfaceVer: r.defaultMajorVersion,
		MessageType:  mt,
		ReturnCode:   wire.EOK,
	}
}

// NewRequest creates a Message with MessageType Request (or
// RequestNoReturn when noReturn is set), stamped with this runtime's
// protocol/interface version defaults.
func (r *Runtime) NewRequest(service, method, client, session, instance uint16, reliable, noReturn bool) *wire.Message {
	mt := wire.TypeRequest
	if noReturn {
		mt = wire.TypeRequestNoReturn
	}
	h := r.stampedHeader(mt)
	h.Service, h.Method, h.Client, h.Session = service, method, client, session
	return &wire.Message{Header: h, Instance: instance, IsReliable: reliable, IsInitial: true}
}

// NewNotification creates a Message with MessageType Notification.
// Notifications carry client id 0 (they are multicast/broadcast, not
// addressed to a specific requester) and a caller-assigned session.
func (r *Runtime) NewNotification(service, method, session, instance uint16, reliable bool) *wire.Message {
	h := r.stampedHeader(wire.TypeNotification)
	h.Service, h.Method, h.Session = service, method, session
	return &wire.Message{Header: h, Instance: instance, IsReliable: reliable, IsInitial: true}
}

// NewPayload wraps raw bytes as a Payload. It exists purely for call-site
// symmetry with NewRequest/NewResponse; Payload is a plain []byte alias.
func (r *Runtime) NewPayload(data []byte) wire.Payload {
	return wire.Payload(data)
}

// NewResponse clones service, instance, method, client, session,
// interface version and reliability from request, sets MessageType to
// Response and ReturnCode to E_OK. If request's return code falls in the
// AUTOSAR-reserved range, the violation is logged but the response is
// still produced (per spec.md §7, a PolicyViolation is reported to the
// caller, not used to silently drop the message).
func (r *Runtime) NewResponse(request *wire.Message) *wire.Message {
	if request.Header.ReturnCode.Reserved() {
		log.WithFields(log.Fields{
			"service": request.Header.Service, "method": request.Header.Method,
			"client": request.Header.Client, "session": request.Header.Session,
			"returnCode": request.Header.ReturnCode,
		}).Warn("runtime: request carries a reserved return code")
	}
	return &wire.Message{
		Header: wire.Header{
			Service:      request.Header.Service,
			Method:       request.Header.Method,
			Client:       request.Header.Client,
			Session:      request.Header.Session,
			ProtocolVer:  ProtocolVersion,
			InterfaceVer: request.Header.InterfaceVer,
			MessageType:  wire.TypeResponse,
			ReturnCode:   wire.EOK,
		},
		Instance:   request.Instance,
		IsReliable: request.IsReliable,
		IsInitial:  true,
	}
}

// RegisterApplication reserves a unique name in the application
// registry, appending an incrementing numeric suffix on collision
// (e.g. "service" -> "service-1" -> "service-2"), and returns that name
// alongside a correlation id applications can surface on their watchdog
// heartbeat (watchdog_timeout_ms).
func (r *Runtime) RegisterApplication(name string) (uniqueName, correlationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidate := name
	for i := 1; ; i++ {
		if _, taken := r.applications[candidate]; !taken {
			break
		}
		candidate = name + "-" + strconv.Itoa(i)
	}
	id := uuid.NewString()
	r.applications[candidate] = id
	return candidate, id
}

// ReleaseApplication removes name from the registry, freeing it for
// reuse without a numeric suffix.
func (r *Runtime) ReleaseApplication(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.applications, name)
}

// Applications returns the currently registered application names.
func (r *Runtime) Applications() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.applications))
	for name := range r.applications {
		names = append(names, name)
	}
	return names
}
