package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const apiVersion = "1.0"

// Server is the gateway's HTTP surface, routed with chi the way the
// teacher's pkg/gateway/http.GatewayServer routes CiA 309-5 requests,
// but over a chi.Router instead of a bare http.ServeMux since this
// module carries chi as its HTTP routing dependency.
type Server struct {
	registry *Registry
	logger   *slog.Logger
	router   chi.Router
}

// NewServer builds a Server reading from registry. If logger is nil,
// slog.Default() is used.
func NewServer(registry *Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("service", "[gateway]")

	s := &Server{registry: registry, logger: logger}
	r := chi.NewRouter()
	r.Get("/info/version", s.handleVersion)
	r.Get("/applications", s.handleApplications)
	r.Get("/services", s.handleServices)
	r.Get("/services/{service}/{instance}", s.handleService)
	r.Get("/reassembly", s.handleReassembly)
	s.router = r

	s.logger.Info("initialized gateway introspection routes")
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe blocks serving the gateway on addr.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "err", err)
	}
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"apiVersion": apiVersion})
}

func (s *Server) handleApplications(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.registry.Applications())
}

func (s *Server) handleServices(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.registry.Services())
}

func (s *Server) handleService(w http.ResponseWriter, r *http.Request) {
	service, err := strconv.ParseUint(chi.URLParam(r, "service"), 0, 16)
	if err != nil {
		http.Error(w, "invalid service id", http.StatusBadRequest)
		return
	}
	instance, err := strconv.ParseUint(chi.URLParam(r, "instance"), 0, 16)
	if err != nil {
		http.Error(w, "invalid instance id", http.StatusBadRequest)
		return
	}
	for _, info := range s.registry.Services() {
		if info.Service == uint16(service) && info.Instance == uint16(instance) {
			s.writeJSON(w, http.StatusOK, info)
			return
		}
	}
	http.Error(w, "service instance not found", http.StatusNotFound)
}

func (s *Server) handleReassembly(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.registry.ReassemblyInfo())
}
