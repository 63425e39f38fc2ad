package controlplane

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/edgecore/core-runtime/internal/orchestrator"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// DiagnosticsServer exposes the orchestrator's current state over a
// local-only HTTP endpoint, for operators and support tooling to check
// what a device is running without shelling in.
//
// Grounded on admin-api/server.go's Server: a *http.Server wrapping a
// router, started/shut down explicitly by the caller.
type DiagnosticsServer struct {
	orch   *orchestrator.Orchestrator
	logger *zap.Logger
	server *http.Server
}

// NewDiagnosticsServer builds a diagnostics server bound to addr.
func NewDiagnosticsServer(addr string, orch *orchestrator.Orchestrator, logger *zap.Logger) *DiagnosticsServer {
	s := &DiagnosticsServer{orch: orch, logger: logger}
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving in the background. Listen errors other than
// server-closed are logged, not returned, matching a diagnostics
// endpoint's best-effort nature.
func (s *DiagnosticsServer) Start() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Error("diagnostics server stopped", zap.Error(err))
			}
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *DiagnosticsServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *DiagnosticsServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type statusResponse struct {
	Online bool                `json:"online"`
	Active *generationStatus   `json:"active,omitempty"`
	Shadow *generationStatus   `json:"shadow,omitempty"`
}

type generationStatus struct {
	DeploymentID int64  `json:"deployment_id"`
	ETag         string `json:"etag"`
	Ready        bool   `json:"ready"`
	Current      bool   `json:"current"`
}

func (s *DiagnosticsServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Online: s.orch.IsOnline()}
	if active := s.orch.Active(); active != nil {
		resp.Active = &generationStatus{
			DeploymentID: active.DeploymentID(),
			ETag:         active.DeploymentETag(),
			Ready:        active.IsReady(),
			Current:      active.IsCurrent(),
		}
	}
	if shadow := s.orch.Shadow(); shadow != nil {
		resp.Shadow = &generationStatus{
			DeploymentID: shadow.DeploymentID(),
			ETag:         shadow.DeploymentETag(),
			Ready:        shadow.IsReady(),
			Current:      shadow.IsCurrent(),
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
