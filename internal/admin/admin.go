// Copyright 2025 James Ross
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/flyingrobots/go-redis-work-queue/internal/orchestrator"
	"github.com/flyingrobots/go-redis-work-queue/internal/queuestore"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server is the admin HTTP surface from spec.md §6: queue listing,
// peek and purge plus operator-triggered drive operations, grounded on
// the teacher's admin-api.Server (Start/Shutdown/http.Server shape)
// with routing on gorilla/mux in place of the teacher's stdlib mux,
// since the {name} path variables here are exactly what mux was
// built for.
type Server struct {
	addr   string
	store  *queuestore.Store
	orch   *orchestrator.Orchestrator
	log    *zap.Logger
	server *http.Server
}

func New(addr string, store *queuestore.Store, orch *orchestrator.Orchestrator, log *zap.Logger) *Server {
	return &Server{addr: addr, store: store, orch: orch, log: log}
}

// Start blocks serving the admin API until the process exits or
// Shutdown is called from another goroutine.
func (s *Server) Start() error {
	s.server = &http.Server{Addr: s.addr, Handler: s.routes()}
	s.log.Info("starting admin server", zap.String("addr", s.addr))
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/queues", s.handleListQueues).Methods(http.MethodGet)
	r.HandleFunc("/queues/{name}/peek", s.handlePeek).Methods(http.MethodGet)
	r.HandleFunc("/queues/{name}/purge", s.handlePurge).Methods(http.MethodPost)
	r.HandleFunc("/drive/pending", s.handleDrivePending).Methods(http.MethodPost)
	r.HandleFunc("/drive/retrying", s.handleDriveRetrying).Methods(http.MethodPost)
	r.HandleFunc("/drive/failing", s.handleDriveFailing).Methods(http.MethodPost)
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// listQueuesResult is the response body for GET /queues: the three
// fixed queues plus every live retr_*/fail_* queue, each with its
// current length (spec.md §3's list_queues(pattern, reverse)).
type listQueuesResult struct {
	Queues map[string]int64 `json:"queues"`
}

func (s *Server) handleListQueues(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	names := []string{queuestore.Pending, queuestore.PendingWork, queuestore.FailWork}

	retryNames, err := s.store.List(ctx, queuestore.RetryPattern)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	failNames, err := s.store.List(ctx, queuestore.FailPattern)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	names = append(names, retryNames...)
	names = append(names, failNames...)

	out := listQueuesResult{Queues: map[string]int64{}}
	for _, q := range names {
		n, err := s.store.Len(ctx, q)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		out.Queues[q] = n
	}
	writeJSON(w, http.StatusOK, out)
}

type peekResult struct {
	Queue string   `json:"queue"`
	Items []string `json:"items"`
}

func (s *Server) handlePeek(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	n := int64(10)
	if raw := r.URL.Query().Get("n"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
			n = parsed
		}
	}
	items, err := s.store.PeekQueue(r.Context(), name, 0, n-1)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, peekResult{Queue: name, Items: items})
}

type purgeResult struct {
	Queue   string `json:"queue"`
	Existed bool   `json:"existed"`
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	existed, err := s.store.ClearQueue(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.log.Warn("purged queue via admin API", zap.String("queue", name))
	writeJSON(w, http.StatusOK, purgeResult{Queue: name, Existed: existed})
}

func (s *Server) handleDrivePending(w http.ResponseWriter, r *http.Request) {
	s.drive(w, r, s.orch.UploadPending)
}

func (s *Server) handleDriveRetrying(w http.ResponseWriter, r *http.Request) {
	s.drive(w, r, s.orch.UploadRetrying)
}

func (s *Server) handleDriveFailing(w http.ResponseWriter, r *http.Request) {
	s.drive(w, r, s.orch.UploadFailing)
}

func (s *Server) drive(w http.ResponseWriter, r *http.Request, op func(context.Context) (orchestrator.Summary, error)) {
	summary, err := op(r.Context())
	if err != nil {
		s.log.Error("drive operation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
