// Package server provides the ops HTTP server of the agent: health and
// readiness probes, Prometheus metrics, and a JSON view of the MIB tables.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/HerbHall/mibagent/internal/version"
	"github.com/HerbHall/mibagent/pkg/oid"
	"github.com/HerbHall/mibagent/pkg/plugin"
)

// Walk limits for GET /api/v1/walk.
const (
	DefaultWalkLimit = 1000
	MaxWalkLimit     = 10000
)

// Tables provides the server with table status and query dispatch.
// Defined here (consumer-side) rather than importing the concrete registry.
type Tables interface {
	Status() []plugin.TableStatus
	Get(ctx context.Context, name oid.OID) gosnmp.SnmpPDU
	GetNext(ctx context.Context, name oid.OID) gosnmp.SnmpPDU
	Walk(ctx context.Context, root oid.OID, limit int, fn func(gosnmp.SnmpPDU) bool)
}

// ReadinessChecker verifies that the server is ready to serve traffic.
// Returns nil if ready, an error describing why not otherwise.
type ReadinessChecker func(ctx context.Context) error

// Options configures a Server.
type Options struct {
	Logger    *zap.Logger
	Ready     ReadinessChecker
	Tracker   *Tracker
	RateLimit float64 // requests per second per client; 0 disables limiting
}

// Server is the agent's ops HTTP server.
type Server struct {
	httpServer *http.Server
	tables     Tables
	tracker    *Tracker
	logger     *zap.Logger
	mux        *http.ServeMux
	ready      ReadinessChecker
	nowFunc    func() time.Time
}

// New creates a new Server with middleware and routes.
func New(addr string, tables Tables, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	s := &Server{
		tables:  tables,
		tracker: opts.Tracker,
		logger:  logger,
		mux:     mux,
		ready:   opts.Ready,
		nowFunc: time.Now,
	}
	s.registerRoutes()

	probes := []string{"/healthz", "/readyz", "/metrics"}

	// Middleware chain: outermost listed first.
	middlewares := []Middleware{
		RecoveryMiddleware(logger),
		RequestIDMiddleware,
		TracingMiddleware,
		LoggingMiddleware(logger, probes),
		NoStoreMiddleware,
		VersionHeaderMiddleware,
	}
	if opts.RateLimit > 0 {
		middlewares = append(middlewares, RateLimitMiddleware(opts.RateLimit, int(2*opts.RateLimit), probes))
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      Chain(mux, middlewares...),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the server's root handler with middleware applied.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) registerRoutes() {
	// Unversioned operational endpoints.
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	// Versioned API endpoints.
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/tables", s.handleTables)
	s.mux.HandleFunc("GET /api/v1/tables/{name}", s.handleTable)
	s.mux.HandleFunc("GET /api/v1/get", s.handleGet)
	s.mux.HandleFunc("GET /api/v1/getnext", s.handleGetNext)
	s.mux.HandleFunc("GET /api/v1/walk", s.handleWalk)
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealthz is a liveness probe -- returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleReadyz returns 200 once every table has published a snapshot.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version map[string]string `json:"version"`
}

// handleHealth reports the agent's version.
//
//	@Summary		Agent health
//	@Description	Returns the service name and build version.
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Router			/health [get]
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: "mibagent",
		Version: version.Map(),
	})
}

// TableResponse describes one table for GET /api/v1/tables.
type TableResponse struct {
	plugin.TableStatus
	AgeSeconds float64     `json:"age_seconds,omitempty"`
	Health     TableHealth `json:"health"`
}

// handleTables lists every registered table.
//
//	@Summary		List tables
//	@Description	Returns the refresh status and health of every registered table.
//	@Tags			tables
//	@Produce		json
//	@Success		200	{array}	TableResponse
//	@Router			/tables [get]
func (s *Server) handleTables(w http.ResponseWriter, _ *http.Request) {
	now := s.nowFunc()
	statuses := s.tables.Status()
	out := make([]TableResponse, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, s.tableResponse(st, now))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleTable returns one table by name.
//
//	@Summary		Get table
//	@Tags			tables
//	@Produce		json
//	@Param			name	path		string	true	"Table name"
//	@Success		200		{object}	TableResponse
//	@Failure		404		{object}	Problem
//	@Router			/tables/{name} [get]
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	for _, st := range s.tables.Status() {
		if st.Name == name {
			writeJSON(w, http.StatusOK, s.tableResponse(st, s.nowFunc()))
			return
		}
	}
	NoSuchTable(w, name, r.URL.Path)
}

func (s *Server) tableResponse(st plugin.TableStatus, now time.Time) TableResponse {
	resp := TableResponse{TableStatus: st}
	if !st.Taken.IsZero() {
		resp.AgeSeconds = now.Sub(st.Taken).Seconds()
	}
	if s.tracker != nil {
		resp.Health = s.tracker.Health(st.Name)
	}
	return resp
}

// VarBind is the JSON form of one SNMP variable binding.
type VarBind struct {
	OID   string `json:"oid"`
	Type  string `json:"type"`
	Value any    `json:"value,omitempty"`
}

func varBind(pdu gosnmp.SnmpPDU) VarBind {
	return VarBind{OID: pdu.Name, Type: pdu.Type.String(), Value: pdu.Value}
}

// handleGet answers an SNMP GET for one instance.
//
//	@Summary		SNMP GET
//	@Description	Returns the variable binding for an exact OID. Unknown OIDs yield noSuchObject or noSuchInstance.
//	@Tags			snmp
//	@Produce		json
//	@Param			oid	query		string	true	"Dotted OID"
//	@Success		200	{object}	VarBind
//	@Failure		400	{object}	Problem
//	@Router			/get [get]
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	name, ok := parseOID(w, r, true)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, varBind(s.tables.Get(r.Context(), name)))
}

// handleGetNext answers an SNMP GETNEXT.
//
//	@Summary		SNMP GETNEXT
//	@Description	Returns the first binding after oid across all tables, or endOfMibView.
//	@Tags			snmp
//	@Produce		json
//	@Param			oid	query		string	false	"Dotted OID (default: start of the MIB view)"
//	@Success		200	{object}	VarBind
//	@Failure		400	{object}	Problem
//	@Router			/getnext [get]
func (s *Server) handleGetNext(w http.ResponseWriter, r *http.Request) {
	name, ok := parseOID(w, r, false)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, varBind(s.tables.GetNext(r.Context(), name)))
}

// handleWalk returns the bindings under oid in lexicographic order.
//
//	@Summary		SNMP walk
//	@Tags			snmp
//	@Produce		json
//	@Param			oid	query		string	false	"Dotted root OID"
//	@Param			max	query		int		false	"Maximum bindings returned"
//	@Success		200	{array}		VarBind
//	@Failure		400	{object}	Problem
//	@Router			/walk [get]
func (s *Server) handleWalk(w http.ResponseWriter, r *http.Request) {
	root, ok := parseOID(w, r, false)
	if !ok {
		return
	}
	limit := DefaultWalkLimit
	if raw := r.URL.Query().Get("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			BadRequest(w, fmt.Sprintf("invalid max %q", raw), r.URL.Path)
			return
		}
		limit = min(n, MaxWalkLimit)
	}

	out := make([]VarBind, 0)
	s.tables.Walk(r.Context(), root, limit, func(pdu gosnmp.SnmpPDU) bool {
		out = append(out, varBind(pdu))
		return true
	})
	writeJSON(w, http.StatusOK, out)
}

// parseOID reads the oid query parameter. An absent parameter is an error
// when required, and the empty OID otherwise.
func parseOID(w http.ResponseWriter, r *http.Request, required bool) (oid.OID, bool) {
	raw := r.URL.Query().Get("oid")
	if raw == "" && required {
		BadRequest(w, "missing oid parameter", r.URL.Path)
		return nil, false
	}
	name, err := oid.Parse(raw)
	if err != nil {
		BadRequest(w, err.Error(), r.URL.Path)
		return nil, false
	}
	return name, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
