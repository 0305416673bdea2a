package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yairfalse/kartta/awsauth"
	"github.com/yairfalse/kartta/config"
	"github.com/yairfalse/kartta/inventory"
	"github.com/yairfalse/kartta/storage"
	"github.com/yairfalse/kartta/telemetry"
	"github.com/yairfalse/kartta/types"
)

// maxSearchLength bounds the free-text search term.
const maxSearchLength = 500

// Error codes returned in API error bodies.
const (
	codeInvalidService  = "INVALID_SERVICE"
	codeValidation      = "VALIDATION_ERROR"
	codeAccessDenied    = "ACCESS_DENIED"
	codeNotFound        = "NOT_FOUND"
	codeCollectionError = "COLLECTION_ERROR"
)

// Server is the HTTP surface over the orchestrator and snapshot store.
type Server struct {
	cfg          *config.Config
	orchestrator *inventory.Orchestrator
	refresher    *inventory.Refresher
	store        storage.Store
	logger       *telemetry.Logger
	router       *mux.Router
}

// NewServer builds the server and its routes.
func NewServer(cfg *config.Config, orchestrator *inventory.Orchestrator, refresher *inventory.Refresher, store storage.Store) *Server {
	s := &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		refresher:    refresher,
		store:        store,
		logger:       telemetry.NewLogger("api"),
		router:       mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/accounts", s.handleAccounts).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/inventory", s.handleInventory).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/summary", s.handleSummary).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/details", s.handleDetails).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/export", s.handleExport).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost, http.MethodOptions)
}

// Handler returns the fully-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return withCORS(s.router)
}

// withCORS sets the standard cross-origin header set on every response and
// short-circuits preflight requests.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+GroupsHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]apiError{"error": {Code: code, Message: message}})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAccounts lists configured account targets and every partition that
// has ever been collected.
func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	type accountView struct {
		AccountID   string `json:"accountId"`
		AssumesRole bool   `json:"assumesRole"`
	}
	accounts := make([]accountView, 0, len(s.cfg.Accounts))
	for _, target := range s.cfg.Accounts {
		accounts = append(accounts, accountView{AccountID: target.AccountID, AssumesRole: target.AssumesRole()})
	}

	metas, err := s.store.ListPartitions(r.Context())
	if err != nil {
		s.logger.WithContext(r.Context()).Error().Err(err).Msg("partition listing failed")
		metas = nil
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"accounts":   accounts,
		"partitions": metas,
	})
}

// collectionRequest is the validated, authorized shape of one inventory query.
type collectionRequest struct {
	service  string
	regions  []string
	accounts []types.AccountTarget
	search   string
}

// parseCollectionRequest validates query parameters and the caller's access.
// It writes the error response itself and reports ok=false on failure.
func (s *Server) parseCollectionRequest(w http.ResponseWriter, r *http.Request) (collectionRequest, bool) {
	req := collectionRequest{service: strings.ToLower(r.URL.Query().Get("service"))}

	if req.service == "" {
		s.writeError(w, http.StatusBadRequest, codeValidation, "service parameter is required")
		return req, false
	}

	if !CanAccessService(ParseGroups(r), req.service) {
		s.writeError(w, http.StatusForbidden, codeAccessDenied,
			fmt.Sprintf("your groups do not grant access to %s", req.service))
		return req, false
	}

	regions, err := s.parseRegions(r.URL.Query().Get("regions"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return req, false
	}
	req.regions = regions

	req.accounts = s.parseAccounts(r.URL.Query().Get("accounts"))

	req.search = r.URL.Query().Get("search")
	if len(req.search) > maxSearchLength {
		s.writeError(w, http.StatusBadRequest, codeValidation,
			fmt.Sprintf("search term exceeds %d characters", maxSearchLength))
		return req, false
	}

	return req, true
}

// parseRegions resolves the regions parameter: empty or "all" selects the
// configured sweep, otherwise a comma list validated against it.
func (s *Server) parseRegions(raw string) ([]string, error) {
	if raw == "" || strings.EqualFold(raw, "all") {
		return s.cfg.Regions, nil
	}

	var regions []string
	for _, region := range strings.Split(raw, ",") {
		region = strings.TrimSpace(region)
		if region == "" {
			continue
		}
		if !s.cfg.KnownRegion(region) {
			return nil, fmt.Errorf("unknown region %q", region)
		}
		regions = append(regions, region)
	}
	if len(regions) == 0 {
		return s.cfg.Regions, nil
	}
	return regions, nil
}

// parseAccounts resolves the accounts parameter into account targets. Empty
// input means the caller's own account.
func (s *Server) parseAccounts(raw string) []types.AccountTarget {
	var ids []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return awsauth.AccountTargets(ids, s.cfg.Accounts, s.cfg.RoleName)
}

// collect runs the orchestrator under the request deadline and translates
// its typed failures to HTTP errors. It writes the error response itself and
// returns nil on failure.
func (s *Server) collect(w http.ResponseWriter, r *http.Request, req collectionRequest) *inventory.CollectionResult {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Server.RequestTimeout)
	defer cancel()

	result, err := s.orchestrator.CollectInventory(ctx, req.service, req.regions, req.accounts, req.search)
	if err != nil {
		var unsupported *inventory.UnsupportedServiceError
		if errors.As(err, &unsupported) {
			s.writeError(w, http.StatusBadRequest, codeInvalidService, unsupported.Error())
			return nil
		}
		s.writeError(w, http.StatusInternalServerError, codeCollectionError, err.Error())
		return nil
	}
	return result
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseCollectionRequest(w, r)
	if !ok {
		return
	}

	page, size, err := inventory.ParsePage(r.URL.Query().Get("page"), r.URL.Query().Get("size"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}

	result := s.collect(w, r, req)
	if result == nil {
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"service": req.service,
		"page":    page,
		"size":    size,
		"total":   len(result.Records),
		"records": inventory.Paginate(result.Records, page, size),
		"errors":  result.Errors,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseCollectionRequest(w, r)
	if !ok {
		return
	}

	result := s.collect(w, r, req)
	if result == nil {
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"service": req.service,
		"summary": inventory.Summarize(req.service, result.Records),
		"errors":  result.Errors,
	})
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseCollectionRequest(w, r)
	if !ok {
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeError(w, http.StatusBadRequest, codeValidation, "id parameter is required")
		return
	}

	result := s.collect(w, r, req)
	if result == nil {
		return
	}

	for _, record := range result.Records {
		if record.ID() == id {
			s.writeJSON(w, http.StatusOK, map[string]any{"record": record})
			return
		}
	}
	s.writeError(w, http.StatusNotFound, codeNotFound, fmt.Sprintf("no %s resource with id %q", req.service, id))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseCollectionRequest(w, r)
	if !ok {
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		s.writeError(w, http.StatusBadRequest, codeValidation, fmt.Sprintf("unknown export format %q", format))
		return
	}

	result := s.collect(w, r, req)
	if result == nil {
		return
	}

	if format == "json" {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"service": req.service,
			"records": result.Records,
			"errors":  result.Errors,
		})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s-inventory.csv", req.service))
	if err := inventory.WriteCSV(w, result.Records); err != nil {
		s.logger.WithContext(r.Context()).Error().Err(err).Msg("CSV export failed")
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseCollectionRequest(w, r)
	if !ok {
		return
	}

	// A refresh without an explicit account list covers every configured
	// account, not just the caller's own.
	if len(req.accounts) == 0 {
		req.accounts = s.cfg.Accounts
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Server.RequestTimeout)
	defer cancel()

	result, err := s.refresher.RefreshService(ctx, req.service, req.regions, req.accounts)
	if err != nil {
		var unsupported *inventory.UnsupportedServiceError
		if errors.As(err, &unsupported) {
			s.writeError(w, http.StatusBadRequest, codeInvalidService, unsupported.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, codeCollectionError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}
