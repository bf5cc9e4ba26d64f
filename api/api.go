package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/mezonai/rollupstate/errors"
	"github.com/mezonai/rollupstate/exception"
	"github.com/mezonai/rollupstate/interfaces"
	"github.com/mezonai/rollupstate/jsonx"
	"github.com/mezonai/rollupstate/logx"
	"github.com/mezonai/rollupstate/monitoring"
	"github.com/mezonai/rollupstate/ratelimit"
)

type APIServer struct {
	ListenAddr string
	stateSvc   interfaces.StateService
	healthSvc  interfaces.HealthService
	router     *mux.Router
	server     *http.Server
	limiter    *ratelimit.Limiter
}

func NewAPIServer(addr string, stateSvc interfaces.StateService, healthSvc interfaces.HealthService) *APIServer {
	s := &APIServer{
		ListenAddr: addr,
		stateSvc:   stateSvc,
		healthSvc:  healthSvc,
		router:     mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *APIServer) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", monitoring.Handler()).Methods("GET")
	s.router.HandleFunc("/state/root", s.handleRoot).Methods("GET")
	s.router.HandleFunc("/state/tip", s.handleTip).Methods("GET")
	s.router.HandleFunc("/accounts/{id:[0-9]+}", s.handleAccount).Methods("GET")
	s.router.HandleFunc("/accounts/by-address/{address}", s.handleAccountByAddress).Methods("GET")
}

// SetRateLimiter limits every route per client IP. Call before Start.
func (s *APIServer) SetRateLimiter(l *ratelimit.Limiter) {
	s.limiter = l
	s.router.Use(l.Middleware(func(w http.ResponseWriter, r *http.Request) {
		logx.Warn("API", "Rate limited ", ratelimit.ClientIP(r), " on ", r.URL.Path)
		s.writeError(w, errors.NewError(errors.ErrCodeRateLimited, errors.ErrMsgRateLimited))
	}))
}

// Handler returns the configured router
func (s *APIServer) Handler() http.Handler {
	return s.router
}

func (s *APIServer) Start() {
	s.server = &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logx.Info("API", fmt.Sprintf("API listen on %s", s.ListenAddr))
	exception.SafeGo("api server", func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Error("API", "API server stopped: ", err)
		}
	})
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, err := s.healthSvc.Check(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	s.writeJSONStatus(w, code, status)
}

func (s *APIServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	root, err := s.stateSvc.GetRoot(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, root)
}

func (s *APIServer) handleTip(w http.ResponseWriter, r *http.Request) {
	tip, err := s.stateSvc.GetTip(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, tip)
}

func (s *APIServer) handleAccount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		s.writeError(w, errors.NewError(errors.ErrCodeInvalidAccountID, errors.ErrMsgInvalidAccountID))
		return
	}
	acc, err := s.stateSvc.GetAccount(r.Context(), uint32(id))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, acc)
}

func (s *APIServer) handleAccountByAddress(w http.ResponseWriter, r *http.Request) {
	acc, err := s.stateSvc.GetAccountByAddress(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, acc)
}

func (s *APIServer) writeJSON(w http.ResponseWriter, v interface{}) {
	s.writeJSONStatus(w, http.StatusOK, v)
}

func (s *APIServer) writeJSONStatus(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := jsonx.NewEncoder(w).Encode(v); err != nil {
		logx.Error("API", "Failed to encode response: ", err)
	}
}

func (s *APIServer) writeError(w http.ResponseWriter, err error) {
	var ne *errors.NetworkError
	if !stderrors.As(err, &ne) {
		logx.Error("API", "Unexpected error: ", err)
		ne = &errors.NetworkError{Code: errors.ErrCodeInternal, Message: errors.ErrMsgInternal}
	}
	s.writeJSONStatus(w, ne.HTTPStatus(), ne)
}
