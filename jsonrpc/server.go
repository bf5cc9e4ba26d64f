package jsonrpc

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"

	"github.com/mezonai/rollupstate/errors"
	"github.com/mezonai/rollupstate/exception"
	"github.com/mezonai/rollupstate/interfaces"
	"github.com/mezonai/rollupstate/logx"
)

// application error codes, below the range reserved by JSON-RPC
const (
	codeInvalidParams jrpc2.Code = -32602
	codeStateError    jrpc2.Code = -32000
)

func toJRPC2Error(err error) error {
	if err == nil {
		return nil
	}
	var networkError *errors.NetworkError
	if stderrors.As(err, &networkError) {
		code := codeStateError
		if networkError.Code == errors.ErrCodeInvalidRequest || networkError.Code == errors.ErrCodeInvalidAddress {
			code = codeInvalidParams
		}
		return jrpc2.Errorf(code, "%s", networkError.Message).WithData(networkError)
	}
	return jrpc2.Errorf(codeStateError, "%s", err.Error())
}

// --- Params ---

// getAccountParams selects an account by id or by address; id wins when both are set
type getAccountParams struct {
	ID      *uint32 `json:"id,omitempty"`
	Address string  `json:"address,omitempty"`
}

// --- Server ---

type Server struct {
	addr       string
	stateSvc   interfaces.StateService
	healthSvc  interfaces.HealthService
	corsConfig CORSConfig
	bridge     jhttp.Bridge
	server     *http.Server
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

func NewServer(addr string, stateSvc interfaces.StateService, healthSvc interfaces.HealthService) *Server {
	return &Server{
		addr:      addr,
		stateSvc:  stateSvc,
		healthSvc: healthSvc,
	}
}

func (s *Server) SetCORSConfig(config CORSConfig) {
	s.corsConfig = config
}

// Handler returns the JSON-RPC over HTTP handler with CORS applied
func (s *Server) Handler() http.Handler {
	s.bridge = jhttp.NewBridge(s.buildMethodMap(), &jhttp.BridgeOptions{Server: &jrpc2.ServerOptions{}})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.setCORSHeaders(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		s.bridge.ServeHTTP(w, r)
	})
}

func (s *Server) Start() {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logx.Info("JSONRPC", fmt.Sprintf("JSON-RPC listen on %s", s.addr))
	exception.SafeGo("jsonrpc server", func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Error("JSONRPC", "JSON-RPC server stopped: ", err)
		}
	})
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.bridge.Close()
	return err
}

func (s *Server) buildMethodMap() handler.Map {
	return handler.Map{
		MethodStateGetRoot: handler.New(func(ctx context.Context) (*interfaces.RootView, error) {
			res, err := s.stateSvc.GetRoot(ctx)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res, nil
		}),
		MethodStateGetAccount: handler.New(func(ctx context.Context, p getAccountParams) (*interfaces.AccountView, error) {
			res, err := s.rpcGetAccount(ctx, p)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res, nil
		}),
		MethodChainGetTip: handler.New(func(ctx context.Context) (*interfaces.TipView, error) {
			res, err := s.stateSvc.GetTip(ctx)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res, nil
		}),
		MethodHealthCheck: handler.New(func(ctx context.Context) (*interfaces.HealthStatus, error) {
			res, err := s.healthSvc.Check(ctx)
			if err != nil {
				return nil, toJRPC2Error(err)
			}
			return res, nil
		}),
	}
}

func (s *Server) rpcGetAccount(ctx context.Context, p getAccountParams) (*interfaces.AccountView, error) {
	switch {
	case p.ID != nil:
		return s.stateSvc.GetAccount(ctx, *p.ID)
	case p.Address != "":
		return s.stateSvc.GetAccountByAddress(ctx, p.Address)
	default:
		return nil, errors.NewError(errors.ErrCodeInvalidRequest, errors.ErrMsgInvalidRequest)
	}
}

// --- Helpers ---

func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	// Set allowed origins
	if len(s.corsConfig.AllowedOrigins) > 0 {
		if s.corsConfig.AllowedOrigins[0] == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			origin := r.Header.Get("Origin")
			for _, allowedOrigin := range s.corsConfig.AllowedOrigins {
				if origin == allowedOrigin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
	}

	if len(s.corsConfig.AllowedMethods) > 0 {
		w.Header().Set("Access-Control-Allow-Methods", strings.Join(s.corsConfig.AllowedMethods, ", "))
	}
	if len(s.corsConfig.AllowedHeaders) > 0 {
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(s.corsConfig.AllowedHeaders, ", "))
	}
	if s.corsConfig.MaxAge > 0 {
		w.Header().Set("Access-Control-Max-Age", strconv.Itoa(s.corsConfig.MaxAge))
	}
}

// --- Env helpers ---

// CORSFromEnv reads environment variables and constructs a CORSConfig.
// Returns (cfg, true) if any CORS-related env var is set; otherwise (zero, false).
//
// Env vars:
// - CORS_ALLOWED_ORIGINS: comma-separated list
// - CORS_ALLOWED_METHODS: comma-separated list
// - CORS_ALLOWED_HEADERS: comma-separated list
// - CORS_MAX_AGE: integer seconds
func CORSFromEnv() (CORSConfig, bool) {
	var maxAge int
	if v, err := strconv.Atoi(os.Getenv("CORS_MAX_AGE")); err == nil {
		maxAge = v
	}

	cfg := CORSConfig{
		AllowedOrigins: splitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS")),
		AllowedMethods: splitAndTrim(os.Getenv("CORS_ALLOWED_METHODS")),
		AllowedHeaders: splitAndTrim(os.Getenv("CORS_ALLOWED_HEADERS")),
		MaxAge:         maxAge,
	}
	provided := len(cfg.AllowedOrigins) > 0 || len(cfg.AllowedMethods) > 0 || len(cfg.AllowedHeaders) > 0 || maxAge > 0
	if !provided {
		return CORSConfig{}, false
	}
	return cfg, true
}

func splitAndTrim(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
