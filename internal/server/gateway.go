package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/apostle/internal/models"
	"github.com/desertthunder/apostle/internal/services"
	"github.com/desertthunder/apostle/internal/session"
)

// Gateway routes.
const (
	APIPrefix   = "/api/"
	SessionPath = "/session"
	LoginPath   = "/session/login"
	LogoutPath  = "/session/logout"
)

// maxBody caps JSON request bodies accepted by the session handlers.
const maxBody = 1 << 16

// SessionService is the part of [session.Service] the gateway drives.
type SessionService interface {
	Snapshot() session.Snapshot
	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context) error
}

// SessionView is the body of GET /session. Tokens are never exposed.
type SessionView struct {
	Authenticated bool              `json:"isAuthenticated"`
	Pending       bool              `json:"isLoading"`
	Principal     *models.Principal `json:"admin"`
	LastError     string            `json:"error,omitempty"`
	HasCredential bool              `json:"hasCredential"`
}

// NewSessionView projects a snapshot for the browser.
func NewSessionView(s session.Snapshot) SessionView {
	return SessionView{
		Authenticated: s.Authenticated,
		Pending:       s.Pending,
		Principal:     s.Principal,
		LastError:     s.LastError,
		HasCredential: s.AccessCredential != "",
	}
}

type result struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Admin   *models.Principal `json:"admin,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProxyHandler forwards /api/ requests to the resolved backend through an authorizing transport.
type ProxyHandler struct {
	proxy *httputil.ReverseProxy
}

// NewProxyHandler creates a proxy to backend. transport is expected to attach the
// session credential, see [services.Authorizer].
func NewProxyHandler(backend string, transport http.RoundTripper, logger *log.Logger) (*ProxyHandler, error) {
	target, err := url.Parse(strings.TrimRight(backend, "/"))
	if err != nil || target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("invalid backend address %q", backend)
	}

	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Header.Del("Cookie")
		},
		Transport: transport,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("proxy request failed", "path", r.URL.Path, "error", err)
			writeError(w, http.StatusBadGateway, "backend unreachable")
		},
	}
	return &ProxyHandler{proxy: proxy}, nil
}

// Routes returns the HTTP routes this handler serves.
func (h *ProxyHandler) Routes() []string {
	return []string{APIPrefix}
}

func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.proxy.ServeHTTP(w, r)
}

// SessionHandlers serves the session endpoints.
type SessionHandlers struct {
	svc    SessionService
	logger *log.Logger
}

// Show writes the current snapshot.
func (h *SessionHandlers) Show(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NewSessionView(h.svc.Snapshot()))
}

// Login authenticates with a JSON {email, password} body.
//
// Returns 409 while another operation is in flight, 401 when the server rejects the
// credentials and 502 when it cannot be reached.
func (h *SessionHandlers) Login(w http.ResponseWriter, r *http.Request) {
	if h.svc.Snapshot().Pending {
		writeError(w, http.StatusConflict, "another session operation is in progress")
		return
	}

	var in loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	err := h.svc.Login(r.Context(), strings.TrimSpace(in.Email), in.Password)
	snap := h.svc.Snapshot()
	switch {
	case err != nil && services.IsTransport(err):
		writeError(w, http.StatusBadGateway, orMessage(snap.LastError, session.LoginFailedMessage))
	case err != nil:
		h.logger.Error("gateway login failed", "error", err)
		writeError(w, http.StatusInternalServerError, session.LoginFailedMessage)
	case !snap.Authenticated:
		writeError(w, http.StatusUnauthorized, orMessage(snap.LastError, session.LoginFailedMessage))
	default:
		writeJSON(w, http.StatusOK, result{Success: true, Admin: snap.Principal})
	}
}

// Logout ends the session. It always succeeds once started.
func (h *SessionHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if h.svc.Snapshot().Pending {
		writeError(w, http.StatusConflict, "another session operation is in progress")
		return
	}
	if err := h.svc.Logout(r.Context()); err != nil {
		h.logger.Warn("gateway logout returned an error", "error", err)
	}
	writeJSON(w, http.StatusOK, result{Success: true})
}

// Gateway is the local console server.
type Gateway struct {
	Router *BasicRouter
	server *http.Server
	logger *log.Logger
}

// GatewayOptions configures [NewGateway].
type GatewayOptions struct {
	Addr      string
	Backend   string
	Transport http.RoundTripper
	Session   SessionService
	Logger    *log.Logger
}

// NewGateway wires middleware, the API proxy and session routes. Only requests
// addressed to opts.Addr from the gateway's own origin are served.
func NewGateway(opts GatewayOptions) (*Gateway, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.Session == nil {
		return nil, errors.New("gateway requires a session service")
	}
	if opts.Addr == "" {
		return nil, errors.New("gateway requires a listen address")
	}

	proxy, err := NewProxyHandler(opts.Backend, opts.Transport, logger)
	if err != nil {
		return nil, err
	}

	router := NewBasicRouter()
	router.Use(RequestID(), Logging(logger), Recover(logger), SameOrigin(ListenHosts(opts.Addr), logger))
	router.Handler(proxy)

	sh := &SessionHandlers{svc: opts.Session, logger: logger}
	router.Use(NoStore())
	router.Handle(http.MethodGet, SessionPath, http.HandlerFunc(sh.Show))
	router.Handle(http.MethodPost, LoginPath, http.HandlerFunc(sh.Login))
	router.Handle(http.MethodPost, LogoutPath, http.HandlerFunc(sh.Logout))

	return &Gateway{
		Router: router,
		server: &http.Server{
			Addr:              opts.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}, nil
}

// Serve accepts connections on l until ctx is done, then shuts down gracefully.
func (g *Gateway) Serve(ctx context.Context, l net.Listener) error {
	errc := make(chan error, 1)
	go func() { errc <- g.server.Serve(l) }()

	g.logger.Info("gateway listening", "addr", l.Addr().String())

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("gateway shutdown: %w", err)
		}
		return nil
	}
}

// ListenAndServe listens on the configured address and calls [Gateway.Serve].
func (g *Gateway) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", g.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", g.server.Addr, err)
	}
	return g.Serve(ctx, l)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, result{Success: false, Message: msg})
}

func orMessage(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}
