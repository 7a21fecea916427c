// Package session holds the console's authoritative authentication state.
//
// State changes only through [Reduce], driven by the [Service] entry points. Every
// transition runs the registered observers with the previous and next snapshot before
// the next snapshot becomes visible to readers and subscribers; the credential store
// is kept in sync by the observer from [PersistTo].
//
// One Service is constructed per process by the composition root. Network calls run
// without holding the service lock; overlapping operations are not rejected, so front
// ends check [Snapshot.Pending] before starting one.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/apostle/internal/credentials"
	"github.com/desertthunder/apostle/internal/models"
	"github.com/desertthunder/apostle/internal/services"
	"github.com/desertthunder/apostle/internal/shared"
)

// Default failure messages when the server supplies none.
const (
	LoginFailedMessage    = "Login failed"
	RegisterFailedMessage = "Registration failed"
)

// RegisterInput is the payload for creating an admin account.
type RegisterInput = services.RegisterInput

// Authenticator is the set of session operations front ends drive.
type Authenticator interface {
	Login(ctx context.Context, email, password string) error
	Register(ctx context.Context, in RegisterInput) error
	Logout(ctx context.Context) error
	ClearError()
}

// API is the remote surface the session needs. [*services.Client] implements it.
type API interface {
	Login(ctx context.Context, email, password string) (*services.Response, error)
	Register(ctx context.Context, in services.RegisterInput) (*services.Response, error)
	Logout(ctx context.Context) (*services.Response, error)
	Profile(ctx context.Context) (*models.Principal, error)
}

// Observer sees every transition before it is committed. Observers run with the
// service locked and must not call back into it.
type Observer func(ev Event, prev, next Snapshot)

// Service owns the session snapshot.
type Service struct {
	api    API
	store  credentials.Store
	logger *log.Logger

	mu        sync.Mutex
	delivery  sync.Mutex
	snap      Snapshot
	observers []Observer
	subs      map[int]func(Snapshot)
	nextSub   int
}

var _ Authenticator = (*Service)(nil)

// New creates an empty session backed by store. The persistence observer for
// store is registered first. A nil logger discards output.
func New(api API, store credentials.Store, logger *log.Logger) *Service {
	logger = orDiscard(logger)
	s := &Service{
		api:    api,
		store:  store,
		logger: logger,
		subs:   make(map[int]func(Snapshot)),
	}
	s.Observe(PersistTo(store, logger))
	return s
}

// Observe registers an additional observer.
func (s *Service) Observe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Subscribe calls fn after every committed transition until cancel is called.
//
// Deliveries are serialized and each carries the state current at delivery time, so
// the last call fn receives always reflects the latest commit. Under concurrent
// operations fn may see the same snapshot twice and miss intermediate ones. fn must
// not call methods that change the session.
func (s *Service) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Snapshot returns a copy of the current state.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.clone()
}

// dispatch reduces ev, runs observers, commits, then notifies subscribers.
func (s *Service) dispatch(ev Event) Snapshot {
	s.mu.Lock()
	prev := s.snap
	next := Reduce(prev, ev)
	for _, o := range s.observers {
		o(ev, prev.clone(), next.clone())
	}
	s.snap = next
	s.mu.Unlock()

	s.logger.Debug("session transition", "event", ev.Kind, "authenticated", next.Authenticated, "pending", next.Pending)

	s.notify()
	return next
}

// notify delivers the current snapshot to every subscriber, one delivery at a time.
func (s *Service) notify() {
	s.delivery.Lock()
	defer s.delivery.Unlock()

	s.mu.Lock()
	snap := s.snap
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap.clone())
	}
}

// Login authenticates with email and password.
//
// A rejection by the server is recorded in LastError and returns nil. Transport
// failures are recorded and returned. When the response carries no principal, the
// profile is fetched with the new credential; failing that, the session is
// authenticated without one.
func (s *Service) Login(ctx context.Context, email, password string) error {
	s.dispatch(Event{Kind: LoginStarted})

	resp, err := s.api.Login(ctx, email, password)
	if err != nil {
		s.logger.Error("login request failed", "error", err)
		s.dispatch(Event{Kind: OperationFailed, Message: failureMessage(err, LoginFailedMessage)})
		return err
	}
	if !resp.Success {
		s.dispatch(Event{Kind: OperationFailed, Message: orDefault(resp.Message, LoginFailedMessage)})
		return nil
	}

	principal := resp.Principal
	if principal == nil {
		pctx := ctx
		if resp.AccessCredential != "" {
			pctx = services.WithCredential(ctx, resp.AccessCredential)
		}
		p, perr := s.api.Profile(pctx)
		if perr != nil {
			s.logger.Warn("profile fetch after login failed", "error", perr)
		}
		principal = p
	}

	s.dispatch(Event{
		Kind:      LoginSucceeded,
		Principal: principal,
		Access:    resp.AccessCredential,
		Refresh:   resp.RefreshCredential,
	})
	s.logger.Info("logged in", "email", email, "degraded", principal == nil)
	return nil
}

// Register creates an account and authenticates with it. Failure handling matches
// [Service.Login]; no profile fetch is attempted.
func (s *Service) Register(ctx context.Context, in RegisterInput) error {
	s.dispatch(Event{Kind: RegisterStarted})

	resp, err := s.api.Register(ctx, in)
	if err != nil {
		s.logger.Error("register request failed", "error", err)
		s.dispatch(Event{Kind: OperationFailed, Message: failureMessage(err, RegisterFailedMessage)})
		return err
	}
	if !resp.Success {
		s.dispatch(Event{Kind: OperationFailed, Message: orDefault(resp.Message, RegisterFailedMessage)})
		return nil
	}

	s.dispatch(Event{
		Kind:      RegisterSucceeded,
		Principal: resp.Principal,
		Access:    resp.AccessCredential,
		Refresh:   resp.RefreshCredential,
	})
	s.logger.Info("registered", "email", in.Email)
	return nil
}

// Logout ends the session. The local session is reset whatever the server says.
func (s *Service) Logout(ctx context.Context) error {
	s.dispatch(Event{Kind: LogoutStarted})

	resp, err := s.api.Logout(ctx)
	switch {
	case err != nil:
		s.logger.Warn("logout request failed, clearing local session", "error", err)
	case !resp.Success:
		s.logger.Warn("logout rejected, clearing local session", "message", resp.Message)
	}

	s.dispatch(Event{Kind: LoggedOut})
	return nil
}

// ClearError drops LastError.
func (s *Service) ClearError() {
	s.dispatch(Event{Kind: ErrorCleared})
}

// ClearCredentials resets the session and empties the store without contacting the server.
func (s *Service) ClearCredentials() {
	s.dispatch(Event{Kind: CredentialsCleared})
}

// AccessCredential returns the in-memory access token, else the stored one.
func (s *Service) AccessCredential() string {
	if tok := s.Snapshot().AccessCredential; tok != "" {
		return tok
	}
	tokens, err := s.store.Read()
	if err != nil {
		s.logger.Warn("failed to read stored credentials", "error", err)
		return ""
	}
	return tokens.Access
}

// RequireCredential returns the access token or [shared.ErrMissingCredential].
func (s *Service) RequireCredential() (string, error) {
	if tok := s.AccessCredential(); tok != "" {
		return tok, nil
	}
	return "", shared.ErrMissingCredential
}

// Profile fetches the signed-in principal from the server.
func (s *Service) Profile(ctx context.Context) (*models.Principal, error) {
	return s.api.Profile(ctx)
}

// failureMessage prefers the server's message on a transport failure.
func failureMessage(err error, fallback string) string {
	var tErr *services.TransportError
	if errors.As(err, &tErr) && tErr.Message != "" {
		return tErr.Message
	}
	return fallback
}

func orDefault(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}
