package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"testing"

	"github.com/desertthunder/apostle/internal/credentials"
	"github.com/desertthunder/apostle/internal/models"
	"github.com/desertthunder/apostle/internal/repositories"
	"github.com/desertthunder/apostle/internal/services"
	"github.com/desertthunder/apostle/internal/shared"
	tu "github.com/desertthunder/apostle/internal/testing"
)

// harness wires a session to a fake API through the real client and authorizer.
type harness struct {
	svc   *Service
	api   *tu.AdminAPI
	store *credentials.MemoryStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	api := tu.NewAdminAPI(t)
	store := credentials.NewMemoryStore()

	var svc *Service
	hc := services.NewHTTPClient(shared.APIConfig{TimeoutSeconds: 5}, services.CredentialFunc(func() string {
		return svc.AccessCredential()
	}), nil)
	svc = New(services.NewClient(api.URL, hc), store, nil)
	return &harness{svc: svc, api: api, store: store}
}

func (h *harness) stored(t *testing.T) credentials.Tokens {
	t.Helper()
	tokens, err := h.store.Read()
	if err != nil {
		t.Fatalf("store read failed: %v", err)
	}
	return tokens
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	h.api.Handle(http.MethodPost, services.LoginPath, http.StatusOK, map[string]any{
		"success": true, "accessToken": "T1", "refreshToken": "R1",
		"admin": map[string]any{"id": "1", "email": "a@x", "name": "Ann"},
	})
	if err := h.svc.Login(context.Background(), "a@x", "pw"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("success stores the credential the snapshot holds", func(t *testing.T) {
		h := newHarness(t)
		h.api.Handle(http.MethodPost, services.LoginPath, http.StatusOK, map[string]any{
			"success": true, "accessToken": "T1", "admin": map[string]any{"id": "1", "email": "a@x", "name": "Ann"},
		})

		if err := h.svc.Login(ctx, "a@x", "pw"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		snap := h.svc.Snapshot()
		if !snap.Authenticated || snap.Pending || snap.LastError != "" {
			t.Errorf("unexpected snapshot %+v", snap)
		}
		if snap.Principal == nil || snap.Principal.ID != "1" {
			t.Errorf("unexpected principal %+v", snap.Principal)
		}
		if got := h.stored(t).Access; got != "T1" || got != snap.AccessCredential {
			t.Errorf("store %q and snapshot %q disagree", got, snap.AccessCredential)
		}
		if h.api.Count(services.ProfilePath) != 0 {
			t.Error("profile must not be fetched when the response has a principal")
		}
	})

	t.Run("following requests carry the credential", func(t *testing.T) {
		h := newHarness(t)
		h.login(t)
		h.api.Handle(http.MethodGet, services.ProfilePath, http.StatusOK, map[string]any{"success": true})

		h.svc.Profile(ctx)
		rec, _ := h.api.Last(services.ProfilePath)
		if rec.Authorization != "Bearer T1" {
			t.Errorf("expected Bearer T1, got %q", rec.Authorization)
		}
	})

	t.Run("profile is fetched with the new credential", func(t *testing.T) {
		h := newHarness(t)
		h.api.Handle(http.MethodPost, services.LoginPath, http.StatusOK, map[string]any{
			"success": true, "data": map[string]any{"access_token": "T2"},
		})
		h.api.Handle(http.MethodGet, services.ProfilePath, http.StatusOK, map[string]any{
			"success": true, "admin": map[string]any{"_id": "7", "email": "b@x"},
		})

		if err := h.svc.Login(ctx, "b@x", "pw"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		rec, ok := h.api.Last(services.ProfilePath)
		if !ok || rec.Authorization != "Bearer T2" {
			t.Errorf("expected profile request with Bearer T2, got %+v", rec)
		}
		snap := h.svc.Snapshot()
		if snap.Principal == nil || snap.Principal.ID != "7" || snap.Principal.Name() != models.DefaultDisplayName {
			t.Errorf("unexpected principal %+v", snap.Principal)
		}
	})

	t.Run("failed profile fetch degrades identity", func(t *testing.T) {
		h := newHarness(t)
		h.api.Handle(http.MethodPost, services.LoginPath, http.StatusOK, map[string]any{"success": true, "token": "T3"})
		h.api.Handle(http.MethodGet, services.ProfilePath, http.StatusInternalServerError, "down")

		if err := h.svc.Login(ctx, "c@x", "pw"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		snap := h.svc.Snapshot()
		if !snap.Authenticated || snap.Principal != nil || snap.AccessCredential != "T3" {
			t.Errorf("expected degraded authenticated session, got %+v", snap)
		}
	})

	t.Run("rejected credentials", func(t *testing.T) {
		h := newHarness(t)
		h.api.Handle(http.MethodPost, services.LoginPath, http.StatusOK, map[string]any{
			"success": false, "message": "bad credentials",
		})

		if err := h.svc.Login(ctx, "a@x", "wrong"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		snap := h.svc.Snapshot()
		if snap.Authenticated || snap.Pending || snap.LastError != "bad credentials" {
			t.Errorf("unexpected snapshot %+v", snap)
		}
		if h.store.Keys() != 0 {
			t.Errorf("expected no store writes, found %d keys", h.store.Keys())
		}
	})

	t.Run("rejection without message uses default", func(t *testing.T) {
		h := newHarness(t)
		h.api.Handle(http.MethodPost, services.LoginPath, http.StatusUnauthorized, map[string]any{"success": false})

		h.svc.Login(ctx, "a@x", "wrong")
		if got := h.svc.Snapshot().LastError; got != LoginFailedMessage {
			t.Errorf("expected %q, got %q", LoginFailedMessage, got)
		}
	})

	t.Run("server failure is recorded and returned", func(t *testing.T) {
		h := newHarness(t)
		h.api.Handle(http.MethodPost, services.LoginPath, http.StatusServiceUnavailable, map[string]any{"message": "maintenance"})

		err := h.svc.Login(ctx, "a@x", "pw")
		if !services.IsTransport(err) {
			t.Fatalf("expected transport error, got %v", err)
		}
		snap := h.svc.Snapshot()
		if snap.LastError != "maintenance" || snap.Pending || snap.Authenticated {
			t.Errorf("unexpected snapshot %+v", snap)
		}
	})

	t.Run("malformed response is a transport failure", func(t *testing.T) {
		h := newHarness(t)
		h.api.Handle(http.MethodPost, services.LoginPath, http.StatusOK, `{"unexpected":true}`)

		err := h.svc.Login(ctx, "a@x", "pw")
		if !errors.Is(err, shared.ErrMalformedResponse) || !services.IsTransport(err) {
			t.Fatalf("expected malformed transport error, got %v", err)
		}
		if got := h.svc.Snapshot().LastError; got != LoginFailedMessage {
			t.Errorf("expected default message, got %q", got)
		}
	})

	t.Run("unreachable server", func(t *testing.T) {
		h := newHarness(t)
		h.api.Close()

		if err := h.svc.Login(ctx, "a@x", "pw"); err == nil {
			t.Fatal("expected error")
		}
		if h.svc.Snapshot().Pending {
			t.Error("pending must be cleared after failure")
		}
	})
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		h := newHarness(t)
		h.api.Handle(http.MethodPost, services.RegisterPath, http.StatusCreated, map[string]any{
			"success": true, "accessToken": "T1", "refreshToken": "R1", "admin": map[string]any{"id": "1", "fullName": "New"},
		})

		err := h.svc.Register(ctx, RegisterInput{Email: "n@x", Password: "pw", DisplayName: "New"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		snap := h.svc.Snapshot()
		if !snap.Authenticated || snap.Principal.Name() != "New" {
			t.Errorf("unexpected snapshot %+v", snap)
		}
		if tokens := h.stored(t); tokens.Access != "T1" || tokens.Refresh != "R1" {
			t.Errorf("unexpected stored tokens %+v", tokens)
		}
	})

	t.Run("no profile fallback", func(t *testing.T) {
		h := newHarness(t)
		h.api.Handle(http.MethodPost, services.RegisterPath, http.StatusOK, map[string]any{"success": true, "token": "T"})

		h.svc.Register(ctx, RegisterInput{Email: "n@x", Password: "pw"})
		if h.api.Count(services.ProfilePath) != 0 {
			t.Error("register must not fetch the profile")
		}
		if h.svc.Snapshot().Principal != nil {
			t.Error("expected nil principal")
		}
	})

	t.Run("rejection", func(t *testing.T) {
		h := newHarness(t)
		h.api.Handle(http.MethodPost, services.RegisterPath, http.StatusConflict, map[string]any{"success": false})

		if err := h.svc.Register(ctx, RegisterInput{Email: "n@x"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := h.svc.Snapshot().LastError; got != RegisterFailedMessage {
			t.Errorf("expected %q, got %q", RegisterFailedMessage, got)
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		h := newHarness(t)
		h.api.Handle(http.MethodPost, services.RegisterPath, http.StatusBadGateway, "")

		if err := h.svc.Register(ctx, RegisterInput{Email: "n@x"}); !services.IsTransport(err) {
			t.Errorf("expected transport error, got %v", err)
		}
		if got := h.svc.Snapshot().LastError; got != RegisterFailedMessage {
			t.Errorf("expected %q, got %q", RegisterFailedMessage, got)
		}
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("success clears everything", func(t *testing.T) {
		h := newHarness(t)
		h.login(t)
		h.api.Handle(http.MethodPost, services.LogoutPath, http.StatusOK, map[string]any{"success": true})

		if err := h.svc.Logout(ctx); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
		if snap := h.svc.Snapshot(); snap != (Snapshot{}) {
			t.Errorf("expected empty snapshot, got %+v", snap)
		}
		if !h.stored(t).Empty() {
			t.Errorf("expected empty store, got %+v", h.stored(t))
		}

		rec, _ := h.api.Last(services.LogoutPath)
		if rec.Authorization != "Bearer T1" {
			t.Errorf("logout must carry the credential, got %q", rec.Authorization)
		}
	})

	t.Run("server failure still logs out", func(t *testing.T) {
		h := newHarness(t)
		h.login(t)
		h.api.Handle(http.MethodPost, services.LogoutPath, http.StatusInternalServerError, "boom")

		if err := h.svc.Logout(ctx); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
		snap := h.svc.Snapshot()
		if snap.Authenticated || snap.AccessCredential != "" || snap.Pending {
			t.Errorf("unexpected snapshot %+v", snap)
		}
		if !h.stored(t).Empty() {
			t.Error("expected empty store")
		}
	})

	t.Run("network failure still logs out", func(t *testing.T) {
		h := newHarness(t)
		h.login(t)
		h.api.Close()

		if err := h.svc.Logout(ctx); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
		if h.svc.Snapshot().Authenticated || !h.stored(t).Empty() {
			t.Error("expected unauthenticated session and empty store")
		}
	})

	t.Run("clears tokens the snapshot never held", func(t *testing.T) {
		h := newHarness(t)
		h.store.Seed(credentials.LegacyTokenKey, "OLD")
		h.api.Handle(http.MethodPost, services.LogoutPath, http.StatusOK, map[string]any{"success": true})

		h.svc.Logout(ctx)
		if !h.stored(t).Empty() {
			t.Error("expected legacy token cleared")
		}
	})

	t.Run("store is cleared before the reset is committed", func(t *testing.T) {
		h := newHarness(t)
		h.login(t)
		h.api.Handle(http.MethodPost, services.LogoutPath, http.StatusOK, map[string]any{"success": true})

		var storeAtReset credentials.Tokens
		h.svc.Observe(func(ev Event, prev, next Snapshot) {
			if ev.Kind == LoggedOut {
				storeAtReset, _ = h.store.Read()
			}
		})

		var seen []Snapshot
		cancel := h.svc.Subscribe(func(s Snapshot) { seen = append(seen, s) })
		defer cancel()

		h.svc.Logout(ctx)

		if !storeAtReset.Empty() {
			t.Errorf("store still held %+v when reset was observed", storeAtReset)
		}
		if len(seen) != 2 || !seen[0].Pending || seen[1] != (Snapshot{}) {
			t.Errorf("unexpected published snapshots %+v", seen)
		}
	})
}

func TestClearError(t *testing.T) {
	h := newHarness(t)
	h.api.Handle(http.MethodPost, services.LoginPath, http.StatusOK, map[string]any{"success": false, "message": "nope"})
	h.svc.Login(context.Background(), "a@x", "pw")

	h.svc.ClearError()
	if got := h.svc.Snapshot().LastError; got != "" {
		t.Errorf("expected cleared error, got %q", got)
	}
}

// blockingAPI holds Login until release is closed.
type blockingAPI struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingAPI) Login(ctx context.Context, email, password string) (*services.Response, error) {
	close(b.started)
	<-b.release
	return &services.Response{Success: true, AccessCredential: "T"}, nil
}

func (b *blockingAPI) Register(ctx context.Context, in services.RegisterInput) (*services.Response, error) {
	return nil, shared.ErrNotImplemented
}

func (b *blockingAPI) Logout(ctx context.Context) (*services.Response, error) {
	return &services.Response{Success: true}, nil
}

func (b *blockingAPI) Profile(ctx context.Context) (*models.Principal, error) {
	return nil, nil
}

func TestPending(t *testing.T) {
	api := &blockingAPI{started: make(chan struct{}), release: make(chan struct{})}
	svc := New(api, credentials.NewMemoryStore(), nil)

	done := make(chan error, 1)
	go func() { done <- svc.Login(context.Background(), "a@x", "pw") }()

	<-api.started
	if snap := svc.Snapshot(); !snap.Pending || snap.Authenticated {
		t.Errorf("expected pending while in flight, got %+v", snap)
	}

	close(api.release)
	if err := <-done; err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if snap := svc.Snapshot(); snap.Pending || !snap.Authenticated {
		t.Errorf("expected settled session, got %+v", snap)
	}
}

func TestSubscribe(t *testing.T) {
	svc := New(&blockingAPI{}, credentials.NewMemoryStore(), nil)

	count := 0
	cancel := svc.Subscribe(func(Snapshot) { count++ })
	svc.ClearError()
	cancel()
	svc.ClearError()

	if count != 1 {
		t.Errorf("expected 1 notification, got %d", count)
	}
}

func TestSubscribeConcurrent(t *testing.T) {
	svc := New(&blockingAPI{}, credentials.NewMemoryStore(), nil)

	var (
		mu   sync.Mutex
		last Snapshot
	)
	cancel := svc.Subscribe(func(s Snapshot) {
		mu.Lock()
		last = s
		mu.Unlock()
	})
	defer cancel()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.dispatch(Event{Kind: OperationFailed, Message: strconv.Itoa(i)})
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if want := svc.Snapshot().LastError; last.LastError != want {
		t.Errorf("expected last notification to carry %q, got %q", want, last.LastError)
	}
}

type countingFlusher struct{ n int }

func (f *countingFlusher) Flush() { f.n++ }

func TestFlushOnEnd(t *testing.T) {
	h := newHarness(t)
	cache := &countingFlusher{}
	h.svc.Observe(FlushOnEnd(cache))

	h.login(t)
	h.svc.ClearError()
	if cache.n != 0 {
		t.Fatalf("expected no flush while signed in, got %d", cache.n)
	}

	h.api.Handle(http.MethodPost, services.LogoutPath, http.StatusOK, map[string]any{"success": true})
	h.svc.Logout(context.Background())
	if cache.n != 1 {
		t.Errorf("expected flush on logout, got %d", cache.n)
	}

	h.svc.ClearCredentials()
	if cache.n != 2 {
		t.Errorf("expected flush on credential clear, got %d", cache.n)
	}
}

func TestCredentials(t *testing.T) {
	t.Run("falls back to the store", func(t *testing.T) {
		store := credentials.NewMemoryStore()
		store.Seed(credentials.LegacyTokenKey, "LEGACY")
		svc := New(&blockingAPI{}, store, nil)

		if got := svc.AccessCredential(); got != "LEGACY" {
			t.Errorf("expected stored token, got %q", got)
		}
		if tok, err := svc.RequireCredential(); err != nil || tok != "LEGACY" {
			t.Errorf("RequireCredential: %q %v", tok, err)
		}
	})

	t.Run("missing credential", func(t *testing.T) {
		svc := New(&blockingAPI{}, credentials.NewMemoryStore(), nil)
		if _, err := svc.RequireCredential(); !errors.Is(err, shared.ErrMissingCredential) {
			t.Errorf("expected ErrMissingCredential, got %v", err)
		}
	})

	t.Run("authenticated without a token is still missing a credential", func(t *testing.T) {
		svc := New(&blockingAPI{}, credentials.NewMemoryStore(), nil)
		svc.dispatch(Event{Kind: LoginSucceeded})

		if !svc.Snapshot().Authenticated {
			t.Fatal("expected authenticated")
		}
		if _, err := svc.RequireCredential(); !errors.Is(err, shared.ErrMissingCredential) {
			t.Errorf("expected ErrMissingCredential, got %v", err)
		}
	})

	t.Run("ClearCredentials", func(t *testing.T) {
		h := newHarness(t)
		h.login(t)

		h.svc.ClearCredentials()
		if h.svc.Snapshot().Authenticated || !h.stored(t).Empty() {
			t.Error("expected cleared session and store")
		}
		if h.api.Count(services.LogoutPath) != 0 {
			t.Error("ClearCredentials must not contact the server")
		}
	})
}

func TestRehydrate(t *testing.T) {
	t.Run("restores a persisted session", func(t *testing.T) {
		h := newHarness(t)
		h.login(t)

		restored := New(&blockingAPI{}, h.store, nil)
		if err := restored.Rehydrate(); err != nil {
			t.Fatalf("Rehydrate failed: %v", err)
		}

		snap := restored.Snapshot()
		if !snap.Authenticated || snap.AccessCredential != "T1" || snap.RefreshCredential != "R1" {
			t.Errorf("unexpected snapshot %+v", snap)
		}
		if snap.Principal == nil || snap.Principal.DisplayName != "Ann" {
			t.Errorf("unexpected principal %+v", snap.Principal)
		}
	})

	t.Run("snapshot layout", func(t *testing.T) {
		h := newHarness(t)
		h.login(t)

		data, err := h.store.LoadSnapshot()
		if err != nil {
			t.Fatalf("LoadSnapshot failed: %v", err)
		}
		var doc map[string]any
		json.Unmarshal(data, &doc)
		if doc["isAuthenticated"] != true || doc["accessToken"] != "T1" || doc["admin"] == nil {
			t.Errorf("unexpected snapshot document %s", data)
		}
	})

	t.Run("empty store", func(t *testing.T) {
		svc := New(&blockingAPI{}, credentials.NewMemoryStore(), nil)
		if err := svc.Rehydrate(); err != nil {
			t.Fatalf("Rehydrate failed: %v", err)
		}
		if !svc.Snapshot().Empty() {
			t.Errorf("expected empty snapshot, got %+v", svc.Snapshot())
		}
	})

	t.Run("legacy token without snapshot", func(t *testing.T) {
		store := credentials.NewMemoryStore()
		store.Seed(credentials.LegacyTokenKey, "OLD")
		svc := New(&blockingAPI{}, store, nil)
		svc.Rehydrate()

		snap := svc.Snapshot()
		if snap.AccessCredential != "OLD" || snap.Authenticated {
			t.Errorf("unexpected snapshot %+v", snap)
		}
	})

	t.Run("unreadable snapshot is ignored", func(t *testing.T) {
		store := credentials.NewMemoryStore()
		store.Seed(credentials.SnapshotKey, "{broken")
		store.Seed(credentials.AccessTokenKey, "T")
		svc := New(&blockingAPI{}, store, nil)

		if err := svc.Rehydrate(); err != nil {
			t.Fatalf("Rehydrate failed: %v", err)
		}
		if snap := svc.Snapshot(); snap.Authenticated || snap.AccessCredential != "T" {
			t.Errorf("unexpected snapshot %+v", snap)
		}
	})

	t.Run("snapshot token used when token keys are gone", func(t *testing.T) {
		store := credentials.NewMemoryStore()
		store.SaveSnapshot([]byte(`{"admin":null,"isAuthenticated":true,"accessToken":"SNAP"}`))
		svc := New(&blockingAPI{}, store, nil)
		svc.Rehydrate()

		if got := svc.Snapshot().AccessCredential; got != "SNAP" {
			t.Errorf("expected SNAP, got %q", got)
		}
	})
}

func TestAuditTo(t *testing.T) {
	db, err := shared.NewDatabase(shared.MemoryDSN)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	repo := repositories.NewSessionEventRepository(db)
	h := newHarness(t)
	h.svc.Observe(AuditTo(repo, nil))

	h.login(t)
	h.api.Handle(http.MethodPost, services.LogoutPath, http.StatusOK, map[string]any{"success": true})
	h.svc.Logout(context.Background())

	events, err := repo.Recent(10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != "logged_out" || events[1].Kind != "login_succeeded" {
		t.Errorf("unexpected kinds %s, %s", events[0].Kind, events[1].Kind)
	}
	if events[0].PrincipalEmail != "a@x" {
		t.Errorf("expected email on logout event, got %q", events[0].PrincipalEmail)
	}
}
