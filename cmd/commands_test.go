package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/apostle/internal/credentials"
	"github.com/desertthunder/apostle/internal/services"
	"github.com/desertthunder/apostle/internal/shared"
	tu "github.com/desertthunder/apostle/internal/testing"
)

type fixture struct {
	runner *Runner
	api    *tu.AdminAPI
	store  *credentials.MemoryStore
	output *bytes.Buffer
}

func newFixture(t *testing.T, input string) *fixture {
	t.Helper()

	api := tu.NewAdminAPI(t)
	store := credentials.NewMemoryStore()
	output := &bytes.Buffer{}

	config := shared.DefaultConfig()
	config.API.BaseURL = api.URL
	config.API.Cache = false
	config.API.RequestsPerSecond = 0

	runner := NewRunner(RunnerOpts{
		Config: config,
		Store:  store,
		Logger: shared.NewLogger(&bytes.Buffer{}),
		Input:  strings.NewReader(input),
		Output: output,
	})
	return &fixture{runner: runner, api: api, store: store, output: output}
}

func (f *fixture) acceptLogin() {
	f.api.Handle(http.MethodPost, services.LoginPath, http.StatusOK, map[string]any{
		"success": true, "accessToken": "T1-secret-token", "refreshToken": "R1",
		"admin": map[string]any{"id": "1", "email": "a@x", "name": "Ann"},
	})
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	f.acceptLogin()
	if err := run(f.runner, "auth", "login", "--email", "a@x", "--password", "pw"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	f.output.Reset()
}

func TestAuthCommands(t *testing.T) {
	t.Run("login stores credentials", func(t *testing.T) {
		f := newFixture(t, "")
		f.acceptLogin()

		if err := run(f.runner, "auth", "login", "-e", "a@x", "-p", "pw"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !strings.Contains(f.output.String(), "Signed in as Ann (a@x)") {
			t.Errorf("unexpected output %q", f.output.String())
		}
		tokens, _ := f.store.Read()
		if tokens.Access != "T1-secret-token" || tokens.Refresh != "R1" {
			t.Errorf("expected stored tokens, got %+v", tokens)
		}

		req, ok := f.api.Last(services.LoginPath)
		if !ok {
			t.Fatal("expected login request")
		}
		var body map[string]string
		json.Unmarshal(req.Body, &body)
		if body["email"] != "a@x" || body["password"] != "pw" {
			t.Errorf("unexpected login body %v", body)
		}
		if req.Authorization != "" {
			t.Error("login must not carry a credential")
		}
	})

	t.Run("login prompts for missing values", func(t *testing.T) {
		f := newFixture(t, "a@x\npw\n")
		f.acceptLogin()

		if err := run(f.runner, "auth", "login"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(f.output.String(), "Email: Password: ") {
			t.Errorf("expected prompts, got %q", f.output.String())
		}
		if !f.runner.session.Snapshot().Authenticated {
			t.Error("expected authenticated session")
		}
	})

	t.Run("login rejected", func(t *testing.T) {
		f := newFixture(t, "")
		f.api.Handle(http.MethodPost, services.LoginPath, http.StatusUnauthorized, map[string]any{
			"success": false, "message": "Invalid credentials",
		})

		err := run(f.runner, "auth", "login", "-e", "a@x", "-p", "bad")
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Fatalf("expected ErrAuthFailed, got %v", err)
		}
		if !strings.Contains(err.Error(), "Invalid credentials") {
			t.Errorf("expected server message, got %v", err)
		}
		if tokens, _ := f.store.Read(); !tokens.Empty() {
			t.Errorf("expected no stored tokens, got %+v", tokens)
		}
	})

	t.Run("login transport failure", func(t *testing.T) {
		f := newFixture(t, "")
		f.api.Handle(http.MethodPost, services.LoginPath, http.StatusInternalServerError, map[string]any{
			"success": false, "message": "db down",
		})

		err := run(f.runner, "auth", "login", "-e", "a@x", "-p", "pw")
		if !errors.Is(err, shared.ErrTransport) {
			t.Fatalf("expected ErrTransport, got %v", err)
		}
		if got := f.runner.session.Snapshot().LastError; got != "db down" {
			t.Errorf("expected server message recorded, got %q", got)
		}
	})

	t.Run("status masks the credential", func(t *testing.T) {
		f := newFixture(t, "")
		f.login(t)

		if err := run(f.runner, "auth", "status", "--json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var view statusView
		if err := json.Unmarshal(f.output.Bytes(), &view); err != nil {
			t.Fatalf("invalid JSON %q: %v", f.output.String(), err)
		}
		if !view.Authenticated || view.Email != "a@x" || !view.Refresh {
			t.Errorf("unexpected view %+v", view)
		}
		if strings.Contains(f.output.String(), "T1-secret-token") {
			t.Error("raw credential leaked into status output")
		}
		if view.API != f.api.URL {
			t.Errorf("expected API origin %s, got %s", f.api.URL, view.API)
		}
	})

	t.Run("status when signed out", func(t *testing.T) {
		f := newFixture(t, "")

		if err := run(f.runner, "auth", "status"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(f.output.String(), "Not authenticated") {
			t.Errorf("unexpected output %q", f.output.String())
		}
	})

	t.Run("logout clears the store", func(t *testing.T) {
		f := newFixture(t, "")
		f.login(t)
		f.api.Handle(http.MethodPost, services.LogoutPath, http.StatusOK, map[string]any{"success": true})

		if err := run(f.runner, "auth", "logout"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if tokens, _ := f.store.Read(); !tokens.Empty() {
			t.Errorf("expected tokens cleared, got %+v", tokens)
		}
		if req, ok := f.api.Last(services.LogoutPath); !ok || req.Authorization != "Bearer T1-secret-token" {
			t.Errorf("expected authorized logout request, got %+v", req)
		}
	})

	t.Run("logout clears locally when the server fails", func(t *testing.T) {
		f := newFixture(t, "")
		f.login(t)
		f.api.Handle(http.MethodPost, services.LogoutPath, http.StatusBadGateway, "bad gateway")

		if err := run(f.runner, "auth", "logout"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !f.runner.session.Snapshot().Empty() {
			t.Error("expected empty session")
		}
	})

	t.Run("whoami requires a credential", func(t *testing.T) {
		f := newFixture(t, "")

		err := run(f.runner, "auth", "whoami")
		if !errors.Is(err, shared.ErrMissingCredential) {
			t.Fatalf("expected ErrMissingCredential, got %v", err)
		}
		if n := len(f.api.Requests()); n != 0 {
			t.Errorf("expected no requests, got %d", n)
		}
	})

	t.Run("forgot password reports server message", func(t *testing.T) {
		f := newFixture(t, "")
		f.api.Handle(http.MethodPost, services.ForgotPasswordPath, http.StatusOK, map[string]any{
			"success": true, "message": "Code sent to a@x",
		})

		if err := run(f.runner, "auth", "forgot-password", "-e", "a@x"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(f.output.String(), "Code sent to a@x") {
			t.Errorf("unexpected output %q", f.output.String())
		}
	})

	t.Run("history needs the audit trail", func(t *testing.T) {
		f := newFixture(t, "")

		if err := run(f.runner, "auth", "history"); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("history lists recorded events", func(t *testing.T) {
		api := tu.NewAdminAPI(t)
		store, events, db, err := openStore(shared.StorageConfig{
			Driver: "sqlite",
			Path:   filepath.Join(t.TempDir(), "apostle.db"),
		}, shared.NewLogger(&bytes.Buffer{}))
		if err != nil {
			t.Fatalf("open store: %v", err)
		}
		defer db.Close()

		config := shared.DefaultConfig()
		config.API.BaseURL = api.URL
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Config: config, Store: store, Events: events, Output: output, Logger: shared.NewLogger(&bytes.Buffer{})})

		api.Handle(http.MethodPost, services.LoginPath, http.StatusUnauthorized, map[string]any{"success": false, "message": "nope"})
		run(runner, "auth", "login", "-e", "a@x", "-p", "bad")
		output.Reset()

		if err := run(runner, "auth", "history"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(output.String(), "operation_failed") || !strings.Contains(output.String(), "nope") {
			t.Errorf("expected failed login in history, got %q", output.String())
		}
	})
}

func TestContentCommands(t *testing.T) {
	songs := map[string]any{"songs": []map[string]any{
		{"_id": "s1", "title": "Grace", "isHidden": false},
		{"_id": "s2", "title": "Glory", "isHidden": true},
		{"_id": "s3", "title": "Amazing Grace", "isHidden": true},
	}}

	t.Run("stats requires a credential", func(t *testing.T) {
		f := newFixture(t, "")

		if err := run(f.runner, "stats"); !errors.Is(err, shared.ErrMissingCredential) {
			t.Fatalf("expected ErrMissingCredential, got %v", err)
		}
		if f.api.Count(services.StatsPath) != 0 {
			t.Error("expected no stats request")
		}
	})

	t.Run("stats text", func(t *testing.T) {
		f := newFixture(t, "")
		f.login(t)
		f.api.Handle(http.MethodGet, services.StatsPath, http.StatusOK, map[string]any{
			"success": true,
			"stats":   map[string]any{"totals": map[string]any{"users": 12}, "topCategories": []map[string]any{{"slug": "worship", "count": 3}}},
		})

		if err := run(f.runner, "stats"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := f.output.String()
		if !strings.Contains(out, "Total Users") || !strings.Contains(out, "12") || !strings.Contains(out, "worship") {
			t.Errorf("unexpected output %q", out)
		}
		if req, _ := f.api.Last(services.StatsPath); req.Authorization != "Bearer T1-secret-token" {
			t.Errorf("expected bearer credential, got %q", req.Authorization)
		}
	})

	t.Run("stats export to file", func(t *testing.T) {
		f := newFixture(t, "")
		f.login(t)
		f.api.Handle(http.MethodGet, services.StatsPath, http.StatusOK, map[string]any{"stats": map[string]any{}})
		path := filepath.Join(t.TempDir(), "stats")

		if err := run(f.runner, "stats", "-f", "csv", "-o", path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		tu.AssertFileExists(t, path+".csv")
		if got := tu.MustReadFile(t, path+".csv"); !strings.HasPrefix(got, "Metric,Value\n") {
			t.Errorf("unexpected CSV %q", got)
		}
	})

	t.Run("stats rejects unknown format", func(t *testing.T) {
		f := newFixture(t, "")
		f.login(t)
		f.api.Handle(http.MethodGet, services.StatsPath, http.StatusOK, map[string]any{"stats": map[string]any{}})

		if err := run(f.runner, "stats", "-f", "xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("songs list json", func(t *testing.T) {
		f := newFixture(t, "")
		f.login(t)
		f.api.Handle(http.MethodGet, services.SongsPath, http.StatusOK, songs)

		if err := run(f.runner, "songs", "list", "--search", "grace", "--limit", "5", "-f", "json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got []map[string]any
		if err := json.Unmarshal(f.output.Bytes(), &got); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(got) != 3 || got[0]["id"] != "s1" {
			t.Errorf("unexpected songs %v", got)
		}
		if req, _ := f.api.Last(services.SongsPath); req.Query != "limit=5&search=grace" {
			t.Errorf("unexpected query %q", req.Query)
		}
	})

	t.Run("songs hide", func(t *testing.T) {
		f := newFixture(t, "")
		f.login(t)
		f.api.Handle(http.MethodPatch, services.SongsPath+"/s1/hide", http.StatusOK, map[string]any{"success": true})

		err := run(f.runner, "songs", "hide", "s1", "missing")
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Fatalf("expected partial failure, got %v", err)
		}

		out := f.output.String()
		if !strings.Contains(out, "✓ s1") || !strings.Contains(out, "✗ missing") {
			t.Errorf("unexpected output %q", out)
		}
		if !strings.Contains(out, "1 hidden, 1 failed") {
			t.Errorf("expected summary, got %q", out)
		}
	})

	t.Run("songs hide needs ids", func(t *testing.T) {
		f := newFixture(t, "")
		f.login(t)

		if err := run(f.runner, "songs", "hide"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("songs bulk dry run", func(t *testing.T) {
		f := newFixture(t, "")
		f.login(t)
		f.api.Handle(http.MethodGet, services.SongsPath, http.StatusOK, songs)

		if err := run(f.runner, "songs", "bulk", "-a", "unhide", "--hidden", "--search", "grace", "--dry-run"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := f.output.String()
		if !strings.Contains(out, "Amazing Grace") || strings.Contains(out, "Glory") {
			t.Errorf("unexpected selection %q", out)
		}
		if !strings.Contains(out, "1 songs would be unhidden") {
			t.Errorf("expected dry-run summary, got %q", out)
		}
		for _, r := range f.api.Requests() {
			if r.Method == http.MethodPatch {
				t.Error("dry run must not moderate")
			}
		}
	})

	t.Run("songs bulk conflicting filters", func(t *testing.T) {
		f := newFixture(t, "")
		f.login(t)

		if err := run(f.runner, "songs", "bulk", "-a", "hide", "--hidden", "--visible"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("categories create with upload needs config", func(t *testing.T) {
		f := newFixture(t, "")
		f.login(t)

		err := run(f.runner, "categories", "create", "--name", "Hymns", "--upload", "art.png")
		if !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("categories create", func(t *testing.T) {
		f := newFixture(t, "")
		f.login(t)
		f.api.Handle(http.MethodPost, services.CategoriesPath, http.StatusCreated, map[string]any{
			"category": map[string]any{"_id": "c1", "name": "Hymns"},
		})

		if err := run(f.runner, "categories", "create", "--name", "Hymns", "--image", "https://img/h.png"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(f.output.String(), "Created category Hymns (c1)") {
			t.Errorf("unexpected output %q", f.output.String())
		}

		req, _ := f.api.Last(services.CategoriesPath)
		var body map[string]string
		json.Unmarshal(req.Body, &body)
		if body["imageUrl"] != "https://img/h.png" {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("genres delete not found", func(t *testing.T) {
		f := newFixture(t, "")
		f.login(t)

		if err := run(f.runner, "genres", "delete", "g9"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("playlists list markdown", func(t *testing.T) {
		f := newFixture(t, "")
		f.login(t)
		f.api.Handle(http.MethodGet, services.PlaylistsPath, http.StatusOK, []map[string]any{
			{"_id": "p1", "name": "Sunday", "songCount": 4},
		})

		if err := run(f.runner, "playlists", "list", "-f", "md"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(f.output.String(), "| p1 | Sunday |  | 4 |") {
			t.Errorf("unexpected markdown %q", f.output.String())
		}
	})
}

func TestAPICommands(t *testing.T) {
	t.Run("get prints JSON", func(t *testing.T) {
		f := newFixture(t, "")
		f.api.Handle(http.MethodGet, "/health", http.StatusOK, map[string]any{"status": "ok"})

		if err := run(f.runner, "api", "get", "health", "--json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if f.output.String() != `{"status":"ok"}`+"\n" {
			t.Errorf("unexpected output %q", f.output.String())
		}
	})

	t.Run("get error status", func(t *testing.T) {
		f := newFixture(t, "")

		if err := run(f.runner, "api", "get", "/nowhere"); !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("post validates JSON", func(t *testing.T) {
		f := newFixture(t, "")

		if err := run(f.runner, "api", "post", "/x", "-d", "{not json"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if err := run(f.runner, "api", "post", "/x"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("dump collects endpoint failures", func(t *testing.T) {
		f := newFixture(t, "")
		f.login(t)
		f.api.Handle(http.MethodGet, services.StatsPath, http.StatusOK, map[string]any{"stats": map[string]any{}})

		if err := run(f.runner, "api", "dump", "--pretty=false"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var dump map[string]any
		if err := json.Unmarshal(f.output.Bytes(), &dump); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if dump["stats"] == nil {
			t.Error("expected stats in dump")
		}
		if errs, _ := dump["errors"].([]any); len(errs) != 4 {
			t.Errorf("expected 4 failed endpoints, got %v", dump["errors"])
		}
	})
}

func TestSetupCommands(t *testing.T) {
	t.Run("config writes template", func(t *testing.T) {
		f := newFixture(t, "")
		path := filepath.Join(t.TempDir(), "config.toml")

		if err := run(f.runner, "setup", "config", "-c", path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tu.AssertFileExists(t, path)

		if err := run(f.runner, "setup", "config", "-c", path); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected error when config exists, got %v", err)
		}
	})

	t.Run("database runs migrations", func(t *testing.T) {
		tempDir := t.TempDir()
		originalDir := tu.MustGetwd(t)
		tu.MustChdir(t, tempDir)
		defer tu.MustChdir(t, originalDir)

		f := newFixture(t, "")
		if err := run(f.runner, "setup", "database"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		tu.AssertFileExists(t, filepath.Join(tempDir, "config.toml"))
		tu.AssertFileExists(t, filepath.Join(tempDir, "apostle.db"))
		if !strings.Contains(f.output.String(), "schema version") {
			t.Errorf("unexpected output %q", f.output.String())
		}
	})
}
