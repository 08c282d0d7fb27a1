package store

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"xtream-web-go/internal/config"
	"xtream-web-go/internal/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{Storage: config.StorageConfig{DataDir: t.TempDir()}}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestServerStore_AddListDelete(t *testing.T) {
	cfg := testConfig(t)
	s, err := NewServerStore(cfg, discardLogger())
	if err != nil {
		t.Fatalf("NewServerStore() error = %v", err)
	}
	if got := s.List(); len(got) != 0 {
		t.Fatalf("List() = %v, want empty", got)
	}

	srv, err := s.Add("  Main panel ", "http://panel.example:8080/")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if srv.ID == "" {
		t.Error("Add() returned empty ID")
	}
	if srv.Name != "Main panel" {
		t.Errorf("Name = %q, want trimmed", srv.Name)
	}
	if srv.URL != "http://panel.example:8080" {
		t.Errorf("URL = %q, want trailing slash trimmed", srv.URL)
	}

	got, err := s.Get(srv.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != srv.ID {
		t.Errorf("Get().ID = %q, want %q", got.ID, srv.ID)
	}

	// A fresh store sees the persisted record.
	reloaded, err := NewServerStore(cfg, discardLogger())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if list := reloaded.List(); len(list) != 1 || list[0].ID != srv.ID {
		t.Fatalf("reloaded List() = %v", list)
	}

	if err := s.Delete(srv.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(srv.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(srv.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestServerStore_AddInvalid(t *testing.T) {
	s, err := NewServerStore(testConfig(t), discardLogger())
	if err != nil {
		t.Fatalf("NewServerStore() error = %v", err)
	}

	tests := []struct {
		name      string
		srvName   string
		url       string
		wantField string
	}{
		{"empty name", "  ", "http://panel.example", "name"},
		{"relative url", "Panel", "/player_api.php", "url"},
		{"ftp url", "Panel", "ftp://panel.example", "url"},
		{"no host", "Panel", "http://", "url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Add(tt.srvName, tt.url)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Add() error = %v, want *ValidationError", err)
			}
			if vErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", vErr.Field, tt.wantField)
			}
		})
	}
	if len(s.List()) != 0 {
		t.Error("invalid servers were stored")
	}
}

func TestServerStore_CorruptFile(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(filepath.Join(cfg.Storage.DataDir, serversFile), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewServerStore(cfg, discardLogger()); err == nil {
		t.Fatal("NewServerStore() expected parse error, got nil")
	}
}

func TestAppConfigStore_Defaults(t *testing.T) {
	s, err := NewAppConfigStore(testConfig(t), discardLogger())
	if err != nil {
		t.Fatalf("NewAppConfigStore() error = %v", err)
	}
	if got := s.Get(); got != model.DefaultAppConfig() {
		t.Errorf("Get() = %+v, want defaults", got)
	}
}

func TestAppConfigStore_Update(t *testing.T) {
	cfg := testConfig(t)
	s, err := NewAppConfigStore(cfg, discardLogger())
	if err != nil {
		t.Fatalf("NewAppConfigStore() error = %v", err)
	}

	got, err := s.Update(model.AppConfig{
		AppName:        "My TV",
		PrimaryColor:   "#AA00ff",
		WelcomeMessage: "hi",
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.AppName != "My TV" || got.PrimaryColor != "#AA00ff" {
		t.Errorf("Update() = %+v", got)
	}

	reloaded, err := NewAppConfigStore(cfg, discardLogger())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Get() != got {
		t.Errorf("reloaded Get() = %+v, want %+v", reloaded.Get(), got)
	}
}

func TestAppConfigStore_UpdateFillsDefaults(t *testing.T) {
	s, err := NewAppConfigStore(testConfig(t), discardLogger())
	if err != nil {
		t.Fatalf("NewAppConfigStore() error = %v", err)
	}
	got, err := s.Update(model.AppConfig{})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got != model.DefaultAppConfig() {
		t.Errorf("Update() = %+v, want defaults", got)
	}
}

func TestAppConfigStore_UpdateInvalid(t *testing.T) {
	s, err := NewAppConfigStore(testConfig(t), discardLogger())
	if err != nil {
		t.Fatalf("NewAppConfigStore() error = %v", err)
	}

	tests := []struct {
		name      string
		cfg       model.AppConfig
		wantField string
	}{
		{"short color", model.AppConfig{PrimaryColor: "#fff"}, "primary_color"},
		{"named color", model.AppConfig{PrimaryColor: "red"}, "primary_color"},
		{"javascript logo", model.AppConfig{LogoURL: "javascript:alert(1)"}, "logo_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Update(tt.cfg)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Update() error = %v, want *ValidationError", err)
			}
			if vErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", vErr.Field, tt.wantField)
			}
		})
	}
	if s.Get() != model.DefaultAppConfig() {
		t.Error("rejected update changed stored config")
	}
}

func TestAppConfigStore_SetLogo(t *testing.T) {
	s, err := NewAppConfigStore(testConfig(t), discardLogger())
	if err != nil {
		t.Fatalf("NewAppConfigStore() error = %v", err)
	}
	got, err := s.SetLogo("/uploads/abc.png")
	if err != nil {
		t.Fatalf("SetLogo() error = %v", err)
	}
	if got.LogoURL != "/uploads/abc.png" || got.AppName != "Xtream Web" {
		t.Errorf("SetLogo() = %+v", got)
	}
}
