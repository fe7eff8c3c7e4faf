package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"carnote/assets"
	"carnote/internal/config"
)

func TestBackendType_IsValid(t *testing.T) {
	tests := []struct {
		in   BackendType
		want bool
	}{
		{SQLiteBackend, true},
		{MemoryBackend, true},
		{"sheets", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := tt.in.IsValid(); got != tt.want {
			t.Errorf("BackendType(%q).IsValid() = %v, want %v", tt.in, got, tt.want)
		}
	}
	if got := GetBackendTypeStrings(); len(got) != 2 || got[0] != "sqlite" || got[1] != "memory" {
		t.Errorf("GetBackendTypeStrings() = %v", got)
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("FromAppConfig(nil) should fail")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Error("FromAppConfig() should reject unknown backends")
	}

	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", DataDir: "d"})
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "x.db" || cfg.DataDirectory != "d" {
		t.Errorf("FromAppConfig() = %+v", cfg)
	}

	cfg, _ = FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", MemoryPersist: true})
	if cfg.Persist {
		t.Error("Persist only applies to the memory backend")
	}
	cfg, _ = FromAppConfig(&config.Config{DataBackend: "memory", MemoryPersist: true})
	if !cfg.Persist {
		t.Error("FromAppConfig() dropped MemoryPersist")
	}
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	factory := NewFactory(nil)

	t.Run("sqlite", func(t *testing.T) {
		result, err := factory.CreateBackend(ctx, Config{
			Type:         SQLiteBackend,
			SQLiteDBPath: filepath.Join(t.TempDir(), "carnote.db"),
		})
		if err != nil {
			t.Fatalf("CreateBackend() error = %v", err)
		}
		defer result.Cleanup()

		if _, err := result.Repository.GetVehicle(ctx, assets.DefaultVehicleID); err != nil {
			t.Errorf("seeded vehicle missing: %v", err)
		}
	})

	t.Run("memory without snapshot", func(t *testing.T) {
		result, err := factory.CreateBackend(ctx, Config{Type: MemoryBackend, DataDirectory: t.TempDir()})
		if err != nil {
			t.Fatalf("CreateBackend() error = %v", err)
		}
		if result.Cleanup != nil {
			t.Error("memory backend needs no cleanup")
		}
		tpls, err := result.Repository.GetTemplates(ctx)
		if err != nil || len(tpls) == 0 {
			t.Errorf("GetTemplates() = %d, %v", len(tpls), err)
		}
	})

	t.Run("memory with broken snapshot", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "snapshot.json"), []byte("{"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := factory.CreateBackend(ctx, Config{Type: MemoryBackend, DataDirectory: dir}); err == nil {
			t.Error("CreateBackend() should fail on a malformed snapshot")
		}
	})

	t.Run("sqlite without path", func(t *testing.T) {
		if _, err := factory.CreateBackend(ctx, Config{Type: SQLiteBackend}); err == nil {
			t.Error("CreateBackend() should require a database path")
		}
	})
}

func TestCreateBackend_MemoryPersist(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	factory := NewFactory(nil)

	result, err := factory.CreateBackend(ctx, Config{Type: MemoryBackend, DataDirectory: dir, Persist: true})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	if err := result.Repository.UpdateVehicleMileage(ctx, assets.DefaultVehicleID, 90000); err != nil {
		t.Fatalf("UpdateVehicleMileage() error = %v", err)
	}
	if err := result.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "snapshot.json")); err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}

	reopened, err := factory.CreateBackend(ctx, Config{Type: MemoryBackend, DataDirectory: dir})
	if err != nil {
		t.Fatalf("CreateBackend() reopen error = %v", err)
	}
	v, err := reopened.Repository.GetVehicle(ctx, assets.DefaultVehicleID)
	if err != nil || v.CurrentMileage != 90000 {
		t.Errorf("reopened mileage = %d, %v, want 90000", v.CurrentMileage, err)
	}
	if err := reopened.Close(); err != nil {
		t.Errorf("Close() without persist error = %v", err)
	}
}

func TestBackendResult_CloseNil(t *testing.T) {
	var r *BackendResult
	if err := r.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}
