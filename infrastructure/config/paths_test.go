package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolve_ExplicitStorageDir(t *testing.T) {
	base := t.TempDir()
	storageDir := filepath.Join(base, "state")

	p, err := Resolve(storageDir)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if p.StorageDir != storageDir {
		t.Errorf("StorageDir = %q, want %q", p.StorageDir, storageDir)
	}
	wantDownload := filepath.Join(storageDir, downloadsSubdir)
	if p.DownloadDir != wantDownload {
		t.Errorf("DownloadDir = %q, want %q", p.DownloadDir, wantDownload)
	}

	for _, dir := range []string{p.StorageDir, p.DownloadDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("stat %s: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("%s is not a directory", dir)
		}
	}
}

func TestResolve_EmptyStorageDirFallsBackToUserConfigDir(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)
	t.Setenv("HOME", base)

	p, err := Resolve("")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	wantStorage := filepath.Join(base, "connected")
	if p.StorageDir != wantStorage {
		t.Errorf("StorageDir = %q, want %q", p.StorageDir, wantStorage)
	}
	if p.DownloadDir == "" {
		t.Error("DownloadDir should not be empty")
	}
}

func TestResolve_IsIdempotent(t *testing.T) {
	base := t.TempDir()
	storageDir := filepath.Join(base, "state")

	if _, err := Resolve(storageDir); err != nil {
		t.Fatalf("first Resolve() error = %v", err)
	}
	if _, err := Resolve(storageDir); err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
}
