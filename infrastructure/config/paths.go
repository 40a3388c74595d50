// Package config resolves the on-disk locations the agent needs at boot:
// where identity and trust state live, and where received files land.
// Grounded on original_source/core/src/client.rs's ConnectedClient::new_with_ip,
// which resolves a storage_path before anything else can start.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// downloadsSubdir is appended to an explicit storage directory, mirroring
// client.rs's storage_path.join("downloads").
const downloadsSubdir = "downloads"

// Paths holds the resolved filesystem locations for one agent instance.
type Paths struct {
	// StorageDir holds identity.json and known_peers.json.
	StorageDir string
	// DownloadDir is where accepted incoming files are written.
	DownloadDir string
}

// Resolve computes Paths from an optional explicit storage directory. An
// empty storageDir resolves StorageDir to the OS user config directory
// (os.UserConfigDir()/connected) and DownloadDir to the OS download
// directory, falling back to the OS temp directory if neither can be
// determined, matching dirs::download_dir().unwrap_or_else(temp_dir) in
// the original client.
func Resolve(storageDir string) (Paths, error) {
	var p Paths

	if storageDir != "" {
		p.StorageDir = storageDir
		p.DownloadDir = filepath.Join(storageDir, downloadsSubdir)
	} else {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return Paths{}, fmt.Errorf("config: resolve user config dir: %w", err)
		}
		p.StorageDir = filepath.Join(configDir, "connected")
		p.DownloadDir = downloadDir()
	}

	if err := os.MkdirAll(p.StorageDir, 0o700); err != nil {
		return Paths{}, fmt.Errorf("config: create storage dir: %w", err)
	}
	if err := os.MkdirAll(p.DownloadDir, 0o700); err != nil {
		return Paths{}, fmt.Errorf("config: create download dir: %w", err)
	}
	return p, nil
}

// downloadDir returns $HOME/Downloads on every platform, whether or not it
// exists yet, and the OS temp directory only when the home directory cannot
// be resolved. The standard library has no dirs::download_dir() equivalent.
func downloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	candidate := filepath.Join(home, "Downloads")
	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		return candidate
	}
	// No pre-existing Downloads directory: still prefer it under $HOME so
	// a fresh machine gets a predictable location instead of temp churn.
	return candidate
}
