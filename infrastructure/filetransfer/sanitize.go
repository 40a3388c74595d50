package filetransfer

import (
	"path/filepath"
	"strings"
)

// maxSanitizedLen matches file_transfer.rs::sanitize_filename's
// `.take(255)`.
const maxSanitizedLen = 255

// disallowedFilenameChars are stripped after taking the base name, closing
// off path traversal and characters that are invalid on common
// filesystems. Matches file_transfer.rs::sanitize_filename's char set.
const disallowedFilenameChars = "/\\\x00:*?\"<>|"

// sanitizeFilename reduces an attacker- or peer-controlled filename to a
// single path-safe component: strip any directory components, drop
// disallowed characters, and truncate to maxSanitizedLen runes.
func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "unnamed"
	}

	var b strings.Builder
	count := 0
	for _, r := range base {
		if count >= maxSanitizedLen {
			break
		}
		if strings.ContainsRune(disallowedFilenameChars, r) {
			continue
		}
		b.WriteRune(r)
		count++
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}

// mimeTypeByExtension is a small built-in table covering common file types.
// The original implementation uses a crate that sniffs the full system
// mime database; no such library appears anywhere in the Go corpus, and
// this field is purely informational (not load-bearing for any protocol
// invariant), so a short internal table is the justified substitute.
var mimeTypeByExtension = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".csv":  "text/csv",
	".json": "application/json",
	".xml":  "application/xml",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".tar":  "application/x-tar",
	".gz":   "application/gzip",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

func guessMimeType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if mt, ok := mimeTypeByExtension[ext]; ok {
		return mt
	}
	return "application/octet-stream"
}
