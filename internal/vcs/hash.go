package vcs

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// HashContent computes the SHA-256 digest of content as a lowercase hex
// string. The digest is stored on every version and used to detect byte
// identical updates and store corruption.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// binarySniffLen is how many leading bytes are inspected for binary content.
const binarySniffLen = 8192

// IsBinaryContent checks if content appears to be binary rather than text.
func IsBinaryContent(content []byte) bool {
	if len(content) > binarySniffLen {
		content = content[:binarySniffLen]
	}

	if !utf8.Valid(content) {
		return true
	}

	// Null bytes are a strong binary signal even in valid UTF-8
	for _, b := range content {
		if b == 0 {
			return true
		}
	}

	return false
}

// mimeByExtension maps well-known file extensions to MIME types.
var mimeByExtension = map[string]string{
	".txt":  "text/plain",
	".py":   "text/x-python",
	".js":   "text/javascript",
	".ts":   "text/typescript",
	".html": "text/html",
	".css":  "text/css",
	".json": "application/json",
	".xml":  "application/xml",
	".md":   "text/markdown",
	".java": "text/x-java",
	".cpp":  "text/x-c++",
	".c":    "text/x-c",
	".go":   "text/x-go",
	".rs":   "text/x-rust",
	".sql":  "application/sql",
	".sh":   "application/x-sh",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
}

// DetectMIMEType guesses a MIME type from the filename extension, falling
// back to application/octet-stream.
func DetectMIMEType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if mime, ok := mimeByExtension[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}
