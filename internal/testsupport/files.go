package testsupport

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// patternReader yields the bytes 0..250 repeatedly, so content differs
// between offsets and truncation shows up in a checksum.
type patternReader struct{ off int }

func (r *patternReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte((r.off + i) % 251)
	}
	r.off += len(p)
	return len(p), nil
}

// WriteFile writes size bytes of patterned content to path, creating parent
// directories, and returns the hex SHA-256 of what was written.
func WriteFile(t testing.TB, path string, size int64) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.CopyN(io.MultiWriter(f, hasher), &patternReader{}, size); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
