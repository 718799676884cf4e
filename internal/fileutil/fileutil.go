package fileutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Written describes a file produced by WriteStream.
type Written struct {
	Path   string
	Bytes  int64
	SHA256 string
}

// WriteStream copies r into dst through a temporary file in the same
// directory, so dst either holds the complete content or does not exist.
// The temporary file is removed on every failure path.
func WriteStream(dst string, r io.Reader, mode os.FileMode) (Written, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Written{}, fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.part")
	if err != nil {
		return Written{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		return Written{}, fmt.Errorf("copy data: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return Written{}, fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Written{}, fmt.Errorf("close: %w", err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return Written{}, fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return Written{}, fmt.Errorf("rename into place: %w", err)
	}
	committed = true
	return Written{Path: dst, Bytes: written, SHA256: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// CopyFileVerified copies src to dst with WriteStream and checks the copy
// against the source size and SHA256. dst is removed on mismatch.
func CopyFileVerified(src, dst string) (Written, error) {
	in, err := os.Open(src)
	if err != nil {
		return Written{}, err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return Written{}, fmt.Errorf("stat source: %w", err)
	}
	srcHasher := sha256.New()
	out, err := WriteStream(dst, io.TeeReader(in, srcHasher), info.Mode().Perm())
	if err != nil {
		return Written{}, err
	}
	if out.Bytes != info.Size() {
		_ = os.Remove(dst)
		return Written{}, fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", info.Size(), out.Bytes)
	}
	sum, _ := hex.DecodeString(out.SHA256)
	if !bytes.Equal(srcHasher.Sum(nil), sum) {
		_ = os.Remove(dst)
		return Written{}, fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}
	return out, nil
}
