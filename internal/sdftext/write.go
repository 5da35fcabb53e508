package sdftext

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes stage text to path atomically: a temp file in
// the same directory, then a rename. Existing file permissions are
// preserved.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".usda-write-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}

	if info, err := os.Stat(path); err == nil {
		_ = os.Chmod(tmpName, info.Mode())
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename temp to %s: %w", path, err)
	}
	return nil
}

// SplicePrim replaces one prim block in a stage file with replacement
// text, leaving the rest of the file byte-for-byte untouched. origin
// must come from parsing the file's current content.
func SplicePrim(path string, origin Origin, replacement []byte) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read stage %s: %w", path, err)
	}

	if origin.Start > len(src) || origin.End > len(src) || origin.Start > origin.End {
		return fmt.Errorf("invalid byte range [%d:%d] for file of length %d", origin.Start, origin.End, len(src))
	}

	result := make([]byte, 0, origin.Start+len(replacement)+len(src)-origin.End)
	result = append(result, src[:origin.Start]...)
	result = append(result, replacement...)
	result = append(result, src[origin.End:]...)

	return WriteFileAtomic(path, result)
}
