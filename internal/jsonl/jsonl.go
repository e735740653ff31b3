// Package jsonl implements the two durability primitives spec §5 requires:
// atomic replace-by-rename for whole-file documents (HEAD, stats.json,
// VectorIndexMeta, …) and append-with-trailing-newline for logs, tolerating
// a partially written trailing record on read (timeline.jsonl,
// sources.jsonl, pending.jsonl, …).
package jsonl

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
)

// WriteAtomic serializes v as a single JSON document and replaces path via
// write-to-temp-in-same-dir then rename, so a crash mid-write never leaves
// a partially written file at path.
func WriteAtomic(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// ReadAtomic loads a single-document JSON file written by WriteAtomic. It
// returns os.ErrNotExist (wrapped) when the file is absent so callers can
// treat a missing file as "not yet written" per spec §5's concurrent-reader
// rule.
func ReadAtomic(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(v)
}

// Append appends one JSON-encoded record followed by a newline. Logs are
// opened O_APPEND so concurrent single-process appenders never interleave
// partial lines (spec §5 — an advisory file lock additionally serializes
// the timeline log's multi-step append in internal/timeline).
func Append(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = f.Write(b)
	if err != nil {
		return err
	}
	return f.Sync()
}

// ReadEach parses path line by line, invoking fn for every complete JSON
// record. A truncated final line (no trailing newline, or a partial JSON
// value) is detected and silently ignored rather than surfaced as an
// error — spec §5 requires a partially written trailing record to be
// "detected and ignored on read". A missing file yields zero calls and a
// nil error, since logs are created lazily on first write.
func ReadEach(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 && line[len(line)-1] == '\n' {
			trimmed := line[:len(line)-1]
			if len(trimmed) > 0 && json.Valid(trimmed) {
				if cbErr := fn(trimmed); cbErr != nil {
					return cbErr
				}
			}
		} else if len(line) > 0 {
			// Trailing bytes with no newline: either a truncated write in
			// progress or a crash mid-append. Either way, ignore it.
			break
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
	}
	return nil
}

// ReadAll collects every complete record via ReadEach into a slice using
// unmarshal.
func ReadAll[T any](path string) ([]T, error) {
	var out []T
	err := ReadEach(path, func(line []byte) error {
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			// ReadEach has already skipped lines that are not valid JSON;
			// a valid line that does not decode into T is surfaced.
			return err
		}
		out = append(out, v)
		return nil
	})
	return out, err
}

// CountLines returns the number of complete records without allocating a
// slice of them — used by BaseHealth's "documents" count (spec §4.11).
func CountLines(path string) (int, error) {
	n := 0
	err := ReadEach(path, func([]byte) error {
		n++
		return nil
	})
	return n, err
}
