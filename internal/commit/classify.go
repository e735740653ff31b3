package commit

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/standardbeagle/gik/internal/ignore"
	"github.com/standardbeagle/gik/internal/model"
)

const (
	defaultMaxFileBytes = 1 << 20 // 1 MiB, spec §4.4 step 3
	defaultMaxFileLines = 10000

	// headerSampleSize is how much of a candidate file headerCheck reads
	// before deciding whether the full read below is worth paying for.
	headerSampleSize = 64 * 1024
)

// fileCandidate is one file discovered under a pending source, not yet
// read or validated.
type fileCandidate struct {
	relPath string // slash-separated, relative to workspace
	absPath string
}

// enumerate walks a filePath/directory pending source into its candidate
// files, applying the ignore matcher (spec §4.4 step 2: project file then
// source-control, project wins on conflict — already encoded in
// ignore.Matcher.Match). For a single filePath target the candidate is the
// file itself (ignore-matched files return an empty, non-error result so
// the caller can fail that source cleanly).
func enumerate(workspace, uri string, isDir bool, matcher *ignore.Matcher) ([]fileCandidate, error) {
	abs := uri
	if !filepath.IsAbs(abs) {
		var err error
		abs, err = filepath.Abs(filepath.Join(workspace, uri))
		if err != nil {
			return nil, err
		}
	}

	if !isDir {
		rel, err := filepath.Rel(workspace, abs)
		if err != nil {
			rel = abs
		}
		if matcher.Match(rel, false) {
			return nil, nil
		}
		return []fileCandidate{{relPath: filepath.ToSlash(rel), absPath: abs}}, nil
	}

	var out []fileCandidate
	err := filepath.Walk(abs, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == abs {
			return nil
		}
		rel, relErr := filepath.Rel(workspace, path)
		if relErr != nil {
			return relErr
		}
		if matcher.Match(rel, info.IsDir()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		out = append(out, fileCandidate{relPath: filepath.ToSlash(rel), absPath: path})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// readChunk reads and validates one candidate file against the size/line
// cap and the header-sniffing check (spec §4.4 step 3, B1), returning its
// full text and line count, or an error describing why it was rejected.
func readChunk(c fileCandidate, maxBytes int64, maxLines int) (text string, lines int, err error) {
	info, err := os.Stat(c.absPath)
	if err != nil {
		return "", 0, err
	}
	if info.Size() > maxBytes {
		return "", 0, errTooLarge(c.relPath, "file exceeds the size cap")
	}
	if err := headerCheck(c.absPath, info.Size(), maxBytes); err != nil {
		return "", 0, err
	}

	data, err := os.ReadFile(c.absPath)
	if err != nil {
		return "", 0, err
	}
	lineCount := bytes.Count(data, []byte{'\n'}) + 1
	if lineCount > maxLines {
		return "", 0, errTooLarge(c.relPath, "file exceeds the line-count cap")
	}
	return string(data), lineCount, nil
}

type tooLargeError struct {
	path   string
	reason string
}

func (e *tooLargeError) Error() string { return e.path + ": " + e.reason }

func errTooLarge(path, reason string) error {
	return &tooLargeError{path: path, reason: reason}
}

// headerMagicBytes are the file signatures of the disguised-binary kinds
// spec §4.4 step 3 (B1) guards against: images, archives, and
// executables saved with a source-code extension.
var headerMagicBytes = [][]byte{
	{0x89, 0x50, 0x4E, 0x47}, // PNG
	{0xFF, 0xD8, 0xFF},       // JPEG
	{0x47, 0x49, 0x46, 0x38}, // GIF
	{0x25, 0x50, 0x44, 0x46}, // PDF
	{0x50, 0x4B, 0x03, 0x04}, // ZIP (also docx/jar/etc.)
	{0x4D, 0x5A},             // PE executable/DLL
	{0x7F, 0x45, 0x4C, 0x46}, // ELF
}

// headerCheck reads a candidate's header and rejects it if the header
// doesn't look like text, independent of what its extension claims. Only
// files past half the pipeline's configured size cap pay for this —
// smaller files aren't worth the extra read given spec §4.4's size cap
// already bounds the worst case.
func headerCheck(path string, size, maxBytes int64) error {
	if size <= maxBytes/2 {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open for header check: %w", err)
	}
	defer f.Close()

	sample := make([]byte, headerSampleSize)
	n, err := f.Read(sample)
	if err != nil && n == 0 {
		return fmt.Errorf("read header: %w", err)
	}
	sample = sample[:n]

	for _, magic := range headerMagicBytes {
		if bytes.HasPrefix(sample, magic) {
			return errors.New("file header matches a binary signature, not source text")
		}
	}

	nonPrintable := 0
	for _, b := range sample {
		if b < 9 || (b > 13 && b < 32) || b == 127 {
			nonPrintable++
		}
	}
	if len(sample) > 0 && float64(nonPrintable)/float64(len(sample)) > 0.3 {
		return errors.New("file header is mostly non-printable bytes, not source text")
	}
	return nil
}

// classifySource runs steps 2-4 of the pipeline for one pending source:
// ignore-rule filtering, enumeration, per-file size/content validation, and
// one-chunk-per-file assembly. It always returns at least one chunkAttempt
// (a failed one, if nothing could be read) so the caller can settle the
// source's terminal status.
func classifySource(cfg Config, baseName model.Base, src model.PendingSource) []chunkAttempt {
	switch src.Kind {
	case model.KindURL, model.KindArchive:
		return []chunkAttempt{{sourceID: src.ID, base: baseName, failure: "source kind not yet supported"}}
	}

	candidates, err := enumerate(cfg.Workspace, src.URI, src.Kind == model.KindDirectory, cfg.Matcher)
	if err != nil {
		return []chunkAttempt{{sourceID: src.ID, base: baseName, failure: err.Error()}}
	}
	if len(candidates) == 0 {
		return []chunkAttempt{{sourceID: src.ID, base: baseName, failure: "no files matched (ignored or empty directory)"}}
	}

	attempts := make([]chunkAttempt, 0, len(candidates))
	for _, cand := range candidates {
		text, lines, err := readChunk(cand, cfg.MaxFileBytes, cfg.MaxFileLines)
		if err != nil {
			attempts = append(attempts, chunkAttempt{sourceID: src.ID, base: baseName, failure: fmt.Sprintf("%s: %v", cand.relPath, err)})
			continue
		}
		attempts = append(attempts, chunkAttempt{
			sourceID: src.ID,
			base:     baseName,
			entry: model.BaseSourceEntry{
				ID:        fmt.Sprintf("%s:%s", baseName, cand.relPath),
				Base:      string(baseName),
				Path:      cand.relPath,
				StartLine: 1,
				EndLine:   lines,
				Text:      text,
			},
		})
	}
	return attempts
}
