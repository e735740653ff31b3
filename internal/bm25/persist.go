package bm25

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"

	gikerrors "github.com/standardbeagle/gik/internal/errors"
)

// snapshot is the serializable form of Index — gob gives a single stable
// binary blob per base (spec §4.7) without hand-rolling a wire format, the
// same "reach for the stdlib encoder, not a bespoke format" choice the
// teacher makes for its own index snapshots.
type snapshot struct {
	Postings  map[string][]posting
	DocLength map[uint32]int
	ChunkByID map[uint32]string
	TotalLen  int
	NextDocID uint32
}

// Save writes idx to path via temp-then-rename (spec §5 crash safety: the
// BM25 binary blob is one of the files named as needing atomic
// replacement).
func Save(idx *Index, path string) error {
	idx.mu.RLock()
	snap := snapshot{
		Postings:  idx.Postings,
		DocLength: idx.DocLength,
		ChunkByID: idx.ChunkByID,
		TotalLen:  idx.TotalLen,
		NextDocID: idx.nextDocID,
	}
	idx.mu.RUnlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return gikerrors.New(gikerrors.SerializationFailed, "bm25.Save", path, "report this as a bug", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return gikerrors.New(gikerrors.IoFailed, "bm25.Save", path, "check directory permissions", err)
	}
	tmp, err := os.CreateTemp(dir, ".bm25-tmp-*")
	if err != nil {
		return gikerrors.New(gikerrors.IoFailed, "bm25.Save", path, "check directory permissions", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return gikerrors.New(gikerrors.IoFailed, "bm25.Save", path, "check disk space", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return gikerrors.New(gikerrors.IoFailed, "bm25.Save", path, "check disk space", err)
	}
	return os.Rename(tmpName, path)
}

// Load reads a BM25 snapshot written by Save. A missing file yields a
// fresh empty index rather than an error, since the index is created
// lazily on first write (spec §4.7).
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewIndex(), nil
		}
		return nil, gikerrors.New(gikerrors.IoFailed, "bm25.Load", path, "check file permissions", err)
	}
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return nil, gikerrors.New(gikerrors.SerializationFailed, "bm25.Load", path, "the index may be corrupt; reindex this base", err)
	}
	idx := NewIndex()
	idx.Postings = snap.Postings
	idx.DocLength = snap.DocLength
	idx.ChunkByID = snap.ChunkByID
	idx.TotalLen = snap.TotalLen
	idx.nextDocID = snap.NextDocID
	idx.idByChunk = make(map[string]uint32, len(snap.ChunkByID))
	for docID, chunkID := range snap.ChunkByID {
		idx.idByChunk[chunkID] = docID
	}
	return idx, nil
}
