package bm25

import (
	"math"
	"sync"
)

const (
	k1 = 1.2
	b  = 0.75
)

// posting is one (docID, term frequency) pair.
type posting struct {
	DocID uint32
	TF    int
}

// Index is an in-memory BM25 index for one base. Loaded lazily and cached
// per process (spec §5), rewritten in full on every update (spec §4.7:
// "writes are full rewrites... small indices make incremental updates
// unnecessary for current scale").
type Index struct {
	mu sync.RWMutex

	Postings  map[string][]posting
	DocLength map[uint32]int
	ChunkByID map[uint32]string // docID -> chunk id (the BaseSourceEntry.ID)
	idByChunk map[string]uint32
	TotalLen  int
	nextDocID uint32
}

func NewIndex() *Index {
	return &Index{
		Postings:  make(map[string][]posting),
		DocLength: make(map[uint32]int),
		ChunkByID: make(map[uint32]string),
		idByChunk: make(map[string]uint32),
	}
}

// AddDocument tokenizes text and adds its postings under chunkID. Adding
// the same chunkID twice replaces the earlier postings (used by reindex's
// full rebuild).
func (idx *Index) AddDocument(chunkID, text string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing, ok := idx.idByChunk[chunkID]; ok {
		idx.removeDocLocked(existing)
	}

	docID := idx.nextDocID
	idx.nextDocID++
	idx.idByChunk[chunkID] = docID
	idx.ChunkByID[docID] = chunkID

	tokens := Tokenize(text)
	tf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}
	idx.DocLength[docID] = len(tokens)
	idx.TotalLen += len(tokens)
	for term, count := range tf {
		idx.Postings[term] = append(idx.Postings[term], posting{DocID: docID, TF: count})
	}
}

func (idx *Index) removeDocLocked(docID uint32) {
	length := idx.DocLength[docID]
	idx.TotalLen -= length
	delete(idx.DocLength, docID)
	delete(idx.ChunkByID, docID)
	for term, postings := range idx.Postings {
		filtered := postings[:0]
		for _, p := range postings {
			if p.DocID != docID {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) == 0 {
			delete(idx.Postings, term)
		} else {
			idx.Postings[term] = filtered
		}
	}
}

// Remove drops chunkID's postings entirely (used by memory pruning).
func (idx *Index) Remove(chunkID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if docID, ok := idx.idByChunk[chunkID]; ok {
		idx.removeDocLocked(docID)
		delete(idx.idByChunk, chunkID)
	}
}

// Reset clears the index, used before a reindex full rebuild.
func (idx *Index) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.Postings = make(map[string][]posting)
	idx.DocLength = make(map[uint32]int)
	idx.ChunkByID = make(map[uint32]string)
	idx.idByChunk = make(map[string]uint32)
	idx.TotalLen = 0
	idx.nextDocID = 0
}

func (idx *Index) avgDocLength() float64 {
	if len(idx.DocLength) == 0 {
		return 0
	}
	return float64(idx.TotalLen) / float64(len(idx.DocLength))
}

// Hit is one scored BM25 result.
type Hit struct {
	ChunkID string
	Score   float64
}

// Search tokenizes query and scores every document containing at least
// one query term using the BM25 formula in spec §4.7, returning the top-k
// by descending score.
func (idx *Index) Search(query string, topK int) []Hit {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	terms := Tokenize(query)
	if len(terms) == 0 || len(idx.DocLength) == 0 {
		return nil
	}
	avgdl := idx.avgDocLength()
	n := float64(len(idx.DocLength))

	scores := make(map[uint32]float64)
	for _, term := range terms {
		postings := idx.Postings[term]
		df := float64(len(postings))
		if df == 0 {
			continue
		}
		idf := math.Log((n-df+0.5)/(df+0.5) + 1)
		for _, p := range postings {
			dl := float64(idx.DocLength[p.DocID])
			tf := float64(p.TF)
			denom := tf + k1*(1-b+b*dl/avgdl)
			scores[p.DocID] += idf * (tf * (k1 + 1)) / denom
		}
	}

	hits := make([]Hit, 0, len(scores))
	for docID, score := range scores {
		hits = append(hits, Hit{ChunkID: idx.ChunkByID[docID], Score: score})
	}
	sortHitsDesc(hits)
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

func sortHitsDesc(hits []Hit) {
	// Simple insertion sort is fine: per-base result sets are small
	// (chunk-per-file, pool sizes in the tens per spec §4.6).
	for i := 1; i < len(hits); i++ {
		j := i
		for j > 0 && hits[j-1].Score < hits[j].Score {
			hits[j-1], hits[j] = hits[j], hits[j-1]
			j--
		}
	}
}

// Count returns the number of documents currently indexed.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.DocLength)
}
