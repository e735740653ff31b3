// Package retrieval implements the hybrid ask pipeline (spec §4.6): base
// resolution, dense+sparse retrieval, reciprocal rank fusion, filename
// boosting, cross-encoder reranking, memory/code-docs partitioning, and
// bounded knowledge-graph expansion.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hbollon/go-edlib"

	"github.com/standardbeagle/gik/internal/basestore"
	"github.com/standardbeagle/gik/internal/embedding"
	gikerrors "github.com/standardbeagle/gik/internal/errors"
	"github.com/standardbeagle/gik/internal/jsonl"
	"github.com/standardbeagle/gik/internal/kg"
	"github.com/standardbeagle/gik/internal/memory"
	"github.com/standardbeagle/gik/internal/model"
	"github.com/standardbeagle/gik/internal/vectorindex"
)

const rrfK = 60

// Config wires the collaborators shared across every ask invocation.
// Bases holds the vector/BM25 handle for every base this process can
// query, including "memory" (opened at the same directory
// memory.Store.Dir() uses, per internal/memory's doc comment) — but
// memory's entry log has its own richer schema, so MemoryStore is
// consulted instead of Bases["memory"].Sources() for chunk text and
// scope/source/tags metadata.
type Config struct {
	Provider      string
	VectorBackend string
	Embedder      embedding.Embedder
	Reranker      embedding.Reranker

	Bases       map[model.Base]*basestore.Base
	MemoryStore *memory.Store
	KG          *kg.Store

	AskLogPath string

	DensePoolSize       int
	SparsePoolSize      int
	RerankPoolSize      int
	FinalK              int
	FilenameBoost       float64
	FilenameSimThreshold float64
	MaxHops             int
	MaxSubgraphs        int
	MaxNodesPerSubgraph int
	MaxEdgesPerSubgraph int
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.DensePoolSize <= 0 {
		out.DensePoolSize = 30
	}
	if out.SparsePoolSize <= 0 {
		out.SparsePoolSize = 30
	}
	if out.RerankPoolSize <= 0 {
		out.RerankPoolSize = 30
	}
	if out.FinalK <= 0 {
		out.FinalK = 5
	}
	if out.FilenameBoost <= 0 {
		out.FilenameBoost = 1.25
	}
	if out.FilenameSimThreshold <= 0 {
		out.FilenameSimThreshold = 0.85
	}
	if out.MaxHops <= 0 {
		out.MaxHops = 2
	}
	if out.MaxSubgraphs <= 0 {
		out.MaxSubgraphs = 3
	}
	if out.MaxNodesPerSubgraph <= 0 {
		out.MaxNodesPerSubgraph = 32
	}
	if out.MaxEdgesPerSubgraph <= 0 {
		out.MaxEdgesPerSubgraph = 48
	}
	return out
}

// Options parameterizes one ask invocation.
type Options struct {
	Branch        string
	Question      string
	Bases         []string // empty means "default to every compatible base"
	TopK          int
	IncludeMemory bool
	Rerank        bool
	// QueryVariants are additional phrasings to average into the dense
	// query centroid (spec §4.6 step 2). Near-duplicates of Question (by
	// Jaro-Winkler) are dropped before embedding.
	QueryVariants []string
	HeadRevision  string
}

type candidate struct {
	chunkID    string
	base       model.Base
	path       string
	text       string
	denseRank  int // 0 = not present
	sparseRank int
	fused      float64
	rerank     *float64
}

// Ask runs the full pipeline and returns the resulting bundle. revisionID
// is HEAD at call time (the caller resolves it from internal/timeline so
// this package has no direct timeline dependency).
func Ask(ctx context.Context, cfg Config, opts Options) (model.AskContextBundle, error) {
	cfg = cfg.withDefaults()

	bases, err := resolveBases(cfg, opts.Bases)
	if err != nil {
		return model.AskContextBundle{}, err
	}
	if !opts.IncludeMemory {
		delete(bases, model.BaseMemory)
	}
	if len(bases) == 0 {
		return model.AskContextBundle{}, gikerrors.New(gikerrors.BaseNotIndexed, "retrieval", opts.Question, "commit at least one base before asking", nil)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = cfg.FinalK
	}

	embedStart := time.Now()
	centroid, err := expandAndEmbed(ctx, cfg.Embedder, opts.Question, opts.QueryVariants)
	if err != nil {
		return model.AskContextBundle{}, gikerrors.New(gikerrors.EmbeddingProviderUnavailable, "retrieval", opts.Question, "check the embedding provider configuration", err)
	}
	embedTimeMs := time.Since(embedStart).Milliseconds()

	searchStart := time.Now()
	candidates := make(map[string]*candidate)
	perBaseCounts := make(map[string]int)
	usedBases := make([]string, 0, len(bases))
	for name := range bases {
		usedBases = append(usedBases, string(name))
	}
	sort.Strings(usedBases)

	memEntries := make(map[string]model.MemoryEntry)
	for _, baseName := range usedBases {
		base := bases[model.Base(baseName)]

		var textByID map[string]model.BaseSourceEntry
		if model.Base(baseName) == model.BaseMemory && cfg.MemoryStore != nil {
			live, err := cfg.MemoryStore.All()
			if err != nil {
				return model.AskContextBundle{}, err
			}
			textByID = make(map[string]model.BaseSourceEntry, len(live))
			for _, e := range live {
				memEntries[e.ID] = e
				textByID[e.ID] = model.BaseSourceEntry{ID: e.ID, Base: string(model.BaseMemory), Text: e.Text}
			}
		} else {
			entries, err := base.Sources()
			if err != nil {
				return model.AskContextBundle{}, err
			}
			textByID = make(map[string]model.BaseSourceEntry, len(entries))
			for _, e := range entries {
				textByID[e.ID] = e
			}
		}

		hits, err := base.Vector.Query(ctx, centroid, max(topK, cfg.DensePoolSize), nil)
		if err != nil {
			return model.AskContextBundle{}, err
		}
		for rank, h := range hits {
			chunkID, _ := h.Payload["chunkId"].(string)
			if chunkID == "" {
				continue
			}
			c := getOrCreate(candidates, chunkID, model.Base(baseName), textByID)
			c.denseRank = rank + 1
		}

		bmIdx, err := base.BM25()
		if err != nil {
			return model.AskContextBundle{}, err
		}
		sparseHits := bmIdx.Search(opts.Question, max(topK, cfg.SparsePoolSize))
		for rank, h := range sparseHits {
			c := getOrCreate(candidates, h.ChunkID, model.Base(baseName), textByID)
			c.sparseRank = rank + 1
		}

		perBaseCounts[baseName] = len(hits) + len(sparseHits)
	}
	searchTimeMs := time.Since(searchStart).Milliseconds()

	// Step 5: reciprocal rank fusion.
	fused := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.denseRank > 0 {
			c.fused += 1.0 / float64(rrfK+c.denseRank)
		}
		if c.sparseRank > 0 {
			c.fused += 1.0 / float64(rrfK+c.sparseRank)
		}
		fused = append(fused, c)
	}

	// Step 6: filename boost.
	filenameTokens := detectFilenameTokens(opts.Question)
	if len(filenameTokens) > 0 {
		for _, c := range fused {
			if pathMatchesAnyToken(c.path, filenameTokens, cfg.FilenameSimThreshold) {
				c.fused *= cfg.FilenameBoost
			}
		}
	}

	sortCandidates(fused)
	if len(fused) > cfg.RerankPoolSize {
		fused = fused[:cfg.RerankPoolSize]
	}

	// Step 7: cross-encoder rerank.
	if opts.Rerank && cfg.Reranker != nil && len(fused) > 0 {
		docs := make([]string, len(fused))
		for i, c := range fused {
			docs[i] = c.text
		}
		scores, err := cfg.Reranker.Rerank(ctx, opts.Question, docs)
		if err != nil {
			return model.AskContextBundle{}, gikerrors.New(gikerrors.RerankerUnavailable, "retrieval", opts.Question, "disable reranking or check the reranker configuration", err)
		}
		if len(scores) != len(fused) {
			return model.AskContextBundle{}, gikerrors.New(gikerrors.RerankerUnavailable, "retrieval", opts.Question, "reranker returned the wrong number of scores", nil)
		}
		for i, s := range scores {
			score := s
			fused[i].rerank = &score
		}
		sort.SliceStable(fused, func(i, j int) bool { return *fused[i].rerank > *fused[j].rerank })
	}

	if len(fused) > topK {
		fused = fused[:topK]
	}

	// Step 8: partition.
	var ragChunks []model.RagChunk
	var memoryEvents []model.MemoryEvent
	for _, c := range fused {
		score := c.fused
		if c.rerank != nil {
			score = *c.rerank
		}
		if c.base == model.BaseMemory {
			me := memEntries[c.chunkID]
			memoryEvents = append(memoryEvents, model.MemoryEvent{
				EntryID: c.chunkID,
				Text:    c.text,
				Scope:   me.Scope,
				Source:  me.Source,
				Tags:    me.Tags,
				Score:   score,
			})
			continue
		}
		rc := model.RagChunk{
			ChunkID: c.chunkID,
			Base:    string(c.base),
			Path:    c.path,
			Text:    c.text,
			Score:   c.fused,
		}
		if c.rerank != nil {
			rc.RerankScore = c.rerank
		}
		ragChunks = append(ragChunks, rc)
	}

	// Step 9: KG expansion.
	var kgResults []model.KgSubgraph
	if cfg.KG != nil && len(ragChunks) > 0 {
		kgResults, err = expandKG(cfg.KG, ragChunks, cfg.MaxHops, cfg.MaxSubgraphs, cfg.MaxNodesPerSubgraph, cfg.MaxEdgesPerSubgraph)
		if err != nil {
			return model.AskContextBundle{}, err
		}
	}

	bundle := model.AskContextBundle{
		RevisionID:   opts.HeadRevision,
		Question:     opts.Question,
		Bases:        usedBases,
		RagChunks:    ragChunks,
		KgResults:    kgResults,
		MemoryEvents: memoryEvents,
		Debug: model.AskDebug{
			EmbeddingModelID: cfg.Embedder.ModelID(),
			UsedBases:        usedBases,
			PerBaseCounts:    perBaseCounts,
			EmbedTimeMs:      embedTimeMs,
			SearchTimeMs:     searchTimeMs,
		},
	}

	// Step 11: ask log (failed queries never reach here, since any error
	// above returns before this point).
	if cfg.AskLogPath != "" {
		_ = jsonl.Append(cfg.AskLogPath, model.AskLogEntry{
			Timestamp: time.Now().UTC(),
			Branch:    opts.Branch,
			Question:  opts.Question,
			Bases:     usedBases,
			TotalHits: len(ragChunks) + len(memoryEvents),
		})
	}

	return bundle, nil
}

func getOrCreate(candidates map[string]*candidate, chunkID string, base model.Base, textByID map[string]model.BaseSourceEntry) *candidate {
	if c, ok := candidates[chunkID]; ok {
		return c
	}
	entry := textByID[chunkID]
	c := &candidate{chunkID: chunkID, base: base, path: entry.Path, text: entry.Text}
	candidates[chunkID] = c
	return c
}

func sortCandidates(cands []*candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].fused != cands[j].fused {
			return cands[i].fused > cands[j].fused
		}
		return bestRank(cands[i]) < bestRank(cands[j])
	})
}

func bestRank(c *candidate) int {
	best := 0
	if c.denseRank > 0 {
		best = c.denseRank
	}
	if c.sparseRank > 0 && (best == 0 || c.sparseRank < best) {
		best = c.sparseRank
	}
	return best
}

// resolveBases maps requested base names onto handles, applying spec
// §4.6 step 1: explicit requests for a mismatched base are refused;
// an unfiltered request silently drops anything not Compatible.
func resolveBases(cfg Config, requested []string) (map[model.Base]*basestore.Base, error) {
	out := make(map[model.Base]*basestore.Base)
	if len(requested) == 0 {
		for name, base := range cfg.Bases {
			if compatible(cfg, base) {
				out[name] = base
			}
		}
		return out, nil
	}
	for _, r := range requested {
		name := model.Base(r)
		base, ok := cfg.Bases[name]
		if !ok {
			return nil, gikerrors.New(gikerrors.BaseNotIndexed, "retrieval", r, "commit this base before asking", nil)
		}
		if !compatible(cfg, base) {
			return nil, gikerrors.New(gikerrors.BaseEmbeddingIncompatible, "retrieval", r, "run reindex for this base before asking", nil)
		}
		out[name] = base
	}
	return out, nil
}

func compatible(cfg Config, base *basestore.Base) bool {
	info, exists, err := base.ModelInfo()
	if err != nil || !exists {
		return false
	}
	meta, metaExists, err := base.Vector.Meta()
	if err != nil || !metaExists {
		return false
	}
	_, _, health := vectorindex.HealthOf(cfg.Provider, cfg.Embedder.ModelID(), cfg.Embedder.Dimensions(), cfg.VectorBackend, &info, &meta)
	return health == "Healthy"
}

// expandAndEmbed embeds question plus any sufficiently-distinct variants
// and averages the resulting vectors into one centroid (spec §4.6 step 2:
// "the only allowed transform of the dense query representation").
func expandAndEmbed(ctx context.Context, embedder embedding.Embedder, question string, variants []string) ([]float32, error) {
	texts := []string{question}
	for _, v := range variants {
		sim, err := edlib.StringsSimilarity(strings.ToLower(v), strings.ToLower(question), edlib.JaroWinkler)
		if err == nil && sim >= 0.95 {
			continue // near-duplicate of the question, skip
		}
		texts = append(texts, v)
	}
	vecs, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("no query vectors produced")
	}
	dim := len(vecs[0])
	centroid := make([]float32, dim)
	for _, v := range vecs {
		for i := 0; i < dim && i < len(v); i++ {
			centroid[i] += v[i]
		}
	}
	n := float32(len(vecs))
	for i := range centroid {
		centroid[i] /= n
	}
	return centroid, nil
}

// detectFilenameTokens finds question tokens that look like a filename: a
// dot, a slash, or a known extension (spec §4.6 step 6).
func detectFilenameTokens(question string) []string {
	var tokens []string
	for _, tok := range strings.Fields(question) {
		tok = strings.Trim(tok, ".,;:!?'\"()[]{}")
		if tok == "" {
			continue
		}
		if strings.Contains(tok, "/") || strings.Contains(tok, ".") {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// pathMatchesAnyToken reports whether path contains (exactly, or fuzzily
// via Jaro-Winkler similarity against its final path segment) any
// detected filename token.
func pathMatchesAnyToken(path string, tokens []string, threshold float64) bool {
	base := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		base = path[idx+1:]
	}
	for _, tok := range tokens {
		if strings.Contains(path, tok) {
			return true
		}
		sim, err := edlib.StringsSimilarity(strings.ToLower(base), strings.ToLower(tok), edlib.JaroWinkler)
		if err == nil && sim >= threshold {
			return true
		}
	}
	return false
}

// expandKG runs a bounded BFS from each distinct ragChunk path's file
// node, producing at most maxSubgraphs disjoint subgraphs (spec §4.6
// step 9).
func expandKG(store *kg.Store, chunks []model.RagChunk, maxHops, maxSubgraphs, maxNodes, maxEdges int) ([]model.KgSubgraph, error) {
	nodes, err := store.Nodes()
	if err != nil {
		return nil, err
	}
	edges, err := store.Edges()
	if err != nil {
		return nil, err
	}
	nodeByID := make(map[string]model.KgNode, len(nodes))
	for _, n := range nodes {
		nodeByID[n.ID] = n
	}
	adjacency := make(map[string][]model.KgEdge)
	for _, e := range edges {
		adjacency[e.From] = append(adjacency[e.From], e)
		adjacency[e.To] = append(adjacency[e.To], e)
	}

	var roots []string
	seen := make(map[string]bool)
	for _, c := range chunks {
		root := "file:" + c.Path
		if seen[root] {
			continue
		}
		seen[root] = true
		if _, ok := nodeByID[root]; ok {
			roots = append(roots, root)
		}
	}

	used := make(map[string]bool)
	var subgraphs []model.KgSubgraph
	for _, root := range roots {
		if len(subgraphs) >= maxSubgraphs {
			break
		}
		if used[root] {
			continue
		}
		subNodes, subEdges := bfs(root, adjacency, nodeByID, used, maxHops, maxNodes, maxEdges)
		if len(subNodes) == 0 {
			continue
		}
		subgraphs = append(subgraphs, model.KgSubgraph{
			Roots:  []string{root},
			Nodes:  subNodes,
			Edges:  subEdges,
			Reason: fmt.Sprintf("within %d hop(s) of %s", maxHops, root),
		})
	}
	return subgraphs, nil
}

func bfs(root string, adjacency map[string][]model.KgEdge, nodeByID map[string]model.KgNode, globalUsed map[string]bool, maxHops, maxNodes, maxEdges int) ([]model.KgNode, []model.KgEdge) {
	type frontierEntry struct {
		id   string
		hops int
	}
	visited := map[string]bool{root: true}
	queue := []frontierEntry{{id: root, hops: 0}}

	var outNodes []model.KgNode
	var outEdges []model.KgEdge
	edgeSeen := make(map[string]bool)

	if n, ok := nodeByID[root]; ok {
		outNodes = append(outNodes, n)
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.hops >= maxHops {
			continue
		}
		for _, e := range adjacency[cur.id] {
			if len(outEdges) >= maxEdges || len(outNodes) >= maxNodes {
				break
			}
			next := e.To
			if next == cur.id {
				next = e.From
			}
			if globalUsed[next] && !visited[next] {
				continue // already claimed by an earlier subgraph, keep subgraphs disjoint
			}
			if !edgeSeen[e.ID] {
				edgeSeen[e.ID] = true
				outEdges = append(outEdges, e)
			}
			if !visited[next] {
				visited[next] = true
				if n, ok := nodeByID[next]; ok && len(outNodes) < maxNodes {
					outNodes = append(outNodes, n)
				}
				queue = append(queue, frontierEntry{id: next, hops: cur.hops + 1})
			}
		}
	}

	for _, n := range outNodes {
		globalUsed[n.ID] = true
	}
	return outNodes, outEdges
}
