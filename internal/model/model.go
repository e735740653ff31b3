// Package model holds the on-disk data model shared by every component
// (spec §3). Every type here round-trips through JSON/JSONL unchanged;
// unknown fields are ignored on read so forward-compatible additions are
// safe (spec §3 preamble).
package model

import "time"

// Base names the well-known logical containers a branch owns.
type Base string

const (
	BaseCode   Base = "code"
	BaseDocs   Base = "docs"
	BaseMemory Base = "memory"
	BaseStack  Base = "stack"
	BaseKG     Base = "kg"
)

// OperationKind tags the Revision.Operations union (spec §3 Revision).
type OperationKind string

const (
	OpInit         OperationKind = "Init"
	OpCommit       OperationKind = "Commit"
	OpMemoryIngest OperationKind = "MemoryIngest"
	OpMemoryPrune  OperationKind = "MemoryPrune"
	OpReindex      OperationKind = "Reindex"
	OpRelease      OperationKind = "Release"
	OpCustom       OperationKind = "Custom"
)

// Operation is a tagged union member of Revision.Operations. Only the
// fields relevant to Kind are populated; readers switch on Kind.
type Operation struct {
	Kind OperationKind `json:"kind"`

	// Commit
	Bases       []string `json:"bases,omitempty"`
	SourceCount int      `json:"sourceCount,omitempty"`

	// MemoryIngest / MemoryPrune
	Count         int `json:"count,omitempty"`
	ArchivedCount int `json:"archivedCount,omitempty"`
	DeletedCount  int `json:"deletedCount,omitempty"`

	// Reindex
	Base        string `json:"base,omitempty"`
	FromModelID string `json:"fromModelId,omitempty"`
	ToModelID   string `json:"toModelId,omitempty"`

	// Release
	Tag string `json:"tag,omitempty"`

	// Custom
	Name string `json:"name,omitempty"`
	Data any    `json:"data,omitempty"`
}

// Revision is one immutable append to a branch's timeline (spec §3).
type Revision struct {
	ID         string      `json:"id"`
	ParentID   string      `json:"parentId,omitempty"`
	Branch     string      `json:"branch"`
	GitCommit  string      `json:"gitCommit,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Message    string      `json:"message"`
	Operations []Operation `json:"operations"`
}

// IsInit reports whether this is the single no-parent revision permitted
// per branch (spec §3 invariant 2).
func (r Revision) IsInit() bool {
	return r.ParentID == ""
}

// PendingSourceKind classifies a staged target (spec §3 PendingSource).
type PendingSourceKind string

const (
	KindFilePath  PendingSourceKind = "filePath"
	KindDirectory PendingSourceKind = "directory"
	KindURL       PendingSourceKind = "url"
	KindArchive   PendingSourceKind = "archive"
	KindOther     PendingSourceKind = "other"
)

// PendingSourceStatus is the staging lifecycle state (spec §3).
type PendingSourceStatus string

const (
	StatusPending    PendingSourceStatus = "pending"
	StatusProcessing PendingSourceStatus = "processing"
	StatusIndexed    PendingSourceStatus = "indexed"
	StatusFailed     PendingSourceStatus = "failed"
)

// IsTerminal reports whether status is a terminal state (spec invariant 5:
// no terminal PendingSource ever returns to a non-terminal status).
func (s PendingSourceStatus) IsTerminal() bool {
	return s == StatusIndexed || s == StatusFailed
}

// PendingSource is a staged item awaiting ingestion (spec §3).
type PendingSource struct {
	ID        string              `json:"id"`
	Branch    string              `json:"branch"`
	Base      string              `json:"base"`
	Kind      PendingSourceKind   `json:"kind"`
	URI       string              `json:"uri"`
	AddedAt   time.Time           `json:"addedAt"`
	Status    PendingSourceStatus `json:"status"`
	LastError string              `json:"lastError,omitempty"`
	Metadata  map[string]any      `json:"metadata,omitempty"`
}

// DedupeKey is the uniqueness key for staging (spec §3: (branch, base,
// normalized-uri)).
func (p PendingSource) DedupeKey() string {
	return p.Branch + "\x00" + p.Base + "\x00" + p.URI
}

// StagingSummary is the recomputable aggregate over the pending log
// (spec §3, invariant 4).
type StagingSummary struct {
	PendingCount  int            `json:"pendingCount"`
	IndexedCount  int            `json:"indexedCount"`
	FailedCount   int            `json:"failedCount"`
	ByBase        map[string]int `json:"byBase"`
	LastUpdatedAt time.Time      `json:"lastUpdatedAt"`
}

// BaseSourceEntry is one indexed chunk (spec §3).
type BaseSourceEntry struct {
	ID        string         `json:"id"`
	Base      string         `json:"base"`
	Path      string         `json:"path"`
	StartLine int            `json:"startLine"`
	EndLine   int            `json:"endLine"`
	Text      string         `json:"text,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// ModelInfo is persisted per base and compared against the active
// embedding configuration to gate queries (spec §3, §4.4 step 1).
type ModelInfo struct {
	Provider       string     `json:"provider"`
	ModelID        string     `json:"modelId"`
	Dimension      int        `json:"dimension"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastReindexedAt *time.Time `json:"lastReindexedAt,omitempty"`
}

// VectorMetric is the similarity function a vector backend was created
// with (spec §3 VectorIndexMeta).
type VectorMetric string

const (
	MetricCosine VectorMetric = "cosine"
	MetricDot    VectorMetric = "dot"
	MetricL2     VectorMetric = "l2"
)

// VectorIndexMeta is persisted per base alongside vector storage (spec §3).
type VectorIndexMeta struct {
	Backend             string       `json:"backend"`
	Metric              VectorMetric `json:"metric"`
	Dimension           int          `json:"dimension"`
	Base                string       `json:"base"`
	EmbeddingProvider    string       `json:"embeddingProvider"`
	EmbeddingModelID     string       `json:"embeddingModelId"`
	CreatedAt            time.Time    `json:"createdAt"`
	UpdatedAt            time.Time    `json:"updatedAt"`
}

// VectorRecord is one row in a vector backend (spec §3).
type VectorRecord struct {
	ID        uint64         `json:"id"`
	Embedding []float32      `json:"embedding"`
	Payload   map[string]any `json:"payload"`
}

// MemoryScope / MemorySource / MemoryEntry (spec §3).
type MemoryScope string

const (
	ScopeProject MemoryScope = "project"
	ScopeBranch  MemoryScope = "branch"
	ScopeGlobal  MemoryScope = "global"
)

type MemorySource string

const (
	SourceManualNote       MemorySource = "manualNote"
	SourceDecision         MemorySource = "decision"
	SourceObservation      MemorySource = "observation"
	SourceExternalReference MemorySource = "externalReference"
	SourceAgentGenerated   MemorySource = "agentGenerated"
	SourceCommitContext    MemorySource = "commitContext"
)

type MemoryEntry struct {
	ID             string       `json:"id"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
	Scope          MemoryScope  `json:"scope"`
	Source         MemorySource `json:"source"`
	Title          string       `json:"title,omitempty"`
	Text           string       `json:"text"`
	Tags           []string     `json:"tags,omitempty"`
	Branch         string       `json:"branch,omitempty"`
	OriginRevision string       `json:"originRevision,omitempty"`
	Importance     *float64     `json:"importance,omitempty"`
}

// PruningMode controls what happens to an evicted memory entry (spec §3).
type PruningMode string

const (
	PruneDelete  PruningMode = "delete"
	PruneArchive PruningMode = "archive"
)

// MemoryPruningPolicy is read from memory/config.json (spec §3, §4.10).
type MemoryPruningPolicy struct {
	MaxEntries          *int        `json:"maxEntries,omitempty"`
	MaxEstimatedTokens   *int        `json:"maxEstimatedTokens,omitempty"`
	MaxAgeDays           *int        `json:"maxAgeDays,omitempty"`
	ObsoleteTags         []string    `json:"obsoleteTags,omitempty"`
	Mode                 PruningMode `json:"mode"`
}

// KgNode / KgEdge (spec §3).
type KgNode struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Label     string         `json:"label"`
	Props     map[string]any `json:"props,omitempty"`
	Branch    string         `json:"branch,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type KgEdge struct {
	ID        string         `json:"id"`
	From      string         `json:"from"`
	To        string         `json:"to"`
	Kind      string         `json:"kind"`
	Props     map[string]any `json:"props,omitempty"`
	Branch    string         `json:"branch,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// KG edge kinds recognized by spec §3.
const (
	EdgeImports         = "imports"
	EdgeDefines         = "defines"
	EdgeDefinesEndpoint = "definesEndpoint"
	EdgeCalls           = "calls"
	EdgeContains        = "contains"
	EdgeExtends         = "extends"
	EdgeImplements      = "implements"
	EdgeUsesClass       = "usesClass"
	EdgeUsesUiComponent = "usesUiComponent"
	EdgeBelongsToModule = "belongsToModule"
	EdgeDependsOn       = "dependsOn"
	EdgeRelatedTo       = "relatedTo"
)

// Stack entities (spec §3).
type StackEntryKind string

const (
	StackDir  StackEntryKind = "Dir"
	StackFile StackEntryKind = "File"
)

type StackFileEntry struct {
	Path      string         `json:"path"`
	Kind      StackEntryKind `json:"kind"`
	Languages []string       `json:"languages,omitempty"`
	FileCount *int           `json:"fileCount,omitempty"`
}

type StackDependencyEntry struct {
	Manager      string `json:"manager"`
	Name         string `json:"name"`
	Version      string `json:"version"`
	Scope        string `json:"scope"`
	ManifestPath string `json:"manifestPath"`
}

type StackTechEntry struct {
	Kind       string  `json:"kind"`
	Name       string  `json:"name"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

type StackStats struct {
	TotalFiles  int            `json:"totalFiles"`
	Languages   map[string]int `json:"languages"`
	Managers    []string       `json:"managers"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// BaseStats is rewritten on every commit/reindex for a base (spec §4.4
// step 8).
type BaseStats struct {
	LastUpdated time.Time `json:"lastUpdated"`
	SourceCount int       `json:"sourceCount"`
	ChunkCount  int       `json:"chunkCount"`
}

// RagChunk is one code/docs result surfaced by the retrieval pipeline
// (spec §4.6 step 8).
type RagChunk struct {
	ChunkID  string  `json:"chunkId"`
	Base     string  `json:"base"`
	Path     string  `json:"path"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
	RerankScore *float64 `json:"rerankScore,omitempty"`
}

// MemoryEvent is one memory-base result surfaced by the retrieval
// pipeline, carrying the memory-specific fields ragChunks doesn't need
// (spec §4.6 step 8, §4.10 "populate memoryEvents, not ragChunks").
type MemoryEvent struct {
	EntryID string      `json:"entryId"`
	Text    string      `json:"text"`
	Scope   MemoryScope `json:"scope"`
	Source  MemorySource `json:"source"`
	Tags    []string    `json:"tags,omitempty"`
	Score   float64     `json:"score"`
}

// KgSubgraph is one bounded BFS expansion rooted at a ragChunk's file
// (spec §4.6 step 9).
type KgSubgraph struct {
	Roots  []string `json:"roots"`
	Nodes  []KgNode `json:"nodes"`
	Edges  []KgEdge `json:"edges"`
	Reason string   `json:"reason"`
}

// AskDebug carries the diagnostic counters spec §4.6 step 10 names.
type AskDebug struct {
	EmbeddingModelID string         `json:"embeddingModelId"`
	UsedBases        []string       `json:"usedBases"`
	PerBaseCounts    map[string]int `json:"perBaseCounts"`
	EmbedTimeMs      int64          `json:"embedTimeMs"`
	SearchTimeMs     int64          `json:"searchTimeMs"`
}

// AskContextBundle is the retrieval pipeline's final output (spec §4.6
// step 10).
type AskContextBundle struct {
	RevisionID    string        `json:"revisionId"`
	Question      string        `json:"question"`
	Bases         []string      `json:"bases"`
	RagChunks     []RagChunk    `json:"ragChunks"`
	KgResults     []KgSubgraph  `json:"kgResults"`
	MemoryEvents  []MemoryEvent `json:"memoryEvents"`
	StackSummary  *StackStats   `json:"stackSummary,omitempty"`
	Debug         AskDebug      `json:"debug"`
}

// AskLogEntry is one line of the branch-agnostic ask log (spec §4.6
// step 11).
type AskLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Branch    string    `json:"branch"`
	Question  string    `json:"question"`
	Bases     []string  `json:"bases"`
	TotalHits int       `json:"totalHits"`
}
