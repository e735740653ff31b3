package engine

import (
	"context"
	"os"
	"path/filepath"

	gikerrors "github.com/standardbeagle/gik/internal/errors"
	"github.com/standardbeagle/gik/internal/jsonl"
	"github.com/standardbeagle/gik/internal/model"
	"github.com/standardbeagle/gik/internal/vectorindex"
)

// BaseHealth is one base's status row (spec §4.11).
type BaseHealth struct {
	Base            model.Base `json:"base"`
	Documents       int        `json:"documents"`
	Vectors         int        `json:"vectors"`
	Files           int        `json:"files"`
	OnDiskBytes     int64      `json:"onDiskBytes"`
	LastCommit      string     `json:"lastCommit,omitempty"`
	EmbeddingStatus string     `json:"embeddingStatus"`
	IndexStatus     string     `json:"indexStatus"`
	Health          string     `json:"health"`
}

// StatusReport is status's typed result (spec §4.1, §4.11).
type StatusReport struct {
	Branch  string               `json:"branch"`
	Head    string               `json:"head,omitempty"`
	Staging model.StagingSummary `json:"staging"`
	Stack   model.StackStats     `json:"stack"`
	Bases   []BaseHealth         `json:"bases"`
}

// Status aggregates HEAD, staging summary, stack stats, and per-base
// stats+health (spec §4.11).
func (e *Engine) Status(ctx context.Context) (StatusReport, error) {
	report := StatusReport{Branch: e.Branch}

	if head, err := e.Timeline.Head(); err == nil {
		report.Head = head
	} else if gerr, ok := asGikError(err); !ok || gerr.Code != gikerrors.NotInitialized {
		return StatusReport{}, err
	}

	summary, err := e.Staging.Summary()
	if err != nil {
		return StatusReport{}, err
	}
	report.Staging = summary

	stats, err := e.Stack.Stats()
	if err != nil {
		return StatusReport{}, err
	}
	report.Stack = stats

	for _, base := range []model.Base{model.BaseCode, model.BaseDocs, model.BaseMemory} {
		health, err := e.baseHealth(ctx, base)
		if err != nil {
			return StatusReport{}, err
		}
		report.Bases = append(report.Bases, health)
	}

	return report, nil
}

func (e *Engine) baseHealth(ctx context.Context, base model.Base) (BaseHealth, error) {
	handle := e.Bases[base]
	profile := e.Config.ProfileFor(base)

	result := BaseHealth{Base: base}

	sources, err := handle.Sources()
	if err != nil {
		return BaseHealth{}, err
	}
	documents, err := jsonl.CountLines(handle.SourcesPath())
	if err != nil {
		return BaseHealth{}, err
	}
	result.Documents = documents
	files := make(map[string]bool, len(sources))
	for _, s := range sources {
		files[s.Path] = true
	}
	result.Files = len(files)

	count, err := handle.Vector.Count(ctx)
	if err != nil {
		return BaseHealth{}, err
	}
	result.Vectors = count

	result.OnDiskBytes = dirSize(handle.SourcesPath()) + dirSize(handle.StatsPath()) +
		dirSize(handle.ModelInfoPath()) + dirSize(handle.BM25Path()) + indexDirSize(handle.Dir())

	stats, err := handle.Stats()
	if err == nil && !stats.LastUpdated.IsZero() {
		result.LastCommit = stats.LastUpdated.Format("2006-01-02T15:04:05Z07:00")
	}

	modelInfo, hasModel, err := handle.ModelInfo()
	if err != nil {
		return BaseHealth{}, err
	}
	var modelInfoPtr *model.ModelInfo
	if hasModel {
		modelInfoPtr = &modelInfo
	}

	vecMeta, hasVec, err := handle.Vector.Meta()
	if err != nil {
		return BaseHealth{}, err
	}
	var vecMetaPtr *model.VectorIndexMeta
	if hasVec {
		vecMetaPtr = &vecMeta
	}

	result.EmbeddingStatus, result.IndexStatus, result.Health = vectorindex.HealthOf(
		profile.Provider, profile.ModelID, profile.Dimension, e.Config.VectorBackend, modelInfoPtr, vecMetaPtr)

	return result, nil
}

func dirSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// indexDirSize sums every file under <base>/index/ (spec §4.11
// onDiskBytes: "all files under index/").
func indexDirSize(baseDir string) int64 {
	var total int64
	_ = filepath.Walk(filepath.Join(baseDir, "index"), func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}
