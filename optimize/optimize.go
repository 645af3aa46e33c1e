package optimize

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/forgelab/wasmforge/errors"
	"github.com/forgelab/wasmforge/optimize/internal/binscan"
	"github.com/forgelab/wasmforge/wasm"
)

// Level selects which passes run and in what order.
type Level string

const (
	LevelNone       Level = "none"
	LevelSize       Level = "size"
	LevelSpeed      Level = "speed"
	LevelAggressive Level = "aggressive"
)

// Pass is one byte-to-byte rewrite. A pass parses only the sections it
// needs from the input and reports whether it changed anything.
type Pass interface {
	Name() string
	Run(data []byte) (out []byte, modified bool, err error)
}

// Passes returns the ordered pass list for a level. Simplification
// passes run before local compaction so that slots freed by removed
// code get reclaimed in the same pipeline run.
func Passes(level Level) []Pass {
	switch level {
	case LevelSize:
		return []Pass{
			&PeepholePass{},
			&ConstFoldPass{},
			&DeadCodePass{},
			&BlockMergePass{},
			&LocalCompactPass{},
			&CompactNamesPass{},
		}
	case LevelSpeed:
		return []Pass{
			&PeepholePass{},
			&ConstFoldPass{},
			&DeadCodePass{},
			&BlockMergePass{},
		}
	case LevelAggressive:
		return []Pass{
			&PeepholePass{},
			&ConstFoldPass{},
			&DeadCodePass{},
			&BlockMergePass{},
			&LocalCompactPass{},
			&RemoveUnusedPass{},
			&InlineSmallFunctionsPass{},
			&CompactNamesPass{},
		}
	}
	return nil
}

// Stats describes one pipeline run.
type Stats struct {
	OriginalSize     int
	OptimizedSize    int
	SizeSaved        int
	PercentReduction float64
	PassesApplied    []string
	Duration         time.Duration
}

// Run validates the input and threads it through the pass list for the
// level. Invalid input aborts before any pass runs. A failing pass is
// logged and skipped; the pipeline always completes with the best bytes
// obtained so far.
func Run(ctx context.Context, data []byte, level Level) ([]byte, Stats, error) {
	return RunPasses(ctx, data, Passes(level))
}

// RunPasses is Run over an explicit pass list, for callers assembling
// their own pipeline.
func RunPasses(ctx context.Context, data []byte, passes []Pass) ([]byte, Stats, error) {
	start := time.Now()
	stats := Stats{OriginalSize: len(data)}

	if err := wasm.Validate(ctx, data); err != nil {
		return nil, stats, err
	}

	current := data
	for _, pass := range passes {
		out, modified, err := runContained(pass, current)
		if err != nil {
			Logger().Warn("optimizer pass failed, skipping",
				zap.String("pass", pass.Name()),
				zap.Error(err))
			continue
		}
		if modified {
			Logger().Debug("optimizer pass applied",
				zap.String("pass", pass.Name()),
				zap.Int("before", len(current)),
				zap.Int("after", len(out)))
			current = out
			stats.PassesApplied = append(stats.PassesApplied, pass.Name())
		}
	}

	stats.OptimizedSize = len(current)
	stats.SizeSaved = stats.OriginalSize - stats.OptimizedSize
	if stats.OriginalSize > 0 {
		stats.PercentReduction = float64(stats.SizeSaved) / float64(stats.OriginalSize) * 100
	}
	stats.Duration = time.Since(start)
	return current, stats, nil
}

// runContained runs one pass with panic containment, so a bug in a
// single pass cannot take down the pipeline.
func runContained(pass Pass, data []byte) (out []byte, modified bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, modified = nil, false
			err = errors.PassFailed(pass.Name(), fmt.Errorf("panic: %v", r))
		}
	}()
	return pass.Run(data)
}

// rewriteCode is the shared skeleton of the code-rewriting passes:
// parse the code section, transform each body, and re-encode only when
// something changed.
func rewriteCode(data []byte, transform func(body *binscan.FuncBody) bool) ([]byte, bool, error) {
	m, err := binscan.Parse(data)
	if err != nil {
		return nil, false, err
	}
	sec := m.Section(wasm.SectionCode)
	if sec == nil {
		return data, false, nil
	}
	bodies, err := binscan.ParseCode(sec.Data)
	if err != nil {
		return nil, false, err
	}

	modified := false
	for i := range bodies {
		if transform(&bodies[i]) {
			modified = true
		}
	}
	if !modified {
		return data, false, nil
	}
	sec.Data = binscan.EncodeCode(bodies)
	return m.Encode(), true, nil
}
