package wasmforge

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/forgelab/wasmforge/optimize"
	"github.com/forgelab/wasmforge/tscript"
	"github.com/forgelab/wasmforge/wasm"
	"github.com/forgelab/wasmforge/wat"
)

// Language selects the front end Generate compiles with.
type Language string

const (
	LanguageWAT        Language = "wat"
	LanguageTypeScript Language = "typescript-subset"
)

// CompilationStats summarizes one successful compilation.
type CompilationStats struct {
	SourceSize      int
	OutputSize      int
	CompilationTime time.Duration
	FunctionCount   int
	ExportCount     int
}

// CompilationResult is the uniform outcome of Generate. Front-end
// failures are carried in Errors with Success false; Generate never
// panics on bad source.
type CompilationResult struct {
	Success  bool
	Wasm     []byte
	Errors   []string
	Warnings []string
	Stats    CompilationStats
}

// OptimizationStats describes one optimizer pipeline run.
type OptimizationStats = optimize.Stats

// Compiler compiles source text to WASM bytes and memoizes results in a
// bounded content-addressed cache. Compilation itself is stateless per
// call, so a Compiler is safe for concurrent use.
type Compiler struct {
	cache *resultCache
}

// DefaultCacheSize bounds the total cached output bytes per Compiler.
const DefaultCacheSize = 16 << 20

// New returns a Compiler with the default cache size.
func New() *Compiler {
	return NewWithCacheSize(DefaultCacheSize)
}

// NewWithCacheSize returns a Compiler whose result cache holds at most
// maxBytes of output. A maxBytes of zero disables caching.
func NewWithCacheSize(maxBytes int) *Compiler {
	return &Compiler{cache: newResultCache(maxBytes)}
}

// Generate compiles source with the front end named by lang. The result
// is cached under a digest of the language and source text, so repeat
// calls with identical input return the memoized bytes.
func (c *Compiler) Generate(source string, lang Language) *CompilationResult {
	key := sourceKey(lang, source)
	if res, ok := c.cache.get(key); ok {
		Logger().Debug("compilation cache hit", zap.String("key", key[:12]))
		return res
	}

	start := time.Now()
	def, err := translate(source, lang)
	if err != nil {
		Logger().Debug("compilation failed",
			zap.String("language", string(lang)),
			zap.Error(err))
		return &CompilationResult{
			Errors: []string{err.Error()},
			Stats:  CompilationStats{SourceSize: len(source)},
		}
	}

	data, err := wasm.FromDefinition(def)
	if err != nil {
		return &CompilationResult{
			Errors: []string{err.Error()},
			Stats:  CompilationStats{SourceSize: len(source)},
		}
	}

	res := &CompilationResult{
		Success: true,
		Wasm:    data,
		Stats: CompilationStats{
			SourceSize:      len(source),
			OutputSize:      len(data),
			CompilationTime: time.Since(start),
			FunctionCount:   len(def.Functions),
			ExportCount:     countExports(def),
		},
	}
	if !exportsFunction(def) {
		res.Warnings = append(res.Warnings, "module exports no functions")
	}

	c.cache.put(key, res)
	return res
}

// Optimize runs the optimizer pipeline at the given level. The context
// covers only the pre-pass host validation of the input bytes.
func (c *Compiler) Optimize(ctx context.Context, data []byte, level optimize.Level) ([]byte, OptimizationStats, error) {
	return optimize.Run(ctx, data, level)
}

func translate(source string, lang Language) (*wasm.ModuleDefinition, error) {
	switch lang {
	case LanguageWAT:
		return wat.Translate(source)
	case LanguageTypeScript:
		return tscript.Translate(source)
	default:
		return nil, fmt.Errorf("unknown language %q", lang)
	}
}

// countExports mirrors the builder's export table: named functions and
// globals, the auto-exported memory, and explicit entries that do not
// collide with an already claimed name.
func countExports(def *wasm.ModuleDefinition) int {
	names := map[string]bool{}
	for _, fn := range def.Functions {
		if fn.ExportName != "" {
			names[fn.ExportName] = true
		}
	}
	for _, g := range def.Globals {
		if g.ExportName != "" {
			names[g.ExportName] = true
		}
	}
	if def.Memory != nil {
		names["memory"] = true
	}
	for _, e := range def.Exports {
		names[e.Name] = true
	}
	return len(names)
}

func exportsFunction(def *wasm.ModuleDefinition) bool {
	for _, fn := range def.Functions {
		if fn.ExportName != "" {
			return true
		}
	}
	for _, e := range def.Exports {
		if e.Kind == wasm.KindFunc {
			return true
		}
	}
	return false
}
