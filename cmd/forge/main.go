package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/forgelab/wasmforge"
	"github.com/forgelab/wasmforge/optimize"
)

func main() {
	var (
		srcFile     = flag.String("in", "", "Path to source file (.wat or .ts)")
		outFile     = flag.String("o", "", "Path to write the wasm output")
		langFlag    = flag.String("lang", "", "Front end: wat or typescript-subset (default: by extension)")
		optLevel    = flag.String("opt", "", "Optimization level: size, speed, aggressive")
		verbose     = flag.Bool("v", false, "Debug logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *srcFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: forge -in <file.wat|file.ts> [-o out.wasm] [-opt size|speed|aggressive]")
		fmt.Fprintln(os.Stderr, "       forge -in <file> -i  (interactive mode)")
		os.Exit(1)
	}

	if *verbose {
		l, err := zap.NewDevelopment()
		if err == nil {
			wasmforge.SetLogger(l)
			optimize.SetLogger(l)
		}
	}

	if *interactive {
		if err := runInteractive(*srcFile, detectLanguage(*srcFile, *langFlag)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*srcFile, *outFile, *langFlag, *optLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// detectLanguage picks the front end from an explicit flag or, failing
// that, the source file extension.
func detectLanguage(path, langFlag string) wasmforge.Language {
	switch langFlag {
	case "wat":
		return wasmforge.LanguageWAT
	case "typescript-subset", "ts":
		return wasmforge.LanguageTypeScript
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts":
		return wasmforge.LanguageTypeScript
	default:
		return wasmforge.LanguageWAT
	}
}

func run(srcFile, outFile, langFlag, optLevel string) error {
	source, err := os.ReadFile(srcFile)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	lang := detectLanguage(srcFile, langFlag)

	c := wasmforge.New()
	res := c.Generate(string(source), lang)
	if !res.Success {
		for _, msg := range res.Errors {
			fmt.Fprintln(os.Stderr, msg)
		}
		return fmt.Errorf("compilation failed with %d error(s)", len(res.Errors))
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	fmt.Printf("Compiled: %s (%s)\n", srcFile, lang)
	fmt.Printf("  source:    %d bytes\n", res.Stats.SourceSize)
	fmt.Printf("  output:    %d bytes\n", res.Stats.OutputSize)
	fmt.Printf("  functions: %d\n", res.Stats.FunctionCount)
	fmt.Printf("  exports:   %d\n", res.Stats.ExportCount)
	fmt.Printf("  time:      %s\n", res.Stats.CompilationTime)

	out := res.Wasm
	if optLevel != "" && optLevel != string(optimize.LevelNone) {
		optimized, stats, err := c.Optimize(context.Background(), out, optimize.Level(optLevel))
		if err != nil {
			return fmt.Errorf("optimize: %w", err)
		}
		out = optimized
		fmt.Printf("\nOptimized (%s): %d -> %d bytes (%.1f%% saved)\n",
			optLevel, stats.OriginalSize, stats.OptimizedSize, stats.PercentReduction)
		if len(stats.PassesApplied) > 0 {
			fmt.Printf("  passes: %s\n", strings.Join(stats.PassesApplied, ", "))
		}
	}

	if outFile != "" {
		if err := os.WriteFile(outFile, out, 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Printf("\nWrote %s (%d bytes)\n", outFile, len(out))
	}
	return nil
}
