// Command querytime benchmarks signed distance query latency of mesh backends against
// an exact reference field over a planar slice of the field's domain.
//
// Usage:
//
//	querytime [flags] exact_sdf_path model_path image_width
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/soypat/querytime"
	"github.com/soypat/querytime/benchaux"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("querytime", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", "", "JSON configuration file")
		verbose    = fs.Bool("v", false, "Enable debug logging")
		silent     = fs.Bool("silent", false, "Disable console report")
		sliceZ     = fs.Float64("z", querytime.DefaultSliceZ, "Depth of the sampled plane")
		repeat     = fs.Int("repeat", 0, "Repetitions per query, overrides config if positive")
		backends   = fs.String("backends", "", "Comma separated backends to compare, overrides config ("+strings.Join(benchaux.BackendNames(), ", ")+")")
		outDir     = fs.String("o", "", "Output directory, overrides config")
		prefix     = fs.String("prefix", "", "Image file name prefix, overrides config")
		plotFile   = fs.String("plot", "", "Write histogram plot to this file")
		htmlFile   = fs.String("html", "", "Write HTML report to this file")
		database   = fs.String("db", "", "Record the run in this sqlite database")
	)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: querytime [flags] exact_sdf_path model_path image_width")
		fs.PrintDefaults()
	}
	err := fs.Parse(args)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	} else if err != nil {
		return exitUsage
	}
	if fs.NArg() != 3 {
		fmt.Fprintf(stderr, "expected 3 positional arguments, got %d\n", fs.NArg())
		fs.Usage()
		return exitUsage
	}
	width, err := strconv.Atoi(fs.Arg(2))
	if err != nil || width < 1 {
		fmt.Fprintf(stderr, "image_width must be a positive integer, got %q\n", fs.Arg(2))
		return exitUsage
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	querytime.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	cfg := benchaux.DefaultConfig()
	if *configPath != "" {
		cfg, err = benchaux.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintln(stderr, "loading config:", err)
			return exitUsage
		}
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["z"] {
		cfg.SliceZ = float32(*sliceZ)
	}
	if *repeat > 0 {
		cfg.Repeat = *repeat
	}
	if *backends != "" {
		cfg.Backends = strings.Split(*backends, ",")
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}
	if set["prefix"] {
		cfg.Prefix = *prefix
	}
	if *plotFile != "" {
		cfg.PlotFile = *plotFile
	}
	if *htmlFile != "" {
		cfg.HTMLFile = *htmlFile
	}
	if *database != "" {
		cfg.Database = *database
	}
	cfg.Silent = *silent
	cfg.Output = stdout
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	_, err = benchaux.Run(cfg, fs.Arg(0), fs.Arg(1), width)
	if err != nil {
		fmt.Fprintln(stderr, "querytime:", err)
		return exitRuntime
	}
	return exitOK
}
