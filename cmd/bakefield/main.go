// Command bakefield builds the exact octree signed distance field of a mesh and writes it
// to a file readable by querytime as the reference backend.
//
// Usage:
//
//	bakefield [flags] model_path field_path
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/soypat/querytime"
	"github.com/soypat/querytime/meshdist"
	"github.com/soypat/querytime/sdffield"
)

func main() {
	var (
		resolution    = flag.Float64("res", 0, "Smallest octree cell size, 0 selects the area's long axis divided by 64")
		margin        = flag.Float64("margin", sdffield.DefaultMargin, "Mesh bounds padding relative to the largest mesh dimension")
		maxCandidates = flag.Int("max-candidates", sdffield.DefaultMaxCandidates, "Stop subdividing cells with at most this many candidate triangles")
		normalize     = flag.Bool("normalize", true, "Scale mesh to a 2 unit box centered at the origin, as querytime does")
		verbose       = flag.Bool("v", false, "Enable debug logging")
	)
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: bakefield [flags] model_path field_path")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	if *verbose {
		querytime.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	start := time.Now()
	mesh, err := meshdist.LoadFile(flag.Arg(0))
	if err != nil {
		fmt.Println("error loading mesh:", err)
		os.Exit(1)
	}
	if *normalize {
		err = mesh.Normalize()
		if err != nil {
			fmt.Println("error normalizing mesh:", err)
			os.Exit(1)
		}
	}
	fmt.Println("loaded", mesh.NumTriangles(), "triangles in", time.Since(start))

	start = time.Now()
	field, err := sdffield.Build(mesh, sdffield.Config{
		Margin:        float32(*margin),
		Resolution:    float32(*resolution),
		MaxCandidates: *maxCandidates,
	})
	if err != nil {
		fmt.Println("error building field:", err)
		os.Exit(1)
	}
	fmt.Println("built field in", time.Since(start), field.Stats())

	err = field.WriteFile(flag.Arg(1))
	if err != nil {
		fmt.Println("error writing field:", err)
		os.Exit(1)
	}
	fmt.Println("wrote", flag.Arg(1))
}
