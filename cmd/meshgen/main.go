// Command meshgen tessellates a demo github.com/deadsy/sdfx shape to a binary STL file
// usable as querytime model input. The same shape is available as the querytime
// reference "sdfx:<shape>".
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/render/dc"
	"github.com/soypat/querytime/benchaux"
	"github.com/soypat/querytime/meshdist"
)

var (
	shape  = "box-sphere"
	cells  = 64
	output = "model.stl"
)

func init() {
	flag.StringVar(&shape, "shape", shape, "Shape to tessellate: "+strings.Join(benchaux.ShapeNames(), ", "))
	flag.IntVar(&cells, "cells", cells, "Mesh cells along the longest axis of the shape")
	flag.StringVar(&output, "o", output, "Output STL file")
	flag.Parse()
}

func main() {
	s, err := benchaux.SDFXShape(shape)
	if err != nil {
		log.Fatal(err)
	}
	start := time.Now()
	render.ToSTL(s, cells, output, dc.NewDualContouringDefault())
	elapsed := time.Since(start)

	mesh, err := meshdist.LoadFile(output)
	if err != nil {
		fmt.Println("error reading back STL:", err)
		os.Exit(1)
	}
	fmt.Println("tessellated", shape, "to", mesh.NumTriangles(), "triangles in", elapsed, "bounds", mesh.Bounds())
}
