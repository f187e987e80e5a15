package benchaux

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/querytime"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// bucketMeans returns the mean latency of every bucket of h with empty buckets as zero.
func bucketMeans(h *querytime.Histogram) []float64 {
	means := make([]float64, h.Len())
	for i := range means {
		if m := h.Mean(i); !math32.IsNaN(m) {
			means[i] = float64(m)
		}
	}
	return means
}

// bucketLabels returns the bucket center distances as percentages of the diagonal.
func bucketLabels(bucketCount int) []string {
	labels := make([]string, bucketCount)
	for i := range labels {
		labels[i] = fmt.Sprintf("%+.0f%%", 100*querytime.BucketDistance(i, bucketCount))
	}
	return labels
}

// NewHistogramPlot returns a grouped bar chart of mean latency per distance bucket for every backend.
func NewHistogramPlot(rep *Report) (*plot.Plot, error) {
	res := rep.Sweep
	if len(res.Backends) == 0 {
		return nil, fmt.Errorf("no backends to plot")
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Query latency by distance to surface (%dx%d grid)", res.Width, res.Width)
	p.X.Label.Text = "Distance (% of diagonal)"
	p.Y.Label.Text = "Mean latency (µs)"

	const groupWidth = 12
	barWidth := vg.Points(groupWidth / float64(len(res.Backends)))
	for k, b := range res.Backends {
		bars, err := plotter.NewBarChart(plotter.Values(bucketMeans(b.Histogram)), barWidth)
		if err != nil {
			return nil, fmt.Errorf("bar chart %s: %w", b.Name, err)
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(k)
		bars.Offset = barWidth * vg.Length(float64(k)-float64(len(res.Backends)-1)/2)
		p.Add(bars)
		p.Legend.Add(b.Name, bars)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.NominalX(bucketLabels(res.Backends[0].Histogram.Len())...)
	return p, nil
}

// WritePlot saves the histogram plot of rep to filename. The format is chosen by extension.
func WritePlot(filename string, rep *Report) error {
	p, err := NewHistogramPlot(rep)
	if err != nil {
		return err
	}
	if err := p.Save(14*vg.Inch, 6*vg.Inch, filename); err != nil {
		return fmt.Errorf("save histogram plot: %w", err)
	}
	return nil
}
