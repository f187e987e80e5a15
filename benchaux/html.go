package benchaux

import (
	"fmt"
	"io"
	"os"

	"github.com/chewxy/math32"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteHTML renders rep as an HTML page with a latency per distance bucket chart
// and a latency statistics chart.
func WriteHTML(w io.Writer, rep *Report) error {
	res := rep.Sweep
	if len(res.Backends) == 0 {
		return fmt.Errorf("no backends to report")
	}
	hist := charts.NewBar()
	hist.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "querytime report", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Mean latency by distance to surface", Subtitle: fmt.Sprintf("%dx%d grid, %d rows sampled", res.Width, res.Width, res.RowsCompleted)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "distance", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "µs", NameLocation: "middle", NameGap: 30}),
	)
	hist.SetXAxis(bucketLabels(res.Backends[0].Histogram.Len()))
	for _, b := range res.Backends {
		data := make([]opts.BarData, b.Histogram.Len())
		for i := range data {
			if m := b.Histogram.Mean(i); math32.IsNaN(m) {
				data[i] = opts.BarData{Value: "-"} // No data.
			} else {
				data[i] = opts.BarData{Value: m}
			}
		}
		hist.AddSeries(b.Name, data)
	}

	statsBar := charts.NewBar()
	statsBar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Latency statistics", Subtitle: fmt.Sprintf("max divergence %g", res.MaxDivergence)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	names := make([]string, len(rep.Stats))
	mean := make([]opts.BarData, len(rep.Stats))
	median := make([]opts.BarData, len(rep.Stats))
	p95 := make([]opts.BarData, len(rep.Stats))
	for i, s := range rep.Stats {
		names[i] = s.Name
		mean[i] = opts.BarData{Value: s.Mean}
		median[i] = opts.BarData{Value: s.Median}
		p95[i] = opts.BarData{Value: s.P95}
	}
	statsBar.SetXAxis(names).
		AddSeries("mean", mean).
		AddSeries("median", median).
		AddSeries("p95", p95,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.AddCharts(hist, statsBar)
	return page.Render(w)
}

func writeHTMLFile(filename string, rep *Report) error {
	fp, err := os.Create(filename)
	if err != nil {
		return err
	}
	err = WriteHTML(fp, rep)
	if err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}
