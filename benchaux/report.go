package benchaux

import (
	"bufio"
	"fmt"
	"io"
)

// WriteReport writes a human readable summary of rep: sweep outcome, latency statistics,
// the mean latency of every non empty distance bucket and throughput results.
func WriteReport(w io.Writer, rep *Report) error {
	bw := bufio.NewWriter(w)
	res := rep.Sweep
	fmt.Fprintf(bw, "sampled %d of %d rows, max divergence %g\n", res.RowsCompleted, res.Width, res.MaxDivergence)
	if res.Aborted {
		fmt.Fprintln(bw, "sweep terminated early: backends diverged")
	}
	for _, s := range rep.Stats {
		fmt.Fprintln(bw, s.String())
	}
	for _, r := range rep.Ranges {
		fmt.Fprintf(bw, "color domain %s: [%.4g, %.4g]µs\n", r.Name, r.Lo, r.Hi)
	}
	for _, b := range res.Backends {
		fmt.Fprintf(bw, "%s histogram:\n", b.Name)
		for _, bucket := range b.Histogram.Buckets() {
			if bucket.Count == 0 {
				continue
			}
			fmt.Fprintf(bw, "\t%s\n", bucket)
		}
	}
	for _, t := range rep.Throughput {
		fmt.Fprintf(bw, "%s throughput: %.3gµs/query rmse=%.3g\n", t.Name, t.MicrosPerQuery, t.RMSE)
	}
	return bw.Flush()
}
