package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/fermibubble/fair-service-throttle/src/analysis"
	"github.com/fermibubble/fair-service-throttle/src/goodput"
)

// fstinfo prints a quick inventory of one or more goodput CSV files:
// scenario, record and flow counts, time range, and per-flow samples.
func main() {
	var max int
	var clientsOnly bool
	flag.IntVar(&max, "n", 0, "Max records to load per file (0 = no limit)")
	flag.BoolVar(&clientsOnly, "clients-only", false, "Skip server rows")
	flag.Parse()
	files := flag.Args()
	if len(files) == 0 {
		files = []string{"StepSFQ_baseline_timestep-1-sec.csv", "StepBF_baseline_timestep-1-sec.csv"}
	}
	opts := goodput.LoadOptions{ClientsOnly: clientsOnly, MaxRecords: max}
	code := 0
	for _, f := range files {
		if err := describe(os.Stdout, f, opts); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			code = 1
		}
	}
	os.Exit(code)
}

func describe(w io.Writer, path string, opts goodput.LoadOptions) error {
	ds, err := goodput.LoadFile(path, opts)
	if err != nil {
		return err
	}
	sum := analysis.Summarize(ds)
	fmt.Fprintf(w, "%s\n", path)
	fmt.Fprintf(w, "  scenario: %s\n", sum.Scenario.Label)
	fmt.Fprintf(w, "  records: %d  flows: %d  t: [%.0f..%.0f]s\n", sum.Records, len(sum.Flows), sum.TimeStart, sum.TimeEnd)
	fmt.Fprintf(w, "  avg client goodput: %.2f tps  fairness: %.4f\n", sum.AvgClientGoodput, sum.FairnessIndex)
	if sum.HasCounts {
		attempts := sum.TotalThrottled + sum.TotalOffered
		fmt.Fprintf(w, "  throttle rate: %.1f%% (%d/%d attempts)\n", sum.ThrottleRate*100, sum.TotalThrottled, attempts)
	}
	for _, fs := range sum.Flows {
		role := "client"
		if fs.Server {
			role = "server"
		}
		fmt.Fprintf(w, "  %-28s %-6s samples=%-5d avg=%8.2f\n", fs.Name, role, fs.Samples, fs.AvgGoodput)
	}
	return nil
}
