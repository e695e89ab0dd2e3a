// fstreport summarizes fair-service-throttle simulator results on the
// console and optionally as a JSON report.
//
// Two inputs make one report: the SFQ run and the Bloom-filter run of the
// same scenario. Per flow it prints sample counts, goodput aggregates and
// the throttle rate (when the file carries the count columns), then compares
// the two disciplines on Jain's fairness index. A scenarios.jsonc file can
// batch several pairs into one invocation.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/fatih/color"

	"github.com/fermibubble/fair-service-throttle/src/analysis"
	"github.com/fermibubble/fair-service-throttle/src/goodput"
)

const version = "0.4.0"

const (
	defaultSFQFile = "StepSFQ_baseline_timestep-1-sec.csv"
	defaultBFFile  = "StepBF_baseline_timestep-1-sec.csv"
)

var (
	app           = kingpin.New("fstreport", "Summarize fair-service-throttle simulator results.")
	sfqPath       = app.Flag("sfq", "SFQ results CSV").Default(defaultSFQFile).String()
	bfPath        = app.Flag("bf", "Bloom filter results CSV").Default(defaultBFFile).String()
	scenariosPath = app.Flag("scenarios", "JSONC list of scenario pairs; overrides --sfq/--bf").String()
	reportJSON    = app.Flag("report-json", "Also write the report as JSON to this path").String()
	noServer      = app.Flag("no-server", "Exclude the aggregate server line from summaries").Bool()
	verbose       = app.Flag("verbose", "Enable verbose log output.").Short('v').Bool()
)

// scenarioReport is one scenario pair in the JSON report.
type scenarioReport struct {
	Name       string                  `json:"name"`
	SFQ        analysis.DatasetSummary `json:"sfq"`
	BF         analysis.DatasetSummary `json:"bf"`
	Comparison analysis.Comparison     `json:"comparison"`
}

// reportDoc is the document written by --report-json.
type reportDoc struct {
	GeneratedAt string           `json:"generated_at"`
	Scenarios   []scenarioReport `json:"scenarios"`
}

func main() {
	app.Version(version)
	kingpin.MustParse(app.Parse(os.Args[1:]))
	log.SetHandler(cli.Default)
	log.SetLevel(log.InfoLevel)
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if err := runReport(os.Stdout); err != nil {
		log.WithError(err).Error("report failed")
		os.Exit(1)
	}
}

func runReport(w io.Writer) error {
	pairs, err := buildPairs()
	if err != nil {
		return err
	}
	opts := goodput.LoadOptions{ClientsOnly: *noServer}
	doc := reportDoc{GeneratedAt: time.Now().UTC().Format(time.RFC3339)}
	for _, p := range pairs {
		sr, err := reportScenario(w, p, opts)
		if err != nil {
			return err
		}
		doc.Scenarios = append(doc.Scenarios, sr)
	}
	if *reportJSON != "" {
		if err := writeJSONReport(*reportJSON, doc); err != nil {
			return err
		}
		log.Infof("wrote JSON report to %s", *reportJSON)
	}
	return nil
}

// buildPairs resolves which scenario pairs to report: the JSONC list when
// given, otherwise the single pair from --sfq/--bf.
func buildPairs() ([]goodput.ScenarioPair, error) {
	if *scenariosPath != "" {
		return goodput.LoadScenarios(*scenariosPath)
	}
	name := "results"
	if sc, ok := goodput.ParseScenario(*sfqPath); ok {
		name = sc.Suffix
	}
	return []goodput.ScenarioPair{{Name: name, SFQ: *sfqPath, BF: *bfPath}}, nil
}

func reportScenario(w io.Writer, p goodput.ScenarioPair, opts goodput.LoadOptions) (scenarioReport, error) {
	log.Debugf("loading scenario %s", p.Name)
	sfq, err := goodput.LoadFile(p.SFQ, opts)
	if err != nil {
		return scenarioReport{}, err
	}
	bf, err := goodput.LoadFile(p.BF, opts)
	if err != nil {
		return scenarioReport{}, err
	}
	sr := scenarioReport{
		Name: p.Name,
		SFQ:  analysis.Summarize(sfq),
		BF:   analysis.Summarize(bf),
	}
	sr.Comparison = analysis.Compare(sr.SFQ, sr.BF)

	fmt.Fprintf(w, "Scenario %s\n", color.CyanString(p.Name))
	printSummary(w, sr.SFQ)
	printSummary(w, sr.BF)
	printComparison(w, sr.Comparison)
	return sr, nil
}

func printSummary(w io.Writer, sum analysis.DatasetSummary) {
	fmt.Fprintf(w, "%s  (%s)\n", color.BlueString(sum.Scenario.Label), sum.Path)
	fmt.Fprintf(w, "  flows=%d records=%d t=[%.0f..%.0f]s avg_client_goodput=%.2f tps fairness=%.4f\n",
		len(sum.Flows), sum.Records, sum.TimeStart, sum.TimeEnd, sum.AvgClientGoodput, sum.FairnessIndex)
	for _, fs := range sum.Flows {
		fmt.Fprintf(w, "  %-28s samples=%-5d avg=%8.2f median=%8.2f min=%8.2f max=%8.2f",
			fs.Name, fs.Samples, fs.AvgGoodput, fs.MedianGoodput, fs.MinGoodput, fs.MaxGoodput)
		if sum.HasCounts && !fs.Server {
			fmt.Fprintf(w, " throttle_rate=%5.1f%%", fs.ThrottleRate*100)
		}
		fmt.Fprintln(w)
	}
}

func printComparison(w io.Writer, c analysis.Comparison) {
	fmt.Fprintf(w, "  fairness %s=%.4f vs %s=%.4f", c.A.Label, c.A.FairnessIndex, c.B.Label, c.B.FairnessIndex)
	if c.FairnessWinner == "tie" {
		fmt.Fprintf(w, " -> tie\n")
	} else {
		fmt.Fprintf(w, " -> %s\n", color.GreenString(c.FairnessWinner))
	}
	fmt.Fprintf(w, "  goodput delta %+.2f tps, fairness delta %+.4f\n\n", c.GoodputDelta, c.FairnessDelta)
}

func writeJSONReport(path string, doc reportDoc) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
