// Package analysis aggregates loaded goodput datasets: per-flow summaries,
// Jain's fairness index, and SFQ-versus-BF comparisons. It never touches
// files; feed it datasets from the goodput package.
package analysis

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/fermibubble/fair-service-throttle/src/goodput"
)

// FlowSummary captures aggregate metrics for one flow over a whole run.
type FlowSummary struct {
	Name           string  `json:"name"`
	Server         bool    `json:"server,omitempty"`
	Samples        int     `json:"samples"`
	AvgGoodput     float64 `json:"avg_goodput_tps"`
	MedianGoodput  float64 `json:"median_goodput_tps"`
	MinGoodput     float64 `json:"min_goodput_tps"`
	MaxGoodput     float64 `json:"max_goodput_tps"`
	P95Goodput     float64 `json:"p95_goodput_tps,omitempty"`
	TotalThrottled int64   `json:"total_throttled,omitempty"`
	TotalOffered   int64   `json:"total_offered,omitempty"`
	// ThrottleRate is throttled / (throttled + offered), the share of
	// attempts the throttle rejected. Only meaningful when the input file
	// carries the count columns.
	ThrottleRate float64 `json:"throttle_rate,omitempty"`
}

// DatasetSummary captures aggregate metrics for one results file.
type DatasetSummary struct {
	Scenario    goodput.Scenario `json:"scenario"`
	Path        string           `json:"path,omitempty"`
	Records     int              `json:"records"`
	ClientFlows int              `json:"client_flows"`
	TimeStart   float64          `json:"time_start_s"`
	TimeEnd     float64          `json:"time_end_s"`
	Flows       []FlowSummary    `json:"flows"`
	// Client-only aggregates. The server line is capacity, not a
	// contender, so it never takes part in fairness.
	AvgClientGoodput float64 `json:"avg_client_goodput_tps"`
	FairnessIndex    float64 `json:"fairness_index"`
	TotalThrottled   int64   `json:"total_throttled,omitempty"`
	TotalOffered     int64   `json:"total_offered,omitempty"`
	ThrottleRate     float64 `json:"throttle_rate,omitempty"`
	HasCounts        bool    `json:"has_counts,omitempty"`
}

// Summarize computes the per-flow and dataset-wide aggregates for one
// loaded results file. Flows come out sorted by name, like the dataset.
func Summarize(ds *goodput.Dataset) DatasetSummary {
	sum := DatasetSummary{
		Scenario:  ds.Scenario,
		Path:      ds.Path,
		Records:   ds.Len(),
		HasCounts: ds.HasCounts(),
	}
	sum.TimeStart, sum.TimeEnd = ds.TimeRange()

	var clientMeans []float64
	for _, s := range ds.Series() {
		fs := summarizeFlow(s, ds.HasCounts())
		sum.Flows = append(sum.Flows, fs)
		if fs.Server {
			continue
		}
		sum.ClientFlows++
		clientMeans = append(clientMeans, fs.AvgGoodput)
		sum.TotalThrottled += fs.TotalThrottled
		sum.TotalOffered += fs.TotalOffered
	}
	sum.AvgClientGoodput = orZero(stats.Mean(clientMeans))
	sum.FairnessIndex = JainIndex(clientMeans)
	if attempts := sum.TotalThrottled + sum.TotalOffered; sum.HasCounts && attempts > 0 {
		sum.ThrottleRate = float64(sum.TotalThrottled) / float64(attempts)
	}
	return sum
}

func summarizeFlow(s goodput.Series, hasCounts bool) FlowSummary {
	vals := s.Goodputs()
	fs := FlowSummary{
		Name:          s.Name,
		Server:        s.IsServer(),
		Samples:       len(vals),
		AvgGoodput:    orZero(stats.Mean(vals)),
		MedianGoodput: orZero(stats.Median(vals)),
		MinGoodput:    orZero(stats.Min(vals)),
		MaxGoodput:    orZero(stats.Max(vals)),
		P95Goodput:    orZero(stats.Percentile(vals, 95)),
	}
	if hasCounts {
		for _, r := range s.Records {
			fs.TotalThrottled += r.Throttled
			fs.TotalOffered += r.Offered
		}
		if attempts := fs.TotalThrottled + fs.TotalOffered; attempts > 0 {
			fs.ThrottleRate = float64(fs.TotalThrottled) / float64(attempts)
		}
	}
	return fs
}

// orZero collapses the stats error path: the kernels only fail on empty
// input, which callers have already excluded or are happy to see as 0.
func orZero(v float64, err error) float64 {
	if err != nil || math.IsNaN(v) {
		return 0
	}
	return v
}

// JainIndex returns Jain's fairness index (sum x)^2 / (n * sum x^2) over
// the given allocations. 1 means perfectly fair, 1/n means one flow takes
// everything. All-zero allocations count as fair; empty input returns 0.
func JainIndex(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum, sumSq float64
	for _, x := range xs {
		sum += x
		sumSq += x * x
	}
	if sumSq == 0 {
		return 1
	}
	return (sum * sum) / (float64(len(xs)) * sumSq)
}

// FairnessOverTime computes Jain's index at every distinct timestep over
// the client flows present at that timestep. Returned slices are parallel
// and time-ascending, ready for charting.
func FairnessOverTime(ds *goodput.Dataset) (times []float64, index []float64) {
	byT := make(map[float64][]float64)
	for _, s := range ds.ClientSeries() {
		for _, r := range s.Records {
			byT[r.T] = append(byT[r.T], r.Goodput)
		}
	}
	times = make([]float64, 0, len(byT))
	for t := range byT {
		times = append(times, t)
	}
	sort.Float64s(times)
	index = make([]float64, len(times))
	for i, t := range times {
		index[i] = JainIndex(byT[t])
	}
	return times, index
}

// ThrottleRates returns the per-timestep throttle rate of one flow,
// parallel to s.Times(). Timesteps with no attempts rate as 0.
func ThrottleRates(s goodput.Series) []float64 {
	out := make([]float64, len(s.Records))
	for i, r := range s.Records {
		if attempts := r.Throttled + r.Offered; attempts > 0 {
			out[i] = float64(r.Throttled) / float64(attempts)
		}
	}
	return out
}

// ThrottleRateOverTime computes the aggregate client throttle rate at
// every distinct timestep: all throttled over all attempts across client
// flows. Returns nil slices when the dataset lacks the count columns.
func ThrottleRateOverTime(ds *goodput.Dataset) (times []float64, rates []float64) {
	if !ds.HasCounts() {
		return nil, nil
	}
	type counts struct{ throttled, offered int64 }
	byT := make(map[float64]*counts)
	for _, s := range ds.ClientSeries() {
		for _, r := range s.Records {
			c := byT[r.T]
			if c == nil {
				c = &counts{}
				byT[r.T] = c
			}
			c.throttled += r.Throttled
			c.offered += r.Offered
		}
	}
	times = make([]float64, 0, len(byT))
	for t := range byT {
		times = append(times, t)
	}
	sort.Float64s(times)
	rates = make([]float64, len(times))
	for i, t := range times {
		c := byT[t]
		if attempts := c.throttled + c.offered; attempts > 0 {
			rates[i] = float64(c.throttled) / float64(attempts)
		}
	}
	return times, rates
}

// DisciplineStats is one side of a fairness comparison.
type DisciplineStats struct {
	Label            string  `json:"label"`
	AvgClientGoodput float64 `json:"avg_client_goodput_tps"`
	FairnessIndex    float64 `json:"fairness_index"`
	ThrottleRate     float64 `json:"throttle_rate,omitempty"`
}

// Comparison pairs two runs of the same scenario under different
// disciplines. Deltas are B minus A.
type Comparison struct {
	A              DisciplineStats `json:"a"`
	B              DisciplineStats `json:"b"`
	FairnessDelta  float64         `json:"fairness_delta"`
	GoodputDelta   float64         `json:"goodput_delta_tps"`
	FairnessWinner string          `json:"fairness_winner"`
}

// fairnessTie is the index delta below which two disciplines count as
// equally fair.
const fairnessTie = 1e-6

// Compare sets two dataset summaries side by side and names the fairer
// discipline.
func Compare(a, b DatasetSummary) Comparison {
	c := Comparison{
		A: DisciplineStats{
			Label:            a.Scenario.Label,
			AvgClientGoodput: a.AvgClientGoodput,
			FairnessIndex:    a.FairnessIndex,
			ThrottleRate:     a.ThrottleRate,
		},
		B: DisciplineStats{
			Label:            b.Scenario.Label,
			AvgClientGoodput: b.AvgClientGoodput,
			FairnessIndex:    b.FairnessIndex,
			ThrottleRate:     b.ThrottleRate,
		},
	}
	c.FairnessDelta = b.FairnessIndex - a.FairnessIndex
	c.GoodputDelta = b.AvgClientGoodput - a.AvgClientGoodput
	switch {
	case math.Abs(c.FairnessDelta) < fairnessTie:
		c.FairnessWinner = "tie"
	case c.FairnessDelta > 0:
		c.FairnessWinner = c.B.Label
	default:
		c.FairnessWinner = c.A.Label
	}
	return c
}
