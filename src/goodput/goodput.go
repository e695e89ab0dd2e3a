// Package goodput loads and groups the per-timestep CSV results written by
// the fair-service-throttle simulator.
package goodput

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/apex/log"
)

// Record is one simulator sample: one flow at one timestep.
type Record struct {
	T         float64 // seconds since scenario start
	Name      string  // flow identifier ("server" or "client_<i>_<tps>")
	Goodput   float64 // successful transactions per second
	Throttled int64   // throttled attempts in this timestep, when the column is present
	Offered   int64   // offered attempts in this timestep, when the column is present
	Type      string  // "server" or "client", when the column is present
}

// Series holds the samples of a single flow in file order.
type Series struct {
	Name    string
	Records []Record
}

// Times returns the t values of the series, in order.
func (s Series) Times() []float64 {
	out := make([]float64, len(s.Records))
	for i, r := range s.Records {
		out[i] = r.T
	}
	return out
}

// Goodputs returns the goodput values of the series, in order.
func (s Series) Goodputs() []float64 {
	out := make([]float64, len(s.Records))
	for i, r := range s.Records {
		out[i] = r.Goodput
	}
	return out
}

// IsServer reports whether the series is the aggregate server line rather
// than a client flow. Files without a type column are judged by name.
func (s Series) IsServer() bool {
	if len(s.Records) > 0 && s.Records[0].Type != "" {
		return s.Records[0].Type == "server"
	}
	return s.Name == "server"
}

// Scenario identifies one simulator run, parsed from the CSV filename.
type Scenario struct {
	Tag         string `json:"tag,omitempty"`    // raw discipline tag from the filename, e.g. "SFQ"
	Label       string `json:"label"`            // display title, e.g. "Stochastic Fairness Queueing"
	Suffix      string `json:"suffix,omitempty"` // run suffix, e.g. "baseline"
	TimestepSec int    `json:"timestep_sec,omitempty"`
}

// Dataset is the parsed content of one results file.
type Dataset struct {
	Path     string
	Scenario Scenario
	Columns  []string // header exactly as found in the file

	records      []Record
	series       []Series
	hasThrottled bool
	hasOffered   bool
	hasType      bool
}

// LoadOptions controls filtering during Load.
type LoadOptions struct {
	// ServerOnly keeps only the aggregate server rows; ClientsOnly the
	// inverse. Setting both is an error.
	ServerOnly  bool
	ClientsOnly bool
	// MaxRecords aborts the load when a file holds more rows than this.
	// 0 means no limit.
	MaxRecords int
}

// Required result columns. Extra columns in the file are ignored; these
// three must be present or the load fails.
var requiredColumns = []string{"t", "name", "goodput"}

// The simulator writes "Step<Tag>_<suffix>_timestep-<N>-sec.csv".
var scenarioRe = regexp.MustCompile(`^Step([A-Za-z0-9]+?)_(.+)_timestep-(\d+)-sec$`)

// ParseScenario extracts the scenario encoded in a results filename. The
// second return is false when the name does not follow the convention, in
// which case the caller should fall back to the bare filename.
func ParseScenario(path string) (Scenario, bool) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	m := scenarioRe.FindStringSubmatch(base)
	if m == nil {
		return Scenario{}, false
	}
	step, err := strconv.Atoi(m[3])
	if err != nil || step <= 0 {
		return Scenario{}, false
	}
	sc := Scenario{Tag: m[1], Suffix: m[2], TimestepSec: step}
	sc.Label = disciplineLabel(sc.Tag)
	return sc, true
}

func disciplineLabel(tag string) string {
	switch tag {
	case "SFQ":
		return "Stochastic Fairness Queueing"
	case "BF":
		return "Bloom Filter"
	case "BFNoFairness":
		return "Bloom Filter (no fairness)"
	case "SFQ1000Clients":
		return "Stochastic Fairness Queueing (1000 clients)"
	}
	if strings.HasPrefix(tag, "SFQ") {
		return "Stochastic Fairness Queueing " + tag[len("SFQ"):]
	}
	if strings.HasPrefix(tag, "BF") {
		return "Bloom Filter " + tag[len("BF"):]
	}
	return tag
}

// LoadFile loads one results CSV from disk. The dataset's Scenario is filled
// from the filename when it follows the simulator's naming convention.
func LoadFile(path string, opts LoadOptions) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ds, err := Load(bufio.NewReader(f), opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ds.Path = path
	if sc, ok := ParseScenario(path); ok {
		ds.Scenario = sc
	} else {
		ds.Scenario = Scenario{Label: filepath.Base(path)}
	}
	log.Debugf("goodput: loaded %d records (%d flows) from %s", ds.Len(), len(ds.series), path)
	return ds, nil
}

// Load parses a results CSV. The header row decides column order; the
// simulator's space-after-comma spacing is accepted. A missing required
// column or a malformed row fails the whole load, never a partial dataset.
func Load(r io.Reader, opts LoadOptions) (*Dataset, error) {
	if opts.ServerOnly && opts.ClientsOnly {
		return nil, fmt.Errorf("conflicting filters: ServerOnly and ClientsOnly")
	}
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	cols := make([]string, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		cols[i] = name
		if _, dup := col[name]; dup {
			return nil, fmt.Errorf("duplicate column %q in header", name)
		}
		col[name] = i
	}
	for _, req := range requiredColumns {
		if _, ok := col[req]; !ok {
			return nil, fmt.Errorf("missing required column %q (header: %s)", req, strings.Join(cols, ","))
		}
	}

	ds := &Dataset{Columns: cols}
	_, ds.hasThrottled = col["throttled"]
	_, ds.hasOffered = col["offered"]
	_, ds.hasType = col["type"]

	line := 1 // header
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line++
		rec, err := parseRow(row, col, ds)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if opts.ServerOnly && !isServerRecord(rec) {
			continue
		}
		if opts.ClientsOnly && isServerRecord(rec) {
			continue
		}
		ds.records = append(ds.records, rec)
		if opts.MaxRecords > 0 && len(ds.records) > opts.MaxRecords {
			return nil, fmt.Errorf("more than %d records", opts.MaxRecords)
		}
	}
	ds.buildSeries()
	return ds, nil
}

func parseRow(row []string, col map[string]int, ds *Dataset) (Record, error) {
	var rec Record
	var err error
	rec.T, err = parseFloatField(row, col["t"], "t")
	if err != nil {
		return rec, err
	}
	rec.Goodput, err = parseFloatField(row, col["goodput"], "goodput")
	if err != nil {
		return rec, err
	}
	rec.Name = strings.TrimSpace(row[col["name"]])
	if rec.Name == "" {
		return rec, fmt.Errorf("empty name")
	}
	if ds.hasThrottled {
		rec.Throttled, err = parseIntField(row, col["throttled"], "throttled")
		if err != nil {
			return rec, err
		}
	}
	if ds.hasOffered {
		rec.Offered, err = parseIntField(row, col["offered"], "offered")
		if err != nil {
			return rec, err
		}
	}
	if ds.hasType {
		rec.Type = strings.TrimSpace(row[col["type"]])
	}
	return rec, nil
}

func parseFloatField(row []string, idx int, name string) (float64, error) {
	s := strings.TrimSpace(row[idx])
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s value %q", name, s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite %s value %q", name, s)
	}
	return v, nil
}

func parseIntField(row []string, idx int, name string) (int64, error) {
	s := strings.TrimSpace(row[idx])
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s value %q", name, s)
	}
	return v, nil
}

func isServerRecord(r Record) bool {
	if r.Type != "" {
		return r.Type == "server"
	}
	return r.Name == "server"
}

// buildSeries groups records by flow name. Names are sorted so repeated runs
// over the same input produce identical series order and colors. Row order
// within a flow is kept exactly as in the file.
func (d *Dataset) buildSeries() {
	byName := make(map[string][]Record)
	var names []string
	for _, r := range d.records {
		if _, seen := byName[r.Name]; !seen {
			names = append(names, r.Name)
		}
		byName[r.Name] = append(byName[r.Name], r)
	}
	sort.Strings(names)
	d.series = make([]Series, 0, len(names))
	for _, n := range names {
		d.series = append(d.series, Series{Name: n, Records: byName[n]})
	}
}

// Series returns the per-flow series, sorted by flow name.
func (d *Dataset) Series() []Series { return d.series }

// ClientSeries returns the series excluding the aggregate server line.
func (d *Dataset) ClientSeries() []Series {
	out := make([]Series, 0, len(d.series))
	for _, s := range d.series {
		if !s.IsServer() {
			out = append(out, s)
		}
	}
	return out
}

// SeriesFor returns the series of one flow.
func (d *Dataset) SeriesFor(name string) (Series, bool) {
	for _, s := range d.series {
		if s.Name == name {
			return s, true
		}
	}
	return Series{}, false
}

// FlowNames returns the sorted flow names present in the dataset.
func (d *Dataset) FlowNames() []string {
	out := make([]string, len(d.series))
	for i, s := range d.series {
		out[i] = s.Name
	}
	return out
}

// Len is the number of records kept after filtering.
func (d *Dataset) Len() int { return len(d.records) }

// Records returns all kept records in file order.
func (d *Dataset) Records() []Record { return d.records }

// HasCounts reports whether both the throttled and offered columns were
// present, which the throttle-rate views need.
func (d *Dataset) HasCounts() bool { return d.hasThrottled && d.hasOffered }

// HasType reports whether the type column was present.
func (d *Dataset) HasType() bool { return d.hasType }

// TimeRange returns the min and max t over all records, (0, 0) when empty.
func (d *Dataset) TimeRange() (float64, float64) {
	if len(d.records) == 0 {
		return 0, 0
	}
	min, max := d.records[0].T, d.records[0].T
	for _, r := range d.records[1:] {
		if r.T < min {
			min = r.T
		}
		if r.T > max {
			max = r.T
		}
	}
	return min, max
}

// GoodputRange returns the min and max goodput over all records, (0, 0)
// when empty.
func (d *Dataset) GoodputRange() (float64, float64) {
	if len(d.records) == 0 {
		return 0, 0
	}
	min, max := d.records[0].Goodput, d.records[0].Goodput
	for _, r := range d.records[1:] {
		if r.Goodput < min {
			min = r.Goodput
		}
		if r.Goodput > max {
			max = r.Goodput
		}
	}
	return min, max
}

// ScenarioPair names one SFQ/BF file pair in a scenarios.jsonc list.
type ScenarioPair struct {
	Name string `json:"name"`
	SFQ  string `json:"sfq"`
	BF   string `json:"bf"`
}

// StripJSONC reads a JSONC file and removes full-line // comments. Inline
// comments are NOT removed so URLs in values survive.
func StripJSONC(filename string) ([]byte, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []byte
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") {
			continue
		}
		out = append(out, []byte(line+"\n")...)
	}
	return out, scanner.Err()
}

// LoadScenarios reads the JSONC scenario list. Relative CSV paths are
// resolved against the directory holding the list file.
func LoadScenarios(path string) ([]ScenarioPair, error) {
	b, err := StripJSONC(path)
	if err != nil {
		return nil, err
	}
	var pairs []ScenarioPair
	if err := json.Unmarshal(b, &pairs); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i := range pairs {
		p := &pairs[i]
		if p.Name == "" || p.SFQ == "" || p.BF == "" {
			return nil, fmt.Errorf("%s: scenario %d needs name, sfq and bf", path, i)
		}
		if !filepath.IsAbs(p.SFQ) {
			p.SFQ = filepath.Join(dir, p.SFQ)
		}
		if !filepath.IsAbs(p.BF) {
			p.BF = filepath.Join(dir, p.BF)
		}
	}
	return pairs, nil
}
