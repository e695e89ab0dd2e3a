package goodput

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// simCSV builds input in the simulator's own format: plain header, then a
// space after every comma in data rows.
func simCSV(rows ...string) string {
	return "t,goodput,throttled,offered,type,name\n" + strings.Join(rows, "\n") + "\n"
}

func TestLoadGroupsByFlow(t *testing.T) {
	in := simCSV(
		"0.000000, 150, 0, 150, client, client_0_150.00",
		"0.000000, 10, 0, 10, client, client_3_10.00",
		"0.000000, 200, 0, 460, server, server",
		"1.000000, 120, 30, 150, client, client_0_150.00",
		"1.000000, 10, 0, 10, client, client_3_10.00",
		"1.000000, 200, 30, 460, server, server",
	)
	ds, err := Load(strings.NewReader(in), LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got, want := ds.Len(), 6; got != want {
		t.Fatalf("Len=%d want %d", got, want)
	}
	names := ds.FlowNames()
	want := []string{"client_0_150.00", "client_3_10.00", "server"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("flow names mismatch (-want +got):\n%s", diff)
	}
	if got := len(ds.Series()); got != 3 {
		t.Fatalf("series=%d want 3", got)
	}
	s, ok := ds.SeriesFor("client_0_150.00")
	if !ok || len(s.Records) != 2 {
		t.Fatalf("client_0 series ok=%v len=%d", ok, len(s.Records))
	}
	if s.Records[1].Throttled != 30 || s.Records[1].Offered != 150 {
		t.Fatalf("counts not parsed: %+v", s.Records[1])
	}
	if !ds.HasCounts() || !ds.HasType() {
		t.Fatalf("expected counts and type columns to be detected")
	}
}

func TestLoadHeaderOrderIndependent(t *testing.T) {
	in := "goodput,name,t\n150,client_a,0\n140,client_a,1\n"
	ds, err := Load(strings.NewReader(in), LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.HasCounts() || ds.HasType() {
		t.Fatalf("optional columns reported present on minimal header")
	}
	s, ok := ds.SeriesFor("client_a")
	if !ok {
		t.Fatal("client_a missing")
	}
	if diff := cmp.Diff([]float64{0, 1}, s.Times()); diff != "" {
		t.Fatalf("times (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{150, 140}, s.Goodputs()); diff != "" {
		t.Fatalf("goodputs (-want +got):\n%s", diff)
	}
}

func TestLoadMissingGoodputColumn(t *testing.T) {
	in := "t,name,offered\n0,client_a,10\n"
	_, err := Load(strings.NewReader(in), LoadOptions{})
	if err == nil {
		t.Fatal("expected error for missing goodput column")
	}
	if !strings.Contains(err.Error(), "goodput") {
		t.Fatalf("error does not name the column: %v", err)
	}
}

func TestLoadMissingHeader(t *testing.T) {
	if _, err := Load(strings.NewReader(""), LoadOptions{}); err == nil {
		t.Fatal("expected error on empty input")
	}
}

func TestLoadRejectsBadRows(t *testing.T) {
	cases := []struct {
		name string
		in   string
		frag string
	}{
		{"bad t", "t,name,goodput\nnope,client_a,1\n", "t"},
		{"bad goodput", "t,name,goodput\n0,client_a,fast\n", "goodput"},
		{"nan goodput", "t,name,goodput\n0,client_a,NaN\n", "goodput"},
		{"empty name", "t,name,goodput\n0,,1\n", "name"},
		{"bad throttled", "t,name,goodput,throttled\n0,client_a,1,x\n", "throttled"},
		{"short row", "t,name,goodput\n0,client_a\n", ""},
		{"duplicate column", "t,t,goodput,name\n0,0,1,a\n", "duplicate"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(c.in), LoadOptions{})
			if err == nil {
				t.Fatal("expected error")
			}
			if c.frag != "" && !strings.Contains(err.Error(), c.frag) {
				t.Fatalf("error %q does not mention %q", err, c.frag)
			}
		})
	}
}

func TestLoadDeterministic(t *testing.T) {
	// Interleaved arrival order; grouping and series order must not depend
	// on it beyond the file order kept inside each flow.
	in := simCSV(
		"0.000000, 200, 0, 460, server, server",
		"0.000000, 150, 0, 150, client, client_1_150.00",
		"0.000000, 10, 0, 10, client, client_3_10.00",
		"1.000000, 150, 0, 150, client, client_1_150.00",
	)
	a, err := Load(strings.NewReader(in), LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b, err := Load(strings.NewReader(in), LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(a.Series(), b.Series()); diff != "" {
		t.Fatalf("series differ across identical loads:\n%s", diff)
	}
	if diff := cmp.Diff([]string{"client_1_150.00", "client_3_10.00", "server"}, a.FlowNames()); diff != "" {
		t.Fatalf("names not sorted (-want +got):\n%s", diff)
	}
}

func TestTimeAndGoodputRange(t *testing.T) {
	in := "t,name,goodput\n5,client_a,10\n0,client_a,150\n12,client_b,3\n"
	ds, err := Load(strings.NewReader(in), LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if lo, hi := ds.TimeRange(); lo != 0 || hi != 12 {
		t.Fatalf("TimeRange=(%v,%v) want (0,12)", lo, hi)
	}
	if lo, hi := ds.GoodputRange(); lo != 3 || hi != 150 {
		t.Fatalf("GoodputRange=(%v,%v) want (3,150)", lo, hi)
	}
	empty, err := Load(strings.NewReader("t,name,goodput\n"), LoadOptions{})
	if err != nil {
		t.Fatalf("Load empty: %v", err)
	}
	if lo, hi := empty.TimeRange(); lo != 0 || hi != 0 {
		t.Fatalf("empty TimeRange=(%v,%v) want (0,0)", lo, hi)
	}
}

func TestLoadFilters(t *testing.T) {
	in := simCSV(
		"0.000000, 150, 0, 150, client, client_0_150.00",
		"0.000000, 200, 0, 460, server, server",
	)
	srv, err := Load(strings.NewReader(in), LoadOptions{ServerOnly: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]string{"server"}, srv.FlowNames()); diff != "" {
		t.Fatalf("ServerOnly (-want +got):\n%s", diff)
	}
	cli, err := Load(strings.NewReader(in), LoadOptions{ClientsOnly: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]string{"client_0_150.00"}, cli.FlowNames()); diff != "" {
		t.Fatalf("ClientsOnly (-want +got):\n%s", diff)
	}
	if _, err := Load(strings.NewReader(in), LoadOptions{ServerOnly: true, ClientsOnly: true}); err == nil {
		t.Fatal("expected error for conflicting filters")
	}
	if _, err := Load(strings.NewReader(in), LoadOptions{MaxRecords: 1}); err == nil {
		t.Fatal("expected error above MaxRecords")
	}
}

func TestServerDetectionWithoutTypeColumn(t *testing.T) {
	in := "t,name,goodput\n0,server,200\n0,client_a,150\n"
	ds, err := Load(strings.NewReader(in), LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	clients := ds.ClientSeries()
	if len(clients) != 1 || clients[0].Name != "client_a" {
		t.Fatalf("ClientSeries=%+v want just client_a", clients)
	}
	s, _ := ds.SeriesFor("server")
	if !s.IsServer() {
		t.Fatal("server flow not detected by name")
	}
}

func TestParseScenario(t *testing.T) {
	cases := []struct {
		path string
		ok   bool
		want Scenario
	}{
		{"StepSFQ_baseline_timestep-1-sec.csv", true,
			Scenario{Tag: "SFQ", Label: "Stochastic Fairness Queueing", Suffix: "baseline", TimestepSec: 1}},
		{"/data/runs/StepBF_baseline_timestep-1-sec.csv", true,
			Scenario{Tag: "BF", Label: "Bloom Filter", Suffix: "baseline", TimestepSec: 1}},
		{"StepBFNoFairness_smoke_test_timestep-10-sec.csv", true,
			Scenario{Tag: "BFNoFairness", Label: "Bloom Filter (no fairness)", Suffix: "smoke_test", TimestepSec: 10}},
		{"StepSFQ1000Clients_load_timestep-1-sec.csv", true,
			Scenario{Tag: "SFQ1000Clients", Label: "Stochastic Fairness Queueing (1000 clients)", Suffix: "load", TimestepSec: 1}},
		{"results.csv", false, Scenario{}},
		{"StepSFQ_baseline.csv", false, Scenario{}},
	}
	for _, c := range cases {
		got, ok := ParseScenario(c.path)
		if ok != c.ok {
			t.Fatalf("%s: ok=%v want %v", c.path, ok, c.ok)
		}
		if diff := cmp.Diff(c.want, got); diff != "" {
			t.Fatalf("%s: (-want +got):\n%s", c.path, diff)
		}
	}
}

func TestLoadFileSetsScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "StepSFQ_baseline_timestep-1-sec.csv")
	if err := os.WriteFile(path, []byte("t,name,goodput\n0,client_a,1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ds, err := LoadFile(path, LoadOptions{})
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if ds.Path != path {
		t.Fatalf("Path=%q want %q", ds.Path, path)
	}
	if got, want := ds.Scenario.Label, "Stochastic Fairness Queueing"; got != want {
		t.Fatalf("Label=%q want %q", got, want)
	}

	other := filepath.Join(dir, "whatever.csv")
	if err := os.WriteFile(other, []byte("t,name,goodput\n0,client_a,1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ds2, err := LoadFile(other, LoadOptions{})
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got, want := ds2.Scenario.Label, "whatever.csv"; got != want {
		t.Fatalf("fallback Label=%q want %q", got, want)
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.csv"), LoadOptions{}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadScenarios(t *testing.T) {
	dir := t.TempDir()
	jsonc := filepath.Join(dir, "scenarios.jsonc")
	body := `// simulator runs to compare
[
  {"name": "baseline", "sfq": "StepSFQ_baseline_timestep-1-sec.csv", "bf": "StepBF_baseline_timestep-1-sec.csv"},
  {"name": "abs", "sfq": "/abs/sfq.csv", "bf": "/abs/bf.csv"}
]
`
	if err := os.WriteFile(jsonc, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	pairs, err := LoadScenarios(jsonc)
	if err != nil {
		t.Fatalf("LoadScenarios: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("pairs=%d want 2", len(pairs))
	}
	if want := filepath.Join(dir, "StepSFQ_baseline_timestep-1-sec.csv"); pairs[0].SFQ != want {
		t.Fatalf("relative path not resolved: %q want %q", pairs[0].SFQ, want)
	}
	if pairs[1].SFQ != "/abs/sfq.csv" {
		t.Fatalf("absolute path rewritten: %q", pairs[1].SFQ)
	}

	bad := filepath.Join(dir, "bad.jsonc")
	if err := os.WriteFile(bad, []byte(`[{"name": "x", "sfq": "a.csv"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadScenarios(bad); err == nil {
		t.Fatal("expected error for incomplete scenario entry")
	}
}

func TestStripJSONCKeepsInlineComments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.jsonc")
	body := "// header\n{\"url\": \"http://example.com\"}\n\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := StripJSONC(path)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(out), "{\"url\": \"http://example.com\"}\n"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
