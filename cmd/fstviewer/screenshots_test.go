package main

import (
	"image"
	_ "image/png" // register PNG decoder
	"os"
	"path/filepath"
	"testing"
)

// TestScreenshotsMode_WritesAllCharts ensures the headless mode writes every
// chart for a loaded pair and that all PNGs share the headless chart width.
func TestScreenshotsMode_WritesAllCharts(t *testing.T) {
	screenshotWidthOverride = 1200
	defer func() { screenshotWidthOverride = 0 }()

	dir := t.TempDir()
	sfqPath := writeFixtureFile(t, dir, "StepSFQ_baseline_timestep-1-sec.csv", equalClientsCSV)
	bfPath := writeFixtureFile(t, dir, "StepBF_baseline_timestep-1-sec.csv", skewedClientsCSV)
	outDir := t.TempDir()

	if err := RunScreenshotsMode(sfqPath, bfPath, outDir); err != nil {
		t.Fatalf("RunScreenshotsMode: %v", err)
	}

	expectedW, _ := chartSize(nil)
	names := []string{"goodput_sfq.png", "goodput_bf.png", "fairness_index.png", "throttle_rate.png"}
	for _, name := range names {
		path := filepath.Join(outDir, name)
		f, err := os.Open(path)
		if err != nil {
			t.Fatalf("missing screenshot %s: %v", name, err)
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			t.Fatalf("decode %s: %v", name, err)
		}
		if w := img.Bounds().Dx(); w != expectedW {
			t.Fatalf("width mismatch for %s: got %d want %d", name, w, expectedW)
		}
	}
}

// TestScreenshotsMode_MissingInput surfaces the load error instead of
// writing partial output.
func TestScreenshotsMode_MissingInput(t *testing.T) {
	dir := t.TempDir()
	bfPath := writeFixtureFile(t, dir, "StepBF_baseline_timestep-1-sec.csv", skewedClientsCSV)
	outDir := t.TempDir()
	err := RunScreenshotsMode(filepath.Join(dir, "absent.csv"), bfPath, outDir)
	if err == nil {
		t.Fatalf("expected an error for a missing input file")
	}
	entries, rerr := os.ReadDir(outDir)
	if rerr != nil {
		t.Fatalf("read out dir: %v", rerr)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".png" {
			t.Fatalf("unexpected screenshot written after load failure: %s", e.Name())
		}
	}
}
