package main

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/fermibubble/fair-service-throttle/src/goodput"
)

// RunScreenshotsMode renders the full set of charts and writes them as PNGs
// under outDir. It runs headlessly without creating a UI window.
func RunScreenshotsMode(sfqPath, bfPath, outDir string) error {
	if sfqPath == "" {
		sfqPath = defaultSFQFile
	}
	if bfPath == "" {
		bfPath = defaultBFFile
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create out dir: %w", err)
	}
	st := &uiState{
		sfqPath:      sfqPath,
		bfPath:       bfPath,
		yScaleMode:   "absolute",
		showServer:   true,
		showFairness: true,
		showHints:    false,
	}
	var err error
	st.sfq, err = goodput.LoadFile(sfqPath, goodput.LoadOptions{})
	if err != nil {
		return err
	}
	st.bf, err = goodput.LoadFile(bfPath, goodput.LoadOptions{})
	if err != nil {
		return err
	}
	rebuildFlowColors(st)

	toRender := []struct {
		name string
		fn   func() image.Image
	}{
		{"goodput_sfq.png", func() image.Image { return renderGoodputChart(st, st.sfq) }},
		{"goodput_bf.png", func() image.Image { return renderGoodputChart(st, st.bf) }},
		{"fairness_index.png", func() image.Image { return renderFairnessChart(st) }},
		{"throttle_rate.png", func() image.Image { return renderThrottleChart(st) }},
	}

	// chartSize falls back to a fixed width when state.window is nil.
	for _, item := range toRender {
		img := item.fn()
		if img == nil {
			continue
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return fmt.Errorf("png encode %s: %w", item.name, err)
		}
		outPath := filepath.Join(outDir, item.name)
		if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
	}
	return nil
}
