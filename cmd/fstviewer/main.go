package main

import (
	"bytes"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/fermibubble/fair-service-throttle/cmd/fstviewer/uihelpers"
	"github.com/fermibubble/fair-service-throttle/src/analysis"
	"github.com/fermibubble/fair-service-throttle/src/goodput"
)

const (
	defaultSFQFile = "StepSFQ_baseline_timestep-1-sec.csv"
	defaultBFFile  = "StepBF_baseline_timestep-1-sec.csv"
)

// lineStyle returns the solid stroke used for flow lines.
func lineStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: 2,
		StrokeColor: col,
	}
}

// flowPalette is indexed by the flow's position in the sorted union of
// client names, so a flow keeps its color across both panels.
var flowPalette = []drawing.Color{
	chart.ColorBlue,
	chart.ColorGreen,
	chart.ColorRed,
	chart.ColorOrange,
	chart.ColorCyan,
	chart.ColorAlternateGreen,
	chart.ColorAlternateBlue,
	chart.ColorYellow,
}

type uiState struct {
	app    fyne.App
	window fyne.Window

	sfqPath string
	bfPath  string
	sfq     *goodput.Dataset
	bf      *goodput.Dataset
	// named pairs from a --scenarios file, selectable in the top bar
	pairs []goodput.ScenarioPair

	// per-flow colors from the sorted union of client names
	flowColors map[string]drawing.Color
	// summaries backing the Summary tab (SFQ first, then BF)
	summaries []summaryEntry

	// toggles and modes
	yScaleMode   string // "absolute" or "relative"
	useRelative  bool   // derived flag to avoid case/string mismatches
	showServer   bool
	showFairness bool
	showHints    bool

	// widgets
	table             *widget.Table
	sfqImgCanvas      *canvas.Image
	bfImgCanvas       *canvas.Image
	fairnessImgCanvas *canvas.Image
	throttleImgCanvas *canvas.Image
	fairnessSection   *fyne.Container
}

type summaryEntry struct {
	discipline string
	hasCounts  bool
	flow       analysis.FlowSummary
}

// dark theme wrapper
type darkTheme struct{}

func (d *darkTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	return theme.DefaultTheme().Color(name, theme.VariantDark)
}
func (d *darkTheme) Font(style fyne.TextStyle) fyne.Resource { return theme.DefaultTheme().Font(style) }
func (d *darkTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}
func (d *darkTheme) Size(name fyne.ThemeSizeName) float32 { return theme.DefaultTheme().Size(name) }

func main() {
	var sfqFlag, bfFlag, scenariosFlag, screenshotsDir string
	var verbose bool
	flag.StringVar(&sfqFlag, "sfq", "", "Path to the SFQ results CSV")
	flag.StringVar(&bfFlag, "bf", "", "Path to the Bloom filter results CSV")
	flag.StringVar(&scenariosFlag, "scenarios", "", "Path to a JSONC file listing named scenario pairs")
	flag.StringVar(&screenshotsDir, "screenshots", "", "Render all charts headlessly into this directory and exit")
	flag.BoolVar(&verbose, "verbose", false, "Enable verbose log output")
	flag.Parse()

	log.SetHandler(cli.Default)
	log.SetLevel(log.InfoLevel)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}

	if screenshotsDir != "" {
		if err := RunScreenshotsMode(sfqFlag, bfFlag, screenshotsDir); err != nil {
			log.WithError(err).Error("screenshots mode failed")
			os.Exit(1)
		}
		return
	}

	a := app.NewWithID("com.fermibubble.fstviewer")
	a.Settings().SetTheme(&darkTheme{})
	w := a.NewWindow("FST Viewer")
	w.Resize(fyne.NewSize(1100, 800))

	state := &uiState{
		app:        a,
		window:     w,
		sfqPath:    sfqFlag,
		bfPath:     bfFlag,
		yScaleMode: "absolute",
		showServer: true,
	}
	if scenariosFlag != "" {
		pairs, err := goodput.LoadScenarios(scenariosFlag)
		if err != nil {
			log.WithError(err).Error("load scenarios failed")
		}
		state.pairs = pairs
		// Explicit file flags win over the scenario file's first entry.
		if len(pairs) > 0 && state.sfqPath == "" && state.bfPath == "" {
			applyScenarioPair(state, pairs[0])
		}
	}
	// Load showHints early so the checkbox reflects it on creation
	state.showHints = a.Preferences().BoolWithFallback("showHints", false)
	state.showFairness = a.Preferences().BoolWithFallback("showFairness", false)

	// top bar controls
	fileLabel := widget.NewLabel(pairLabel(state))
	serverChk := widget.NewCheck("Server", nil)
	fairnessChk := widget.NewCheck("Fairness Panels", nil)
	hintsChk := widget.NewCheck("Hints", nil)
	hintsChk.SetChecked(state.showHints)
	yScaleSelect := widget.NewSelect([]string{"Absolute", "Relative"}, nil)
	yScaleSelect.Selected = "Absolute"
	scenarioSelect := widget.NewSelect(scenarioNames(state), nil)
	if len(state.pairs) == 0 {
		scenarioSelect.Hide()
	}

	// Summary table: one row per flow per discipline
	state.table = widget.NewTable(
		func() (int, int) {
			rows := len(state.summaries) + 1
			if rows < 1 {
				rows = 1
			}
			return rows, 8
		},
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.TableCellID, o fyne.CanvasObject) {
			lbl := o.(*widget.Label)
			if id.Row == 0 {
				switch id.Col {
				case 0:
					lbl.SetText("Discipline")
				case 1:
					lbl.SetText("Flow")
				case 2:
					lbl.SetText("Samples")
				case 3:
					lbl.SetText("Avg (tps)")
				case 4:
					lbl.SetText("Median (tps)")
				case 5:
					lbl.SetText("Min (tps)")
				case 6:
					lbl.SetText("Max (tps)")
				case 7:
					lbl.SetText("Throttled (%)")
				}
				return
			}
			rix := id.Row - 1
			if rix < 0 || rix >= len(state.summaries) {
				lbl.SetText("")
				return
			}
			e := state.summaries[rix]
			switch id.Col {
			case 0:
				lbl.SetText(e.discipline)
			case 1:
				lbl.SetText(e.flow.Name)
			case 2:
				lbl.SetText(fmt.Sprintf("%d", e.flow.Samples))
			case 3:
				lbl.SetText(fmt.Sprintf("%.1f", e.flow.AvgGoodput))
			case 4:
				lbl.SetText(fmt.Sprintf("%.1f", e.flow.MedianGoodput))
			case 5:
				lbl.SetText(fmt.Sprintf("%.1f", e.flow.MinGoodput))
			case 6:
				lbl.SetText(fmt.Sprintf("%.1f", e.flow.MaxGoodput))
			case 7:
				if e.hasCounts && !e.flow.Server {
					lbl.SetText(fmt.Sprintf("%.1f", e.flow.ThrottleRate*100))
				} else {
					lbl.SetText("-")
				}
			}
		},
	)
	updateColumnVisibility(state)

	// chart placeholders
	for _, c := range []**canvas.Image{&state.sfqImgCanvas, &state.bfImgCanvas, &state.fairnessImgCanvas, &state.throttleImgCanvas} {
		img := canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 100, 60)))
		img.FillMode = canvas.ImageFillContain
		img.SetMinSize(fyne.NewSize(900, 320))
		*c = img
	}

	// layout
	top := container.NewHBox(
		widget.NewButton("Open SFQ…", func() { openFileDialog(state, fileLabel, false) }),
		widget.NewButton("Open BF…", func() { openFileDialog(state, fileLabel, true) }),
		widget.NewButton("Reload", func() { loadAll(state, fileLabel) }),
		scenarioSelect,
		widget.NewLabel("Y-Scale:"), yScaleSelect,
		serverChk, fairnessChk, hintsChk,
		widget.NewLabel("Files:"), fileLabel,
	)
	state.fairnessSection = container.NewVBox(
		widget.NewSeparator(),
		state.fairnessImgCanvas,
		widget.NewSeparator(),
		state.throttleImgCanvas,
	)
	chartsColumn := container.NewVBox(
		state.sfqImgCanvas,
		widget.NewSeparator(),
		state.bfImgCanvas,
		state.fairnessSection,
	)
	chartsScroll := container.NewVScroll(chartsColumn)
	chartsScroll.SetMinSize(fyne.NewSize(900, 650))
	tabs := container.NewAppTabs(
		container.NewTabItem("Charts", chartsScroll),
		container.NewTabItem("Summary", state.table),
	)
	tabs.SetTabLocation(container.TabLocationTop)
	tabs.OnSelected = func(ti *container.TabItem) {
		if state != nil && state.app != nil {
			state.app.Preferences().SetInt("selectedTabIndex", tabs.SelectedIndex())
		}
	}
	content := container.NewBorder(top, nil, nil, nil, tabs)
	w.SetContent(content)

	// Redraw charts on window resize so they scale with width
	if w.Canvas() != nil {
		prevW := int(w.Canvas().Size().Width)
		done := make(chan struct{})
		w.SetOnClosed(func() {
			savePrefs(state)
			close(done)
		})
		go func() {
			t := time.NewTicker(300 * time.Millisecond)
			defer t.Stop()
			for {
				select {
				case <-done:
					return
				case <-t.C:
					c := w.Canvas()
					if c == nil {
						continue
					}
					sz := c.Size()
					curW := int(sz.Width)
					if curW != prevW {
						prevW = curW
						fyne.Do(func() {
							updateColumnVisibility(state)
							redrawCharts(state)
						})
					}
				}
			}
		}()
	}

	// Now that canvases are ready, assign checkbox callbacks
	serverChk.OnChanged = func(b bool) {
		state.showServer = b
		savePrefs(state)
		redrawCharts(state)
	}
	fairnessChk.OnChanged = func(b bool) {
		state.showFairness = b
		savePrefs(state)
		applyFairnessVisibility(state)
		redrawCharts(state)
	}
	hintsChk.OnChanged = func(b bool) {
		state.showHints = b
		savePrefs(state)
		redrawCharts(state)
	}
	yScaleSelect.OnChanged = func(v string) {
		if strings.EqualFold(v, "Relative") {
			state.yScaleMode = "relative"
			state.useRelative = true
		} else {
			state.yScaleMode = "absolute"
			state.useRelative = false
		}
		savePrefs(state)
		redrawCharts(state)
	}
	scenarioSelect.OnChanged = func(name string) {
		for _, p := range state.pairs {
			if p.Name == name {
				applyScenarioPair(state, p)
				fileLabel.SetText(pairLabel(state))
				savePrefs(state)
				loadAll(state, fileLabel)
				return
			}
		}
	}

	// menus, prefs, initial load
	buildMenus(state, fileLabel)
	loadPrefs(state, serverChk, fairnessChk, fileLabel, yScaleSelect, tabs)
	applyFairnessVisibility(state)
	loadAll(state, fileLabel)

	w.ShowAndRun()
}

// menus and dialogs
func buildMenus(state *uiState, fileLabel *widget.Label) {
	if state == nil || state.window == nil || state.app == nil {
		return
	}
	var items []*fyne.MenuItem
	for _, p := range recentPairs(state) {
		p := p
		items = append(items, fyne.NewMenuItem(truncatePath(p.SFQ, 60), func() {
			state.sfqPath = p.SFQ
			state.bfPath = p.BF
			fileLabel.SetText(pairLabel(state))
			savePrefs(state)
			loadAll(state, fileLabel)
		}))
	}
	clearRecent := fyne.NewMenuItem("Clear Recent", func() { clearRecentPairs(state); buildMenus(state, fileLabel) })
	recentMenu := fyne.NewMenu("Open Recent", append(items, clearRecent)...)
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open SFQ…", func() { openFileDialog(state, fileLabel, false) }),
		fyne.NewMenuItem("Open BF…", func() { openFileDialog(state, fileLabel, true) }),
		fyne.NewMenuItem("Reload", func() { loadAll(state, fileLabel) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Export SFQ Chart…", func() { exportChartPNG(state, state.sfqImgCanvas, "goodput_sfq.png") }),
		fyne.NewMenuItem("Export BF Chart…", func() { exportChartPNG(state, state.bfImgCanvas, "goodput_bf.png") }),
		fyne.NewMenuItem("Export Fairness Chart…", func() { exportChartPNG(state, state.fairnessImgCanvas, "fairness_index.png") }),
		fyne.NewMenuItem("Export Throttle Chart…", func() { exportChartPNG(state, state.throttleImgCanvas, "throttle_rate.png") }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() { state.window.Close() }),
	)
	mainMenu := fyne.NewMainMenu(fileMenu, recentMenu)
	state.window.SetMainMenu(mainMenu)

	canv := state.window.Canvas()
	if canv != nil {
		canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: fyne.KeyModifierSuper}, func(fyne.Shortcut) { openFileDialog(state, fileLabel, false) })
		canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: fyne.KeyModifierControl}, func(fyne.Shortcut) { openFileDialog(state, fileLabel, false) })
		canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyR, Modifier: fyne.KeyModifierSuper}, func(fyne.Shortcut) { loadAll(state, fileLabel) })
		canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyR, Modifier: fyne.KeyModifierControl}, func(fyne.Shortcut) { loadAll(state, fileLabel) })
		canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyW, Modifier: fyne.KeyModifierSuper}, func(fyne.Shortcut) { state.window.Close() })
		canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyW, Modifier: fyne.KeyModifierControl}, func(fyne.Shortcut) { state.window.Close() })
	}
}

// file open dialog; forBF picks which slot the chosen file lands in
func openFileDialog(state *uiState, fileLabel *widget.Label, forBF bool) {
	d := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil || rc == nil {
			return
		}
		defer rc.Close()
		if forBF {
			state.bfPath = rc.URI().Path()
		} else {
			state.sfqPath = rc.URI().Path()
		}
		fileLabel.SetText(pairLabel(state))
		addRecentPair(state, state.sfqPath, state.bfPath)
		savePrefs(state)
		loadAll(state, fileLabel)
	}, state.window)
	d.Show()
}

// load data and render
func loadAll(state *uiState, fileLabel *widget.Label) {
	if state.sfqPath == "" {
		if _, err := os.Stat(defaultSFQFile); err == nil {
			state.sfqPath = defaultSFQFile
		}
	}
	if state.bfPath == "" {
		if _, err := os.Stat(defaultBFFile); err == nil {
			state.bfPath = defaultBFFile
		}
	}
	if state.sfqPath == "" && state.bfPath == "" {
		return
	}
	var firstErr error
	state.sfq = loadDatasetInto(state.sfqPath, &firstErr)
	state.bf = loadDatasetInto(state.bfPath, &firstErr)
	if firstErr != nil && state.window != nil {
		dialog.ShowError(firstErr, state.window)
	}
	rebuildFlowColors(state)
	rebuildSummaries(state)
	if fileLabel != nil {
		fileLabel.SetText(pairLabel(state))
	}
	if state.table != nil {
		state.table.Refresh()
	}
	updateColumnVisibility(state)
	redrawCharts(state)
	log.Infof("loaded sfq=%d bf=%d records", datasetLen(state.sfq), datasetLen(state.bf))
}

func loadDatasetInto(path string, firstErr *error) *goodput.Dataset {
	if path == "" {
		return nil
	}
	ds, err := goodput.LoadFile(path, goodput.LoadOptions{})
	if err != nil {
		log.WithError(err).Errorf("load failed")
		if *firstErr == nil {
			*firstErr = err
		}
		return nil
	}
	return ds
}

func datasetLen(ds *goodput.Dataset) int {
	if ds == nil {
		return 0
	}
	return ds.Len()
}

// rebuildFlowColors assigns palette colors by the flow's position in the
// sorted union of client names across both datasets, so the same flow has
// the same color in both panels. The server line is always gray.
func rebuildFlowColors(state *uiState) {
	names := map[string]struct{}{}
	for _, ds := range []*goodput.Dataset{state.sfq, state.bf} {
		if ds == nil {
			continue
		}
		for _, s := range ds.Series() {
			if s.IsServer() {
				continue
			}
			names[s.Name] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)
	state.flowColors = make(map[string]drawing.Color, len(sorted))
	for i, n := range sorted {
		state.flowColors[n] = flowPalette[i%len(flowPalette)]
	}
}

func flowColor(state *uiState, s goodput.Series) drawing.Color {
	if s.IsServer() {
		return chart.ColorAlternateGray
	}
	if c, ok := state.flowColors[s.Name]; ok {
		return c
	}
	return chart.ColorBlue
}

// applyScenarioPair points the state at a named pair's files.
func applyScenarioPair(state *uiState, p goodput.ScenarioPair) {
	state.sfqPath = p.SFQ
	state.bfPath = p.BF
}

func scenarioNames(state *uiState) []string {
	out := make([]string, 0, len(state.pairs))
	for _, p := range state.pairs {
		out = append(out, p.Name)
	}
	return out
}

func rebuildSummaries(state *uiState) {
	state.summaries = state.summaries[:0]
	for _, ds := range []*goodput.Dataset{state.sfq, state.bf} {
		if ds == nil {
			continue
		}
		sum := analysis.Summarize(ds)
		for _, fs := range sum.Flows {
			state.summaries = append(state.summaries, summaryEntry{
				discipline: sum.Scenario.Label,
				hasCounts:  sum.HasCounts,
				flow:       fs,
			})
		}
	}
}

func applyFairnessVisibility(state *uiState) {
	if state.fairnessSection == nil {
		return
	}
	if state.showFairness {
		state.fairnessSection.Show()
	} else {
		state.fairnessSection.Hide()
	}
}

func redrawCharts(state *uiState) {
	cw, chh := chartSize(state)
	update := func(c *canvas.Image, img image.Image) {
		if c == nil || img == nil {
			return
		}
		c.Image = img
		c.SetMinSize(fyne.NewSize(float32(cw), float32(chh)))
		c.Refresh()
	}
	update(state.sfqImgCanvas, renderGoodputChart(state, state.sfq))
	update(state.bfImgCanvas, renderGoodputChart(state, state.bf))
	if state.showFairness {
		update(state.fairnessImgCanvas, renderFairnessChart(state))
		update(state.throttleImgCanvas, renderThrottleChart(state))
	}
}

// screenshotWidthOverride forces a fixed chart width while headless; tests
// set it so size assertions are exact. Zero means use the default.
var screenshotWidthOverride int

// chartSize computes a chart size based on the current window width so the
// time axis gets as much space as possible.
func chartSize(state *uiState) (int, int) {
	if state == nil || state.window == nil || state.window.Canvas() == nil {
		if screenshotWidthOverride > 0 {
			return uihelpers.ComputeChartDimensions(screenshotWidthOverride)
		}
		return uihelpers.ComputeChartDimensions(1100)
	}
	sz := state.window.Canvas().Size()
	return uihelpers.ComputeChartDimensions(int(sz.Width*0.95) - 12)
}

// tickify maps raw tick positions to chart ticks with compact labels.
func tickify(vals []float64) []chart.Tick {
	out := make([]chart.Tick, 0, len(vals))
	for _, v := range vals {
		out = append(out, chart.Tick{Value: v, Label: uihelpers.FormatNumericTick(v)})
	}
	return out
}

// buildTimeAxis configures the x-axis from the dataset's t range. The range
// spans the generated ticks exactly, which always bracket [lo, hi].
func buildTimeAxis(lo, hi float64) chart.XAxis {
	if hi <= lo {
		hi = lo + 1
	}
	ticks := uihelpers.BuildNumericTicks(lo, hi, 8)
	return chart.XAxis{
		Name:  "Time (s)",
		Ticks: tickify(ticks),
		Range: &chart.ContinuousRange{Min: ticks[0], Max: ticks[len(ticks)-1]},
	}
}

// drawnGoodputMax returns the max goodput over the series drawn in either
// panel, so both panels share a y-domain and stay visually comparable.
func drawnGoodputMax(state *uiState) float64 {
	max := -math.MaxFloat64
	for _, ds := range []*goodput.Dataset{state.sfq, state.bf} {
		if ds == nil {
			continue
		}
		for _, s := range ds.Series() {
			if s.IsServer() && !state.showServer {
				continue
			}
			for _, r := range s.Records {
				if r.Goodput > max {
					max = r.Goodput
				}
			}
		}
	}
	return max
}

func chartTitle(ds *goodput.Dataset) string {
	title := fmt.Sprintf("Goodput with Fairness (%s)", ds.Scenario.Label)
	if ds.Scenario.Suffix != "" && ds.Scenario.Suffix != "baseline" {
		title += " – " + ds.Scenario.Suffix
	}
	return title
}

func renderGoodputChart(state *uiState, ds *goodput.Dataset) image.Image {
	cw, chh := chartSize(state)
	if ds == nil || ds.Len() == 0 {
		return blank(cw, chh)
	}
	series := []chart.Series{}
	minY := math.MaxFloat64
	maxY := -math.MaxFloat64
	for _, s := range ds.Series() {
		if s.IsServer() && !state.showServer {
			continue
		}
		xs := s.Times()
		ys := s.Goodputs()
		for _, v := range ys {
			if v < minY {
				minY = v
			}
			if v > maxY {
				maxY = v
			}
		}
		st := lineStyle(flowColor(state, s))
		if len(xs) == 1 {
			// Pad to at least two X values for go-chart
			xs = []float64{xs[0], xs[0] + 1}
			ys = append(ys, ys[0])
			st.DotWidth = 4
			st.DotColor = st.StrokeColor
		}
		series = append(series, chart.ContinuousSeries{Name: s.Name, XValues: xs, YValues: ys, Style: st})
	}
	if len(series) == 0 {
		return blank(cw, chh)
	}

	var tickVals []float64
	if state.useRelative {
		if maxY <= minY {
			maxY = minY + 1
		}
		nMin, nMax := uihelpers.NiceAxisBounds(minY, maxY)
		tickVals = uihelpers.BuildNumericTicks(nMin, nMax, 6)
	} else {
		// Absolute mode: baseline at 0, max shared across both panels
		top := drawnGoodputMax(state)
		if top <= 0 {
			top = 1
		}
		_, nMax := uihelpers.NiceAxisBounds(0, top)
		tickVals = uihelpers.BuildNumericTicks(0, nMax, 6)
	}
	// The y-range spans the tick set exactly so no tick lands off-plot.
	yAxisRange := &chart.ContinuousRange{Min: tickVals[0], Max: tickVals[len(tickVals)-1]}
	yTicks := tickify(tickVals)
	padBottom := 28
	if state.showHints {
		padBottom += 18
	}
	lo, hi := ds.TimeRange()
	ch := chart.Chart{
		Title:      chartTitle(ds),
		Background: chart.Style{Padding: chart.Box{Top: 14, Left: 16, Right: 12, Bottom: padBottom}},
		XAxis:      buildTimeAxis(lo, hi),
		YAxis:      chart.YAxis{Name: "Goodput (tps)", Range: yAxisRange, Ticks: yTicks},
		Series:     series,
	}
	ch.Width = cw
	ch.Height = chh
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		log.WithError(err).Error("goodput chart render failed; showing blank fallback")
		return blank(cw, chh)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		log.WithError(err).Error("goodput chart decode failed; showing blank fallback")
		return blank(cw, chh)
	}
	if state.showHints {
		return drawHint(img, "Hint: one line per flow. Converging client lines after a capacity drop mean the throttle shares fairly.")
	}
	return img
}

func renderFairnessChart(state *uiState) image.Image {
	cw, chh := chartSize(state)
	series := []chart.Series{}
	xLo := math.MaxFloat64
	xHi := -math.MaxFloat64
	add := func(ds *goodput.Dataset, col drawing.Color) {
		if ds == nil || ds.Len() == 0 {
			return
		}
		times, index := analysis.FairnessOverTime(ds)
		if len(times) == 0 {
			return
		}
		if times[0] < xLo {
			xLo = times[0]
		}
		if times[len(times)-1] > xHi {
			xHi = times[len(times)-1]
		}
		st := lineStyle(col)
		if len(times) == 1 {
			times = []float64{times[0], times[0] + 1}
			index = append(index, index[0])
			st.DotWidth = 4
			st.DotColor = st.StrokeColor
		}
		series = append(series, chart.ContinuousSeries{Name: ds.Scenario.Label, XValues: times, YValues: index, Style: st})
	}
	add(state.sfq, chart.ColorBlue)
	add(state.bf, chart.ColorGreen)
	if len(series) == 0 {
		return blank(cw, chh)
	}
	padBottom := 28
	if state.showHints {
		padBottom += 18
	}
	ch := chart.Chart{
		Title:      "Fairness Index (Jain)",
		Background: chart.Style{Padding: chart.Box{Top: 14, Left: 16, Right: 12, Bottom: padBottom}},
		XAxis:      buildTimeAxis(xLo, xHi),
		YAxis: chart.YAxis{
			Name:  "J",
			Range: &chart.ContinuousRange{Min: 0, Max: 1.05},
			Ticks: []chart.Tick{{Value: 0, Label: "0"}, {Value: 0.25, Label: "0.25"}, {Value: 0.5, Label: "0.5"}, {Value: 0.75, Label: "0.75"}, {Value: 1, Label: "1"}},
		},
		Series: series,
	}
	ch.Width = cw
	ch.Height = chh
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		log.WithError(err).Error("fairness chart render failed; showing blank fallback")
		return blank(cw, chh)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		log.WithError(err).Error("fairness chart decode failed; showing blank fallback")
		return blank(cw, chh)
	}
	if state.showHints {
		return drawHint(img, "Hint: Jain index near 1.0 means equal goodput across clients; near 1/n one client dominates.")
	}
	return img
}

func renderThrottleChart(state *uiState) image.Image {
	cw, chh := chartSize(state)
	series := []chart.Series{}
	xLo := math.MaxFloat64
	xHi := -math.MaxFloat64
	add := func(ds *goodput.Dataset, col drawing.Color) {
		if ds == nil {
			return
		}
		times, rates := analysis.ThrottleRateOverTime(ds)
		if len(times) == 0 {
			return
		}
		if times[0] < xLo {
			xLo = times[0]
		}
		if times[len(times)-1] > xHi {
			xHi = times[len(times)-1]
		}
		pct := make([]float64, len(rates))
		for i, r := range rates {
			pct[i] = r * 100
		}
		st := lineStyle(col)
		if len(times) == 1 {
			times = []float64{times[0], times[0] + 1}
			pct = append(pct, pct[0])
			st.DotWidth = 4
			st.DotColor = st.StrokeColor
		}
		series = append(series, chart.ContinuousSeries{Name: ds.Scenario.Label, XValues: times, YValues: pct, Style: st})
	}
	add(state.sfq, chart.ColorBlue)
	add(state.bf, chart.ColorGreen)
	if len(series) == 0 {
		// Inputs without throttled/offered columns have nothing to show here.
		return blank(cw, chh)
	}
	padBottom := 28
	if state.showHints {
		padBottom += 18
	}
	ch := chart.Chart{
		Title:      "Client Throttle Rate (%)",
		Background: chart.Style{Padding: chart.Box{Top: 14, Left: 16, Right: 12, Bottom: padBottom}},
		XAxis:      buildTimeAxis(xLo, xHi),
		YAxis: chart.YAxis{
			Name:  "%",
			Range: &chart.ContinuousRange{Min: 0, Max: 100},
			Ticks: []chart.Tick{{Value: 0, Label: "0"}, {Value: 25, Label: "25"}, {Value: 50, Label: "50"}, {Value: 75, Label: "75"}, {Value: 100, Label: "100"}},
		},
		Series: series,
	}
	ch.Width = cw
	ch.Height = chh
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		log.WithError(err).Error("throttle chart render failed; showing blank fallback")
		return blank(cw, chh)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		log.WithError(err).Error("throttle chart decode failed; showing blank fallback")
		return blank(cw, chh)
	}
	if state.showHints {
		return drawHint(img, "Hint: share of client attempts the throttle rejected, aggregated per timestep.")
	}
	return img
}

func blank(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	// subtle background
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 18, G: 18, B: 18, A: 255})
		}
	}
	return img
}

// drawHint draws a small hint string onto the provided image near the bottom-left.
func drawHint(img image.Image, text string) image.Image {
	if img == nil || strings.TrimSpace(text) == "" {
		return img
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	pad := 6
	face := basicfont.Face7x13
	textCol := image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 255})
	shadowCol := image.NewUniform(color.RGBA{R: 0, G: 0, B: 0, A: 180})
	dr := &font.Drawer{Dst: rgba, Src: textCol, Face: face}
	tw := dr.MeasureString(text).Ceil()
	x := b.Min.X + 8
	y := b.Max.Y - 6
	bg := image.NewUniform(color.RGBA{R: 0, G: 0, B: 0, A: 200})
	rect := image.Rect(x-pad, y-face.Metrics().Ascent.Ceil()-pad, x+tw+pad, y+pad/2)
	draw.Draw(rgba, rect, bg, image.Point{}, draw.Over)
	// Shadow first, then text, for contrast on varying backgrounds
	drShadow := &font.Drawer{Dst: rgba, Src: shadowCol, Face: face, Dot: fixed.Point26_6{X: fixed.I(x + 1), Y: fixed.I(y + 1)}}
	drShadow.DrawString(text)
	dr.Dot = fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}
	dr.DrawString(text)
	return rgba
}

// export PNG
func exportChartPNG(state *uiState, img *canvas.Image, defaultName string) {
	if state == nil || state.window == nil {
		return
	}
	if img == nil || img.Image == nil {
		dialog.ShowInformation("Export", "No chart to export.", state.window)
		return
	}
	fs := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
		if err != nil || wc == nil {
			return
		}
		defer wc.Close()
		_ = png.Encode(wc, img.Image)
	}, state.window)
	fs.SetFileName(defaultName)
	fs.Show()
}

// recent pairs helpers; entries are stored as "sfq\tbf" lines
func recentPairs(state *uiState) []goodput.ScenarioPair {
	prefs := state.app.Preferences()
	raw := prefs.StringWithFallback("recentPairs", "")
	if raw == "" {
		return nil
	}
	lines := strings.Split(raw, "\n")
	out := make([]goodput.ScenarioPair, 0, len(lines))
	for _, l := range lines {
		parts := strings.SplitN(l, "\t", 2)
		if len(parts) != 2 || parts[0] == "" {
			continue
		}
		if _, err := os.Stat(parts[0]); err != nil {
			continue
		}
		out = append(out, goodput.ScenarioPair{SFQ: parts[0], BF: parts[1]})
	}
	return out
}

func addRecentPair(state *uiState, sfq, bf string) {
	if sfq == "" {
		return
	}
	prefs := state.app.Preferences()
	entry := sfq + "\t" + bf
	lines := []string{entry}
	for _, p := range recentPairs(state) {
		e := p.SFQ + "\t" + p.BF
		if e != entry && len(lines) < 10 {
			lines = append(lines, e)
		}
	}
	prefs.SetString("recentPairs", strings.Join(lines, "\n"))
}

func clearRecentPairs(state *uiState) {
	if state == nil || state.app == nil {
		return
	}
	state.app.Preferences().SetString("recentPairs", "")
}

// prefs
func savePrefs(state *uiState) {
	if state == nil || state.app == nil {
		return
	}
	prefs := state.app.Preferences()
	prefs.SetString("lastSFQFile", state.sfqPath)
	prefs.SetString("lastBFFile", state.bfPath)
	prefs.SetString("yScaleMode", state.yScaleMode)
	prefs.SetBool("showServer", state.showServer)
	prefs.SetBool("showFairness", state.showFairness)
	prefs.SetBool("showHints", state.showHints)
}

func loadPrefs(state *uiState, serverChk, fairnessChk *widget.Check, fileLabel *widget.Label, yScale *widget.Select, tabs *container.AppTabs) {
	if state == nil || state.app == nil {
		return
	}
	prefs := state.app.Preferences()
	if f := prefs.StringWithFallback("lastSFQFile", state.sfqPath); f != "" && state.sfqPath == "" {
		state.sfqPath = f
	}
	if f := prefs.StringWithFallback("lastBFFile", state.bfPath); f != "" && state.bfPath == "" {
		state.bfPath = f
	}
	if fileLabel != nil {
		fileLabel.SetText(pairLabel(state))
	}
	state.showServer = prefs.BoolWithFallback("showServer", state.showServer)
	state.showFairness = prefs.BoolWithFallback("showFairness", state.showFairness)
	if serverChk != nil {
		serverChk.SetChecked(state.showServer)
	}
	if fairnessChk != nil {
		fairnessChk.SetChecked(state.showFairness)
	}
	ymode := prefs.StringWithFallback("yScaleMode", state.yScaleMode)
	switch ymode {
	case "absolute", "relative":
		state.yScaleMode = ymode
	}
	state.useRelative = strings.EqualFold(state.yScaleMode, "relative")
	if yScale != nil {
		if state.useRelative {
			yScale.Selected = "Relative"
		} else {
			yScale.Selected = "Absolute"
		}
	}
	if tabs != nil {
		idx := prefs.IntWithFallback("selectedTabIndex", 0)
		if idx >= 0 && idx < len(tabs.Items) {
			tabs.SelectIndex(idx)
		}
	}
	state.showHints = prefs.BoolWithFallback("showHints", state.showHints)
}

// utils
func pairLabel(state *uiState) string {
	sfq := state.sfqPath
	if sfq == "" {
		sfq = "(none)"
	}
	bf := state.bfPath
	if bf == "" {
		bf = "(none)"
	}
	return truncatePath(sfq, 40) + " | " + truncatePath(bf, 40)
}

func truncatePath(p string, n int) string {
	if len(p) <= n {
		return p
	}
	base := filepath.Base(p)
	if len(base)+4 >= n {
		return "..." + base
	}
	dir := filepath.Dir(p)
	left := n - len(base) - 4
	if left <= 0 {
		return "..." + base
	}
	if len(dir) > left {
		dir = dir[:left]
	}
	return dir + "/..." + base
}

// updateColumnVisibility resizes summary table columns for the window
// width; the throttle column collapses when no loaded file carries counts.
func updateColumnVisibility(state *uiState) {
	if state == nil || state.table == nil {
		return
	}
	winW := float32(1100)
	if state.window != nil && state.window.Canvas() != nil {
		winW = state.window.Canvas().Size().Width
	}
	widths := uihelpers.ComputeSummaryColumnWidths(winW)
	anyCounts := false
	for _, e := range state.summaries {
		if e.hasCounts {
			anyCounts = true
			break
		}
	}
	if !anyCounts {
		widths[7] = 0
	}
	for col, w := range widths {
		state.table.SetColumnWidth(col, float32(w))
	}
	state.table.Refresh()
}
