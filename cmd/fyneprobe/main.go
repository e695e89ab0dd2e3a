package main

import (
	"bytes"
	"fmt"
	"image/png"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
	chart "github.com/wcharczuk/go-chart/v2"
)

// fyneprobe checks that Fyne plus go-chart work on this machine: it renders
// one tiny goodput chart into a window and closes itself after 5s.
func main() {
	fmt.Println("[fyneprobe] starting minimal Fyne app")
	a := app.New()
	w := a.NewWindow("Fyne Probe")

	ch := chart.Chart{
		Title:  "Goodput probe",
		Width:  480,
		Height: 240,
		XAxis:  chart.XAxis{Name: "Time (s)"},
		YAxis:  chart.YAxis{Name: "Goodput (tps)"},
		Series: []chart.Series{chart.ContinuousSeries{
			Name:    "probe",
			XValues: []float64{0, 1, 2, 3, 4},
			YValues: []float64{120, 180, 150, 210, 160},
			Style:   chart.Style{StrokeWidth: 2, StrokeColor: chart.ColorBlue},
		}},
	}
	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		fmt.Println("[fyneprobe] chart render failed:", err)
		w.SetContent(widget.NewLabel("chart render failed - see console"))
	} else if img, derr := png.Decode(&buf); derr != nil {
		fmt.Println("[fyneprobe] chart decode failed:", derr)
		w.SetContent(widget.NewLabel("chart decode failed - see console"))
	} else {
		ci := canvas.NewImageFromImage(img)
		ci.FillMode = canvas.ImageFillContain
		ci.SetMinSize(fyne.NewSize(480, 240))
		w.SetContent(ci)
	}

	go func() {
		time.Sleep(5 * time.Second)
		fmt.Println("[fyneprobe] closing window via fyne.Do")
		fyne.Do(func() { w.Close() })
	}()
	w.ShowAndRun()
	fmt.Println("[fyneprobe] exited cleanly")
}
