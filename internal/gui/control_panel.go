// internal/gui/control_panel.go
// One slider per adjustment, generated from the parameter domains
package gui

import (
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"image-filter-pipeline/internal/algorithms"
)

type ControlPanel struct {
	container *fyne.Container
	sliders   map[algorithms.Kind]*widget.Slider
	values    map[algorithms.Kind]*widget.Label

	// resetting suppresses change events while sliders are moved
	// programmatically.
	resetting bool

	onChanged func(kind algorithms.Kind, value float64)
}

func NewControlPanel(onChanged func(kind algorithms.Kind, value float64)) *ControlPanel {
	cp := &ControlPanel{
		sliders:   make(map[algorithms.Kind]*widget.Slider),
		values:    make(map[algorithms.Kind]*widget.Label),
		onChanged: onChanged,
	}
	cp.initializeUI()
	return cp
}

func (cp *ControlPanel) initializeUI() {
	rows := container.NewVBox()

	for _, info := range algorithms.Infos() {
		info := info
		slider := widget.NewSlider(info.Min, info.Max)
		slider.Step = info.Step
		slider.Value = info.Default

		value := widget.NewLabel(formatValue(info.Kind, info.Default))
		slider.OnChanged = func(v float64) {
			value.SetText(formatValue(info.Kind, v))
			if cp.resetting || cp.onChanged == nil {
				return
			}
			cp.onChanged(info.Kind, v)
		}

		cp.sliders[info.Kind] = slider
		cp.values[info.Kind] = value

		header := container.NewBorder(nil, nil, widget.NewLabel(info.Name), value)
		rows.Add(header)
		rows.Add(slider)
	}

	cp.container = container.NewBorder(nil, nil, nil, nil,
		widget.NewCard("Adjustments", "", rows))
}

// Reset moves every slider back to its identity value without emitting
// change events.
func (cp *ControlPanel) Reset() {
	cp.resetting = true
	defer func() { cp.resetting = false }()

	for _, info := range algorithms.Infos() {
		cp.sliders[info.Kind].SetValue(info.Default)
		cp.values[info.Kind].SetText(formatValue(info.Kind, info.Default))
	}
}

func (cp *ControlPanel) GetContainer() *fyne.Container {
	return cp.container
}

func formatValue(kind algorithms.Kind, v float64) string {
	if kind == algorithms.Gamma {
		return fmt.Sprintf("%.1f", v)
	}
	return fmt.Sprintf("%d", int(v))
}
