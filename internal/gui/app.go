// Viewer window: image, adjustment sliders, open and save
package gui

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sort"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"

	"image-filter-pipeline/internal/algorithms"
	"image-filter-pipeline/internal/core"
	"image-filter-pipeline/internal/io"
	"image-filter-pipeline/internal/pixel"
)

// Application wires the session to a fyne window. Every widget update
// happens on the fyne goroutine through fyne.Do.
type Application struct {
	app    fyne.App
	window fyne.Window
	logger logrus.FieldLogger

	session  *core.Session
	loader   *io.ImageLoader
	exporter *io.Exporter

	preview  *canvas.Image
	controls *ControlPanel
	status   *widget.Label
	metrics  *widget.Label
	retry    *widget.Button

	// noticeSeq identifies the latest retry notice; only touched on the
	// fyne goroutine.
	noticeSeq int
}

// noticeTimeout is how long a retry offer stays visible.
const noticeTimeout = 8 * time.Second

func NewApplication(app fyne.App, logger logrus.FieldLogger, session *core.Session, loader *io.ImageLoader, exporter *io.Exporter, size fyne.Size) *Application {
	window := app.NewWindow("Photo Editor")
	window.Resize(size)
	window.CenterOnScreen()

	a := &Application{
		app:      app,
		window:   window,
		logger:   logger,
		session:  session,
		loader:   loader,
		exporter: exporter,
	}

	a.initializeGUI()
	a.setupCallbacks()
	return a
}

func (a *Application) initializeGUI() {
	a.preview = canvas.NewImageFromImage(image.NewNRGBA(image.Rect(0, 0, 1, 1)))
	a.preview.FillMode = canvas.ImageFillContain

	a.controls = NewControlPanel(a.onParameterChanged)
	a.status = widget.NewLabel("Ready")
	a.metrics = widget.NewLabel("")
	a.retry = widget.NewButton("Retry", func() {
		a.retry.Hide()
		a.saveImage()
	})
	a.retry.Hide()

	buttons := container.NewGridWithColumns(2,
		widget.NewButton("Gallery", a.openImage),
		widget.NewButton("Save", a.saveImage),
	)
	right := container.NewVBox(buttons, a.controls.GetContainer(), a.metrics)

	statusBar := container.NewBorder(nil, nil, nil, a.retry, a.status)
	content := container.NewBorder(nil, statusBar, nil, right, a.preview)
	a.window.SetContent(content)
}

func (a *Application) setupCallbacks() {
	a.session.SetCallbacks(
		func(result core.Result) {
			img := result.Image.ToNRGBA()
			fyne.Do(func() {
				// A load may have replaced the original since delivery.
				if _, gen := a.session.Last(); gen != result.Generation {
					return
				}
				a.showImage(img)
				a.metrics.SetText(formatMetrics(result))
			})
		},
		func(err error) {
			fyne.Do(func() {
				a.showError("Processing Error", err)
			})
		},
	)
}

// Load shows img as the new original and resets the sliders.
func (a *Application) Load(img *pixel.Buffer, source string) error {
	original, err := a.session.LoadImage(img)
	if err != nil {
		return err
	}

	rendered := original.ToNRGBA()
	fyne.Do(func() {
		a.controls.Reset()
		a.showImage(rendered)
		a.metrics.SetText("")
		a.status.SetText(fmt.Sprintf("Loaded: %s (%s)", source, original))
	})
	return nil
}

func (a *Application) onParameterChanged(kind algorithms.Kind, value float64) {
	if _, err := a.session.SetParameter(kind, value); err != nil {
		a.showError("Invalid Parameter", err)
	}
}

func (a *Application) openImage() {
	fileDialog := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			a.showError("Open Error", err)
			return
		}
		if reader == nil {
			return
		}
		defer reader.Close()

		img, err := a.loader.Read(reader)
		if err != nil {
			a.showError("Open Error", err)
			return
		}
		if err := a.Load(img, reader.URI().Name()); err != nil {
			a.showError("Open Error", err)
		}
	}, a.window)

	fileDialog.SetFilter(storage.NewExtensionFileFilter(io.SupportedExtensions()))
	fileDialog.Show()
}

// saveImage exports the last delivered render. Encoding runs off the fyne
// goroutine.
func (a *Application) saveImage() {
	last, gen := a.session.Last()
	a.status.SetText("Saving...")
	go func() {
		name, err := a.exporter.Export(last)
		fyne.Do(func() {
			a.finishSave(name, gen, err)
		})
	}()
}

func (a *Application) finishSave(name string, gen uint64, err error) {
	switch {
	case err == nil:
		a.logger.WithFields(logrus.Fields{"name": name, "generation": gen}).Info("Image saved")
		a.status.SetText("Image saved: " + name)
	case io.IsRetryable(err):
		a.logger.WithError(err).Warn("Save failed, offering retry")
		a.showRetryNotice(fmt.Sprintf("Could not save image: %v", errors.Unwrap(err)))
	default:
		a.showError("Failed to save image", err)
	}
}

// showRetryNotice puts text in the status bar next to a Retry button that
// disappears after noticeTimeout.
func (a *Application) showRetryNotice(text string) {
	a.noticeSeq++
	seq := a.noticeSeq
	a.status.SetText(text)
	a.retry.Show()

	time.AfterFunc(noticeTimeout, func() {
		fyne.Do(func() {
			if a.noticeSeq == seq {
				a.retry.Hide()
			}
		})
	})
}

func (a *Application) showImage(img image.Image) {
	a.preview.Image = img
	a.preview.Refresh()
}

func (a *Application) showError(title string, err error) {
	a.logger.WithError(err).Error(title)
	dialog.ShowError(err, a.window)
	a.status.SetText(fmt.Sprintf("%s: %v", title, err))
}

func (a *Application) ShowAndRun() {
	a.logger.Info("Showing main application window")

	a.window.SetCloseIntercept(func() {
		a.logger.Info("Cleaning up application resources")
		a.session.Close()
		a.app.Quit()
	})

	a.window.ShowAndRun()
}

func formatMetrics(result core.Result) string {
	lines := []string{
		fmt.Sprintf("generation %d in %v", result.Generation, result.Duration.Round(time.Microsecond)),
	}

	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		v := result.Metrics[name]
		if math.IsInf(v, 1) {
			lines = append(lines, name+": identical")
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %.2f", name, v))
	}
	return strings.Join(lines, "\n")
}
