package main

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/theme"
	"github.com/sirupsen/logrus"

	"image-filter-pipeline/internal/config"
	"image-filter-pipeline/internal/core"
	"image-filter-pipeline/internal/gui"
	"image-filter-pipeline/internal/io"
	"image-filter-pipeline/internal/pixel"
)

func runViewer(cfg config.Config, logger *logrus.Logger, imagePath string) error {
	format, err := io.ParseFormat(cfg.Export.Format)
	if err != nil {
		return err
	}

	session := core.NewSession(logger, core.SessionConfig{
		Workers:  cfg.Render.Workers,
		Debounce: cfg.Render.Debounce.Duration,
		Metrics:  cfg.Render.Metrics,
	})
	loader := io.NewImageLoader(logger)
	exporter := io.NewExporter(logger, io.DirStore{Dir: cfg.Export.Dir}, format, cfg.Export.Quality)

	myApp := app.NewWithID(AppID)
	myApp.SetIcon(theme.DocumentIcon())
	myApp.Settings().SetTheme(theme.DefaultTheme())

	mainApp := gui.NewApplication(myApp, logger, session, loader, exporter,
		fyne.NewSize(cfg.Window.Width, cfg.Window.Height))

	initial, source := pixel.SamplePattern(200, 100), "sample"
	if imagePath != "" {
		if initial, err = loader.LoadImage(imagePath); err != nil {
			return err
		}
		source = imagePath
	}
	if err := mainApp.Load(initial, source); err != nil {
		return err
	}

	mainApp.ShowAndRun()
	logger.Info("Application shutting down gracefully")
	return nil
}
