// Photo editor: brightness, contrast, saturation and gamma adjustments
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"image-filter-pipeline/internal/config"
)

const (
	AppName    = "Photo Editor"
	AppID      = "com.example.photo-editor"
	AppVersion = "1.0.0"
)

type rootOptions struct {
	debug      bool
	configPath string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	var imagePath string

	cmd := &cobra.Command{
		Use:           "photo-editor",
		Short:         AppName,
		Version:       AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			return runViewer(cfg, logger, imagePath)
		},
	}

	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug mode with verbose logging")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a TOML configuration file")
	cmd.Flags().StringVar(&imagePath, "image", "", "Image to open instead of the sample pattern")

	cmd.AddCommand(newRenderCommand(opts))
	return cmd
}

func (o *rootOptions) setup() (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, nil, err
	}

	logger := cfg.NewLogger(o.debug)
	logger.WithFields(logrus.Fields{
		"version":    AppVersion,
		"debug_mode": o.debug,
		"config":     o.configPath,
	}).Info("Starting " + AppName)
	return cfg, logger, nil
}
