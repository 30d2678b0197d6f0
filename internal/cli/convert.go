package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pcbpeek/pcbpeek/pkg/pipeline"
)

// convertCommand creates the one-shot conversion command.
func (c *CLI) convertCommand() *cobra.Command {
	var (
		outputDir   string
		noCache     bool
		interactive bool
		workers     int
	)

	cmd := &cobra.Command{
		Use:   "convert <archive.zip>",
		Short: "Render a Gerber archive to PNG layer previews",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archivePath := args[0]
			data, err := os.ReadFile(archivePath)
			if err != nil {
				return fmt.Errorf("read archive: %w", err)
			}

			runner, err := c.newRunner(noCache)
			if err != nil {
				return fmt.Errorf("init render cache: %w", err)
			}

			p := newProgress(c.Logger)
			spinner := newSpinnerWithContext(cmd.Context(), "Converting "+filepath.Base(archivePath))
			spinner.Start()
			result, err := runner.Convert(cmd.Context(), data, pipeline.Options{Workers: workers})
			if err != nil {
				spinner.StopWithError(err.Error())
				return err
			}
			spinner.Stop()
			p.done(fmt.Sprintf("Rendered %d layers", len(result.Layers)))

			layers := result.Layers
			if interactive {
				layers, err = pickLayers(layers)
				if err != nil {
					return err
				}
				if len(layers) == 0 {
					printInfo("No layers selected")
					return nil
				}
			}

			printSuccess("Converted %s", filepath.Base(archivePath))
			for _, layer := range layers {
				printLayerLine(layer.Name, layer.WidthMM, layer.HeightMM, layer.CacheHit)
			}
			for _, f := range result.Failures {
				printWarning("%s: %s", f.FileName, f.Error)
			}
			printDetail("average dimensions: %.2f x %.2f mm", result.AvgWidthMM, result.AvgHeightMM)

			if err := os.MkdirAll(outputDir, 0755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			for _, layer := range layers {
				path := filepath.Join(outputDir, layer.Name+".png")
				if err := os.WriteFile(path, layer.PNG, 0644); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				printFile(path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "directory for rendered PNG files")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "bypass the render cache")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "pick layers to write interactively")
	cmd.Flags().IntVar(&workers, "workers", 0, "max layers rendered concurrently (0 = default)")

	return cmd
}
