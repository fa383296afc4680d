package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/oneimage/api/v1alpha1"
	"github.com/jbweber/oneimage/internal/loader"
)

var getFile string

var getCmd = &cobra.Command{
	Use:   "get [image-name...]",
	Short: "Show the current state of images",
	Long: `Look up images by name, or every image in a descriptor file, and show
their current remote state. Nothing is changed.

Output formats:
  -o table  Human-readable table (default)
  -o yaml   Full YAML resource definitions
  -o json   Full JSON resource list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := newFormatter()
		if err != nil {
			return err
		}

		var images []*v1alpha1.Image
		if getFile != "" {
			images, err = loader.LoadAllFromFile(getFile)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", getFile, err)
			}
		}
		for _, name := range args {
			images = append(images, v1alpha1.NewImage(name))
		}
		if len(images) == 0 {
			return fmt.Errorf("no images given: pass names or -f <image.yaml>")
		}

		ctx, stop := commandContext()
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		for _, img := range images {
			if _, err := a.ctrl.Get(ctx, img); err != nil {
				return err
			}
		}

		out, err := formatter.FormatImageList(images)
		if err != nil {
			return fmt.Errorf("failed to format output: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	getCmd.Flags().StringVarP(&getFile, "file", "f", "", "image descriptor file")
}
