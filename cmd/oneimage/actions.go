package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jbweber/oneimage/api/v1alpha1"
	"github.com/jbweber/oneimage/internal/image"
	"github.com/jbweber/oneimage/internal/loader"
)

type actionDoc struct {
	name  string
	short string
	long  string
}

var actionDocs = []actionDoc{
	{
		name:  image.ActionAllocate,
		short: "Allocate an empty image",
		long: `Allocate an empty image in spec.datastoreID with spec.size MB.

Nothing is done when an image with the same name already exists.`,
	},
	{
		name:  image.ActionCreate,
		short: "Allocate an image and wait until it is READY",
		long: `Allocate an empty image and wait until OpenNebula reports it READY.

An existing image still being prepared is waited for, not recreated.`,
	},
	{
		name:  image.ActionDestroy,
		short: "Delete an image and wait until it is gone",
		long: `Delete an image and wait until OpenNebula no longer lists it.

Destroying a missing image is not an error.`,
	},
	{
		name:  image.ActionAttach,
		short: "Attach an image to a VM",
		long: `Hot-attach the image as a disk of spec.machineID.

Nothing is done when the VM already has a disk backed by the image.`,
	},
	{
		name:  image.ActionSnapshot,
		short: "Save a VM disk as a new image",
		long: `Save spec.diskID of spec.machineID as a new image named after the
descriptor and wait until it is READY.`,
	},
	{
		name:  image.ActionUpload,
		short: "Register an image from a local file or URL",
		long: `Register an image from spec.imageFile or spec.downloadURL.

A local file is served over HTTP for the duration of the upload. A local
directory is packed into an ISO first. Permissions from spec.mode or
spec.public are applied afterwards.`,
	},
	{
		name:  image.ActionDownload,
		short: "Download an image's backing file",
		long: `Download the backing file of an image to spec.imageFile.

An existing destination file is never overwritten.`,
	},
}

// actionCommands builds one subcommand per action. They all read image
// descriptors from -f and run the action on each document in order.
func actionCommands() []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(actionDocs))
	for _, doc := range actionDocs {
		cmds = append(cmds, newActionCommand(doc))
	}
	return cmds
}

func newActionCommand(doc actionDoc) *cobra.Command {
	var (
		file        string
		writeStatus bool
	)

	cmd := &cobra.Command{
		Use:   doc.name + " -f <image.yaml>",
		Short: doc.short,
		Long:  doc.long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter, err := newFormatter()
			if err != nil {
				return err
			}

			images, err := loader.LoadAllFromFile(file)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", file, err)
			}
			if writeStatus && len(images) != 1 {
				return fmt.Errorf("--write-status needs a file with exactly one image, %s has %d", file, len(images))
			}

			ctx, stop := commandContext()
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := runAction(ctx, cmd, a.ctrl, doc.name, images); err != nil {
				return err
			}

			if writeStatus {
				if err := loader.SaveToFile(images[0], file); err != nil {
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

	cmd.Flags().StringVarP(&file, "file", "f", "", "image descriptor file (YAML, may hold several documents)")
	cmd.Flags().BoolVar(&writeStatus, "write-status", false, "write the resulting status back to the file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// runAction runs action on each image and stops at the first failure.
func runAction(ctx context.Context, cmd *cobra.Command, ctrl *image.Controller, action string, images []*v1alpha1.Image) error {
	for _, img := range images {
		res, err := ctrl.Run(ctx, action, img)
		if err != nil {
			return err
		}
		if res.Changed {
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ %s %s: changed\n", action, img.Name)
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ %s %s: unchanged\n", action, img.Name)
		}
	}
	return nil
}
