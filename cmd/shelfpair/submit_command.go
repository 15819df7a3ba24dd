package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var manifestPath string
	var credential string
	var owner string

	cmd := &cobra.Command{
		Use:   "submit [image...]",
		Short: "Create a pairing job from image paths or URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			images := append([]string(nil), args...)
			if manifestPath != "" {
				fromManifest, err := readManifest(manifestPath)
				if err != nil {
					return err
				}
				images = append(images, fromManifest...)
			}
			if len(images) == 0 {
				return fmt.Errorf("no images provided; pass identifiers as arguments or via --manifest")
			}

			if credential == "" {
				credential = os.Getenv("SHELFPAIR_IMAGE_CREDENTIAL")
			}

			return ctx.withRuntime(func(rt *runtime) error {
				job, err := rt.orch.Submit(cmd.Context(), owner, images, credential)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %s with %d images\n", job.ID, job.TotalImages)
				fmt.Fprintf(cmd.OutOrStdout(), "Run `shelfpair run %s --follow` to process it.\n", job.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "File with one image path or URL per line")
	cmd.Flags().StringVar(&credential, "credential", "", "Short-lived credential for fetching remote images")
	cmd.Flags().StringVar(&owner, "owner", "", "Owner label recorded on the job")
	return cmd
}

func readManifest(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer file.Close()

	var images []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		images = append(images, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return images, nil
}
