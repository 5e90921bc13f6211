package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Demo run settings: the first ten bikes reported near Chicago.
const (
	DemoParams    = "page=1-per_page=10-location=Chicago, IL-distance=10-stolenness=proximity"
	DemoJSON      = "demo_output.json"
	DemoImagesDir = "demo_output_images"
)

func newDemoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a fixed search around Chicago and save its results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDemo(cmd)
		},
	}
}

func (a *app) runDemo(cmd *cobra.Command) error {
	q, err := a.newQuery(cmd)
	if err != nil {
		return err
	}
	if err := q.SetParamsFromString(DemoParams); err != nil {
		return fmt.Errorf("demo parameters: %w", err)
	}

	out := cmd.OutOrStdout()
	if _, err := q.Fetch(cmd.Context()); err != nil {
		a.logger.Error("demo fetch", "url", q.URL(), "error", err)
		fmt.Fprintln(out, noResultsMessage)
		return nil
	}

	fmt.Fprintf(out, "From url: %s\n\n", q.URL())
	q.Preview()
	a.cacheResults(cmd, q, DemoJSON)
	a.saveImages(cmd, q, DemoImagesDir)

	return nil
}
