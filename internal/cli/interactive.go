package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamwoolhether/bikesearch/query"
)

const (
	paramsPrompt = "Please input your parameters in the form, 'key=value' separated by a hyphen.\n" +
		"Ex. 'location=Frederick,MD-page=1-stolenness=proximity'\nInput: "
	imageDirPrompt = "Would you like to name the subdirectory for the received images?\n" +
		"If yes, please input the name. If not press enter.\nInput: "
	jsonNamePrompt = "Would you like to name the received JSON file?\n" +
		"If yes, please input the name. If not press enter.\nInput: "

	noResultsMessage = "No results found. Exiting program..."
)

func newInteractiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Prompt for search parameters and output names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInteractive(cmd)
		},
	}
}

func (a *app) runInteractive(cmd *cobra.Command) error {
	q, err := a.newQuery(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	input, err := a.prompt.ask(paramsPrompt)
	if err != nil {
		return err
	}
	if err := q.SetParamsFromString(input); err != nil {
		var pe *query.ParseError
		if errors.As(err, &pe) {
			a.logger.Warn("parsing parameters", "segment", pe.Segment, "index", pe.Index)
		}
		fmt.Fprintln(out, "The given parameters are invalid")
	}

	if _, err := q.Fetch(cmd.Context()); err != nil {
		a.logger.Info("interactive fetch", "url", q.URL(), "error", err)
		fmt.Fprintln(out, noResultsMessage)
		return nil
	}
	fmt.Fprintf(out, "From url: %s\n\n", q.URL())

	imageDir, err := a.prompt.ask(imageDirPrompt)
	if err != nil {
		return err
	}
	a.saveImages(cmd, q, imageDir)

	jsonName, err := a.prompt.ask(jsonNamePrompt)
	if err != nil {
		return err
	}
	a.cacheResults(cmd, q, jsonName)

	return nil
}
