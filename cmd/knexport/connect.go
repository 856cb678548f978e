package main

import (
	"context"

	"github.com/spf13/cobra"

	errs "knexport/pkg/errors"
	"knexport/pkg/kidsnote"
	"knexport/pkg/ui"
)

// connectCmd represents the connect command
var connectCmd = &cobra.Command{
	Use:   "connect <album|report>",
	Short: "Check that the endpoint for albums or reports can be found",
	Long: `Run endpoint discovery without exporting anything. Use it to check a
saved session and a HAR file before a long export.`,
	Example: `  knexport connect album
  knexport connect report --har ~/Downloads/kidsnote.har`,
	Args: cobra.ExactArgs(1),
	RunE: runConnect,
}

func init() {
	rootCmd.AddCommand(connectCmd)

	connectCmd.Flags().StringArrayVar(&harFiles, "har", nil, "browser HAR export to find the endpoint in (repeatable)")
	connectCmd.Flags().StringArrayVar(&sampleURLs, "sample-url", nil, "a collection request URL copied from the browser (repeatable)")
	connectCmd.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored session")
}

func runConnect(cmd *cobra.Command, args []string) error {
	kind, err := kidsnote.ParseKind(args[0])
	if err != nil {
		return errs.Wrap(errs.ErrorTypeValidation, "connect", err)
	}
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	log, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	session, err := resolveSession(cfg, accountName, openAccounts(log))
	if err != nil {
		return err
	}

	a, err := newApp(cfg, session, appOptions{HARFiles: harFiles, SampleURLs: sampleURLs}, log)
	if err != nil {
		return err
	}
	return a.connect(cmd.Context(), kind)
}

// connect runs discovery for kind and prints the outcome.
func (a *app) connect(ctx context.Context, kind kidsnote.Kind) error {
	if ctx == nil {
		ctx = context.Background()
	}
	resp := a.service.Prepare(ctx, kind)
	if !resp.OK {
		ui.PrintError("✗ "+kind.Label()+" endpoint not found", resp.Error)
		return responseError(resp)
	}
	ui.PrintSuccess("✓ " + resp.Message)
	return nil
}
