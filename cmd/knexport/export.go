package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	errs "knexport/pkg/errors"
	"knexport/pkg/exporter"
	"knexport/pkg/kidsnote"
	"knexport/pkg/ui"
	"knexport/pkg/ui/tui"
)

var (
	fromYM       string
	toYM         string
	outputDir    string
	harFiles     []string
	sampleURLs   []string
	useTUI       bool
	saveMetadata bool
	trustOrder   bool
	accountName  string
	pageSize     int
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export <album|report>",
	Short: "Export albums or reports to local folders",
	Long: `Export every album or report of the signed-in account, optionally limited
to a month range, into one folder per item.

The endpoint is found from a request the browser already made (pass a HAR
export with --har, or a copied request URL with --sample-url). Without one
the child id is guessed from the account info.

Press Ctrl-C once to stop after the current download; press it again to
abort immediately. In --tui mode press s to stop and q to stop and leave.`,
	Example: `  # Everything
  knexport export album

  # March to August 2024, into ./kidsnote
  knexport export album --from 2024-03 --to 2024-08 -o ./kidsnote

  # Reports, with the endpoint taken from a browser HAR export
  knexport export report --har ~/Downloads/kidsnote.har --tui`,
	Args: cobra.ExactArgs(1),
	RunE: runExportCommand,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&fromYM, "from", "", "first month to export (YYYY-MM)")
	exportCmd.Flags().StringVar(&toYM, "to", "", "last month to export (YYYY-MM)")
	exportCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default ./kidsnote-export)")
	exportCmd.Flags().StringArrayVar(&harFiles, "har", nil, "browser HAR export to find the endpoint in (repeatable)")
	exportCmd.Flags().StringArrayVar(&sampleURLs, "sample-url", nil, "a collection request URL copied from the browser (repeatable)")
	exportCmd.Flags().BoolVar(&useTUI, "tui", false, "show an interactive status view")
	exportCmd.Flags().BoolVar(&saveMetadata, "save-metadata", false, "also write each item's raw JSON as item.json")
	exportCmd.Flags().BoolVar(&trustOrder, "trust-order", true, "stop at the first item older than --from")
	exportCmd.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored session")
	exportCmd.Flags().IntVar(&pageSize, "page-size", 0, "items per page request")
}

func runExportCommand(cmd *cobra.Command, args []string) error {
	kind, err := kidsnote.ParseKind(args[0])
	if err != nil {
		return errs.Wrap(errs.ErrorTypeValidation, "export", err)
	}
	filters := exporter.Filters{FromYM: strings.TrimSpace(fromYM), ToYM: strings.TrimSpace(toYM)}
	if err := filters.Validate(); err != nil {
		return err
	}

	extra := map[string]interface{}{}
	if cmd.Flags().Changed("output") {
		extra["output"] = outputDir
	}
	if cmd.Flags().Changed("save-metadata") {
		extra["save-metadata"] = saveMetadata
	}
	if cmd.Flags().Changed("trust-order") {
		extra["trust-order"] = trustOrder
	}
	if cmd.Flags().Changed("page-size") {
		extra["page-size"] = pageSize
	}
	cfg, err := loadConfig(cmd, extra)
	if err != nil {
		return err
	}
	if useTUI && cfg.Logging.File == "" {
		// Console logs would draw over the status view.
		cfg.Logging.Level = "disabled"
	}
	log, err := setupLogger(cfg)
	if err != nil {
		return err
	}

	session, err := resolveSession(cfg, accountName, openAccounts(log))
	if err != nil {
		return err
	}
	path, err := statusPath()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, session, appOptions{
		HARFiles:   harFiles,
		SampleURLs: sampleURLs,
		StatusPath: path,
	}, log)
	if err != nil {
		return err
	}
	if cfg.UI.Notifications {
		notifier := ui.NewNotifier(true)
		a.service.OnFinish = func(run *exporter.Run, err error) {
			notifier.NotifyRunFinished(run.Kind.Label(), run.Summary(), err)
		}
	}

	interrupts := make(chan os.Signal, 2)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)

	if !useTUI {
		ui.PrintInfo("Export", kind.Label())
		ui.PrintInfo("Range", filters.String())
		ui.PrintInfo("Output", cfg.Output.BaseDirectory)
	}

	_, err = a.export(cmd.Context(), exportRequest{
		Kind:    kind,
		Root:    cfg.Output.BaseDirectory,
		Filters: filters,
		TUI:     useTUI,
	}, interrupts)
	return err
}

type exportRequest struct {
	Kind    kidsnote.Kind
	Root    string
	Filters exporter.Filters
	TUI     bool
}

// export starts a run, follows it until it ends and prints its summary.
// The first value on interrupts asks the run to stop at its next boundary;
// the second cancels it outright.
func (a *app) export(ctx context.Context, req exportRequest, interrupts <-chan os.Signal) (*exporter.Run, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, abort := context.WithCancel(ctx)
	defer abort()

	resp := a.service.Start(runCtx, req.Kind, req.Root, req.Filters)
	if !resp.OK {
		return nil, responseError(resp)
	}
	a.logger.Info(resp.Message)

	watchCtx, done := context.WithCancel(ctx)
	defer done()
	g, gctx := errgroup.WithContext(watchCtx)

	var (
		run    *exporter.Run
		runErr error
	)

	if req.TUI {
		view := tui.New(req.Kind.Label(), a.status, func() { a.service.Stop() })
		g.Go(func() error {
			return view.Run(gctx)
		})
		g.Go(func() error {
			run, runErr = a.service.Wait()
			view.Finish(runErr)
			done()
			return nil
		})
	} else {
		printer := ui.NewProgressPrinter(a.status)
		g.Go(func() error {
			printer.Run(gctx)
			return nil
		})
		g.Go(func() error {
			run, runErr = a.service.Wait()
			done()
			return nil
		})
	}

	g.Go(func() error {
		stops := 0
		for {
			select {
			case <-watchCtx.Done():
				return nil
			case _, ok := <-interrupts:
				if !ok {
					return nil
				}
				stops++
				if stops == 1 {
					resp := a.service.Stop()
					if resp.OK {
						ui.PrintWarning(resp.Message)
					}
					continue
				}
				ui.PrintWarning("aborting")
				abort()
			}
		}
	})

	if err := g.Wait(); err != nil {
		// The run result still stands when only the view failed.
		a.logger.WithError(err).Warn("status view exited with an error")
	}

	printSummary(run)
	return run, runErr
}

func printSummary(run *exporter.Run) {
	if run == nil || run.Summary() == "" {
		return
	}
	ui.PrintLine("")
	printBlock(run.Summary())
}

func responseError(resp exporter.Response) error {
	t := errs.ErrorType(resp.Code)
	if t == "" {
		t = errs.ErrorTypeUnknown
	}
	return &errs.Error{Type: t, Message: resp.Error}
}
