package exporter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"knexport/internal/downloader"
	errs "knexport/pkg/errors"
	"knexport/pkg/kidsnote"
	"knexport/pkg/logger"
	"knexport/pkg/retry"
	"knexport/pkg/status"
)

// Locator finds the collection endpoint for a kind.
type Locator interface {
	Locate(ctx context.Context, kind kidsnote.Kind) (*kidsnote.EndpointInfo, error)
}

// PageFetcher fetches and decodes one collection page.
type PageFetcher interface {
	FetchPage(ctx context.Context, rawURL string) (*kidsnote.Page, error)
}

// ItemExporter writes one item; *downloader.Downloader implements it.
type ItemExporter interface {
	Export(ctx context.Context, item *kidsnote.Item, index int, run downloader.StopSignal) downloader.Result
}

// ExporterFactory builds the item exporter for a run, typically rooted at run.Root.
type ExporterFactory func(run *Run) (ItemExporter, error)

// Options tunes the pagination walk
type Options struct {
	PageSize  int
	MaxPages  int
	Timezone  string
	ItemDelay time.Duration
	// TrustNewestFirst ends the scan at the first item below the range.
	// When false such items are skipped and the walk continues.
	TrustNewestFirst bool
}

// DefaultOptions mirrors the service's observed limits.
func DefaultOptions() Options {
	return Options{
		PageSize:         kidsnote.DefaultPageSize,
		MaxPages:         5000,
		Timezone:         kidsnote.DefaultTimezone,
		ItemDelay:        300 * time.Millisecond,
		TrustNewestFirst: true,
	}
}

// Controller runs the sequential export loop.
type Controller struct {
	locator  Locator
	pages    PageFetcher
	exporter ExporterFactory
	status   *status.Store
	opts     Options
	logger   logger.Logger
}

// NewController creates a Controller. A nil status store keeps status in memory.
func NewController(locator Locator, pages PageFetcher, exporter ExporterFactory, st *status.Store, opts Options, log logger.Logger) *Controller {
	def := DefaultOptions()
	if opts.PageSize <= 0 {
		opts.PageSize = def.PageSize
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = def.MaxPages
	}
	if st == nil {
		st = status.NewMemoryStore()
	}
	return &Controller{
		locator:  locator,
		pages:    pages,
		exporter: exporter,
		status:   st,
		opts:     opts,
		logger:   logger.OrDefault(log).WithField("component", "exporter"),
	}
}

// Status returns the store the controller publishes to.
func (c *Controller) Status() *status.Store {
	return c.status
}

// Locate runs endpoint discovery for kind.
func (c *Controller) Locate(ctx context.Context, kind kidsnote.Kind) (*kidsnote.EndpointInfo, error) {
	info, err := c.locator.Locate(ctx, kind)
	if err != nil {
		if errs.IsType(err, errs.ErrorTypeDiscovery) {
			return nil, err
		}
		return nil, &errs.Error{Type: errs.ErrorTypeDiscovery, Op: "locate endpoint", Err: err}
	}
	return info, nil
}

// Run walks every page of run.Kind and exports the items within run.Filters.
//
// Discovery and setup failures are returned before any item traffic and
// leave the final summary to the caller. Once the walk has started, every
// exit writes the final summary and a terminal progress line, and a page or
// item failure is also returned.
func (c *Controller) Run(ctx context.Context, run *Run) error {
	log := c.logger.WithFields(map[string]interface{}{
		"run_id": run.ID,
		"kind":   string(run.Kind),
	})
	c.publish(log, func() error { return c.status.Begin(run.ID) })
	c.publish(log, func() error { return c.status.SetProgress(fmt.Sprintf("Locating %s endpoint", run.Kind.Label())) })

	info, err := c.Locate(ctx, run.Kind)
	if err != nil {
		return err
	}
	c.publish(log, func() error { return c.status.SetEndpoint(info) })

	exporter, err := c.exporter(run)
	if err != nil {
		return err
	}

	logger.LogRunStart(log, run.ID, string(run.Kind), map[string]interface{}{
		"child_id": info.ChildID,
		"range":    run.Filters.String(),
		"root":     run.Root,
	})

	w := &walk{c: c, run: run, info: info, exporter: exporter, log: log}
	err = w.pages(ctx)
	stopped := w.stopped && err == nil

	elapsed := time.Since(run.StartedAt)
	summary := Summary(run, elapsed, stopped, err)
	run.finish(summary, stopped)

	terminal := LineComplete
	switch {
	case err != nil:
		terminal = failureLine(err)
	case stopped:
		terminal = LineStopped
	}
	c.publish(log, func() error { return c.status.SetFinal(summary) })
	c.publish(log, func() error { return c.status.SetProgress(terminal) })

	reason := "complete"
	if err != nil {
		reason = err.Error()
	} else if stopped {
		reason = "stopped by user"
	}
	logger.LogRunStop(log, run.ID, reason, elapsed)
	return err
}

// publish writes to the status store. Status is best effort and never fails a run.
func (c *Controller) publish(log logger.Logger, write func() error) {
	if err := write(); err != nil {
		log.WithError(err).Warn("failed to persist status")
	}
}

// walk is the state of one pass over the collection.
type walk struct {
	c        *Controller
	run      *Run
	info     *kidsnote.EndpointInfo
	exporter ItemExporter
	log      logger.Logger

	index    int
	prevYM   string
	stopped  bool
	complete bool
}

func (w *walk) pages(ctx context.Context) error {
	opts := w.c.opts
	seen := make(map[string]bool)
	cursor := ""

	for fetched := 0; ; fetched++ {
		if fetched >= opts.MaxPages {
			w.log.WarnWithFields("page limit reached, ending scan", map[string]interface{}{"max_pages": opts.MaxPages})
			return nil
		}
		if w.run.StopRequested() {
			w.stopped = true
			return nil
		}

		page, err := w.c.pages.FetchPage(ctx, w.info.PageURL(cursor, opts.PageSize, opts.Timezone))
		if err != nil {
			err = fmt.Errorf("fetch %s page %d: %w", w.run.Kind.Label(), fetched+1, err)
			w.run.fail(err)
			return err
		}

		if fetched == 0 {
			// Some responses report the page length as the count when the real total is unknown.
			if page.HasCount && page.Count > len(page.Results) {
				w.run.setTotal(strconv.Itoa(page.Count))
			}
			w.log.DebugWithFields("first page fetched", map[string]interface{}{
				"results": len(page.Results),
				"total":   w.run.totalLabel(),
			})
		}

		if err := w.items(ctx, page.Results); err != nil {
			return err
		}
		if w.stopped || w.complete {
			return nil
		}

		next := page.Next
		if next == "" {
			return nil
		}
		if seen[next] {
			w.log.WarnWithFields("page cursor repeated, ending scan", map[string]interface{}{"cursor": next})
			return nil
		}
		seen[next] = true
		cursor = next
	}
}

func (w *walk) items(ctx context.Context, items []kidsnote.Item) error {
	filters := w.run.Filters
	for i := range items {
		if w.run.StopRequested() {
			w.stopped = true
			return nil
		}
		item := &items[i]
		w.index++
		ym := item.YearMonth()
		w.checkOrder(item, ym)

		switch {
		case filters.AboveRange(ym):
			w.skip(item)
		case filters.BelowRange(ym) && w.c.opts.TrustNewestFirst:
			w.complete = true
			w.progress(markSkipped, item)
			w.log.DebugWithFields("reached items older than the range, ending scan", map[string]interface{}{
				"item_id": item.ID,
				"month":   ym,
			})
			return nil
		case !filters.Contains(ym):
			w.skip(item)
		default:
			if err := w.download(ctx, item); err != nil || w.stopped {
				return err
			}
			if err := retry.Wait(ctx, w.c.opts.ItemDelay); err != nil {
				w.run.fail(err)
				return err
			}
		}
	}
	return nil
}

func (w *walk) skip(item *kidsnote.Item) {
	w.run.record(func(c *Counters) { c.Skipped++ })
	w.progress(markSkipped, item)
}

func (w *walk) download(ctx context.Context, item *kidsnote.Item) error {
	res := w.exporter.Export(ctx, item, w.index, w.run)
	w.run.record(func(c *Counters) {
		c.Photos += res.Photos
		c.Videos += res.Videos
		c.Files += res.Files
		if res.OK {
			c.Downloaded++
		}
	})

	switch {
	case res.Err != nil:
		err := fmt.Errorf("item %s: %w", item.ID, res.Err)
		w.run.fail(err)
		w.c.publish(w.log, func() error { return w.c.status.SetProgress(failureLine(err)) })
		return err
	case res.Stopped:
		w.stopped = true
		return nil
	}
	w.progress(markDone, item)
	return nil
}

func (w *walk) progress(mark string, item *kidsnote.Item) {
	line := progressLine(mark, w.run, w.index, itemLabel(item), time.Since(w.run.StartedAt))
	marker := status.Marker{
		Kind:  w.run.Kind,
		Index: w.index,
		Total: w.run.totalLabel(),
		ID:    item.ID,
	}
	w.c.publish(w.log, func() error { return w.c.status.SetProgressAndMarker(line, marker) })
}

// checkOrder flags an item newer than its predecessor. The early stop relies
// on newest-first order, so a violation means the range scan may have ended
// too soon.
func (w *walk) checkOrder(item *kidsnote.Item, ym string) {
	if !monthShape.MatchString(ym) {
		return
	}
	if w.prevYM != "" && ym > w.prevYM {
		w.run.noteOrderViolation()
		w.log.WarnWithFields("item is newer than the one before it", map[string]interface{}{
			"item_id":  item.ID,
			"month":    ym,
			"previous": w.prevYM,
		})
	}
	w.prevYM = ym
}
