package exporter

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"knexport/internal/downloader"
	errs "knexport/pkg/errors"
	"knexport/pkg/kidsnote"
	"knexport/pkg/logger"
	"knexport/pkg/status"
)

func newTestService(loc Locator, pages PageFetcher, exp ItemExporter) (*Service, *status.Store) {
	st := status.NewMemoryStore()
	ctrl := NewController(loc, pages, factoryFor(exp), st, testOptions(), logger.NewNopLogger())
	return NewService(ctrl, logger.NewNopLogger()), st
}

// gatedExporter finishes the first item immediately and blocks on the second
// until released.
type gatedExporter struct {
	fakeExporter
	entered chan struct{}
	release chan struct{}
	calls   int
}

func newGatedExporter() *gatedExporter {
	return &gatedExporter{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedExporter) Export(ctx context.Context, item *kidsnote.Item, index int, run downloader.StopSignal) downloader.Result {
	g.calls++
	if g.calls == 2 {
		close(g.entered)
		<-g.release
	}
	return g.fakeExporter.Export(ctx, item, index, run)
}

func threeItemPages() *fakePages {
	return &fakePages{byPage: map[string]*kidsnote.Page{
		"": {Results: monthItems("2024-10", "2024-09", "2024-08")},
	}}
}

func TestServiceRejectsInvalidFiltersBeforeNetwork(t *testing.T) {
	loc := &fakeLocator{}
	pages := &fakePages{}
	svc, st := newTestService(loc, pages, &fakeExporter{})

	resp := svc.Start(context.Background(), kidsnote.KindAlbum, t.TempDir(), Filters{FromYM: "2024-13"})
	assert.False(t, resp.OK)
	assert.Equal(t, string(errs.ErrorTypeValidation), resp.Code)
	assert.Contains(t, resp.Error, "2024-13")

	assert.False(t, svc.Running())
	assert.Zero(t, loc.Calls())
	assert.Empty(t, pages.Cursors())
	assert.Empty(t, st.Snapshot().Progress)
}

func TestServiceSingleRunGuard(t *testing.T) {
	exp := newGatedExporter()
	svc, _ := newTestService(&fakeLocator{}, threeItemPages(), exp)

	first := svc.Start(context.Background(), kidsnote.KindAlbum, "", Filters{})
	require.True(t, first.OK, first.Error)
	<-exp.entered

	run := svc.Current()
	require.NotNil(t, run)
	before := run.Stats()
	assert.Equal(t, 1, before.Downloaded)

	second := svc.Start(context.Background(), kidsnote.KindReport, "", Filters{})
	assert.False(t, second.OK)
	assert.Equal(t, string(errs.ErrorTypeAlreadyRunning), second.Code)
	assert.Same(t, run, svc.Current(), "the active run is untouched")
	assert.Equal(t, before, run.Stats(), "counters are not reset")

	close(exp.release)
	finished, err := svc.Wait()
	require.NoError(t, err)
	assert.Same(t, run, finished)
	assert.Equal(t, 3, finished.Stats().Downloaded)
	assert.False(t, svc.Running())

	third := svc.Start(context.Background(), kidsnote.KindAlbum, "", Filters{})
	assert.True(t, third.OK, "a new run may start once the previous one finished")
	_, err = svc.Wait()
	assert.NoError(t, err)
}

func TestServiceStop(t *testing.T) {
	exp := newGatedExporter()
	svc, st := newTestService(&fakeLocator{}, threeItemPages(), exp)

	require.True(t, svc.Start(context.Background(), kidsnote.KindAlbum, "", Filters{}).OK)
	<-exp.entered

	resp := svc.Stop()
	assert.True(t, resp.OK)
	close(exp.release)

	run, err := svc.Wait()
	require.NoError(t, err)
	assert.True(t, run.Stopped())
	assert.Equal(t, 2, run.Stats().Downloaded, "the in-flight item completes")
	assert.Equal(t, LineStopped, st.Snapshot().Progress)
}

func TestServiceStopWithoutRun(t *testing.T) {
	svc, _ := newTestService(&fakeLocator{}, &fakePages{}, &fakeExporter{})
	assert.False(t, svc.Stop().OK)
}

func TestServiceSetupFailurePublishesSummary(t *testing.T) {
	var finished *Run
	loc := &fakeLocator{err: errors.New("account info unavailable")}
	svc, st := newTestService(loc, &fakePages{}, &fakeExporter{})
	svc.OnFinish = func(run *Run, err error) { finished = run }

	require.True(t, svc.Start(context.Background(), kidsnote.KindReport, "", Filters{}).OK)
	run, err := svc.Wait()
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeDiscovery))
	assert.Same(t, run, finished)

	snap := st.Snapshot()
	assert.True(t, strings.HasPrefix(snap.Progress, "✗ "), snap.Progress)
	assert.Contains(t, snap.Final, "Export failed (reports)")
	assert.Contains(t, snap.Final, "Errors: 1")
	assert.Equal(t, snap.Final, run.Summary())
	assert.False(t, svc.Running())
}

func TestServicePrepare(t *testing.T) {
	svc, _ := newTestService(&fakeLocator{}, &fakePages{}, &fakeExporter{})
	resp := svc.Prepare(context.Background(), kidsnote.KindAlbum)
	assert.True(t, resp.OK)
	assert.Contains(t, resp.Message, "4821")

	failing, _ := newTestService(&fakeLocator{err: errors.New("nope")}, &fakePages{}, &fakeExporter{})
	resp = failing.Prepare(context.Background(), kidsnote.KindAlbum)
	assert.False(t, resp.OK)
	assert.Equal(t, string(errs.ErrorTypeDiscovery), resp.Code)
}

func TestServiceWaitWithoutRun(t *testing.T) {
	svc, _ := newTestService(&fakeLocator{}, &fakePages{}, &fakeExporter{})

	done := make(chan struct{})
	go func() {
		run, err := svc.Wait()
		assert.Nil(t, run)
		assert.NoError(t, err)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait blocked with no run started")
	}
}
