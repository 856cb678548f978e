package locator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"knexport/pkg/config"
	errs "knexport/pkg/errors"
	"knexport/pkg/kidsnote"
	"knexport/pkg/kidsnote/kidsnotetest"
	"knexport/pkg/logger"
	"knexport/pkg/retry"
)

func newLocator(t *testing.T, tr *kidsnotetest.Transport, log ResourceLog) *Locator {
	t.Helper()
	client, err := kidsnote.NewClient(kidsnote.Options{
		BaseURL:    kidsnotetest.BaseURL,
		HTTPClient: tr.Client(),
		Session:    kidsnote.Session{SessionID: "s"},
		Retry:      &retry.Config{MaxAttempts: 1, Backoff: retry.ConstantBackoff{Delay: time.Millisecond}},
	}, logger.NewNopLogger())
	require.NoError(t, err)

	l, err := New(client, Options{
		ServiceURL: kidsnotetest.BaseURL,
		Log:        log,
		Strategies: DefaultStrategies(config.DefaultConfig().Discovery),
	}, logger.NewNopLogger())
	require.NoError(t, err)
	return l
}

func TestLocatePassiveFromSampleURL(t *testing.T) {
	tr := kidsnotetest.NewTransport()
	sample := "https://www.kidsnote.com/api/v1/children/4821/albums/?page=2&page_size=12&center=9"
	l := newLocator(t, tr, StaticLog{
		"https://www.kidsnote.com/static/app.js",
		"https://other.example/api/v1/children/1/albums/",
		sample,
	})

	info, err := l.Locate(context.Background(), kidsnote.KindAlbum)
	require.NoError(t, err)
	assert.Equal(t, "4821", info.ChildID)
	assert.Equal(t, "https://www.kidsnote.com/api/v1/children/4821/albums/", info.BaseURL)
	assert.Equal(t, sample, info.SampleURL)
	assert.Equal(t, "9", info.DefaultQuery.Get("center"))
	assert.Empty(t, tr.Requests(), "passive discovery makes no requests")
}

func TestLocatePassiveIgnoresOtherKind(t *testing.T) {
	tr := kidsnotetest.NewTransport()
	tr.HandlePath(kidsnote.AccountInfoPath, kidsnotetest.JSON(map[string]interface{}{"child_id": 4821}))
	tr.HandlePath("/api/v1_2/children/4821/reports/", kidsnotetest.JSON(map[string]interface{}{"results": []interface{}{}}))

	l := newLocator(t, tr, StaticLog{"https://www.kidsnote.com/api/v1/children/4821/albums/"})

	info, err := l.Locate(context.Background(), kidsnote.KindReport)
	require.NoError(t, err)
	assert.Equal(t, "https://www.kidsnote.com/api/v1_2/children/4821/reports/", info.BaseURL)
	assert.Empty(t, info.SampleURL)
	assert.Equal(t, 1, tr.Count(kidsnote.AccountInfoPath))
}

func TestLocateFromHAR(t *testing.T) {
	har := `{"log":{"entries":[
		{"request":{"method":"POST","url":"https://www.kidsnote.com/api/v1/children/1111/albums/"}},
		{"request":{"method":"GET","url":"https://www.kidsnote.com/api/v1_2/children/2222/reports/?tz=Asia%2FSeoul"}}
	]}}`
	path := filepath.Join(t.TempDir(), "session.har")
	require.NoError(t, os.WriteFile(path, []byte(har), 0600))

	l := newLocator(t, kidsnotetest.NewTransport(), MultiLog{nil, HARLog{Path: path}})
	info, err := l.Locate(context.Background(), kidsnote.KindReport)
	require.NoError(t, err)
	assert.Equal(t, "2222", info.ChildID)
	assert.Empty(t, info.DefaultQuery, "tz is owned by the export loop")
}

func TestLocateFallbackProbesCandidates(t *testing.T) {
	tr := kidsnotetest.NewTransport()
	tr.HandlePath(kidsnote.AccountInfoPath, kidsnotetest.JSON(map[string]interface{}{
		"user":     map[string]interface{}{"child_id": 12},
		"children": []interface{}{map[string]interface{}{"id": 70001}},
	}))
	// alias candidate 12 is rejected by the probe, heuristic candidate 70001 is accepted
	tr.Handle("/api/v1/children/12/albums/?page_size=1", kidsnotetest.Response{Status: 403})
	tr.Handle("/api/v1/children/70001/albums/?page_size=1", kidsnotetest.JSON(map[string]interface{}{"results": []interface{}{}}))

	l := newLocator(t, tr, nil)
	info, err := l.Locate(context.Background(), kidsnote.KindAlbum)
	require.NoError(t, err)
	assert.Equal(t, "70001", info.ChildID)
	assert.Equal(t, []string{
		"https://www.kidsnote.com/api/v1/me/info/",
		"https://www.kidsnote.com/api/v1/children/12/albums/?page_size=1",
		"https://www.kidsnote.com/api/v1/children/70001/albums/?page_size=1",
	}, tr.Requests())
}

func TestLocateNotFound(t *testing.T) {
	tests := []struct {
		name  string
		setup func(tr *kidsnotetest.Transport)
	}{
		{"account info rejected", func(tr *kidsnotetest.Transport) {
			tr.HandlePath(kidsnote.AccountInfoPath, kidsnotetest.Response{Status: 401})
		}},
		{"account info not json", func(tr *kidsnotetest.Transport) {
			tr.HandlePath(kidsnote.AccountInfoPath, kidsnotetest.Response{Status: 200, Body: "<html>"})
		}},
		{"no candidate", func(tr *kidsnotetest.Transport) {
			tr.HandlePath(kidsnote.AccountInfoPath, kidsnotetest.JSON(map[string]interface{}{"name": "parent"}))
		}},
		{"probe fails", func(tr *kidsnotetest.Transport) {
			tr.HandlePath(kidsnote.AccountInfoPath, kidsnotetest.JSON(map[string]interface{}{"child_id": 4821}))
		}},
		{"transport error", func(tr *kidsnotetest.Transport) {
			tr.HandlePath(kidsnote.AccountInfoPath, kidsnotetest.Response{Err: errors.New("dial tcp: refused")})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := kidsnotetest.NewTransport()
			tt.setup(tr)
			l := newLocator(t, tr, nil)

			_, err := l.Locate(context.Background(), kidsnote.KindAlbum)
			require.Error(t, err)
			assert.True(t, errs.IsType(err, errs.ErrorTypeDiscovery))
			var e *errs.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, CodeNotFound, e.Code)
		})
	}
}

func TestNewRejectsBadServiceURL(t *testing.T) {
	_, err := New(nil, Options{ServiceURL: ""}, logger.NewNopLogger())
	assert.Error(t, err)
}
