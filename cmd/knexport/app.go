package main

import (
	"errors"
	"fmt"
	"net/http"

	"knexport/internal/downloader"
	"knexport/pkg/auth"
	"knexport/pkg/config"
	errs "knexport/pkg/errors"
	"knexport/pkg/exporter"
	"knexport/pkg/kidsnote"
	"knexport/pkg/locator"
	"knexport/pkg/logger"
	"knexport/pkg/ratelimit"
	"knexport/pkg/retry"
	"knexport/pkg/status"
	"knexport/pkg/storage"
)

// accountSource is the part of auth.Manager the commands read sessions from.
type accountSource interface {
	Retrieve(name string) (*auth.Account, error)
	RetrieveDefault() (*auth.Account, error)
}

// resolveSession picks the session for API calls. A named account wins,
// then a session id from config or environment, then the default stored account.
func resolveSession(cfg *config.Config, account string, accounts accountSource) (kidsnote.Session, error) {
	var session kidsnote.Session

	switch {
	case account != "":
		if accounts == nil {
			return session, errs.New(errs.ErrorTypeAuth, "resolve session", "no credential store available")
		}
		acc, err := accounts.Retrieve(account)
		if err != nil {
			return session, &errs.Error{Type: errs.ErrorTypeAuth, Op: "resolve session", Message: "account " + account, Err: err}
		}
		session = acc.Session()
	case cfg.Service.SessionID != "":
		session = kidsnote.Session{
			SessionID: cfg.Service.SessionID,
			CSRFToken: cfg.Service.CSRFToken,
		}
	case accounts != nil:
		acc, err := accounts.RetrieveDefault()
		if err != nil {
			if errors.Is(err, auth.ErrCredentialsNotFound) {
				return session, errs.New(errs.ErrorTypeAuth, "resolve session", "no saved session; run 'knexport auth login' first")
			}
			return session, &errs.Error{Type: errs.ErrorTypeAuth, Op: "resolve session", Err: err}
		}
		session = acc.Session()
	default:
		return session, errs.New(errs.ErrorTypeAuth, "resolve session", "no saved session; run 'knexport auth login' first")
	}

	if session.UserAgent == "" {
		session.UserAgent = cfg.Service.UserAgent
	}
	if !session.Valid() {
		return session, errs.New(errs.ErrorTypeAuth, "resolve session", "session id is empty")
	}
	return session, nil
}

// appOptions carries what the commands add on top of the config file.
type appOptions struct {
	HARFiles   []string
	SampleURLs []string
	// StatusPath is the status file; empty keeps status in memory
	StatusPath string
	// HTTPClient replaces the default client, used by tests
	HTTPClient *http.Client
}

// app is the wired export stack.
type app struct {
	cfg     *config.Config
	client  *kidsnote.Client
	status  *status.Store
	service *exporter.Service
	logger  logger.Logger
}

func newApp(cfg *config.Config, session kidsnote.Session, opts appOptions, log logger.Logger) (*app, error) {
	log = logger.OrDefault(log)

	client, err := kidsnote.NewClient(kidsnote.Options{
		BaseURL:    cfg.Service.BaseURL,
		Timeout:    cfg.Service.Timeout,
		Session:    session,
		Limiter:    ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute),
		Retry:      retryConfig(cfg.Retry),
		HTTPClient: opts.HTTPClient,
	}, log)
	if err != nil {
		return nil, err
	}

	loc, err := locator.New(client, locator.Options{
		ServiceURL: cfg.Service.BaseURL,
		Log:        resourceLog(opts),
		Strategies: locator.DefaultStrategies(cfg.Discovery),
	}, log)
	if err != nil {
		return nil, err
	}

	st, err := status.NewStore(opts.StatusPath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open status store: %w", err)
	}

	dlOpts := downloader.Options{
		MaxNameLength: cfg.Output.MaxNameLength,
		AssetDelay:    cfg.Export.AssetDelay,
		SaveMetadata:  cfg.Output.SaveMetadata,
	}
	factory := func(run *exporter.Run) (exporter.ItemExporter, error) {
		mgr, err := storage.NewManager(run.Root, client, log)
		if err != nil {
			return nil, err
		}
		o := dlOpts
		o.Kind = run.Kind
		return downloader.New(mgr, o, log.WithField("run_id", run.ID)), nil
	}

	ctrl := exporter.NewController(loc, client, factory, st, exporter.Options{
		PageSize:         cfg.Export.PageSize,
		MaxPages:         cfg.Export.MaxPages,
		Timezone:         cfg.Service.Timezone,
		ItemDelay:        cfg.Export.ItemDelay,
		TrustNewestFirst: cfg.Export.TrustNewestFirst,
	}, log)

	return &app{
		cfg:     cfg,
		client:  client,
		status:  st,
		service: exporter.NewService(ctrl, log),
		logger:  log,
	}, nil
}

func retryConfig(rc config.RetryConfig) *retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = rc.MaxAttempts
	cfg.Backoff = &retry.ExponentialBackoff{
		BaseDelay:    rc.InitialBackoff,
		MaxDelay:     rc.MaxBackoff,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
	// Let the client attach its own logger.
	cfg.Logger = nil
	return cfg
}

func resourceLog(opts appOptions) locator.ResourceLog {
	var logs locator.MultiLog
	for _, p := range opts.HARFiles {
		logs = append(logs, locator.HARLog{Path: p})
	}
	if len(opts.SampleURLs) > 0 {
		logs = append(logs, locator.StaticLog(opts.SampleURLs))
	}
	if len(logs) == 0 {
		return nil
	}
	return logs
}

// statusPath returns --status-file or the per-user default.
func statusPath() (string, error) {
	if statusFile != "" {
		return statusFile, nil
	}
	return status.DefaultPath()
}

// openAccounts opens the credential manager, or returns nil when no store can be opened.
func openAccounts(log logger.Logger) accountSource {
	m, err := auth.NewManager()
	if err != nil {
		logger.OrDefault(log).WithError(err).Warn("credential store unavailable")
		return nil
	}
	return m
}
