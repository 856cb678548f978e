package kidsnote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	errs "knexport/pkg/errors"
	"knexport/pkg/logger"
	"knexport/pkg/ratelimit"
	"knexport/pkg/retry"
)

// Session carries the credentials a signed-in browser would send implicitly.
type Session struct {
	SessionID string
	CSRFToken string
	UserAgent string
	// Extra cookies sent alongside sessionid and csrftoken
	Cookies map[string]string
}

// Valid reports whether the session can authenticate at all.
func (s Session) Valid() bool {
	return s.SessionID != ""
}

func (s Session) cookieHeader() string {
	var parts []string
	if s.SessionID != "" {
		parts = append(parts, "sessionid="+s.SessionID)
	}
	if s.CSRFToken != "" {
		parts = append(parts, "csrftoken="+s.CSRFToken)
	}
	for k, v := range s.Cookies {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, "; ")
}

// FetchResult is the outcome of an authenticated GET. Data is the decoded
// JSON body, or nil when the body is not JSON.
type FetchResult struct {
	OK     bool
	Status int
	Body   []byte
	Data   interface{}
}

// Fetcher performs authenticated, allow-listed GETs against the service.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*FetchResult, error)
}

// Options configures a Client
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Session    Session
	Limiter    ratelimit.Limiter
	Retry      *retry.Config
	HTTPClient *http.Client
}

// Client talks to the childcare service API with an injected session
type Client struct {
	httpClient     *http.Client
	downloadClient *http.Client
	base           *url.URL
	session        Session
	limiter        ratelimit.Limiter
	retry          *retry.Config
	logger         logger.Logger
}

// NewClient creates a new API client
func NewClient(opts Options, log logger.Logger) (*Client, error) {
	log = logger.OrDefault(log)

	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Host == "" {
		return nil, errs.New(errs.ErrorTypeValidation, "kidsnote.NewClient", fmt.Sprintf("invalid base URL %q", opts.BaseURL))
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	// Asset downloads can be large videos, so they are bounded by ctx rather than a client timeout.
	downloadClient := &http.Client{Transport: httpClient.Transport}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}

	retryCfg := opts.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	if retryCfg.Logger == nil {
		c := *retryCfg
		c.Logger = log
		retryCfg = &c
	}

	return &Client{
		httpClient:     httpClient,
		downloadClient: downloadClient,
		base:           base,
		session:        opts.Session,
		limiter:        limiter,
		retry:          retryCfg,
		logger:         log,
	}, nil
}

// BaseURL returns the service origin this client is scoped to.
func (c *Client) BaseURL() string {
	return strings.TrimRight(c.base.String(), "/")
}

// Host returns the service host this client is scoped to.
func (c *Client) Host() string {
	return c.base.Host
}

// CheckAllowed rejects any URL outside the collection and account-info endpoints.
func (c *Client) CheckAllowed(rawURL string) error {
	deny := func(reason string) error {
		return &errs.Error{
			Type:    errs.ErrorTypeURLNotAllowed,
			Op:      "fetch",
			Code:    errs.CodeURLNotAllowed,
			Message: fmt.Sprintf("%s: %s", reason, rawURL),
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return deny("unparseable URL")
	}
	if u.Scheme != "https" {
		return deny("scheme must be https")
	}
	if !strings.EqualFold(u.Host, c.base.Host) {
		return deny("host not allowed")
	}
	if u.Path == AccountInfoPath {
		return nil
	}
	if _, _, ok := MatchCollectionPath(u.Path); ok {
		return nil
	}
	return deny("path not allowed")
}

// Fetch performs an authenticated GET. Non-2xx statuses are reported through
// FetchResult.OK; only transport failures and allow-list rejections return an error.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if err := c.CheckAllowed(rawURL); err != nil {
		c.logger.WarnWithFields("blocked request outside allow-list", map[string]interface{}{"url": rawURL})
		return nil, err
	}

	return retry.DoWithResult(ctx, func(ctx context.Context) (*FetchResult, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return c.get(ctx, rawURL)
	}, c.retry)
}

func (c *Client) get(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeValidation, "fetch", err)
	}
	c.setHeaders(req, true)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"url":      rawURL,
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, "fetch", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, "fetch: read body", err)
	}
	logger.LogRequest(c.logger, http.MethodGet, rawURL, resp.StatusCode, time.Since(start))

	return &FetchResult{
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status: resp.StatusCode,
		Body:   body,
		Data:   decodeJSON(body),
	}, nil
}

// decodeJSON returns nil for anything that is not a single JSON document.
// Numbers stay json.Number so large ids survive.
func decodeJSON(body []byte) interface{} {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

// FetchPage fetches and decodes one collection page. A non-2xx status is an
// error; a body that is not a JSON object decodes as an empty page.
func (c *Client) FetchPage(ctx context.Context, rawURL string) (*Page, error) {
	res, err := c.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return DecodePage(res, c.logger)
}

// DecodePage turns a fetch result into a Page. Entries of results that are
// not objects are skipped and counted in Page.Dropped.
func DecodePage(res *FetchResult, log logger.Logger) (*Page, error) {
	if !res.OK {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeHTTP,
			Op:      "fetch page",
			Status:  res.Status,
			Message: fmt.Sprintf("HTTP %d", res.Status),
		}
	}

	page := &Page{}
	if _, isObject := res.Data.(map[string]interface{}); !isObject {
		logger.OrDefault(log).WarnWithFields("page body is not a JSON object, treating as empty", map[string]interface{}{
			"status": res.Status,
			"bytes":  len(res.Body),
		})
		return page, nil
	}
	// A JSON object of the wrong shape would lose the cursor, so it is fatal.
	if err := json.Unmarshal(res.Body, page); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, "decode page", err)
	}
	if page.Dropped > 0 {
		logger.OrDefault(log).WarnWithFields("skipped malformed page results", map[string]interface{}{
			"dropped": page.Dropped,
			"kept":    len(page.Results),
		})
	}
	return page, nil
}

// Download streams rawURL into w. Session cookies are only sent to the service host.
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, errs.Wrap(errs.ErrorTypeValidation, "download", err)
	}
	c.setHeaders(req, strings.EqualFold(req.URL.Host, c.base.Host))

	resp, err := c.downloadClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, errs.Wrap(errs.ErrorTypeNetwork, "download", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, &errs.Error{
			Type:    errs.ErrorTypeHTTP,
			Op:      "download",
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("HTTP %d for %s", resp.StatusCode, rawURL),
		}
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, errs.Wrap(errs.ErrorTypeNetwork, "download: read body", err)
	}
	return n, nil
}

func (c *Client) setHeaders(req *http.Request, withSession bool) {
	ua := c.session.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en;q=0.8")

	if !withSession {
		return
	}
	if cookie := c.session.cookieHeader(); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	if c.session.CSRFToken != "" {
		req.Header.Set("X-CSRFToken", c.session.CSRFToken)
	}
	req.Header.Set("Referer", c.BaseURL()+"/")
}
