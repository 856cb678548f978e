// Package kidsnotetest provides an in-memory stand-in for the childcare
// service so packages above the API client can be tested without a network.
package kidsnotetest

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// BaseURL is the origin the fake transport answers for.
const BaseURL = "https://www.kidsnote.com"

// Response is a canned reply. Body is sent verbatim when it is a string or
// []byte and JSON-encoded otherwise. A non-nil Err fails the round trip.
type Response struct {
	Status int
	Body   interface{}
	Err    error
}

// Transport routes requests by path plus sorted query string.
type Transport struct {
	mu       sync.Mutex
	routes   map[string]Response
	fallback map[string]Response
	requests []*http.Request
}

func NewTransport() *Transport {
	return &Transport{routes: map[string]Response{}, fallback: map[string]Response{}}
}

// Handle registers a reply for an exact path and query, e.g.
// "/api/v1/children/1234/albums/?page_size=100&tz=Asia%2FSeoul".
func (t *Transport) Handle(pathAndQuery string, resp Response) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes[normalize(pathAndQuery)] = resp
}

// HandlePath registers a reply for every request to path regardless of query.
func (t *Transport) HandlePath(path string, resp Response) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fallback[path] = resp
}

// JSON is shorthand for a 200 reply with a JSON body.
func JSON(body interface{}) Response {
	return Response{Status: http.StatusOK, Body: body}
}

// Requests returns the URLs requested so far, in order.
func (t *Transport) Requests() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.requests))
	for i, r := range t.requests {
		out[i] = r.URL.String()
	}
	return out
}

// LastRequest returns the most recent request, or nil.
func (t *Transport) LastRequest() *http.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.requests) == 0 {
		return nil
	}
	return t.requests[len(t.requests)-1]
}

// Count returns how many requests hit path, ignoring the query.
func (t *Transport) Count(path string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, r := range t.requests {
		if r.URL.Path == path {
			n++
		}
	}
	return n
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	t.requests = append(t.requests, req)
	key := normalize(req.URL.RequestURI())
	resp, ok := t.routes[key]
	if !ok {
		resp, ok = t.fallback[req.URL.Path]
	}
	t.mu.Unlock()

	if !ok {
		return reply(req, http.StatusNotFound, []byte(`{"detail":"not found"}`)), nil
	}
	if resp.Err != nil {
		return nil, resp.Err
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	var body []byte
	switch b := resp.Body.(type) {
	case nil:
	case string:
		body = []byte(b)
	case []byte:
		body = b
	default:
		var err error
		if body, err = json.Marshal(b); err != nil {
			return nil, errors.New("kidsnotetest: cannot encode body: " + err.Error())
		}
	}
	return reply(req, status, body), nil
}

// Client returns an http.Client using this transport.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

func reply(req *http.Request, status int, body []byte) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(bytes.NewReader(body)),
		Header:     make(http.Header),
		Request:    req,
	}
}

func normalize(pathAndQuery string) string {
	path, query, found := strings.Cut(pathAndQuery, "?")
	if !found || query == "" {
		return path
	}
	parts := strings.Split(query, "&")
	sort.Strings(parts)
	return path + "?" + strings.Join(parts, "&")
}
