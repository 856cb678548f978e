package kidsnote

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const (
	// AccountInfoPath returns the signed-in parent's profile, including children
	AccountInfoPath = "/api/v1/me/info/"

	// DefaultPageSize is the largest page size the collection endpoints honor
	DefaultPageSize = 100

	// DefaultTimezone is the service's home zone
	DefaultTimezone = "Asia/Seoul"
)

// Kind selects a record collection.
type Kind string

const (
	KindAlbum  Kind = "album"
	KindReport Kind = "report"
)

// ParseKind accepts singular or plural spellings.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "album", "albums":
		return KindAlbum, nil
	case "report", "reports":
		return KindReport, nil
	default:
		return "", fmt.Errorf("unknown record kind %q (want album or report)", s)
	}
}

// APIVersion is the version path segment the service uses for this kind.
func (k Kind) APIVersion() string {
	if k == KindReport {
		return "v1_2"
	}
	return "v1"
}

// Collection is the plural collection path segment.
func (k Kind) Collection() string {
	return string(k) + "s"
}

// Label is the human-readable plural used in progress lines and summaries.
func (k Kind) Label() string {
	return k.Collection()
}

// CollectionPath returns /api/<ver>/children/<id>/<collection>/.
func (k Kind) CollectionPath(childID string) string {
	return fmt.Sprintf("/api/%s/children/%s/%s/", k.APIVersion(), childID, k.Collection())
}

// CollectionURL joins the service base URL and the collection path.
func CollectionURL(baseURL string, kind Kind, childID string) string {
	return strings.TrimRight(baseURL, "/") + kind.CollectionPath(childID)
}

// collectionPath matches any collection-shaped path, singular root included.
var collectionPath = regexp.MustCompile(`^/api/(v[0-9_]+)/children/([0-9]+)/(albums|reports|album|report)/?$`)

// MatchCollectionPath reports the kind and child id encoded in path.
func MatchCollectionPath(path string) (Kind, string, bool) {
	m := collectionPath.FindStringSubmatch(path)
	if m == nil {
		return "", "", false
	}
	kind, err := ParseKind(m[3])
	if err != nil {
		return "", "", false
	}
	return kind, m[2], true
}

// MatchKindPath is MatchCollectionPath restricted to one kind and its API version.
func MatchKindPath(path string, kind Kind) (string, bool) {
	m := collectionPath.FindStringSubmatch(path)
	if m == nil || m[1] != kind.APIVersion() {
		return "", false
	}
	got, err := ParseKind(m[3])
	if err != nil || got != kind {
		return "", false
	}
	return m[2], true
}

// controllerParams are set per request by the export loop and never carried over.
var controllerParams = map[string]bool{
	"page":      true,
	"page_size": true,
	"tz":        true,
	"timezone":  true,
	"child":     true,
}

// EndpointInfo describes a discovered collection endpoint. It is built once
// per run and treated as read-only afterwards.
type EndpointInfo struct {
	Kind         Kind       `json:"kind"`
	ChildID      string     `json:"child_id"`
	BaseURL      string     `json:"base_url"`
	SampleURL    string     `json:"sample_url,omitempty"`
	DefaultQuery url.Values `json:"default_query,omitempty"`
}

// NewEndpointInfo builds the canonical endpoint for a kind and child, keeping
// the non-pagination parameters of sample (which may be empty).
func NewEndpointInfo(serviceURL string, kind Kind, childID, sample string) *EndpointInfo {
	info := &EndpointInfo{
		Kind:         kind,
		ChildID:      childID,
		BaseURL:      CollectionURL(serviceURL, kind, childID),
		SampleURL:    sample,
		DefaultQuery: url.Values{},
	}
	if sample == "" {
		return info
	}
	u, err := url.Parse(sample)
	if err != nil {
		return info
	}
	for key, values := range u.Query() {
		if controllerParams[strings.ToLower(key)] {
			continue
		}
		info.DefaultQuery[key] = append([]string(nil), values...)
	}
	return info
}

// PageURL builds the URL for one page. An empty cursor requests the first page.
func (e *EndpointInfo) PageURL(cursor string, pageSize int, tz string) string {
	q := url.Values{}
	for k, v := range e.DefaultQuery {
		q[k] = append([]string(nil), v...)
	}
	q.Set("page_size", strconv.Itoa(pageSize))
	if tz != "" {
		q.Set("tz", tz)
	}
	if cursor != "" {
		q.Set("page", cursor)
	}
	return e.BaseURL + "?" + q.Encode()
}

// ProbeURL requests a single record to confirm the endpoint answers.
func (e *EndpointInfo) ProbeURL() string {
	return e.BaseURL + "?page_size=1"
}
