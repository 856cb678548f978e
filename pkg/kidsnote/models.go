package kidsnote

import (
	"bytes"
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Page is one response from a collection endpoint
type Page struct {
	// Count is the server-reported total; only meaningful when HasCount is set
	Count    int
	HasCount bool
	// Next is the cursor for the following page, empty on the last page
	Next    string
	Results []Item
	// Dropped counts results entries that were not item objects
	Dropped int
}

type rawPage struct {
	Count   json.RawMessage   `json:"count"`
	Next    json.RawMessage   `json:"next"`
	Results []json.RawMessage `json:"results"`
}

func (p *Page) UnmarshalJSON(data []byte) error {
	var raw rawPage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Results = make([]Item, 0, len(raw.Results))
	for _, elem := range raw.Results {
		if b := bytes.TrimSpace(elem); len(b) == 0 || b[0] != '{' {
			p.Dropped++
			continue
		}
		var it Item
		if err := json.Unmarshal(elem, &it); err != nil {
			p.Dropped++
			continue
		}
		p.Results = append(p.Results, it)
	}
	if n, ok := flexInt(raw.Count); ok {
		p.Count = n
		p.HasCount = true
	}
	p.Next = cursorFromNext(raw.Next)
	return nil
}

// cursorFromNext normalizes the `next` field. The service usually sends an
// opaque token, but an absolute URL carries its token in the page parameter.
func cursorFromNext(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n json.Number
		if json.Unmarshal(raw, &n) == nil {
			return n.String()
		}
		return ""
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "/") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		return u.Query().Get("page")
	}
	return s
}

// ImageVariants holds the resolutions the service publishes for one photo
type ImageVariants struct {
	Original    string `json:"original"`
	Large       string `json:"large"`
	LargeResize string `json:"large_resize"`
	Small       string `json:"small"`
	SmallResize string `json:"small_resize"`
}

// Best returns the highest-quality URL available, or "".
func (v ImageVariants) Best() string {
	for _, u := range []string{v.Original, v.Large, v.LargeResize, v.Small, v.SmallResize} {
		if u != "" {
			return u
		}
	}
	return ""
}

// VideoVariants holds the quality levels of one video
type VideoVariants struct {
	High string `json:"high"`
	Low  string `json:"low"`
}

func (v VideoVariants) Best() string {
	if v.High != "" {
		return v.High
	}
	return v.Low
}

// Attachment is a generic file attached to a report
type Attachment struct {
	URL  string
	Name string
}

// Item is one album or report record. Only the fields the exporter needs are
// decoded; Raw keeps the full payload for the metadata sidecar.
type Item struct {
	ID      string
	Created string
	Title   string
	Content string
	Images  []ImageVariants
	Videos  []VideoVariants
	Files   []Attachment
	Raw     json.RawMessage
}

var (
	createdKeys = []string{"created", "date_written", "created_at", "date"}
	titleKeys   = []string{"title", "subject", "name"}
	contentKeys = []string{"content", "text", "body"}
	imageKeys   = []string{"attached_images", "images"}
	videoKeys   = []string{"attached_video", "attached_videos", "video", "videos"}
	fileKeys    = []string{"attached_files", "files", "attachments"}

	fileURLKeys  = []string{"original", "url", "file"}
	fileNameKeys = []string{"name", "file_name", "filename"}
)

func (it *Item) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*it = Item{Raw: append(json.RawMessage(nil), data...)}
	it.ID = flexString(fields["id"])
	it.Created = firstString(fields, createdKeys)
	it.Title = firstString(fields, titleKeys)
	it.Content = firstString(fields, contentKeys)

	for _, key := range imageKeys {
		if raw, ok := fields[key]; ok {
			it.Images = append(it.Images, decodeImages(raw)...)
		}
	}

	seen := map[string]bool{}
	for _, key := range videoKeys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		for _, v := range decodeVideos(raw) {
			best := v.Best()
			if best == "" || seen[best] {
				continue
			}
			seen[best] = true
			it.Videos = append(it.Videos, v)
		}
	}

	for _, key := range fileKeys {
		if raw, ok := fields[key]; ok {
			it.Files = append(it.Files, decodeFiles(raw)...)
		}
	}

	return nil
}

var datePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// Date returns the YYYY-MM-DD part of Created, or "" when Created has another shape.
func (it *Item) Date() string {
	return datePrefix.FindString(it.Created)
}

// YearMonth returns the YYYY-MM key used for range filtering. When Created is
// too short the raw value is returned and the caller decides what to do with it.
func (it *Item) YearMonth() string {
	if len(it.Created) >= 7 {
		return it.Created[:7]
	}
	return it.Created
}

func decodeImages(raw json.RawMessage) []ImageVariants {
	var out []ImageVariants
	for _, elem := range asList(raw) {
		var s string
		if json.Unmarshal(elem, &s) == nil {
			if s != "" {
				out = append(out, ImageVariants{Original: s})
			}
			continue
		}
		var v ImageVariants
		if json.Unmarshal(elem, &v) == nil && v.Best() != "" {
			out = append(out, v)
		}
	}
	return out
}

// decodeVideos accepts a bare URL, a {high, low} object, or a list of either.
func decodeVideos(raw json.RawMessage) []VideoVariants {
	var out []VideoVariants
	for _, elem := range asList(raw) {
		var s string
		if json.Unmarshal(elem, &s) == nil {
			if s != "" {
				out = append(out, VideoVariants{High: s})
			}
			continue
		}
		var v VideoVariants
		if json.Unmarshal(elem, &v) == nil && v.Best() != "" {
			out = append(out, v)
		}
	}
	return out
}

func decodeFiles(raw json.RawMessage) []Attachment {
	var out []Attachment
	for _, elem := range asList(raw) {
		var s string
		if json.Unmarshal(elem, &s) == nil {
			if s != "" {
				out = append(out, Attachment{URL: s})
			}
			continue
		}
		var fields map[string]json.RawMessage
		if json.Unmarshal(elem, &fields) != nil {
			continue
		}
		a := Attachment{
			URL:  firstString(fields, fileURLKeys),
			Name: firstString(fields, fileNameKeys),
		}
		if a.URL != "" {
			out = append(out, a)
		}
	}
	return out
}

// asList wraps a single JSON value as a one-element list; null yields nothing.
func asList(raw json.RawMessage) []json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '[' {
		var list []json.RawMessage
		if json.Unmarshal(raw, &list) != nil {
			return nil
		}
		return list
	}
	return []json.RawMessage{raw}
}

func firstString(fields map[string]json.RawMessage, keys []string) string {
	for _, k := range keys {
		if s := flexString(fields[k]); s != "" {
			return s
		}
	}
	return ""
}

// flexString decodes a JSON string or number as text.
func flexString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		return n.String()
	}
	return ""
}

func flexInt(raw json.RawMessage) (int, bool) {
	s := flexString(raw)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
