package locator

import (
	"encoding/json"
	"fmt"
	"os"
)

// ResourceLog lists request URLs a signed-in browser already made. It stands
// in for the page's resource-timing log.
type ResourceLog interface {
	URLs() ([]string, error)
}

// StaticLog is a fixed list of URLs, typically from --sample-url.
type StaticLog []string

func (s StaticLog) URLs() ([]string, error) {
	return []string(s), nil
}

// HARLog reads request URLs from a browser HAR export.
type HARLog struct {
	Path string
}

type harFile struct {
	Log struct {
		Entries []struct {
			Request struct {
				Method string `json:"method"`
				URL    string `json:"url"`
			} `json:"request"`
		} `json:"entries"`
	} `json:"log"`
}

func (h HARLog) URLs() ([]string, error) {
	data, err := os.ReadFile(h.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read HAR file: %w", err)
	}
	var har harFile
	if err := json.Unmarshal(data, &har); err != nil {
		return nil, fmt.Errorf("failed to parse HAR file: %w", err)
	}

	urls := make([]string, 0, len(har.Log.Entries))
	for _, e := range har.Log.Entries {
		if e.Request.Method != "" && e.Request.Method != "GET" {
			continue
		}
		if e.Request.URL != "" {
			urls = append(urls, e.Request.URL)
		}
	}
	return urls, nil
}

// MultiLog concatenates several logs. A failing log is reported, not skipped.
type MultiLog []ResourceLog

func (m MultiLog) URLs() ([]string, error) {
	var all []string
	for _, l := range m {
		if l == nil {
			continue
		}
		urls, err := l.URLs()
		if err != nil {
			return nil, err
		}
		all = append(all, urls...)
	}
	return all, nil
}
