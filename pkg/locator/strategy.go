package locator

import (
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// ChildIDStrategy guesses a child id from the account-info payload.
type ChildIDStrategy interface {
	Name() string
	Discover(info interface{}) (string, bool)
}

// DefaultAliases are the explicit child-id fields the account-info payload has used.
var DefaultAliases = []string{"child_id", "childId", "current_child_id", "selected_child_id", "current_child", "child"}

// containerKeys are the wrapper objects aliases are also looked up in.
var containerKeys = []string{"user", "data", "me", "profile"}

// AliasStrategy looks for a known child-id field at the top level or one wrapper deep.
type AliasStrategy struct {
	Aliases []string
}

func (AliasStrategy) Name() string { return "alias" }

func (s AliasStrategy) Discover(info interface{}) (string, bool) {
	aliases := s.Aliases
	if len(aliases) == 0 {
		aliases = DefaultAliases
	}

	root, ok := info.(map[string]interface{})
	if !ok {
		return "", false
	}
	scopes := []map[string]interface{}{root}
	for _, k := range containerKeys {
		if m, ok := root[k].(map[string]interface{}); ok {
			scopes = append(scopes, m)
		}
	}

	for _, scope := range scopes {
		for _, alias := range aliases {
			v, present := scope[alias]
			if !present {
				continue
			}
			if obj, isObj := v.(map[string]interface{}); isObj {
				v = obj["id"]
			}
			if id, ok := idFromValue(v, 1, 0); ok {
				return id, true
			}
		}
	}
	return "", false
}

// HeuristicStrategy scans the whole payload for the first integer at least
// MinValue whose field name contains FieldHint. A plain "id" field also
// qualifies when an enclosing field name contains the hint, which covers
// {"children": [{"id": ...}]}. Keys are visited in sorted order.
type HeuristicStrategy struct {
	FieldHint string
	MinValue  int64
	MaxDepth  int
}

func (HeuristicStrategy) Name() string { return "heuristic" }

func (s HeuristicStrategy) Discover(info interface{}) (string, bool) {
	hint := strings.ToLower(s.FieldHint)
	if hint == "" {
		hint = "child"
	}
	maxDepth := s.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 8
	}
	sc := &scan{
		hint:     hint,
		min:      s.MinValue,
		maxDepth: maxDepth,
		visited:  make(map[uintptr]bool),
	}
	return sc.walk(info, "", false, 0)
}

type scan struct {
	hint     string
	min      int64
	maxDepth int
	visited  map[uintptr]bool
}

func (sc *scan) walk(v interface{}, key string, underHint bool, depth int) (string, bool) {
	if depth > sc.maxDepth {
		return "", false
	}

	switch node := v.(type) {
	case map[string]interface{}:
		if sc.seen(node) {
			return "", false
		}
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			hinted := underHint || sc.matches(key)
			if id, ok := sc.walk(node[k], k, hinted, depth+1); ok {
				return id, true
			}
		}
	case []interface{}:
		if sc.seen(node) {
			return "", false
		}
		for _, elem := range node {
			if id, ok := sc.walk(elem, key, underHint, depth+1); ok {
				return id, true
			}
		}
	default:
		if sc.matches(key) || (underHint && strings.EqualFold(key, "id")) {
			return idFromValue(v, 4, sc.min)
		}
	}
	return "", false
}

func (sc *scan) matches(key string) bool {
	return key != "" && strings.Contains(strings.ToLower(key), sc.hint)
}

// seen marks a map or slice as visited by its backing identity.
func (sc *scan) seen(container interface{}) bool {
	rv := reflect.ValueOf(container)
	if rv.Len() == 0 {
		return false
	}
	ptr := rv.Pointer()
	if sc.visited[ptr] {
		return true
	}
	sc.visited[ptr] = true
	return false
}

// idFromValue accepts integral numbers and all-digit strings of at least
// minDigits, and requires the value to be at least min.
func idFromValue(v interface{}, minDigits int, min int64) (string, bool) {
	var n int64
	switch x := v.(type) {
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return "", false
		}
		n = i
	case float64:
		if x != math.Trunc(x) || x > math.MaxInt64 || x < 0 {
			return "", false
		}
		n = int64(x)
	case int:
		n = int64(x)
	case int64:
		n = x
	case string:
		s := strings.TrimSpace(x)
		if len(s) < minDigits || !allDigits(s) {
			return "", false
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return "", false
		}
		n = i
	default:
		return "", false
	}
	if n <= 0 || n < min {
		return "", false
	}
	return strconv.FormatInt(n, 10), true
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
