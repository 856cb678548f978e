package downloader

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"

	"knexport/pkg/kidsnote"
)

// DefaultMaxNameLength caps folder and file names, in runes.
const DefaultMaxNameLength = 80

const (
	placeholderName = "untitled"
	illegalChars    = `<>:"/\|?*`
)

// SanitizeName makes s safe as a single path component on common filesystems.
// Illegal characters become '_', control characters are dropped, runs of
// whitespace collapse to one space, and trailing dots and spaces are removed.
// The result is at most max runes and never empty. SanitizeName is idempotent.
func SanitizeName(s string, max int) string {
	if max <= 0 {
		max = DefaultMaxNameLength
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == utf8.RuneError:
			b.WriteRune('_')
		case strings.ContainsRune(illegalChars, r):
			b.WriteRune('_')
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case unicode.IsControl(r) || unicode.Is(unicode.Cf, r):
		default:
			b.WriteRune(r)
		}
	}

	name := trimName(strings.Join(strings.Fields(b.String()), " "))
	if utf8.RuneCountInString(name) > max {
		name = trimName(string([]rune(name)[:max]))
	}
	if name == "" {
		name = placeholderName
		if max < len(name) {
			name = name[:max]
		}
	}
	return name
}

func trimName(s string) string {
	return strings.TrimRight(s, ". ")
}

// Folders holds the primary and fallback folder names for one item.
type Folders struct {
	Primary  string
	Fallback string
}

// FolderNames derives the item's folder names. Album folders are
// "<date> <title>"; report titles repeat, so report folders also carry the id.
// The fallback "<date>_<id>" contains no title text.
func FolderNames(kind kidsnote.Kind, item *kidsnote.Item, max int) Folders {
	date := item.Date()
	id := SanitizeName(item.ID, 32)

	primary := SanitizeName(strings.TrimSpace(date+" "+item.Title), max)
	if kind == kidsnote.KindReport {
		primary = primary + " " + id
	}

	fallback := "item_" + id
	if date != "" {
		fallback = date + "_" + id
	}
	return Folders{Primary: primary, Fallback: SanitizeName(fallback, max)}
}

// NumberedName returns "NNN.ext" for the n-th asset of a kind.
func NumberedName(n int, rawURL, defaultExt string) string {
	return fmt.Sprintf("%03d.%s", n, ExtFromURL(rawURL, defaultExt))
}

// AttachmentNames returns the display-derived name of a file attachment and
// its numbered fallback. Either gains the URL's extension when it lacks one.
func AttachmentNames(n int, att kidsnote.Attachment, max int) (string, string) {
	ext := ExtFromURL(att.URL, "")
	withExt := func(name string) string {
		if ext != "" && path.Ext(name) == "" {
			return name + "." + ext
		}
		return name
	}

	fallback := withExt(fmt.Sprintf("file_%03d", n))
	if strings.TrimSpace(att.Name) == "" {
		return fallback, fallback
	}
	return withExt(SanitizeName(att.Name, max)), fallback
}

// ExtFromURL returns the lower-case extension of the URL's path without the
// dot, or def when there is none or it does not look like a file type.
func ExtFromURL(rawURL, def string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return def
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
	if ext == "" || len(ext) > 5 {
		return def
	}
	for _, r := range ext {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return def
		}
	}
	return ext
}
