package downloader

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"knexport/pkg/kidsnote"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"illegal characters", "A/B:C*D", 80, "A_B_C_D"},
		{"all illegal characters", `<>:"/\|?*`, 80, "_________"},
		{"control characters dropped", "Pic\x00nic\x07", 80, "Picnic"},
		{"whitespace collapsed", "  Spring \t\n  picnic  ", 80, "Spring picnic"},
		{"trailing dots and spaces", "Field trip... . ", 80, "Field trip"},
		{"empty becomes placeholder", "", 80, "untitled"},
		{"only dots becomes placeholder", " ... ", 80, "untitled"},
		{"placeholder respects a short cap", "", 4, "unti"},
		{"korean kept", "봄 소풍 사진", 80, "봄 소풍 사진"},
		{"truncated by runes", "가나다라마바", 4, "가나다라"},
		{"truncation re-trims", "abc. def", 4, "abc"},
		{"zero max uses default", strings.Repeat("x", 100), 0, strings.Repeat("x", DefaultMaxNameLength)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.input, tt.max))
		})
	}
}

func TestSanitizeNameIsIdempotent(t *testing.T) {
	inputs := []string{
		"A/B:C*D",
		"  x  .  ",
		"name.​.",
		"tab\there",
		strings.Repeat("ab. ", 40),
		"\xff\xfe broken utf8",
		"CON",
		"",
	}
	for _, in := range inputs {
		for _, max := range []int{4, 8, 80} {
			once := SanitizeName(in, max)
			assert.Equal(t, once, SanitizeName(once, max), "input %q max %d", in, max)
			assert.NotEmpty(t, once)
			assert.LessOrEqual(t, utf8.RuneCountInString(once), max)
			assert.False(t, strings.HasSuffix(once, ".") || strings.HasSuffix(once, " "))
		}
	}
}

func TestFolderNames(t *testing.T) {
	item := &kidsnote.Item{ID: "991", Created: "2024-10-05T09:12:00+09:00", Title: "Autumn: picnic"}

	album := FolderNames(kidsnote.KindAlbum, item, 80)
	assert.Equal(t, "2024-10-05 Autumn_ picnic", album.Primary)
	assert.Equal(t, "2024-10-05_991", album.Fallback)

	report := FolderNames(kidsnote.KindReport, item, 80)
	assert.Equal(t, "2024-10-05 Autumn_ picnic 991", report.Primary)
	assert.Equal(t, "2024-10-05_991", report.Fallback)

	undated := FolderNames(kidsnote.KindAlbum, &kidsnote.Item{ID: "7"}, 80)
	assert.Equal(t, "untitled", undated.Primary)
	assert.Equal(t, "item_7", undated.Fallback)
}

func TestNumberedName(t *testing.T) {
	assert.Equal(t, "001.png", NumberedName(1, "https://cdn.example/a/b.PNG?x=1", "jpg"))
	assert.Equal(t, "012.jpg", NumberedName(12, "https://cdn.example/a/b", "jpg"))
	assert.Equal(t, "003.mp4", NumberedName(3, "https://cdn.example/v.m3u8-playlist", "mp4"))
	assert.Equal(t, "100.mov", NumberedName(100, "https://cdn.example/v.mov", "mp4"))
}

func TestAttachmentNames(t *testing.T) {
	tests := []struct {
		name         string
		att          kidsnote.Attachment
		wantName     string
		wantFallback string
	}{
		{"name with extension", kidsnote.Attachment{URL: "https://cdn/x.pdf", Name: "menu.pdf"}, "menu.pdf", "file_002.pdf"},
		{"name gains url extension", kidsnote.Attachment{URL: "https://cdn/x.hwp", Name: "Notice"}, "Notice.hwp", "file_002.hwp"},
		{"name sanitized", kidsnote.Attachment{URL: "https://cdn/x", Name: "a/b?.txt"}, "a_b_.txt", "file_002"},
		{"no name", kidsnote.Attachment{URL: "https://cdn/x.docx"}, "file_002.docx", "file_002.docx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, fallback := AttachmentNames(2, tt.att, 80)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantFallback, fallback)
		})
	}
}
