package kidsnote

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageCursor(t *testing.T) {
	tests := []struct {
		name string
		body string
		next string
	}{
		{"opaque token", `{"next":"T1","results":[]}`, "T1"},
		{"null", `{"next":null,"results":[]}`, ""},
		{"missing", `{"results":[]}`, ""},
		{"numeric", `{"next":2,"results":[]}`, "2"},
		{"absolute url", `{"next":"https://www.kidsnote.com/api/v1/children/1/albums/?page=abc&page_size=100","results":[]}`, "abc"},
		{"url without page", `{"next":"https://www.kidsnote.com/api/v1/children/1/albums/","results":[]}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Page
			require.NoError(t, json.Unmarshal([]byte(tt.body), &p))
			assert.Equal(t, tt.next, p.Next)
		})
	}
}

func TestPageCount(t *testing.T) {
	var p Page
	require.NoError(t, json.Unmarshal([]byte(`{"count":250,"results":[{"id":1}]}`), &p))
	assert.True(t, p.HasCount)
	assert.Equal(t, 250, p.Count)

	p = Page{}
	require.NoError(t, json.Unmarshal([]byte(`{"count":null,"results":[]}`), &p))
	assert.False(t, p.HasCount)
}

func TestAlbumItem(t *testing.T) {
	body := `{
		"id": 555001,
		"created": "2024-10-05T09:12:00+09:00",
		"title": "Autumn picnic",
		"content": "We went to the park.",
		"attached_images": [
			{"original": "https://cdn.example/a/o.png", "large": "https://cdn.example/a/l.jpg"},
			{"small": "https://cdn.example/b/s.jpg", "small_resize": "https://cdn.example/b/sr.jpg"},
			{}
		],
		"attached_video": {"high": "https://cdn.example/v/high.mp4", "low": "https://cdn.example/v/low.mp4"}
	}`

	var it Item
	require.NoError(t, json.Unmarshal([]byte(body), &it))

	assert.Equal(t, "555001", it.ID)
	assert.Equal(t, "2024-10-05", it.Date())
	assert.Equal(t, "2024-10", it.YearMonth())
	assert.Equal(t, "Autumn picnic", it.Title)
	assert.Equal(t, "We went to the park.", it.Content)
	require.Len(t, it.Images, 2)
	assert.Equal(t, "https://cdn.example/a/o.png", it.Images[0].Best())
	assert.Equal(t, "https://cdn.example/b/s.jpg", it.Images[1].Best())
	require.Len(t, it.Videos, 1)
	assert.Equal(t, "https://cdn.example/v/high.mp4", it.Videos[0].Best())
	assert.JSONEq(t, body, string(it.Raw))
}

func TestReportVideoNormalization(t *testing.T) {
	body := `{
		"id": "r-9",
		"date_written": "2024-09-30",
		"attached_video": "https://cdn.example/v/1.mp4",
		"attached_videos": [{"low": "https://cdn.example/v/2-low.mp4"}, "https://cdn.example/v/3.mov"],
		"video": {"high": "https://cdn.example/v/1.mp4"},
		"videos": null,
		"attached_files": [
			{"original": "https://cdn.example/f/menu.pdf", "name": "Menu"},
			{"url": "https://cdn.example/f/plan.hwp", "file_name": "plan.hwp"},
			{"file": "https://cdn.example/f/x", "filename": ""},
			{"name": "no url"}
		]
	}`

	var it Item
	require.NoError(t, json.Unmarshal([]byte(body), &it))

	assert.Equal(t, "r-9", it.ID)
	assert.Equal(t, "2024-09", it.YearMonth())

	var urls []string
	for _, v := range it.Videos {
		urls = append(urls, v.Best())
	}
	assert.Equal(t, []string{
		"https://cdn.example/v/1.mp4",
		"https://cdn.example/v/2-low.mp4",
		"https://cdn.example/v/3.mov",
	}, urls, "duplicates across fields are merged")

	require.Len(t, it.Files, 3)
	assert.Equal(t, Attachment{URL: "https://cdn.example/f/menu.pdf", Name: "Menu"}, it.Files[0])
	assert.Equal(t, Attachment{URL: "https://cdn.example/f/plan.hwp", Name: "plan.hwp"}, it.Files[1])
	assert.Equal(t, Attachment{URL: "https://cdn.example/f/x"}, it.Files[2])
}

func TestImageVariantPreference(t *testing.T) {
	tests := []struct {
		v    ImageVariants
		want string
	}{
		{ImageVariants{Original: "o", Large: "l"}, "o"},
		{ImageVariants{Large: "l", LargeResize: "lr", Small: "s"}, "l"},
		{ImageVariants{LargeResize: "lr", Small: "s"}, "lr"},
		{ImageVariants{Small: "s", SmallResize: "sr"}, "s"},
		{ImageVariants{SmallResize: "sr"}, "sr"},
		{ImageVariants{}, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.v.Best())
	}

	assert.Equal(t, "h", VideoVariants{High: "h", Low: "l"}.Best())
	assert.Equal(t, "l", VideoVariants{Low: "l"}.Best())
}

func TestItemWithOddCreated(t *testing.T) {
	var it Item
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"created":"yesterday"}`), &it))
	assert.Equal(t, "", it.Date())
	assert.Equal(t, "yesterd", it.YearMonth())

	require.NoError(t, json.Unmarshal([]byte(`{"id":2}`), &it))
	assert.Equal(t, "", it.YearMonth())
}

func TestPageSkipsMalformedResults(t *testing.T) {
	var p Page
	body := `{"count":3,"next":"T1","results":[{"id":1,"created":"2024-10-01"},"oops",null,{"id":3,"created":"2024-09-01"}]}`
	require.NoError(t, json.Unmarshal([]byte(body), &p))

	assert.Equal(t, "T1", p.Next)
	assert.Equal(t, 2, p.Dropped)
	require.Len(t, p.Results, 2)
	assert.Equal(t, "1", p.Results[0].ID)
	assert.Equal(t, "3", p.Results[1].ID)
}
