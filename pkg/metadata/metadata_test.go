package metadata

import (
	"testing"

	"boorudl/pkg/booru"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePost() booru.Post {
	score := 42
	return booru.Post{
		ID:        "4507",
		ImageURL:  "https://cdn.example.org/4507.png",
		Tags:      "1girl touhou",
		Width:     1920,
		Height:    1080,
		Score:     &score,
		Extension: ".png",
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatPlain, f)

	f, err = ParseFormat("Detailed")
	require.NoError(t, err)
	assert.Equal(t, FormatDetailed, f)

	_, err = ParseFormat("json")
	assert.Error(t, err)
}

func TestRenderPlain(t *testing.T) {
	assert.Equal(t, "1girl touhou", FromPost(samplePost()).Render(FormatPlain))
}

func TestRenderDetailed(t *testing.T) {
	text := FromPost(samplePost()).Render(FormatDetailed)
	expected := "# post_id: 4507\n" +
		"# image_url: https://cdn.example.org/4507.png\n" +
		"# dimensions: 1920x1080\n" +
		"# aspect: 16:9\n" +
		"# score: 42\n" +
		"1girl touhou"
	assert.Equal(t, expected, text)
}

func TestRenderDetailedPartial(t *testing.T) {
	p := samplePost()
	p.Width, p.Height, p.Score = 0, 0, nil

	text := FromPost(p).Render(FormatDetailed)
	assert.NotContains(t, text, "dimensions")
	assert.NotContains(t, text, "score")
	assert.Contains(t, text, "# post_id: 4507\n")
}

func TestGetAspectRatio(t *testing.T) {
	tests := []struct {
		w, h     int
		expected string
	}{
		{1920, 1080, "16:9"},
		{1080, 1920, "9:16"},
		{1000, 1000, "1:1"},
		{1024, 768, "4:3"},
		{1920, 1200, "16:10"},
		{2560, 1080, "21:9"},
		{300, 100, "3.00:1"},
		{100, 0, "unknown"},
	}

	for _, tt := range tests {
		f := &TagFile{Width: tt.w, Height: tt.h}
		assert.Equal(t, tt.expected, f.GetAspectRatio())
	}
}
