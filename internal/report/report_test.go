package report

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/snowdepth/internal/measure"
)

func sampleRows() []measure.StoredMeasurement {
	base := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	// newest first, as the stores return them
	return []measure.StoredMeasurement{
		{Measurement: measure.Measurement{Distance: 96.3, Confidence: 98}, RecordedAt: base.Add(2 * time.Hour)},
		{Measurement: measure.Measurement{Distance: 98.1, Confidence: 97}, RecordedAt: base.Add(time.Hour)},
		{Measurement: measure.Measurement{Distance: 101.4, Confidence: 99}, RecordedAt: base},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" PNG ")
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, f)

	f, err = ParseFormat("html")
	require.NoError(t, err)
	assert.Equal(t, FormatHTML, f)

	_, err = ParseFormat("svg")
	assert.Error(t, err)
}

func TestChronological(t *testing.T) {
	rows := sampleRows()
	got := chronological(rows)
	assert.Equal(t, 101.4, got[0].Distance)
	assert.Equal(t, 96.3, got[2].Distance)
	assert.Equal(t, 96.3, rows[0].Distance, "input must not be reordered")
}

func TestRenderPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, Render(f, FormatPNG, sampleRows()))
	require.NoError(t, f.Close())

	f, err = os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 0)
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatHTML, sampleRows()))

	html := buf.String()
	assert.True(t, strings.Contains(html, "Snow depth sensor"))
	assert.True(t, strings.Contains(html, "Confidence (%)"))
	assert.Less(t, strings.Index(html, "2024-01-10 00:00:00"), strings.Index(html, "2024-01-10 02:00:00"))
}

func TestRenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, RenderPNG(&buf, nil), ErrNoData)
	assert.ErrorIs(t, RenderHTML(&buf, nil), ErrNoData)
	assert.Error(t, Render(&buf, Format("svg"), sampleRows()))
}
