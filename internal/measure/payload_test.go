package measure

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBatch(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		want     []float64
		wantCode Code
	}{
		{"ten values", `{"data":[1,2,3,4,5,6,7,8,9,10]}`, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, ""},
		{"count not checked", `{"data":[0.1,0.2]}`, []float64{0.1, 0.2}, ""},
		{"empty array", `{"data":[]}`, []float64{}, ""},
		{"invalid json", `{"data":`, nil, CodeMalformedPayload},
		{"missing data", `{"samples":[1,2]}`, nil, CodeMalformedPayload},
		{"null data", `{"data":null}`, nil, CodeMalformedPayload},
		{"non numeric", `{"data":["a","b"]}`, nil, CodeMalformedPayload},
		{"not an object", `[1,2,3]`, nil, CodeMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBatch([]byte(tt.body))
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, CodeOf(err))
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseBatch mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseLine(t *testing.T) {
	got, err := ParseLine(" 0.1, 0.2,0.3 \r\n")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, got)

	got, err = ParseLine(`{"data":[0.5,0.6]}`)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.6}, got)

	_, err = ParseLine("")
	assert.Equal(t, CodeMalformedPayload, CodeOf(err))

	_, err = ParseLine("0.1,abc")
	assert.Equal(t, CodeMalformedPayload, CodeOf(err))
}
