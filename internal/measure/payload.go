package measure

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Batch is the JSON body sent by the device.
type Batch struct {
	Data []float64 `json:"data"`
}

// ParseBatch decodes a `{"data": [...]}` payload. The sample count is not
// checked here; that is the pipeline's first validation step.
func ParseBatch(body []byte) ([]float64, error) {
	var b Batch
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, wrapError(CodeMalformedPayload, "error parsing JSON", err)
	}
	if b.Data == nil {
		return nil, newError(CodeMalformedPayload, `payload has no "data" array`)
	}
	return b.Data, nil
}

// ParseLine decodes a batch from a single line of device output. Lines
// starting with '{' are treated as JSON payloads, anything else as
// comma-separated seconds.
func ParseLine(line string) ([]float64, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, newError(CodeMalformedPayload, "empty line")
	}
	if strings.HasPrefix(line, "{") {
		return ParseBatch([]byte(line))
	}

	fields := strings.Split(line, ",")
	samples := make([]float64, 0, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, wrapError(CodeMalformedPayload, "failed to parse sample "+strconv.Itoa(i), err)
		}
		samples = append(samples, v)
	}
	return samples, nil
}
