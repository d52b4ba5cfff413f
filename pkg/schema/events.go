// pkg/schema/events.go
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Percentage accepts either a JSON number or a numeric string.
type Percentage float64

func (p *Percentage) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*p = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("resizePercentage %q is not numeric", s)
		}
		*p = Percentage(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("resizePercentage is not numeric: %w", err)
	}
	*p = Percentage(v)
	return nil
}

type StartCompression struct {
	CollectionID        string     `json:"collectionId"`
	ResizePercentage    Percentage `json:"resizePercentage"`
	CompressionStrategy string     `json:"compressionStrategy"`
	ProcessID           string     `json:"processId"`
}

type StartCompressionResponse struct {
	Success     bool   `json:"success"`
	ProcessID   string `json:"processId,omitempty"`
	TotalImages int    `json:"totalImages"`
	Error       string `json:"error,omitempty"`
}

type StopCompression struct {
	ProcessID string `json:"processId"`
}

type StopCompressionResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
