package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/webwatch/monitor/internal/capture"
	"github.com/webwatch/monitor/internal/defacement"
)

// encodeCapture serializes a capture's request forest for storage in a
// DefacementRecord's BaselineCapture/LastCapture columns.
func encodeCapture(c *capture.Capture) ([]byte, error) {
	wire := struct {
		Roots             []*capture.SerializedNode `json:"roots"`
		LastRedirectedURL string                    `json:"last_redirected_url"`
		Title             string                    `json:"title"`
	}{Roots: c.ToDict(), LastRedirectedURL: c.LastRedirectedURL, Title: c.Title}
	b, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encoding capture: %w", err)
	}
	return b, nil
}

func decodeCapture(raw []byte) (*capture.Capture, error) {
	var wire struct {
		Roots             []*capture.SerializedNode `json:"roots"`
		LastRedirectedURL string                    `json:"last_redirected_url"`
		Title             string                    `json:"title"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("decoding capture: %w", err)
	}
	return &capture.Capture{
		Roots:             capture.FromDict(wire.Roots),
		LastRedirectedURL: wire.LastRedirectedURL,
		Title:             wire.Title,
	}, nil
}

// formatChanges renders a flat change list for alert details and the
// persisted defacement record text, metadata first, then structural, then
// content, matching defacement.Diff's own ordering.
func formatChanges(changes []defacement.Change) string {
	var sb strings.Builder
	for _, c := range changes {
		switch {
		case c.Old != "" || c.New != "":
			fmt.Fprintf(&sb, "%s: %s -> %s\n", c.Type, c.Old, c.New)
		case c.Details != "":
			fmt.Fprintf(&sb, "%s %s: %s\n", c.Type, c.URL, c.Details)
		default:
			fmt.Fprintf(&sb, "%s %s\n", c.Type, c.URL)
		}
	}
	return sb.String()
}
