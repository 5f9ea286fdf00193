package liveview

import (
	"encoding/json"
	"io"
	"time"

	"github.com/webwatch/monitor/internal/history"
)

// NowOutput is the JSON envelope for `monitor now --output json`. Wraps the
// alert list with exit-code metadata without polluting history.AlertView.
type NowOutput struct {
	GeneratedAt time.Time           `json:"generatedAt"`
	Alerts      []history.AlertView `json:"alerts"`
	ExitCode    int                 `json:"exitCode"`
}

// WriteJSON serializes a NowOutput envelope to w.
func WriteJSON(w io.Writer, alerts []history.AlertView, exitCode int, now time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NowOutput{
		GeneratedAt: now,
		Alerts:      alerts,
		ExitCode:    exitCode,
	})
}
