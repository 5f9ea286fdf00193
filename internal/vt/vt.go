// Package vt submits URLs to VirusTotal and polls for analysis results,
// grounded on the original scanner
// (original_source/backend/apps/tools_integrated/virustotal.py).
package vt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	baseURL      = "https://www.virustotal.com/api/v3"
	pollInterval = 20 * time.Second
)

// benign verdicts that do not mark a URL malicious.
var benignResults = map[string]struct{}{
	"":        {},
	"clean":   {},
	"unrated": {},
	"none":    {},
}

// Result is the classified outcome of a VirusTotal scan.
type Result struct {
	Vendors   map[string][]string // verdict -> vendor names
	Malicious bool
}

// Scanner submits URLs for analysis and polls for completion.
type Scanner struct {
	APIKey  string
	Client  *http.Client
	Timeout time.Duration
}

// NewScanner builds a Scanner with sane HTTP defaults.
func NewScanner(apiKey string) *Scanner {
	return &Scanner{
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 30 * time.Second},
		Timeout: 5 * time.Minute,
	}
}

// ScanURL submits url for analysis and polls until VirusTotal reports the
// analysis complete or the scanner's Timeout elapses.
func (s *Scanner) ScanURL(ctx context.Context, target string) (Result, Failure) {
	if s.APIKey == "" {
		return Result{}, NewAPIKeyFailure("no VirusTotal API key configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	analysisID, fail := s.submit(ctx, target)
	if fail != nil {
		return Result{}, fail
	}
	return s.poll(ctx, analysisID)
}

func (s *Scanner) timeout() time.Duration {
	if s.Timeout <= 0 {
		return 5 * time.Minute
	}
	return s.Timeout
}

func (s *Scanner) submit(ctx context.Context, target string) (string, Failure) {
	form := strings.NewReader("url=" + target)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/urls", form)
	if err != nil {
		return "", NewValidationFailure(err.Error())
	}
	req.Header.Set("x-apikey", s.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", classifyNetworkErr(err)
	}
	defer resp.Body.Close()

	if fail := classifyStatus(resp.StatusCode); fail != nil {
		return "", fail
	}

	var body struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", NewAnalysisFailure(fmt.Sprintf("decoding submit response: %v", err))
	}
	if body.Data.ID == "" {
		return "", NewAnalysisFailure("no analysis id returned")
	}
	return body.Data.ID, nil
}

func (s *Scanner) poll(ctx context.Context, analysisID string) (Result, Failure) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		status, result, fail := s.fetchAnalysis(ctx, analysisID)
		if fail != nil {
			return Result{}, fail
		}
		if status == "completed" {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return Result{}, NewTimeoutFailure("analysis did not complete before timeout")
		case <-ticker.C:
		}
	}
}

func (s *Scanner) fetchAnalysis(ctx context.Context, analysisID string) (string, Result, Failure) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/analyses/"+analysisID, nil)
	if err != nil {
		return "", Result{}, NewValidationFailure(err.Error())
	}
	req.Header.Set("x-apikey", s.APIKey)

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", Result{}, classifyNetworkErr(err)
	}
	defer resp.Body.Close()

	if fail := classifyStatus(resp.StatusCode); fail != nil {
		return "", Result{}, fail
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Result{}, NewAnalysisFailure(fmt.Sprintf("reading analysis response: %v", err))
	}

	var body struct {
		Data struct {
			Attributes struct {
				Status  string                  `json:"status"`
				Results map[string]VendorVerdict `json:"results"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", Result{}, NewAnalysisFailure(fmt.Sprintf("decoding analysis response: %v", err))
	}

	attrs := body.Data.Attributes
	return attrs.Status, GroupVendorsByResult(attrs.Results), nil
}

// VendorVerdict is one AV engine's verdict within an analysis response.
type VendorVerdict struct {
	Category string `json:"category"`
	Result   string `json:"result"`
}

// GroupVendorsByResult groups per-vendor verdicts by their `result` string,
// the Go form of the original's get_vendors_by_result().
func GroupVendorsByResult(vendorResults map[string]VendorVerdict) Result {
	grouped := map[string][]string{}
	malicious := false
	for vendor, v := range vendorResults {
		key := strings.ToLower(v.Result)
		grouped[key] = append(grouped[key], vendor)
		if _, benign := benignResults[key]; !benign {
			malicious = true
		}
	}
	return Result{Vendors: grouped, Malicious: malicious}
}
