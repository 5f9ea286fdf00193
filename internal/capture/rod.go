package capture

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodDriver drives a headless Chromium instance via go-rod, recording every
// subrequest (including redirect chains, via Network domain events) into a
// Capture forest.
type RodDriver struct {
	// Headless forces headless mode; tests may set this false against a
	// visible browser for debugging, production always sets it true.
	Headless bool
}

// Capture navigates to target, waits for the page load event or MaxTime, and
// returns the resulting request forest plus a full-page screenshot.
func (d *RodDriver) Capture(ctx context.Context, target string, opts Options) (*Capture, error) {
	maxTime := time.Duration(opts.MaxTime) * time.Second
	if maxTime <= 0 {
		maxTime = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, maxTime)
	defer cancel()

	l := launcher.New().Headless(d.Headless)
	if opts.UserAgent != "" {
		l = l.Set("user-agent", opts.UserAgent)
	}
	if opts.ProxyURL != "" {
		l = l.Proxy(opts.ProxyURL)
	}
	launchURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}
	browser := rod.New().ControlURL(launchURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}
	defer browser.Close() //nolint:errcheck // best-effort cleanup

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("opening page: %w", err)
	}
	defer page.Close() //nolint:errcheck

	nodes := map[string]*Node{}
	var order []string
	requestURL := map[proto.NetworkRequestID]string{}
	recordResponse := func(e *proto.NetworkResponseReceived) {
		u := e.Response.URL
		requestURL[e.RequestID] = u
		if _, exists := nodes[u]; exists {
			return
		}
		referer := e.Response.RequestHeaders["Referer"]
		n := &Node{
			URL:           u,
			Referer:       referer,
			ContentLength: int64(e.Response.EncodedDataLength),
			Status:        e.Response.Status,
			IsRedirect:    e.Response.Status >= 300 && e.Response.Status < 400,
		}
		nodes[u] = n
		order = append(order, u)
	}

	// The response-received event carries headers and the wire size, not
	// the body. The body is only available once loading finishes, fetched
	// separately via Network.getResponseBody and hashed/measured here so
	// the defacement differ sees the actual content, not the transfer size.
	recordBody := func(e *proto.NetworkLoadingFinished) {
		u, ok := requestURL[e.RequestID]
		if !ok {
			return
		}
		n, ok := nodes[u]
		if !ok {
			return
		}
		body, err := proto.NetworkGetResponseBody{RequestID: e.RequestID}.Call(page)
		if err != nil {
			return
		}
		raw := []byte(body.Body)
		if body.Base64Encoded {
			if decoded, decErr := base64.StdEncoding.DecodeString(body.Body); decErr == nil {
				raw = decoded
			}
		}
		n.Size = int64(len(raw))
		sum := sha256.Sum256(raw)
		n.SHA256 = hex.EncodeToString(sum[:])
	}

	stopEvents := page.EachEvent(recordResponse, recordBody)
	defer stopEvents()

	if err := page.Context(ctx).Navigate(target); err != nil {
		return nil, fmt.Errorf("navigating to %s: %w", target, err)
	}
	if err := page.Context(ctx).WaitLoad(); err != nil {
		return nil, fmt.Errorf("waiting for page load: %w", err)
	}

	title, _ := page.Info()
	finalURL := target
	if info, err := page.Info(); err == nil {
		finalURL = info.URL
	}

	var screenshot []byte
	if img, err := page.Screenshot(true, nil); err == nil {
		screenshot = img
	}

	roots := buildForest(nodes, order)

	cap := &Capture{
		Roots:             roots,
		LastRedirectedURL: finalURL,
		Screenshot:        screenshot,
	}
	if title != nil {
		cap.Title = title.Title
	}
	return cap, nil
}

// buildForest links nodes by redirect chain (a redirecting response's
// target becomes a child of the redirector) and falls back to Referer
// when no redirect relationship applies. Nodes with neither are roots.
func buildForest(nodes map[string]*Node, order []string) []*Node {
	childOf := map[string]string{} // child url -> parent url
	for i := 1; i < len(order); i++ {
		prev, cur := nodes[order[i-1]], nodes[order[i]]
		if prev.IsRedirect {
			childOf[cur.URL] = prev.URL
			continue
		}
		if cur.Referer != "" {
			if _, ok := nodes[cur.Referer]; ok {
				childOf[cur.URL] = cur.Referer
			}
		}
	}

	var roots []*Node
	for _, u := range order {
		n := nodes[u]
		parent, hasParent := childOf[u]
		if !hasParent {
			roots = append(roots, n)
			continue
		}
		if p, ok := nodes[parent]; ok {
			p.Children = append(p.Children, n)
		} else {
			roots = append(roots, n)
		}
	}
	return roots
}
