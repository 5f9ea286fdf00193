// Package defacement compares two capture trees for structural and content
// drift, the Go counterpart of the original's TreeDiffer
// (original_source/backend/apps/cerb_scans/defacementCheck.py).
package defacement

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/webwatch/monitor/internal/capture"
)

// ChangeType enumerates the kinds of drift the differ can report.
type ChangeType string

const (
	ChangeAdded           ChangeType = "added"
	ChangeRemoved         ChangeType = "removed"
	ChangeMoved           ChangeType = "moved"
	ChangeContentChanged  ChangeType = "content_changed"
	ChangeStatusChanged   ChangeType = "status_changed"
	ChangeSizeChanged     ChangeType = "size_changed"
	ChangeTitleChanged    ChangeType = "title_changed"
	ChangeRedirectChanged ChangeType = "redirect_changed"
)

// Change records one unit of drift between a baseline and a new capture.
type Change struct {
	Type    ChangeType
	URL     string
	Old     string
	New     string
	Details string
	Path    string
}

// Options configures a diff run.
type Options struct {
	SizeTolerance int64
	Whitelist     map[string]struct{} // exact hostnames
	// ReportHashOnlyChanges enables the original's commented-out
	// hash-only-change branch: flag content drift at identical size when
	// the content hash differs. Off by default.
	ReportHashOnlyChanges bool
}

type indexedNode struct {
	node *capture.Node
	path string
}

// Diff compares baseline and current captures, returning changes ordered
// metadata-first, then structural (added/removed), then content.
func Diff(baseline, current *capture.Capture, opts Options) []Change {
	var changes []Change

	if baseline.Title != current.Title {
		changes = append(changes, Change{Type: ChangeTitleChanged, Old: baseline.Title, New: current.Title})
	}
	if baseline.LastRedirectedURL != current.LastRedirectedURL {
		changes = append(changes, Change{Type: ChangeRedirectChanged, Old: baseline.LastRedirectedURL, New: current.LastRedirectedURL})
	}

	baseIndex := indexTree(baseline.Roots)
	curIndex := indexTree(current.Roots)

	changes = append(changes, structuralDiff(baseline.Roots, current.Roots, baseIndex, curIndex, opts)...)

	return changes
}

// indexTree walks a forest depth-first, building {url -> node+path}.
func indexTree(roots []*capture.Node) map[string]indexedNode {
	idx := map[string]indexedNode{}
	var walk func(n *capture.Node, p string)
	walk = func(n *capture.Node, p string) {
		here := p
		if here == "" {
			here = n.URL
		} else {
			here = here + " > " + n.URL
		}
		idx[n.URL] = indexedNode{node: n, path: here}
		for _, c := range n.Children {
			walk(c, here)
		}
	}
	for _, r := range roots {
		walk(r, "")
	}
	return idx
}

// parentGroups groups every node by its normalized parent URL ("root" for
// top-level nodes).
func parentGroups(roots []*capture.Node) map[string]map[string]string {
	groups := map[string]map[string]string{} // normalizedParent -> {normalizedChildURL -> actualChildURL}
	var walk func(n *capture.Node, parentURL string)
	walk = func(n *capture.Node, parentURL string) {
		key := "root"
		if parentURL != "" {
			key = normalizeURL(parentURL)
		}
		if groups[key] == nil {
			groups[key] = map[string]string{}
		}
		groups[key][normalizeURL(n.URL)] = n.URL
		for _, c := range n.Children {
			walk(c, n.URL)
		}
	}
	for _, r := range roots {
		walk(r, "")
	}
	return groups
}

func structuralDiff(baseRoots, curRoots []*capture.Node, baseIdx, curIdx map[string]indexedNode, opts Options) []Change {
	baseGroups := parentGroups(baseRoots)
	curGroups := parentGroups(curRoots)

	parentKeys := map[string]struct{}{}
	for k := range baseGroups {
		parentKeys[k] = struct{}{}
	}
	for k := range curGroups {
		parentKeys[k] = struct{}{}
	}

	var changes []Change
	var contentChanges []Change

	for parentKey := range parentKeys {
		baseChildren := baseGroups[parentKey]
		curChildren := curGroups[parentKey]

		for normURL, actualURL := range curChildren {
			if _, existed := baseChildren[normURL]; !existed {
				if suppressed(actualURL, parentKey, opts) {
					continue
				}
				changes = append(changes, Change{Type: ChangeAdded, URL: actualURL, Path: curIdx[actualURL].path})
			}
		}
		for normURL, actualURL := range baseChildren {
			if _, stillExists := curChildren[normURL]; !stillExists {
				if suppressed(actualURL, parentKey, opts) {
					continue
				}
				changes = append(changes, Change{Type: ChangeRemoved, URL: actualURL, Path: baseIdx[actualURL].path})
			}
		}
		for normURL, baseURL := range baseChildren {
			curURL, common := curChildren[normURL]
			if !common {
				continue
			}
			contentChanges = append(contentChanges, contentDiff(baseIdx[baseURL].node, curIdx[curURL].node, curIdx[curURL].path, opts)...)
		}
	}

	return append(changes, contentChanges...)
}

// contentDiff compares two matched nodes for size/status drift, and
// optionally hash-only drift.
func contentDiff(base, cur *capture.Node, path string, opts Options) []Change {
	if suppressed(cur.URL, "", opts) {
		return nil
	}
	var changes []Change

	if abs(cur.Size-base.Size) > opts.SizeTolerance {
		changes = append(changes, Change{
			Type: ChangeSizeChanged, URL: cur.URL, Path: path,
			Details: fmt.Sprintf("size %d -> %d", base.Size, cur.Size),
		})
	} else if opts.ReportHashOnlyChanges && base.SHA256 != "" && cur.SHA256 != "" && base.SHA256 != cur.SHA256 {
		changes = append(changes, Change{
			Type: ChangeContentChanged, URL: cur.URL, Path: path,
			Details: "content hash changed at identical size",
		})
	}

	if base.Status != cur.Status && base.Status != -1 && cur.Status != -1 {
		changes = append(changes, Change{
			Type: ChangeStatusChanged, URL: cur.URL, Path: path,
			Old: fmt.Sprintf("%d", base.Status), New: fmt.Sprintf("%d", cur.Status),
		})
	}

	return changes
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

var fontExtensions = map[string]struct{}{
	".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {}, ".otf": {},
}

// suppressed applies the whitelist/font-file/ignorable-blob rules that
// keep routine third-party asset churn from being reported as drift.
func suppressed(rawURL, parentKey string, opts Options) bool {
	if strings.HasPrefix(rawURL, "blob:") {
		embedded := strings.TrimPrefix(rawURL, "blob:")
		if eu, err := url.Parse(embedded); err == nil && parentKey != "" {
			if pu, err := url.Parse(parentKey); err == nil && eu.Host == pu.Host {
				return true
			}
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if opts.Whitelist != nil {
		if _, ok := opts.Whitelist[u.Host]; ok {
			return true
		}
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if _, ok := fontExtensions[ext]; ok {
		return true
	}
	return false
}

// normalizeURL strips query and fragment so two URLs differing only in
// query string are treated as the same node.
func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
