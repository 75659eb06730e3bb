// Package sourcemap loads and queries version 3 source maps, resolving
// generated (inspector wire) positions to original source positions and
// back, and serving original source content when the map embeds it.
//
// Any failure here — a malformed map, an unreachable external map file,
// a query against an unmapped position — is reported to the caller but
// never escalated into a session-level failure; a script simply behaves
// as if it has no source map.
package sourcemap

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	gosourcemap "github.com/go-sourcemap/sourcemap"
)

// dataURLPattern matches an inline base64-encoded source map data URL,
// e.g. "data:application/json;charset=utf-8;base64,eyJ2ZXJzaW9uIjoz...".
var dataURLPattern = regexp.MustCompile(`^data:application/json(?:;charset=[^;]+)?;base64,(.+)$`)

// Fetcher retrieves the bytes of a URL. It returns an empty slice, not
// an error, if the resource cannot be reached — the engine treats a
// missing map as absent, not as a hard failure.
type Fetcher func(rawURL string) []byte

// DefaultFetcher dispatches to a local file read or an HTTP GET
// depending on the URL scheme.
func DefaultFetcher(rawURL string) []byte {
	u, err := url.Parse(rawURL)
	if err != nil {
		log.Printf("sourcemap: cannot parse url %q: %v", rawURL, err)
		return nil
	}

	switch u.Scheme {
	case "file", "":
		data, err := os.ReadFile(u.Path)
		if err != nil {
			log.Printf("sourcemap: cannot read local file %q: %v", u.Path, err)
			return nil
		}
		return data
	case "http", "https":
		resp, err := http.Get(rawURL)
		if err != nil {
			log.Printf("sourcemap: cannot fetch %q: %v", rawURL, err)
			return nil
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			log.Printf("sourcemap: fetching %q returned status %d", rawURL, resp.StatusCode)
			return nil
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			log.Printf("sourcemap: reading body of %q: %v", rawURL, err)
			return nil
		}
		return data
	default:
		log.Printf("sourcemap: unsupported url scheme %q", u.Scheme)
		return nil
	}
}

// rawV3Map is the subset of the version 3 source map document accessed
// directly rather than through the consumer library, because the
// library's public API does not expose it.
type rawV3Map struct {
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent"`
}

// Engine resolves one script's source map. It is not safe for
// concurrent use; callers hold it behind the owning session's mutex.
type Engine struct {
	consumer *gosourcemap.Consumer
	raw      rawV3Map
	loaded   bool
}

// Load resolves scriptURL's source map, which is either declared inline
// via a data URL or reachable at sourceMapURL relative to scriptURL.
// A failure to load leaves the engine in its zero, "no map" state.
func Load(scriptURL, sourceMapURL string, fetch Fetcher) *Engine {
	e := &Engine{}

	// mapURL is the base the consumer resolves source paths against; an
	// inline map has none, so its sources are reported as declared.
	mapURL := sourceMapURL
	var data []byte
	if m := dataURLPattern.FindStringSubmatch(sourceMapURL); m != nil {
		decoded, err := base64.StdEncoding.DecodeString(m[1])
		if err != nil {
			log.Printf("sourcemap: bad inline data url for %q: %v", scriptURL, err)
			return e
		}
		data = decoded
		mapURL = ""
	} else {
		resolved, err := resolveRelative(scriptURL, sourceMapURL)
		if err != nil {
			log.Printf("sourcemap: cannot resolve map url for %q: %v", scriptURL, err)
			return e
		}
		data = fetch(resolved)
	}

	if len(data) == 0 {
		return e
	}

	consumer, err := gosourcemap.Parse(mapURL, data)
	if err != nil {
		log.Printf("sourcemap: cannot parse map for %q: %v", scriptURL, err)
		return e
	}

	var raw rawV3Map
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Printf("sourcemap: cannot parse raw map fields for %q: %v", scriptURL, err)
		return e
	}

	e.consumer = consumer
	e.raw = raw
	e.loaded = true
	return e
}

func resolveRelative(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

// Loaded reports whether a usable source map was found.
func (e *Engine) Loaded() bool {
	return e != nil && e.loaded
}

// Original resolves a generated position to its original position. Both
// use the source map's own numbering: lines 1-based, columns 0-based.
// Callers holding a 0-based inspector wire line convert it first (see
// internal/session's toSourceMapLine). ok is false if the map has no
// mapping for that position.
func (e *Engine) Original(genLine, genColumn int) (source string, line, column int, ok bool) {
	if !e.Loaded() {
		return "", 0, 0, false
	}
	source, _, line, column, ok = e.consumer.Source(genLine, genColumn)
	return source, line, column, ok
}

// Generated resolves an original source position back to a generated
// position, both with 1-based lines and 0-based columns, the source
// map's own numbering. The consumer library has no reverse
// index, so this walks the map's own coordinate space by probing
// forward until it finds a generated position whose original position
// matches; it is a best-effort linear search bounded by lineLimit.
func (e *Engine) Generated(source string, origLine, origColumn, lineLimit int) (genLine, genColumn int, ok bool) {
	if !e.Loaded() {
		return 0, 0, false
	}
	for gl := 0; gl < lineLimit; gl++ {
		for gc := 0; gc < 200; gc++ {
			src, _, l, c, found := e.consumer.Source(gl, gc)
			if !found || src != source {
				continue
			}
			if l == origLine && c == origColumn {
				return gl, gc, true
			}
		}
	}
	return 0, 0, false
}

// Sources lists every original source path the map declares.
func (e *Engine) Sources() []string {
	if !e.Loaded() {
		return nil
	}
	return append([]string(nil), e.raw.Sources...)
}

// SourceContent returns the embedded content of the given original
// source path, if the map carries a sourcesContent entry for it.
func (e *Engine) SourceContent(source string) (string, bool) {
	if !e.Loaded() {
		return "", false
	}
	for i, s := range e.raw.Sources {
		if s != source && !strings.HasSuffix(s, "/"+source) {
			continue
		}
		if i < len(e.raw.SourcesContent) && e.raw.SourcesContent[i] != "" {
			return e.raw.SourcesContent[i], true
		}
	}
	return "", false
}

// ErrNoMap is returned by callers that require a loaded map and did not
// get one; the engine itself never returns it, per its swallow-and-log
// contract.
var ErrNoMap = fmt.Errorf("sourcemap: no source map loaded")
