package sitemap

import (
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/storecrawl/storemap/internal/util"
)

// ParseMode records which recovery tier produced a document.
type ParseMode int

const (
	// ModeStructured means the text parsed directly as well-formed XML.
	ModeStructured ParseMode = iota
	// ModeRepaired means parsing succeeded after truncating leading junk.
	ModeRepaired
	// ModeFallback means URLs were recovered by pattern matching alone.
	ModeFallback
)

func (m ParseMode) String() string {
	switch m {
	case ModeStructured:
		return "structured"
	case ModeRepaired:
		return "repaired"
	case ModeFallback:
		return "regex_fallback"
	default:
		return "unknown"
	}
}

// MarshalText lets the mode render as its name in JSON output.
func (m ParseMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Document is the outcome of parsing one sitemap payload. For an index,
// Entries holds child sitemap locations; for a urlset, page URLs.
type Document struct {
	Entries []string
	IsIndex bool
	Mode    ParseMode
}

type sitemapIndex struct {
	XMLName  xml.Name       `xml:"sitemapindex"`
	Sitemaps []sitemapEntry `xml:"sitemap"`
}

type sitemapEntry struct {
	Loc string `xml:"loc"`
}

type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	URLs    []urlEntry `xml:"url"`
}

type urlEntry struct {
	Loc string `xml:"loc"`
}

// ErrEmptyDocument is returned when there is no text for any tier to work on.
var ErrEmptyDocument = errors.New("empty sitemap document")

// locPattern matches plain and CDATA-wrapped loc values; wild feeds use both.
var locPattern = regexp.MustCompile(`<loc>\s*(?:<!\[CDATA\[\s*(.*?)\s*\]\]>|([^<]+?))\s*</loc>`)

// Parse extracts URLs from decoded sitemap text using a three-tier strategy:
// structured XML parsing, then a retry after truncating garbage that precedes
// the document, then raw pattern extraction of <loc> elements matching
// marker. Each tier runs only if the previous one failed; a tier that
// succeeds with zero entries still wins. The pattern tier never fails, so the
// only error case is input with no text at all.
func Parse(text, marker string) (*Document, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	doc, structuredErr := parseStructured(text)
	if structuredErr == nil {
		doc.Mode = ModeStructured
		return doc, nil
	}

	if repaired, ok := repairText(text); ok {
		doc, err := parseStructured(repaired)
		if err == nil {
			doc.Mode = ModeRepaired
			log.Debug().
				Int("discarded_bytes", len(text)-len(repaired)).
				Msg("Parsed sitemap after discarding leading junk")
			return doc, nil
		}
	}

	log.Debug().
		Err(structuredErr).
		Msg("Structured parsing failed, falling back to pattern extraction")

	return &Document{
		Entries: extractByPattern(text, marker),
		Mode:    ModeFallback,
	}, nil
}

// parseStructured attempts a strict parse of text as a sitemap index or a
// urlset. Content before the first "<" counts as a failure even though Go's
// decoder would skip it, because bytes before the prolog mean the feed is
// ill-formed and the repair tier should decide where the document starts.
func parseStructured(text string) (*Document, error) {
	trimmed := strings.TrimLeft(text, "\uFEFF \t\r\n")
	if !strings.HasPrefix(trimmed, "<") {
		return nil, fmt.Errorf("content before first element")
	}

	var index sitemapIndex
	indexErr := xml.Unmarshal([]byte(trimmed), &index)
	if indexErr == nil {
		entries := make([]string, 0, len(index.Sitemaps))
		for _, entry := range index.Sitemaps {
			if loc := cleanLoc(entry.Loc); loc != "" {
				entries = append(entries, loc)
			}
		}
		return &Document{Entries: entries, IsIndex: true}, nil
	}

	var set urlSet
	setErr := xml.Unmarshal([]byte(trimmed), &set)
	if setErr == nil {
		entries := make([]string, 0, len(set.URLs))
		for _, entry := range set.URLs {
			if loc := cleanLoc(entry.Loc); loc != "" {
				entries = append(entries, loc)
			}
		}
		return &Document{Entries: entries}, nil
	}

	return nil, fmt.Errorf("not a sitemap index (%v) or urlset (%v)", indexErr, setErr)
}

// repairText truncates text so that it starts at the XML declaration closest
// before the outermost sitemap root element. When several declarations
// precede the root the last one wins, skipping decoy declarations embedded
// earlier in the stream. A document with no declaration is truncated at the
// root element itself. Returns false when no root element exists or
// truncation would change nothing.
func repairText(text string) (string, bool) {
	root := strings.Index(text, "<sitemapindex")
	if u := strings.Index(text, "<urlset"); u != -1 && (root == -1 || u < root) {
		root = u
	}
	if root == -1 {
		return "", false
	}

	start := root
	if decl := strings.LastIndex(text[:root], "<?xml"); decl != -1 {
		start = decl
	}
	if start == 0 {
		return "", false
	}
	return text[start:], true
}

// extractByPattern scans raw text for <loc> elements whose URL contains
// marker, ignoring sitemap structure entirely. Matches are kept in order of
// appearance and not deduplicated; that happens at the aggregate level.
func extractByPattern(text, marker string) []string {
	matches := locPattern.FindAllStringSubmatch(text, -1)
	entries := make([]string, 0, len(matches))
	for _, match := range matches {
		raw := match[1]
		if raw == "" {
			raw = match[2]
		}
		loc := cleanLoc(raw)
		if loc == "" {
			continue
		}
		if marker != "" && !strings.Contains(loc, marker) {
			continue
		}
		entries = append(entries, loc)
	}
	return entries
}

// cleanLoc trims a loc value and drops anything that is not an absolute URL.
func cleanLoc(loc string) string {
	loc = strings.TrimSpace(loc)
	if loc == "" {
		return ""
	}
	if !util.IsAbsoluteURL(loc) {
		log.Debug().Str("loc", loc).Msg("Skipping invalid URL from sitemap")
		return ""
	}
	return loc
}
