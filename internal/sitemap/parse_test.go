package sitemap

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validURLSet = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<url><loc>https://example.test/trgovina/a</loc></url>
	<url><loc> https://example.test/trgovina/b </loc></url>
	<url><loc>https://example.test/other/c</loc></url>
</urlset>`

const validIndex = `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<sitemap><loc>https://example.test/sitemap-1.xml</loc></sitemap>
	<sitemap><loc>https://example.test/sitemap-2.xml</loc></sitemap>
</sitemapindex>`

func TestParseStructuredURLSet(t *testing.T) {
	doc, err := Parse(validURLSet, "")
	require.NoError(t, err)

	assert.False(t, doc.IsIndex)
	assert.Equal(t, ModeStructured, doc.Mode)
	assert.Equal(t, []string{
		"https://example.test/trgovina/a",
		"https://example.test/trgovina/b",
		"https://example.test/other/c",
	}, doc.Entries)
}

func TestParseStructuredIndex(t *testing.T) {
	doc, err := Parse(validIndex, "")
	require.NoError(t, err)

	assert.True(t, doc.IsIndex)
	assert.Equal(t, ModeStructured, doc.Mode)
	assert.Equal(t, []string{
		"https://example.test/sitemap-1.xml",
		"https://example.test/sitemap-2.xml",
	}, doc.Entries)
}

func TestParseEmptyURLSetIsStructured(t *testing.T) {
	// A valid document with zero entries wins at tier one; the fallback is
	// only for parse failures, never for empty results.
	doc, err := Parse(`<?xml version="1.0"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"></urlset>`, "/trgovina/")
	require.NoError(t, err)

	assert.Equal(t, ModeStructured, doc.Mode)
	assert.Empty(t, doc.Entries)
}

func TestParseByteOrderMarkPrefix(t *testing.T) {
	// A UTF-8 BOM before the declaration is tolerated at tier one; it is
	// encoding noise, not the kind of junk the repair tier exists for.
	doc, err := Parse("\uFEFF"+validURLSet, "")
	require.NoError(t, err)

	assert.Equal(t, ModeStructured, doc.Mode)
	assert.Len(t, doc.Entries, 3)
}

func TestParseRepairedGarbagePrefix(t *testing.T) {
	garbage := strings.Repeat("x", 50)
	doc, err := Parse(garbage+validURLSet, "")
	require.NoError(t, err)

	assert.Equal(t, ModeRepaired, doc.Mode)
	assert.Equal(t, []string{
		"https://example.test/trgovina/a",
		"https://example.test/trgovina/b",
		"https://example.test/other/c",
	}, doc.Entries)
}

func TestParseRepairedDecoyDeclarations(t *testing.T) {
	// Two decoy declarations buried in junk; the one closest before the root
	// element is the real document start.
	text := "\x00\x01<?xml version=\"1.0\"?>junk bytes<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n" +
		"<urlset xmlns=\"http://www.sitemaps.org/schemas/sitemap/0.9\">" +
		"<url><loc>https://example.test/trgovina/a</loc></url></urlset>"

	doc, err := Parse(text, "")
	require.NoError(t, err)

	assert.Equal(t, ModeRepaired, doc.Mode)
	assert.Equal(t, []string{"https://example.test/trgovina/a"}, doc.Entries)
}

func TestParseRepairedIndexWithGarbagePrefix(t *testing.T) {
	doc, err := Parse("garbage bytes here"+validIndex, "")
	require.NoError(t, err)

	assert.True(t, doc.IsIndex)
	assert.Equal(t, ModeRepaired, doc.Mode)
	assert.Len(t, doc.Entries, 2)
}

func TestParseRegexFallback(t *testing.T) {
	// No well-formed XML at all, just loc fragments floating in noise.
	text := `%%% broken feed %%%
	<loc>https://example.test/trgovina/A</loc> ???
	<loc>https://example.test/trgovina/B</loc>
	<loc>https://example.test/other/ignored</loc>
	<loc>https://example.test/trgovina/C</loc> <<<`

	doc, err := Parse(text, "/trgovina/")
	require.NoError(t, err)

	assert.Equal(t, ModeFallback, doc.Mode)
	assert.Equal(t, []string{
		"https://example.test/trgovina/A",
		"https://example.test/trgovina/B",
		"https://example.test/trgovina/C",
	}, doc.Entries)
}

func TestParseRegexFallbackCDATALocs(t *testing.T) {
	// CDATA-wrapped locs occur in wild feeds; the last-resort tier must
	// recover them alongside plain ones.
	text := `%%% broken feed %%%
	<loc><![CDATA[https://example.test/trgovina/A]]></loc>
	<loc><![CDATA[ https://example.test/trgovina/B ]]></loc>
	<loc>https://example.test/trgovina/C</loc>
	<loc><![CDATA[https://example.test/other/ignored]]></loc>`

	doc, err := Parse(text, "/trgovina/")
	require.NoError(t, err)

	assert.Equal(t, ModeFallback, doc.Mode)
	assert.Equal(t, []string{
		"https://example.test/trgovina/A",
		"https://example.test/trgovina/B",
		"https://example.test/trgovina/C",
	}, doc.Entries)
}

func TestParseRegexFallbackZeroMatches(t *testing.T) {
	// A corrupt feed with no matching entries is a valid outcome, not an
	// error.
	doc, err := Parse("totally corrupt, nothing extractable", "/trgovina/")
	require.NoError(t, err)

	assert.Equal(t, ModeFallback, doc.Mode)
	assert.Empty(t, doc.Entries)
}

func TestParseTruncatedDocument(t *testing.T) {
	truncated := `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<url><loc>https://example.test/trgovina/a</loc></url>
	<url><loc>https://example.test/trgovina/b</loc></ur`

	doc, err := Parse(truncated, "/trgovina/")
	require.NoError(t, err)

	// Repair cannot fix a missing tail, so pattern extraction takes over.
	assert.Equal(t, ModeFallback, doc.Mode)
	assert.Equal(t, []string{
		"https://example.test/trgovina/a",
		"https://example.test/trgovina/b",
	}, doc.Entries)
}

func TestParseSkipsRelativeLocs(t *testing.T) {
	text := `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
	<url><loc>/relative/path</loc></url>
	<url><loc>https://example.test/trgovina/a</loc></url>
</urlset>`

	doc, err := Parse(text, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.test/trgovina/a"}, doc.Entries)
}

func TestParseEmptyInput(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty_string", text: ""},
		{name: "whitespace_only", text: " \n\t "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text, "/trgovina/")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrEmptyDocument)
		})
	}
}

func TestParseModeString(t *testing.T) {
	assert.Equal(t, "structured", ModeStructured.String())
	assert.Equal(t, "repaired", ModeRepaired.String())
	assert.Equal(t, "regex_fallback", ModeFallback.String())
}
