package item

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	controlChars    = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f]`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
	punctuationRuns = regexp.MustCompile(`[!?.]{3,}`)
	scriptBlocks    = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleBlocks     = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	htmlTags        = regexp.MustCompile(`<[^>]+>`)
	quoteReplacer   = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")
	htmlEntities    = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	)
)

// Normalize reduces text to the canonical form that is hashed and stored.
// Identical canonical forms always produce the same content hash.
func Normalize(text string) string {
	text = controlChars.ReplaceAllString(text, "")
	text = whitespaceRuns.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	text = punctuationRuns.ReplaceAllString(text, "...")
	return quoteReplacer.Replace(text)
}

// ExtractPlainText strips markup from an HTML document and normalizes the rest.
func ExtractPlainText(html string) string {
	text := scriptBlocks.ReplaceAllString(html, "")
	text = styleBlocks.ReplaceAllString(text, "")
	text = htmlTags.ReplaceAllString(text, "")
	return Normalize(htmlEntities.Replace(text))
}

// ContentHash returns the hex encoded sha256 of the payload.
func ContentHash(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
