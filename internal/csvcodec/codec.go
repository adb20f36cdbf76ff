// Package csvcodec makes free text safe to drop into a comma-delimited
// field. Commas become a placeholder, typographic quotes become straight
// ones and, optionally, newlines become spaces.
//
// The placeholder itself must never occur in the input; text that already
// contains it decodes to extra commas.
package csvcodec

import "strings"

// DefaultPlaceholder is the comma stand-in used when none is configured.
const DefaultPlaceholder = "<INSERT_COMMA>"

var quoteReplacer = strings.NewReplacer(
	"“", `"`, // left double quotation mark
	"”", `"`, // right double quotation mark
	"’", "'", // right single quotation mark
	"‘", "'", // left single quotation mark
)

var newlineReplacer = strings.NewReplacer("\r\n", " ", "\n", " ")

// Codec encodes and decodes with a fixed placeholder.
type Codec struct {
	placeholder string
}

// New creates a Codec. An empty placeholder selects DefaultPlaceholder.
func New(placeholder string) Codec {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	return Codec{placeholder: placeholder}
}

func (c Codec) Placeholder() string {
	return c.placeholder
}

// Normalize collapses newlines (when stripNewlines is set) and straightens
// quotes. It leaves commas alone and is idempotent.
func Normalize(s string, stripNewlines bool) string {
	if stripNewlines {
		s = newlineReplacer.Replace(s)
	}
	return quoteReplacer.Replace(s)
}

// Encode normalizes s with newlines stripped, then escapes its commas.
func (c Codec) Encode(s string) string {
	return c.encode(s, true)
}

// EncodeKeepNewlines is Encode without newline collapsing.
func (c Codec) EncodeKeepNewlines(s string) string {
	return c.encode(s, false)
}

func (c Codec) encode(s string, stripNewlines bool) string {
	return strings.ReplaceAll(Normalize(s, stripNewlines), ",", c.placeholder)
}

// Decode turns every placeholder back into a comma.
func (c Codec) Decode(s string) string {
	return strings.ReplaceAll(s, c.placeholder, ",")
}
