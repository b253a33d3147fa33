// Package unicode detects character-level smuggling in prompt text:
// invisible codepoints, bidirectional overrides, tag characters and
// homoglyphs that can hide instructions from reviewers while remaining
// visible to the model.
package unicode

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Threat is one suspicious codepoint found in the input.
type Threat struct {
	Category    string // "zero-width", "bidi-override", "tag-char", "control-char", "homoglyph-*", "invalid-utf8"
	Description string
	Position    int    // byte offset in the input
	Codepoint   string // e.g. "U+200B"
	Severity    string // "block" or "audit"
}

// ScanResult is the outcome of scanning one prompt.
type ScanResult struct {
	Clean   bool
	Threats []Threat
	// Sanitized is the input with blocking characters removed.
	Sanitized string
	// RawHex lists non-ASCII codepoints for the audit trail.
	RawHex string
}

// Blocking reports whether any threat warrants rejection rather than just
// an audit note.
func (r ScanResult) Blocking() bool {
	for _, t := range r.Threats {
		if t.Severity == "block" {
			return true
		}
	}
	return false
}

// BlockReason returns the description of the first blocking threat.
func (r ScanResult) BlockReason() string {
	if t, ok := r.FirstBlocking(); ok {
		return t.Description
	}
	return ""
}

// FirstBlocking returns the first threat with block severity. Audit-only
// threats earlier in the input do not shadow it.
func (r ScanResult) FirstBlocking() (Threat, bool) {
	for _, t := range r.Threats {
		if t.Severity == "block" {
			return t, true
		}
	}
	return Threat{}, false
}

// Scan inspects prompt text for smuggling indicators. Invisible and
// directional characters block; homoglyphs are audit-only since non-Latin
// text is legitimate in analysis prompts.
func Scan(input string) ScanResult {
	result := ScanResult{Clean: true}
	var sanitized strings.Builder
	var hexParts []string

	i := 0
	for i < len(input) {
		r, size := utf8.DecodeRuneInString(input[i:])

		if r == utf8.RuneError && size == 1 {
			result.Clean = false
			result.Threats = append(result.Threats, Threat{
				Category:    "invalid-utf8",
				Description: "invalid UTF-8 byte sequence",
				Position:    i,
				Codepoint:   fmt.Sprintf("0x%02X", input[i]),
				Severity:    "block",
			})
			hexParts = append(hexParts, fmt.Sprintf("%02X", input[i]))
			i++
			continue
		}

		if threat, found := classifyRune(r, i); found {
			result.Clean = false
			result.Threats = append(result.Threats, threat)
			hexParts = append(hexParts, fmt.Sprintf("U+%04X", r))
			// Audit-only characters survive sanitization; blocking ones
			// are dropped.
			if threat.Severity != "block" {
				sanitized.WriteRune(r)
			}
			i += size
			continue
		}

		if r > 127 {
			hexParts = append(hexParts, fmt.Sprintf("U+%04X", r))
		}

		sanitized.WriteRune(r)
		i += size
	}

	result.Sanitized = sanitized.String()
	if len(hexParts) > 0 {
		result.RawHex = strings.Join(hexParts, " ")
	}
	return result
}

func classifyRune(r rune, pos int) (Threat, bool) {
	cp := fmt.Sprintf("U+%04X", r)

	if isZeroWidth(r) {
		return Threat{
			Category:    "zero-width",
			Description: fmt.Sprintf("zero-width character %s can hide prompt content from display", cp),
			Position:    pos,
			Codepoint:   cp,
			Severity:    "block",
		}, true
	}

	if isBidiOverride(r) {
		return Threat{
			Category:    "bidi-override",
			Description: fmt.Sprintf("bidirectional override %s can make displayed text differ from submitted text", cp),
			Position:    pos,
			Codepoint:   cp,
			Severity:    "block",
		}, true
	}

	// Unicode tag characters (U+E0001–U+E007F) carry invisible payloads.
	if r >= 0xE0001 && r <= 0xE007F {
		return Threat{
			Category:    "tag-char",
			Description: fmt.Sprintf("tag character %s can smuggle hidden instructions into a prompt", cp),
			Position:    pos,
			Codepoint:   cp,
			Severity:    "block",
		}, true
	}

	if isUnsafeControl(r) {
		return Threat{
			Category:    "control-char",
			Description: fmt.Sprintf("control character %s should not appear in a prompt", cp),
			Position:    pos,
			Codepoint:   cp,
			Severity:    "block",
		}, true
	}

	if cat, desc := checkHomoglyph(r); cat != "" {
		return Threat{
			Category:    cat,
			Description: desc,
			Position:    pos,
			Codepoint:   cp,
			Severity:    "audit",
		}, true
	}

	return Threat{}, false
}

func isZeroWidth(r rune) bool {
	switch r {
	case '\u200B', // ZERO WIDTH SPACE
		'\u200C', // ZERO WIDTH NON-JOINER
		'\u200D', // ZERO WIDTH JOINER
		'\uFEFF', // ZERO WIDTH NO-BREAK SPACE (BOM)
		'\u2060', // WORD JOINER
		'\u180E', // MONGOLIAN VOWEL SEPARATOR
		'\u200E', // LEFT-TO-RIGHT MARK
		'\u200F': // RIGHT-TO-LEFT MARK
		return true
	}
	return false
}

func isBidiOverride(r rune) bool {
	switch r {
	case '\u202A', // LEFT-TO-RIGHT EMBEDDING
		'\u202B', // RIGHT-TO-LEFT EMBEDDING
		'\u202C', // POP DIRECTIONAL FORMATTING
		'\u202D', // LEFT-TO-RIGHT OVERRIDE
		'\u202E', // RIGHT-TO-LEFT OVERRIDE
		'\u2066', // LEFT-TO-RIGHT ISOLATE
		'\u2067', // RIGHT-TO-LEFT ISOLATE
		'\u2068', // FIRST STRONG ISOLATE
		'\u2069': // POP DIRECTIONAL ISOLATE
		return true
	}
	return false
}

func isUnsafeControl(r rune) bool {
	// Tab, newline and carriage return are fine in multi-line prompts.
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	if r <= 0x1F {
		return true
	}
	if r == 0x7F {
		return true
	}
	// C1 controls
	if r >= 0x80 && r <= 0x9F {
		return true
	}
	return false
}

// checkHomoglyph flags characters from non-Latin scripts that visually
// resemble Latin letters, which can disguise trigger phrases from the
// pattern classifier.
func checkHomoglyph(r rune) (category string, description string) {
	cp := fmt.Sprintf("U+%04X", r)

	if unicode.Is(unicode.Cyrillic, r) {
		if confusable, ok := cyrillicHomoglyphs[r]; ok {
			return "homoglyph-cyrillic",
				fmt.Sprintf("Cyrillic %s looks like Latin '%c'", cp, confusable)
		}
	}

	if unicode.Is(unicode.Greek, r) {
		if confusable, ok := greekHomoglyphs[r]; ok {
			return "homoglyph-greek",
				fmt.Sprintf("Greek %s looks like Latin '%c'", cp, confusable)
		}
	}

	return "", ""
}

// Visually confusable with Latin letters.
var cyrillicHomoglyphs = map[rune]rune{
	'а': 'a',
	'А': 'A',
	'В': 'B',
	'с': 'c',
	'С': 'C',
	'е': 'e',
	'Е': 'E',
	'Н': 'H',
	'і': 'i',
	'І': 'I',
	'К': 'K',
	'М': 'M',
	'о': 'o',
	'О': 'O',
	'р': 'p',
	'Р': 'P',
	'Т': 'T',
	'х': 'x',
	'Х': 'X',
	'у': 'y',
	'У': 'Y',
}

var greekHomoglyphs = map[rune]rune{
	'Α': 'A',
	'Β': 'B',
	'Ε': 'E',
	'Η': 'H',
	'Ι': 'I',
	'Κ': 'K',
	'Μ': 'M',
	'Ν': 'N',
	'Ο': 'O',
	'ο': 'o',
	'Ρ': 'P',
	'Τ': 'T',
	'Χ': 'X',
	'Υ': 'Y',
	'Ζ': 'Z',
}
