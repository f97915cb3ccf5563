package bela

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// TierName is a parsed tier label of the form "Person (Class)", e.g.
// "Mary (Utterance)" or "Baby Ben (Language Note)".
type TierName struct {
	// Person is the participant display name.
	Person string `json:"person"`

	// Class is the tier class, e.g. "Utterance", "Chunk", "Language",
	// "Translation", "Comment".
	Class string `json:"class"`
}

// Tier class names used by the convention.
const (
	ClassUtterance   = "Utterance"
	ClassChunk       = "Chunk"
	ClassLanguage    = "Language"
	ClassTranslation = "Translation"
	ClassComment     = "Comment"
	ClassTranscriber = "Transcriber"
)

// tierNameGrammar is the participle grammar for BELA tier labels.
// Examples: "Mary (Utterance)", "Baby Ben (Language Note)"
//
//nolint:govet // participle grammar tags are not standard struct tags
type tierNameGrammar struct {
	Person []string `parser:"@Word+"`
	Class  []string `parser:"'(' @Word+ ')'"`
}

var tierNameLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Word", Pattern: `[\p{L}\p{N}'._\-]+`},
	{Name: "Punct", Pattern: `[()]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var tierNameParser = participle.MustBuild[tierNameGrammar](
	participle.Lexer(tierNameLexer),
	participle.Elide("Whitespace"),
)

// ParseTierName parses a tier label into its person and class parts.
// Multi-word names and classes are normalized to single-space separation.
func ParseTierName(s string) (*TierName, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty tier name")
	}

	parsed, err := tierNameParser.ParseString("", s)
	if err != nil {
		return nil, fmt.Errorf("invalid tier name: %q: %w", s, err)
	}

	return &TierName{
		Person: strings.Join(parsed.Person, " "),
		Class:  strings.Join(parsed.Class, " "),
	}, nil
}

// String returns the canonical "Person (Class)" form.
func (tn *TierName) String() string {
	return tn.Person + " (" + tn.Class + ")"
}

// IsClass reports whether the tier class matches the given class name,
// ignoring trailing qualifier words such as "Language Note".
func (tn *TierName) IsClass(class string) bool {
	return tn.Class == class || strings.HasPrefix(tn.Class, class+" ")
}
