package bela

import (
	"strings"

	"github.com/blip-corpus/bela/core/errors"
	"github.com/blip-corpus/bela/internal/refdata"
)

// VersionProperty is the document header property carrying the
// convention version marker.
const VersionProperty = "belaVersion"

// TranscriberCode is the pseudo-participant code attributed to
// transcriber activity tiers.
const TranscriberCode = ":transcriber:"

// DefaultTurnThreshold is the maximum gap in milliseconds between two
// utterances still counted as one conversational turn exchange.
const DefaultTurnThreshold int64 = 1500

// Rules is the immutable per-version behaviour table. Callers obtain
// one from RulesFor and must not mutate it.
type Rules struct {
	// Version is the convention this table implements.
	Version Version

	// ValidateTokens enables the full token grammar. The legacy
	// convention predates the grammar and splits on whitespace only.
	ValidateTokens bool

	// NonWord substitutes for vocalization codes when tokenizing in
	// word-only mode.
	NonWord string

	// TurnThreshold is the turn-taking gap limit in milliseconds.
	TurnThreshold int64

	// SpecialTiers maps tier IDs handled outside the person naming
	// scheme to their pseudo-participant code.
	SpecialTiers map[string]string

	ref *refdata.Set
}

// RulesFor returns the rule table for a convention version. A nil
// reference set selects the embedded default.
func RulesFor(v Version, ref *refdata.Set) *Rules {
	if ref == nil {
		ref = refdata.Default()
	}
	r := &Rules{
		Version:       v,
		NonWord:       "XbeepX",
		TurnThreshold: DefaultTurnThreshold,
		SpecialTiers:  map[string]string{"ActivityMarkers": TranscriberCode},
		ref:           ref,
	}
	switch v {
	case Bela1:
		r.ValidateTokens = false
	default:
		r.ValidateTokens = true
	}
	return r
}

// Ref returns the reference data set backing this rule table.
func (r *Rules) Ref() *refdata.Set {
	return r.ref
}

// ParseVersion resolves a document version marker. An absent marker
// selects the current convention; the legacy marker selects Bela1; any
// other value is a fatal version error.
func ParseVersion(marker, path string) (Version, error) {
	switch marker {
	case "":
		return Bela2, nil
	case string(Bela1):
		return Bela1, nil
	case string(Bela2):
		return Bela2, nil
	}
	return "", errors.NewVersion(marker, path)
}

// RoleFor derives a participant role from its code and display name.
func (r *Rules) RoleFor(code, name string) Role {
	if code == TranscriberCode {
		return RoleTranscriber
	}
	lower := strings.ToLower(name)
	if strings.Contains(lower, "baby") || strings.Contains(lower, "child") {
		return RoleChild
	}
	if code == "CHI" || strings.HasPrefix(code, "CHI") {
		return RoleChild
	}
	return RoleCaregiver
}
