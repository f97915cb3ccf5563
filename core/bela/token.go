package bela

import (
	"regexp"
	"strings"

	"github.com/blip-corpus/bela/core/errors"
)

// Question marks (plain, fullwidth, Arabic) split as token boundaries;
// the plain and ideographic spaces separate tokens.
var pretokenPattern = regexp.MustCompile(`[^ \t\r\n?　？؟]+|[?？؟]`)

var (
	ellipsisPattern  = regexp.MustCompile(`(\.{2,})$`)
	innerStopPattern = regexp.MustCompile(`\.+[^$.?]+$`)
	vocalLabel       = regexp.MustCompile(`^[a-z0-9_]+$`)
)

// Character classes rejected inside annotation text. Mandarin permits
// fullwidth punctuation but not halfwidth parentheses; other named
// languages are the opposite.
var (
	invalidAnyLang  = regexp.MustCompile("[{}\\[\\]\r\n\t,ɡʔʲ‘’]")
	invalidDefault  = regexp.MustCompile("[{}\\[\\]\r\n\t,ɡʔʲ‘’，。？（）！　]")
	invalidMandarin = regexp.MustCompile(`[{}\[\]` + "\r\n\t" + `,ɡʔʲ‘’()]`)
)

var punctuationTokens = func() map[string]bool {
	m := map[string]bool{"``": true, "''": true, "...": true}
	for _, r := range "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~ ，。？（）！؟" {
		m[string(r)] = true
	}
	return m
}()

// IsMarkupToken reports whether a token uses convention markup and must
// go through the token grammar before counting as words.
func IsMarkupToken(t string) bool {
	return strings.ContainsAny(t, "<:/#=")
}

// ExpandPlaceholders expands the `+` space placeholder into real spaces
// and collapses the result to single-space separation. Applying it to
// already-expanded text is a no-op.
func ExpandPlaceholders(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "+", " ")), " ")
}

// FindInvalidCharacters returns the characters in text that the
// convention forbids for the given language. An empty language applies
// the least strict class.
func FindInvalidCharacters(text, language string) []string {
	switch language {
	case "":
		return invalidAnyLang.FindAllString(text, -1)
	case "Mandarin":
		return invalidMandarin.FindAllString(text, -1)
	default:
		return invalidDefault.FindAllString(text, -1)
	}
}

// Decoder applies one convention version's token grammar to annotation
// text. A Decoder is stateless and safe for concurrent use.
type Decoder struct {
	rules *Rules

	// WordOnly substitutes vocalization codes with the NonWord
	// placeholder instead of keeping their literal markup form.
	WordOnly bool

	// NonWord is the substitute emitted for vocalizations in
	// word-only mode.
	NonWord string
}

// NewDecoder returns a decoder for the given rule table.
func NewDecoder(rules *Rules) *Decoder {
	if rules == nil {
		rules = RulesFor(Bela2, nil)
	}
	return &Decoder{rules: rules, NonWord: rules.NonWord}
}

// Rules returns the rule table the decoder was built with.
func (d *Decoder) Rules() *Rules {
	return d.rules
}

// tokenList accumulates decoded tokens, stripping the guessed-word and
// truncation markers and dropping empties.
type tokenList struct {
	tokens []string
}

func (tl *tokenList) append(token string) {
	token = strings.TrimPrefix(token, "=")
	token = strings.TrimSuffix(token, "~")
	if token != "" {
		tl.tokens = append(tl.tokens, token)
	}
}

func (tl *tokenList) extend(tokens []string) {
	for _, t := range tokens {
		tl.append(t)
	}
}

// appendWords appends a plain token, expanding the `+` space
// placeholder into separate words.
func (tl *tokenList) appendWords(token string) {
	for _, w := range strings.Split(token, "+") {
		tl.append(w)
	}
}

func (tl *tokenList) removePunctuation() []string {
	out := tl.tokens[:0]
	for _, t := range tl.tokens {
		if !punctuationTokens[t] {
			out = append(out, t)
		}
	}
	return out
}

// Tokenize splits annotation text into plain tokens under the active
// grammar. Grammar violations are returned as TokenError values; the
// token stream continues past each of them.
func (d *Decoder) Tokenize(text, language string) ([]string, []error) {
	if !d.rules.ValidateTokens {
		// Legacy convention: placeholder expansion and whitespace
		// split only, no grammar.
		tl := &tokenList{}
		for _, t := range strings.Fields(strings.ReplaceAll(text, "+", " ")) {
			tl.append(t)
		}
		return tl.removePunctuation(), nil
	}

	var problems []error
	tl := &tokenList{}
	for _, token := range pretokenPattern.FindAllString(text, -1) {
		switch {
		case IsMarkupToken(token):
			pieces, err := d.processToken(token, false)
			if err != nil {
				problems = append(problems, err)
				continue
			}
			if len(pieces) == 0 {
				problems = append(problems, errors.NewToken(token, "Invalid token"))
				continue
			}
			tl.extend(pieces)
		case strings.HasSuffix(token, "~"):
			tl.appendWords(strings.TrimSuffix(token, "~"))
		case strings.Contains(token, "~"):
			problems = append(problems, errors.NewToken(token, "Tildes can only be placed at the end of a token"))
			tl.appendWords(token)
		case token == "...":
			problems = append(problems, errors.NewToken(token, "Ellipsis markers (...) must not follow empty space"))
		case ellipsisPattern.MatchString(token) && strings.Trim(token, ".") == "":
			problems = append(problems, errors.NewToken(token, "Unknown dots"))
		default:
			if innerStopPattern.MatchString(token) {
				problems = append(problems, errors.NewToken(token, "Invalid punctuation"))
			}
			if m := ellipsisPattern.FindStringSubmatch(token); m != nil {
				if len(m[1]) != 3 {
					problems = append(problems, errors.NewToken(token, "Ellipses are denoted by exactly 3 full stops"))
					tl.appendWords(token)
				} else {
					tl.appendWords(strings.TrimSuffix(token, "..."))
				}
			} else {
				tl.appendWords(token)
			}
		}
	}
	return tl.removePunctuation(), problems
}

// DecodeText expands convention markup in annotation text back into
// plain space-separated words.
func (d *Decoder) DecodeText(text, language string) (string, []error) {
	tokens, problems := d.Tokenize(text, language)
	return strings.Join(tokens, " "), problems
}

// CheckToken validates one markup token against the grammar without
// emitting its pieces.
func (d *Decoder) CheckToken(token string) error {
	pieces, err := d.processToken(token, false)
	if err != nil {
		return err
	}
	if len(pieces) == 0 {
		return errors.NewToken(token, "Invalid token")
	}
	return nil
}

// processToken expands one markup token into its word pieces. mimicked
// is set when re-entered from inside a mimic marker.
func (d *Decoder) processToken(token string, mimicked bool) ([]string, error) {
	var res []string
	if mimicked && !d.WordOnly {
		res = append(res, ":m")
	}
	token = strings.TrimSpace(token)
	switch {
	case strings.HasPrefix(token, ":"):
		parts := splitNonEmpty(token, ":")
		if len(parts) == 0 {
			return nil, errors.NewToken(token, "Token text is blank")
		}
		switch {
		case parts[0] == "v":
			switch len(parts) {
			case 2:
				if !d.rules.ref.IsVocalSound(parts[1]) {
					return nil, errors.NewToken(token, "Invalid vocal sounds tag")
				}
				res = append(res, d.vocalPiece(token))
			case 3:
				switch {
				case d.rules.ref.IsVocalGroup(parts[1]):
					if !d.WordOnly {
						res = append(res, ":v:"+parts[1]+":")
					}
					res = append(res, strings.Split(parts[2], "+")...)
				case parts[1] == "l":
					if !vocalLabel.MatchString(parts[2]) {
						return nil, errors.NewToken(token, "Labelled vocal sound token contains invalid character(s)")
					}
					res = append(res, d.vocalPiece(token))
				default:
					return nil, errors.NewToken(token, "Invalid unclassifiable vocal sound token")
				}
			default:
				return nil, errors.NewToken(token, "Invalid vocal sounds tag")
			}
		case parts[0] == "m":
			if mimicked {
				return nil, errors.NewToken(token, "Recursive mimicking is not allowed")
			}
			if len(parts) == 2 {
				if !d.WordOnly {
					res = append(res, ":m")
				}
				res = append(res, strings.Split(parts[1], "+")...)
			} else {
				rest := token[strings.Index(token, ":m")+2:]
				return d.processToken(rest, true)
			}
		case len(parts) == 2:
			switch parts[0] {
			case "s":
				if !d.rules.ref.IsNonVocalSound(parts[1]) {
					return nil, errors.NewToken(token, "Invalid non vocal sound, closed class token")
				}
				if d.WordOnly {
					res = append(res, d.NonWord)
				} else {
					res = append(res, ":s:"+parts[1]+":")
				}
			case "si":
				if !d.WordOnly {
					res = append(res, ":si")
				}
				res = append(res, strings.Split(parts[1], "+")...)
			case "d":
				if !d.WordOnly {
					res = append(res, ":d")
				}
				res = append(res, parts[1])
			}
		case len(parts) == 3 && parts[0] == "l":
			if !d.WordOnly {
				res = append(res, ":l:"+parts[1])
			}
			res = append(res, strings.Split(parts[2], "+")...)
		}
	case strings.HasPrefix(token, "="):
		if !d.WordOnly {
			res = append(res, "=")
		}
		res = append(res, strings.TrimSpace(token[1:]))
	case token == "##" || token == "###":
		if d.WordOnly {
			res = append(res, d.NonWord)
		} else {
			res = append(res, token)
		}
	case strings.Contains(token, "="):
		res = append(res, strings.Split(token, "=")...)
	}
	return res, nil
}

// vocalPiece is the emitted form of a self-contained vocalization token.
func (d *Decoder) vocalPiece(token string) string {
	if d.WordOnly {
		return d.NonWord
	}
	return token
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
