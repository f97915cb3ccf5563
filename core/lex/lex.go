// Package lex accumulates token statistics over decoded transcript
// text and computes lexical-diversity metrics: per-group token and
// type counts, type-token ratios, and per-language vocabulary tables
// with known/unknown word flags from the reference lexicons.
package lex

import (
	"math"
	"sort"
	"strings"

	"github.com/blip-corpus/bela/core/bela"
	"github.com/blip-corpus/bela/core/errors"
	"github.com/blip-corpus/bela/internal/refdata"
)

// Key is one accumulator grouping key. Empty dimensions aggregate:
// statistics for a dimension are produced by folding groups that share
// the remaining dimensions.
type Key struct {
	Speaker  string `json:"speaker,omitempty"`
	Language string `json:"language,omitempty"`
	Source   string `json:"source,omitempty"`
}

// Options configures an Analyser. The zero value selects the current
// convention, the embedded reference data, and literal markup tokens.
type Options struct {
	// Version selects the token grammar; empty means the current
	// convention.
	Version bela.Version

	// Ref supplies reference data and lexicons; nil selects the
	// embedded default.
	Ref *refdata.Set

	// WordOnly substitutes vocalization markup with NonWord instead
	// of counting its literal form.
	WordOnly bool

	// NonWord is the word-only substitute; empty drops vocalizations
	// from the counts entirely.
	NonWord string
}

// group is the per-key accumulator cell.
type group struct {
	tokens int
	freq   map[string]int
}

// Analyser accumulates token statistics from Add calls. Add is
// append-only; Analyse and ToDict are read-only projections and may be
// called any number of times. An Analyser is not safe for concurrent
// use; process documents with one Analyser each and Merge afterwards.
type Analyser struct {
	dec    *bela.Decoder
	ref    *refdata.Set
	groups map[Key]*group
	keys   []Key
}

// New returns an empty Analyser.
func New(opts *Options) *Analyser {
	if opts == nil {
		opts = &Options{}
	}
	version := opts.Version
	if version == "" {
		version = bela.Bela2
	}
	ref := opts.Ref
	if ref == nil {
		ref = refdata.Default()
	}
	dec := bela.NewDecoder(bela.RulesFor(version, ref))
	dec.WordOnly = opts.WordOnly
	dec.NonWord = opts.NonWord
	return &Analyser{
		dec:    dec,
		ref:    ref,
		groups: map[Key]*group{},
	}
}

// Add accumulates the tokens of one text under its grouping key.
// Grammar problems in the text are ignored here; the builder reports
// them on the transcript.
func (a *Analyser) Add(text, language, source, speaker string) {
	tokens, _ := a.dec.Tokenize(text, language)
	key := Key{Speaker: speaker, Language: language, Source: source}
	g := a.groups[key]
	if g == nil {
		g = &group{freq: map[string]int{}}
		a.groups[key] = g
		a.keys = append(a.keys, key)
	}
	for _, t := range tokens {
		w := strings.ToLower(t)
		g.tokens++
		g.freq[w]++
	}
}

// AddTranscript feeds every chunk of a decoded transcript into the
// accumulator, keyed by person code and the transcript path.
func (a *Analyser) AddTranscript(t *bela.Transcript) {
	for _, p := range t.Persons {
		for _, u := range p.Utterances {
			for _, c := range u.Chunks {
				a.Add(c.Text, c.Language, t.Path, p.Code)
			}
		}
	}
}

// Merge folds another analyser's raw frequency tables into this one.
// Merging raw counts keeps type counts exact across documents; ratios
// are only computed afterwards, never summed.
func (a *Analyser) Merge(other *Analyser) {
	for _, key := range other.keys {
		og := other.groups[key]
		g := a.groups[key]
		if g == nil {
			g = &group{freq: map[string]int{}}
			a.groups[key] = g
			a.keys = append(a.keys, key)
		}
		g.tokens += og.tokens
		for w, n := range og.freq {
			g.freq[w] += n
		}
	}
}

// GroupStat is the computed statistics of one grouping key.
type GroupStat struct {
	Key

	// Tokens counts word occurrences, repeats included.
	Tokens int `json:"tokens"`

	// Types counts distinct word forms.
	Types int `json:"types"`

	// Ratio is the type-token ratio (types divided by tokens). It is
	// nil for empty groups rather than a division by zero.
	Ratio *float64 `json:"ratio,omitempty"`
}

// VocabEntry is one word in a language's vocabulary table.
type VocabEntry struct {
	Word string `json:"word"`
	Freq int    `json:"freq"`

	// Special marks convention markup kept in literal form.
	Special bool `json:"special_code"`

	// Unknown reports absence from the language's lexicon. It is nil
	// when no lexicon is configured for the language.
	Unknown *bool `json:"unknown_word,omitempty"`
}

// LanguageVocab is the vocabulary table of one language, ordered by
// descending frequency.
type LanguageVocab struct {
	Language string       `json:"language"`
	Entries  []VocabEntry `json:"vocabs"`
}

// Report is the computed output of one Analyse call.
type Report struct {
	// Groups holds one entry per distinct full grouping key.
	Groups []GroupStat `json:"groups"`

	// Languages aggregates across speakers and sources, ordered by
	// descending ratio.
	Languages []GroupStat `json:"languages"`

	// Speakers aggregates across languages and sources.
	Speakers []GroupStat `json:"speakers"`

	// Lexicon holds per-language vocabulary tables.
	Lexicon []LanguageVocab `json:"lexicon"`

	// Warnings lists non-fatal problems, e.g. missing reference
	// lexicons.
	Warnings []string `json:"warnings,omitempty"`
}

// Analyse computes a report over the accumulated counts. It is
// read-only: calling it repeatedly without further Add calls yields
// identical reports.
func (a *Analyser) Analyse() *Report {
	rep := &Report{}

	for _, key := range a.keys {
		rep.Groups = append(rep.Groups, a.stat(key, a.groups[key]))
	}
	sort.SliceStable(rep.Groups, func(i, j int) bool {
		gi, gj := rep.Groups[i], rep.Groups[j]
		if gi.Speaker != gj.Speaker {
			return gi.Speaker < gj.Speaker
		}
		if gi.Language != gj.Language {
			return gi.Language < gj.Language
		}
		return gi.Source < gj.Source
	})

	byLang := a.fold(func(k Key) Key { return Key{Language: k.Language} })
	for key, g := range byLang {
		rep.Languages = append(rep.Languages, a.stat(key, g))
	}
	sort.SliceStable(rep.Languages, func(i, j int) bool {
		ri := ratioOrZero(rep.Languages[i].Ratio)
		rj := ratioOrZero(rep.Languages[j].Ratio)
		if ri != rj {
			return ri > rj
		}
		return rep.Languages[i].Language < rep.Languages[j].Language
	})

	bySpeaker := a.fold(func(k Key) Key { return Key{Speaker: k.Speaker} })
	for key, g := range bySpeaker {
		rep.Speakers = append(rep.Speakers, a.stat(key, g))
	}
	sort.SliceStable(rep.Speakers, func(i, j int) bool {
		return rep.Speakers[i].Speaker < rep.Speakers[j].Speaker
	})

	a.buildLexicon(rep, byLang)
	return rep
}

// fold aggregates groups under a projected key.
func (a *Analyser) fold(project func(Key) Key) map[Key]*group {
	out := map[Key]*group{}
	for _, key := range a.keys {
		g := a.groups[key]
		pk := project(key)
		pg := out[pk]
		if pg == nil {
			pg = &group{freq: map[string]int{}}
			out[pk] = pg
		}
		pg.tokens += g.tokens
		for w, n := range g.freq {
			pg.freq[w] += n
		}
	}
	return out
}

func (a *Analyser) stat(key Key, g *group) GroupStat {
	st := GroupStat{Key: key, Tokens: g.tokens, Types: len(g.freq)}
	if g.tokens > 0 {
		r := float64(st.Types) / float64(st.Tokens)
		st.Ratio = &r
	}
	return st
}

func ratioOrZero(r *float64) float64 {
	if r == nil {
		return 0
	}
	return *r
}

// buildLexicon fills the per-language vocabulary tables, consulting
// the reference lexicons for unknown-word flags.
func (a *Analyser) buildLexicon(rep *Report, byLang map[Key]*group) {
	langs := make([]string, 0, len(byLang))
	for key := range byLang {
		langs = append(langs, key.Language)
	}
	langs = a.ref.SortLanguages(langs)

	for _, lang := range langs {
		g := byLang[Key{Language: lang}]
		if g == nil || len(g.freq) == 0 {
			continue
		}
		var lexicon refdata.Lexicon
		if a.ref.HasLexicon(lang) {
			var err error
			lexicon, err = a.ref.Lexicon(lang)
			if err != nil {
				rep.Warnings = append(rep.Warnings, err.Error())
			}
		} else if lang != "" {
			rep.Warnings = append(rep.Warnings,
				errors.NewReferenceData("lexicon:"+lang, nil).Error())
		}

		vocab := LanguageVocab{Language: lang}
		words := make([]string, 0, len(g.freq))
		for w := range g.freq {
			words = append(words, w)
		}
		sort.Slice(words, func(i, j int) bool {
			if g.freq[words[i]] != g.freq[words[j]] {
				return g.freq[words[i]] > g.freq[words[j]]
			}
			return words[i] < words[j]
		})
		for _, w := range words {
			entry := VocabEntry{Word: w, Freq: g.freq[w], Special: isSpecialWord(w)}
			if entry.Special {
				unknown := a.dec.CheckToken(w) != nil
				entry.Unknown = &unknown
			} else if lexicon != nil {
				unknown := !a.ref.IsKeyword(w) && !lexicon.Contains(w)
				entry.Unknown = &unknown
			}
			vocab.Entries = append(vocab.Entries, entry)
		}
		rep.Lexicon = append(rep.Lexicon, vocab)
	}
}

// isSpecialWord reports whether a counted word is convention markup
// rather than a lexical form.
func isSpecialWord(w string) bool {
	return w == "###" || w == "##" || strings.HasPrefix(w, ":")
}

// ToDict projects the report into a JSON-ready nested mapping with
// ratios rounded to two decimals. It is a pure projection.
func (r *Report) ToDict() map[string]any {
	groups := make([]map[string]any, 0, len(r.Groups))
	for _, g := range r.Groups {
		groups = append(groups, groupDict(g))
	}
	languages := make([]map[string]any, 0, len(r.Languages))
	for _, g := range r.Languages {
		languages = append(languages, groupDict(g))
	}
	speakers := make([]map[string]any, 0, len(r.Speakers))
	for _, g := range r.Speakers {
		speakers = append(speakers, groupDict(g))
	}
	lexicon := make([]map[string]any, 0, len(r.Lexicon))
	for _, lv := range r.Lexicon {
		vocabs := make([]map[string]any, 0, len(lv.Entries))
		for _, e := range lv.Entries {
			v := map[string]any{
				"word":         e.Word,
				"freq":         e.Freq,
				"special_code": e.Special,
			}
			if e.Unknown != nil {
				v["unknown_word"] = *e.Unknown
			}
			vocabs = append(vocabs, v)
		}
		lexicon = append(lexicon, map[string]any{
			"language": lv.Language,
			"vocabs":   vocabs,
		})
	}
	out := map[string]any{
		"groups":    groups,
		"languages": languages,
		"speakers":  speakers,
		"lexicon":   lexicon,
	}
	if len(r.Warnings) > 0 {
		out["warnings"] = append([]string(nil), r.Warnings...)
	}
	return out
}

func groupDict(g GroupStat) map[string]any {
	d := map[string]any{
		"tokens": g.Tokens,
		"types":  g.Types,
	}
	if g.Speaker != "" {
		d["speaker"] = g.Speaker
	}
	if g.Language != "" {
		d["language"] = g.Language
	}
	if g.Source != "" {
		d["source"] = g.Source
	}
	if g.Ratio != nil {
		d["ratio"] = math.Round(*g.Ratio*100) / 100
	}
	return d
}
