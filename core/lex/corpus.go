package lex

import (
	"sort"

	"github.com/blip-corpus/bela/core/bela"
)

// AllProfile is the corpus-wide profile name.
const AllProfile = "ALL"

// CorpusAnalyser fans Add calls out to one profile per speaker plus a
// corpus-wide profile, so per-speaker and overall statistics come from
// the same stream.
type CorpusAnalyser struct {
	opts     *Options
	profiles map[string]*Analyser
	names    []string
}

// NewCorpus returns an empty corpus analyser.
func NewCorpus(opts *Options) *CorpusAnalyser {
	c := &CorpusAnalyser{
		opts:     opts,
		profiles: map[string]*Analyser{},
	}
	c.profile(AllProfile)
	return c
}

func (c *CorpusAnalyser) profile(name string) *Analyser {
	a := c.profiles[name]
	if a == nil {
		a = New(c.opts)
		c.profiles[name] = a
		c.names = append(c.names, name)
	}
	return a
}

// Add accumulates one text under both the speaker's profile and the
// corpus-wide one.
func (c *CorpusAnalyser) Add(text, language, source, speaker string) {
	c.profile(AllProfile).Add(text, language, source, speaker)
	c.profile(speaker).Add(text, language, source, speaker)
}

// AddTranscript feeds every chunk of a decoded transcript into the
// corpus.
func (c *CorpusAnalyser) AddTranscript(t *bela.Transcript) {
	for _, p := range t.Persons {
		for _, u := range p.Utterances {
			for _, ch := range u.Chunks {
				c.Add(ch.Text, ch.Language, t.Path, p.Code)
			}
		}
	}
}

// Profile returns the named profile's analyser, or nil.
func (c *CorpusAnalyser) Profile(name string) *Analyser {
	return c.profiles[name]
}

// ProfileReport pairs a profile name with its computed report.
type ProfileReport struct {
	Name   string  `json:"name"`
	Report *Report `json:"stats"`
}

// Analyse computes every profile's report, ordered by profile name.
func (c *CorpusAnalyser) Analyse() []ProfileReport {
	names := append([]string(nil), c.names...)
	sort.Strings(names)
	out := make([]ProfileReport, 0, len(names))
	for _, name := range names {
		out = append(out, ProfileReport{Name: name, Report: c.profiles[name].Analyse()})
	}
	return out
}

// ToDict projects all profile reports into a JSON-ready list sorted by
// profile name.
func (c *CorpusAnalyser) ToDict() []map[string]any {
	reports := c.Analyse()
	out := make([]map[string]any, 0, len(reports))
	for _, pr := range reports {
		out = append(out, map[string]any{
			"name":  pr.Name,
			"stats": pr.Report.ToDict(),
		})
	}
	return out
}
