package bela

import "sort"

// LanguageSpan is one collapsed run of same-language chunks in the
// language-mix timeline.
type LanguageSpan struct {
	Language string `json:"language"`
	Start    int64  `json:"start"`
	End      int64  `json:"end"`
	Duration int64  `json:"duration"`
}

// LanguageMix is the per-language duration timeline of a transcript:
// all chunks across all persons, time-ordered, with consecutive
// same-language chunks collapsed into single spans.
type LanguageMix struct {
	Spans []LanguageSpan `json:"spans"`

	// Length is the summed duration of all spans in milliseconds.
	Length int64 `json:"length"`
}

// Totals returns the summed duration per language.
func (m *LanguageMix) Totals() map[string]int64 {
	out := map[string]int64{}
	for _, s := range m.Spans {
		out[s.Language] += s.Duration
	}
	return out
}

// LanguageMix collapses the transcript's chunks into a language
// timeline. upTo limits the timeline to chunks ending at or before the
// given millisecond mark; pass a negative value for the whole
// transcript.
func (t *Transcript) LanguageMix(upTo int64) *LanguageMix {
	var chunks []*Chunk
	for _, p := range t.Persons {
		for _, u := range p.Utterances {
			for _, c := range u.Chunks {
				if upTo >= 0 && c.End > upTo {
					continue
				}
				chunks = append(chunks, c)
			}
		}
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Start != chunks[j].Start {
			return chunks[i].Start < chunks[j].Start
		}
		return chunks[i].End < chunks[j].End
	})

	mix := &LanguageMix{}
	for _, c := range chunks {
		d := c.Duration()
		if n := len(mix.Spans); n > 0 && mix.Spans[n-1].Language == c.Language {
			mix.Spans[n-1].End = c.End
			mix.Spans[n-1].Duration += d
		} else {
			mix.Spans = append(mix.Spans, LanguageSpan{
				Language: c.Language,
				Start:    c.Start,
				End:      c.End,
				Duration: d,
			})
		}
		mix.Length += d
	}
	return mix
}
