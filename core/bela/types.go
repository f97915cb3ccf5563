// Package bela decodes ELAN documents annotated under the BELA
// child-language convention into a typed transcript model: persons,
// time-ordered utterances, and language-tagged chunks. Problems found
// during decoding are collected as Issue values on the Transcript;
// only structurally unreadable documents produce a fatal error.
package bela

import (
	"net/url"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Version selects which BELA convention grammar and validation rules
// were applied when decoding a transcript.
type Version string

// Convention version constants.
const (
	// Bela1 is the frozen legacy convention, kept for one historical corpus.
	Bela1 Version = "bela1"
	// Bela2 is the current convention and the default.
	Bela2 Version = "bela2"
)

// IsValid returns true if the version is an implemented convention.
func (v Version) IsValid() bool {
	return v == Bela1 || v == Bela2
}

// Role classifies a participant by the corpus code convention.
type Role string

// Participant role constants.
const (
	RoleChild       Role = "child"
	RoleCaregiver   Role = "caregiver"
	RoleTranscriber Role = "transcriber"
)

// Severity grades a collected issue.
type Severity string

// Issue severity constants.
const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// IssueKind names the class of a collected issue.
type IssueKind string

// Issue kind constants.
const (
	// IssueDecode marks text that does not match the convention grammar.
	IssueDecode IssueKind = "decode-failure"
	// IssueUnresolvedLink marks a sub-annotation with no resolvable parent.
	IssueUnresolvedLink IssueKind = "unresolved-link"
	// IssueTimestamp marks corrupted or inverted time ranges.
	IssueTimestamp IssueKind = "timestamp"
	// IssueTierStructure marks unexpected tier naming or layout.
	IssueTierStructure IssueKind = "tier-structure"
	// IssueTextMismatch marks utterance text not covered by its chunks.
	IssueTextMismatch IssueKind = "text-mismatch"
	// IssueEmptyAnnotation marks blank annotation values.
	IssueEmptyAnnotation IssueKind = "empty-annotation"
)

// Issue is one recoverable problem found while decoding a document.
// Issues are values collected on the Transcript, never panics or thrown
// errors: the builder continues past every one of them.
type Issue struct {
	Severity Severity  `json:"severity"`
	Kind     IssueKind `json:"kind"`
	Tier     string    `json:"tier,omitempty"`
	Text     string    `json:"text,omitempty"`
	Message  string    `json:"message"`
}

func (i Issue) String() string {
	var sb strings.Builder
	sb.WriteString(string(i.Severity))
	sb.WriteString(" [")
	sb.WriteString(string(i.Kind))
	sb.WriteString("] ")
	sb.WriteString(i.Message)
	if i.Tier != "" {
		sb.WriteString(" | tier: ")
		sb.WriteString(i.Tier)
	}
	if i.Text != "" {
		sb.WriteString(" | text: ")
		sb.WriteString(i.Text)
	}
	return sb.String()
}

// Transcript is the root aggregate of one decoded document. It is built
// once by FromELAN/ReadEAF and read-only afterwards.
type Transcript struct {
	// Path is the source document path (":memory:" for byte input).
	Path string `json:"path"`

	// Version is the convention the document was decoded under.
	Version Version `json:"version"`

	// SourceHash is the BLAKE3 hash of the source bytes, when known.
	SourceHash string `json:"source_hash,omitempty"`

	// MediaFile is the media file reference from the document header.
	MediaFile string `json:"media_file,omitempty"`

	// Persons holds participants in first-seen order.
	Persons []*Person `json:"persons"`

	// Issues holds every recoverable problem found during the build.
	Issues []Issue `json:"issues,omitempty"`

	mediaURL         string
	relativeMediaURL string
}

// Person is one conversation participant with its time-ordered utterances.
type Person struct {
	// Name is the display name parsed from the tier label.
	Name string `json:"name"`

	// Code is the participant code, unique within a transcript.
	Code string `json:"code"`

	// Role is derived from the code convention.
	Role Role `json:"role"`

	// Utterances are ordered by ascending start time.
	Utterances []*Utterance `json:"utterances"`
}

// Utterance is one timed speech event attributed to exactly one person.
type Utterance struct {
	// Start and End are milliseconds from the recording start, End >= Start.
	Start int64 `json:"start"`
	End   int64 `json:"end"`

	// Text is the raw source text of the utterance annotation.
	Text string `json:"text"`

	// Translation is the linked translation text, if any.
	Translation string `json:"translation,omitempty"`

	// Chunks covers the utterance text in order. It is never nil; an
	// utterance that could not be decoded has a zero-length slice.
	Chunks []*Chunk `json:"chunks"`
}

// Duration returns the utterance length in milliseconds.
func (u *Utterance) Duration() int64 {
	return u.End - u.Start
}

// Chunk is a contiguous run of utterance text tagged with a single
// language or vocalization code.
type Chunk struct {
	// Text is the chunk's text content.
	Text string `json:"text"`

	// Language is the language name or vocalization class of the span.
	Language string `json:"language"`

	// Start and End are milliseconds; chunks of one utterance do not overlap.
	Start int64 `json:"start"`
	End   int64 `json:"end"`

	// Uncertain is set when the annotator marked the language tag unsure.
	Uncertain bool `json:"uncertain,omitempty"`
}

// Duration returns the chunk length in milliseconds.
func (c *Chunk) Duration() int64 {
	return c.End - c.Start
}

// Person returns the participant with the given code, or nil.
func (t *Transcript) Person(code string) *Person {
	for _, p := range t.Persons {
		if p.Code == code {
			return p
		}
	}
	return nil
}

// MediaURL returns the resolved media URL: the absolute URL recorded in
// the document when present, otherwise the relative reference resolved
// against the transcript's own directory.
func (t *Transcript) MediaURL() string {
	if t.mediaURL != "" {
		return t.mediaURL
	}
	if t.relativeMediaURL == "" {
		return ""
	}
	if t.Path == "" || t.Path == ":memory:" {
		return t.relativeMediaURL
	}
	return filepath.ToSlash(filepath.Join(filepath.Dir(t.Path), filepath.FromSlash(t.relativeMediaURL)))
}

// RelativeMediaURL returns the media reference relative to the transcript
// file: the recorded relative URL when present, otherwise the basename of
// the absolute URL.
func (t *Transcript) RelativeMediaURL() string {
	if t.relativeMediaURL != "" {
		return t.relativeMediaURL
	}
	if t.mediaURL == "" {
		return ""
	}
	if u, err := url.Parse(t.mediaURL); err == nil && u.Path != "" {
		return "./" + path.Base(u.Path)
	}
	return "./" + path.Base(t.mediaURL)
}

// CountUtterances returns the total utterance count across all persons.
func (t *Transcript) CountUtterances() int {
	n := 0
	for _, p := range t.Persons {
		n += len(p.Utterances)
	}
	return n
}

// CountChunks returns the total chunk count across all persons.
func (t *Transcript) CountChunks() int {
	n := 0
	for _, p := range t.Persons {
		for _, u := range p.Utterances {
			n += len(u.Chunks)
		}
	}
	return n
}

// Languages returns the sorted set of language codes used by chunks.
func (t *Transcript) Languages() []string {
	seen := map[string]bool{}
	for _, p := range t.Persons {
		for _, u := range p.Utterances {
			for _, c := range u.Chunks {
				if c.Language != "" {
					seen[c.Language] = true
				}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// IssuesOf returns the collected issues of one kind.
func (t *Transcript) IssuesOf(kind IssueKind) []Issue {
	var out []Issue
	for _, issue := range t.Issues {
		if issue.Kind == kind {
			out = append(out, issue)
		}
	}
	return out
}

// HasErrors reports whether any collected issue has error severity.
func (t *Transcript) HasErrors() bool {
	for _, issue := range t.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}
