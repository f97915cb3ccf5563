package bela

import (
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/blip-corpus/bela/core/elan"
	"github.com/blip-corpus/bela/core/errors"
	"github.com/blip-corpus/bela/internal/logging"
	"github.com/blip-corpus/bela/internal/refdata"
)

// LinkRule decides whether a child time range belongs to a parent
// utterance range when no explicit annotation reference exists.
type LinkRule func(parentStart, parentEnd, childStart, childEnd int64) bool

// ContainmentLink is the default link rule: the child range must lie
// inside or equal the parent range.
func ContainmentLink(parentStart, parentEnd, childStart, childEnd int64) bool {
	return childStart >= parentStart && childEnd <= parentEnd
}

// Options configures transcript building. The zero value selects the
// version recorded in the document, the embedded reference data, and
// containment linking.
type Options struct {
	// Version overrides the document's version marker when non-empty.
	Version Version

	// Ref supplies the convention reference data; nil selects the
	// embedded default.
	Ref *refdata.Set

	// AllowEmpty downgrades empty-annotation issues to warnings.
	AllowEmpty bool

	// LinkRule links sub-annotations to utterances when the document
	// carries no annotation references; nil selects ContainmentLink.
	LinkRule LinkRule
}

// ReadEAF reads an EAF file and builds its Transcript. The returned
// error is non-nil only for unreadable or structurally malformed
// documents and unsupported version markers; everything else is
// collected on Transcript.Issues.
func ReadEAF(path string, opts *Options) (*Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewDocument(path, "cannot read document", err)
	}
	doc, err := elan.Parse(data)
	if err != nil {
		var derr *errors.DocumentError
		if errors.As(err, &derr) && derr.Path == ":memory:" {
			derr.Path = path
		}
		return nil, err
	}
	doc.Path = path
	t, err := FromELAN(doc, opts)
	if err != nil {
		return nil, err
	}
	sum := blake3.Sum256(data)
	t.SourceHash = hex.EncodeToString(sum[:])
	return t, nil
}

// FromELAN builds a Transcript from an already-parsed document.
func FromELAN(doc *elan.Document, opts *Options) (*Transcript, error) {
	if opts == nil {
		opts = &Options{}
	}
	version := opts.Version
	if version == "" {
		var err error
		version, err = ParseVersion(doc.Property(VersionProperty), doc.Path)
		if err != nil {
			return nil, err
		}
	}
	if !version.IsValid() {
		return nil, errors.NewVersion(string(version), doc.Path)
	}

	rules := RulesFor(version, opts.Ref)
	b := &builder{
		doc:   doc,
		rules: rules,
		dec:   NewDecoder(rules),
		opts:  opts,
		link:  opts.LinkRule,
		t: &Transcript{
			Path:    doc.Path,
			Version: version,
		},
	}
	if b.link == nil {
		b.link = ContainmentLink
	}
	b.t.MediaFile = doc.MediaFile
	b.t.mediaURL = doc.MediaURL
	b.t.relativeMediaURL = doc.RelativeMediaURL
	b.build()
	return b.t, nil
}

// builder carries the intermediate state of one FromELAN call.
type builder struct {
	doc   *elan.Document
	rules *Rules
	dec   *Decoder
	opts  *Options
	link  LinkRule
	t     *Transcript

	persons []*personTiers
	byCode  map[string]*personTiers
}

// personTiers groups one participant's tiers by class while building.
type personTiers struct {
	person  *Person
	utter   *elan.Tier
	byClass map[string]*elan.Tier
	byAnnID map[string]*Utterance
	special bool

	chunkByAnn map[*elan.Annotation]*Chunk
}

func (b *builder) issue(severity Severity, kind IssueKind, tier, text, format string, args ...any) {
	b.t.Issues = append(b.t.Issues, Issue{
		Severity: severity,
		Kind:     kind,
		Tier:     tier,
		Text:     text,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (b *builder) build() {
	b.byCode = map[string]*personTiers{}
	b.classifyTiers()
	b.repairTimestamps()
	for _, pt := range b.persons {
		b.buildUtterances(pt)
	}
	for _, pt := range b.persons {
		if pt.special {
			continue
		}
		b.buildChunks(pt)
		b.linkLanguages(pt)
		b.linkTranslations(pt)
		b.validate(pt)
	}
}

// classifyTiers parses tier labels, creates persons in first-seen
// order, and groups remaining tiers under their owners by class.
func (b *builder) classifyTiers() {
	type classified struct {
		tier *elan.Tier
		name *TierName
	}
	var rest []classified

	for _, tier := range b.doc.Tiers() {
		if code, ok := b.rules.SpecialTiers[tier.ID]; ok {
			pt := b.byCode[code]
			if pt == nil {
				pt = &personTiers{
					person: &Person{
						Name: ClassTranscriber,
						Code: code,
						Role: b.rules.RoleFor(code, ClassTranscriber),
					},
					byClass: map[string]*elan.Tier{},
					byAnnID: map[string]*Utterance{},
					special: true,
					utter:   tier,
				}
				b.byCode[code] = pt
				b.persons = append(b.persons, pt)
				b.t.Persons = append(b.t.Persons, pt.person)
			}
			continue
		}
		tn, err := ParseTierName(tier.ID)
		if err != nil {
			b.issue(SeverityError, IssueTierStructure, tier.ID, "", "Invalid tier name: %s", tier.ID)
			continue
		}
		if tn.Class == ClassUtterance {
			switch {
			case tier.Participant == "":
				b.issue(SeverityError, IssueTierStructure, tier.ID, "",
					"Tier [%s] does not have a participant code", tier.ID)
			case b.byCode[tier.Participant] != nil:
				b.issue(SeverityError, IssueTierStructure, tier.ID, "",
					"Person [%s] has more than one utterance tier", tier.Participant)
			default:
				pt := &personTiers{
					person: &Person{
						Name: tn.Person,
						Code: tier.Participant,
						Role: b.rules.RoleFor(tier.Participant, tn.Person),
					},
					utter:   tier,
					byClass: map[string]*elan.Tier{},
					byAnnID: map[string]*Utterance{},
				}
				b.byCode[tier.Participant] = pt
				b.persons = append(b.persons, pt)
				b.t.Persons = append(b.t.Persons, pt.person)
			}
			continue
		}
		if tier.ParentRef == "" {
			b.issue(SeverityError, IssueTierStructure, tier.ID, "", "Unknown root tier: %s", tier.ID)
			continue
		}
		rest = append(rest, classified{tier, tn})
	}

	for _, c := range rest {
		pt := b.byCode[c.tier.Participant]
		if pt == nil {
			b.issue(SeverityError, IssueTierStructure, c.tier.ID, "",
				"Unknown person code [%s] used in tier [%s]", c.tier.Participant, c.tier.ID)
			continue
		}
		if _, dup := pt.byClass[c.name.Class]; dup {
			b.issue(SeverityError, IssueTierStructure, c.tier.ID, "",
				"Person [%s] has more than one [class=%s] tier", pt.person.Code, c.name.Class)
			continue
		}
		pt.byClass[c.name.Class] = c.tier
	}
}

// repairTimestamps patches unresolved endpoints from the opposite one
// and clamps inverted ranges. Every repair is recorded as an issue.
func (b *builder) repairTimestamps() {
	for _, tier := range b.doc.Tiers() {
		for _, ann := range tier.Annotations {
			if ann.Start == elan.NoTime || ann.End == elan.NoTime {
				b.issue(SeverityError, IssueTimestamp, tier.ID, ann.Value,
					"Annotation with corrupted timestamp (%d -- %d)", ann.Start, ann.End)
				switch {
				case ann.Start == elan.NoTime && ann.End != elan.NoTime:
					ann.Start = ann.End
				case ann.End == elan.NoTime && ann.Start != elan.NoTime:
					ann.End = ann.Start
				default:
					ann.Start, ann.End = 0, 0
				}
			}
			if ann.End < ann.Start {
				b.issue(SeverityError, IssueTimestamp, tier.ID, ann.Value,
					"Annotation ends before it starts (%d -- %d)", ann.Start, ann.End)
				ann.End = ann.Start
			}
		}
	}
}

// buildUtterances creates the person's utterances in stable start-time
// order and indexes them by source annotation ID.
func (b *builder) buildUtterances(pt *personTiers) {
	if pt.utter == nil {
		return
	}
	anns := make([]*elan.Annotation, len(pt.utter.Annotations))
	copy(anns, pt.utter.Annotations)
	sort.SliceStable(anns, func(i, j int) bool { return anns[i].Start < anns[j].Start })
	for _, ann := range anns {
		u := &Utterance{
			Start:  ann.Start,
			End:    ann.End,
			Text:   ann.Value,
			Chunks: []*Chunk{},
		}
		pt.person.Utterances = append(pt.person.Utterances, u)
		pt.byAnnID[ann.ID] = u
	}
}

// buildChunks maps chunk-tier annotations into utterances with a
// two-pointer sweep over the time-sorted sequences. When the person
// has no chunk tier, inline language markers in the utterance text
// split it into chunks instead.
func (b *builder) buildChunks(pt *personTiers) {
	chunkTier := pt.byClass[ClassChunk]
	if chunkTier == nil {
		inline := false
		for _, u := range pt.person.Utterances {
			if strings.Contains(u.Text, "[") {
				b.inlineChunks(pt, u)
				inline = true
			}
		}
		if !inline && len(pt.person.Utterances) > 0 {
			b.issue(SeverityWarning, IssueTierStructure, "", "",
				"Person %s (%s) does not have a chunk tier", pt.person.Name, pt.person.Code)
		}
		return
	}

	children := make([]*elan.Annotation, len(chunkTier.Annotations))
	copy(children, chunkTier.Annotations)
	sort.SliceStable(children, func(i, j int) bool { return children[i].Start < children[j].Start })

	ci := 0
	for _, u := range pt.person.Utterances {
		for ci < len(children) {
			child := children[ci]
			if b.link(u.Start, u.End, child.Start, child.End) {
				u.Chunks = append(u.Chunks, &Chunk{
					Text:  child.Value,
					Start: child.Start,
					End:   child.End,
				})
				pt.chunkAnn(child, u)
				ci++
				continue
			}
			if u.Start > child.End {
				b.issue(SeverityWarning, IssueUnresolvedLink, chunkTier.ID, child.Value,
					"Orphaned annotation found (#%s)", child.ID)
				ci++
				continue
			}
			break
		}
	}
	for ; ci < len(children); ci++ {
		b.issue(SeverityWarning, IssueUnresolvedLink, chunkTier.ID, children[ci].Value,
			"Orphaned annotation found (#%s)", children[ci].ID)
	}
}

var inlineMarker = regexp.MustCompile(`([^\[\]]*)\[([^\[\]]+)\]`)

// inlineChunks splits "text[lang] more[lang2]" utterance text into
// language-tagged chunks. Chunk times partition the utterance range in
// proportion to text length.
func (b *builder) inlineChunks(pt *personTiers, u *Utterance) {
	matches := inlineMarker.FindAllStringSubmatch(u.Text, -1)
	if matches == nil {
		b.issue(SeverityError, IssueDecode, pt.utter.ID, u.Text, "Unbalanced inline language markers")
		return
	}
	consumed := 0
	for _, m := range matches {
		consumed += len(m[0])
	}
	if rest := strings.TrimSpace(u.Text[consumed:]); rest != "" {
		b.issue(SeverityWarning, IssueDecode, pt.utter.ID, u.Text,
			"Text after the last language marker has no language tag: %q", rest)
	}

	total := 0
	texts := make([]string, 0, len(matches))
	langs := make([]string, 0, len(matches))
	for _, m := range matches {
		text := strings.TrimSpace(m[1])
		texts = append(texts, text)
		langs = append(langs, strings.TrimSpace(m[2]))
		total += len([]rune(text))
	}
	if total == 0 {
		return
	}
	elapsed := 0
	start := u.Start
	for i, text := range texts {
		elapsed += len([]rune(text))
		end := u.Start + u.Duration()*int64(elapsed)/int64(total)
		if i == len(texts)-1 {
			end = u.End
		}
		u.Chunks = append(u.Chunks, &Chunk{
			Text:     text,
			Language: langs[i],
			Start:    start,
			End:      end,
		})
		start = end
	}
}

// chunkAnn remembers which utterance a chunk annotation landed in, so
// language linking can navigate from annotations to model chunks.
func (pt *personTiers) chunkAnn(ann *elan.Annotation, u *Utterance) {
	if pt.chunkByAnn == nil {
		pt.chunkByAnn = map[*elan.Annotation]*Chunk{}
	}
	pt.chunkByAnn[ann] = u.Chunks[len(u.Chunks)-1]
}

// linkLanguages attaches language-tier values to chunks by exact time
// pair, flagging unsure tags and orphaned language annotations.
func (b *builder) linkLanguages(pt *personTiers) {
	langTier := pt.byClass[ClassLanguage]
	chunkTier := pt.byClass[ClassChunk]
	if langTier == nil {
		if chunkTier != nil && len(pt.person.Utterances) > 0 {
			b.issue(SeverityWarning, IssueTierStructure, "", "",
				"Person %s (%s) does not have a language tier", pt.person.Name, pt.person.Code)
		}
		return
	}
	if chunkTier == nil {
		return
	}

	type timeKey struct{ start, end int64 }
	langByTime := map[timeKey]*elan.Annotation{}
	for _, ann := range langTier.Annotations {
		langByTime[timeKey{ann.Start, ann.End}] = ann
	}
	linked := map[*elan.Annotation]bool{}

	for _, ann := range chunkTier.Annotations {
		chunk := pt.chunkByAnn[ann]
		if chunk == nil {
			continue
		}
		langAnn := langByTime[timeKey{ann.Start, ann.End}]
		if langAnn == nil {
			continue
		}
		linked[langAnn] = true
		lang := strings.TrimSpace(langAnn.Value)
		if strings.Contains(lang, "#!") {
			chunk.Uncertain = true
			lang = strings.TrimSpace(strings.ReplaceAll(lang, "#!", ""))
			b.issue(SeverityError, IssueDecode, langTier.ID, langAnn.Value,
				"Unsure language tag (%s) was used for chunk `%s`", langAnn.Value, strings.TrimSpace(chunk.Text))
		}
		chunk.Language = lang
	}
	for _, ann := range langTier.Annotations {
		if !linked[ann] {
			b.issue(SeverityWarning, IssueUnresolvedLink, langTier.ID, ann.Value,
				"Orphaned language annotation could not be linked (%d -- %d)", ann.Start, ann.End)
		}
	}
}

// linkTranslations attaches translation-tier values to utterances via
// annotation references first, falling back to the configured time
// link rule.
func (b *builder) linkTranslations(pt *personTiers) {
	transTier := pt.byClass[ClassTranslation]
	if transTier == nil {
		if len(pt.person.Utterances) > 0 {
			b.issue(SeverityWarning, IssueTierStructure, "", "",
				"Person %s (%s) does not have a translation tier", pt.person.Name, pt.person.Code)
		}
		return
	}

	for _, ann := range transTier.Annotations {
		u := b.resolveRef(pt, ann)
		if u == nil {
			var ambiguous bool
			u, ambiguous = b.resolveByTime(pt, ann)
			if ambiguous {
				b.issue(SeverityWarning, IssueUnresolvedLink, transTier.ID, ann.Value,
					"Translation matches more than one utterance (%d -- %d)", ann.Start, ann.End)
				continue
			}
		}
		if u == nil {
			b.issue(SeverityWarning, IssueUnresolvedLink, transTier.ID, ann.Value,
				"Translation could not be linked to an utterance (%d -- %d)", ann.Start, ann.End)
			continue
		}
		if u.Translation != "" && u.Translation != ann.Value {
			b.issue(SeverityError, IssueUnresolvedLink, transTier.ID, ann.Value,
				"Conflicting translation for [%s] (%d -- %d)", pt.person.Code, u.Start, u.End)
			continue
		}
		u.Translation = ann.Value
	}
}

// resolveRef follows an annotation's reference chain up to the
// utterance it annotates, if any.
func (b *builder) resolveRef(pt *personTiers, ann *elan.Annotation) *Utterance {
	ref := ann.RefID
	for ref != "" {
		if u, ok := pt.byAnnID[ref]; ok {
			return u
		}
		parent := b.doc.Annotation(ref)
		if parent == nil {
			return nil
		}
		ref = parent.RefID
	}
	return nil
}

// resolveByTime picks the strictly narrowest utterance whose range
// links the annotation under the configured rule. When two candidates
// tie for narrowest there is no defensible winner; ambiguous is set and
// the caller must drop the link rather than guess.
func (b *builder) resolveByTime(pt *personTiers, ann *elan.Annotation) (best *Utterance, ambiguous bool) {
	for _, u := range pt.person.Utterances {
		if !b.link(u.Start, u.End, ann.Start, ann.End) {
			continue
		}
		switch {
		case best == nil:
			best = u
		case u.Duration() < best.Duration():
			best = u
			ambiguous = false
		case u.Duration() == best.Duration():
			ambiguous = true
		}
	}
	return best, ambiguous
}

// validate runs the token grammar and text checks over a person's
// utterances and chunks.
func (b *builder) validate(pt *personTiers) {
	tierID := ""
	if pt.utter != nil {
		tierID = pt.utter.ID
	}
	for _, u := range pt.person.Utterances {
		if strings.TrimSpace(u.Text) == "" {
			sev := SeverityError
			if b.opts.AllowEmpty {
				sev = SeverityWarning
			}
			b.issue(sev, IssueEmptyAnnotation, tierID, "",
				"Empty annotation found (%d -- %d)", u.Start, u.End)
		}

		failed := false
		cleanText := inlineMarkerOnly.ReplaceAllString(u.Text, " ")
		if _, problems := b.dec.Tokenize(cleanText, ""); len(problems) > 0 {
			failed = true
			for _, p := range problems {
				b.issue(SeverityError, IssueDecode, tierID, u.Text, "%s", p.Error())
				logging.DecodeIssue(tierID, u.Text, p.Error())
			}
		}
		if chars := FindInvalidCharacters(cleanText, ""); len(chars) > 0 {
			b.issue(SeverityError, IssueDecode, tierID, u.Text,
				"Invalid characters, new line, or tab found (%q)", strings.Join(chars, ""))
		}

		for _, c := range u.Chunks {
			if strings.TrimSpace(c.Text) == "" {
				sev := SeverityError
				if b.opts.AllowEmpty && strings.TrimSpace(u.Text) == "" {
					sev = SeverityWarning
				}
				b.issue(sev, IssueEmptyAnnotation, tierID, "",
					"Empty chunk annotation found (%d -- %d)", c.Start, c.End)
			}
			if strings.TrimSpace(c.Language) == "" {
				sev := SeverityError
				if b.opts.AllowEmpty && strings.TrimSpace(c.Text) == "" && strings.TrimSpace(u.Text) == "" {
					sev = SeverityWarning
				}
				b.issue(sev, IssueEmptyAnnotation, tierID, c.Text,
					"Language tag not found in the chunk `%s` (%d -- %d)", strings.TrimSpace(c.Text), c.Start, c.End)
			}
			if _, problems := b.dec.Tokenize(c.Text, c.Language); len(problems) > 0 {
				failed = true
				for _, p := range problems {
					b.issue(SeverityError, IssueDecode, tierID, c.Text, "%s", p.Error())
				}
			}
			if chars := FindInvalidCharacters(c.Text, c.Language); len(chars) > 0 {
				b.issue(SeverityError, IssueDecode, tierID, c.Text,
					"Invalid characters, new line, or tab found (%q) (language: %s)", strings.Join(chars, ""), c.Language)
			}
		}

		if failed {
			// grammar violations invalidate the chunk decomposition
			u.Chunks = []*Chunk{}
			continue
		}
		b.reconcile(pt, u, tierID)
	}
}

var inlineMarkerOnly = regexp.MustCompile(`\[[^\[\]]*\]`)

// reconcile checks that chunk texts jointly reconstruct the utterance
// text modulo spaces and inline markers.
func (b *builder) reconcile(pt *personTiers, u *Utterance, tierID string) {
	if len(u.Chunks) == 0 {
		// nothing to compare against when the person carries no
		// chunk structure at all
		if pt.byClass[ClassChunk] == nil {
			return
		}
		if strings.TrimSpace(u.Text) == "" {
			return
		}
	}
	uText := strings.ReplaceAll(inlineMarkerOnly.ReplaceAllString(u.Text, ""), " ", "")
	var sb strings.Builder
	for _, c := range u.Chunks {
		sb.WriteString(strings.ReplaceAll(c.Text, " ", ""))
	}
	if uText != sb.String() {
		parts := make([]string, 0, len(u.Chunks))
		for _, c := range u.Chunks {
			parts = append(parts, strings.TrimSpace(c.Text))
		}
		b.issue(SeverityError, IssueTextMismatch, tierID, u.Text,
			"Utterance text and chunks are mismatched (%q != %q)", u.Text, strings.Join(parts, " "))
	}
}
