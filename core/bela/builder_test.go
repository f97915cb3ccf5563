package bela

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blip-corpus/bela/core/elan"
	"github.com/blip-corpus/bela/core/errors"
)

const tierDocEAF = `<?xml version="1.0" encoding="UTF-8"?>
<ANNOTATION_DOCUMENT AUTHOR="tester" DATE="2024-03-01T10:00:00+08:00" VERSION="3.0">
  <HEADER MEDIA_FILE="session01.wav" TIME_UNITS="milliseconds">
    <MEDIA_DESCRIPTOR MEDIA_URL="file:///recordings/session01.wav" MIME_TYPE="audio/x-wav" RELATIVE_MEDIA_URL="./session01.wav"/>
    <PROPERTY NAME="belaVersion">bela2</PROPERTY>
  </HEADER>
  <TIME_ORDER>
    <TIME_SLOT TIME_SLOT_ID="ts1" TIME_VALUE="0"/>
    <TIME_SLOT TIME_SLOT_ID="ts2" TIME_VALUE="1000"/>
    <TIME_SLOT TIME_SLOT_ID="ts3" TIME_VALUE="2000"/>
    <TIME_SLOT TIME_SLOT_ID="ts4" TIME_VALUE="2500"/>
    <TIME_SLOT TIME_SLOT_ID="ts5" TIME_VALUE="4000"/>
  </TIME_ORDER>
  <TIER LINGUISTIC_TYPE_REF="Utterance" TIER_ID="Mary (Utterance)" PARTICIPANT="MOT">
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="a1" TIME_SLOT_REF1="ts1" TIME_SLOT_REF2="ts3">
        <ANNOTATION_VALUE>hello 宝宝</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
  </TIER>
  <TIER LINGUISTIC_TYPE_REF="Chunk" TIER_ID="Mary (Chunk)" PARTICIPANT="MOT" PARENT_REF="Mary (Utterance)">
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="c1" TIME_SLOT_REF1="ts1" TIME_SLOT_REF2="ts2">
        <ANNOTATION_VALUE>hello</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="c2" TIME_SLOT_REF1="ts2" TIME_SLOT_REF2="ts3">
        <ANNOTATION_VALUE>宝宝</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
  </TIER>
  <TIER LINGUISTIC_TYPE_REF="Language" TIER_ID="Mary (Language)" PARTICIPANT="MOT" PARENT_REF="Mary (Chunk)">
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="l1" TIME_SLOT_REF1="ts1" TIME_SLOT_REF2="ts2">
        <ANNOTATION_VALUE>English</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="l2" TIME_SLOT_REF1="ts2" TIME_SLOT_REF2="ts3">
        <ANNOTATION_VALUE>Mandarin</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
  </TIER>
  <TIER LINGUISTIC_TYPE_REF="Translation" TIER_ID="Mary (Translation)" PARTICIPANT="MOT" PARENT_REF="Mary (Utterance)">
    <ANNOTATION>
      <REF_ANNOTATION ANNOTATION_ID="t1" ANNOTATION_REF="a1">
        <ANNOTATION_VALUE>hai bayi</ANNOTATION_VALUE>
      </REF_ANNOTATION>
    </ANNOTATION>
  </TIER>
  <TIER LINGUISTIC_TYPE_REF="Utterance" TIER_ID="Baby Ben (Utterance)" PARTICIPANT="CHI">
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="a2" TIME_SLOT_REF1="ts4" TIME_SLOT_REF2="ts5">
        <ANNOTATION_VALUE>:v:crying</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
  </TIER>
  <TIER LINGUISTIC_TYPE_REF="Chunk" TIER_ID="Baby Ben (Chunk)" PARTICIPANT="CHI" PARENT_REF="Baby Ben (Utterance)">
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="c3" TIME_SLOT_REF1="ts4" TIME_SLOT_REF2="ts5">
        <ANNOTATION_VALUE>:v:crying</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
  </TIER>
  <TIER LINGUISTIC_TYPE_REF="Language" TIER_ID="Baby Ben (Language)" PARTICIPANT="CHI" PARENT_REF="Baby Ben (Chunk)">
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="l3" TIME_SLOT_REF1="ts4" TIME_SLOT_REF2="ts5">
        <ANNOTATION_VALUE>Vocal Sounds</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
  </TIER>
  <TIER LINGUISTIC_TYPE_REF="Note" TIER_ID="ActivityMarkers">
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="m1" TIME_SLOT_REF1="ts3" TIME_SLOT_REF2="ts4">
        <ANNOTATION_VALUE>toy play</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
  </TIER>
</ANNOTATION_DOCUMENT>`

func buildTranscript(t *testing.T, data string, opts *Options) *Transcript {
	t.Helper()
	doc, err := elan.Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	tr, err := FromELAN(doc, opts)
	if err != nil {
		t.Fatalf("FromELAN error: %v", err)
	}
	return tr
}

func TestFromELANTierBased(t *testing.T) {
	tr := buildTranscript(t, tierDocEAF, nil)

	if tr.Version != Bela2 {
		t.Errorf("Version = %q, want %q", tr.Version, Bela2)
	}
	if len(tr.Persons) != 3 {
		t.Fatalf("len(Persons) = %d, want 3", len(tr.Persons))
	}

	mary := tr.Persons[0]
	if mary.Code != "MOT" || mary.Name != "Mary" || mary.Role != RoleCaregiver {
		t.Errorf("Persons[0] = %s/%s/%s, want Mary/MOT/caregiver", mary.Name, mary.Code, mary.Role)
	}
	ben := tr.Persons[1]
	if ben.Code != "CHI" || ben.Role != RoleChild {
		t.Errorf("Persons[1] = %s/%s, want CHI/child", ben.Code, ben.Role)
	}
	if tr.Persons[2].Code != TranscriberCode || tr.Persons[2].Role != RoleTranscriber {
		t.Errorf("Persons[2] = %s/%s, want transcriber", tr.Persons[2].Code, tr.Persons[2].Role)
	}

	if len(mary.Utterances) != 1 {
		t.Fatalf("Mary utterances = %d, want 1", len(mary.Utterances))
	}
	u := mary.Utterances[0]
	if u.Start != 0 || u.End != 2000 || u.Text != "hello 宝宝" {
		t.Errorf("utterance = %q [%d -- %d]", u.Text, u.Start, u.End)
	}
	if u.Translation != "hai bayi" {
		t.Errorf("Translation = %q, want %q", u.Translation, "hai bayi")
	}
	if len(u.Chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(u.Chunks))
	}
	if u.Chunks[0].Text != "hello" || u.Chunks[0].Language != "English" {
		t.Errorf("chunk 0 = %q/%q", u.Chunks[0].Text, u.Chunks[0].Language)
	}
	if u.Chunks[1].Text != "宝宝" || u.Chunks[1].Language != "Mandarin" {
		t.Errorf("chunk 1 = %q/%q", u.Chunks[1].Text, u.Chunks[1].Language)
	}

	if len(ben.Utterances) != 1 || len(ben.Utterances[0].Chunks) != 1 {
		t.Fatalf("Ben utterances/chunks malformed: %+v", ben.Utterances)
	}
	if ben.Utterances[0].Chunks[0].Language != "Vocal Sounds" {
		t.Errorf("Ben chunk language = %q", ben.Utterances[0].Chunks[0].Language)
	}

	if tr.HasErrors() {
		t.Errorf("unexpected error issues: %v", tr.Issues)
	}
	if n := tr.CountUtterances(); n != 3 {
		t.Errorf("CountUtterances = %d, want 3", n)
	}
	if n := tr.CountChunks(); n != 3 {
		t.Errorf("CountChunks = %d, want 3", n)
	}
	langs := tr.Languages()
	if len(langs) != 3 {
		t.Errorf("Languages = %v, want 3 entries", langs)
	}
}

const inlineDocEAF = `<?xml version="1.0" encoding="UTF-8"?>
<ANNOTATION_DOCUMENT AUTHOR="tester" DATE="2024-03-01T10:00:00+08:00" VERSION="3.0">
  <HEADER TIME_UNITS="milliseconds"/>
  <TIME_ORDER>
    <TIME_SLOT TIME_SLOT_ID="ts1" TIME_VALUE="0"/>
    <TIME_SLOT TIME_SLOT_ID="ts2" TIME_VALUE="2000"/>
    <TIME_SLOT TIME_SLOT_ID="ts3" TIME_VALUE="3000"/>
  </TIME_ORDER>
  <TIER LINGUISTIC_TYPE_REF="Utterance" TIER_ID="Alice (Utterance)" PARTICIPANT="A">
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="a1" TIME_SLOT_REF1="ts1" TIME_SLOT_REF2="ts2">
        <ANNOTATION_VALUE>hello[en] bonjour[fr]</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
  </TIER>
  <TIER LINGUISTIC_TYPE_REF="Translation" TIER_ID="Alice (Translation)" PARTICIPANT="A" PARENT_REF="Alice (Utterance)">
    <ANNOTATION>
      <REF_ANNOTATION ANNOTATION_ID="t1" ANNOTATION_REF="a1">
        <ANNOTATION_VALUE>hi there</ANNOTATION_VALUE>
      </REF_ANNOTATION>
    </ANNOTATION>
  </TIER>
  <TIER LINGUISTIC_TYPE_REF="Utterance" TIER_ID="Bob (Utterance)" PARTICIPANT="B">
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="a2" TIME_SLOT_REF1="ts2" TIME_SLOT_REF2="ts3">
        <ANNOTATION_VALUE>ok then</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
  </TIER>
</ANNOTATION_DOCUMENT>`

func TestInlineLanguageMarkers(t *testing.T) {
	tr := buildTranscript(t, inlineDocEAF, nil)

	alice := tr.Person("A")
	if alice == nil || len(alice.Utterances) != 1 {
		t.Fatalf("person A missing or malformed")
	}
	u := alice.Utterances[0]
	if len(u.Chunks) != 2 {
		t.Fatalf("chunks = %d, want 2 (%v)", len(u.Chunks), tr.Issues)
	}
	if u.Chunks[0].Text != "hello" || u.Chunks[0].Language != "en" {
		t.Errorf("chunk 0 = %q/%q, want hello/en", u.Chunks[0].Text, u.Chunks[0].Language)
	}
	if u.Chunks[1].Text != "bonjour" || u.Chunks[1].Language != "fr" {
		t.Errorf("chunk 1 = %q/%q, want bonjour/fr", u.Chunks[1].Text, u.Chunks[1].Language)
	}
	if u.Chunks[0].Start != 0 || u.Chunks[1].End != 2000 {
		t.Errorf("chunk times do not span the utterance: %+v", u.Chunks)
	}
	if u.Chunks[0].End != u.Chunks[1].Start {
		t.Errorf("chunks overlap or leave a gap: %+v", u.Chunks)
	}
	if u.Translation != "hi there" {
		t.Errorf("Translation = %q, want %q", u.Translation, "hi there")
	}
	if tr.HasErrors() {
		t.Errorf("unexpected error issues: %v", tr.Issues)
	}
}

const badVocalEAF = `<?xml version="1.0" encoding="UTF-8"?>
<ANNOTATION_DOCUMENT AUTHOR="tester" DATE="2024-03-01T10:00:00+08:00" VERSION="3.0">
  <HEADER TIME_UNITS="milliseconds"/>
  <TIME_ORDER>
    <TIME_SLOT TIME_SLOT_ID="ts1" TIME_VALUE="0"/>
    <TIME_SLOT TIME_SLOT_ID="ts2" TIME_VALUE="2000"/>
  </TIME_ORDER>
  <TIER LINGUISTIC_TYPE_REF="Utterance" TIER_ID="Mary (Utterance)" PARTICIPANT="MOT">
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="a1" TIME_SLOT_REF1="ts1" TIME_SLOT_REF2="ts2">
        <ANNOTATION_VALUE>:v:xyz</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
  </TIER>
  <TIER LINGUISTIC_TYPE_REF="Chunk" TIER_ID="Mary (Chunk)" PARTICIPANT="MOT" PARENT_REF="Mary (Utterance)">
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="c1" TIME_SLOT_REF1="ts1" TIME_SLOT_REF2="ts2">
        <ANNOTATION_VALUE>:v:xyz</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
  </TIER>
  <TIER LINGUISTIC_TYPE_REF="Language" TIER_ID="Mary (Language)" PARTICIPANT="MOT" PARENT_REF="Mary (Chunk)">
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="l1" TIME_SLOT_REF1="ts1" TIME_SLOT_REF2="ts2">
        <ANNOTATION_VALUE>Vocal Sounds</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
  </TIER>
</ANNOTATION_DOCUMENT>`

func TestDecodeFailureKeepsUtterance(t *testing.T) {
	tr := buildTranscript(t, badVocalEAF, nil)

	mary := tr.Person("MOT")
	if mary == nil || len(mary.Utterances) != 1 {
		t.Fatalf("person MOT missing or malformed")
	}
	u := mary.Utterances[0]
	if u.Chunks == nil {
		t.Fatalf("Chunks is nil, want empty slice")
	}
	if len(u.Chunks) != 0 {
		t.Errorf("Chunks = %d, want 0 after decode failure", len(u.Chunks))
	}
	if len(tr.IssuesOf(IssueDecode)) == 0 {
		t.Errorf("no decode issues collected: %v", tr.Issues)
	}
}

const versionedEAF = `<?xml version="1.0" encoding="UTF-8"?>
<ANNOTATION_DOCUMENT AUTHOR="tester" DATE="2024-03-01T10:00:00+08:00" VERSION="3.0">
  <HEADER TIME_UNITS="milliseconds">
    <PROPERTY NAME="belaVersion">%s</PROPERTY>
  </HEADER>
  <TIME_ORDER>
    <TIME_SLOT TIME_SLOT_ID="ts1" TIME_VALUE="0"/>
    <TIME_SLOT TIME_SLOT_ID="ts2" TIME_VALUE="1000"/>
  </TIME_ORDER>
  <TIER LINGUISTIC_TYPE_REF="Utterance" TIER_ID="Mary (Utterance)" PARTICIPANT="MOT">
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="a1" TIME_SLOT_REF1="ts1" TIME_SLOT_REF2="ts2">
        <ANNOTATION_VALUE>hello</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
  </TIER>
</ANNOTATION_DOCUMENT>`

func TestVersionMarkers(t *testing.T) {
	legacy := buildTranscript(t, fmt.Sprintf(versionedEAF, "bela1"), nil)
	if legacy.Version != Bela1 {
		t.Errorf("Version = %q, want %q", legacy.Version, Bela1)
	}

	doc, err := elan.Parse([]byte(fmt.Sprintf(versionedEAF, "bela9")))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	_, err = FromELAN(doc, nil)
	if err == nil {
		t.Fatalf("FromELAN accepted unknown version marker")
	}
	var verr *errors.VersionError
	if !errors.As(err, &verr) {
		t.Errorf("error = %v, want VersionError", err)
	}
	if !errors.IsFatal(err) {
		t.Errorf("IsFatal(%v) = false, want true", err)
	}
}

const brokenTimesEAF = `<?xml version="1.0" encoding="UTF-8"?>
<ANNOTATION_DOCUMENT AUTHOR="tester" DATE="2024-03-01T10:00:00+08:00" VERSION="3.0">
  <HEADER TIME_UNITS="milliseconds"/>
  <TIME_ORDER>
    <TIME_SLOT TIME_SLOT_ID="ts1" TIME_VALUE="1000"/>
    <TIME_SLOT TIME_SLOT_ID="ts2"/>
    <TIME_SLOT TIME_SLOT_ID="ts3" TIME_VALUE="3000"/>
    <TIME_SLOT TIME_SLOT_ID="ts4" TIME_VALUE="2500"/>
  </TIME_ORDER>
  <TIER LINGUISTIC_TYPE_REF="Utterance" TIER_ID="Mary (Utterance)" PARTICIPANT="MOT">
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="a1" TIME_SLOT_REF1="ts1" TIME_SLOT_REF2="ts2">
        <ANNOTATION_VALUE>hello</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="a2" TIME_SLOT_REF1="ts3" TIME_SLOT_REF2="ts4">
        <ANNOTATION_VALUE>again</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
  </TIER>
</ANNOTATION_DOCUMENT>`

func TestTimestampRepair(t *testing.T) {
	tr := buildTranscript(t, brokenTimesEAF, nil)

	mary := tr.Person("MOT")
	if mary == nil || len(mary.Utterances) != 2 {
		t.Fatalf("person MOT missing or malformed")
	}
	for _, u := range mary.Utterances {
		if u.End < u.Start {
			t.Errorf("utterance %q not repaired: [%d -- %d]", u.Text, u.Start, u.End)
		}
	}
	if len(tr.IssuesOf(IssueTimestamp)) != 2 {
		t.Errorf("timestamp issues = %d, want 2: %v", len(tr.IssuesOf(IssueTimestamp)), tr.Issues)
	}
}

const dupTierEAF = `<?xml version="1.0" encoding="UTF-8"?>
<ANNOTATION_DOCUMENT AUTHOR="tester" DATE="2024-03-01T10:00:00+08:00" VERSION="3.0">
  <HEADER TIME_UNITS="milliseconds"/>
  <TIME_ORDER>
    <TIME_SLOT TIME_SLOT_ID="ts1" TIME_VALUE="0"/>
    <TIME_SLOT TIME_SLOT_ID="ts2" TIME_VALUE="1000"/>
  </TIME_ORDER>
  <TIER LINGUISTIC_TYPE_REF="Utterance" TIER_ID="Mary (Utterance)" PARTICIPANT="MOT">
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="a1" TIME_SLOT_REF1="ts1" TIME_SLOT_REF2="ts2">
        <ANNOTATION_VALUE>hello</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
  </TIER>
  <TIER LINGUISTIC_TYPE_REF="Utterance" TIER_ID="Mary B (Utterance)" PARTICIPANT="MOT">
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="a2" TIME_SLOT_REF1="ts1" TIME_SLOT_REF2="ts2">
        <ANNOTATION_VALUE>again</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
  </TIER>
</ANNOTATION_DOCUMENT>`

func TestDuplicateUtteranceTier(t *testing.T) {
	tr := buildTranscript(t, dupTierEAF, nil)

	if len(tr.Persons) != 1 {
		t.Fatalf("len(Persons) = %d, want 1", len(tr.Persons))
	}
	if len(tr.Persons[0].Utterances) != 1 {
		t.Errorf("first tier should win, got %d utterances", len(tr.Persons[0].Utterances))
	}
	found := false
	for _, issue := range tr.IssuesOf(IssueTierStructure) {
		if issue.Severity == SeverityError {
			found = true
		}
	}
	if !found {
		t.Errorf("no tier-structure error collected: %v", tr.Issues)
	}
}

func TestReadEAF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session01.eaf")
	if err := os.WriteFile(path, []byte(tierDocEAF), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	tr, err := ReadEAF(path, nil)
	if err != nil {
		t.Fatalf("ReadEAF error: %v", err)
	}
	if tr.Path != path {
		t.Errorf("Path = %q, want %q", tr.Path, path)
	}
	if len(tr.SourceHash) != 64 {
		t.Errorf("SourceHash = %q, want 64 hex chars", tr.SourceHash)
	}
	if tr.MediaFile != "session01.wav" {
		t.Errorf("MediaFile = %q", tr.MediaFile)
	}
	if tr.MediaURL() != "file:///recordings/session01.wav" {
		t.Errorf("MediaURL = %q", tr.MediaURL())
	}
	if tr.RelativeMediaURL() != "./session01.wav" {
		t.Errorf("RelativeMediaURL = %q", tr.RelativeMediaURL())
	}

	if _, err := ReadEAF(filepath.Join(dir, "missing.eaf"), nil); err == nil {
		t.Errorf("ReadEAF accepted a missing file")
	}
}

func TestTurns(t *testing.T) {
	tr := buildTranscript(t, tierDocEAF, nil)

	turns := tr.Turns(0)
	if len(turns) != 1 {
		t.Fatalf("Turns = %d, want 1", len(turns))
	}
	if turns[0].FromPerson.Code != "MOT" || turns[0].ToPerson.Code != "CHI" {
		t.Errorf("turn = %s -> %s, want MOT -> CHI", turns[0].FromPerson.Code, turns[0].ToPerson.Code)
	}
	if turns[0].Gap != 500 {
		t.Errorf("Gap = %d, want 500", turns[0].Gap)
	}

	if got := tr.Turns(100); len(got) != 0 {
		t.Errorf("Turns(100) = %d, want 0", len(got))
	}
}

func TestLanguageMix(t *testing.T) {
	tr := buildTranscript(t, tierDocEAF, nil)

	mix := tr.LanguageMix(-1)
	if len(mix.Spans) != 3 {
		t.Fatalf("spans = %d, want 3: %+v", len(mix.Spans), mix.Spans)
	}
	if mix.Length != 3500 {
		t.Errorf("Length = %d, want 3500", mix.Length)
	}
	want := []LanguageSpan{
		{Language: "English", Start: 0, End: 1000, Duration: 1000},
		{Language: "Mandarin", Start: 1000, End: 2000, Duration: 1000},
		{Language: "Vocal Sounds", Start: 2500, End: 4000, Duration: 1500},
	}
	for i, span := range mix.Spans {
		if span != want[i] {
			t.Errorf("span %d = %+v, want %+v", i, span, want[i])
		}
	}

	head := tr.LanguageMix(2000)
	if len(head.Spans) != 2 || head.Length != 2000 {
		t.Errorf("LanguageMix(2000) = %+v", head)
	}

	totals := mix.Totals()
	if totals["English"] != 1000 || totals["Vocal Sounds"] != 1500 {
		t.Errorf("Totals = %v", totals)
	}
}

const overlapTransEAF = `<?xml version="1.0" encoding="UTF-8"?>
<ANNOTATION_DOCUMENT AUTHOR="tester" DATE="2024-03-01T10:00:00+08:00" VERSION="3.0">
  <HEADER TIME_UNITS="milliseconds"/>
  <TIME_ORDER>
    <TIME_SLOT TIME_SLOT_ID="ts1" TIME_VALUE="0"/>
    <TIME_SLOT TIME_SLOT_ID="ts2" TIME_VALUE="5000"/>
    <TIME_SLOT TIME_SLOT_ID="ts3" TIME_VALUE="6000"/>
    <TIME_SLOT TIME_SLOT_ID="ts4" TIME_VALUE="9000"/>
    <TIME_SLOT TIME_SLOT_ID="ts5" TIME_VALUE="10000"/>
    <TIME_SLOT TIME_SLOT_ID="ts6" TIME_VALUE="15000"/>
  </TIME_ORDER>
  <TIER LINGUISTIC_TYPE_REF="Utterance" TIER_ID="Mary (Utterance)" PARTICIPANT="MOT">
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="a1" TIME_SLOT_REF1="ts1" TIME_SLOT_REF2="ts5">
        <ANNOTATION_VALUE>hello there</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="a2" TIME_SLOT_REF1="ts2" TIME_SLOT_REF2="ts6">
        <ANNOTATION_VALUE>again now</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
  </TIER>
  <TIER LINGUISTIC_TYPE_REF="Translation" TIER_ID="Mary (Translation)" PARTICIPANT="MOT" PARENT_REF="Mary (Utterance)">
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="t1" TIME_SLOT_REF1="ts3" TIME_SLOT_REF2="ts4">
        <ANNOTATION_VALUE>hai lagi</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
  </TIER>
</ANNOTATION_DOCUMENT>`

func TestAmbiguousTranslationDropped(t *testing.T) {
	tr := buildTranscript(t, overlapTransEAF, nil)

	mary := tr.Person("MOT")
	if mary == nil || len(mary.Utterances) != 2 {
		t.Fatalf("person MOT missing or malformed")
	}
	for _, u := range mary.Utterances {
		if u.Translation != "" {
			t.Errorf("utterance %q got translation %q, want none", u.Text, u.Translation)
		}
	}
	found := false
	for _, issue := range tr.IssuesOf(IssueUnresolvedLink) {
		if strings.Contains(issue.Message, "more than one utterance") {
			found = true
		}
	}
	if !found {
		t.Errorf("no ambiguous-translation issue collected: %v", tr.Issues)
	}
}

const orphanTransEAF = `<?xml version="1.0" encoding="UTF-8"?>
<ANNOTATION_DOCUMENT AUTHOR="tester" DATE="2024-03-01T10:00:00+08:00" VERSION="3.0">
  <HEADER TIME_UNITS="milliseconds"/>
  <TIME_ORDER>
    <TIME_SLOT TIME_SLOT_ID="ts1" TIME_VALUE="0"/>
    <TIME_SLOT TIME_SLOT_ID="ts2" TIME_VALUE="2000"/>
    <TIME_SLOT TIME_SLOT_ID="ts3" TIME_VALUE="20000"/>
    <TIME_SLOT TIME_SLOT_ID="ts4" TIME_VALUE="21000"/>
  </TIME_ORDER>
  <TIER LINGUISTIC_TYPE_REF="Utterance" TIER_ID="Mary (Utterance)" PARTICIPANT="MOT">
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="a1" TIME_SLOT_REF1="ts1" TIME_SLOT_REF2="ts2">
        <ANNOTATION_VALUE>hello</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
  </TIER>
  <TIER LINGUISTIC_TYPE_REF="Translation" TIER_ID="Mary (Translation)" PARTICIPANT="MOT" PARENT_REF="Mary (Utterance)">
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="t1" TIME_SLOT_REF1="ts3" TIME_SLOT_REF2="ts4">
        <ANNOTATION_VALUE>hai</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
  </TIER>
</ANNOTATION_DOCUMENT>`

func TestOrphanTranslationDropped(t *testing.T) {
	tr := buildTranscript(t, orphanTransEAF, nil)

	mary := tr.Person("MOT")
	if mary == nil || len(mary.Utterances) != 1 {
		t.Fatalf("person MOT missing or malformed")
	}
	if got := mary.Utterances[0].Translation; got != "" {
		t.Errorf("Translation = %q, want empty", got)
	}
	found := false
	for _, issue := range tr.IssuesOf(IssueUnresolvedLink) {
		if strings.Contains(issue.Message, "could not be linked") {
			found = true
		}
	}
	if !found {
		t.Errorf("no orphan-translation issue collected: %v", tr.Issues)
	}
}

const mismatchedChunkEAF = `<?xml version="1.0" encoding="UTF-8"?>
<ANNOTATION_DOCUMENT AUTHOR="tester" DATE="2024-03-01T10:00:00+08:00" VERSION="3.0">
  <HEADER TIME_UNITS="milliseconds"/>
  <TIME_ORDER>
    <TIME_SLOT TIME_SLOT_ID="ts1" TIME_VALUE="0"/>
    <TIME_SLOT TIME_SLOT_ID="ts2" TIME_VALUE="2000"/>
  </TIME_ORDER>
  <TIER LINGUISTIC_TYPE_REF="Utterance" TIER_ID="Mary (Utterance)" PARTICIPANT="MOT">
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="a1" TIME_SLOT_REF1="ts1" TIME_SLOT_REF2="ts2">
        <ANNOTATION_VALUE>hello world</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
  </TIER>
  <TIER LINGUISTIC_TYPE_REF="Chunk" TIER_ID="Mary (Chunk)" PARTICIPANT="MOT" PARENT_REF="Mary (Utterance)">
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="c1" TIME_SLOT_REF1="ts1" TIME_SLOT_REF2="ts2">
        <ANNOTATION_VALUE>hello there</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
  </TIER>
  <TIER LINGUISTIC_TYPE_REF="Language" TIER_ID="Mary (Language)" PARTICIPANT="MOT" PARENT_REF="Mary (Chunk)">
    <ANNOTATION>
      <ALIGNABLE_ANNOTATION ANNOTATION_ID="l1" TIME_SLOT_REF1="ts1" TIME_SLOT_REF2="ts2">
        <ANNOTATION_VALUE>English</ANNOTATION_VALUE>
      </ALIGNABLE_ANNOTATION>
    </ANNOTATION>
  </TIER>
</ANNOTATION_DOCUMENT>`

func TestChunkTextMismatch(t *testing.T) {
	tr := buildTranscript(t, mismatchedChunkEAF, nil)

	issues := tr.IssuesOf(IssueTextMismatch)
	if len(issues) != 1 {
		t.Fatalf("text-mismatch issues = %d, want 1: %v", len(issues), tr.Issues)
	}
	if issues[0].Severity != SeverityError {
		t.Errorf("Severity = %q, want %q", issues[0].Severity, SeverityError)
	}
	if !tr.HasErrors() {
		t.Errorf("HasErrors() = false, want true")
	}
}
