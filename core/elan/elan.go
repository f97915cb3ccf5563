// Package elan reads ELAN annotation format (EAF) documents.
//
// It is the tier extractor for the BELA decoder: it resolves the XML
// container into an ordered sequence of tiers and timestamped annotation
// records and nothing more. Convention decoding lives in core/bela.
//
// The xmlquery library is used for parsing, which uses Go's encoding/xml
// internally and inherits its security properties (no external entity
// fetching).
package elan

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/blip-corpus/bela/core/errors"
)

// NoTime marks an annotation endpoint whose time slot carries no value.
// EAF allows interior slots of a subdivision to be unvalued; consumers
// decide how to repair them.
const NoTime int64 = -1

// Document is a parsed EAF document.
type Document struct {
	// Path is the source file path, or ":memory:" for byte input.
	Path string

	// Author and Date come from the ANNOTATION_DOCUMENT attributes.
	Author string
	Date   string

	// FormatVersion is the EAF schema version (e.g. "3.0").
	FormatVersion string

	// MediaFile, MediaURL and RelativeMediaURL come from the first
	// media descriptor in the header.
	MediaFile        string
	MediaURL         string
	RelativeMediaURL string

	properties map[string]string
	tiers      []*Tier
	annByID    map[string]*Annotation

	root *xmlquery.Node
}

// Tier is one named annotation track.
type Tier struct {
	// ID is the tier label (e.g. "Mary (Utterance)").
	ID string

	// Participant is the person code attached to the tier, if any.
	Participant string

	// LinguisticType is the LINGUISTIC_TYPE_REF attribute.
	LinguisticType string

	// ParentRef names the parent tier for dependent tiers.
	ParentRef string

	// Annotations holds the tier's records in document order.
	Annotations []*Annotation
}

// Annotation is one timestamped text record.
type Annotation struct {
	// ID is the annotation identifier (e.g. "a42").
	ID string

	// RefID names the referent annotation for reference annotations;
	// empty for alignable annotations.
	RefID string

	// Value is the raw annotation text.
	Value string

	// Start and End are milliseconds, or NoTime when the slot carries
	// no value. Reference annotations inherit their referent's range.
	Start int64
	End   int64

	// Tier points back to the owning tier.
	Tier *Tier
}

// HasTime reports whether both endpoints carry resolved time values.
func (a *Annotation) HasTime() bool {
	return a.Start != NoTime && a.End != NoTime
}

// Duration returns End-Start in milliseconds, or 0 when either endpoint
// is unresolved.
func (a *Annotation) Duration() int64 {
	if !a.HasTime() {
		return 0
	}
	return a.End - a.Start
}

// Tiers returns the document's tiers in document order.
func (d *Document) Tiers() []*Tier {
	return d.tiers
}

// Tier returns the tier with the given label, or nil.
func (d *Document) Tier(id string) *Tier {
	for _, t := range d.tiers {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Annotation returns the annotation with the given ID, or nil.
func (d *Document) Annotation(id string) *Annotation {
	return d.annByID[id]
}

// Property returns a document-level header property value.
func (d *Document) Property(name string) string {
	return d.properties[name]
}

// Query executes an XPath expression against the raw document and returns
// the matching nodes. It is an escape hatch for corpus tooling; decoding
// never needs it.
func (d *Document) Query(expr string) ([]*xmlquery.Node, error) {
	if _, err := xpath.Compile(expr); err != nil {
		return nil, fmt.Errorf("invalid xpath: %w", err)
	}
	nodes, err := xmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath query failed: %w", err)
	}
	return nodes, nil
}

// ReadEAF opens and parses an EAF file.
func ReadEAF(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewDocument(path, "cannot read file", err)
	}
	doc, err := Parse(data)
	if err != nil {
		var derr *errors.DocumentError
		if errors.As(err, &derr) {
			derr.Path = path
		}
		return nil, err
	}
	doc.Path = path
	return doc, nil
}

// Parse parses EAF XML bytes into a Document. A structurally broken input
// (not XML, wrong root element, dangling time slot or annotation
// references) yields a DocumentError and no Document.
func Parse(data []byte) (*Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewDocument("", "parsing XML", err)
	}

	docNode := xmlquery.FindOne(root, "/ANNOTATION_DOCUMENT")
	if docNode == nil {
		return nil, errors.NewDocument("", "no ANNOTATION_DOCUMENT root element", nil)
	}

	doc := &Document{
		Path:          ":memory:",
		Author:        docNode.SelectAttr("AUTHOR"),
		Date:          docNode.SelectAttr("DATE"),
		FormatVersion: docNode.SelectAttr("VERSION"),
		properties:    map[string]string{},
		annByID:       map[string]*Annotation{},
		root:          root,
	}

	if header := xmlquery.FindOne(docNode, "HEADER"); header != nil {
		doc.MediaFile = header.SelectAttr("MEDIA_FILE")
		if md := xmlquery.FindOne(header, "MEDIA_DESCRIPTOR"); md != nil {
			doc.MediaURL = md.SelectAttr("MEDIA_URL")
			doc.RelativeMediaURL = md.SelectAttr("RELATIVE_MEDIA_URL")
		}
		for _, prop := range xmlquery.Find(header, "PROPERTY") {
			name := prop.SelectAttr("NAME")
			if name != "" {
				doc.properties[name] = strings.TrimSpace(prop.InnerText())
			}
		}
	}

	slots, err := parseTimeOrder(docNode)
	if err != nil {
		return nil, err
	}

	for _, tierNode := range xmlquery.Find(docNode, "TIER") {
		tier := &Tier{
			ID:             tierNode.SelectAttr("TIER_ID"),
			Participant:    tierNode.SelectAttr("PARTICIPANT"),
			LinguisticType: tierNode.SelectAttr("LINGUISTIC_TYPE_REF"),
			ParentRef:      tierNode.SelectAttr("PARENT_REF"),
		}
		for _, annNode := range xmlquery.Find(tierNode, "ANNOTATION") {
			ann, err := parseAnnotation(annNode, tier, slots)
			if err != nil {
				return nil, err
			}
			if ann == nil {
				continue
			}
			tier.Annotations = append(tier.Annotations, ann)
			if ann.ID != "" {
				doc.annByID[ann.ID] = ann
			}
		}
		doc.tiers = append(doc.tiers, tier)
	}

	if err := doc.resolveRefTimes(); err != nil {
		return nil, err
	}

	return doc, nil
}

// timeSlot holds a parsed TIME_SLOT entry; unvalued slots map to NoTime.
func parseTimeOrder(docNode *xmlquery.Node) (map[string]int64, error) {
	slots := map[string]int64{}
	for _, slotNode := range xmlquery.Find(docNode, "TIME_ORDER/TIME_SLOT") {
		id := slotNode.SelectAttr("TIME_SLOT_ID")
		if id == "" {
			return nil, errors.NewDocument("", "TIME_SLOT without TIME_SLOT_ID", nil)
		}
		value := slotNode.SelectAttr("TIME_VALUE")
		if value == "" {
			slots[id] = NoTime
			continue
		}
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, errors.NewDocument("", fmt.Sprintf("time slot %s has non-numeric value %q", id, value), err)
		}
		slots[id] = ms
	}
	return slots, nil
}

func parseAnnotation(annNode *xmlquery.Node, tier *Tier, slots map[string]int64) (*Annotation, error) {
	if alignable := xmlquery.FindOne(annNode, "ALIGNABLE_ANNOTATION"); alignable != nil {
		ref1 := alignable.SelectAttr("TIME_SLOT_REF1")
		ref2 := alignable.SelectAttr("TIME_SLOT_REF2")
		start, ok1 := slots[ref1]
		end, ok2 := slots[ref2]
		if !ok1 || !ok2 {
			return nil, errors.NewDocument("",
				fmt.Sprintf("annotation %s in tier %q references unknown time slot",
					alignable.SelectAttr("ANNOTATION_ID"), tier.ID), nil)
		}
		return &Annotation{
			ID:    alignable.SelectAttr("ANNOTATION_ID"),
			Value: annotationValue(alignable),
			Start: start,
			End:   end,
			Tier:  tier,
		}, nil
	}

	if refAnn := xmlquery.FindOne(annNode, "REF_ANNOTATION"); refAnn != nil {
		return &Annotation{
			ID:    refAnn.SelectAttr("ANNOTATION_ID"),
			RefID: refAnn.SelectAttr("ANNOTATION_REF"),
			Value: annotationValue(refAnn),
			Start: NoTime,
			End:   NoTime,
			Tier:  tier,
		}, nil
	}

	// Empty ANNOTATION wrappers appear in files edited by hand; skip them.
	return nil, nil
}

func annotationValue(node *xmlquery.Node) string {
	if v := xmlquery.FindOne(node, "ANNOTATION_VALUE"); v != nil {
		return v.InnerText()
	}
	return ""
}

// resolveRefTimes copies time ranges from referents onto reference
// annotations. Chains (a ref of a ref) resolve in passes; a dangling or
// cyclic reference is a structural failure.
func (d *Document) resolveRefTimes() error {
	resolved := map[string]bool{}
	var pending []*Annotation
	for _, tier := range d.tiers {
		for _, ann := range tier.Annotations {
			if ann.RefID == "" {
				resolved[ann.ID] = true
				continue
			}
			if _, ok := d.annByID[ann.RefID]; !ok {
				return errors.NewDocument("",
					fmt.Sprintf("annotation %s references unknown annotation %s", ann.ID, ann.RefID), nil)
			}
			pending = append(pending, ann)
		}
	}

	for len(pending) > 0 {
		progressed := false
		var remaining []*Annotation
		for _, ann := range pending {
			if !resolved[ann.RefID] {
				remaining = append(remaining, ann)
				continue
			}
			referent := d.annByID[ann.RefID]
			ann.Start = referent.Start
			ann.End = referent.End
			resolved[ann.ID] = true
			progressed = true
		}
		if !progressed {
			return errors.NewDocument("", "cyclic annotation references", nil)
		}
		pending = remaining
	}
	return nil
}
