// Package refdata loads the versioned reference data the BELA convention
// decoder and the lexical analyser consult: the enumerated language and
// vocalization code sets and the optional per-language lexicons.
//
// A default set is embedded in the binary; corpora that maintain their own
// reference data can load an override file with LoadFile. A Set is immutable
// after load and safe to share between goroutines.
package refdata

import (
	"embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/blip-corpus/bela/internal/logging"
)

//go:embed data/convention.yaml data/lexicons/*.txt
var dataFS embed.FS

// file is the on-disk/embedded YAML shape.
type file struct {
	Version         string            `yaml:"version"`
	Languages       []string          `yaml:"languages"`
	LanguageClasses []string          `yaml:"language_classes"`
	VocalSounds     []string          `yaml:"vocal_sounds"`
	VocalGroups     []string          `yaml:"vocal_groups"`
	NonVocalSounds  []string          `yaml:"non_vocal_sounds"`
	Keywords        []string          `yaml:"keywords"`
	Lexicons        map[string]string `yaml:"lexicons"`
}

// Set is an immutable bundle of convention reference data.
type Set struct {
	version         string
	languages       []string
	languageClasses []string
	languageSet     map[string]bool
	vocalSounds     map[string]bool
	vocalGroups     map[string]bool
	nonVocalSounds  map[string]bool
	keywords        map[string]bool
	lexiconPaths    map[string]string // language -> embedded path or external file
	embedded        bool
}

// Version returns the reference data version string.
func (s *Set) Version() string { return s.version }

// Languages returns the known language names in declaration order.
func (s *Set) Languages() []string {
	out := make([]string, len(s.languages))
	copy(out, s.languages)
	return out
}

// LanguageClasses returns the non-language chunk classes (e.g. "Vocal Sounds").
func (s *Set) LanguageClasses() []string {
	out := make([]string, len(s.languageClasses))
	copy(out, s.languageClasses)
	return out
}

// IsKnownLanguage reports whether name is an enumerated language.
func (s *Set) IsKnownLanguage(name string) bool { return s.languageSet[name] }

// IsLanguageClass reports whether name is a non-language chunk class.
func (s *Set) IsLanguageClass(name string) bool {
	for _, c := range s.languageClasses {
		if c == name {
			return true
		}
	}
	return false
}

// IsVocalSound reports whether code belongs to the closed vocal sound set
// (the ":v:<code>" form).
func (s *Set) IsVocalSound(code string) bool { return s.vocalSounds[code] }

// IsVocalGroup reports whether code is a valid vocal group marker
// (the ":v:<group>:<words>" form).
func (s *Set) IsVocalGroup(code string) bool { return s.vocalGroups[code] }

// IsNonVocalSound reports whether code belongs to the closed non-vocal
// sound set (the ":s:<code>" form).
func (s *Set) IsNonVocalSound(code string) bool { return s.nonVocalSounds[code] }

// IsKeyword reports whether word is a reserved convention keyword
// (placeholder names such as "babyname").
func (s *Set) IsKeyword(word string) bool { return s.keywords[word] }

// SortLanguages orders language names with known languages first, in their
// declaration order, then everything else alphabetically.
func (s *Set) SortLanguages(names []string) []string {
	rank := make(map[string]int, len(s.languages))
	for i, l := range s.languages {
		rank[l] = i
	}
	out := make([]string, len(names))
	copy(out, names)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iKnown := rank[out[i]]
		rj, jKnown := rank[out[j]]
		if iKnown != jKnown {
			return iKnown
		}
		if iKnown {
			return ri < rj
		}
		return out[i] < out[j]
	})
	return out
}

// build converts the YAML shape into an immutable Set.
func build(f *file, embedded bool) *Set {
	s := &Set{
		version:         f.Version,
		languages:       f.Languages,
		languageClasses: f.LanguageClasses,
		languageSet:     toSet(f.Languages),
		vocalSounds:     toSet(f.VocalSounds),
		vocalGroups:     toSet(f.VocalGroups),
		nonVocalSounds:  toSet(f.NonVocalSounds),
		keywords:        toSet(f.Keywords),
		lexiconPaths:    f.Lexicons,
		embedded:        embedded,
	}
	if s.lexiconPaths == nil {
		s.lexiconPaths = map[string]string{}
	}
	return s
}

func toSet(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

// defaultSet is parsed once at package init; the embedded YAML is part of
// the binary, so a parse failure is a build defect, not a runtime condition.
var defaultSet = func() *Set {
	data, err := dataFS.ReadFile("data/convention.yaml")
	if err != nil {
		panic(fmt.Sprintf("refdata: embedded convention.yaml missing: %v", err))
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		panic(fmt.Sprintf("refdata: embedded convention.yaml invalid: %v", err))
	}
	return build(&f, true)
}()

// Default returns the embedded reference data set.
func Default() *Set {
	return defaultSet
}

// LoadFile loads a reference data override from a YAML file. Lexicon paths
// in the file are resolved relative to the process working directory.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading reference data: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing reference data %s: %w", path, err)
	}
	logging.ReferenceData("convention", path, "version", f.Version)
	return build(&f, false), nil
}
