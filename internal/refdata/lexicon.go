package refdata

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ulikunitz/xz"

	"github.com/blip-corpus/bela/core/errors"
	"github.com/blip-corpus/bela/internal/logging"
)

// Lexicon is a set of known word forms for one language.
type Lexicon map[string]struct{}

// Contains reports whether the lexicon holds the given word form.
func (l Lexicon) Contains(word string) bool {
	_, ok := l[word]
	return ok
}

var (
	lexiconMu    sync.Mutex
	lexiconCache = map[string]Lexicon{}
)

// Lexicon returns the word list for the given language.
//
// Languages with no configured lexicon return a ReferenceDataError wrapping
// ErrMissingReferenceData; callers skip the dependent lookups rather than
// failing the analysis.
func (s *Set) Lexicon(language string) (Lexicon, error) {
	path, ok := s.lexiconPaths[language]
	if !ok {
		return nil, errors.NewReferenceData("lexicon:"+language, nil)
	}

	cacheKey := language + "\x00" + path
	lexiconMu.Lock()
	defer lexiconMu.Unlock()
	if lex, ok := lexiconCache[cacheKey]; ok {
		return lex, nil
	}

	var (
		lex Lexicon
		err error
	)
	if s.embedded {
		lex, err = readEmbeddedLexicon("data/" + path)
	} else {
		lex, err = LoadLexicon(path)
	}
	if err != nil {
		return nil, errors.NewReferenceData("lexicon:"+language, err)
	}

	logging.ReferenceData("lexicon:"+language, path, "forms", len(lex))
	lexiconCache[cacheKey] = lex
	return lex, nil
}

// HasLexicon reports whether a lexicon is configured for the language.
func (s *Set) HasLexicon(language string) bool {
	_, ok := s.lexiconPaths[language]
	return ok
}

func readEmbeddedLexicon(path string) (Lexicon, error) {
	f, err := dataFS.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseLexicon(f)
}

// LoadLexicon reads a lexicon file from disk. Files ending in ".xz" are
// decompressed transparently; anything else is read as plain text, one
// word form per line, "#" lines ignored.
func LoadLexicon(path string) (Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".xz") {
		xzr, err := xz.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "xz reader")
		}
		reader = xzr
	}
	return parseLexicon(reader)
}

func parseLexicon(r io.Reader) (Lexicon, error) {
	lex := Lexicon{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lex[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lex, nil
}
