// Command bela decodes BELA-annotated ELAN transcripts and computes
// lexical statistics over them.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/blip-corpus/bela/core/bela"
	"github.com/blip-corpus/bela/core/lex"
	"github.com/blip-corpus/bela/internal/logging"
	"github.com/blip-corpus/bela/internal/refdata"
	"github.com/blip-corpus/bela/internal/statsdb"
)

const version = "1.0.0"

// CLI defines the command-line interface for bela.
var CLI struct {
	// Global flags
	LogLevel    string `name:"log-level" enum:"debug,info,warn,error" default:"info" help:"Log level"`
	LogFormat   string `name:"log-format" enum:"text,json" default:"text" help:"Log output format"`
	Refdata     string `name:"refdata" help:"Reference data file overriding the embedded set" type:"existingfile"`
	BelaVersion string `name:"bela-version" help:"Convention version overriding the document marker (bela1, bela2)"`

	// Command groups (noun-first organization)
	Transcript TranscriptGroup `cmd:"" help:"Transcript operations (inspect, validate, langmix, turns)"`
	Stats      StatsGroup      `cmd:"" help:"Lexical statistics operations"`
	Version    VersionCmd      `cmd:"" help:"Print version information"`
}

// TranscriptGroup contains single-document transcript operations.
type TranscriptGroup struct {
	Inspect  InspectCmd  `cmd:"" help:"Decode a document and print a summary"`
	Validate ValidateCmd `cmd:"" help:"Decode documents and report convention issues"`
	Langmix  LangmixCmd  `cmd:"" help:"Compute the per-language duration timeline"`
	Turns    TurnsCmd    `cmd:"" help:"Find potential turn-takings between speakers"`
}

// StatsGroup contains lexical statistics operations.
type StatsGroup struct {
	Run  StatsRunCmd  `cmd:"" help:"Analyse documents and report lexical statistics"`
	Runs StatsRunsCmd `cmd:"" help:"List recorded analysis runs"`
	Show StatsShowCmd `cmd:"" help:"Show the group statistics of a recorded run"`
}

func decodeOptions() (*bela.Options, error) {
	opts := &bela.Options{LinkRule: bela.ContainmentLink}
	if CLI.Refdata != "" {
		ref, err := refdata.LoadFile(CLI.Refdata)
		if err != nil {
			return nil, fmt.Errorf("cannot load reference data: %w", err)
		}
		opts.Ref = ref
	}
	if CLI.BelaVersion != "" {
		v, err := bela.ParseVersion(CLI.BelaVersion, "")
		if err != nil {
			return nil, err
		}
		opts.Version = v
	}
	return opts, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot serialize output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// InspectCmd decodes one document and prints a summary.
type InspectCmd struct {
	Path string `arg:"" help:"Path to EAF document" type:"existingfile"`
	JSON bool   `help:"Output as JSON"`
}

type inspectSummary struct {
	Path       string            `json:"path"`
	Version    bela.Version      `json:"version"`
	SourceHash string            `json:"source_hash"`
	MediaURL   string            `json:"media_url,omitempty"`
	Persons    []personSummary   `json:"persons"`
	Languages  []string          `json:"languages"`
	Counts     map[string]int    `json:"counts"`
	Issues     map[string]int    `json:"issues,omitempty"`
}

type personSummary struct {
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Role       bela.Role `json:"role"`
	Utterances int       `json:"utterances"`
}

func (c *InspectCmd) Run() error {
	opts, err := decodeOptions()
	if err != nil {
		return err
	}
	t, err := bela.ReadEAF(c.Path, opts)
	if err != nil {
		return err
	}

	summary := inspectSummary{
		Path:       t.Path,
		Version:    t.Version,
		SourceHash: t.SourceHash,
		MediaURL:   t.MediaURL(),
		Languages:  t.Languages(),
		Counts: map[string]int{
			"utterances": t.CountUtterances(),
			"chunks":     t.CountChunks(),
		},
		Issues: map[string]int{},
	}
	for _, p := range t.Persons {
		summary.Persons = append(summary.Persons, personSummary{
			Code:       p.Code,
			Name:       p.Name,
			Role:       p.Role,
			Utterances: len(p.Utterances),
		})
	}
	for _, issue := range t.Issues {
		summary.Issues[string(issue.Severity)]++
	}

	if c.JSON {
		return printJSON(summary)
	}

	fmt.Printf("Transcript: %s\n", summary.Path)
	fmt.Printf("  Version: %s\n", summary.Version)
	fmt.Printf("  Source hash: %s\n", summary.SourceHash)
	if summary.MediaURL != "" {
		fmt.Printf("  Media: %s\n", summary.MediaURL)
	}
	fmt.Printf("  Utterances: %d\n", summary.Counts["utterances"])
	fmt.Printf("  Chunks: %d\n", summary.Counts["chunks"])
	if len(summary.Languages) > 0 {
		fmt.Printf("  Languages: %s\n", strings.Join(summary.Languages, ", "))
	}
	fmt.Println()
	fmt.Println("Persons:")
	for _, p := range summary.Persons {
		fmt.Printf("  %-12s %-10s %3d utterance(s)  %s\n", p.Code, p.Role, p.Utterances, p.Name)
	}
	if len(t.Issues) > 0 {
		fmt.Println()
		fmt.Printf("Issues: %d warning(s), %d error(s)\n",
			summary.Issues[string(bela.SeverityWarning)],
			summary.Issues[string(bela.SeverityError)])
	}
	return nil
}

// ValidateCmd decodes documents and reports convention issues.
type ValidateCmd struct {
	Paths  []string `arg:"" help:"Paths to EAF documents" type:"existingfile"`
	Strict bool     `help:"Treat warnings as failures"`
	JSON   bool     `help:"Output as JSON"`
}

type validateResult struct {
	Path   string       `json:"path"`
	Issues []bela.Issue `json:"issues"`
	Failed bool         `json:"failed"`
}

func (c *ValidateCmd) Run() error {
	opts, err := decodeOptions()
	if err != nil {
		return err
	}

	failed := 0
	var results []validateResult
	for _, path := range c.Paths {
		t, err := bela.ReadEAF(path, opts)
		if err != nil {
			failed++
			results = append(results, validateResult{
				Path:   path,
				Issues: []bela.Issue{{Severity: bela.SeverityError, Message: err.Error()}},
				Failed: true,
			})
			continue
		}
		bad := t.HasErrors() || (c.Strict && len(t.Issues) > 0)
		if bad {
			failed++
		}
		results = append(results, validateResult{Path: path, Issues: t.Issues, Failed: bad})
	}

	if c.JSON {
		if err := printJSON(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			status := "[OK]  "
			if r.Failed {
				status = "[FAIL]"
			}
			fmt.Printf("%s %s (%d issue(s))\n", status, r.Path, len(r.Issues))
			for _, issue := range r.Issues {
				fmt.Printf("    %s\n", issue.String())
			}
		}
		fmt.Printf("\nChecked %d document(s), %d failed\n", len(results), failed)
	}

	if failed > 0 {
		return fmt.Errorf("validation failed for %d document(s)", failed)
	}
	return nil
}

// LangmixCmd computes the per-language duration timeline.
type LangmixCmd struct {
	Path string `arg:"" help:"Path to EAF document" type:"existingfile"`
	UpTo int64  `name:"up-to" default:"-1" help:"Only count spans starting before this time in ms (negative for all)"`
	JSON bool   `help:"Output as JSON"`
}

func (c *LangmixCmd) Run() error {
	opts, err := decodeOptions()
	if err != nil {
		return err
	}
	t, err := bela.ReadEAF(c.Path, opts)
	if err != nil {
		return err
	}

	mix := t.LanguageMix(c.UpTo)
	if c.JSON {
		return printJSON(mix)
	}

	fmt.Printf("Language mix: %s\n\n", c.Path)
	for _, span := range mix.Spans {
		fmt.Printf("  %8d..%-8d %6dms  %s\n", span.Start, span.End, span.Duration, span.Language)
	}
	fmt.Println()
	totals := mix.Totals()
	languages := make([]string, 0, len(totals))
	for lang := range totals {
		languages = append(languages, lang)
	}
	sort.Strings(languages)
	for _, lang := range languages {
		fmt.Printf("  %-12s %dms\n", lang, totals[lang])
	}
	fmt.Printf("\nTotal speech: %dms\n", mix.Length)
	return nil
}

// TurnsCmd finds potential turn-takings between speakers.
type TurnsCmd struct {
	Path      string `arg:"" help:"Path to EAF document" type:"existingfile"`
	Threshold int64  `help:"Maximum absolute gap in ms (default 1500)"`
	JSON      bool   `help:"Output as JSON"`
}

func (c *TurnsCmd) Run() error {
	opts, err := decodeOptions()
	if err != nil {
		return err
	}
	t, err := bela.ReadEAF(c.Path, opts)
	if err != nil {
		return err
	}

	turns := t.Turns(c.Threshold)
	if c.JSON {
		return printJSON(turns)
	}

	fmt.Printf("Turn-takings: %s\n\n", c.Path)
	for _, turn := range turns {
		fmt.Printf("  %s -> %s  gap %dms\n", turn.FromPerson.Code, turn.ToPerson.Code, turn.Gap)
		fmt.Printf("    %q\n", turn.From.Text)
		fmt.Printf("    %q\n", turn.To.Text)
	}
	fmt.Printf("\nTotal: %d turn(s)\n", len(turns))
	return nil
}

// StatsRunCmd analyses documents and reports lexical statistics.
type StatsRunCmd struct {
	Paths  []string `arg:"" help:"Paths to EAF documents" type:"existingfile"`
	Corpus bool     `help:"Report per-speaker corpus profiles"`
	DB     string   `help:"Record the run in this statistics database" type:"path"`
}

func (c *StatsRunCmd) Run() error {
	opts, err := decodeOptions()
	if err != nil {
		return err
	}
	lexOpts := &lex.Options{Version: opts.Version, Ref: opts.Ref}

	analyser := lex.New(lexOpts)
	corpus := lex.NewCorpus(lexOpts)
	for _, path := range c.Paths {
		t, err := bela.ReadEAF(path, opts)
		if err != nil {
			return err
		}
		analyser.AddTranscript(t)
		if c.Corpus {
			corpus.AddTranscript(t)
		}
	}

	if c.DB != "" {
		db, err := statsdb.Open(c.DB)
		if err != nil {
			return err
		}
		defer db.Close()

		sources := make([]string, 0, len(c.Paths))
		for _, path := range c.Paths {
			sources = append(sources, filepath.Base(path))
		}
		runID, err := db.SaveReport(strings.Join(sources, ","), analyser.Analyse())
		if err != nil {
			return err
		}
		logging.Info("analysis run recorded", "run_id", runID, "db", c.DB)
		fmt.Fprintf(os.Stderr, "Run recorded: %s\n", runID)
	}

	if c.Corpus {
		return printJSON(corpus.ToDict())
	}
	return printJSON(analyser.Analyse().ToDict())
}

// StatsRunsCmd lists recorded analysis runs.
type StatsRunsCmd struct {
	DB   string `required:"" help:"Statistics database path" type:"existingfile"`
	JSON bool   `help:"Output as JSON"`
}

func (c *StatsRunsCmd) Run() error {
	db, err := statsdb.OpenReadOnly(c.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.Runs()
	if err != nil {
		return err
	}
	if c.JSON {
		return printJSON(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}
	fmt.Printf("%-36s %-20s %6s  %s\n", "RUN", "CREATED", "GROUPS", "SOURCE")
	for _, r := range runs {
		fmt.Printf("%-36s %-20s %6d  %s\n", r.ID, r.CreatedAt, r.Groups, r.Source)
	}
	return nil
}

// StatsShowCmd shows the group statistics of a recorded run.
type StatsShowCmd struct {
	DB    string `required:"" help:"Statistics database path" type:"existingfile"`
	RunID string `arg:"" name:"run" help:"Run ID"`
	JSON  bool   `help:"Output as JSON"`
}

func (c *StatsShowCmd) Run() error {
	db, err := statsdb.OpenReadOnly(c.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	groups, err := db.RunGroups(c.RunID)
	if err != nil {
		return err
	}
	if c.JSON {
		return printJSON(groups)
	}

	fmt.Printf("Run: %s\n\n", c.RunID)
	fmt.Printf("%-12s %-12s %7s %7s %7s  %s\n", "SPEAKER", "LANGUAGE", "TOKENS", "TYPES", "RATIO", "SOURCE")
	for _, g := range groups {
		ratio := "-"
		if g.Ratio != nil {
			ratio = fmt.Sprintf("%.2f", *g.Ratio)
		}
		fmt.Printf("%-12s %-12s %7d %7d %7s  %s\n", g.Speaker, g.Language, g.Tokens, g.Types, ratio, g.Source)
	}
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("bela version %s\n", version)
	fmt.Printf("  reference data: %s\n", refdata.Default().Version())
	return nil
}

func logLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("bela"),
		kong.Description("BELA child-language transcript decoder and analyser"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	format := logging.FormatText
	if CLI.LogFormat == "json" {
		format = logging.FormatJSON
	}
	logging.InitLogger(logLevel(CLI.LogLevel), format)

	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
