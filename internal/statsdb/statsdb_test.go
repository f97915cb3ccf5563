package statsdb

import (
	"path/filepath"
	"testing"

	"github.com/blip-corpus/bela/core/errors"
	"github.com/blip-corpus/bela/core/lex"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "stats.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleReport() *lex.Report {
	ratio := 0.75
	return &lex.Report{
		Groups: []lex.GroupStat{
			{Key: lex.Key{Speaker: "CHI", Language: "English", Source: "a.eaf"}, Tokens: 4, Types: 3, Ratio: &ratio},
			{Key: lex.Key{Speaker: "MOT", Language: "English", Source: "a.eaf"}},
		},
	}
}

func TestSaveAndLoadReport(t *testing.T) {
	db := openTestDB(t)

	id, err := db.SaveReport("a.eaf", sampleReport())
	if err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}
	if id == "" {
		t.Fatal("SaveReport returned empty run ID")
	}

	groups, err := db.RunGroups(id)
	if err != nil {
		t.Fatalf("RunGroups failed: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2", len(groups))
	}
	if groups[0].Speaker != "CHI" || groups[0].Tokens != 4 || groups[0].Types != 3 {
		t.Errorf("groups[0] = %+v, want CHI 4/3", groups[0])
	}
	if groups[0].Ratio == nil || *groups[0].Ratio != 0.75 {
		t.Errorf("groups[0].Ratio = %v, want 0.75", groups[0].Ratio)
	}
	if groups[1].Speaker != "MOT" || groups[1].Ratio != nil {
		t.Errorf("groups[1] = %+v, want MOT with nil ratio", groups[1])
	}
}

func TestRunsListing(t *testing.T) {
	db := openTestDB(t)

	first, err := db.SaveReport("first.eaf", sampleReport())
	if err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}
	second, err := db.SaveReport("second.eaf", &lex.Report{})
	if err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	runs, err := db.Runs()
	if err != nil {
		t.Fatalf("Runs failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	byID := map[string]Run{}
	for _, r := range runs {
		byID[r.ID] = r
	}
	if r := byID[first]; r.Source != "first.eaf" || r.Groups != 2 {
		t.Errorf("run %s = %+v, want first.eaf with 2 groups", first, r)
	}
	if r := byID[second]; r.Source != "second.eaf" || r.Groups != 0 {
		t.Errorf("run %s = %+v, want second.eaf with 0 groups", second, r)
	}
}

func TestRunGroupsUnknownRun(t *testing.T) {
	db := openTestDB(t)

	_, err := db.RunGroups("no-such-run")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("RunGroups error = %v, want ErrNotFound", err)
	}
}

func TestOpenReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	id, err := db.SaveReport("a.eaf", sampleReport())
	if err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}
	db.Close()

	ro, err := OpenReadOnly(path)
	if err != nil {
		t.Fatalf("OpenReadOnly failed: %v", err)
	}
	defer ro.Close()

	groups, err := ro.RunGroups(id)
	if err != nil {
		t.Fatalf("RunGroups failed: %v", err)
	}
	if len(groups) != 2 {
		t.Errorf("len(groups) = %d, want 2", len(groups))
	}

	if _, err := OpenReadOnly(filepath.Join(t.TempDir(), "missing.db")); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("OpenReadOnly on missing file = %v, want ErrNotFound", err)
	}
}
