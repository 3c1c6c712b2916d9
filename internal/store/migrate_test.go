package store

import (
	"context"
	"strings"
	"testing"
	"testing/fstest"
)

type fakeExec struct {
	applied []int
	execs   []string
	args    [][]any
}

func (f *fakeExec) Exec(_ context.Context, q string, args ...any) error {
	f.execs = append(f.execs, q)
	f.args = append(f.args, args)
	return nil
}

func (f *fakeExec) QueryInts(context.Context, string) ([]int, error) { return f.applied, nil }

func TestMigrator_ParseOrdersAndFilters(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_second.sql": {Data: []byte("B")},
		"m/0001_init.sql":   {Data: []byte("A")},
		"m/README.md":       {Data: []byte("x")},
	}
	migs, err := NewMigrator(fsys, "m", DialectSQLite).ParseMigrations()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(migs) != 2 || migs[0].Version != 1 || migs[1].Name != "second" {
		t.Fatalf("unexpected migrations: %+v", migs)
	}
}

func TestMigrator_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0001_a.sql": {Data: []byte("A")},
		"m/1_b.sql":    {Data: []byte("B")},
	}
	if _, err := NewMigrator(fsys, "m", DialectSQLite).ParseMigrations(); err == nil {
		t.Fatal("expected duplicate version error")
	}
}

func TestMigrator_RunSkipsApplied(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0001_init.sql":  {Data: []byte("CREATE A")},
		"m/0002_more.sql":  {Data: []byte("CREATE B")},
		"m/0003_again.sql": {Data: []byte("CREATE C")},
	}
	ex := &fakeExec{applied: []int{1, 3}}
	res, err := NewMigrator(fsys, "m", DialectPostgres).Run(context.Background(), ex)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Applied) != 1 || res.Applied[0] != 2 {
		t.Fatalf("applied=%v", res.Applied)
	}
	if len(res.Skipped) != 2 {
		t.Fatalf("skipped=%v", res.Skipped)
	}
	last := ex.execs[len(ex.execs)-1]
	if !strings.Contains(last, "$1, $2") {
		t.Fatalf("postgres placeholders not used: %q", last)
	}
}
