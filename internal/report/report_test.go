package report

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"

	"sqlancer/internal/compare"
	"sqlancer/internal/schema"
	"sqlancer/internal/sqlast"
)

func TestNewCaseAllocatesDistinctDirs(t *testing.T) {
	r := New(t.TempDir(), 10)
	a, err := r.NewCase()
	if err != nil {
		t.Fatalf("new case: %v", err)
	}
	b, err := r.NewCase()
	if err != nil {
		t.Fatalf("new case: %v", err)
	}
	if a.Dir == b.Dir || a.ID == b.ID {
		t.Fatalf("expected distinct cases, got %v and %v", a, b)
	}
	if !strings.HasPrefix(filepath.Base(a.Dir), "case_0001_") {
		t.Fatalf("unexpected dir name %s", a.Dir)
	}
	if _, err := os.Stat(filepath.Join(a.Dir, "README.md")); err != nil {
		t.Fatalf("expected readme: %v", err)
	}
}

func TestWriteSummaryIsStable(t *testing.T) {
	r := New(t.TempDir(), 10)
	c, err := r.NewCase()
	if err != nil {
		t.Fatalf("new case: %v", err)
	}
	summary := Summary{
		Oracle:    "tlp_where",
		Dialect:   "sqlite",
		SQL:       []string{"SELECT 1"},
		Timestamp: "2026-01-01T00:00:00Z",
		Details:   map[string]any{"zeta": 1, "alpha": []string{"a"}, "mid": map[string]any{"y": 2, "x": 1}},
	}
	if err := r.WriteSummary(c, summary); err != nil {
		t.Fatalf("write: %v", err)
	}
	first, err := os.ReadFile(filepath.Join(c.Dir, SummaryFile))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := r.WriteSummary(c, summary); err != nil {
		t.Fatalf("write: %v", err)
	}
	second, _ := os.ReadFile(filepath.Join(c.Dir, SummaryFile))
	if !bytes.Equal(first, second) {
		t.Fatalf("summary output is not stable")
	}
	text := string(first)
	if strings.Index(text, `"alpha"`) > strings.Index(text, `"zeta"`) || strings.Index(text, `"x"`) > strings.Index(text, `"y"`) {
		t.Fatalf("detail keys are not sorted:\n%s", text)
	}
	back, err := ReadSummary(c.Dir)
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	if back.Oracle != "tlp_where" || back.CaseID != c.ID {
		t.Fatalf("unexpected round trip %+v", back)
	}
}

func TestWriteCaseArchiveContainsFiles(t *testing.T) {
	r := New(t.TempDir(), 10)
	c, err := r.NewCase()
	if err != nil {
		t.Fatalf("new case: %v", err)
	}
	if err := r.WriteSQL(c, CaseFile, []string{"SELECT 1", "SELECT 2"}); err != nil {
		t.Fatalf("write sql: %v", err)
	}
	if err := r.WriteText(c, "min/repro.sql", "SELECT 1;\n"); err != nil {
		t.Fatalf("write text: %v", err)
	}
	name, codec, err := r.WriteCaseArchive(c)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if name != CaseArchiveName || codec != CaseArchiveCodec {
		t.Fatalf("unexpected archive %s/%s", name, codec)
	}
	f, err := os.Open(filepath.Join(c.Dir, name))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer zr.Close()
	tr := tar.NewReader(zr)
	var names []string
	for {
		h, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar: %v", err)
		}
		names = append(names, h.Name)
	}
	sort.Strings(names)
	want := []string{"README.md", "case.sql", "min/repro.sql"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, names)
	}
}

type tableExec map[string]*compare.ResultSet

func (e tableExec) Query(_ context.Context, q string) (*compare.ResultSet, error) {
	for name, rs := range e {
		if strings.Contains(q, "FROM "+name) {
			return rs, nil
		}
	}
	return &compare.ResultSet{}, nil
}

func TestDumpDataOrdersTables(t *testing.T) {
	r := New(t.TempDir(), 5)
	c, err := r.NewCase()
	if err != nil {
		t.Fatalf("new case: %v", err)
	}
	mk := func(name string) schema.Table {
		return schema.Table{Name: name, Columns: []schema.Column{
			{Name: "id", Type: sqlast.TypeBigInt},
			{Name: "c0", Type: sqlast.TypeText, Nullable: true},
		}}
	}
	state := &schema.State{Tables: []schema.Table{mk("t1"), mk("t0")}}
	exec := tableExec{
		"t0": {Rows: []compare.Row{{{S: "1"}, {Null: true}}}},
		"t1": {Rows: []compare.Row{{{S: "1"}, {S: "x"}}}},
	}
	if err := r.DumpData(context.Background(), c, exec, sqlast.NewPrinter(sqlast.PrinterOptions{}), state); err != nil {
		t.Fatalf("dump: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(c.Dir, DataFile))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "-- t0\nid\tc0\n1\tNULL\n\n-- t1\nid\tc0\n1\tx\n\n"
	if string(data) != want {
		t.Fatalf("expected %q, got %q", want, string(data))
	}
}
