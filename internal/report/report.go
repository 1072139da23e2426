// Package report writes one directory per finding with everything needed
// to replay it: the statements, the schema, a data dump and a summary.
package report

import (
	"archive/tar"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	pkgerrors "github.com/pkg/errors"

	"sqlancer/internal/compare"
	"sqlancer/internal/runinfo"
	"sqlancer/internal/schema"
	"sqlancer/internal/sqlast"
	"sqlancer/internal/util"
)

const (
	CaseArchiveName  = "case.tar.zst"
	CaseArchiveCodec = "zstd"
	SummaryFile      = "summary.json"
	SchemaFile       = "schema.sql"
	InsertsFile      = "inserts.sql"
	CaseFile         = "case.sql"
	DataFile         = "data.tsv"
)

const readme = `# Reproduce Case

- Apply schema: schema.sql
- Load data: inserts.sql (data.tsv is a capped dump for reading)
- Run queries: case.sql
- Or: sqlancer-repro -case <this dir> -dsn <dsn>
`

// Reporter writes case directories under OutputDir. Each worker owns one.
type Reporter struct {
	OutputDir       string
	MaxDataDumpRows int
	UseUUIDPath     bool
	caseSeq         int
}

// Case is one allocated report directory.
type Case struct {
	ID  string
	Dir string
}

// Summary is the persisted description of a finding.
type Summary struct {
	Oracle         string             `json:"oracle"`
	Dialect        string             `json:"dialect"`
	Worker         int                `json:"worker"`
	Seed           int64              `json:"seed"`
	SQL            []string           `json:"sql"`
	Expected       string             `json:"expected"`
	Actual         string             `json:"actual"`
	Error          string             `json:"error,omitempty"`
	Details        map[string]any     `json:"details"`
	CaseID         string             `json:"case_id"`
	CaseDir        string             `json:"case_dir"`
	ArchiveName    string             `json:"archive_name,omitempty"`
	ArchiveCodec   string             `json:"archive_codec,omitempty"`
	UploadLocation string             `json:"upload_location,omitempty"`
	Timestamp      string             `json:"timestamp"`
	RunInfo        *runinfo.BasicInfo `json:"run_info,omitempty"`
}

// New creates a reporter that writes to outputDir.
func New(outputDir string, maxRows int) *Reporter {
	return &Reporter{OutputDir: outputDir, MaxDataDumpRows: maxRows}
}

// NewCase allocates a new case directory. Ids are time-ordered UUIDs when
// the platform allows it.
func (r *Reporter) NewCase() (Case, error) {
	r.caseSeq++
	id := uuid.New().String()
	if v7, err := uuid.NewV7(); err == nil {
		id = v7.String()
	}
	name := fmt.Sprintf("case_%04d_%s", r.caseSeq, id)
	if r.UseUUIDPath {
		name = id
	}
	dir := filepath.Join(r.OutputDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Case{}, pkgerrors.Wrap(err, "create case dir")
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte(readme), 0o644); err != nil {
		return Case{}, pkgerrors.Wrap(err, "write readme")
	}
	return Case{ID: id, Dir: dir}, nil
}

// WriteSummary writes summary.json. Struct fields keep their declared
// order and map keys are sorted, so equal summaries produce equal bytes.
func (r *Reporter) WriteSummary(c Case, summary Summary) error {
	summary.CaseID = c.ID
	summary.CaseDir = c.Dir
	if summary.Timestamp == "" {
		summary.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	f, err := os.Create(filepath.Join(c.Dir, SummaryFile))
	if err != nil {
		return pkgerrors.Wrap(err, "create summary")
	}
	defer util.CloseWithErr(f, "summary output")
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return pkgerrors.Wrap(enc.Encode(summary), "encode summary")
}

// ReadSummary loads summary.json from a case directory.
func ReadSummary(dir string) (Summary, error) {
	var s Summary
	data, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	if err != nil {
		return s, pkgerrors.Wrap(err, "read summary")
	}
	return s, pkgerrors.Wrap(json.Unmarshal(data, &s), "decode summary")
}

// WriteSQL writes statements terminated by semicolons.
func (r *Reporter) WriteSQL(c Case, name string, statements []string) error {
	if len(statements) == 0 {
		return r.WriteText(c, name, "")
	}
	return r.WriteText(c, name, strings.Join(statements, ";\n")+";\n")
}

// WriteText writes content to name inside the case directory.
func (r *Reporter) WriteText(c Case, name, content string) error {
	path := filepath.Join(c.Dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return pkgerrors.Wrapf(err, "create dir for %s", name)
	}
	return pkgerrors.Wrapf(os.WriteFile(path, []byte(content), 0o644), "write %s", name)
}

// WriteCaseArchive packs every file of the case into case.tar.zst.
func (r *Reporter) WriteCaseArchive(c Case) (name string, codec string, err error) {
	archivePath := filepath.Join(c.Dir, CaseArchiveName)
	if err := os.Remove(archivePath); err != nil && !os.IsNotExist(err) {
		return "", "", err
	}
	file, err := os.Create(archivePath)
	if err != nil {
		return "", "", pkgerrors.Wrap(err, "create archive")
	}
	defer func() {
		util.CloseWithErr(file, "archive output")
		if err != nil {
			_ = os.Remove(archivePath)
		}
	}()
	zw, err := zstd.NewWriter(file)
	if err != nil {
		return "", "", err
	}
	tw := tar.NewWriter(zw)
	err = filepath.WalkDir(c.Dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() || path == archivePath {
			return walkErr
		}
		return addFile(tw, c.Dir, path, d)
	})
	if closeErr := tw.Close(); err == nil {
		err = closeErr
	}
	if closeErr := zw.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", "", pkgerrors.Wrap(err, "write archive")
	}
	return CaseArchiveName, CaseArchiveCodec, nil
}

func addFile(tw *tar.Writer, root, path string, d fs.DirEntry) error {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return err
	}
	info, err := d.Info()
	if err != nil {
		return err
	}
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = filepath.ToSlash(rel)
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer util.CloseWithErr(src, "archive source")
	_, err = io.Copy(tw, src)
	return err
}

// DumpData writes data.tsv: per table a header and at most MaxDataDumpRows
// rows ordered by id. A table that cannot be read is noted and skipped.
func (r *Reporter) DumpData(ctx context.Context, c Case, exec compare.Executor, p sqlast.Printer, state *schema.State) error {
	tables := append([]schema.Table(nil), state.Tables...)
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	var b strings.Builder
	for _, tbl := range tables {
		fmt.Fprintf(&b, "-- %s\n", tbl.Name)
		q := sqlast.NewSelect(tbl.Ref()).WithColumns(tbl.ColumnRefs()...)
		if col, ok := tbl.ColumnByName("id"); ok {
			q = q.WithOrderBy(sqlast.OrderItem{Expr: col.Ref(tbl.Name)})
		}
		if r.MaxDataDumpRows > 0 {
			q = q.WithLimit(int64(r.MaxDataDumpRows))
		}
		rs, err := exec.Query(ctx, p.Select(q))
		if err != nil {
			util.Warnf("dump data failed table=%s err=%v", tbl.Name, err)
			fmt.Fprintf(&b, "-- failed: %v\n\n", err)
			continue
		}
		names := make([]string, 0, len(tbl.Columns))
		for _, col := range tbl.Columns {
			names = append(names, col.Name)
		}
		b.WriteString(strings.Join(names, "\t"))
		b.WriteByte('\n')
		for _, row := range rs.Rows {
			b.WriteString(row.String())
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return r.WriteText(c, DataFile, b.String())
}
