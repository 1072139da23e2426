package runner

import (
	"context"

	"sqlancer/internal/oracle"
	"sqlancer/internal/report"
	"sqlancer/internal/util"
)

// handleResult writes a case directory for a finding and uploads it when
// storage is configured. Reporting failures are logged, never fatal.
func (r *Runner) handleResult(ctx context.Context, result oracle.Result) {
	c, err := r.reporter.NewCase()
	if err != nil {
		util.Errorf("worker=%d new case failed err=%v", r.worker, err)
		return
	}
	util.Highlightf("worker=%d finding oracle=%s case=%s", r.worker, result.Oracle, c.Dir)
	for _, sql := range result.SQL {
		util.Detailf("worker=%d finding sql=%s", r.worker, sql)
	}

	writes := []struct {
		name  string
		stmts []string
	}{
		{report.CaseFile, result.SQL},
		{report.SchemaFile, r.ddlLog},
		{report.InsertsFile, r.insertLog},
	}
	for _, w := range writes {
		if err := r.reporter.WriteSQL(c, w.name, w.stmts); err != nil {
			util.Warnf("worker=%d write %s failed err=%v", r.worker, w.name, err)
		}
	}
	if err := r.reporter.DumpData(ctx, c, r.exec, r.printer, r.session.State); err != nil {
		util.Warnf("worker=%d dump data failed err=%v", r.worker, err)
	}

	summary := report.Summary{
		Oracle:   result.Oracle,
		Dialect:  r.dialect.Name,
		Worker:   r.worker,
		Seed:     r.cfg.Seed + int64(r.worker),
		SQL:      result.SQL,
		Expected: result.Expected,
		Actual:   result.Actual,
		Details:  result.Details,
		RunInfo:  r.cfg.RunInfo,
	}
	if result.Err != nil {
		summary.Error = result.Err.Error()
	}
	if err := r.reporter.WriteSummary(c, summary); err != nil {
		util.Warnf("worker=%d write summary failed err=%v", r.worker, err)
	}
	name, codec, err := r.reporter.WriteCaseArchive(c)
	if err != nil {
		util.Warnf("worker=%d archive failed err=%v", r.worker, err)
		return
	}
	summary.ArchiveName, summary.ArchiveCodec = name, codec
	if r.uploader.Enabled() {
		loc, err := r.uploader.UploadDir(ctx, c.Dir)
		if err != nil {
			util.Warnf("worker=%d upload failed dir=%s err=%v", r.worker, c.Dir, err)
		} else {
			summary.UploadLocation = loc
			util.Infof("worker=%d uploaded case=%s location=%s", r.worker, c.ID, loc)
		}
	}
	if err := r.reporter.WriteSummary(c, summary); err != nil {
		util.Warnf("worker=%d write summary failed err=%v", r.worker, err)
	}
}
