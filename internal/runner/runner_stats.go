package runner

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"sqlancer/internal/oracle"
	"sqlancer/internal/util"
)

// topSkipReasons caps the skip reasons printed per stats line.
const topSkipReasons = 5

// Funnel counts what happened to the checks of one oracle.
type Funnel struct {
	Runs     int64
	Passes   int64
	Skips    int64
	Findings int64
	Elapsed  time.Duration
}

// stats is shared between the worker and its stats logger goroutine.
type stats struct {
	mu          sync.Mutex
	started     time.Time
	sqlTotal    int64
	sqlFailed   int64
	funnels     map[string]*Funnel
	skipReasons map[string]int64
}

func newStats() *stats {
	return &stats{
		started:     time.Now(),
		funnels:     make(map[string]*Funnel),
		skipReasons: make(map[string]int64),
	}
}

func (s *stats) observeSQL(_ string, _ time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sqlTotal++
	if err != nil {
		s.sqlFailed++
	}
}

func (s *stats) record(result oracle.Result, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.funnels[result.Oracle]
	if f == nil {
		f = &Funnel{}
		s.funnels[result.Oracle] = f
	}
	f.Runs++
	f.Elapsed += elapsed
	switch result.Kind {
	case oracle.Pass:
		f.Passes++
	case oracle.Skip:
		f.Skips++
		if reason := result.SkipReason(); reason != "" {
			s.skipReasons[reason]++
		}
	case oracle.Finding:
		f.Findings++
	}
}

func (s *stats) snapshot() map[string]Funnel {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Funnel, len(s.funnels))
	for name, f := range s.funnels {
		out[name] = *f
	}
	return out
}

// summary renders one stats line: statement throughput, the per-oracle
// funnel and the most common skip reasons.
func (s *stats) summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	elapsed := time.Since(s.started).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(int64(float64(s.sqlTotal)/elapsed*10)) / 10
	}
	fmt.Fprintf(&b, "sql=%s failed=%s rate=%s/s", humanize.Comma(s.sqlTotal), humanize.Comma(s.sqlFailed), humanize.Commaf(rate))

	names := make([]string, 0, len(s.funnels))
	for name := range s.funnels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f := s.funnels[name]
		fmt.Fprintf(&b, " %s[runs=%s pass=%s skip=%s finding=%s]", name,
			humanize.Comma(f.Runs), humanize.Comma(f.Passes), humanize.Comma(f.Skips), humanize.Comma(f.Findings))
	}

	reasons := make([]string, 0, len(s.skipReasons))
	for reason := range s.skipReasons {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool {
		a, c := s.skipReasons[reasons[i]], s.skipReasons[reasons[j]]
		if a != c {
			return a > c
		}
		return reasons[i] < reasons[j]
	})
	if len(reasons) > topSkipReasons {
		reasons = reasons[:topSkipReasons]
	}
	for i, reason := range reasons {
		if i == 0 {
			b.WriteString(" skips:")
		}
		fmt.Fprintf(&b, " %s=%s", reason, humanize.Comma(s.skipReasons[reason]))
	}
	return b.String()
}

// startStatsLogger logs a stats line every report interval until the
// returned stop function is called.
func (r *Runner) startStatsLogger() func() {
	interval := time.Duration(r.cfg.Logging.ReportIntervalSeconds) * time.Second
	if interval <= 0 {
		return func() {}
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				util.Infof("worker=%d stats %s", r.worker, r.stats.summary())
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
