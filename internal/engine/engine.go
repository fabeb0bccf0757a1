package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/blocktree/internal/analyzer"
	"github.com/ivlev/blocktree/internal/block"
	"github.com/ivlev/blocktree/internal/config"
	"github.com/ivlev/blocktree/internal/gradient"
	"github.com/ivlev/blocktree/internal/report"
	"github.com/ivlev/blocktree/internal/source"
	"github.com/ivlev/blocktree/internal/system"
)

// ReportVersion is the format version written into every report.
const ReportVersion = "1.0"

// Project segments every page of a source into a block tree.
type Project struct {
	Config   *config.Config
	Source   source.Source
	Detector analyzer.Detector
	Log      *slog.Logger
}

func NewProject(cfg *config.Config, src source.Source, det analyzer.Detector) *Project {
	return &Project{
		Config:   cfg,
		Source:   src,
		Detector: det,
		Log:      slog.Default(),
	}
}

// Result is what Run leaves behind on disk.
type Result struct {
	Report     *report.Report
	ReportPath string
}

// Run processes the pages with at most Config.Workers goroutines, saves one
// tree per page into Config.OutputDir and writes the report there. A failed
// page is recorded in the report and does not stop the others; Run then
// returns an error after the report is written.
func (p *Project) Run(ctx context.Context) (*Result, error) {
	startTime := time.Now()

	pageCount := p.Source.PageCount()
	if pageCount == 0 {
		return nil, fmt.Errorf("источник не содержит страниц/кадров")
	}
	projection, err := gradient.ParseProjection(p.Config.Gradient.Projection)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(p.Config.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать папку %s: %w", p.Config.OutputDir, err)
	}

	fmt.Println("--- [PROJECT: BLOCK TREE] ---")
	fmt.Printf("[*] Источник: %s | Страниц: %d\n", p.Config.InputPath, pageCount)
	fmt.Printf("[*] Детектор: %s | DPI: %d | Потоки: %d\n", p.Config.Detector, p.Config.DPI, p.Config.Workers)
	fmt.Println("-----------------------------")

	opts := []block.Option{block.WithLogger(p.Log), block.WithProjection(projection)}
	pages := make([]report.Page, pageCount)
	var done, failed atomic.Int32

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(min(p.Config.Workers, pageCount))
	for i := 0; i < pageCount; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			page, err := p.processPage(i, opts)
			if err != nil {
				failed.Add(1)
				page.Error = err.Error()
				p.Log.Error("page failed", "index", i, "err", err)
			}
			pages[i] = page
			fmt.Printf("[>] Ready: %d/%d\n", done.Add(1), pageCount)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep := &report.Report{
		Version: ReportVersion,
		Source:  p.Config.InputPath,
		Pages:   pages,
	}
	totalTime := time.Since(startTime)
	if p.Config.ShowStats {
		rep.Stats = p.stats(totalTime, pageCount, int(failed.Load()))
	}

	reportPath := report.GenerateReportPath(p.Config.OutputDir)
	if err := report.WriteReport(rep, reportPath); err != nil {
		return nil, fmt.Errorf("ошибка записи отчета: %w", err)
	}
	res := &Result{Report: rep, ReportPath: reportPath}

	if n := failed.Load(); n > 0 {
		return res, fmt.Errorf("%d из %d страниц не обработаны", n, pageCount)
	}
	return res, nil
}

func (p *Project) processPage(i int, opts []block.Option) (report.Page, error) {
	name := fmt.Sprintf("page_%03d", i+1)
	rp := report.Page{
		Index: i,
		Name:  name,
		Tree:  filepath.Join(p.Config.OutputDir, name+".xml"),
	}

	page, err := p.openPage(i, name, &rp, opts)
	if err != nil {
		return rp, err
	}
	defer page.FlushAll(true)

	box := page.AbsoluteBBox()
	rp.Width, rp.Height = box.Width(), box.Height()

	zones, err := p.Detector.Detect(page)
	if err != nil {
		return rp, fmt.Errorf("анализ страницы %d: %w", i+1, err)
	}
	for _, z := range zones {
		rp.Zones = append(rp.Zones, report.Zone{
			Name:       z.Block.Name(),
			Type:       z.Type,
			Confidence: z.Confidence,
			Rect:       report.RectangleOf(z.Block.AbsoluteBBox()),
			Components: z.Block.ChildCount(analyzer.ComponentTree),
		})
	}

	if err := page.Save(rp.Tree); err != nil {
		return rp, fmt.Errorf("сохранение страницы %d: %w", i+1, err)
	}
	return rp, nil
}

// openPage opens image files lazily and renders everything else.
func (p *Project) openPage(i int, name string, rp *report.Page, opts []block.Option) (block.Block, error) {
	if fb, ok := p.Source.(source.FileBacked); ok {
		rp.Image = fb.PagePath(i)
		return block.Open(rp.Image, "", name, opts...)
	}
	buf, err := p.Source.RenderPage(i, p.Config.DPI)
	if err != nil {
		return block.Block{}, fmt.Errorf("рендеринг страницы %d: %w", i+1, err)
	}
	return block.New(buf, name, opts...)
}

func (p *Project) stats(totalTime time.Duration, pageCount, failed int) *report.Stats {
	st := &report.Stats{
		Seconds:   totalTime.Seconds(),
		Workers:   p.Config.Workers,
		PagesOK:   pageCount - failed,
		PagesFail: failed,
	}
	snap, err := system.Snapshot()
	if err != nil {
		fmt.Printf("[!] Не удалось получить статистику процесса: %v\n", err)
	}
	st.RSSBytes, st.CPUPct = snap.RSS, snap.CPUPercent
	p.Log.Debug("process stats", "stats", snap)

	pps := float64(pageCount) / totalTime.Seconds()
	fmt.Printf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Total Time: %.2fs\n"+
			"Pages: %d (failed: %d)\n"+
			"Pages/s: %.2f\n"+
			"RSS: %.1f MiB | CPU: %.1f%%\n"+
			"----------------------------\n",
		p.Config.BuildVersion, st.Seconds, pageCount, failed, pps,
		float64(st.RSSBytes)/(1<<20), st.CPUPct,
	)

	// Логирование в файл
	logEntry := fmt.Sprintf("[%s] Build: %s | Input: %s | Pages: %d | Total: %.2fs | Pages/s: %.2f\n",
		time.Now().Format("2006-01-02 15:04:05"),
		p.Config.BuildVersion,
		filepath.Base(p.Config.InputPath),
		pageCount,
		st.Seconds,
		pps,
	)
	if err := appendBenchmark(filepath.Join(p.Config.OutputDir, "benchmark.log"), logEntry); err != nil {
		fmt.Printf("[!] Не удалось записать benchmark.log: %v\n", err)
	}
	return st
}

func appendBenchmark(path, entry string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	_, werr := f.WriteString(entry)
	return errors.Join(werr, f.Close())
}
