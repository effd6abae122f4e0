// Package collector renders pages in headless Chromium and captures the
// markup plus per-element geometry that make up a fixture case.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
	"golang.org/x/sync/errgroup"

	"github.com/use-agent/prodrank/config"
	"github.com/use-agent/prodrank/dom"
	"github.com/use-agent/prodrank/fixture"
	"github.com/use-agent/prodrank/models"
)

// captureJS walks the elements in getElementsByTagName order, which is
// the index order the fixture geometry table is keyed by.
const captureJS = `() => {
	const all = document.getElementsByTagName('*');
	const nodes = {};
	for (let i = 0; i < all.length; i++) {
		const el = all[i];
		const r = el.getBoundingClientRect();
		nodes[String(i)] = {
			top: r.top,
			bottom: r.bottom,
			left: r.left,
			right: r.right,
			display: el.style ? el.style.display : '',
			visibility: el.style ? el.style.visibility : '',
			strikethrough: window.getComputedStyle(el).getPropertyValue('text-decoration'),
		};
	}
	return JSON.stringify({html: document.documentElement.outerHTML, nodes: nodes});
}`

// Capture is one rendered page.
type Capture struct {
	URL      string
	HTML     string
	Geometry dom.GeometryTable
	Page     *dom.Page
}

// Collector owns a browser process. It is safe for concurrent use; every
// capture runs in its own tab.
type Collector struct {
	browser  *rod.Browser
	cfg      config.CollectorConfig
	viewport dom.Viewport
}

// New launches a browser for capturing at viewport vp.
func New(cfg config.CollectorConfig, vp dom.Viewport) (*Collector, error) {
	if !vp.Valid() {
		vp = dom.DefaultViewport
	}
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)
	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("hide-scrollbars"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("window-size"), fmt.Sprintf("%d,%d", int(vp.Width), int(vp.Height)))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("collector: launch browser: %w", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("collector: connect to browser: %w", err)
	}
	return &Collector{browser: browser, cfg: cfg, viewport: vp}, nil
}

// Close kills the browser process.
func (c *Collector) Close() error {
	return c.browser.Close()
}

// Capture renders target, a URL or a local file path, and returns its
// markup and geometry. The geometry is verified against a re-parse of the
// markup so that a capture never produces a broken fixture.
func (c *Collector) Capture(ctx context.Context, target string, headers map[string]string) (*Capture, error) {
	u, err := TargetURL(target)
	if err != nil {
		return nil, err
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	page, err := c.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("collector: open tab: %w", err)
	}
	defer func() { _ = page.Close() }()

	// Stealth and metrics must be in place before navigation.
	if c.cfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             int(c.viewport.Width),
		Height:            int(c.viewport.Height),
		DeviceScaleFactor: 1,
	}).Call(page); err != nil {
		return nil, fmt.Errorf("collector: set viewport: %w", err)
	}
	if len(headers) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}.Call(page)
	}

	p := page.Context(ctx)
	if err := p.Navigate(u); err != nil {
		return nil, fmt.Errorf("collector: navigate %s: %w", u, err)
	}
	if err := p.WaitLoad(); err != nil {
		return nil, fmt.Errorf("collector: wait load %s: %w", u, err)
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "url", u, "error", err)
	}
	if c.cfg.Settle > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.cfg.Settle):
		}
	}

	res, err := p.Eval(captureJS)
	if err != nil {
		return nil, fmt.Errorf("collector: measure %s: %w", u, err)
	}
	capture, err := decodeCapture(res.Value.Str())
	if err != nil {
		return nil, fmt.Errorf("collector: %s: %w", u, err)
	}
	capture.URL = u
	slog.Info("page captured", "url", u, "elements", capture.Page.Document.Len())
	return capture, nil
}

// CaptureCase captures target and writes it as a case directory.
func (c *Collector) CaptureCase(ctx context.Context, target, dir string) error {
	capture, err := c.Capture(ctx, target, nil)
	if err != nil {
		return err
	}
	return fixture.WriteCase(dir, capture.HTML, capture.Geometry)
}

// Job is one page to collect into the corpus.
type Job struct {
	ID     string
	Target string
}

// JobResult is the outcome of one Job.
type JobResult struct {
	Job Job
	Dir string
	Err error
}

// CollectCorpus captures every job into root/<id>, at most workers at a
// time. A failing job does not stop the others.
func (c *Collector) CollectCorpus(ctx context.Context, root string, jobs []Job, workers int) []JobResult {
	if workers <= 0 {
		workers = 1
	}
	results := make([]JobResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, job := range jobs {
		g.Go(func() error {
			dir := filepath.Join(root, job.ID)
			err := c.CaptureCase(gctx, job.Target, dir)
			if err != nil {
				slog.Warn("collect failed", "case", job.ID, "target", job.Target, "error", err)
			}
			results[i] = JobResult{Job: job, Dir: dir, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// TargetURL turns a local path into a file URL and passes URLs through.
func TargetURL(target string) (string, error) {
	if target == "" {
		return "", models.NewExtractError(models.ErrCodeInvalidInput, "empty target", nil)
	}
	if strings.Contains(target, "://") {
		u, err := url.Parse(target)
		if err != nil {
			return "", models.NewExtractError(models.ErrCodeInvalidInput, "invalid target URL", err)
		}
		return u.String(), nil
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", models.NewExtractError(models.ErrCodeInvalidInput, "invalid target path", err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

type rawCapture struct {
	HTML  string            `json:"html"`
	Nodes dom.GeometryTable `json:"nodes"`
}

func decodeCapture(payload string) (*Capture, error) {
	var raw rawCapture
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("decode capture: %w", err)
	}
	doc, err := dom.ParseString(raw.HTML)
	if err != nil {
		return nil, fmt.Errorf("parse captured markup: %w", err)
	}
	page, err := dom.NewPage(doc, raw.Nodes)
	if err != nil {
		return nil, err
	}
	return &Capture{HTML: raw.HTML, Geometry: raw.Nodes, Page: page}, nil
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
