// Package browser owns the headless Chrome session used for page visits and
// screenshots. Each pipeline worker opens its own Session at batch start and
// closes it at batch end, so workers never contend on shared browser state.
package browser

import (
	"context"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/config"
)

// Page is a live, navigable page handle. The same handle navigates to new
// URLs within one browser session.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Text(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// Session wraps a dedicated chromedp browser context.
type Session struct {
	ctx        context.Context
	cancelTab  context.CancelFunc
	cancelExec context.CancelFunc
	navTimeout time.Duration
	quality    int
}

// chromeCandidates are tried in order when no explicit exec path is set.
var chromeCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
}

func findChromeBinary() string {
	for _, name := range chromeCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// NewSession starts a headless browser session.
func NewSession(parent context.Context, cfg config.BrowserConfig) (*Session, error) {
	execPath := cfg.ExecPath
	if execPath == "" {
		execPath = findChromeBinary()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}

	allocCtx, cancelExec := chromedp.NewExecAllocator(parent, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}),
	)

	// Start the browser eagerly so startup failures surface here, not on the
	// first navigation.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelExec()
		return nil, eris.Wrap(err, "browser: start session")
	}

	navTimeout := time.Duration(cfg.NavTimeoutSecs) * time.Second
	if navTimeout <= 0 {
		navTimeout = 20 * time.Second
	}
	quality := cfg.ScreenshotQuality
	if quality <= 0 {
		quality = 70
	}

	zap.L().Debug("browser: session started",
		zap.String("exec_path", execPath),
		zap.Bool("headless", cfg.Headless),
	)

	return &Session{
		ctx:        tabCtx,
		cancelTab:  cancelTab,
		cancelExec: cancelExec,
		navTimeout: navTimeout,
		quality:    quality,
	}, nil
}

// Close shuts down the browser session.
func (s *Session) Close() {
	s.cancelTab()
	s.cancelExec()
}

// run executes chromedp actions under the session context with a bounded
// timeout, aborting early if the caller's context is already done.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(s.ctx, s.navTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(tctx, actions...)
	}()

	select {
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Navigate loads url in the session tab and waits for the body to be ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	err := s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return eris.Wrapf(err, "browser: navigate %s", url)
	}
	return nil
}

// Location returns the final URL after redirects.
func (s *Session) Location(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", eris.Wrap(err, "browser: read location")
	}
	return loc, nil
}

// HTML returns the full document markup.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", eris.Wrap(err, "browser: read html")
	}
	return html, nil
}

// Text returns the visible text of the page body.
func (s *Session) Text(ctx context.Context) (string, error) {
	var text string
	if err := s.run(ctx, chromedp.Text("body", &text, chromedp.ByQuery)); err != nil {
		return "", eris.Wrap(err, "browser: read text")
	}
	return text, nil
}

// Screenshot captures a full-page screenshot as PNG bytes.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, s.quality)); err != nil {
		return nil, eris.Wrap(err, "browser: screenshot")
	}
	return buf, nil
}
