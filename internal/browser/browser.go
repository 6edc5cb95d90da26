package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/marketpulse/market-scraper/internal/retry"
)

var (
	ErrNavigationFailed = errors.New("navigation failed")
	ErrCaptchaDetected  = errors.New("captcha or block page detected")
)

// userAgentPool is rotated per browsing context so consecutive scrapes do
// not share a fingerprint.
var userAgentPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:120.0) Gecko/20100101 Firefox/120.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// stealthScript masks the most common automation fingerprints before any
// page script runs.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
Object.defineProperty(navigator, 'languages', { get: () => ['ru-RU', 'ru', 'en-US'] });
window.chrome = window.chrome || { runtime: {} };
`

// captchaSelectors probe for known captcha widgets after navigation.
var captchaSelectors = []string{
	"iframe[src*='captcha']",
	"#captcha",
	".captcha",
	"form[action*='captcha']",
	"[class*='Captcha']",
}

// blockKeywords are block-page phrases checked against the page text.
var blockKeywords = []string{
	"подтвердите, что вы не робот",
	"доступ ограничен",
	"are you a robot",
	"access denied",
	"checking your browser",
}

type Options struct {
	Headless        bool
	NavTimeout      time.Duration
	MaxNavAttempts  int
	RetryBaseDelay  time.Duration
	ViewportWidth   int
	ViewportHeight  int
	Locale          string
	TimezoneID      string
	ProxyServer     string
	BlockedResource []string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:        true,
		NavTimeout:      30 * time.Second,
		MaxNavAttempts:  3,
		RetryBaseDelay:  2 * time.Second,
		ViewportWidth:   1920,
		ViewportHeight:  1080,
		Locale:          "ru-RU",
		TimezoneID:      "Europe/Moscow",
		BlockedResource: []string{"image", "font", "media"},
	}
}

// Manager owns the shared headless browser process. The process is launched
// lazily on first use and shared between marketplace tasks; browsing
// contexts are per-call and never shared.
type Manager struct {
	opts    *Options
	logger  *slog.Logger
	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser

	// seams for tests; production wiring set in NewManager
	newSession func() (*Session, error)
	navigateFn func(page playwright.Page, url string) error
}

func NewManager(opts *Options, logger *slog.Logger) *Manager {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		opts:   opts,
		logger: logger.With("component", "browser"),
	}
	m.newSession = m.NewSession
	m.navigateFn = m.navigate
	return m
}

// ensureStarted launches the browser process if it is not running yet. The
// only shared mutable state is the process handle, guarded here.
func (m *Manager) ensureStarted() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		return nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(m.opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--disable-gpu",
			"--disable-infobars",
			"--window-size=1920,1080",
		},
	}
	if m.opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{Server: m.opts.ProxyServer}
	}

	b, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	m.pw = pw
	m.browser = b
	m.logger.Info("browser process started", "headless", m.opts.Headless)
	return nil
}

// Shutdown stops the shared browser process. Safe to call more than once.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	if m.browser != nil {
		if err := m.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
		m.browser = nil
	}
	if m.pw != nil {
		if err := m.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
		m.pw = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	m.logger.Info("browser process stopped")
	return nil
}

// Session is one isolated browsing context with a single page. The caller
// must Close it on every exit path; nothing closes it automatically.
type Session struct {
	page    playwright.Page
	context playwright.BrowserContext
}

func (s *Session) Page() playwright.Page { return s.page }

func (s *Session) Close() {
	if s.page != nil {
		s.page.Close()
	}
	if s.context != nil {
		s.context.Close()
	}
}

// NewSession creates an isolated context with a randomized user agent, a
// Moscow locale profile and the stealth init script applied.
func (m *Manager) NewSession() (*Session, error) {
	if err := m.ensureStarted(); err != nil {
		return nil, err
	}

	ua := userAgentPool[rand.Intn(len(userAgentPool))]

	ctxOpts := playwright.BrowserNewContextOptions{
		UserAgent:         playwright.String(ua),
		Locale:            playwright.String(m.opts.Locale),
		TimezoneId:        playwright.String(m.opts.TimezoneID),
		IgnoreHttpsErrors: playwright.Bool(true),
		JavaScriptEnabled: playwright.Bool(true),
		Viewport: &playwright.Size{
			Width:  m.opts.ViewportWidth,
			Height: m.opts.ViewportHeight,
		},
		Geolocation: &playwright.Geolocation{Latitude: 55.7558, Longitude: 37.6173},
		Permissions: []string{"geolocation"},
	}

	bctx, err := m.browser.NewContext(ctxOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	if err := bctx.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)}); err != nil {
		bctx.Close()
		return nil, fmt.Errorf("failed to add init script: %w", err)
	}

	// Images, fonts and media are dead weight for extraction.
	blocked := make(map[string]struct{}, len(m.opts.BlockedResource))
	for _, rt := range m.opts.BlockedResource {
		blocked[rt] = struct{}{}
	}
	if err := bctx.Route("**/*", func(route playwright.Route) {
		if _, skip := blocked[route.Request().ResourceType()]; skip {
			route.Abort()
			return
		}
		route.Continue()
	}); err != nil {
		bctx.Close()
		return nil, fmt.Errorf("failed to install route handler: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(float64(m.opts.NavTimeout.Milliseconds()))

	return &Session{page: page, context: bctx}, nil
}

// OpenPage navigates to url with bounded retries. Every attempt runs in a
// fresh session, so a captcha-flagged attempt never reuses the fingerprint
// that got flagged. A detected captcha counts as a failed attempt, not a
// silent success.
func (m *Manager) OpenPage(ctx context.Context, url string) (*Session, error) {
	var sess *Session
	err := retry.Do(ctx, retry.Config{
		MaxAttempts: m.opts.MaxNavAttempts,
		BaseDelay:   m.opts.RetryBaseDelay,
		Logger:      m.logger,
	}, "navigate "+url, func() error {
		s, err := m.newSession()
		if err != nil {
			return err
		}
		if err := m.navigateFn(s.page, url); err != nil {
			s.Close()
			return err
		}
		sess = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNavigationFailed, url, err)
	}

	return sess, nil
}

func (m *Manager) navigate(page playwright.Page, url string) error {
	resp, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(m.opts.NavTimeout.Milliseconds())),
	})
	if err != nil {
		return err
	}
	if resp != nil && (resp.Status() < 200 || resp.Status() >= 300) {
		return fmt.Errorf("unexpected status %d", resp.Status())
	}

	if detected, err := m.detectCaptcha(page); err != nil {
		m.logger.Warn("captcha check failed", "error", err)
	} else if detected {
		return ErrCaptchaDetected
	}

	return nil
}

// detectCaptcha probes known captcha selectors, then scans the visible text
// for block-page phrases.
func (m *Manager) detectCaptcha(page playwright.Page) (bool, error) {
	for _, sel := range captchaSelectors {
		count, err := page.Locator(sel).Count()
		if err != nil {
			continue
		}
		if count > 0 {
			m.logger.Info("captcha widget present", "selector", sel)
			return true, nil
		}
	}

	content, err := page.Content()
	if err != nil {
		return false, fmt.Errorf("failed to read page content: %w", err)
	}
	return ContainsBlockKeyword(content), nil
}

// ContainsBlockKeyword reports whether html looks like an anti-bot block
// page rather than real marketplace content.
func ContainsBlockKeyword(html string) bool {
	lower := strings.ToLower(html)
	for _, kw := range blockKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// RandomUserAgent exposes the rotation pool for callers that issue plain
// HTTP requests outside a browser context.
func RandomUserAgent() string {
	return userAgentPool[rand.Intn(len(userAgentPool))]
}
