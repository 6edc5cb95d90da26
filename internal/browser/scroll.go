package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Pager is the subset of a page the scroll driver needs. playwright.Page
// satisfies it; tests substitute a fake.
type Pager interface {
	Evaluate(expression string, arg ...interface{}) (interface{}, error)
}

// loadMoreScript clicks any visible button whose label matches the
// load-more vocabulary and reports how many were clicked.
const loadMoreScript = `
() => {
	const words = ['показать', 'загрузить', 'еще', 'ещё', 'show more', 'load more'];
	let clicked = 0;
	for (const btn of document.querySelectorAll('button, a[role="button"], div[role="button"]')) {
		const text = (btn.textContent || '').toLowerCase();
		if (!words.some(w => text.includes(w))) continue;
		const rect = btn.getBoundingClientRect();
		if (rect.width === 0 || rect.height === 0) continue;
		btn.scrollIntoView({ block: 'center' });
		btn.click();
		clicked++;
	}
	return clicked;
}
`

type ScrollConfig struct {
	MaxIterations   int
	StagnationLimit int
	SettleDelay     time.Duration
}

func DefaultScrollConfig() ScrollConfig {
	return ScrollConfig{
		MaxIterations:   20,
		StagnationLimit: 5,
		SettleDelay:     1500 * time.Millisecond,
	}
}

// LoadAll drives infinite-scroll pages until the item count measured by
// probe stops growing or the iteration budget runs out. probe is a CSS
// selector counting loaded items. Returns the final item count.
func LoadAll(ctx context.Context, page Pager, probe string, cfg ScrollConfig, logger *slog.Logger) (int, error) {
	// Each field defaults on its own; a zero StagnationLimit would
	// otherwise stop the loop after the first iteration.
	def := DefaultScrollConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.StagnationLimit <= 0 {
		cfg.StagnationLimit = def.StagnationLimit
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = def.SettleDelay
	}
	if logger == nil {
		logger = slog.Default()
	}

	countExpr := fmt.Sprintf("() => document.querySelectorAll(%q).length", probe)

	lastCount := 0
	stagnant := 0

	for i := 0; i < cfg.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return lastCount, err
		}

		if _, err := page.Evaluate("window.scrollTo(0, document.body.scrollHeight)"); err != nil {
			return lastCount, fmt.Errorf("scroll failed: %w", err)
		}

		select {
		case <-ctx.Done():
			return lastCount, ctx.Err()
		case <-time.After(cfg.SettleDelay):
		}

		if clicked, err := page.Evaluate(loadMoreScript); err == nil {
			if n, ok := toInt(clicked); ok && n > 0 {
				logger.Debug("clicked load-more buttons", "count", n)
				stagnant = 0
			}
		}

		raw, err := page.Evaluate(countExpr)
		if err != nil {
			return lastCount, fmt.Errorf("item count probe failed: %w", err)
		}
		count, _ := toInt(raw)

		if count > lastCount {
			lastCount = count
			stagnant = 0
		} else {
			stagnant++
		}

		if stagnant >= cfg.StagnationLimit {
			logger.Debug("content stabilized", "items", lastCount, "iterations", i+1)
			return lastCount, nil
		}
	}

	logger.Debug("scroll budget exhausted", "items", lastCount)
	return lastCount, nil
}

// toInt normalizes the numeric types Evaluate can hand back.
func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
