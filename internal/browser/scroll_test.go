package browser

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePager scripts the item counts a page reports across iterations.
type fakePager struct {
	counts  []int
	calls   int
	clicked int
}

func (f *fakePager) Evaluate(expression string, arg ...interface{}) (interface{}, error) {
	switch {
	case strings.Contains(expression, ".product-card"):
		idx := f.calls
		if idx >= len(f.counts) {
			idx = len(f.counts) - 1
		}
		f.calls++
		return f.counts[idx], nil
	case strings.Contains(expression, "scrollTo"):
		return nil, nil
	default:
		// load-more script
		return f.clicked, nil
	}
}

func fastScrollConfig() ScrollConfig {
	return ScrollConfig{
		MaxIterations:   20,
		StagnationLimit: 5,
		SettleDelay:     time.Millisecond,
	}
}

func TestLoadAllStopsOnStagnation(t *testing.T) {
	page := &fakePager{counts: []int{10, 20, 30, 30, 30, 30, 30, 30}}

	count, err := LoadAll(context.Background(), page, ".product-card", fastScrollConfig(), nil)

	require.NoError(t, err)
	assert.Equal(t, 30, count)
	// 3 growth iterations plus the stagnation window, never the full budget.
	assert.Equal(t, 8, page.calls)
}

func TestLoadAllRespectsBudget(t *testing.T) {
	// Count grows forever; the iteration budget must still end the loop.
	counts := make([]int, 40)
	for i := range counts {
		counts[i] = (i + 1) * 10
	}
	page := &fakePager{counts: counts}

	count, err := LoadAll(context.Background(), page, ".product-card", fastScrollConfig(), nil)

	require.NoError(t, err)
	assert.Equal(t, 200, count)
	assert.Equal(t, 20, page.calls)
}

func TestLoadAllDefaultsStagnationLimit(t *testing.T) {
	// Only the budget is set; a zero stagnation limit must not end the
	// loop after the first iteration.
	page := &fakePager{counts: []int{10, 20, 30, 30, 30, 30, 30, 30}}
	cfg := ScrollConfig{MaxIterations: 20, SettleDelay: time.Millisecond}

	count, err := LoadAll(context.Background(), page, ".product-card", cfg, nil)

	require.NoError(t, err)
	assert.Equal(t, 30, count)
	assert.Equal(t, 8, page.calls)
}

func TestLoadAllHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	page := &fakePager{counts: []int{10}}
	_, err := LoadAll(ctx, page, ".product-card", fastScrollConfig(), nil)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestContainsBlockKeyword(t *testing.T) {
	assert.True(t, ContainsBlockKeyword("<html><body>Подтвердите, что вы не робот</body></html>"))
	assert.True(t, ContainsBlockKeyword("<h1>Access Denied</h1>"))
	assert.False(t, ContainsBlockKeyword("<div class='product-card'>Наушники</div>"))
}
