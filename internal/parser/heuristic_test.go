package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/market-scraper/internal/models"
)

const heuristicPage = `
<html><body>
<section id="reviews-block">
	<div>
		<p>Пользуюсь кремом уже месяц. Кожа стала заметно мягче. Запах приятный, расход экономичный.</p>
	</div>
	<div>
		<p>Поставил 4 звезды. Хорошая вещь, но доставка заняла неделю. Повторно заказывать буду.</p>
	</div>
</section>
<footer>
	<p>Мы используем cookie для персонализации. Продолжая, вы соглашаетесь. Подробнее в политике.</p>
</footer>
<div class="promo">
	<p>Скидки до 70 процентов на все категории. Только сегодня. Успейте заказать. Акция ограничена по времени.</p>
</div>
<section id="reviews-block-short">
	<p>Норм.</p>
</section>
</body></html>`

func TestHeuristicReviews(t *testing.T) {
	scrapedAt := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	reviews := HeuristicReviews(mustDoc(t, heuristicPage), "goldapple", scrapedAt)

	require.Len(t, reviews, 2)

	assert.Contains(t, reviews[0].Text, "Пользуюсь кремом")
	assert.Equal(t, models.AnonymousAuthor, reviews[0].Author)
	assert.Equal(t, 0, reviews[0].Rating)
	assert.Equal(t, scrapedAt, reviews[0].PostedAt)

	// "4 звезды" inside the text becomes the rating.
	assert.Contains(t, reviews[1].Text, "4 звезды")
	assert.Equal(t, 4, reviews[1].Rating)

	for _, r := range reviews {
		assert.Equal(t, "goldapple", r.Marketplace)
		assert.NotEmpty(t, r.Fingerprint)
	}
}

func TestHeuristicReviewsIgnoresShortAndChrome(t *testing.T) {
	html := `
	<div class="reviews">
		<p>Коротко.</p>
		<p>Про куки и согласие на обработку. Продолжая, вы принимаете условия. Спасибо.</p>
	</div>`

	reviews := HeuristicReviews(mustDoc(t, html), "ozon", time.Now())
	assert.Empty(t, reviews)
}
