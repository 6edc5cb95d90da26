package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCleanPrice(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
	}{
		{"plain integer", "2590", 2590},
		{"ruble sign and spaces", "2 590 ₽", 2590},
		{"nbsp thousands", "12 990 ₽", 12990},
		{"comma decimal", "1299,90", 1299.90},
		{"dot decimal", "1299.90", 1299.90},
		{"european grouping", "1.299,00", 1299.00},
		{"comma grouping", "1,299", 1299},
		{"currency word", "от 499 руб.", 499},
		{"minor units markup", "259000000", 2590000},
		{"empty", "", 0},
		{"no digits", "цена по запросу", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, CleanPrice(tt.input), 0.001)
		})
	}
}

func TestCleanRating(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected float64
	}{
		{"plain", "4.8", 4.8},
		{"comma decimal", "4,8", 4.8},
		{"with suffix text", "4.8 rating", 4.8},
		{"scale suffix", "4.8 из 5", 4.8},
		{"comma scale suffix", "4,6 из 5", 4.6},
		{"label prefix", "Рейтинг: 4.2", 4.2},
		{"out of range", "9.9", 0},
		{"empty", "", 0},
		{"garbage", "нет оценок", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, CleanRating(tt.input), 0.001)
		})
	}
}

func TestReviewRating(t *testing.T) {
	assert.Equal(t, 4, ReviewRating("4"))
	assert.Equal(t, 0, ReviewRating(""))
	assert.Equal(t, 0, ReviewRating("7"))
}

func TestStarCountFromText(t *testing.T) {
	assert.Equal(t, 5, StarCountFromText("Оценка: 5 звёзд"))
	assert.Equal(t, 3, StarCountFromText("rated 3 stars overall"))
	assert.Equal(t, 0, StarCountFromText("отличный товар"))
	assert.Equal(t, 0, StarCountFromText("7 звезд"))
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", CollapseWhitespace("  a\n\tb   c "))
	assert.Equal(t, "", CollapseWhitespace("   "))
}

func TestParseDate(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		input    string
		expected time.Time
	}{
		{"iso date", "2024-01-02", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"dotted date", "02.01.2024", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"russian with year", "2 января 2024", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"russian without year", "2 января", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"unparseable falls back to now", "вчера", now},
		{"empty falls back to now", "", now},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseDate(tt.input, now))
		})
	}
}

func TestIsBoilerplate(t *testing.T) {
	assert.True(t, IsBoilerplate("Мы используем куки для улучшения сервиса"))
	assert.True(t, IsBoilerplate("This site uses cookies"))
	assert.False(t, IsBoilerplate("Отличный товар, быстрая доставка, всем рекомендую."))
}

func TestSanitizeAuthor(t *testing.T) {
	assert.Equal(t, "Мария К.", SanitizeAuthor("  Мария   К. ", "Аноним"))
	assert.Equal(t, "Аноним", SanitizeAuthor("", "Аноним"))

	long := make([]rune, 0, 60)
	for i := 0; i < 60; i++ {
		long = append(long, 'и')
	}
	assert.Equal(t, "Аноним", SanitizeAuthor(string(long), "Аноним"))
}
