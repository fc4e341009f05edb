package summarize

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/MeduzaReader/internal/config"
)

func newTestSummarizer() *Summarizer {
	return New(config.Summary{TargetLength: 200, CharsPerSentence: 50})
}

func TestSummarizeBlank(t *testing.T) {
	s := newTestSummarizer()
	for _, in := range []string{"", "  ", "\n\n"} {
		out, err := s.Summarize(in, 100)
		require.NoError(t, err)
		assert.Equal(t, "", out)
	}
}

func TestSummarizeNoWords(t *testing.T) {
	_, err := newTestSummarizer().Summarize("... !!! ???", 100)
	assert.ErrorIs(t, err, ErrNoSentences)
}

func TestSentenceBudget(t *testing.T) {
	s := newTestSummarizer()
	assert.Equal(t, 1, s.SentenceBudget(10))
	assert.Equal(t, 1, s.SentenceBudget(50))
	assert.Equal(t, 2, s.SentenceBudget(100))
	assert.Equal(t, 4, s.SentenceBudget(0), "zero falls back to the configured target")
}

func TestSummarizeDropsOffTopicSentence(t *testing.T) {
	sentences := []string{
		"Кошка сидит на окне.",
		"Кошка смотрит с окна на улицу.",
		"Погода сегодня хорошая.",
		"Кошка на окне смотрит на птиц.",
	}
	text := strings.Join(sentences, " ")

	out, err := newTestSummarizer().Summarize(text, 100)
	require.NoError(t, err)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, 2)
	assert.NotContains(t, lines, "Погода сегодня хорошая.")

	last := -1
	for _, line := range lines {
		idx := indexOf(sentences, line)
		require.NotEqual(t, -1, idx, "summary line %q is not a source sentence", line)
		assert.Greater(t, idx, last, "summary must keep original order")
		last = idx
	}
}

func TestSummarizeTiesKeepOriginalOrder(t *testing.T) {
	out, err := newTestSummarizer().Summarize("Один. Два. Три. Четыре.", 100)
	require.NoError(t, err)
	assert.Equal(t, "Один.\nДва.", out)
}

func TestSummarizeShortTextReturnsAllSentences(t *testing.T) {
	out, err := newTestSummarizer().Summarize("Первое предложение. Второе предложение.", 500)
	require.NoError(t, err)
	assert.Equal(t, "Первое предложение.\nВторое предложение.", out)
}

func TestSummarizeJapanese(t *testing.T) {
	text := "猫が窓に座っている。猫は窓から外を見ている。今日は天気が良い。"

	out, err := newTestSummarizer().Summarize(text, 50)
	require.NoError(t, err)
	assert.NotEqual(t, "今日は天気が良い。", out)
	assert.Contains(t, []string{"猫が窓に座っている。", "猫は窓から外を見ている。"}, out)
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("Первое. Второе!\nТретье? Он сказал: «Нет.» Конец…")
	assert.Equal(t, []string{
		"Первое.",
		"Второе!",
		"Третье?",
		"Он сказал: «Нет.»",
		"Конец…",
	}, got)

	assert.Equal(t, []string{"東京は晴れ。", "大阪は雨！"}, splitSentences("東京は晴れ。大阪は雨！"))
	assert.Equal(t, []string{"Без точки"}, splitSentences("Без точки"))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"hello", "мир", "2024"}, tokenize("Hello, МИР 2024!"))
	assert.Equal(t, []string{"東京", "京タ", "タワ", "ワー"}, tokenize("東京タワー"))
	assert.Equal(t, []string{"猫"}, tokenize("猫"))
	assert.Empty(t, tokenize("— …"))
}

func TestSimilarity(t *testing.T) {
	got := similarity([]string{"a", "b", "c"}, []string{"b", "c", "d"})
	assert.InDelta(t, 2/(2*math.Log(3)), got, 1e-12)

	assert.Zero(t, similarity([]string{"a"}, []string{"a", "b"}))
	assert.Zero(t, similarity([]string{"a", "b"}, []string{"c", "d"}))
}

func TestPageRankStar(t *testing.T) {
	// Node 0 is linked to every other node; the leaves are not linked to
	// each other.
	w := [][]float64{
		{0, 1, 1, 1},
		{1, 0, 0, 0},
		{1, 0, 0, 0},
		{1, 0, 0, 0},
	}
	scores := pageRank(w, damping, tolerance, maxIterations)
	require.Len(t, scores, 4)

	for i := 1; i < 4; i++ {
		assert.Greater(t, scores[0], scores[i])
		assert.InDelta(t, scores[1], scores[i], 1e-9)
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestPageRankEmpty(t *testing.T) {
	assert.Nil(t, pageRank(nil, damping, tolerance, maxIterations))
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
