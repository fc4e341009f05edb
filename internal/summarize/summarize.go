// Package summarize builds extractive summaries by ranking sentences with
// TextRank and keeping the best ones in their original order.
package summarize

import (
	"errors"
	"sort"
	"strings"
	"unicode"

	"github.com/TobiSchelling/MeduzaReader/internal/config"
)

// ErrNoSentences is returned when the text has no sentence with a single
// word in it.
var ErrNoSentences = errors.New("no sentences to rank")

const (
	defaultTargetLength     = 200
	defaultCharsPerSentence = 50
)

// Summarizer selects the most central sentences of a text.
type Summarizer struct {
	targetLength     int
	charsPerSentence int
}

// New creates a Summarizer.
func New(cfg config.Summary) *Summarizer {
	s := &Summarizer{
		targetLength:     cfg.TargetLength,
		charsPerSentence: cfg.CharsPerSentence,
	}
	if s.targetLength <= 0 {
		s.targetLength = defaultTargetLength
	}
	if s.charsPerSentence <= 0 {
		s.charsPerSentence = defaultCharsPerSentence
	}
	return s
}

// SentenceBudget returns how many sentences a summary of targetLength
// characters should hold. It is never less than one.
func (s *Summarizer) SentenceBudget(targetLength int) int {
	if targetLength <= 0 {
		targetLength = s.targetLength
	}
	return max(1, targetLength/s.charsPerSentence)
}

// Summarize returns the top-ranked sentences of text joined by newlines.
// Blank text yields "".
func (s *Summarizer) Summarize(text string, targetLength int) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	var sentences []string
	var tokens [][]string
	for _, sent := range splitSentences(text) {
		toks := tokenize(sent)
		if len(toks) == 0 {
			continue
		}
		sentences = append(sentences, sent)
		tokens = append(tokens, toks)
	}
	if len(sentences) == 0 {
		return "", ErrNoSentences
	}

	budget := s.SentenceBudget(targetLength)
	if budget >= len(sentences) {
		return strings.Join(sentences, "\n"), nil
	}

	scores := pageRank(similarityMatrix(tokens), damping, tolerance, maxIterations)

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	chosen := order[:budget]
	sort.Ints(chosen)

	out := make([]string, len(chosen))
	for i, idx := range chosen {
		out[i] = sentences[idx]
	}
	return strings.Join(out, "\n"), nil
}

// splitSentences breaks text after sentence terminators (Latin and CJK)
// and at line breaks. Runs of terminators and closing quotes stay with
// the sentence they end.
func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			sentences = append(sentences, s)
		}
		cur.Reset()
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' || r == '\r' {
			flush()
			continue
		}
		cur.WriteRune(r)
		if !isTerminator(r) {
			continue
		}
		for i+1 < len(runes) && (isTerminator(runes[i+1]) || isClosing(runes[i+1])) {
			i++
			cur.WriteRune(runes[i])
		}
		flush()
	}
	flush()
	return sentences
}

func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '…':
		return true
	}
	return false
}

func isClosing(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '»', '”', '’', '」', '』', '）':
		return true
	}
	return false
}

// tokenize lower-cases the letter and digit runs of a sentence. Runs that
// contain Japanese or Chinese script have no word spacing, so they are
// expanded into overlapping rune bigrams instead.
func tokenize(sentence string) []string {
	var tokens []string
	var run []rune
	emit := func() {
		if len(run) == 0 {
			return
		}
		if hasCJK(run) {
			tokens = append(tokens, bigrams(run)...)
		} else {
			tokens = append(tokens, string(run))
		}
		run = run[:0]
	}

	for _, r := range sentence {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			run = append(run, unicode.ToLower(r))
			continue
		}
		emit()
	}
	emit()
	return tokens
}

func hasCJK(run []rune) bool {
	for _, r := range run {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) {
			return true
		}
	}
	return false
}

func bigrams(run []rune) []string {
	if len(run) == 1 {
		return []string{string(run)}
	}
	out := make([]string, 0, len(run)-1)
	for i := 0; i+1 < len(run); i++ {
		out = append(out, string(run[i:i+2]))
	}
	return out
}
