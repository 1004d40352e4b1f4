// Package search ranks FAQ entries against a chat message. The chatbot
// consults it when no keyword rule matched.
//
// Scoring is Jaccard similarity between the message tokens and the tokens
// of each entry's question: |Q ∩ E| / |Q ∪ E|. Stop words are dropped on
// both sides. An Index is read-only after construction and safe for
// concurrent use.
package search

import (
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Entry is one question and its answer.
type Entry struct {
	Question string
	Answer   string
}

// Result is a ranked entry with its similarity score.
type Result struct {
	Entry Entry
	Score float64
}

// Index is the lookup interface used by the chatbot.
type Index interface {
	TopK(query string, k int) []Result
}

// Option configures an index.
type Option func(*config)

type config struct {
	stopwords map[string]struct{}
	minScore  float64
	maxDocs   int
}

// DefaultStopwords are removed from questions and queries unless
// WithStopwords replaces them.
var DefaultStopwords = []string{
	"a", "an", "and", "are", "can", "do", "does", "for", "how", "i", "in",
	"is", "it", "my", "of", "on", "or", "the", "to", "what", "when", "where",
	"who", "why", "with", "you", "your",
}

func defaultConfig() config {
	c := config{minScore: 0.2}
	WithStopwords(DefaultStopwords)(&c)
	return c
}

// WithStopwords replaces the stop word list. An empty list disables it.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		c.stopwords = nil
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

// WithMinScore drops results scoring below s (default 0.2).
func WithMinScore(s float64) Option {
	return func(c *config) {
		if s >= 0 && s <= 1 {
			c.minScore = s
		}
	}
}

// WithMaxDocs keeps only the first n entries.
func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

type doc struct {
	entry  Entry
	tokens map[string]struct{}
}

type index struct {
	cfg  config
	docs []doc
}

// Load parses the Markdown FAQ at path; see ParseFAQ for the format.
func Load(path string, opts ...Option) (Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	entries, err := ParseFAQ(f)
	if err != nil {
		return nil, err
	}
	return New(entries, opts...), nil
}

// New indexes entries. Entries whose question has no tokens left after
// stop word removal are skipped.
func New(entries []Entry, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	docs := make([]doc, 0, len(entries))
	for _, e := range entries {
		e.Question = strings.TrimSpace(e.Question)
		e.Answer = strings.TrimSpace(e.Answer)
		if e.Answer == "" {
			continue
		}
		toks := tokenize(e.Question, cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		docs = append(docs, doc{entry: e, tokens: toks})
		if cfg.maxDocs > 0 && len(docs) >= cfg.maxDocs {
			break
		}
	}
	return &index{cfg: cfg, docs: docs}
}

// TopK returns up to k entries (default 3) ordered by score, then shorter
// answer, then question text.
func (i *index) TopK(q string, k int) []Result {
	if len(i.docs) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 3
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}

	var out []Result
	for _, d := range i.docs {
		over := overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		score := float64(over) / float64(len(qTokens)+len(d.tokens)-over)
		if score < i.cfg.minScore {
			continue
		}
		out = append(out, Result{Entry: d.entry, Score: score})
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Score != out[b].Score {
			return out[a].Score > out[b].Score
		}
		la, lb := utf8.RuneCountInString(out[a].Entry.Answer), utf8.RuneCountInString(out[b].Entry.Answer)
		if la != lb {
			return la < lb
		}
		return out[a].Entry.Question < out[b].Entry.Question
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(strings.ToLower(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
