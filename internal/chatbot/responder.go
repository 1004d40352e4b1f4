// Package chatbot implements the keyword-driven responder behind the chat
// endpoints. Rules are loaded from YAML (an embedded default set ships with
// the binary) and matched against a tokenized message; there is no learned
// model involved.
//
// Matching:
//   - A message is lowercased and split into Unicode word tokens.
//   - A keyword hits when all of its tokens occur in the message, so
//     multi-word keywords ("thank you") work without substring false
//     positives ("hi" does not match "this").
//   - The rule with the most hits wins; ties go to the earlier rule.
//   - No hits consults the FAQ index, when one is attached, and then the
//     fallback rule.
//
// A RuleResponder is immutable after construction and safe for concurrent use.
package chatbot

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tbourn/go-complaint-desk/internal/domain"
	"github.com/tbourn/go-complaint-desk/internal/search"
)

//go:embed rules.yaml
var defaultRules []byte

//go:embed faq.md
var defaultFAQ []byte

// FAQIntent is reported when the reply came from the FAQ index.
const FAQIntent = "faq"

// FallbackIntent names the intent reported when no rule matched and the rule
// file did not name one.
const FallbackIntent = "fallback"

// Rule maps a set of keywords to a canned reply.
type Rule struct {
	Intent      string   `yaml:"intent"`
	Keywords    []string `yaml:"keywords"`
	Reply       string   `yaml:"reply"`
	Suggestions []string `yaml:"suggestions"`
}

// RuleSet is the YAML document shape.
type RuleSet struct {
	Fallback Rule   `yaml:"fallback"`
	Rules    []Rule `yaml:"rules"`
}

// Entity is a typed value recognized in a message.
type Entity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Reply is the responder's answer to one message.
type Reply struct {
	Intent      string
	Text        string
	Confidence  float64
	Suggestions []string
	Entities    []Entity
}

// Responder produces a reply for a user message.
type Responder interface {
	Respond(text string) Reply
}

type compiledRule struct {
	Rule
	keywords []map[string]struct{}
}

// RuleResponder is the YAML-configured Responder.
type RuleResponder struct {
	rules    []compiledRule
	fallback Rule
	faq      search.Index
}

// Load reads rules from path, or the embedded defaults when path is empty.
func Load(path string) (*RuleResponder, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(defaultRules)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Default returns the responder built from the embedded rules.
func Default() *RuleResponder {
	r, err := Parse(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("chatbot: embedded rules: %v", err))
	}
	return r
}

// DefaultFAQ indexes the embedded FAQ document.
func DefaultFAQ() search.Index {
	entries, err := search.ParseFAQ(bytes.NewReader(defaultFAQ))
	if err != nil {
		panic(fmt.Sprintf("chatbot: embedded faq: %v", err))
	}
	return search.New(entries)
}

// WithFAQ returns a copy of r that answers unmatched messages from idx.
// A nil idx detaches the index.
func (r *RuleResponder) WithFAQ(idx search.Index) *RuleResponder {
	cp := *r
	cp.faq = idx
	return &cp
}

// Parse builds a responder from a YAML rule document.
func Parse(data []byte) (*RuleResponder, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("chatbot: parse rules: %w", err)
	}
	if strings.TrimSpace(rs.Fallback.Reply) == "" {
		return nil, errors.New("chatbot: fallback reply is required")
	}
	if rs.Fallback.Intent == "" {
		rs.Fallback.Intent = FallbackIntent
	}

	out := &RuleResponder{fallback: rs.Fallback}
	for i, r := range rs.Rules {
		if r.Intent == "" || strings.TrimSpace(r.Reply) == "" {
			return nil, fmt.Errorf("chatbot: rule %d needs an intent and a reply", i)
		}
		cr := compiledRule{Rule: r}
		for _, k := range r.Keywords {
			if toks := tokenize(k); len(toks) > 0 {
				cr.keywords = append(cr.keywords, toks)
			}
		}
		if len(cr.keywords) == 0 {
			return nil, fmt.Errorf("chatbot: rule %q has no keywords", r.Intent)
		}
		out.rules = append(out.rules, cr)
	}
	return out, nil
}

// Respond picks the best rule for text. Confidence is 0.5 for the fallback
// and grows with the share of message tokens covered by keyword hits.
func (r *RuleResponder) Respond(text string) Reply {
	toks := tokenize(text)

	best, bestHits, bestCovered := -1, 0, 0
	for i, rule := range r.rules {
		hits, covered := 0, 0
		for _, kw := range rule.keywords {
			if contains(toks, kw) {
				hits++
				covered += len(kw)
			}
		}
		if hits > bestHits {
			best, bestHits, bestCovered = i, hits, covered
		}
	}

	rep := Reply{Entities: Entities(text)}
	if best < 0 && r.faq != nil {
		if hits := r.faq.TopK(text, 1); len(hits) > 0 {
			rep.Intent = FAQIntent
			rep.Text = hits[0].Entry.Answer
			rep.Confidence = 0.5 + 0.5*hits[0].Score
			rep.Suggestions = clone(r.fallback.Suggestions)
			return rep
		}
	}
	if best < 0 {
		rep.Intent = r.fallback.Intent
		rep.Text = r.fallback.Reply
		rep.Confidence = 0.5
		rep.Suggestions = clone(r.fallback.Suggestions)
		return rep
	}

	rule := r.rules[best]
	rep.Intent = rule.Intent
	rep.Text = rule.Reply
	rep.Confidence = 0.5 + 0.5*float64(min(bestCovered, len(toks)))/float64(len(toks))
	rep.Suggestions = clone(rule.Suggestions)
	if len(rep.Suggestions) == 0 {
		rep.Suggestions = clone(r.fallback.Suggestions)
	}
	return rep
}

// Intents lists the configured intents in rule order, then "faq" when an
// index is attached, fallback last.
func (r *RuleResponder) Intents() []string {
	out := make([]string, 0, len(r.rules)+2)
	for _, rule := range r.rules {
		out = append(out, rule.Intent)
	}
	if r.faq != nil {
		out = append(out, FAQIntent)
	}
	return append(out, r.fallback.Intent)
}

// Entities returns the complaint categories mentioned in text, in
// domain.Categories order.
func Entities(text string) []Entity {
	toks := tokenize(text)
	var out []Entity
	for _, c := range domain.Categories {
		if contains(toks, tokenize(string(c))) {
			out = append(out, Entity{Type: "category", Value: string(c)})
		}
	}
	return out
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*`)

func tokenize(s string) map[string]struct{} {
	words := wordRE.FindAllString(strings.ToLower(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

// contains reports whether every token of sub occurs in set.
func contains(set, sub map[string]struct{}) bool {
	if len(sub) == 0 || len(set) < len(sub) {
		return false
	}
	for k := range sub {
		if _, ok := set[k]; !ok {
			return false
		}
	}
	return true
}

func clone(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return append([]string(nil), s...)
}
