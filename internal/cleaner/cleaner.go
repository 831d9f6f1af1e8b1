// Package cleaner strips boilerplate from extracted document text and
// normalises its whitespace before chunking.
package cleaner

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule is a single boilerplate-removal pattern.
// Patterns are compiled dot-all, so ".*?" spans line breaks.
type Rule struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
}

// RuleSet is the on-disk representation of an ordered rule list.
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

var (
	excessNewlines   = regexp.MustCompile(`\n{3,}`)
	excessWhitespace = regexp.MustCompile(`\s{2,}`)
)

// DefaultRules returns the built-in boilerplate rules in application order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "contact-live", Pattern: `HSE Live - we're here to help.*?Health Service Executive`},
		{Name: "contact-hours", Pattern: `Monday to Friday: 8am to 8pm.*?© Health Service Executive`},
		{Name: "contact-freephone", Pattern: `Freephone: 1800 700 700.*?Disclaimer`},
		{Name: "social-links", Pattern: `HSE Facebook.*?Emergencies`},
		{Name: "cookie-banner", Pattern: `Cookie settings.*?Executive`},
		{Name: "breadcrumb", Pattern: `Back to Health A to Z`},
		{Name: "review-footer", Pattern: `Page last reviewed:.*?Next review due:.*?2024`},
		{Name: "funding-notice", Pattern: `This project has received funding.*?Number 123\.`},
		{Name: "menu-label", Pattern: `^Menu\s*`},
	}
}

type compiledRule struct {
	name string
	re   *regexp.Regexp
}

// Cleaner applies an ordered list of removal rules followed by whitespace
// normalisation. It is safe for concurrent use.
type Cleaner struct {
	rules []compiledRule
}

// New compiles rules in the given order.
func New(rules []Rule) (*Cleaner, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, rule := range rules {
		if strings.TrimSpace(rule.Pattern) == "" {
			return nil, fmt.Errorf("rule %d (%s): empty pattern", i, rule.Name)
		}
		re, err := regexp.Compile("(?s)" + rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): invalid pattern: %w", i, rule.Name, err)
		}
		compiled = append(compiled, compiledRule{name: rule.Name, re: re})
	}
	return &Cleaner{rules: compiled}, nil
}

// Default returns a Cleaner using DefaultRules.
func Default() *Cleaner {
	c, err := New(DefaultRules())
	if err != nil {
		panic(err)
	}
	return c
}

// LoadRules reads an ordered rule list from a YAML file.
// A missing file yields DefaultRules.
func LoadRules(path string) ([]Rule, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultRules(), nil
		}
		return nil, fmt.Errorf("failed to read cleaner rules: %w", err)
	}
	var set RuleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse cleaner rules: %w", err)
	}
	if len(set.Rules) == 0 {
		return nil, fmt.Errorf("cleaner rules file %s defines no rules", path)
	}
	return set.Rules, nil
}

// Rules returns the names of the compiled rules in application order.
func (c *Cleaner) Rules() []string {
	names := make([]string, len(c.rules))
	for i, r := range c.rules {
		names[i] = r.name
	}
	return names
}

// Clean removes boilerplate and collapses whitespace.
// Paragraph breaks are flattened into single spaces.
//
// A single pass can expose new matches (whitespace collapse may join a
// pattern split across lines), so passes repeat until the text is stable.
// Every effective pass shortens the text, which bounds the loop.
func (c *Cleaner) Clean(text string) string {
	if text == "" {
		return ""
	}
	out := c.pass(text)
	for {
		next := c.pass(out)
		if next == out {
			return out
		}
		out = next
	}
}

func (c *Cleaner) pass(text string) string {
	for _, r := range c.rules {
		text = r.re.ReplaceAllLiteralString(text, "")
	}
	text = excessNewlines.ReplaceAllLiteralString(text, "\n\n")
	text = excessWhitespace.ReplaceAllLiteralString(text, " ")
	return strings.TrimSpace(text)
}
