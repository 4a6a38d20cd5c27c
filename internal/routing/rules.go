// Package routing maps decoded payloads to output bins with ordered rules.
package routing

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spherical/scan-router/internal/domain"
)

// legacyEmptyPattern is how older rule files spell the "no code found" rule.
const legacyEmptyPattern = `^""$`

// Rule routes payloads fully matching Pattern to Folder.
type Rule struct {
	Pattern string
	Folder  string
	re      *regexp.Regexp
}

// NewRule compiles pattern so that it must match a whole payload.
func NewRule(pattern, folder string) (Rule, error) {
	folder = strings.TrimSpace(folder)
	if folder == "" {
		return Rule{}, fmt.Errorf("rule %q has no folder", pattern)
	}
	if err := checkFolder(folder); err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", pattern, err)
	}
	expr := pattern
	if expr == legacyEmptyPattern || expr == `""` {
		expr = `^$`
	}
	re, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", pattern, err)
	}
	return Rule{Pattern: pattern, Folder: folder, re: re}, nil
}

// checkFolder rejects folders that would place pages outside the output root.
func checkFolder(folder string) error {
	clean := filepath.ToSlash(filepath.Clean(folder))
	if filepath.IsAbs(folder) || filepath.VolumeName(folder) != "" || strings.HasPrefix(clean, "/") {
		return fmt.Errorf("folder %q must be relative to the output folder", folder)
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("folder %q leaves the output folder", folder)
	}
	return nil
}

// Matches reports whether the rule matches the entire payload.
func (r Rule) Matches(payload string) bool {
	return r.re != nil && r.re.MatchString(payload)
}

// DefaultRules is used when no rules file is given.
func DefaultRules() []Rule {
	r, _ := NewRule(legacyEmptyPattern, "NOQRS")
	return []Rule{r}
}

// ParseRules reads `pattern=folder` lines in order. The line is split on the
// first '=' and both sides are trimmed. Blank lines and '#' comments are skipped.
func ParseRules(r io.Reader) ([]Rule, error) {
	var rules []Rule
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pattern, folder, ok := strings.Cut(line, "=")
		if !ok {
			return nil, domain.ConfigError(fmt.Sprintf("rules line %d: expected pattern=folder", lineNo), nil)
		}
		rule, err := NewRule(strings.TrimSpace(pattern), folder)
		if err != nil {
			return nil, domain.ConfigError(fmt.Sprintf("rules line %d", lineNo), err)
		}
		rules = append(rules, rule)
	}
	if err := scanner.Err(); err != nil {
		return nil, domain.IOError("read rules", err)
	}
	return rules, nil
}

// LoadRules parses the rules file at path; an empty path yields DefaultRules.
func LoadRules(path string) ([]Rule, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("open rules file %s", path), err)
	}
	defer f.Close()
	return ParseRules(f)
}
