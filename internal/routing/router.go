package routing

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/spherical/scan-router/internal/domain"
)

// Options tune the router beyond the rule list.
type Options struct {
	// CompositePattern identifies composite IDs whose prefix groups pages.
	CompositePattern string
	// SubfolderLength is how many leading characters of a composite ID name its subfolder.
	SubfolderLength int
	// NoCodeFolder is used for undecoded pages when no rule matches the empty payload.
	NoCodeFolder string
	// UnroutedFolder receives payloads that no rule matches.
	UnroutedFolder string
}

// DefaultOptions returns the standard router options.
func DefaultOptions() Options {
	return Options{
		CompositePattern: `^\d{2}-\d{3}-[A-Z]-.+$`,
		SubfolderLength:  8,
		NoCodeFolder:     "NOQRS",
		UnroutedFolder:   "UNROUTED",
	}
}

// Router applies ordered rules to decoded payloads. It is read-only after
// construction and safe for concurrent use.
type Router struct {
	rules     []Rule
	composite *regexp.Regexp
	opts      Options
}

// NewRouter builds a router; zero-valued options fall back to DefaultOptions.
func NewRouter(rules []Rule, opts Options) (*Router, error) {
	def := DefaultOptions()
	if opts.CompositePattern == "" {
		opts.CompositePattern = def.CompositePattern
	}
	if opts.SubfolderLength <= 0 {
		opts.SubfolderLength = def.SubfolderLength
	}
	if opts.NoCodeFolder == "" {
		opts.NoCodeFolder = def.NoCodeFolder
	}
	if opts.UnroutedFolder == "" {
		opts.UnroutedFolder = def.UnroutedFolder
	}
	for _, folder := range []string{opts.NoCodeFolder, opts.UnroutedFolder} {
		if err := checkFolder(folder); err != nil {
			return nil, domain.ConfigError("invalid router folder", err)
		}
	}
	composite, err := regexp.Compile(opts.CompositePattern)
	if err != nil {
		return nil, domain.ConfigError("invalid composite pattern", err)
	}
	return &Router{
		rules:     append([]Rule(nil), rules...),
		composite: composite,
		opts:      opts,
	}, nil
}

// Rules returns the rules in priority order.
func (r *Router) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}

// Match returns the first rule that matches the whole payload.
func (r *Router) Match(payload string) (Rule, bool) {
	for _, rule := range r.rules {
		if rule.Matches(payload) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Subfolder returns the grouping folder for composite IDs, or "".
func (r *Router) Subfolder(payload string) string {
	if !r.composite.MatchString(payload) {
		return ""
	}
	runes := []rune(payload)
	if len(runes) < r.opts.SubfolderLength {
		return ""
	}
	return SanitizeName(string(runes[:r.opts.SubfolderLength]))
}

// Route returns one decision per payload, or a single no-code decision named
// after the page index when payloads is empty.
func (r *Router) Route(page domain.PageRef, payloads []string) []domain.RoutingDecision {
	if len(payloads) == 0 {
		folder := r.opts.NoCodeFolder
		if rule, ok := r.Match(""); ok {
			folder = rule.Folder
		}
		return []domain.RoutingDecision{{
			Folder:    folder,
			Subfolder: SanitizeName(page.Document),
			FileName:  strconv.Itoa(page.Index),
		}}
	}

	decisions := make([]domain.RoutingDecision, 0, len(payloads))
	for _, p := range payloads {
		d := domain.RoutingDecision{
			Payload:   p,
			Subfolder: r.Subfolder(p),
			FileName:  SanitizeName(p),
		}
		if rule, ok := r.Match(p); ok {
			d.Folder = rule.Folder
		} else {
			d.Folder = r.opts.UnroutedFolder
			d.Unrouted = true
		}
		decisions = append(decisions, d)
	}
	return decisions
}

// SanitizeName makes s usable as a single path element.
func SanitizeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == 0x7f:
			return '_'
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		}
		return r
	}, strings.TrimSpace(s))
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
