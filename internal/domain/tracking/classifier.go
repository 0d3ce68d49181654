package tracking

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ouredu/request-tracker/pkg/config"
)

// Classification is the business-level categorization of an endpoint.
// Module is always set ("unknown" when nothing matched); Submodule and
// Label are empty when absent.
type Classification struct {
	Module    string
	Submodule string
	Label     string
}

// ClassifyInput carries the per-request signals the classifier resolves
// against, in priority order: an explicit annotation, then the configured
// pattern map, the route-name convention, the path segments, and finally
// the controller identifier.
type ClassifyInput struct {
	Path             string
	RouteName        string
	ControllerAction string
	// Annotation is a declared "module[.submodule][|label]" mapping
	// attached at the handler; it bypasses every heuristic.
	Annotation string
}

var controllerPattern = regexp.MustCompile(`(\w+)Controller@(\w+)`)

// pathNoise lists segments stripped when humanizing a path into a label.
var pathNoise = map[string]bool{"api": true, "v1": true, "v2": true}

// ParseMapping parses a "module[.submodule][|label]" target string.
func ParseMapping(mapping string) Classification {
	var c Classification

	if i := strings.Index(mapping, "|"); i >= 0 {
		c.Label = mapping[i+1:]
		mapping = mapping[:i]
	}

	if i := strings.Index(mapping, "."); i >= 0 {
		c.Module = mapping[:i]
		c.Submodule = mapping[i+1:]
	} else {
		c.Module = mapping
	}

	return c
}

type patternKind int

const (
	patternSuffix patternKind = iota
	patternGlob
	patternRegex
)

// pattern is one compiled path predicate. Three kinds are supported:
// literal suffix match, shell glob with '*', and "regex:"-prefixed regular
// expressions. All matching is case-insensitive against a path normalized
// by trimming leading and trailing slashes.
type pattern struct {
	raw  string
	kind patternKind
	re   *regexp.Regexp
}

func compilePattern(raw string) (pattern, error) {
	if rest, ok := strings.CutPrefix(raw, "regex:"); ok {
		re, err := regexp.Compile("(?i)" + rest)
		if err != nil {
			return pattern{}, fmt.Errorf("invalid pattern %q: %w", raw, err)
		}
		return pattern{raw: raw, kind: patternRegex, re: re}, nil
	}

	if strings.Contains(raw, "*") {
		parts := strings.Split(raw, "*")
		for i, p := range parts {
			parts[i] = regexp.QuoteMeta(p)
		}
		re, err := regexp.Compile("(?i)^" + strings.Join(parts, ".*") + "$")
		if err != nil {
			return pattern{}, fmt.Errorf("invalid pattern %q: %w", raw, err)
		}
		return pattern{raw: raw, kind: patternGlob, re: re}, nil
	}

	return pattern{raw: raw, kind: patternSuffix}, nil
}

func (p pattern) matches(path string) bool {
	switch p.kind {
	case patternRegex:
		return p.re.MatchString(path)
	case patternGlob:
		return p.re.MatchString(path)
	default:
		return strings.HasSuffix(strings.ToLower(path), strings.ToLower(normalizePath(p.raw)))
	}
}

// PatternSet is an ordered list of compiled path predicates.
type PatternSet struct {
	patterns []pattern
}

// CompilePatterns compiles raw patterns, preserving order.
func CompilePatterns(raw []string) (PatternSet, error) {
	set := PatternSet{patterns: make([]pattern, 0, len(raw))}
	for _, r := range raw {
		p, err := compilePattern(r)
		if err != nil {
			return PatternSet{}, err
		}
		set.patterns = append(set.patterns, p)
	}
	return set, nil
}

// Matches reports whether any pattern in the set matches the path.
func (s PatternSet) Matches(path string) bool {
	path = normalizePath(path)
	for _, p := range s.patterns {
		if p.matches(path) {
			return true
		}
	}
	return false
}

type mappingRule struct {
	pattern pattern
	target  Classification
}

// ClassifierConfig is the compiled, immutable configuration the classifier
// consumes. Build it once at startup with NewClassifierConfig.
type ClassifierConfig struct {
	rules              []mappingRule
	autoExtractSegment int
	registry           *Registry
}

// NewClassifierConfig compiles the configured pattern map and binds the
// handler annotation registry.
func NewClassifierConfig(cfg config.ModuleMappingConfig, registry *Registry) (*ClassifierConfig, error) {
	cc := &ClassifierConfig{
		autoExtractSegment: cfg.AutoExtractSegment,
		registry:           registry,
	}

	for _, rule := range cfg.Patterns {
		p, err := compilePattern(rule.Pattern)
		if err != nil {
			return nil, err
		}
		cc.rules = append(cc.rules, mappingRule{pattern: p, target: ParseMapping(rule.Target)})
	}

	return cc, nil
}

// Classify derives module, submodule and a human label for an endpoint.
// Resolution short-circuits at the first source that yields a module; given
// identical inputs and config it always returns the identical result.
func Classify(in ClassifyInput, cfg *ClassifierConfig) Classification {
	// 1. Declared annotation, either inline or from the handler registry.
	if in.Annotation != "" {
		if c := ParseMapping(in.Annotation); c.Module != "" {
			return c
		}
	}
	if cfg.registry != nil && in.ControllerAction != "" {
		if c, ok := cfg.registry.Lookup(in.ControllerAction); ok {
			return c
		}
	}

	path := normalizePath(in.Path)

	// 2. Configured path-pattern map, first match wins.
	for _, rule := range cfg.rules {
		if rule.pattern.matches(path) {
			return rule.target
		}
	}

	// 3. Dot-delimited route name: module.submodule.action.
	if strings.Contains(in.RouteName, ".") {
		if c := classifyFromRouteName(in.RouteName); c.Module != "" {
			return c
		}
	}

	// 4. Path-segment heuristic.
	if c := classifyFromPath(path, cfg.autoExtractSegment); c.Module != "" {
		return c
	}

	// 5. Controller-name heuristic.
	if c := classifyFromController(in.ControllerAction); c.Module != "" {
		return c
	}

	// 6. Fallback sentinel.
	return Classification{Module: ModuleUnknown, Label: humanizePath(path)}
}

func classifyFromRouteName(routeName string) Classification {
	parts := strings.SplitN(routeName, ".", 3)

	c := Classification{Module: parts[0]}
	if len(parts) > 1 {
		c.Submodule = parts[1]
	}
	if len(parts) > 2 {
		subject := c.Submodule
		if subject == "" {
			subject = c.Module
		}
		c.Label = ucfirst(parts[2]) + " " + ucfirst(subject)
	}

	return c
}

func classifyFromPath(path string, segmentIndex int) Classification {
	segments := splitPath(path)
	if segmentIndex < 0 || segmentIndex >= len(segments) {
		return Classification{}
	}

	module := segments[segmentIndex]
	submodule := ""

	if isNumeric(module) {
		// The indexed segment is a resource ID; shift right.
		if segmentIndex+1 >= len(segments) {
			return Classification{}
		}
		module = segments[segmentIndex+1]
		if segmentIndex+2 < len(segments) {
			submodule = segments[segmentIndex+2]
		}
	} else {
		if segmentIndex+1 < len(segments) && !isNumeric(segments[segmentIndex+1]) {
			submodule = segments[segmentIndex+1]
		} else if segmentIndex+2 < len(segments) {
			submodule = segments[segmentIndex+2]
		}
	}

	// Numeric submodules are resource IDs, not category names.
	if isNumeric(submodule) {
		submodule = ""
	}
	if module == "" || isNumeric(module) {
		return Classification{}
	}

	label := ucfirst(module)
	if submodule != "" {
		label = ucfirst(submodule) + " in " + ucfirst(module)
	}

	return Classification{Module: module, Submodule: submodule, Label: label}
}

func classifyFromController(controllerAction string) Classification {
	m := controllerPattern.FindStringSubmatch(controllerAction)
	if m == nil {
		return Classification{}
	}

	return Classification{
		Module: strings.ToLower(m[1]),
		Label:  ucfirst(m[2]) + " " + ucfirst(m[1]),
	}
}

// humanizePath turns "api/v1/users/42/profile" into "Users Profile".
func humanizePath(path string) string {
	var words []string
	for _, seg := range splitPath(path) {
		if pathNoise[strings.ToLower(seg)] || isNumeric(seg) {
			continue
		}
		words = append(words, ucfirst(seg))
	}
	if len(words) == 0 {
		return "Resource Access"
	}
	return strings.Join(words, " ")
}

func normalizePath(path string) string {
	return strings.Trim(path, "/")
}

func splitPath(path string) []string {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func ucfirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
