// Package analyzer reduces arbitrarily large build logs to a bounded,
// structured failure report. Analyze is a pure function: identical input
// always yields an identical report, so callers may cache results.
package analyzer

import (
	"regexp"
	"strings"

	"repogent.app/orchestrator/internal/domain"
)

const (
	DefaultMaxLogSizeBytes = 1024 * 1024
	DefaultHeadRatio       = 0.2
	DefaultTailRatio       = 0.8

	maxErrorDetails  = 5
	maxEvidenceBytes = 400

	truncationMarker = "\n\n... [middle section truncated] ...\n\n"
)

// Config bounds the analyzer. Head and tail ratios split the retained byte
// budget between the start of the log (build environment context) and its end
// (where the failure stack trace almost always lives).
type Config struct {
	MaxLogSizeBytes int
	HeadRatio       float64
	TailRatio       float64
}

func DefaultConfig() Config {
	return Config{
		MaxLogSizeBytes: DefaultMaxLogSizeBytes,
		HeadRatio:       DefaultHeadRatio,
		TailRatio:       DefaultTailRatio,
	}
}

// signature is one classification rule. Rules are evaluated in declaration
// order against the retained excerpt; the first match decides the type.
type signature struct {
	failureType domain.FailureType
	pattern     *regexp.Regexp
}

// Signature table adapted from the upstream CI log heuristics: test-runner
// markers first, then compiler errors, package resolution, and timeouts.
var signatures = []signature{
	{domain.FailureTest, regexp.MustCompile(`(?im)FAIL.*?\S+\.test\.\S+`)},
	{domain.FailureTest, regexp.MustCompile(`(?im)Test suite failed`)},
	{domain.FailureTest, regexp.MustCompile(`(?im)^--- FAIL: \S+`)},
	{domain.FailureTest, regexp.MustCompile(`(?im)\d+ failed.*?\d+ passed`)},
	{domain.FailureTest, regexp.MustCompile(`(?im)^FAILED \S+::`)},
	{domain.FailureCompile, regexp.MustCompile(`(?im)error TS\d+:`)},
	{domain.FailureCompile, regexp.MustCompile(`(?im)SyntaxError:`)},
	{domain.FailureCompile, regexp.MustCompile(`(?im)CompileError:`)},
	{domain.FailureCompile, regexp.MustCompile(`(?im)error: .* at line \d+`)},
	{domain.FailureCompile, regexp.MustCompile(`(?im)undefined: \S+`)},
	{domain.FailureDependency, regexp.MustCompile(`(?im)Cannot find module ['"][^'"]+['"]`)},
	{domain.FailureDependency, regexp.MustCompile(`(?im)Module not found`)},
	{domain.FailureDependency, regexp.MustCompile(`(?im)Package \S+ not found`)},
	{domain.FailureDependency, regexp.MustCompile(`(?im)npm ERR!`)},
	{domain.FailureDependency, regexp.MustCompile(`(?im)No matching distribution found for`)},
	{domain.FailureTimeout, regexp.MustCompile(`(?im)timeout of \d+ms exceeded`)},
	{domain.FailureTimeout, regexp.MustCompile(`(?im)The operation was canceled`)},
	{domain.FailureTimeout, regexp.MustCompile(`(?im)ETIMEDOUT`)},
	{domain.FailureTimeout, regexp.MustCompile(`(?im)network timeout`)},
}

var stepPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)##\[error\](.*)`),
	regexp.MustCompile(`(?m)Error: Process completed with exit code \d+`),
}

var severityByType = map[domain.FailureType]string{
	domain.FailureTest:       "HIGH",
	domain.FailureCompile:    "HIGH",
	domain.FailureDependency: "HIGH",
	domain.FailureTimeout:    "MEDIUM",
	domain.FailureUnknown:    "LOW",
}

var suggestionsByType = map[domain.FailureType][]string{
	domain.FailureTest: {
		"Review the failing test cases and fix the implementation",
		"Check if recent code changes broke the test assertions",
		"Run tests locally to reproduce",
	},
	domain.FailureCompile: {
		"Fix syntax errors in the code",
		"Check for type errors if using TypeScript",
		"Ensure all imports are correct",
	},
	domain.FailureDependency: {
		"Install missing dependencies",
		"Check if the lockfile or manifest is up to date",
		"Clear the dependency cache and reinstall",
	},
	domain.FailureTimeout: {
		"Increase the timeout limit in CI configuration",
		"Optimize slow operations",
		"Check for infinite loops or network issues",
	},
	domain.FailureUnknown: {
		"Review build logs for more details",
	},
}

type Analyzer struct {
	cfg Config
}

func New(cfg Config) *Analyzer {
	if cfg.MaxLogSizeBytes <= 0 {
		cfg.MaxLogSizeBytes = DefaultMaxLogSizeBytes
	}
	if cfg.HeadRatio <= 0 || cfg.HeadRatio >= 1 {
		cfg.HeadRatio = DefaultHeadRatio
	}
	if cfg.TailRatio <= 0 || cfg.TailRatio >= 1 {
		cfg.TailRatio = DefaultTailRatio
	}
	return &Analyzer{cfg: cfg}
}

// Analyze classifies a build log into a bounded FailureReport.
func (a *Analyzer) Analyze(logs string) domain.FailureReport {
	retained, headKept, tailKept, truncated := a.truncate(logs)

	failureType, matchStart, matchEnd := classify(retained)

	report := domain.FailureReport{
		FailureType:   failureType,
		HeadBytesKept: headKept,
		TailBytesKept: tailKept,
		Truncated:     truncated,
		Severity:      severityByType[failureType],
		Suggestions:   suggestionsByType[failureType],
	}

	if matchStart >= 0 {
		report.Evidence = excerpt(retained, matchStart, matchEnd)
		report.ErrorDetails = extractDetails(retained, failureType)
	}
	if step := findFailedStep(retained); step != "" {
		report.FailedStep = step
	}
	return report
}

// truncate applies the head/tail retention policy. Returns the retained text,
// the byte counts kept from each end, and whether anything was discarded.
func (a *Analyzer) truncate(logs string) (string, int, int, bool) {
	if len(logs) <= a.cfg.MaxLogSizeBytes {
		return logs, len(logs), 0, false
	}

	markerLen := len(truncationMarker)
	if a.cfg.MaxLogSizeBytes <= markerLen {
		// Budget too small for the marker: plain head cut.
		return logs[:a.cfg.MaxLogSizeBytes], a.cfg.MaxLogSizeBytes, 0, true
	}

	available := a.cfg.MaxLogSizeBytes - markerLen
	headSize := int(float64(available) * a.cfg.HeadRatio)
	tailSize := int(float64(available) * a.cfg.TailRatio)
	if headSize+tailSize > available {
		tailSize = available - headSize
	}

	retained := logs[:headSize] + truncationMarker + logs[len(logs)-tailSize:]
	return retained, headSize, tailSize, true
}

// classify returns the first matching failure type and the match bounds, or
// FailureUnknown with (-1, -1).
func classify(retained string) (domain.FailureType, int, int) {
	for _, sig := range signatures {
		if loc := sig.pattern.FindStringIndex(retained); loc != nil {
			return sig.failureType, loc[0], loc[1]
		}
	}
	return domain.FailureUnknown, -1, -1
}

// excerpt returns the minimal contiguous region around the first match,
// widened to line boundaries and capped at maxEvidenceBytes.
func excerpt(s string, start, end int) string {
	budget := maxEvidenceBytes - (end - start)
	if budget < 0 {
		return s[start : start+maxEvidenceBytes]
	}

	lo := start - budget/2
	if lo < 0 {
		lo = 0
	}
	hi := end + budget/2
	if hi > len(s) {
		hi = len(s)
	}

	if idx := strings.LastIndexByte(s[lo:start], '\n'); idx >= 0 {
		lo += idx + 1
	}
	if idx := strings.IndexByte(s[end:hi], '\n'); idx >= 0 {
		hi = end + idx
	}
	return strings.TrimSpace(s[lo:hi])
}

func extractDetails(retained string, failureType domain.FailureType) []string {
	var details []string
	for _, sig := range signatures {
		if sig.failureType != failureType {
			continue
		}
		for _, m := range sig.pattern.FindAllString(retained, maxErrorDetails) {
			details = append(details, strings.TrimSpace(m))
			if len(details) >= maxErrorDetails {
				return details
			}
		}
	}
	return details
}

func findFailedStep(retained string) string {
	for _, p := range stepPatterns {
		m := p.FindStringSubmatch(retained)
		if m == nil {
			continue
		}
		if len(m) > 1 && strings.TrimSpace(m[1]) != "" {
			return strings.TrimSpace(m[1])
		}
		return strings.TrimSpace(m[0])
	}
	return ""
}
