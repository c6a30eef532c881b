// Package lockcheck detects overlapping lock patterns between tasks.
// Locks are advisory path patterns a task declares it will touch; two
// tasks whose patterns can match the same path should not run
// concurrently, and the checker surfaces those pairs as warnings.
package lockcheck

import (
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/beacon-works/beacon/internal/spec"
)

// Overlap is one detected pair of tasks with potentially colliding locks.
type Overlap struct {
	TaskA    string
	TaskB    string
	PatternA string
	PatternB string
}

// globMeta are the characters that start a glob construct.
const globMeta = "*?[{"

// literalPrefix returns the pattern text before the first glob
// metacharacter. For a fully literal pattern that is the whole pattern.
func literalPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, globMeta); i >= 0 {
		return pattern[:i]
	}
	return pattern
}

// isLiteral reports whether the pattern contains no glob constructs.
func isLiteral(pattern string) bool {
	return !strings.ContainsAny(pattern, globMeta)
}

// patternsOverlap reports whether two lock patterns can plausibly match
// a common path. The check is conservative: literal-prefix containment
// catches the general case and deliberately over-approximates, and a
// compiled glob match refines the answer when one side is literal.
func patternsOverlap(a, b string) bool {
	switch {
	case isLiteral(a) && isLiteral(b):
		// Identical paths, or one is a directory prefix of the other.
		return a == b || strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
	case isLiteral(a):
		return globMatchesLiteral(b, a)
	case isLiteral(b):
		return globMatchesLiteral(a, b)
	}

	// Both are globs: overlap if either literal prefix contains the other.
	pa, pb := literalPrefix(a), literalPrefix(b)
	return strings.HasPrefix(pa, pb) || strings.HasPrefix(pb, pa)
}

// globMatchesLiteral compiles the pattern (with / as separator) and
// matches it against the literal path, also treating the pattern's
// literal prefix as a directory guard so "src/**" still flags "src".
func globMatchesLiteral(pattern, path string) bool {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		// Unparseable pattern: fall back to prefix containment.
		p := literalPrefix(pattern)
		return strings.HasPrefix(path, p) || strings.HasPrefix(p, path)
	}
	if g.Match(path) {
		return true
	}
	p := strings.TrimSuffix(literalPrefix(pattern), "/")
	return p != "" && (path == p || strings.HasPrefix(path, p+"/") || strings.HasPrefix(p, path+"/"))
}

// Check returns every overlapping lock pair among the given tasks.
// Tasks without locks never overlap; a task is not compared with itself.
// Pairs come back ordered by task id for stable output.
func Check(tasks []*spec.Task) []Overlap {
	sorted := append([]*spec.Task(nil), tasks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var overlaps []Overlap
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			for _, la := range sorted[i].Locks {
				for _, lb := range sorted[j].Locks {
					if patternsOverlap(la, lb) {
						overlaps = append(overlaps, Overlap{
							TaskA:    sorted[i].ID,
							TaskB:    sorted[j].ID,
							PatternA: la,
							PatternB: lb,
						})
					}
				}
			}
		}
	}
	return overlaps
}

// CheckAgainst returns the overlaps between one task and a set of other
// tasks, used when claiming: the claimed task's locks are compared with
// the locks of every other actively-held task.
func CheckAgainst(task *spec.Task, others []*spec.Task) []Overlap {
	var overlaps []Overlap
	for _, other := range others {
		if other.ID == task.ID {
			continue
		}
		for _, la := range task.Locks {
			for _, lb := range other.Locks {
				if patternsOverlap(la, lb) {
					overlaps = append(overlaps, Overlap{
						TaskA:    task.ID,
						TaskB:    other.ID,
						PatternA: la,
						PatternB: lb,
					})
				}
			}
		}
	}
	return overlaps
}
