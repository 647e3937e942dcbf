package operation

import (
	"strings"
)

// suspiciousMarkers are phrases commonly used to try to override a
// system prompt from within user-supplied content. The list is fixed
// and case-insensitive; it is not meant to be exhaustive, only to
// catch the common phrasings an injected instruction would use.
var suspiciousMarkers = []string{
	"ignore previous instructions",
	"ignore the previous instructions",
	"ignore all previous instructions",
	"disregard the above",
	"disregard all prior instructions",
	"disregard your instructions",
	"you are now",
	"new instructions:",
	"system prompt:",
	"reveal your system prompt",
	"forget everything above",
}

// checkSuspiciousContent scans an assembled prompt for prompt-injection
// heuristics: marker phrases, and structurally unbalanced <system>
// tags or <| special-token delimiters, which a legitimate user prompt
// has no reason to contain. It returns the reasons found, empty if
// none.
func checkSuspiciousContent(text string) []string {
	var reasons []string

	lower := strings.ToLower(text)
	for _, marker := range suspiciousMarkers {
		if strings.Contains(lower, marker) {
			reasons = append(reasons, "matched marker phrase: "+marker)
		}
	}

	if strings.Count(lower, "<system>") != strings.Count(lower, "</system>") {
		reasons = append(reasons, "unbalanced <system> tag")
	}

	if strings.Contains(text, "<|") {
		reasons = append(reasons, "contains <| special-token delimiter")
	}

	return reasons
}
