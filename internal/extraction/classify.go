package extraction

import (
	"errors"
	"net/http"
	"regexp"
)

// retryablePattern matches provider messages that signal throttling. Gemini
// reports these as "Error 429 ... RESOURCE_EXHAUSTED", Ollama proxies as
// plain 429 bodies.
var retryablePattern = regexp.MustCompile(`(?i)\b429\b|too many requests|quota|rate[ _-]?limit|resource[ _]exhausted`)

// Classify maps a provider error to an attempt outcome. Only throttling,
// quota and per-call timeouts are retryable; everything else is fatal.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}

	var te *TimeoutError
	if errors.As(err, &te) {
		return OutcomeRetryable
	}

	var status interface{ StatusCode() int }
	if errors.As(err, &status) && status.StatusCode() == http.StatusTooManyRequests {
		return OutcomeRetryable
	}

	if retryablePattern.MatchString(err.Error()) {
		return OutcomeRetryable
	}
	return OutcomeFatal
}
