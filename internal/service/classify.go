package service

import (
	"github.com/zey041022/poem-web-app/internal/domain"
	"github.com/zey041022/poem-web-app/internal/retry"
)

// classify treats rejected credentials as fatal; everything else may succeed
// on a fresh attempt.
func classify(err error) retry.Decision {
	if domain.Classify(err) == domain.KindAuthentication {
		return retry.Fatal
	}
	return retry.Retryable
}
