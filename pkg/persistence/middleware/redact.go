package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/aoide/pkg/domain"
	"github.com/aretw0/aoide/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

type redactMiddleware struct {
	next     ports.ProjectStore
	patterns []*regexp.Regexp
}

// NewRedactMiddleware masks secrets in project sources before they are
// stored. Each pattern must have one capture group: the secret value.
// Patterns with no group mask the whole match.
func NewRedactMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		patterns[i] = re
	}
	return func(next ports.ProjectStore) ports.ProjectStore {
		return &redactMiddleware{next: next, patterns: patterns}
	}, nil
}

// DefaultSecretPatterns catch common credential assignments in Lua sources.
var DefaultSecretPatterns = []string{
	`(?i)(?:api[_-]?key|secret|password|token)\s*=\s*["']([^"']+)["']`,
}

func (m *redactMiddleware) Save(ctx context.Context, project *domain.Project) error {
	cloned := project.Snapshot()
	for _, re := range m.patterns {
		cloned.Source = redact(re, cloned.Source)
	}
	return m.next.Save(ctx, cloned)
}

func (m *redactMiddleware) Load(ctx context.Context, projectID string) (*domain.Project, error) {
	return m.next.Load(ctx, projectID)
}

func (m *redactMiddleware) Delete(ctx context.Context, projectID string) error {
	return m.next.Delete(ctx, projectID)
}

func (m *redactMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func redact(re *regexp.Regexp, s string) string {
	if re.NumSubexp() == 0 {
		return re.ReplaceAllString(s, Mask)
	}
	return re.ReplaceAllStringFunc(s, func(match string) string {
		loc := re.FindStringSubmatchIndex(match)
		if loc == nil || loc[2] < 0 {
			return Mask
		}
		return match[:loc[2]] + Mask + match[loc[3]:]
	})
}
