package services

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	maxSlugLength   = 50
	maxSlugAttempts = 100
	fallbackSlug    = "post"
)

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9 -]`)
	slugWhitespace   = regexp.MustCompile(`\s+`)
	slugHyphens      = regexp.MustCompile(`-+`)
)

// Slugify turns a title into its base slug: lowercase, [a-z0-9-] only, single hyphens, at most
// 50 characters.
func Slugify(title string) string {
	s := strings.ToLower(title)
	s = slugInvalidChars.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = slugWhitespace.ReplaceAllString(s, "-")
	s = slugHyphens.ReplaceAllString(s, "-")
	if len(s) > maxSlugLength {
		s = s[:maxSlugLength]
	}
	s = strings.Trim(s, "-")
	if s == "" {
		return fallbackSlug
	}
	return s
}

// UniqueSlug returns base, or base-1, base-2, ... whichever exists reports as free.
func UniqueSlug(ctx context.Context, base string, exists func(context.Context, string) (bool, error)) (string, error) {
	for i := 0; i < maxSlugAttempts; i++ {
		candidate := base
		if i > 0 {
			candidate = base + "-" + strconv.Itoa(i)
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", errors.Wrap(err, "services:UniqueSlug: exists")
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", conflictError("could not generate a unique slug for %q after %d attempts", base, maxSlugAttempts)
}
