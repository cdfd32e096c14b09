package git

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/mrz1836/berth/internal/constants"
)

// slugInvalid matches any run of characters that is NOT a lowercase letter or digit.
var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns an issue title into a branch-safe slug:
//   - accents are folded ("Café" -> "cafe")
//   - lowercased
//   - runs of other characters become a single hyphen
//   - trimmed to maxLen without leaving a trailing hyphen
//
// Returns constants.UntitledSlug if nothing usable remains.
//
// Example: "Fix: Login times out!" -> "fix-login-times-out"
func Slugify(title string, maxLen int) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		title,
	)
	if err != nil {
		folded = title
	}

	slug := slugInvalid.ReplaceAllString(strings.ToLower(folded), "-")
	slug = strings.Trim(slug, "-")

	if maxLen > 0 && len(slug) > maxLen {
		slug = strings.TrimRight(slug[:maxLen], "-")
	}
	if slug == "" {
		return constants.UntitledSlug
	}
	return slug
}

// BranchName builds the workspace branch for an issue: "<KEY>/<slug>".
//
// Example: BranchName("DEMO-1", "Fix login", 50) -> "DEMO-1/fix-login"
func BranchName(key, title string, maxSlug int) string {
	return key + "/" + Slugify(title, maxSlug)
}

// BranchExists checks if a local branch exists in the repository at dir.
func BranchExists(ctx context.Context, exec Executor, dir, name string) (bool, error) {
	_, err := exec.Run(ctx, dir, "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	if err != nil {
		if IsNotFoundRef(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
