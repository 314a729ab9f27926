// Package version holds build information and checks for newer releases.
package version

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/agentdeck/agentctl/internal/util"
	"github.com/go-resty/resty/v2"
)

var (
	// Version is set with -ldflags at build time.
	Version = "dev"

	commit  = "unknown"
	date    = "unknown"
	builtBy = "unknown"
)

// DefaultReleasesURL is the latest-release endpoint of the project.
const DefaultReleasesURL = "https://api.github.com/repos/agentdeck/agentctl/releases/latest"

// SetBuildInfo records what goreleaser passes in.
func SetBuildInfo(commitHash, buildDate, builder string) {
	commit = commitHash
	date = buildDate
	builtBy = builder
}

// GetVersion returns the version with build details.
func GetVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s, by: %s)", Version, commit, date, builtBy)
}

// IsNewer reports whether latest is a higher semantic version than current.
// Unparseable versions, such as "dev", are never older than anything.
func IsNewer(current, latest string) bool {
	cur, err := semver.NewVersion(strings.TrimSpace(current))
	if err != nil {
		return false
	}
	lat, err := semver.NewVersion(strings.TrimSpace(latest))
	if err != nil {
		return false
	}
	return lat.GreaterThan(cur)
}

type release struct {
	TagName string `json:"tag_name"`
}

// Checker looks up the latest release and caches the answer.
type Checker struct {
	url      string
	http     *resty.Client
	retry    *util.RetryConfig
	interval time.Duration

	mu        sync.Mutex
	lastCheck time.Time
	latest    string
}

// NewChecker creates a Checker for url; an empty url means DefaultReleasesURL.
func NewChecker(url string) *Checker {
	if url == "" {
		url = DefaultReleasesURL
	}
	retry := util.DefaultRetryConfig()
	retry.InitialDelay = 500 * time.Millisecond
	return &Checker{
		url:      url,
		http:     resty.New().SetTimeout(10 * time.Second).SetHeader("Accept", "application/vnd.github+json"),
		retry:    retry,
		interval: 24 * time.Hour,
	}
}

// Latest returns the newest release tag.
func (c *Checker) Latest(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.latest != "" && time.Since(c.lastCheck) < c.interval {
		return c.latest, nil
	}

	var rel release
	err := util.RetryWithBackoff(ctx, c.retry, "release check", func() error {
		resp, err := c.http.R().SetContext(ctx).SetResult(&rel).Get(c.url)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("release API returned status %d", resp.StatusCode())
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if rel.TagName == "" {
		return "", fmt.Errorf("release API returned no tag")
	}

	c.latest = rel.TagName
	c.lastCheck = time.Now()
	return c.latest, nil
}

// CheckForUpdate returns the latest tag and whether it is newer than Version.
func (c *Checker) CheckForUpdate(ctx context.Context) (string, bool, error) {
	latest, err := c.Latest(ctx)
	if err != nil {
		return "", false, err
	}
	return latest, IsNewer(Version, latest), nil
}

// UpdateMessage is empty unless a newer release exists.
func (c *Checker) UpdateMessage(ctx context.Context) string {
	latest, newer, err := c.CheckForUpdate(ctx)
	if err != nil || !newer {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\nUpdate available!\n")
	fmt.Fprintf(&sb, "Current version: %s\n", Version)
	fmt.Fprintf(&sb, "Latest version:  %s\n", latest)
	return sb.String()
}
