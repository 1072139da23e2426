// Package runinfo records where a run happened so case reports can be
// traced back to a CI job.
package runinfo

import (
	"os"
	"regexp"
	"strings"
)

// overridePrefix names the environment variables that override detected
// values, e.g. SQLANCER_CI_COMMIT.
const overridePrefix = "SQLANCER_CI"

var pullRefPattern = regexp.MustCompile(`^refs/pull/([0-9]+)/`)

// BasicInfo captures CI/run metadata for logs and case reports.
type BasicInfo struct {
	CI          bool   `json:"ci,omitempty"`
	Provider    string `json:"provider,omitempty"`
	Repository  string `json:"repository,omitempty"`
	Branch      string `json:"branch,omitempty"`
	Commit      string `json:"commit,omitempty"`
	Job         string `json:"job,omitempty"`
	RunID       string `json:"run_id,omitempty"`
	PullRequest string `json:"pull_request,omitempty"`
	BuildURL    string `json:"build_url,omitempty"`
}

// IsZero reports whether nothing was detected.
func (b BasicInfo) IsZero() bool {
	return b == BasicInfo{}
}

// fields pairs every string field with its override suffix and the
// provider variables consulted in order.
func (b *BasicInfo) fields() []struct {
	dst      *string
	suffix   string
	fallback []string
} {
	return []struct {
		dst      *string
		suffix   string
		fallback []string
	}{
		{&b.Provider, "PROVIDER", []string{"CI_PROVIDER"}},
		{&b.Repository, "REPOSITORY", []string{"GITHUB_REPOSITORY", "CI_PROJECT_PATH"}},
		{&b.Branch, "BRANCH", []string{"GITHUB_HEAD_REF", "GITHUB_REF_NAME", "CI_COMMIT_REF_NAME", "BRANCH_NAME"}},
		{&b.Commit, "COMMIT", []string{"GITHUB_SHA", "CI_COMMIT_SHA", "GIT_COMMIT"}},
		{&b.Job, "JOB", []string{"GITHUB_JOB", "CI_JOB_NAME", "JOB_NAME"}},
		{&b.RunID, "RUN_ID", []string{"GITHUB_RUN_ID", "CI_PIPELINE_ID", "BUILD_ID"}},
		{&b.PullRequest, "PULL_REQUEST", []string{"GITHUB_PR_NUMBER", "PR_NUMBER"}},
		{&b.BuildURL, "BUILD_URL", []string{"CI_JOB_URL", "BUILD_URL"}},
	}
}

// FromEnv builds run metadata from the environment. SQLANCER_CI_* values
// take precedence over what the CI provider exports. It returns nil outside
// CI when nothing is set.
func FromEnv() *BasicInfo {
	info := BasicInfo{}
	explicit := false
	for _, f := range info.fields() {
		if v := env(overridePrefix + "_" + f.suffix); v != "" {
			*f.dst = v
			explicit = true
			continue
		}
		for _, key := range f.fallback {
			if v := env(key); v != "" {
				*f.dst = v
				break
			}
		}
	}

	switch {
	case isTruthy(env("GITHUB_ACTIONS")):
		info.CI = true
		if info.Provider == "" {
			info.Provider = "github_actions"
		}
		if info.BuildURL == "" && info.Repository != "" && info.RunID != "" {
			server := env("GITHUB_SERVER_URL")
			if server == "" {
				server = "https://github.com"
			}
			info.BuildURL = strings.TrimRight(server, "/") + "/" + info.Repository + "/actions/runs/" + info.RunID
		}
	case isTruthy(env("GITLAB_CI")):
		info.CI = true
		if info.Provider == "" {
			info.Provider = "gitlab_ci"
		}
	case isTruthy(env("CI")) || explicit:
		info.CI = true
	}
	if v, ok := os.LookupEnv(overridePrefix); ok && strings.TrimSpace(v) != "" {
		info.CI = isTruthy(v)
	}

	if info.PullRequest == "" {
		if m := pullRefPattern.FindStringSubmatch(env("GITHUB_REF")); len(m) > 1 {
			info.PullRequest = m[1]
		}
	}
	info.Provider = strings.ToLower(info.Provider)
	info.Branch = strings.TrimPrefix(strings.TrimPrefix(info.Branch, "refs/heads/"), "origin/")
	if info.CI && info.Provider == "" {
		info.Provider = "generic"
	}
	if info.IsZero() {
		return nil
	}
	return &info
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func isTruthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
