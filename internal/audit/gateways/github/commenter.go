// Package github posts audit results as issue comments.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v66/github"

	"github.com/haukened/tf-spf-audit/internal/audit/common/log"
	"github.com/haukened/tf-spf-audit/internal/audit/domain"
)

// ErrUnexpectedStatus is returned when the API answers with anything but 201 Created.
var ErrUnexpectedStatus = errors.New("github: unexpected response status")

// Options configures a Commenter.
type Options struct {
	Token     string
	UserAgent string

	// BaseURL overrides the REST endpoint, e.g. "https://ghe.example.com/api/v3/".
	BaseURL string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	Logger log.Logger
}

// Commenter owns one authenticated API client for the lifetime of a run.
type Commenter struct {
	client *gh.Client
	logger log.Logger
}

// NewCommenter builds an authenticated client from opts.
func NewCommenter(opts Options) (*Commenter, error) {
	client := gh.NewClient(opts.HTTPClient)
	if opts.Token != "" {
		client = client.WithAuthToken(opts.Token)
	}
	if opts.UserAgent != "" {
		client.UserAgent = opts.UserAgent
	}
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid github base url %q: %w", opts.BaseURL, err)
		}
		client.BaseURL = u
	}
	return &Commenter{client: client, logger: log.OrNoop(opts.Logger)}, nil
}

// AddIssueComment posts body as a comment on owner/repo#issue. It succeeds
// only when the API answers 201 Created.
func (c *Commenter) AddIssueComment(ctx context.Context, owner, repo string, issue int, body string) error {
	comment, resp, err := c.client.Issues.CreateComment(ctx, owner, repo, issue, &gh.IssueComment{Body: gh.String(body)})
	if err != nil {
		return fmt.Errorf("failed to comment on %s/%s#%d: %w", owner, repo, issue, err)
	}
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	c.logger.Info(map[string]any{
		"owner":   owner,
		"repo":    repo,
		"issue":   issue,
		"comment": comment.GetHTMLURL(),
	}, "Posted issue comment")
	return nil
}

// FormatComment renders the violations of r as a Markdown comment grouped
// by apex domain.
func FormatComment(r domain.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %d hostname(s) without an SPF record\n\n", len(r.Violations))
	fmt.Fprintf(&b, "These hosts have an A or MX record under `%s` but no `v=spf1` TXT record.\n", r.Root)

	keys, groups := r.ByApex()
	for _, apex := range keys {
		fmt.Fprintf(&b, "\n**%s**\n", apex)
		for _, v := range groups[apex] {
			fmt.Fprintf(&b, " - `%s`", v.Hostname)
			if v.LiveSPF != nil && *v.LiveSPF {
				b.WriteString(" (SPF published outside this repository)")
			}
			b.WriteByte('\n')
		}
	}
	if r.RunID != "" {
		fmt.Fprintf(&b, "\n<sub>run %s</sub>\n", r.RunID)
	}
	return b.String()
}
