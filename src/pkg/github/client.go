package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/google/go-github/v66/github"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

var logger = log.WithField("package", "github")

const SourceScheme = "github://"

// ErrInvalidSource indicates a github:// source that cannot be parsed
var ErrInvalidSource = errors.New("invalid github source")

// GitHubClient defines the interface for GitHub API operations
type GitHubClient interface {
	// GetFileContent retrieves the content of a file in a repository at ref (default branch when empty)
	GetFileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error)
}

// Client handles GitHub API interactions using go-github
type Client struct {
	client *github.Client
}

// Ensure Client implements GitHubClient
var _ GitHubClient = (*Client)(nil)

// NewClient creates a new GitHub client. GH_TOKEN or GITHUB_TOKEN is used
// when set, otherwise requests are unauthenticated and only public
// repositories are reachable.
func NewClient() *Client {
	token := os.Getenv("GH_TOKEN")
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token == "" {
		logger.Debug("No GitHub token found, using unauthenticated client")
		return &Client{client: github.NewClient(nil)}
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	return &Client{client: github.NewClient(tc)}
}

// NewClientWithHTTP creates a client on top of httpClient, pointed at the
// API root baseURL when it is not empty.
func NewClientWithHTTP(httpClient *http.Client, baseURL string) (*Client, error) {
	client := github.NewClient(httpClient)
	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse GitHub base URL: %w", err)
		}
		client.BaseURL = u
	}
	return &Client{client: client}, nil
}

// GetFileContent retrieves the decoded content of a single file
func (c *Client) GetFileContent(ctx context.Context, owner, repo, path, ref string) ([]byte, error) {
	logger.WithFields(log.Fields{"owner": owner, "repo": repo, "path": path, "ref": ref}).Debug("Fetching file content...")

	var opts *github.RepositoryContentGetOptions
	if ref != "" {
		opts = &github.RepositoryContentGetOptions{Ref: ref}
	}
	file, dir, _, err := c.client.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s/%s/%s: %w", owner, repo, path, err)
	}
	if file == nil {
		return nil, fmt.Errorf("%s/%s/%s is a directory with %d entries, not a file", owner, repo, path, len(dir))
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode contents of %s/%s/%s: %w", owner, repo, path, err)
	}
	return []byte(content), nil
}

// Source is a parsed github://owner/repo/path[@ref] reference
type Source struct {
	Owner string
	Repo  string
	Path  string
	Ref   string
}

// IsSource reports whether s uses the github:// scheme
func IsSource(s string) bool {
	return strings.HasPrefix(s, SourceScheme)
}

// ParseSource parses "github://owner/repo/path/to/file.yaml@ref"; the ref is optional
func ParseSource(s string) (*Source, error) {
	if !IsSource(s) {
		return nil, fmt.Errorf("%w: %q does not start with %s", ErrInvalidSource, s, SourceScheme)
	}
	rest := strings.TrimPrefix(s, SourceScheme)

	ref := ""
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		rest, ref = rest[:i], rest[i+1:]
	}

	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || strings.Trim(parts[2], "/") == "" {
		return nil, fmt.Errorf("%w: %q, expected %sowner/repo/path[@ref]", ErrInvalidSource, s, SourceScheme)
	}
	return &Source{
		Owner: parts[0],
		Repo:  parts[1],
		Path:  strings.Trim(parts[2], "/"),
		Ref:   ref,
	}, nil
}
