package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/regis-cli/regis-playbook/src/pkg/github"
	"github.com/regis-cli/regis-playbook/src/pkg/models"
)

var logger = log.WithField("package", "loader")

var (
	// ErrPlaybookNotFound indicates that a local playbook file doesn't exist
	ErrPlaybookNotFound = errors.New("playbook not found")
	// ErrUnsupportedFormat indicates a document that is neither JSON nor YAML
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

const DEFAULT_HTTP_TIMEOUT = 30 * time.Second

var (
	YAML_EXTENSIONS = []string{".yaml", ".yml"}
	JSON_EXTENSIONS = []string{".json"}
)

// PlaybookLoader defines the interface for loading playbooks and reports
type PlaybookLoader interface {
	// LoadPlaybook loads a playbook from a local path, an http(s) URL or a github:// source
	LoadPlaybook(ctx context.Context, source string) (*models.Playbook, error)
	// LoadReport loads an analysis report from a local JSON or YAML file
	LoadReport(ctx context.Context, path string) (map[string]any, error)
}

// Loader resolves playbook sources. It is safe for concurrent use once built.
type Loader struct {
	HTTPClient *http.Client
	GitHub     github.GitHubClient
}

// Ensure Loader implements PlaybookLoader
var _ PlaybookLoader = (*Loader)(nil)

// NewLoader creates a loader with default settings
func NewLoader() *Loader {
	return &Loader{
		HTTPClient: &http.Client{Timeout: DEFAULT_HTTP_TIMEOUT},
		GitHub:     github.NewClient(),
	}
}

func (l *Loader) LoadPlaybook(ctx context.Context, source string) (*models.Playbook, error) {
	logger.WithField("source", source).Info("Loading playbook...")

	data, format, err := l.fetch(ctx, source)
	if err != nil {
		return nil, err
	}
	pb, err := ParsePlaybook(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse playbook %s: %w", source, err)
	}
	return pb, nil
}

func (l *Loader) LoadReport(_ context.Context, path string) (map[string]any, error) {
	logger.WithField("path", path).Info("Loading report...")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report %s: %w", path, err)
	}
	report, err := ParseReport(data, FormatFromName(path, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return report, nil
}

func (l *Loader) fetch(ctx context.Context, source string) ([]byte, Format, error) {
	switch {
	case github.IsSource(source):
		return l.fetchGitHub(ctx, source)
	case strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://"):
		return l.fetchURL(ctx, source)
	default:
		return l.fetchFile(source)
	}
}

func (l *Loader) fetchFile(source string) ([]byte, Format, error) {
	if _, err := os.Stat(source); os.IsNotExist(err) {
		return nil, "", fmt.Errorf("%w: %s", ErrPlaybookNotFound, source)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read playbook %s: %w", source, err)
	}
	return data, FormatFromName(source, ""), nil
}

func (l *Loader) fetchURL(ctx context.Context, source string) ([]byte, Format, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download playbook from %s: %w", source, err)
	}
	client := l.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download playbook from %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("failed to download playbook from %s: status %d", source, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download playbook from %s: %w", source, err)
	}
	return data, FormatFromName(source, resp.Header.Get("Content-Type")), nil
}

func (l *Loader) fetchGitHub(ctx context.Context, source string) ([]byte, Format, error) {
	src, err := github.ParseSource(source)
	if err != nil {
		return nil, "", err
	}
	if l.GitHub == nil {
		return nil, "", fmt.Errorf("cannot load %s: no GitHub client configured", source)
	}
	data, err := l.GitHub.GetFileContent(ctx, src.Owner, src.Repo, src.Path, src.Ref)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download playbook from %s: %w", source, err)
	}
	return data, FormatFromName(src.Path, ""), nil
}

// FormatFromName guesses a document format from a file name or URL, then
// from a content type. YAML is the default, since it also reads most JSON.
func FormatFromName(name, contentType string) Format {
	if u := strings.SplitN(name, "?", 2)[0]; u != "" {
		ext := strings.ToLower(path.Ext(u))
		for _, e := range JSON_EXTENSIONS {
			if ext == e {
				return FormatJSON
			}
		}
		for _, e := range YAML_EXTENSIONS {
			if ext == e {
				return FormatYAML
			}
		}
	}
	if strings.Contains(contentType, "json") {
		return FormatJSON
	}
	return FormatYAML
}

// SourceName derives a short identifier from a playbook source: the file
// name without extension.
func SourceName(source string) string {
	s := source
	if github.IsSource(s) {
		if i := strings.LastIndex(s, "@"); i >= 0 {
			s = s[:i]
		}
	}
	s = strings.SplitN(s, "?", 2)[0]
	base := filepath.Base(path.Clean(s))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ParsePlaybook decodes a playbook document, keeping the declared key order
// of every section.
func ParsePlaybook(data []byte, format Format) (*models.Playbook, error) {
	var node yaml.Node
	switch format {
	case FormatJSON:
		n, err := jsonToNode(data)
		if err != nil {
			return nil, err
		}
		node = *n
	case FormatYAML:
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if node.Kind == 0 || (node.Kind == yaml.DocumentNode && len(node.Content) == 0) {
		return nil, errors.New("empty playbook document")
	}
	root := &node
	if root.Kind == yaml.DocumentNode {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, errors.New("playbook document must be a mapping")
	}

	var pb models.Playbook
	if err := root.Decode(&pb); err != nil {
		return nil, fmt.Errorf("invalid playbook: %w", err)
	}
	pb.Normalize()
	return &pb, nil
}

// ParseReport decodes an analysis report into a normalized tree.
func ParseReport(data []byte, format Format) (map[string]any, error) {
	switch format {
	case FormatJSON:
		var report map[string]any
		if err := models.UnmarshalJSON(data, &report); err != nil {
			return nil, err
		}
		return report, nil
	case FormatYAML:
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		report, ok := models.Normalize(raw).(map[string]any)
		if !ok {
			return nil, fmt.Errorf("report must be a mapping, got %T", raw)
		}
		return report, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}
