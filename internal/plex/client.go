// Package plex asks a Plex Media Server to rescan library paths after files
// are linked or converted into them.
package plex

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/vmunix/plexorg/pkg/release"
)

// ErrNoSection indicates no library section covers a path or media type.
var ErrNoSection = errors.New("no matching library section")

// StatusError is an unexpected HTTP status from Plex.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("plex %s: unexpected status %d", e.Op, e.Code)
}

// Section types as reported by Plex.
const (
	TypeMovie = "movie"
	TypeShow  = "show"
)

// Client talks to the Plex HTTP API.
type Client struct {
	baseURL    string
	token      string
	localPath  string // path prefix on this machine
	remotePath string // the same prefix as Plex sees it
	httpClient *http.Client
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithPathMapping translates local paths to the paths Plex sees, for Plex
// running in a container with a different mount point.
func WithPathMapping(localPath, remotePath string) Option {
	return func(c *Client) {
		c.localPath = strings.TrimSuffix(localPath, "/")
		c.remotePath = strings.TrimSuffix(remotePath, "/")
	}
}

// New creates a Plex client.
func New(baseURL, token string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        logger.With("component", "plex"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ToRemote converts a local path to the path Plex expects.
func (c *Client) ToRemote(p string) string {
	if c.localPath == "" || c.remotePath == "" {
		return p
	}
	if rest, ok := cutPathPrefix(p, c.localPath); ok {
		return c.remotePath + rest
	}
	return p
}

// ToLocal converts a Plex path to the local path.
func (c *Client) ToLocal(p string) string {
	if c.localPath == "" || c.remotePath == "" {
		return p
	}
	if rest, ok := cutPathPrefix(p, c.remotePath); ok {
		return c.localPath + rest
	}
	return p
}

// cutPathPrefix strips prefix from p only on a path-element boundary.
func cutPathPrefix(p, prefix string) (string, bool) {
	rest, ok := strings.CutPrefix(p, prefix)
	if !ok || (rest != "" && !strings.HasPrefix(rest, "/")) {
		return "", false
	}
	return rest, true
}

// Identity holds Plex server identity information.
type Identity struct {
	Name    string
	Version string
}

type identityResponse struct {
	XMLName      xml.Name `xml:"MediaContainer"`
	FriendlyName string   `xml:"friendlyName,attr"`
	Version      string   `xml:"version,attr"`
}

// Section is a Plex library section.
type Section struct {
	Key           string     `xml:"key,attr"`
	Title         string     `xml:"title,attr"`
	Type          string     `xml:"type,attr"`
	Locations     []Location `xml:"Location"`
	ScannedAt     int64      `xml:"scannedAt,attr"`
	RefreshingRaw int        `xml:"refreshing,attr"`
}

// Refreshing returns true if the section is currently being scanned.
func (s Section) Refreshing() bool {
	return s.RefreshingRaw == 1
}

// Location is a section's filesystem root.
type Location struct {
	Path string `xml:"path,attr"`
}

type sectionsResponse struct {
	XMLName  xml.Name  `xml:"MediaContainer"`
	Sections []Section `xml:"Directory"`
}

// Item is a movie or show returned by search.
type Item struct {
	RatingKey string `xml:"ratingKey,attr"`
	Title     string `xml:"title,attr"`
	Year      int    `xml:"year,attr"`
	Type      string `xml:"type,attr"`
}

type searchResponse struct {
	XMLName     xml.Name `xml:"MediaContainer"`
	Videos      []Item   `xml:"Video"`
	Directories []Item   `xml:"Directory"`
}

// get issues a GET and decodes the XML body into out when out is non-nil.
func (c *Client) get(ctx context.Context, op, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("Accept", "application/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("plex %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Op: op, Code: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := xml.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("plex %s: decode response: %w", op, err)
	}
	return nil
}

// Identity returns the server name and version.
func (c *Client) Identity(ctx context.Context) (*Identity, error) {
	var result identityResponse
	if err := c.get(ctx, "identity", "/", &result); err != nil {
		return nil, err
	}
	return &Identity{Name: result.FriendlyName, Version: result.Version}, nil
}

// Sections returns all library sections.
func (c *Client) Sections(ctx context.Context) ([]Section, error) {
	var result sectionsResponse
	if err := c.get(ctx, "sections", "/library/sections", &result); err != nil {
		return nil, err
	}
	return result.Sections, nil
}

// SectionForPath finds the section whose location contains the local dir.
// The longest matching location wins.
func (c *Client) SectionForPath(ctx context.Context, dir string) (*Section, error) {
	sections, err := c.Sections(ctx)
	if err != nil {
		return nil, err
	}
	remote := c.ToRemote(filepath.ToSlash(filepath.Clean(dir)))

	var best *Section
	bestLen := -1
	for i := range sections {
		for _, loc := range sections[i].Locations {
			root := strings.TrimSuffix(loc.Path, "/")
			if _, ok := cutPathPrefix(remote, root); ok && len(root) > bestLen {
				best, bestLen = &sections[i], len(root)
			}
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w for %s (as %s)", ErrNoSection, dir, remote)
	}
	return best, nil
}

// ScanDir triggers a partial scan of one local directory and returns the
// section that was asked to scan.
func (c *Client) ScanDir(ctx context.Context, dir string) (*Section, error) {
	section, err := c.SectionForPath(ctx, dir)
	if err != nil {
		return nil, err
	}
	remote := c.ToRemote(filepath.ToSlash(filepath.Clean(dir)))

	start := time.Now()
	endpoint := fmt.Sprintf("/library/sections/%s/refresh?path=%s", section.Key, url.QueryEscape(remote))
	if err := c.get(ctx, "scan", endpoint, nil); err != nil {
		return nil, err
	}
	c.log.Debug("scan triggered", "section", section.Key, "path", remote, "duration_ms", time.Since(start).Milliseconds())
	return section, nil
}

// RefreshSection triggers a full scan of a section.
func (c *Client) RefreshSection(ctx context.Context, key string) error {
	return c.get(ctx, "refresh", fmt.Sprintf("/library/sections/%s/refresh", key), nil)
}

// RefreshByType refreshes the first section of the given type ("movie" or
// "show"). It is the fallback when a path maps to no section location.
func (c *Client) RefreshByType(ctx context.Context, sectionType string) (*Section, error) {
	sections, err := c.Sections(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sections {
		if sections[i].Type == sectionType {
			if err := c.RefreshSection(ctx, sections[i].Key); err != nil {
				return nil, err
			}
			return &sections[i], nil
		}
	}
	return nil, fmt.Errorf("%w of type %q", ErrNoSection, sectionType)
}

// Search searches all libraries.
func (c *Client) Search(ctx context.Context, query string) ([]Item, error) {
	var result searchResponse
	if err := c.get(ctx, "search", "/search?query="+url.QueryEscape(query), &result); err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(result.Videos)+len(result.Directories))
	items = append(items, result.Videos...)
	items = append(items, result.Directories...)
	return items, nil
}

// Find looks for a movie or show by title. For movies a year off by one is
// tolerated. Titles are compared fuzzily.
func (c *Client) Find(ctx context.Context, itemType, title string, year int) (*Item, error) {
	items, err := c.Search(ctx, title)
	if err != nil {
		return nil, err
	}

	var titles []string
	var candidates []Item
	for _, it := range items {
		if it.Type != itemType {
			continue
		}
		if itemType == TypeMovie && year > 0 && it.Year != 0 && (it.Year < year-1 || it.Year > year+1) {
			continue
		}
		titles = append(titles, it.Title)
		candidates = append(candidates, it)
	}

	m := release.MatchTitle(title, titles)
	if m.Confidence < release.ConfidenceMedium {
		return nil, nil
	}
	for i := range candidates {
		if candidates[i].Title == m.Title {
			return &candidates[i], nil
		}
	}
	return nil, nil
}
