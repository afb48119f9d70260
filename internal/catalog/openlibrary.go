package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const userAgent = "BookTracker/1.0 (https://github.com/betty-pap/BookTracker-app-backend)"

// UnknownAuthor is used when an author reference cannot be resolved.
const UnknownAuthor = "Unknown Author"

// UpstreamError reports a failed or unsuccessful call to Open Library.
type UpstreamError struct {
	Op         string
	StatusCode int // 0 when the request never got a response
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("open library %s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("open library %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ErrNotFound is wrapped by UpstreamError when Open Library answers 404.
var ErrNotFound = errors.New("not found in open library")

// SearchResult is one candidate work from a text search.
type SearchResult struct {
	ExternalID       string   `json:"externalId"`
	Title            string   `json:"title"`
	Authors          []string `json:"authors"`
	FirstPublishYear int      `json:"firstPublishYear,omitempty"`
	CoverID          int      `json:"coverId,omitempty"`
	CoverURL         string   `json:"coverUrl,omitempty"`
	PageCount        int      `json:"pageCount,omitempty"`
}

// WorkDetails is the detail view of a single work with resolved authors.
type WorkDetails struct {
	ExternalID  string   `json:"externalId"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Authors     []string `json:"authors"`
	Subjects    []string `json:"subjects,omitempty"`
	Covers      []int    `json:"covers,omitempty"`
	CoverURL    string   `json:"coverUrl,omitempty"`
}

// Client talks to the Open Library JSON API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	coversURL  string
}

func NewClient(baseURL, coversURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		coversURL:  strings.TrimRight(coversURL, "/"),
	}
}

// Search runs a free-text query against search.json.
func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	endpoint := fmt.Sprintf("%s/search.json?q=%s", c.baseURL, url.QueryEscape(query))

	var result olSearchResult
	if err := c.getJSON(ctx, "search", endpoint, &result); err != nil {
		return nil, err
	}

	docs := make([]SearchResult, 0, len(result.Docs))
	for _, doc := range result.Docs {
		r := SearchResult{
			ExternalID:       WorkID(doc.Key),
			Title:            doc.Title,
			Authors:          doc.AuthorName,
			FirstPublishYear: doc.FirstPublishYear,
			CoverID:          doc.CoverI,
			PageCount:        doc.NumberOfPagesMedian,
		}
		if doc.CoverI != 0 {
			r.CoverURL = c.CoverURL(doc.CoverI, "M")
		}
		if r.Authors == nil {
			r.Authors = []string{}
		}
		docs = append(docs, r)
	}
	return docs, nil
}

// WorkDetails fetches a work and resolves its author names. A failure on an
// individual author yields UnknownAuthor for that entry instead of an error.
func (c *Client) WorkDetails(ctx context.Context, workID string) (*WorkDetails, error) {
	workID = WorkID(workID)
	var work olWork
	if err := c.getJSON(ctx, "work details", fmt.Sprintf("%s/works/%s.json", c.baseURL, url.PathEscape(workID)), &work); err != nil {
		return nil, err
	}

	details := &WorkDetails{
		ExternalID:  workID,
		Title:       work.Title,
		Description: describe(work.Description),
		Subjects:    work.Subjects,
		Covers:      work.Covers,
		Authors:     make([]string, 0, len(work.Authors)),
	}
	if len(work.Covers) > 0 {
		details.CoverURL = c.CoverURL(work.Covers[0], "M")
	}

	for _, ref := range work.Authors {
		name, err := c.authorName(ctx, ref.Author.Key)
		if err != nil {
			log.Printf("[WARN] WorkDetails: could not resolve author %q for work %s: %v", ref.Author.Key, workID, err)
			name = UnknownAuthor
		}
		details.Authors = append(details.Authors, name)
	}
	return details, nil
}

// PageCount returns the page count of the first edition of the work that
// declares one, or 0 when none does.
func (c *Client) PageCount(ctx context.Context, workID string) (int, error) {
	workID = WorkID(workID)
	endpoint := fmt.Sprintf("%s/works/%s/editions.json?limit=50", c.baseURL, url.PathEscape(workID))

	var editions olEditions
	if err := c.getJSON(ctx, "editions", endpoint, &editions); err != nil {
		return 0, err
	}
	for _, e := range editions.Entries {
		if e.NumberOfPages > 0 {
			return e.NumberOfPages, nil
		}
	}
	return 0, nil
}

// CoverURL builds a covers.openlibrary.org image URL. size is S, M or L.
func (c *Client) CoverURL(coverID int, size string) string {
	return fmt.Sprintf("%s/b/id/%d-%s.jpg", c.coversURL, coverID, size)
}

// WorkID strips the "/works/" prefix Open Library uses in keys.
func WorkID(key string) string {
	return strings.TrimPrefix(strings.TrimSpace(key), "/works/")
}

func (c *Client) authorName(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty author key")
	}
	if !strings.HasPrefix(key, "/") {
		key = "/authors/" + key
	}
	var author struct {
		Name string `json:"name"`
	}
	if err := c.getJSON(ctx, "author", c.baseURL+key+".json", &author); err != nil {
		return "", err
	}
	if author.Name == "" {
		return "", fmt.Errorf("author %s has no name", key)
	}
	return author.Name, nil
}

func (c *Client) getJSON(ctx context.Context, op, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &UpstreamError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &UpstreamError{Op: op, StatusCode: resp.StatusCode, Err: ErrNotFound}
	}
	if resp.StatusCode != http.StatusOK {
		return &UpstreamError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &UpstreamError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// describe flattens a description that is either a string or {type, value}.
func describe(v any) string {
	switch d := v.(type) {
	case string:
		return d
	case map[string]any:
		if s, ok := d["value"].(string); ok {
			return s
		}
	}
	return ""
}

// Open Library API response types

type olSearchResult struct {
	NumFound int           `json:"numFound"`
	Docs     []olSearchDoc `json:"docs"`
}

type olSearchDoc struct {
	Key                 string   `json:"key"`
	Title               string   `json:"title"`
	AuthorName          []string `json:"author_name"`
	FirstPublishYear    int      `json:"first_publish_year"`
	CoverI              int      `json:"cover_i"`
	NumberOfPagesMedian int      `json:"number_of_pages_median"`
}

type olWork struct {
	Key         string   `json:"key"`
	Title       string   `json:"title"`
	Authors     []olRef  `json:"authors"`
	Description any      `json:"description"`
	Subjects    []string `json:"subjects"`
	Covers      []int    `json:"covers"`
}

type olRef struct {
	Author struct {
		Key string `json:"key"`
	} `json:"author"`
}

type olEditions struct {
	Entries []struct {
		NumberOfPages int `json:"number_of_pages"`
	} `json:"entries"`
}
