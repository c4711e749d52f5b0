package wpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/marcus/bam/internal/models"
)

// DefaultNamespace is the plugin's REST namespace
const DefaultNamespace = "gutenberg-blocks-access"

// DefaultPerPage is the page size used when listing collections
const DefaultPerPage = 100

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrInvalidPath  = errors.New("invalid path")

	// ErrDecode marks a 2xx response whose body could not be decoded. The
	// server has acted on the request, so it is never retried.
	ErrDecode = errors.New("decode response")
)

// namePattern matches "namespace/name" block and pattern identifiers
var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*/[a-z0-9][a-z0-9_-]*$`)

// Client is an HTTP client for the plugin's REST API.
type Client struct {
	BaseURL   string
	Namespace string
	Username  string
	Password  string
	PerPage   int
	HTTP      *http.Client
}

// New creates a new REST client. baseURL is the site root, without /wp-json.
func New(baseURL, namespace, username, password string) *Client {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Namespace: namespace,
		Username:  username,
		Password:  password,
		PerPage:   DefaultPerPage,
		HTTP:      &http.Client{Timeout: 30 * time.Second},
	}
}

// ValidName reports whether name can be used as a path segment
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// --- Settings ---

// GetSettings fetches the plugin settings.
func (c *Client) GetSettings(ctx context.Context) (*models.Settings, error) {
	var resp models.Settings
	if _, err := c.do(ctx, "GET", c.route("settings"), nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateSettings replaces the plugin settings.
func (c *Client) UpdateSettings(ctx context.Context, s models.Settings) (*models.Settings, error) {
	var resp models.Settings
	if _, err := c.do(ctx, "PUT", c.route("settings"), nil, s, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Blocks ---

// ListBlocks fetches every registered block, following pagination.
func (c *Client) ListBlocks(ctx context.Context) ([]models.Block, error) {
	return listAll[models.Block](ctx, c, c.route("blocks"))
}

// GetBlock fetches a single block by name.
func (c *Client) GetBlock(ctx context.Context, name string) (*models.Block, error) {
	path, err := c.namedRoute("blocks", name)
	if err != nil {
		return nil, err
	}
	var resp models.Block
	if _, err := c.do(ctx, "GET", path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateBlock registers a new block.
func (c *Client) CreateBlock(ctx context.Context, b models.Block) (*models.Block, error) {
	if !ValidName(b.Name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, b.Name)
	}
	var resp models.Block
	if _, err := c.do(ctx, "POST", c.route("blocks"), nil, b, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateBlock writes a block. The Keep flags decide whether styles and
// variations are unioned with stored data or replaced.
func (c *Client) UpdateBlock(ctx context.Context, u models.BlockUpdate) (*models.Block, error) {
	path, err := c.namedRoute("blocks", u.Name)
	if err != nil {
		return nil, err
	}
	var resp models.Block
	if _, err := c.do(ctx, "PUT", path, nil, u, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteBlock removes a block registration.
func (c *Client) DeleteBlock(ctx context.Context, name string) error {
	path, err := c.namedRoute("blocks", name)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, "DELETE", path, nil, nil, nil)
	return err
}

// --- Block categories ---

// GetBlockCategories fetches the block categories.
func (c *Client) GetBlockCategories(ctx context.Context) ([]models.BlockCategory, error) {
	var resp []models.BlockCategory
	if _, err := c.do(ctx, "GET", c.route("block-categories"), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// UpdateBlockCategories replaces the block categories.
func (c *Client) UpdateBlockCategories(ctx context.Context, cats []models.BlockCategory) ([]models.BlockCategory, error) {
	var resp []models.BlockCategory
	if _, err := c.do(ctx, "PUT", c.route("block-categories"), nil, cats, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// --- Patterns ---

// ListPatterns fetches every registered pattern, following pagination.
func (c *Client) ListPatterns(ctx context.Context) ([]models.Pattern, error) {
	return listAll[models.Pattern](ctx, c, c.route("patterns"))
}

// GetPattern fetches a single pattern by name.
func (c *Client) GetPattern(ctx context.Context, name string) (*models.Pattern, error) {
	path, err := c.namedRoute("patterns", name)
	if err != nil {
		return nil, err
	}
	var resp models.Pattern
	if _, err := c.do(ctx, "GET", path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdatePattern writes a pattern.
func (c *Client) UpdatePattern(ctx context.Context, p models.Pattern) (*models.Pattern, error) {
	path, err := c.namedRoute("patterns", p.Name)
	if err != nil {
		return nil, err
	}
	var resp models.Pattern
	if _, err := c.do(ctx, "PUT", path, nil, p, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListPatternCategories fetches the registered pattern categories.
func (c *Client) ListPatternCategories(ctx context.Context) ([]models.PatternCategory, error) {
	var resp []models.PatternCategory
	if _, err := c.do(ctx, "GET", c.route("pattern-categories"), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// --- Core block types ---

// BlockType is a block type as reported by the core /wp/v2/block-types
// endpoint. Supports are raw values, not yet wrapped in overrides.
type BlockType struct {
	Name        string                      `json:"name" yaml:"name"`
	Title       string                      `json:"title" yaml:"title"`
	Description string                      `json:"description" yaml:"description"`
	Category    string                      `json:"category" yaml:"category"`
	Icon        any                         `json:"icon" yaml:"icon"`
	Keywords    []string                    `json:"keywords" yaml:"keywords"`
	Supports    models.Object[any]          `json:"supports" yaml:"supports"`
	Styles      models.List[map[string]any] `json:"styles" yaml:"styles"`
	Variations  models.List[map[string]any] `json:"variations" yaml:"variations"`
}

// ListBlockTypes fetches the live block registry from WordPress core.
func (c *Client) ListBlockTypes(ctx context.Context) ([]BlockType, error) {
	var resp []BlockType
	if _, err := c.do(ctx, "GET", "/wp-json/wp/v2/block-types", url.Values{"context": {"edit"}}, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// --- HTTP helpers ---

// APIError is the standard WordPress REST error body.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// IsRetryable reports whether a request that failed with err may succeed
// when repeated: transport errors, 429 and 5xx responses. Responses the
// server accepted but that fail to decode are final.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidPath) || errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrDecode) || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.status == http.StatusTooManyRequests || statusErr.status >= 500
	}
	return true
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.status, e.body)
}

func (c *Client) route(resource string) string {
	return fmt.Sprintf("/wp-json/%s/v1/%s", c.Namespace, resource)
}

// namedRoute builds a by-name path, refusing names that are not valid
// identifiers so no request is issued for them.
func (c *Client) namedRoute(resource, name string) (string, error) {
	if !ValidName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return c.route(resource) + "/" + name, nil
}

// listAll pages through a collection until a short page or the last page
// reported by X-WP-TotalPages.
func listAll[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	perPage := c.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	var all []T
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("per_page", strconv.Itoa(perPage))
		params.Set("page", strconv.Itoa(page))

		var batch []T
		header, err := c.do(ctx, "GET", path, params, nil, &batch)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)

		if len(batch) < perPage {
			return all, nil
		}
		if total, err := strconv.Atoi(header.Get("X-WP-TotalPages")); err == nil && page >= total {
			return all, nil
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, result any) (http.Header, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	target := c.BaseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr APIError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Code != "" {
			apiErr.Status = resp.StatusCode
			switch resp.StatusCode {
			case http.StatusUnauthorized:
				return nil, fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
			case http.StatusForbidden:
				return nil, fmt.Errorf("%w: %s", ErrForbidden, apiErr.Message)
			case http.StatusNotFound:
				return nil, fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
			default:
				return nil, &apiErr
			}
		}
		return nil, &statusError{status: resp.StatusCode, body: string(respBody)}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return nil, fmt.Errorf("%w: %s %s: %w", ErrDecode, method, path, err)
		}
	}

	return resp.Header, nil
}
