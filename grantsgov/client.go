// Package grantsgov provides methods to list and download the grants.gov
// XML extract archives.
package grantsgov

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"grants/dataloader/appcontext"
	"grants/dataloader/datalake/model"
)

const (
	// DefaultListingTimeout bounds the listing page request.
	DefaultListingTimeout = 30 * time.Second
	// DefaultDownloadTimeout bounds an archive download.
	DefaultDownloadTimeout = 5 * time.Minute
	// DefaultMaxDownloadBytes bounds an archive download.
	DefaultMaxDownloadBytes = 1 << 30

	userAgent = "grants-dataloader/1.0"
)

var errHTTPUnexpectedStatusCode = errors.New("unexpected http status code")
var errHTTPBasePathFormatting = errors.New("error formatting HTTP base path")
var errHTTPBodyRead = errors.New("error reading HTTP response body")
var errDownloadTooLarge = errors.New("download exceeds size limit")
var errInvalidFileName = errors.New("invalid extract file name")

// HTTPUnexpectedStatusCodeError is a error wrapper.
func HTTPUnexpectedStatusCodeError(statusCode int, target string) error {
	return fmt.Errorf("%w, %d from %s", errHTTPUnexpectedStatusCode, statusCode, target)
}

func HTTPBasePathFormattingError(basePath string) error {
	return fmt.Errorf("%w, %s", errHTTPBasePathFormatting, basePath)
}

func HTTPBodyReadError(baseErr error) error {
	return fmt.Errorf("%w, %w", errHTTPBodyRead, baseErr)
}

func DownloadTooLargeError(fileName string, limit int64) error {
	return fmt.Errorf("%w, %s is larger than %d bytes", errDownloadTooLarge, fileName, limit)
}

func InvalidFileNameError(fileName string) error {
	return fmt.Errorf("%w, %q", errInvalidFileName, fileName)
}

// Options tune a Client. Zero values take the defaults above.
type Options struct {
	ListingTimeout   time.Duration
	DownloadTimeout  time.Duration
	MaxDownloadBytes int64
}

// Client fetches the listing page and extract archives.
type Client struct {
	// a pointer to the http client to use.
	HTTPClient *http.Client
	// the page advertising the available extracts.
	ListingURL *url.URL
	// archives are fetched from DownloadBase/<fileName>.
	DownloadBase *url.URL

	listingTimeout   time.Duration
	downloadTimeout  time.Duration
	maxDownloadBytes int64
}

// NewClient creates a new Client.
func NewClient(httpClient *http.Client, listingURL string, downloadBase string, opts Options) (*Client, error) {
	// Use a default http client if none is provided.
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	listing, err := parseBaseURL(listingURL)
	if err != nil {
		return nil, err
	}
	base, err := parseBaseURL(downloadBase)
	if err != nil {
		return nil, err
	}

	c := &Client{
		HTTPClient:       httpClient,
		ListingURL:       listing,
		DownloadBase:     base,
		listingTimeout:   opts.ListingTimeout,
		downloadTimeout:  opts.DownloadTimeout,
		maxDownloadBytes: opts.MaxDownloadBytes,
	}
	if c.listingTimeout <= 0 {
		c.listingTimeout = DefaultListingTimeout
	}
	if c.downloadTimeout <= 0 {
		c.downloadTimeout = DefaultDownloadTimeout
	}
	if c.maxDownloadBytes <= 0 {
		c.maxDownloadBytes = DefaultMaxDownloadBytes
	}

	return c, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, HTTPBasePathFormattingError(raw)
	}
	return parsed, nil
}

// DownloadURL returns the archive URL for fileName.
func (c *Client) DownloadURL(fileName string) string {
	return strings.TrimRight(c.DownloadBase.String(), "/") + "/" + url.PathEscape(fileName)
}

// ListFiles fetches the listing page and returns the advertised extracts.
func (c *Client) ListFiles(ctx context.Context) ([]model.ExtractFile, error) {
	logger := appcontext.LoggerFromContext(ctx)
	ctx, cancel := context.WithTimeout(ctx, c.listingTimeout)
	defer cancel()

	target := c.ListingURL.String()
	logger.DebugContext(ctx, "Fetching extract listing", "url", target)

	body, err := c.get(ctx, target, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}

	files, err := ParseListing(bytes.NewReader(body), c.DownloadBase.String())
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing: %w", err)
	}
	for i := range files {
		files[i].URL = c.DownloadURL(files[i].FileName)
	}

	logger.InfoContext(ctx, "Fetched extract listing", "files", len(files))
	return files, nil
}

// Download fetches the named archive.
func (c *Client) Download(ctx context.Context, fileName string) ([]byte, error) {
	if fileName == "" || strings.ContainsAny(fileName, "/\\") || strings.Contains(fileName, "..") {
		return nil, InvalidFileNameError(fileName)
	}

	logger := appcontext.LoggerFromContext(ctx)
	ctx, cancel := context.WithTimeout(ctx, c.downloadTimeout)
	defer cancel()

	target := c.DownloadURL(fileName)
	logger.InfoContext(ctx, "Downloading extract", "url", target)
	started := time.Now()

	body, err := c.get(ctx, target, c.maxDownloadBytes)
	if err != nil {
		if errors.Is(err, errDownloadTooLarge) {
			return nil, DownloadTooLargeError(fileName, c.maxDownloadBytes)
		}
		return nil, fmt.Errorf("failed to download %s: %w", fileName, err)
	}

	logger.InfoContext(ctx, "Downloaded extract", "file", fileName, "bytes", len(body), "elapsed", time.Since(started))
	return body, nil
}

// get performs a GET and returns the body of a 200 response. A positive
// limit caps the body size.
func (c *Client) get(ctx context.Context, target string, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, HTTPUnexpectedStatusCodeError(resp.StatusCode, target)
	}

	reader := io.Reader(resp.Body)
	if limit > 0 {
		reader = io.LimitReader(resp.Body, limit+1)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, HTTPBodyReadError(err)
	}
	if limit > 0 && int64(len(body)) > limit {
		return nil, errDownloadTooLarge
	}

	return body, nil
}
