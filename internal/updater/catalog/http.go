package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hologram-io/dash-updater/pkg/log"
)

// HTTPCatalog serves releases from a plain HTTP download area.
type HTTPCatalog struct {
	baseURL string
	client  *http.Client
}

var _ Catalog = (*HTTPCatalog)(nil)

// NewHTTPCatalog returns a catalog rooted at baseURL. A nil client means
// http.DefaultClient.
func NewHTTPCatalog(baseURL string, client *http.Client) *HTTPCatalog {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPCatalog{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

func (c *HTTPCatalog) Latest(ctx context.Context) (*Release, error) {
	data, err := c.Fetch(ctx, c.baseURL+"/"+ManifestName)
	if err != nil {
		return nil, err
	}

	m, err := DecodeManifest(data)
	if err != nil {
		return nil, err
	}

	rel, err := m.Release(c.baseURL)
	if err != nil {
		return nil, err
	}

	log.Debug("Fetched firmware manifest",
		"firmwareVersion", rel.Firmware.Version, "firmware", rel.Firmware.Ref,
		"bootVersion", rel.Boot.Version, "boot", rel.Boot.Ref)
	return rel, nil
}

func (c *HTTPCatalog) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteFetch, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s: %s", ErrRemoteFetch, url, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrRemoteFetch, url, err)
	}

	log.Debug("Downloaded", "url", url, "bytes", len(data))
	return data, nil
}
