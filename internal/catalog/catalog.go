// Package catalog discovers indicator resources in the dados.gov.br open
// data catalog.
//
// Discovery is metadata-driven: the dataset's resource list is fetched from
// the public API and each entry's title yields the service and reference year
// (titles follow the "IDA <service> <year>" convention). Entries whose title
// or format cannot be interpreted are skipped, not fatal; the catalog also
// lists documentation PDFs and similar noise.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"idaetl/internal/datasource/httpds"
	"idaetl/internal/textutil"
)

const (
	// DefaultBaseURL is the public entry point of the dados.gov.br API.
	DefaultBaseURL = "https://dados.gov.br/dados/api/publico"

	// DefaultDatasetID identifies the service-quality indicator dataset.
	DefaultDatasetID = "63a9c9f6-9991-48b4-a072-ce22765652e6"

	// apiKeyHeader carries the personal API key issued by the portal.
	apiKeyHeader = "chave-api-dados-abertos"
)

// serviceRe matches a service code as a standalone word in a folded title.
var serviceRe = regexp.MustCompile(`\b(SMP|STFC|SCM)\b`)

// yearRe matches a plausible reference year in a title.
var yearRe = regexp.MustCompile(`\b(20\d{2})\b`)

// Resource is one downloadable file announced by the catalog.
type Resource struct {
	ID      string
	Title   string
	URL     string
	Format  string // lower case: "xlsx", "csv", ...
	Service string // "SMP", "STFC", "SCM"
	Year    int

	// Filename is the deterministic source-file name recorded in fact
	// provenance, derived from the download URL.
	Filename string
}

// Config configures the catalog client. Zero values select the public API
// and the indicator dataset.
type Config struct {
	BaseURL   string
	DatasetID string
	APIKey    string
}

// Client fetches catalog metadata and resource bytes over an httpds.Client.
type Client struct {
	http      *httpds.Client
	baseURL   string
	datasetID string
	apiKey    string
}

func NewClient(hc *httpds.Client, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.DatasetID == "" {
		cfg.DatasetID = DefaultDatasetID
	}
	return &Client{
		http:      hc,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		datasetID: cfg.DatasetID,
		apiKey:    cfg.APIKey,
	}
}

// datasetEnvelope mirrors the slice of the API response we consume; unknown
// fields are ignored, the API adds them without notice.
type datasetEnvelope struct {
	Recursos []struct {
		ID      string `json:"id"`
		Titulo  string `json:"titulo"`
		Link    string `json:"link"`
		Formato string `json:"formato"`
	} `json:"recursos"`
}

// List fetches the dataset's resource list and returns the entries that carry
// an interpretable title (service and year) and a download link.
func (c *Client) List(ctx context.Context) ([]Resource, error) {
	url := fmt.Sprintf("%s/conjuntos-dados/%s", c.baseURL, c.datasetID)
	resp, err := c.http.Get(ctx, url, c.headers())
	if err != nil {
		return nil, fmt.Errorf("catalog: list dataset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog: status %d from %s", resp.StatusCode, url)
	}

	var env datasetEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("catalog: decode dataset: %w", err)
	}

	var out []Resource
	for _, r := range env.Recursos {
		if r.Link == "" {
			continue
		}
		folded := textutil.Fold(r.Titulo)
		svc := serviceRe.FindString(folded)
		yearStr := yearRe.FindString(folded)
		if svc == "" || yearStr == "" {
			continue
		}
		year, _ := strconv.Atoi(yearStr)
		out = append(out, Resource{
			ID:       r.ID,
			Title:    r.Titulo,
			URL:      r.Link,
			Format:   strings.ToLower(strings.TrimPrefix(strings.TrimSpace(r.Formato), ".")),
			Service:  svc,
			Year:     year,
			Filename: httpds.FilenameFromURL(r.Link),
		})
	}
	return out, nil
}

// Fetch downloads one resource and returns a reader over its bytes.
func (c *Client) Fetch(ctx context.Context, res Resource) (io.Reader, error) {
	data, err := c.http.Download(ctx, res.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: fetch %s: %w", res.Filename, err)
	}
	return bytes.NewReader(data), nil
}

func (c *Client) headers() http.Header {
	if c.apiKey == "" {
		return nil
	}
	h := make(http.Header)
	h.Set(apiKeyHeader, c.apiKey)
	return h
}

// Filter keeps resources matching the wanted services and year range. Empty
// services or a zero range keep everything on that axis.
func Filter(rs []Resource, services []string, yearFrom, yearTo int) []Resource {
	want := make(map[string]struct{}, len(services))
	for _, s := range services {
		want[strings.ToUpper(strings.TrimSpace(s))] = struct{}{}
	}
	var out []Resource
	for _, r := range rs {
		if len(want) > 0 {
			if _, ok := want[r.Service]; !ok {
				continue
			}
		}
		if yearFrom > 0 && r.Year < yearFrom {
			continue
		}
		if yearTo > 0 && r.Year > yearTo {
			continue
		}
		out = append(out, r)
	}
	return out
}
