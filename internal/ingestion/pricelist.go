// Package ingestion downloads and parses the published medicine price list.
package ingestion

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Config holds price-list source settings.
type Config struct {
	// IndexURL is the page listing published price-list workbooks, newest
	// first.
	IndexURL string
	// LinkSelector locates the workbook links on the index page.
	LinkSelector string
	// Sheets are the workbook sheets carrying medicine rows.
	Sheets []string
	// HeaderRows is the number of leading rows to skip on each sheet.
	HeaderRows int
	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// DefaultConfig matches the registry's published workbook layout.
func DefaultConfig() Config {
	return Config{
		LinkSelector: "table tr td a",
		Sheets:       []string{"AKTIF", "PASIF"},
		HeaderRows:   3,
		Timeout:      30 * time.Second,
	}
}

// Prices in the published workbook are unreliable, so ingested medicines get
// a placeholder unit price from this range instead.
const (
	minPrice = 20
	maxPrice = 70
)

// Fetcher retrieves the newest price-list workbook and extracts medicine names.
type Fetcher struct {
	config Config
	http   *http.Client
	logger *zap.Logger
	price  func() int
}

// NewFetcher creates a price-list fetcher.
func NewFetcher(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.LinkSelector == "" {
		cfg.LinkSelector = DefaultConfig().LinkSelector
	}

	return &Fetcher{
		config: cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		price: func() int {
			return minPrice + rand.IntN(maxPrice-minPrice+1)
		},
	}
}

// FetchLatest downloads the newest workbook from the index page and returns
// medicine names mapped to unit prices. Names are uppercased so lookups are
// case-insensitive downstream.
func (f *Fetcher) FetchLatest(ctx context.Context) (map[string]int, error) {
	workbookURL, err := f.latestWorkbookURL(ctx)
	if err != nil {
		return nil, err
	}

	path, err := f.download(ctx, workbookURL)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	medicines, err := f.parseWorkbook(path)
	if err != nil {
		return nil, err
	}

	f.logger.Info("price list fetched",
		zap.String("workbook_url", workbookURL),
		zap.Int("medicines", len(medicines)))
	return medicines, nil
}

// latestWorkbookURL scrapes the index page for the first workbook link.
func (f *Fetcher) latestWorkbookURL(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.config.IndexURL, nil)
	if err != nil {
		return "", fmt.Errorf("build index request: %w", err)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch index page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("index page returned %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse index page: %w", err)
	}

	href, ok := doc.Find(f.config.LinkSelector).First().Attr("href")
	if !ok || href == "" {
		return "", fmt.Errorf("no workbook link found on index page")
	}

	return f.resolveURL(href)
}

// resolveURL makes relative workbook links absolute against the index page.
func (f *Fetcher) resolveURL(href string) (string, error) {
	base, err := url.Parse(f.config.IndexURL)
	if err != nil {
		return "", fmt.Errorf("parse index url: %w", err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("parse workbook link %q: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// download fetches the workbook into a temp file and returns its path. The
// caller removes the file.
func (f *Fetcher) download(ctx context.Context, workbookURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, workbookURL, nil)
	if err != nil {
		return "", fmt.Errorf("build workbook request: %w", err)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch workbook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("workbook returned %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "pricelist-*.xlsx")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close workbook: %w", err)
	}
	return tmp.Name(), nil
}

// parseWorkbook extracts medicine names from the configured sheets. The first
// column of each data row carries the name; empty cells are skipped.
func (f *Fetcher) parseWorkbook(path string) (map[string]int, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	medicines := make(map[string]int)
	for _, sheet := range f.config.Sheets {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}

		for i, row := range rows {
			if i < f.config.HeaderRows || len(row) == 0 {
				continue
			}
			name := strings.ToUpper(strings.TrimSpace(row[0]))
			if name == "" {
				continue
			}
			if _, ok := medicines[name]; !ok {
				medicines[name] = f.price()
			}
		}
	}

	if len(medicines) == 0 {
		return nil, fmt.Errorf("workbook contains no medicine rows")
	}
	return medicines, nil
}
