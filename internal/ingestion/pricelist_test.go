package ingestion

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// buildWorkbook creates an xlsx with the published layout: three header rows
// per sheet, medicine names in the first column.
func buildWorkbook(t *testing.T, sheets map[string][]string) []byte {
	t.Helper()

	wb := excelize.NewFile()
	defer wb.Close()

	first := true
	for sheet, names := range sheets {
		if first {
			require.NoError(t, wb.SetSheetName("Sheet1", sheet))
			first = false
		} else {
			_, err := wb.NewSheet(sheet)
			require.NoError(t, err)
		}

		for i := 0; i < 3; i++ {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, wb.SetCellValue(sheet, cell, fmt.Sprintf("header %d", i+1)))
		}
		for i, name := range names {
			cell, err := excelize.CoordinatesToCellName(1, i+4)
			require.NoError(t, err)
			require.NoError(t, wb.SetCellValue(sheet, cell, name))
		}
	}

	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func newPriceListServer(t *testing.T, workbook []byte) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/price-lists", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><table>
			<tr><td><a href="/workbooks/latest.xlsx">2026-08 price list</a></td></tr>
			<tr><td><a href="/workbooks/old.xlsx">2026-07 price list</a></td></tr>
		</table></body></html>`)
	})
	mux.HandleFunc("/workbooks/latest.xlsx", func(w http.ResponseWriter, r *http.Request) {
		w.Write(workbook)
	})
	return httptest.NewServer(mux)
}

func TestFetchLatest(t *testing.T) {
	workbook := buildWorkbook(t, map[string][]string{
		"AKTIF": {"ASPIRIN", "parasetamol", "", "ASPIRIN"},
		"PASIF": {"IBUPROFEN"},
	})
	server := newPriceListServer(t, workbook)
	defer server.Close()

	cfg := DefaultConfig()
	cfg.IndexURL = server.URL + "/price-lists"
	fetcher := NewFetcher(cfg, nil)

	medicines, err := fetcher.FetchLatest(context.Background())
	require.NoError(t, err)

	// Names uppercased, blanks and duplicates dropped, headers skipped.
	assert.Len(t, medicines, 3)
	assert.Contains(t, medicines, "ASPIRIN")
	assert.Contains(t, medicines, "PARASETAMOL")
	assert.Contains(t, medicines, "IBUPROFEN")
	assert.NotContains(t, medicines, "HEADER 1")

	for name, price := range medicines {
		assert.GreaterOrEqual(t, price, minPrice, name)
		assert.LessOrEqual(t, price, maxPrice, name)
	}
}

func TestFetchLatestNoLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>nothing here</p></body></html>`)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.IndexURL = server.URL
	fetcher := NewFetcher(cfg, nil)

	_, err := fetcher.FetchLatest(context.Background())
	assert.Error(t, err)
}

func TestFetchLatestEmptyWorkbook(t *testing.T) {
	workbook := buildWorkbook(t, map[string][]string{"AKTIF": {}, "PASIF": {}})
	server := newPriceListServer(t, workbook)
	defer server.Close()

	cfg := DefaultConfig()
	cfg.IndexURL = server.URL + "/price-lists"
	fetcher := NewFetcher(cfg, nil)

	_, err := fetcher.FetchLatest(context.Background())
	assert.Error(t, err)
}

func TestParseWorkbookRelativeLinkResolution(t *testing.T) {
	workbook := buildWorkbook(t, map[string][]string{"AKTIF": {"ASPIRIN"}, "PASIF": {}})

	mux := http.NewServeMux()
	mux.HandleFunc("/lists/index", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><table><tr><td><a href="latest.xlsx">list</a></td></tr></table></body></html>`)
	})
	mux.HandleFunc("/lists/latest.xlsx", func(w http.ResponseWriter, r *http.Request) {
		w.Write(workbook)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cfg := DefaultConfig()
	cfg.IndexURL = server.URL + "/lists/index"
	fetcher := NewFetcher(cfg, nil)

	medicines, err := fetcher.FetchLatest(context.Background())
	require.NoError(t, err)
	assert.Contains(t, medicines, "ASPIRIN")
}
