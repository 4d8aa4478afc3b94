package extract

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

var (
	licenseOnce sync.Once
	licenseErr  error
)

// NewPageReader picks the PDF engine. Without a license key pages are read by
// TextReader; with one, by unipdf. Only offline keys are accepted so reading
// a document never reaches out to a license server.
func NewPageReader(licenseKey, customer string) (PageReader, error) {
	if licenseKey == "" {
		return NewTextReader(), nil
	}
	return NewPDFReader(licenseKey, customer)
}

// PDFReader reads PDF pages with unipdf
type PDFReader struct{}

// NewPDFReader installs the offline unipdf license key on first use. unipdf
// refuses to extract text without one.
func NewPDFReader(licenseKey, customer string) (*PDFReader, error) {
	if licenseKey == "" || customer == "" {
		return nil, fmt.Errorf("unipdf requires a license key and customer name")
	}
	licenseOnce.Do(func() {
		licenseErr = license.SetLicenseKey(licenseKey, customer)
	})
	if licenseErr != nil {
		return nil, fmt.Errorf("failed to set pdf license key: %w", licenseErr)
	}
	return &PDFReader{}, nil
}

// ReadPages implements PageReader
func (r *PDFReader) ReadPages(ctx context.Context, path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	pdfReader, err := model.NewPdfReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pdf: %w", err)
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}

	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := pdfReader.GetPage(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", i, err)
		}

		ex, err := extractor.New(page)
		if err != nil {
			return nil, fmt.Errorf("failed to create extractor for page %d: %w", i, err)
		}

		text, err := ex.ExtractText()
		if err != nil {
			return nil, fmt.Errorf("failed to extract page %d: %w", i, err)
		}
		pages = append(pages, text)
	}

	return pages, nil
}
