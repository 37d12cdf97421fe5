// Package render turns invoices into PDF documents.
package render

import (
	"bytes"

	"github.com/jmgilman/go/errors"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// pdfcpu otherwise writes a config directory under the user's home.
	api.DisableConfigDir()
}

// Page is a media box size in points.
type Page struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Document is a rendered PDF. It is immutable and safe to share.
type Document struct {
	data  []byte
	pages []Page
}

// NewDocument copies data and pages into a Document.
func NewDocument(data []byte, pages []Page) *Document {
	d := &Document{
		data:  make([]byte, len(data)),
		pages: make([]Page, len(pages)),
	}
	copy(d.data, data)
	copy(d.pages, pages)
	return d
}

// Inspect reads the page sizes of a PDF.
func Inspect(data []byte) (*Document, error) {
	dims, err := api.PageDims(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "failed to read pdf pages")
	}
	if len(dims) == 0 {
		return nil, errors.New(errors.CodeInvalidInput, "pdf has no pages")
	}

	pages := make([]Page, len(dims))
	for i, dim := range dims {
		pages[i] = Page{Width: dim.Width, Height: dim.Height}
	}
	return NewDocument(data, pages), nil
}

func (d *Document) PageCount() int {
	return len(d.pages)
}

func (d *Document) FirstPageSize() (float64, float64) {
	if len(d.pages) == 0 {
		return 0, 0
	}
	return d.pages[0].Width, d.pages[0].Height
}

// Bytes returns the PDF. The slice is shared and must not be modified.
func (d *Document) Bytes() []byte {
	return d.data
}

func (d *Document) Len() int {
	return len(d.data)
}
