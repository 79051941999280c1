package storage

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// InspectPDF returns the page count of a PDF document
func InspectPDF(data []byte) (pages int, err error) {
	// the reader panics on some malformed trailers
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("failed to create PDF reader: %w", err)
	}
	return reader.NumPage(), nil
}
