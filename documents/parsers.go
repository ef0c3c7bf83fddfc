package documents

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/giygas/sukl-mcp/errs"
	"github.com/giygas/sukl-mcp/logging"
	"github.com/giygas/sukl-mcp/opendata/entities"
)

var errNoText = errors.New("document contains no text")

// parsePDF extracts the plain text of the first maxPages pages.
func parsePDF(content []byte, maxPages int) (text string, pages int, err error) {
	// The PDF reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = &errs.ParseError{Format: string(entities.FormatPDF), Err: fmt.Errorf("malformed pdf: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", 0, &errs.ParseError{Format: string(entities.FormatPDF), Err: err}
	}

	pages = reader.NumPage()
	if pages > maxPages {
		logging.Warn("PDF exceeds page limit, truncating", "pages", pages, "max_pages", maxPages)
	}

	var parts []string
	for i := 1; i <= min(pages, maxPages); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			logging.Warn("Failed to extract PDF page", "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(pageText) != "" {
			parts = append(parts, pageText)
		}
	}

	text = strings.Join(parts, "\n\n")
	if strings.TrimSpace(text) == "" {
		return "", pages, &errs.ParseError{Format: string(entities.FormatPDF), Err: errNoText}
	}
	return text, pages, nil
}

// parseDOCX extracts the paragraph text of word/document.xml, table cells included.
func parseDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", &errs.ParseError{Format: string(entities.FormatDOCX), Err: err}
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			body = f
			break
		}
	}
	if body == nil {
		return "", &errs.ParseError{Format: string(entities.FormatDOCX), Err: errors.New("word/document.xml not found")}
	}

	rc, err := body.Open()
	if err != nil {
		return "", &errs.ParseError{Format: string(entities.FormatDOCX), Err: err}
	}
	defer rc.Close()

	paragraphs, err := docxParagraphs(io.LimitReader(rc, int64(body.UncompressedSize64)+1))
	if err != nil {
		return "", &errs.ParseError{Format: string(entities.FormatDOCX), Err: err}
	}

	text := strings.Join(paragraphs, "\n\n")
	if strings.TrimSpace(text) == "" {
		return "", &errs.ParseError{Format: string(entities.FormatDOCX), Err: errNoText}
	}
	return text, nil
}

func docxParagraphs(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br", "cr":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if p := strings.TrimSpace(current.String()); p != "" {
					paragraphs = append(paragraphs, current.String())
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}
