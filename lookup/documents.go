package lookup

import (
	"context"
	"errors"

	"github.com/giygas/sukl-mcp/documents"
	"github.com/giygas/sukl-mcp/logging"
)

const documentLanguage = "cs"

// GetDocument returns the text of a medicine's PIL or SPC. When the document
// cannot be downloaded or parsed the result points to its URL instead.
func (s *Service) GetDocument(ctx context.Context, kind documents.Kind, suklCode string) (*DocumentContent, error) {
	code, err := s.validator.ValidateSUKLCode(suklCode)
	if err != nil {
		return nil, err
	}

	m, err := s.localMedicine(ctx, code)
	if err != nil {
		return nil, err
	}

	url := documents.URL(kind, code)
	content := &DocumentContent{
		SuklCode:     code,
		MedicineName: m.Name,
		DocumentURL:  url,
		Language:     documentLanguage,
	}

	if s.docs == nil {
		content.FullText = fallbackText(url)
		return content, nil
	}

	doc, err := s.docs.Extract(ctx, url)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		logging.Warn("Document extraction failed", "sukl_code", code, "kind", kind, "error", err)
		content.FullText = fallbackText(url)
		return content, nil
	}

	content.FullText = doc.Text
	content.DocumentFormat = string(doc.Format)
	return content, nil
}

func fallbackText(url string) string {
	return "Dokument není dostupný k automatickému parsování. Pro zobrazení navštivte: " + url
}

// DocumentLinks returns the PIL and SPC URLs of a medicine, failing when
// the code is unknown.
func (s *Service) DocumentLinks(ctx context.Context, suklCode string) (pil, spc string, err error) {
	code, err := s.validator.ValidateSUKLCode(suklCode)
	if err != nil {
		return "", "", err
	}
	if _, err := s.localMedicine(ctx, code); err != nil {
		return "", "", err
	}
	return documents.URL(documents.KindPIL, code), documents.URL(documents.KindSPC, code), nil
}
