package entities

// DocumentFormat is the detected type of a downloaded PIL/SPC file.
type DocumentFormat string

const (
	FormatPDF  DocumentFormat = "pdf"
	FormatDOCX DocumentFormat = "docx"
)

// Document is the extracted text of a package leaflet or SmPC.
type Document struct {
	URL    string         `json:"url"`
	Format DocumentFormat `json:"format"`
	Text   string         `json:"content"`
	Pages  int            `json:"pages,omitempty"`
}

// CodebookEntry is one item of a REST codebook (/ciselniky/{name}).
type CodebookEntry struct {
	Code   string `json:"kod"`
	Name   string `json:"nazev"`
	NameEN string `json:"nazevEN,omitempty"`
}
