package services

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"alfredoptarigan/assessment-recommender/internal/logger"
)

// maxJobDescriptionChars bounds the query text taken from an uploaded document.
const maxJobDescriptionChars = 10000

type PDFParserService interface {
	// ExtractJobDescription returns the cleaned text of a job description PDF.
	ExtractJobDescription(filePath string) (*JobDescription, error)
}

type JobDescription struct {
	Text      string
	PageCount int
	Truncated bool
}

type pdfParserService struct {
	log *zap.Logger
}

func NewPDFParserService(log *zap.Logger) PDFParserService {
	return &pdfParserService{log: logger.OrNop(log)}
}

// ExtractJobDescription implements PDFParserService. Pages that fail to decode are skipped.
func (p *pdfParserService) ExtractJobDescription(filePath string) (*JobDescription, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var textBuilder strings.Builder
	totalPage := r.NumPage()

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			p.log.Warn("skipping unreadable PDF page", zap.Int("page", pageIndex), zap.Error(err))
			continue
		}

		textBuilder.WriteString(text)
		textBuilder.WriteString("\n")
	}

	text := CleanText(textBuilder.String())
	if text == "" {
		return nil, fmt.Errorf("no text content found in PDF")
	}

	jd := &JobDescription{Text: text, PageCount: totalPage}
	if runes := []rune(text); len(runes) > maxJobDescriptionChars {
		jd.Text = string(runes[:maxJobDescriptionChars])
		jd.Truncated = true
	}

	return jd, nil
}

// CleanText trims every line and drops empty ones.
func CleanText(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	cleanedLines := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleanedLines = append(cleanedLines, line)
		}
	}

	return strings.Join(cleanedLines, "\n")
}
