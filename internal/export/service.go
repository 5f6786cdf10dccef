package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Service renders assembled trees.
type Service struct {
	pdf  func(ctx context.Context, html, title string) (*Result, error)
	docx func(ctx context.Context, html, title string) (*Result, error)
}

func NewService() *Service {
	return &Service{pdf: exportPDF, docx: exportDOCX}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	if req.Title == "" {
		req.Title = "mindtree"
	}
	if req.GeneratedAt.IsZero() {
		req.GeneratedAt = time.Now().UTC()
	}
	name := sanitizeFilename(req.Title)

	switch req.Format {
	case FormatJSON, "":
		payload, err := json.MarshalIndent(struct {
			Title       string    `json:"title"`
			GeneratedAt time.Time `json:"generatedAt"`
			Roots       any       `json:"roots"`
		}{req.Title, req.GeneratedAt, nonNilRoots(req.Roots)}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal tree: %w", err)
		}
		return &Result{Data: append(payload, '\n'), Filename: name + ".json", MimeType: "application/json"}, nil
	case FormatMarkdown:
		return &Result{
			Data:     []byte(RenderMarkdown(req.Title, req.Roots)),
			Filename: name + ".md",
			MimeType: "text/markdown; charset=utf-8",
		}, nil
	}

	html, err := RenderTreeHTML(TemplateData{
		Title:       req.Title,
		GeneratedAt: req.GeneratedAt,
		Roots:       req.Roots,
	})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch req.Format {
	case FormatHTML:
		return &Result{Data: []byte(html), Filename: name + ".html", MimeType: "text/html; charset=utf-8"}, nil
	case FormatPDF:
		return s.pdf(ctx, html, req.Title)
	case FormatDOCX:
		return s.docx(ctx, html, req.Title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
}
