package export

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"mindtree/internal/store"
	"mindtree/internal/tree"
)

func sampleRoots() []*tree.Tree {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return tree.BuildTree([]store.Node{
		{ID: "1", Text: "Raise prices", CreatedAt: base},
		{ID: "2", Text: "Customers <churn>", ParentID: store.StringPtr("1"), CreatedAt: base.Add(time.Minute)},
		{ID: "3", Text: "Revenue *drops*", ParentID: store.StringPtr("2"), CreatedAt: base.Add(2 * time.Minute)},
		{ID: "4", Text: "Margin\ngrows", ParentID: store.StringPtr("1"), CreatedAt: base.Add(3 * time.Minute)},
	})
}

func TestRenderMarkdown(t *testing.T) {
	got := RenderMarkdown("Pricing", sampleRoots())
	want := "# Pricing\n\n" +
		"- Raise prices\n" +
		"  - Customers <churn>\n" +
		"    - Revenue \\*drops\\*\n" +
		"  - Margin grows\n"
	if got != want {
		t.Fatalf("RenderMarkdown() =\n%s\nwant\n%s", got, want)
	}
}

func TestRenderTreeHTML(t *testing.T) {
	html, err := RenderTreeHTML(TemplateData{
		Title:       "Pricing",
		GeneratedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Roots:       sampleRoots(),
	})
	if err != nil {
		t.Fatalf("RenderTreeHTML() error = %v", err)
	}

	if !strings.Contains(html, "<title>Pricing</title>") {
		t.Error("HTML missing title")
	}
	if !strings.Contains(html, "4 nodes") {
		t.Error("HTML missing node count")
	}
	if !strings.Contains(html, "Customers &lt;churn&gt;") {
		t.Error("node text should be escaped")
	}
	if strings.Count(html, `class="node"`) != 4 {
		t.Errorf("expected 4 rendered nodes, got %d", strings.Count(html, `class="node"`))
	}
	if strings.Index(html, "Revenue") < strings.Index(html, "Customers") {
		t.Error("grandchild rendered before its parent")
	}
}

func TestRenderTreeHTMLEmpty(t *testing.T) {
	html, err := RenderTreeHTML(TemplateData{Title: "Empty"})
	if err != nil {
		t.Fatalf("RenderTreeHTML() error = %v", err)
	}
	if !strings.Contains(html, "No nodes yet.") {
		t.Error("empty tree should render placeholder")
	}
}

func TestExportJSON(t *testing.T) {
	svc := NewService()
	result, err := svc.Export(context.Background(), Request{Title: "Pricing Map", Format: FormatJSON, Roots: sampleRoots()})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.Filename != "Pricing-Map.json" || result.MimeType != "application/json" {
		t.Fatalf("unexpected result metadata: %s %s", result.Filename, result.MimeType)
	}

	var payload struct {
		Title string `json:"title"`
		Roots []struct {
			ID       string `json:"id"`
			Children []struct {
				ID string `json:"id"`
			} `json:"children"`
		} `json:"roots"`
	}
	if err := json.Unmarshal(result.Data, &payload); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(payload.Roots) != 1 || len(payload.Roots[0].Children) != 2 {
		t.Fatalf("unexpected exported tree: %+v", payload)
	}
}

func TestExportEmptyJSONHasRootsArray(t *testing.T) {
	result, err := NewService().Export(context.Background(), Request{Format: FormatJSON})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.Contains(string(result.Data), `"roots": []`) {
		t.Fatalf("expected empty roots array, got %s", result.Data)
	}
	if result.Filename != "mindtree.json" {
		t.Fatalf("unexpected filename %s", result.Filename)
	}
}

func TestExportDelegatesPDF(t *testing.T) {
	svc := NewService()
	var gotHTML string
	svc.pdf = func(_ context.Context, html, title string) (*Result, error) {
		gotHTML = html
		return &Result{Data: []byte("%PDF"), Filename: sanitizeFilename(title) + ".pdf", MimeType: "application/pdf"}, nil
	}

	result, err := svc.Export(context.Background(), Request{Title: "Pricing", Format: FormatPDF, Roots: sampleRoots()})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.Filename != "Pricing.pdf" {
		t.Fatalf("unexpected filename %s", result.Filename)
	}
	if !strings.Contains(gotHTML, "Raise prices") {
		t.Fatal("pdf renderer did not receive the tree HTML")
	}

	svc.pdf = func(context.Context, string, string) (*Result, error) {
		return nil, ErrPDFDependencyMissing
	}
	if _, err := svc.Export(context.Background(), Request{Format: FormatPDF}); !errors.Is(err, ErrPDFDependencyMissing) {
		t.Fatalf("expected ErrPDFDependencyMissing, got %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"": FormatJSON, "MD": FormatMarkdown, "html": FormatHTML, "pdf": FormatPDF, "docx": FormatDOCX}
	for input, want := range tests {
		got, err := ParseFormat(input)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", input, got, err, want)
		}
	}
	if _, err := ParseFormat("xlsx"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello-World"},
		{"My Map v1.2", "My-Map-v12"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "mindtree"},
		{"Very Long Title That Exceeds Fifty Characters Limit", "Very-Long-Title-That-Exceeds-Fifty-Characters-Limi"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},
		{"test+sign", "test%2Bsign"},
		{"special<>", "special%3C%3E"},
		{"normal-text.txt", "normal-text.txt"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := percentEncodeForDataURL(tt.input)
			if result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeMultibyte(t *testing.T) {
	if got := percentEncodeForDataURL("é"); got != "%C3%A9" {
		t.Fatalf("percentEncodeForDataURL(é) = %q", got)
	}
}

func TestPandocDOCXArgsCarryTitle(t *testing.T) {
	args := strings.Join(pandocDOCXArgs("  Launch plan "), " ")
	if !strings.Contains(args, "--metadata title=Launch plan") {
		t.Fatalf("args missing title metadata: %s", args)
	}
	if !strings.Contains(args, "--to docx") || !strings.HasSuffix(args, "--output -") {
		t.Fatalf("unexpected args: %s", args)
	}
	if got := strings.Join(pandocDOCXArgs(""), " "); !strings.Contains(got, "title=mindtree") {
		t.Fatalf("blank title not defaulted: %s", got)
	}
}

func TestExportDOCXWithoutPandoc(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := exportDOCX(context.Background(), "<ul></ul>", "Plan")
	if !errors.Is(err, ErrDOCXDependencyMissing) {
		t.Fatalf("exportDOCX() error = %v, want ErrDOCXDependencyMissing", err)
	}
}
