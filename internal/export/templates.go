package export

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"mindtree/internal/tree"
)

//go:embed templates/*.html
var templateFS embed.FS

var treeTemplate = template.Must(
	template.New("tree.html").Funcs(template.FuncMap{
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
		"count": func(roots []*tree.Tree) int {
			return len(tree.Flatten(roots))
		},
	}).ParseFS(templateFS, "templates/tree.html"),
)

// TemplateData holds data for tree template rendering
type TemplateData struct {
	Title       string
	GeneratedAt time.Time
	Roots       []*tree.Tree
}

// RenderTreeHTML renders the tree template with provided data
func RenderTreeHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := treeTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func nonNilRoots(roots []*tree.Tree) []*tree.Tree {
	if roots == nil {
		return []*tree.Tree{}
	}
	return roots
}
