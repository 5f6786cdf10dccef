package export

import (
	"strings"

	"mindtree/internal/tree"
)

// RenderMarkdown writes the forest as a nested bullet outline under a title
// heading.
func RenderMarkdown(title string, roots []*tree.Tree) string {
	type entry struct {
		node  *tree.Tree
		depth int
	}

	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(singleLine(title))
	b.WriteString("\n\n")

	stack := make([]entry, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, entry{node: roots[i]})
	}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		b.WriteString(strings.Repeat("  ", current.depth))
		b.WriteString("- ")
		b.WriteString(escapeMarkdown(singleLine(current.node.Text)))
		b.WriteString("\n")

		for i := len(current.node.Children) - 1; i >= 0; i-- {
			stack = append(stack, entry{node: current.node.Children[i], depth: current.depth + 1})
		}
	}
	return b.String()
}

func singleLine(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
)

func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}
