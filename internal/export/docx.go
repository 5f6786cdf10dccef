package export

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const docxMimeType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// pandocDOCXArgs converts the rendered outline into a Word document whose
// core properties carry the map title. Nested lists stay nested lists.
func pandocDOCXArgs(title string) []string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "mindtree"
	}
	return []string{
		"--from", "html-native_divs-native_spans",
		"--to", "docx",
		"--metadata", "title=" + title,
		"--metadata", "subject=mind map export",
		"--output", "-",
	}
}

func exportDOCX(ctx context.Context, html string, title string) (*Result, error) {
	pandoc, err := exec.LookPath("pandoc")
	if err != nil {
		return nil, fmt.Errorf("%w: pandoc not found in PATH", ErrDOCXDependencyMissing)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, pandoc, pandocDOCXArgs(title)...)
	cmd.Stdin = strings.NewReader(html)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("pandoc docx: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("pandoc docx: %w", err)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("pandoc docx: empty output")
	}

	return &Result{
		Data:     stdout.Bytes(),
		Filename: sanitizeFilename(title) + ".docx",
		MimeType: docxMimeType,
	}, nil
}
