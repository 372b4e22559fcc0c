package parser

import (
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"studyrag/internal/models"
)

func parseMarkdown(filePath string) ([]models.Page, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return []models.Page{{Number: defaultPageNumber, Text: markdownToText(data)}}, nil
}

// markdownToText drops markup and keeps the readable text, one block per line
func markdownToText(src []byte) string {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(src))

	var out strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				out.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					out.WriteString("\n")
				}
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					out.Write(seg.Value(src))
				}
			}
			return ast.WalkSkipChildren, nil
		default:
			if !entering && n.Type() == ast.TypeBlock {
				out.WriteString("\n")
			}
		}
		return ast.WalkContinue, nil
	})
	return out.String()
}
