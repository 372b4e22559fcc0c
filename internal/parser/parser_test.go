package parser

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"studyrag/internal/models"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseFile_Text(t *testing.T) {
	path := writeFile(t, "notes.txt", "plain notes")

	pages, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, []models.Page{{Number: 1, Text: "plain notes"}}, pages)
}

func TestParseFile_Markdown(t *testing.T) {
	path := writeFile(t, "README.md", "# Title\n\nSome **bold** text\nand a [link](http://x).\n\n- item one\n\n```\ncode line\n```\n")

	pages, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	text := pages[0].Text
	assert.Contains(t, text, "Title")
	assert.Contains(t, text, "Some bold text")
	assert.Contains(t, text, "and a link.")
	assert.Contains(t, text, "item one")
	assert.Contains(t, text, "code line")
	assert.NotContains(t, text, "**")
	assert.NotContains(t, text, "http://x")
}

func TestParseFile_Unsupported(t *testing.T) {
	path := writeFile(t, "image.png", "not really")

	_, err := ParseFile(path)
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)
	assert.False(t, IsSupported("image.png"))
	assert.True(t, IsSupported("Lecture.PDF"))
}

func TestParseFile_CorruptPDF(t *testing.T) {
	path := writeFile(t, "broken.pdf", "%PDF-1.4 this is not a real pdf")

	_, err := ParseFile(path)
	assert.ErrorIs(t, err, models.ErrDocumentParse)
}

func TestParseFile_PPTX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.pptx")
	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	slides := map[string]string{
		"ppt/slides/slide2.xml":            `<p:sld><a:t>Second</a:t><a:t>slide &amp; more</a:t></p:sld>`,
		"ppt/slides/slide1.xml":            `<p:sld><a:t>First slide</a:t></p:sld>`,
		"ppt/slides/_rels/slide1.xml.rels": `<Relationships/>`,
	}
	for _, name := range []string{"ppt/slides/slide2.xml", "ppt/slides/_rels/slide1.xml.rels", "ppt/slides/slide1.xml"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(slides[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	pages, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, "First slide", strings.TrimSpace(pages[0].Text))
	assert.Equal(t, 2, pages[1].Number)
	assert.Equal(t, "Second slide & more", strings.TrimSpace(pages[1].Text))
}

func TestParseFile_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")
	wb := excelize.NewFile()
	require.NoError(t, wb.SetCellValue("Sheet1", "A1", "region"))
	require.NoError(t, wb.SetCellValue("Sheet1", "B1", "sales"))
	require.NoError(t, wb.SetCellValue("Sheet1", "A2", "north"))
	require.NoError(t, wb.SetCellValue("Sheet1", "B2", 42))
	require.NoError(t, wb.SaveAs(path))
	require.NoError(t, wb.Close())

	pages, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Contains(t, pages[0].Text, "## Sheet: Sheet1")
	assert.Contains(t, pages[0].Text, "region\tsales")
	assert.Contains(t, pages[0].Text, "north\t42")
}
