package parser

import (
	"archive/zip"
	"fmt"
	"html"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"studyrag/internal/models"
)

var (
	slideNameRe   = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	slideTextRe   = regexp.MustCompile(`(?s)<a:t>(.*?)</a:t>`)
	wordParaEndRe = regexp.MustCompile(`</w:p>`)
	xmlTagRe      = regexp.MustCompile(`<[^>]+>`)
)

func parseDOCX(filePath string) ([]models.Page, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	// GetContent returns the raw document.xml
	content := r.Editable().GetContent()
	content = wordParaEndRe.ReplaceAllString(content, "\n")
	content = html.UnescapeString(xmlTagRe.ReplaceAllString(content, ""))

	// DOCX has no page numbers
	return []models.Page{{Number: defaultPageNumber, Text: content}}, nil
}

func parsePPTX(filePath string) ([]models.Page, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []models.Page
	for _, file := range f.File {
		m := slideNameRe.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		slideNum, _ := strconv.Atoi(m[1])

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", file.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file.Name, err)
		}
		pages = append(pages, models.Page{Number: slideNum, Text: extractSlideText(string(data))})
	}

	// zip order is not slide order
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages, nil
}

func extractSlideText(xmlContent string) string {
	var text strings.Builder
	for _, m := range slideTextRe.FindAllStringSubmatch(xmlContent, -1) {
		text.WriteString(html.UnescapeString(m[1]))
		text.WriteString(" ")
	}
	return text.String()
}

func parseXLSX(filePath string) ([]models.Page, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	var pages []models.Page
	for sheetNum, sheet := range f.Sheets {
		var text strings.Builder
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				text.WriteString(cell.String() + "\t")
			}
			text.WriteString("\n")
		}
		pages = append(pages, models.Page{Number: sheetNum + 1, Text: text.String()})
	}
	return pages, nil
}

// parseXLSM reads macro-enabled workbooks, which the xlsx reader rejects
func parseXLSM(filePath string) ([]models.Page, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []models.Page
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheetName, err)
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheetName))
		for _, row := range rows {
			for _, cell := range row {
				text.WriteString(cell + "\t")
			}
			text.WriteString("\n")
		}
		pages = append(pages, models.Page{Number: sheetNum + 1, Text: text.String()})
	}
	return pages, nil
}
