package report

import (
	"fmt"
	"io"
	"strings"

	"marvin-sync/core/model"

	"github.com/phpdave11/gofpdf"
)

var columns = []struct {
	title string
	width float64
}{
	{"ID", 12},
	{"Title", 62},
	{"Authors", 44},
	{"Quality", 18},
	{"Mismatches", 46},
}

var qualityColors = map[string][3]int{
	model.MatchGreen.String():  {200, 235, 200},
	model.MatchYellow.String(): {250, 240, 180},
	model.MatchOrange.String(): {250, 215, 170},
	model.MatchRed.String():    {245, 190, 190},
	model.MatchWhite.String():  {255, 255, 255},
}

func writePDF(w io.Writer, doc *Document) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 14)
	pdf.SetTitle("Device library report", false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 9, "Device library report", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 6, "Generated at: "+doc.GeneratedAt.Format("2006-01-02 15:04 MST"), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Books: %d, mismatched: %d", doc.Summary.Total, doc.Summary.Mismatched), "", 1, "L", false, 0, "")
	var counts []string
	for _, q := range model.AllQualities() {
		counts = append(counts, fmt.Sprintf("%s %d", q, doc.Summary.ByQuality[q.String()]))
	}
	pdf.CellFormat(0, 6, strings.Join(counts, ", "), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	header := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetTextColor(20, 20, 20)
		pdf.SetFillColor(225, 225, 225)
		for _, c := range columns {
			pdf.CellFormat(c.width, 6, c.title, "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
	}
	header()

	pdf.SetFont("Helvetica", "", 8)
	for _, row := range doc.Books {
		if pdf.GetY() > 270 {
			pdf.AddPage()
			header()
			pdf.SetFont("Helvetica", "", 8)
		}
		rgb := qualityColors[row.Quality]
		pdf.SetFillColor(rgb[0], rgb[1], rgb[2])
		cells := []string{
			fmt.Sprintf("%d", row.ID),
			row.Title,
			strings.Join(row.Authors, ", "),
			row.Quality,
			strings.Join(row.Mismatches, ", "),
		}
		for i, c := range columns {
			pdf.CellFormat(c.width, 5, fit(pdf, tr(cells[i]), c.width-2), "1", 0, "L", i == 3, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf report: %w", err)
	}
	return pdf.Output(w)
}

// fit truncates s so it renders within width.
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && pdf.GetStringWidth(string(r)+"...") > width {
		r = r[:len(r)-1]
	}
	return string(r) + "..."
}
