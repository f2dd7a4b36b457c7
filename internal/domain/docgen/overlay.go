package docgen

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

const (
	overlayMargin     = 72.0
	overlayLineHeight = 16.0
	overlayFontSize   = 11.0
)

// FillPDFTemplate draws request values at fixed coordinates over the first
// page of a PDF template and returns the stamped document.
func FillPDFTemplate(templatePath string, req Request, emp Employee, now time.Time) ([]byte, error) {
	dims, err := api.PageDimsFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("read template dimensions: %w", err)
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("template has no pages")
	}
	pageW := dims[0].Width
	pageH := dims[0].Height

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pageW, Ht: pageH},
	})
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", overlayFontSize)

	if isCertificationType(req.LetterType) {
		drawCertificationOverlay(pdf, req, emp, now, pageW)
	} else {
		drawGenericOverlay(pdf, req, emp, now, pageW)
	}
	if pdf.Err() {
		return nil, fmt.Errorf("draw overlay: %v", pdf.Error())
	}

	overlayFile, err := os.CreateTemp("", "letter-overlay-*.pdf")
	if err != nil {
		return nil, err
	}
	overlayPath := overlayFile.Name()
	overlayFile.Close()
	defer os.Remove(overlayPath)

	if err := pdf.OutputFileAndClose(overlayPath); err != nil {
		return nil, fmt.Errorf("write overlay: %w", err)
	}

	wm, err := api.PDFWatermark(overlayPath, "pos:bl, off:0 0, scale:1 abs, rot:0", true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("prepare stamp: %w", err)
	}

	outFile, err := os.CreateTemp("", "letter-filled-*.pdf")
	if err != nil {
		return nil, err
	}
	outPath := outFile.Name()
	outFile.Close()
	defer os.Remove(outPath)

	if err := api.AddWatermarksFile(templatePath, outPath, nil, wm, nil); err != nil {
		return nil, fmt.Errorf("stamp template: %w", err)
	}

	return os.ReadFile(outPath)
}

func drawCertificationOverlay(pdf *gofpdf.Fpdf, req Request, emp Employee, now time.Time, pageW float64) {
	details := req.Details

	pdf.Text(pageW-95, 60, now.Format("02-01-06"))

	pdf.SetFont("Helvetica", "B", overlayFontSize)
	pdf.Text(overlayMargin+48, 120, displayName(req, emp))
	pdf.SetFont("Helvetica", "", overlayFontSize)

	pdf.Text(overlayMargin+120, 140, req.EmployeeID)
	pdf.Text(overlayMargin+64, 158, lookup(details, "institute", "institution"))
	pdf.Text(overlayMargin+28, 270, lookup(details, "certificationCost", "certification_cost", "cost", "amount"))
	pdf.Text(overlayMargin+208, 270, lookup(details, "certificationName", "certification_name", "certification", "courseName"))

	drawWrapped(pdf, req.EmployeeComments, overlayMargin, 390, pageW-2*overlayMargin)
	drawStatusBadge(pdf, req.Status, pageW-190, 100)
}

func drawGenericOverlay(pdf *gofpdf.Fpdf, req Request, emp Employee, now time.Time, pageW float64) {
	pdf.Text(pageW-150, 80, now.Format(letterDateLayout))

	pdf.SetFont("Helvetica", "B", overlayFontSize)
	pdf.Text(overlayMargin, 150, displayName(req, emp))
	pdf.SetFont("Helvetica", "", overlayFontSize)
	pdf.Text(overlayMargin, 168, req.EmployeeID)

	y := 186.0
	for _, line := range strings.Split(emp.Address, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		pdf.Text(overlayMargin, y, line)
		y += overlayLineHeight
	}

	y = 240
	keys := make([]string, 0, len(req.Details))
	for key := range req.Details {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if strings.TrimSpace(req.Details[key]) == "" {
			continue
		}
		pdf.Text(overlayMargin, y, splitCamel(key)+": "+req.Details[key])
		y += 18
	}

	y += 10
	y = drawWrapped(pdf, req.EmployeeComments, overlayMargin, y, pageW-2*overlayMargin)
	if strings.TrimSpace(req.AdminNotes) != "" {
		y += overlayLineHeight
		drawWrapped(pdf, "Notes: "+req.AdminNotes, overlayMargin, y, pageW-2*overlayMargin)
	}

	drawStatusBadge(pdf, req.Status, pageW-190, 100)
}

func drawWrapped(pdf *gofpdf.Fpdf, text string, x, y, maxWidth float64) float64 {
	lines := WrapText(pdf.GetStringWidth, text, maxWidth)
	for _, line := range lines {
		pdf.Text(x, y, line)
		y += overlayLineHeight
	}
	return y
}

func drawStatusBadge(pdf *gofpdf.Fpdf, status string, x, y float64) {
	label := strings.ToUpper(status)
	switch status {
	case "approved":
		pdf.SetTextColor(0, 128, 0)
	case "rejected":
		pdf.SetTextColor(200, 0, 0)
	default:
		pdf.SetTextColor(218, 165, 32)
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Text(x, y, label)
	pdf.SetFont("Helvetica", "", overlayFontSize)
	pdf.SetTextColor(0, 0, 0)
}

func displayName(req Request, emp Employee) string {
	name := req.EmployeeName
	if strings.TrimSpace(name) == "" {
		name = emp.Name
	}
	return name
}
