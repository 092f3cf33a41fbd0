// Package printer renders batch labels as A4 PDF sheets with QR codes.
package printer

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"
)

// LabelOptions holds the sheet layout for batch labels
type LabelOptions struct {
	QRPrefix   string  `json:"qrPrefix"` // prepended to the batch code in the QR payload
	Cols       int     `json:"cols"`
	Rows       int     `json:"rows"`
	MarginTop  float64 `json:"marginTop"`
	MarginLeft float64 `json:"marginLeft"`
	GapX       float64 `json:"gapX"`
	GapY       float64 `json:"gapY"`
}

// DefaultLabelOptions is a 3x8 sheet.
func DefaultLabelOptions(qrPrefix string) LabelOptions {
	return LabelOptions{
		QRPrefix:   qrPrefix,
		Cols:       3,
		Rows:       8,
		MarginTop:  10,
		MarginLeft: 7,
		GapX:       2.5,
		GapY:       0,
	}
}

// BatchLabel is what gets printed on one sticker.
type BatchLabel struct {
	InternalCode    string
	SupplierBatchNo string
	MaterialCode    string
	QCStatus        string
}

// QRPayload returns the string encoded in the label's QR code.
func QRPayload(prefix, code string) string {
	return prefix + code
}

// BatchLabelsPDF lays out one label per batch, paging as needed.
func BatchLabelsPDF(labels []BatchLabel, opt LabelOptions) ([]byte, error) {
	if opt.Cols <= 0 || opt.Rows <= 0 {
		return nil, fmt.Errorf("label grid must have at least one row and column, got %dx%d", opt.Cols, opt.Rows)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Arial", "B", 10)

	pageWidth, pageHeight := pdf.GetPageSize()

	availW := pageWidth - opt.MarginLeft*2
	availH := pageHeight - opt.MarginTop*2
	labelW := (availW - float64(opt.Cols-1)*opt.GapX) / float64(opt.Cols)
	labelH := (availH - float64(opt.Rows-1)*opt.GapY) / float64(opt.Rows)

	perPage := opt.Cols * opt.Rows
	imgOptions := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}

	for i, l := range labels {
		if i%perPage == 0 {
			pdf.AddPage()
		}
		slot := i % perPage
		x := opt.MarginLeft + float64(slot%opt.Cols)*(labelW+opt.GapX)
		y := opt.MarginTop + float64(slot/opt.Cols)*(labelH+opt.GapY)

		png, err := qrcode.Encode(QRPayload(opt.QRPrefix, l.InternalCode), qrcode.Medium, 256)
		if err != nil {
			return nil, fmt.Errorf("encode QR for %s: %w", l.InternalCode, err)
		}
		imgName := fmt.Sprintf("qr_%d", i)
		pdf.RegisterImageOptionsReader(imgName, imgOptions, bytes.NewReader(png))

		// QR on the left, text block on the right
		qrSize := labelH * 0.9
		if qrSize > labelW/2 {
			qrSize = labelW / 2
		}
		pdf.ImageOptions(imgName, x+1, y+(labelH-qrSize)/2, qrSize, qrSize, false, imgOptions, 0, "")

		textX := x + qrSize + 2
		textW := labelW - qrSize - 3

		pdf.SetFont("Arial", "B", 10)
		pdf.SetXY(textX, y+3)
		pdf.CellFormat(textW, 5, l.InternalCode, "", 2, "L", false, 0, "")

		pdf.SetFont("Arial", "", 7)
		pdf.SetX(textX)
		pdf.CellFormat(textW, 4, l.MaterialCode, "", 2, "L", false, 0, "")
		if l.SupplierBatchNo != "" {
			pdf.SetX(textX)
			pdf.CellFormat(textW, 4, "Lot "+l.SupplierBatchNo, "", 2, "L", false, 0, "")
		}
		pdf.SetX(textX)
		pdf.CellFormat(textW, 4, "QC: "+l.QCStatus, "", 2, "L", false, 0, "")
	}

	if pdf.Err() {
		return nil, pdf.Error()
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
