package printer

import (
	"bytes"
	"testing"
)

func TestBatchLabelsPDF(t *testing.T) {
	labels := []BatchLabel{
		{InternalCode: "V260001", MaterialCode: "PP-1000", SupplierBatchNo: "S-77", QCStatus: "Pending"},
		{InternalCode: "V260002", MaterialCode: "PP-1000", QCStatus: "Pass"},
	}
	out, err := BatchLabelsPDF(labels, DefaultLabelOptions("LOT:"))
	if err != nil {
		t.Fatalf("BatchLabelsPDF: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Errorf("output does not look like a PDF: %q", out[:8])
	}
}

func TestBatchLabelsPDFRejectsEmptyGrid(t *testing.T) {
	opt := DefaultLabelOptions("LOT:")
	opt.Cols = 0
	if _, err := BatchLabelsPDF([]BatchLabel{{InternalCode: "V260001"}}, opt); err == nil {
		t.Fatal("expected an error for a zero-column grid")
	}
}

func TestQRPayload(t *testing.T) {
	if got := QRPayload("LOT:", "V260001"); got != "LOT:V260001" {
		t.Errorf("QRPayload = %q", got)
	}
}
