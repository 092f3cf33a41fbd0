package purchase

import (
	"testing"

	"github.com/xelth-com/loomtrace/internal/models"
)

func lines(pairs ...float64) []models.PurchaseOrderDetail {
	var out []models.PurchaseOrderDetail
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, models.PurchaseOrderDetail{Quantity: pairs[i], ReceivedQuantity: pairs[i+1]})
	}
	return out
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name    string
		current models.POStatus
		lines   []models.PurchaseOrderDetail
		want    models.POStatus
	}{
		{"nothing received stays draft", models.POStatusDraft, lines(100, 0), models.POStatusDraft},
		{"nothing received after draft is confirmed", models.POStatusSent, lines(100, 0), models.POStatusConfirmed},
		{"partial falls back to confirmed", models.POStatusPartial, lines(100, 0), models.POStatusConfirmed},
		{"some received", models.POStatusConfirmed, lines(100, 40), models.POStatusPartial},
		{"draft with receipts is partial", models.POStatusDraft, lines(100, 40, 50, 0), models.POStatusPartial},
		{"all received", models.POStatusPartial, lines(100, 100, 50, 50), models.POStatusCompleted},
		{"within epsilon", models.POStatusConfirmed, lines(100, 99.995), models.POStatusCompleted},
		{"over received", models.POStatusConfirmed, lines(100, 120), models.POStatusCompleted},
		{"one line short", models.POStatusCompleted, lines(100, 100, 50, 49), models.POStatusPartial},
		{"below epsilon counts as nothing", models.POStatusConfirmed, lines(100, 0.005), models.POStatusConfirmed},
		{"cancelled is kept", models.POStatusCancelled, lines(100, 100), models.POStatusCancelled},
		{"no lines is kept", models.POStatusSent, nil, models.POStatusSent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveStatus(tt.current, tt.lines); got != tt.want {
				t.Errorf("DeriveStatus(%s) = %s, want %s", tt.current, got, tt.want)
			}
		})
	}
}
