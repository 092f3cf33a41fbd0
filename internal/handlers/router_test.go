package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xelth-com/loomtrace/internal/audit"
	"github.com/xelth-com/loomtrace/internal/database"
	"github.com/xelth-com/loomtrace/internal/models"
	"github.com/xelth-com/loomtrace/internal/services/batch"
	"github.com/xelth-com/loomtrace/internal/services/bom"
	"github.com/xelth-com/loomtrace/internal/services/declaration"
	"github.com/xelth-com/loomtrace/internal/services/export"
	"github.com/xelth-com/loomtrace/internal/services/inventory"
	"github.com/xelth-com/loomtrace/internal/services/iqc"
	"github.com/xelth-com/loomtrace/internal/services/printer"
	"github.com/xelth-com/loomtrace/internal/services/purchase"
	"github.com/xelth-com/loomtrace/internal/services/receipt"
	"github.com/xelth-com/loomtrace/internal/services/registry"
	"github.com/xelth-com/loomtrace/internal/services/weaving"
	"github.com/xelth-com/loomtrace/internal/testutil"
)

func newTestRouter(t *testing.T, secret string) (*Router, *database.DB, *testutil.Fixture) {
	t.Helper()
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db)
	codes := testutil.Codes()
	aw := audit.NewGormWriter()
	lg := testutil.Logger()

	svc := Services{
		Registry:     registry.New(db, aw, nil, lg),
		Purchase:     purchase.NewService(db, codes, aw, lg),
		Declarations: declaration.NewService(db, aw, lg),
		Receipts:     receipt.NewService(db, codes, aw, lg),
		Batches:      batch.NewService(db, codes, aw, printer.DefaultLabelOptions("LOT:"), lg),
		IQC:          iqc.NewService(db, aw, lg),
		Inventory:    inventory.NewService(db, aw, lg),
		Exports:      export.NewService(db, codes, aw, lg),
		Weaving:      weaving.NewService(db, aw, lg),
		BOM:          bom.NewService(db, aw, lg),
	}
	return NewRouter(db, svc, nil, secret, lg), db, fx
}

func do(t *testing.T, r *Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndStatus(t *testing.T) {
	r, _, _ := newTestRouter(t, "")

	if rec := do(t, r, "GET", "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("/health = %d", rec.Code)
	}
	rec := do(t, r, "GET", "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("/api/status = %d", rec.Code)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["actor"] != audit.SystemActor {
		t.Errorf("actor = %v", body["actor"])
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Errorf("missing request id header")
	}
}

func TestAPIRequiresTokenWhenSecretSet(t *testing.T) {
	r, _, _ := newTestRouter(t, "s3cret")

	if rec := do(t, r, "GET", "/api/batches", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("/api/batches without token = %d", rec.Code)
	}
	if rec := do(t, r, "GET", "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("/health must stay public, got %d", rec.Code)
	}
}

func TestRegistryRoutes(t *testing.T) {
	r, _, _ := newTestRouter(t, "")

	rec := do(t, r, "POST", "/api/warehouses", map[string]any{"code": "WH-9", "name": "Overflow", "is_active": true})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body)
	}
	var w models.Warehouse
	json.Unmarshal(rec.Body.Bytes(), &w)

	if rec := do(t, r, "POST", "/api/warehouses", map[string]any{"code": "WH-9", "name": "Again"}); rec.Code != http.StatusConflict {
		t.Errorf("duplicate = %d", rec.Code)
	}
	if rec := do(t, r, "POST", "/api/warehouses", map[string]any{"code": "WH-8", "name": "X", "colour": "red"}); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown field = %d", rec.Code)
	}
	if rec := do(t, r, "POST", "/api/warehouses", `{"code":`); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body = %d", rec.Code)
	}
	if rec := do(t, r, "GET", fmt.Sprintf("/api/warehouses/%d", w.ID), nil); rec.Code != http.StatusOK {
		t.Errorf("get = %d", rec.Code)
	}
	if rec := do(t, r, "DELETE", fmt.Sprintf("/api/warehouses/%d", w.ID), nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d", rec.Code)
	}
	if rec := do(t, r, "GET", fmt.Sprintf("/api/warehouses/%d", w.ID), nil); rec.Code != http.StatusNotFound {
		t.Errorf("get deleted = %d", rec.Code)
	}
}

func TestReceiptToExportFlow(t *testing.T) {
	r, _, fx := newTestRouter(t, "")

	rec := do(t, r, "POST", "/api/receipts", map[string]any{
		"warehouse_id": fx.Warehouse.ID,
		"details": []map[string]any{
			{"material_id": fx.Material.ID, "received_quantity_kg": 25, "supplier_batch_no": "S-1"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("receipt = %d %s", rec.Code, rec.Body)
	}
	var rc models.MaterialReceipt
	json.Unmarshal(rec.Body.Bytes(), &rc)
	if rc.ReceiptNumber != "2026/03-001" || len(rc.Details) != 1 || rc.Details[0].InternalBatchCode != "V260001" {
		t.Fatalf("receipt = %+v", rc)
	}
	batchID := rc.Details[0].BatchID

	rec = do(t, r, "GET", fmt.Sprintf("/api/inventory/material/%d/total", fx.Material.ID), nil)
	var total inventory.MaterialTotal
	json.Unmarshal(rec.Body.Bytes(), &total)
	if rec.Code != http.StatusOK || total.QuantityOnHand != 25 {
		t.Errorf("total = %d %+v", rec.Code, total)
	}

	line := map[string]any{"material_id": fx.Material.ID, "batch_id": batchID, "quantity": 30}
	rec = do(t, r, "POST", "/api/exports", map[string]any{"warehouse_id": fx.Warehouse.ID, "details": []any{line}})
	if rec.Code != http.StatusConflict {
		t.Fatalf("over-withdrawal = %d %s", rec.Code, rec.Body)
	}
	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["kind"] != "insufficient_stock" {
		t.Errorf("kind = %v", body["kind"])
	}

	line["quantity"] = 10
	rec = do(t, r, "POST", "/api/exports", map[string]any{"warehouse_id": fx.Warehouse.ID, "details": []any{line}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("export = %d %s", rec.Code, rec.Body)
	}

	rec = do(t, r, "GET", fmt.Sprintf("/api/batches/%d/trace", batchID), nil)
	var trace batch.Trace
	json.Unmarshal(rec.Body.Bytes(), &trace)
	if rec.Code != http.StatusOK || trace.Receipt == nil || len(trace.ExportLines) != 1 {
		t.Errorf("trace = %d %+v", rec.Code, trace)
	}

	rec = do(t, r, "GET", "/api/batches/labels?ids="+fmt.Sprint(batchID), nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/pdf" {
		t.Errorf("labels = %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestNotFoundAndValidationMapping(t *testing.T) {
	r, _, _ := newTestRouter(t, "")

	if rec := do(t, r, "GET", "/api/batches/999", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing batch = %d", rec.Code)
	}
	if rec := do(t, r, "GET", "/api/iqc", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("iqc without batch_id = %d", rec.Code)
	}
	if rec := do(t, r, "GET", "/api/receipts?from=yesterday", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad date = %d", rec.Code)
	}

	rec := do(t, r, "POST", "/api/boms/calculate", map[string]any{
		"target_weight_gm": 80,
		"details": []map[string]any{
			{"component_type": "GROUND", "threads": 1, "dtex": 11000, "actual_length_cm": 300},
			{"component_type": "BINDER", "threads": 1, "dtex": 11000, "actual_length_cm": 100},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("calculate = %d %s", rec.Code, rec.Body)
	}
	var res bom.Result
	json.Unmarshal(rec.Body.Bytes(), &res)
	if len(res.Lines) != 2 || res.Lines[0].BOMGm != 60 {
		t.Errorf("result = %+v", res)
	}
}
