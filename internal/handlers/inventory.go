package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/xelth-com/loomtrace/internal/reports"
	"github.com/xelth-com/loomtrace/internal/services/inventory"
)

func (r *Router) inventoryRoutes(sub *mux.Router) {
	sub.HandleFunc("", r.listStock).Methods("GET")
	sub.HandleFunc("/adjust", r.adjustStock).Methods("POST")
	sub.HandleFunc("/reserve", r.reserveStock).Methods("POST")
	sub.HandleFunc("/release", r.releaseStock).Methods("POST")
	sub.HandleFunc("/batch/{id:[0-9]+}", r.stockByBatch).Methods("GET")
	sub.HandleFunc("/material/{id:[0-9]+}/total", r.materialTotal).Methods("GET")
	sub.HandleFunc("/low-stock", r.lowStock).Methods("GET")
	sub.HandleFunc("/export.xlsx", r.stockWorkbook).Methods("GET")
}

func (r *Router) listStock(w http.ResponseWriter, req *http.Request) {
	var f inventory.Filter
	var err error
	if f.MaterialID, err = queryUint(req, "material_id"); err != nil {
		r.respondError(w, req, err)
		return
	}
	if f.WarehouseID, err = queryUint(req, "warehouse_id"); err != nil {
		r.respondError(w, req, err)
		return
	}
	if f.BatchID, err = queryUint(req, "batch_id"); err != nil {
		r.respondError(w, req, err)
		return
	}
	rows, err := r.svc.Inventory.List(req.Context(), f)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (r *Router) adjustStock(w http.ResponseWriter, req *http.Request) {
	var in inventory.AdjustInput
	if err := decode(req, &in); err != nil {
		r.respondError(w, req, err)
		return
	}
	row, err := r.svc.Inventory.Adjust(req.Context(), in)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, row)
}

func (r *Router) reserveStock(w http.ResponseWriter, req *http.Request) {
	var in inventory.ReserveInput
	if err := decode(req, &in); err != nil {
		r.respondError(w, req, err)
		return
	}
	allocs, err := r.svc.Inventory.Reserve(req.Context(), in)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, allocs)
}

func (r *Router) releaseStock(w http.ResponseWriter, req *http.Request) {
	var in inventory.ReserveInput
	if err := decode(req, &in); err != nil {
		r.respondError(w, req, err)
		return
	}
	allocs, err := r.svc.Inventory.Release(req.Context(), in)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, allocs)
}

func (r *Router) stockByBatch(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	rows, err := r.svc.Inventory.ByBatch(req.Context(), id)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (r *Router) materialTotal(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	total, err := r.svc.Inventory.TotalByMaterial(req.Context(), id)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, total)
}

func (r *Router) lowStock(w http.ResponseWriter, req *http.Request) {
	items, err := r.svc.Inventory.LowStock(req.Context())
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (r *Router) stockWorkbook(w http.ResponseWriter, req *http.Request) {
	data, err := r.svc.Inventory.ReportXLSX(req.Context())
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondFile(w, reports.ContentType, "stock.xlsx", data)
}
