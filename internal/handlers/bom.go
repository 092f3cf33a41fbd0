package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/xelth-com/loomtrace/internal/reports"
	"github.com/xelth-com/loomtrace/internal/services/bom"
)

func (r *Router) bomRoutes(sub *mux.Router) {
	sub.HandleFunc("", r.listBOMs).Methods("GET")
	sub.HandleFunc("", r.createBOM).Methods("POST")
	sub.HandleFunc("/calculate", r.calculateBOM).Methods("POST")
	sub.HandleFunc("/{id:[0-9]+}", r.getBOM).Methods("GET")
	sub.HandleFunc("/{id:[0-9]+}", r.updateBOM).Methods("PUT")
	sub.HandleFunc("/{id:[0-9]+}", r.deleteBOM).Methods("DELETE")
	sub.HandleFunc("/{id:[0-9]+}/summary", r.bomSummary).Methods("GET")
	sub.HandleFunc("/{id:[0-9]+}/summary.xlsx", r.bomSummaryWorkbook).Methods("GET")
}

func (r *Router) listBOMs(w http.ResponseWriter, req *http.Request) {
	productID, err := queryUint(req, "product_id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	year, err := queryUint(req, "year")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	out, err := r.svc.BOM.List(req.Context(), bom.ListFilter{ProductID: productID, Year: int(year)})
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (r *Router) createBOM(w http.ResponseWriter, req *http.Request) {
	var in bom.Input
	if err := decode(req, &in); err != nil {
		r.respondError(w, req, err)
		return
	}
	h, err := r.svc.BOM.Create(req.Context(), in)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, h)
}

func (r *Router) calculateBOM(w http.ResponseWriter, req *http.Request) {
	var in bom.CalculateInput
	if err := decode(req, &in); err != nil {
		r.respondError(w, req, err)
		return
	}
	res, err := r.svc.BOM.Calculate(in)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (r *Router) getBOM(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	h, err := r.svc.BOM.Get(req.Context(), id)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, h)
}

func (r *Router) updateBOM(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	var in bom.Input
	if err := decode(req, &in); err != nil {
		r.respondError(w, req, err)
		return
	}
	h, err := r.svc.BOM.Update(req.Context(), id, in)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, h)
}

func (r *Router) deleteBOM(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	if err := r.svc.BOM.Delete(req.Context(), id); err != nil {
		r.respondError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) bomSummary(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	rows, err := r.svc.BOM.Summary(req.Context(), id)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (r *Router) bomSummaryWorkbook(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	data, err := r.svc.BOM.SummaryXLSX(req.Context(), id)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondFile(w, reports.ContentType, fmt.Sprintf("bom_%d_summary.xlsx", id), data)
}
