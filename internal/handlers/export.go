package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/xelth-com/loomtrace/internal/services/export"
)

func (r *Router) exportRoutes(sub *mux.Router) {
	sub.HandleFunc("", r.listExports).Methods("GET")
	sub.HandleFunc("", r.createExport).Methods("POST")
	sub.HandleFunc("/next-code", r.nextExportCode).Methods("GET")
	sub.HandleFunc("/{id:[0-9]+}", r.getExport).Methods("GET")
	sub.HandleFunc("/{id:[0-9]+}", r.deleteExport).Methods("DELETE")
}

func (r *Router) listExports(w http.ResponseWriter, req *http.Request) {
	var f export.ListFilter
	var err error
	if f.WarehouseID, err = queryUint(req, "warehouse_id"); err != nil {
		r.respondError(w, req, err)
		return
	}
	if f.From, err = queryDate(req, "from"); err != nil {
		r.respondError(w, req, err)
		return
	}
	if f.To, err = queryDate(req, "to"); err != nil {
		r.respondError(w, req, err)
		return
	}
	out, err := r.svc.Exports.List(req.Context(), f)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (r *Router) createExport(w http.ResponseWriter, req *http.Request) {
	var in export.CreateInput
	if err := decode(req, &in); err != nil {
		r.respondError(w, req, err)
		return
	}
	e, err := r.svc.Exports.Create(req.Context(), in)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, e)
}

func (r *Router) nextExportCode(w http.ResponseWriter, req *http.Request) {
	code, err := r.svc.Exports.NextCode(req.Context())
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"export_code": code})
}

func (r *Router) getExport(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	e, err := r.svc.Exports.Get(req.Context(), id)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

func (r *Router) deleteExport(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	if err := r.svc.Exports.Delete(req.Context(), id); err != nil {
		r.respondError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
