package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/xelth-com/loomtrace/internal/apperr"
	"github.com/xelth-com/loomtrace/internal/services/iqc"
)

func (r *Router) iqcRoutes(sub *mux.Router) {
	sub.HandleFunc("", r.listIQCResults).Methods("GET")
	sub.HandleFunc("", r.createIQCResult).Methods("POST")
	sub.HandleFunc("/{id:[0-9]+}", r.getIQCResult).Methods("GET")
	sub.HandleFunc("/{id:[0-9]+}", r.updateIQCResult).Methods("PUT")
	sub.HandleFunc("/{id:[0-9]+}", r.deleteIQCResult).Methods("DELETE")
}

func (r *Router) listIQCResults(w http.ResponseWriter, req *http.Request) {
	batchID, err := queryUint(req, "batch_id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	if batchID == 0 {
		r.respondError(w, req, apperr.Validation("batch_id is required"))
		return
	}
	out, err := r.svc.IQC.ListByBatch(req.Context(), batchID)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (r *Router) createIQCResult(w http.ResponseWriter, req *http.Request) {
	var in iqc.CreateInput
	if err := decode(req, &in); err != nil {
		r.respondError(w, req, err)
		return
	}
	res, err := r.svc.IQC.Create(req.Context(), in)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

func (r *Router) getIQCResult(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	res, err := r.svc.IQC.Get(req.Context(), id)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (r *Router) updateIQCResult(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	var in iqc.UpdateInput
	if err := decode(req, &in); err != nil {
		r.respondError(w, req, err)
		return
	}
	res, err := r.svc.IQC.Update(req.Context(), id, in)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (r *Router) deleteIQCResult(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	if err := r.svc.IQC.Delete(req.Context(), id); err != nil {
		r.respondError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
