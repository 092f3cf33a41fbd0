package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/xelth-com/loomtrace/internal/models"
	"github.com/xelth-com/loomtrace/internal/services/batch"
)

func (r *Router) batchRoutes(sub *mux.Router) {
	sub.HandleFunc("", r.listBatches).Methods("GET")
	sub.HandleFunc("", r.createBatch).Methods("POST")
	sub.HandleFunc("/next-code", r.nextBatchCode).Methods("GET")
	sub.HandleFunc("/labels", r.batchLabels).Methods("GET", "POST")
	sub.HandleFunc("/{id:[0-9]+}", r.getBatch).Methods("GET")
	sub.HandleFunc("/{id:[0-9]+}", r.updateBatch).Methods("PUT")
	sub.HandleFunc("/{id:[0-9]+}", r.deleteBatch).Methods("DELETE")
	sub.HandleFunc("/{id:[0-9]+}/deactivate", r.deactivateBatch).Methods("POST")
	sub.HandleFunc("/{id:[0-9]+}/trace", r.traceBatch).Methods("GET")
}

func (r *Router) listBatches(w http.ResponseWriter, req *http.Request) {
	materialID, err := queryUint(req, "material_id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	active, err := queryBool(req, "active")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	out, err := r.svc.Batches.List(req.Context(), batch.ListFilter{
		MaterialID: materialID,
		QCStatus:   models.QCStatus(req.URL.Query().Get("qc_status")),
		Active:     active,
	})
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (r *Router) createBatch(w http.ResponseWriter, req *http.Request) {
	var in batch.CreateInput
	if err := decode(req, &in); err != nil {
		r.respondError(w, req, err)
		return
	}
	b, err := r.svc.Batches.Create(req.Context(), in)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, b)
}

func (r *Router) nextBatchCode(w http.ResponseWriter, req *http.Request) {
	code, err := r.svc.Batches.NextCode(req.Context())
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"internal_batch_code": code})
}

// batchLabels renders labels for ?ids=1,2,3 or a {"ids": [...]} body.
func (r *Router) batchLabels(w http.ResponseWriter, req *http.Request) {
	ids, err := queryUints(req, "ids")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	if req.Method == http.MethodPost && len(ids) == 0 {
		var body struct {
			IDs []uint `json:"ids"`
		}
		if err := decode(req, &body); err != nil {
			r.respondError(w, req, err)
			return
		}
		ids = append(ids, body.IDs...)
	}
	pdf, err := r.svc.Batches.Labels(req.Context(), ids)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondFile(w, "application/pdf", fmt.Sprintf("batch_labels_%d.pdf", len(ids)), pdf)
}

func (r *Router) getBatch(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	b, err := r.svc.Batches.Get(req.Context(), id)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (r *Router) updateBatch(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	var in batch.UpdateInput
	if err := decode(req, &in); err != nil {
		r.respondError(w, req, err)
		return
	}
	b, err := r.svc.Batches.Update(req.Context(), id, in)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (r *Router) deleteBatch(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	if err := r.svc.Batches.Delete(req.Context(), id); err != nil {
		r.respondError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) deactivateBatch(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	b, err := r.svc.Batches.Deactivate(req.Context(), id)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, b)
}

func (r *Router) traceBatch(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	t, err := r.svc.Batches.Trace(req.Context(), id)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}
