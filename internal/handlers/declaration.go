package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/xelth-com/loomtrace/internal/services/declaration"
)

func (r *Router) declarationRoutes(sub *mux.Router) {
	sub.HandleFunc("", r.listDeclarations).Methods("GET")
	sub.HandleFunc("", r.createDeclaration).Methods("POST")
	sub.HandleFunc("/{id:[0-9]+}", r.getDeclaration).Methods("GET")
	sub.HandleFunc("/{id:[0-9]+}", r.updateDeclaration).Methods("PUT")
	sub.HandleFunc("/{id:[0-9]+}", r.deleteDeclaration).Methods("DELETE")
}

func (r *Router) listDeclarations(w http.ResponseWriter, req *http.Request) {
	supplierID, err := queryUint(req, "supplier_id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	out, err := r.svc.Declarations.List(req.Context(), supplierID)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (r *Router) createDeclaration(w http.ResponseWriter, req *http.Request) {
	var in declaration.Input
	if err := decode(req, &in); err != nil {
		r.respondError(w, req, err)
		return
	}
	d, err := r.svc.Declarations.Create(req.Context(), in)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

func (r *Router) getDeclaration(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	d, err := r.svc.Declarations.Get(req.Context(), id)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (r *Router) updateDeclaration(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	var in declaration.Input
	if err := decode(req, &in); err != nil {
		r.respondError(w, req, err)
		return
	}
	d, err := r.svc.Declarations.Update(req.Context(), id, in)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (r *Router) deleteDeclaration(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	if err := r.svc.Declarations.Delete(req.Context(), id); err != nil {
		r.respondError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
