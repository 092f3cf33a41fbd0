package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/xelth-com/loomtrace/internal/services/registry"
)

// mountStore wires list/create/get/update/delete of one reference table onto sub.
func mountStore[T any, PT registry.Record[T]](r *Router, sub *mux.Router, s *registry.Store[T, PT]) {
	sub.HandleFunc("", func(w http.ResponseWriter, req *http.Request) {
		rows, err := s.List(req.Context())
		if err != nil {
			r.respondError(w, req, err)
			return
		}
		respondJSON(w, http.StatusOK, rows)
	}).Methods("GET")

	sub.HandleFunc("", func(w http.ResponseWriter, req *http.Request) {
		row := PT(new(T))
		if err := decode(req, row); err != nil {
			r.respondError(w, req, err)
			return
		}
		if err := s.Create(req.Context(), row); err != nil {
			r.respondError(w, req, err)
			return
		}
		respondJSON(w, http.StatusCreated, row)
	}).Methods("POST")

	sub.HandleFunc("/{id:[0-9]+}", func(w http.ResponseWriter, req *http.Request) {
		id, err := pathID(req, "id")
		if err != nil {
			r.respondError(w, req, err)
			return
		}
		row, err := s.Get(req.Context(), id)
		if err != nil {
			r.respondError(w, req, err)
			return
		}
		respondJSON(w, http.StatusOK, row)
	}).Methods("GET")

	sub.HandleFunc("/{id:[0-9]+}", func(w http.ResponseWriter, req *http.Request) {
		id, err := pathID(req, "id")
		if err != nil {
			r.respondError(w, req, err)
			return
		}
		row := PT(new(T))
		if err := decode(req, row); err != nil {
			r.respondError(w, req, err)
			return
		}
		out, err := s.Update(req.Context(), id, row)
		if err != nil {
			r.respondError(w, req, err)
			return
		}
		respondJSON(w, http.StatusOK, out)
	}).Methods("PUT")

	sub.HandleFunc("/{id:[0-9]+}", func(w http.ResponseWriter, req *http.Request) {
		id, err := pathID(req, "id")
		if err != nil {
			r.respondError(w, req, err)
			return
		}
		if err := s.Delete(req.Context(), id); err != nil {
			r.respondError(w, req, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}).Methods("DELETE")
}
