package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/xelth-com/loomtrace/internal/services/weaving"
)

func (r *Router) weavingRoutes(sub *mux.Router) {
	sub.HandleFunc("", r.listTickets).Methods("GET")
	sub.HandleFunc("/{id:[0-9]+}", r.getTicket).Methods("GET")
	sub.HandleFunc("/{id:[0-9]+}/output", r.recordTicketOutput).Methods("POST")
}

func (r *Router) listTickets(w http.ResponseWriter, req *http.Request) {
	machineID, err := queryUint(req, "machine_id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	open, err := queryBool(req, "open")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	out, err := r.svc.Weaving.List(req.Context(), weaving.ListFilter{MachineID: machineID, OpenOnly: open != nil && *open})
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (r *Router) getTicket(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	t, err := r.svc.Weaving.Get(req.Context(), id)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (r *Router) recordTicketOutput(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	var in weaving.OutputInput
	if err := decode(req, &in); err != nil {
		r.respondError(w, req, err)
		return
	}
	t, err := r.svc.Weaving.RecordOutput(req.Context(), id, in)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}
