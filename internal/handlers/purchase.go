package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/xelth-com/loomtrace/internal/models"
	"github.com/xelth-com/loomtrace/internal/services/purchase"
)

func (r *Router) purchaseRoutes(sub *mux.Router) {
	sub.HandleFunc("", r.listPurchaseOrders).Methods("GET")
	sub.HandleFunc("", r.createPurchaseOrder).Methods("POST")
	sub.HandleFunc("/next-number", r.nextPONumber).Methods("GET")
	sub.HandleFunc("/{id:[0-9]+}", r.getPurchaseOrder).Methods("GET")
	sub.HandleFunc("/{id:[0-9]+}", r.updatePurchaseOrder).Methods("PUT")
	sub.HandleFunc("/{id:[0-9]+}", r.deletePurchaseOrder).Methods("DELETE")
	sub.HandleFunc("/{id:[0-9]+}/status", r.transitionPurchaseOrder).Methods("POST")
	sub.HandleFunc("/{id:[0-9]+}/details", r.replacePODetails).Methods("PUT")
}

func (r *Router) listPurchaseOrders(w http.ResponseWriter, req *http.Request) {
	supplierID, err := queryUint(req, "supplier_id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	orders, err := r.svc.Purchase.List(req.Context(), purchase.ListFilter{
		Status:     models.POStatus(req.URL.Query().Get("status")),
		SupplierID: supplierID,
	})
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (r *Router) createPurchaseOrder(w http.ResponseWriter, req *http.Request) {
	var in purchase.CreateInput
	if err := decode(req, &in); err != nil {
		r.respondError(w, req, err)
		return
	}
	po, err := r.svc.Purchase.Create(req.Context(), in)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, po)
}

func (r *Router) nextPONumber(w http.ResponseWriter, req *http.Request) {
	n, err := r.svc.Purchase.NextNumber(req.Context())
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"po_number": n})
}

func (r *Router) getPurchaseOrder(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	po, err := r.svc.Purchase.Get(req.Context(), id)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, po)
}

func (r *Router) updatePurchaseOrder(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	var in purchase.UpdateInput
	if err := decode(req, &in); err != nil {
		r.respondError(w, req, err)
		return
	}
	po, err := r.svc.Purchase.Update(req.Context(), id, in)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, po)
}

func (r *Router) deletePurchaseOrder(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	if err := r.svc.Purchase.Delete(req.Context(), id); err != nil {
		r.respondError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) transitionPurchaseOrder(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	var body struct {
		Status models.POStatus `json:"status"`
	}
	if err := decode(req, &body); err != nil {
		r.respondError(w, req, err)
		return
	}
	po, err := r.svc.Purchase.Transition(req.Context(), id, body.Status)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, po)
}

func (r *Router) replacePODetails(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	var details []purchase.DetailInput
	if err := decode(req, &details); err != nil {
		r.respondError(w, req, err)
		return
	}
	po, err := r.svc.Purchase.ReplaceDetails(req.Context(), id, details)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, po)
}
