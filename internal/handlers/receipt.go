package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/xelth-com/loomtrace/internal/services/receipt"
)

func (r *Router) receiptRoutes(sub *mux.Router) {
	sub.HandleFunc("", r.listReceipts).Methods("GET")
	sub.HandleFunc("", r.createReceipt).Methods("POST")
	sub.HandleFunc("/next-number", r.nextReceiptNumber).Methods("GET")
	sub.HandleFunc("/{id:[0-9]+}", r.getReceipt).Methods("GET")
	sub.HandleFunc("/{id:[0-9]+}", r.updateReceipt).Methods("PUT")
	sub.HandleFunc("/{id:[0-9]+}", r.deleteReceipt).Methods("DELETE")
	sub.HandleFunc("/{id:[0-9]+}/details", r.addReceiptDetail).Methods("POST")
	sub.HandleFunc("/{id:[0-9]+}/details/{detailId:[0-9]+}", r.updateReceiptDetail).Methods("PUT")
	sub.HandleFunc("/{id:[0-9]+}/details/{detailId:[0-9]+}", r.deleteReceiptDetail).Methods("DELETE")
}

// listReceipts filters by warehouse_id, po_id and a [from, to) receipt date window.
func (r *Router) listReceipts(w http.ResponseWriter, req *http.Request) {
	var f receipt.ListFilter
	var err error
	if f.WarehouseID, err = queryUint(req, "warehouse_id"); err != nil {
		r.respondError(w, req, err)
		return
	}
	if f.POID, err = queryUint(req, "po_id"); err != nil {
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
	out, err := r.svc.Receipts.List(req.Context(), f)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (r *Router) createReceipt(w http.ResponseWriter, req *http.Request) {
	var in receipt.CreateInput
	if err := decode(req, &in); err != nil {
		r.respondError(w, req, err)
		return
	}
	rc, err := r.svc.Receipts.Create(req.Context(), in)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, rc)
}

func (r *Router) nextReceiptNumber(w http.ResponseWriter, req *http.Request) {
	n, err := r.svc.Receipts.NextNumber(req.Context())
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"receipt_number": n})
}

func (r *Router) getReceipt(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	rc, err := r.svc.Receipts.Get(req.Context(), id)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, rc)
}

func (r *Router) updateReceipt(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	var in receipt.HeaderUpdate
	if err := decode(req, &in); err != nil {
		r.respondError(w, req, err)
		return
	}
	rc, err := r.svc.Receipts.UpdateHeader(req.Context(), id, in)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, rc)
}

func (r *Router) deleteReceipt(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	if err := r.svc.Receipts.Delete(req.Context(), id); err != nil {
		r.respondError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) addReceiptDetail(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	var in receipt.DetailInput
	if err := decode(req, &in); err != nil {
		r.respondError(w, req, err)
		return
	}
	d, err := r.svc.Receipts.AddDetail(req.Context(), id, in)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

func (r *Router) updateReceiptDetail(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	detailID, err := pathID(req, "detailId")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	var in receipt.DetailUpdate
	if err := decode(req, &in); err != nil {
		r.respondError(w, req, err)
		return
	}
	d, err := r.svc.Receipts.UpdateDetail(req.Context(), id, detailID, in)
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (r *Router) deleteReceiptDetail(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req, "id")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	detailID, err := pathID(req, "detailId")
	if err != nil {
		r.respondError(w, req, err)
		return
	}
	if err := r.svc.Receipts.DeleteDetail(req.Context(), id, detailID); err != nil {
		r.respondError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
