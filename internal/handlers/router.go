package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/xelth-com/loomtrace/internal/apperr"
	"github.com/xelth-com/loomtrace/internal/audit"
	"github.com/xelth-com/loomtrace/internal/buildinfo"
	"github.com/xelth-com/loomtrace/internal/database"
	"github.com/xelth-com/loomtrace/internal/middleware"
	"github.com/xelth-com/loomtrace/internal/services/batch"
	"github.com/xelth-com/loomtrace/internal/services/bom"
	"github.com/xelth-com/loomtrace/internal/services/declaration"
	"github.com/xelth-com/loomtrace/internal/services/export"
	"github.com/xelth-com/loomtrace/internal/services/inventory"
	"github.com/xelth-com/loomtrace/internal/services/iqc"
	"github.com/xelth-com/loomtrace/internal/services/purchase"
	"github.com/xelth-com/loomtrace/internal/services/receipt"
	"github.com/xelth-com/loomtrace/internal/services/registry"
	"github.com/xelth-com/loomtrace/internal/services/weaving"
	"github.com/xelth-com/loomtrace/internal/websocket"
)

// Services bundles everything the HTTP layer calls into.
type Services struct {
	Registry     *registry.Registry
	Purchase     *purchase.Service
	Declarations *declaration.Service
	Receipts     *receipt.Service
	Batches      *batch.Service
	IQC          *iqc.Service
	Inventory    *inventory.Service
	Exports      *export.Service
	Weaving      *weaving.Service
	BOM          *bom.Service
}

// Router wraps the mux router and the services behind it
type Router struct {
	*mux.Router
	db  *database.DB
	svc Services
	hub *websocket.Hub
	log logrus.FieldLogger
}

// NewRouter creates a new HTTP router with all routes.
// An empty jwtSecret leaves the API unauthenticated.
func NewRouter(db *database.DB, svc Services, hub *websocket.Hub, jwtSecret string, log logrus.FieldLogger) *Router {
	r := &Router{
		Router: mux.NewRouter(),
		db:     db,
		svc:    svc,
		hub:    hub,
		log:    log.WithField("module", "http"),
	}
	r.Use(middleware.RequestLogger(r.log))

	r.HandleFunc("/health", r.healthCheck).Methods("GET")
	if hub != nil {
		r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
			websocket.ServeWs(hub, w, req)
		})
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Auth(jwtSecret))
	api.HandleFunc("/status", r.getStatus).Methods("GET")

	reg := svc.Registry
	mountStore(r, api.PathPrefix("/units").Subrouter(), reg.Units)
	mountStore(r, api.PathPrefix("/materials").Subrouter(), reg.Materials)
	mountStore(r, api.PathPrefix("/suppliers").Subrouter(), reg.Suppliers)
	mountStore(r, api.PathPrefix("/warehouses").Subrouter(), reg.Warehouses)
	mountStore(r, api.PathPrefix("/machines").Subrouter(), reg.Machines)
	mountStore(r, api.PathPrefix("/products").Subrouter(), reg.Products)
	mountStore(r, api.PathPrefix("/baskets").Subrouter(), reg.Baskets)

	r.purchaseRoutes(api.PathPrefix("/purchase-orders").Subrouter())
	r.declarationRoutes(api.PathPrefix("/import-declarations").Subrouter())
	r.receiptRoutes(api.PathPrefix("/receipts").Subrouter())
	r.batchRoutes(api.PathPrefix("/batches").Subrouter())
	r.iqcRoutes(api.PathPrefix("/iqc").Subrouter())
	r.inventoryRoutes(api.PathPrefix("/inventory").Subrouter())
	r.exportRoutes(api.PathPrefix("/exports").Subrouter())
	r.weavingRoutes(api.PathPrefix("/weaving/tickets").Subrouter())
	r.bomRoutes(api.PathPrefix("/boms").Subrouter())

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	status := "ok"
	code := http.StatusOK
	if sqlDB, err := r.db.DB.DB(); err != nil || sqlDB.PingContext(req.Context()) != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]string{"status": status})
}

// getStatus returns build and runtime information
func (r *Router) getStatus(w http.ResponseWriter, req *http.Request) {
	clients := 0
	if r.hub != nil {
		clients = r.hub.ClientCount()
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "running",
		"version":    buildinfo.Version(),
		"started_at": buildinfo.StartTime,
		"ws_clients": clients,
		"actor":      audit.ActorFrom(req.Context()),
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondFile sends a generated document as an attachment
func respondFile(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindNotFound:          http.StatusNotFound,
	apperr.KindConflict:          http.StatusConflict,
	apperr.KindInsufficientStock: http.StatusConflict,
	apperr.KindValidation:        http.StatusBadRequest,
}

// respondError maps domain errors to their status; anything else is a logged 500.
func (r *Router) respondError(w http.ResponseWriter, req *http.Request, err error) {
	var e *apperr.Error
	if errors.As(err, &e) {
		body := map[string]any{"error": e.Message, "kind": e.Kind}
		if len(e.Fields) > 0 {
			body["fields"] = e.Fields
		}
		respondJSON(w, statusByKind[e.Kind], body)
		return
	}
	r.log.WithFields(logrus.Fields{
		"request_id": audit.RequestIDFrom(req.Context()),
		"path":       req.URL.Path,
	}).Error(err.Error())
	respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

// decode reads a JSON body into v. Unknown fields are rejected.
func decode(req *http.Request, v any) error {
	dec := json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is empty")
		}
		return apperr.Validation("invalid payload: %v", err)
	}
	return nil
}

func pathID(req *http.Request, name string) (uint, error) {
	n, err := strconv.ParseUint(mux.Vars(req)[name], 10, 64)
	if err != nil || n == 0 {
		return 0, apperr.Validation("invalid %s", name)
	}
	return uint(n), nil
}

func queryUint(req *http.Request, name string) (uint, error) {
	v := req.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, apperr.Validation("invalid %s %q", name, v)
	}
	return uint(n), nil
}

func queryUints(req *http.Request, name string) ([]uint, error) {
	var out []uint
	for _, part := range strings.Split(req.URL.Query().Get(name), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, apperr.Validation("invalid %s %q", name, part)
		}
		out = append(out, uint(n))
	}
	return out, nil
}

// queryDate accepts YYYY-MM-DD or RFC 3339.
func queryDate(req *http.Request, name string) (*time.Time, error) {
	v := req.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, apperr.Validation("invalid %s %q", name, v)
}

func queryBool(req *http.Request, name string) (*bool, error) {
	v := req.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, apperr.Validation("invalid %s %q", name, v)
	}
	return &b, nil
}
