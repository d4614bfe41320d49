package timelapse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ramaguirre/sentinel-timelapse/catalog/entities"
	"github.com/ramaguirre/sentinel-timelapse/interface/catalog/stac"
	"github.com/ramaguirre/sentinel-timelapse/service/geometry"
	"github.com/ramaguirre/sentinel-timelapse/service/log"
)

// NewHandler exposes the pipeline over http
func (p *Pipeline) NewHandler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/catalog/items", p.ListItemsHandler).Methods("POST")
	r.HandleFunc("/catalog/download", p.DownloadHandler).Methods("POST")
	return r
}

// ListItemsHandler previews the items of a request without downloading anything
func (p *Pipeline) ListItemsHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	request, ok := decodeRequest(w, req)
	if !ok {
		return
	}

	items, err := p.Inventory.DoItemsInventory(ctx, request.AOI(), request.Span())
	if err != nil {
		log.Logger(ctx).Sugar().Warnf("items inventory: %v", err)
		w.WriteHeader(statusOf(err))
		fmt.Fprintf(w, "%v", err)
		return
	}
	kept, _ := entities.FilterClouds(items, request.MaxCloudPct)
	writeJSON(w, kept)
}

// DownloadHandler runs a download and returns its statistics
func (p *Pipeline) DownloadHandler(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	request, ok := decodeRequest(w, req)
	if !ok {
		return
	}

	stats, err := p.DownloadImages(ctx, request)
	if err != nil {
		log.Logger(ctx).Sugar().Warnf("download: %v", err)
		w.WriteHeader(statusOf(err))
		fmt.Fprintf(w, "%v", err)
		return
	}
	writeJSON(w, stats)
}

func decodeRequest(w http.ResponseWriter, req *http.Request) (Request, bool) {
	request := Request{}
	if err := json.NewDecoder(req.Body).Decode(&request); err != nil {
		w.WriteHeader(400)
		fmt.Fprintf(w, "decode request: %v", err)
		return request, false
	}
	if err := request.Validate(); err != nil {
		w.WriteHeader(400)
		fmt.Fprintf(w, "%v", err)
		return request, false
	}
	return request, true
}

// statusOf maps an error onto an http status
func statusOf(err error) int {
	var errCRS geometry.ErrInvalidCRS
	var errBounds geometry.ErrInvalidBounds
	var errThreshold entities.ErrInvalidCloudThreshold
	if errors.As(err, &errCRS) || errors.As(err, &errBounds) || errors.As(err, &errThreshold) {
		return 400
	}
	var errCatalog stac.ErrCatalogUnavailable
	if errors.As(err, &errCatalog) {
		return 502
	}
	return 500
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		w.WriteHeader(500)
	}
}
