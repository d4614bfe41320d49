package stac

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ramaguirre/sentinel-timelapse/catalog/entities"
)

const aoiGeoJSON = `{"type":"Polygon","coordinates":[[[-70.6,-22.7],[-70.5,-22.7],[-70.5,-22.6],[-70.6,-22.6],[-70.6,-22.7]]]}`

var span = entities.TimeSpan{
	Start: time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
}

func page(ids []string, token string) string {
	features := make([]string, len(ids))
	for i, id := range ids {
		features[i] = `{
			"id": "` + id + `",
			"geometry": {"type":"Polygon","coordinates":[[[-71,-23],[-70,-23],[-70,-22],[-71,-22],[-71,-23]]]},
			"properties": {"datetime": "2023-12-01T14:37:21.024000Z", "eo:cloud_cover": 2.5},
			"assets": {"visual": {"href": "https://example.com/visual.tif", "type": "image/tiff"}}
		}`
	}
	links := ""
	if token != "" {
		links = `{"rel": "next", "href": "search", "body": {"token": "` + token + `"}}`
	}
	return `{"features": [` + strings.Join(features, ",") + `], "links": [` + links + `]}`
}

func TestSearchItems(t *testing.T) {
	var requests []searchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/search" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		search := searchRequest{}
		if err := json.NewDecoder(r.Body).Decode(&search); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		requests = append(requests, search)
		switch search.Token {
		case "":
			w.Write([]byte(page([]string{"S2A_MSIL2A_20231201T143721_R096_T19KCP_20231201T191357"}, "next:page2")))
		case "next:page2":
			w.Write([]byte(page([]string{"S2B_MSIL2A_20231206T143719_R096_T19KCP_20231206T175237"}, "")))
		default:
			t.Errorf("unexpected token: %s", search.Token)
		}
	}))
	defer server.Close()

	p := Provider{Endpoint: server.URL, Limit: 1}
	items, err := p.SearchItems(context.Background(), []byte(aoiGeoJSON), span)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if len(requests) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(requests))
	}

	item := items[0]
	if item.SourceID != "S2A_MSIL2A_20231201T143721_R096_T19KCP_20231201T191357" {
		t.Errorf("unexpected id: %s", item.SourceID)
	}
	if item.CloudCover != 2.5 {
		t.Errorf("unexpected cloud cover: %g", item.CloudCover)
	}
	if item.Date.UTC() != time.Date(2023, 12, 1, 14, 37, 21, 24000000, time.UTC) {
		t.Errorf("unexpected date: %v", item.Date)
	}
	if _, ok := item.Asset("visual"); !ok {
		t.Error("expected visual asset")
	}
	if !strings.HasPrefix(item.GeometryWKT, "POLYGON") {
		t.Errorf("unexpected footprint: %s", item.GeometryWKT)
	}

	// query parameters
	if len(requests[0].Collections) != 1 || requests[0].Collections[0] != DefaultCollection {
		t.Errorf("unexpected collections: %v", requests[0].Collections)
	}
	if requests[0].Datetime != "2023-12-01T00:00:00Z/2023-12-31T00:00:00Z" {
		t.Errorf("unexpected datetime: %s", requests[0].Datetime)
	}
	if requests[1].Token != "next:page2" {
		t.Errorf("expected next token forwarded, got %q", requests[1].Token)
	}
}

func TestSearchItemsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"features": [], "links": []}`))
	}))
	defer server.Close()

	p := Provider{Endpoint: server.URL}
	items, err := p.SearchItems(context.Background(), []byte(aoiGeoJSON), span)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no item, got %d", len(items))
	}
}

func TestSearchItemsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	server.Close()

	p := Provider{Endpoint: server.URL}
	_, err := p.SearchItems(context.Background(), []byte(aoiGeoJSON), span)
	var errCatalog ErrCatalogUnavailable
	if !errors.As(err, &errCatalog) {
		t.Fatalf("expected ErrCatalogUnavailable, got %v", err)
	}
}

func TestSearchItemsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := Provider{Endpoint: server.URL}
	_, err := p.SearchItems(context.Background(), []byte(aoiGeoJSON), span)
	var errCatalog ErrCatalogUnavailable
	if !errors.As(err, &errCatalog) {
		t.Fatalf("expected ErrCatalogUnavailable, got %v", err)
	}
}
