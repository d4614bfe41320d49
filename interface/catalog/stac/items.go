package stac

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-spatial/geom/encoding/geojson"
	"github.com/go-spatial/geom/encoding/wkt"

	"github.com/ramaguirre/sentinel-timelapse/catalog/entities"
	"github.com/ramaguirre/sentinel-timelapse/service"
	"github.com/ramaguirre/sentinel-timelapse/service/log"
)

const (
	PlanetaryComputerEndpoint = "https://planetarycomputer.microsoft.com/api/stac/v1"
	DefaultCollection         = "sentinel-2-l2a"
	defaultPageLimit          = 250
)

// ErrCatalogUnavailable is returned when the remote catalog cannot be reached or fails
type ErrCatalogUnavailable struct {
	URL string
	Err error
}

func (e ErrCatalogUnavailable) Error() string {
	return fmt.Sprintf("catalog unavailable [%s]: %v", e.URL, e.Err)
}

func (e ErrCatalogUnavailable) Unwrap() error { return e.Err }

// Provider implements catalog.ItemsProvider against a STAC API
type Provider struct {
	Endpoint   string
	Collection string
	Limit      int // page size, defaults to defaultPageLimit
}

type feature struct {
	ID         string           `json:"id"`
	Geometry   geojson.Geometry `json:"geometry"`
	Properties struct {
		Datetime   string  `json:"datetime"`
		CloudCover float64 `json:"eo:cloud_cover"`
	} `json:"properties"`
	Assets map[string]entities.Asset `json:"assets"`
}

type searchRequest struct {
	Collections []string        `json:"collections"`
	Intersects  json.RawMessage `json:"intersects"`
	Datetime    string          `json:"datetime"`
	Limit       int             `json:"limit"`
	Token       string          `json:"token,omitempty"`
}

type searchResponse struct {
	Features []feature `json:"features"`
	Links    []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
		Body struct {
			Token string `json:"token"`
		} `json:"body"`
	} `json:"links"`
}

// SearchItems implements catalog.ItemsProvider.
// The query is a single search (paged with the catalog's next tokens, no retries);
// items are returned in the order the service provides.
func (p *Provider) SearchItems(ctx context.Context, aoiGeoJSON []byte, span entities.TimeSpan) ([]*entities.Item, error) {
	endpoint := p.Endpoint
	if endpoint == "" {
		endpoint = PlanetaryComputerEndpoint
	}
	collection := p.Collection
	if collection == "" {
		collection = DefaultCollection
	}
	limit := p.Limit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	url := strings.TrimSuffix(endpoint, "/") + "/search"

	var items []*entities.Item
	search := searchRequest{
		Collections: []string{collection},
		Intersects:  aoiGeoJSON,
		Datetime:    span.Datetime(),
		Limit:       limit,
	}
	for page := 1; ; page++ {
		log.Logger(ctx).Sugar().Debugf("[%s] search page %d", collection, page)

		body, err := json.Marshal(search)
		if err != nil {
			return nil, fmt.Errorf("SearchItems.Marshal: %w", err)
		}
		jsonResults, err := service.PostBody(ctx, url, bytes.NewReader(body))
		if err != nil {
			return nil, ErrCatalogUnavailable{URL: url, Err: err}
		}

		results := searchResponse{}
		if err := json.Unmarshal(jsonResults, &results); err != nil {
			return nil, ErrCatalogUnavailable{URL: url, Err: fmt.Errorf("unmarshal: %w (response: %s)", err, jsonResults)}
		}

		pageItems, err := parse(results.Features)
		if err != nil {
			return nil, fmt.Errorf("SearchItems.%w", err)
		}
		items = append(items, pageItems...)

		// Is there a next page ?
		token := ""
		for _, link := range results.Links {
			if strings.ToLower(link.Rel) == "next" && link.Body.Token != "" {
				token = link.Body.Token
			}
		}
		if token == "" || len(results.Features) == 0 {
			break
		}
		search.Token = token
	}

	return items, nil
}

// parse converts raw features into catalog items
func parse(features []feature) ([]*entities.Item, error) {
	items := make([]*entities.Item, len(features))
	for i, f := range features {
		date, err := time.Parse(time.RFC3339Nano, f.Properties.Datetime)
		if err != nil {
			return nil, fmt.Errorf("parse[%s].TimeParse: %w", f.ID, err)
		}
		items[i] = &entities.Item{
			SourceID:   f.ID,
			Date:       date,
			CloudCover: f.Properties.CloudCover,
			Assets:     f.Assets,
		}
		if f.Geometry.Geometry != nil {
			items[i].GeometryWKT = wkt.MustEncode(f.Geometry.Geometry)
		}
	}
	return items, nil
}
