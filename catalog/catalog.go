package catalog

import (
	"context"
	"fmt"

	"github.com/paulsmith/gogeos/geos"
	"go.uber.org/zap"

	"github.com/ramaguirre/sentinel-timelapse/catalog/entities"
	"github.com/ramaguirre/sentinel-timelapse/interface/catalog"
	"github.com/ramaguirre/sentinel-timelapse/service/geometry"
	"github.com/ramaguirre/sentinel-timelapse/service/log"
)

// Catalog lists the imagery items available over an area of interest
type Catalog struct {
	Provider catalog.ItemsProvider
}

// DoItemsInventory searches the catalog for the items fully covering the area
// of interest within the timespan. The AOI is reprojected to geographic
// coordinates for the search; items whose footprint does not contain the whole
// AOI are discarded.
func (c *Catalog) DoItemsInventory(ctx context.Context, aoi entities.AreaOfInterest, span entities.TimeSpan) ([]*entities.Item, error) {
	if err := aoi.Validate(); err != nil {
		return nil, fmt.Errorf("DoItemsInventory.%w", err)
	}

	wgs84Bounds, err := geometry.ToWGS84(aoi.Bounds(), aoi.EPSG)
	if err != nil {
		return nil, fmt.Errorf("DoItemsInventory.%w", err)
	}
	aoiGeoJSON, err := geometry.BoundsGeoJSON(wgs84Bounds)
	if err != nil {
		return nil, fmt.Errorf("DoItemsInventory.%w", err)
	}

	items, err := c.Provider.SearchItems(ctx, aoiGeoJSON, span)
	if err != nil {
		return nil, fmt.Errorf("DoItemsInventory.%w", err)
	}

	covering, err := FilterCoverage(ctx, items, wgs84Bounds)
	if err != nil {
		return nil, fmt.Errorf("DoItemsInventory.%w", err)
	}
	log.Logger(ctx).Sugar().Debugf("inventory: %d items, %d covering the whole AOI", len(items), len(covering))
	return covering, nil
}

// FilterCoverage keeps the items whose footprint contains the whole rectangle.
// Items without a footprint are kept.
func FilterCoverage(ctx context.Context, items []*entities.Item, wgs84Bounds [4]float64) ([]*entities.Item, error) {
	aoi, err := geos.FromWKT(geometry.BoundsWKT(wgs84Bounds))
	if err != nil {
		return nil, fmt.Errorf("FilterCoverage.FromWKT: %w", err)
	}

	covering := make([]*entities.Item, 0, len(items))
	for _, item := range items {
		if item.GeometryWKT == "" {
			covering = append(covering, item)
			continue
		}
		footprint, err := geos.FromWKT(item.GeometryWKT)
		if err != nil {
			return nil, fmt.Errorf("FilterCoverage.FromWKT[%s]: %w", item.SourceID, err)
		}
		contains, err := footprint.Contains(aoi)
		if err != nil {
			return nil, fmt.Errorf("FilterCoverage.Contains[%s]: %w", item.SourceID, err)
		}
		if contains {
			covering = append(covering, item)
		} else {
			log.Logger(ctx).Debug("partial coverage, item discarded", zap.String("item", item.SourceID))
		}
	}
	return covering, nil
}
