package catalog

import (
	"context"

	"github.com/ramaguirre/sentinel-timelapse/catalog/entities"
)

// ItemsProvider searches a remote catalog for the items intersecting a
// geographic-CRS geometry within an inclusive timespan
type ItemsProvider interface {
	SearchItems(ctx context.Context, aoiGeoJSON []byte, span entities.TimeSpan) ([]*entities.Item, error)
}
