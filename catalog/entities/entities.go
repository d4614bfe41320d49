package entities

import (
	"fmt"
	"time"

	"github.com/ramaguirre/sentinel-timelapse/service/geometry"
)

// AreaOfInterest is a rectangle in a given CRS
type AreaOfInterest struct {
	MinX float64 `json:"minx"`
	MinY float64 `json:"miny"`
	MaxX float64 `json:"maxx"`
	MaxY float64 `json:"maxy"`
	EPSG int     `json:"epsg"`
}

// NewAreaOfInterest creates an AreaOfInterest from (minx, miny, maxx, maxy) bounds
func NewAreaOfInterest(bounds [4]float64, epsg int) AreaOfInterest {
	return AreaOfInterest{MinX: bounds[0], MinY: bounds[1], MaxX: bounds[2], MaxY: bounds[3], EPSG: epsg}
}

// Bounds returns (minx, miny, maxx, maxy)
func (a AreaOfInterest) Bounds() [4]float64 {
	return [4]float64{a.MinX, a.MinY, a.MaxX, a.MaxY}
}

// Validate checks the bounds and the CRS code.
// The CRS is fully resolved at reprojection time.
func (a AreaOfInterest) Validate() error {
	if a.EPSG <= 0 {
		return geometry.ErrInvalidCRS{Code: a.EPSG, Err: fmt.Errorf("not a positive EPSG code")}
	}
	return geometry.ValidateBounds(a.Bounds())
}

// TimeSpan is an inclusive [Start, End] interval
type TimeSpan struct {
	Start time.Time `json:"start_time"`
	End   time.Time `json:"end_time"`
}

// Datetime formats the timespan as a catalog datetime interval
func (ts TimeSpan) Datetime() string {
	return ts.Start.UTC().Format(time.RFC3339) + "/" + ts.End.UTC().Format(time.RFC3339)
}

// Asset is a named band or composite product attached to an Item
type Asset struct {
	Href  string `json:"href"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// Item is an entry of the imagery catalog
type Item struct {
	SourceID    string           `json:"id"`
	Date        time.Time        `json:"date"`
	CloudCover  float64          `json:"cloud_cover"`
	GeometryWKT string           `json:"geometry_wkt,omitempty"`
	Assets      map[string]Asset `json:"assets"`
}

// Asset returns the named asset of the item
func (i *Item) Asset(name string) (Asset, bool) {
	a, ok := i.Assets[name]
	return a, ok
}

// ErrInvalidCloudThreshold is returned when the cloud-cover threshold is outside [0, 100]
type ErrInvalidCloudThreshold struct {
	Value float64
}

func (e ErrInvalidCloudThreshold) Error() string {
	return fmt.Sprintf("invalid cloud-cover threshold %g: must be within [0, 100]", e.Value)
}

// ValidateCloudThreshold checks that the threshold is a percentage
func ValidateCloudThreshold(maxCloudPct float64) error {
	if maxCloudPct < 0 || maxCloudPct > 100 {
		return ErrInvalidCloudThreshold{maxCloudPct}
	}
	return nil
}

// FilterClouds partitions items into those within the cloud-cover threshold and those above it
func FilterClouds(items []*Item, maxCloudPct float64) (kept, filtered []*Item) {
	for _, item := range items {
		if item.CloudCover > maxCloudPct {
			filtered = append(filtered, item)
		} else {
			kept = append(kept, item)
		}
	}
	return kept, filtered
}
