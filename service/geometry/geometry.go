package geometry

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/airbusgeo/godal"
	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/geojson"
	geomwkt "github.com/go-spatial/geom/encoding/wkt"
)

// WGS84 is the geographic CRS expected by the imagery catalogs
const WGS84 = 4326

// densifyPts is the number of points sampled along each edge of a rectangle
// before reprojection, so that the envelope follows the curved edges
const densifyPts = 21

// ErrInvalidCRS is returned when an EPSG code cannot be resolved
type ErrInvalidCRS struct {
	Code int
	Err  error
}

func (e ErrInvalidCRS) Error() string {
	return fmt.Sprintf("invalid CRS EPSG:%d: %v", e.Code, e.Err)
}

func (e ErrInvalidCRS) Unwrap() error { return e.Err }

// ErrInvalidBounds is returned when minx>=maxx or miny>=maxy
type ErrInvalidBounds struct {
	Bounds [4]float64
}

func (e ErrInvalidBounds) Error() string {
	return fmt.Sprintf("invalid bounds (minx, miny, maxx, maxy): %v", e.Bounds)
}

// ValidateBounds checks that the rectangle (minx, miny, maxx, maxy) is not degenerated
func ValidateBounds(b [4]float64) error {
	if b[0] >= b[2] || b[1] >= b[3] {
		return ErrInvalidBounds{b}
	}
	for _, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidBounds{b}
		}
	}
	return nil
}

// EPSGRef resolves an EPSG code into a SpatialRef (to be Closed by the caller)
func EPSGRef(code int) (*godal.SpatialRef, error) {
	if code <= 0 {
		return nil, ErrInvalidCRS{Code: code, Err: fmt.Errorf("not a positive EPSG code")}
	}
	sr, err := godal.NewSpatialRefFromEPSG(code)
	if err != nil {
		return nil, ErrInvalidCRS{Code: code, Err: err}
	}
	return sr, nil
}

// TransformBounds reprojects the rectangle from srcEPSG to dstEPSG.
// Each edge is densified so that the returned envelope contains the
// reprojected rectangle even when edges curve in the target CRS.
func TransformBounds(b [4]float64, srcEPSG, dstEPSG int) ([4]float64, error) {
	if err := ValidateBounds(b); err != nil {
		return b, err
	}
	if srcEPSG == dstEPSG {
		return b, nil
	}

	src, err := EPSGRef(srcEPSG)
	if err != nil {
		return b, fmt.Errorf("TransformBounds.%w", err)
	}
	defer src.Close()
	dst, err := EPSGRef(dstEPSG)
	if err != nil {
		return b, fmt.Errorf("TransformBounds.%w", err)
	}
	defer dst.Close()

	out, err := TransformBoundsRef(b, src, dst)
	if err != nil {
		return b, fmt.Errorf("TransformBounds.%w", err)
	}
	return out, nil
}

// TransformBoundsRef reprojects the rectangle between two resolved SpatialRefs
// (see TransformBounds)
func TransformBoundsRef(b [4]float64, src, dst *godal.SpatialRef) ([4]float64, error) {
	trn, err := godal.NewTransform(src, dst)
	if err != nil {
		return b, fmt.Errorf("TransformBoundsRef.NewTransform: %w", err)
	}
	defer trn.Close()

	xs, ys := densifyEdges(b)
	if err := trn.TransformEx(xs, ys, nil, nil); err != nil {
		return b, fmt.Errorf("TransformBoundsRef.TransformEx: %w", err)
	}

	out := [4]float64{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	for i := range xs {
		if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) || math.IsInf(xs[i], 0) || math.IsInf(ys[i], 0) {
			continue
		}
		out[0] = math.Min(out[0], xs[i])
		out[1] = math.Min(out[1], ys[i])
		out[2] = math.Max(out[2], xs[i])
		out[3] = math.Max(out[3], ys[i])
	}
	if math.IsInf(out[0], 0) {
		return b, fmt.Errorf("TransformBoundsRef: no point of %v could be reprojected", b)
	}
	return out, nil
}

// ToWGS84 reprojects the rectangle into geographic coordinates
func ToWGS84(b [4]float64, srcEPSG int) ([4]float64, error) {
	return TransformBounds(b, srcEPSG, WGS84)
}

// densifyEdges samples densifyPts points along each edge of the rectangle
func densifyEdges(b [4]float64) ([]float64, []float64) {
	xs := make([]float64, 0, 4*densifyPts)
	ys := make([]float64, 0, 4*densifyPts)
	for i := 0; i < densifyPts; i++ {
		t := float64(i) / float64(densifyPts-1)
		x, y := b[0]+t*(b[2]-b[0]), b[1]+t*(b[3]-b[1])
		xs = append(xs, x, x, b[0], b[2])
		ys = append(ys, b[1], b[3], y, y)
	}
	return xs, ys
}

// BoundsPolygon returns the rectangle as a closed polygon
func BoundsPolygon(b [4]float64) geom.Polygon {
	return geom.Polygon{{
		{b[0], b[1]},
		{b[2], b[1]},
		{b[2], b[3]},
		{b[0], b[3]},
		{b[0], b[1]},
	}}
}

// BoundsWKT returns the rectangle as a polygon WKT
func BoundsWKT(b [4]float64) string {
	return geomwkt.MustEncode(BoundsPolygon(b))
}

// BoundsGeoJSON returns the rectangle as a geojson polygon
func BoundsGeoJSON(b [4]float64) ([]byte, error) {
	gj, err := json.Marshal(geojson.Geometry{Geometry: BoundsPolygon(b)})
	if err != nil {
		return nil, fmt.Errorf("BoundsGeoJSON.Marshal: %w", err)
	}
	return gj, nil
}

// Intersection computes the overlap of two rectangles.
// ok is false when the rectangles do not intersect.
func Intersection(a, b [4]float64) (inter [4]float64, ok bool) {
	inter = [4]float64{
		math.Max(a[0], b[0]),
		math.Max(a[1], b[1]),
		math.Min(a[2], b[2]),
		math.Min(a[3], b[3]),
	}
	return inter, inter[0] < inter[2] && inter[1] < inter[3]
}
