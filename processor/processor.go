package processor

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/airbusgeo/godal"
	"go.uber.org/zap"

	"github.com/ramaguirre/sentinel-timelapse/catalog/entities"
	"github.com/ramaguirre/sentinel-timelapse/common"
	"github.com/ramaguirre/sentinel-timelapse/interface/provider"
	"github.com/ramaguirre/sentinel-timelapse/service/geometry"
	"github.com/ramaguirre/sentinel-timelapse/service/log"
)

// ErrAssetMissing is returned when an item does not carry the requested asset
type ErrAssetMissing struct {
	ItemID string
	Asset  string
}

func (e ErrAssetMissing) Error() string {
	return fmt.Sprintf("asset %s not found in item %s", e.Asset, e.ItemID)
}

// ErrClipOutOfBounds is returned when the area of interest does not intersect the raster
type ErrClipOutOfBounds struct {
	ItemID string
	Asset  string
}

func (e ErrClipOutOfBounds) Error() string {
	return fmt.Sprintf("area of interest outside of raster %s of item %s", e.Asset, e.ItemID)
}

// Clipper clips remote rasters to an area of interest in their native CRS
type Clipper struct {
	Signer provider.URLSigner
	// FullDownload fetches the whole asset locally before clipping,
	// instead of reading the clip window remotely
	FullDownload bool
}

// creationOptions for the output GeoTIFFs
var creationOptions = []string{"-co", "COMPRESS=DEFLATE", "-co", "TILED=YES"}

// ProcessAsset signs, clips and writes one asset of an item under
// prefix/asset/. It returns the path of the written file.
func (c *Clipper) ProcessAsset(ctx context.Context, item *entities.Item, assetName string, aoi entities.AreaOfInterest, prefix string) (string, error) {
	asset, ok := item.Asset(assetName)
	if !ok {
		return "", ErrAssetMissing{ItemID: item.SourceID, Asset: assetName}
	}

	signedURL, err := c.Signer.SignURL(ctx, asset.Href)
	if err != nil {
		return "", fmt.Errorf("ProcessAsset[%s/%s]: %w", item.SourceID, assetName, err)
	}

	srcPath := vsiPath(signedURL)
	if c.FullDownload {
		localFile, cleanup, err := c.downloadAsset(ctx, signedURL, item.SourceID, assetName)
		if err != nil {
			return "", fmt.Errorf("ProcessAsset[%s/%s]: %w", item.SourceID, assetName, err)
		}
		defer cleanup()
		srcPath = localFile
	}

	outDir := common.OutputDir(prefix, assetName)
	if err := os.MkdirAll(outDir, 0766); err != nil {
		return "", fmt.Errorf("ProcessAsset.MkdirAll: %w", err)
	}
	outFile := filepath.Join(outDir, common.OutputFileName(prefix, assetName, item.SourceID))

	if err := clip(ctx, srcPath, outFile, aoi, item.SourceID, assetName); err != nil {
		return "", err
	}
	log.Logger(ctx).Debug("asset written", zap.String("file", outFile))
	return outFile, nil
}

// clip extracts the window of the raster covered by the AOI, reprojecting the
// AOI into the raster CRS. The output stays in the raster native CRS.
func clip(ctx context.Context, srcPath, outFile string, aoi entities.AreaOfInterest, itemID, assetName string) error {
	ds, err := godal.Open(srcPath, godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
		if ec <= godal.CE_Warning {
			log.Logger(ctx).Sugar().Debugf("gdal: %s", msg)
			return nil
		}
		return fmt.Errorf("gdal: %s", msg)
	}))
	if err != nil {
		return fmt.Errorf("clip.Open[%s]: %w", srcPath, err)
	}
	defer ds.Close()

	aoiRef, err := geometry.EPSGRef(aoi.EPSG)
	if err != nil {
		return fmt.Errorf("clip.%w", err)
	}
	defer aoiRef.Close()
	window, err := geometry.TransformBoundsRef(aoi.Bounds(), aoiRef, ds.SpatialRef())
	if err != nil {
		return fmt.Errorf("clip.%w", err)
	}

	extent, err := datasetBounds(ds)
	if err != nil {
		return fmt.Errorf("clip.%w", err)
	}
	inter, ok := geometry.Intersection(window, extent)
	if !ok {
		return ErrClipOutOfBounds{ItemID: itemID, Asset: assetName}
	}

	switches := append([]string{
		"-of", "GTiff",
		"-projwin", fmtFloat(inter[0]), fmtFloat(inter[3]), fmtFloat(inter[2]), fmtFloat(inter[1]),
	}, creationOptions...)
	out, err := ds.Translate(outFile, switches)
	if err != nil {
		return fmt.Errorf("clip.Translate[%s]: %w", outFile, err)
	}
	return out.Close()
}

// datasetBounds returns the (minx, miny, maxx, maxy) extent of the raster in its CRS
func datasetBounds(ds *godal.Dataset) ([4]float64, error) {
	gt, err := ds.GeoTransform()
	if err != nil {
		return [4]float64{}, fmt.Errorf("datasetBounds.GeoTransform: %w", err)
	}
	structure := ds.Structure()
	w, h := float64(structure.SizeX), float64(structure.SizeY)

	// corners of the raster (the geotransform may flip or rotate axes)
	xs := []float64{gt[0], gt[0] + w*gt[1], gt[0] + h*gt[2], gt[0] + w*gt[1] + h*gt[2]}
	ys := []float64{gt[3], gt[3] + w*gt[4], gt[3] + h*gt[5], gt[3] + w*gt[4] + h*gt[5]}
	b := [4]float64{xs[0], ys[0], xs[0], ys[0]}
	for i := 1; i < 4; i++ {
		b[0], b[2] = math.Min(b[0], xs[i]), math.Max(b[2], xs[i])
		b[1], b[3] = math.Min(b[1], ys[i]), math.Max(b[3], ys[i])
	}
	return b, nil
}

// downloadAsset fetches the whole signed asset into a temporary file
func (c *Clipper) downloadAsset(ctx context.Context, url, itemID, assetName string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "asset")
	if err != nil {
		return "", nil, fmt.Errorf("downloadAsset.MkdirTemp: %w", err)
	}
	localFile := filepath.Join(dir, assetName+".tif")
	if err := provider.Download(ctx, url, localFile, itemID+":"+assetName); err != nil {
		os.RemoveAll(dir)
		return "", nil, fmt.Errorf("downloadAsset.%w", err)
	}
	return localFile, func() { os.RemoveAll(dir) }, nil
}

// vsiPath maps an url onto the matching GDAL virtual filesystem
func vsiPath(url string) string {
	switch {
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		return "/vsicurl/" + url
	case strings.HasPrefix(url, "gs://"):
		return "/vsigs/" + strings.TrimPrefix(url, "gs://")
	case strings.HasPrefix(url, "s3://"):
		return "/vsis3/" + strings.TrimPrefix(url, "s3://")
	}
	return url
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
