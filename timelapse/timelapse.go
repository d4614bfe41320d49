package timelapse

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ramaguirre/sentinel-timelapse/catalog/entities"
	"github.com/ramaguirre/sentinel-timelapse/common"
	"github.com/ramaguirre/sentinel-timelapse/service"
	"github.com/ramaguirre/sentinel-timelapse/service/log"
)

// ItemsInventory lists the catalog items fully covering an area of interest
type ItemsInventory interface {
	DoItemsInventory(ctx context.Context, aoi entities.AreaOfInterest, span entities.TimeSpan) ([]*entities.Item, error)
}

// AssetProcessor writes one asset of an item, clipped to the area of interest
type AssetProcessor interface {
	ProcessAsset(ctx context.Context, item *entities.Item, assetName string, aoi entities.AreaOfInterest, prefix string) (string, error)
}

// Request describes a download run
type Request struct {
	Bounds      [4]float64 `json:"bounds"`
	EPSG        int        `json:"epsg"`
	Assets      []string   `json:"assets"`
	Prefix      string     `json:"prefix"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     time.Time  `json:"end_time"`
	MaxCloudPct float64    `json:"max_cloud_pct"`
}

// AOI returns the area of interest of the request
func (r Request) AOI() entities.AreaOfInterest {
	return entities.NewAreaOfInterest(r.Bounds, r.EPSG)
}

// Span returns the timespan of the request
func (r Request) Span() entities.TimeSpan {
	return entities.TimeSpan{Start: r.StartTime, End: r.EndTime}
}

// Validate checks the request before any network call
func (r Request) Validate() error {
	if err := r.AOI().Validate(); err != nil {
		return err
	}
	if err := entities.ValidateCloudThreshold(r.MaxCloudPct); err != nil {
		return err
	}
	if len(r.Assets) == 0 {
		return fmt.Errorf("no asset requested")
	}
	if r.Prefix == "" {
		return fmt.Errorf("empty output prefix")
	}
	if r.EndTime.Before(r.StartTime) {
		return fmt.Errorf("end time %s before start time %s", r.EndTime.Format(time.RFC3339), r.StartTime.Format(time.RFC3339))
	}
	return nil
}

// Pipeline runs the inventory, the cloud filter and the asset downloads
type Pipeline struct {
	Inventory ItemsInventory
	Processor AssetProcessor
}

// DownloadImages runs a full download sequentially.
// Items above the cloud-cover threshold are discarded; an asset that cannot be
// fetched or clipped is recorded as a failure and the run continues.
// A catalog failure aborts the run.
func (p *Pipeline) DownloadImages(ctx context.Context, req Request) (common.RunStatistics, error) {
	if err := req.Validate(); err != nil {
		return common.RunStatistics{}, fmt.Errorf("DownloadImages.Validate: %w", err)
	}
	ctx = log.With(ctx, "run", uuid.New().String())

	items, err := p.Inventory.DoItemsInventory(ctx, req.AOI(), req.Span())
	if err != nil {
		return common.RunStatistics{}, fmt.Errorf("DownloadImages.%w", err)
	}

	assets := service.Unique(req.Assets)
	stats := common.NewRunStatistics(assets)
	stats.TotalImages = len(items)

	kept, filtered := entities.FilterClouds(items, req.MaxCloudPct)
	stats.CloudFiltered = len(filtered)
	log.Logger(ctx).Info("inventory done",
		zap.Int("items", len(items)), zap.Int("cloud_filtered", len(filtered)))

	for _, item := range kept {
		for _, asset := range assets {
			file, err := p.Processor.ProcessAsset(ctx, item, asset, req.AOI(), req.Prefix)
			if err != nil {
				log.Logger(ctx).Warn("asset skipped",
					zap.String("item", item.SourceID), zap.String("asset", asset), zap.Error(err))
				stats.RecordFailure(asset)
				continue
			}
			log.Logger(ctx).Sugar().Infof("%s written", file)
			stats.RecordSuccess(asset)
		}
	}
	return stats, nil
}
