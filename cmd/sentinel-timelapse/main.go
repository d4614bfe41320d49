package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/araddon/dateparse"
	"github.com/gorilla/handlers"
	"go.uber.org/zap"

	"github.com/ramaguirre/sentinel-timelapse/catalog"
	ifcatalog "github.com/ramaguirre/sentinel-timelapse/interface/catalog"
	"github.com/ramaguirre/sentinel-timelapse/interface/catalog/stac"
	"github.com/ramaguirre/sentinel-timelapse/interface/provider"
	"github.com/ramaguirre/sentinel-timelapse/processor"
	"github.com/ramaguirre/sentinel-timelapse/service/log"
	"github.com/ramaguirre/sentinel-timelapse/timelapse"
)

type config struct {
	Request      timelapse.Request
	StacEndpoint string
	Collection   string
	SasEndpoint  string
	FullDownload bool
	AppPort      string
}

func newAppConfig() (*config, error) {
	bounds := flag.String("bounds", "", "area of interest as minx,miny,maxx,maxy in the CRS of -epsg")
	epsg := flag.Int("epsg", 24879, "EPSG code of the bounds")
	assets := flag.String("assets", "visual", "comma-separated list of assets to download (e.g. visual,B04,B08)")
	prefix := flag.String("prefix", "", "output prefix; clips are written under <prefix>/<asset>/")
	startDate := flag.String("start-date", "2014-08-01", "start of the timespan (inclusive)")
	endDate := flag.String("end-date", "", "end of the timespan (inclusive, defaults to today)")
	maxCloudPct := flag.Float64("max-cloud-pct", 5, "maximum cloud cover percentage [0, 100]")
	stacEndpoint := flag.String("stac-endpoint", stac.PlanetaryComputerEndpoint, "STAC API endpoint")
	collection := flag.String("collection", stac.DefaultCollection, "STAC collection")
	sasEndpoint := flag.String("sas-endpoint", provider.PlanetaryComputerSASEndpoint, "SAS signing endpoint (empty to disable signing)")
	fullDownload := flag.Bool("full", false, "download the whole assets before clipping")
	appPort := flag.String("port", "", "run as an http server on this port instead of a single download")
	flag.Parse()

	config := config{
		StacEndpoint: *stacEndpoint,
		Collection:   *collection,
		SasEndpoint:  *sasEndpoint,
		FullDownload: *fullDownload,
		AppPort:      *appPort,
		Request: timelapse.Request{
			EPSG:        *epsg,
			Prefix:      *prefix,
			MaxCloudPct: *maxCloudPct,
		},
	}

	if *appPort != "" {
		return &config, nil
	}

	if *bounds == "" {
		return nil, fmt.Errorf("missing bounds flag")
	}
	fields := strings.Split(*bounds, ",")
	if len(fields) != 4 {
		return nil, fmt.Errorf("bounds: expecting minx,miny,maxx,maxy, got %s", *bounds)
	}
	for i, field := range fields {
		if _, err := fmt.Sscanf(strings.TrimSpace(field), "%f", &config.Request.Bounds[i]); err != nil {
			return nil, fmt.Errorf("bounds[%d]: %w", i, err)
		}
	}
	if *prefix == "" {
		return nil, fmt.Errorf("missing prefix flag")
	}
	config.Request.Assets = strings.Split(*assets, ",")

	var err error
	if config.Request.StartTime, err = dateparse.ParseAny(*startDate); err != nil {
		return nil, fmt.Errorf("start-date: %w", err)
	}
	config.Request.EndTime = time.Now().UTC().Truncate(24 * time.Hour).Add(24*time.Hour - time.Second)
	if *endDate != "" {
		if config.Request.EndTime, err = dateparse.ParseAny(*endDate); err != nil {
			return nil, fmt.Errorf("end-date: %w", err)
		}
	}
	return &config, nil
}

func main() {
	ctx := context.Background()
	if err := run(ctx); err != nil {
		log.Fatal("error", zap.Error(err))
	}
}

func run(ctx context.Context) error {
	godal.RegisterAll()

	config, err := newAppConfig()
	if err != nil {
		return err
	}

	var itemsProvider ifcatalog.ItemsProvider = &stac.Provider{
		Endpoint:   config.StacEndpoint,
		Collection: config.Collection,
	}
	var signer provider.URLSigner = provider.NoSigner{}
	if config.SasEndpoint != "" {
		signer = &provider.PlanetarySigner{Endpoint: config.SasEndpoint}
	}
	pipeline := timelapse.Pipeline{
		Inventory: &catalog.Catalog{Provider: itemsProvider},
		Processor: &processor.Clipper{Signer: signer, FullDownload: config.FullDownload},
	}

	if config.AppPort != "" {
		return serve(ctx, &pipeline, config.AppPort)
	}

	stats, err := pipeline.DownloadImages(ctx, config.Request)
	if err != nil {
		return fmt.Errorf("run.%w", err)
	}
	summary, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("run.Marshal: %w", err)
	}
	fmt.Println(string(summary))
	return nil
}

func serve(ctx context.Context, pipeline *timelapse.Pipeline, port string) error {
	headersOk := handlers.AllowedHeaders([]string{"*"})
	originsOk := handlers.AllowedOrigins([]string{"*"})
	methodsOk := handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"})
	s := http.Server{
		Addr:    ":" + port,
		Handler: handlers.CORS(originsOk, headersOk, methodsOk)(pipeline.NewHandler()),
	}
	go func() {
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger(ctx).Error(err.Error())
		}
	}()
	log.Logger(ctx).Sugar().Debugf("timelapse server starts on port %s", port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}
