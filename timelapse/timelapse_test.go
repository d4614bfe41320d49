package timelapse_test

import (
	"fmt"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/ramaguirre/sentinel-timelapse/catalog/entities"
	"github.com/ramaguirre/sentinel-timelapse/interface/catalog/stac"
	"github.com/ramaguirre/sentinel-timelapse/timelapse"
)

func item(id string, cloudCover float64, assets ...string) *entities.Item {
	it := &entities.Item{SourceID: id, CloudCover: cloudCover, Assets: map[string]entities.Asset{}}
	for _, a := range assets {
		it.Assets[a] = entities.Asset{Href: "https://example.com/" + id + "/" + a + ".tif"}
	}
	return it
}

var _ = Describe("Pipeline", func() {
	var (
		inventory *MokeInventory
		proc      *MokeProcessor
		pipeline  *timelapse.Pipeline
		request   timelapse.Request
	)

	BeforeEach(func() {
		inventory = &MokeInventory{}
		proc = &MokeProcessor{outside: map[string]bool{}}
		pipeline = &timelapse.Pipeline{Inventory: inventory, Processor: proc}
		request = timelapse.Request{
			Bounds:      [4]float64{407500, 7494500, 415200, 7505700},
			EPSG:        24879,
			Assets:      []string{"visual", "B04"},
			Prefix:      "/data/timelapse/antofagasta",
			MaxCloudPct: 5,
		}
	})

	Describe("downloading images", func() {
		Context("with an empty catalog", func() {
			It("returns empty statistics", func() {
				stats, err := pipeline.DownloadImages(ctx, request)
				Expect(err).NotTo(HaveOccurred())
				Expect(stats.TotalImages).To(Equal(0))
				Expect(stats.CloudFiltered).To(Equal(0))
				Expect(stats.AssetCounts).To(Equal(map[string]int{"visual": 0, "B04": 0}))
				Expect(proc.processed).To(BeEmpty())
			})
		})

		Context("with cloudy and clear items", func() {
			BeforeEach(func() {
				inventory.items = []*entities.Item{
					item("S2A_MSIL2A_20231201T143721_R096_T19KCP_20231201T191357", 2.5, "visual", "B04"),
					item("S2B_MSIL2A_20231206T143719_R096_T19KCP_20231206T175237", 80, "visual", "B04"),
					item("S2A_MSIL2A_20231211T143721_R096_T19KCP_20231211T191548", 5, "visual", "B04"),
				}
			})

			It("discards the items above the threshold", func() {
				stats, err := pipeline.DownloadImages(ctx, request)
				Expect(err).NotTo(HaveOccurred())
				Expect(stats.TotalImages).To(Equal(3))
				Expect(stats.CloudFiltered).To(Equal(1))
				Expect(stats.AssetCounts).To(Equal(map[string]int{"visual": 2, "B04": 2}))
				Expect(proc.processed).To(HaveLen(4))
			})

			It("accounts for every item", func() {
				stats, err := pipeline.DownloadImages(ctx, request)
				Expect(err).NotTo(HaveOccurred())
				kept := stats.AssetCounts["visual"] + stats.AssetFailures["visual"]
				Expect(stats.CloudFiltered + kept).To(Equal(stats.TotalImages))
			})

			It("discards everything but cloudless items when the threshold is 0", func() {
				request.MaxCloudPct = 0
				stats, err := pipeline.DownloadImages(ctx, request)
				Expect(err).NotTo(HaveOccurred())
				Expect(stats.CloudFiltered).To(Equal(3))
				Expect(proc.processed).To(BeEmpty())
			})
		})

		Context("with an item lacking an asset", func() {
			BeforeEach(func() {
				inventory.items = []*entities.Item{
					item("S2A_MSIL2A_20231201T143721_R096_T19KCP_20231201T191357", 2.5, "visual", "B04"),
					item("S2B_MSIL2A_20231206T143719_R096_T19KCP_20231206T175237", 1, "visual"),
				}
			})

			It("records the failure and continues", func() {
				stats, err := pipeline.DownloadImages(ctx, request)
				Expect(err).NotTo(HaveOccurred())
				Expect(stats.AssetCounts).To(Equal(map[string]int{"visual": 2, "B04": 1}))
				Expect(stats.AssetFailures).To(Equal(map[string]int{"B04": 1}))
			})
		})

		Context("with an item not intersecting the AOI raster", func() {
			BeforeEach(func() {
				inventory.items = []*entities.Item{
					item("S2A_MSIL2A_20231201T143721_R096_T19KCP_20231201T191357", 2.5, "visual", "B04"),
				}
				proc.outside["S2A_MSIL2A_20231201T143721_R096_T19KCP_20231201T191357"] = true
			})

			It("records the failures and finishes the run", func() {
				stats, err := pipeline.DownloadImages(ctx, request)
				Expect(err).NotTo(HaveOccurred())
				Expect(stats.AssetCounts).To(Equal(map[string]int{"visual": 0, "B04": 0}))
				Expect(stats.AssetFailures).To(Equal(map[string]int{"visual": 1, "B04": 1}))
			})
		})

		Context("with an unavailable catalog", func() {
			BeforeEach(func() {
				inventory.err = stac.ErrCatalogUnavailable{URL: "https://example.com/search", Err: fmt.Errorf("connection refused")}
			})

			It("aborts the run", func() {
				_, err := pipeline.DownloadImages(ctx, request)
				Expect(err).To(MatchError(ContainSubstring("catalog unavailable")))
				Expect(proc.processed).To(BeEmpty())
			})
		})

		Context("with an invalid request", func() {
			It("rejects a flipped rectangle before any network call", func() {
				request.Bounds = [4]float64{415200, 7494500, 407500, 7505700}
				inventory.err = fmt.Errorf("the catalog must not be queried")
				_, err := pipeline.DownloadImages(ctx, request)
				Expect(err).To(MatchError(ContainSubstring("invalid bounds")))
			})

			It("rejects a non-positive EPSG code", func() {
				request.EPSG = 0
				_, err := pipeline.DownloadImages(ctx, request)
				Expect(err).To(MatchError(ContainSubstring("invalid CRS")))
			})

			It("rejects a cloud threshold above 100", func() {
				request.MaxCloudPct = 101
				_, err := pipeline.DownloadImages(ctx, request)
				Expect(err).To(MatchError(ContainSubstring("cloud-cover threshold")))
			})

			It("rejects an empty asset list", func() {
				request.Assets = nil
				_, err := pipeline.DownloadImages(ctx, request)
				Expect(err).To(MatchError(ContainSubstring("no asset")))
			})
		})

		Context("with duplicated assets in the request", func() {
			BeforeEach(func() {
				inventory.items = []*entities.Item{
					item("S2A_MSIL2A_20231201T143721_R096_T19KCP_20231201T191357", 2.5, "visual"),
				}
				request.Assets = []string{"visual", "visual"}
			})

			It("processes each asset once", func() {
				stats, err := pipeline.DownloadImages(ctx, request)
				Expect(err).NotTo(HaveOccurred())
				Expect(stats.AssetCounts).To(Equal(map[string]int{"visual": 1}))
				Expect(proc.processed).To(HaveLen(1))
			})
		})
	})
})
