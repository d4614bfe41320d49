package common

// RunStatistics summarizes a download run
type RunStatistics struct {
	// TotalImages is the number of catalog items covering the area of interest
	// in the requested timespan
	TotalImages int `json:"total_images"`
	// CloudFiltered is the number of items discarded by the cloud-cover threshold
	CloudFiltered int `json:"cloud_filtered"`
	// AssetCounts is the number of files successfully written per requested asset
	AssetCounts map[string]int `json:"asset_counts"`
	// AssetFailures is the number of items skipped per requested asset
	AssetFailures map[string]int `json:"asset_failures,omitempty"`
}

// NewRunStatistics initializes the per-asset counters so that every requested
// asset appears in the summary, including those with no successful write
func NewRunStatistics(assets []string) RunStatistics {
	s := RunStatistics{
		AssetCounts:   make(map[string]int, len(assets)),
		AssetFailures: map[string]int{},
	}
	for _, asset := range assets {
		s.AssetCounts[asset] = 0
	}
	return s
}

// RecordSuccess counts a file successfully written for the asset
func (s *RunStatistics) RecordSuccess(asset string) {
	s.AssetCounts[asset]++
}

// RecordFailure counts an item skipped for the asset
func (s *RunStatistics) RecordFailure(asset string) {
	s.AssetFailures[asset]++
}
