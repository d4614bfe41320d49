package common

import (
	"path"
	"path/filepath"
	"strings"
	"time"
)

// DateToken extracts the acquisition date token of a Sentinel-2 product id
// (MMM_MSIXXX_YYYYMMDDTHHMMSS_Nxxyy_ROOO_Txxxxx_<Product Discriminator>).
// Ids without enough fields are used as-is.
func DateToken(productID string) string {
	parts := strings.Split(productID, "_")
	if len(parts) < 3 {
		return productID
	}
	return parts[2]
}

// DateFromProductID parses the acquisition date of a Sentinel-2 product id
func DateFromProductID(productID string) (time.Time, error) {
	return time.Parse("20060102T150405", DateToken(productID))
}

// OutputDir returns the directory receiving the clips of an asset
func OutputDir(prefix, asset string) string {
	return filepath.Join(prefix, asset)
}

// OutputFileName returns the file name of the clip of an asset of a product,
// named after the prefix base name and the acquisition date so that the files
// of an asset directory sort chronologically
func OutputFileName(prefix, asset, productID string) string {
	return path.Base(filepath.ToSlash(prefix)) + "_" + asset + "_" + DateToken(productID) + ".tif"
}
