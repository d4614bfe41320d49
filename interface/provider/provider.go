package provider

import "context"

// URLSigner exchanges an asset href for a fetchable URL.
// Signers for catalogs with public assets can return the href unchanged.
type URLSigner interface {
	SignURL(ctx context.Context, href string) (string, error)
}

// NoSigner returns hrefs unchanged
type NoSigner struct{}

func (NoSigner) SignURL(ctx context.Context, href string) (string, error) {
	return href, nil
}
