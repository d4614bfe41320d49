package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ramaguirre/sentinel-timelapse/service"
	"github.com/ramaguirre/sentinel-timelapse/service/log"
)

// PlanetaryComputerSASEndpoint delivers short-lived SAS tokens for the assets
// hosted on the Planetary Computer blob storage
const PlanetaryComputerSASEndpoint = "https://planetarycomputer.microsoft.com/api/sas/v1"

// expiryMargin is subtracted from the token expiry to avoid signing an asset
// with a token about to expire
const expiryMargin = 5 * time.Minute

type sasToken struct {
	Token  string
	Expiry time.Time
}

// PlanetarySigner signs asset hrefs with the Planetary Computer SAS service.
// Tokens are cached per storage container until close to expiry.
type PlanetarySigner struct {
	Endpoint string

	mutex  sync.Mutex
	tokens map[string]sasToken
}

type signResponse struct {
	Expiry string `json:"msft:expiry"`
	Href   string `json:"href"`
}

// SignURL implements URLSigner
func (s *PlanetarySigner) SignURL(ctx context.Context, href string) (string, error) {
	container, err := containerOf(href)
	if err != nil {
		return "", fmt.Errorf("SignURL.%w", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if token, ok := s.tokens[container]; ok && time.Now().Before(token.Expiry.Add(-expiryMargin)) {
		return href + "?" + token.Token, nil
	}

	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = PlanetaryComputerSASEndpoint
	}
	signURL := strings.TrimSuffix(endpoint, "/") + "/sign?href=" + url.QueryEscape(href)
	body, err := service.GetBody(ctx, signURL)
	if err != nil {
		return "", fmt.Errorf("SignURL[%s]: %w", container, err)
	}
	signed := signResponse{}
	if err := json.Unmarshal(body, &signed); err != nil {
		return "", fmt.Errorf("SignURL.Unmarshal: %w (response: %s)", err, body)
	}

	u, err := url.Parse(signed.Href)
	if err != nil || u.RawQuery == "" {
		return "", fmt.Errorf("SignURL: no token in signed href %s", signed.Href)
	}
	token := sasToken{Token: u.RawQuery}
	if token.Expiry, err = time.Parse(time.RFC3339Nano, signed.Expiry); err != nil {
		// without an expiry, keep the token for a short while
		token.Expiry = time.Now().Add(expiryMargin)
	}
	if s.tokens == nil {
		s.tokens = map[string]sasToken{}
	}
	s.tokens[container] = token
	log.Logger(ctx).Sugar().Debugf("signed container %s (expiry %s)", container, token.Expiry.Format(time.RFC3339))

	return signed.Href, nil
}

// containerOf returns the storage container of an asset href (host + first path element)
func containerOf(href string) (string, error) {
	u, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("containerOf[%s]: %w", href, err)
	}
	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	return u.Host + "/" + parts[0], nil
}
