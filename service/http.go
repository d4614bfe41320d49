package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// GetBody performs a single GET and returns the body.
// Non-2xx statuses are returned as errors, 429 and 5xx as temporary ones.
func GetBody(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("GetBody.NewRequest: %w", err)
	}
	return DoBody(req)
}

// PostBody performs a single POST with a json body and returns the response body.
func PostBody(ctx context.Context, url string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", url, body)
	if err != nil {
		return nil, fmt.Errorf("PostBody.NewRequest: %w", err)
	}
	req.Header.Add("Content-Type", "application/json")
	return DoBody(req)
}

// DoBody performs the request and returns the body (see GetBody)
func DoBody(req *http.Request) ([]byte, error) {
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, MakeTemporary(fmt.Errorf("DoBody[%s]: %w", req.URL, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, MakeTemporary(fmt.Errorf("DoBody.ReadAll: %w", err))
	}
	if resp.StatusCode/100 != 2 {
		err = fmt.Errorf("DoBody[%s]: %s: %s", req.URL, resp.Status, body)
		if resp.StatusCode == 429 || resp.StatusCode >= 500 {
			return nil, MakeTemporary(err)
		}
		return nil, err
	}
	return body, nil
}
