// Package restutil holds the small HTTP helpers shared by REST backends.
package restutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

var client = &http.Client{Timeout: 5 * time.Minute}

// DoRaw sends a request and returns the response body. Non-2xx statuses
// become errors carrying the first 4 KiB of the body.
func DoRaw(ctx context.Context, method, url string, headers map[string]string, body io.Reader) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return resp.Body, nil
}

// Form is a multipart form with a single file part.
type Form struct {
	FileField string
	FileName  string
	File      io.Reader
	Fields    map[string]string
}

// DoMultipart posts form to url and decodes the JSON response into dest.
func DoMultipart(ctx context.Context, url string, headers map[string]string, form Form, dest any) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile(form.FileField, form.FileName)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, form.File); err != nil {
		return fmt.Errorf("write form file: %w", err)
	}
	for k, v := range form.Fields {
		if err := writer.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close form: %w", err)
	}

	rc, err := DoRaw(ctx, http.MethodPost, url, withHeader(headers, "Content-Type", writer.FormDataContentType()), &body)
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := json.NewDecoder(rc).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func withHeader(headers map[string]string, k, v string) map[string]string {
	out := make(map[string]string, len(headers)+1)
	for hk, hv := range headers {
		out[hk] = hv
	}
	out[k] = v
	return out
}
