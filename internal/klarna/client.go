package klarna

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/kec-gateway/internal/obs"
	"github.com/noah-isme/kec-gateway/internal/resilience"
)

// Base URLs of the global Klarna API.
const (
	ProductionBaseURL = "https://api-global.klarna.com/"
	PlaygroundBaseURL = "https://api-global.test.klarna.com/"
)

// IntegrationMetadataHeader identifies the integration on every request.
const IntegrationMetadataHeader = "X-Klarna-Integration-Metadata"

const maxErrorBody = 4 << 10

// APIError is returned for non-2xx responses.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("klarna %s: status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// Client calls the Klarna notification management API.
type Client struct {
	HTTP          resilience.HTTPClient
	Username      string
	Password      string
	ModuleVersion string
	// BaseURL overrides the environment derived from Testmode.
	BaseURL string
	// Testmode reports whether the playground environment is active.
	Testmode func(context.Context) (bool, error)
}

// BaseURLFor returns the API root for the given environment.
func BaseURLFor(testmode bool) string {
	if testmode {
		return PlaygroundBaseURL
	}
	return ProductionBaseURL
}

func (c *Client) baseURL(ctx context.Context) (string, error) {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/") + "/", nil
	}
	testmode := false
	if c.Testmode != nil {
		var err error
		if testmode, err = c.Testmode(ctx); err != nil {
			return "", fmt.Errorf("resolve klarna environment: %w", err)
		}
	}
	return BaseURLFor(testmode), nil
}

func (c *Client) authorization() string {
	creds := base64.StdEncoding.EncodeToString([]byte(c.Username + ":" + c.Password))
	return "Basic " + creds
}

func (c *Client) integrationMetadata() string {
	version := c.ModuleVersion
	if version == "" {
		version = "dev"
	}
	raw, _ := json.Marshal(map[string]any{
		"integrator": map[string]string{
			"name":           "WOOCOMMERCE",
			"module_name":    "Klarna for WooCommerce",
			"module_version": version,
		},
	})
	return string(raw)
}

// do performs one API call. in is JSON-encoded when non-nil and out is decoded when non-nil.
func (c *Client) do(ctx context.Context, operation, method, path string, in, out any) error {
	start := time.Now()
	ctx, span := obs.StartSpan(ctx, "klarna", "Klarna."+operation,
		attribute.String("http.request.method", method),
		attribute.String("klarna.path", path),
	)
	err := c.roundTrip(ctx, operation, method, path, in, out)
	obs.EndSpan(span, err)
	result := "ok"
	if err != nil {
		result = "error"
	}
	obs.ObserveKlarnaRequest(operation, result, time.Since(start))
	logger := zerolog.Ctx(ctx)
	if err != nil {
		logger.Error().Err(err).Str("operation", operation).Msg("klarna request failed")
	} else {
		logger.Debug().Str("operation", operation).Dur("took", time.Since(start)).Msg("klarna request")
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, operation, method, path string, in, out any) error {
	base, err := c.baseURL(ctx)
	if err != nil {
		return err
	}
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, base+strings.TrimLeft(path, "/"), body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.authorization())
	req.Header.Set("Accept", "application/json")
	req.Header.Set(IntegrationMetadataHeader, c.integrationMetadata())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("klarna %s: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Operation: operation, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
