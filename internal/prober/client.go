package prober

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"text/template"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultURLTemplate is the registry API version check for an endpoint.
const DefaultURLTemplate = "https://{{.Endpoint}}/v2/"

// Client is an HTTP prober for registry mirrors.
//
// Client renders a probe URL from a template, issues a HEAD request with
// certificate verification disabled and reports the result as an [Outcome].
// Timeouts are applied per request via context rather than a global client
// timeout. Redirects are not followed: the first response decides the outcome.
//
// Every probe dials a new connection, so each attempt pays for DNS, TCP and
// TLS and can fail in any of them. There is no per-host connection cap;
// duplicate endpoints are probed side by side.
type Client struct {
	httpClient *http.Client
	tmpl       *template.Template
	clock      clock.Clock
}

// templateData is the value the URL template is executed against.
type templateData struct {
	Endpoint string
}

// NewClient creates a new probing [Client].
//
// urlTemplate is a text/template with {{.Endpoint}} available; an empty
// string selects [DefaultURLTemplate]. A nil clk uses the wall clock.
//
// Certificate verification is disabled on purpose: many mirrors run with
// self-signed certificates and only reachability is measured here.
func NewClient(urlTemplate string, clk clock.Clock) (*Client, error) {
	tmpl, err := ParseURLTemplate(urlTemplate)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}

	return &Client{
		httpClient: &http.Client{
			// no default timeout - we use per-request timeouts via context
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				DisableKeepAlives: true,
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true, //nolint:gosec // mirrors commonly use self-signed certificates
				},
			},
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		tmpl:  tmpl,
		clock: clk,
	}, nil
}

// ParseURLTemplate parses and sanity-checks a probe URL template.
//
// The template must render an absolute http or https URL for a sample
// endpoint. An empty template selects [DefaultURLTemplate].
func ParseURLTemplate(text string) (*template.Template, error) {
	if text == "" {
		text = DefaultURLTemplate
	}

	// use missingkey=error to fail fast on unknown template variables
	tmpl, err := template.New("probe").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid url template: %w", err)
	}

	sample, err := render(tmpl, "registry.example.com")
	if err != nil {
		return nil, fmt.Errorf("invalid url template: %w", err)
	}
	parsed, err := url.Parse(sample)
	if err != nil {
		return nil, fmt.Errorf("invalid url template: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("url template must produce an http or https url, got %q", sample)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("url template must produce a url with a host, got %q", sample)
	}
	return tmpl, nil
}

func render(tmpl *template.Template, endpoint string) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, templateData{Endpoint: endpoint}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ProbeURL returns the URL probed for endpoint.
func (c *Client) ProbeURL(endpoint string) (string, error) {
	return render(c.tmpl, endpoint)
}

// BaseURL returns the probe URL for endpoint with its path, query and
// fragment removed, e.g. "https://mirror.example.com".
//
// If the URL cannot be built, "https://" + endpoint is returned.
func (c *Client) BaseURL(endpoint string) string {
	raw, err := c.ProbeURL(endpoint)
	if err != nil {
		return "https://" + endpoint
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "https://" + endpoint
	}
	return parsed.Scheme + "://" + parsed.Host
}

// Probe performs one HEAD request against endpoint and returns its [Outcome].
//
// Probe always returns an Outcome; failures are classified into the Class
// field and the underlying error is kept in Err. The request is bounded by
// timeout via context cancellation.
func (c *Client) Probe(ctx context.Context, endpoint string, timeout time.Duration) Outcome {
	target, err := c.ProbeURL(endpoint)
	if err != nil {
		return Outcome{
			Class: ClassOther,
			Err:   fmt.Errorf("failed to build probe url: %w", err),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := c.clock.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return Outcome{
			Latency: c.clock.Since(start),
			Class:   ClassOther,
			Err:     fmt.Errorf("failed to create request: %w", err),
		}
	}

	resp, err := c.httpClient.Do(req)
	latency := c.clock.Since(start)
	if err != nil {
		return Outcome{
			Latency: latency,
			Class:   Classify(err),
			Err:     fmt.Errorf("request failed: %w", err),
		}
	}
	_ = resp.Body.Close()

	if !IsSuccessStatus(resp.StatusCode) {
		return Outcome{
			Latency:    latency,
			StatusCode: resp.StatusCode,
			Class:      ClassUnexpectedStatus,
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	return Outcome{
		Succeeded:  true,
		Latency:    latency,
		StatusCode: resp.StatusCode,
		Class:      ClassNone,
	}
}

// IsSuccessStatus reports whether a status code means the registry is alive.
//
// 401 counts as success: the /v2/ endpoint of a live registry answers with
// an authentication challenge when it requires credentials.
func IsSuccessStatus(code int) bool {
	return code == http.StatusOK || code == http.StatusUnauthorized
}

// Close closes any idle connections held by the transport.
//
// Safe to call multiple times and on a nil receiver. The client remains
// usable after Close.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
