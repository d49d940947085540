// Package client holds the HTTP clients for the products and coupons
// services.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// Error reports a failed call to one of the backing services. It is a
// dependency failure, not a domain rejection, and callers surface it as
// such.
type Error struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s service responded %d: %s", e.Service, e.StatusCode, e.Body)
}

// Collaborator names the failing service.
func (e *Error) Collaborator() string { return e.Service }

// Config configures a service client. When ClientID is set, requests
// carry a client-credentials token; otherwise the plain http client is
// used.
type Config struct {
	URL          string
	Timeout      time.Duration
	ClientID     string
	ClientSecret string
	TokenURL     string
}

func httpClient(cfg Config) *http.Client {
	if cfg.ClientID == "" {
		return &http.Client{Timeout: cfg.Timeout}
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	c := cc.Client(context.Background())
	c.Timeout = cfg.Timeout
	return c
}

// getJSON performs the request and decodes a 200 body into out. A 404
// is reported as errNotFound for the caller to translate; any other
// non-200 becomes an *Error.
func getJSON(ctx context.Context, hc *http.Client, service, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("building %s request: %w", service, err)
	}

	res, err := hc.Do(req)
	if err != nil {
		return &Error{Service: service, Body: err.Error()}
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return &Error{Service: service, StatusCode: res.StatusCode, Body: err.Error()}
		}
		return nil
	case http.StatusNotFound:
		return errNotFound
	default:
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return &Error{Service: service, StatusCode: res.StatusCode, Body: string(body)}
	}
}

var errNotFound = fmt.Errorf("not found")
