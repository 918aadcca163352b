// Package transport sends approved outreach email through a concrete
// delivery channel. The Gmail adapter preserves reply threading via the
// Gmail API; the SES adapter covers bulk-friendly delivery; the mock
// adapter records sends for tests and dry runs.
package transport
