// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package netfetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *Client {
	return NewClient(Config{
		Timeout:     2 * time.Second,
		IdleTimeout: time.Second,
		MaxRetries:  1,
		RetryDelay:  time.Millisecond,
		Version:     "1.2.3",
	}, nil)
}

func TestFetch(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/ok":
			assert.Contains(t, r.Header.Get("User-Agent"), "1.2.3")
			w.Write([]byte("payload"))
		case "/post":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/ocsp-request", r.Header.Get("Content-Type"))
			body, _ := io.ReadAll(r.Body)
			w.Write(body)
		case "/missing":
			http.NotFound(w, r)
		case "/flaky":
			if hits.Load()%2 == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte("recovered"))
		case "/big":
			w.Write([]byte(strings.Repeat("x", 64)))
		}
	}))
	defer srv.Close()

	tests := []struct {
		name    string
		req     Request
		limit   int64
		want    string
		wantErr error
		hits    int32
	}{
		{name: "GET", req: Request{URL: srv.URL + "/ok"}, want: "payload", hits: 1},
		{
			name: "POST body",
			req:  Request{URL: srv.URL + "/post", Body: []byte("req"), ContentType: "application/ocsp-request"},
			want: "req",
			hits: 1,
		},
		{name: "4xx is not retried", req: Request{URL: srv.URL + "/missing"}, wantErr: ErrHTTPStatus, hits: 1},
		{name: "5xx is retried once", req: Request{URL: srv.URL + "/flaky"}, want: "recovered", hits: 2},
		{name: "size limit", req: Request{URL: srv.URL + "/big"}, limit: 16, wantErr: ErrResponseTooLarge, hits: 1},
		{name: "bad scheme", req: Request{URL: "ldap://example.com/crl"}, wantErr: ErrUnsupportedScheme},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits.Store(0)
			c := testClient()
			if tt.limit > 0 {
				c.cfg.MaxResponseBytes = tt.limit
			}

			data, err := c.Fetch(context.Background(), tt.req)
			assert.Equal(t, tt.hits, hits.Load())
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrFetchFailed)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}

func TestFetchTimeouts(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/stall":
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("partial"))
			w.(http.Flusher).Flush()
			select {
			case <-release:
			case <-r.Context().Done():
			}
		case "/slow":
			for range 10 {
				w.Write([]byte("."))
				w.(http.Flusher).Flush()
				select {
				case <-time.After(20 * time.Millisecond):
				case <-r.Context().Done():
					return
				}
			}
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Config{RetryDelay: time.Millisecond}, nil)

	t.Run("idle", func(t *testing.T) {
		_, err := c.Fetch(context.Background(), Request{
			URL:            srv.URL + "/stall",
			MaxRequestTime: 5 * time.Second,
			MaxIdleTime:    50 * time.Millisecond,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFetchFailed)
		assert.ErrorIs(t, err, ErrIdleTimeout)
	})

	t.Run("total", func(t *testing.T) {
		_, err := c.Fetch(context.Background(), Request{
			URL:            srv.URL + "/slow",
			MaxRequestTime: 60 * time.Millisecond,
			MaxIdleTime:    time.Second,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFetchFailed)
	})

	t.Run("idle resets on progress", func(t *testing.T) {
		data, err := c.Fetch(context.Background(), Request{
			URL:            srv.URL + "/slow",
			MaxRequestTime: 5 * time.Second,
			MaxIdleTime:    100 * time.Millisecond,
		})
		require.NoError(t, err)
		assert.Len(t, data, 10)
	})
}

func TestUserAgent(t *testing.T) {
	c := NewClient(Config{Version: "0.9.0"}, nil)
	assert.Contains(t, c.UserAgent(), "TLS-Cert-Trust-Engine/0.9.0")

	c = NewClient(Config{UserAgent: "custom/1"}, nil)
	assert.Equal(t, "custom/1", c.UserAgent())
	assert.Same(t, c.HTTPClient(), c.HTTPClient())
}
