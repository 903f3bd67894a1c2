// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestNewClient_DefaultTimeoutAndTransport(t *testing.T) {
	client := NewClient(0)
	if client.Timeout != defaultClientTimeout {
		t.Fatalf("timeout = %v, want %v", client.Timeout, defaultClientTimeout)
	}
	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("transport type = %T, want *http.Transport", client.Transport)
	}
	if transport.MaxIdleConnsPerHost != defaultMaxIdleConnsPerHost {
		t.Fatalf("MaxIdleConnsPerHost = %d, want %d", transport.MaxIdleConnsPerHost, defaultMaxIdleConnsPerHost)
	}
	if transport.ResponseHeaderTimeout != defaultResponseHeaderTimeout {
		t.Fatalf("ResponseHeaderTimeout = %v, want %v", transport.ResponseHeaderTimeout, defaultResponseHeaderTimeout)
	}
}

func TestNewClient_UsesShortTimeoutAsProvided(t *testing.T) {
	want := 1500 * time.Millisecond
	client := NewClient(want)
	transport := client.Transport.(*http.Transport)
	if client.Timeout != want {
		t.Fatalf("timeout = %v, want %v", client.Timeout, want)
	}
	if transport.TLSHandshakeTimeout != want {
		t.Fatalf("TLSHandshakeTimeout = %v, want %v", transport.TLSHandshakeTimeout, want)
	}
}

func TestCopyChunks_CopiesEverything(t *testing.T) {
	src := strings.Repeat("venue", 3000) // spans several chunks
	var dst bytes.Buffer
	n, err := CopyChunks(context.Background(), &dst, strings.NewReader(src))
	if err != nil {
		t.Fatalf("CopyChunks() error = %v", err)
	}
	if n != int64(len(src)) || dst.String() != src {
		t.Fatalf("copied %d bytes, want %d", n, len(src))
	}
}

// cancelAfterFirstRead cancels the context once the first chunk has been read.
type cancelAfterFirstRead struct {
	r      io.Reader
	cancel context.CancelFunc
}

func (c *cancelAfterFirstRead) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.cancel()
	return n, err
}

func TestCopyChunks_StopsAtChunkBoundaryOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &cancelAfterFirstRead{r: strings.NewReader(strings.Repeat("x", ChunkSize*4)), cancel: cancel}
	var dst bytes.Buffer

	n, err := CopyChunks(ctx, &dst, src)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if n != ChunkSize {
		t.Fatalf("copied %d bytes before cancel, want exactly one chunk (%d)", n, ChunkSize)
	}
}

func TestStatusError_Message(t *testing.T) {
	err := &StatusError{URL: "http://example.com/x", Code: http.StatusNotFound}
	if !strings.Contains(err.Error(), "404 Not Found") {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestTraced_WrapsTransportWithoutTouchingOriginal(t *testing.T) {
	base := NewClient(time.Second)
	traced := Traced(base)
	if traced == base {
		t.Fatal("Traced returned the same client")
	}
	if _, ok := base.Transport.(*http.Transport); !ok {
		t.Fatalf("original transport replaced: %T", base.Transport)
	}
	if _, ok := traced.Transport.(*http.Transport); ok {
		t.Fatal("traced transport is not wrapped")
	}
	if traced.Timeout != base.Timeout {
		t.Fatalf("timeout = %v, want %v", traced.Timeout, base.Timeout)
	}
}
