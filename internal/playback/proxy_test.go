// SPDX-License-Identifier: MIT

package playback

import (
	"testing"
	"time"
)

func TestProxyRewrite(t *testing.T) {
	p := DefaultProxyPolicy()
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			"plain http rewritten through first endpoint",
			"http://example.com/a b.m3u8",
			"https://corsproxy.io/?http%3A%2F%2Fexample.com%2Fa+b.m3u8",
		},
		{
			"https untouched",
			"https://example.com/live.m3u8",
			"https://example.com/live.m3u8",
		},
		{
			"rtmp untouched",
			"rtmp://example.com/live",
			"rtmp://example.com/live",
		},
		{
			"already proxied passes through",
			"https://corsproxy.io/?http%3A%2F%2Fexample.com",
			"https://corsproxy.io/?http%3A%2F%2Fexample.com",
		},
		{
			"allorigins passes through",
			"https://api.allorigins.win/raw?url=http%3A%2F%2Fx",
			"https://api.allorigins.win/raw?url=http%3A%2F%2Fx",
		},
		{
			"empty untouched",
			"",
			"",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.Rewrite(tc.in); got != tc.want {
				t.Fatalf("Rewrite(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestProxyRewriteZeroPolicy(t *testing.T) {
	var p ProxyPolicy
	if got := p.Rewrite("http://example.com/s"); got != "http://example.com/s" {
		t.Fatalf("zero policy rewrote to %q", got)
	}
}

func TestRetryHandlerBackoffAndExhaustion(t *testing.T) {
	h := NewRetryHandler(2, time.Millisecond)
	done := make(chan struct{}, 4)
	fn := func() { done <- struct{}{} }

	if !h.Retry(fn) {
		t.Fatal("first retry refused")
	}
	<-done
	if !h.Retry(fn) {
		t.Fatal("second retry refused")
	}
	<-done
	if h.Count() != 2 {
		t.Fatalf("count = %d, want 2", h.Count())
	}
	if h.Retry(fn) {
		t.Fatal("third retry allowed past budget")
	}
	// Exhaustion resets the counter so a later attempt starts fresh.
	if h.Count() != 0 {
		t.Fatalf("count after exhaustion = %d, want 0", h.Count())
	}
}

func TestRetryHandlerClearCancelsPending(t *testing.T) {
	h := NewRetryHandler(3, 20*time.Millisecond)
	fired := make(chan struct{}, 1)
	h.Retry(func() { fired <- struct{}{} })
	h.Clear()
	select {
	case <-fired:
		t.Fatal("cleared retry still fired")
	case <-time.After(80 * time.Millisecond):
	}
}

func TestRetryHandlerReset(t *testing.T) {
	h := NewRetryHandler(3, time.Millisecond)
	done := make(chan struct{}, 1)
	h.Retry(func() { done <- struct{}{} })
	<-done
	h.Reset()
	if h.Count() != 0 {
		t.Fatalf("count after reset = %d", h.Count())
	}
}
