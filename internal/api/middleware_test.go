package api

import (
	"testing"
	"time"
)

func TestClientLimiterSeparatesClientsAndSweeps(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newClientLimiter(1, 1)
	l.now = func() time.Time { return now }

	if !l.allow("10.0.0.1") || l.allow("10.0.0.1") {
		t.Fatalf("expected one request per second for the first client")
	}
	if !l.allow("10.0.0.2") {
		t.Fatalf("second client must have its own bucket")
	}

	now = now.Add(time.Second)
	if !l.allow("10.0.0.1") {
		t.Fatalf("bucket should refill after a second")
	}

	now = now.Add(idleTTL + time.Minute)
	l.allow("10.0.0.3")
	if len(l.clients) != 1 {
		t.Fatalf("idle buckets not swept: %d remain", len(l.clients))
	}
}
