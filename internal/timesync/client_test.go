package timesync

import (
	"context"
	"sync"
	"testing"
	"time"

	"wheellybridge/bridge/internal/wireproto"
)

type fakeSender struct {
	mu    sync.Mutex
	lines []string
}

func (f *fakeSender) Send(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, line)
}

func (f *fakeSender) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.lines) == 0 {
		return ""
	}
	return f.lines[len(f.lines)-1]
}

func TestHandleEchoComputesOffset(t *testing.T) {
	//1.- A single round of probes must average to the expected offset.
	sender := &fakeSender{}
	client := New(Config{ProbesPerRound: 2, Timeout: time.Second}, sender, nil)

	now := time.UnixMilli(1_000_000)
	client.cfg.Now = func() time.Time { return now }
	client.sendRound()

	if len(sender.lines) != 2 {
		t.Fatalf("expected 2 probes sent, got %d", len(sender.lines))
	}

	origin1 := int64(1_000_000)
	origin2 := int64(1_000_001)

	//2.- Both probes see the same 320ms remote-ahead/latency profile, so the
	// per-sample offset (receive - origin - latency) is 300 for each and
	// the round mean must match.
	client.HandleEcho(wireproto.Clock{
		LocalTimestampMs:        origin1,
		HasRemoteFields:         true,
		ReceiveRemoteTimestamp:  origin1 + 320,
		TransmitRemoteTimestamp: origin1 + 320,
	}, origin1+40)

	if client.Offset() != 0 {
		t.Fatalf("expected offset unchanged before round completes, got %d", client.Offset())
	}

	client.HandleEcho(wireproto.Clock{
		LocalTimestampMs:        origin2,
		HasRemoteFields:         true,
		ReceiveRemoteTimestamp:  origin2 + 320,
		TransmitRemoteTimestamp: origin2 + 320,
	}, origin2+40)

	if client.Offset() != 300 {
		t.Fatalf("expected offset 300, got %d", client.Offset())
	}
}

func TestHandleEchoMatchesClockAlignmentScenario(t *testing.T) {
	//1.- origin=1000, receive=2100, transmit=2102, destination=1004 must
	// settle near offset 1100, per the documented end-to-end scenario.
	client := New(Config{ProbesPerRound: 1, Timeout: time.Minute}, &fakeSender{}, nil)
	client.cfg.Now = func() time.Time { return time.UnixMilli(1000) }
	client.pending[1000] = time.UnixMilli(1000)

	client.HandleEcho(wireproto.Clock{
		LocalTimestampMs:        1000,
		HasRemoteFields:         true,
		ReceiveRemoteTimestamp:  2100,
		TransmitRemoteTimestamp: 2102,
	}, 1004)

	if got := client.Offset(); got < 1098 || got > 1100 {
		t.Fatalf("expected offset near 1100, got %d", got)
	}
}

func TestHandleEchoIgnoresUnknownOrigin(t *testing.T) {
	//1.- An echo that references a probe we never sent must be dropped.
	client := New(Config{ProbesPerRound: 1}, &fakeSender{}, nil)
	client.HandleEcho(wireproto.Clock{
		LocalTimestampMs:        42,
		HasRemoteFields:         true,
		ReceiveRemoteTimestamp:  50,
		TransmitRemoteTimestamp: 50,
	}, 100)
	if client.Offset() != 0 {
		t.Fatalf("expected offset to stay at zero, got %d", client.Offset())
	}
}

func TestFromRemoteToRemoteRoundTrip(t *testing.T) {
	client := New(Config{}, &fakeSender{}, nil)
	client.offset.Store(250)

	//1.- Converting a remote timestamp and back must recover the original.
	remote := int64(5000)
	local := client.FromRemote(remote)
	if got := client.ToRemote(local); got != remote {
		t.Fatalf("round trip mismatch: got %d, want %d", got, remote)
	}
}

func TestStartSendsOnInterval(t *testing.T) {
	sender := &fakeSender{}
	client := New(Config{Interval: 10 * time.Millisecond, ProbesPerRound: 1}, sender, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for sender.last() == "" {
		if time.Now().After(deadline) {
			t.Fatal("client never sent a probe")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
