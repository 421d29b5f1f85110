package bridgeerr

import (
	"errors"
	"testing"
)

func TestFatalClassification(t *testing.T) {
	//1.- Only config and codec-mismatch kinds are fatal per the propagation policy.
	fatal := map[Kind]bool{
		KindTransport:          false,
		KindMalformedMessage:   false,
		KindClockTimeout:       false,
		KindConfig:             true,
		KindCodecMismatch:      true,
		KindInconsistentStatus: false,
	}
	for kind, want := range fatal {
		if got := kind.Fatal(); got != want {
			t.Fatalf("%s.Fatal() = %v, want %v", kind, got, want)
		}
	}
}

func TestAsBridgeError(t *testing.T) {
	//1.- Only errors that are, or wrap, a bridge error are recognised; an
	// error that merely repeats a bridge error's text is not.
	wrapped := errors.New("boom")
	be := New(KindTransport, "dial", wrapped)
	outer := errors.New("outer: " + be.Error())
	if _, ok := AsBridgeError(outer); ok {
		t.Fatalf("expected plain string error not to be recognised as bridge error")
	}
	if got, ok := AsBridgeError(be); !ok || got.Kind != KindTransport {
		t.Fatalf("expected bridge error to be recognised, got %+v ok=%v", got, ok)
	}
}
