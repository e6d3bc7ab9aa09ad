package sandbox_test

import (
	"testing"

	"github.com/Strob0t/SandForge/internal/domain/sandbox"
)

func TestCommandEncodeOmitsZeroFields(t *testing.T) {
	data, err := sandbox.Init().Encode()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if string(data) != `{"type":"init"}` {
		t.Fatalf("init encoded as %s", data)
	}

	data, err = sandbox.Exec(3, "ls -la", 5000).Encode()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	want := `{"type":"exec","id":3,"cmd":"ls -la","timeout_ms":5000}`
	if string(data) != want {
		t.Fatalf("exec encoded as %s, want %s", data, want)
	}
}

func TestDecodeEvent(t *testing.T) {
	ev, err := sandbox.DecodeEvent([]byte(`{"type":"exit","id":7,"code":2}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if ev.Type != sandbox.EvtExit || ev.ID != 7 || ev.Code != 2 {
		t.Fatalf("decoded %+v", ev)
	}

	if _, err := sandbox.DecodeEvent([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed event")
	}
}
