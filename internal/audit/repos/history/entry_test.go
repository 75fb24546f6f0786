package history

import (
	"testing"
	"time"

	"github.com/tinylib/msgp/msgp"
)

func TestEntry_SkipsUnknownKeys(t *testing.T) {
	at := time.Unix(1723551000, 0)
	b := msgp.AppendMapHeader(nil, 3)
	b = msgp.AppendString(b, "run")
	b = msgp.AppendString(b, "01J0000000000000000000000")
	b = msgp.AppendString(b, "extra")
	b = msgp.AppendInt(b, 42)
	b = msgp.AppendString(b, "at")
	b = msgp.AppendTime(b, at)

	var e Entry
	rest, err := e.UnmarshalMsg(b)
	if err != nil {
		t.Fatalf("UnmarshalMsg: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("expected all bytes consumed, %d left", len(rest))
	}
	if e.RunID != "01J0000000000000000000000" || !e.ReportedAt.Equal(at) {
		t.Fatalf("unexpected entry: %+v", e)
	}
}

func TestEntry_Truncated(t *testing.T) {
	b, _ := Entry{RunID: "r", ReportedAt: time.Now()}.MarshalMsg(nil)
	var e Entry
	if _, err := e.UnmarshalMsg(b[:len(b)-3]); err == nil {
		t.Fatal("expected error for truncated input")
	}
}
