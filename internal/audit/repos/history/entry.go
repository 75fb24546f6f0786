package history

import (
	"fmt"
	"time"

	"github.com/tinylib/msgp/msgp"
)

// Entry records when a hostname was reported and by which run.
type Entry struct {
	RunID      string
	ReportedAt time.Time
}

// MarshalMsg appends the MessagePack encoding of e to b.
func (e Entry) MarshalMsg(b []byte) ([]byte, error) {
	b = msgp.AppendMapHeader(b, 2)
	b = msgp.AppendString(b, "run")
	b = msgp.AppendString(b, e.RunID)
	b = msgp.AppendString(b, "at")
	b = msgp.AppendTime(b, e.ReportedAt)
	return b, nil
}

// UnmarshalMsg decodes e from bts and returns the remaining bytes.
// Unknown keys are skipped.
func (e *Entry) UnmarshalMsg(bts []byte) ([]byte, error) {
	sz, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, fmt.Errorf("history entry header: %w", err)
	}
	for i := uint32(0); i < sz; i++ {
		var key string
		key, bts, err = msgp.ReadStringBytes(bts)
		if err != nil {
			return bts, fmt.Errorf("history entry key: %w", err)
		}
		switch key {
		case "run":
			e.RunID, bts, err = msgp.ReadStringBytes(bts)
		case "at":
			e.ReportedAt, bts, err = msgp.ReadTimeBytes(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, fmt.Errorf("history entry field %q: %w", key, err)
		}
	}
	return bts, nil
}
