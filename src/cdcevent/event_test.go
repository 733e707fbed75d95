package cdcevent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEvent(t *testing.T) {
	line := `{"op":"c","table":"public.orders","key":42,"ts_ms":1700000000000,` +
		`"source":{"lsn":"0/16B3748","txId":731,"timeline":"t1"},"payload":{"id":42,"status":"pending"}}`

	event, err := ParseEvent([]byte(line))
	assert.NoError(t, err)
	assert.Equal(t, "42", event.Key)
	assert.Equal(t, "public.orders", event.Table)
	assert.Equal(t, OP_CREATE, event.Op)
	assert.Equal(t, "t1", event.Position.Timeline)
	assert.Equal(t, int64(731), event.TxID)
	assert.Equal(t, int64(1700000000000), event.SourceTimeMillis)
	assert.True(t, event.IsStateBearing())
	assert.False(t, event.IsSnapshotRead())
}

func TestParseEventStringKey(t *testing.T) {
	line := `{"op":"r","table":"public.customers","key":"cust-17",` +
		`"source":{"lsn":"0/16B3748","timeline":"t1"}}`

	event, err := ParseEvent([]byte(line))
	assert.NoError(t, err)
	assert.Equal(t, "cust-17", event.Key)
	assert.True(t, event.IsSnapshotRead())
	assert.True(t, event.IsStateBearing())
}

func TestParseEventDeleteIsNotStateBearing(t *testing.T) {
	line := `{"op":"d","table":"public.orders","key":7,"source":{"lsn":"0/16B3748","timeline":"t1"}}`

	event, err := ParseEvent([]byte(line))
	assert.NoError(t, err)
	assert.False(t, event.IsStateBearing())
}

func TestParseEventMalformed(t *testing.T) {
	malformedLines := []string{
		`not json at all`,
		`{"op":"x","table":"t","key":1,"source":{"lsn":"0/1","timeline":"t1"}}`, // unknown op
		`{"op":"c","table":"t","source":{"lsn":"0/1","timeline":"t1"}}`,         // missing key
		`{"op":"c","table":"t","key":1,"source":{"lsn":"0/1"}}`,                 // missing timeline
		`{"op":"c","table":"t","key":1,"source":{"lsn":"junk","timeline":"t1"}}`, // bad lsn
	}
	for _, line := range malformedLines {
		_, err := ParseEvent([]byte(line))
		assert.Errorf(t, err, "expected error for line %q", line)
		var malformed *MalformedEventError
		assert.ErrorAsf(t, err, &malformed, "expected MalformedEventError for line %q", line)
	}
}
