/*
Copyright (c) Vijay Boopathy.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cdcevent

import (
	"fmt"
	"strings"

	goerrors "github.com/go-errors/errors"
	"github.com/goccy/go-json"
	"github.com/samber/lo"
)

// Operation kinds, following the Debezium op codes.
const (
	OP_CREATE        = "c"
	OP_UPDATE        = "u"
	OP_DELETE        = "d"
	OP_READ_SNAPSHOT = "r"
)

var validOps = []string{OP_CREATE, OP_UPDATE, OP_DELETE, OP_READ_SNAPSHOT}

// ChangeEvent is one captured mutation (or one snapshot row read),
// as dumped by the capture sink, one JSON object per line.
type ChangeEvent struct {
	Key              string          `json:"key"`
	Table            string          `json:"table"`
	Op               string          `json:"op"`
	Position         PositionMarker  `json:"position"`
	TxID             int64           `json:"tx_id"`
	SourceTimeMillis int64           `json:"ts_ms"`
	Payload          json.RawMessage `json:"payload"`
}

func (e *ChangeEvent) String() string {
	return fmt.Sprintf("ChangeEvent{key=%v, table=%v, op=%v, position=%v, txId=%v}",
		e.Key, e.Table, e.Op, e.Position, e.TxID)
}

// IsStateBearing reports whether the event carries row state that counts
// towards the reference set. Deletes are tracked separately since a deleted
// key is expected to disappear from the reference set.
func (e *ChangeEvent) IsStateBearing() bool {
	return lo.Contains([]string{OP_CREATE, OP_UPDATE, OP_READ_SNAPSHOT}, e.Op)
}

func (e *ChangeEvent) IsSnapshotRead() bool {
	return e.Op == OP_READ_SNAPSHOT
}

// MalformedEventError wraps a capture line that could not be parsed into a
// usable ChangeEvent. Malformed events are recovered locally by the caller
// (counted, never propagated as a failure) unless its tolerance is exceeded.
type MalformedEventError struct {
	Line  string
	Cause error
}

func (m *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed change event %q: %v", truncateLine(m.Line), m.Cause)
}

func (m *MalformedEventError) Unwrap() error {
	return m.Cause
}

func truncateLine(line string) string {
	const max = 120
	if len(line) > max {
		return line[:max] + "..."
	}
	return line
}

// rawEvent is the wire shape written by the capture sink: a flattened
// Debezium envelope with the source block reduced to position fields.
type rawEvent struct {
	Op     string `json:"op"`
	Table  string `json:"table"`
	Key    any    `json:"key"`
	TsMs   int64  `json:"ts_ms"`
	Source struct {
		LSN      string `json:"lsn"`
		TxID     int64  `json:"txId"`
		Timeline string `json:"timeline"`
	} `json:"source"`
	Payload json.RawMessage `json:"payload"`
}

// ParseEvent parses one capture line. Any parse or field-validation failure
// is returned as a *MalformedEventError.
func ParseEvent(line []byte) (*ChangeEvent, error) {
	var raw rawEvent
	err := json.Unmarshal(line, &raw)
	if err != nil {
		return nil, &MalformedEventError{Line: string(line), Cause: err}
	}

	if !lo.Contains(validOps, raw.Op) {
		return nil, &MalformedEventError{Line: string(line), Cause: goerrors.Errorf("unknown op %q", raw.Op)}
	}
	key := normalizeKey(raw.Key)
	if key == "" {
		return nil, &MalformedEventError{Line: string(line), Cause: goerrors.Errorf("missing entity key")}
	}
	if raw.Source.Timeline == "" {
		return nil, &MalformedEventError{Line: string(line), Cause: goerrors.Errorf("missing timeline token")}
	}
	position, err := NewPositionMarker(raw.Source.Timeline, raw.Source.LSN)
	if err != nil {
		return nil, &MalformedEventError{Line: string(line), Cause: err}
	}

	return &ChangeEvent{
		Key:              key,
		Table:            raw.Table,
		Op:               raw.Op,
		Position:         position,
		TxID:             raw.Source.TxID,
		SourceTimeMillis: raw.TsMs,
		Payload:          raw.Payload,
	}, nil
}

// normalizeKey renders scalar primary-key values (string or numeric) to a
// canonical string. Composite keys arrive pre-joined by the sink.
func normalizeKey(key any) string {
	switch k := key.(type) {
	case string:
		return strings.TrimSpace(k)
	case float64:
		// go-json decodes JSON numbers into float64 for `any` targets.
		if k == float64(int64(k)) {
			return fmt.Sprintf("%d", int64(k))
		}
		return fmt.Sprintf("%v", k)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", k)
	}
}
