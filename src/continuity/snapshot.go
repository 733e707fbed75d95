package continuity

import (
	"time"

	"github.com/vijayboopathy/confluent-debezium-connectors-test/src/cdcevent"
	"github.com/vijayboopathy/confluent-debezium-connectors-test/src/utils/jsonfile"
)

// OffsetSnapshot is the operator-captured record of the connector's position
// at one side of an upgrade boundary: the confirmed flush LSN of the
// replication slot, the timeline token, and the server version in effect.
type OffsetSnapshot struct {
	Timeline      string    `json:"timeline"`
	LSN           string    `json:"lsn"`
	ServerVersion string    `json:"server_version,omitempty"`
	CapturedAt    time.Time `json:"captured_at,omitempty"`
}

func (s *OffsetSnapshot) Marker() (cdcevent.PositionMarker, error) {
	return cdcevent.NewPositionMarker(s.Timeline, s.LSN)
}

func LoadOffsetSnapshot(filePath string) (*OffsetSnapshot, error) {
	return jsonfile.NewJsonFile[OffsetSnapshot](filePath).Read()
}
