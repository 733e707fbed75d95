package continuity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vijayboopathy/confluent-debezium-connectors-test/src/cdcevent"
	"github.com/vijayboopathy/confluent-debezium-connectors-test/src/verifier"
)

func marker(t *testing.T, timeline, lsn string) cdcevent.PositionMarker {
	t.Helper()
	m, err := cdcevent.NewPositionMarker(timeline, lsn)
	assert.NoError(t, err)
	return m
}

func TestClassifySameMarkerIsPreserved(t *testing.T) {
	p := marker(t, "t1", "0/16B3748")
	c := Classify(p, p)
	assert.Equal(t, MODE_PRESERVED, c.Mode)
	assert.Equal(t, REASON_RESUME_SAFE, c.Reason)
}

func TestClassifyAdvancingPositionIsPreserved(t *testing.T) {
	pre := marker(t, "t1", "0/1000000")
	post := marker(t, "t1", "0/2000000")
	c := Classify(pre, post)
	assert.Equal(t, MODE_PRESERVED, c.Mode)
}

func TestClassifyRegression(t *testing.T) {
	pre := marker(t, "t1", "0/2000000")
	post := marker(t, "t1", "0/1000000")
	c := Classify(pre, post)
	assert.Equal(t, MODE_INVALIDATED, c.Mode)
	assert.Equal(t, REASON_REGRESSION, c.Reason)
}

func TestClassifyTimelineChange(t *testing.T) {
	pre := cdcevent.PositionMarker{Timeline: "t1", LSN: 100}
	post := cdcevent.PositionMarker{Timeline: "t2", LSN: 5}
	c := Classify(pre, post)
	assert.Equal(t, MODE_INVALIDATED, c.Mode)
	assert.Equal(t, REASON_TIMELINE_CHANGE, c.Reason)
}

func TestClassifyMissingPosition(t *testing.T) {
	pre := marker(t, "t1", "0/1000000")
	c := Classify(pre, cdcevent.PositionMarker{})
	assert.Equal(t, MODE_INVALIDATED, c.Mode)
	assert.Equal(t, REASON_MISSING_POSITION, c.Reason)
}

func TestClassifySnapshotsUnparsablePost(t *testing.T) {
	pre := &OffsetSnapshot{Timeline: "t1", LSN: "0/1000000"}
	post := &OffsetSnapshot{Timeline: "t1", LSN: "not-an-lsn"}
	c, err := ClassifySnapshots(pre, post)
	assert.NoError(t, err)
	assert.Equal(t, MODE_INVALIDATED, c.Mode)
	assert.Equal(t, REASON_MISSING_POSITION, c.Reason)
}

func TestClassifySnapshotsUnparsablePreIsAnError(t *testing.T) {
	pre := &OffsetSnapshot{Timeline: "t1", LSN: "not-an-lsn"}
	post := &OffsetSnapshot{Timeline: "t1", LSN: "0/1000000"}
	_, err := ClassifySnapshots(pre, post)
	assert.Error(t, err)
}

func TestClassifySnapshotsVersionDowngradeNote(t *testing.T) {
	pre := &OffsetSnapshot{Timeline: "t1", LSN: "0/1000000", ServerVersion: "15.4"}
	post := &OffsetSnapshot{Timeline: "t1", LSN: "0/2000000", ServerVersion: "14.9"}
	c, err := ClassifySnapshots(pre, post)
	assert.NoError(t, err)
	assert.Equal(t, MODE_PRESERVED, c.Mode)
	assert.Len(t, c.Notes, 1)
	assert.Contains(t, c.Notes[0], "moved backward")
}

func TestClassifySnapshotsUpgradeHasNoNotes(t *testing.T) {
	pre := &OffsetSnapshot{Timeline: "t1", LSN: "0/1000000", ServerVersion: "14.9"}
	post := &OffsetSnapshot{Timeline: "t1", LSN: "0/2000000", ServerVersion: "15.4"}
	c, err := ClassifySnapshots(pre, post)
	assert.NoError(t, err)
	assert.Empty(t, c.Notes)
}

func TestRecommendedVerifierMode(t *testing.T) {
	preserved := Classification{Mode: MODE_PRESERVED}
	invalidated := Classification{Mode: MODE_INVALIDATED}

	mode, err := RecommendedVerifierMode(preserved, POLICY_CHANGES_ONLY)
	assert.NoError(t, err)
	assert.Equal(t, verifier.MODE_ZERO_GAP_ZERO_DUP, mode)

	mode, err = RecommendedVerifierMode(invalidated, POLICY_CHANGES_ONLY)
	assert.NoError(t, err)
	assert.Equal(t, verifier.MODE_GAP_OK_ZERO_DUP, mode)

	mode, err = RecommendedVerifierMode(invalidated, POLICY_RESNAPSHOT)
	assert.NoError(t, err)
	assert.Equal(t, verifier.MODE_ZERO_GAP_DUP_OK, mode)

	_, err = RecommendedVerifierMode(invalidated, "nonsense")
	assert.Error(t, err)
}

func TestConnectorSnapshotMode(t *testing.T) {
	assert.Equal(t, "never", Classification{Mode: MODE_PRESERVED}.ConnectorSnapshotMode())
	assert.Equal(t, "initial", Classification{Mode: MODE_INVALIDATED}.ConnectorSnapshotMode())
}

func TestLoadOffsetSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offsets-before.json")
	err := os.WriteFile(path, []byte(`{"timeline":"t1","lsn":"0/16B3748","server_version":"15.4"}`), 0644)
	assert.NoError(t, err)

	snapshot, err := LoadOffsetSnapshot(path)
	assert.NoError(t, err)
	assert.Equal(t, "t1", snapshot.Timeline)

	m, err := snapshot.Marker()
	assert.NoError(t, err)
	assert.Equal(t, "t1@0/16B3748", m.String())
}
