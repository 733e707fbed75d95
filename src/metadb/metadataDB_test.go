package metadb

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vijayboopathy/confluent-debezium-connectors-test/src/verifier"
)

func TestCreateAndInitMetaDBIfRequired(t *testing.T) {
	exportDir := t.TempDir()

	err := CreateAndInitMetaDBIfRequired(exportDir)
	assert.NoError(t, err)

	// Second call is a no-op on an already-inited db.
	err = CreateAndInitMetaDBIfRequired(exportDir)
	assert.NoError(t, err)
}

func TestRecordAndGetVerificationRuns(t *testing.T) {
	exportDir := t.TempDir()
	err := CreateAndInitMetaDBIfRequired(exportDir)
	assert.NoError(t, err)

	db, err := NewMetaDB(exportDir)
	assert.NoError(t, err)
	defer db.Close()

	report := &verifier.VerificationReport{
		Mode:           verifier.MODE_ZERO_GAP_ZERO_DUP,
		Verdict:        verifier.VERDICT_GAP,
		TotalCount:     7,
		UniqueKeyCount: 7,
		GapEstimate:    3,
		ReferenceCount: 10,
	}
	err = db.RecordVerificationRun("run-1", report)
	assert.NoError(t, err)

	runs, err := db.GetVerificationRuns()
	assert.NoError(t, err)
	assert.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].RunID)
	assert.Equal(t, verifier.VERDICT_GAP, runs[0].Verdict)
	assert.Equal(t, 3, runs[0].Report.GapEstimate)
	assert.Equal(t, report.Mode, runs[0].Report.Mode)
}

func TestDuplicateRunIDIsRejected(t *testing.T) {
	exportDir := t.TempDir()
	err := CreateAndInitMetaDBIfRequired(exportDir)
	assert.NoError(t, err)

	db, err := NewMetaDB(exportDir)
	assert.NoError(t, err)
	defer db.Close()

	report := &verifier.VerificationReport{Mode: verifier.MODE_GAP_OK_ZERO_DUP, Verdict: verifier.VERDICT_PASS}
	assert.NoError(t, db.RecordVerificationRun("run-1", report))
	assert.Error(t, db.RecordVerificationRun("run-1", report))
}

func TestGetVerificationRunsOrder(t *testing.T) {
	exportDir := t.TempDir()
	err := CreateAndInitMetaDBIfRequired(exportDir)
	assert.NoError(t, err)

	db, err := NewMetaDB(exportDir)
	assert.NoError(t, err)
	defer db.Close()

	for i := 0; i < 3; i++ {
		report := &verifier.VerificationReport{Mode: verifier.MODE_ZERO_GAP_DUP_OK, Verdict: verifier.VERDICT_PASS}
		assert.NoError(t, db.RecordVerificationRun(fmt.Sprintf("run-%d", i), report))
	}

	runs, err := db.GetVerificationRuns()
	assert.NoError(t, err)
	assert.Len(t, runs, 3)
}
