package connector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeStatusFile(t *testing.T, payload string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "connector-status.json")
	err := os.WriteFile(path, []byte(payload), 0644)
	assert.NoError(t, err)
	return path
}

func TestReadStatusRunning(t *testing.T) {
	path := writeStatusFile(t, `{
		"name": "postgres-source",
		"connector": {"state": "RUNNING", "worker_id": "connect:8083"},
		"tasks": [{"id": 0, "state": "RUNNING"}]
	}`)

	status, err := ReadStatus(path)
	assert.NoError(t, err)
	assert.Equal(t, "postgres-source", status.Name)

	state, err := status.LifecycleState()
	assert.NoError(t, err)
	assert.Equal(t, STATE_RUNNING, state)
}

func TestLifecycleStatePausedIsStopped(t *testing.T) {
	for _, connectState := range []string{"PAUSED", "STOPPED", "UNASSIGNED", ""} {
		status := &Status{}
		status.Connector.State = connectState
		state, err := status.LifecycleState()
		assert.NoError(t, err)
		assert.Equalf(t, STATE_STOPPED, state, "connect state %q", connectState)
	}
}

func TestLifecycleStateFailedTask(t *testing.T) {
	path := writeStatusFile(t, `{
		"name": "postgres-source",
		"connector": {"state": "RUNNING"},
		"tasks": [{"id": 0, "state": "FAILED", "trace": "org.postgresql.util.PSQLException"}]
	}`)

	status, err := ReadStatus(path)
	assert.NoError(t, err)
	_, err = status.LifecycleState()
	assert.Error(t, err)
}

func TestLifecycleStateUnknown(t *testing.T) {
	status := &Status{}
	status.Connector.State = "DESTROYED"
	_, err := status.LifecycleState()
	assert.Error(t, err)
}

func TestLifecycleTransitions(t *testing.T) {
	lifecycle, err := NewLifecycle(STATE_RUNNING)
	assert.NoError(t, err)

	assert.NoError(t, lifecycle.TransitionTo(STATE_STOPPED))
	assert.Equal(t, STATE_STOPPED, lifecycle.State())

	assert.NoError(t, lifecycle.TransitionTo(STATE_STOPPED)) // no-op
	assert.NoError(t, lifecycle.TransitionTo(STATE_RUNNING))
	assert.Equal(t, STATE_RUNNING, lifecycle.State())

	assert.Error(t, lifecycle.TransitionTo("EXPLODED"))
}

func TestEnsureState(t *testing.T) {
	path := writeStatusFile(t, `{
		"name": "postgres-source",
		"connector": {"state": "PAUSED"},
		"tasks": []
	}`)

	assert.NoError(t, EnsureState(path, STATE_STOPPED))
	assert.Error(t, EnsureState(path, STATE_RUNNING))
	assert.Error(t, EnsureState(path, "BOGUS"))
	assert.Error(t, EnsureState(filepath.Join(t.TempDir(), "missing.json"), STATE_RUNNING))
}
