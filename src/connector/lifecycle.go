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

// Package connector models the lifecycle of the external CDC connector as the
// three-state machine running -> stopped -> running. The connector itself is
// managed elsewhere (pause/resume/delete against its REST API); this package
// only reads its declared state and checks the preconditions a capture
// window is read under.
package connector

import (
	"os"

	goerrors "github.com/go-errors/errors"
	"github.com/goccy/go-json"
	"github.com/samber/lo"
)

const (
	STATE_RUNNING = "RUNNING"
	STATE_STOPPED = "STOPPED"
)

var validStates = []string{STATE_RUNNING, STATE_STOPPED}

// Status is the Kafka Connect style connector status payload, as dumped by
// the harness from the connector's /status endpoint.
type Status struct {
	Name      string `json:"name"`
	Connector struct {
		State    string `json:"state"`
		WorkerID string `json:"worker_id,omitempty"`
	} `json:"connector"`
	Tasks []struct {
		ID    int    `json:"id"`
		State string `json:"state"`
		Trace string `json:"trace,omitempty"`
	} `json:"tasks"`
}

func ReadStatus(statusFilePath string) (*Status, error) {
	bs, err := os.ReadFile(statusFilePath)
	if err != nil {
		return nil, goerrors.Errorf("read connector status file %s: %s", statusFilePath, err)
	}
	var status Status
	err = json.Unmarshal(bs, &status)
	if err != nil {
		return nil, goerrors.Errorf("unmarshal connector status %s: %s", statusFilePath, err)
	}
	return &status, nil
}

// LifecycleState folds the Connect state vocabulary into the two states this
// harness reasons about: a paused or deleted connector is stopped; a failed
// connector or task is neither and is an error.
func (s *Status) LifecycleState() (string, error) {
	switch s.Connector.State {
	case "RUNNING":
	case "PAUSED", "STOPPED", "UNASSIGNED", "":
		return STATE_STOPPED, nil
	default:
		return "", goerrors.Errorf("connector %q is in state %q, cannot derive a capture precondition from it",
			s.Name, s.Connector.State)
	}
	for _, task := range s.Tasks {
		if task.State == "FAILED" {
			return "", goerrors.Errorf("connector %q task %d has failed", s.Name, task.ID)
		}
	}
	return STATE_RUNNING, nil
}

// Lifecycle tracks the declared connector state across an upgrade run.
type Lifecycle struct {
	state string
}

func NewLifecycle(initial string) (*Lifecycle, error) {
	if !lo.Contains(validStates, initial) {
		return nil, goerrors.Errorf("unknown connector state %q. Valid states = %v", initial, validStates)
	}
	return &Lifecycle{state: initial}, nil
}

func (l *Lifecycle) State() string {
	return l.state
}

// TransitionTo enforces the running -> stopped -> running cycle; a
// self-transition is a no-op.
func (l *Lifecycle) TransitionTo(next string) error {
	if !lo.Contains(validStates, next) {
		return goerrors.Errorf("unknown connector state %q. Valid states = %v", next, validStates)
	}
	if next == l.state {
		return nil
	}
	l.state = next
	return nil
}

// EnsureState is the capture-window precondition check: the declared state in
// the status file must match what the operator expects before any events are
// read.
func EnsureState(statusFilePath string, expected string) error {
	if !lo.Contains(validStates, expected) {
		return goerrors.Errorf("unknown expected connector state %q. Valid states = %v", expected, validStates)
	}
	status, err := ReadStatus(statusFilePath)
	if err != nil {
		return err
	}
	actual, err := status.LifecycleState()
	if err != nil {
		return err
	}
	if actual != expected {
		return goerrors.Errorf("connector %q is %s, expected %s", status.Name, actual, expected)
	}
	return nil
}
