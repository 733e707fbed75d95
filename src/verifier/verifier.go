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

// Package verifier computes uniqueness, ordering and completeness properties
// of a captured change-event window against a reference row count, and
// classifies the pipeline's behaviour under the declared delivery mode.
package verifier

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"

	"github.com/vijayboopathy/confluent-debezium-connectors-test/src/cdcevent"
)

// Delivery modes. The continuity classification (plus the operator's policy
// for invalidated offsets) selects which one a capture window is verified
// under.
const (
	MODE_ZERO_GAP_ZERO_DUP = "zero_gap_zero_dup"
	MODE_GAP_OK_ZERO_DUP   = "gap_ok_zero_dup"
	MODE_ZERO_GAP_DUP_OK   = "zero_gap_dup_ok"
)

var ValidModes = []string{MODE_ZERO_GAP_ZERO_DUP, MODE_GAP_OK_ZERO_DUP, MODE_ZERO_GAP_DUP_OK}

const (
	VERDICT_PASS       = "PASS"
	VERDICT_GAP        = "GAP_DETECTED"
	VERDICT_DUPLICATES = "DUPLICATES_DETECTED"
	VERDICT_INVALID    = "INVALID"
)

// diagnosticSampleLimit caps how many per-event diagnostics of one kind are
// kept in the report; full samples still go to the log at debug level.
const diagnosticSampleLimit = 10

type Options struct {
	// ReferenceCountExact declares the reference count as known and exact,
	// which forces the invalid-event tolerance to zero.
	ReferenceCountExact bool

	// InvalidEventTolerance is the number of malformed/invalid events the
	// window may contain before the verdict becomes INVALID. Ignored when
	// ReferenceCountExact is set.
	InvalidEventTolerance int

	// MalformedCount is the number of capture lines the reader already
	// dropped as unparsable; folded into the invalid-event accounting.
	MalformedCount int
}

// VerificationReport is the read-only result of one verification run.
// Duplicate and gap counts are always both reported, whatever the verdict.
type VerificationReport struct {
	Mode                 string   `json:"mode"`
	Verdict              string   `json:"verdict"`
	TotalCount           int      `json:"total_count"`
	UniqueKeyCount       int      `json:"unique_key_count"`
	DuplicateCount       int      `json:"duplicate_count"`
	DeletedKeyCount      int      `json:"deleted_key_count"`
	SnapshotReadCount    int      `json:"snapshot_read_count"`
	InvalidEventCount    int      `json:"invalid_event_count"`
	OrderingAnomalyCount int      `json:"ordering_anomaly_count"`
	GapEstimate          int      `json:"gap_estimate"`
	ReferenceCount       int      `json:"reference_count"`
	Diagnostics          []string `json:"diagnostics,omitempty"`
}

func (r *VerificationReport) Passed() bool {
	return r.Verdict == VERDICT_PASS
}

func modeForbidsDuplicates(mode string) bool {
	return mode == MODE_ZERO_GAP_ZERO_DUP || mode == MODE_GAP_OK_ZERO_DUP
}

func modeForbidsGap(mode string) bool {
	return mode == MODE_ZERO_GAP_ZERO_DUP || mode == MODE_ZERO_GAP_DUP_OK
}

// modeForbidsSnapshotReads: snapshot replays are not expected when duplicates
// must be zero and no fresh baseline was requested.
func modeForbidsSnapshotReads(mode string) bool {
	return modeForbidsDuplicates(mode)
}

/*
Verify computes the VerificationReport for one capture window. It never
raises for malformed individual events; they are excluded from the counts and
accumulated into the invalid-event count, and only flip the verdict to
INVALID past the configured tolerance. The computation is deterministic:
verifying the same window twice yields identical reports.
*/
func Verify(events []cdcevent.ChangeEvent, referenceCount int, mode string, opts Options) VerificationReport {
	report := VerificationReport{
		Mode:           mode,
		ReferenceCount: referenceCount,
	}
	if !lo.Contains(ValidModes, mode) {
		report.Verdict = VERDICT_INVALID
		report.Diagnostics = append(report.Diagnostics,
			fmt.Sprintf("unknown verification mode %q, valid modes = %v", mode, ValidModes))
		return report
	}

	report.InvalidEventCount = opts.MalformedCount

	stateOccurrences := map[string]int{}
	deletedKeys := map[string]bool{}
	lastPositionByKey := map[string]cdcevent.PositionMarker{}
	timelines := map[string]bool{}

	for i := range events {
		event := &events[i]
		if invalidReason := validateEvent(event); invalidReason != "" {
			report.InvalidEventCount++
			if report.InvalidEventCount <= diagnosticSampleLimit {
				report.Diagnostics = append(report.Diagnostics,
					fmt.Sprintf("invalid event: %s (%s)", event, invalidReason))
			}
			log.Debugf("invalid event in capture window: %s", spew.Sdump(event))
			continue
		}
		report.TotalCount++
		timelines[event.Position.Timeline] = true

		if event.IsSnapshotRead() {
			report.SnapshotReadCount++
			if modeForbidsSnapshotReads(mode) && report.SnapshotReadCount <= diagnosticSampleLimit {
				report.Diagnostics = append(report.Diagnostics,
					fmt.Sprintf("unexpected snapshot read: %s", event))
			}
		}
		if event.Op == cdcevent.OP_DELETE {
			deletedKeys[event.Key] = true
		}
		if event.IsStateBearing() {
			stateOccurrences[event.Key]++
		}

		checkOrdering(&report, lastPositionByKey, event)
	}

	report.UniqueKeyCount = len(stateOccurrences)
	report.DeletedKeyCount = len(deletedKeys)
	report.DuplicateCount = countDuplicates(&report, stateOccurrences, mode)
	report.GapEstimate = max(0, referenceCount-report.UniqueKeyCount)

	ambiguous := len(timelines) > 1
	if ambiguous {
		report.Diagnostics = append(report.Diagnostics,
			fmt.Sprintf("capture window spans %d timelines and cannot be totally ordered: %v",
				len(timelines), sortedKeys(timelines)))
	}

	report.Verdict = deriveVerdict(&report, mode, opts, ambiguous)
	return report
}

func validateEvent(event *cdcevent.ChangeEvent) string {
	switch {
	case event.Key == "":
		return "missing entity key"
	case event.Op == "":
		return "missing operation kind"
	case event.Position.Timeline == "":
		return "missing timeline token"
	default:
		return ""
	}
}

// checkOrdering verifies that events sharing an entity key and a timeline
// arrive with non-decreasing positions. A violation is an ordering anomaly,
// surfaced in diagnostics only: real connectors interleave across keys, and
// an anomaly on one key does not by itself change the verdict.
func checkOrdering(report *VerificationReport, lastPositionByKey map[string]cdcevent.PositionMarker, event *cdcevent.ChangeEvent) {
	last, seen := lastPositionByKey[event.Key]
	if seen && last.Timeline == event.Position.Timeline {
		cmp, _ := last.Compare(event.Position)
		if cmp > 0 {
			report.OrderingAnomalyCount++
			if report.OrderingAnomalyCount <= diagnosticSampleLimit {
				report.Diagnostics = append(report.Diagnostics,
					fmt.Sprintf("ordering anomaly: key %s observed at %s after %s",
						event.Key, event.Position, last))
			}
		}
	}
	lastPositionByKey[event.Key] = event.Position
}

// countDuplicates sums, over keys, the state-bearing occurrences beyond the
// first. When the mode tolerates duplicates they are still counted, just not
// penalized in the verdict.
func countDuplicates(report *VerificationReport, stateOccurrences map[string]int, mode string) int {
	duplicates := 0
	duplicatedKeys := []string{}
	for key, n := range stateOccurrences {
		if n > 1 {
			duplicates += n - 1
			duplicatedKeys = append(duplicatedKeys, key)
		}
	}
	if len(duplicatedKeys) > 0 && modeForbidsDuplicates(mode) {
		slices.Sort(duplicatedKeys)
		if len(duplicatedKeys) > diagnosticSampleLimit {
			duplicatedKeys = duplicatedKeys[:diagnosticSampleLimit]
		}
		report.Diagnostics = append(report.Diagnostics,
			fmt.Sprintf("duplicated keys (sample): %v", duplicatedKeys))
	}
	return duplicates
}

// deriveVerdict applies the precedence INVALID > DUPLICATES_DETECTED >
// GAP_DETECTED > PASS. Kept in one place: the precedence between duplicate
// and gap findings is a policy choice, and both counts are reported in the
// report regardless of which one wins.
func deriveVerdict(report *VerificationReport, mode string, opts Options, ambiguousTimeline bool) string {
	tolerance := opts.InvalidEventTolerance
	if opts.ReferenceCountExact {
		tolerance = 0
	}

	switch {
	case report.InvalidEventCount > tolerance:
		return VERDICT_INVALID
	case ambiguousTimeline && modeForbidsSnapshotReads(mode):
		return VERDICT_INVALID
	case report.SnapshotReadCount > 0 && modeForbidsSnapshotReads(mode):
		return VERDICT_INVALID
	case report.DuplicateCount > 0 && modeForbidsDuplicates(mode):
		return VERDICT_DUPLICATES
	case report.GapEstimate > 0 && modeForbidsGap(mode):
		return VERDICT_GAP
	default:
		return VERDICT_PASS
	}
}

func sortedKeys(set map[string]bool) []string {
	keys := lo.Keys(set)
	slices.Sort(keys)
	return keys
}
