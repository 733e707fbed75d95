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

// Package continuity decides whether a database upgrade preserved the
// replication-offset sequence the connector resumes from, or started a new,
// unrelated one. The decision is made offline against two offset snapshots
// captured around the upgrade boundary, with no writer activity between the
// capture and the upgrade.
package continuity

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
	version "github.com/hashicorp/go-version"

	"github.com/vijayboopathy/confluent-debezium-connectors-test/src/cdcevent"
	"github.com/vijayboopathy/confluent-debezium-connectors-test/src/verifier"
)

const (
	MODE_PRESERVED   = "preserved"
	MODE_INVALIDATED = "invalidated"
)

const (
	REASON_RESUME_SAFE      = "resume safe"
	REASON_TIMELINE_CHANGE  = "timeline change"
	REASON_REGRESSION       = "regression"
	REASON_MISSING_POSITION = "missing position"
)

// Policies for an invalidated offset: either skip historical state and emit
// only new changes, or re-emit full historical state through a fresh snapshot.
// The classifier never chooses between them; the operator declares one.
const (
	POLICY_CHANGES_ONLY = "changes-only"
	POLICY_RESNAPSHOT   = "resnapshot"
)

type Classification struct {
	Mode   string   `json:"mode"`
	Reason string   `json:"reason"`
	Notes  []string `json:"notes,omitempty"`
}

func (c Classification) Preserved() bool {
	return c.Mode == MODE_PRESERVED
}

// ConnectorSnapshotMode is the snapshot.mode the connector should be
// recreated with: changes-only resume when the stored offset is still valid,
// fresh read otherwise.
func (c Classification) ConnectorSnapshotMode() string {
	if c.Preserved() {
		return "never"
	}
	return "initial"
}

/*
Classify determines whether the post-upgrade position continues the
pre-upgrade position sequence. Pure function; the caller is responsible for
acquiring stable pre/post snapshots.

  - same timeline, non-decreasing position: preserved. Safe to resume from the
    stored offset with no induced duplicates or gaps.
  - different timelines, or a missing post position: invalidated. The stored
    offset cannot locate a point in the new timeline; resuming against it may
    silently skip data or error.
  - same timeline but a decreasing position: invalidated with reason
    "regression". A position moving backward on one timeline indicates an
    unreliable witness (e.g. a stale read), not a valid resume point.
*/
func Classify(pre, post cdcevent.PositionMarker) Classification {
	if pre.IsZero() || post.IsZero() {
		return Classification{Mode: MODE_INVALIDATED, Reason: REASON_MISSING_POSITION}
	}
	cmp, err := pre.Compare(post)
	if err != nil {
		return Classification{Mode: MODE_INVALIDATED, Reason: REASON_TIMELINE_CHANGE}
	}
	if cmp > 0 {
		return Classification{Mode: MODE_INVALIDATED, Reason: REASON_REGRESSION}
	}
	return Classification{Mode: MODE_PRESERVED, Reason: REASON_RESUME_SAFE}
}

// ClassifySnapshots classifies from the on-disk snapshot files. An unreadable
// post position is itself a classification input (invalidated, missing
// position), not an error; only an unusable pre snapshot aborts.
func ClassifySnapshots(pre, post *OffsetSnapshot) (Classification, error) {
	preMarker, err := pre.Marker()
	if err != nil {
		return Classification{}, goerrors.Errorf("pre-upgrade snapshot unusable: %s", err)
	}
	postMarker, err := post.Marker()
	if err != nil {
		return Classification{Mode: MODE_INVALIDATED, Reason: REASON_MISSING_POSITION}, nil
	}

	c := Classify(preMarker, postMarker)
	c.Notes = append(c.Notes, versionNotes(pre, post)...)
	return c, nil
}

// versionNotes compares the server versions recorded in the two snapshots.
// A downgrade is a diagnostic note for the operator, never a verdict input.
func versionNotes(pre, post *OffsetSnapshot) []string {
	if pre.ServerVersion == "" || post.ServerVersion == "" {
		return nil
	}
	preVer, err := version.NewVersion(pre.ServerVersion)
	if err != nil {
		return []string{"pre-upgrade server version unparsable: " + pre.ServerVersion}
	}
	postVer, err := version.NewVersion(post.ServerVersion)
	if err != nil {
		return []string{"post-upgrade server version unparsable: " + post.ServerVersion}
	}
	if postVer.LessThan(preVer) {
		return []string{fmt.Sprintf("server version moved backward across the upgrade: %s -> %s",
			pre.ServerVersion, post.ServerVersion)}
	}
	return nil
}

// RecommendedVerifierMode maps a classification onto the invariants the
// event-set verifier must enforce downstream:
//
//   - preserved: the connector resumes from the stored offset and must
//     neither duplicate nor skip events.
//   - invalidated + changes-only: a gap of exactly the mutations committed
//     across the upgrade window is expected; duplicates are not.
//   - invalidated + resnapshot: re-emitted historical state duplicates prior
//     deliveries; a gap is not tolerated.
func RecommendedVerifierMode(c Classification, invalidatedPolicy string) (string, error) {
	if c.Preserved() {
		return verifier.MODE_ZERO_GAP_ZERO_DUP, nil
	}
	switch invalidatedPolicy {
	case POLICY_CHANGES_ONLY:
		return verifier.MODE_GAP_OK_ZERO_DUP, nil
	case POLICY_RESNAPSHOT:
		return verifier.MODE_ZERO_GAP_DUP_OK, nil
	default:
		return "", goerrors.Errorf("unknown policy for invalidated offsets: %q. Valid policies = [%s, %s]",
			invalidatedPolicy, POLICY_CHANGES_ONLY, POLICY_RESNAPSHOT)
	}
}
