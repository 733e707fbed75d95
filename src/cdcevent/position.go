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

	goerrors "github.com/go-errors/errors"
	"github.com/jackc/pglogrepl"
)

// ErrAmbiguousTimeline is returned when two position markers belong to
// different timelines. Such markers are not mutually comparable: a timeline
// change (slot recreated, restore from backup) starts a new, unrelated
// position sequence.
var ErrAmbiguousTimeline = goerrors.Errorf("position markers belong to different timelines and are not comparable")

/*
PositionMarker identifies a point in the source's change log. The raw value
is a Postgres-style log sequence number; the timeline token distinguishes
position sequences that must never be compared against each other.
*/
type PositionMarker struct {
	Timeline string        `json:"timeline"`
	LSN      pglogrepl.LSN `json:"lsn"`
}

func NewPositionMarker(timeline string, lsn string) (PositionMarker, error) {
	parsed, err := pglogrepl.ParseLSN(lsn)
	if err != nil {
		return PositionMarker{}, goerrors.Errorf("parse lsn %q: %s", lsn, err)
	}
	return PositionMarker{Timeline: timeline, LSN: parsed}, nil
}

func (p PositionMarker) IsZero() bool {
	return p.Timeline == "" && p.LSN == 0
}

// Compare orders two markers on the same timeline. Returns -1, 0 or +1.
// Markers from different timelines return ErrAmbiguousTimeline.
func (p PositionMarker) Compare(other PositionMarker) (int, error) {
	if p.Timeline != other.Timeline {
		return 0, ErrAmbiguousTimeline
	}
	switch {
	case p.LSN < other.LSN:
		return -1, nil
	case p.LSN > other.LSN:
		return 1, nil
	default:
		return 0, nil
	}
}

func (p PositionMarker) String() string {
	return fmt.Sprintf("%s@%s", p.Timeline, p.LSN)
}
