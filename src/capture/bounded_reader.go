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

// Package capture reads a bounded window of change events out of the
// NDJSON segment files dumped by the connector's capture sink. The window is
// bounded by a maximum event count and a maximum duration: the broker-side
// backlog is dynamic and the stream's end is not observable in-band, so the
// read returns whatever was collected when either bound trips.
package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vijayboopathy/confluent-debezium-connectors-test/src/cdcevent"
	"github.com/vijayboopathy/confluent-debezium-connectors-test/src/utils"
)

const (
	QUEUE_DIR_NAME               = "queue"
	QUEUE_SEGMENT_FILE_NAME      = "segment"
	QUEUE_SEGMENT_FILE_EXTENSION = "ndjson"

	KB = 1024
)

// EOFMarker terminates a fully-written segment; the next events continue in
// the following segment file.
var EOFMarker = `\.`

type EventQueue struct {
	QueueDirPath     string
	SegmentNumToRead int64
}

func NewEventQueue(exportDir string) *EventQueue {
	return &EventQueue{
		QueueDirPath:     filepath.Join(exportDir, "data", QUEUE_DIR_NAME),
		SegmentNumToRead: 0,
	}
}

// NextSegment returns the next segment to read, waiting for the segment file
// to appear until ctx expires. (nil, nil) means the wait was cut short by the
// context, i.e. the stream ended as far as this bounded read is concerned.
func (eq *EventQueue) NextSegment(ctx context.Context) (*Segment, error) {
	segmentFileName := fmt.Sprintf("%s.%d.%s", QUEUE_SEGMENT_FILE_NAME, eq.SegmentNumToRead, QUEUE_SEGMENT_FILE_EXTENSION)
	segmentFilePath := filepath.Join(eq.QueueDirPath, segmentFileName)
	for {
		_, err := os.Stat(segmentFilePath)
		if err == nil {
			break
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat segment file %s: %w", segmentFilePath, err)
		}
		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(100 * time.Millisecond):
		}
	}

	segment := NewSegment(segmentFilePath, eq.SegmentNumToRead)
	eq.SegmentNumToRead++
	return segment, nil
}

type Segment struct {
	FilePath   string
	SegmentNum int64 // 0-based
	processed  bool
	file       *os.File
	scanner    *bufio.Scanner
	buffer     []byte // buffer for scanning from file
}

func NewSegment(filePath string, segmentNum int64) *Segment {
	return &Segment{
		FilePath:   filePath,
		SegmentNum: segmentNum,
		processed:  false,
	}
}

func (s *Segment) Open(ctx context.Context) error {
	file, err := os.OpenFile(s.FilePath, os.O_RDONLY, 0640)
	if err != nil {
		return fmt.Errorf("failed to open segment file %s: %w", s.FilePath, err)
	}
	s.file = file
	s.scanner = bufio.NewScanner(utils.NewTailReader(ctx, file))

	s.buffer = make([]byte, 0, 100*KB)
	s.scanner.Buffer(s.buffer, cap(s.buffer))
	return nil
}

func (s *Segment) Close() error {
	return s.file.Close()
}

// NextEvent reads one event from the segment, waiting for it to be written
// if necessary. Returns (nil, nil) at the EOF marker; a malformed line comes
// back as a *cdcevent.MalformedEventError so callers can count it and move on.
func (s *Segment) NextEvent() (*cdcevent.ChangeEvent, error) {
	// Scan() returns false on error but that is handled below by Err()
	_ = s.scanner.Scan()
	line, err := s.scanner.Bytes(), s.scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("failed to read line from %s: %w", s.FilePath, err)
	}

	if string(line) == EOFMarker {
		log.Infof("reached EOF marker in segment %s", s.FilePath)
		s.processed = true
		return nil, nil
	}

	return cdcevent.ParseEvent(line)
}

func (s *Segment) IsProcessed() bool {
	return s.processed
}

// Bounds limits a capture-window read. Zero MaxEvents means no count bound;
// zero MaxDuration means no time bound. At least one must be set.
type Bounds struct {
	MaxEvents   int64
	MaxDuration time.Duration
}

// Window is the outcome of one bounded read.
type Window struct {
	Events         []cdcevent.ChangeEvent
	MalformedCount int
	SegmentsRead   int64

	// Which bound ended the read. Waiting out the deadline on a segment that
	// never appeared also counts as hitting the time bound.
	HitCountBound bool
	HitTimeBound  bool
}

// ProgressFunc is invoked after each collected event with the running total.
type ProgressFunc func(collected int64)

/*
ReadWindow collects events from the capture queue under the given bounds.
Cancellation is cooperative: an expired deadline aborts collection (never the
computation) and whatever was collected so far is returned. Malformed
lines are counted and skipped, never fatal.
*/
func ReadWindow(ctx context.Context, exportDir string, bounds Bounds, progress ProgressFunc) (*Window, error) {
	if bounds.MaxEvents <= 0 && bounds.MaxDuration <= 0 {
		return nil, errors.New("bounded read requires a max event count or a max duration")
	}
	if bounds.MaxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, bounds.MaxDuration)
		defer cancel()
	}

	window := &Window{}
	queue := NewEventQueue(exportDir)
	for {
		segment, err := queue.NextSegment(ctx)
		if err != nil {
			return nil, err
		}
		if segment == nil {
			window.HitTimeBound = true
			return window, nil
		}
		log.Infof("reading capture segment %d: %s", segment.SegmentNum, segment.FilePath)
		err = segmentInto(ctx, segment, bounds, window, progress)
		if err != nil {
			return nil, err
		}
		window.SegmentsRead++
		if window.HitCountBound || window.HitTimeBound {
			return window, nil
		}
	}
}

func segmentInto(ctx context.Context, segment *Segment, bounds Bounds, window *Window, progress ProgressFunc) error {
	err := segment.Open(ctx)
	if err != nil {
		return err
	}
	defer segment.Close()

	for !segment.IsProcessed() {
		event, err := segment.NextEvent()
		if err != nil {
			var malformed *cdcevent.MalformedEventError
			if errors.As(err, &malformed) {
				window.MalformedCount++
				log.Warnf("skipping malformed capture line in segment %d: %v", segment.SegmentNum, malformed)
				continue
			}
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				window.HitTimeBound = true
				return nil
			}
			return err
		}
		if event == nil { // EOF marker
			return nil
		}

		window.Events = append(window.Events, *event)
		if progress != nil {
			progress(int64(len(window.Events)))
		}
		if bounds.MaxEvents > 0 && int64(len(window.Events)) >= bounds.MaxEvents {
			window.HitCountBound = true
			return nil
		}
	}
	return nil
}
