package utils

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTailReaderReadsAvailableData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segment.ndjson")
	err := os.WriteFile(path, []byte("line-1\nline-2\n"), 0644)
	assert.NoError(t, err)

	file, err := os.Open(path)
	assert.NoError(t, err)
	defer file.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	scanner := bufio.NewScanner(NewTailReader(ctx, file))
	assert.True(t, scanner.Scan())
	assert.Equal(t, "line-1", scanner.Text())
	assert.True(t, scanner.Scan())
	assert.Equal(t, "line-2", scanner.Text())
}

func TestTailReaderPicksUpAppendedData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segment.ndjson")
	err := os.WriteFile(path, []byte("line-1\n"), 0644)
	assert.NoError(t, err)

	file, err := os.Open(path)
	assert.NoError(t, err)
	defer file.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	go func() {
		time.Sleep(200 * time.Millisecond)
		f, _ := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
		f.WriteString("line-2\n")
		f.Close()
	}()

	scanner := bufio.NewScanner(NewTailReader(ctx, file))
	assert.True(t, scanner.Scan())
	assert.Equal(t, "line-1", scanner.Text())
	assert.True(t, scanner.Scan())
	assert.Equal(t, "line-2", scanner.Text())
}

func TestTailReaderStopsOnContextExpiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segment.ndjson")
	err := os.WriteFile(path, []byte("line-1\n"), 0644)
	assert.NoError(t, err)

	file, err := os.Open(path)
	assert.NoError(t, err)
	defer file.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	scanner := bufio.NewScanner(NewTailReader(ctx, file))
	assert.True(t, scanner.Scan())
	assert.False(t, scanner.Scan())
	assert.True(t, errors.Is(scanner.Err(), context.DeadlineExceeded))
}
