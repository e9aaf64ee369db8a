package logs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"reviewgate/internal/logging"
)

const followPoll = 250 * time.Millisecond

// TailOptions controls a single Tail call. A negative Offset reads the last
// Limit lines; otherwise reading resumes at Offset.
type TailOptions struct {
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
	// Match keeps only lines it accepts. Nil keeps every line.
	Match func(line string) bool
}

// TailResult carries the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads the daemon log at path. With Follow set and nothing new to
// return, it waits up to Wait for matching lines to be appended.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	result := TailResult{Offset: opts.Offset}

	if opts.Wait < 0 {
		opts.Wait = 0
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if opts.Follow && opts.Wait > 0 {
				return waitForLines(ctx, path, 0, opts.Wait, opts.Match)
			}
			result.Offset = 0
			return result, nil
		}
		return result, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return result, fmt.Errorf("log path %q is a directory", path)
	}

	if opts.Offset < 0 {
		lines, offset, err := readLastLines(path, opts.Limit, opts.Match)
		if err != nil {
			return result, err
		}
		result = TailResult{Lines: lines, Offset: offset}
	} else {
		offset := opts.Offset
		if offset > info.Size() {
			// Rotated underneath us.
			offset = 0
		}
		lines, next, err := readForward(path, offset, opts.Match)
		if err != nil {
			return result, err
		}
		result = TailResult{Lines: lines, Offset: next}
	}

	if opts.Follow && opts.Wait > 0 && len(result.Lines) == 0 {
		return waitForLines(ctx, path, result.Offset, opts.Wait, opts.Match)
	}
	return result, nil
}

// MatchCorrelationID accepts lines that belong to one request. JSON lines are
// matched on the correlation_id field; console lines on the key=value pair.
func MatchCorrelationID(id string) func(string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	console := logging.FieldCorrelationID + "=" + id
	return func(line string) bool {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "{") {
			var fields map[string]any
			if json.Unmarshal([]byte(trimmed), &fields) == nil {
				value, _ := fields[logging.FieldCorrelationID].(string)
				return value == id
			}
		}
		return strings.Contains(line, console)
	}
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return scanner
}

func readLastLines(path string, limit int, match func(string) bool) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek log file: %w", err)
		}
		return nil, end, nil
	}

	ring := make([]string, limit)
	count, idx := 0, 0
	var consumed int64
	scanner := newScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		consumed += int64(len(scanner.Bytes())) + 1
		if match != nil && !match(line) {
			continue
		}
		ring[idx] = line
		idx = (idx + 1) % limit
		if count < limit {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}

	lines := make([]string, count)
	if count == limit {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%limit]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, completeOffset(file, consumed), nil
}

func readForward(path string, offset int64, match func(string) bool) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	consumed := offset
	scanner := newScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		consumed += int64(len(scanner.Bytes())) + 1
		if match != nil && !match(line) {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}
	return lines, completeOffset(file, consumed), nil
}

// completeOffset clamps the byte count to the file size so a final line
// without a newline is not skipped past.
func completeOffset(file *os.File, consumed int64) int64 {
	info, err := file.Stat()
	if err != nil || consumed <= info.Size() {
		return consumed
	}
	return info.Size()
}

// waitForLines polls the log until new lines arrive, the wait elapses or ctx
// ends. An fsnotify watch on the log directory shortens the wake-up when one
// can be created.
func waitForLines(ctx context.Context, path string, offset int64, wait time.Duration, match func(string) bool) (TailResult, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	ticker := time.NewTicker(followPoll)
	defer ticker.Stop()

	var changes <-chan fsnotify.Event
	if watcher, err := fsnotify.NewWatcher(); err == nil {
		defer watcher.Close()
		if watcher.Add(filepath.Dir(path)) == nil {
			changes = watcher.Events
		}
	}

	result := TailResult{Offset: offset}
	for {
		lines, next, err := readForward(path, result.Offset, match)
		if err != nil {
			return result, err
		}
		result.Offset = next
		if len(lines) > 0 {
			result.Lines = lines
			return result, nil
		}

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-timer.C:
			return result, nil
		case <-ticker.C:
		case <-changes:
		}
	}
}
