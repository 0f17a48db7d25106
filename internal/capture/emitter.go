package capture

import (
	"fmt"
	"path/filepath"

	"github.com/minhvu/chatrake/internal/row"
)

// Emitter buffers accepted rows and flushes them as numbered part files.
// Every accepted row lands in exactly one part, never split or merged
// across parts, and part numbers are monotonic and never reused. The one
// accepted loss mode of the pipeline lives here: rows buffered but not yet
// flushed are lost on ungraceful termination; a graceful stop always
// flushes.
type Emitter struct {
	dir       string
	batchSize int

	buf      []row.RowRecord
	nextPart int
	emitted  int
}

// NewEmitter writes parts of batchSize rows into dir.
func NewEmitter(dir string, batchSize int) *Emitter {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Emitter{
		dir:       dir,
		batchSize: batchSize,
		buf:       make([]row.RowRecord, 0, batchSize),
		nextPart:  1,
	}
}

// Append adds an accepted row to the buffer, sealing and writing a part
// when the buffer reaches the batch size. Returns the part number written,
// or 0 when no flush happened.
func (e *Emitter) Append(rec row.RowRecord) (int, error) {
	e.buf = append(e.buf, rec)
	if len(e.buf) < e.batchSize {
		return 0, nil
	}
	return e.Flush()
}

// Flush seals the current buffer as the next part, even below the batch
// size. Returns 0 with no error when the buffer is empty.
func (e *Emitter) Flush() (int, error) {
	if len(e.buf) == 0 {
		return 0, nil
	}
	part := e.nextPart
	path := filepath.Join(e.dir, row.PartFileName(part))
	if err := row.WritePartFile(path, e.buf); err != nil {
		return 0, fmt.Errorf("emitting part %d: %w", part, err)
	}
	e.nextPart++
	e.emitted++
	// A sealed part is never mutated: start a fresh buffer rather than
	// reusing the flushed slice's backing array.
	e.buf = make([]row.RowRecord, 0, e.batchSize)
	return part, nil
}

// Buffered returns the number of rows awaiting flush.
func (e *Emitter) Buffered() int { return len(e.buf) }

// PartsEmitted returns how many parts have been written.
func (e *Emitter) PartsEmitted() int { return e.emitted }
