package storage

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/exp/mmap"
)

// HeaderSize is the width of the length prefix in front of every record.
const HeaderSize = 4

// MaxRecordSize is the largest payload the length field can frame.
const MaxRecordSize = math.MaxUint32

// ErrCorruptOffset is returned when a read lands on an offset that does
// not hold a complete record (short header or short payload).
var ErrCorruptOffset = errors.New("corrupt log offset")

// Log is an append-only record store. Each record is framed as a 4-byte
// big-endian length followed by the payload, so the file can be scanned
// forward without any external index. Appends are fsynced before they
// are acknowledged.
type Log struct {
	path string

	mu          sync.Mutex
	file        *os.File
	writer      *bufio.Writer
	writeOffset int64
}

// OpenLog opens or creates the log file at path and positions the write
// offset at the current end of the file.
func OpenLog(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		if cerr := file.Close(); cerr != nil {
			return nil, fmt.Errorf("stat log file: %w (close: %v)", err, cerr)
		}
		return nil, fmt.Errorf("stat log file: %w", err)
	}

	adviseSequential(file)

	return &Log{
		path:        path,
		file:        file,
		writer:      bufio.NewWriter(file),
		writeOffset: info.Size(),
	}, nil
}

// Append writes one framed record and fsyncs before returning. The
// returned offset is the byte position where the record's header begins.
func (l *Log) Append(data []byte) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return 0, fmt.Errorf("log is closed")
	}
	if uint64(len(data)) > MaxRecordSize {
		return 0, fmt.Errorf("record too large: %d bytes (max %d)", len(data), uint64(MaxRecordSize))
	}

	offset := l.writeOffset

	var lenBuf [HeaderSize]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))

	if _, err := l.writer.Write(lenBuf[:]); err != nil {
		return 0, fmt.Errorf("write record header: %w", err)
	}
	if _, err := l.writer.Write(data); err != nil {
		return 0, fmt.Errorf("write record payload: %w", err)
	}
	if err := l.writer.Flush(); err != nil {
		return 0, fmt.Errorf("flush log writer: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return 0, fmt.Errorf("sync log file: %w", err)
	}

	l.writeOffset += int64(HeaderSize + len(data))
	return offset, nil
}

// ReadAt reads the record whose header starts at offset. A header or
// payload that extends past the end of the file yields ErrCorruptOffset.
func (l *Log) ReadAt(offset int64) ([]byte, error) {
	l.mu.Lock()
	if l.writer != nil {
		if err := l.writer.Flush(); err != nil {
			l.mu.Unlock()
			return nil, fmt.Errorf("flush log writer: %w", err)
		}
	}
	l.mu.Unlock()

	reader, err := mmap.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("mmap open failed: %w", err)
	}
	defer reader.Close()

	if offset < 0 || offset+HeaderSize > int64(reader.Len()) {
		return nil, fmt.Errorf("%w: incomplete header at %d", ErrCorruptOffset, offset)
	}

	lenBuf := make([]byte, HeaderSize)
	if _, err := reader.ReadAt(lenBuf, offset); err != nil {
		return nil, fmt.Errorf("%w: read header at %d: %v", ErrCorruptOffset, offset, err)
	}
	msgLen := binary.BigEndian.Uint32(lenBuf)

	if offset+HeaderSize+int64(msgLen) > int64(reader.Len()) {
		return nil, fmt.Errorf("%w: incomplete payload at %d", ErrCorruptOffset, offset)
	}

	data := make([]byte, msgLen)
	if msgLen > 0 {
		if _, err := reader.ReadAt(data, offset+HeaderSize); err != nil {
			return nil, fmt.Errorf("%w: read payload at %d: %v", ErrCorruptOffset, offset, err)
		}
	}
	return data, nil
}

// Flush pushes buffered writes to the OS and syncs them to disk.
func (l *Log) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("flush log writer: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync log file: %w", err)
	}
	return nil
}

// Size returns the current byte length of the log.
func (l *Log) Size() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writeOffset
}

// Close flushes and closes the underlying file. Further appends fail.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("flush log writer: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync log file: %w", err)
	}
	err := l.file.Close()
	l.file = nil
	l.writer = nil
	return err
}

// Replay returns a forward scanner over every complete record in the
// log, starting at byte 0. The scan stops silently at the first
// truncated header or payload: a record that was only partially written
// before a crash is never surfaced.
func (l *Log) Replay() (*Replayer, error) {
	if err := l.Flush(); err != nil {
		return nil, err
	}

	file, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open log for replay: %w", err)
	}
	return &Replayer{
		file:   file,
		reader: bufio.NewReader(file),
	}, nil
}

// Replayer iterates the complete records of a Log. Next advances to the
// next record; Offset and Data are valid after Next returns true.
type Replayer struct {
	file   *os.File
	reader *bufio.Reader

	offset int64
	data   []byte
	next   int64
	err    error
	done   bool
}

func (r *Replayer) Next() bool {
	if r.done {
		return false
	}

	lenBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r.reader, lenBuf); err != nil {
		// EOF or a truncated header means the valid prefix ends here.
		// Anything else is a real read failure and must surface.
		if !isTruncation(err) {
			r.err = err
		}
		r.stop()
		return false
	}
	msgLen := binary.BigEndian.Uint32(lenBuf)

	data := make([]byte, msgLen)
	if _, err := io.ReadFull(r.reader, data); err != nil {
		// Truncated payload from an interrupted write, discard.
		if !isTruncation(err) {
			r.err = err
		}
		r.stop()
		return false
	}

	r.offset = r.next
	r.data = data
	r.next += int64(HeaderSize + msgLen)
	return true
}

// Offset returns the physical byte offset of the current record.
func (r *Replayer) Offset() int64 { return r.offset }

// Data returns the payload of the current record.
func (r *Replayer) Data() []byte { return r.data }

// Err reports a failure other than the end of the valid prefix.
func (r *Replayer) Err() error { return r.err }

func isTruncation(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// Close releases the replay file handle.
func (r *Replayer) Close() error {
	return r.stop()
}

func (r *Replayer) stop() error {
	if r.done {
		return nil
	}
	r.done = true
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}
