package godb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"
)

// log_file.go implements classdb's write-ahead log. The functions here
// assist with reading and writing log records to a log file; it is the
// caller's responsibility (BufferPool) to follow write-ahead logging and
// strict two-phase locking discipline.
//
// The log is a sequence of variable-length records:
//
// +--------------------------------------------------------+
// | Record type (1 byte)                                   |
// +--------------------------------------------------------+
// | Transaction ID (8 bytes)                                |
// +--------------------------------------------------------+
// | Record body (variable length)                           |
// +--------------------------------------------------------+
// | Offset (8 bytes)                                        |
// +--------------------------------------------------------+
//
// Begin, Commit, and Abort records have an empty body. Update records carry
// the PageID of the page they touch and its full before- and after-images.
//
// classdb never replays the log (recovery is out of scope): ForwardIterator,
// ReverseIterator, and OutputPrettyLog exist only as inspection tools; the
// tests exercise the two iterators.
type LogFile struct {
	file   *os.File
	buf    bytes.Buffer
	offset int64
	// instance tags every pretty-printed log line with the owning
	// Database's InstanceID, so dumps from several instances sharing one
	// process remain distinguishable when interleaved.
	instance string
}

type LogRecordType int8

const (
	BeginRecord LogRecordType = iota
	CommitRecord
	AbortRecord
	UpdateRecord
)

func (t LogRecordType) String() string {
	switch t {
	case BeginRecord:
		return "begin"
	case CommitRecord:
		return "commit"
	case AbortRecord:
		return "abort"
	case UpdateRecord:
		return "update"
	default:
		return "unknown"
	}
}

// NewLogFile opens (creating if necessary) fileName as the backing store for
// a write-ahead log.
func NewLogFile(fileName string) (*LogFile, error) {
	file, err := os.OpenFile(fileName, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, wrapGoDBError(IOError, "opening log file", err)
	}
	off, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, wrapGoDBError(IOError, "seeking log file", err)
	}
	return &LogFile{file: file, offset: off}, nil
}

func (w *LogFile) write(data any) {
	binary.Write(&w.buf, binary.BigEndian, data)
	w.offset += int64(binary.Size(data))
}

// Force flushes any buffered records to disk and fsyncs the file, per the
// FORCE commit rule: a commit is not durable until this returns nil.
func (w *LogFile) Force() error {
	if w.buf.Len() == 0 {
		return nil
	}
	if _, err := w.file.Write(w.buf.Bytes()); err != nil {
		return wrapGoDBError(IOError, "writing log buffer", err)
	}
	w.buf.Reset()
	if err := w.file.Sync(); err != nil {
		return wrapGoDBError(IOError, "fsyncing log file", err)
	}
	return nil
}

func (w *LogFile) seek(offset int64, whence int) error {
	if err := w.Force(); err != nil {
		return err
	}
	newOffset, err := w.file.Seek(offset, whence)
	if err != nil {
		return wrapGoDBError(IOError, "seeking log file", err)
	}
	w.offset = newOffset
	return nil
}

func (w *LogFile) read(data any) error {
	if err := w.Force(); err != nil {
		return err
	}
	if err := binary.Read(w.file, binary.BigEndian, data); err != nil {
		return err
	}
	w.offset += int64(binary.Size(data))
	return nil
}

func (w *LogFile) writeHeader(typ LogRecordType, tid TransactionID) {
	w.write(int8(typ))
	w.write(int64(tid))
}

func (w *LogFile) writePageImage(pid PageID, image []byte) {
	w.write(int32(pid.TableID))
	w.write(int32(pid.PageNo))
	w.write(int32(len(image)))
	w.write(image)
}

func (w *LogFile) readPageImage() (PageID, []byte, error) {
	var tableID, pageNo, n int32
	if err := w.read(&tableID); err != nil {
		return PageID{}, nil, err
	}
	if err := w.read(&pageNo); err != nil {
		return PageID{}, nil, err
	}
	if err := w.read(&n); err != nil {
		return PageID{}, nil, err
	}
	buf := make([]byte, n)
	if err := w.read(buf); err != nil {
		return PageID{}, nil, err
	}
	return PageID{TableID: int(tableID), PageNo: int(pageNo)}, buf, nil
}

// LogBegin appends a Begin record for tid. Does not force.
func (w *LogFile) LogBegin(tid TransactionID) {
	offset := w.offset
	w.writeHeader(BeginRecord, tid)
	w.write(offset)
}

// LogCommit appends a Commit record for tid. Does not force; the caller must
// Force separately to make the commit durable.
func (w *LogFile) LogCommit(tid TransactionID) {
	offset := w.offset
	w.writeHeader(CommitRecord, tid)
	w.write(offset)
}

// LogAbort appends an Abort record for tid. Does not force.
func (w *LogFile) LogAbort(tid TransactionID) {
	offset := w.offset
	w.writeHeader(AbortRecord, tid)
	w.write(offset)
}

// LogUpdate appends an Update record carrying pid's before- and after-images.
// Does not force.
func (w *LogFile) LogUpdate(tid TransactionID, pid PageID, before, after []byte) error {
	if before == nil || after == nil {
		return NewGoDBError(MalformedDataError, "before and after images must be non-nil")
	}
	offset := w.offset
	w.writeHeader(UpdateRecord, tid)
	w.writePageImage(pid, before)
	w.writePageImage(pid, after)
	w.write(offset)
	return nil
}

type LogRecord interface {
	Offset() int64
	Type() LogRecordType
	Tid() TransactionID
}

type GenericLogRecord struct {
	offset int64
	typ    LogRecordType
	tid    TransactionID
}

func (r GenericLogRecord) Offset() int64       { return r.offset }
func (r GenericLogRecord) Type() LogRecordType { return r.typ }
func (r GenericLogRecord) Tid() TransactionID  { return r.tid }

type UpdateLogRecord struct {
	GenericLogRecord
	PageID PageID
	Before []byte
	After  []byte
}

// ForwardIterator returns a pull-closure over log records from the current
// read position forward. Returns (nil, nil) at a clean end of file.
func (w *LogFile) ForwardIterator() func() (LogRecord, error) {
	partial := func(msg string, err error) (LogRecord, error) {
		return nil, fmt.Errorf("failed to read %s: partial record at offset %d: %w", msg, w.offset, err)
	}
	return func() (LogRecord, error) {
		var record GenericLogRecord
		var ret LogRecord = &record
		record.offset = w.offset

		var typ int8
		err := w.read(&typ)
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return partial("record type", err)
		}
		record.typ = LogRecordType(typ)

		var tid int64
		if err := w.read(&tid); err != nil {
			return partial("transaction id", err)
		}
		record.tid = TransactionID(tid)

		if record.typ == UpdateRecord {
			var update UpdateLogRecord
			update.GenericLogRecord = record
			pid, before, err := w.readPageImage()
			if err != nil {
				return partial("before image", err)
			}
			_, after, err := w.readPageImage()
			if err != nil {
				return partial("after image", err)
			}
			update.PageID = pid
			update.Before = before
			update.After = after
			ret = &update
		}

		var recordOffset int64
		if err := w.read(&recordOffset); err != nil || recordOffset != record.offset {
			return partial("offset footer", err)
		}
		return ret, nil
	}
}

// ReverseIterator walks the log backward from its end, one record per call.
func (w *LogFile) ReverseIterator() (func() (LogRecord, error), error) {
	if err := w.seek(0, io.SeekEnd); err != nil {
		return nil, err
	}
	return func() (LogRecord, error) {
		if w.offset < 8 {
			return nil, nil
		}
		if err := w.seek(-8, io.SeekCurrent); err != nil {
			return nil, err
		}
		var offset int64
		if err := w.read(&offset); err != nil {
			return nil, err
		}
		if err := w.seek(offset, io.SeekStart); err != nil {
			return nil, err
		}
		record, err := w.ForwardIterator()()
		if err != nil {
			return nil, err
		}
		if err := w.seek(offset, io.SeekStart); err != nil {
			return nil, err
		}
		return record, nil
	}, nil
}

// OutputPrettyLog prints a human-readable dump of the log without disturbing
// the current read position. Nothing in this module calls it.
func (w *LogFile) OutputPrettyLog() error {
	oldPos := w.offset
	defer w.seek(oldPos, io.SeekStart)
	if err := w.seek(0, io.SeekStart); err != nil {
		return err
	}
	iter := w.ForwardIterator()
	for {
		pos := w.offset
		record, err := iter()
		if err != nil {
			return err
		}
		if record == nil {
			return nil
		}
		prefix := ""
		if w.instance != "" {
			prefix = w.instance + " "
		}
		switch record.Type() {
		case BeginRecord, CommitRecord, AbortRecord:
			log.Printf("%s%d RECORD %s (tid=%d) offset=%d", prefix, pos, record.Type(), record.Tid(), record.Offset())
		case UpdateRecord:
			u := record.(*UpdateLogRecord)
			log.Printf("%s%d RECORD update (tid=%d) offset=%d page=%v", prefix, pos, record.Tid(), record.Offset(), u.PageID)
		}
	}
}

// Close closes the underlying log file.
func (w *LogFile) Close() error {
	if err := w.Force(); err != nil {
		return err
	}
	return w.file.Close()
}
