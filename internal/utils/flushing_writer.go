package utils

import (
	"io"
	"sync"
)

type flusher interface {
	Flush() error
}

type syncer interface {
	Sync() error
}

// FlushingWriter serializes writes to a destination and flushes buffered destinations after every write.
// It satisfies zapcore.WriteSyncer so one destination can back both command output and logs.
type FlushingWriter struct {
	mutex       sync.Mutex
	destination io.Writer
}

// NewFlushingWriter wraps destination; a FlushingWriter is returned unchanged.
func NewFlushingWriter(destination io.Writer) *FlushingWriter {
	if existing, wrapped := destination.(*FlushingWriter); wrapped {
		return existing
	}
	return &FlushingWriter{destination: destination}
}

// Write forwards data and flushes the destination when it buffers.
func (writer *FlushingWriter) Write(data []byte) (int, error) {
	if writer == nil || writer.destination == nil {
		return len(data), nil
	}

	writer.mutex.Lock()
	defer writer.mutex.Unlock()

	writtenCount, writeError := writer.destination.Write(data)
	if writeError != nil {
		return writtenCount, writeError
	}
	if bufferedDestination, buffers := writer.destination.(flusher); buffers {
		return writtenCount, bufferedDestination.Flush()
	}
	return writtenCount, nil
}

// Sync flushes or syncs the destination, whichever it supports.
func (writer *FlushingWriter) Sync() error {
	if writer == nil || writer.destination == nil {
		return nil
	}

	writer.mutex.Lock()
	defer writer.mutex.Unlock()

	switch destination := writer.destination.(type) {
	case flusher:
		return destination.Flush()
	case syncer:
		return destination.Sync()
	default:
		return nil
	}
}
