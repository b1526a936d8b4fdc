package audio

import (
	"encoding/binary"
	"fmt"
	"os"
)

// wavHeaderSize is the byte length of the canonical 44-byte RIFF/WAVE header
// written by [NewWriter] and patched by [Writer.Close].
const wavHeaderSize = 44

// Writer writes 16-bit PCM frames to a WAV file. Create one per recording;
// not designed for shared use across goroutines.
//
// The RIFF header is written with placeholder sizes at creation and patched
// with the real data length on Close, so a crashed recording leaves a file
// that most decoders can still salvage.
type Writer struct {
	f        *os.File
	format   Format
	dataSize uint32
}

// NewWriter creates path (truncating any existing file) and writes a WAV
// header for the given format.
func NewWriter(path string, format Format) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("audio: create wav %q: %w", path, err)
	}

	w := &Writer{f: f, format: format}
	if err := w.writeHeader(0); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return w, nil
}

// WriteFrame appends the frame's PCM data to the file. Frames are assumed to
// already match the writer's format; the capture adapter converts upstream.
func (w *Writer) WriteFrame(frame Frame) error {
	n, err := w.f.Write(frame.Data)
	w.dataSize += uint32(n)
	if err != nil {
		return fmt.Errorf("audio: write wav data: %w", err)
	}
	return nil
}

// Close patches the header sizes and closes the file.
func (w *Writer) Close() error {
	if _, err := w.f.Seek(0, 0); err != nil {
		w.f.Close()
		return fmt.Errorf("audio: seek wav header: %w", err)
	}
	if err := w.writeHeader(w.dataSize); err != nil {
		w.f.Close()
		return err
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("audio: close wav: %w", err)
	}
	return nil
}

// writeHeader writes the 44-byte RIFF/WAVE header for PCM16 with the given
// data chunk size.
func (w *Writer) writeHeader(dataSize uint32) error {
	var hdr [wavHeaderSize]byte

	byteRate := uint32(w.format.SampleRate * w.format.Channels * 2)
	blockAlign := uint16(w.format.Channels * 2)

	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], 36+dataSize)
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(hdr[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(w.format.Channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(w.format.SampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], byteRate)
	binary.LittleEndian.PutUint16(hdr[32:34], blockAlign)
	binary.LittleEndian.PutUint16(hdr[34:36], 16) // bits per sample
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], dataSize)

	if _, err := w.f.Write(hdr[:]); err != nil {
		return fmt.Errorf("audio: write wav header: %w", err)
	}
	return nil
}
