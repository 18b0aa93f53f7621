package recording

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"debrisfx/internal/sim/source"
)

const Version = 1

var ErrBadHeader = errors.New("recording: bad header")

// Header is the first line of a recording, readable without decoding frames.
type Header struct {
	Version     int     `json:"version"`
	Source      string  `json:"source"`
	FrameHz     float64 `json:"frame_hz"`
	Seed        int64   `json:"seed,omitempty"`
	CreatedUnix int64   `json:"created_unix"`
}

// Writer streams frames into a zstd file: a JSON header line followed by
// gob-encoded frames.
type Writer struct {
	f      *os.File
	enc    *zstd.Encoder
	bw     *bufio.Writer
	gob    *gob.Encoder
	frames uint64
}

func Create(path string, h Header) (*Writer, error) {
	if h.Version == 0 {
		h.Version = Version
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(h)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return nil, err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, enc: enc, bw: bw, gob: gob.NewEncoder(bw)}, nil
}

func (w *Writer) WriteFrame(fr source.Frame) error {
	if err := w.gob.Encode(&fr); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	w.frames++
	return nil
}

func (w *Writer) Frames() uint64 { return w.frames }

func (w *Writer) Close() error {
	err := w.bw.Flush()
	if cerr := w.enc.Close(); err == nil {
		err = cerr
	}
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Reader reads frames back in the order they were written.
type Reader struct {
	Header Header

	f   *os.File
	dec *zstd.Decoder
	gob *gob.Decoder
}

func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	br := bufio.NewReaderSize(dec, 256*1024)
	r := &Reader{f: f, dec: dec}

	line, err := br.ReadBytes('\n')
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if err := json.Unmarshal(line, &r.Header); err != nil {
		r.Close()
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if r.Header.Version != Version {
		r.Close()
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadHeader, r.Header.Version)
	}
	r.gob = gob.NewDecoder(br)
	return r, nil
}

// Next returns io.EOF after the last frame.
func (r *Reader) Next() (source.Frame, error) {
	var fr source.Frame
	if err := r.gob.Decode(&fr); err != nil {
		if errors.Is(err, io.EOF) {
			return fr, io.EOF
		}
		return fr, fmt.Errorf("gob decode: %w", err)
	}
	return fr, nil
}

func (r *Reader) Close() {
	r.dec.Close()
	_ = r.f.Close()
}

// ReadAll loads a whole recording.
func ReadAll(path string) (Header, []source.Frame, error) {
	r, err := Open(path)
	if err != nil {
		return Header{}, nil, err
	}
	defer r.Close()
	var frames []source.Frame
	for {
		fr, err := r.Next()
		if err == io.EOF {
			return r.Header, frames, nil
		}
		if err != nil {
			return r.Header, frames, err
		}
		frames = append(frames, fr)
	}
}

// OpenFeed loads a recording as a solver feed.
func OpenFeed(name, path string, loop bool) (*source.Feed, Header, error) {
	h, frames, err := ReadAll(path)
	if err != nil {
		return nil, h, fmt.Errorf("recording %s: %w", path, err)
	}
	return source.NewFeed(name, source.Frames(frames, loop)), h, nil
}
