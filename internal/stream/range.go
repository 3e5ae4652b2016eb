// Package stream serves video files with HTTP byte-range support.
package stream

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
)

// DefaultChunkSize is the size of each read/write step while streaming.
const DefaultChunkSize = 1 << 20

var (
	// ErrNotFound is returned when the requested file does not exist.
	ErrNotFound = errors.New("video file not found")
	// ErrUnsatisfiableRange is returned for malformed or out-of-bounds ranges.
	ErrUnsatisfiableRange = errors.New("range not satisfiable")
)

// ByteRange is an inclusive byte interval.
type ByteRange struct {
	Start int64
	End   int64
}

// Length is the number of bytes covered by the range.
func (r ByteRange) Length() int64 { return r.End - r.Start + 1 }

// ParseRange interprets a Range header against a file of the given size.
// An empty header selects the whole file. Only a single "bytes=start-end"
// or "bytes=start-" range is accepted; suffix ranges ("bytes=-N") and
// multi-range requests are rejected.
func ParseRange(header string, size int64) (ByteRange, error) {
	if header == "" {
		return ByteRange{Start: 0, End: size - 1}, nil
	}
	rng, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok || strings.Contains(rng, ",") {
		return ByteRange{}, ErrUnsatisfiableRange
	}
	startStr, endStr, ok := strings.Cut(rng, "-")
	if !ok {
		return ByteRange{}, ErrUnsatisfiableRange
	}
	startStr = strings.TrimSpace(startStr)
	endStr = strings.TrimSpace(endStr)
	if startStr == "" {
		return ByteRange{}, ErrUnsatisfiableRange
	}
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 || start >= size {
		return ByteRange{}, ErrUnsatisfiableRange
	}
	end := size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return ByteRange{}, ErrUnsatisfiableRange
		}
		if end > size-1 {
			end = size - 1
		}
	}
	return ByteRange{Start: start, End: end}, nil
}

// Server streams files from disk.
type Server struct {
	ContentType string
	ChunkSize   int
}

// NewServer returns a Server with the default content type and chunk size.
func NewServer() *Server {
	return &Server{ContentType: "video/mp4", ChunkSize: DefaultChunkSize}
}

// ServeRange writes the range of path selected by the request's Range
// header as a 206 response. It returns ErrNotFound before opening
// anything if the file is missing, and ErrUnsatisfiableRange (after
// writing a 416) for bad ranges. Errors after headers are sent are
// returned for logging only.
func (s *Server) ServeRange(w http.ResponseWriter, r *http.Request, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return ErrNotFound
	}
	size := info.Size()

	rangeHeader := r.Header.Get("Range")
	if size == 0 {
		if rangeHeader != "" {
			return s.unsatisfiable(w, size)
		}
		w.Header().Set("Content-Type", s.ContentType)
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Length", "0")
		w.WriteHeader(http.StatusOK)
		return nil
	}

	br, err := ParseRange(rangeHeader, size)
	if err != nil {
		return s.unsatisfiable(w, size)
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Seek(br.Start, io.SeekStart); err != nil {
		return fmt.Errorf("seek %s: %w", path, err)
	}

	h := w.Header()
	h.Set("Content-Type", s.ContentType)
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", br.Start, br.End, size))
	h.Set("Content-Length", strconv.FormatInt(br.Length(), 10))
	w.WriteHeader(http.StatusPartialContent)

	if r.Method == http.MethodHead {
		return nil
	}
	n, err := s.copyChunks(r, w, f, br.Length())
	if err != nil {
		slog.Debug("range stream stopped", "path", path, "sent", n, "want", br.Length(), "error", err)
		return err
	}
	return nil
}

// copyChunks copies exactly remaining bytes from src to w, one chunk at
// a time, stopping early if the client goes away.
func (s *Server) copyChunks(r *http.Request, w http.ResponseWriter, src io.Reader, remaining int64) (int64, error) {
	chunk := s.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	buf := make([]byte, chunk)
	flusher, _ := w.(http.Flusher)
	ctx := r.Context()

	var sent int64
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		want := int64(len(buf))
		if remaining < want {
			want = remaining
		}
		n, rerr := io.ReadFull(src, buf[:want])
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return sent, werr
			}
			sent += int64(n)
			remaining -= int64(n)
			if flusher != nil {
				flusher.Flush()
			}
		}
		if rerr != nil {
			if remaining > 0 {
				return sent, fmt.Errorf("file shrank while streaming: %w", rerr)
			}
			break
		}
	}
	return sent, nil
}

func (s *Server) unsatisfiable(w http.ResponseWriter, size int64) error {
	w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
	w.Header().Set("Accept-Ranges", "bytes")
	http.Error(w, "range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
	return ErrUnsatisfiableRange
}
