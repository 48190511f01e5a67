package streaming

import (
	"errors"
	"strconv"
	"strings"
)

// ErrUnsatisfiable indicates a syntactically valid Range header that no
// byte of the file can satisfy. The handler answers 416 with the file
// size in Content-Range.
var ErrUnsatisfiable = errors.New("requested range not satisfiable")

// ByteRange is a resolved inclusive byte range within a file.
type ByteRange struct {
	Start  int64
	End    int64
	Length int64
	Size   int64
}

// ContentRange formats the Content-Range header value for this range.
func (r *ByteRange) ContentRange() string {
	return "bytes " + strconv.FormatInt(r.Start, 10) + "-" +
		strconv.FormatInt(r.End, 10) + "/" + strconv.FormatInt(r.Size, 10)
}

// ParseRange resolves a Range header against a file of the given size.
//
// A missing or malformed header yields (nil, nil): the caller serves the
// whole file with 200, per RFC 9110's instruction to ignore ranges it
// cannot parse. A well-formed range that lies entirely outside the file
// yields ErrUnsatisfiable. When several ranges are listed, only the
// first is served.
func ParseRange(header string, size int64) (*ByteRange, error) {
	if header == "" {
		return nil, nil
	}

	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return nil, nil
	}

	spec := strings.TrimPrefix(header, prefix)
	if i := strings.IndexByte(spec, ','); i >= 0 {
		spec = spec[:i]
	}
	spec = strings.TrimSpace(spec)

	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return nil, nil
	}

	startStr := strings.TrimSpace(spec[:dash])
	endStr := strings.TrimSpace(spec[dash+1:])

	// Suffix form: last N bytes of the file
	if startStr == "" {
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return nil, nil
		}
		if n <= 0 || size == 0 {
			return nil, ErrUnsatisfiable
		}
		if n > size {
			n = size
		}
		return newByteRange(size-n, size-1, size), nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return nil, nil
	}
	if start >= size {
		return nil, ErrUnsatisfiable
	}

	// Open-ended form: start through end of file
	if endStr == "" {
		return newByteRange(start, size-1, size), nil
	}

	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil {
		return nil, nil
	}
	if end < start {
		return nil, nil
	}
	// An explicit end past the file is unsatisfiable, not clamped; the
	// client's view of the file size is stale.
	if end >= size {
		return nil, ErrUnsatisfiable
	}
	return newByteRange(start, end, size), nil
}

func newByteRange(start, end, size int64) *ByteRange {
	return &ByteRange{
		Start:  start,
		End:    end,
		Length: end - start + 1,
		Size:   size,
	}
}
