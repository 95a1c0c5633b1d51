// Package manifest serializes the per-key metadata record kept next to the
// cached value. The format is a fixed, line-oriented text file so the
// manifest stays readable when browsing the cache tree:
//
//	1                      format version
//	<count>,<unix-nanos>   generation count, last-write timestamp
//	<i>,<encoding-id>      one line per retained generation, i = 1..count
//
// Generation lines are dense and ascending; encoding ids match the
// compress package registry (0 = plain).
package manifest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const Version = 1

var ErrMalformed = errors.New("malformed manifest")

// Manifest is the per-key metadata record. Generations counts the retained
// historical copies; 0 means only the live value exists. Encodings[i-1]
// holds the encoding id of generation i.
type Manifest struct {
	Generations int
	WrittenAt   time.Time
	Encodings   []uint8
}

func Parse(b []byte) (Manifest, error) {
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	if len(lines) < 2 {
		return Manifest{}, fmt.Errorf("%w: %d lines", ErrMalformed, len(lines))
	}
	version, err := strconv.Atoi(lines[0])
	if err != nil || version != Version {
		return Manifest{}, fmt.Errorf("%w: version line %q", ErrMalformed, lines[0])
	}

	countRaw, nanosRaw, ok := strings.Cut(lines[1], ",")
	if !ok {
		return Manifest{}, fmt.Errorf("%w: header line %q", ErrMalformed, lines[1])
	}
	count, err := strconv.Atoi(countRaw)
	if err != nil || count < 0 {
		return Manifest{}, fmt.Errorf("%w: generation count %q", ErrMalformed, countRaw)
	}
	nanos, err := strconv.ParseInt(nanosRaw, 10, 64)
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: timestamp %q", ErrMalformed, nanosRaw)
	}
	if got := len(lines) - 2; got != count {
		return Manifest{}, fmt.Errorf("%w: %d generation lines, count says %d", ErrMalformed, got, count)
	}

	m := Manifest{
		Generations: count,
		WrittenAt:   time.Unix(0, nanos),
		Encodings:   make([]uint8, 0, count),
	}
	for i, line := range lines[2:] {
		idxRaw, encRaw, ok := strings.Cut(line, ",")
		if !ok {
			return Manifest{}, fmt.Errorf("%w: generation line %q", ErrMalformed, line)
		}
		idx, err := strconv.Atoi(idxRaw)
		if err != nil || idx != i+1 {
			return Manifest{}, fmt.Errorf("%w: generation number %q, want %d", ErrMalformed, idxRaw, i+1)
		}
		enc, err := strconv.ParseUint(encRaw, 10, 8)
		if err != nil {
			return Manifest{}, fmt.Errorf("%w: encoding id %q", ErrMalformed, encRaw)
		}
		m.Encodings = append(m.Encodings, uint8(enc))
	}
	return m, nil
}

func (m Manifest) Serialize() []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d\n", Version)
	fmt.Fprintf(&sb, "%d,%d\n", m.Generations, m.WrittenAt.UnixNano())
	for i := 0; i < m.Generations; i++ {
		var enc uint8
		if i < len(m.Encodings) {
			enc = m.Encodings[i]
		}
		fmt.Fprintf(&sb, "%d,%d\n", i+1, enc)
	}
	return []byte(sb.String())
}
