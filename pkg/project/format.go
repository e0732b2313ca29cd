// ABOUTME: Binary project file codec
// ABOUTME: Encodes and decodes the signature, version, audio path and marker records
package project

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// Signature identifies a project file
var Signature = [8]byte{0xBB, 0x5D, 0xC6, 0x89, 0x7E, 0x06, 0x4B, 0xD5}

// FormatVersion is the only project file version this package reads and writes
const FormatVersion uint16 = 1

var (
	// ErrInvalidFile is returned for files that are not well-formed project files
	ErrInvalidFile = errors.New("invalid project file")

	// ErrUnsupportedVersion is returned for project files of an unknown version
	ErrUnsupportedVersion = errors.New("unsupported project file version")
)

// Encode writes p in project file format
func Encode(w io.Writer, p *Project) error {
	if bytes.IndexByte([]byte(p.AudioPath), 0) >= 0 {
		return fmt.Errorf("audio path contains NUL byte: %q", p.AudioPath)
	}

	bw := bufio.NewWriter(w)
	bw.Write(Signature[:])

	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], FormatVersion)
	bw.Write(u16[:])

	bw.WriteString(p.AudioPath)
	bw.WriteByte(0)

	var u32 [4]byte
	for ms := range p.Markers.All() {
		binary.BigEndian.PutUint32(u32[:], ms)
		bw.Write(u32[:])
	}

	// bufio.Writer keeps the first error; Flush reports it
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write project: %w", err)
	}
	return nil
}

// Decode reads a project in project file format
func Decode(r io.Reader) (*Project, error) {
	br := bufio.NewReader(r)

	var sig [8]byte
	if _, err := io.ReadFull(br, sig[:]); err != nil {
		return nil, readErr("signature", err)
	}
	if sig != Signature {
		return nil, fmt.Errorf("%w: bad signature % X", ErrInvalidFile, sig[:])
	}

	var u16 [2]byte
	if _, err := io.ReadFull(br, u16[:]); err != nil {
		return nil, readErr("version", err)
	}
	if v := binary.BigEndian.Uint16(u16[:]); v != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	path, err := br.ReadBytes(0)
	if err != nil {
		return nil, readErr("audio path", err)
	}
	path = path[:len(path)-1]
	if !utf8.Valid(path) {
		return nil, fmt.Errorf("%w: audio path is not valid UTF-8", ErrInvalidFile)
	}

	p := New()
	p.AudioPath = string(path)

	var u32 [4]byte
	for {
		n, err := io.ReadFull(br, u32[:])
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: truncated marker record (%d trailing bytes)", ErrInvalidFile, n)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read marker: %w", err)
		}
		p.Markers.Insert(binary.BigEndian.Uint32(u32[:]))
	}

	return p, nil
}

// readErr maps end-of-input inside the header to ErrInvalidFile
func readErr(field string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated %s", ErrInvalidFile, field)
	}
	return fmt.Errorf("failed to read %s: %w", field, err)
}
