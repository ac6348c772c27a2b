// Package afdb decodes vendor chip databases and answers alternate-function
// lookups against them.
//
// A vendor database blob is either flat text framing (">name" line, content
// lines, "<" line, repeated) or a tar directory archive. Either form may be
// zstd-compressed. Decoded archives are read-only and may be shared across
// goroutines.
package afdb

import (
	"archive/tar"
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/roach88/bspgen/internal/ir"
)

// zstdMagic is the frame header of a zstd stream.
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// legacyMCUFile is the single-file MCU map used by flat archives.
const legacyMCUFile = "mcu.json"

// Archive is a decoded vendor database: a set of named files.
type Archive struct {
	names []string
	files map[string][]byte
}

// Board identifies one board described by a vendor database.
type Board struct {
	Board string `json:"board"`
	Chip  string `json:"chip"`
}

// Decode decompresses blob if it is zstd-compressed, then reads it as a tar
// archive when it carries a tar header and as flat framing otherwise.
func Decode(blob []byte) (*Archive, error) {
	data := blob
	if bytes.HasPrefix(blob, zstdMagic) {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		defer dec.Close()
		data, err = dec.DecodeAll(blob, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decode: %w", err)
		}
	}
	if isTar(data) {
		return decodeTar(data)
	}
	return decodeFlat(data), nil
}

// isTar reports whether data starts with a POSIX ustar header.
func isTar(data []byte) bool {
	return len(data) >= 512 && bytes.Equal(data[257:262], []byte("ustar"))
}

func decodeTar(data []byte) (*Archive, error) {
	a := &Archive{files: make(map[string][]byte)}
	tr := tar.NewReader(bytes.NewReader(data))
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		body, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read tar entry %s: %w", hdr.Name, err)
		}
		a.add(strings.TrimPrefix(hdr.Name, "./"), body)
	}
	return a, nil
}

// decodeFlat parses ">name" framed text. Content lines are joined with "\n";
// text outside a frame is ignored.
func decodeFlat(data []byte) *Archive {
	a := &Archive{files: make(map[string][]byte)}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), len(data)+1)

	var (
		name    string
		content []string
		open    bool
	)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		switch {
		case open && line == "<":
			a.add(name, []byte(strings.Join(content, "\n")))
			open, content = false, nil
		case open:
			content = append(content, line)
		case strings.HasPrefix(line, ">"):
			name, open = line[1:], true
		}
	}
	// An unterminated final frame still counts.
	if open {
		a.add(name, []byte(strings.Join(content, "\n")))
	}
	return a
}

func (a *Archive) add(name string, body []byte) {
	if _, ok := a.files[name]; !ok {
		a.names = append(a.names, name)
	}
	a.files[name] = body
}

// Names returns the archive's file names in archive order.
func (a *Archive) Names() []string {
	out := make([]string, len(a.names))
	copy(out, a.names)
	return out
}

// File returns the contents of the named file.
func (a *Archive) File(name string) ([]byte, bool) {
	b, ok := a.files[name]
	return b, ok
}

// mcuFile finds the per-MCU file: a path equal to or ending in "/mcu/<MCU>.json".
func (a *Archive) mcuFile(mcu string) ([]byte, bool) {
	target := "mcu/" + mcu + ".json"
	for _, name := range a.names {
		if name == target || strings.HasSuffix(name, "/"+target) {
			return a.files[name], true
		}
	}
	return nil, false
}

// PinTable returns the pin table for mcu, looking first for a per-MCU file and
// then in the legacy mcu.json map. It fails with UNKNOWN_MCU when neither
// holds the part.
func (a *Archive) PinTable(mcu string) (*PinTable, error) {
	if data, ok := a.mcuFile(mcu); ok {
		t, err := ParsePinTable(data)
		if err != nil {
			return nil, ir.NewDeserialize("mcu/"+mcu+".json", err)
		}
		return t, nil
	}
	legacy, err := a.legacyMap()
	if err != nil {
		return nil, err
	}
	raw, ok := legacy[mcu]
	if !ok {
		return nil, ir.NewUnknownMCU(mcu)
	}
	t, err := ParsePinTable(raw)
	if err != nil {
		return nil, ir.NewDeserialize(legacyMCUFile, err)
	}
	return t, nil
}

func (a *Archive) legacyMap() (map[string]json.RawMessage, error) {
	data, ok := a.files[legacyMCUFile]
	if !ok {
		return nil, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, ir.NewDeserialize(legacyMCUFile, err)
	}
	return m, nil
}

// MCUs lists every part the archive has a pin table for, sorted.
func (a *Archive) MCUs() ([]string, error) {
	seen := make(map[string]bool)
	for _, name := range a.names {
		dir, file := path.Split(name)
		if path.Ext(file) == ".json" && (dir == "mcu/" || strings.HasSuffix(dir, "/mcu/")) {
			seen[strings.TrimSuffix(file, ".json")] = true
		}
	}
	legacy, err := a.legacyMap()
	if err != nil {
		return nil, err
	}
	for k := range legacy {
		seen[k] = true
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

// Boards returns the boards described by boards.json, or failing that by the
// individual boards/*.json overlays in archive order.
func (a *Archive) Boards() ([]Board, error) {
	if data, ok := a.files["boards.json"]; ok {
		var boards []Board
		if err := json.Unmarshal(data, &boards); err != nil {
			return nil, ir.NewDeserialize("boards.json", err)
		}
		return boards, nil
	}
	var boards []Board
	for _, name := range a.names {
		if !strings.HasPrefix(name, "boards/") || path.Ext(name) != ".json" {
			continue
		}
		var b Board
		if err := json.Unmarshal(a.files[name], &b); err != nil {
			return nil, ir.NewDeserialize(name, err)
		}
		if b.Board == "" {
			b.Board = strings.TrimSuffix(path.Base(name), ".json")
		}
		boards = append(boards, b)
	}
	return boards, nil
}
