package testutil

import (
	"archive/tar"
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/zstd"
)

// ArchiveFile is one named file inside a vendor archive.
type ArchiveFile struct {
	Name string
	Body string
}

// H747PinTable is a per-MCU pin table mixing every accepted JSON shape.
const H747PinTable = `{"pins":{
"PA9":[{"signal":"USART1_TX","af":7},{"signal":"TIM1_CH2","af":1}],
"PA10":[{"signal":"USART1_RX","af":7}],
"PA5":{"SPI1_SCK":{"af":5},"TIM2_CH1":1},
"PA6":{"SPI1_MISO":{"af":5}},
"PA7":{"SPI1_MOSI":5},
"PB8":[{"signal":"I2C1_SCL","af":4}],
"PB9":[{"signal":"I2C1_SDA","af":4}],
"PC1":[{"signal":"ETH_MDC","af":11},{"signal":"S_ETH_MDC","af":0}],
"PB6":[{"signal":"USART1_TX","af":0}],
"PA2":{"name":"PA2","sigs":{"USART2_TX":{"signal":"USART2_TX","af":7}},"position":0}
}}`

// FlatArchive encodes files with ">name" / "<" framing.
func FlatArchive(files ...ArchiveFile) []byte {
	var b strings.Builder
	for _, f := range files {
		b.WriteString(">" + f.Name + "\n")
		b.WriteString(f.Body)
		b.WriteString("\n<\n")
	}
	return []byte(b.String())
}

// TarArchive packs files into an uncompressed tar stream.
func TarArchive(t *testing.T, files ...ArchiveFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, f := range files {
		hdr := &tar.Header{Name: f.Name, Mode: 0o644, Size: int64(len(f.Body)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("tar header %s: %v", f.Name, err)
		}
		if _, err := tw.Write([]byte(f.Body)); err != nil {
			t.Fatalf("tar body %s: %v", f.Name, err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	return buf.Bytes()
}

// Zstd compresses data into a single zstd frame.
func Zstd(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

// H747TarArchive returns a zstd-compressed tar archive holding the H747 pin
// table and a boards.json index.
func H747TarArchive(t *testing.T) []byte {
	t.Helper()
	return Zstd(t, TarArchive(t,
		ArchiveFile{Name: "db/mcu/STM32H747XIHx.json", Body: H747PinTable},
		ArchiveFile{Name: "boards.json", Body: `[{"board":"STM32H747I-DISCO","chip":"STM32H747XIHx"}]`},
	))
}

// H747FlatArchive returns a zstd-compressed flat archive encoding the same
// pin table through the legacy mcu.json map and a per-board overlay.
func H747FlatArchive(t *testing.T) []byte {
	t.Helper()
	return Zstd(t, FlatArchive(
		ArchiveFile{Name: "boards/STM32H747I-DISCO.json", Body: `{"board":"STM32H747I-DISCO","chip":"STM32H747XIHx","pins":{"PA9":{"USART1_TX":7}}}`},
		ArchiveFile{Name: "mcu.json", Body: `{"STM32H747XIHx":` + H747PinTable + `}`},
	))
}

// FixedIDs returns the given ids in order and panics once they run out.
// It is safe for concurrent use.
type FixedIDs struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedIDs creates a generator over ids.
func NewFixedIDs(ids ...string) *FixedIDs {
	return &FixedIDs{ids: ids}
}

// Generate returns the next id.
func (g *FixedIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic("FixedIDs: all ids used")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
