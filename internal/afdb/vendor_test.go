package afdb

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bspgen/internal/testutil"
)

type countingVendor struct {
	name  string
	blob  []byte
	mu    sync.Mutex
	reads int
}

func (v *countingVendor) Name() string                   { return v.name }
func (v *countingVendor) ListBoards() []Board            { return nil }
func (v *countingVendor) FindBoard(string) (Board, bool) { return Board{}, false }
func (v *countingVendor) RawDatabase() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.reads++
	return v.blob
}

func TestSharedDecodesOnce(t *testing.T) {
	v := &countingVendor{name: "shared-once-test", blob: testutil.H747TarArchive(t)}

	var wg sync.WaitGroup
	archives := make([]*Archive, 8)
	for i := range archives {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := Shared(v)
			assert.NoError(t, err)
			archives[i] = a
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, v.reads)
	for _, a := range archives {
		assert.Same(t, archives[0], a)
	}
}

func TestSharedKeepsDatabasesApart(t *testing.T) {
	table := func(af int) testutil.ArchiveFile {
		return testutil.ArchiveFile{
			Name: "mcu/STM32X.json",
			Body: fmt.Sprintf(`{"pins":{"PA9":[{"signal":"USART1_CK","af":%d}]}}`, af),
		}
	}
	dir := t.TempDir()
	db3 := filepath.Join(dir, "db3.bin")
	db9 := filepath.Join(dir, "db9.bin")
	require.NoError(t, os.WriteFile(db3, testutil.FlatArchive(table(3)), 0o644))
	require.NoError(t, os.WriteFile(db9, testutil.FlatArchive(table(9)), 0o644))

	for path, want := range map[string]uint8{db3: 3, db9: 9} {
		v, err := OpenArchiveVendor("st", path)
		require.NoError(t, err)
		a, err := Shared(v)
		require.NoError(t, err)
		r, err := NewMCUResolver(a, "STM32X")
		require.NoError(t, err)
		af, ok := r.LookupAF("STM32X", "PA9", "USART1_CK")
		require.True(t, ok)
		assert.Equal(t, want, af, path)
	}

	again, err := OpenArchiveVendor("st", db3)
	require.NoError(t, err)
	first, err := Shared(again)
	require.NoError(t, err)
	second, err := Shared(again)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestArchiveVendor(t *testing.T) {
	path := testutil.WriteFile(t, "stm.bin.zst", testutil.H747TarArchive(t))
	v, err := OpenArchiveVendor("stm-vendor-test", path)
	require.NoError(t, err)

	assert.Equal(t, "stm-vendor-test", v.Name())
	assert.NotEmpty(t, v.RawDatabase())
	assert.Len(t, v.ListBoards(), 1)

	b, ok := v.FindBoard("STM32H747I-DISCO")
	require.True(t, ok)
	assert.Equal(t, "STM32H747XIHx", b.Chip)
	_, ok = v.FindBoard("nope")
	assert.False(t, ok)

	_, err = OpenArchiveVendor("missing", path+".gone")
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	stm, err := NewArchiveVendor("registry-stm", testutil.H747TarArchive(t))
	require.NoError(t, err)
	flat, err := NewArchiveVendor("registry-alt", testutil.H747FlatArchive(t))
	require.NoError(t, err)
	r := NewRegistry(stm, flat)

	assert.Equal(t, []string{"registry-alt", "registry-stm"}, r.Names())
	assert.Equal(t, []VendorBoard{
		{Vendor: "registry-alt", Board: "STM32H747I-DISCO", Chip: "STM32H747XIHx"},
		{Vendor: "registry-stm", Board: "STM32H747I-DISCO", Chip: "STM32H747XIHx"},
	}, r.Enumerate())

	vb, err := r.FindBoard("registry-stm", "STM32H747I-DISCO")
	require.NoError(t, err)
	assert.Equal(t, "STM32H747XIHx", vb.Chip)

	_, err = r.FindBoard("nobody", "x")
	assert.ErrorContains(t, err, "unknown vendor")
	_, err = r.FindBoard("registry-stm", "x")
	assert.ErrorContains(t, err, "not found")

	v, ok := r.Vendor("registry-alt")
	require.True(t, ok)
	assert.Equal(t, "registry-alt", v.Name())
}
