package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bspgen/internal/generate"
	"github.com/roach88/bspgen/internal/store"
	"github.com/roach88/bspgen/internal/testutil"
)

const h747 = "STM32H747XIHx"

// cliWorkspace holds the H747 project and vendor archive in a temp dir.
type cliWorkspace struct {
	dir      string
	ioc      string
	vendorDB string
}

func newCLIWorkspace(t *testing.T) cliWorkspace {
	t.Helper()
	dir := t.TempDir()
	w := cliWorkspace{
		dir:      dir,
		ioc:      writeFile(t, filepath.Join(dir, "disco.ioc"), []byte(testutil.H747IOC)),
		vendorDB: writeFile(t, filepath.Join(dir, "st.tar.zst"), testutil.H747TarArchive(t)),
	}
	return w
}

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func (w cliWorkspace) path(name string) string {
	return filepath.Join(w.dir, name)
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// decodeResponse parses a JSON CLIResponse and, when data is non-nil,
// decodes its payload into data.
func decodeResponse(t *testing.T, out string, data interface{}) CLIResponse {
	t.Helper()
	var resp struct {
		CLIResponse
		Raw json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	if data != nil {
		require.NoError(t, json.Unmarshal(resp.Raw, data))
	}
	return resp.CLIResponse
}

func TestGenerateCommand_Text(t *testing.T) {
	w := newCLIWorkspace(t)
	out := w.path("out")

	stdout, err := execute(t, "generate", w.ioc, "--vendor-db", w.vendorDB, "-o", out,
		"-t", "hal", "-t", "pinreport", "--board-mod")
	require.NoError(t, err)

	assert.Contains(t, stdout, "✓ Generated 2 file(s) for "+h747)
	assert.Contains(t, stdout, filepath.Join(out, "hal.rs"))
	assert.Contains(t, stdout, filepath.Join(out, "mod.rs"))
	assert.FileExists(t, filepath.Join(out, "hal.rs"))
	assert.FileExists(t, filepath.Join(out, "pinreport.rs"))
	assert.FileExists(t, filepath.Join(out, "mod.rs"))
}

func TestGenerateCommand_JSON(t *testing.T) {
	w := newCLIWorkspace(t)
	out := w.path("out")

	stdout, err := execute(t, "--format", "json", "generate", w.ioc, "--vendor-db", w.vendorDB,
		"-o", out, "--per-peripheral", "--owner", "usart1=cm4", "--core", "cm4")
	require.NoError(t, err)

	var res generate.Result
	resp := decodeResponse(t, stdout, &res)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, h747, res.MCU)
	assert.Len(t, res.Fingerprint, 64)
	assert.Equal(t, []string{
		filepath.Join(out, "hal", "usart1.rs"),
		filepath.Join(out, "hal", "mod.rs"),
	}, res.Files)
}

func TestGenerateCommand_ReservedPin(t *testing.T) {
	w := newCLIWorkspace(t)
	ioc := writeFile(t, w.path("swd.ioc"), []byte(testutil.H747IOC+"PA13.Signal=SYS_JTMS-SWDIO\n"))

	stdout, err := execute(t, "--format", "json", "generate", ioc, "--vendor-db", w.vendorDB, "-o", w.path("out"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, stdout, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeReservedPin, resp.Error.Code)
	assert.NoDirExists(t, w.path("out"))

	_, err = execute(t, "generate", ioc, "--vendor-db", w.vendorDB, "-o", w.path("out"), "--allow-reserved")
	require.NoError(t, err)
}

func TestGenerateCommand_Errors(t *testing.T) {
	w := newCLIWorkspace(t)

	t.Run("missing_input", func(t *testing.T) {
		stdout, err := execute(t, "--format", "json", "generate", w.path("nope.ioc"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		resp := decodeResponse(t, stdout, nil)
		assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	})

	t.Run("unknown_mcu", func(t *testing.T) {
		ioc := writeFile(t, w.path("other.ioc"), []byte("Mcu.Name=STM32F407VGTx\nPA2.Signal=USART2_TX\n"))
		stdout, err := execute(t, "--format", "json", "generate", ioc, "--vendor-db", w.vendorDB, "-o", w.path("out"))
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		resp := decodeResponse(t, stdout, nil)
		assert.Equal(t, ErrCodeUnknownMCU, resp.Error.Code)
	})

	t.Run("bad_core", func(t *testing.T) {
		_, err := execute(t, "generate", w.ioc, "--core", "cm0")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), "cm0")
	})

	t.Run("bad_owner", func(t *testing.T) {
		_, err := execute(t, "generate", w.ioc, "--owner", "usart1")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})

	t.Run("no_args", func(t *testing.T) {
		_, err := execute(t, "generate")
		require.Error(t, err)
	})
}

func TestGenerateAndHistory(t *testing.T) {
	w := newCLIWorkspace(t)
	db := w.path("runs.db")

	for _, tmpl := range []string{"hal", "simple"} {
		_, err := execute(t, "generate", w.ioc, "--vendor-db", w.vendorDB, "-o", w.path("out"),
			"-t", tmpl, "--history", db)
		require.NoError(t, err)
	}

	stdout, err := execute(t, "--format", "json", "history", "--db", db)
	require.NoError(t, err)
	var runs []store.Run
	decodeResponse(t, stdout, &runs)
	require.Len(t, runs, 2)
	assert.Equal(t, int64(2), runs[0].Seq)
	assert.Equal(t, "simple", runs[0].Template)
	assert.Equal(t, "hal", runs[1].Template)
	assert.Equal(t, runs[0].Fingerprint, runs[1].Fingerprint)

	stdout, err = execute(t, "--format", "json", "history", "--db", db, "--fingerprint", runs[0].Fingerprint)
	require.NoError(t, err)
	var byFP []store.Run
	decodeResponse(t, stdout, &byFP)
	require.Len(t, byFP, 2)
	assert.Equal(t, int64(1), byFP[0].Seq)

	stdout, err = execute(t, "history", "--db", db, "--limit", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(strings.TrimSpace(stdout), "\n")+1)
	assert.Contains(t, stdout, "#2 ")
	assert.Contains(t, stdout, "simple one-file")

	stdout, err = execute(t, "--format", "json", "history", "--db", db, "--template", "hal")
	require.NoError(t, err)
	var hal []store.Run
	decodeResponse(t, stdout, &hal)
	require.Len(t, hal, 1)
	assert.Equal(t, int64(1), hal[0].Seq)

	stdout, err = execute(t, "history", "--db", db, "--layout", "per-peripheral")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No runs recorded")
}

func TestHistoryCommand_MissingDatabase(t *testing.T) {
	stdout, err := execute(t, "--format", "json", "history", "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	resp := decodeResponse(t, stdout, nil)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestAFDBImportAndLookup(t *testing.T) {
	w := newCLIWorkspace(t)
	index := w.path("af.db")

	stdout, err := execute(t, "--format", "json", "afdb", "import", w.vendorDB, "--index", index)
	require.NoError(t, err)
	var imported AFDBImportResult
	decodeResponse(t, stdout, &imported)
	assert.Equal(t, "st", imported.Vendor)
	assert.Equal(t, []string{h747}, imported.MCUs)
	assert.Equal(t, 13, imported.Rows)

	stdout, err = execute(t, "afdb", "lookup", h747, "pa5", "SPI1_SCK", "--af-index", index)
	require.NoError(t, err)
	assert.Equal(t, "PA5 SPI1_SCK AF5\n", stdout)

	stdout, err = execute(t, "--format", "json", "afdb", "lookup", h747, "PB8", "I2C1_SCL", "--af-index", index)
	require.NoError(t, err)
	var hit AFDBLookupResult
	decodeResponse(t, stdout, &hit)
	assert.Equal(t, AFDBLookupResult{MCU: h747, Pin: "PB8", Signal: "I2C1_SCL", AF: 4}, hit)

	stdout, err = execute(t, "--format", "json", "afdb", "lookup", h747, "PA0", "FOO_BAR", "--af-index", index)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	resp := decodeResponse(t, stdout, nil)
	assert.Equal(t, ErrCodeUnresolvedAF, resp.Error.Code)

	stdout, err = execute(t, "--format", "json", "afdb", "lookup", "STM32F407VGTx", "PA2", "USART2_TX", "--af-index", index)
	require.Error(t, err)
	resp = decodeResponse(t, stdout, nil)
	assert.Equal(t, ErrCodeUnknownMCU, resp.Error.Code)

	stdout, err = execute(t, "afdb", "list", "--index", index)
	require.NoError(t, err)
	assert.Equal(t, h747+"\n", stdout)
}

func TestAFDBLookup_FallbackOnly(t *testing.T) {
	stdout, err := execute(t, "afdb", "lookup", h747, "PA9", "USART1_TX")
	require.NoError(t, err)
	assert.Equal(t, "PA9 USART1_TX AF7\n", stdout)
}

func TestAFDBImport_SingleTable(t *testing.T) {
	dir := t.TempDir()
	table := writeFile(t, filepath.Join(dir, "f407.json"), []byte(`{"pins":{"PA2":[{"signal":"USART2_TX","af":7}]}}`))
	index := filepath.Join(dir, "af.db")

	stdout, err := execute(t, "afdb", "import", table, "--mcu", "STM32F407VGTx", "--vendor", "acme", "--index", index)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Indexed 1 AF entries for 1 MCU(s) under vendor acme")

	stdout, err = execute(t, "afdb", "list", "--index", index, "--vendor", "st")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No MCUs indexed")

	stdout, err = execute(t, "afdb", "lookup", "STM32F407VGTx", "PA2", "USART2_TX", "--af-index", index, "--vendor", "acme")
	require.NoError(t, err)
	assert.Equal(t, "PA2 USART2_TX AF7\n", stdout)
}

func TestAFDBImport_RequiresIndex(t *testing.T) {
	_, err := execute(t, "afdb", "import", "st.tar.zst")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index")
}

func TestBoardsCommand(t *testing.T) {
	w := newCLIWorkspace(t)

	stdout, err := execute(t, "boards", "--vendor-db", w.vendorDB)
	require.NoError(t, err)
	assert.Equal(t, "st\tSTM32H747I-DISCO\t"+h747+"\n", stdout)

	stdout, err = execute(t, "--format", "json", "boards", "--vendor-db", "st="+w.vendorDB, "--board", "STM32H747I-DISCO")
	require.NoError(t, err)
	var boards []map[string]string
	decodeResponse(t, stdout, &boards)
	require.Len(t, boards, 1)
	assert.Equal(t, h747, boards[0]["chip"])

	_, err = execute(t, "boards", "--vendor-db", w.vendorDB, "--board", "NUCLEO-F401RE")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestParseVendorDB(t *testing.T) {
	name, path := parseVendorDB("nxp=db/nxp.zst")
	assert.Equal(t, "nxp", name)
	assert.Equal(t, "db/nxp.zst", path)

	name, path = parseVendorDB("db/st.tar.zst")
	assert.Equal(t, "st", name)
	assert.Equal(t, "db/st.tar.zst", path)
}

func TestValidateCommand(t *testing.T) {
	w := newCLIWorkspace(t)

	stdout, err := execute(t, "validate", w.ioc, "--vendor-db", w.vendorDB)
	require.NoError(t, err)
	assert.Contains(t, stdout, "valid: "+h747+", 8 pin(s), 3 peripheral(s)")

	stdout, err = execute(t, "--format", "json", "validate", w.ioc, "--vendor-db", w.vendorDB)
	require.NoError(t, err)
	var res struct {
		Fingerprint string `json:"fingerprint"`
		IR          struct {
			MCU string `json:"mcu"`
		} `json:"ir"`
	}
	decodeResponse(t, stdout, &res)
	assert.Len(t, res.Fingerprint, 64)
	assert.Equal(t, h747, res.IR.MCU)

	yaml := writeFile(t, w.path("board.yaml"), []byte("not: [valid"))
	stdout, err = execute(t, "--format", "json", "validate", yaml, "--vendor", "st")
	require.Error(t, err)
	resp := decodeResponse(t, stdout, nil)
	assert.Equal(t, "error", resp.Status)
}

func TestImportCommand(t *testing.T) {
	w := newCLIWorkspace(t)
	out := w.path("boards/disco.json")

	stdout, err := execute(t, "import", w.ioc, "--board", "STM32H747I-DISCO", "--out", out, "--vendor-db", w.vendorDB)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ Imported STM32H747I-DISCO ("+h747+") with 8 pin(s)")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var ov generate.Overlay
	require.NoError(t, json.Unmarshal(data, &ov))
	af, ok := ov.Pins.Get("PA9")
	require.True(t, ok)
	v, _ := af.Get("USART1_TX")
	assert.Equal(t, uint8(7), v)

	_, err = execute(t, "import", w.ioc, "--out", out)
	require.Error(t, err, "--board is required")
}

func TestBatchCommand(t *testing.T) {
	w := newCLIWorkspace(t)
	writeFile(t, w.path("second.ioc"), []byte("Mcu.Name=STM32H747XIHx\nPB8.Signal=I2C1_SCL\nPB9.Signal=I2C1_SDA\n"))
	manifest := writeFile(t, w.path("batch.yaml"), []byte(`
parallel: 2
jobs:
  - input: disco.ioc
    out: out/disco
    vendor_db: st.tar.zst
  - input: second.ioc
    out: out/second
    templates: [pac]
    vendor_db: st.tar.zst
`))
	db := w.path("runs.db")

	stdout, err := execute(t, "batch", manifest, "-j", "1", "--history", db)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ Ran 2 job(s)")
	assert.FileExists(t, w.path("out/disco/hal.rs"))
	assert.FileExists(t, w.path("out/second/pac.rs"))

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	runs, err := st.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestBatchCommand_Failure(t *testing.T) {
	w := newCLIWorkspace(t)
	manifest := writeFile(t, w.path("batch.yaml"), []byte(`
jobs:
  - input: missing.ioc
`))

	stdout, err := execute(t, "--format", "json", "batch", manifest)
	require.Error(t, err)
	resp := decodeResponse(t, stdout, nil)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "job 0")
}
