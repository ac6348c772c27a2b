package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bspgen/internal/adapter"
	"github.com/roach88/bspgen/internal/heuristics"
	"github.com/roach88/bspgen/internal/ir"
	"github.com/roach88/bspgen/internal/testutil"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func mustContext(t *testing.T, x *ir.Ir, opts Options) *Context {
	t.Helper()
	ctx, err := NewContext(x, opts)
	require.NoError(t, err)
	return ctx
}

func labelledPin() *ir.Ir {
	return &ir.Ir{
		MCU:     "STM32H747XIHx",
		Package: "TFBGA240",
		Pinctrl: []ir.Pin{{Pin: "PA9", Func: "USART1_TX", Label: ir.StringPtr("STLINK_RX"), AF: 7}},
	}
}

func TestSimpleRoundTripIsDeterministic(t *testing.T) {
	var outputs []string
	for range 3 {
		x, err := adapter.IOCToIR(testutil.H747IOC, testutil.StubResolver{}, adapter.IOCOptions{})
		require.NoError(t, err)
		out, err := Render(KindSimple, mustContext(t, x, Options{}))
		require.NoError(t, err)
		outputs = append(outputs, out)
	}
	assert.Equal(t, outputs[0], outputs[1])
	assert.Equal(t, outputs[0], outputs[2])
	newGoldie(t).Assert(t, "simple_h747", []byte(outputs[0]))
}

func TestPACCommentIncludesLabel(t *testing.T) {
	out, err := Render(KindPAC, mustContext(t, labelledPin(), Options{}))
	require.NoError(t, err)
	assert.Contains(t, out, "PA9 USART1_TX AF7 (STLINK_RX)")
	assert.Contains(t, out, "dp.GPIOA.moder.modify(|r, w| unsafe { w.bits((r.bits() & !(0b11 << 18)) | (0b10 << 18)) });")
	assert.Contains(t, out, "dp.GPIOA.afrh.modify(|r, w| unsafe { w.bits((r.bits() & !(0xF << 4)) | (7 << 4)) });")
	assert.NotContains(t, out, "deinit_pins")
}

func TestPACGroupedWrites(t *testing.T) {
	out, err := Render(KindPAC, mustContext(t, testutil.SampleIR(), Options{GroupedWrites: true, WithDeinit: true}))
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(out, "dp.GPIOA.moder.modify(|r, w| unsafe { w.bits((r.bits() & !0x003CFC00) | 0x0028A800) });"))
	assert.Contains(t, out, "dp.GPIOA.afrl.modify(|r, w| unsafe { w.bits((r.bits() & !0xFFF00000) | 0x55500000) });")
	assert.Contains(t, out, "dp.GPIOA.afrh.modify(|r, w| unsafe { w.bits((r.bits() & !0x00000FF0) | 0x00000770) });")
	assert.Contains(t, out, "dp.GPIOB.afrh.modify(|r, w| unsafe { w.bits((r.bits() & !0x000000FF) | 0x00000044) });")
	assert.NotContains(t, out, "dp.GPIOB.afrl")
	assert.NotContains(t, out, "dp.GPIOI.afr")
	assert.Contains(t, out, "w.gpioaen().set_bit().gpioben().set_bit().gpioien().set_bit()")
	assert.Contains(t, out, "pub fn deinit_pins")
	assert.Contains(t, out, "dp.GPIOI.moder.modify(|r, w| unsafe { w.bits(r.bits() | 0x0C000000) });")
	assert.Contains(t, out, "// pll1: m=5 n=160 p=2 q=4 r=2")
	assert.Contains(t, out, "// kernel usart16 <- pclk2")
}

func TestPACLabelConsts(t *testing.T) {
	out, err := Render(KindPAC, mustContext(t, testutil.SampleIR(), Options{EmitLabelConsts: true}))
	require.NoError(t, err)
	assert.Contains(t, out, "pub const STLINK_RX: (char, u8) = ('A', 9);")
	assert.Contains(t, out, "pub const LED1: (char, u8) = ('I', 13);")
}

func TestHALUsesLabelNames(t *testing.T) {
	x := labelledPin()
	x.Pinctrl[0].Func = "GPIO_Output"
	x.Pinctrl[0].AF = 0

	out, err := Render(KindHAL, mustContext(t, x, Options{UseLabelNames: true}))
	require.NoError(t, err)
	assert.Contains(t, out, "let stlink_rx = gpioa.pa9.into_push_pull_output();")

	out, err = Render(KindHAL, mustContext(t, x, Options{}))
	require.NoError(t, err)
	assert.Contains(t, out, "let pa9 = gpioa.pa9.into_push_pull_output();")
}

func TestHALOutput(t *testing.T) {
	x := testutil.SampleIR()
	out, err := Render(KindHAL, mustContext(t, x, Options{GroupedWrites: true, WithDeinit: true, EmitLabelConsts: true}))
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(out, "let gpioa = dp.GPIOA.split(ccdr.peripheral.GPIOA);"))
	assert.Contains(t, out, "let pa9 = gpioa.pa9.into_alternate::<7>();")
	assert.Contains(t, out, "let pb8 = gpiob.pb8.into_alternate::<4>();")
	assert.Contains(t, out, "let pi13 = gpioi.pi13.into_push_pull_output();")
	assert.Contains(t, out, `pub const STLINK_RX: &str = "PA9";`)
	assert.Contains(t, out, "// usart1 (serial): tx=PA9 rx=PA10")
	assert.Contains(t, out, "pub fn init_clocks")
	assert.Contains(t, out, "pub fn deinit_pins")

	// Grouped output walks ports in order; PA5 precedes PA9.
	assert.Less(t, strings.Index(out, "let pa5"), strings.Index(out, "let pa9"))
}

func TestClockOwnershipMarkers(t *testing.T) {
	x := heuristics.DefaultInitBy(testutil.SampleIR(), nil)
	x = heuristics.ApplyOwners(x, map[string]ir.Core{"usart1": ir.CoreCM4})

	cm4 := ir.CoreCM4
	ctx := mustContext(t, x, Options{Core: &cm4})
	assert.Equal(t, "cm7", ctx.InitBy)
	assert.Equal(t, "cm4", ctx.Core)
	assert.False(t, ctx.InitClocks)

	out, err := Render(KindHAL, ctx)
	require.NoError(t, err)
	assert.Contains(t, out, "// Clocks are initialized by cm7.")
	assert.Contains(t, out, "//! Target core: cm4")
	assert.NotContains(t, out, "pub fn init_clocks")

	cm7 := ir.CoreCM7
	assert.True(t, mustContext(t, x, Options{Core: &cm7}).InitClocks)
	assert.True(t, mustContext(t, x, Options{}).InitClocks)
}

func TestPortsRegisterImages(t *testing.T) {
	ports := mustContext(t, testutil.SampleIR(), Options{}).Ports()
	require.Len(t, ports, 3)
	assert.Equal(t, []string{"A", "B", "I"}, []string{ports[0].Letter, ports[1].Letter, ports[2].Letter})

	a := ports[0]
	assert.Equal(t, uint32(0x003CFC00), a.ModerMask)
	assert.Equal(t, uint32(0x0028A800), a.ModerValue)
	assert.Equal(t, uint32(0xFFF00000), a.AFRLMask)
	assert.Equal(t, uint32(0x55500000), a.AFRLValue)
	assert.Equal(t, uint32(0x00000FF0), a.AFRHMask)
	assert.Equal(t, uint32(0x00000770), a.AFRHValue)
	var nums []int
	for _, p := range a.Pins {
		nums = append(nums, p.Num)
	}
	assert.Equal(t, []int{5, 6, 7, 9, 10}, nums)

	i := ports[2]
	assert.Equal(t, uint32(0x0C000000), i.ModerMask)
	assert.Equal(t, uint32(0x04000000), i.ModerValue)
	assert.Zero(t, i.AFRLMask|i.AFRHMask)
}

func TestHALDuplicatePinBindsOnce(t *testing.T) {
	x := &ir.Ir{MCU: "X", Pinctrl: []ir.Pin{
		{Pin: "PA1", Func: "ETH_REF_CLK", AF: 11},
		{Pin: "PA2", Func: "USART2_TX", AF: 7},
		{Pin: "PA1", Func: "ADCx_INP1"},
	}}
	for _, grouped := range []bool{false, true} {
		out, err := Render(KindHAL, mustContext(t, x, Options{GroupedWrites: grouped}))
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(out, "let pa1 = "), "grouped=%v", grouped)
		assert.Contains(t, out, "let pa1 = gpioa.pa1.into_analog();")
		assert.NotContains(t, out, "into_alternate::<11>")
		assert.Contains(t, out, "// PA1 ETH_REF_CLK AF11 (superseded)")
		assert.Contains(t, out, "let pa2 = gpioa.pa2.into_alternate::<7>();")
	}
}

func TestPinsMarkSupersededEntries(t *testing.T) {
	x := &ir.Ir{MCU: "X", Pinctrl: []ir.Pin{
		{Pin: "PB0", Func: "GPIO_Output"},
		{Pin: "PB0", Func: "GPIO_Input"},
		{Pin: "PB1", Func: "GPIO_Output"},
	}}
	pins := mustContext(t, x, Options{}).Pins()
	require.Len(t, pins, 3)
	assert.True(t, pins[0].Superseded)
	assert.False(t, pins[1].Superseded)
	assert.False(t, pins[2].Superseded)
}

func TestPortsDuplicatePinLastWins(t *testing.T) {
	x := &ir.Ir{MCU: "X", Pinctrl: []ir.Pin{
		{Pin: "PA1", Func: "ETH_REF_CLK", AF: 11},
		{Pin: "PA1", Func: "ADCx_INP1"},
	}}
	a := mustContext(t, x, Options{}).Ports()[0]
	assert.Equal(t, uint32(0b11<<2), a.ModerMask)
	assert.Equal(t, uint32(0b11<<2), a.ModerValue)
	assert.Equal(t, uint32(0xB0), a.AFRLValue, "AF field keeps the last alternate setting")
}

func TestModeOf(t *testing.T) {
	tests := map[string]Mode{
		"GPIO_Output":    ModeOutput,
		"GPIO_Input":     ModeInput,
		"GPIO_EXTI13":    ModeInput,
		"GPIO_Analog":    ModeAnalog,
		"ADC1_INP16":     ModeAnalog,
		"DAC1_OUT1":      ModeAnalog,
		"USART1_TX":      ModeAlternate,
		"RCC_MCO_1":      ModeAlternate,
		"SYS_JTMS-SWDIO": ModeAlternate,
	}
	for fn, want := range tests {
		assert.Equal(t, want, ModeOf(ir.Pin{Pin: "PA0", Func: fn}), fn)
	}
}

func TestDuplicateLabelsStrict(t *testing.T) {
	x := testutil.SampleIR()
	x.Pinctrl[1].Label = ir.StringPtr("stlink-rx")

	_, err := NewContext(x, Options{UseLabelNames: true, FailOnDuplicateLabels: true})
	assert.True(t, ir.IsCode(err, ir.ErrCodeDuplicateLabel))

	ctx, err := NewContext(x, Options{UseLabelNames: true})
	require.NoError(t, err)
	assert.Equal(t, "stlink_rx", ctx.Idents["PA9"])
	assert.Equal(t, "stlink_rx_2", ctx.Idents["PA10"])
}

func TestPinReport(t *testing.T) {
	x := labelledPin()
	out, err := Render(KindPinReport, mustContext(t, x, Options{}))
	require.NoError(t, err)
	assert.Contains(t, out, "pub const PINS: &[PinInfo] = &[\n    PinInfo { pin: \"PA9\", signal: \"USART1_TX\" },\n];\n")
	assert.Contains(t, out, "//! IR fingerprint: "+ir.MustFingerprint(x))
}

func TestGenerateOneFile(t *testing.T) {
	out := t.TempDir()
	paths, err := Generate(testutil.SampleIR(), ParseTemplate("hal"), out, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(out, "hal.rs")}, paths)

	paths, err = Generate(testutil.SampleIR(), ParseTemplate("simple"), out, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(out, "summary.rs")}, paths)
	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	newGoldie(t).Assert(t, "simple_h747", data)
}

func TestGeneratePerPeripheralCompleteness(t *testing.T) {
	x := testutil.SampleIR()
	x.Peripherals.Delete("i2c1")

	out := t.TempDir()
	paths, err := Generate(x, Template{Kind: KindPAC}, out, Options{Layout: PerPeripheral})
	require.NoError(t, err)

	dir := filepath.Join(out, "pac")
	assert.Equal(t, []string{
		filepath.Join(dir, "usart1.rs"),
		filepath.Join(dir, "spi1.rs"),
		filepath.Join(dir, "mod.rs"),
	}, paths)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	mod, err := os.ReadFile(filepath.Join(dir, "mod.rs"))
	require.NoError(t, err)
	newGoldie(t).Assert(t, "mod_usart1_spi1", mod)

	usart, err := os.ReadFile(filepath.Join(dir, "usart1.rs"))
	require.NoError(t, err)
	assert.Contains(t, string(usart), "//! Peripheral: usart1")
	assert.Contains(t, string(usart), "PA9 USART1_TX AF7")
	assert.NotContains(t, string(usart), "SPI1_SCK")
}

func TestGeneratePerPeripheralCustomTemplate(t *testing.T) {
	tmpl := testutil.WriteFile(t, "board.rs.tmpl", []byte("// {{.ModName}} {{len .Spec.Pinctrl}}\n"))
	out := t.TempDir()

	paths, err := Generate(testutil.SampleIR(), ParseTemplate(tmpl), out, Options{Layout: PerPeripheral})
	require.NoError(t, err)
	require.Len(t, paths, 4)
	data, err := os.ReadFile(filepath.Join(out, "board", "spi1.rs"))
	require.NoError(t, err)
	assert.Equal(t, "// spi1 3\n", string(data))
	assert.FileExists(t, filepath.Join(out, "board", "mod.rs"))
	assert.NoFileExists(t, filepath.Join(out, "mod.rs"))
}

func TestBoardModuleKeepsCustomAggregator(t *testing.T) {
	tmpl := testutil.WriteFile(t, "board.rs.tmpl", []byte("// {{.ModName}}\n"))
	out := t.TempDir()

	paths, err := Generate(testutil.SampleIR(), ParseTemplate(tmpl), out, Options{Layout: PerPeripheral})
	require.NoError(t, err)
	aggregator := paths[len(paths)-1]
	before, err := os.ReadFile(aggregator)
	require.NoError(t, err)

	boardMod, err := EmitBoardModule(out, Forms{HAL: true})
	require.NoError(t, err)
	assert.NotEqual(t, aggregator, boardMod)

	after, err := os.ReadFile(aggregator)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestGenerateCustomTemplateOneFile(t *testing.T) {
	tmpl := testutil.WriteFile(t, "board.rs.tmpl", []byte("mcu={{.Spec.MCU}} init={{.InitBy}}\n"))
	out := t.TempDir()
	paths, err := Generate(testutil.SampleIR(), ParseTemplate(tmpl), out, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(out, "board.rs")}, paths)
	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "mcu=STM32H747XIHx init=\n", string(data))
}

func TestGenerateMissingCustomTemplateWritesNothing(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	_, err := Generate(testutil.SampleIR(), ParseTemplate(filepath.Join(out, "missing.tmpl")), out, Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoDirExists(t, out)
}

func TestGenerateCoreFilter(t *testing.T) {
	x := heuristics.ApplyOwners(testutil.SampleIR(), map[string]ir.Core{"spi1": ir.CoreCM4})
	cm4 := ir.CoreCM4
	out := t.TempDir()
	_, err := Generate(x, ParseTemplate("pac"), out, Options{Core: &cm4})
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(out, "pac.rs"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "SPI1_SCK")
	assert.NotContains(t, string(data), "USART1_TX")
}

func TestEmitBoardModule(t *testing.T) {
	out := t.TempDir()
	path, err := EmitBoardModule(out, Forms{HAL: true, PAC: true, Summary: true, PinReport: true})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	newGoldie(t).Assert(t, "board_mod_all", data)

	var f Forms
	f.Add(KindPAC)
	f.Add(KindPinReport)
	path, err = EmitBoardModule(out, f)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	newGoldie(t).Assert(t, "board_mod_pac_pinreport", data)
}

func TestParseTemplateAndLayout(t *testing.T) {
	assert.Equal(t, Template{Kind: KindHAL}, ParseTemplate("HAL"))
	assert.True(t, ParseTemplate("x/custom.tmpl").IsCustom())

	l, err := ParseLayout("per-peripheral")
	require.NoError(t, err)
	assert.Equal(t, PerPeripheral, l)
	_, err = ParseLayout("sideways")
	assert.Error(t, err)
}
