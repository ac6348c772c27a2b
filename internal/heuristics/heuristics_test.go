package heuristics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bspgen/internal/ir"
	"github.com/roach88/bspgen/internal/testutil"
)

func TestDefaultInitBy(t *testing.T) {
	cm4 := ir.CorePtr(ir.CoreCM4)

	tests := []struct {
		name     string
		mcu      string
		existing *ir.Core
		override *ir.Core
		want     *ir.Core
	}{
		{name: "dual core default", mcu: "STM32H747XIHx", want: ir.CorePtr(ir.CoreCM7)},
		{name: "h745", mcu: "STM32H745ZITx", want: ir.CorePtr(ir.CoreCM7)},
		{name: "h757", mcu: "STM32H757AIIx", want: ir.CorePtr(ir.CoreCM7)},
		{name: "single core", mcu: "STM32H743ZITx"},
		{name: "existing kept", mcu: "STM32H747XIHx", existing: cm4, want: cm4},
		{name: "override wins", mcu: "STM32H747XIHx", existing: ir.CorePtr(ir.CoreCM7), override: cm4, want: cm4},
		{name: "override on single core", mcu: "STM32F407VGTx", override: cm4, want: cm4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := &ir.Ir{MCU: tt.mcu}
			x.Clocks.InitBy = tt.existing
			got := DefaultInitBy(x, tt.override)
			assert.Equal(t, tt.want, got.Clocks.InitBy)
			assert.Equal(t, tt.existing, x.Clocks.InitBy, "input unchanged")
		})
	}
}

func TestApplyOwners(t *testing.T) {
	x := testutil.SampleIR()
	got := ApplyOwners(x, map[string]ir.Core{"usart1": ir.CoreCM4, "spi1": ir.CoreCM7, "can1": ir.CoreCM4})

	usart, _ := got.Peripherals.Get("usart1")
	require.NotNil(t, usart.Core)
	assert.Equal(t, ir.CoreCM4, *usart.Core)
	spi, _ := got.Peripherals.Get("spi1")
	require.NotNil(t, spi.Core)
	assert.Equal(t, ir.CoreCM7, *spi.Core)
	i2c, _ := got.Peripherals.Get("i2c1")
	assert.Nil(t, i2c.Core)
	assert.False(t, got.Peripherals.Has("can1"))

	orig, _ := x.Peripherals.Get("usart1")
	assert.Nil(t, orig.Core, "input unchanged")
}

func TestParseOwners(t *testing.T) {
	owners, err := ParseOwners("usart1=cm4, SPI1=CM7", "i2c1=cpu2", "")
	require.NoError(t, err)
	assert.Equal(t, map[string]ir.Core{
		"usart1": ir.CoreCM4,
		"spi1":   ir.CoreCM7,
		"i2c1":   ir.CoreCM4,
	}, owners)

	for _, bad := range []string{"usart1", "=cm4", "usart1=m0"} {
		_, err := ParseOwners(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseCore(t *testing.T) {
	c, err := ParseCore("M7")
	require.NoError(t, err)
	assert.Equal(t, ir.CoreCM7, c)
	_, err = ParseCore("cm33")
	assert.ErrorContains(t, err, "invalid core")
}

func TestFilterByCore(t *testing.T) {
	x := ApplyOwners(testutil.SampleIR(), map[string]ir.Core{"usart1": ir.CoreCM4, "i2c1": ir.CoreCM4})

	got := FilterByCore(x, ir.CoreCM4)
	assert.Equal(t, []string{"usart1", "i2c1"}, got.Peripherals.Keys())
	var pins []string
	for _, p := range got.Pinctrl {
		pins = append(pins, p.Pin)
	}
	assert.Equal(t, []string{"PA9", "PA10", "PB8", "PB9"}, pins)
	assert.Equal(t, x.Clocks, got.Clocks)
	require.NoError(t, got.Validate())
}

func TestFilterByCoreWithoutOwnersIsIdentity(t *testing.T) {
	x := testutil.SampleIR()
	for _, core := range ir.ValidCores {
		got := FilterByCore(x, core)
		assert.Equal(t, x, got)
		assert.NotSame(t, x, got)
	}

	// Owned by the other core only: still a no-op.
	owned := ApplyOwners(x, map[string]ir.Core{"usart1": ir.CoreCM7})
	assert.Equal(t, owned, FilterByCore(owned, ir.CoreCM4))
}

func TestFilterByCoreIdempotent(t *testing.T) {
	x := ApplyOwners(testutil.SampleIR(), map[string]ir.Core{"spi1": ir.CoreCM7})
	once := FilterByCore(x, ir.CoreCM7)
	assert.Equal(t, once, FilterByCore(once, ir.CoreCM7))
}

func TestSubsetForPeripheral(t *testing.T) {
	x := testutil.SampleIR()
	got, err := SubsetForPeripheral(x, "spi1")
	require.NoError(t, err)
	assert.Equal(t, []string{"spi1"}, got.Peripherals.Keys())
	require.Len(t, got.Pinctrl, 3)
	assert.Equal(t, "PA5", got.Pinctrl[0].Pin)

	_, err = SubsetForPeripheral(x, "uart9")
	assert.ErrorContains(t, err, "unknown peripheral")
}

func TestCoreMarker(t *testing.T) {
	assert.Equal(t, "", CoreMarker(nil))
	assert.Equal(t, "cm4", CoreMarker(ir.CorePtr(ir.CoreCM4)))
}
