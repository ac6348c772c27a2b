package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/bspgen/internal/ir"
)

// H747IOC is a small CubeMX project for the STM32H747I-DISCO with a console
// UART, one SPI bus, one I2C bus, a labelled GPIO and clock settings.
const H747IOC = `#MicroXplorer Configuration settings - do not modify
Mcu.Family=STM32H7
Mcu.Name=STM32H747XIHx
Mcu.Package=TFBGA240
PA9.Signal=USART1_TX
PA9.GPIO_Label=STLINK_RX
PA10.Signal=USART1_RX
PA10.GPIO_Label=STLINK_TX
PA5.Signal=SPI1_SCK
PA6.Signal=SPI1_MISO
PA7.Signal=SPI1_MOSI
PB8.Signal=I2C1_SCL
PB9.Signal=I2C1_SDA
PI13.Signal=GPIO_Output
PI13.GPIO_Label=LED1
RCC.USART16ClockSelection=RCC_USART16CLKSOURCE_PCLK2
RCC.Spi123ClockSelection=RCC_SPI123CLKSOURCE_PLL
RCC.PLL1M=5
RCC.PLL1N=160
RCC.PLL1P=2
RCC.PLL1Q=4
RCC.PLL1R=2
RCC.PLL2M=2
RCC.PLL2N=12
`

// SampleIR returns the IR the H747 project yields under StubResolver, with
// duplicate-free pins and no clock ownership.
func SampleIR() *ir.Ir {
	x := &ir.Ir{MCU: "STM32H747XIHx", Package: "TFBGA240"}
	x.Clocks.PLL.Set("pll1", ir.Pll{M: 5, N: 160, P: 2, Q: 4, R: 2})
	x.Clocks.Kernels.Set("usart16", "pclk2")
	x.Clocks.Kernels.Set("spi123", "pll")
	x.Pinctrl = []ir.Pin{
		{Pin: "PA9", Func: "USART1_TX", Label: ir.StringPtr("STLINK_RX"), AF: 7},
		{Pin: "PA10", Func: "USART1_RX", Label: ir.StringPtr("STLINK_TX"), AF: 7},
		{Pin: "PA5", Func: "SPI1_SCK", AF: 5},
		{Pin: "PA6", Func: "SPI1_MISO", AF: 5},
		{Pin: "PA7", Func: "SPI1_MOSI", AF: 5},
		{Pin: "PB8", Func: "I2C1_SCL", AF: 4},
		{Pin: "PB9", Func: "I2C1_SDA", AF: 4},
		{Pin: "PI13", Func: "GPIO_Output", Label: ir.StringPtr("LED1")},
	}
	x.Peripherals.Set("usart1", Peripheral("serial", "tx", "PA9", "rx", "PA10"))
	x.Peripherals.Set("spi1", Peripheral("spi", "sck", "PA5", "miso", "PA6", "mosi", "PA7"))
	x.Peripherals.Set("i2c1", Peripheral("i2c", "scl", "PB8", "sda", "PB9"))
	return x
}

// Peripheral builds a peripheral from alternating role, pin arguments.
func Peripheral(class string, rolePins ...string) ir.Peripheral {
	p := ir.Peripheral{Class: class}
	for i := 0; i+1 < len(rolePins); i += 2 {
		p.Signals.Set(rolePins[i], rolePins[i+1])
	}
	return p
}

// WriteFile writes data to name under t.TempDir() and returns the path.
func WriteFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}
