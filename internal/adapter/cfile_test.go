package adapter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bspgen/internal/ir"
	"github.com/roach88/bspgen/internal/testutil"
)

const mspInit = `
void HAL_UART_MspInit(UART_HandleTypeDef* huart)
{
    GPIO_InitTypeDef GPIO_InitStruct = {0};
    __HAL_RCC_USART1_CLK_ENABLE();
    __HAL_RCC_GPIOA_CLK_ENABLE();
    GPIO_InitStruct.Pin = GPIO_PIN_9|GPIO_PIN_10;
    GPIO_InitStruct.Mode = GPIO_MODE_AF_PP;
    GPIO_InitStruct.Pull = GPIO_NOPULL;
    GPIO_InitStruct.Speed = GPIO_SPEED_FREQ_VERY_HIGH;
    GPIO_InitStruct.Alternate = GPIO_AF7_USART1;
    HAL_GPIO_Init(GPIOA, &GPIO_InitStruct);
}

void HAL_I2C_MspInit(I2C_HandleTypeDef* hi2c)
{
    GPIO_InitStruct.Pin = GPIO_PIN_12 | GPIO_PIN_13;
    GPIO_InitStruct.Alternate = GPIO_AF4_I2C4;
    HAL_GPIO_Init( GPIOD , &GPIO_InitStruct );
    __HAL_RCC_I2C4_CLK_ENABLE( );
}
`

func TestExtractFromC(t *testing.T) {
	path := testutil.WriteFile(t, "main.c", []byte(mspInit))
	x, err := ExtractFromC([]string{path}, ExtractOptions{MCU: "STM32H747XIHx", Package: "LQFP176"})
	require.NoError(t, err)

	assert.Equal(t, "STM32H747XIHx", x.MCU)
	assert.Equal(t, "LQFP176", x.Package)
	assert.Equal(t, []ir.Pin{
		{Pin: "PA9", Func: "USART1", AF: 7},
		{Pin: "PA10", Func: "USART1", AF: 7},
		{Pin: "PD12", Func: "I2C4", AF: 4},
		{Pin: "PD13", Func: "I2C4", AF: 4},
	}, x.Pinctrl)

	assert.Equal(t, []string{"usart1", "i2c4"}, x.Peripherals.Keys())
	usart, _ := x.Peripherals.Get("usart1")
	assert.Equal(t, "serial", usart.Class)
	assert.Equal(t, []string{"PA9", "PA10"}, usart.Signals.Values())
	i2c, _ := x.Peripherals.Get("i2c4")
	assert.Equal(t, "i2c", i2c.Class)

	assert.Equal(t, []string{"usart1", "gpioa", "i2c4"}, x.Clocks.Kernels.Keys())
	src, _ := x.Clocks.Kernels.Get("usart1")
	assert.Equal(t, "pclk", src)
	require.NoError(t, x.Validate())
}

func TestExtractFromCIgnoresIncompleteBlocks(t *testing.T) {
	src := `
    GPIO_InitStruct.Pin = GPIO_PIN_13;
    GPIO_InitStruct.Mode = GPIO_MODE_OUTPUT_PP;
    HAL_GPIO_Init(GPIOC, &GPIO_InitStruct);
    int garbage = GPIO_AF;
`
	x, err := ExtractFromCSource([]string{src}, ExtractOptions{MCU: "X"})
	require.NoError(t, err)
	assert.Empty(t, x.Pinctrl)
	assert.Zero(t, x.Peripherals.Len())
}

func TestExtractFromCStateCarriesAcrossBlocks(t *testing.T) {
	// The AF and signal of the first block stay in effect for the second.
	src := `
    GPIO_InitStruct.Pin = GPIO_PIN_5;
    GPIO_InitStruct.Alternate = GPIO_AF1_TIM2;
    HAL_GPIO_Init(GPIOA, &GPIO_InitStruct);
    GPIO_InitStruct.Pin = GPIO_PIN_3;
    HAL_GPIO_Init(GPIOB, &GPIO_InitStruct);
`
	x, err := ExtractFromCSource([]string{src}, ExtractOptions{MCU: "X"})
	require.NoError(t, err)
	require.Len(t, x.Pinctrl, 2)
	assert.Equal(t, "PB3", x.Pinctrl[1].Pin)
	assert.Equal(t, uint8(1), x.Pinctrl[1].AF)
	tim, _ := x.Peripherals.Get("tim2")
	assert.Equal(t, "timer", tim.Class)
	assert.Equal(t, 2, tim.Signals.Len())
}

func TestExtractFromCKernelKeepsFirstSource(t *testing.T) {
	src := "__HAL_RCC_SPI1_CLK_ENABLE();\n__HAL_RCC_SPI1_CLK_ENABLE();\n"
	x, err := ExtractFromCSource([]string{src}, ExtractOptions{MCU: "X"})
	require.NoError(t, err)
	assert.Equal(t, 1, x.Clocks.Kernels.Len())
}

func TestExtractFromCNoFiles(t *testing.T) {
	_, err := ExtractFromC(nil, ExtractOptions{MCU: "X"})
	assert.True(t, ir.IsCode(err, ir.ErrCodeNoInputFiles))
	_, err = ExtractFromCSource(nil, ExtractOptions{MCU: "X"})
	assert.True(t, ir.IsCode(err, ir.ErrCodeNoInputFiles))
}

func TestExtractFromCMissingFile(t *testing.T) {
	_, err := ExtractFromC([]string{filepath.Join(t.TempDir(), "gone.c")}, ExtractOptions{MCU: "X"})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestClassOf(t *testing.T) {
	tests := map[string]string{
		"USART3": "serial",
		"UART7":  "serial",
		"I2C1":   "i2c",
		"SPI4":   "spi",
		"TIM15":  "timer",
		"FDCAN1": "misc",
		"ETH":    "misc",
	}
	for sig, want := range tests {
		assert.Equal(t, want, classOf(sig), sig)
	}
}

func TestDiscoverCSources(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"Core/Src/main.c", "Core/Inc/main.h", "Core/Src/notes.txt", "Drivers/gpio.c"} {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}

	files, err := DiscoverCSources(root)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "Core/Inc/main.h"),
		filepath.Join(root, "Core/Src/main.c"),
		filepath.Join(root, "Drivers/gpio.c"),
	}, files)

	single := filepath.Join(root, "Core/Src/notes.txt")
	files, err = DiscoverCSources(single)
	require.NoError(t, err)
	assert.Equal(t, []string{single}, files)

	files, err = DiscoverCSources(filepath.Join(root, "missing"))
	require.NoError(t, err)
	assert.Empty(t, files)
}
