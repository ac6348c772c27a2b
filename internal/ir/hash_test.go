package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fingerprintFixture() *Ir {
	x := &Ir{MCU: "STM32H747XIHx", Package: "TFBGA240"}
	x.Clocks.PLL.Set("pll1", Pll{M: 5, N: 160, P: 2, Q: 4, R: 2})
	x.Clocks.Kernels.Set("usart1", "pclk2")
	x.Pinctrl = []Pin{
		{Pin: "PA9", Func: "USART1_TX", AF: 7, Label: StringPtr("STLINK_RX")},
		{Pin: "PA10", Func: "USART1_RX", AF: 7},
	}
	var usart Peripheral
	usart.Class = "serial"
	usart.Signals.Set("tx", "PA9")
	usart.Signals.Set("rx", "PA10")
	x.Peripherals.Set("usart1", usart)
	return x
}

func TestFingerprintStable(t *testing.T) {
	a := fingerprintFixture()
	b := fingerprintFixture()

	fa, err := Fingerprint(a)
	require.NoError(t, err)
	assert.Len(t, fa, 64)
	assert.Equal(t, fa, MustFingerprint(b))
	assert.Equal(t, fa, MustFingerprint(a.Clone()))
}

func TestFingerprintSensitiveToOrder(t *testing.T) {
	a := fingerprintFixture()
	b := fingerprintFixture()

	var swapped Peripheral
	swapped.Class = "serial"
	swapped.Signals.Set("rx", "PA10")
	swapped.Signals.Set("tx", "PA9")
	b.Peripherals.Set("usart1", swapped)

	assert.NotEqual(t, MustFingerprint(a), MustFingerprint(b))
}

func TestFingerprintSensitiveToFields(t *testing.T) {
	base := MustFingerprint(fingerprintFixture())

	mutations := map[string]func(x *Ir){
		"af":      func(x *Ir) { x.Pinctrl[0].AF = 0 },
		"label":   func(x *Ir) { x.Pinctrl[0].Label = nil },
		"init_by": func(x *Ir) { x.Clocks.InitBy = CorePtr(CoreCM7) },
		"core": func(x *Ir) {
			p, _ := x.Peripherals.Get("usart1")
			p.Core = CorePtr(CoreCM4)
			x.Peripherals.Set("usart1", p)
		},
		"pll": func(x *Ir) { x.Clocks.PLL.Set("pll1", Pll{M: 4, N: 160, P: 2, Q: 4, R: 2}) },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			x := fingerprintFixture()
			mutate(x)
			assert.NotEqual(t, base, MustFingerprint(x))
		})
	}
}

func TestHashWithDomainSeparates(t *testing.T) {
	assert.NotEqual(t, hashWithDomain("a", []byte("bc")), hashWithDomain("ab", []byte("c")))
}
