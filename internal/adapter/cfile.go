package adapter

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/bspgen/internal/ir"
)

// Patterns recognised in CubeMX-generated HAL init code:
//
//	GPIO_InitStruct.Pin = GPIO_PIN_9|GPIO_PIN_10;
//	GPIO_InitStruct.Alternate = GPIO_AF7_USART1;
//	HAL_GPIO_Init(GPIOA, &GPIO_InitStruct);
//	__HAL_RCC_USART1_CLK_ENABLE();
var (
	cPinRe    = regexp.MustCompile(`GPIO_PIN_(\d+)`)
	cAltRe    = regexp.MustCompile(`GPIO_InitStruct\.Alternate\s*=\s*GPIO_AF(\d+)_([A-Z0-9_]+)`)
	cPortRe   = regexp.MustCompile(`HAL_GPIO_Init\s*\(\s*GPIO([A-Z])\s*,\s*&GPIO_InitStruct\s*\)`)
	cKernelRe = regexp.MustCompile(`__HAL_RCC_([A-Z0-9]+)_CLK_ENABLE\s*\(\s*\)`)
)

// ExtractOptions supplies what C init code does not say.
type ExtractOptions struct {
	MCU     string // e.g. "STM32H747XIHx"
	Package string // e.g. "LQFP176"
}

// initState is the rolling state of one file scan. It is flushed into pins
// by each HAL_GPIO_Init call.
type initState struct {
	pinNums []uint8
	af      *uint8
	signal  string
	port    byte
}

// ExtractFromC builds an approximate IR from HAL C sources. Unrecognised
// lines are ignored.
func ExtractFromC(files []string, opts ExtractOptions) (*ir.Ir, error) {
	if len(files) == 0 {
		return nil, ir.NewNoInputFiles("C source files")
	}
	x := &ir.Ir{MCU: opts.MCU, Package: opts.Package}
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		err = extractC(f, x)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	return x, nil
}

// ExtractFromCSource is ExtractFromC over in-memory sources.
func ExtractFromCSource(sources []string, opts ExtractOptions) (*ir.Ir, error) {
	if len(sources) == 0 {
		return nil, ir.NewNoInputFiles("C source files")
	}
	x := &ir.Ir{MCU: opts.MCU, Package: opts.Package}
	for _, src := range sources {
		if err := extractC(strings.NewReader(src), x); err != nil {
			return nil, err
		}
	}
	return x, nil
}

func extractC(r io.Reader, x *ir.Ir) error {
	var st initState
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()

		if ms := cPinRe.FindAllStringSubmatch(line, -1); ms != nil {
			st.pinNums = st.pinNums[:0]
			for _, m := range ms {
				if n, err := strconv.ParseUint(m[1], 10, 8); err == nil {
					st.pinNums = append(st.pinNums, uint8(n))
				}
			}
			continue
		}
		if m := cAltRe.FindStringSubmatch(line); m != nil {
			if af, err := strconv.ParseUint(m[1], 10, 8); err == nil {
				v := uint8(af)
				st.af = &v
			}
			st.signal = m[2]
			continue
		}
		if m := cPortRe.FindStringSubmatch(line); m != nil {
			st.port = m[1][0]
			st.flush(x)
			continue
		}
		if m := cKernelRe.FindStringSubmatch(line); m != nil {
			x.Clocks.Kernels.SetDefault(strings.ToLower(m[1]), "pclk")
		}
	}
	return sc.Err()
}

// flush records one pin per pending number. Nothing is recorded until pins,
// an AF and a signal have all been seen.
func (st *initState) flush(x *ir.Ir) {
	if len(st.pinNums) == 0 || st.af == nil || st.signal == "" {
		return
	}
	inst, _, _ := strings.Cut(st.signal, "_")
	inst = strings.ToLower(inst)
	p, ok := x.Peripherals.Get(inst)
	if !ok {
		p = ir.Peripheral{Class: classOf(st.signal)}
	}
	for _, n := range st.pinNums {
		pin := fmt.Sprintf("P%c%d", st.port, n)
		x.Pinctrl = append(x.Pinctrl, ir.Pin{Pin: pin, Func: st.signal, AF: *st.af})
		// The AF macro names the instance, not the role: key signals by pin.
		p.Signals.SetDefault(strings.ToLower(pin), pin)
	}
	x.Peripherals.Set(inst, p)
}

func classOf(sig string) string {
	switch {
	case strings.HasPrefix(sig, "USART"), strings.HasPrefix(sig, "UART"):
		return "serial"
	case strings.HasPrefix(sig, "I2C"):
		return "i2c"
	case strings.HasPrefix(sig, "SPI"):
		return "spi"
	case strings.HasPrefix(sig, "TIM"):
		return "timer"
	default:
		return "misc"
	}
}

// DiscoverCSources returns root itself when it is a file, or every .c and .h
// file below it in lexical order. A missing root yields nothing.
func DiscoverCSources(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}
	var out []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".c", ".h":
			out = append(out, path)
		}
		return nil
	})
	return out, err
}
