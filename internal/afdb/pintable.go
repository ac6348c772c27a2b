package afdb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// PinTable maps pin -> signal -> AF number for one MCU.
type PinTable struct {
	pins map[string]map[string]uint8
}

// Entry is one row of a pin table.
type Entry struct {
	Pin    string
	Signal string
	AF     uint8
}

// ParsePinTable reads a per-MCU document of the form {"pins": {PIN: ...}}.
//
// Each pin accepts either an array of {"signal", "af"} objects or an object
// keyed by signal whose value is {"af": n} or a bare number. A pin object
// carrying "sigs" ({"name", "sigs", "position"}) reads its signals from that
// key only. Entries without a signal or AF are skipped, as are string, bool
// and null values; an AF outside 0..255 is an error.
func ParsePinTable(data []byte) (*PinTable, error) {
	var doc struct {
		Pins map[string]json.RawMessage `json:"pins"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	t := &PinTable{pins: make(map[string]map[string]uint8, len(doc.Pins))}
	for pin, raw := range doc.Pins {
		if err := t.merge(pin, raw); err != nil {
			return nil, fmt.Errorf("pin %s: %w", pin, err)
		}
	}
	return t, nil
}

// NewPinTable builds a table from rows; a later row for the same pin and
// signal replaces an earlier one.
func NewPinTable(entries []Entry) *PinTable {
	t := &PinTable{pins: make(map[string]map[string]uint8)}
	for _, e := range entries {
		_ = t.set(e.Pin, e.Signal, int(e.AF))
	}
	return t
}

type signalAF struct {
	Signal string `json:"signal"`
	AF     *int   `json:"af"`
}

func (t *PinTable) merge(pin string, raw json.RawMessage) error {
	var list []signalAF
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, e := range list {
			if e.Signal == "" || e.AF == nil {
				continue
			}
			if err := t.set(pin, e.Signal, *e.AF); err != nil {
				return err
			}
		}
		return nil
	}

	var bySignal map[string]json.RawMessage
	if err := json.Unmarshal(raw, &bySignal); err != nil {
		return fmt.Errorf("want array or object of signals: %w", err)
	}
	if sigs, ok := bySignal["sigs"]; ok {
		return t.merge(pin, sigs)
	}
	for sig, v := range bySignal {
		if !numberOrObject(v) {
			continue
		}
		var n int
		if err := json.Unmarshal(v, &n); err == nil {
			if err := t.set(pin, sig, n); err != nil {
				return err
			}
			continue
		}
		var nested struct {
			AF *int `json:"af"`
		}
		if err := json.Unmarshal(v, &nested); err != nil {
			return fmt.Errorf("signal %s: %w", sig, err)
		}
		if nested.AF == nil {
			continue
		}
		if err := t.set(pin, sig, *nested.AF); err != nil {
			return err
		}
	}
	return nil
}

// numberOrObject reports whether v can carry an AF.
func numberOrObject(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return false
	}
	switch c := v[0]; {
	case c == '{', c == '-', c >= '0' && c <= '9':
		return true
	}
	return false
}

func (t *PinTable) set(pin, signal string, af int) error {
	if af < 0 || af > 255 {
		return fmt.Errorf("signal %s: af %d out of range", signal, af)
	}
	funcs, ok := t.pins[pin]
	if !ok {
		funcs = make(map[string]uint8)
		t.pins[pin] = funcs
	}
	funcs[signal] = uint8(af)
	return nil
}

// Lookup returns the AF for signal on pin.
func (t *PinTable) Lookup(pin, signal string) (uint8, bool) {
	af, ok := t.pins[pin][signal]
	return af, ok
}

// Len returns the number of pins in the table.
func (t *PinTable) Len() int {
	return len(t.pins)
}

// Entries returns every row sorted by pin, then signal.
func (t *PinTable) Entries() []Entry {
	var out []Entry
	for pin, funcs := range t.pins {
		for sig, af := range funcs {
			out = append(out, Entry{Pin: pin, Signal: sig, AF: af})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pin != out[j].Pin {
			return out[i].Pin < out[j].Pin
		}
		return out[i].Signal < out[j].Signal
	})
	return out
}
