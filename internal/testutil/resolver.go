// Package testutil holds fixtures shared by package tests: a stub AF
// resolver, a sample .ioc project and builders for vendor archives.
package testutil

import "strings"

// StubResolver resolves USART1 signals to AF7, SPI1 to AF5, I2C1 to AF4 and
// everything else to 0. It never reports a lookup as unresolved.
type StubResolver struct{}

// LookupAF implements afdb.Resolver.
func (StubResolver) LookupAF(_, _, fn string) (uint8, bool) {
	switch {
	case fn == "USART1_TX" || fn == "USART1_RX":
		return 7, true
	case strings.HasPrefix(fn, "SPI1_"):
		return 5, true
	case strings.HasPrefix(fn, "I2C1_"):
		return 4, true
	}
	return 0, true
}

// ConstResolver resolves every lookup to the same AF.
type ConstResolver uint8

// LookupAF implements afdb.Resolver.
func (c ConstResolver) LookupAF(_, _, _ string) (uint8, bool) {
	return uint8(c), true
}
