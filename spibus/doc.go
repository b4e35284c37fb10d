// Package spibus serializes access to a SPI bus shared by several chip-selected devices.
//
// A Bus wraps one periph.io SPI port. Each Device on that bus owns a chip-select line and a
// clock rate. Acquire takes the bus exclusively, programs the device's clock rate and asserts
// its chip-select; Release de-asserts the chip-select and frees the bus. Every Acquire must be
// paired with a Release, and Transact does the pairing for the caller:
//
//	err := dev.Transact(func(c spi.Conn) error {
//	    return c.Tx(w, r)
//	})
package spibus
