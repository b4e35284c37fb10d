package spibus

import "errors"

var (
	// ErrNilPort is returned when a bus is created without a port.
	ErrNilPort = errors.New("spibus: nil port")
	// ErrNilPin is returned when a device is created without a chip-select pin.
	ErrNilPin = errors.New("spibus: nil chip-select pin")
	// ErrInvalidFrequency is returned for a non-positive clock rate.
	ErrInvalidFrequency = errors.New("spibus: invalid frequency")
	// ErrBusClosed is returned by operations on a closed bus.
	ErrBusClosed = errors.New("spibus: bus closed")
)
