package spibus

import (
	"fmt"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
)

// DefaultFrequency is the clock rate of a device created without WithFrequency.
const DefaultFrequency = physic.MegaHertz

// DeviceOption configures a Device.
type DeviceOption interface {
	apply(*Device) error
}

type deviceOptFunc func(*Device) error

func (f deviceOptFunc) apply(d *Device) error {
	return f(d)
}

// WithFrequency sets the clock rate used while the device holds the bus.
func WithFrequency(f physic.Frequency) DeviceOption {
	return deviceOptFunc(func(d *Device) error {
		if f <= 0 {
			return ErrInvalidFrequency
		}
		d.freq = f
		return nil
	})
}

// WithActiveHighSelect makes the chip-select line active high. The default is active low.
func WithActiveHighSelect() DeviceOption {
	return deviceOptFunc(func(d *Device) error {
		d.activeLow = false
		return nil
	})
}

// Device is one chip-selected peripheral on a Bus.
type Device struct {
	bus       *Bus
	cs        gpio.PinOut
	activeLow bool
	freq      physic.Frequency
}

// NewDevice attaches a device to bus and de-asserts its chip-select.
func NewDevice(bus *Bus, cs gpio.PinOut, opts ...DeviceOption) (*Device, error) {
	if bus == nil {
		return nil, ErrNilPort
	}
	if cs == nil {
		return nil, ErrNilPin
	}

	d := &Device{bus: bus, cs: cs, activeLow: true, freq: DefaultFrequency}
	for _, opt := range opts {
		if err := opt.apply(d); err != nil {
			return nil, err
		}
	}

	if err := d.cs.Out(d.level(false)); err != nil {
		return nil, fmt.Errorf("spibus: de-assert %s: %w", cs, err)
	}

	return d, nil
}

// Frequency returns the device clock rate.
func (d *Device) Frequency() physic.Frequency {
	d.bus.mu.Lock()
	defer d.bus.mu.Unlock()

	return d.freq
}

// SetFrequency changes the clock rate applied on the next Acquire.
func (d *Device) SetFrequency(f physic.Frequency) error {
	if f <= 0 {
		return ErrInvalidFrequency
	}

	d.bus.mu.Lock()
	d.freq = f
	d.bus.mu.Unlock()

	return nil
}

// Acquire takes exclusive ownership of the bus, applies the device clock rate and asserts the
// chip-select. It blocks while another device holds the bus. On error the bus is not held.
func (d *Device) Acquire() error {
	if err := d.bus.lock(d); err != nil {
		return err
	}

	if err := d.cs.Out(d.level(true)); err != nil {
		d.bus.unlock()
		return fmt.Errorf("spibus: assert %s: %w", d.cs, err)
	}

	return nil
}

// Release de-asserts the chip-select and frees the bus. The bus is freed even when the pin
// write fails.
func (d *Device) Release() error {
	defer d.bus.unlock()

	if err := d.cs.Out(d.level(false)); err != nil {
		return fmt.Errorf("spibus: de-assert %s: %w", d.cs, err)
	}

	return nil
}

// Tx performs one full-duplex transfer. The caller must hold the device.
func (d *Device) Tx(w, r []byte) error {
	return d.bus.conn.Tx(w, r)
}

// Transact runs fn between Acquire and Release.
func (d *Device) Transact(fn func(c spi.Conn) error) error {
	if err := d.Acquire(); err != nil {
		return err
	}

	err := fn(d.bus.conn)
	if rerr := d.Release(); err == nil {
		err = rerr
	}

	return err
}

func (d *Device) level(asserted bool) gpio.Level {
	if d.activeLow {
		return gpio.Level(!asserted)
	}

	return gpio.Level(asserted)
}
