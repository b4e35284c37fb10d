package spibus

import (
	"fmt"
	"sync"

	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
)

// DefaultMaxFrequency is the connection ceiling used by NewBus.
const DefaultMaxFrequency = 20 * physic.MegaHertz

// Bus is one SPI port shared between devices.
type Bus struct {
	mu     sync.Mutex
	port   spi.PortCloser
	conn   spi.Conn
	closed bool
}

// NewBus connects port once with the given mode and word size. Devices later narrow the
// clock rate per transaction.
func NewBus(port spi.PortCloser, mode spi.Mode, bits int) (*Bus, error) {
	if port == nil {
		return nil, ErrNilPort
	}

	c, err := port.Connect(DefaultMaxFrequency, mode, bits)
	if err != nil {
		return nil, fmt.Errorf("spibus: connect %s: %w", port, err)
	}

	return &Bus{port: port, conn: c}, nil
}

// String returns the name of the underlying port.
func (b *Bus) String() string {
	return b.port.String()
}

// Close releases the port. It waits for an in-progress transaction to finish.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	return b.port.Close()
}

func (b *Bus) lock(d *Device) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	freq := d.freq
	if err := b.port.LimitSpeed(freq); err != nil {
		b.mu.Unlock()
		return fmt.Errorf("spibus: limit speed to %s: %w", freq, err)
	}

	return nil
}

func (b *Bus) unlock() {
	b.mu.Unlock()
}
