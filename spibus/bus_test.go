package spibus

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/periph/conn"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpiotest"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
)

// eventLog records bus and pin activity in order.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakeConn struct {
	log *eventLog
	// reply is copied into r on every Tx
	reply []byte
}

func (c *fakeConn) String() string { return "fake-conn" }

func (c *fakeConn) Duplex() conn.Duplex { return conn.Full }

func (c *fakeConn) Tx(w, r []byte) error {
	c.log.add("tx %x", w)
	copy(r, c.reply)
	return nil
}

func (c *fakeConn) TxPackets(p []spi.Packet) error {
	for _, pkt := range p {
		if err := c.Tx(pkt.W, pkt.R); err != nil {
			return err
		}
	}
	return nil
}

type fakePort struct {
	log      *eventLog
	conn     *fakeConn
	limitErr error
	closed   bool
}

func newFakePort(log *eventLog) *fakePort {
	return &fakePort{log: log, conn: &fakeConn{log: log}}
}

func (p *fakePort) String() string { return "fake-spi" }

func (p *fakePort) Connect(f physic.Frequency, mode spi.Mode, bits int) (spi.Conn, error) {
	p.log.add("connect %d %d", mode, bits)
	return p.conn, nil
}

func (p *fakePort) LimitSpeed(f physic.Frequency) error {
	if p.limitErr != nil {
		return p.limitErr
	}
	p.log.add("speed %s", f)
	return nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

// recordPin is a gpiotest.Pin that logs every output level.
type recordPin struct {
	*gpiotest.Pin
	log *eventLog
}

func newRecordPin(name string, log *eventLog) *recordPin {
	return &recordPin{Pin: &gpiotest.Pin{N: name}, log: log}
}

func (p *recordPin) Out(l gpio.Level) error {
	p.log.add("%s %s", p.N, l)
	return p.Pin.Out(l)
}

func TestDevice_AcquireOrdering(t *testing.T) {
	require := require.New(t)

	log := &eventLog{}
	port := newFakePort(log)
	bus, err := NewBus(port, spi.Mode0, 8)
	require.NoError(err)
	require.Equal("fake-spi", bus.String())

	cs := newRecordPin("CS0", log)
	dev, err := NewDevice(bus, cs, WithFrequency(2*physic.MegaHertz))
	require.NoError(err)
	require.Equal(gpio.High, cs.Read(), "active-low select idles high")

	require.NoError(dev.Acquire())
	require.NoError(dev.Tx([]byte{0x01, 0x02}, make([]byte, 2)))
	require.NoError(dev.Release())

	require.Equal([]string{
		"connect 0 8",
		"CS0 High",
		"speed 2MHz",
		"CS0 Low",
		"tx 0102",
		"CS0 High",
	}, log.list())
}

func TestDevice_ActiveHighSelect(t *testing.T) {
	require := require.New(t)

	log := &eventLog{}
	bus, err := NewBus(newFakePort(log), spi.Mode3, 8)
	require.NoError(err)

	cs := newRecordPin("CS1", log)
	dev, err := NewDevice(bus, cs, WithActiveHighSelect())
	require.NoError(err)
	require.Equal(DefaultFrequency, dev.Frequency())
	require.Equal(gpio.Low, cs.Read())

	require.NoError(dev.Transact(func(c spi.Conn) error {
		require.Equal(gpio.High, cs.Read())
		return nil
	}))
	require.Equal(gpio.Low, cs.Read())
}

func TestDevice_SetFrequency(t *testing.T) {
	require := require.New(t)

	log := &eventLog{}
	bus, err := NewBus(newFakePort(log), spi.Mode0, 8)
	require.NoError(err)
	dev, err := NewDevice(bus, newRecordPin("CS", log))
	require.NoError(err)

	require.ErrorIs(dev.SetFrequency(0), ErrInvalidFrequency)
	require.NoError(dev.SetFrequency(8 * physic.MegaHertz))
	require.NoError(dev.Transact(func(c spi.Conn) error { return nil }))
	require.Contains(log.list(), "speed 8MHz")
}

func TestDevice_Transact(t *testing.T) {
	require := require.New(t)

	log := &eventLog{}
	port := newFakePort(log)
	port.conn.reply = []byte{0xAA, 0xBB}
	bus, err := NewBus(port, spi.Mode0, 8)
	require.NoError(err)
	cs := newRecordPin("CS", log)
	dev, err := NewDevice(bus, cs)
	require.NoError(err)

	r := make([]byte, 2)
	require.NoError(dev.Transact(func(c spi.Conn) error {
		return c.Tx([]byte{0, 0}, r)
	}))
	require.Equal([]byte{0xAA, 0xBB}, r)

	errFn := errors.New("transfer failed")
	require.ErrorIs(dev.Transact(func(c spi.Conn) error { return errFn }), errFn)
	require.Equal(gpio.High, cs.Read(), "select released after failure")

	// bus is free again
	require.NoError(dev.Acquire())
	require.NoError(dev.Release())
}

func TestDevice_LimitSpeedError(t *testing.T) {
	require := require.New(t)

	log := &eventLog{}
	port := newFakePort(log)
	bus, err := NewBus(port, spi.Mode0, 8)
	require.NoError(err)
	cs := newRecordPin("CS", log)
	dev, err := NewDevice(bus, cs)
	require.NoError(err)

	errSpeed := errors.New("unsupported")
	port.limitErr = errSpeed
	require.ErrorIs(dev.Acquire(), errSpeed)
	require.Equal(gpio.High, cs.Read(), "select never asserted")

	port.limitErr = nil
	require.NoError(dev.Acquire())
	require.NoError(dev.Release())
}

func TestBus_Exclusive(t *testing.T) {
	require := require.New(t)

	log := &eventLog{}
	bus, err := NewBus(newFakePort(log), spi.Mode0, 8)
	require.NoError(err)
	devA, err := NewDevice(bus, newRecordPin("A", log))
	require.NoError(err)
	devB, err := NewDevice(bus, newRecordPin("B", log))
	require.NoError(err)

	require.NoError(devA.Acquire())

	acquired := make(chan struct{})
	go func() {
		if devB.Acquire() == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		require.Fail("second device acquired a held bus")
	case <-time.After(30 * time.Millisecond):
	}

	require.NoError(devA.Release())
	select {
	case <-acquired:
	case <-time.After(time.Second):
		require.Fail("second device never acquired the bus")
	}
	require.NoError(devB.Release())
}

func TestBus_Close(t *testing.T) {
	require := require.New(t)

	log := &eventLog{}
	port := newFakePort(log)
	bus, err := NewBus(port, spi.Mode0, 8)
	require.NoError(err)
	dev, err := NewDevice(bus, newRecordPin("CS", log))
	require.NoError(err)

	require.NoError(bus.Close())
	require.True(port.closed)
	require.NoError(bus.Close())
	require.ErrorIs(dev.Acquire(), ErrBusClosed)

	_, err = NewBus(nil, spi.Mode0, 8)
	require.ErrorIs(err, ErrNilPort)
	_, err = NewDevice(bus, nil)
	require.ErrorIs(err, ErrNilPin)
}
