// Package dw1000 is a minimal Decawave DW1000 driver implementing link.Link.
//
// It covers what the router needs: identity check, soft reset, address filtering and
// single-frame transmit and receive. RF channel and power configuration use the chip's
// power-on defaults.
package dw1000

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/periph/conn/spi"

	"github.com/arloliu/go-robocomm/link"
	"github.com/arloliu/go-robocomm/logger"
	"github.com/arloliu/go-robocomm/rtp"
)

// MACHeaderSize is the IEEE 802.15.4 header prepended to every frame.
const MACHeaderSize = 9

// FooterSize is the frame check sequence appended by the chip.
const FooterSize = 2

// ErrDeviceID is returned by SelfTest when DEV_ID does not match DeviceID.
var ErrDeviceID = errors.New("dw1000: unexpected device id")

// Device is the chip-selected SPI device the radio is attached to.
type Device interface {
	Transact(fn func(c spi.Conn) error) error
}

// Option configures a Radio.
type Option interface {
	apply(*Radio) error
}

type optFunc func(*Radio) error

func (f optFunc) apply(r *Radio) error { return f(r) }

// WithLogger sets the driver logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(r *Radio) error {
		if l != nil {
			r.logger = l
		}
		return nil
	})
}

// WithAddress sets the source address written into outgoing frames.
func WithAddress(addr uint8) Option {
	return optFunc(func(r *Radio) error {
		r.address = addr
		return nil
	})
}

// Radio is a DW1000 transceiver.
type Radio struct {
	dev    Device
	logger logger.Logger

	mu          sync.Mutex // serialize frame operations
	address     uint8
	seq         uint8
	chipID      uint32
	initialized atomic.Bool
}

var _ link.Link = (*Radio)(nil)

// New creates a radio on dev. It does not touch the hardware; call Init.
func New(dev Device, opts ...Option) (*Radio, error) {
	if dev == nil {
		return nil, errors.New("dw1000: nil device")
	}

	r := &Radio{dev: dev, logger: logger.GetLogger(), address: rtp.RobotAddress}
	for _, opt := range opts {
		if err := opt.apply(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "dw1000")

	return r, nil
}

// Init resets the chip, runs the self-test and, when it passes, enables reception with
// automatic receiver re-enable after errored frames.
// A failed self-test leaves the radio disconnected for good.
func (r *Radio) Init() error {
	r.Reset()

	if err := r.SelfTest(); err != nil {
		r.logger.Error("radio self-test failed", "error", err)
		return err
	}

	cfg, err := r.readReg32(regSysCfg, 0)
	if err != nil {
		return err
	}
	if err := r.writeReg32(regSysCfg, 0, cfg|sysCfgRXAUTR); err != nil {
		return err
	}
	if err := r.writeReg32(regSysMask, 0, sysMaskRx); err != nil {
		return err
	}
	if err := r.enableRx(); err != nil {
		return err
	}
	r.logger.Info("radio ready", "chip_id", fmt.Sprintf("0x%08X", r.chipID))

	return nil
}

// ChipID returns the DEV_ID value read by the last SelfTest.
func (r *Radio) ChipID() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.chipID
}

func (r *Radio) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	steps := []struct {
		offset uint16
		value  byte
	}{
		{pmscCtrl0, pmscSysClkXTI},
		{pmscResetOffset, pmscResetAll},
		{pmscResetOffset, pmscResetClear},
	}
	for _, s := range steps {
		if err := r.writeReg(regPmsc, s.offset, []byte{s.value}); err != nil {
			r.logger.Error("soft reset failed", "error", err)
			return
		}
		if s.value == pmscResetAll {
			time.Sleep(10 * time.Microsecond)
		}
	}
}

func (r *Radio) SelfTest() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.readReg32(regDevID, 0)
	if err != nil {
		r.initialized.Store(false)
		return fmt.Errorf("dw1000: read device id: %w", err)
	}
	r.chipID = id

	if id != DeviceID {
		r.initialized.Store(false)
		return fmt.Errorf("%w: found 0x%08X, expected 0x%08X", ErrDeviceID, id, DeviceID)
	}
	r.initialized.Store(true)

	return nil
}

func (r *Radio) IsConnected() bool {
	return r.initialized.Load()
}

// SetAddress sets the short address used as frame source and for address filtering.
func (r *Radio) SetAddress(addr uint8) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.address = addr

	panAdr := make([]byte, 4)
	binary.LittleEndian.PutUint16(panAdr[0:], uint16(addr))
	binary.LittleEndian.PutUint16(panAdr[2:], PanID)
	if err := r.writeReg(regPanAdr, 0, panAdr); err != nil {
		return err
	}

	cfg, err := r.readReg32(regSysCfg, 0)
	if err != nil {
		return err
	}

	return r.writeReg32(regSysCfg, 0, cfg|sysCfgFFEN|sysCfgFFAD)
}

// Send frames pkt behind a MAC header, loads it into the transmit buffer and starts
// transmission with the receiver armed for the response.
func (r *Radio) Send(pkt *rtp.Packet) link.Result {
	if !r.initialized.Load() {
		return link.Failure
	}
	if pkt == nil {
		return link.FunctionBufferError
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	frame := r.frame(pkt)
	if len(frame) > maxFrameSize {
		r.logger.Warn("frame too large", "size", len(frame))
		return link.FunctionBufferError
	}

	if err := r.writeReg32(regSysCtrl, 0, sysCtrlTRXOFF); err != nil {
		r.logger.Error("transceiver off failed", "error", err)
		return link.Failure
	}
	if err := r.writeReg(regTxBuffer, 0, frame); err != nil {
		r.logger.Error("write tx buffer failed", "error", err)
		return link.DeviceBufferError
	}
	if err := r.writeReg32(regTxFctrl, 0, uint32(len(frame))&txFctrlLenMask); err != nil {
		r.logger.Error("write tx frame control failed", "error", err)
		return link.DeviceBufferError
	}
	if err := r.writeReg32(regSysCtrl, 0, sysCtrlTXSTRT|sysCtrlWAIT4RSP); err != nil {
		r.logger.Error("start tx failed", "error", err)
		return link.Failure
	}

	status, err := r.readReg32(regSysStatus, 0)
	if err != nil || status&statusHPDWARN != 0 {
		return link.DeviceBufferError
	}

	return link.Success
}

// Receive reads the pending frame, strips the MAC header and the frame check sequence, then
// clears the receive status and re-enables the receiver.
func (r *Radio) Receive() []byte {
	if !r.initialized.Load() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	defer func() {
		if err := r.enableRx(); err != nil {
			r.logger.Error("re-enable rx failed", "error", err)
		}
	}()

	status, err := r.readReg32(regSysStatus, 0)
	if err != nil {
		r.logger.Error("read status failed", "error", err)
		return nil
	}
	if status&statusRxError != 0 {
		_ = r.writeReg32(regSysStatus, 0, statusRxError)
		r.logger.Debug("rx error", "status", fmt.Sprintf("0x%08X", status))
		return nil
	}
	if status&statusRXFCG == 0 {
		return nil
	}

	finfo, err := r.readReg32(regRxFinfo, 0)
	if err != nil {
		return nil
	}
	n := int(finfo & rxFinfoLenMask)
	if n <= MACHeaderSize+FooterSize {
		_ = r.writeReg32(regSysStatus, 0, statusRxGood)
		return nil
	}

	buf, err := r.readReg(regRxBuffer, MACHeaderSize, n-MACHeaderSize-FooterSize)
	if err != nil {
		r.logger.Error("read rx buffer failed", "error", err)
		return nil
	}
	_ = r.writeReg32(regSysStatus, 0, statusRxGood)

	return buf
}

func (r *Radio) frame(pkt *rtp.Packet) []byte {
	frame := make([]byte, 0, MACHeaderSize+pkt.Size()+FooterSize)
	frame = append(frame,
		0x41, 0x88, r.seq,
		byte(PanID & 0xFF), byte(PanID>>8),
		pkt.Header.Address, 0x00,
		r.address, 0x00,
	)
	r.seq++
	frame = pkt.AppendPack(frame)

	return append(frame, 0x00, 0x00)
}

func (r *Radio) enableRx() error {
	return r.writeReg32(regSysCtrl, 0, sysCtrlRXENAB)
}

func (r *Radio) readReg(reg uint8, offset uint16, n int) ([]byte, error) {
	hdr := header(reg, offset, false)
	w := make([]byte, len(hdr)+n)
	copy(w, hdr)
	rd := make([]byte, len(w))

	if err := r.dev.Transact(func(c spi.Conn) error { return c.Tx(w, rd) }); err != nil {
		return nil, err
	}

	return rd[len(hdr):], nil
}

func (r *Radio) writeReg(reg uint8, offset uint16, data []byte) error {
	w := append(header(reg, offset, true), data...)

	return r.dev.Transact(func(c spi.Conn) error { return c.Tx(w, make([]byte, len(w))) })
}

func (r *Radio) readReg32(reg uint8, offset uint16) (uint32, error) {
	b, err := r.readReg(reg, offset, 4)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(b), nil
}

func (r *Radio) writeReg32(reg uint8, offset uint16, v uint32) error {
	return r.writeReg(reg, offset, binary.LittleEndian.AppendUint32(nil, v))
}
