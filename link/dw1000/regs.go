package dw1000

// Register file ids.
const (
	regDevID     = 0x00
	regPanAdr    = 0x03
	regSysCfg    = 0x04
	regTxFctrl   = 0x08
	regTxBuffer  = 0x09
	regSysCtrl   = 0x0D
	regSysMask   = 0x0E
	regSysStatus = 0x0F
	regRxFinfo   = 0x10
	regRxBuffer  = 0x11
	regPmsc      = 0x36
)

// DeviceID is the value of the DEV_ID register on a DW1000.
const DeviceID uint32 = 0xDECA0130

// PanID is the PAN identifier written into every frame and the address filter.
const PanID uint16 = 0xDECA

// SYS_CFG bits.
const (
	sysCfgFFEN   = 1 << 0  // frame filtering enable
	sysCfgFFAD   = 1 << 3  // accept data frames
	sysCfgRXAUTR = 1 << 29 // receiver re-enabled after a receive error
)

// SYS_CTRL bits.
const (
	sysCtrlTXSTRT   = 1 << 1
	sysCtrlTRXOFF   = 1 << 6
	sysCtrlWAIT4RSP = 1 << 7
	sysCtrlRXENAB   = 1 << 8
)

// SYS_STATUS bits.
const (
	statusTXFRS   = 1 << 7
	statusRXDFR   = 1 << 13
	statusRXFCG   = 1 << 14
	statusRXFCE   = 1 << 15
	statusRXRFSL  = 1 << 16
	statusRXPHE   = 1 << 12
	statusRXRFTO  = 1 << 17
	statusHPDWARN = 1 << 27

	statusRxGood  = statusRXDFR | statusRXFCG
	statusRxError = statusRXFCE | statusRXRFSL | statusRXPHE | statusRXRFTO

	// interrupt sources: good frames and every receive error, so a bad frame still wakes
	// the reader and gets its status cleared
	sysMaskRx = statusRXFCG | statusRxError
)

const (
	rxFinfoLenMask = 0x3FF
	txFctrlLenMask = 0x3FF
	maxFrameSize   = 127
)

// PMSC_CTRL0 soft reset sequence.
const (
	pmscCtrl0       = 0x00
	pmscSysClkXTI   = 0x01
	pmscResetOffset = 0x03
	pmscResetAll    = 0x00
	pmscResetClear  = 0xF0
)

// header encodes the SPI transaction header for reg at offset.
//
// Byte 0 carries the write flag in bit 7, the sub-index flag in bit 6 and the register id
// in bits 0-5. A non-zero offset adds one byte (offset < 0x80) or two bytes (extended).
func header(reg uint8, offset uint16, write bool) []byte {
	b0 := reg & 0x3F
	if write {
		b0 |= 0x80
	}

	switch {
	case offset == 0:
		return []byte{b0}
	case offset < 0x80:
		return []byte{b0 | 0x40, uint8(offset)}
	default:
		return []byte{b0 | 0x40, 0x80 | uint8(offset&0x7F), uint8(offset >> 7)}
	}
}
