package link

import (
	"errors"
	"strconv"
)

// Result is the outcome of a link operation.
type Result uint8

const (
	Success Result = iota
	// Failure is a generic failure, including use of an uninitialized driver.
	Failure
	// DeviceBufferError means the hardware rejected the transmit buffer.
	DeviceBufferError
	// FunctionBufferError means a buffer handed to the driver was unusable.
	FunctionBufferError
	// FalseTrigger is a wake-up with no frame behind it.
	FalseTrigger
	// NoData means nothing was available to read.
	NoData
)

var (
	ErrFailure        = errors.New("link: failure")
	ErrDeviceBuffer   = errors.New("link: device buffer error")
	ErrFunctionBuffer = errors.New("link: function buffer error")
	ErrFalseTrigger   = errors.New("link: false trigger")
	ErrNoData         = errors.New("link: no data")
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case DeviceBufferError:
		return "device buffer error"
	case FunctionBufferError:
		return "function buffer error"
	case FalseTrigger:
		return "false trigger"
	case NoData:
		return "no data"
	default:
		return "result(" + strconv.Itoa(int(r)) + ")"
	}
}

// Err returns the sentinel error for r, or nil for Success.
func (r Result) Err() error {
	switch r {
	case Success:
		return nil
	case DeviceBufferError:
		return ErrDeviceBuffer
	case FunctionBufferError:
		return ErrFunctionBuffer
	case FalseTrigger:
		return ErrFalseTrigger
	case NoData:
		return ErrNoData
	default:
		return ErrFailure
	}
}
