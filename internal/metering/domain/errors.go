package metering

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport is returned when the vendor API cannot be reached or times out.
	ErrTransport = errors.New("metering: transport failure")
	// ErrProtocol is returned when the vendor payload is unsuccessful or malformed.
	ErrProtocol = errors.New("metering: protocol failure")
	// ErrPersist is returned when a sample cannot be written.
	ErrPersist = errors.New("metering: persist failure")
	// ErrInvalidSample is returned when a sample misses required fields.
	ErrInvalidSample = errors.New("metering: invalid sample")
)

// FetchError describes a failed fetch for one meter.
type FetchError struct {
	SerialNumber string
	// Kind is ErrTransport or ErrProtocol.
	Kind error
	Err  error
}

// NewTransportError wraps err as a transport failure.
func NewTransportError(serialNumber string, err error) *FetchError {
	return &FetchError{SerialNumber: serialNumber, Kind: ErrTransport, Err: err}
}

// NewProtocolError builds a protocol failure from a message.
func NewProtocolError(serialNumber, format string, args ...any) *FetchError {
	return &FetchError{SerialNumber: serialNumber, Kind: ErrProtocol, Err: fmt.Errorf(format, args...)}
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%v: meter %s: %v", e.Kind, e.SerialNumber, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
