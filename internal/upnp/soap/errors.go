package soap

import "fmt"

// SoapError represents a UPnP error response from a device. Code is the
// numeric UPnP error code when the fault carried one.
type SoapError struct {
	Action      string
	Code        *int
	Description string
}

func (e *SoapError) Error() string {
	if e.Code == nil {
		return fmt.Sprintf("action %s rejected: %s", e.Action, e.Description)
	}
	if e.Description == "" {
		return fmt.Sprintf("action %s rejected: code %d", e.Action, *e.Code)
	}
	return fmt.Sprintf("action %s rejected: code %d (%s)", e.Action, *e.Code, e.Description)
}

// TimeoutError indicates a request timed out.
type TimeoutError struct {
	Action string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("action %s timed out", e.Action)
}

// UnreachableError indicates the device could not be reached.
type UnreachableError struct {
	Action string
	Err    error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("action %s unreachable: %v", e.Action, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}
