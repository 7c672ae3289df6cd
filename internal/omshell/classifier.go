// Package omshell drives an ISC DHCP server through the omshell tool and
// provisions the OMAPI key it authenticates with.
package omshell

import (
	"bytes"
	"strings"
)

// Verb names an omshell command script.
type Verb string

const (
	VerbConnect      Verb = "connect"
	VerbCreate       Verb = "create"
	VerbModify       Verb = "modify"
	VerbRemove       Verb = "remove"
	VerbNullifyLease Verb = "nullify-lease"
)

// Outcome is the classified result of one omshell run.
type Outcome int

const (
	Failure Outcome = iota
	Success
	AlreadyExists
	NotFound
	Invalid
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case AlreadyExists:
		return "already_exists"
	case NotFound:
		return "not_found"
	case Invalid:
		return "invalid"
	default:
		return "failure"
	}
}

// Satisfied reports whether the outcome leaves the server in the requested state.
func (o Outcome) Satisfied() bool {
	return o == Success || o == AlreadyExists || o == NotFound
}

// omshell prints no status line, so these fragments of its echo are all there is.
const (
	markerHardwareType = "hardware-type"
	markerNullObject   = "obj: <null"
	markerExists       = "can't open object: I/O error"
	markerNotFound     = "can't open object: not found"
	markerInvalid      = "invalid"
	markerEndsZeroed   = "\nends = 00:00:00:00"
)

// Classify maps raw omshell output for a verb onto an Outcome.
func Classify(verb Verb, output []byte) Outcome {
	out := string(output)
	switch verb {
	case VerbConnect:
		if endsWithNullObject(output) {
			return Success
		}
		return Failure
	case VerbCreate:
		switch {
		case strings.Contains(out, markerHardwareType):
			return Success
		case strings.Contains(out, markerExists):
			return AlreadyExists
		}
		return Failure
	case VerbModify:
		if strings.Contains(out, markerHardwareType) {
			return Success
		}
		return Failure
	case VerbRemove:
		switch {
		case endsWithNullObject(output):
			return Success
		case strings.Contains(out, markerNotFound):
			return NotFound
		}
		return Failure
	case VerbNullifyLease:
		switch {
		case strings.Contains(out, markerNotFound):
			return NotFound
		case strings.Contains(out, markerInvalid):
			return Invalid
		case strings.Contains(out, markerEndsZeroed):
			return Success
		}
		return Failure
	}
	return Failure
}

// endsWithNullObject checks the last line once prompts and blank lines are trimmed.
func endsWithNullObject(output []byte) bool {
	trimmed := bytes.Trim(output, "\n >")
	if len(trimmed) == 0 {
		return false
	}
	lines := bytes.Split(trimmed, []byte("\n"))
	return bytes.Contains(lines[len(lines)-1], []byte(markerNullObject))
}
