package model

import "fmt"

// FormatError reports a malformed or inconsistent weight artifact. A model
// is never returned together with a FormatError.
type FormatError struct {
	Layer  int    // index of the offending layer, -1 for the artifact itself
	Name   string // artifact key of the layer, e.g. "dense1"
	Detail string
	Want   int
	Got    int
	Err    error
}

func (e *FormatError) Error() string {
	where := "weights"
	if e.Layer >= 0 {
		where = fmt.Sprintf("weights: layer %d", e.Layer)
		if e.Name != "" {
			where += " (" + e.Name + ")"
		}
	}
	msg := where + ": " + e.Detail
	if e.Want != 0 || e.Got != 0 {
		msg += fmt.Sprintf(": want %d, got %d", e.Want, e.Got)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Err }

// ShapeMismatchError means the input handed to a forward pass does not
// have the width the first layer expects. It points at a configuration
// bug, not at bad user input.
type ShapeMismatchError struct {
	Want int
	Got  int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("model: input width %d does not match model input width %d", e.Got, e.Want)
}
