package adapter

import (
	"context"

	"github.com/matzehuels/grapher/pkg/engine"
	"github.com/matzehuels/grapher/pkg/errors"
)

// Status codes returned by [Grapher]. Zero is success.
const (
	StatusOK       = 0
	StatusContext  = 1
	StatusParse    = 2
	StatusLayout   = 3
	StatusRender   = 4
	StatusTeardown = 5
	StatusInvalid  = 6
	StatusUnknown  = 255
)

// Status maps a render error to a stable integer code.
func Status(err error) int {
	if err == nil {
		return StatusOK
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeContext:
		return StatusContext
	case errors.ErrCodeParse:
		return StatusParse
	case errors.ErrCodeLayout:
		return StatusLayout
	case errors.ErrCodeRender:
		return StatusRender
	case errors.ErrCodeTeardown:
		return StatusTeardown
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidLayout, errors.ErrCodeInvalidFormat:
		return StatusInvalid
	default:
		return StatusUnknown
	}
}

// Grapher renders desc as an SVG using the hierarchical dot layout and
// reports the outcome as a status code, writing the image and its length
// through result and size.
//
// When desc is empty it returns [StatusOK] and leaves result and size as
// they were. On failure result and size are likewise left unchanged.
func Grapher(e engine.Engine, desc []byte, result *[]byte, size *uint) int {
	if len(desc) == 0 {
		return StatusOK
	}
	a, err := New(e)
	if err != nil {
		return Status(err)
	}
	out, err := a.Render(context.Background(), desc)
	if err != nil {
		return Status(err)
	}
	if result != nil {
		*result = out
	}
	if size != nil {
		*size = uint(len(out))
	}
	return StatusOK
}
