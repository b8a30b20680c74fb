package dockerfile

import "errors"

var (
	ErrParse                  = errors.New("dockerfile parse failed")
	ErrUnsupportedInstruction = errors.New("unsupported instruction")
	ErrRender                 = errors.New("dockerfile render failed")
)
