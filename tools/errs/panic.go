package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

func ErrPanic(r any) error {
	if r == nil {
		return nil
	}
	return errors.WithStack(&CodeError{
		Code:   ErrInternalServer.Code,
		Msg:    "panic error",
		Detail: fmt.Sprint(r),
	})
}
