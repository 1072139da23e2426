package util

import (
	"errors"
	"io"
	"os"
	"reflect"
)

// CloseWithErr closes a resource and logs a failure as a warning. Nil
// closers, including typed nil pointers, and already closed files are
// ignored.
func CloseWithErr(closer io.Closer, name string) {
	if closer == nil {
		return
	}
	if val := reflect.ValueOf(closer); val.Kind() == reflect.Ptr && val.IsNil() {
		return
	}
	err := closer.Close()
	if err == nil || errors.Is(err, os.ErrClosed) {
		return
	}
	if name == "" {
		name = "resource"
	}
	Warnf("close %s failed err=%v", name, err)
}
