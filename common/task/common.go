package task

import "io"

// Close returns a func() error that closes v, if v implements io.Closer.
func Close(v interface{}) func() error {
	return func() error {
		if closer, ok := v.(io.Closer); ok {
			return closer.Close()
		}
		return nil
	}
}
