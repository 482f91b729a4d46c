package sync

import (
	"bytes"
	"runtime"
	"strconv"
)

var goroutinePrefix = []byte("goroutine ")

// GoroutineID returns the runtime's id for the calling goroutine, or 0 if it can't be determined.
//
// Only use this to detect re-entrant calls (e.g. a goroutine about to wait for itself), never for anything like
// goroutine-local storage. Same approach as curGoroutineID in golang.org/x/net/http2.
func GoroutineID() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	// "goroutine 123 [running]:\n..."
	buf = bytes.TrimPrefix(buf, goroutinePrefix)
	i := bytes.IndexByte(buf, ' ')
	if i < 0 {
		return 0
	}
	id, err := strconv.ParseUint(string(buf[:i]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
