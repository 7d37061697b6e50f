package domain

import "fmt"

// ByteRange is a single inbound byte window. End is -1 when the client asked
// for "to the end of the resource".
type ByteRange struct {
	Start int64
	End   int64
}

func (r ByteRange) OpenEnded() bool {
	return r.End < 0
}

// Len returns the number of bytes in a bounded window, or -1 when open-ended.
func (r ByteRange) Len() int64 {
	if r.OpenEnded() {
		return -1
	}
	return r.End - r.Start + 1
}

func (r ByteRange) String() string {
	if r.OpenEnded() {
		return fmt.Sprintf("bytes=%d-", r.Start)
	}
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End)
}
