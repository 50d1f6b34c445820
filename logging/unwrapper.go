package logging

// Unwrapper extends 16 bit RTP sequence numbers to a monotonic int64,
// assuming consecutive inputs are less than half the sequence space apart.
type Unwrapper struct {
	init bool
	last uint16
	acc  int64
}

func (u *Unwrapper) Unwrap(seq uint16) int64 {
	if !u.init {
		u.init = true
		u.last = seq
		u.acc = int64(seq)
		return u.acc
	}
	u.acc += int64(int16(seq - u.last))
	u.last = seq
	return u.acc
}
