package ivf

import "time"

// Stats summarizes the frames of a container.
type Stats struct {
	Frames       int
	Bytes        int64
	MaxFrameSize int
	FirstPTS     int64
	LastPTS      int64
}

// Scan reads all remaining frames of r. On error the stats cover the frames
// read up to the failure.
func Scan(r *Reader) (Stats, error) {
	var s Stats
	for {
		ok, err := r.ReadFrame()
		if err != nil {
			return s, err
		}
		if !ok {
			return s, nil
		}
		size := len(r.Frame())
		if s.Frames == 0 {
			s.FirstPTS = r.PTS()
		}
		s.LastPTS = r.PTS()
		s.Frames++
		s.Bytes += int64(size)
		s.MaxFrameSize = max(s.MaxFrameSize, size)
	}
}

// Duration is the presentation time covered by the frames, counting the last
// frame as one tick long.
func (s Stats) Duration(timebase Rational) time.Duration {
	if s.Frames == 0 || timebase.Den <= 0 {
		return 0
	}
	ticks := s.LastPTS - s.FirstPTS + 1
	return time.Duration(ticks) * time.Second * time.Duration(timebase.Num) / time.Duration(timebase.Den)
}

// Bitrate returns the average payload bitrate in bits per second.
func (s Stats) Bitrate(timebase Rational) float64 {
	d := s.Duration(timebase)
	if d <= 0 {
		return 0
	}
	return float64(s.Bytes*8) / d.Seconds()
}
