package testutil

import "sync"

// Recorder captures outbound frames in send order. It stands in for a
// client connection wherever a session needs a sender.
type Recorder struct {
	mu     sync.Mutex
	frames []string
}

// Send records frame.
func (r *Recorder) Send(frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, string(frame))
}

// Frames returns a copy of every frame recorded so far.
func (r *Recorder) Frames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.frames...)
}

// Drain returns the recorded frames and forgets them.
func (r *Recorder) Drain() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.frames
	r.frames = nil
	return out
}

// Len returns the number of recorded frames.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}
