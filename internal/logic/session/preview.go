package session

import "sync"

// Preview is the live preview handle. The same handle lives for the whole
// session; Running follows start and stop, and subscribers keep receiving
// frames across restarts and device swaps.
type Preview struct {
	mu      sync.Mutex
	running bool
	closed  bool
	buffer  int
	subs    map[chan []byte]struct{}
}

func newPreview(buffer int) *Preview {
	if buffer < 1 {
		buffer = 1
	}
	return &Preview{buffer: buffer, subs: make(map[chan []byte]struct{})}
}

// Running reports whether frames are flowing.
func (p *Preview) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Subscribe returns a channel of encoded frames and a cancel function.
// Slow readers lose the oldest frames. The channel is closed on cancel or
// when the session is disposed.
func (p *Preview) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, p.buffer)
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	p.subs[ch] = struct{}{}
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			if _, ok := p.subs[ch]; ok {
				delete(p.subs, ch)
				close(ch)
			}
			p.mu.Unlock()
		})
	}
}

func (p *Preview) setRunning(running bool) {
	p.mu.Lock()
	p.running = running
	p.mu.Unlock()
}

func (p *Preview) publish(frame []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subs {
		select {
		case ch <- frame:
			continue
		default:
		}
		// drop the oldest frame to make room
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- frame:
		default:
		}
	}
}

func (p *Preview) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.running = false
	p.closed = true
	for ch := range p.subs {
		delete(p.subs, ch)
		close(ch)
	}
}
