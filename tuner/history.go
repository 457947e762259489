package tuner

// history is a ring buffer of the most recent rewards, sized to hold the
// recent window and the window immediately preceding it.
type history struct {
	window int
	buf    []float64
	next   int // slot the next reward is written to
	n      int // number of valid entries, at most len(buf)
}

func newHistory(window int) *history {
	return &history{window: window, buf: make([]float64, 2*window)}
}

func (h *history) push(r float64) {
	h.buf[h.next] = r
	h.next = (h.next + 1) % len(h.buf)
	if h.n < len(h.buf) {
		h.n++
	}
}

// at returns the i-th most recent reward (0 = newest).
func (h *history) at(i int) float64 {
	idx := (h.next - 1 - i) % len(h.buf)
	if idx < 0 {
		idx += len(h.buf)
	}
	return h.buf[idx]
}

// means returns the mean of the newest window and, when available, of the
// window before it. full reports whether the newest window is complete.
func (h *history) means() (recent, prior float64, hasPrior, full bool) {
	if h.n == 0 {
		return 0, 0, false, false
	}
	k := h.window
	if h.n < k {
		k = h.n
	}
	for i := 0; i < k; i++ {
		recent += h.at(i)
	}
	recent /= float64(k)
	full = h.n >= h.window
	if h.n < 2*h.window {
		return recent, 0, false, full
	}
	for i := h.window; i < 2*h.window; i++ {
		prior += h.at(i)
	}
	prior /= float64(h.window)
	return recent, prior, true, full
}

// values returns the stored rewards, oldest first.
func (h *history) values() []float64 {
	out := make([]float64, h.n)
	for i := 0; i < h.n; i++ {
		out[h.n-1-i] = h.at(i)
	}
	return out
}
