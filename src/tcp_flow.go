package zune

// FlowController implements RFC 5681 congestion control (slow start and
// congestion avoidance) with RFC 3465 Appropriate Byte Counting, so a
// single cumulative ACK covering several full-sized segments grows the
// window by the bytes actually acknowledged rather than by one MSS per
// ACK regardless of how much data it covered.
type FlowController struct {
	mss      uint32
	cwnd     uint32
	ssthresh uint32
}

// maxABC bounds a single ACK's slow-start window growth to 2*MSS (RFC
// 3465's recommended L), so one large cumulative ACK can't inflate cwnd
// further than two back-to-back segment ACKs would have.
const maxABC = 2

// NewFlowController returns a controller with RFC 5681's initial window
// (min(4*MSS, max(2*MSS, 4380 bytes))) and an effectively unbounded
// ssthresh, so the connection starts in slow start.
func NewFlowController(mss uint32) *FlowController {
	var iw = 4 * mss
	if floor := 4380; uint32(floor) > 2*mss && uint32(floor) < iw {
		iw = uint32(floor)
	} else if 2*mss > iw {
		iw = 2 * mss
	}
	return &FlowController{mss: mss, cwnd: iw, ssthresh: 0xFFFFFFFF}
}

// CWND returns the current congestion window in bytes.
func (f *FlowController) CWND() uint32 { return f.cwnd }

// InSlowStart reports whether the controller is below ssthresh.
func (f *FlowController) InSlowStart() bool { return f.cwnd < f.ssthresh }

// OnAck folds ackedBytes newly acknowledged by a (possibly cumulative) ACK
// into the window.
func (f *FlowController) OnAck(ackedBytes uint32) {
	if f.InSlowStart() {
		var growth = ackedBytes
		if growth > maxABC*f.mss {
			growth = maxABC * f.mss
		}
		f.cwnd += growth
		return
	}
	// Congestion avoidance: RFC 5681's per-RTT cwnd += MSS approximated as
	// cwnd += MSS*MSS/cwnd per ACK.
	var increment = (f.mss*f.mss)/f.cwnd + 1
	f.cwnd += increment
}

// OnLoss handles fast-retransmit-triggered loss (three duplicate ACKs):
// halve the window per RFC 5681's multiplicative decrease.
func (f *FlowController) OnLoss() {
	f.ssthresh = f.cwnd / 2
	if f.ssthresh < 2*f.mss {
		f.ssthresh = 2 * f.mss
	}
	f.cwnd = f.ssthresh
}

// OnTimeout handles an RTO firing: collapse to one segment and restart
// slow start, per RFC 5681 §3.1.
func (f *FlowController) OnTimeout() {
	f.ssthresh = f.cwnd / 2
	if f.ssthresh < 2*f.mss {
		f.ssthresh = 2 * f.mss
	}
	f.cwnd = f.mss
}
