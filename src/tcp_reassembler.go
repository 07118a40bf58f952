package zune

import "sort"

// Reassembler turns an out-of-order stream of sequenced segments into an
// in-order byte stream, per §4.7. It tracks sequence numbers as 32-bit
// wrapping counters: every comparison goes through seqDiff so
// wraparound near the 2^32 boundary behaves the same as anywhere else.
type Reassembler struct {
	nextSeq uint32
	pending map[uint32][]byte
}

// NewReassembler returns a reassembler expecting initialSeq next.
func NewReassembler(initialSeq uint32) *Reassembler {
	return &Reassembler{nextSeq: initialSeq, pending: make(map[uint32][]byte)}
}

// NextSeq returns the next sequence number the reassembler expects.
func (r *Reassembler) NextSeq() uint32 { return r.nextSeq }

// seqDiff returns a-b interpreted as a signed 32-bit wraparound distance.
func seqDiff(a, b uint32) int32 { return int32(a - b) }

// Insert folds one received segment into the reassembler and returns
// whatever newly-contiguous bytes became available at the front of the
// stream (which may include data from previously buffered out-of-order
// segments, and may be empty if seq is in the future or the segment
// carries no new bytes).
func (r *Reassembler) Insert(seq uint32, data []byte) []byte {
	if len(data) == 0 {
		return nil
	}

	var segEnd = seq + uint32(len(data))
	if seqDiff(segEnd, r.nextSeq) <= 0 {
		return nil // entirely old/duplicate data
	}
	if seqDiff(seq, r.nextSeq) < 0 {
		// Segment overlaps the front: trim the already-consumed prefix.
		var trim = seqDiff(r.nextSeq, seq)
		data = data[trim:]
		seq = r.nextSeq
	}

	if seq != r.nextSeq {
		r.pending[seq] = append([]byte{}, data...)
		return nil
	}

	var out = append([]byte{}, data...)
	r.nextSeq += uint32(len(data))
	return append(out, r.drainPending()...)
}

// drainPending consumes any buffered segments that have become contiguous
// with nextSeq, in sequence order, handling the case where a buffered
// segment itself overlaps what's already been consumed.
func (r *Reassembler) drainPending() []byte {
	var out []byte
	for {
		var seqs = make([]uint32, 0, len(r.pending))
		for s := range r.pending {
			seqs = append(seqs, s)
		}
		sort.Slice(seqs, func(i, j int) bool { return seqDiff(seqs[i], seqs[j]) < 0 })

		var advanced = false
		for _, s := range seqs {
			var d = r.pending[s]
			var end = s + uint32(len(d))
			if seqDiff(end, r.nextSeq) <= 0 {
				delete(r.pending, s)
				continue // fully superseded by data already consumed
			}
			if seqDiff(s, r.nextSeq) > 0 {
				continue // still a gap before this one
			}
			var trim = seqDiff(r.nextSeq, s)
			var fresh = d[trim:]
			delete(r.pending, s)
			out = append(out, fresh...)
			r.nextSeq += uint32(len(fresh))
			advanced = true
			break
		}
		if !advanced {
			return out
		}
	}
}
