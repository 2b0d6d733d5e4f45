package fsm

import "bytes"

// CompareRData implements the lexicographic tiebreak from RFC 6762 §8.2.1:
// "the higher numbered protocol... wins... compared as a sequence of
// unsigned bytes in RDATA; if there is a difference, the record with the
// lexicographically later data is declared 'winner'."
//
// Grounded on the teacher's responder/conflict_detector.go CompareProbes.
func CompareRData(ours, theirs []byte) bool {
	return bytes.Compare(ours, theirs) > 0
}

// CompareRDataSets implements the multi-record pairwise comparison from
// RFC 6762 §8.2.1 for services registering more than one record (e.g. SRV
// + TXT) under the same name: records are compared pairwise in sorted
// order, and the list with more remaining records wins any tie.
func CompareRDataSets(ours, theirs [][]byte) bool {
	n := len(ours)
	if len(theirs) < n {
		n = len(theirs)
	}
	for i := 0; i < n; i++ {
		cmp := bytes.Compare(ours[i], theirs[i])
		if cmp > 0 {
			return true
		}
		if cmp < 0 {
			return false
		}
	}
	return len(ours) > len(theirs)
}
