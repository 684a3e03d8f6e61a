package board

// Move returns a copy of seq with the element at from moved to index to.
//
// A negative to counts back from the length of seq, so -1 addresses the last
// slot. A to beyond the end appends. When from is out of range the copy is
// returned unchanged. Elements are moved, never rebuilt.
func Move[T any](seq []T, from, to int) []T {
	out := make([]T, len(seq))
	copy(out, seq)

	n := len(out)
	if from < 0 || from >= n {
		return out
	}
	if to < 0 {
		to += n
		if to < 0 {
			to = 0
		}
	}

	item := out[from]
	out = append(out[:from], out[from+1:]...)
	if to > len(out) {
		to = len(out)
	}
	out = append(out, item)
	copy(out[to+1:], out[to:len(out)-1])
	out[to] = item
	return out
}
