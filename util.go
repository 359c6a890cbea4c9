package colldb

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}

func inc(data []byte) bool {
	n := len(data)
	for i := n - 1; i >= 0; i-- {
		if data[i] != 0xFF {
			for j := i; j < n; j++ {
				data[j]++
			}
			return true
		}
	}
	return false
}

// prefixSuccessor returns a byte string greater than every string prefixed
// by p, usable as an exclusive scan bound, or nil if there is none (empty or
// all-0xFF prefix).
func prefixSuccessor(p []byte) []byte {
	if len(p) == 0 {
		return nil
	}
	limit := append([]byte(nil), p...)
	if inc(limit) {
		return limit
	}
	return nil
}
