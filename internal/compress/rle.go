// Package compress implements the prefix run-length encoding used by the
// compression service. Runs of three or more identical bytes are replaced by
// the decimal run length followed by the byte; a run of two is emitted
// verbatim, since a "2" prefix would not shrink the output.
//
// Some examples:
//
//	a => a
//	aa => aa
//	aaa => 3a
//	aaaaabbb => 5a3b
//	aaaaabbbbbbaaabb => 5a6b3abb
//	abcdefg => abcdefg
//	aaaccddddhhhhi => 3acc4d4hi
package compress

import (
	"errors"
	"strconv"
)

var (
	ErrEmptyInput = errors.New("compress: empty input")
	ErrShortDst   = errors.New("compress: destination smaller than input")
)

// Encode writes the run-length encoding of src into dst and returns the
// number of bytes written. The encoding never expands, so a dst at least as
// long as src always fits. Character-class validation is the caller's
// responsibility; Encode operates on raw bytes.
func Encode(src, dst []byte) (int, error) {
	if len(src) == 0 {
		return 0, ErrEmptyInput
	}
	if len(src) > len(dst) {
		return 0, ErrShortDst
	}

	n := 0
	count := 1
	for i := 0; i < len(src); i++ {
		if i == len(src)-1 || src[i] != src[i+1] {
			// run boundary
			if count == 2 {
				dst[n] = src[i]
				n++
			}
			if count > 2 {
				n += copy(dst[n:], strconv.Itoa(count))
			}
			dst[n] = src[i]
			n++
			count = 0
		}
		count++
	}
	return n, nil
}
