package interp

/*
 * Licensed under LGPL-3.0.
 *
 * You can get a copy of the LGPL-3.0 License at
 *
 * https://www.gnu.org/licenses/lgpl-3.0.en.html
 *
 * @wcgcyx - https://github.com/wcgcyx
 */

import (
	"github.com/holiman/uint256"
)

// stackLimit is the maximum number of items on the operand stack.
const stackLimit = 1024

// stack is the 256-bit word operand stack of one frame.
type stack struct {
	data []uint256.Int
}

func newStack() *stack {
	return &stack{data: make([]uint256.Int, 0, 16)}
}

func (s *stack) len() int {
	return len(s.data)
}

func (s *stack) push(v *uint256.Int) {
	s.data = append(s.data, *v)
}

func (s *stack) pop() uint256.Int {
	v := s.data[len(s.data)-1]
	s.data = s.data[:len(s.data)-1]
	return v
}

// peek returns the n-th item from the top without popping, 0 is the top.
func (s *stack) peek(n int) *uint256.Int {
	return &s.data[len(s.data)-1-n]
}

func (s *stack) swap(n int) {
	top := len(s.data) - 1
	s.data[top], s.data[top-n] = s.data[top-n], s.data[top]
}

func (s *stack) dup(n int) {
	s.push(s.peek(n - 1))
}
