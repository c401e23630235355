/*
Copyright (c) 2019-2021 Andreas T Jonsson

This software is provided 'as-is', without any express or implied
warranty. In no event will the authors be held liable for any damages
arising from the use of this software.

Permission is granted to anyone to use this software for any purpose,
including commercial applications, and to alter it and redistribute it
freely, subject to the following restrictions:

1. The origin of this software must not be misrepresented; you must not
   claim that you wrote the original software. If you use this software
   in a product, an acknowledgment in the product documentation would be
   appreciated but is not required.
2. Altered source versions must be plainly marked as such, and must not be
   misrepresented as being the original software.
3. This notice may not be removed or altered from any source distribution.
*/

package serial

// ring is a byte queue that is empty when head equals tail, so it holds
// one byte less than its buffer.
type ring struct {
	buf        []byte
	head, tail int
}

func newRing(size int) ring {
	return ring{buf: make([]byte, size)}
}

func (r *ring) len() int {
	return (r.head - r.tail + len(r.buf)) % len(r.buf)
}

func (r *ring) free() int {
	return len(r.buf) - 1 - r.len()
}

func (r *ring) reset() {
	r.head, r.tail = 0, 0
}

func (r *ring) push(b byte) bool {
	next := (r.head + 1) % len(r.buf)
	if next == r.tail {
		return false
	}
	r.buf[r.head] = b
	r.head = next
	return true
}

// pushOverwrite stores b, discarding the oldest byte when full. It
// reports whether a byte was lost.
func (r *ring) pushOverwrite(b byte) bool {
	lost := false
	next := (r.head + 1) % len(r.buf)
	if next == r.tail {
		r.tail = (r.tail + 1) % len(r.buf)
		lost = true
	}
	r.buf[r.head] = b
	r.head = next
	return lost
}

func (r *ring) pop() (byte, bool) {
	if r.head == r.tail {
		return 0, false
	}
	b := r.buf[r.tail]
	r.tail = (r.tail + 1) % len(r.buf)
	return b, true
}

func (r *ring) read(dst []byte) int {
	n := 0
	for n < len(dst) {
		b, ok := r.pop()
		if !ok {
			break
		}
		dst[n] = b
		n++
	}
	return n
}
