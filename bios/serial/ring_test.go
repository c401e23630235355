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

import (
	"math/rand"
	"testing"
)

func TestRingConservation(t *testing.T) {
	r := newRing(16)
	rnd := rand.New(rand.NewSource(1))
	queued := 0
	next, want := byte(0), byte(0)

	for i := 0; i < 10000; i++ {
		if rnd.Intn(2) == 0 {
			if r.push(next) {
				next++
				queued++
			} else if queued != 15 {
				t.Fatalf("push refused with %d queued", queued)
			}
		} else if b, ok := r.pop(); ok {
			if b != want {
				t.Fatalf("popped %d, want %d", b, want)
			}
			want++
			queued--
		} else if queued != 0 {
			t.Fatalf("pop failed with %d queued", queued)
		}

		if r.len() != queued || r.free() != 15-queued {
			t.Fatalf("len=%d free=%d queued=%d", r.len(), r.free(), queued)
		}
	}
}

func TestRingOverwrite(t *testing.T) {
	r := newRing(4)
	lost := 0
	for i := byte(1); i <= 5; i++ {
		if r.pushOverwrite(i) {
			lost++
		}
	}
	if lost != 2 {
		t.Errorf("lost = %d", lost)
	}

	buf := make([]byte, 8)
	n := r.read(buf)
	if string(buf[:n]) != "\x03\x04\x05" {
		t.Errorf("ring holds %v", buf[:n])
	}
}
