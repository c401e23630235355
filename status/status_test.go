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

package status

import (
	"errors"
	"testing"
)

func TestUnreachable(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic")
		}
		err, ok := r.(error)
		if !ok {
			t.Fatalf("panic value %v is not an error", r)
		}
		var us *UnreachableStateError
		if !errors.As(err, &us) {
			t.Fatalf("panic value %T is not *UnreachableStateError", r)
		}
		if us.Component != "uart" || us.Detail != "register 0x9" {
			t.Errorf("unexpected contents: %+v", us)
		}
	}()
	Unreachable("uart", "register 0x%X", 9)
}

func TestDistinctErrors(t *testing.T) {
	all := []error{
		ErrDiskNotPresent, ErrDiskOutOfRange, ErrDiskSectorOutOfRange, ErrDiskSectorCountZero,
		ErrDiskWriteFault, ErrDiskBadBlock, ErrDiskUncorrectable, ErrDiskError, ErrTimeout,
		ErrSerialOutOfRange, ErrSerialQueueFull, ErrSerialNotPresent, ErrSerialBadConfig,
		ErrSerialInterruptFailed, ErrInterruptVectorUnknown, ErrOutOfMemory, ErrBufferTooSmall,
	}
	for i, a := range all {
		for j, b := range all {
			if i != j && errors.Is(a, b) {
				t.Errorf("%v matches %v", a, b)
			}
		}
	}
}
