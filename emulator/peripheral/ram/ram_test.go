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

package ram

import (
	"testing"

	"github.com/jeffsponaugle/roscoe-sub002/emulator/bus"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/peripheral"
)

func TestBigEndian(t *testing.T) {
	dev := &Device{Base: 0x1000, Size: 0x100, Clear: true}
	b, errs := bus.New([]peripheral.Peripheral{dev})
	if len(errs) > 0 {
		t.Fatal(errs[0])
	}

	b.WriteWord(0x1010, 0xCAFE)
	if b.ReadByte(0x1010) != 0xCA || b.ReadByte(0x1011) != 0xFE {
		t.Error("word not stored big-endian")
	}
	if b.ReadByte(0x10FF) != 0 {
		t.Error("cleared ram not zero")
	}

	if err := (&Device{Size: 3}).Install(b); err != ErrSize {
		t.Errorf("odd size: %v", err)
	}
}
