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

package rom

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/jeffsponaugle/roscoe-sub002/emulator/bus"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/peripheral"
)

func TestLoadFromFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/monitor.bin", []byte{0x4E, 0x71, 0x4E}, 0644)

	dev := &Device{Base: 0x100, Fs: fs, Path: "/monitor.bin"}
	b, errs := bus.New([]peripheral.Peripheral{dev})
	if len(errs) > 0 {
		t.Fatal(errs[0])
	}

	if w := b.ReadWord(0x100); w != 0x4E71 {
		t.Errorf("word = %04X", w)
	}
	b.WriteByte(0x100, 0)
	if v := b.ReadByte(0x100); v != 0x4E {
		t.Error("rom is writable")
	}
	if v := b.ReadByte(0x103); v != 0xFF {
		t.Errorf("odd image not padded: %02X", v)
	}

	t.Run("Missing", func(t *testing.T) {
		if err := (&Device{Fs: fs, Path: "/nope.bin"}).Install(b); err == nil {
			t.Error("missing image installed")
		}
	})
}
