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

package main

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/jeffsponaugle/roscoe-sub002/bios"
	"github.com/jeffsponaugle/roscoe-sub002/emulator"
	"github.com/jeffsponaugle/roscoe-sub002/emulator/memory"
	"github.com/jeffsponaugle/roscoe-sub002/platform"
	"github.com/jeffsponaugle/roscoe-sub002/version"
)

const idleSleep = 50 * time.Microsecond

var (
	disk0, disk1, romPath string
	logFile, genHd        string
	genHdSize             = 32
	mhz                   = emulator.DefaultCPUClock / 1000000
	memSize               = 16
	baud                  = bios.DefaultBaud
)

var (
	raw,
	ver bool
)

func init() {
	flag.BoolVar(&ver, "v", false, "Print version information")
	flag.BoolVar(&raw, "raw", false, "Pass the console straight through the terminal")

	flag.StringVar(&disk0, "disk0", os.Getenv("ROSCOE_DISK0"), "Master disk image")
	flag.StringVar(&disk1, "disk1", os.Getenv("ROSCOE_DISK1"), "Slave disk image")
	flag.StringVar(&romPath, "rom", os.Getenv("ROSCOE_ROM"), "Monitor ROM image")
	flag.StringVar(&logFile, "log", "", "Write the log to a file")

	flag.IntVar(&mhz, "mhz", mhz, "Emulated CPU clock in MHz")
	flag.IntVar(&memSize, "mem", memSize, "RAM size in megabytes")
	flag.IntVar(&baud, "baud", baud, "Console baud rate")

	flag.StringVar(&genHd, "gen-hd", "", "Create a blank harddrive image")
	flag.IntVar(&genHdSize, "gen-hd-size", genHdSize, "Set size of the generated harddrive image in megabytes")
}

func main() {
	flag.Parse()

	if ver {
		fmt.Printf("roscoe %s\n", version.Describe())
		return
	}

	fs := afero.NewOsFs()
	if genHd != "" {
		if err := genImage(fs, genHd, genHdSize); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := run(fs); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func genImage(fs afero.Fs, name string, size int) error {
	if size < 1 {
		size = 1
	} else if size > 2048 {
		size = 2048
	}

	hd, err := fs.Create(name)
	if err != nil {
		return err
	}
	defer hd.Close()

	var buffer [0x100000]byte
	for i := 0; i < size; i++ {
		if _, err := hd.Write(buffer[:]); err != nil {
			return err
		}
	}
	return nil
}

func openConsole() (platform.Console, error) {
	if raw {
		return platform.NewRawConsole()
	}
	return platform.NewTcellConsole(nil)
}

func run(fs afero.Fs) error {
	switch {
	case logFile != "":
		fp, err := fs.Create(logFile)
		if err != nil {
			return err
		}
		defer fp.Close()
		log.SetOutput(fp)
	case !raw:
		// The screen belongs to the console.
		log.SetOutput(ioutil.Discard)
	}

	con, err := openConsole()
	if err != nil {
		return err
	}
	defer con.Close()

	m, err := emulator.New(emulator.Config{
		CPUClock: mhz * 1000000,
		RAMSize:  memSize << 20,
		Fs:       fs,
		ROMPath:  romPath,
		Disks:    [2]string{disk0, disk1},
		DataTX:   [2]func(byte){con.Write},
		OnLED:    con.SetLED,
	})
	if err != nil {
		return err
	}
	defer m.Close()

	con.SetInputHandler(func(b byte) { m.UART[0].Receive([]byte{b}) })
	con.SetStatus(fmt.Sprintf("Roscoe %s | %d MHz | %d 8N1 | F12 quits", version.Current, mhz, baud))

	machineErr := make(chan error, 1)
	go func() { machineErr <- m.Run() }()

	board := bios.Board{
		Mem:       m.Bus,
		PIC:       emulator.PICBase,
		PIT:       emulator.PITBase,
		TimerLine: emulator.LineTimer,
		IDE:       emulator.IDEBase,
		UARTs:     []memory.Pointer{emulator.UART0Base, emulator.UART1Base},
		UARTLines: []int{emulator.LineUART0, emulator.LineUART1},
		Baud:      uint32(baud),
		Attach:    m.InstallInterruptHandler,
		Idle:      func() { time.Sleep(idleSleep) },
	}

	quit := make(chan struct{})
	biosErr := make(chan error, 1)
	go func() {
		sys, err := bios.Boot(board)
		if err != nil {
			biosErr <- err
			return
		}
		defer sys.Shutdown(board)

		if err := sys.Monitor.Banner(); err != nil {
			biosErr <- err
			return
		}
		biosErr <- sys.Monitor.Run(quit)
	}()

	go func() {
		var err error
		select {
		case err = <-machineErr:
		case err = <-biosErr:
		}
		if err != nil {
			log.Print(err)
			con.SetStatus(err.Error())
		}
	}()

	err = con.Run(func() { close(quit) })
	m.Shutdown()
	return err
}
