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

// Package status holds the status values shared by the BIOS drivers.
package status

import (
	"errors"
	"fmt"
	"log"
)

var (
	ErrDiskNotPresent         = errors.New("disk not present")
	ErrDiskOutOfRange         = errors.New("disk index out of range")
	ErrDiskSectorOutOfRange   = errors.New("disk sector out of range")
	ErrDiskSectorCountZero    = errors.New("disk sector count is zero")
	ErrDiskWriteFault         = errors.New("disk write fault")
	ErrDiskBadBlock           = errors.New("disk bad block")
	ErrDiskUncorrectable      = errors.New("disk uncorrectable data error")
	ErrDiskError              = errors.New("disk error")
	ErrTimeout                = errors.New("timeout")
	ErrSerialOutOfRange       = errors.New("serial port out of range")
	ErrSerialQueueFull        = errors.New("serial queue full")
	ErrSerialNotPresent       = errors.New("serial port not present")
	ErrSerialBadConfig        = errors.New("invalid serial configuration")
	ErrSerialInterruptFailed  = errors.New("serial interrupt not functioning")
	ErrInterruptVectorUnknown = errors.New("interrupt vector unknown")
	ErrOutOfMemory            = errors.New("out of memory")
	ErrBufferTooSmall         = errors.New("buffer too small")
)

// UnreachableStateError reports a hardware or model state that a physical
// device can never be in. It is raised with panic, never returned.
type UnreachableStateError struct {
	Component string
	Detail    string
}

func (e *UnreachableStateError) Error() string {
	return fmt.Sprintf("%s: unreachable state: %s", e.Component, e.Detail)
}

// Unreachable logs the condition and halts by panicking with an
// *UnreachableStateError.
func Unreachable(component, format string, args ...interface{}) {
	err := &UnreachableStateError{Component: component, Detail: fmt.Sprintf(format, args...)}
	log.Print(err)
	panic(err)
}
