//go:build windows

package fileutil

import (
	"os"
	"syscall"
	"unsafe"
)

var (
	modkernel32      = syscall.NewLazyDLL("kernel32.dll")
	procLockFileEx   = modkernel32.NewProc("LockFileEx")
	procUnlockFileEx = modkernel32.NewProc("UnlockFileEx")
)

const (
	lockfileExclusiveLock   = 0x00000002
	lockfileFailImmediately = 0x00000001
)

// flock locks the first byte of f, which is enough for a dedicated lock file.
func flock(f *os.File, exclusive, nonBlocking bool) error {
	var flags uintptr
	if exclusive {
		flags |= lockfileExclusiveLock
	}
	if nonBlocking {
		flags |= lockfileFailImmediately
	}
	var ol syscall.Overlapped
	ret, _, err := procLockFileEx.Call(f.Fd(), flags, 0, 1, 0, uintptr(unsafe.Pointer(&ol)))
	if ret == 0 {
		return err
	}
	return nil
}

func funlock(f *os.File) error {
	var ol syscall.Overlapped
	ret, _, err := procUnlockFileEx.Call(f.Fd(), 0, 1, 0, uintptr(unsafe.Pointer(&ol)))
	if ret == 0 {
		return err
	}
	return nil
}
