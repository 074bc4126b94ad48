// The serr package defines the errors of the processor-node syscall
// layer and their mapping onto POSIX errno values.
package serr

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

type Terror uint32

const (
	TErrNoError Terror = iota
	TErrNoMem
	TErrBadFd
	TErrFault
	TErrNameTooLong
	TErrInval
	TErrNotfound
	TErrRange
	TErrUnreachable
	TErrBadReply
	TErrBadFcall
	TErrRemote
	TErrError
)

func (e Terror) String() string {
	switch e {
	case TErrNoError:
		return "no error"
	case TErrNoMem:
		return "out of memory"
	case TErrBadFd:
		return "bad file descriptor"
	case TErrFault:
		return "bad address"
	case TErrNameTooLong:
		return "file name too long"
	case TErrInval:
		return "invalid argument"
	case TErrNotfound:
		return "file not found"
	case TErrRange:
		return "result out of range"
	case TErrUnreachable:
		return "unreachable"
	case TErrBadReply:
		return "malformed reply"
	case TErrBadFcall:
		return "bad fcall"
	case TErrRemote:
		return "remote error"
	case TErrError:
		return "Error"
	default:
		return fmt.Sprintf("unknown error %d", uint32(e))
	}
}

// Errno is the POSIX errno for e. TErrRemote has none of its own: the
// remote code travels in Err.Code.
func (e Terror) Errno() unix.Errno {
	switch e {
	case TErrNoMem:
		return unix.ENOMEM
	case TErrBadFd:
		return unix.EBADF
	case TErrFault:
		return unix.EFAULT
	case TErrNameTooLong:
		return unix.ENAMETOOLONG
	case TErrInval:
		return unix.EINVAL
	case TErrNotfound:
		return unix.ENOENT
	case TErrRange:
		return unix.ERANGE
	default:
		return unix.EIO
	}
}

type Err struct {
	ErrCode Terror
	Obj     string
	Code    int64 // signed result code reported by the storage node
	Err     error
}

func NewErr(code Terror, obj interface{}) *Err {
	return &Err{ErrCode: code, Obj: fmt.Sprintf("%v", obj)}
}

func NewErrError(error error) *Err {
	return &Err{ErrCode: TErrError, Err: error}
}

// NewErrRemote wraps a negative result code returned by a storage node.
// The code is passed back to callers verbatim.
func NewErrRemote(code int64, obj interface{}) *Err {
	return &Err{ErrCode: TErrRemote, Obj: fmt.Sprintf("%v", obj), Code: code}
}

func (err *Err) Unwrap() error { return err.Err }

func (err *Err) Error() string {
	if err.ErrCode == TErrRemote {
		return fmt.Sprintf("%v %v (%d)", err.ErrCode, err.Obj, err.Code)
	}
	if err.Err != nil {
		return fmt.Sprintf("%v %v %v", err.ErrCode, err.Obj, err.Err)
	}
	return fmt.Sprintf("%v %v", err.ErrCode, err.Obj)
}

func (err *Err) String() string {
	return err.Error()
}

func (err *Err) IsErrCode(code Terror) bool {
	return err.ErrCode == code
}

// Errno returns the negative value a syscall reports for err.
func (err *Err) Errno() int64 {
	if err.ErrCode == TErrRemote {
		return err.Code
	}
	return -int64(err.ErrCode.Errno())
}

func IsErrCode(error error, code Terror) bool {
	var err *Err
	if errors.As(error, &err) {
		return err.IsErrCode(code)
	}
	return false
}

// Errno flattens any error into a negative errno. A nil error is 0.
func Errno(error error) int64 {
	if error == nil {
		return 0
	}
	var err *Err
	if errors.As(error, &err) {
		return err.Errno()
	}
	var eno unix.Errno
	if errors.As(error, &eno) {
		return -int64(eno)
	}
	return -int64(unix.EIO)
}
