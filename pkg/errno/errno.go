package errno

import "errors"

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string

	// Retryable 标记调用方是否可以原样重试 (同一份已签名字节 / 重新开始会话)
	Retryable bool

	cause error
}

func (e *Errno) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the wrapped cause to errors.Is / errors.As
func (e *Errno) Unwrap() error {
	return e.cause
}

// Is matches by code, so a wrapped or re-messaged copy still equals its sentinel
func (e *Errno) Is(target error) bool {
	t, ok := target.(*Errno)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMessage 返回一个替换了 Message 的副本
func (e *Errno) WithMessage(msg string) *Errno {
	c := *e
	c.Message = msg
	return &c
}

// Wrap 返回一个携带底层原因的副本
func (e *Errno) Wrap(err error) *Errno {
	c := *e
	c.cause = err
	return &c
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	var typed *Errno
	if errors.As(err, &typed) {
		return typed.Code, err.Error()
	}
	return InternalServerError.Code, err.Error()
}

// IsRetryable reports whether err (or anything it wraps) is classified as retryable
func IsRetryable(err error) bool {
	var typed *Errno
	if errors.As(err, &typed) {
		return typed.Retryable
	}
	return false
}

// Common Errors
var (
	OK                  = &Errno{Code: 0, Message: "Success"}
	InternalServerError = &Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = &Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrNotFound         = &Errno{Code: 10004, Message: "Resource not found"}
)

// Encoding Errors (20100+): 输入本身有问题，修正输入前不可重试
var (
	ErrEncoding         = &Errno{Code: 20101, Message: "Transaction encoding error"}
	ErrMalformedAddress = &Errno{Code: 20102, Message: "Malformed address"}
	ErrInvalidDraft     = &Errno{Code: 20103, Message: "Invalid transaction draft"}
	ErrInvalidAmount    = &Errno{Code: 20104, Message: "Invalid amount"}
)

// Network Errors (20200+)
var (
	ErrNetwork           = &Errno{Code: 20201, Message: "Network unavailable", Retryable: true}
	ErrRejectedByNetwork = &Errno{Code: 20202, Message: "Transaction rejected by network"}
	ErrStaleWindow       = &Errno{Code: 20203, Message: "Stale validity window"}
	ErrInsufficientFunds = &Errno{Code: 20204, Message: "Insufficient balance"}
)

// Signing Errors (20300+)
var (
	ErrKeyNotFound           = &Errno{Code: 20301, Message: "Signing key not found"}
	ErrUserCancelled         = &Errno{Code: 20302, Message: "Signing cancelled by user"}
	ErrDeviceTimeout         = &Errno{Code: 20303, Message: "Hardware device timed out", Retryable: true}
	ErrDeviceDisconnected    = &Errno{Code: 20304, Message: "Hardware device disconnected", Retryable: true}
	ErrDeviceRejected        = &Errno{Code: 20305, Message: "Transaction rejected on device"}
	ErrInsufficientThreshold = &Errno{Code: 20306, Message: "Joint account threshold not reached"}
	ErrSignRequestExpired    = &Errno{Code: 20307, Message: "Joint sign request expired"}
	ErrSignRequestDeclined   = &Errno{Code: 20308, Message: "Joint sign request declined"}
	ErrKeyMismatch           = &Errno{Code: 20309, Message: "Signing key does not control sender"}
)
