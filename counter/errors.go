package counter

import "errors"

var (
	// ErrMissingAccount is returned when no account is supplied
	ErrMissingAccount = errors.New("missing counter account")
	// ErrIncorrectOwner is returned when the counter account is not owned by the invoking program
	ErrIncorrectOwner = errors.New("counter account does not have the correct program id")
	// ErrDecode is returned when the stored bytes are not a valid record
	ErrDecode = errors.New("failed to decode counter account")
	// ErrEncode is returned when the record cannot be serialized
	ErrEncode = errors.New("failed to encode counter account")
	// ErrBufferTooSmall is returned when the account buffer cannot hold a record
	ErrBufferTooSmall = errors.New("account buffer too small")
	// ErrOverflow is returned by the checked overflow policy at the maximum count
	ErrOverflow = errors.New("counter overflow")
)
