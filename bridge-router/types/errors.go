package types

import (
	"errors"
	"fmt"
)

var (
	// ErrProofInvalid happens when the proof oracle rejects the inclusion proof of an envelope,
	// or when the proven log was not emitted by the trusted gateway.
	ErrProofInvalid = errors.New("invalid proof")
	// ErrReplay happens when an envelope with an already processed message ID is submitted again.
	ErrReplay = errors.New("message already processed")
	// ErrMalformed happens when the payload of a proven envelope cannot be decoded.
	ErrMalformed = errors.New("malformed message")
	// ErrInsufficientFee happens when the offered fee does not cover the required execution or delivery fee.
	ErrInsufficientFee = errors.New("insufficient fee")
	// ErrUnknownAsset happens when a transfer references a foreign asset that was never registered.
	ErrUnknownAsset = errors.New("unknown asset")
	// ErrNoAgent happens when a channel is requested for an origin that has no agent yet.
	ErrNoAgent = errors.New("no agent")
	// ErrNoChannel happens when a message is enqueued on a channel that does not exist.
	ErrNoChannel = errors.New("no channel")
	// ErrChannelClosed happens when a message is enqueued on a channel that rejects outbound messages.
	ErrChannelClosed = errors.New("channel closed")
	// ErrInsufficientBalance happens when an account cannot cover a burn or transfer.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrOverflow happens when an amount would exceed the 128 bit ceiling of balances.
	ErrOverflow = errors.New("arithmetic overflow")
	// ErrRegistry happens when stored registry data is inconsistent.
	ErrRegistry = errors.New("registry inconsistency")
	// ErrUnauthorized happens when a control operation is attempted without the root origin.
	ErrUnauthorized = errors.New("unauthorized origin")
	// ErrHalted happens when the bridge operating mode rejects outbound messages.
	ErrHalted = errors.New("bridge halted")
)

// InsufficientBalanceError carries the amounts involved in a failed debit.
type InsufficientBalanceError struct {
	Account   AccountID
	Available Balance
	Requested Balance
}

var _ error = (*InsufficientBalanceError)(nil)

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance of %s: requested %s, available %s", e.Account, e.Requested, e.Available)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// IsPermanent reports whether a failure to process an envelope is final: submitting the same
// envelope again fails the same way.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrProofInvalid) || MarksProcessed(err)
}

// MarksProcessed reports whether a failed envelope still consumes its message ID.
// An envelope that fails its proof does not, since the ID it claims is not authenticated.
func MarksProcessed(err error) bool {
	return errors.Is(err, ErrMalformed) ||
		errors.Is(err, ErrInsufficientFee) ||
		errors.Is(err, ErrUnknownAsset) ||
		errors.Is(err, ErrNoAgent)
}

// IsInvariantViolation reports whether the error indicates broken internal state,
// which needs operator attention but does not stop the router.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrOverflow) || errors.Is(err, ErrRegistry)
}

var genericInvalidParamsErr = -32602

var errorCodeMap = map[error]int{
	ErrProofInvalid:        -321001,
	ErrReplay:              -321002,
	ErrMalformed:           -321003,
	ErrInsufficientFee:     -321004,
	ErrUnknownAsset:        -321005,
	ErrNoAgent:             -321006,
	ErrNoChannel:           -321007,
	ErrChannelClosed:       -321008,
	ErrInsufficientBalance: -321009,
	ErrOverflow:            -321500,
	ErrRegistry:            -321501,
	ErrHalted:              -321010,

	ErrUnauthorized: genericInvalidParamsErr,
}

// ErrorCode returns the JSON-RPC error code for the given error.
func ErrorCode(err error) int {
	if err == nil {
		return 0
	}
	for knownErr, code := range errorCodeMap {
		if errors.Is(err, knownErr) {
			return code
		}
	}
	return genericInvalidParamsErr
}
