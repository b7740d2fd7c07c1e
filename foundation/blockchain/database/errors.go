package database

import (
	"errors"
	"fmt"
)

// Set of errors a transaction can be rejected with before or while being
// processed by a bank.
var (
	ErrAccountInUse               = errors.New("account in use")
	ErrAccountLoadedTwice         = errors.New("account loaded twice")
	ErrTooManyAccountLocks        = errors.New("too many account locks")
	ErrWouldExceedBlockMaxLimit   = errors.New("would exceed block max cost limit")
	ErrWouldExceedAccountMaxLimit = errors.New("would exceed account max cost limit")
	ErrBlockhashNotFound          = errors.New("blockhash not found")
	ErrAlreadyProcessed           = errors.New("transaction already processed")
	ErrInsufficientFundsForFee    = errors.New("insufficient funds for fee")
	ErrAccountNotFound            = errors.New("fee payer account not found")
	ErrInvalidAccountForFee       = errors.New("invalid account for fee")
	ErrProgramAccountNotFound     = errors.New("program account not found")
	ErrInvalidProgramForExecution = errors.New("invalid program for execution")
	ErrSanitizeFailure            = errors.New("transaction failed to sanitize")
	ErrSignatureFailure           = errors.New("transaction signature verification failed")
	ErrUnbalancedTransaction      = errors.New("sum of account balances before and after transaction do not match")
)

// Set of errors an individual instruction can fail with.
var (
	ErrInvalidArgument           = errors.New("invalid program argument")
	ErrInvalidInstructionData    = errors.New("invalid instruction data")
	ErrInvalidAccountData        = errors.New("invalid account data for instruction")
	ErrInsufficientFunds         = errors.New("insufficient funds for instruction")
	ErrMissingRequiredSignature  = errors.New("missing required signature for instruction")
	ErrAccountAlreadyInUse       = errors.New("instruction requires an uninitialized account")
	ErrNotEnoughAccountKeys      = errors.New("insufficient account keys for instruction")
	ErrReadonlyLamportChange     = errors.New("instruction changed the balance of a read-only account")
	ErrReadonlyDataModified      = errors.New("instruction modified data of a read-only account")
	ErrExternalLamportSpend      = errors.New("instruction spent from the balance of an account it does not own")
	ErrExternalDataModified      = errors.New("instruction modified data of an account it does not own")
	ErrModifiedProgramID         = errors.New("instruction illegally modified the program id of an account")
	ErrExecutableModified        = errors.New("instruction changed the executable flag of an account")
	ErrUnbalancedInstruction     = errors.New("sum of account balances before and after instruction do not match")
	ErrComputationalBudgetExceed = errors.New("computational budget exceeded")
	ErrUnsupportedProgramID      = errors.New("unsupported program id")
	ErrDuplicateInstruction      = errors.New("transaction contains a duplicate instruction that is not allowed")
	ErrInvalidAccountOwner       = errors.New("invalid account owner")
	ErrNonceBlockhashNotExpired  = errors.New("nonce blockhash has not expired")
	ErrNonceNotInitialized       = errors.New("nonce account is not initialized")
	ErrInvalidRealloc            = errors.New("failed to reallocate account data")
)

// InstructionError represents an error produced by the instruction at the
// specified index. The transaction that carried it is still charged a fee.
type InstructionError struct {
	Index uint8
	Err   error
}

// Error implements the error interface.
func (ie *InstructionError) Error() string {
	return fmt.Sprintf("error processing instruction %d: %s", ie.Index, ie.Err)
}

// Unwrap provides support for errors.Is and errors.As.
func (ie *InstructionError) Unwrap() error {
	return ie.Err
}

// IsInstructionError checks if an error of type InstructionError exists.
func IsInstructionError(err error) bool {
	var ie *InstructionError
	return errors.As(err, &ie)
}

// IsRetryable reports whether a transaction rejected with this error can be
// resubmitted in a later batch as is.
func IsRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrAccountInUse),
		errors.Is(err, ErrWouldExceedBlockMaxLimit),
		errors.Is(err, ErrWouldExceedAccountMaxLimit):
		return true
	}

	return false
}
