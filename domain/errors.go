package domain

import "errors"

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind/Code rather than matching error strings.
// Every operation that fails with any Kind leaves ledgers, escrow records and
// reputation counters exactly as they were before the call.
type Kind string

const (
	// KindAuthorization covers unregistered callers, wrong roles and
	// unauthorized attestors, admins or updaters.
	KindAuthorization Kind = "Authorization"
	// KindValidation covers malformed or rejected input.
	KindValidation Kind = "Validation"
	// KindState covers protocol-ordering violations by the caller.
	KindState Kind = "State"
	// KindResource covers insufficient funds or allowances.
	KindResource Kind = "Resource"
	KindInternal Kind = "Internal"
)

// Code is a machine-readable error code. Codes are stable across versions.
type Code string

const (
	CodeAlreadyRegistered Code = "ALREADY_REGISTERED"
	CodeNotRegistered     Code = "NOT_REGISTERED"
	CodeWrongRole         Code = "WRONG_ROLE"
	CodeNotAdmin          Code = "NOT_ADMIN"
	CodeNotAttestor       Code = "NOT_ATTESTOR"
	CodeNotUpdater        Code = "NOT_UPDATER"

	CodeEmptyProductID   Code = "EMPTY_PRODUCT_ID"
	CodeDuplicateProduct Code = "DUPLICATE_PRODUCT"
	CodeEmptyLocator     Code = "EMPTY_LOCATOR"
	CodeInvalidAmount    Code = "INVALID_AMOUNT"
	CodeInvalidAddress   Code = "INVALID_ADDRESS"
	CodeInvalidRole      Code = "INVALID_ROLE"
	CodeScoreOutOfRange  Code = "SCORE_OUT_OF_RANGE"
	CodeReportExpired    Code = "REPORT_EXPIRED"
	CodeBadSignature     Code = "BAD_SIGNATURE"
	CodeMalformedReport  Code = "MALFORMED_REPORT"
	CodeEmptyEvidence    Code = "EMPTY_EVIDENCE"

	CodeUnknownProduct     Code = "UNKNOWN_PRODUCT"
	CodeProductNotActive   Code = "PRODUCT_NOT_ACTIVE"
	CodeScoreAlreadySet    Code = "SCORE_ALREADY_SET"
	CodeAlreadySettled     Code = "ALREADY_SETTLED"
	CodeNoScoreYet         Code = "NO_SCORE_YET"
	CodeProductHeld        Code = "PRODUCT_HELD"
	CodeProductNotHeld     Code = "PRODUCT_NOT_HELD"
	CodeDisputeAlreadyOpen Code = "DISPUTE_ALREADY_OPEN"
	CodeDisputeNotOpen     Code = "DISPUTE_NOT_OPEN"
	CodeAlreadyResolved    Code = "ALREADY_RESOLVED"
	CodeEvidenceNotFound   Code = "EVIDENCE_NOT_FOUND"

	CodeInsufficientRewardPool Code = "INSUFFICIENT_REWARD_POOL"
	CodeInsufficientBalance    Code = "INSUFFICIENT_BALANCE"
	CodeInsufficientAllowance  Code = "INSUFFICIENT_ALLOWANCE"
	CodeAmountOverflow         Code = "AMOUNT_OVERFLOW"

	CodeLedgerFailure  Code = "LEDGER_FAILURE"
	CodeArchiveFailure Code = "ARCHIVE_FAILURE"
)

var codeKinds = map[Code]Kind{
	CodeNotRegistered: KindAuthorization,
	CodeWrongRole:     KindAuthorization,
	CodeNotAdmin:      KindAuthorization,
	CodeNotAttestor:   KindAuthorization,
	CodeNotUpdater:    KindAuthorization,

	CodeAlreadyRegistered: KindValidation,
	CodeEmptyProductID:    KindValidation,
	CodeDuplicateProduct:  KindValidation,
	CodeEmptyLocator:      KindValidation,
	CodeInvalidAmount:     KindValidation,
	CodeInvalidAddress:    KindValidation,
	CodeInvalidRole:       KindValidation,
	CodeScoreOutOfRange:   KindValidation,
	CodeReportExpired:     KindValidation,
	CodeBadSignature:      KindValidation,
	CodeMalformedReport:   KindValidation,
	CodeEmptyEvidence:     KindValidation,

	CodeUnknownProduct:     KindState,
	CodeProductNotActive:   KindState,
	CodeScoreAlreadySet:    KindState,
	CodeAlreadySettled:     KindState,
	CodeNoScoreYet:         KindState,
	CodeProductHeld:        KindState,
	CodeProductNotHeld:     KindState,
	CodeDisputeAlreadyOpen: KindState,
	CodeDisputeNotOpen:     KindState,
	CodeAlreadyResolved:    KindState,
	CodeEvidenceNotFound:   KindState,

	CodeInsufficientRewardPool: KindResource,
	CodeInsufficientBalance:    KindResource,
	CodeInsufficientAllowance:  KindResource,
	CodeAmountOverflow:         KindResource,

	CodeLedgerFailure:  KindInternal,
	CodeArchiveFailure: KindInternal,
}

// Kind returns the category a code belongs to.
func (c Code) Kind() Kind {
	if k, ok := codeKinds[c]; ok {
		return k
	}
	return KindInternal
}

// Error is the structured error type shared by every component.
//
// Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// NewError creates an error whose Kind is derived from code.
func NewError(code Code, msg string) *Error {
	return &Error{Kind: code.Kind(), Code: code, Message: msg}
}

// WrapError is NewError with an underlying cause.
func WrapError(code Code, msg string, cause error) *Error {
	return &Error{Kind: code.Kind(), Code: code, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// CodeOf returns the Code of a structured error, or "" if err is not one.
func CodeOf(err error) Code {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Code
}

// Sentinels for errors.Is matching.
var (
	ErrAlreadyRegistered = NewError(CodeAlreadyRegistered, "already registered")
	ErrNotRegistered     = NewError(CodeNotRegistered, "not registered")
	ErrWrongRole         = NewError(CodeWrongRole, "wrong role")
	ErrNotAdmin          = NewError(CodeNotAdmin, "caller is not the admin")
	ErrNotAttestor       = NewError(CodeNotAttestor, "not an authorized attestor")
	ErrNotUpdater        = NewError(CodeNotUpdater, "not an authorized reputation updater")

	ErrEmptyProductID   = NewError(CodeEmptyProductID, "empty product id")
	ErrDuplicateProduct = NewError(CodeDuplicateProduct, "product exists")
	ErrEmptyLocator     = NewError(CodeEmptyLocator, "empty external locator")
	ErrInvalidAmount    = NewError(CodeInvalidAmount, "amount must be positive")
	ErrInvalidAddress   = NewError(CodeInvalidAddress, "invalid address")
	ErrInvalidRole      = NewError(CodeInvalidRole, "invalid role")
	ErrScoreOutOfRange  = NewError(CodeScoreOutOfRange, "score out of range")
	ErrReportExpired    = NewError(CodeReportExpired, "report expired")
	ErrBadSignature     = NewError(CodeBadSignature, "bad signature")
	ErrMalformedReport  = NewError(CodeMalformedReport, "malformed report")
	ErrEmptyEvidence    = NewError(CodeEmptyEvidence, "empty evidence digest")

	ErrUnknownProduct     = NewError(CodeUnknownProduct, "unknown product")
	ErrProductNotActive   = NewError(CodeProductNotActive, "product not active")
	ErrScoreAlreadySet    = NewError(CodeScoreAlreadySet, "trust score already recorded")
	ErrAlreadySettled     = NewError(CodeAlreadySettled, "rewards already distributed")
	ErrNoScoreYet         = NewError(CodeNoScoreYet, "no trust score recorded")
	ErrProductHeld        = NewError(CodeProductHeld, "product stakes are held")
	ErrProductNotHeld     = NewError(CodeProductNotHeld, "product not held")
	ErrDisputeAlreadyOpen = NewError(CodeDisputeAlreadyOpen, "dispute already open")
	ErrDisputeNotOpen     = NewError(CodeDisputeNotOpen, "dispute not open")
	ErrAlreadyResolved    = NewError(CodeAlreadyResolved, "dispute already resolved")

	ErrInsufficientRewardPool = NewError(CodeInsufficientRewardPool, "insufficient reward pool")
	ErrInsufficientBalance    = NewError(CodeInsufficientBalance, "insufficient balance")
	ErrInsufficientAllowance  = NewError(CodeInsufficientAllowance, "insufficient allowance")
	ErrAmountOverflow         = NewError(CodeAmountOverflow, "amount overflow")
)
