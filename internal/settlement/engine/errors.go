package engine

import "errors"

// Class agrupa os erros da liquidação pelo tipo de falha.
type Class int

const (
	ClassUnknown Class = iota
	ClassValidation
	ClassState
	ClassAuthorization
	ClassArithmetic
	ClassConsistency
	ClassNotFound
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassState:
		return "state"
	case ClassAuthorization:
		return "authorization"
	case ClassArithmetic:
		return "arithmetic"
	case ClassConsistency:
		return "consistency"
	case ClassNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error é um erro nomeado da liquidação. Nenhum erro deixa efeito parcial.
type Error struct {
	Code  string
	Class Class
	msg   string
}

func (e *Error) Error() string { return e.msg }

func newError(class Class, code, msg string) *Error {
	return &Error{Code: code, Class: class, msg: msg}
}

var (
	// validação
	ErrInvalidSide        = newError(ClassValidation, "InvalidSide", "invalid side")
	ErrInvalidWinningSide = newError(ClassValidation, "InvalidWinningSide", "invalid winning side")
	ErrZeroAmount         = newError(ClassValidation, "ZeroAmount", "amount must be greater than zero")
	ErrLabelTooLong       = newError(ClassValidation, "LabelTooLong", "label too long")
	ErrInvalidFee         = newError(ClassValidation, "InvalidFee", "invalid fee configuration")

	// estado
	ErrMarketAlreadyResolved   = newError(ClassState, "MarketAlreadyResolved", "market already resolved")
	ErrMarketNotResolved       = newError(ClassState, "MarketNotResolved", "market not resolved")
	ErrMarketFrozen            = newError(ClassState, "MarketFrozen", "market is frozen")
	ErrMarketNotFrozen         = newError(ClassState, "MarketNotFrozen", "market must be frozen before resolve")
	ErrMarketAlreadyFrozen     = newError(ClassState, "MarketAlreadyFrozen", "market already frozen")
	ErrAlreadyClaimed          = newError(ClassState, "AlreadyClaimed", "ticket already claimed")
	ErrTicketSideMismatch      = newError(ClassState, "TicketSideMismatch", "ticket side does not match winning side")
	ErrCannotCloseActiveTicket = newError(ClassState, "CannotCloseActiveTicket", "cannot close an unclaimed winning ticket")
	ErrAccountExists           = newError(ClassState, "AccountExists", "account already exists")
	ErrWriteConflict           = newError(ClassState, "WriteConflict", "concurrent write conflict, retry")

	// autorização
	ErrUnauthorized       = newError(ClassAuthorization, "Unauthorized", "unauthorized")
	ErrAuthorityCannotBet = newError(ClassAuthorization, "AuthorityCannotBet", "market authority cannot bet on own market")
	ErrFaucetDisabled     = newError(ClassAuthorization, "FaucetDisabled", "faucet disabled")

	// aritmética
	ErrMathOverflow = newError(ClassArithmetic, "MathOverflow", "math overflow")

	// consistência
	ErrInsufficientEscrow   = newError(ClassConsistency, "InsufficientEscrow", "insufficient escrow balance")
	ErrInsufficientFunds    = newError(ClassConsistency, "InsufficientFunds", "insufficient funds")
	ErrFeesRemaining        = newError(ClassConsistency, "FeesRemaining", "fees remaining: withdraw before closing")
	ErrOutstandingLamports  = newError(ClassConsistency, "OutstandingLamports", "outstanding lamports remain in market")
	ErrTicketMarketMismatch = newError(ClassConsistency, "TicketMarketMismatch", "ticket does not belong to market")
	ErrSeedMismatch         = newError(ClassConsistency, "SeedMismatch", "account does not match its derivation")

	ErrAccountNotFound = newError(ClassNotFound, "AccountNotFound", "account not found")
)

// ClassOf retorna a classe de err, ou ClassUnknown para erros de infraestrutura.
func ClassOf(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ClassUnknown
}

// CodeOf retorna o nome do erro ("" se não for um erro da liquidação).
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
