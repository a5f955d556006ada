package types

import "errors"

// EsimPayError is the typed error surfaced by every component. Code is one
// of the constants below; Data carries the triggering parameters, never a
// generic message.
type EsimPayError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *EsimPayError) Error() string {
	return e.Message
}

// Error codes
const (
	ErrUnauthorizedCaller  = "UNAUTHORIZED_CALLER"
	ErrUnknownESIMWallet   = "UNKNOWN_ESIM_WALLET"
	ErrDeploymentFailed    = "DEPLOYMENT_FAILED"
	ErrUnsupportedNetwork  = "UNSUPPORTED_NETWORK"
	ErrUnsupportedToken    = "UNSUPPORTED_TOKEN"
	ErrInvalidAddress      = "INVALID_ADDRESS"
	ErrTransactionNotFound = "TRANSACTION_NOT_FOUND"
	ErrOracleUnavailable   = "ORACLE_UNAVAILABLE"
	ErrRPCFailure          = "RPC_FAILURE"
	ErrSessionMismatch     = "SESSION_MISMATCH"
)

// ErrorCode extracts the esimpay error code from err, or "" if no
// EsimPayError is in its chain.
func ErrorCode(err error) string {
	var e *EsimPayError
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
