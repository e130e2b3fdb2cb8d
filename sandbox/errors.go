package sandbox

import "fmt"

// Business error codes returned in the response envelope.
const (
	CodeBadRequest       = "100001"
	CodeMerchantSign     = "100002"
	CodeInvalidSMSCode   = "200001"
	CodeInvalidAuthCode  = "200002"
	CodeUnauthorized     = "200003"
	CodeTokenExpired     = "200004"
	CodeInvalidJWT       = "300001"
	CodeNonceMismatch    = "300002"
	CodeOrderNotFound    = "400001"
	CodeOrderState       = "400002"
	CodeInvalidSignature = "400003"
	CodeEpochExpired     = "400004"
	CodeBalance          = "400005"
	CodeReservation      = "400006"
	CodeUnsupported      = "400007"
	CodeInternal         = "999999"
)

// Error is a business rejection. Transports render it as a failed envelope with HTTP 200.
type Error struct {
	Code string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func reject(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}
