package types

// SuccessEnvelope wraps every 2xx JSON body. Clients always read from "data".
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the wire form of a typed error. Code carries the stable machine
// code (for example INSUFFICIENT_STOCK); Details is populated only for codes
// whose metadata allows it.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps every non-2xx JSON body.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
