package protocol

// Error codes follow HTTP conventions; 5xx codes are fatal (the server
// cannot serve this request class), 4xx codes fault the request.
const (
	ErrCodeBadRequest         = 400
	ErrCodeUnauthorized       = 401
	ErrCodeForbidden          = 403
	ErrCodeNotFound           = 404
	ErrCodeTimeout            = 408
	ErrCodeInternal           = 500
	ErrCodeNotImplemented     = 501
	ErrCodeServiceUnavailable = 503
)

// errorDescriptions maps common codes to human-readable text.
var errorDescriptions = map[uint16]string{
	ErrCodeBadRequest:         "Bad Request",
	ErrCodeUnauthorized:       "Unauthorized",
	ErrCodeForbidden:          "Forbidden",
	ErrCodeNotFound:           "Not Found",
	ErrCodeTimeout:            "Request Timeout",
	ErrCodeInternal:           "Internal Server Error",
	ErrCodeNotImplemented:     "Not Implemented",
	ErrCodeServiceUnavailable: "Service Unavailable",
}

// ErrorResponse reports a request failure. The numeric code reuses the
// weather_code tail slot, so the packet is always the 20-byte shape.
type ErrorResponse struct {
	Header Header
	Code   uint16

	Extensions map[string]interface{}
}

// Type returns the wire discriminant.
func (p *ErrorResponse) Type() uint8 { return TypeErrorResponse }

// Description returns the human-readable text for the error code, or
// "Unknown Error" for codes outside the fixed table.
func (p *ErrorResponse) Description() string {
	if desc, ok := errorDescriptions[p.Code]; ok {
		return desc
	}
	return "Unknown Error"
}

// IsFatal reports whether the code marks a server-side failure (500-599).
func (p *ErrorResponse) IsFatal() bool {
	return p.Code >= 500 && p.Code <= 599
}

// Encode serializes the response.
func (p *ErrorResponse) Encode(c *Codec) ([]byte, error) {
	h := p.Header
	h.Type = TypeErrorResponse

	tail := Tail{WeatherCode: p.Code}
	return encodePacket(c, h, &tail, p.Extensions)
}

// ParseErrorResponse parses an ErrorResponse from raw bytes.
func ParseErrorResponse(c *Codec, data []byte) (*ErrorResponse, error) {
	h, tail, ext, err := decodePacket(c, data, TypeErrorResponse, true)
	if err != nil {
		return nil, err
	}

	p := &ErrorResponse{Header: h, Code: tail.WeatherCode}
	if len(ext) > 0 {
		p.Extensions = ext
	}
	return p, nil
}
