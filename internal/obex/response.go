package obex

import (
	"errors"
	"fmt"
)

// ResponseCode is the first byte of a response packet, final bit included.
type ResponseCode byte

const (
	RespContinue           ResponseCode = 0x90
	RespSuccess            ResponseCode = 0xA0
	RespBadRequest         ResponseCode = 0xC0
	RespForbidden          ResponseCode = 0xC3
	RespNotFound           ResponseCode = 0xC4
	RespNotAcceptable      ResponseCode = 0xC6
	RespEntityTooLarge     ResponseCode = 0xCD
	RespInternalError      ResponseCode = 0xD0
	RespNotImplemented     ResponseCode = 0xD1
	RespServiceUnavailable ResponseCode = 0xD3
)

func (c ResponseCode) String() string {
	switch c {
	case RespContinue:
		return "continue"
	case RespSuccess:
		return "success"
	case RespBadRequest:
		return "bad request"
	case RespForbidden:
		return "forbidden"
	case RespNotFound:
		return "not found"
	case RespNotAcceptable:
		return "not acceptable"
	case RespEntityTooLarge:
		return "request entity too large"
	case RespInternalError:
		return "internal server error"
	case RespNotImplemented:
		return "not implemented"
	case RespServiceUnavailable:
		return "service unavailable"
	default:
		return fmt.Sprintf("response 0x%02x", byte(c))
	}
}

// responseError is returned by the client when the server answers a request
// with anything other than the expected code.
type responseError struct {
	op   byte
	code ResponseCode
}

func (e responseError) Error() string {
	return fmt.Sprintf("obex: request 0x%02x answered with %s", e.op, e.code)
}

// ResponseCodeOf reports the server response code carried by err, if any.
func ResponseCodeOf(err error) (ResponseCode, bool) {
	var re responseError
	if errors.As(err, &re) {
		return re.code, true
	}
	return 0, false
}
