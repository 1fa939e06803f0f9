package protocol

// ErrorCode classifies an in-stream error.
type ErrorCode uint16

const (
	ErrUnknown        ErrorCode = 0x0000
	ErrInvalidRequest ErrorCode = 0x0001 // bad navigation target or headers
	ErrRenderFailed   ErrorCode = 0x0002 // a component returned an error
	ErrLoadFailed     ErrorCode = 0x0003 // a component could not be loaded
	ErrActionNotFound ErrorCode = 0x0004
	ErrActionFailed   ErrorCode = 0x0005
	ErrServerError    ErrorCode = 0x0100
	ErrCanceled       ErrorCode = 0x0101 // the render job was canceled
)

// String returns the code name.
func (ec ErrorCode) String() string {
	switch ec {
	case ErrInvalidRequest:
		return "InvalidRequest"
	case ErrRenderFailed:
		return "RenderFailed"
	case ErrLoadFailed:
		return "LoadFailed"
	case ErrActionNotFound:
		return "ActionNotFound"
	case ErrActionFailed:
		return "ActionFailed"
	case ErrServerError:
		return "ServerError"
	case ErrCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// ErrorMessage is the payload of FrameError. It is also an error so a
// receiver can return it directly.
type ErrorMessage struct {
	Code    ErrorCode
	Message string
	// Fatal means no further frames other than End follow.
	Fatal bool
}

// NewError creates a non-fatal ErrorMessage.
func NewError(code ErrorCode, message string) *ErrorMessage {
	return &ErrorMessage{Code: code, Message: message}
}

// NewFatalError creates a fatal ErrorMessage.
func NewFatalError(code ErrorCode, message string) *ErrorMessage {
	return &ErrorMessage{Code: code, Message: message, Fatal: true}
}

// Error implements the error interface.
func (em *ErrorMessage) Error() string {
	if em.Fatal {
		return "fatal: " + em.Code.String() + ": " + em.Message
	}
	return em.Code.String() + ": " + em.Message
}

func (em *ErrorMessage) FrameType() FrameType { return FrameError }

func (em *ErrorMessage) encode(e *Encoder) {
	e.WriteUint16(uint16(em.Code))
	e.WriteString(em.Message)
	e.WriteBool(em.Fatal)
}

func decodeErrorMessage(d *Decoder) (*ErrorMessage, error) {
	code, err := d.ReadUint16()
	if err != nil {
		return nil, err
	}
	msg, err := d.ReadString()
	if err != nil {
		return nil, err
	}
	fatal, err := d.ReadBool()
	if err != nil {
		return nil, err
	}
	return &ErrorMessage{Code: ErrorCode(code), Message: msg, Fatal: fatal}, nil
}
