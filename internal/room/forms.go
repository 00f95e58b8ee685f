package room

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/DoyleJ11/codive/internal/api"
	"github.com/DoyleJ11/codive/pkg/types"
)

type Field string

const (
	FieldCode     Field = "code"
	FieldPassword Field = "password"
	FieldConfirm  Field = "confirm"
	FieldForm     Field = "" // not tied to one input
)

// Inline messages shown next to the offending input.
const (
	MsgRequired         = "값을 입력해주세요."
	MsgPasswordMismatch = "비밀번호가 일치하지 않습니다."
	MsgDuplicateCode    = "중복된 코드입니다."
	MsgRoomNotFound     = "존재하지 않는 초대코드입니다."
	MsgWrongPassword    = "비밀번호가 일치하지 않습니다."
	MsgAlreadyStarted   = "이미 시작된 방입니다."
	MsgServer           = "서버 오류가 발생했습니다."
)

type CreateForm struct {
	Code            string `validate:"notblank"`
	Password        string `validate:"notblank"`
	ConfirmPassword string `validate:"eqfield=Password"`
	Options         types.RoomOptions
}

type JoinForm struct {
	Code     string `validate:"notblank"`
	Password string `validate:"notblank"`
}

// FormError is a recoverable problem with a submitted form. The user fixes the
// field and resubmits.
type FormError struct {
	Field   Field
	Message string
	Err     error
}

func (e *FormError) Error() string {
	if e.Err == nil {
		return string(e.Field) + ": " + e.Message
	}
	return string(e.Field) + ": " + e.Message + ": " + e.Err.Error()
}

func (e *FormError) Unwrap() error { return e.Err }

var ErrInvalidForm = errors.New("invalid form")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

var formFields = map[string]Field{
	"Code":            FieldCode,
	"Password":        FieldPassword,
	"ConfirmPassword": FieldConfirm,
}

func validateForm(form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &FormError{Field: FieldForm, Message: MsgServer, Err: err}
	}
	fe := verrs[0]
	msg := MsgRequired
	if fe.Tag() == "eqfield" {
		msg = MsgPasswordMismatch
	}
	return &FormError{Field: formFields[fe.StructField()], Message: msg, Err: ErrInvalidForm}
}

func createError(err error) error {
	if errors.Is(err, api.ErrDuplicateCode) {
		return &FormError{Field: FieldCode, Message: MsgDuplicateCode, Err: err}
	}
	return &FormError{Field: FieldForm, Message: MsgServer, Err: err}
}

func enterError(err error) error {
	switch {
	case errors.Is(err, api.ErrRoomNotFound):
		return &FormError{Field: FieldCode, Message: MsgRoomNotFound, Err: err}
	case errors.Is(err, api.ErrWrongPassword):
		return &FormError{Field: FieldPassword, Message: MsgWrongPassword, Err: err}
	case errors.Is(err, api.ErrAlreadyStarted):
		return &FormError{Field: FieldCode, Message: MsgAlreadyStarted, Err: err}
	default:
		return &FormError{Field: FieldForm, Message: MsgServer, Err: err}
	}
}
