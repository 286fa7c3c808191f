package auth

import (
	"strings"

	"foodrankr-web/pkg/validation"
)

// LoginForm is the sign-in half of the gate. The password is never echoed back.
type LoginForm struct {
	Email    string
	Password string
}

// RegisterForm is the account creation half of the gate.
type RegisterForm struct {
	Email    string
	Password string
	FullName string
	Country  string
	Company  string
	CafeName string
}

// GateView is the data rendered by the auth gate.
type GateView struct {
	Login      LoginForm
	Register   RegisterForm
	Message    string
	Unverified bool
	Errors     validation.Errors
}

// Messages shown on the gate.
const (
	MsgLoginFailed    = "Sign in failed"
	MsgRegisterFailed = "Registration failed"
	MsgTooManyTries   = "Too many attempts, please wait a moment"
)

func (f LoginForm) validate() validation.Errors {
	errs := validation.Errors{}
	if !validation.ValidateRequired(f.Email) {
		errs.Add("login.email", "required")
	}
	if !validation.ValidateRequired(f.Password) {
		errs.Add("login.password", "required")
	}
	return errs
}

func (f RegisterForm) validate() validation.Errors {
	errs := validation.Errors{}
	if !validation.ValidateEmail(f.Email) {
		errs.Add("register.email", "enter a valid email")
	}
	if !validation.ValidateRequired(f.Password) {
		errs.Add("register.password", "required")
	}
	if !validation.ValidateName(f.FullName) {
		errs.Add("register.full_name", "required")
	}
	if !validation.ValidateRequired(f.Country) {
		errs.Add("register.country", "required")
	}
	return errs
}

func (f LoginForm) redacted() LoginForm {
	f.Password = ""
	return f
}

func (f RegisterForm) redacted() RegisterForm {
	f.Password = ""
	return f
}

func clean(s string) string { return strings.TrimSpace(s) }
