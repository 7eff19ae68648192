// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strconv"

	"github.com/diffeo/go-arts/mcop"
)

// ErrorStatus describes errors that correspond to specific HTTP status
// codes.
type ErrorStatus interface {
	// HTTPStatus returns the HTTP status code for this error.
	HTTPStatus() int
}

// ErrUnsupportedMediaType is returned from Decode() if the provided
// Content-Type: is unrecognized.  This translates directly into the
// equivalent HTTP 415 error.
type ErrUnsupportedMediaType struct {
	Type string
}

func (e ErrUnsupportedMediaType) Error() string {
	return fmt.Sprintf("Unsupported media type %q", e.Type)
}

// HTTPStatus returns a fixed 415 Unsupported Media Type error code.
func (e ErrUnsupportedMediaType) HTTPStatus() int {
	return http.StatusUnsupportedMediaType
}

// ErrNotFound is a wrapper error that indicates that, due to the
// embedded error, a REST service should return a 404 Not Found error.
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 404 Not Found error code.
func (e ErrNotFound) HTTPStatus() int {
	return http.StatusNotFound
}

// ErrBadRequest is returned as an error when there is an error decoding
// HTTP headers or the request body.
type ErrBadRequest struct {
	Err error
}

func (e ErrBadRequest) Error() string {
	return e.Err.Error()
}

// HTTPStatus returns a fixed 400 Bad Request HTTP status code.
func (e ErrBadRequest) HTTPStatus() int {
	return http.StatusBadRequest
}

// ErrNoSuchGlobal is returned when a global name has no value.
type ErrNoSuchGlobal struct {
	Name string
}

func (e ErrNoSuchGlobal) Error() string {
	return fmt.Sprintf("No such global %q", e.Name)
}

// HTTPStatus returns a fixed 404 Not Found error code.
func (e ErrNoSuchGlobal) HTTPStatus() int {
	return http.StatusNotFound
}

// ErrGlobalTaken is returned when putting a global name that already
// has a value.
type ErrGlobalTaken struct {
	Name string
}

func (e ErrGlobalTaken) Error() string {
	return fmt.Sprintf("Global %q is already set", e.Name)
}

// HTTPStatus returns a fixed 409 Conflict error code.
func (e ErrGlobalTaken) HTTPStatus() int {
	return http.StatusConflict
}

// FromError populates an ErrorResponse to fill in its fields based
// on an error value.  This remaps the well-known MCOP errors to
// specific e.Error codes.
func (e *ErrorResponse) FromError(err error) {
	switch err {
	case mcop.ErrConnectionBroken:
		e.Error = "ErrConnectionBroken"
	case mcop.ErrNoSuchMethod:
		e.Error = "ErrNoSuchMethod"
	case mcop.ErrNullReference:
		e.Error = "ErrNullReference"
	case mcop.ErrBadReference:
		e.Error = "ErrBadReference"
	case mcop.ErrNoConnection:
		e.Error = "ErrNoConnection"
	}
	switch et := err.(type) {
	case mcop.ErrNoSuchObject:
		e.Error = "ErrNoSuchObject"
		e.Value = strconv.Itoa(int(et.ID))
	case ErrNoSuchGlobal:
		e.Error = "ErrNoSuchGlobal"
		e.Value = et.Name
	case ErrGlobalTaken:
		e.Error = "ErrGlobalTaken"
		e.Value = et.Name
	case ErrNotFound:
		// Discard this wrapper and return the embedded error
		e.FromError(et.Err)
	case ErrBadRequest:
		e.FromError(et.Err)
	}
}

// ToError converts e back to a well-known error, if that is possible.
// If not, returns a plain error with e.Message text.
func (e *ErrorResponse) ToError() error {
	switch e.Error {
	case "ErrConnectionBroken":
		return mcop.ErrConnectionBroken
	case "ErrNoSuchMethod":
		return mcop.ErrNoSuchMethod
	case "ErrNullReference":
		return mcop.ErrNullReference
	case "ErrBadReference":
		return mcop.ErrBadReference
	case "ErrNoConnection":
		return mcop.ErrNoConnection
	case "ErrNoSuchObject":
		id, err := strconv.Atoi(e.Value)
		if err == nil {
			return mcop.ErrNoSuchObject{ID: int32(id)}
		}
	case "ErrNoSuchGlobal":
		return ErrNoSuchGlobal{Name: e.Value}
	case "ErrGlobalTaken":
		return ErrGlobalTaken{Name: e.Value}
	}
	return errors.New(e.Message)
}

// FromPanic populates an error response based on a panic.  Typical use
// is:
//
//     defer func() {
//         if obj := recover(); obj != nil {
//             resp := restdata.ErrorResponse{}
//             resp.FromPanic(obj)
//             // write resp out as makes sense
//         }
//     }()
func (e *ErrorResponse) FromPanic(obj interface{}) {
	e.Error = "panic"
	if recoveredError, isError := obj.(error); isError {
		e.Message = recoveredError.Error()
	} else {
		e.Message = fmt.Sprintf("%+v", obj)
	}
	var stack [4096]byte
	n := runtime.Stack(stack[:], false)
	e.Stack = string(stack[:n])
}
