// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/diffeo/go-arts/mcop"
	"github.com/diffeo/go-arts/restdata"
	"github.com/gorilla/mux"
)

// errUnmarshal is returned if the put/post contract is violated and
// a handler function is passed the wrong type.
var errUnmarshal = restdata.ErrBadRequest{
	Err: errors.New("Invalid input format"),
}

// context holds all of the information and objects that can be extracted
// from URL parameters.
type context struct {
	Object      *mcop.Skeleton
	GlobalName  string
	QueryParams url.Values
}

// Context resolves the URL parameters of req.  It runs with the
// dispatcher lock held.
func (api *restAPI) Context(req *http.Request) (ctx *context, err error) {
	ctx = &context{QueryParams: req.URL.Query()}
	vars := mux.Vars(req)

	if id, present := vars["id"]; present {
		var n int64
		n, err = strconv.ParseInt(id, 10, 32)
		if err != nil {
			return nil, restdata.ErrBadRequest{Err: err}
		}
		ctx.Object = api.Dispatcher.Object(int32(n))
		if ctx.Object == nil {
			return nil, restdata.ErrNotFound{Err: mcop.ErrNoSuchObject{ID: int32(n)}}
		}
	}

	if name, present := vars["name"]; present {
		ctx.GlobalName, err = restdata.MaybeDecodeName(name)
		if err != nil {
			return nil, restdata.ErrBadRequest{Err: err}
		}
	}

	return ctx, nil
}

var errNameMismatch = errors.New("Global name does not match URL")

var errNoValue = errors.New("Global value is required")
