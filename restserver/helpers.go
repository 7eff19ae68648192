// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/diffeo/go-arts/restdata"
	"github.com/gorilla/mux"
)

// urlBuilder fills in URLs for named routes, stopping at the first
// error.
type urlBuilder struct {
	Router *mux.Router
	Params []string
	Error  error
}

// buildURLs starts a builder.  params alternate route variable names
// and values; values are encoded with restdata.MaybeEncodeName.
func buildURLs(router *mux.Router, params ...string) *urlBuilder {
	for i, value := range params {
		if i%2 == 1 {
			params[i] = restdata.MaybeEncodeName(value)
		}
	}
	return &urlBuilder{Router: router, Params: params}
}

func (u *urlBuilder) route(name string) *mux.Route {
	r := u.Router.Get(name)
	if r == nil {
		u.Error = fmt.Errorf("No such route %q", name)
	}
	return r
}

func (u *urlBuilder) build(name string, params []string) *url.URL {
	if u.Error != nil {
		return nil
	}
	r := u.route(name)
	if u.Error != nil {
		return nil
	}
	var result *url.URL
	result, u.Error = r.URL(params...)
	return result
}

// URL stores the URL of a route in out.
func (u *urlBuilder) URL(out *string, name string) *urlBuilder {
	if result := u.build(name, u.Params); result != nil {
		*out = result.String()
	}
	return u
}

// Template stores a URI template for a route in out, leaving param
// as a {param} placeholder.
func (u *urlBuilder) Template(out *string, name, param string) *urlBuilder {
	params := append([]string{param, "---"}, u.Params...)
	if result := u.build(name, params); result != nil {
		*out = strings.Replace(result.String(), "---", "{"+param+"}", 1)
	}
	return u
}
