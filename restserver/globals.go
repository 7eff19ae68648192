// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import "github.com/diffeo/go-arts/restdata"

func (api *restAPI) globalURL(name string) (string, error) {
	var url string
	err := buildURLs(api.Router, "name", name).URL(&url, "global").Error
	return url, err
}

// GlobalList lists the names the object manager published along
// with their current values.
func (api *restAPI) GlobalList(ctx *context) (interface{}, error) {
	resp := restdata.GlobalList{Globals: []restdata.Global{}}
	if api.ObjectManager == nil || api.GlobalComm == nil {
		return resp, nil
	}
	for _, name := range api.ObjectManager.GlobalNames() {
		g := restdata.Global{Name: name, Value: api.GlobalComm.Get(name)}
		var err error
		if g.URL, err = api.globalURL(name); err != nil {
			return nil, err
		}
		resp.Globals = append(resp.Globals, g)
	}
	return resp, nil
}

// GlobalGet looks up one name in the naming service.
func (api *restAPI) GlobalGet(ctx *context) (interface{}, error) {
	value := api.GlobalComm.Get(ctx.GlobalName)
	if value == "" {
		return nil, restdata.ErrNoSuchGlobal{Name: ctx.GlobalName}
	}
	resp := restdata.Global{Name: ctx.GlobalName, Value: value}
	var err error
	resp.URL, err = api.globalURL(ctx.GlobalName)
	return resp, err
}

// GlobalPut stores a name that is not already taken.
func (api *restAPI) GlobalPut(ctx *context, in interface{}) (interface{}, error) {
	g, valid := in.(restdata.Global)
	if !valid {
		return nil, errUnmarshal
	}
	if g.Name != "" && g.Name != ctx.GlobalName {
		return nil, restdata.ErrBadRequest{Err: errNameMismatch}
	}
	if g.Value == "" {
		return nil, restdata.ErrBadRequest{Err: errNoValue}
	}
	if !api.GlobalComm.Put(ctx.GlobalName, g.Value) {
		return nil, restdata.ErrGlobalTaken{Name: ctx.GlobalName}
	}
	resp := restdata.Global{Name: ctx.GlobalName, Value: g.Value}
	var err error
	if resp.URL, err = api.globalURL(ctx.GlobalName); err != nil {
		return nil, err
	}
	return responseCreated{Location: resp.URL, Body: resp}, nil
}

// GlobalDelete erases a name.  Erasing a missing name succeeds.
func (api *restAPI) GlobalDelete(ctx *context) (interface{}, error) {
	api.GlobalComm.Erase(ctx.GlobalName)
	return nil, nil
}
