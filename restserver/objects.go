// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"strconv"

	"github.com/diffeo/go-arts/mcop"
	"github.com/diffeo/go-arts/restdata"
)

func (api *restAPI) fillObjectShort(skel *mcop.Skeleton, short *restdata.ObjectShort) error {
	short.ID = skel.ID()
	short.Interface = skel.InterfaceName()
	return buildURLs(api.Router, "id", strconv.Itoa(int(skel.ID()))).
		URL(&short.URL, "object").
		Error
}

// ObjectList lists every live local object.
func (api *restAPI) ObjectList(ctx *context) (interface{}, error) {
	resp := restdata.ObjectList{}
	for _, skel := range api.Dispatcher.Objects() {
		short := restdata.ObjectShort{}
		if err := api.fillObjectShort(skel, &short); err != nil {
			return nil, err
		}
		resp.Objects = append(resp.Objects, short)
	}
	return resp, nil
}

// ObjectGet describes one object.
func (api *restAPI) ObjectGet(ctx *context) (interface{}, error) {
	skel := ctx.Object
	resp := restdata.Object{
		Reference:       skel.ToString(),
		RefCount:        skel.RefCount(),
		RemoteSendCount: skel.RemoteSendCount(),
		RemoteUsers:     skel.RemoteUsers(),
	}
	if err := api.fillObjectShort(skel, &resp.ObjectShort); err != nil {
		return nil, err
	}
	return resp, nil
}
