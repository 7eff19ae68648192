// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import "github.com/diffeo/go-arts/restdata"

// ConnectionList describes every connection the dispatcher knows.
func (api *restAPI) ConnectionList(ctx *context) (interface{}, error) {
	resp := restdata.ConnectionList{Connections: []restdata.Connection{}}
	for _, conn := range api.Dispatcher.Connections() {
		resp.Connections = append(resp.Connections, restdata.Connection{
			ID:       conn.ID(),
			Peer:     conn.String(),
			State:    conn.State().String(),
			ServerID: conn.ServerID(),
			Broken:   conn.Broken(),
			RefCount: conn.RefCount(),
		})
	}
	return resp, nil
}
