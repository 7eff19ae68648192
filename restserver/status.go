// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import "github.com/diffeo/go-arts/restdata"

// AudioGet reports the audio subsystem's parameters and counters.
func (api *restAPI) AudioGet(ctx *context) (interface{}, error) {
	sub := api.SubSystem
	method := sub.Method()
	return restdata.Audio{
		Running:       sub.Running(),
		Method:        method.Name,
		Device:        method.Device,
		SamplingRate:  sub.SamplingRate(),
		Channels:      sub.Channels(),
		Bits:          sub.Bits(),
		FragmentSize:  sub.FragmentSize(),
		FragmentCount: sub.FragmentCount(),
		FullDuplex:    sub.FullDuplex(),
		Buffered:      sub.Buffered(),
		Underruns:     sub.Underruns(),
		Overruns:      sub.Overruns(),
		Error:         sub.Error(),
	}, nil
}

// JobList reports the sound server's jobs.
func (api *restAPI) JobList(ctx *context) (interface{}, error) {
	server := api.SoundServer
	resp := restdata.JobList{
		Jobs:                []restdata.Job{},
		ServerBufferTime:    server.ServerBufferTime(),
		MinStreamBufferTime: server.MinStreamBufferTime(),
		CPUUsage:            server.Watchdog().Usage(),
	}
	for _, info := range server.Jobs() {
		resp.Jobs = append(resp.Jobs, restdata.Job{
			ID:         info.ID,
			UID:        info.UID,
			Kind:       info.Kind,
			Name:       info.Name,
			Connection: info.Connection,
			Started:    info.Started,
			Buffered:   info.Buffered,
		})
	}
	return resp, nil
}
