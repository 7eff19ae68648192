// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package soundserver implements the SimpleSoundServer object, which
// plays WAV files and client-fed PCM streams through an
// audio.SubSystem.
//
// Every piece of sound the server is producing is a job.  Jobs are
// mixed together one fragment at a time by a Mixer, the subsystem's
// producer.  A job created by a remote client belongs to that client's
// connection and ends when the connection does.
package soundserver

import "github.com/diffeo/go-arts/mcop"

// InterfaceName is the MCOP interface the server implements.
const InterfaceName = "SimpleSoundServer"

// GlobalName is the global reference name the server is published
// under.
const GlobalName = "Arts_SimpleSoundServer"

// Schema defines the SimpleSoundServer interface.  Times are in
// milliseconds.
const Schema = `
- name: SimpleSoundServer
  methods:
    - name: play
      type: long
      signature: [string filename]
    - name: stop
      type: boolean
      signature: [long id]
    - name: attach
      type: long
      signature:
        - long samplingRate
        - long channels
        - long bits
        - string name
    - name: write
      type: long
      signature: [long id, "*byte data"]
    - name: detach
      signature: [long id]
    - name: jobs
      type: "*long"
  attributes:
    - {name: serverBufferTime, type: float, readonly: true}
    - {name: minStreamBufferTime, type: float, readonly: true}
    - {name: samplingRate, type: long, readonly: true}
`

func twoway(name, typ string, params ...mcop.ParamDef) mcop.MethodDef {
	return mcop.MethodDef{Name: name, Type: typ, Flags: mcop.MethodTwoway, Signature: params}
}

func param(typ, name string) mcop.ParamDef {
	return mcop.ParamDef{Type: typ, Name: name}
}

// Method definitions used by Client.
var (
	playMethod   = twoway("play", "long", param("string", "filename"))
	stopMethod   = twoway("stop", "boolean", param("long", "id"))
	attachMethod = twoway("attach", "long",
		param("long", "samplingRate"), param("long", "channels"),
		param("long", "bits"), param("string", "name"))
	writeMethod  = twoway("write", "long", param("long", "id"), param("*byte", "data"))
	detachMethod = twoway("detach", "void", param("long", "id"))
	jobsMethod   = twoway("jobs", "*long")

	serverBufferTimeMethod    = twoway("_get_serverBufferTime", "float")
	minStreamBufferTimeMethod = twoway("_get_minStreamBufferTime", "float")
	samplingRateMethod        = twoway("_get_samplingRate", "long")
)
