// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package restclient reads the HTTP status service of a running
// sound server, as served by the "restserver" package.
//
// The server in github.com/diffeo/go-arts/cmd/artsd runs it when
// started with --http.  Call New() with the base URL of that
// service; for instance,
//
//     client, err := restclient.New("http://localhost:5980/")
//     if err != nil {
//         return err
//     }
//     jobs, err := client.Jobs()
//
// GlobalComm adapts the same service to the mcop.GlobalComm naming
// interface, so a process on another host can find the sound server.
package restclient

import (
	"bytes"
	"errors"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"

	"github.com/diffeo/go-arts/restdata"
	"github.com/jtacoma/uritemplates"
)

// ErrNotServed is returned when the server does not provide a
// resource, for instance the audio status of a process without an
// audio subsystem.
var ErrNotServed = errors.New("resource not served")

// StatusError is returned for a failed request whose response body
// is not a restdata.ErrorResponse.
type StatusError struct {
	// Status is the HTTP status line, such as "502 Bad Gateway".
	Status string

	// Code is the numeric HTTP status.
	Code int

	// Body holds the response body, presumed to be text.
	Body string
}

func (e StatusError) Error() string {
	return e.Status
}

// Client is a connection to one status service.
type Client struct {
	// Root is the root document, fetched by New and Refresh.
	Root restdata.RootData

	base *url.URL
	http *http.Client
}

// New creates a client rooted at baseURL and fetches the root
// document.
func New(baseURL string) (*Client, error) {
	return NewWithHTTPClient(baseURL, nil)
}

// NewWithHTTPClient is New with a specific HTTP client, which may
// carry timeouts or a transport of its own.
func NewWithHTTPClient(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{base: u, http: httpClient}
	if err := c.Refresh(); err != nil {
		return nil, err
	}
	return c, nil
}

// Refresh fetches the root document again.
func (c *Client) Refresh() error {
	return c.do("GET", c.base, nil, &c.Root)
}

// expand fills in a URI template from the root document, encoding
// string values that are not URL-safe, and resolves the result
// against the base URL.
func (c *Client) expand(template string, vars map[string]interface{}) (*url.URL, error) {
	tmpl, err := uritemplates.Parse(template)
	if err != nil {
		return nil, err
	}
	values := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		if s, ok := v.(string); ok {
			v = restdata.MaybeEncodeName(s)
		}
		values[k] = v
	}
	expanded, err := tmpl.Expand(values)
	if err != nil {
		return nil, err
	}
	return c.base.Parse(expanded)
}

// call expands template with vars and sends one request to it.
func (c *Client) call(method, template string, vars map[string]interface{}, in, out interface{}) error {
	u, err := c.expand(template, vars)
	if err != nil {
		return err
	}
	return c.do(method, u, in, out)
}

// do sends in, if not nil, as the JSON body of a request to u, and
// decodes a successful response into out, if not nil.
func (c *Client) do(method string, u *url.URL, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := restdata.Encode(&buf, in); err != nil {
			return err
		}
		body = &buf
	}
	req, err := http.NewRequest(method, u.String(), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", restdata.V1JSONMediaType)
	}
	if out != nil {
		req.Header.Set("Accept", restdata.V1JSONMediaType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return responseError(resp)
	}
	if out == nil {
		return nil
	}
	return restdata.Decode(resp.Header.Get("Content-Type"), resp.Body, out)
}

// responseError turns a failed response into the server's error if
// the body is an ErrorResponse, or a StatusError if not.
func responseError(resp *http.Response) error {
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var er restdata.ErrorResponse
	if restdata.Decode(resp.Header.Get("Content-Type"), bytes.NewReader(body), &er) == nil {
		return er.ToError()
	}
	return StatusError{Status: resp.Status, Code: resp.StatusCode, Body: string(body)}
}

// ServerID returns the MCOP server ID of the remote process.
func (c *Client) ServerID() string {
	return c.Root.ServerID
}

// Objects lists the live objects.
func (c *Client) Objects() ([]restdata.ObjectShort, error) {
	var list restdata.ObjectList
	err := c.call("GET", c.Root.ObjectsURL, nil, nil, &list)
	return list.Objects, err
}

// Object describes one object.
func (c *Client) Object(id int32) (restdata.Object, error) {
	var obj restdata.Object
	err := c.call("GET", c.Root.ObjectURL, map[string]interface{}{
		"id": strconv.Itoa(int(id)),
	}, nil, &obj)
	return obj, err
}

// Connections lists the open connections.
func (c *Client) Connections() ([]restdata.Connection, error) {
	var list restdata.ConnectionList
	err := c.call("GET", c.Root.ConnectionsURL, nil, nil, &list)
	return list.Connections, err
}

// Globals lists the names the remote process published.
func (c *Client) Globals() ([]restdata.Global, error) {
	var list restdata.GlobalList
	err := c.call("GET", c.Root.GlobalsURL, nil, nil, &list)
	return list.Globals, err
}

func nameVars(name string) map[string]interface{} {
	return map[string]interface{}{"name": name}
}

// Global looks up a name in the remote naming service.  A missing
// name returns restdata.ErrNoSuchGlobal.
func (c *Client) Global(name string) (restdata.Global, error) {
	var g restdata.Global
	err := c.call("GET", c.Root.GlobalURL, nameVars(name), nil, &g)
	return g, err
}

// PutGlobal stores a name in the remote naming service.  A name
// that is already set returns restdata.ErrGlobalTaken.
func (c *Client) PutGlobal(name, value string) error {
	in := restdata.Global{Name: name, Value: value}
	var out restdata.Global
	return c.call("PUT", c.Root.GlobalURL, nameVars(name), in, &out)
}

// EraseGlobal removes a name from the remote naming service.
func (c *Client) EraseGlobal(name string) error {
	return c.call("DELETE", c.Root.GlobalURL, nameVars(name), nil, nil)
}

// Audio returns the audio subsystem status.
func (c *Client) Audio() (restdata.Audio, error) {
	var a restdata.Audio
	if c.Root.AudioURL == "" {
		return a, ErrNotServed
	}
	err := c.call("GET", c.Root.AudioURL, nil, nil, &a)
	return a, err
}

// Jobs returns the sound server's jobs.
func (c *Client) Jobs() (restdata.JobList, error) {
	var list restdata.JobList
	if c.Root.JobsURL == "" {
		return list, ErrNotServed
	}
	err := c.call("GET", c.Root.JobsURL, nil, nil, &list)
	return list, err
}
