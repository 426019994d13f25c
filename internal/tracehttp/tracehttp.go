// Copyright 2019 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tracehttp

import (
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"regexp"
)

// authLine matches the Authorization header in a request dump.
var authLine = regexp.MustCompile(`(?mi)^(Authorization:)[^\r\n]*`)

// traceTransport is an http.RoundTripper that writes the request and
// response to out while delegating the real work to another
// http.RoundTripper.  Credentials never reach out.
type traceTransport struct {
	delegate http.RoundTripper
	out      io.Writer
}

// RoundTrip writes a dump of the request and response while delegating
// the round trip to the delegate.
func (t *traceTransport) RoundTrip(req *http.Request) (resp *http.Response, err error) {
	dump, dumpErr := httputil.DumpRequestOut(req, true)
	if dumpErr == nil {
		t.write(redact(dump))
	}
	resp, err = t.delegate.RoundTrip(req)
	if err == nil {
		dump, dumpErr = httputil.DumpResponse(resp, true)
		if dumpErr == nil {
			t.write(dump)
		}
	}
	return resp, err
}

func (t *traceTransport) write(dump []byte) {
	t.out.Write(dump)
	io.WriteString(t.out, "\n")
}

// redact blanks the value of any Authorization header in dump.
func redact(dump []byte) []byte {
	return authLine.ReplaceAll(dump, []byte("$1 REDACTED"))
}

// Wrap returns d wrapped in a transport that traces to stderr.
func Wrap(d http.RoundTripper) http.RoundTripper {
	return WrapTo(d, os.Stderr)
}

func WrapTo(d http.RoundTripper, out io.Writer) http.RoundTripper {
	return &traceTransport{delegate: d, out: out}
}

// Inject a traceTransport into http.DefaultTransport
func WrapDefaultTransport() {
	http.DefaultTransport = Wrap(http.DefaultTransport)
}
