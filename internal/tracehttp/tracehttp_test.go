package tracehttp

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRedact(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{
			in:   "GET / HTTP/1.1\r\nAuthorization: secret\r\nHost: x\r\n\r\n",
			want: "GET / HTTP/1.1\r\nAuthorization: REDACTED\r\nHost: x\r\n\r\n",
		},
		{
			in:   "GET / HTTP/1.1\r\nauthorization: Bot secret\r\n\r\n",
			want: "GET / HTTP/1.1\r\nauthorization: REDACTED\r\n\r\n",
		},
		{
			in:   "GET / HTTP/1.1\r\nHost: x\r\n\r\n",
			want: "GET / HTTP/1.1\r\nHost: x\r\n\r\n",
		},
	}
	for _, tc := range cases {
		if got := string(redact([]byte(tc.in))); got != tc.want {
			t.Errorf("redact(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTraceTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": "1"}`)
	}))
	defer srv.Close()

	var out bytes.Buffer
	client := &http.Client{Transport: WrapTo(srv.Client().Transport, &out)}
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/users/@me", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "super-secret-token")
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do() = %v", err)
	}
	res.Body.Close()

	got := out.String()
	if strings.Contains(got, "super-secret-token") {
		t.Errorf("trace output leaked the credential:\n%s", got)
	}
	for _, want := range []string{"GET /users/@me", "Authorization: REDACTED", `{"id": "1"}`} {
		if !strings.Contains(got, want) {
			t.Errorf("trace output missing %q:\n%s", want, got)
		}
	}
}
