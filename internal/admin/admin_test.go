package admin

import (
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

type fakeLister struct {
	sessions []SessionInfo
}

func (f *fakeLister) Sessions() []SessionInfo { return f.sessions }

func newTestServer(t *testing.T, lister SessionLister) (*Server, *fasthttputil.InmemoryListener) {
	t.Helper()
	s := New("127.0.0.1:0", lister)
	ln := fasthttputil.NewInmemoryListener()
	go func() {
		_ = s.fasthttp.Serve(ln)
	}()
	t.Cleanup(func() {
		_ = s.Shutdown()
	})
	return s, ln
}

func doGet(t *testing.T, ln *fasthttputil.InmemoryListener, path string) (*fasthttp.Response, error) {
	t.Helper()
	client := &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) {
			return ln.Dial()
		},
	}
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI("http://relay-admin" + path)

	resp := fasthttp.AcquireResponse()
	err := client.Do(req, resp)
	return resp, err
}

func TestHealthzReturnsOK(t *testing.T) {
	_, ln := newTestServer(t, &fakeLister{})

	resp, err := doGet(t, ln, "/healthz")
	require.NoError(t, err)
	assert.Equal(t, fasthttp.StatusOK, resp.StatusCode())
	assert.Equal(t, "ok", string(resp.Body()))
}

func TestSessionsReturnsJSONSnapshot(t *testing.T) {
	lister := &fakeLister{sessions: []SessionInfo{
		{Name: "Steve", UUID: "11111111-1111-1111-1111-111111111111", Upstream: "lobby", ProtocolVersion: 765},
	}}
	_, ln := newTestServer(t, lister)

	resp, err := doGet(t, ln, "/sessions")
	require.NoError(t, err)
	assert.Equal(t, fasthttp.StatusOK, resp.StatusCode())

	var got []SessionInfo
	require.NoError(t, json.Unmarshal(resp.Body(), &got))
	assert.Equal(t, lister.sessions, got)
}

func TestUnknownPathReturns404(t *testing.T) {
	_, ln := newTestServer(t, &fakeLister{})

	resp, err := doGet(t, ln, "/nope")
	require.NoError(t, err)
	assert.Equal(t, fasthttp.StatusNotFound, resp.StatusCode())
}
