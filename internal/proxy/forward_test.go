package proxy

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// newBackendServer starts a websocket server that simply accepts a single
// connection and hands it to the test for direct read/write assertions.
func newBackendServer(t *testing.T, connCh chan<- *websocket.Conn) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		connCh <- conn
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newProxyServer starts a server that upgrades the inbound client connection,
// dials backendURL, and relays between them — exercising Relay exactly as
// Handler.Serve does, without the registry lookup.
func newProxyServer(t *testing.T, backendURL string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backendConn, _, err := websocket.DefaultDialer.Dial(backendURL, nil)
		require.NoError(t, err)
		defer backendConn.Close()

		clientConn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer clientConn.Close()

		_ = Relay(clientConn, backendConn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestRelayForwardsTextAndBinaryBothWays(t *testing.T) {
	connCh := make(chan *websocket.Conn, 1)
	backend := newBackendServer(t, connCh)
	proxySrv := newProxyServer(t, wsURL(backend.URL))

	client, _, err := websocket.DefaultDialer.Dial(wsURL(proxySrv.URL), nil)
	require.NoError(t, err)
	defer client.Close()

	var backendConn *websocket.Conn
	select {
	case backendConn = <-connCh:
	case <-time.After(2 * time.Second):
		t.Fatal("backend never received a connection")
	}
	defer backendConn.Close()

	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, []byte("hello-binary")))
	mt, data, err := backendConn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, mt)
	require.Equal(t, []byte("hello-binary"), data)

	require.NoError(t, backendConn.WriteMessage(websocket.TextMessage, []byte("hello-text")))
	mt, data, err = client.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, mt)
	require.Equal(t, []byte("hello-text"), data)
}

func TestRelayClosesBothSidesOnPeerClose(t *testing.T) {
	connCh := make(chan *websocket.Conn, 1)
	backend := newBackendServer(t, connCh)
	proxySrv := newProxyServer(t, wsURL(backend.URL))

	client, _, err := websocket.DefaultDialer.Dial(wsURL(proxySrv.URL), nil)
	require.NoError(t, err)

	var backendConn *websocket.Conn
	select {
	case backendConn = <-connCh:
	case <-time.After(2 * time.Second):
		t.Fatal("backend never received a connection")
	}
	defer backendConn.Close()

	require.NoError(t, client.Close())

	backendConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = backendConn.ReadMessage()
	require.Error(t, err)
}
