package proxy

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// Relay runs the two forwarding directions spec.md §4.6 describes — client
// to backend and backend to client — and blocks until either side closes or
// errors. Whichever direction finishes first closes both connections so the
// other, blocked in a read, unblocks promptly; Relay then waits for both
// goroutines to exit before returning. Modeled on
// hemzaz-freightliner's errgroup coordination shape for running two
// concurrent operations and reporting the first failure.
func Relay(client, backend *websocket.Conn) error {
	var g errgroup.Group
	var closeOnce sync.Once
	closeBoth := func() {
		closeOnce.Do(func() {
			client.Close()
			backend.Close()
		})
	}

	client.SetPingHandler(func(data string) error {
		return backend.WriteMessage(websocket.PingMessage, []byte(data))
	})
	client.SetPongHandler(func(data string) error {
		return backend.WriteMessage(websocket.PongMessage, []byte(data))
	})
	backend.SetPingHandler(func(data string) error {
		return client.WriteMessage(websocket.PingMessage, []byte(data))
	})
	backend.SetPongHandler(func(data string) error {
		return client.WriteMessage(websocket.PongMessage, []byte(data))
	})

	g.Go(func() error {
		err := forward(client, backend)
		closeBoth()
		return err
	})
	g.Go(func() error {
		err := forward(backend, client)
		closeBoth()
		return err
	})

	return g.Wait()
}

// forward copies frames from src to dst until src's read fails (peer close,
// network error, or an unrecognized frame type). The proxy never inspects
// payload content — TEXT and BINARY frames are relayed byte-for-byte in
// whichever mode they arrived (spec.md §4.6: "does not parse or inspect
// payloads").
func forward(src, dst *websocket.Conn) error {
	for {
		messageType, data, err := src.ReadMessage()
		if err != nil {
			return err
		}

		switch messageType {
		case websocket.TextMessage:
			if err := dst.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
		case websocket.BinaryMessage:
			if err := dst.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return err
			}
		default:
			return fmt.Errorf("proxy: unexpected frame type %d", messageType)
		}
	}
}
