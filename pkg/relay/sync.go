// Package relay serves scene documents over HTTP and keeps them in sync with
// clients over websockets.
package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Peer is one side of a document sync session.
type Peer interface {
	GenerateMessage() ([]byte, bool)
	ReceiveMessage(raw []byte) error
}

const resyncInterval = time.Second

func readAndReceiveMessage(conn *websocket.Conn, peer Peer) error {
	mt, p, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read message: %w", err)
	}
	switch mt {
	case websocket.BinaryMessage:
		if err := peer.ReceiveMessage(p); err != nil {
			return err
		}
	default:
	}
	return nil
}

// flush writes messages until the peer has nothing more to say.
func flush(conn *websocket.Conn, peer Peer) error {
	for {
		msg, ok := peer.GenerateMessage()
		if !ok {
			return nil
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			return fmt.Errorf("failed to write message: %w", err)
		}
	}
}

// Sync exchanges sync messages over conn until the context is cancelled or
// the connection drops, and closes conn. Replies are sent as soon as a message
// arrives and the peer is polled every second for local changes. Only write
// failures are returned.
func Sync(ctx context.Context, conn *websocket.Conn, peer Peer) error {
	received := make(chan struct{}, 1)
	readerDone := make(chan struct{})
	var readErr, writeErr error

	wg := new(sync.WaitGroup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(readerDone)
		defer conn.Close()
		for {
			if err := readAndReceiveMessage(conn, peer); err != nil {
				readErr = err
				return
			}
			select {
			case received <- struct{}{}:
			default:
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer conn.Close()
		if writeErr = flush(conn, peer); writeErr != nil {
			return
		}
		t := time.NewTicker(resyncInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
			case <-received:
			case <-readerDone:
				return
			case <-ctx.Done():
				return
			}
			if writeErr = flush(conn, peer); writeErr != nil {
				return
			}
		}
	}()

	wg.Wait()
	if readErr != nil && ctx.Err() == nil {
		slog.Debug("sync session ended", "err", readErr)
	}
	if ctx.Err() != nil {
		return nil
	}
	return writeErr
}
