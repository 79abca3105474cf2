package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"terrastream/internal/engine"
	"terrastream/internal/protocol"
)

// Server exposes the stream loop over a websocket: HELLO/WELCOME handshake,
// then VIEWER_UPDATE inbound and CHUNK_EVENT/STREAM_STATE outbound.
type Server struct {
	loop      *engine.Loop
	params    protocol.WorldParams
	validator *protocol.Validator
	log       *log.Logger

	upgrader websocket.Upgrader

	nextViewer atomic.Int64
}

func NewServer(loop *engine.Loop, params protocol.WorldParams, logger *log.Logger) (*Server, error) {
	v, err := protocol.NewValidator()
	if err != nil {
		return nil, err
	}
	return &Server{
		loop:      loop,
		params:    params,
		validator: v,
		log:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}, nil
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		viewerID, err := s.handshake(conn)
		if err != nil {
			s.log.Printf("ws: handshake: %v", err)
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := s.loop.Subscribe()
		defer s.loop.Unsubscribe(out)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			typ, err := s.validator.Validate(msg)
			if err != nil {
				s.log.Printf("ws: %s: rejected message: %v", viewerID, err)
				continue
			}
			if typ != protocol.TypeViewerUpdate {
				continue
			}
			var u protocol.ViewerUpdateMsg
			if err := json.Unmarshal(msg, &u); err != nil {
				continue
			}
			s.loop.Submit(u)
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (string, error) {
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", err
	}
	typ, err := s.validator.Validate(msg)
	if err != nil {
		return "", err
	}
	if typ != protocol.TypeHello {
		return "", fmt.Errorf("expected %s, got %s", protocol.TypeHello, typ)
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", err
	}

	viewerID := fmt.Sprintf("V%d_%s", s.nextViewer.Add(1), sanitize(hello.ViewerName))

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		ViewerID:        viewerID,
		WorldParams:     s.params,
	}
	b, _ := json.Marshal(welcome)
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return "", err
	}
	return viewerID, nil
}

func sanitize(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return -1
	}, name)
	if name == "" {
		name = "viewer"
	}
	if len(name) > 32 {
		name = name[:32]
	}
	return name
}
