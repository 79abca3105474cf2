package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"terrastream/internal/protocol"
)

// A scripted viewer: connects, walks a straight line through the world and
// logs the chunk events the server streams back.
func main() {
	var (
		url   = flag.String("url", "ws://127.0.0.1:8080/v1/ws", "server websocket url")
		name  = flag.String("name", "walker", "viewer name")
		steps = flag.Int("steps", 120, "number of position updates to send")
		speed = flag.Float64("speed", 24, "world units per step")
		every = flag.Duration("every", 200*time.Millisecond, "interval between updates")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags)

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial %s: %v", *url, err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ViewerName:      *name,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send hello: %v", err)
	}
	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		logger.Fatalf("read welcome: %v", err)
	}
	logger.Printf("connected as %s (tile size %d, active radius %d)",
		welcome.ViewerID, welcome.WorldParams.TileSize, welcome.WorldParams.ActiveRadius)

	// Reader: log streamed events.
	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeChunkEvent:
				var ev protocol.ChunkEventMsg
				if json.Unmarshal(msg, &ev) == nil {
					logger.Printf("tick %d: +%d attached, -%d detached, %d disposed",
						ev.Tick, len(ev.Attached), len(ev.Detached), len(ev.Disposed))
				}
			case protocol.TypeStreamState:
				var st protocol.StreamStateMsg
				if json.Unmarshal(msg, &st) == nil {
					logger.Printf("tick %d: stream %s (dropped %d)", st.Tick, st.Status, st.Dropped)
				}
			}
		}
	}()

	x, z := 0.0, 0.0
	for i := 0; i < *steps; i++ {
		u := protocol.ViewerUpdateMsg{Type: protocol.TypeViewerUpdate, X: x, Z: z}
		if err := conn.WriteJSON(u); err != nil {
			logger.Fatalf("send update: %v", err)
		}
		x += *speed
		time.Sleep(*every)
	}
	logger.Printf("walked %d steps to (%.0f, %.0f)", *steps, x, z)
}
