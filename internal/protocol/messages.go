package protocol

// HELLO (viewer -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ViewerName      string `json:"viewer_name"`
}

// WELCOME (server -> viewer)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	ViewerID        string      `json:"viewer_id"`
	WorldParams     WorldParams `json:"world_params"`
}

type WorldParams struct {
	TickRateHz   int   `json:"tick_rate_hz"`
	TileSize     int   `json:"tile_size"`
	ActiveRadius int   `json:"active_radius"`
	BufferRadius int   `json:"buffer_radius"`
	Seed         int64 `json:"seed"`
}

// VIEWER_UPDATE (viewer -> server): world position plus an optional scale on
// the active radius (0 means unscaled).
type ViewerUpdateMsg struct {
	Type             string  `json:"type"`
	X                float64 `json:"x"`
	Z                float64 `json:"z"`
	RadiusMultiplier float64 `json:"radius_multiplier,omitempty"`
}

// CHUNK_EVENT (server -> viewer): per-tick batch of tile transitions, keys
// in "cx:cz" form.
type ChunkEventMsg struct {
	Type     string   `json:"type"`
	Tick     uint64   `json:"tick"`
	Attached []string `json:"attached,omitempty"`
	Detached []string `json:"detached,omitempty"`
	Disposed []string `json:"disposed,omitempty"`
}

// STREAM_STATE (server -> viewer): generation queue observability.
type StreamStateMsg struct {
	Type    string `json:"type"`
	Tick    uint64 `json:"tick"`
	Status  string `json:"status"` // "complete" | "stalled"
	Dropped int    `json:"dropped,omitempty"`
}

const (
	StatusComplete = "complete"
	StatusStalled  = "stalled"
)
