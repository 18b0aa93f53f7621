package observerproto

// Version is the observer stream protocol version.
const Version = "1.0"

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeWelcome   = "WELCOME"
	TypeSeeds     = "SEEDS"
	TypeTeardown  = "TEARDOWN"
)

// Client -> Server. First message on the observer WS connection, and can be
// re-sent to update settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Instances filters by instance id or name; empty subscribes to all.
	Instances []string `json:"instances,omitempty"`
	// MaxSeeds caps the seeds carried per SEEDS message; 0 means the server
	// default.
	MaxSeeds int `json:"max_seeds,omitempty"`
}

type InstanceInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Server -> Client. Sent once after a valid SUBSCRIBE.
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	Instances       []InstanceInfo `json:"instances"`
}

// Server -> Client. One per published snapshot.
type SeedsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	Instance   string  `json:"instance"`
	Tick       uint64  `json:"tick"`
	SolverTime float64 `json:"solver_time"`

	// FirstPointID..FirstPointID+Count-1 are the snapshot's point ids.
	FirstPointID int64       `json:"first_point_id"`
	Count        int         `json:"count"`
	Truncated    bool        `json:"truncated,omitempty"`
	Seeds        []SeedState `json:"seeds"`
}

type SeedState struct {
	PointID  int64      `json:"point_id"`
	SolverID int32      `json:"solver_id"`
	Position [3]float32 `json:"position"`
	Velocity [3]float32 `json:"velocity"`
	Color    [4]float32 `json:"color"`
}

// Server -> Client. The instance publishes nothing after this.
type TeardownMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Instance        string `json:"instance"`
}
