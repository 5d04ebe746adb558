package room

// Every intent and timer callback for a room flows through its inbox, so
// handlers for one room never interleave and State needs no locks.
type Msg interface{ isRoomMsg() }

// Join attaches a connection. Host displays (IsHost) observe state without
// creating a Player; a session id matching a disconnected player reclaims
// that player's seat within the grace window.
type Join struct {
	SessionID string
	Name      string
	Avatar    string
	IsHost    bool
	Outbox    chan Outbound
	Reply     chan error
}

func (Join) isRoomMsg() {}

// Leave detaches a connection. Voluntary leaves remove the player
// immediately; involuntary ones open the reconnection grace window.
type Leave struct {
	SessionID string
	Voluntary bool
}

func (Leave) isRoomMsg() {}

type IntentKind string

const (
	IntentStartGame IntentKind = "start_game"
	IntentVote      IntentKind = "vote"
	IntentAdvance   IntentKind = "advance"
	IntentRestart   IntentKind = "restart"
)

type Intent struct {
	SessionID string
	Kind      IntentKind
	StoryID   string
	ChoiceID  string
}

func (Intent) isRoomMsg() {}

type Shutdown struct{}

func (Shutdown) isRoomMsg() {}

// GetState reflects internal state without data races; test-only probe.
type GetState struct {
	Reply chan View
}

func (GetState) isRoomMsg() {}

type View struct {
	Version    int
	NumClients int
	State      State
}

// Timer callbacks post themselves back into the inbox stamped with the
// generation current when they were scheduled; any later transition bumps the
// generation, so a stale callback is discarded instead of firing against a
// newer phase.

type advanceTimer struct {
	gen    uint64
	nodeID string
}

func (advanceTimer) isRoomMsg() {}

type voteTick struct {
	gen uint64
}

func (voteTick) isRoomMsg() {}

type reconnectExpired struct {
	sessionID string
	gen       uint64
}

func (reconnectExpired) isRoomMsg() {}
