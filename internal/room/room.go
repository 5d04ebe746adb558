package room

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/storyparty/story-party-backend/internal/story"
	"github.com/storyparty/story-party-backend/internal/tally"
)

var (
	ErrRoomFull      = errors.New("room is full")
	ErrSessionActive = errors.New("session already connected")
)

const defaultAvatar = "🕵️"

type Config struct {
	VoteSeconds    int
	TickInterval   time.Duration
	IntroDelay     time.Duration
	ResultDelay    time.Duration
	ReconnectGrace time.Duration
	MaxPlayers     int
}

func DefaultConfig() Config {
	return Config{
		VoteSeconds:    12,
		TickInterval:   time.Second,
		IntroDelay:     3 * time.Second,
		ResultDelay:    4 * time.Second,
		ReconnectGrace: 60 * time.Second,
		MaxPlayers:     16,
	}
}

// Room is the authoritative controller for one game. It owns its State and
// runs a single loop goroutine; every mutation happens inside that loop, and
// each mutation is followed by a versioned snapshot broadcast.
type Room struct {
	code    string
	cfg     Config
	log     *zap.Logger
	rng     *rand.Rand
	stories *story.Registry

	ctx     context.Context
	cancel  context.CancelFunc
	inbox   chan Msg
	onEmpty func(code string)

	state     State
	version   int
	joinOrder []string // session ids, earliest first; VIP succession order
	clients   map[string]chan Outbound
	hosts     map[string]bool

	graph     *story.Graph
	ballots   map[string]string // session -> choice id, secret until reveal
	voteOrder []string          // sessions in the order their ballots landed

	timerGen     uint64
	pending      *time.Timer
	graceTimers  map[string]*time.Timer
	reconnectGen map[string]uint64
}

func New(parent context.Context, code string, stories *story.Registry, cfg Config, rng *rand.Rand, log *zap.Logger, onEmpty func(code string)) *Room {
	ctx, cancel := context.WithCancel(parent)

	r := &Room{
		code:    code,
		cfg:     cfg,
		log:     log.With(zap.String("room", code)),
		rng:     rng,
		stories: stories,
		ctx:     ctx,
		cancel:  cancel,
		inbox:   make(chan Msg, 64),
		onEmpty: onEmpty,
		state: State{
			RoomCode: code,
			Phase:    PhaseLobby,
			Players:  make(map[string]Player),
		},
		clients:      make(map[string]chan Outbound),
		hosts:        make(map[string]bool),
		ballots:      make(map[string]string),
		graceTimers:  make(map[string]*time.Timer),
		reconnectGen: make(map[string]uint64),
	}

	// A room nobody ever connects to still gets reaped.
	time.AfterFunc(cfg.ReconnectGrace, func() { r.post(idleCheck{}) })

	go r.loop()
	return r
}

type idleCheck struct{}

func (idleCheck) isRoomMsg() {}

func (r *Room) Code() string { return r.code }

// Done is closed once the room has been disposed or shut down.
func (r *Room) Done() <-chan struct{} { return r.ctx.Done() }

// Send delivers a message to the room loop, or reports false if the room is
// already gone. Timer callbacks and transport goroutines both go through
// this so nothing blocks against a dead room.
func (r *Room) Send(m Msg) bool { return r.post(m) }

func (r *Room) post(m Msg) bool {
	select {
	case r.inbox <- m:
		return true
	case <-r.ctx.Done():
		return false
	}
}

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				r.handleJoin(msg)
			case Leave:
				r.handleLeave(msg)
			case Intent:
				r.handleIntent(msg)
			case advanceTimer:
				if msg.gen == r.timerGen {
					r.goToNode(msg.nodeID)
				}
			case voteTick:
				r.handleVoteTick(msg)
			case reconnectExpired:
				r.handleReconnectExpired(msg)
			case idleCheck:
				r.maybeDispose()
			case GetState:
				msg.Reply <- View{Version: r.version, NumClients: len(r.clients), State: r.cloneState()}
			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

// ----- membership -----

func (r *Room) handleJoin(m Join) {
	if m.IsHost {
		r.clients[m.SessionID] = m.Outbox
		r.hosts[m.SessionID] = true
		m.Reply <- nil
		m.Outbox <- Outbound{Snapshot: &Snapshot{Version: r.version, State: r.cloneState()}}
		r.log.Info("host display connected")
		return
	}

	if p, ok := r.state.Players[m.SessionID]; ok {
		// Session reclaiming its seat within the grace window. A second
		// connection presenting a live session's handle is refused rather
		// than allowed to steal the seat's outbox.
		if p.IsConnected {
			m.Reply <- ErrSessionActive
			return
		}
		p.IsConnected = true
		r.state.Players[m.SessionID] = p
		r.reconnectGen[m.SessionID]++
		if t := r.graceTimers[m.SessionID]; t != nil {
			t.Stop()
			delete(r.graceTimers, m.SessionID)
		}
		r.clients[m.SessionID] = m.Outbox
		m.Reply <- nil
		m.Outbox <- Outbound{Stories: r.stories.List()}
		r.log.Info("player reconnected", zap.String("name", p.Name))
		r.broadcast()
		return
	}

	if len(r.state.Players) >= r.cfg.MaxPlayers {
		m.Reply <- ErrRoomFull
		return
	}

	name := m.Name
	if name == "" {
		name = fmt.Sprintf("Player %d", r.state.PlayerCount+1)
	}
	avatar := m.Avatar
	if avatar == "" {
		avatar = defaultAvatar
	}

	p := Player{
		SessionID:   m.SessionID,
		Name:        name,
		Avatar:      avatar,
		IsVIP:       r.state.PlayerCount == 0, // first player in gets VIP
		IsConnected: true,
	}
	r.state.Players[m.SessionID] = p
	r.state.PlayerCount++
	r.joinOrder = append(r.joinOrder, m.SessionID)
	r.clients[m.SessionID] = m.Outbox
	m.Reply <- nil
	m.Outbox <- Outbound{Stories: r.stories.List()}
	r.log.Info("player joined", zap.String("name", name), zap.Int("players", r.state.PlayerCount))
	r.broadcast()
}

func (r *Room) handleLeave(m Leave) {
	delete(r.clients, m.SessionID)

	if r.hosts[m.SessionID] {
		delete(r.hosts, m.SessionID)
		r.log.Info("host display disconnected")
		r.maybeDispose()
		return
	}

	p, ok := r.state.Players[m.SessionID]
	if !ok {
		r.maybeDispose()
		return
	}

	if m.Voluntary {
		r.removePlayer(m.SessionID)
		return
	}

	p.IsConnected = false
	r.state.Players[m.SessionID] = p
	r.reconnectGen[m.SessionID]++
	gen := r.reconnectGen[m.SessionID]
	sid := m.SessionID
	r.graceTimers[sid] = time.AfterFunc(r.cfg.ReconnectGrace, func() {
		r.post(reconnectExpired{sessionID: sid, gen: gen})
	})
	r.log.Info("player disconnected, holding seat", zap.String("name", p.Name))
	r.broadcast()
	r.maybeResolveEarly()
}

func (r *Room) handleReconnectExpired(m reconnectExpired) {
	if r.reconnectGen[m.sessionID] != m.gen {
		return
	}
	if p, ok := r.state.Players[m.sessionID]; ok && !p.IsConnected {
		r.removePlayer(m.sessionID)
	}
}

func (r *Room) removePlayer(sid string) {
	p, ok := r.state.Players[sid]
	if !ok {
		return
	}
	delete(r.state.Players, sid)
	r.state.PlayerCount--
	r.joinOrder = slices.DeleteFunc(r.joinOrder, func(s string) bool { return s == sid })
	if i := slices.Index(r.voteOrder, sid); i >= 0 {
		r.voteOrder = slices.Delete(r.voteOrder, i, i+1)
	}
	delete(r.ballots, sid)
	delete(r.reconnectGen, sid)
	if t := r.graceTimers[sid]; t != nil {
		t.Stop()
		delete(r.graceTimers, sid)
	}

	// VIP passes to the earliest-joined survivor.
	if p.IsVIP && len(r.joinOrder) > 0 {
		heir := r.state.Players[r.joinOrder[0]]
		heir.IsVIP = true
		r.state.Players[r.joinOrder[0]] = heir
		r.log.Info("vip transferred", zap.String("name", heir.Name))
	}

	r.log.Info("player removed", zap.String("name", p.Name), zap.Int("players", r.state.PlayerCount))
	r.broadcast()
	r.maybeResolveEarly()
	r.maybeDispose()
}

// ----- intents -----

func (r *Room) handleIntent(m Intent) {
	switch m.Kind {
	case IntentStartGame:
		r.handleStartGame(m)
	case IntentVote:
		r.handleVote(m)
	case IntentAdvance:
		r.handleAdvance(m)
	case IntentRestart:
		r.handleRestart(m)
	}
}

func (r *Room) handleStartGame(m Intent) {
	p, ok := r.state.Players[m.SessionID]
	if !ok || !p.IsVIP {
		r.sendTo(m.SessionID, Outbound{Error: "Only the VIP can start the game"})
		return
	}
	if r.connectedCount() < 1 {
		r.sendTo(m.SessionID, Outbound{Error: "Need at least 1 player to start"})
		return
	}
	g := r.stories.Get(m.StoryID)
	if g == nil {
		r.sendTo(m.SessionID, Outbound{Error: "Story not found"})
		return
	}

	r.graph = g
	r.state.StoryID = g.ID
	r.state.StoryTitle = g.Title
	r.state.StoryGenre = g.Genre
	r.state.TotalDecisions = story.CountDecisionNodes(g)
	r.state.DecisionsMade = 0
	r.state.PathHistory = nil

	r.log.Info("starting story", zap.String("story", g.Title))

	r.bumpGen()
	r.state.Phase = PhaseIntro
	r.scheduleAdvance(r.cfg.IntroDelay, g.StartNodeID)
	r.broadcast()
}

func (r *Room) handleVote(m Intent) {
	if r.state.Phase != PhaseVoting {
		return
	}
	p, ok := r.state.Players[m.SessionID]
	if !ok || p.HasVoted {
		return
	}
	idx := slices.IndexFunc(r.state.Choices, func(c story.Choice) bool { return c.ID == m.ChoiceID })
	if idx < 0 {
		return
	}

	r.ballots[m.SessionID] = m.ChoiceID
	r.voteOrder = append(r.voteOrder, m.SessionID)
	p.HasVoted = true
	r.state.Players[m.SessionID] = p

	r.log.Info("vote recorded", zap.String("name", p.Name), zap.String("choice", r.state.Choices[idx].Label))
	r.broadcast()
	r.maybeResolveEarly()
}

func (r *Room) handleAdvance(m Intent) {
	p, ok := r.state.Players[m.SessionID]
	if !ok || !p.IsVIP {
		return
	}
	if r.state.Phase != PhaseNarrative {
		return
	}
	if len(r.state.Choices) > 0 {
		r.startVoting()
		return
	}
	// Non-ending nodes are expected to carry choices; degrade rather than
	// leave the room stuck.
	r.log.Warn("narrative node has no choices, returning to lobby", zap.String("node", r.state.CurrentNodeID))
	r.bumpGen()
	r.state.Phase = PhaseLobby
	r.broadcast()
}

func (r *Room) handleRestart(m Intent) {
	p, ok := r.state.Players[m.SessionID]
	if !ok || !p.IsVIP {
		return
	}

	r.bumpGen()
	r.clearRound()
	r.state.Phase = PhaseLobby
	r.state.CurrentNodeID = ""
	r.state.CurrentNarration = ""
	r.state.CurrentTitle = ""
	r.state.CurrentImageURL = ""
	r.state.VoteTimer = 0
	r.state.DecisionsMade = 0
	r.state.PathHistory = nil
	// bound story and roster stay

	r.log.Info("room restarted")
	r.broadcast()
}

// ----- state machine -----

func (r *Room) startVoting() {
	r.bumpGen()
	r.state.Phase = PhaseVoting
	r.state.VoteTimer = r.cfg.VoteSeconds
	r.state.DecisionsMade++
	r.log.Info("voting started",
		zap.Int("choices", len(r.state.Choices)),
		zap.Int("seconds", r.cfg.VoteSeconds),
	)
	r.scheduleTick()
	r.broadcast()
}

func (r *Room) handleVoteTick(m voteTick) {
	if m.gen != r.timerGen || r.state.Phase != PhaseVoting {
		return
	}
	r.state.VoteTimer--
	if r.state.VoteTimer <= 0 {
		r.resolveVote()
		return
	}
	r.scheduleTick()
	r.broadcast()
}

// maybeResolveEarly closes the vote as soon as every connected player has
// voted. Re-checked whenever the connected set shrinks, since that changes
// the denominator.
func (r *Room) maybeResolveEarly() {
	if r.state.Phase != PhaseVoting {
		return
	}
	connected := 0
	for _, p := range r.state.Players {
		if p.IsConnected {
			connected++
			if !p.HasVoted {
				return
			}
		}
	}
	if connected == 0 {
		// Everyone dropped mid-vote; seats may still be reclaimed, so let
		// the countdown decide.
		return
	}
	r.resolveVote()
}

func (r *Room) resolveVote() {
	r.bumpGen()

	ballots := make([]tally.Ballot, 0, len(r.voteOrder))
	for _, sid := range r.voteOrder {
		p, ok := r.state.Players[sid]
		if !ok {
			continue
		}
		ballots = append(ballots, tally.Ballot{Voter: p.Name, ChoiceID: r.ballots[sid]})
	}
	var nonVoters []string
	for _, sid := range r.joinOrder {
		p := r.state.Players[sid]
		if p.IsConnected && !p.HasVoted {
			nonVoters = append(nonVoters, p.Name)
		}
	}

	results, winner := tally.Resolve(r.state.Choices, ballots, nonVoters, r.rng)
	r.state.VoteResults = results
	r.state.WinningChoiceID = winner
	r.state.Phase = PhaseVoteResult
	r.log.Info("vote resolved", zap.String("winner", winner))

	if i := slices.IndexFunc(r.state.Choices, func(c story.Choice) bool { return c.ID == winner }); i >= 0 {
		r.scheduleAdvance(r.cfg.ResultDelay, r.state.Choices[i].NextNodeID)
	}
	// The ballot window is over; only the results are broadcast from here on.
	r.state.Choices = nil
	r.broadcast()
}

// goToNode dispatches the room to a story node: ending nodes finish the
// playthrough, anything else shows narration with its choices staged for the
// VIP's advance.
func (r *Room) goToNode(nodeID string) {
	r.bumpGen()
	if r.graph == nil {
		return
	}

	node, err := r.graph.Node(nodeID)
	if err != nil {
		// Corrupt content. Degrade to lobby instead of wedging the room.
		r.log.Error("story node missing, degrading to lobby", zap.String("node", nodeID), zap.Error(err))
		r.clearRound()
		r.state.Phase = PhaseLobby
		r.broadcast()
		return
	}

	r.clearRound()
	r.state.CurrentNodeID = node.ID
	r.state.CurrentNarration = node.Narration
	r.state.CurrentTitle = node.Title
	r.state.CurrentImageURL = node.ImageURL
	r.state.PathHistory = append(r.state.PathHistory, node.ID)

	if node.IsEnding() {
		r.state.Phase = PhaseEnding
		r.state.EndingType = node.EndingType
		if r.state.EndingType == "" {
			r.state.EndingType = "neutral"
		}
		r.state.EndingTitle = node.EndingTitle
		if r.state.EndingTitle == "" {
			r.state.EndingTitle = "The End"
		}
		r.log.Info("ending reached",
			zap.String("title", r.state.EndingTitle),
			zap.String("type", r.state.EndingType),
		)
	} else {
		r.state.Phase = PhaseNarrative
		r.state.Choices = slices.Clone(node.Choices)
	}
	r.broadcast()
}

// clearRound wipes everything scoped to a single voting window.
func (r *Room) clearRound() {
	r.state.Choices = nil
	r.state.VoteResults = nil
	r.state.WinningChoiceID = ""
	r.state.EndingType = ""
	r.state.EndingTitle = ""
	r.ballots = make(map[string]string)
	r.voteOrder = nil
	for sid, p := range r.state.Players {
		p.HasVoted = false
		r.state.Players[sid] = p
	}
}

// ----- timers -----

// bumpGen invalidates every scheduled transition; the first step of any
// transition that supersedes them.
func (r *Room) bumpGen() {
	r.timerGen++
	if r.pending != nil {
		r.pending.Stop()
		r.pending = nil
	}
}

func (r *Room) scheduleAdvance(d time.Duration, nodeID string) {
	gen := r.timerGen
	r.pending = time.AfterFunc(d, func() { r.post(advanceTimer{gen: gen, nodeID: nodeID}) })
}

func (r *Room) scheduleTick() {
	gen := r.timerGen
	r.pending = time.AfterFunc(r.cfg.TickInterval, func() { r.post(voteTick{gen: gen}) })
}

// ----- plumbing -----

func (r *Room) connectedCount() int {
	n := 0
	for _, p := range r.state.Players {
		if p.IsConnected {
			n++
		}
	}
	return n
}

func (r *Room) sendTo(sid string, out Outbound) {
	ch, ok := r.clients[sid]
	if !ok {
		return
	}
	select {
	case ch <- out:
	default:
	}
}

func (r *Room) broadcast() {
	r.version++
	snap := Snapshot{Version: r.version, State: r.cloneState()}
	for id, ch := range r.clients {
		select {
		case ch <- Outbound{Snapshot: &snap}:
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(r.clients, id)
		}
	}
}

func (r *Room) cloneState() State {
	s := r.state
	players := make(map[string]Player, len(s.Players))
	for k, v := range s.Players {
		players[k] = v
	}
	s.Players = players
	s.Choices = slices.Clone(s.Choices)
	s.PathHistory = slices.Clone(s.PathHistory)
	results := slices.Clone(s.VoteResults)
	for i := range results {
		results[i].Voters = slices.Clone(results[i].Voters)
	}
	s.VoteResults = results
	return s
}

func (r *Room) maybeDispose() {
	if len(r.clients) > 0 || len(r.state.Players) > 0 {
		return
	}
	r.bumpGen()
	for _, t := range r.graceTimers {
		t.Stop()
	}
	if r.onEmpty != nil {
		r.onEmpty(r.code)
	}
	r.log.Info("room disposed")
	r.cancel()
}

func (r *Room) shutdown() {
	r.bumpGen()
	for _, t := range r.graceTimers {
		t.Stop()
	}
	for id, ch := range r.clients {
		close(ch) // no more frames for this client
		delete(r.clients, id)
	}
	r.cancel()
}
