package hub

import (
	"context"
	"crypto/rand"
	"math/big"
	mrand "math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/storyparty/story-party-backend/internal/room"
	"github.com/storyparty/story-party-backend/internal/story"
)

// Room codes avoid visually ambiguous characters (no 0/O, 1/I/L).
const codeChars = "ABCDEFGHJKMNPQRSTUVWXYZ"

const codeLength = 4

type HubMsg interface{ isHubMsg() }

// CreateRoom opens a fresh room under a collision-free code.
type CreateRoom struct {
	Reply chan *room.Room
}

type GetRoom struct {
	Code  string
	Reply chan *room.Room
}

type RemoveRoom struct {
	Code string
}

type ShutdownHub struct{}

func (CreateRoom) isHubMsg()  {}
func (GetRoom) isHubMsg()     {}
func (RemoveRoom) isHubMsg()  {}
func (ShutdownHub) isHubMsg() {}

// Hub owns the set of live rooms, keyed by room code. Like each room it is an
// actor: code generation, lookup and removal all run on one loop, so the
// collision check and the insert cannot race.
type Hub struct {
	inbox   chan HubMsg
	rooms   map[string]*room.Room
	stories *story.Registry
	cfg     room.Config
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, stories *story.Registry, cfg room.Config, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		rooms:   make(map[string]*room.Room),
		stories: stories,
		cfg:     cfg,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateRoom:
				code, err := h.freeCode()
				if err != nil {
					h.log.Error("room code generation failed", zap.Error(err))
					msg.Reply <- nil
					break
				}
				rng := mrand.New(mrand.NewSource(time.Now().UnixNano()))
				rm := room.New(h.ctx, code, h.stories, h.cfg, rng, h.log, h.releaseCode)
				h.rooms[code] = rm
				h.log.Info("room created", zap.String("room", code))
				msg.Reply <- rm

			case GetRoom:
				msg.Reply <- h.rooms[msg.Code] // may be nil

			case RemoveRoom:
				delete(h.rooms, msg.Code)

			case ShutdownHub:
				for _, rm := range h.rooms {
					rm.Send(room.Shutdown{})
				}
				clear(h.rooms)
				h.cancel()
			}
		}
	}
}

// releaseCode is handed to each room; a disposed room returns its code here.
func (h *Hub) releaseCode(code string) {
	select {
	case h.inbox <- RemoveRoom{Code: code}:
	case <-h.ctx.Done():
	}
}

// freeCode draws codes until one misses the live-room map. With 23^4
// possible codes and a handful of live rooms this terminates immediately.
func (h *Hub) freeCode() (string, error) {
	for {
		code, err := generateCode()
		if err != nil {
			return "", err
		}
		if _, taken := h.rooms[code]; !taken {
			return code, nil
		}
		h.log.Warn("room code collision, regenerating", zap.String("room", code))
	}
}

func generateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeChars))))
		if err != nil {
			return "", err
		}
		code[i] = codeChars[num.Int64()]
	}
	return string(code), nil
}
