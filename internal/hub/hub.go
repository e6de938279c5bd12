package hub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"dicebowl/internal/dispatcher"
	"dicebowl/internal/websocket"
	"dicebowl/pkg/types"
)

// Hub owns broadcast fan-out and connection lifecycle coordination. It
// implements websocket.Coordinator: the transport hands it connects,
// disconnects and decoded inbound messages; accepted room transitions come
// back in through RoomChanged, including the timer-driven settle that has
// no originating command.
//
// Fan-out is fire-and-forget: delivery runs on a single background
// goroutine, a full or dead connection is skipped silently, and no delivery
// failure ever affects a room's committed state.
type Hub struct {
	registry   *websocket.Registry
	dispatcher *dispatcher.Dispatcher

	// Buffered so a burst of transitions never blocks a room's lock.
	broadcastCh chan broadcastJob
	shutdownCh  chan struct{}

	running bool
	mu      sync.RWMutex
}

// broadcastJob is one unit of fan-out work. Jobs with a room carry that
// room's fresh snapshot; presence-only jobs refresh the admin aggregate.
type broadcastJob struct {
	roomID   string
	snapshot types.RoomSnapshot
	hasRoom  bool
}

// New creates a hub.
func New(registry *websocket.Registry, disp *dispatcher.Dispatcher) *Hub {
	return &Hub{
		registry:    registry,
		dispatcher:  disp,
		broadcastCh: make(chan broadcastJob, 256),
	}
}

// Start begins background fan-out processing. A stopped hub can be started
// again; each start gets a fresh shutdown channel.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return ErrHubAlreadyRunning
	}
	h.running = true
	h.shutdownCh = make(chan struct{})
	shutdown := h.shutdownCh
	h.mu.Unlock()

	log.Info().Msg("starting broadcast hub")
	go h.run(ctx, shutdown)
	return nil
}

// Stop shuts down fan-out processing. Queued jobs are dropped; broadcast
// delivery is best-effort by contract.
func (h *Hub) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return ErrHubNotRunning
	}
	h.running = false

	log.Info().Msg("stopping broadcast hub")
	close(h.shutdownCh)
	return nil
}

func (h *Hub) run(ctx context.Context, shutdown <-chan struct{}) {
	defer log.Info().Msg("broadcast hub stopped")
	for {
		select {
		case job := <-h.broadcastCh:
			h.deliver(job)
		case <-shutdown:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RoomChanged is installed as the room registry's change callback. Every
// accepted transition lands here exactly once, admin-driven or timer-driven,
// in the room's transition order. It is called with the room lock held, so
// it only enqueues and never blocks.
func (h *Hub) RoomChanged(roomID string, snapshot types.RoomSnapshot) {
	h.enqueue(broadcastJob{roomID: roomID, snapshot: snapshot, hasRoom: true})
}

func (h *Hub) enqueue(job broadcastJob) {
	select {
	case h.broadcastCh <- job:
	default:
		// Dropping under extreme backlog is preferable to stalling a
		// room transition; admins recover state via GET_ALL_ROOMS.
		log.Warn().Str("room", job.roomID).Msg("broadcast queue full, dropping update")
	}
}

// deliver pushes one job: the room snapshot to that room's subscribers and
// the aggregate of all rooms to every admin.
func (h *Hub) deliver(job broadcastJob) {
	if job.hasRoom {
		env, err := envelope(types.EventStateUpdate, job.snapshot)
		if err != nil {
			log.Error().Err(err).Msg("failed to encode state update")
			return
		}
		for _, conn := range h.registry.RoomSubscribers(job.roomID) {
			h.push(conn, env)
		}
	}

	admins := h.registry.Admins()
	if len(admins) == 0 {
		return
	}
	env, err := envelope(types.EventAllRoomsUpdate, h.dispatcher.AllRooms())
	if err != nil {
		log.Error().Err(err).Msg("failed to encode aggregate update")
		return
	}
	for _, conn := range admins {
		h.push(conn, env)
	}
}

// HandleConnect registers a connection, records viewer presence, and pushes
// the initial state: viewers get their room's snapshot, admins get the
// aggregate (plus their room's snapshot when they connected with one).
func (h *Hub) HandleConnect(conn *websocket.Connection) {
	if err := h.registry.Register(conn); err != nil {
		log.Error().Err(err).Msg("failed to register connection")
		_ = conn.Close()
		return
	}

	switch conn.Role() {
	case types.RoleAdmin:
		h.replyAllRooms(conn)
		if conn.RoomID() != "" {
			h.replyState(conn, h.dispatcher.RoomState(conn.RoomID()))
		}
	default:
		snap := h.dispatcher.ViewerJoined(conn.RoomID())
		h.replyState(conn, snap)
		// Presence changed: aggregate goes to admins only, not to the
		// room's other viewers.
		h.enqueue(broadcastJob{})
	}
}

// HandleDisconnect removes a connection and updates presence.
func (h *Hub) HandleDisconnect(conn *websocket.Connection) {
	h.registry.Unregister(conn)
	if conn.Role() != types.RoleAdmin {
		h.dispatcher.ViewerLeft(conn.RoomID())
		h.enqueue(broadcastJob{})
	}
}

// HandleAdminCommand applies one admin command. Rejections go back to the
// originating connection only; accepted transitions broadcast through the
// room change callback, so there is nothing more to do here for them.
func (h *Hub) HandleAdminCommand(conn *websocket.Connection, cmd types.AdminCommand) {
	res, err := h.dispatcher.Dispatch(cmd)
	if err != nil {
		h.replyCommandError(conn, cmd, err)
		return
	}
	if res.AllRooms != nil {
		h.replyAllRoomsSnapshot(conn, res.AllRooms)
	}
}

// HandleRequestState pushes a single snapshot of the connection's room
// directly to the requester, independent of the broadcast stream.
func (h *Hub) HandleRequestState(conn *websocket.Connection) {
	if conn.RoomID() == "" {
		if conn.Role() == types.RoleAdmin {
			h.replyAllRooms(conn)
		}
		return
	}
	h.replyState(conn, h.dispatcher.RoomState(conn.RoomID()))
}

func (h *Hub) replyState(conn *websocket.Connection, snap types.RoomSnapshot) {
	env, err := envelope(types.EventStateUpdate, snap)
	if err != nil {
		return
	}
	h.push(conn, env)
}

func (h *Hub) replyAllRooms(conn *websocket.Connection) {
	h.replyAllRoomsSnapshot(conn, h.dispatcher.AllRooms())
}

func (h *Hub) replyAllRoomsSnapshot(conn *websocket.Connection, all map[string]types.AdminRoomSnapshot) {
	env, err := envelope(types.EventAllRoomsUpdate, all)
	if err != nil {
		return
	}
	h.push(conn, env)
}

func (h *Hub) replyCommandError(conn *websocket.Connection, cmd types.AdminCommand, cmdErr error) {
	env, err := envelope(types.EventCommandError, types.CommandError{
		Command: cmd.Type,
		RoomID:  cmd.RoomID,
		Message: cmdErr.Error(),
	})
	if err != nil {
		return
	}
	h.push(conn, env)
}

func (h *Hub) push(conn *websocket.Connection, env types.Envelope) {
	if err := conn.WriteJSON(env); err != nil {
		log.Debug().Str("conn", conn.ID()).Err(err).Msg("dropped message")
	}
}

func envelope(event string, v interface{}) (types.Envelope, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return types.Envelope{}, err
	}
	return types.Envelope{Event: event, Data: data}, nil
}
