package chathub

import (
	"context"
	"time"

	"duochat/backend/internal/config"
	"duochat/backend/internal/models"
	"duochat/backend/internal/presence"
	"duochat/backend/internal/room"
	"duochat/backend/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Authorizer decides whether two users may message each other.
type Authorizer interface {
	AreFriends(ctx context.Context, userID, counterpartID string) (bool, error)
}

// Directory tracks conversation-room membership across server processes.
type Directory interface {
	Join(ctx context.Context, roomID, userID string) error
	Leave(ctx context.Context, roomID, userID string) error
	Joined(ctx context.Context, roomID, userID string) (bool, error)
}

// Publisher fans room emits out to the other server processes.
type Publisher interface {
	Publish(ctx context.Context, room string, ev models.Event) error
	Subscribe(ctx context.Context) <-chan storage.BridgeMessage
}

// Command is one decoded inbound event, ready for the hub loop.
// When Err is set the hub answers with an error event and does nothing else.
type Command struct {
	Client  Client
	Event   string
	Payload any
	Err     error

	disconnect bool
}

type directoryOp struct {
	join   bool
	roomID string
	userID string
}

type receiptUpgrade struct {
	connID    string
	messageID string
}

// ManagerService is the realtime session manager. The Run goroutine owns
// the client set and the room subscriber sets; everything else reaches it
// through the channels below.
type ManagerService struct {
	Presence *presence.Registry

	RegisterCh chan Client
	IncomingCh chan Command
	PubSubCh   chan storage.BridgeMessage

	authorizer Authorizer
	directory  Directory
	bridge     Publisher

	clients     map[string]Client // conn id -> client
	rooms       *Rooms
	receiptCh   chan receiptUpgrade
	publishCh   chan storage.BridgeMessage
	directoryCh chan directoryOp
	validate    *validator.Validate
	now         func() time.Time
	done        chan struct{}
}

// NewManagerService creates a hub bound to the given presence registry.
func NewManagerService(registry *presence.Registry) *ManagerService {
	m := &ManagerService{
		Presence:    registry,
		RegisterCh:  make(chan Client),
		IncomingCh:  make(chan Command, config.HubQueueSize),
		PubSubCh:    make(chan storage.BridgeMessage, config.HubQueueSize),
		clients:     make(map[string]Client),
		rooms:       NewRooms(),
		receiptCh:   make(chan receiptUpgrade, config.HubQueueSize),
		publishCh:   make(chan storage.BridgeMessage, config.BridgeQueueSize),
		directoryCh: make(chan directoryOp, config.BridgeQueueSize),
		validate:    newPayloadValidator(),
		now:         time.Now,
		done:        make(chan struct{}),
	}
	registry.Subscribe(m.broadcastStatus)
	return m
}

// SetAuthorizer enables the friend check on realtime sends. Call before Run.
func (m *ManagerService) SetAuthorizer(a Authorizer) { m.authorizer = a }

// SetDirectory enables the cross-process membership directory. Call before Run.
func (m *ManagerService) SetDirectory(d Directory) { m.directory = d }

// SetBridge enables cross-process fan-out of room emits. Call before Run.
func (m *ManagerService) SetBridge(p Publisher) { m.bridge = p }

// Register hands a new connection to the hub. It returns false when the hub has stopped.
func (m *ManagerService) Register(c Client) bool {
	select {
	case m.RegisterCh <- c:
		return true
	case <-m.done:
		return false
	}
}

// Unregister hands a closed connection to the hub. It travels the command
// queue, so every command the connection submitted earlier is handled first.
func (m *ManagerService) Unregister(c Client) {
	m.Submit(Command{Client: c, Event: "disconnect", disconnect: true})
}

// Submit queues a decoded command. Commands of one connection are handled in submission order.
func (m *ManagerService) Submit(cmd Command) {
	select {
	case m.IncomingCh <- cmd:
	case <-m.done:
	}
}

// Done is closed when Run returns.
func (m *ManagerService) Done() <-chan struct{} {
	return m.done
}

// Run processes hub traffic until ctx is cancelled, then closes every client.
func (m *ManagerService) Run(ctx context.Context) {
	if m.bridge != nil {
		m.StartPubSubListener(ctx)
		go m.publishLoop(ctx)
	}
	if m.directory != nil {
		go m.directoryLoop(ctx)
	}

	logrus.WithField("function", "ManagerService.Run").Info("Session manager started")
	defer m.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-m.RegisterCh:
			m.register(c)
		case cmd := <-m.IncomingCh:
			m.handle(ctx, cmd)
		case up := <-m.receiptCh:
			m.deliverReceipt(up)
		case bm := <-m.PubSubCh:
			m.rooms.Broadcast(bm.Room, bm.Event, "")
		}
	}
}

func (m *ManagerService) shutdown() {
	for id, c := range m.clients {
		m.rooms.LeaveAll(c)
		delete(m.clients, id)
		c.Close()
	}
	close(m.done)
	logrus.WithField("function", "ManagerService.Run").Info("Session manager stopped")
}

func (m *ManagerService) register(c Client) {
	if _, ok := m.clients[c.GetConnID()]; ok {
		return
	}
	m.clients[c.GetConnID()] = c
	m.rooms.Join(room.Inbox(c.GetUserID()), c)

	first := m.Presence.Connect(c.GetUserID(), c.GetConnID())

	logrus.WithFields(logrus.Fields{
		"function": "register",
		"user_id":  c.GetUserID(),
		"conn_id":  c.GetConnID(),
		"first":    first,
	}).Info("Client connected")

	others := m.Presence.OnlineUsers(c.GetUserID())
	if len(others) > 0 {
		deliver(c, models.Event{Name: models.EventUserStatusBatch, Data: m.Presence.StatusOf(others)})
	}
}

func (m *ManagerService) unregister(c Client) {
	if _, ok := m.clients[c.GetConnID()]; !ok {
		return
	}
	delete(m.clients, c.GetConnID())

	for _, roomID := range m.rooms.LeaveAll(c) {
		if room.IsConversation(roomID) {
			m.directoryLeave(roomID, c.GetUserID())
		}
	}

	_, wentOffline := m.Presence.Disconnect(c.GetConnID())
	c.Close()

	logrus.WithFields(logrus.Fields{
		"function":     "unregister",
		"user_id":      c.GetUserID(),
		"conn_id":      c.GetConnID(),
		"went_offline": wentOffline,
	}).Info("Client disconnected")
}

// broadcastStatus runs under the registry lock, on the hub goroutine.
func (m *ManagerService) broadcastStatus(change presence.Change) {
	ev := models.Event{Name: models.EventUserStatus, Data: change.Status()}
	for _, c := range m.clients {
		deliver(c, ev)
	}
}

func (m *ManagerService) handle(ctx context.Context, cmd Command) {
	c := cmd.Client
	if cmd.disconnect {
		m.unregister(c)
		return
	}
	m.Presence.Touch(c.GetUserID())

	if _, ok := m.clients[c.GetConnID()]; !ok {
		logrus.WithFields(logrus.Fields{
			"function": "handle",
			"conn_id":  c.GetConnID(),
			"event":    cmd.Event,
		}).Debug("Dropping event of a disconnected client")
		return
	}

	if cmd.Err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "handle",
			"user_id":  c.GetUserID(),
			"event":    cmd.Event,
		}).WithError(cmd.Err).Debug("Rejected event")
		deliver(c, models.Event{Name: models.EventError, Data: models.ErrorEvent{Message: cmd.Err.Error()}})
		return
	}

	switch p := cmd.Payload.(type) {
	case models.JoinConversationPayload:
		m.joinConversation(c, p)
	case models.SendMessagePayload:
		m.sendMessage(ctx, c, p)
	case models.TypingPayload:
		m.emit(room.Inbox(p.RecipientID), models.Event{
			Name: models.EventUserTyping,
			Data: models.TypingEvent{UserID: c.GetUserID(), IsTyping: p.IsTyping},
		}, c.GetConnID())
	case models.ReadPayload:
		m.relayRead(c, p)
	case models.StatusRequestPayload:
		deliver(c, models.Event{Name: models.EventUserStatusBatch, Data: m.Presence.StatusOf(p.UserIDs)})
	default:
		logrus.WithFields(logrus.Fields{
			"function": "handle",
			"event":    cmd.Event,
		}).Error("Command without a known payload")
	}
}

func (m *ManagerService) joinConversation(c Client, p models.JoinConversationPayload) {
	counterpart := p.Counterpart()
	roomID := room.For(c.GetUserID(), counterpart)
	if m.rooms.Join(roomID, c) {
		m.directoryJoin(roomID, c.GetUserID())
	}
	deliver(c, models.Event{Name: models.EventUserStatus, Data: m.Presence.Status(counterpart)})
}

// sendMessage pushes the message to the recipient's inbox and answers the
// sender with a receipt. A recipient online here gets "delivered" at once;
// otherwise the receipt is "sent" and may be upgraded once the directory
// reports the recipient joined to the conversation on another process.
func (m *ManagerService) sendMessage(ctx context.Context, c Client, p models.SendMessagePayload) {
	sender := c.GetUserID()
	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}
	name := p.SenderName
	if name == "" {
		name = "User"
	}

	convRoom := room.For(sender, p.RecipientID)
	online := m.Presence.IsOnline(p.RecipientID)

	m.emit(room.Inbox(p.RecipientID), models.Event{
		Name: models.EventMessageNew,
		Data: models.NewMessageEvent{
			ID:         id,
			Content:    p.Content,
			Sender:     sender,
			SenderName: name,
			CreatedAt:  m.now().UTC(),
		},
	}, "")

	status := models.ReceiptSent
	if online {
		status = models.ReceiptDelivered
	}
	deliver(c, receiptEvent(id, status))

	logrus.WithFields(logrus.Fields{
		"function":   "sendMessage",
		"message_id": id,
		"sender":     sender,
		"recipient":  p.RecipientID,
		"status":     status,
	}).Debug("Message relayed")

	if !online && m.directory != nil {
		go m.checkRemoteJoin(ctx, c.GetConnID(), id, convRoom, p.RecipientID)
	}
}

// checkRemoteJoin runs off the hub goroutine and posts the upgrade back to it.
func (m *ManagerService) checkRemoteJoin(ctx context.Context, connID, messageID, roomID, recipient string) {
	qctx, cancel := context.WithTimeout(ctx, config.DirectoryTimeout)
	defer cancel()

	joined, err := m.directory.Joined(qctx, roomID, recipient)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "checkRemoteJoin",
			"message_id": messageID,
			"room":       roomID,
		}).WithError(err).Warn("Membership query failed, receipt stays sent")
		return
	}
	if !joined {
		return
	}
	select {
	case m.receiptCh <- receiptUpgrade{connID: connID, messageID: messageID}:
	case <-m.done:
	}
}

func (m *ManagerService) deliverReceipt(up receiptUpgrade) {
	c, ok := m.clients[up.connID]
	if !ok {
		return
	}
	deliver(c, receiptEvent(up.messageID, models.ReceiptDelivered))
}

func (m *ManagerService) relayRead(c Client, p models.ReadPayload) {
	ts := m.now().UnixMilli()
	for _, id := range p.IDs() {
		m.emit(room.Inbox(p.SenderID), models.Event{
			Name: models.EventMessageRead,
			Data: models.ReadReceiptEvent{
				MessageID: id,
				Status:    models.ReceiptRead,
				ReadBy:    c.GetUserID(),
				Timestamp: ts,
			},
		}, c.GetConnID())
	}
}

// emit delivers ev to the local subscribers of roomID and, with a bridge
// configured, to the subscribers on other processes.
func (m *ManagerService) emit(roomID string, ev models.Event, exceptConnID string) {
	m.rooms.Broadcast(roomID, ev, exceptConnID)
	if m.bridge == nil {
		return
	}
	select {
	case m.publishCh <- storage.BridgeMessage{Room: roomID, Event: ev}:
	default:
		logrus.WithFields(logrus.Fields{
			"function": "emit",
			"room":     roomID,
			"event":    ev.Name,
		}).Warn("Bridge queue full, event not published")
	}
}

func (m *ManagerService) directoryJoin(roomID, userID string) {
	m.queueDirectory(directoryOp{join: true, roomID: roomID, userID: userID})
}

func (m *ManagerService) directoryLeave(roomID, userID string) {
	m.queueDirectory(directoryOp{roomID: roomID, userID: userID})
}

func (m *ManagerService) queueDirectory(op directoryOp) {
	if m.directory == nil {
		return
	}
	select {
	case m.directoryCh <- op:
	default:
		logrus.WithFields(logrus.Fields{
			"function": "queueDirectory",
			"room":     op.roomID,
			"user_id":  op.userID,
		}).Warn("Directory queue full, membership update lost")
	}
}

// directoryLoop applies membership updates one at a time so a join and the
// following leave of the same connection reach the directory in order.
func (m *ManagerService) directoryLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-m.directoryCh:
			opCtx, cancel := context.WithTimeout(ctx, config.DirectoryTimeout)
			var err error
			if op.join {
				err = m.directory.Join(opCtx, op.roomID, op.userID)
			} else {
				err = m.directory.Leave(opCtx, op.roomID, op.userID)
			}
			cancel()
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "directoryLoop",
					"room":     op.roomID,
					"user_id":  op.userID,
					"join":     op.join,
				}).WithError(err).Warn("Failed to update room membership")
			}
		}
	}
}

func receiptEvent(messageID, status string) models.Event {
	return models.Event{
		Name: models.EventMessageStatus,
		Data: models.MessageStatusEvent{MessageID: messageID, Status: status},
	}
}
