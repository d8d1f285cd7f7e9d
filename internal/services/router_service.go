package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/ManYouOriginal/ChatTest/internal/models"
	"github.com/ManYouOriginal/ChatTest/internal/ports"
	"github.com/ManYouOriginal/ChatTest/internal/services/chatkey"

	"github.com/google/uuid"
)

// Counter counts routed messages. prometheus.Counter satisfies it.
type Counter interface {
	Inc()
}

// RouterService interprets inbound envelopes and instructs the registry to
// deliver outbound ones. It keeps no state of its own between calls; all
// state lives in the stores and the registry.
type RouterService struct {
	presence ports.PresenceStore
	groups   ports.GroupDirectory
	history  ports.HistoryStore
	registry ports.Deliverer
	events   ports.EventPublisher
	routed   Counter
	logger   *slog.Logger
}

func NewRouterService(presence ports.PresenceStore, groups ports.GroupDirectory, history ports.HistoryStore, logger *slog.Logger) *RouterService {
	return &RouterService{
		presence: presence,
		groups:   groups,
		history:  history,
		logger:   logger,
	}
}

// SetDeliverer wires the registry in after construction; the registry needs
// the router for dispatch, so the two are connected in two phases.
func (s *RouterService) SetDeliverer(registry ports.Deliverer) {
	s.registry = registry
}

func (s *RouterService) SetEventPublisher(events ports.EventPublisher) {
	s.events = events
}

func (s *RouterService) SetMessageCounter(routed Counter) {
	s.routed = routed
}

// Dispatch handles one inbound frame. Malformed frames and unknown actions
// are dropped with a log line; the sender is never notified. A failing
// action is logged here and never terminates the caller's receive loop.
func (s *RouterService) Dispatch(ctx context.Context, senderID string, frame []byte) {
	var envelope struct {
		Action  string          `json:"action"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(frame, &envelope); err != nil {
		s.logger.Warn("dropping malformed frame", "userID", senderID, "error", err)
		return
	}

	s.logger.Debug("dispatching action", "action", envelope.Action, "userID", senderID)

	var err error
	switch envelope.Action {
	case "send_message":
		err = s.handleSendMessage(ctx, senderID, envelope.Payload)
	case "get_users":
		err = s.handleGetUsers(ctx, senderID)
	case "create_group":
		err = s.handleCreateGroup(ctx, senderID, envelope.Payload)
	case "get_user_groups":
		err = s.handleGetUserGroups(ctx, senderID)
	case "get_group_messages":
		err = s.handleGetGroupMessages(ctx, senderID, envelope.Payload)
	case "get_chat_history":
		err = s.handleGetChatHistory(ctx, senderID, envelope.Payload)
	default:
		s.logger.Warn("unknown action", "action", envelope.Action, "userID", senderID)
		return
	}

	if err != nil {
		s.logger.Error("action failed", "action", envelope.Action, "userID", senderID, "error", err)
	}
}

func (s *RouterService) handleSendMessage(ctx context.Context, senderID string, payload json.RawMessage) error {
	var req struct {
		ChatType     string `json:"chat_type"`
		TargetUserID string `json:"target_user_id"`
		GroupID      string `json:"group_id"`
		Content      string `json:"content"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}
	if req.ChatType == "" {
		req.ChatType = models.ChatTypePrivate
	}

	switch req.ChatType {
	case models.ChatTypePrivate:
		return s.sendPrivateMessage(ctx, senderID, req.TargetUserID, req.Content)
	case models.ChatTypeGroup:
		return s.sendGroupMessage(ctx, senderID, req.GroupID, req.Content)
	default:
		return ErrUnsupportedChatType
	}
}

func (s *RouterService) sendPrivateMessage(ctx context.Context, senderID, targetID, content string) error {
	if targetID == "" || content == "" {
		return ErrInvalidInput
	}

	chatID := chatkey.ForPair(senderID, targetID)
	message := models.Message{
		ID:           uuid.New().String(),
		ChatID:       chatID,
		SenderID:     senderID,
		TargetUserID: targetID,
		Content:      content,
		ChatType:     models.ChatTypePrivate,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.history.Append(ctx, chatID, message); err != nil {
		return err
	}
	s.publish(ctx, message)

	nickname, err := s.presence.Nickname(ctx, senderID)
	if err != nil {
		s.logger.Warn("failed to resolve sender nickname", "userID", senderID, "error", err)
	} else {
		message.SenderNickname = nickname
	}

	envelope := models.Envelope{Action: "new_message", Payload: message}
	delivered := s.registry.Send(targetID, envelope)
	// the sender always gets its own message back as the delivery
	// confirmation, online target or not
	s.registry.Send(senderID, envelope)
	s.count()

	s.logger.Info("private message routed",
		"chatID", chatID,
		"senderID", senderID,
		"delivered", delivered)
	return nil
}

func (s *RouterService) sendGroupMessage(ctx context.Context, senderID, groupID, content string) error {
	if groupID == "" || content == "" {
		return ErrInvalidInput
	}

	nickname, err := s.presence.Nickname(ctx, senderID)
	if err != nil {
		s.logger.Warn("failed to resolve sender nickname", "userID", senderID, "error", err)
		nickname = models.DefaultNickname(senderID)
	}

	message := models.Message{
		ID:             uuid.New().String(),
		GroupID:        groupID,
		SenderID:       senderID,
		SenderNickname: nickname,
		Content:        content,
		ChatType:       models.ChatTypeGroup,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.history.Append(ctx, chatkey.ForGroup(groupID), message); err != nil {
		return err
	}
	s.publish(ctx, message)

	members, err := s.groups.MembersOf(ctx, groupID)
	if err != nil {
		return err
	}

	// fan-out: one send per member, never a global broadcast
	envelope := models.Envelope{Action: "new_group_message", Payload: message}
	sent := 0
	for _, memberID := range members {
		if s.registry.Send(memberID, envelope) {
			sent++
		}
	}
	s.count()

	s.logger.Info("group message routed",
		"groupID", groupID,
		"senderID", senderID,
		"delivered", sent,
		"members", len(members))
	return nil
}

func (s *RouterService) handleGetUsers(ctx context.Context, senderID string) error {
	users, err := s.presence.ListOnline(ctx)
	if err != nil {
		return err
	}

	visible := make([]models.User, 0, len(users))
	for _, user := range users {
		if user.ID != senderID {
			visible = append(visible, user)
		}
	}

	s.registry.Send(senderID, models.Envelope{Action: "users_online", Payload: visible})
	return nil
}

func (s *RouterService) handleCreateGroup(ctx context.Context, senderID string, payload json.RawMessage) error {
	var req struct {
		GroupName string          `json:"group_name"`
		Members   json.RawMessage `json:"members"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}
	if req.GroupName == "" {
		return ErrInvalidInput
	}

	memberIDs, err := decodeMembers(req.Members)
	if err != nil {
		return err
	}

	groupID, err := s.groups.CreateGroup(ctx, req.GroupName, senderID, memberIDs)
	if err != nil {
		return err
	}

	members, err := s.groups.MembersOf(ctx, groupID)
	if err != nil {
		return err
	}

	info := models.Group{
		ID:      groupID,
		Name:    req.GroupName,
		Creator: senderID,
		Members: members,
	}

	s.registry.Send(senderID, models.Envelope{Action: "group_created", Payload: info})
	for _, memberID := range members {
		if memberID == senderID {
			continue
		}
		s.registry.Send(memberID, models.Envelope{Action: "added_to_group", Payload: info})
	}

	s.logger.Info("group created", "groupID", groupID, "name", req.GroupName, "creator", senderID, "memberCount", len(members))
	return nil
}

// decodeMembers accepts either a JSON array of user ids or the legacy object
// form whose values are user ids.
func decodeMembers(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var object map[string]string
	if err := json.Unmarshal(raw, &object); err != nil {
		return nil, err
	}
	list = make([]string, 0, len(object))
	for _, id := range object {
		list = append(list, id)
	}
	return list, nil
}

func (s *RouterService) handleGetUserGroups(ctx context.Context, senderID string) error {
	groupIDs, err := s.groups.GroupsOf(ctx, senderID)
	if err != nil {
		return err
	}

	groupsInfo := make([]models.Group, 0, len(groupIDs))
	for _, groupID := range groupIDs {
		meta, err := s.groups.Metadata(ctx, groupID)
		if errors.Is(err, ports.ErrGroupNotFound) {
			s.logger.Warn("membership points at missing group", "groupID", groupID, "userID", senderID)
			continue
		}
		if err != nil {
			return err
		}

		members, err := s.groups.MembersOf(ctx, groupID)
		if err != nil {
			return err
		}
		meta.Members = members
		groupsInfo = append(groupsInfo, *meta)
	}

	s.registry.Send(senderID, models.Envelope{Action: "user_groups", Payload: groupsInfo})
	return nil
}

func (s *RouterService) handleGetGroupMessages(ctx context.Context, senderID string, payload json.RawMessage) error {
	var req struct {
		GroupID string `json:"group_id"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}
	if req.GroupID == "" {
		return ErrInvalidInput
	}

	messages, err := s.history.Range(ctx, chatkey.ForGroup(req.GroupID))
	if err != nil {
		return err
	}

	s.registry.Send(senderID, models.Envelope{
		Action: "group_messages",
		Payload: map[string]interface{}{
			"group_id": req.GroupID,
			"messages": messages,
		},
	})
	return nil
}

func (s *RouterService) handleGetChatHistory(ctx context.Context, senderID string, payload json.RawMessage) error {
	var req struct {
		TargetUserID string `json:"target_user_id"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}
	if req.TargetUserID == "" {
		return ErrInvalidInput
	}

	chatID := chatkey.ForPair(senderID, req.TargetUserID)
	messages, err := s.history.Range(ctx, chatID)
	if err != nil {
		return err
	}

	// nicknames are resolved at read time so renames show up in history
	for i := range messages {
		nickname, err := s.presence.Nickname(ctx, messages[i].SenderID)
		if err != nil {
			s.logger.Warn("failed to resolve nickname", "userID", messages[i].SenderID, "error", err)
			continue
		}
		messages[i].SenderNickname = nickname
	}

	s.registry.Send(senderID, models.Envelope{
		Action: "chat_history",
		Payload: map[string]interface{}{
			"chat_id":  chatID,
			"messages": messages,
		},
	})
	return nil
}

func (s *RouterService) publish(ctx context.Context, message models.Message) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, message); err != nil {
		s.logger.Warn("failed to publish message event", "messageID", message.ID, "error", err)
	}
}

func (s *RouterService) count() {
	if s.routed != nil {
		s.routed.Inc()
	}
}

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnsupportedChatType = errors.New("unsupported chat type")
)
