package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/ManYouOriginal/ChatTest/app/tests"
	"github.com/ManYouOriginal/ChatTest/internal/models"
	"github.com/ManYouOriginal/ChatTest/internal/services"
	"github.com/ManYouOriginal/ChatTest/internal/services/chatkey"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func frame(t *testing.T, action string, payload interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]interface{}{
		"action":  action,
		"payload": payload,
	})
	require.NoError(t, err)
	return data
}

func newRouter(deliverer *tests.RecordingDeliverer) (*services.RouterService, *services.MemoryPresenceStore, *services.MemoryGroupDirectory, *services.MemoryHistoryStore) {
	presence := services.NewMemoryPresenceStore()
	groups := services.NewMemoryGroupDirectory()
	history := services.NewMemoryHistoryStore(100)

	router := services.NewRouterService(presence, groups, history, slog.Default())
	router.SetDeliverer(deliverer)
	return router, presence, groups, history
}

func TestRouter_PrivateMessage(t *testing.T) {
	ctx := context.Background()

	deliverer := tests.NewRecordingDeliverer("alice", "bob")
	router, presence, _, history := newRouter(deliverer)

	require.NoError(t, presence.SetNickname(ctx, "alice", "Alice"))

	router.Dispatch(ctx, "alice", frame(t, "send_message", map[string]interface{}{
		"chat_type":      "private",
		"target_user_id": "bob",
		"content":        "hi bob",
	}))

	bobInbox := deliverer.SentTo("bob")
	require.Len(t, bobInbox, 1)
	assert.Equal(t, "new_message", bobInbox[0].Action)

	msg, ok := bobInbox[0].Payload.(models.Message)
	require.True(t, ok)
	assert.Equal(t, "alice", msg.SenderID)
	assert.Equal(t, "Alice", msg.SenderNickname)
	assert.Equal(t, "hi bob", msg.Content)
	assert.Equal(t, chatkey.ForPair("alice", "bob"), msg.ChatID)

	// the sender gets the same envelope back as delivery confirmation
	aliceInbox := deliverer.SentTo("alice")
	require.Len(t, aliceInbox, 1)
	assert.Equal(t, "new_message", aliceInbox[0].Action)

	stored, err := history.Range(ctx, chatkey.ForPair("alice", "bob"))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "hi bob", stored[0].Content)
}

func TestRouter_PrivateMessage_OfflineTargetStillEchoes(t *testing.T) {
	ctx := context.Background()

	deliverer := tests.NewRecordingDeliverer("alice")
	router, _, _, history := newRouter(deliverer)

	router.Dispatch(ctx, "alice", frame(t, "send_message", map[string]interface{}{
		"target_user_id": "bob",
		"content":        "you there?",
	}))

	assert.Empty(t, deliverer.SentTo("bob"))

	aliceInbox := deliverer.SentTo("alice")
	require.Len(t, aliceInbox, 1)
	assert.Equal(t, "new_message", aliceInbox[0].Action)

	stored, err := history.Range(ctx, chatkey.ForPair("alice", "bob"))
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestRouter_GroupMessage_FanOutToMembersOnly(t *testing.T) {
	ctx := context.Background()

	deliverer := tests.NewRecordingDeliverer("alice", "bob", "carol", "mallory")
	router, _, groups, history := newRouter(deliverer)

	groupID, err := groups.CreateGroup(ctx, "team", "alice", []string{"bob", "carol"})
	require.NoError(t, err)

	router.Dispatch(ctx, "alice", frame(t, "send_message", map[string]interface{}{
		"chat_type": "group",
		"group_id":  groupID,
		"content":   "standup in 5",
	}))

	for _, member := range []string{"alice", "bob", "carol"} {
		inbox := deliverer.SentTo(member)
		require.Len(t, inbox, 1, "member %s", member)
		assert.Equal(t, "new_group_message", inbox[0].Action)

		msg, ok := inbox[0].Payload.(models.Message)
		require.True(t, ok)
		assert.Equal(t, groupID, msg.GroupID)
		assert.Equal(t, "standup in 5", msg.Content)
	}

	// connected but not a member: nothing arrives
	assert.Empty(t, deliverer.SentTo("mallory"))

	stored, err := history.Range(ctx, chatkey.ForGroup(groupID))
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestRouter_GroupMessage_NonMemberSenderGetsNoCopy(t *testing.T) {
	ctx := context.Background()

	deliverer := tests.NewRecordingDeliverer("alice", "bob", "dave")
	router, _, groups, _ := newRouter(deliverer)

	groupID, err := groups.CreateGroup(ctx, "team", "alice", []string{"bob"})
	require.NoError(t, err)

	// dave is connected but never joined; the fan-out set is exactly the
	// member list, so dave's own message never comes back to dave
	router.Dispatch(ctx, "dave", frame(t, "send_message", map[string]interface{}{
		"chat_type": "group",
		"group_id":  groupID,
		"content":   "outsider",
	}))

	assert.Len(t, deliverer.SentTo("alice"), 1)
	assert.Len(t, deliverer.SentTo("bob"), 1)
	assert.Empty(t, deliverer.SentTo("dave"))
}

func TestRouter_GetUsers_ExcludesRequester(t *testing.T) {
	ctx := context.Background()

	deliverer := tests.NewRecordingDeliverer("alice")
	router, presence, _, _ := newRouter(deliverer)

	require.NoError(t, presence.MarkOnline(ctx, "alice"))
	require.NoError(t, presence.MarkOnline(ctx, "bob"))
	require.NoError(t, presence.SetNickname(ctx, "bob", "Bob"))

	router.Dispatch(ctx, "alice", frame(t, "get_users", map[string]interface{}{}))

	inbox := deliverer.SentTo("alice")
	require.Len(t, inbox, 1)
	assert.Equal(t, "users_online", inbox[0].Action)

	users, ok := inbox[0].Payload.([]models.User)
	require.True(t, ok)
	require.Len(t, users, 1)
	assert.Equal(t, "bob", users[0].ID)
	assert.Equal(t, "Bob", users[0].Nickname)
}

func TestRouter_CreateGroup_NotifiesCreatorAndMembers(t *testing.T) {
	ctx := context.Background()

	deliverer := tests.NewRecordingDeliverer("alice", "bob")
	router, _, groups, _ := newRouter(deliverer)

	router.Dispatch(ctx, "alice", frame(t, "create_group", map[string]interface{}{
		"group_name": "weekend plans",
		"members":    []string{"bob"},
	}))

	aliceInbox := deliverer.SentTo("alice")
	require.Len(t, aliceInbox, 1)
	assert.Equal(t, "group_created", aliceInbox[0].Action)

	info, ok := aliceInbox[0].Payload.(models.Group)
	require.True(t, ok)
	assert.Equal(t, "weekend plans", info.Name)
	assert.Equal(t, "alice", info.Creator)
	assert.ElementsMatch(t, []string{"alice", "bob"}, info.Members)

	bobInbox := deliverer.SentTo("bob")
	require.Len(t, bobInbox, 1)
	assert.Equal(t, "added_to_group", bobInbox[0].Action)

	members, err := groups.MembersOf(ctx, info.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, members)
}

func TestRouter_CreateGroup_LegacyObjectMembers(t *testing.T) {
	ctx := context.Background()

	deliverer := tests.NewRecordingDeliverer("alice", "bob", "carol")
	router, _, _, _ := newRouter(deliverer)

	router.Dispatch(ctx, "alice", frame(t, "create_group", map[string]interface{}{
		"group_name": "legacy",
		"members":    map[string]string{"Bob": "bob", "Carol": "carol"},
	}))

	aliceInbox := deliverer.SentTo("alice")
	require.Len(t, aliceInbox, 1)

	info, ok := aliceInbox[0].Payload.(models.Group)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, info.Members)
}

func TestRouter_GetUserGroups(t *testing.T) {
	ctx := context.Background()

	deliverer := tests.NewRecordingDeliverer("alice")
	router, _, groups, _ := newRouter(deliverer)

	groupID, err := groups.CreateGroup(ctx, "team", "alice", nil)
	require.NoError(t, err)

	router.Dispatch(ctx, "alice", frame(t, "get_user_groups", map[string]interface{}{}))

	inbox := deliverer.SentTo("alice")
	require.Len(t, inbox, 1)
	assert.Equal(t, "user_groups", inbox[0].Action)

	list, ok := inbox[0].Payload.([]models.Group)
	require.True(t, ok)
	require.Len(t, list, 1)
	assert.Equal(t, groupID, list[0].ID)
	assert.Equal(t, "team", list[0].Name)
	assert.ElementsMatch(t, []string{"alice"}, list[0].Members)
}

func TestRouter_GetChatHistory_ResolvesCurrentNicknames(t *testing.T) {
	ctx := context.Background()

	deliverer := tests.NewRecordingDeliverer("alice", "bob")
	router, presence, _, _ := newRouter(deliverer)

	require.NoError(t, presence.SetNickname(ctx, "alice", "Alice"))

	router.Dispatch(ctx, "alice", frame(t, "send_message", map[string]interface{}{
		"target_user_id": "bob",
		"content":        "first",
	}))

	// rename after the message was stored; history must show the new name
	require.NoError(t, presence.SetNickname(ctx, "alice", "Alice v2"))

	router.Dispatch(ctx, "bob", frame(t, "get_chat_history", map[string]interface{}{
		"target_user_id": "alice",
	}))

	bobInbox := deliverer.SentTo("bob")
	require.Len(t, bobInbox, 2)
	assert.Equal(t, "chat_history", bobInbox[1].Action)

	payload, ok := bobInbox[1].Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, chatkey.ForPair("alice", "bob"), payload["chat_id"])

	messages, ok := payload["messages"].([]models.Message)
	require.True(t, ok)
	require.Len(t, messages, 1)
	assert.Equal(t, "Alice v2", messages[0].SenderNickname)
}

func TestRouter_GetGroupMessages(t *testing.T) {
	ctx := context.Background()

	deliverer := tests.NewRecordingDeliverer("alice", "bob")
	router, _, groups, _ := newRouter(deliverer)

	groupID, err := groups.CreateGroup(ctx, "team", "alice", []string{"bob"})
	require.NoError(t, err)

	router.Dispatch(ctx, "alice", frame(t, "send_message", map[string]interface{}{
		"chat_type": "group",
		"group_id":  groupID,
		"content":   "hello group",
	}))

	router.Dispatch(ctx, "bob", frame(t, "get_group_messages", map[string]interface{}{
		"group_id": groupID,
	}))

	bobInbox := deliverer.SentTo("bob")
	require.Len(t, bobInbox, 2)
	assert.Equal(t, "group_messages", bobInbox[1].Action)

	payload, ok := bobInbox[1].Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, groupID, payload["group_id"])

	messages, ok := payload["messages"].([]models.Message)
	require.True(t, ok)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello group", messages[0].Content)
}

func TestRouter_DropsBadFrames(t *testing.T) {
	ctx := context.Background()

	ts := []struct {
		name  string
		frame []byte
	}{
		{
			name:  "Malformed JSON",
			frame: []byte("{not json"),
		},
		{
			name:  "Unknown action",
			frame: []byte(`{"action":"self_destruct","payload":{}}`),
		},
		{
			name:  "Missing target",
			frame: []byte(`{"action":"send_message","payload":{"content":"hi"}}`),
		},
		{
			name:  "Unsupported chat type",
			frame: []byte(`{"action":"send_message","payload":{"chat_type":"channel","target_user_id":"bob","content":"hi"}}`),
		},
	}

	for _, tt := range ts {
		t.Run(tt.name, func(t *testing.T) {
			deliverer := tests.NewRecordingDeliverer("alice", "bob")
			router, _, _, history := newRouter(deliverer)

			router.Dispatch(ctx, "alice", tt.frame)

			assert.Empty(t, deliverer.SentTo("alice"))
			assert.Empty(t, deliverer.SentTo("bob"))

			stored, err := history.Range(ctx, chatkey.ForPair("alice", "bob"))
			require.NoError(t, err)
			assert.Empty(t, stored)
		})
	}
}

func TestRouter_HistoryWriteFailureDropsDelivery(t *testing.T) {
	ctx := context.Background()

	deliverer := tests.NewRecordingDeliverer("alice", "bob")

	history := &tests.MockHistoryStore{}
	history.On("Append", ctx, chatkey.ForPair("alice", "bob"), mock.AnythingOfType("models.Message")).
		Return(errors.New("store unavailable"))

	router := services.NewRouterService(
		services.NewMemoryPresenceStore(),
		services.NewMemoryGroupDirectory(),
		history,
		slog.Default(),
	)
	router.SetDeliverer(deliverer)

	router.Dispatch(ctx, "alice", frame(t, "send_message", map[string]interface{}{
		"target_user_id": "bob",
		"content":        "hi",
	}))

	// a message that was never persisted is never delivered either
	assert.Empty(t, deliverer.SentTo("alice"))
	assert.Empty(t, deliverer.SentTo("bob"))

	history.AssertExpectations(t)
}

func TestRouter_MessageCounter(t *testing.T) {
	ctx := context.Background()

	deliverer := tests.NewRecordingDeliverer("alice", "bob")
	router, _, _, _ := newRouter(deliverer)

	counter := &countingCounter{}
	router.SetMessageCounter(counter)

	router.Dispatch(ctx, "alice", frame(t, "send_message", map[string]interface{}{
		"target_user_id": "bob",
		"content":        "one",
	}))
	router.Dispatch(ctx, "alice", frame(t, "get_users", map[string]interface{}{}))

	assert.Equal(t, 1, counter.n)
}

type countingCounter struct{ n int }

func (c *countingCounter) Inc() { c.n++ }
