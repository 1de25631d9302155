package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vumotions/chatapp-server-sub000/backend/database"
	"github.com/vumotions/chatapp-server-sub000/backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memConversationStore 是 ConversationStore 的記憶體實作，測試專用
// 與 Mongo 實作相同：Update 以整份文件加版本條件寫回
type memConversationStore struct {
	mu    sync.Mutex
	convs map[primitive.ObjectID]*models.Conversation
}

func newMemConversationStore() *memConversationStore {
	return &memConversationStore{convs: make(map[primitive.ObjectID]*models.Conversation)}
}

// cloneConversation 以 bson 序列化做深拷貝，和真實存取層看到的文件語義一致
func cloneConversation(conv *models.Conversation) *models.Conversation {
	raw, err := bson.Marshal(conv)
	if err != nil {
		panic(err)
	}
	var out models.Conversation
	if err := bson.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	return &out
}

func (s *memConversationStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.convs[id]
	if !ok {
		return nil, database.ErrConversationNotFound
	}
	return cloneConversation(conv), nil
}

func (s *memConversationStore) FindByInviteLink(ctx context.Context, token string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range s.convs {
		if conv.InviteLink == token {
			return cloneConversation(conv), nil
		}
	}
	return nil, database.ErrConversationNotFound
}

func (s *memConversationStore) Insert(ctx context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv.ID.IsZero() {
		conv.ID = primitive.NewObjectID()
	}
	conv.Version = 1
	s.convs[conv.ID] = cloneConversation(conv)
	return nil
}

func (s *memConversationStore) Update(ctx context.Context, id primitive.ObjectID, mutate func(*models.Conversation) error) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.convs[id]
	if !ok {
		return nil, database.ErrConversationNotFound
	}
	working := cloneConversation(stored)
	if err := mutate(working); err != nil {
		return nil, err
	}
	working.Version++
	working.UpdatedAt = time.Now()
	s.convs[id] = cloneConversation(working)
	return working, nil
}

func (s *memConversationStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[id]; !ok {
		return database.ErrConversationNotFound
	}
	delete(s.convs, id)
	return nil
}

func (s *memConversationStore) List(ctx context.Context, filter database.ConversationListFilter) ([]models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Conversation
	for _, conv := range s.convs {
		if !conv.IsParticipant(filter.Participant) {
			continue
		}
		if filter.Type != "" && conv.Type != filter.Type {
			continue
		}
		out = append(out, *cloneConversation(conv))
	}
	return out, nil
}

// mustGet 讀出會話最新狀態，供測試做後置斷言
func (s *memConversationStore) mustGet(t *testing.T, id primitive.ObjectID) *models.Conversation {
	t.Helper()
	conv, err := s.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("conversation %s not found: %v", id.Hex(), err)
	}
	return conv
}

// conflictOnceStore 模擬第一輪寫回輸給並發寫入的情況：
// mutate 先在一份被丟棄的副本上執行，接著套用 interleave 模擬的並發變更，
// 再委派給內層存取層讓 mutate 在新狀態上重跑一次
type conflictOnceStore struct {
	*memConversationStore
	interleave func(*models.Conversation)
	conflicted bool
}

func (s *conflictOnceStore) Update(ctx context.Context, id primitive.ObjectID, mutate func(*models.Conversation) error) (*models.Conversation, error) {
	if !s.conflicted {
		s.conflicted = true
		if stale, err := s.memConversationStore.FindByID(ctx, id); err == nil {
			_ = mutate(stale)
		}
		if s.interleave != nil {
			if _, err := s.memConversationStore.Update(ctx, id, func(c *models.Conversation) error {
				s.interleave(c)
				return nil
			}); err != nil {
				return nil, err
			}
		}
	}
	return s.memConversationStore.Update(ctx, id, mutate)
}

// fakeMessenger 記錄系統訊息文字
type fakeMessenger struct {
	messages []string
	deleted  []string
}

func (f *fakeMessenger) PersistSystemMessage(ctx context.Context, conversationID, actorID, actorName, text string) (string, error) {
	f.messages = append(f.messages, text)
	return primitive.NewObjectID().Hex(), nil
}

func (f *fakeMessenger) DeleteRoomMessages(ctx context.Context, roomID string) error {
	f.deleted = append(f.deleted, roomID)
	return nil
}

// fakeNotifier 記錄通知的收件人與類型
type fakeNotifier struct {
	notified []string // "userID/kind"
}

func (f *fakeNotifier) CreateOrRefresh(ctx context.Context, userID, kind, relatedID string, metadata map[string]string) error {
	f.notified = append(f.notified, userID+"/"+kind)
	return nil
}

// fakeEvents 記錄推播過的事件名稱
type fakeEvents struct {
	roomEvents []string // "roomID/event"
	userEvents []string // "userID/event"
}

func (f *fakeEvents) NotifyRoom(roomID, event string, payload map[string]interface{}) {
	f.roomEvents = append(f.roomEvents, roomID+"/"+event)
}

func (f *fakeEvents) NotifyUser(userID, event string, payload map[string]interface{}) {
	f.userEvents = append(f.userEvents, userID+"/"+event)
}

// staticDirectory 以固定的 id→名稱對照表解析用戶
type staticDirectory map[string]string

func (d staticDirectory) Lookup(ctx context.Context, userID string) (models.UserSummary, error) {
	return models.UserSummary{ID: userID, Username: d[userID]}, nil
}

// 測試用的服務組裝，全部走記憶體存取層
type testEnv struct {
	store    *memConversationStore
	chat     *fakeMessenger
	notifier *fakeNotifier
	events   *fakeEvents
}

func newTestEnv() *testEnv {
	return &testEnv{
		store:    newMemConversationStore(),
		chat:     &fakeMessenger{},
		notifier: &fakeNotifier{},
		events:   &fakeEvents{},
	}
}

func (e *testEnv) groupService() *GroupService {
	return &GroupService{
		conversations: e.store,
		users:         staticDirectory{},
		chat:          e.chat,
		notifications: e.notifier,
		events:        e.events,
		now:           time.Now,
	}
}

func (e *testEnv) joinRequestService() *JoinRequestService {
	return &JoinRequestService{
		conversations: e.store,
		users:         staticDirectory{},
		chat:          e.chat,
		notifications: e.notifier,
		events:        e.events,
		now:           time.Now,
	}
}

func (e *testEnv) moderationService(now func() time.Time) *ModerationService {
	if now == nil {
		now = time.Now
	}
	return &ModerationService{
		conversations: e.store,
		users:         staticDirectory{},
		chat:          e.chat,
		events:        e.events,
		now:           now,
	}
}

// seedGroup 建立一個已入庫的群組：第一位是群主，其餘為一般成員
func (e *testEnv) seedGroup(t *testing.T, memberIDs ...string) *models.Conversation {
	t.Helper()
	now := time.Now()
	conv := &models.Conversation{
		Type:      models.ConversationTypeGroup,
		Name:      "測試群組",
		GroupType: models.GroupTypePublic,
		OwnerID:   memberIDs[0],
		CreatedAt: now,
		UpdatedAt: now,
	}
	for i, id := range memberIDs {
		role := models.RoleMember
		perms := models.DefaultMemberPermissions()
		if i == 0 {
			role = models.RoleOwner
			perms = models.FullPermissions()
		}
		conv.AddMember(models.Member{UserID: id, Role: role, Permissions: perms, JoinedAt: now})
	}
	if err := e.store.Insert(context.Background(), conv); err != nil {
		t.Fatalf("seed group: %v", err)
	}
	return conv
}

func expectKind(t *testing.T, err error, kind ErrorKind, code string) {
	t.Helper()
	svcErr, ok := AsError(err)
	if !ok {
		t.Fatalf("expected service error %s/%s, got %v", kind, code, err)
	}
	if svcErr.Kind != kind || svcErr.Code != code {
		t.Fatalf("expected %s/%s, got %s/%s", kind, code, svcErr.Kind, svcErr.Code)
	}
}
