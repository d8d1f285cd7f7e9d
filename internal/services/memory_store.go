package services

import (
	"context"
	"sync"
	"time"

	"github.com/ManYouOriginal/ChatTest/internal/models"
	"github.com/ManYouOriginal/ChatTest/internal/ports"

	"github.com/google/uuid"
)

// In-memory implementations of the store ports, used in development mode and
// in tests. Each store synchronizes per instance; nothing spans instances.

type MemoryPresenceStore struct {
	mu        sync.RWMutex
	online    map[string]bool
	nicknames map[string]string
}

func NewMemoryPresenceStore() *MemoryPresenceStore {
	return &MemoryPresenceStore{
		online:    make(map[string]bool),
		nicknames: make(map[string]string),
	}
}

func (s *MemoryPresenceStore) MarkOnline(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online[userID] = true
	return nil
}

func (s *MemoryPresenceStore) MarkOffline(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.online, userID)
	return nil
}

func (s *MemoryPresenceStore) SetNickname(ctx context.Context, userID, nickname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nicknames[userID] = nickname
	return nil
}

func (s *MemoryPresenceStore) Nickname(ctx context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if nickname := s.nicknames[userID]; nickname != "" {
		return nickname, nil
	}
	return models.DefaultNickname(userID), nil
}

func (s *MemoryPresenceStore) ListOnline(ctx context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.online))
	for userID := range s.online {
		nickname := s.nicknames[userID]
		if nickname == "" {
			nickname = models.DefaultNickname(userID)
		}
		users = append(users, models.User{ID: userID, Nickname: nickname, Online: true})
	}
	return users, nil
}

type MemoryGroupDirectory struct {
	mu      sync.RWMutex
	groups  map[string]*models.Group
	members map[string]map[string]bool
	byUser  map[string]map[string]bool
}

func NewMemoryGroupDirectory() *MemoryGroupDirectory {
	return &MemoryGroupDirectory{
		groups:  make(map[string]*models.Group),
		members: make(map[string]map[string]bool),
		byUser:  make(map[string]map[string]bool),
	}
}

func (d *MemoryGroupDirectory) CreateGroup(ctx context.Context, name, creatorID string, memberIDs []string) (string, error) {
	groupID := uuid.New().String()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.groups[groupID] = &models.Group{
		ID:        groupID,
		Name:      name,
		Creator:   creatorID,
		CreatedAt: time.Now().UTC(),
	}
	d.members[groupID] = make(map[string]bool)

	d.addMemberLocked(groupID, creatorID)
	for _, memberID := range memberIDs {
		d.addMemberLocked(groupID, memberID)
	}
	return groupID, nil
}

func (d *MemoryGroupDirectory) AddMember(ctx context.Context, groupID, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addMemberLocked(groupID, userID)
	return nil
}

// addMemberLocked updates both sides of the membership index together.
func (d *MemoryGroupDirectory) addMemberLocked(groupID, userID string) {
	if d.members[groupID] == nil {
		d.members[groupID] = make(map[string]bool)
	}
	d.members[groupID][userID] = true

	if d.byUser[userID] == nil {
		d.byUser[userID] = make(map[string]bool)
	}
	d.byUser[userID][groupID] = true
}

func (d *MemoryGroupDirectory) MembersOf(ctx context.Context, groupID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	members := make([]string, 0, len(d.members[groupID]))
	for userID := range d.members[groupID] {
		members = append(members, userID)
	}
	return members, nil
}

func (d *MemoryGroupDirectory) GroupsOf(ctx context.Context, userID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	groups := make([]string, 0, len(d.byUser[userID]))
	for groupID := range d.byUser[userID] {
		groups = append(groups, groupID)
	}
	return groups, nil
}

func (d *MemoryGroupDirectory) Metadata(ctx context.Context, groupID string) (*models.Group, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	group, ok := d.groups[groupID]
	if !ok {
		return nil, ports.ErrGroupNotFound
	}
	copied := *group
	return &copied, nil
}

type MemoryHistoryStore struct {
	mu    sync.Mutex
	limit int
	logs  map[string][]models.Message
}

func NewMemoryHistoryStore(limit int) *MemoryHistoryStore {
	if limit <= 0 {
		limit = 100
	}
	return &MemoryHistoryStore{
		limit: limit,
		logs:  make(map[string][]models.Message),
	}
}

func (s *MemoryHistoryStore) Append(ctx context.Context, chatKey string, message models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := append(s.logs[chatKey], message)
	if len(log) > s.limit {
		trimmed := make([]models.Message, s.limit)
		copy(trimmed, log[len(log)-s.limit:])
		log = trimmed
	}
	s.logs[chatKey] = log
	return nil
}

func (s *MemoryHistoryStore) Range(ctx context.Context, chatKey string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[chatKey]
	out := make([]models.Message, len(log))
	copy(out, log)
	return out, nil
}

// MemoryTokenRepository backs token revocation when no redis is configured.
type MemoryTokenRepository struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

func NewMemoryTokenRepository() *MemoryTokenRepository {
	return &MemoryTokenRepository{revoked: make(map[string]time.Time)}
}

func (r *MemoryTokenRepository) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	r.mu.RLock()
	expiry, ok := r.revoked[tokenHash]
	r.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		r.mu.Lock()
		delete(r.revoked, tokenHash)
		r.mu.Unlock()
		return false, nil
	}
	return true, nil
}

func (r *MemoryTokenRepository) Revoke(ctx context.Context, tokenHash string, expiration time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[tokenHash] = time.Now().Add(expiration)
	return nil
}
