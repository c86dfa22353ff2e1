package inmemory

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/sharetube/syncspace/internal/repository/connection"
)

type repo struct {
	// space id -> user id -> sockets
	spaces  map[string]map[string]map[connection.Conn]struct{}
	members map[connection.Conn]connection.Member
	mu      sync.RWMutex
	logger  *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		spaces:  make(map[string]map[string]map[connection.Conn]struct{}),
		members: make(map[connection.Conn]connection.Member),
		logger:  logger,
	}
}

func (r *repo) Add(conn connection.Conn, spaceId, userId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug("called", "space_id", spaceId, "user_id", userId)
	if _, ok := r.members[conn]; ok {
		r.logger.Debug("returned", "error", connection.ErrAlreadyExists)
		return connection.ErrAlreadyExists
	}

	users, ok := r.spaces[spaceId]
	if !ok {
		users = make(map[string]map[connection.Conn]struct{})
		r.spaces[spaceId] = users
	}
	conns, ok := users[userId]
	if !ok {
		conns = make(map[connection.Conn]struct{})
		users[userId] = conns
	}

	conns[conn] = struct{}{}
	r.members[conn] = connection.Member{SpaceId: spaceId, UserId: userId}

	return nil
}

// Remove forgets conn and reports whom it belonged to, whether that user
// has no sockets left and whether the space has no users left.
func (r *repo) Remove(conn connection.Conn) (member connection.Member, userGone bool, spaceEmpty bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	member, ok := r.members[conn]
	if !ok {
		return connection.Member{}, false, false, connection.ErrNotFound
	}
	delete(r.members, conn)

	users := r.spaces[member.SpaceId]
	conns := users[member.UserId]
	delete(conns, conn)

	if len(conns) == 0 {
		delete(users, member.UserId)
		userGone = true
	}
	if len(users) == 0 {
		delete(r.spaces, member.SpaceId)
		spaceEmpty = true
	}

	r.logger.Debug("returned", "space_id", member.SpaceId, "user_id", member.UserId, "user_gone", userGone, "space_empty", spaceEmpty)
	return member, userGone, spaceEmpty, nil
}

func (r *repo) GetMember(conn connection.Conn) (connection.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	member, ok := r.members[conn]
	if !ok {
		return connection.Member{}, connection.ErrNotFound
	}

	return member, nil
}

func (r *repo) GetSpaceConns(spaceId string) []connection.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]connection.Conn, 0)
	for _, userConns := range r.spaces[spaceId] {
		for conn := range userConns {
			conns = append(conns, conn)
		}
	}

	return conns
}

func (r *repo) GetUserIds(spaceId string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.spaces[spaceId]))
	for id := range r.spaces[spaceId] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

func (r *repo) SpaceIds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.spaces))
	for id := range r.spaces {
		ids = append(ids, id)
	}

	return ids
}
