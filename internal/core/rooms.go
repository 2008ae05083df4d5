package core

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// DefaultRoomCapacity applies when a RoomSpec leaves MaxUsers unset.
const DefaultRoomCapacity = 100

type room struct {
	id          string
	name        string
	description string
	maxUsers    int
	createdBy   string
	isActive    bool
	createdAt   time.Time
	updatedAt   time.Time
}

// Room is a point-in-time view of one room, member and message counts
// included. The id is immutable after creation.
type Room struct {
	ID           string
	Name         string
	Description  string
	MaxUsers     int
	CreatedBy    string
	IsActive     bool
	MemberCount  int
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RoomSpec describes a room to create.
type RoomSpec struct {
	ID          string
	Name        string
	Description string
	MaxUsers    int
	CreatedBy   string
}

// RoomPatch carries the mutable room fields; nil means leave unchanged.
type RoomPatch struct {
	Name        *string
	Description *string
	MaxUsers    *int
	IsActive    *bool
}

// CreateRoom validates spec and registers a room with empty membership and
// an empty message log.
func (r *Registry) CreateRoom(spec RoomSpec) (Room, error) {
	id := strings.TrimSpace(spec.ID)
	if !roomIDPattern.MatchString(id) {
		return Room{}, ErrInvalidRoomID
	}
	name := strings.TrimSpace(spec.Name)
	if n := utf8.RuneCountInString(name); n < 2 || n > 50 {
		return Room{}, ErrInvalidRoomName
	}
	maxUsers := spec.MaxUsers
	if maxUsers <= 0 {
		maxUsers = DefaultRoomCapacity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[id]; exists {
		return Room{}, ErrRoomExists
	}

	now := time.Now()
	rm := &room{
		id:          id,
		name:        name,
		description: strings.TrimSpace(spec.Description),
		maxUsers:    maxUsers,
		createdBy:   spec.CreatedBy,
		isActive:    true,
		createdAt:   now,
		updatedAt:   now,
	}
	r.rooms[id] = rm
	r.members[id] = make(map[string]struct{})
	if r.logs[id] == nil {
		r.logs[id] = []string{}
	}

	slog.Info("room created", "room_id", id, "name", name, "max_users", maxUsers, "created_by", spec.CreatedBy)
	return r.roomViewLocked(rm), nil
}

// Room returns one room by id.
func (r *Registry) Room(id string) (Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[id]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	return r.roomViewLocked(rm), nil
}

// ListRooms returns rooms ordered by activity score (members*10 + messages)
// descending, id ascending on ties. Inactive rooms are skipped unless
// includeInactive is set.
func (r *Registry) ListRooms(includeInactive bool) []Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		if !includeInactive && !rm.isActive {
			continue
		}
		out = append(out, r.roomViewLocked(rm))
	}
	sort.Slice(out, func(i, j int) bool {
		si := out[i].MemberCount*10 + out[i].MessageCount
		sj := out[j].MemberCount*10 + out[j].MessageCount
		if si != sj {
			return si > sj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// UpdateRoom applies patch. Only the creator or an administrator may update.
func (r *Registry) UpdateRoom(id string, patch RoomPatch, actorID string, isAdmin bool) (Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[id]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	if rm.createdBy != actorID && !isAdmin {
		return Room{}, ErrForbidden
	}

	changed := false
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if n := utf8.RuneCountInString(name); n < 2 || n > 50 {
			return Room{}, ErrInvalidRoomName
		}
		if rm.name != name {
			rm.name = name
			changed = true
		}
	}
	if patch.Description != nil && rm.description != *patch.Description {
		rm.description = *patch.Description
		changed = true
	}
	if patch.MaxUsers != nil && *patch.MaxUsers > 0 && rm.maxUsers != *patch.MaxUsers {
		rm.maxUsers = *patch.MaxUsers
		changed = true
	}
	if patch.IsActive != nil && rm.isActive != *patch.IsActive {
		rm.isActive = *patch.IsActive
		changed = true
	}
	if changed {
		rm.updatedAt = time.Now()
		slog.Info("room updated", "room_id", id, "actor", actorID)
	}
	return r.roomViewLocked(rm), nil
}

// DeleteRoom removes a room, its membership, and its message log. Only the
// creator or an administrator may delete.
func (r *Registry) DeleteRoom(id string, actorID string, isAdmin bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[id]
	if !ok {
		return ErrRoomNotFound
	}
	if rm.createdBy != actorID && !isAdmin {
		return ErrForbidden
	}

	for _, msgID := range r.logs[id] {
		delete(r.messages, msgID)
	}
	delete(r.logs, id)
	delete(r.members, id)
	delete(r.rooms, id)

	slog.Info("room deleted", "room_id", id, "actor", actorID)
	return nil
}

// Join adds userID to the room and returns the member count. Joining a room
// the user is already in is a no-op success so transport reconnects are not
// penalized. The capacity check and the insert happen under one lock; two
// racing joins cannot push membership past MaxUsers.
func (r *Registry) Join(id, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[id]
	if !ok {
		return 0, ErrRoomNotFound
	}
	members := r.members[id]
	if _, already := members[userID]; already {
		return len(members), nil
	}
	if len(members) >= rm.maxUsers {
		return 0, ErrRoomFull
	}

	members[userID] = struct{}{}
	rm.updatedAt = time.Now()
	slog.Info("room joined", "room_id", id, "user_id", userID, "members", len(members))
	return len(members), nil
}

// Leave removes userID from the room and returns the member count. Leaving a
// room the user is not in is a no-op success.
func (r *Registry) Leave(id, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[id]
	if !ok {
		return 0, ErrRoomNotFound
	}
	members := r.members[id]
	if _, in := members[userID]; !in {
		return len(members), nil
	}

	delete(members, userID)
	rm.updatedAt = time.Now()
	slog.Info("room left", "room_id", id, "user_id", userID, "members", len(members))
	return len(members), nil
}

// Members returns the member user ids of a room.
func (r *Registry) Members(id string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.rooms[id]; !ok {
		return nil, ErrRoomNotFound
	}
	out := make([]string, 0, len(r.members[id]))
	for userID := range r.members[id] {
		out = append(out, userID)
	}
	sort.Strings(out)
	return out, nil
}

// MemberRooms returns the ids of every room userID has joined.
func (r *Registry) MemberRooms(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for roomID, members := range r.members {
		if _, in := members[userID]; in {
			out = append(out, roomID)
		}
	}
	sort.Strings(out)
	return out
}

// IsMember reports whether userID has joined the room.
func (r *Registry) IsMember(id, userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, in := r.members[id][userID]
	return in
}

func (r *Registry) roomViewLocked(rm *room) Room {
	return Room{
		ID:           rm.id,
		Name:         rm.name,
		Description:  rm.description,
		MaxUsers:     rm.maxUsers,
		CreatedBy:    rm.createdBy,
		IsActive:     rm.isActive,
		MemberCount:  len(r.members[rm.id]),
		MessageCount: len(r.logs[rm.id]),
		CreatedAt:    rm.createdAt,
		UpdatedAt:    rm.updatedAt,
	}
}
