package game

import (
	"context"
	"errors"
	"ito/internal/domain"
	"ito/internal/store"
	"slices"
)

// Roster owns room existence, the host seat and the player set.
type Roster struct {
	*core
}

// CreateRoom opens a room under a fresh code with initiatorID as host. Codes
// are checked against the store before use; the search gives up with
// ErrRoomAlreadyExists after MaxIDAttempts collisions.
func (r *Roster) CreateRoom(ctx context.Context, initiatorID string, player domain.Player) (string, HostToken, error) {
	for range r.opts.MaxIDAttempts {
		roomID := r.ids.Generate()
		token, err := r.CreateRoomWithID(ctx, roomID, initiatorID, player)
		if errors.Is(err, domain.ErrRoomAlreadyExists) {
			r.log.Debug().Str("room_id", roomID).Msg("room code collision, drawing another")
			continue
		}
		if err != nil {
			return "", HostToken{}, err
		}
		return roomID, token, nil
	}
	return "", HostToken{}, domain.ErrRoomAlreadyExists
}

// CreateRoomWithID fails with ErrRoomAlreadyExists when roomID is taken.
func (r *Roster) CreateRoomWithID(ctx context.Context, roomID, initiatorID string, player domain.Player) (HostToken, error) {
	if initiatorID == "" {
		return HostToken{}, domain.ErrPlayerNotFound
	}
	_, err := r.load(ctx, roomID)
	switch {
	case err == nil:
		return HostToken{}, domain.ErrRoomAlreadyExists
	case !errors.Is(err, domain.ErrRoomNotFound):
		return HostToken{}, err
	}

	if err := r.open(ctx, roomID, initiatorID, player); err != nil {
		return HostToken{}, err
	}
	r.log.Info().Str("room_id", roomID).Str("player_id", initiatorID).Msg("room created")
	return HostToken{roomID: roomID, playerID: initiatorID}, nil
}

func (r *Roster) open(ctx context.Context, roomID, hostID string, player domain.Player) error {
	now := r.stamp()
	player.JoinedAt = now
	room := domain.Room{
		HostID:         hostID,
		Phase:          domain.PhaseWaiting,
		Players:        map[string]domain.Player{hostID: player},
		TiebreakMethod: domain.TiebreakRandom,
		LastUpdated:    now,
	}
	if err := r.store.Set(ctx, store.RoomPath(roomID), room); err != nil {
		return storeError(err)
	}
	r.touchUser(ctx, hostID, player)
	return nil
}

// JoinRoom adds playerID to the room. A missing room is created on the spot
// with the joiner as host; joining an existing room never changes the host.
// Rejoining keeps the original join time.
func (r *Roster) JoinRoom(ctx context.Context, roomID, playerID string, info domain.Player) (created bool, err error) {
	if playerID == "" {
		return false, domain.ErrPlayerNotFound
	}
	room, err := r.load(ctx, roomID)
	if errors.Is(err, domain.ErrRoomNotFound) {
		if err := r.open(ctx, roomID, playerID, info); err != nil {
			return false, err
		}
		r.log.Info().Str("room_id", roomID).Str("player_id", playerID).Msg("room created by first joiner")
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if existing, ok := room.Players[playerID]; ok {
		info.JoinedAt = existing.JoinedAt
	} else {
		info.JoinedAt = r.stamp()
	}
	if err := r.write(ctx, roomID, map[string]any{"players/" + playerID: info}); err != nil {
		return false, err
	}
	r.touchUser(ctx, playerID, info)
	r.log.Info().Str("room_id", roomID).Str("player_id", playerID).Str("phase", room.Phase.String()).Msg("player joined")
	return false, nil
}

// ClaimHost is the single place host rights are checked.
func (r *Roster) ClaimHost(ctx context.Context, roomID, playerID string) (HostToken, error) {
	room, err := r.load(ctx, roomID)
	if err != nil {
		return HostToken{}, err
	}
	if !room.IsHost(playerID) {
		return HostToken{}, domain.ErrNotHost
	}
	return HostToken{roomID: roomID, playerID: playerID}, nil
}

// RemovePlayer kicks playerID. The kicked client notices its own absence from
// the roster feed and treats it as eviction.
func (r *Roster) RemovePlayer(ctx context.Context, token HostToken, playerID string) error {
	room, err := r.loadAsHost(ctx, token)
	if err != nil {
		return err
	}
	if !room.HasPlayer(playerID) {
		return domain.ErrPlayerNotFound
	}
	if playerID == token.playerID {
		return r.LeaveRoom(ctx, token.roomID, playerID)
	}
	if err := r.write(ctx, token.roomID, departure(room, playerID)); err != nil {
		return err
	}
	r.log.Info().Str("room_id", token.roomID).Str("player_id", playerID).Msg("player removed by host")
	return nil
}

// LeaveRoom removes the caller. The host seat passes to the longest-standing
// remaining player; the last player out deletes the room.
func (r *Roster) LeaveRoom(ctx context.Context, roomID, playerID string) error {
	room, err := r.load(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.HasPlayer(playerID) {
		return domain.ErrPlayerNotFound
	}

	if len(room.Players) == 1 {
		if err := r.store.Remove(ctx, store.RoomPath(roomID)); err != nil {
			return storeError(err)
		}
		r.log.Info().Str("room_id", roomID).Msg("last player left, room deleted")
		return nil
	}

	fields := departure(room, playerID)
	if room.IsHost(playerID) {
		for _, id := range room.PlayerIDs() {
			if id != playerID {
				fields["hostId"] = id
				break
			}
		}
	}
	if err := r.write(ctx, roomID, fields); err != nil {
		return err
	}
	r.log.Info().Str("room_id", roomID).Str("player_id", playerID).Msg("player left")
	return nil
}

// departure clears every per-player path of playerID.
func departure(room domain.Room, playerID string) map[string]any {
	fields := map[string]any{
		"players/" + playerID: nil,
		"votes/" + playerID:   nil,
		"cards/" + playerID:   nil,
	}
	if slices.ContainsFunc(room.CardOrder, func(p domain.Placement) bool { return p.PlayerID == playerID }) {
		fields["cardOrder"] = RemoveOwner(room.CardOrder, playerID)
	}
	return fields
}

// UpdateProfile lets a player change their own nickname, color or avatar.
func (r *Roster) UpdateProfile(ctx context.Context, roomID, playerID string, info domain.Player) error {
	room, err := r.load(ctx, roomID)
	if err != nil {
		return err
	}
	current, ok := room.Players[playerID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	info.JoinedAt = current.JoinedAt
	if err := r.write(ctx, roomID, map[string]any{"players/" + playerID: info}); err != nil {
		return err
	}
	r.touchUser(ctx, playerID, info)
	return nil
}

// RoomsHostedBy lists the codes of rooms whose host is hostID.
func (r *Roster) RoomsHostedBy(ctx context.Context, hostID string) ([]string, error) {
	found, err := r.store.FindByField(ctx, store.RoomsCollection, "hostId", hostID)
	if err != nil {
		return nil, storeError(err)
	}
	ids := make([]string, 0, len(found))
	for id := range found {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// touchUser records activity for the inactive-user purge. It is advisory, so
// failures are logged and swallowed.
func (r *Roster) touchUser(ctx context.Context, playerID string, info domain.Player) {
	user := map[string]any{
		"nickname":   info.Nickname,
		"avatarUrl":  info.AvatarURL,
		"lastActive": r.stamp(),
	}
	if err := r.store.Update(ctx, store.UserPath(playerID), user); err != nil {
		r.log.Warn().Err(err).Str("player_id", playerID).Msg("could not record user activity")
	}
}
