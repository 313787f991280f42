package game

import (
	"context"
	"errors"
	"fmt"
	"ito/internal/domain"
	"slices"
	"strings"
)

// TopicSource draws curated prompts. Titles listed in exclude must not be
// returned. Fewer than n topics is not an error.
type TopicSource interface {
	Draw(ctx context.Context, n int, exclude []string) ([]domain.Topic, error)
}

// TopicRecorder is implemented by sources that keep custom prompts a room
// actually played, so later rounds can draw them.
type TopicRecorder interface {
	AddTopic(ctx context.Context, t domain.Topic) error
}

type ResolutionState int

const (
	// Not every roster member has a valid vote yet.
	ResolutionPending ResolutionState = iota
	ResolutionFinalized
	// Votes are tied in host tie-break mode. Only ForceChoose moves on.
	ResolutionAwaitingHost
)

func (s ResolutionState) String() string {
	switch s {
	case ResolutionFinalized:
		return "finalized"
	case ResolutionAwaitingHost:
		return "awaiting-host"
	}
	return "pending"
}

type Resolution struct {
	State ResolutionState
	Topic *domain.Topic
	Tied  []string
}

// TopicSelector resolves the shared prompt of a round.
type TopicSelector struct {
	*core
}

// StartTopicSelection opens a round: waiting -> chooseTopic with a fresh set
// of candidates and no votes.
func (t *TopicSelector) StartTopicSelection(ctx context.Context, token HostToken) ([]domain.Topic, error) {
	room, err := t.loadAsHost(ctx, token)
	if err != nil {
		return nil, err
	}
	if len(room.Players) == 0 {
		return nil, domain.ErrNotEnoughPlayers
	}
	options, err := t.draw(ctx, room)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{
		"topicOptions": options,
		"topic":        nil,
		"votes":        nil,
		"customTopics": nil,
		"verdict":      nil,
	}
	if err := advance(room, domain.PhaseChooseTopic, fields); err != nil {
		return nil, err
	}
	if err := t.write(ctx, token.roomID, fields); err != nil {
		return nil, err
	}
	t.log.Info().Str("room_id", token.roomID).Int("options", len(options)).Msg("topic selection started")
	return options, nil
}

// RefreshTopics replaces the curated candidates. Votes are left alone; a vote
// for a title that is no longer a candidate simply stops counting.
func (t *TopicSelector) RefreshTopics(ctx context.Context, token HostToken) ([]domain.Topic, error) {
	room, err := t.loadAsHost(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := t.requireOpen(room); err != nil {
		return nil, err
	}
	options, err := t.draw(ctx, room)
	if err != nil {
		return nil, err
	}
	if err := t.write(ctx, token.roomID, map[string]any{"topicOptions": options}); err != nil {
		return nil, err
	}
	return options, nil
}

func (t *TopicSelector) draw(ctx context.Context, room domain.Room) ([]domain.Topic, error) {
	drawn, err := t.topics.Draw(ctx, t.opts.TopicOptions, room.UsedTitleList())
	if err != nil {
		return nil, fmt.Errorf("drawing topics: %w", err)
	}
	options := make([]domain.Topic, 0, len(drawn))
	for _, topic := range drawn {
		if !room.IsTitleUsed(topic.Title) {
			options = append(options, topic)
		}
	}
	return options, nil
}

// ProposeTopic adds a custom candidate. Titles are unique within the room,
// including titles already played.
func (t *TopicSelector) ProposeTopic(ctx context.Context, roomID, playerID string, topic domain.Topic) error {
	topic.Title = strings.TrimSpace(topic.Title)
	if topic.Title == "" {
		return domain.ErrInvalidTitle
	}
	room, err := t.load(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.HasPlayer(playerID) {
		return domain.ErrPlayerNotFound
	}
	if err := t.requireOpen(room); err != nil {
		return err
	}
	if _, exists := room.FindCandidate(topic.Title); exists || room.IsTitleUsed(topic.Title) {
		return domain.ErrTopicAlreadyExists
	}
	if topic.Set == "" {
		topic.Set = CustomSet
	}
	return t.write(ctx, roomID, map[string]any{"customTopics/" + domain.TitleKey(topic.Title): topic})
}

// Vote records playerID's choice and tries to resolve the round. Voting after
// the topic is final is a no-op.
func (t *TopicSelector) Vote(ctx context.Context, roomID, playerID, title string) (Resolution, error) {
	room, err := t.load(ctx, roomID)
	if err != nil {
		return Resolution{}, err
	}
	if room.Topic != nil {
		return Resolution{State: ResolutionFinalized, Topic: room.Topic}, nil
	}
	if err := room.Phase.Require(domain.PhaseChooseTopic); err != nil {
		return Resolution{}, err
	}
	if !room.HasPlayer(playerID) {
		return Resolution{}, domain.ErrPlayerNotFound
	}
	candidate, ok := room.FindCandidate(title)
	if !ok {
		return Resolution{}, domain.ErrTopicNotFound
	}
	if room.Votes[playerID] != candidate.Title {
		if err := t.write(ctx, roomID, map[string]any{"votes/" + playerID: candidate.Title}); err != nil {
			return Resolution{}, err
		}
	}
	return t.Resolve(ctx, roomID)
}

// Resolve finalizes the topic once every roster member has voted, following
// the room's tie-break method. It is safe to call repeatedly from any client.
func (t *TopicSelector) Resolve(ctx context.Context, roomID string) (Resolution, error) {
	room, err := t.load(ctx, roomID)
	if err != nil {
		return Resolution{}, err
	}
	if room.Topic != nil {
		return Resolution{State: ResolutionFinalized, Topic: room.Topic}, nil
	}

	ballot := Count(room)
	switch {
	case !ballot.Complete || len(ballot.Leaders) == 0:
		return Resolution{State: ResolutionPending}, nil
	case len(ballot.Leaders) == 1:
		return t.settle(ctx, roomID, ballot.Leaders[0])
	case room.Tiebreak() == domain.TiebreakHost:
		return Resolution{State: ResolutionAwaitingHost, Tied: ballot.Leaders}, nil
	}

	pick := ballot.Leaders[t.rnd.IntN(len(ballot.Leaders))]
	t.log.Info().Str("room_id", roomID).Strs("tied", ballot.Leaders).Str("pick", pick).Msg("tie broken at random")
	return t.settle(ctx, roomID, pick)
}

// settle finalizes on behalf of the automatic resolution, where losing the
// race to another client is not an error.
func (t *TopicSelector) settle(ctx context.Context, roomID, title string) (Resolution, error) {
	res, err := t.finalize(ctx, roomID, title)
	if errors.Is(err, domain.ErrTopicAlreadyChosen) {
		return res, nil
	}
	return res, err
}

// Ballot is a read-only count of the votes of a room.
type Ballot struct {
	// Complete is set when every roster member votes for a current candidate.
	Complete bool
	// Leaders holds the titles with the most votes, in candidate order.
	Leaders []string
	Counts  map[string]int
}

func Count(room domain.Room) Ballot {
	candidates := room.Candidates()
	ballot := Ballot{Complete: len(room.Players) > 0, Counts: make(map[string]int, len(candidates))}
	if room.Phase != domain.PhaseChooseTopic {
		ballot.Complete = false
	}
	for id := range room.Players {
		topic, ok := room.FindCandidate(room.Votes[id])
		if !ok {
			ballot.Complete = false
			continue
		}
		ballot.Counts[topic.Title]++
	}

	best := 0
	for _, n := range ballot.Counts {
		best = max(best, n)
	}
	if best == 0 {
		return ballot
	}
	for _, c := range candidates {
		if ballot.Counts[c.Title] == best {
			ballot.Leaders = append(ballot.Leaders, c.Title)
		}
	}
	return ballot
}

// ForceChoose finalizes title immediately, bypassing the vote.
func (t *TopicSelector) ForceChoose(ctx context.Context, token HostToken, title string) (Resolution, error) {
	room, err := t.loadAsHost(ctx, token)
	if err != nil {
		return Resolution{}, err
	}
	if err := t.requireOpen(room); err != nil {
		return Resolution{}, err
	}
	if _, ok := room.FindCandidate(title); !ok {
		return Resolution{}, domain.ErrTopicNotFound
	}
	return t.finalize(ctx, token.roomID, title)
}

// SetTiebreakMethod switches between random and host tie-breaking.
func (t *TopicSelector) SetTiebreakMethod(ctx context.Context, token HostToken, method domain.TiebreakMethod) error {
	if !method.Valid() {
		return domain.ErrInvalidTiebreak
	}
	room, err := t.loadAsHost(ctx, token)
	if err != nil {
		return err
	}
	if room.Topic != nil {
		return domain.ErrTopicAlreadyChosen
	}
	return t.write(ctx, token.roomID, map[string]any{"tiebreakMethod": method})
}

// finalize commits title as the round's topic. It re-reads the room so a
// topic is never overwritten and its title is recorded exactly once.
func (t *TopicSelector) finalize(ctx context.Context, roomID, title string) (Resolution, error) {
	room, err := t.load(ctx, roomID)
	if err != nil {
		return Resolution{}, err
	}
	if room.Topic != nil {
		return Resolution{State: ResolutionFinalized, Topic: room.Topic}, domain.ErrTopicAlreadyChosen
	}
	topic, ok := room.FindCandidate(title)
	if !ok {
		return Resolution{}, domain.ErrTopicNotFound
	}
	fields := map[string]any{"topic": topic}
	fields["usedTitles/"+domain.TitleKey(topic.Title)] = true
	if err := advance(room, domain.PhaseDealCards, fields); err != nil {
		return Resolution{}, err
	}
	if err := t.write(ctx, roomID, fields); err != nil {
		return Resolution{}, err
	}
	t.log.Info().Str("room_id", roomID).Str("topic", topic.Title).Msg("topic finalized")
	if isCustom(room, topic) {
		t.record(ctx, roomID, topic)
	}
	return Resolution{State: ResolutionFinalized, Topic: &topic}, nil
}

func isCustom(room domain.Room, topic domain.Topic) bool {
	key := domain.TitleKey(topic.Title)
	if _, ok := room.CustomTopics[key]; !ok {
		return false
	}
	return !slices.ContainsFunc(room.TopicOptions, func(o domain.Topic) bool { return domain.TitleKey(o.Title) == key })
}

// record adds a played custom prompt to the catalog. Failures only cost the
// catalog an entry, so they are logged and dropped.
func (t *TopicSelector) record(ctx context.Context, roomID string, topic domain.Topic) {
	recorder, ok := t.topics.(TopicRecorder)
	if !ok {
		return
	}
	err := recorder.AddTopic(ctx, topic)
	if err != nil && !errors.Is(err, domain.ErrTopicAlreadyExists) {
		t.log.Warn().Err(err).Str("room_id", roomID).Str("topic", topic.Title).Msg("custom topic not recorded")
	}
}

func (t *TopicSelector) requireOpen(room domain.Room) error {
	if room.Topic != nil {
		return domain.ErrTopicAlreadyChosen
	}
	return room.Phase.Require(domain.PhaseChooseTopic)
}
