package domain

import (
	"cmp"
	"net/url"
	"slices"
	"strings"
)

// Value domain of a card.
const (
	MinCardValue = 1
	MaxCardValue = 100
	DeckSize     = MaxCardValue - MinCardValue + 1
)

type Player struct {
	Nickname  string `json:"nickname"`
	Color     string `json:"color,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	JoinedAt  int64  `json:"joinedAt"`
}

type Topic struct {
	Title string `json:"title"`
	Min   string `json:"min,omitempty"`
	Max   string `json:"max,omitempty"`
	Set   string `json:"set,omitempty"`
}

type Card struct {
	Value    int  `json:"value"`
	Revealed bool `json:"revealed"`
}

// Placement is one entry of the card order. A placement is owned by the card it
// carries, so a player holding a single card owns at most one entry.
type Placement struct {
	PlayerID string `json:"playerId"`
	Value    int    `json:"cardValue"`
	Revealed bool   `json:"revealed"`
}

type Room struct {
	HostID         string            `json:"hostId"`
	Phase          Phase             `json:"phase"`
	Players        map[string]Player `json:"players,omitempty"`
	Topic          *Topic            `json:"topic,omitempty"`
	TopicOptions   []Topic           `json:"topicOptions,omitempty"`
	CustomTopics   map[string]Topic  `json:"customTopics,omitempty"`
	Votes          map[string]string `json:"votes,omitempty"`
	TiebreakMethod TiebreakMethod    `json:"tiebreakMethod,omitempty"`
	UsedTitles     map[string]bool   `json:"usedTitles,omitempty"`
	Cards          map[string][]Card `json:"cards,omitempty"`
	CardOrder      []Placement       `json:"cardOrder,omitempty"`
	Level          int               `json:"level,omitempty"`
	Verdict        Verdict           `json:"verdict,omitempty"`
	MaxClearLevel  int               `json:"maxClearLevel,omitempty"`
	LastUpdated    int64             `json:"lastUpdated"`
}

// TitleKey turns a topic title into a single store path segment.
func TitleKey(title string) string {
	return url.PathEscape(strings.TrimSpace(title))
}

// TitleFromKey reverses TitleKey.
func TitleFromKey(key string) string {
	if title, err := url.PathUnescape(key); err == nil {
		return title
	}
	return key
}

// UsedTitleList returns the played titles, sorted.
func (r Room) UsedTitleList() []string {
	titles := make([]string, 0, len(r.UsedTitles))
	for key, used := range r.UsedTitles {
		if used {
			titles = append(titles, TitleFromKey(key))
		}
	}
	slices.Sort(titles)
	return titles
}

func (r Room) HasPlayer(id string) bool {
	_, ok := r.Players[id]
	return ok
}

func (r Room) IsHost(id string) bool {
	return id != "" && r.HostID == id
}

// PlayerIDs returns the roster ordered by join time, ties broken by id.
func (r Room) PlayerIDs() []string {
	ids := make([]string, 0, len(r.Players))
	for id := range r.Players {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		if c := cmp.Compare(r.Players[a].JoinedAt, r.Players[b].JoinedAt); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return ids
}

func (r Room) Tiebreak() TiebreakMethod {
	if r.TiebreakMethod.Valid() {
		return r.TiebreakMethod
	}
	return TiebreakRandom
}

func (r Room) IsTitleUsed(title string) bool {
	return r.UsedTitles[TitleKey(title)]
}

// Candidates is the union of the generated options and the custom proposals,
// generated options first.
func (r Room) Candidates() []Topic {
	out := make([]Topic, 0, len(r.TopicOptions)+len(r.CustomTopics))
	seen := make(map[string]bool, cap(out))
	for _, t := range r.TopicOptions {
		k := TitleKey(t.Title)
		if !seen[k] {
			seen[k] = true
			out = append(out, t)
		}
	}
	custom := make([]string, 0, len(r.CustomTopics))
	for k := range r.CustomTopics {
		custom = append(custom, k)
	}
	slices.Sort(custom)
	for _, k := range custom {
		if !seen[k] {
			seen[k] = true
			out = append(out, r.CustomTopics[k])
		}
	}
	return out
}

func (r Room) FindCandidate(title string) (Topic, bool) {
	key := TitleKey(title)
	for _, t := range r.Candidates() {
		if TitleKey(t.Title) == key {
			return t, true
		}
	}
	return Topic{}, false
}

// ActiveCardCount counts the dealt cards still held by roster members.
func (r Room) ActiveCardCount() int {
	n := 0
	for id, cards := range r.Cards {
		if r.HasPlayer(id) {
			n += len(cards)
		}
	}
	return n
}

func (r Room) Holds(playerID string, value int) bool {
	return slices.ContainsFunc(r.Cards[playerID], func(c Card) bool { return c.Value == value })
}

func (r Room) AllRevealed() bool {
	if len(r.CardOrder) == 0 {
		return false
	}
	for _, p := range r.CardOrder {
		if !p.Revealed {
			return false
		}
	}
	return true
}

// User is the device-level record kept for the inactive-user purge.
type User struct {
	Nickname   string `json:"nickname,omitempty"`
	AvatarURL  string `json:"avatarUrl,omitempty"`
	LastActive int64  `json:"lastActive"`
}
