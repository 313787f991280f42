package game

import (
	"context"
	"ito/internal/domain"
	"sync"
)

// CustomSet names the set of prompts that came from players' proposals.
const CustomSet = "custom"

// Catalog is an in-memory list of prompts drawn without replacement.
type Catalog struct {
	mu     sync.RWMutex
	topics []domain.Topic
	rnd    Random
}

func NewCatalog(topics []domain.Topic, rnd Random) *Catalog {
	if rnd == nil {
		rnd = GlobalRandom()
	}
	return &Catalog{topics: topics, rnd: rnd}
}

func (c *Catalog) Draw(ctx context.Context, n int, exclude []string) ([]domain.Topic, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	skip := make(map[string]bool, len(exclude))
	for _, title := range exclude {
		skip[domain.TitleKey(title)] = true
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Topic, 0, n)
	for _, i := range c.rnd.Perm(len(c.topics)) {
		if len(out) == n {
			break
		}
		if t := c.topics[i]; !skip[domain.TitleKey(t.Title)] {
			out = append(out, t)
		}
	}
	return out, nil
}

// AddTopic appends t unless a prompt with the same title exists.
func (c *Catalog) AddTopic(ctx context.Context, t domain.Topic) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := domain.TitleKey(t.Title)
	for _, existing := range c.topics {
		if domain.TitleKey(existing.Title) == key {
			return domain.ErrTopicAlreadyExists
		}
	}
	c.topics = append(c.topics, t)
	return nil
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.topics)
}

// CuratedTopics is the built-in prompt set used when no database is configured.
var CuratedTopics = NewCatalog([]domain.Topic{
	{Title: "Popularity of a food", Min: "nobody eats it", Max: "everyone loves it", Set: "classic"},
	{Title: "Strength of an animal", Min: "feeble", Max: "unbeatable", Set: "classic"},
	{Title: "Size of a living thing", Min: "microscopic", Max: "enormous", Set: "classic"},
	{Title: "Usefulness on a desert island", Min: "useless", Max: "life saving", Set: "classic"},
	{Title: "How scary a situation is", Min: "relaxing", Max: "terrifying", Set: "classic"},
	{Title: "Value of a gift", Min: "disappointing", Max: "unforgettable", Set: "classic"},
	{Title: "Coolness of a job", Min: "dull", Max: "dream job", Set: "classic"},
	{Title: "Fame of a person", Min: "unknown", Max: "world famous", Set: "classic"},
	{Title: "Speed of a vehicle", Min: "crawling", Max: "lightning fast", Set: "classic"},
	{Title: "Price of an item", Min: "free", Max: "priceless", Set: "classic"},
	{Title: "How happy a moment makes you", Min: "miserable", Max: "ecstatic", Set: "classic"},
	{Title: "Difficulty of a sport", Min: "anyone can do it", Max: "elite only", Set: "classic"},
	{Title: "Spiciness of a dish", Min: "mild", Max: "volcanic", Set: "classic"},
	{Title: "Weirdness of a hobby", Min: "ordinary", Max: "bizarre", Set: "classic"},
	{Title: "Age of a thing", Min: "brand new", Max: "ancient", Set: "classic"},
	{Title: "How romantic a date spot is", Min: "awkward", Max: "magical", Set: "classic"},
	{Title: "Smell of something", Min: "unbearable", Max: "heavenly", Set: "senses"},
	{Title: "Loudness of a sound", Min: "silent", Max: "deafening", Set: "senses"},
	{Title: "Softness of a material", Min: "rock hard", Max: "cloud soft", Set: "senses"},
	{Title: "Sweetness of a snack", Min: "bitter", Max: "sugar overload", Set: "senses"},
	{Title: "Brightness of a light", Min: "pitch dark", Max: "blinding", Set: "senses"},
	{Title: "Popularity of a movie", Min: "flop", Max: "blockbuster", Set: "culture"},
	{Title: "Catchiness of a song", Min: "forgettable", Max: "stuck for weeks", Set: "culture"},
	{Title: "Power of a superhero", Min: "sidekick", Max: "cosmic", Set: "culture"},
	{Title: "Strength of a villain", Min: "harmless", Max: "world ending", Set: "culture"},
	{Title: "Danger of a place", Min: "safe", Max: "deadly", Set: "world"},
	{Title: "Distance of a trip", Min: "next door", Max: "other side of the planet", Set: "world"},
	{Title: "Heat of a place", Min: "frozen", Max: "scorching", Set: "world"},
	{Title: "How much you would pay for a skill", Min: "nothing", Max: "everything", Set: "life"},
	{Title: "Embarrassment of a mistake", Min: "shrug", Max: "change your name", Set: "life"},
	{Title: "Stress of an event", Min: "calm", Max: "panic", Set: "life"},
	{Title: "Usefulness of an invention", Min: "pointless", Max: "changed the world", Set: "life"},
}, nil)
