// Command playtest plays one round of ito against bots in memory. The local
// device identity is the host seat; each bot opens its own session so the
// automatic steps run exactly as they do for remote clients.
package main

import (
	"context"
	"flag"
	"fmt"
	"ito/internal/domain"
	"ito/internal/game"
	"ito/internal/identity"
	"ito/internal/logger"
	"ito/internal/store"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	var (
		idFile   = flag.String("identity", ".ito-id", "file holding this device's player id")
		bots     = flag.Int("bots", 3, "number of bot players")
		level    = flag.Int("level", 1, "cards per player")
		careless = flag.Bool("careless", false, "bots place cards at random positions")
		seed     = flag.Uint64("seed", uint64(time.Now().UnixNano()), "random seed")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	lvl := "warn"
	if *verbose {
		lvl = "debug"
	}
	log := logger.Setup(lvl, true)

	hostID, err := identity.Load(*idFile)
	if err != nil {
		log.Fatal().Err(err).Msg("could not load identity")
	}

	rnd := game.SeededRandom(*seed)
	g := game.New(game.Options{
		Store:  store.NewMemory(),
		Random: rnd,
		Logger: log,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	verdict, err := play(ctx, g, log, hostID, *bots, *level, *careless, rnd)
	if err != nil {
		log.Error().Err(err).Msg("playtest failed")
		os.Exit(1)
	}
	fmt.Println("verdict:", verdict)
}

func play(ctx context.Context, g *game.Game, log zerolog.Logger, hostID string, bots, level int, careless bool, rnd game.Random) (domain.Verdict, error) {
	roomID, token, err := g.Roster.CreateRoom(ctx, hostID, domain.Player{Nickname: "you"})
	if err != nil {
		return "", err
	}
	players := []string{hostID}
	for i := range bots {
		id := uuid.NewString()
		if _, err := g.Roster.JoinRoom(ctx, roomID, id, domain.Player{Nickname: fmt.Sprintf("bot-%d", i+1)}); err != nil {
			return "", err
		}
		players = append(players, id)
	}

	verdicts := make(chan bool, 1)
	for _, id := range players {
		listener := game.ListenerFuncs{
			PhaseChanged: func(p domain.Phase) {
				log.Debug().Str("player_id", id).Str("phase", p.String()).Msg("phase")
			},
		}
		if id == hostID {
			listener.Verdict = func(success bool) {
				select {
				case verdicts <- success:
				default:
				}
			}
		}
		session, err := g.Open(ctx, roomID, id, listener)
		if err != nil {
			return "", err
		}
		defer session.Close()
	}

	options, err := g.Topics.StartTopicSelection(ctx, token)
	if err != nil {
		return "", err
	}
	fmt.Printf("room %s, topic options:\n", roomID)
	for _, t := range options {
		fmt.Printf("  %s (%s .. %s)\n", t.Title, t.Min, t.Max)
	}
	for _, id := range players {
		if _, err := g.Topics.Vote(ctx, roomID, id, options[rnd.IntN(len(options))].Title); err != nil {
			return "", err
		}
	}
	room, err := g.Room(ctx, roomID)
	if err != nil {
		return "", err
	}
	if room.Topic == nil {
		return "", fmt.Errorf("topic not resolved")
	}
	fmt.Println("topic:", room.Topic.Title)

	hands, err := g.Dealer.Deal(ctx, token, level)
	if err != nil {
		return "", err
	}
	for _, id := range players {
		for _, card := range hands[id] {
			room, err := g.Room(ctx, roomID)
			if err != nil {
				return "", err
			}
			index := 0
			if careless {
				index = rnd.IntN(len(room.CardOrder) + 1)
			} else {
				for _, p := range room.CardOrder {
					if p.Value < card.Value {
						index++
					}
				}
			}
			if _, err := g.Sequencer.PlaceCard(ctx, roomID, id, card.Value, index); err != nil {
				return "", err
			}
		}
	}

	for _, id := range players {
		if _, err := g.Revealer.RevealCard(ctx, roomID, id); err != nil {
			return "", err
		}
	}

	select {
	case success := <-verdicts:
		room, err := g.Room(ctx, roomID)
		if err != nil {
			return "", err
		}
		for _, p := range room.CardOrder {
			fmt.Printf("  %3d %s\n", p.Value, room.Players[p.PlayerID].Nickname)
		}
		if success {
			return domain.VerdictSuccess, nil
		}
		return domain.VerdictFailure, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
