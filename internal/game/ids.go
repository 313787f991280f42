package game

import "strings"

type RoomIDGenerator interface {
	Generate() string
}

// Room codes avoid look-alike characters so they can be read out loud.
const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
)

type codeGenerator struct {
	rnd Random
}

func NewCodeGenerator(rnd Random) RoomIDGenerator {
	if rnd == nil {
		rnd = GlobalRandom()
	}
	return &codeGenerator{rnd: rnd}
}

func (g *codeGenerator) Generate() string {
	var b strings.Builder
	b.Grow(codeLength)
	for range codeLength {
		b.WriteByte(codeAlphabet[g.rnd.IntN(len(codeAlphabet))])
	}
	return b.String()
}
