package state

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/jwebster45206/d20"
)

// Roller draws a uniform integer in [1, sides].
type Roller interface {
	Roll(sides int) int
}

// RollerFunc adapts a function to Roller.
type RollerFunc func(sides int) int

func (f RollerFunc) Roll(sides int) int { return f(sides) }

// Sequence returns a Roller that replays values in order, cycling.
func Sequence(values ...int) Roller {
	var (
		mu sync.Mutex
		i  int
	)
	return RollerFunc(func(int) int {
		mu.Lock()
		defer mu.Unlock()
		v := values[i%len(values)]
		i++
		return v
	})
}

type diceRoller struct {
	mu   sync.Mutex
	dice *d20.Roller
}

// NewRoller returns a Roller backed by a seeded d20 roller. The same seed
// always yields the same sequence of rolls.
func NewRoller(seed int64) Roller {
	return &diceRoller{dice: d20.NewRoller(seed)}
}

// Roll returns 0 when sides is not positive.
func (r *diceRoller) Roll(sides int) int {
	if sides <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out, err := r.dice.Dice(1, uint(sides)).Roll()
	if err != nil {
		return 0
	}
	return out.Value
}

// NewSeed reads a seed from crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
