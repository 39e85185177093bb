package card

import (
	"log"

	"holdem-core/pkg/rng"
)

const size = 52

// Deck is a monotonic-cursor sequence over all 52 distinct cards.
// deckIdx <= 52 except transiently during reshuffle; every card appears
// exactly once before a reshuffle occurs.
type Deck struct {
	cards  [size]Card
	idx    int
	rngSys *rng.System
	audit  *rng.AuditLogger
}

// NewShuffledDeck produces all 52 cards in a uniformly random permutation.
func NewShuffledDeck(rngSys *rng.System, audit *rng.AuditLogger) *Deck {
	d := &Deck{rngSys: rngSys, audit: audit}
	d.reset()
	d.shuffle()
	return d
}

func (d *Deck) reset() {
	i := 0
	for s := Clubs; s <= Spades; s++ {
		for r := Two; r <= Ace; r++ {
			d.cards[i] = New(r, s)
			i++
		}
	}
	d.idx = 0
}

func (d *Deck) shuffle() {
	d.rngSys.Shuffle(size, func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// DealCard deals the next card. If the deck is exhausted this is an
// unexpected path in normal play (52 cards cover 10 players x 2 hole + 5
// board + burns); it logs and reshuffles in place rather than panicking.
func (d *Deck) DealCard() Card {
	if d.idx >= size {
		log.Printf("WARN card: deck exhausted at idx=%d, reshuffling defensively", d.idx)
		before := d.snapshot()
		d.reset()
		d.shuffle()
		if d.audit != nil {
			d.audit.LogShuffleEvent(&rng.ShuffleAuditEvent{
				Algorithm:  "Fisher-Yates",
				PRNG:       "AES-CTR-256",
				DeckBefore: before,
				DeckAfter:  d.snapshot(),
			})
		}
	}
	c := d.cards[d.idx]
	d.idx++
	return c
}

// DealN deals n cards in sequence.
func (d *Deck) DealN(n int) []Card {
	out := make([]Card, n)
	for i := 0; i < n; i++ {
		out[i] = d.DealCard()
	}
	return out
}

// Remaining reports how many cards are left before a reshuffle would trigger.
func (d *Deck) Remaining() int { return size - d.idx }

func (d *Deck) snapshot() []int {
	ids := make([]int, size)
	for i, c := range d.cards {
		ids[i] = c.ID()
	}
	return ids
}
