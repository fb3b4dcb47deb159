package collections

import (
	"context"
	"strings"

	"schoolmaps/internal/pkg/wire"
)

// DecksQuery lists the caller's decks of one subject, newest first.
func DecksQuery(uid, subject string) wire.Query {
	return wire.Query{
		Collection: DecksCollection(uid),
		Filters:    []wire.Filter{{Field: "subject", Value: subject}},
		OrderBy:    "createdAt",
		Desc:       true,
	}
}

// CardsQuery lists the cards of a deck in the order they were added.
func CardsQuery(uid, deckID string) wire.Query {
	return wire.Query{Collection: CardsCollection(uid, deckID), OrderBy: "createdAt"}
}

func (s *Service) CreateDeck(ctx context.Context, o Owner, name, subject string) (string, error) {
	if err := s.allowed(o); err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(subject) == "" {
		return "", s.invalid("error_empty_deck_name")
	}

	data, err := fields(FlashcardDeck{Name: name, Subject: subject, OwnerID: o.UID, CreatedAt: stamp(s.now())})
	if err != nil {
		return "", s.failed("encode deck", err)
	}
	id, err := s.store.Create(ctx, DecksCollection(o.UID), data)
	if err != nil {
		return "", s.failed("create deck", err)
	}
	s.notify("deck_added_success", nil)
	return id, nil
}

// DeleteDeck removes the deck and all of its cards in one batch.
func (s *Service) DeleteDeck(ctx context.Context, o Owner, deckID string) error {
	if err := s.allowed(o); err != nil {
		return err
	}

	cards := CardsCollection(o.UID, deckID)
	docs, err := s.store.Query(ctx, wire.Query{Collection: cards, Limit: 500})
	if err != nil {
		return s.failed("list cards", err)
	}

	ops := make([]wire.Op, 0, len(docs)+1)
	for _, d := range docs {
		ops = append(ops, wire.Op{Kind: wire.OpDelete, Collection: cards, ID: d.ID})
	}
	ops = append(ops, wire.Op{Kind: wire.OpDelete, Collection: DecksCollection(o.UID), ID: deckID})

	if _, err := s.store.Batch(ctx, ops); err != nil {
		return s.failed("delete deck", err)
	}
	s.notify("deck_deleted_success", nil)
	return nil
}

// CardInput is one row of the add-cards form.
type CardInput struct {
	Question string
	Answer   string
}

// AddCards stores every complete row and bumps the deck's card count in the same
// batch. It returns the number of cards added.
func (s *Service) AddCards(ctx context.Context, o Owner, deckID string, rows []CardInput) (int, error) {
	if err := s.allowed(o); err != nil {
		return 0, err
	}

	now := stamp(s.now())
	cards := CardsCollection(o.UID, deckID)

	var ops []wire.Op
	for _, r := range rows {
		q, a := strings.TrimSpace(r.Question), strings.TrimSpace(r.Answer)
		if q == "" || a == "" {
			continue
		}
		data, err := fields(Flashcard{Question: r.Question, Answer: r.Answer, OwnerID: o.UID, CreatedAt: now})
		if err != nil {
			return 0, s.failed("encode card", err)
		}
		ops = append(ops, wire.Op{Kind: wire.OpSet, Collection: cards, Data: data})
	}
	if len(ops) == 0 {
		return 0, s.invalid("error_empty_flashcard")
	}

	added := len(ops)
	ops = append(ops, wire.Op{
		Kind:       wire.OpIncrement,
		Collection: DecksCollection(o.UID),
		ID:         deckID,
		Field:      "cardCount",
		Delta:      float64(added),
	})

	if _, err := s.store.Batch(ctx, ops); err != nil {
		return 0, s.failed("add cards", err)
	}
	s.notify("flashcard_added_success", nil)
	return added, nil
}
