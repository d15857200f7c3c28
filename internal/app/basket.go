package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const basketStorageKey = "agentos_basket"

// Basket is the local clipboard of dropped text fragments. It shares the
// key-value store with the session cache and has the same failure posture:
// unreadable storage reads as empty, write failures are logged.
type Basket struct {
	storage Storage
	logger  *Logger
	now     func() time.Time
}

func NewBasket(storage Storage, logger *Logger) *Basket {
	return &Basket{storage: storage, logger: logger, now: time.Now}
}

func (b *Basket) Items() []BasketItem {
	raw, err := b.storage.Get(basketStorageKey)
	if err != nil {
		return nil
	}
	var items []BasketItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	return items
}

func (b *Basket) Add(text string) BasketItem {
	item := BasketItem{
		ID:      uuid.NewString(),
		Text:    text,
		SavedAt: b.now(),
	}
	b.save(append(b.Items(), item))
	return item
}

func (b *Basket) Remove(id string) {
	items := b.Items()
	kept := items[:0]
	for _, it := range items {
		if it.ID != id {
			kept = append(kept, it)
		}
	}
	b.save(kept)
}

func (b *Basket) Clear() {
	if err := b.storage.Delete(basketStorageKey); err != nil {
		b.logger.Warn("failed to clear basket", map[string]interface{}{"error": err.Error()})
	}
}

func (b *Basket) save(items []BasketItem) {
	raw, err := json.Marshal(items)
	if err == nil {
		err = b.storage.Set(basketStorageKey, raw)
	}
	if err != nil {
		b.logger.Warn("failed to persist basket", map[string]interface{}{"error": err.Error()})
	}
}

// Summarize sends the basket fragments to the server and returns the
// generated summary.
func (b *Basket) Summarize(ctx context.Context, client *Client, workspaceID, groupID, agentID, instruction string) (string, error) {
	items := b.Items()
	fragments := make([]string, 0, len(items))
	for _, it := range items {
		fragments = append(fragments, it.Text)
	}
	return client.Summarize(ctx, fragments, workspaceID, groupID, agentID, instruction)
}
