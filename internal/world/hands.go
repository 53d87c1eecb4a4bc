package world

// PickUp places item in the holder's active hand. The hand must be free and
// the item must be loose and within interaction range.
func (w *World) PickUp(holderID, itemID string) bool {
	holder, ok := w.Entity(holderID)
	if !ok || holder.Hands == nil || holder.Hands.Count <= 0 || holder.Hands.Active != "" {
		return false
	}
	item, ok := w.Entity(itemID)
	if !ok || item.HeldBy != "" || item.Mob != nil || holderID == itemID {
		return false
	}
	if holder.Position.DistanceTo(item.Position) > w.config.InteractionRange {
		return false
	}
	item.HeldBy = holderID
	holder.Hands.Active = itemID
	w.notifyHandsChanged(holderID)
	return true
}

// Drop releases whatever the holder has in its active hand at its feet.
func (w *World) Drop(holderID string) (string, bool) {
	holder, ok := w.Entity(holderID)
	if !ok || holder.Hands == nil || holder.Hands.Active == "" {
		return "", false
	}
	itemID := holder.Hands.Active
	holder.Hands.Active = ""
	if item, ok := w.entities[itemID]; ok {
		item.HeldBy = ""
		item.Position = holder.Position
	}
	w.notifyHandsChanged(holderID)
	return itemID, true
}

// ActiveHandItem reports the item held in the active hand.
func (w *World) ActiveHandItem(holderID string) (string, bool) {
	holder, ok := w.Entity(holderID)
	if !ok || holder.Hands == nil || holder.Hands.Active == "" {
		return "", false
	}
	return holder.Hands.Active, true
}

// HasHands reports whether the entity has at least one hand.
func (w *World) HasHands(id string) bool {
	entity, ok := w.Entity(id)
	return ok && entity.Hands != nil && entity.Hands.Count > 0
}

// IsHolding reports whether holder has item in its active hand.
func (w *World) IsHolding(holderID, itemID string) bool {
	held, ok := w.ActiveHandItem(holderID)
	return ok && held == itemID
}
