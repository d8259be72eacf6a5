package tracker

// idGenerator is a counter for generating the next incremental tracker ID.
// It only ever counts upwards so an ID is never handed out twice, even after
// the Registry has been reset.
type idGenerator struct {
	next int
}

// Next returns the next incremental ID, starting at zero
func (g *idGenerator) Next() int {
	id := g.next
	g.next++
	return id
}

// Peek returns the ID that will be handed out next
func (g *idGenerator) Peek() int {
	return g.next
}
