package dom

// Event is a synthetic DOM event recorded in the document journal. Pointer
// events carry the coordinates computed from the target's box so page code
// reading event geometry observes a realistic interaction.
type Event struct {
	Type       string
	Target     *Element
	X, Y       float64
	Bubbles    bool
	Cancelable bool
}

// On registers a listener for an event type on this element. Listeners fire
// for events targeted at the element and for bubbling events from descendants.
func (e *Element) On(eventType string, fn func(Event)) {
	if e.listeners == nil {
		e.listeners = make(map[string][]func(Event))
	}
	e.listeners[eventType] = append(e.listeners[eventType], fn)
}

// Dispatch records the event in the document journal and delivers it to the
// target's listeners, then to ancestors when the event bubbles.
func (e *Element) Dispatch(ev Event) {
	ev.Target = e
	e.doc.journal = append(e.doc.journal, ev)

	e.deliver(ev)
	if !ev.Bubbles {
		return
	}
	for p := e.Parent(); p != nil; p = p.Parent() {
		p.deliver(ev)
	}
}

func (e *Element) deliver(ev Event) {
	if e.listeners == nil {
		return
	}
	for _, fn := range e.listeners[ev.Type] {
		fn(ev)
	}
}

// Journal returns every event dispatched since the last ClearJournal, in order.
func (d *Document) Journal() []Event {
	return d.journal
}

// JournalTypes returns just the event type sequence; handy in tests.
func (d *Document) JournalTypes() []string {
	types := make([]string, len(d.journal))
	for i, ev := range d.journal {
		types[i] = ev.Type
	}
	return types
}

// ClearJournal discards recorded events.
func (d *Document) ClearJournal() {
	d.journal = nil
}
