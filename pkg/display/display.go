// Package display holds the DOM-equivalent collaborators of the request
// client: input fields that are read at submission time and targets that
// receive response text.
package display

import (
	"fmt"
	"io"
	"sync"
)

// Target receives rendered text. Implementations must be safe for
// concurrent use; overlapping responses race to write and the last one wins.
type Target interface {
	SetText(text string)
}

// Input is a field whose current value is read at submission time.
type Input interface {
	Value() string
}

// Element is an in-memory output element.
type Element struct {
	id   string
	mu   sync.RWMutex
	text string
}

// NewElement returns an empty element with the given id.
func NewElement(id string) *Element {
	return &Element{id: id}
}

func (e *Element) ID() string { return e.id }

func (e *Element) SetText(text string) {
	e.mu.Lock()
	e.text = text
	e.mu.Unlock()
}

// Text returns the element's current text.
func (e *Element) Text() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.text
}

// Field is an in-memory input field.
type Field struct {
	id    string
	mu    sync.RWMutex
	value string
}

// NewField returns a field with the given id and initial value.
func NewField(id, value string) *Field {
	return &Field{id: id, value: value}
}

func (f *Field) ID() string { return f.id }

func (f *Field) Value() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.value
}

func (f *Field) SetValue(v string) {
	f.mu.Lock()
	f.value = v
	f.mu.Unlock()
}

// Console prints every rendered text as a "[id] text" line.
type Console struct {
	id  string
	mu  *sync.Mutex
	out io.Writer
}

// NewConsole returns a Target writing to out. Consoles created with
// ShareWriter serialize their writes on the same lock.
func NewConsole(id string, out io.Writer) *Console {
	return &Console{id: id, mu: &sync.Mutex{}, out: out}
}

// ShareWriter returns a console for id writing to the same writer and lock as c.
func (c *Console) ShareWriter(id string) *Console {
	return &Console{id: id, mu: c.mu, out: c.out}
}

func (c *Console) ID() string { return c.id }

func (c *Console) SetText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "[%s] %s\n", c.id, text)
}

type multi []Target

// Multi fans text out to every non-nil target in order.
func Multi(targets ...Target) Target {
	out := make(multi, 0, len(targets))
	for _, t := range targets {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

// ID returns the id of the first target that has one.
func (m multi) ID() string {
	for _, t := range m {
		if idt, ok := t.(interface{ ID() string }); ok {
			return idt.ID()
		}
	}
	return ""
}

func (m multi) SetText(text string) {
	for _, t := range m {
		t.SetText(text)
	}
}
