package display

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// DefaultPageHTML mirrors the page the client was written against.
const DefaultPageHTML = `<!DOCTYPE html>
<html>
  <head>
    <title>Form Example</title>
    <meta charset="UTF-8">
  </head>
  <body>
    <h1>Form with GET</h1>
    <form action="/hello">
      <label for="name">Name:</label><br>
      <input type="text" id="name" name="name" value="John"><br><br>
      <input type="button" value="Submit" onclick="loadGetMsg()">
    </form>
    <div id="getrespmsg"></div>

    <h1>Form with POST</h1>
    <form action="/hellopost">
      <label for="postname">Name:</label><br>
      <input type="text" id="postname" name="name" value="John"><br><br>
      <input type="button" value="Submit" onclick="loadPostMsg(postname)">
    </form>
    <div id="postrespmsg"></div>
  </body>
</html>
`

// Page is an HTML document whose elements act as inputs and display targets.
type Page struct {
	mu  sync.Mutex
	doc *goquery.Document
}

// ParsePage parses an HTML document.
func ParsePage(r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Page{doc: doc}, nil
}

// LoadPage reads and parses the HTML file at path.
func LoadPage(path string) (*Page, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	return ParsePage(bytes.NewReader(raw))
}

// DefaultPage returns the built-in page.
func DefaultPage() *Page {
	p, err := ParsePage(strings.NewReader(DefaultPageHTML))
	if err != nil {
		// the built-in document is static
		panic(err)
	}
	return p
}

func byID(id string) string {
	return fmt.Sprintf(`[id=%q]`, id)
}

// Has reports whether an element with the id exists.
func (p *Page) Has(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Find(byID(id)).Length() > 0
}

// InputValue returns the value attribute of the element with the id.
func (p *Page) InputValue(id string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	val, _ := p.doc.Find(byID(id)).First().Attr("value")
	return val
}

// SetInputValue sets the value attribute of the element with the id.
func (p *Page) SetInputValue(id, value string) {
	p.mu.Lock()
	p.doc.Find(byID(id)).First().SetAttr("value", value)
	p.mu.Unlock()
}

// OutputText returns the text content of the element with the id.
func (p *Page) OutputText(id string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Find(byID(id)).First().Text()
}

// SetOutputText replaces the children of the element with the text, like innerText.
func (p *Page) SetOutputText(id, text string) {
	p.mu.Lock()
	p.doc.Find(byID(id)).First().SetText(text)
	p.mu.Unlock()
}

// Input returns the element with the id as an Input.
func (p *Page) Input(id string) Input { return pageInput{page: p, id: id} }

// Output returns the element with the id as a Target.
func (p *Page) Output(id string) Target { return pageOutput{page: p, id: id} }

// HTML renders the current document.
func (p *Page) HTML() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doc.Html()
}

// WriteFile renders the document to path, creating parent directories.
func (p *Page) WriteFile(path string) error {
	html, err := p.HTML()
	if err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create page directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write page: %w", err)
	}
	return nil
}

type pageInput struct {
	page *Page
	id   string
}

func (i pageInput) ID() string { return i.id }

func (i pageInput) Value() string { return i.page.InputValue(i.id) }

type pageOutput struct {
	page *Page
	id   string
}

func (o pageOutput) ID() string { return o.id }

func (o pageOutput) SetText(text string) { o.page.SetOutputText(o.id, text) }
