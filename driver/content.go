package driver

// Line is one typed content line of an outbound message. The wire shape is
// a JSON object carrying "type" plus the fields relevant to that type.
type Line struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Name  string `json:"name,omitempty"`
	Label string `json:"label,omitempty"`
	URL   string `json:"url,omitempty"`
	Value string `json:"value,omitempty"`
}

// Content builds the ordered list of typed lines a driver sends to its
// channel. How the lines are rendered is entirely up to the client.
type Content struct {
	lines []Line
}

func (c *Content) add(line Line) {
	c.lines = append(c.lines, line)
}

// Spinner adds a progress indicator line.
func (c *Content) Spinner() {
	c.add(Line{Type: "spinner"})
}

// Text adds a static text line.
func (c *Content) Text(text string) {
	c.add(Line{Type: "text", Text: text})
}

// Input adds a plain text input field.
func (c *Content) Input(name, label string) {
	c.add(Line{Type: "input", Name: name, Label: label})
}

// Password adds a masked input field.
func (c *Content) Password(name, label string) {
	c.add(Line{Type: "password", Name: name, Label: label})
}

// Checkbox adds a checkbox field.
func (c *Content) Checkbox(name, label string) {
	c.add(Line{Type: "checkbox", Name: name, Label: label})
}

// Submit adds a submit button; value distinguishes multiple buttons in one
// form.
func (c *Content) Submit(text, value string) {
	c.add(Line{Type: "submit", Text: text, Value: value})
}

// Link adds a link the human is expected to follow.
func (c *Content) Link(url, text string) {
	c.add(Line{Type: "link", URL: url, Text: text})
}

// Lines returns the built lines in insertion order.
func (c *Content) Lines() []Line {
	return c.lines
}
