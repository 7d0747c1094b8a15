// Package describe turns label counts into the sentence that gets spoken,
// e.g. "There are 2 chairs, one cup, and 3 bottles in front of you."
//
// The same Sentence function renders both the per-frame summary and the
// spoken announcement so the two never drift apart.
package describe

import (
	"fmt"
	"strings"
)

// Entry is one label with its count.
type Entry struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Counts is an insertion-ordered label → count mapping.
// Sentence preserves the order in which labels were first added.
// The zero value is ready to use.
type Counts struct {
	entries []Entry
	index   map[string]int
}

// Add increments label by n, appending it if this is its first appearance.
func (c *Counts) Add(label string, n int) {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	if i, ok := c.index[label]; ok {
		c.entries[i].Count += n
		return
	}
	c.index[label] = len(c.entries)
	c.entries = append(c.entries, Entry{Label: label, Count: n})
}

// Set assigns label's count, keeping its original position if already present.
func (c *Counts) Set(label string, n int) {
	if i, ok := c.index[label]; ok {
		c.entries[i].Count = n
		return
	}
	c.Add(label, n)
}

// Get returns the count for label.
func (c *Counts) Get(label string) int {
	if i, ok := c.index[label]; ok {
		return c.entries[i].Count
	}
	return 0
}

// Len returns the number of distinct labels.
func (c *Counts) Len() int {
	return len(c.entries)
}

// Entries returns a copy of the entries in insertion order.
func (c *Counts) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Labels returns the labels in insertion order.
func (c *Counts) Labels() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Label
	}
	return out
}

// FromLabels counts each occurrence of a label, in first-seen order.
func FromLabels(labels []string) Counts {
	var c Counts
	for _, l := range labels {
		c.Add(l, 1)
	}
	return c
}

// Phrase renders a single entry: "one chair" or "3 chairs".
func Phrase(e Entry) string {
	if e.Count > 1 {
		return fmt.Sprintf("%d %ss", e.Count, e.Label)
	}
	return "one " + e.Label
}

// Sentence renders counts as a spoken sentence.
// It returns "" for empty counts; callers must not announce an empty sentence.
func Sentence(c Counts) string {
	parts := make([]string, 0, c.Len())
	for _, e := range c.entries {
		parts = append(parts, Phrase(e))
	}

	switch len(parts) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("There is %s in front of you.", parts[0])
	case 2:
		return fmt.Sprintf("There are %s and %s in front of you.", parts[0], parts[1])
	default:
		last := len(parts) - 1
		return fmt.Sprintf("There are %s, and %s in front of you.",
			strings.Join(parts[:last], ", "), parts[last])
	}
}
