package llm

import "encoding/json"

// Item is one element of a model response. The set of implementations is
// closed: consumers switch over the concrete types and treat anything else
// as an error.
type Item interface {
	isItem()
}

// TextItem is free text.
type TextItem struct {
	Text string
}

// ToolCallItem is a request to run a local tool.
type ToolCallItem struct {
	Call *ToolCall
}

// AnswerItem is raw JSON the model produced under an output schema. It has
// not been validated yet.
type AnswerItem struct {
	Raw json.RawMessage
}

// BuiltinToolItem reports a tool the provider ran on its own side, such as
// hosted web search. Nothing has to be executed locally.
type BuiltinToolItem struct {
	Name   string
	Status string
}

func (TextItem) isItem()        {}
func (ToolCallItem) isItem()    {}
func (AnswerItem) isItem()      {}
func (BuiltinToolItem) isItem() {}
