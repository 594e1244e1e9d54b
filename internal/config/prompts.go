package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultMultiQueryPrompt asks for {n} rephrasings of {question}, one per line.
const DefaultMultiQueryPrompt = `You are an AI language model assistant. Your task is to generate {n} different versions of the given user question to retrieve relevant documents from a vector database. By generating multiple perspectives on the user question, your goal is to help the user overcome some of the limitations of distance-based similarity search. Provide these alternative questions separated by newlines and output nothing else.
Original question: {question}`

// DefaultAnswerPrompt renders {context} and {question}; the model is asked for HTML, not Markdown.
const DefaultAnswerPrompt = `Answer the question based ONLY on the following context.
Format the answer as HTML:
- use <b> for emphasis and <br> for line breaks
- use <ul> and <li> for lists
- wrap each point in <p> tags
- do not use Markdown syntax

Context:
{context}

Question: {question}

Answer:
Provide the answer point-wise, like:
<p>1. First point.</p>
<p>2. Second point.</p>`

type Prompts struct {
	MultiQuery string `yaml:"multi_query"`
	Answer     string `yaml:"answer"`
}

func DefaultPrompts() Prompts {
	return Prompts{
		MultiQuery: DefaultMultiQueryPrompt,
		Answer:     DefaultAnswerPrompt,
	}
}

// LoadPrompts returns the default prompts overlaid with any keys set in the YAML file at path.
// An empty path yields the defaults.
func LoadPrompts(path string) (Prompts, error) {
	p := DefaultPrompts()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read prompts file: %w", err)
	}

	var override Prompts
	if err := yaml.Unmarshal(data, &override); err != nil {
		return p, fmt.Errorf("parse prompts file: %w", err)
	}
	if override.MultiQuery != "" {
		p.MultiQuery = override.MultiQuery
	}
	if override.Answer != "" {
		p.Answer = override.Answer
	}
	return p, nil
}
