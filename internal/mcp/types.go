// Package mcp exposes the chatbot as Model Context Protocol tools.
package mcp

// AskDocumentsInput defines the input parameters for the ask_documents tool.
type AskDocumentsInput struct {
	// Question is answered from the uploaded document when one is active, otherwise
	// from the system documents.
	Question string `json:"question" jsonschema:"The question to answer from the indexed documents"`
}

// AskDocumentsOutput contains the generated answer.
type AskDocumentsOutput struct {
	Answer        string `json:"answer"`
	UsingUserFile bool   `json:"using_user_file"`
}

// CorpusStatusInput takes no parameters.
type CorpusStatusInput struct{}

// CorpusStatusOutput reports which corpora are ready.
type CorpusStatusOutput struct {
	State        string `json:"state"`
	UserReady    bool   `json:"user_ready"`
	SystemReady  bool   `json:"system_ready"`
	UserFile     string `json:"user_file,omitempty"`
	UserChunks   int    `json:"user_chunks"`
	SystemChunks int    `json:"system_chunks"`
}
