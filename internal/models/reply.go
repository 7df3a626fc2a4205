package models

// GenerateRequest is what a generative reply provider receives for one turn.
type GenerateRequest struct {
	SystemPrompt string
	History      []Message
	Current      string
	Language     string
}
