package domain

// Prompt is one chat completion request to the generative provider.
type Prompt struct {
	System    string
	User      string
	WebSearch bool // ask the provider to ground the answer in live web results
}
