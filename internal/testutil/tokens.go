package testutil

import "sync/atomic"

// DefaultSessionToken is what FixedTokenGenerator returns for an empty token.
const DefaultSessionToken = "test-session-default"

// FixedTokenGenerator returns the same session token for every engine
// start, so log lines and traces from repeated scenario runs are
// byte-identical. It implements engine.TokenGenerator.
//
// Restarted engines reuse the token, so traces stay stable.
type FixedTokenGenerator struct {
	token string
	calls atomic.Int64
}

// NewFixedTokenGenerator creates a generator that always returns token.
func NewFixedTokenGenerator(token string) *FixedTokenGenerator {
	if token == "" {
		token = DefaultSessionToken
	}
	return &FixedTokenGenerator{token: token}
}

// Generate returns the fixed token.
func (g *FixedTokenGenerator) Generate() string {
	g.calls.Add(1)
	return g.token
}

// Calls reports how many sessions were started with this generator.
func (g *FixedTokenGenerator) Calls() int {
	return int(g.calls.Load())
}
