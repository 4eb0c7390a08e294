// Package news provides same-day event lookups for the screener. Events
// tag candidates for scoring; they never remove a symbol from the run.
package news

import (
	"strings"
	"time"
)

type Sentiment int

const (
	SentimentNeutral Sentiment = iota
	SentimentPositive
	SentimentAdverse
)

type Event struct {
	Symbol    string
	Headline  string
	Sentiment Sentiment
}

// Provider yields the events published on a given UTC calendar date.
type Provider interface {
	Events(date time.Time) map[string][]Event
}

var adverseKeywords = []string{
	"probe", "investigation", "fraud", "default", "downgrade",
	"lawsuit", "recall", "resign", "penalty", "halt",
}

var positiveKeywords = []string{
	"beats", "upgrade", "buyback", "order win", "approval",
	"record", "dividend", "expansion",
}

// Classify derives sentiment from headline keywords.
func Classify(headline string) Sentiment {
	h := strings.ToLower(headline)
	for _, kw := range adverseKeywords {
		if strings.Contains(h, kw) {
			return SentimentAdverse
		}
	}
	for _, kw := range positiveKeywords {
		if strings.Contains(h, kw) {
			return SentimentPositive
		}
	}
	return SentimentNeutral
}

// StaticProvider is a fixed in-memory event feed keyed by date, used by
// backtests and tests.
type StaticProvider struct {
	byDate map[string][]Event
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{byDate: make(map[string][]Event)}
}

func (p *StaticProvider) Add(date time.Time, symbol, headline string) {
	key := date.UTC().Format("2006-01-02")
	p.byDate[key] = append(p.byDate[key], Event{
		Symbol:    symbol,
		Headline:  headline,
		Sentiment: Classify(headline),
	})
}

func (p *StaticProvider) Events(date time.Time) map[string][]Event {
	out := make(map[string][]Event)
	for _, e := range p.byDate[date.UTC().Format("2006-01-02")] {
		out[e.Symbol] = append(out[e.Symbol], e)
	}
	return out
}

// NoEvents is a Provider with an empty feed.
type NoEvents struct{}

func (NoEvents) Events(time.Time) map[string][]Event { return nil }
