package session

import (
	"errors"
	"strconv"
	"strings"

	"genstudio/internal/domain"
)

// Rule maps a failure predicate onto an error kind.
type Rule struct {
	Name  string
	Kind  domain.ErrorKind
	Match func(err error) bool
}

// Classifier evaluates rules in order; the first match wins and unmatched
// errors are generic.
type Classifier struct {
	rules []Rule
}

func NewClassifier(rules ...Rule) *Classifier {
	return &Classifier{rules: append([]Rule(nil), rules...)}
}

// DefaultRules checks expired sessions before quota exhaustion: an expired
// key can surface with an otherwise generic looking payload.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:  "entity-not-found",
			Kind:  domain.ErrorKindAuthExpired,
			Match: MessageContains("requested entity was not found", "entity was not found", "entity not found"),
		},
		{
			Name: "rate-limit",
			Kind: domain.ErrorKindRateLimited,
			Match: AnyOf(
				StatusIs(429),
				MessageContains("429", "resource_exhausted", "quota"),
			),
		},
	}
}

func DefaultClassifier() *Classifier {
	return NewClassifier(DefaultRules()...)
}

// Classify returns the kind of err. A nil error is generic.
func (c *Classifier) Classify(err error) domain.ErrorKind {
	if err == nil || c == nil {
		return domain.ErrorKindGeneric
	}
	for _, rule := range c.rules {
		if rule.Match != nil && rule.Match(err) {
			return rule.Kind
		}
	}
	return domain.ErrorKindGeneric
}

// Rules returns a copy of the configured rules.
func (c *Classifier) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// MessageContains matches when the error text contains any of the given
// substrings, ignoring case.
func MessageContains(substrings ...string) func(error) bool {
	needles := make([]string, 0, len(substrings))
	for _, s := range substrings {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			needles = append(needles, s)
		}
	}
	return func(err error) bool {
		msg := strings.ToLower(errorText(err))
		for _, n := range needles {
			if strings.Contains(msg, n) {
				return true
			}
		}
		return false
	}
}

// StatusIs matches a *domain.RemoteError carrying one of the given HTTP
// statuses.
func StatusIs(codes ...int) func(error) bool {
	return func(err error) bool {
		var remote *domain.RemoteError
		if !errors.As(err, &remote) {
			return false
		}
		for _, code := range codes {
			if remote.Status == code {
				return true
			}
		}
		return false
	}
}

func AnyOf(preds ...func(error) bool) func(error) bool {
	return func(err error) bool {
		for _, p := range preds {
			if p(err) {
				return true
			}
		}
		return false
	}
}

func errorText(err error) string {
	var remote *domain.RemoteError
	if errors.As(err, &remote) {
		parts := []string{err.Error(), remote.Code, remote.Message}
		if remote.Status != 0 {
			parts = append(parts, strconv.Itoa(remote.Status))
		}
		return strings.Join(parts, " ")
	}
	return err.Error()
}

// remoteMessage extracts the most specific human readable message.
func remoteMessage(err error) string {
	if err == nil {
		return ""
	}
	var remote *domain.RemoteError
	if errors.As(err, &remote) && strings.TrimSpace(remote.Message) != "" {
		return strings.TrimSpace(remote.Message)
	}
	return strings.TrimSpace(err.Error())
}
