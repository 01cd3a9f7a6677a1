// Package policy implements parsing and evaluation of fence trust
// policies: plain-text documents that fix the minimum rating each fence
// type must carry, and optionally pin the public keys a verifier accepts.
package policy

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/anuraag-khare/prompt-fence/fence"
)

const (
	Preamble  = "-----BEGIN FENCE TRUST POLICY-----"
	Postamble = "-----END FENCE TRUST POLICY-----"
)

type Policy struct {
	Meta  map[string]string
	Trust []TrustEntry
	Rules []Rule
}

// TrustEntry pins an accepted verification key. An empty Trust list leaves
// key selection to the caller.
type TrustEntry struct {
	Key    string
	Source string
}

// Rule sets the rating floor for one fence type.
type Rule struct {
	Type    fence.FenceType
	Minimum fence.FenceRating
}

// Parse parses a fence trust policy from bytes.
func Parse(data []byte) (*Policy, error) {
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		return nil, errors.New("BOM not allowed")
	}
	if bytes.Contains(data, []byte("\r")) {
		return nil, errors.New("CR line endings not allowed")
	}
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(line) > 0 && (line[len(line)-1] == ' ' || line[len(line)-1] == '\t') {
			return nil, errors.New("trailing whitespace forbidden")
		}
	}

	if !bytes.HasPrefix(data, []byte(Preamble)) {
		return nil, errors.New("missing policy preamble")
	}
	if !bytes.HasSuffix(bytes.TrimSpace(data), []byte(Postamble)) {
		return nil, errors.New("missing policy postamble")
	}
	sections := map[string]bool{"META": true, "TRUST": true, "RULES": true}
	reader := bufio.NewReader(bytes.NewReader(data))
	var currSection string
	meta := make(map[string]string)
	var trust []TrustEntry
	var rules []Rule
	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if sections[line] {
			currSection = line
			continue
		}
		if currSection == "META" && strings.Contains(line, ": ") {
			kv := strings.SplitN(line, ": ", 2)
			meta[kv[0]] = kv[1]
		}
		if currSection == "TRUST" && strings.HasPrefix(line, "Key: ") {
			key := strings.TrimPrefix(line, "Key: ")
			if _, kerr := fence.DecodeKey(key); kerr != nil {
				return nil, fmt.Errorf("invalid trust key: %w", kerr)
			}
			sourceLine, _ := reader.ReadString('\n')
			sourceLine = strings.TrimSpace(sourceLine)
			if !strings.HasPrefix(sourceLine, "Source: ") {
				return nil, errors.New("expected Source after Key")
			}
			source := strings.TrimPrefix(sourceLine, "Source: ")
			trust = append(trust, TrustEntry{Key: key, Source: source})
		}
		if currSection == "RULES" && strings.HasPrefix(line, "Require:") {
			var typ, minimum string
			for {
				l, _ := reader.ReadString('\n')
				l = strings.TrimSpace(l)
				if l == "" || strings.HasSuffix(l, ":") || l == Postamble {
					break
				}
				if strings.HasPrefix(l, "Type: ") {
					typ = strings.TrimPrefix(l, "Type: ")
				}
				if strings.HasPrefix(l, "Minimum: ") {
					minimum = strings.TrimPrefix(l, "Minimum: ")
				}
			}
			if typ == "" || minimum == "" {
				return nil, errors.New("Require block missing Type or Minimum")
			}
			r, err := parseRule(typ, minimum)
			if err != nil {
				return nil, err
			}
			rules = append(rules, r)
		}
		if err != nil {
			break
		}
	}
	return &Policy{Meta: meta, Trust: trust, Rules: rules}, nil
}

func parseRule(typ, minimum string) (Rule, error) {
	t, err := fence.ParseFenceType(typ)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid Require Type: %w", err)
	}
	m, err := fence.ParseFenceRating(minimum)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid Require Minimum: %w", err)
	}
	return Rule{Type: t, Minimum: m}, nil
}

// AllowsKey reports whether pub is acceptable under the policy. A policy
// with no TRUST entries accepts any key the caller chose.
func (p *Policy) AllowsKey(pub string) bool {
	if len(p.Trust) == 0 {
		return true
	}
	for _, t := range p.Trust {
		if t.Key == pub {
			return true
		}
	}
	return false
}

// Evaluate applies the policy to per-fence verification results.
// Evaluation is fail-closed: any cryptographically invalid fence fails the
// policy outright, before rating floors are even considered, and any fence
// below its type's floor fails it too.
func Evaluate(p *Policy, results []fence.VerificationResult) error {
	if len(results) == 0 {
		return errors.New("policy: no fences to evaluate")
	}
	for i, r := range results {
		if !r.Valid {
			return fmt.Errorf("policy: fence %d failed verification", i)
		}
	}
	for _, rule := range p.Rules {
		for i, r := range results {
			if r.Type != rule.Type {
				continue
			}
			if !r.Rating.AtLeast(rule.Minimum) {
				return fmt.Errorf("policy: fence %d (%s from %s) rated %s, requires at least %s",
					i, r.Type, r.Source, r.Rating, rule.Minimum)
			}
		}
	}
	return nil
}
