package finding

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Tree is the nested account → service → check → findings structure produced
// by an audit. Order is significant: it is the encounter order used for ranking ties.
type Tree []Account

// Account groups the services audited for one account.
type Account struct {
	ID       string
	Services []Service
}

// Service groups the checks run for one service.
type Service struct {
	Name   string
	Checks []Check
}

// Check holds the findings of one check.
type Check struct {
	Name           string
	Items          []Finding
	Count          int
	MonthlySavings float64
}

type checkJSON struct {
	Items          []Finding `json:"items"`
	Count          int       `json:"count"`
	MonthlySavings float64   `json:"monthly_savings"`
}

// Add appends a finding, creating account, service and check entries on first use.
func (t *Tree) Add(accountID, service, check string, f Finding) {
	acc := t.account(accountID)
	svc := acc.service(service)
	c := svc.check(check)
	c.Items = append(c.Items, f)
	c.Count = len(c.Items)
	c.MonthlySavings += f.Cost()
}

func (t *Tree) account(id string) *Account {
	for i := range *t {
		if (*t)[i].ID == id {
			return &(*t)[i]
		}
	}
	*t = append(*t, Account{ID: id})
	return &(*t)[len(*t)-1]
}

func (a *Account) service(name string) *Service {
	for i := range a.Services {
		if a.Services[i].Name == name {
			return &a.Services[i]
		}
	}
	a.Services = append(a.Services, Service{Name: name})
	return &a.Services[len(a.Services)-1]
}

func (s *Service) check(name string) *Check {
	for i := range s.Checks {
		if s.Checks[i].Name == name {
			return &s.Checks[i]
		}
	}
	s.Checks = append(s.Checks, Check{Name: name})
	return &s.Checks[len(s.Checks)-1]
}

// Walk visits every finding in tree order.
func (t Tree) Walk(fn func(accountID, service string, f Finding)) {
	for _, acc := range t {
		for _, svc := range acc.Services {
			for _, c := range svc.Checks {
				for _, f := range c.Items {
					fn(acc.ID, svc.Name, f)
				}
			}
		}
	}
}

// Findings returns the findings of the named checks in tree order.
// The result is never nil.
func (t Tree) Findings(checks ...string) []Finding {
	out := []Finding{}
	for _, acc := range t {
		for _, svc := range acc.Services {
			for _, c := range svc.Checks {
				for _, name := range checks {
					if c.Name == name {
						out = append(out, c.Items...)
						break
					}
				}
			}
		}
	}
	return out
}

// Totals returns the number of findings and the summed monthly savings.
func (t Tree) Totals() (issues int, monthlySavings float64) {
	for _, acc := range t {
		for _, svc := range acc.Services {
			for _, c := range svc.Checks {
				issues += c.Count
				monthlySavings += c.MonthlySavings
			}
		}
	}
	return issues, monthlySavings
}

// MarshalJSON writes the tree as nested objects, preserving order.
func (t Tree) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, acc := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, acc.ID); err != nil {
			return nil, err
		}
		buf.WriteByte('{')
		for j, svc := range acc.Services {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeKey(&buf, svc.Name); err != nil {
				return nil, err
			}
			buf.WriteByte('{')
			for k, c := range svc.Checks {
				if k > 0 {
					buf.WriteByte(',')
				}
				if err := writeKey(&buf, c.Name); err != nil {
					return nil, err
				}
				items := c.Items
				if items == nil {
					items = []Finding{}
				}
				data, err := json.Marshal(checkJSON{Items: items, Count: c.Count, MonthlySavings: c.MonthlySavings})
				if err != nil {
					return nil, fmt.Errorf("encode check %s: %w", c.Name, err)
				}
				buf.Write(data)
			}
			buf.WriteByte('}')
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	data, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(data)
	buf.WriteByte(':')
	return nil
}

// UnmarshalJSON decodes the nested structure in document order. A check value
// may be an object carrying an "items" list or a bare list of findings; any
// other shape is skipped, as are non-object entries at the account and service levels.
func (t *Tree) UnmarshalJSON(data []byte) error {
	var tree Tree
	err := eachMember(data, func(accountID string, accRaw json.RawMessage) error {
		acc := Account{ID: accountID}
		err := eachMember(accRaw, func(service string, svcRaw json.RawMessage) error {
			svc := Service{Name: service}
			err := eachMember(svcRaw, func(check string, raw json.RawMessage) error {
				items, ok := decodeItems(raw)
				if !ok {
					return nil
				}
				c := Check{Name: check, Items: items, Count: len(items)}
				for _, f := range items {
					c.MonthlySavings += f.Cost()
				}
				svc.Checks = append(svc.Checks, c)
				return nil
			})
			if err != nil {
				return err
			}
			acc.Services = append(acc.Services, svc)
			return nil
		})
		if err != nil {
			return err
		}
		tree = append(tree, acc)
		return nil
	})
	if err != nil {
		return err
	}
	*t = tree
	return nil
}

// DecodeTree parses a findings tree from JSON.
func DecodeTree(data []byte) (Tree, error) {
	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode findings tree: %w", err)
	}
	return t, nil
}

// eachMember calls fn for each member of a JSON object in document order.
// Non-object input is ignored.
func eachMember(data []byte, fn func(key string, raw json.RawMessage) error) error {
	if firstByte(data) != '{' {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected object key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}
	_, err := dec.Token()
	return err
}

func decodeItems(raw json.RawMessage) ([]Finding, bool) {
	var list []json.RawMessage
	switch firstByte(raw) {
	case '[':
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, false
		}
	case '{':
		var wrapper struct {
			Items json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(raw, &wrapper); err != nil || firstByte(wrapper.Items) != '[' {
			return nil, false
		}
		if err := json.Unmarshal(wrapper.Items, &list); err != nil {
			return nil, false
		}
	default:
		return nil, false
	}

	items := make([]Finding, 0, len(list))
	for _, r := range list {
		if firstByte(r) != '{' {
			continue
		}
		var f Finding
		if err := json.Unmarshal(r, &f); err != nil {
			continue
		}
		items = append(items, f)
	}
	return items, true
}

func firstByte(data []byte) byte {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
