package coordinator

import (
	"sort"
	"sync"
	"time"

	id "concord/pkg/domain"
	"concord/pkg/platform/sentinel"
)

// Node is a named point in a domain that faucets can connect.
type Node struct {
	ID         string        `json:"id"`
	Domain     id.DomainID   `json:"domain"`
	Name       string        `json:"name"`
	ProposalID id.ProposalID `json:"proposal_id"`
	CreatedAt  time.Time     `json:"created_at"`
}

// PolicyRule is the current text of a governance rule.
type PolicyRule struct {
	Rule       string        `json:"rule"`
	Text       string        `json:"text"`
	ProposalID id.ProposalID `json:"proposal_id"`
	AmendedAt  time.Time     `json:"amended_at"`
}

// Catalog holds the nodes and policy rules created by enacted proposals.
// Policy rules keep their history so an amendment can be reverted.
type Catalog struct {
	mu       sync.RWMutex
	nodes    map[string]Node
	policies map[string][]PolicyRule
}

func NewCatalog() *Catalog {
	return &Catalog{
		nodes:    make(map[string]Node),
		policies: make(map[string][]PolicyRule),
	}
}

func nodeKey(domain id.DomainID, nodeID string) string {
	return string(domain) + "/" + nodeID
}

// AddNode registers n. It returns sentinel.ErrConflict when the domain
// already has a node with the same id.
func (c *Catalog) AddNode(n Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := nodeKey(n.Domain, n.ID)
	if _, exists := c.nodes[key]; exists {
		return sentinel.ErrConflict
	}
	c.nodes[key] = n
	return nil
}

// RemoveNode deletes a node. Removing a missing node is a no-op.
func (c *Catalog) RemoveNode(domain id.DomainID, nodeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.nodes, nodeKey(domain, nodeID))
}

// Nodes lists a domain's nodes by id.
func (c *Catalog) Nodes(domain id.DomainID) []Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Node
	for _, n := range c.nodes {
		if n.Domain == domain {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AmendPolicy makes r the current version of its rule.
func (c *Catalog) AmendPolicy(r PolicyRule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policies[r.Rule] = append(c.policies[r.Rule], r)
}

// RevertPolicy drops the version of rule written by proposalID, restoring
// whichever version preceded it.
func (c *Catalog) RevertPolicy(rule string, proposalID id.ProposalID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	history := c.policies[rule]
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].ProposalID == proposalID {
			history = append(history[:i], history[i+1:]...)
			break
		}
	}
	if len(history) == 0 {
		delete(c.policies, rule)
		return
	}
	c.policies[rule] = history
}

// Policy returns the current version of a rule.
func (c *Catalog) Policy(rule string) (PolicyRule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	history := c.policies[rule]
	if len(history) == 0 {
		return PolicyRule{}, false
	}
	return history[len(history)-1], true
}

// Policies lists the current version of every rule by name.
func (c *Catalog) Policies() []PolicyRule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]PolicyRule, 0, len(c.policies))
	for _, history := range c.policies {
		out = append(out, history[len(history)-1])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rule < out[j].Rule })
	return out
}
