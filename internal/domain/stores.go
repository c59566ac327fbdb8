package domain

import (
	"context"
)

// GraphID names a fact collection in the external store.
type GraphID string

const (
	MainGraph       GraphID = "http://example.org/main"
	ConsensusGraph  GraphID = "http://example.org/consensus"
	QuarantineGraph GraphID = "http://example.org/quarantine"

	workspacePrefix = "http://example.org/staging/"
)

// WorkspaceGraph returns the staging collection of a producer.
func WorkspaceGraph(producer string) GraphID {
	return GraphID(workspacePrefix + producer)
}

type WriteMode string

const (
	WriteAdd     WriteMode = "add"
	WriteReplace WriteMode = "replace"
)

// GraphWrite is one mutation of a batch applied with FactStore.Apply.
type GraphWrite struct {
	Graph GraphID
	Mode  WriteMode
	Facts []Fact
}

// FactStore is the named-collection interface of the external fact store.
// Apply commits every write of the batch or none of them.
type FactStore interface {
	ReadAll(ctx context.Context, graph GraphID) ([]Fact, error)
	Count(ctx context.Context, graph GraphID) (int, error)
	Add(ctx context.Context, graph GraphID, facts []Fact) error
	Replace(ctx context.Context, graph GraphID, facts []Fact) error
	Apply(ctx context.Context, writes ...GraphWrite) error
	Ping(ctx context.Context) error
}

// Producer is a registered fact producer (an agent).
type Producer struct {
	ID          string   `json:"id"`
	APIKeyHash  string   `json:"-"`
	Active      bool     `json:"active"`
	Permissions []string `json:"permissions"`
}

const (
	PermissionRead         = "read"
	PermissionWriteStaging = "write_staging"
	PermissionCommit       = "commit"
)

func (p *Producer) Can(permission string) bool {
	if p == nil || !p.Active {
		return false
	}
	for _, perm := range p.Permissions {
		if perm == permission {
			return true
		}
	}
	return false
}

type ProducerStore interface {
	Register(ctx context.Context, p *Producer) error
	GetByAPIKeyHash(ctx context.Context, apiKeyHash string) (*Producer, error)
	GetByID(ctx context.Context, id string) (*Producer, error)
	Len() int
}
