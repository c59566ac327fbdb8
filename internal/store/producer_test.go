package store

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/Harshitk-cp/factgate/internal/domain"
)

func TestProducerRegistry(t *testing.T) {
	ctx := context.Background()
	reg := NewProducerRegistry()

	ingest := &domain.Producer{
		ID:          "ingest",
		APIKeyHash:  "hash-1",
		Active:      true,
		Permissions: []string{domain.PermissionRead, domain.PermissionWriteStaging},
	}
	if err := reg.Register(ctx, ingest); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := reg.GetByAPIKeyHash(ctx, "hash-1")
	if err != nil {
		t.Fatalf("GetByAPIKeyHash: %v", err)
	}
	if got.ID != "ingest" || !got.Can(domain.PermissionWriteStaging) || got.Can(domain.PermissionCommit) {
		t.Errorf("unexpected producer %+v", got)
	}

	// Mutating the caller's copy must not leak into the registry.
	ingest.Permissions[0] = domain.PermissionCommit
	got, _ = reg.GetByID(ctx, "ingest")
	if got.Can(domain.PermissionCommit) {
		t.Error("registry shares permission slice with caller")
	}

	if _, err := reg.GetByAPIKeyHash(ctx, "unknown"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := reg.Register(ctx, &domain.Producer{ID: "reason", APIKeyHash: "hash-1", Active: true}); err == nil {
		t.Error("expected duplicate key to be rejected")
	}

	// Rotating a key drops the old hash.
	if err := reg.Register(ctx, &domain.Producer{ID: "ingest", APIKeyHash: "hash-2", Active: true}); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if _, err := reg.GetByAPIKeyHash(ctx, "hash-1"); !errors.Is(err, ErrNotFound) {
		t.Error("old key hash should no longer resolve")
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}

func TestInactiveProducerHasNoPermissions(t *testing.T) {
	p := &domain.Producer{ID: "collect", Active: false, Permissions: []string{domain.PermissionRead}}
	if p.Can(domain.PermissionRead) {
		t.Error("inactive producer must not be granted permissions")
	}
	var nilProducer *domain.Producer
	if nilProducer.Can(domain.PermissionRead) {
		t.Error("nil producer must not be granted permissions")
	}
}
