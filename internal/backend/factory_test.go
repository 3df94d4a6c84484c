package backend

import (
	"context"
	"testing"
)

func TestTypeIsValid(t *testing.T) {
	for _, typ := range Types() {
		if !typ.IsValid() {
			t.Errorf("%s should be valid", typ)
		}
	}
	if Type("mongo").IsValid() {
		t.Error("unknown type should be invalid")
	}
	if Type("").IsValid() {
		t.Error("empty type should be invalid")
	}
}

func TestCreateMemoryIsDetached(t *testing.T) {
	factory := NewFactory(nil)
	result, err := factory.Create(context.Background(), Config{Type: Memory, UserID: "local"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !result.Detached {
		t.Error("memory backend should report detached mode")
	}
	if result.Adapter == nil {
		t.Fatal("adapter missing")
	}
	if result.Cleanup != nil {
		t.Error("memory backend needs no cleanup")
	}
}

func TestCreateInvalidType(t *testing.T) {
	factory := NewFactory(nil)
	if _, err := factory.Create(context.Background(), Config{Type: "mongo"}); err == nil {
		t.Error("invalid type should fail")
	}
}
