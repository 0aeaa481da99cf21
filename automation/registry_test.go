package automation

import "testing"

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("noop", NewNoopEngine(nil)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("noop", NewNoopEngine(nil)); err == nil {
		t.Fatal("duplicate Register should fail")
	}

	if _, ok := r.Get("noop"); !ok {
		t.Error("Get registered engine failed")
	}
	if _, ok := r.Get("standard"); ok {
		t.Error("Get unregistered engine succeeded")
	}
	if names := r.Names(); len(names) != 1 || names[0] != "noop" {
		t.Errorf("Names = %v", names)
	}

	if err := r.Unregister("noop"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	if err := r.Unregister("noop"); err == nil {
		t.Fatal("second Unregister should fail")
	}
}
