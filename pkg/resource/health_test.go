package resource

import (
	"context"
	"testing"
)

func TestHealthCheck(t *testing.T) {
	rm := NewResourceManager(testConfig(5), nil)
	check := NewHealthCheck(rm)

	if check.Name() != "resources" {
		t.Errorf("Name() = %q, want %q", check.Name(), "resources")
	}
	if err := check.Check(context.Background()); err != nil {
		t.Errorf("Check() on idle manager error = %v", err)
	}

	release := make(chan struct{})
	for i := 0; i < 5; i++ {
		if err := rm.Go(context.Background(), "pump", func(context.Context) { <-release }); err != nil {
			t.Fatal(err)
		}
	}
	if err := check.Check(context.Background()); err == nil {
		t.Error("Check() should fail above 80% of the goroutine budget")
	}

	close(release)
	rm.Shutdown(context.Background())

	rm.memoryMB.Store(rm.maxMemoryMB + 1)
	if err := check.Check(context.Background()); err == nil {
		t.Error("Check() should fail over the memory limit")
	}
}
