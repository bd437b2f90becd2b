package intr

import "testing"

func TestSingleSlotOverwrite(t *testing.T) {
	var c Controller
	c.Interrupt(Clock)
	c.Interrupt(Device) // overwrites before delivery - documented behavior

	id, ok := c.Interrupted()
	if !ok || id != Device {
		t.Fatalf("Interrupted() = (%v, %v), want (Device, true)", id, ok)
	}
}

func TestResetPendingKeepsID(t *testing.T) {
	var c Controller
	c.Interrupt(WrongPrivilege)
	c.ResetPending()
	if _, ok := c.Interrupted(); ok {
		t.Fatal("Interrupted() should report no pending interrupt after ResetPending")
	}
}

func TestNoneOnFreshController(t *testing.T) {
	var c Controller
	if _, ok := c.Interrupted(); ok {
		t.Fatal("a fresh controller should have no pending interrupt")
	}
}
