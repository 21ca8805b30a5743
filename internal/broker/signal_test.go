package broker

import (
	"testing"
	"time"
)

func TestBoolSignalFireDeliversValue(t *testing.T) {
	s := newBoolSignal()
	s.Fire(true)

	select {
	case v := <-s.C():
		if !v {
			t.Errorf("C() = false, want true")
		}
	case <-time.After(time.Second):
		t.Fatal("C() never delivered after Fire")
	}
}

func TestBoolSignalFireIsOneShot(t *testing.T) {
	s := newBoolSignal()
	s.Fire(true)
	s.Fire(false) // must be a no-op

	v := <-s.C()
	if !v {
		t.Errorf("C() = %v after a second Fire, want the first Fire's value (true)", v)
	}
}
