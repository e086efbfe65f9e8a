package h2

import (
	"testing"

	"github.com/imroc/h2conn/internal/tests"
)

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestConnDropRef(t *testing.T) {
	ref, done := newConnDropRef()
	a := ref.Clone()
	b := ref.Clone()

	ref.Release()
	tests.AssertEqual(t, false, isClosed(done))
	a.Release()
	a.Release() // second release of the same clone is ignored
	tests.AssertEqual(t, false, isClosed(done))
	b.Release()
	tests.AssertEqual(t, true, isClosed(done))
}

func TestConnDropRefCloneAfterRelease(t *testing.T) {
	ref, _ := newConnDropRef()
	ref.Release()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic cloning a released ref")
		}
	}()
	ref.Clone()
}
