package locator_test

import (
	"testing"

	rpcerr "github.com/jabolina/yail-go/pkg/yail/errors"
	"github.com/jabolina/yail-go/pkg/yail/locator"
)

type staticFallback string

func (s staticFallback) DefaultEndpoint(serviceName string) (string, bool) {
	return string(s) + "/" + serviceName, true
}

func TestInsertAndResolve(t *testing.T) {
	loc := locator.New(nil)
	if err := loc.Insert("svc", "unix:///tmp/svc"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	ep, err := loc.Resolve("svc")
	if err != nil || ep != "unix:///tmp/svc" {
		t.Fatalf("Resolve() = %q, %v", ep, err)
	}
}

func TestDuplicateInsertFails(t *testing.T) {
	loc := locator.New(nil)
	_ = loc.Insert("svc", "a")
	err := loc.Insert("svc", "b")
	if err == nil {
		t.Fatalf("expected DuplicateService error")
	}
}

func TestResolveUnknownWithoutFallback(t *testing.T) {
	loc := locator.New(nil)
	_, err := loc.Resolve("nope")
	rerr, ok := err.(*rpcerr.RPCError)
	if !ok || rerr.Code != rpcerr.RPCSystemError {
		t.Fatalf("err = %v, want RPCSystemError", err)
	}
}

func TestResolveFallsBackToDefault(t *testing.T) {
	loc := locator.New(staticFallback("/var/run"))
	ep, err := loc.Resolve("svc")
	if err != nil || ep != "/var/run/svc" {
		t.Fatalf("Resolve() = %q, %v", ep, err)
	}
}

func TestRemoveDropsMapping(t *testing.T) {
	loc := locator.New(nil)
	_ = loc.Insert("svc", "a")
	loc.Remove("svc")
	if _, err := loc.Resolve("svc"); err == nil {
		t.Fatalf("expected Resolve to fail after Remove")
	}
}

func TestMinimumVersionGate(t *testing.T) {
	loc := locator.New(nil).WithMinimumVersion("2.0.0")
	if err := loc.CheckCompatible("1.9.9"); err == nil {
		t.Fatalf("expected rejection of version below minimum")
	}
	if err := loc.CheckCompatible("2.1.0"); err != nil {
		t.Fatalf("CheckCompatible: %v", err)
	}
}

func TestInvalidMinimumVersionPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for unparseable minimum version")
		}
	}()
	locator.New(nil).WithMinimumVersion("not-a-version!!")
}
