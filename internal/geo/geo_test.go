package geo

import (
	"context"
	"testing"
)

func TestStatic_Loopback(t *testing.T) {
	g := NewStatic().Lookup(context.Background(), "127.0.0.1")
	if g.CountryCode != "US" || g.City != "internal" {
		t.Fatalf("expected internal geo tuple for loopback, got %+v", g)
	}
}

func TestStatic_WellKnownPublicRange(t *testing.T) {
	g := NewStatic().Lookup(context.Background(), "8.8.8.8")
	if g.CountryCode != "US" || g.City != "Mountain View" {
		t.Fatalf("expected the well-known 8.8.x tuple, got %+v", g)
	}
}

func TestStatic_UnknownPublicIP(t *testing.T) {
	g := NewStatic().Lookup(context.Background(), "93.184.216.34")
	if g.CountryCode != "" {
		t.Fatalf("expected an empty geo tuple for an unrecognized IP, got %+v", g)
	}
}

func TestStatic_InvalidIP(t *testing.T) {
	g := NewStatic().Lookup(context.Background(), "not-an-ip")
	if g.CountryCode != "" {
		t.Fatalf("expected an empty geo tuple for an invalid IP, got %+v", g)
	}
}

func TestCountryName(t *testing.T) {
	if CountryName("US") != "United States" {
		t.Errorf("expected a known country name for US")
	}
	if CountryName("ZZ") != "ZZ" {
		t.Errorf("expected an unknown code to fall back to itself")
	}
}
