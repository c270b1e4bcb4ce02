package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
)

func TestNominatimLookup(t *testing.T) {
	var gotQuery, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"52.5200","lon":"13.4050","display_name":"Berlin"}]`))
	}))
	defer srv.Close()

	g := NewNominatim(srv.URL+"/search", time.Second)
	point, err := g.Lookup(context.Background(), "Alexanderplatz 1, Berlin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if point.Lat() != 52.52 || point.Lon() != 13.405 {
		t.Fatalf("unexpected point %v", point)
	}
	if gotQuery != "Alexanderplatz 1, Berlin" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if gotPath != "/search" {
		t.Fatalf("unexpected path %q", gotPath)
	}
}

func TestNominatimLookupNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := NewNominatim(srv.URL, time.Second).Lookup(context.Background(), "nowhere")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNominatimLookupTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := NewNominatim(srv.URL, 20*time.Millisecond).Lookup(context.Background(), "slow")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestServiceRoot(t *testing.T) {
	cases := map[string]string{
		"https://nominatim.openstreetmap.org/search":  "https://nominatim.openstreetmap.org/",
		"https://nominatim.openstreetmap.org/search/": "https://nominatim.openstreetmap.org/",
		"https://nominatim.openstreetmap.org":         "https://nominatim.openstreetmap.org/",
		"http://geo.local/nominatim/":                 "http://geo.local/nominatim/",
	}
	for in, want := range cases {
		if got := serviceRoot(in); got != want {
			t.Errorf("serviceRoot(%q) = %q, want %q", in, got, want)
		}
	}
}

type stubGeocoder struct {
	point orb.Point
	err   error
}

func (s stubGeocoder) Lookup(context.Context, string) (orb.Point, error) {
	return s.point, s.err
}

func TestResolve(t *testing.T) {
	log := zerolog.Nop()
	cases := []struct {
		name      string
		geocoder  Geocoder
		address   string
		wantFound bool
	}{
		{name: "found", geocoder: stubGeocoder{point: orb.Point{8.68, 50.11}}, address: "Frankfurt", wantFound: true},
		{name: "not found", geocoder: stubGeocoder{err: ErrNotFound}, address: "x"},
		{name: "failure swallowed", geocoder: stubGeocoder{err: errors.New("boom")}, address: "x"},
		{name: "blank address", geocoder: stubGeocoder{point: orb.Point{1, 1}}, address: "  "},
		{name: "no geocoder", address: "Frankfurt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Resolve(context.Background(), tc.geocoder, log, tc.address)
			if res.Found != tc.wantFound {
				t.Fatalf("found = %v, want %v", res.Found, tc.wantFound)
			}
			if !tc.wantFound && (res.Lat() != nil || res.Lon() != nil) {
				t.Fatal("expected nil coordinates")
			}
			if tc.wantFound && (*res.Lat() != 50.11 || *res.Lon() != 8.68) {
				t.Fatalf("unexpected coordinates %v/%v", *res.Lat(), *res.Lon())
			}
		})
	}
}
