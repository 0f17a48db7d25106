package extract

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/minhvu/chatrake/internal/hostview"
	"github.com/minhvu/chatrake/internal/row"
)

type fakeItem struct {
	id     string
	bounds hostview.Rect
	text   string
	refs   []string

	readErr error
}

func (f *fakeItem) ID() string { return f.id }

func (f *fakeItem) Bounds() (hostview.Rect, error) { return f.bounds, nil }

func (f *fakeItem) Text() (string, error) {
	if f.readErr != nil {
		return "", f.readErr
	}
	return f.text, nil
}

func (f *fakeItem) MediaRefs() ([]string, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.refs, nil
}

func (f *fakeItem) ReleaseMedia() error { return nil }
func (f *fakeItem) Collapse() error     { return nil }
func (f *fakeItem) Collapsed() bool     { return false }

var testViewport = hostview.Rect{Top: 0, Left: 0, Width: 600, Height: 800}

func testExtractor() *Extractor {
	e := New()
	e.Now = func() time.Time { return time.UnixMilli(1700000000000) }
	return e
}

func TestRowLeadingEdgeRejection(t *testing.T) {
	e := testExtractor()
	tests := []struct {
		name string
		top  float64
		want bool
	}{
		{"top above band", -10, false},
		{"top on upper edge", 0, true},
		{"top inside", 400, true},
		// Tall item whose bottom overflows still captures once its top is in.
		{"top inside bottom outside", 799, true},
		{"top on lower edge", 800, false},
		{"top below band", 900, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			item := &fakeItem{id: "a", text: "hello", bounds: hostview.Rect{Top: tc.top, Left: 0, Width: 300, Height: 120}}
			_, ok, err := e.Row(item, testViewport)
			if err != nil {
				t.Fatalf("Row: %v", err)
			}
			if ok != tc.want {
				t.Errorf("captured=%v, want %v", ok, tc.want)
			}
		})
	}
}

func TestRowSenderCuesOverrideGeometry(t *testing.T) {
	e := testExtractor()
	// Left-side layout, but text carries a self cue.
	item := &fakeItem{id: "a", text: "You sent a photo", bounds: hostview.Rect{Top: 100, Left: 0, Width: 200, Height: 60}}
	rec, ok, err := e.Row(item, testViewport)
	if err != nil || !ok {
		t.Fatalf("Row: ok=%v err=%v", ok, err)
	}
	if rec.Sender != row.SenderSelf {
		t.Errorf("Sender: got %q, want %q", rec.Sender, row.SenderSelf)
	}
}

func TestRowSpatialFallback(t *testing.T) {
	e := testExtractor()

	left := &fakeItem{id: "l", text: "hi", bounds: hostview.Rect{Top: 100, Left: 0, Width: 200, Height: 60}}
	rec, _, _ := e.Row(left, testViewport)
	if rec.Sender != row.SenderOther {
		t.Errorf("left row: got %q, want %q", rec.Sender, row.SenderOther)
	}

	right := &fakeItem{id: "r", text: "hi", bounds: hostview.Rect{Top: 100, Left: 380, Width: 200, Height: 60}}
	rec, _, _ = e.Row(right, testViewport)
	if rec.Sender != row.SenderSelf {
		t.Errorf("right row: got %q, want %q", rec.Sender, row.SenderSelf)
	}
}

func TestRowTransientErrorPropagates(t *testing.T) {
	e := testExtractor()
	item := &fakeItem{id: "a", readErr: hostview.ErrUnreadable, bounds: hostview.Rect{Top: 100, Width: 200, Height: 60}}
	_, _, err := e.Row(item, testViewport)
	if !errors.Is(err, hostview.ErrUnreadable) {
		t.Errorf("expected ErrUnreadable, got %v", err)
	}
}

func TestFilterMediaRefs(t *testing.T) {
	tests := []struct {
		name string
		refs []string
		want []string
	}{
		{
			"session handles dropped",
			[]string{"blob:https://host/x", "data:image/png;base64,AAAA", "https://cdn.example.com/photo.jpg"},
			[]string{"https://cdn.example.com/photo.jpg"},
		},
		{
			"avatar path tokens dropped",
			[]string{"https://cdn.example.com/avatar/u1.jpg", "https://cdn.example.com/profile_pic/u1.jpg", "https://cdn.example.com/media/u1.jpg"},
			[]string{"https://cdn.example.com/media/u1.jpg"},
		},
		{
			"size tokens in the path dropped",
			[]string{
				"https://cdn.example.com/t/s64x64/u1.jpg",
				"https://cdn.example.com/t/p100x100_abc.jpg",
				"https://cdn.example.com/t/40x40.jpg",
			},
			[]string{},
		},
		{
			"size tokens in the query survive",
			[]string{"https://cdn.example.com/photo.jpg?stp=dst-jpg_s640x640"},
			[]string{"https://cdn.example.com/photo.jpg?stp=dst-jpg_s640x640"},
		},
		{
			"large dimensions survive",
			[]string{"https://cdn.example.com/photo_1080x1920.jpg"},
			[]string{"https://cdn.example.com/photo_1080x1920.jpg"},
		},
		{
			"blanks dropped",
			[]string{"", "  ", "https://cdn.example.com/a.jpg"},
			[]string{"https://cdn.example.com/a.jpg"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := filterMediaRefs(tc.refs)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRowRecordsCaptureTime(t *testing.T) {
	e := testExtractor()
	item := &fakeItem{id: "a", text: "hello", bounds: hostview.Rect{Top: 100, Width: 200, Height: 60}}
	rec, _, _ := e.Row(item, testViewport)
	if rec.TS != 1700000000000 {
		t.Errorf("TS: got %d, want injected clock value", rec.TS)
	}
	if rec.Y != 100 {
		t.Errorf("Y: got %v, want 100", rec.Y)
	}
}
