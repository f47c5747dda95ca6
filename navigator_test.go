package mdview

import (
	"context"
	"errors"
	"testing"
)

type fakeViewport struct {
	top     float64
	nav     float64
	topErr  error
	navErr  error
	scrolls []float64
	smooth  []bool
}

func (v *fakeViewport) ElementTop(context.Context, string, string) (float64, error) {
	return v.top, v.topErr
}

func (v *fakeViewport) NavBarBottom(context.Context) (float64, error) {
	return v.nav, v.navErr
}

func (v *fakeViewport) ScrollBy(_ context.Context, dy float64, smooth bool) error {
	v.scrolls = append(v.scrolls, dy)
	v.smooth = append(v.smooth, smooth)
	return nil
}

// ---------------------------------------------------------------------------
// TestNavigator_Navigate - Scroll offsets below the navigation bar
// ---------------------------------------------------------------------------

func TestNavigator_Navigate(t *testing.T) {
	t.Parallel()

	doc := NewDocument()
	if err := doc.Mount(`<h1 id="intro">Intro</h1><h2 id="usage">Usage</h2>`); err != nil {
		t.Fatalf("Mount() error: %v", err)
	}

	tests := []struct {
		name        string
		item        TOCItem
		vp          fakeViewport
		wantScrolls []float64
	}{
		{
			name:        "below navigation bar",
			item:        TOCItem{TagName: "h2", Key: "usage"},
			vp:          fakeViewport{top: 500, nav: 48},
			wantScrolls: []float64{452},
		},
		{
			name:        "heading above navigation bar clamps to zero",
			item:        TOCItem{TagName: "h1", Key: "intro"},
			vp:          fakeViewport{top: 10, nav: 48},
			wantScrolls: []float64{0},
		},
		{
			name:        "upper-case tag name",
			item:        TOCItem{TagName: "H2", Key: "usage"},
			vp:          fakeViewport{top: 100},
			wantScrolls: []float64{100},
		},
		{
			name: "missing key is ignored",
			item: TOCItem{TagName: "h2", Key: "gone"},
			vp:   fakeViewport{top: 100},
		},
		{
			name: "tag mismatch is ignored",
			item: TOCItem{TagName: "h3", Key: "usage"},
			vp:   fakeViewport{top: 100},
		},
		{
			name: "element lookup failure",
			item: TOCItem{TagName: "h2", Key: "usage"},
			vp:   fakeViewport{topErr: errors.New("detached")},
		},
		{
			name: "navigation bar lookup failure",
			item: TOCItem{TagName: "h2", Key: "usage"},
			vp:   fakeViewport{top: 100, navErr: errors.New("closed")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			vp := tt.vp
			NewNavigator(doc, &vp, nil).Navigate(context.Background(), tt.item)

			if len(vp.scrolls) != len(tt.wantScrolls) {
				t.Fatalf("scrolls = %v, want %v", vp.scrolls, tt.wantScrolls)
			}
			for i, want := range tt.wantScrolls {
				if vp.scrolls[i] != want {
					t.Errorf("scroll[%d] = %v, want %v", i, vp.scrolls[i], want)
				}
				if !vp.smooth[i] {
					t.Errorf("scroll[%d] not smooth", i)
				}
			}
		})
	}
}
