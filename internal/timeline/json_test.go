package timeline

import (
	"testing"
)

func TestProjectDocument_RoundTrip(t *testing.T) {
	p, track := newTestProject(t)
	clip := addVideoClip(t, p, track.ID, 0, 10, 0)

	if _, err := p.AddFilter(clip.ID, Filter{Kind: FilterCrop, Params: CropParams{Width: 640, Height: 480, X: 10, Y: 20}}); err != nil {
		t.Fatalf("AddFilter crop: %v", err)
	}
	if _, err := p.AddFilter(clip.ID, Filter{Kind: FilterGrayscale, Params: GrayscaleParams{}}); err != nil {
		t.Fatalf("AddFilter grayscale: %v", err)
	}
	if _, err := p.AddTransition(clip.ID, Transition{Kind: TransitionCrossDissolve, Edge: EdgeEnd, Duration: 1, Curve: CurveSmooth}); err != nil {
		t.Fatalf("AddTransition: %v", err)
	}

	data, err := Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	decoded, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	got, _ := decoded.Clip(clip.ID)
	if got == nil {
		t.Fatal("clip lost in round trip")
	}
	if len(got.Filters) != 2 {
		t.Fatalf("filters lost: %d", len(got.Filters))
	}
	crop, ok := got.Filters[0].Params.(CropParams)
	if !ok {
		t.Fatalf("first filter decoded as %T, want CropParams", got.Filters[0].Params)
	}
	if crop.Width != 640 || crop.X != 10 {
		t.Fatalf("crop params mangled: %+v", crop)
	}
	if _, ok := got.Filters[1].Params.(GrayscaleParams); !ok {
		t.Fatalf("second filter decoded as %T, want GrayscaleParams", got.Filters[1].Params)
	}
	if len(got.Transitions) != 1 || got.Transitions[0].Curve != CurveSmooth {
		t.Fatalf("transition mangled: %+v", got.Transitions)
	}
	if decoded.Assets["asset-1"] == nil {
		t.Fatal("asset pool lost in round trip")
	}
}

func TestUnmarshal_NilAssetPool(t *testing.T) {
	decoded, err := Unmarshal([]byte(`{"id":"p1","name":"bare","tracks":[]}`))
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Assets == nil {
		t.Fatal("Assets map must be initialised")
	}
}

func TestUnmarshal_UnknownFilterKind(t *testing.T) {
	doc := `{"id":"p1","tracks":[{"id":"t1","kind":"video","clips":[
		{"id":"c1","kind":"video","asset_id":"a1","start":0,"duration":5,"in":0,"out":5,
		 "filters":[{"id":"f1","kind":"vortex","params":{}}]}]}]}`
	if _, err := Unmarshal([]byte(doc)); err == nil {
		t.Fatal("unknown filter kind must fail decoding")
	}
}

func TestSnapshot_Isolated(t *testing.T) {
	p, track := newTestProject(t)
	clip := addVideoClip(t, p, track.ID, 0, 10, 0)

	snap, err := Snapshot(p)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if err := p.MoveClip(clip.ID, 20); err != nil {
		t.Fatalf("MoveClip: %v", err)
	}
	if _, err := p.AddFilter(clip.ID, Filter{Kind: FilterGrayscale, Params: GrayscaleParams{}}); err != nil {
		t.Fatalf("AddFilter: %v", err)
	}

	snapClip, _ := snap.Clip(clip.ID)
	if snapClip.Start != 0 {
		t.Fatalf("snapshot saw a later move: start=%v", snapClip.Start)
	}
	if len(snapClip.Filters) != 0 {
		t.Fatal("snapshot saw a later filter edit")
	}
}

func TestTransitionCurve_Apply(t *testing.T) {
	cases := []struct {
		curve TransitionCurve
		x     float64
		want  float64
	}{
		{CurveLinear, 0.5, 0.5},
		{CurveEaseIn, 0.5, 0.25},
		{CurveEaseOut, 0.5, 0.75},
		{CurveSmooth, 0.5, 0.5},
		{CurveLinear, -1, 0},
		{CurveLinear, 2, 1},
	}
	for _, c := range cases {
		if got := c.curve.Apply(c.x); got != c.want {
			t.Fatalf("%s.Apply(%v) = %v, want %v", c.curve, c.x, got, c.want)
		}
	}
}
