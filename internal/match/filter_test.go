package match

import (
	"log/slog"
	"os"
	"testing"

	"github.com/sydlexius/medley/internal/media"
)

func newTestFilter(t *testing.T) *Filter {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewFilter(logger, nil)
}

func candidate(artist, title string) *media.Record {
	return &media.Record{
		OriginService: media.ServiceSpotify,
		Kind:          media.KindTrack,
		Title:         title,
		Artists:       []media.Artist{{Name: artist}},
	}
}

func boolPtr(b bool) *bool { return &b }

func TestBestTrackExactMatch(t *testing.T) {
	f := newTestFilter(t)
	query := media.Query{Artists: []string{"Radiohead"}, Title: "Paranoid Android"}

	m := f.BestTrack(query, []*media.Record{
		candidate("Radiohead", "Paranoid Android"),
	})

	if !m.Matched() {
		t.Fatal("expected a match")
	}
	if m.Confidence != 100 {
		t.Errorf("expected confidence 100, got %f", m.Confidence)
	}
	prov := m.Record.Provenance[media.ServiceSpotify]
	if prov.Confidence != 100 {
		t.Errorf("expected provenance confidence 100, got %f", prov.Confidence)
	}
}

func TestBestTrackNoCandidates(t *testing.T) {
	f := newTestFilter(t)
	query := media.Query{Artists: []string{"Radiohead"}, Title: "Creep"}

	m := f.BestTrack(query, nil)

	if m.Matched() {
		t.Error("expected no match")
	}
	if m.Confidence != 0 {
		t.Errorf("expected confidence 0, got %f", m.Confidence)
	}
}

func TestBestTrackArtistCutoff(t *testing.T) {
	f := newTestFilter(t)
	query := media.Query{Artists: []string{"Radiohead"}, Title: "Creep"}

	// A perfect title cannot save a candidate from an unrelated artist.
	m := f.BestTrack(query, []*media.Record{
		candidate("Muzzy Bunch", "Creep"),
	})

	if m.Matched() {
		t.Errorf("expected cover-artist candidate to be discarded, got %q", m.Record.Title)
	}
}

func TestBestTrackConfidenceThreshold(t *testing.T) {
	f := newTestFilter(t)

	// Artist clears the cutoff but the title is unrelated; the combined
	// confidence stays at or below the acceptance bar.
	query := media.Query{Artists: []string{"abcdefg"}, Title: "zzzz"}
	m := f.BestTrack(query, []*media.Record{
		candidate("abcdxyz", "qqqq"),
	})

	if m.Matched() {
		t.Fatalf("expected rejection, got match with confidence %f", m.Confidence)
	}
	if m.Confidence <= 0 || m.Confidence > acceptPercent {
		t.Errorf("expected achieved confidence in (0, %f], got %f", acceptPercent, m.Confidence)
	}
}

func TestBestTrackPicksHighestScore(t *testing.T) {
	f := newTestFilter(t)
	query := media.Query{Artists: []string{"Radiohead"}, Title: "Karma Police"}

	live := candidate("Radiohead", "Karma Police - Live")
	studio := candidate("Radiohead", "Karma Police")

	m := f.BestTrack(query, []*media.Record{live, studio})

	if !m.Matched() {
		t.Fatal("expected a match")
	}
	if m.Record != studio {
		t.Errorf("expected studio version to win, got %q", m.Record.Title)
	}
}

func TestBestTrackStripsFeaturing(t *testing.T) {
	f := newTestFilter(t)
	query := media.Query{Artists: []string{"Run the Jewels"}, Title: "Close Your Eyes"}

	m := f.BestTrack(query, []*media.Record{
		candidate("Run the Jewels", "Close Your Eyes (feat. Zack de la Rocha)"),
	})

	if !m.Matched() {
		t.Fatal("expected a match")
	}
	if m.Confidence != 100 {
		t.Errorf("expected featuring clause ignored for scoring, confidence %f", m.Confidence)
	}
}

func TestBestTrackQueryRaisesCeiling(t *testing.T) {
	f := newTestFilter(t)

	// An explicitness preference in the query raises the score ceiling even
	// when the candidate carries no explicitness flag at all.
	query := media.Query{Artists: []string{"Radiohead"}, Title: "Creep", Explicit: boolPtr(true)}
	m := f.BestTrack(query, []*media.Record{
		candidate("Radiohead", "Creep"),
	})

	if !m.Matched() {
		t.Fatal("expected a match")
	}
	if m.Confidence != 80 {
		t.Errorf("expected confidence 80 with unanswered explicit term, got %f", m.Confidence)
	}
}

func TestBestTrackExplicitBonus(t *testing.T) {
	f := newTestFilter(t)
	query := media.Query{Artists: []string{"Radiohead"}, Title: "Creep", Explicit: boolPtr(true)}

	clean := candidate("Radiohead", "Creep")
	clean.Explicit = boolPtr(false)
	explicit := candidate("Radiohead", "Creep")
	explicit.Explicit = boolPtr(true)

	m := f.BestTrack(query, []*media.Record{clean, explicit})

	if !m.Matched() {
		t.Fatal("expected a match")
	}
	if m.Record != explicit {
		t.Error("expected explicit version to win")
	}
	if m.Confidence != 100 {
		t.Errorf("expected confidence 100, got %f", m.Confidence)
	}
}

func TestBestTrackCollectionBonus(t *testing.T) {
	f := newTestFilter(t)
	query := media.Query{Artists: []string{"Radiohead"}, Title: "Airbag", Collection: "OK Computer"}

	onAlbum := candidate("Radiohead", "Airbag")
	onAlbum.Collection = &media.Record{Kind: media.KindAlbum, Title: "OK Computer"}
	single := candidate("Radiohead", "Airbag")

	m := f.BestTrack(query, []*media.Record{single, onAlbum})

	if !m.Matched() {
		t.Fatal("expected a match")
	}
	if m.Record != onAlbum {
		t.Error("expected album-linked candidate to win")
	}
}

func TestBestAlbumYearBonus(t *testing.T) {
	f := newTestFilter(t)
	query := media.Query{Artists: []string{"Radiohead"}, Title: "OK Computer", Year: 1997}

	reissue := candidate("Radiohead", "OK Computer")
	reissue.Kind = media.KindAlbum
	reissue.ReleaseYear = 2017
	original := candidate("Radiohead", "OK Computer")
	original.Kind = media.KindAlbum
	original.ReleaseYear = 1997

	m := f.BestAlbum(query, []*media.Record{reissue, original})

	if !m.Matched() {
		t.Fatal("expected a match")
	}
	if m.Record != original {
		t.Errorf("expected original release to win, got year %d", m.Record.ReleaseYear)
	}
}

func TestBestVideoExplicitOnly(t *testing.T) {
	f := newTestFilter(t)

	// Video scoring ignores collection context; only explicitness adds a term.
	query := media.Query{Artists: []string{"Radiohead"}, Title: "No Surprises", Collection: "OK Computer"}
	m := f.BestVideo(query, []*media.Record{
		candidate("Radiohead", "No Surprises"),
	})

	if !m.Matched() {
		t.Fatal("expected a match")
	}
	if m.Confidence != 100 {
		t.Errorf("expected collection ignored for videos, confidence %f", m.Confidence)
	}
}

func TestBestTrackStableOrderOnTie(t *testing.T) {
	f := newTestFilter(t)
	query := media.Query{Artists: []string{"Radiohead"}, Title: "Creep"}

	first := candidate("Radiohead", "Creep")
	second := candidate("Radiohead", "Creep")

	m := f.BestTrack(query, []*media.Record{first, second})

	if !m.Matched() {
		t.Fatal("expected a match")
	}
	if m.Record != first {
		t.Error("expected earlier candidate to win the tie")
	}
}
