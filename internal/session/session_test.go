package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvforge/internal/blobcache"
	"cvforge/internal/i18n"
	"cvforge/internal/resume"
	"cvforge/internal/translate"
)

type fakeBackend struct {
	stored   *resume.Document
	requests []UpdateRequest
	err      error
}

func (f *fakeBackend) GetResume(_ context.Context, id string) (*resume.Document, error) {
	if f.stored == nil || f.stored.ID != id {
		return nil, errors.New("resume not found")
	}
	return f.stored.Clone(), nil
}

func (f *fakeBackend) UpdateResume(_ context.Context, req UpdateRequest) (*resume.Document, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	switch data := req.Data.(type) {
	case *resume.Document:
		f.stored = data.Clone()
		if !req.Image.IsNone() {
			f.stored.PersonalInfo.Image = resume.RemoteImage("https://cdn.example.com/uploaded.png")
		}
	case map[string]any:
		if v, ok := data["public"].(bool); ok {
			f.stored.Public = v
		}
	}
	return f.stored.Clone(), nil
}

type upperTranslator struct{ calls int }

func (u *upperTranslator) Translate(_ context.Context, p translate.Payload, _ i18n.Language) (translate.Payload, error) {
	u.calls++
	p.ProfessionalSummary = "Résumé: " + p.ProfessionalSummary
	return p, nil
}

func stored() *resume.Document {
	doc := resume.New("CV")
	doc.ID = "r1"
	doc.PersonalInfo.FullName = "Jane Doe"
	doc.ProfessionalSummary = "Engineer"
	doc.Experience = []resume.Experience{{Company: "Acme", Position: "Dev", StartDate: "2020-01", IsCurrent: true}}
	return doc
}

func TestNavigationClamps(t *testing.T) {
	s := New(Deps{Backend: &fakeBackend{}}, "draft")
	assert.Equal(t, SectionPersonal, s.Current())
	assert.Equal(t, SectionPersonal, s.Previous())
	for range 20 {
		s.Next()
	}
	assert.Equal(t, SectionSignature, s.Current())
	assert.Equal(t, len(Sections)-1, s.Index())
	assert.Equal(t, SectionLanguages, s.Previous())

	require.NoError(t, s.Jump(SectionSkills))
	assert.Equal(t, SectionSkills, s.Current())
	assert.Error(t, s.Jump("bogus"))
}

func TestOpenAndSliceReplacement(t *testing.T) {
	backend := &fakeBackend{stored: stored()}
	s, err := Open(context.Background(), Deps{Backend: backend}, "r1")
	require.NoError(t, err)
	assert.False(t, s.Dirty())

	items := []resume.Experience{{Company: "Globex", Position: "CTO"}}
	require.NoError(t, s.SetExperience(items))
	items[0].Company = "mutated by caller"

	draft := s.Draft()
	require.Len(t, draft.Experience, 1)
	assert.Equal(t, "Globex", draft.Experience[0].Company)
	assert.True(t, s.Dirty())
	assert.Equal(t, "Acme", backend.stored.Experience[0].Company, "nothing is persisted before Save")
}

func TestOpenMissingResume(t *testing.T) {
	_, err := Open(context.Background(), Deps{Backend: &fakeBackend{}}, "nope")
	assert.Error(t, err)
}

func TestImageManipulationClamps(t *testing.T) {
	s := New(Deps{Backend: &fakeBackend{}}, "draft")
	require.NoError(t, s.RepositionImage(-10, 250))
	require.NoError(t, s.ZoomImage(5))
	info := s.Draft().PersonalInfo
	assert.Equal(t, resume.ImagePosition{X: 0, Y: 100}, *info.ImagePosition)
	assert.Equal(t, 2.0, *info.ImageScale)

	require.NoError(t, s.ResetImagePosition())
	info = s.Draft().PersonalInfo
	assert.Equal(t, resume.ImagePosition{X: 50, Y: 50}, *info.ImagePosition)
	assert.Equal(t, 1.0, *info.ImageScale)
}

func TestSlugValidatedBeforeNetwork(t *testing.T) {
	backend := &fakeBackend{stored: stored()}
	s, err := Open(context.Background(), Deps{Backend: backend}, "r1")
	require.NoError(t, err)

	err = s.SetSlug(context.Background(), "John Doe!")
	assert.ErrorIs(t, err, resume.ErrInvalidSlug)
	assert.Empty(t, backend.requests)

	require.NoError(t, s.SetSlug(context.Background(), "  John-Doe-2024 "))
	require.Len(t, backend.requests, 1)
	assert.Equal(t, map[string]any{"slug": "john-doe-2024"}, backend.requests[0].Data)
	assert.Equal(t, "https://cv.example.com/view/john-doe-2024", s.ShareURL("https://cv.example.com/"))

	require.NoError(t, s.SetSlug(context.Background(), ""))
	assert.Equal(t, map[string]any{"slug": nil}, backend.requests[1].Data)
	assert.Equal(t, "https://cv.example.com/view/r1", s.ShareURL("https://cv.example.com"))
}

func TestSaveSendsPendingImagesAndFlags(t *testing.T) {
	backend := &fakeBackend{stored: stored()}
	store := blobcache.NewMemoryStore(time.Minute)
	images := blobcache.NewResolver(store, "/v1/preview-blobs")
	s, err := Open(context.Background(), Deps{Backend: backend, Images: images}, "r1")
	require.NoError(t, err)

	pending := resume.PendingImage([]byte("png-bytes"), "me.png", "image/png")
	require.NoError(t, s.SetImage(pending, true))

	page, err := s.Preview(context.Background())
	require.NoError(t, err)
	assert.Contains(t, page.HTML, "/v1/preview-blobs/")
	assert.Equal(t, 1, store.Len())

	require.NoError(t, s.Save(context.Background()))
	require.Len(t, backend.requests, 1)
	req := backend.requests[0]
	assert.Equal(t, "r1", req.ResumeID)
	assert.True(t, req.Image.Equal(pending))
	assert.True(t, req.RemoveBackground)
	assert.False(t, req.RemoveSignatureBackground)

	assert.False(t, s.Dirty())
	assert.Equal(t, "https://cdn.example.com/uploaded.png", s.Draft().PersonalInfo.Image.URL())
	assert.Equal(t, 0, store.Len(), "preview released after upload")
}

func TestReplacingPendingImageRevokesPreview(t *testing.T) {
	store := blobcache.NewMemoryStore(time.Minute)
	images := blobcache.NewResolver(store, "/v1/preview-blobs")
	s := New(Deps{Backend: &fakeBackend{}, Images: images}, "draft")

	require.NoError(t, s.SetImage(resume.PendingImage([]byte("one"), "1.png", "image/png"), false))
	_, err := s.Preview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, s.SetImage(resume.PendingImage([]byte("two"), "2.png", "image/png"), false))
	assert.Equal(t, 0, store.Len())
	_, err = s.Preview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 0, store.Len())
	assert.ErrorIs(t, s.SetSummary("late"), ErrClosed)
}

func TestSharedPendingImageSurvivesSingleSlotReplacement(t *testing.T) {
	store := blobcache.NewMemoryStore(time.Minute)
	images := blobcache.NewResolver(store, "/v1/preview-blobs")
	s := New(Deps{Backend: &fakeBackend{}, Images: images}, "draft")
	ctx := context.Background()

	shared := resume.PendingImage([]byte("same"), "me.png", "image/png")
	require.NoError(t, s.SetImage(shared, false))
	require.NoError(t, s.SetSignatureImage(shared, false))
	page, err := s.Preview(ctx)
	require.NoError(t, err)
	assert.Contains(t, page.HTML, "/v1/preview-blobs/")
	assert.Equal(t, 1, store.Len())

	require.NoError(t, s.SetImage(resume.PendingImage([]byte("other"), "new.png", "image/png"), false))
	assert.Equal(t, 1, store.Len(), "signature still shows the shared image")
	assert.Equal(t, 1, images.Outstanding())

	require.NoError(t, s.SetSignatureImage(resume.Image{}, false))
	assert.Equal(t, 0, store.Len())
}

func TestSaveFailureKeepsDraft(t *testing.T) {
	backend := &fakeBackend{stored: stored()}
	s, err := Open(context.Background(), Deps{Backend: backend}, "r1")
	require.NoError(t, err)
	require.NoError(t, s.SetSummary("changed"))

	backend.err = errors.New("500 internal")
	assert.Error(t, s.Save(context.Background()))
	assert.True(t, s.Dirty())
	assert.Equal(t, "changed", s.Draft().ProfessionalSummary)

	assert.Error(t, s.SetPublic(context.Background(), true))
	assert.False(t, s.Draft().Public)
}

func TestTranslateAndSwitchBack(t *testing.T) {
	backend := &fakeBackend{stored: stored()}
	tr := &upperTranslator{}
	s, err := Open(context.Background(), Deps{Backend: backend, Translator: tr}, "r1")
	require.NoError(t, err)
	before := s.Draft()

	require.NoError(t, s.Translate(context.Background(), i18n.FR))
	assert.Equal(t, i18n.FR, s.Language())
	assert.Equal(t, "Résumé: Engineer", s.Draft().ProfessionalSummary)

	page, err := s.Preview(context.Background())
	require.NoError(t, err)
	assert.Contains(t, page.HTML, "Présent")

	assert.True(t, s.SwitchToOriginal())
	assert.Equal(t, before, s.Draft())
	assert.Equal(t, i18n.EN, s.Language())
	assert.Equal(t, 1, tr.calls)
	assert.False(t, s.SwitchToOriginal())
}

func TestTranslateToCurrentLanguageKeepsDraftClean(t *testing.T) {
	backend := &fakeBackend{stored: stored()}
	tr := &upperTranslator{}
	s, err := Open(context.Background(), Deps{Backend: backend, Translator: tr}, "r1")
	require.NoError(t, err)

	require.NoError(t, s.Translate(context.Background(), i18n.EN))
	assert.False(t, s.Dirty())
	assert.Equal(t, 0, tr.calls)
	assert.Equal(t, "Engineer", s.Draft().ProfessionalSummary)

	require.NoError(t, s.Translate(context.Background(), i18n.FR))
	assert.True(t, s.Dirty())
	require.NoError(t, s.Save(context.Background()))
	require.NoError(t, s.Translate(context.Background(), i18n.FR))
	assert.False(t, s.Dirty())
	assert.Equal(t, 1, tr.calls)
}

func TestShowImageAndSidebarSettings(t *testing.T) {
	s := New(Deps{Backend: &fakeBackend{}}, "draft")
	require.NoError(t, s.SetShowImage("modern", false))
	require.NoError(t, s.SetSidebarColor("#222222"))
	settings := s.Draft().TemplateSettings
	assert.False(t, settings.ShowImage("modern"))
	assert.Equal(t, "#222222", settings.SidebarColor())
}

func TestPatchRequiresPersistedResume(t *testing.T) {
	s := New(Deps{Backend: &fakeBackend{}}, "draft")
	assert.Error(t, s.SetPublic(context.Background(), true))
}
