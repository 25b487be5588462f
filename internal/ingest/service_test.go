package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikashojha7762/resume-screening-system/internal/extractor"
	"github.com/vikashojha7762/resume-screening-system/internal/skills"
	"github.com/vikashojha7762/resume-screening-system/internal/types"
)

type recordingObjectStore struct {
	uploads int
	lastID  string
	lastExt string
}

func (r *recordingObjectStore) UploadResumeBytes(ctx context.Context, candidateID, fileExt string, data []byte) (string, string, error) {
	r.uploads++
	r.lastID = candidateID
	r.lastExt = fileExt
	return "resume/" + candidateID + "/original" + fileExt, "d41d8cd98f00b204e9800998ecf8427e", nil
}

type recordingCandidateStore struct {
	saved     []*types.CandidateProfile
	objectKey string
}

func (r *recordingCandidateStore) SaveCandidate(ctx context.Context, profile *types.CandidateProfile, resumeObjectKey, rawTextMD5 string) error {
	r.saved = append(r.saved, profile)
	r.objectKey = resumeObjectKey
	return nil
}

type failingEmbedder struct{}

func (f *failingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return nil, assert.AnError
}

func (f *failingEmbedder) BatchEmbed(ctx context.Context, texts []string) ([][]float64, error) {
	return nil, assert.AnError
}

func (f *failingEmbedder) Dimension() int { return 2 }

func newTestService(opts ...Option) *Service {
	chain := extractor.NewChain(extractor.NewPlainTextStrategy())
	profileExtractor := extractor.NewProfileExtractor(chain, skills.NewMatcher())
	return NewService(profileExtractor, nil, opts...)
}

const sampleResume = `Jane Doe
jane.doe@example.com
(555) 123-4567

Experience
HR Specialist at Acme Corp, Jan 2020 - Present
Handled recruitment and onboarding.

Skills
Recruitment, Onboarding, Employee Relations
`

func TestIngestResumeExtractsAndStores(t *testing.T) {
	objects := &recordingObjectStore{}
	store := &recordingCandidateStore{}
	svc := newTestService(WithObjectStore(objects), WithCandidateStore(store))

	profile, err := svc.IngestResume(context.Background(), "cand-1", []byte(sampleResume), "txt", nil)
	require.NoError(t, err)

	assert.Equal(t, "cand-1", profile.CandidateID)
	assert.False(t, profile.LowConfidence)
	assert.NotEmpty(t, profile.Skills)
	assert.Equal(t, "jane.doe@example.com", profile.Contact.Email)

	assert.Equal(t, 1, objects.uploads)
	assert.Equal(t, ".txt", objects.lastExt)
	require.Len(t, store.saved, 1)
	assert.Contains(t, store.objectKey, "cand-1")
}

func TestIngestResumeLowConfidenceOnExtractionFailure(t *testing.T) {
	store := &recordingCandidateStore{}
	svc := newTestService(WithCandidateStore(store))

	// 纯文本策略不支持pdf，所有策略失败
	profile, err := svc.IngestResume(context.Background(), "cand-broken", []byte("%PDF-1.4"), "pdf", nil)
	require.NoError(t, err, "抽取失败应产出低置信度画像而不是错误")

	assert.True(t, profile.LowConfidence)
	assert.Equal(t, "cand-broken", profile.CandidateID)
	require.Len(t, store.saved, 1, "低置信度画像也要落库")
	assert.True(t, store.saved[0].LowConfidence)
}

func TestIngestResumeEmbedderFailureDegrades(t *testing.T) {
	chain := extractor.NewChain(extractor.NewPlainTextStrategy())
	profileExtractor := extractor.NewProfileExtractor(chain, skills.NewMatcher())
	svc := NewService(profileExtractor, &failingEmbedder{})

	profile, err := svc.IngestResume(context.Background(), "cand-1", []byte(sampleResume), "txt", nil)
	require.NoError(t, err, "向量化失败只降级语义分，不阻断摄入")
	assert.Empty(t, profile.Embedding)
}

func TestIngestResumeEmptyInput(t *testing.T) {
	svc := newTestService()

	_, err := svc.IngestResume(context.Background(), "", []byte("text"), "txt", nil)
	assert.Error(t, err)

	_, err = svc.IngestResume(context.Background(), "cand-1", nil, "txt", nil)
	assert.Error(t, err)
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alice.txt"), []byte(sampleResume), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bob.txt"), []byte(sampleResume), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.docx"), []byte("ignored"), 0o644))

	svc := newTestService()
	profiles, err := svc.IngestDirectory(context.Background(), dir, nil)
	require.NoError(t, err)

	require.Len(t, profiles, 2, "不支持的扩展名应被跳过")
	assert.Equal(t, "alice", profiles[0].CandidateID)
	assert.Equal(t, "bob", profiles[1].CandidateID)
}
