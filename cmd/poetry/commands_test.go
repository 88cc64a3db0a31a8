package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zey041022/poem-web-app/internal/domain"
	"github.com/zey041022/poem-web-app/internal/service"
)

type fakeStudio struct {
	inFlight, peak atomic.Int32
	mu             sync.Mutex
	texts          []string
}

func (f *fakeStudio) enter(text string) func() {
	n := f.inFlight.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeStudio) GenerateText(_ context.Context, text string) domain.TextArtifact {
	defer f.enter(text)()
	return domain.TextArtifact{Title: "题" + text, Body: "诗", Annotation: "注"}
}

func (f *fakeStudio) GenerateImage(_ context.Context, text string) (domain.AssetID, error) {
	defer f.enter(text)()
	if text == "broken" {
		return "", errors.New("store unavailable")
	}
	return domain.AssetID("img-" + text + ".jpg"), nil
}

func (f *fakeStudio) GenerateCard(ctx context.Context, text string) (service.Card, error) {
	poem := f.GenerateText(ctx, text)
	id, err := f.GenerateImage(ctx, text)
	return service.Card{Poem: poem, Image: id}, err
}

func TestReadBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- text: 今天天气真好
- text: 秋夜听雨
  mode: Poem
- text: 山
  mode: image
`), 0o600))

	items, err := readBatch(path)
	require.NoError(t, err)
	want := []BatchItem{
		{Text: "今天天气真好", Mode: modeCard},
		{Text: "秋夜听雨", Mode: modePoem},
		{Text: "山", Mode: modeImage},
	}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Errorf("readBatch() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadBatch_UnknownMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- text: a\n  mode: video\n"), 0o600))

	_, err := readBatch(path)
	assert.ErrorContains(t, err, `unknown mode "video"`)
}

func TestRunBatch(t *testing.T) {
	studio := &fakeStudio{}
	items := []BatchItem{
		{Text: "a", Mode: modeCard},
		{Text: "b", Mode: modePoem},
		{Text: "c", Mode: modeImage},
		{Text: "broken", Mode: modeImage},
	}
	loc := func(id domain.AssetID) string { return "uploads/" + string(id) }

	results, err := runBatch(context.Background(), studio, items, 2, loc, zaptest.NewLogger(t))
	require.NoError(t, err)

	want := []BatchResult{
		{Text: "a", Title: "题a", Poem: "诗", Annotation: "注", Image: "uploads/img-a.jpg"},
		{Text: "b", Title: "题b", Poem: "诗", Annotation: "注"},
		{Text: "c", Image: "uploads/img-c.jpg"},
		{Text: "broken", Error: "store unavailable"},
	}
	if diff := cmp.Diff(want, results); diff != "" {
		t.Errorf("runBatch() mismatch (-want +got):\n%s", diff)
	}
	assert.LessOrEqual(t, studio.peak.Load(), int32(2))
}

func TestInputText(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader("  明月几时有 \n"))

	got, err := inputText(cmd, []string{"-"})
	require.NoError(t, err)
	assert.Equal(t, "明月几时有", got)

	got, err = inputText(cmd, []string{"秋天", "的", "雨"})
	require.NoError(t, err)
	assert.Equal(t, "秋天 的 雨", got)
}

func TestPrintPoem(t *testing.T) {
	var buf bytes.Buffer
	printPoem(&buf, domain.TextArtifact{Title: "晴日", Body: "风和日丽", Annotation: "晴天。"})
	assert.Equal(t, "《晴日》\n风和日丽\n\n注释：晴天。\n", buf.String())
}
