package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	pages []string
	err   error
	panic bool
	calls int
}

func (r *fakeReader) ReadPages(ctx context.Context, path string) ([]string, error) {
	r.calls++
	if r.panic {
		panic("corrupt xref table")
	}
	return r.pages, r.err
}

type countingRecorder map[string]int

func (c countingRecorder) ObserveExtraction(outcome string) { c[outcome]++ }

func TestExtractFileText(t *testing.T) {
	ctx := context.Background()

	t.Run("JoinsPagesAndFixesDirection", func(t *testing.T) {
		rec := countingRecorder{}
		e := NewExtractor(&fakeReader{pages: []string{"Chapter 1", "", "םולש"}}, rec, nil)
		text, ok := e.ExtractFileText(ctx, "notes.pdf", ".pdf")
		require.True(t, ok)
		assert.Equal(t, "Chapter 1\nשלום", text)
		assert.Equal(t, 1, rec[OutcomeSuccess])
	})

	t.Run("ExtensionIsCaseInsensitive", func(t *testing.T) {
		e := NewExtractor(&fakeReader{pages: []string{"x"}}, nil, nil)
		_, ok := e.ExtractFileText(ctx, "NOTES.PDF", ".PDF")
		assert.True(t, ok)
	})

	t.Run("Unsupported", func(t *testing.T) {
		reader := &fakeReader{pages: []string{"x"}}
		rec := countingRecorder{}
		e := NewExtractor(reader, rec, nil)
		text, ok := e.ExtractFileText(ctx, "slides.pptx", ".pptx")
		assert.False(t, ok)
		assert.Empty(t, text)
		assert.Zero(t, reader.calls)
		assert.Equal(t, 1, rec[OutcomeUnsupported])
	})

	t.Run("BlankDocument", func(t *testing.T) {
		rec := countingRecorder{}
		e := NewExtractor(&fakeReader{pages: []string{"", "  \n "}}, rec, nil)
		_, ok := e.ExtractFileText(ctx, "scan.pdf", ".pdf")
		assert.False(t, ok)
		assert.Equal(t, 1, rec[OutcomeEmpty])
	})

	t.Run("ReaderError", func(t *testing.T) {
		rec := countingRecorder{}
		e := NewExtractor(&fakeReader{err: errors.New("bad header")}, rec, nil)
		_, ok := e.ExtractFileText(ctx, "broken.pdf", ".pdf")
		assert.False(t, ok)
		assert.Equal(t, 1, rec[OutcomeFailed])
	})

	t.Run("ReaderPanic", func(t *testing.T) {
		rec := countingRecorder{}
		e := NewExtractor(&fakeReader{panic: true}, rec, nil)
		text, ok := e.ExtractFileText(ctx, "evil.pdf", ".pdf")
		assert.False(t, ok)
		assert.Empty(t, text)
		assert.Equal(t, 1, rec[OutcomeFailed])
	})
}

func TestExtractDocument(t *testing.T) {
	e := NewExtractor(&fakeReader{pages: []string{"one", "", "two"}}, nil, nil)
	doc, ok := e.ExtractDocument(context.Background(), 42, "a.pdf", ".pdf")
	require.True(t, ok)
	assert.Equal(t, uint(42), doc.MaterialID)
	assert.Equal(t, 3, doc.PageCount())
	assert.Equal(t, "one\ntwo", doc.NormalizedText)
}

func TestJoinPages(t *testing.T) {
	assert.Equal(t, "", JoinPages(nil))
	assert.Equal(t, "a\nb", JoinPages([]string{"", "a", "", "b", ""}))
	assert.Equal(t, " \na", JoinPages([]string{" ", "a"}))
}

const lectureFixture = "testdata/lecture.pdf"

func TestTextReader(t *testing.T) {
	ctx := context.Background()

	t.Run("ReadsLinesPerPage", func(t *testing.T) {
		pages, err := NewTextReader().ReadPages(ctx, lectureFixture)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"Calculus Notes\nChapter 1:\nתוכרעמב תוטלחה",
			"Integrals and limits",
		}, pages)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := NewTextReader().ReadPages(ctx, filepath.Join(t.TempDir(), "missing.pdf"))
		assert.Error(t, err)
	})

	t.Run("NotAPDF", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "fake.pdf")
		require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake pdf content"), 0o644))
		_, err := NewTextReader().ReadPages(ctx, path)
		assert.Error(t, err)
	})

	t.Run("Canceled", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewTextReader().ReadPages(canceled, lectureFixture)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNewPageReader(t *testing.T) {
	reader, err := NewPageReader("", "")
	require.NoError(t, err)
	assert.IsType(t, &TextReader{}, reader)

	_, err = NewPageReader("-----BEGIN UNIDOC LICENSE KEY-----", "")
	assert.Error(t, err)
}

func TestExtractFileTextFromPDF(t *testing.T) {
	reader, err := NewPageReader("", "")
	require.NoError(t, err)

	rec := countingRecorder{}
	e := NewExtractor(reader, rec, nil)

	doc, ok := e.ExtractDocument(context.Background(), 7, lectureFixture, ".pdf")
	require.True(t, ok)
	assert.Equal(t, 2, doc.PageCount())
	assert.Equal(t, "Calculus Notes\nChapter 1:\nהחלטות במערכות\nIntegrals and limits", doc.NormalizedText)
	assert.Equal(t, 1, rec[OutcomeSuccess])

	_, ok = e.ExtractFileText(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"), ".pdf")
	assert.False(t, ok)
	assert.Equal(t, 1, rec[OutcomeFailed])
}
