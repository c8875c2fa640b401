package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anidbcli/anidbcli/internal/anidb/cache"
	"github.com/anidbcli/anidbcli/internal/anidb/planner"
	"github.com/anidbcli/anidbcli/internal/anidb/protocol"
	"github.com/anidbcli/anidbcli/internal/output"
)

type fakeOp struct {
	name   string
	target State
	result bool
	ran    *bool
}

func (f *fakeOp) Name() string       { return f.name }
func (f *fakeOp) TargetState() State { return f.target }
func (f *fakeOp) Run(ctx context.Context, rec *Record) bool {
	if f.ran != nil {
		*f.ran = true
	}
	return f.result
}

func TestPipelineStopsAtFirstFailure(t *testing.T) {
	var secondRan bool
	p := New(
		&fakeOp{name: "one", target: StateHashed, result: false},
		&fakeOp{name: "two", target: StateIdentified, result: true, ran: &secondRan},
	)
	rec := NewRecord("x.mkv")
	ok := p.Run(context.Background(), rec)
	assert.False(t, ok)
	assert.Equal(t, StateFailed, rec.State)
	assert.False(t, secondRan)
}

func TestPipelineAdvancesStateOnSuccess(t *testing.T) {
	p := New(
		&fakeOp{name: "one", target: StateHashed, result: true},
		&fakeOp{name: "two", target: StateIdentified, result: true},
	)
	rec := NewRecord("x.mkv")
	ok := p.Run(context.Background(), rec)
	assert.True(t, ok)
	assert.Equal(t, StateIdentified, rec.State)
}

func TestPipelineRecoversFromPanic(t *testing.T) {
	p := New(&panickingOp{})
	rec := NewRecord("x.mkv")
	ok := p.Run(context.Background(), rec)
	assert.False(t, ok)
	assert.Equal(t, StateFailed, rec.State)
}

type panickingOp struct{}

func (panickingOp) Name() string       { return "boom" }
func (panickingOp) TargetState() State { return StateHashed }
func (panickingOp) Run(ctx context.Context, rec *Record) bool {
	panic("boom")
}

func TestHashOpSetsEd2kAndSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.mkv")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	buf := &bytes.Buffer{}
	op := &HashOp{Output: output.NewPlainCollaborator(buf)}
	rec := NewRecord(path)
	ok := op.Run(context.Background(), rec)
	require.True(t, ok)
	assert.NotEmpty(t, rec.Attrs["ed2k"])
	assert.EqualValues(t, 11, rec.Attrs["size"])
}

type fakeDoer struct {
	responses []protocol.Response
	idx       int
	commands  []string
}

func (f *fakeDoer) Do(ctx context.Context, req interface {
	Command() string
	Params() []protocol.KV
}) (protocol.Response, error) {
	f.commands = append(f.commands, req.Command())
	i := f.idx
	f.idx++
	return f.responses[i], nil
}

func TestMylistAddOpEditsOnAlreadyPresent(t *testing.T) {
	buf := &bytes.Buffer{}
	doer := &fakeDoer{responses: []protocol.Response{
		{Code: protocol.CodeAlreadyInMylist},
		{Code: protocol.CodeMylistEdited},
	}}
	op := &MylistAddOp{Doer: doer, Output: output.NewPlainCollaborator(buf), State: 1}
	rec := NewRecord("a.mkv")
	rec.Attrs["ed2k"] = "deadbeef"
	rec.Attrs["size"] = int64(100)

	ok := op.Run(context.Background(), rec)
	assert.True(t, ok, "mylist-add never fails the record")
	assert.Equal(t, 2, len(doer.commands))
	assert.Contains(t, buf.String(), "Already in mylist")
	assert.Contains(t, buf.String(), "state updated")
}

func openPipelineTestCache(t *testing.T) *cache.Store {
	t.Helper()
	s, err := cache.Open(filepath.Join(t.TempDir(), "cache.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetFileInfoOpDerivesHelperTags(t *testing.T) {
	store := openPipelineTestCache(t)
	row := make([]string, len(fileInfoFields)+1)
	row[0] = "555" // fid
	values := map[string]string{
		"aid": "1", "eid": "2", "gid": "3", "lid": "4",
		"size": "100", "ed2k": "deadbeef", "md5": "m", "sha1": "s", "crc32": "c",
		"quality": "high", "source": "bd", "audio_codec": "aac", "audio_bitrate": "128",
		"video_codec": "h264", "video_bitrate": "1000", "resolution": "1280x720",
		"filetype": "mkv", "dub_language": "jpn", "sub_language": "eng",
		"length": "24", "aired": "1619827200", "filename": "ep01.mkv",
		"year": "2021", "a_type": "TV Series", "a_romaji": "Sore", "a_kanji": "K",
		"a_english": "", "ep_no": "1", "ep_english": "", "ep_romaji": "Ichi",
		"ep_kanji": "K1", "g_name": "Group", "g_sname": "GRP",
	}
	for i, f := range orderedFieldsForTest() {
		if v, ok := values[f.Name]; ok {
			row[i+1] = v
		}
	}
	doer := &fakeFileDoer{resp: protocol.Response{Code: protocol.CodeResultFile, Rows: [][]string{row}}}
	p := planner.New(store, doer)

	buf := &bytes.Buffer{}
	op := &GetFileInfoOp{Planner: p, Output: output.NewPlainCollaborator(buf), AllowNetwork: true}
	rec := NewRecord("ep01.mkv")
	rec.Attrs["ed2k"] = "deadbeef"
	rec.Attrs["size"] = int64(100)

	ok := op.Run(context.Background(), rec)
	require.True(t, ok)
	info := rec.Attrs["info"].(map[string]interface{})
	assert.Equal(t, "Sore", info["a_english"], "a_english falls back to romaji when empty")
	assert.Equal(t, "Ichi", info["ep_english"], "ep_english falls back to romaji when empty")
	assert.Equal(t, "2021", info["year_start"])
	assert.Equal(t, "720p", info["resolution_abbr"])
}

type fakeFileDoer struct{ resp protocol.Response }

func (f *fakeFileDoer) Do(ctx context.Context, req interface {
	Command() string
	Params() []protocol.KV
}) (protocol.Response, error) {
	return f.resp, nil
}

// orderedFieldsForTest mirrors FileRequest's internal fmask-then-amask
// ordering well enough to build a matching response row in tests.
func orderedFieldsForTest() []protocol.Field {
	var fm, am []protocol.Field
	for _, f := range fileInfoFields {
		if f.Category == protocol.CategoryFmask {
			fm = append(fm, f)
		} else {
			am = append(am, f)
		}
	}
	return append(protocol.Fmask.Sorted(fm), protocol.FileAmask.Sorted(am)...)
}

func TestRenameOpSubstitutesTokensAndMoves(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.mkv")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	buf := &bytes.Buffer{}
	op := &RenameOp{
		Output:       output.NewPlainCollaborator(buf),
		TargetFormat: filepath.Join(dir, "%a_english% - %ep_no%"),
	}
	rec := NewRecord(src)
	rec.Attrs["info"] = map[string]interface{}{
		"a_english": "My Show",
		"ep_no":     "01",
	}
	ok := op.Run(context.Background(), rec)
	require.True(t, ok)
	want := filepath.Join(dir, "My Show - 01.mkv")
	assert.Equal(t, want, rec.Path)
	_, err := os.Stat(want)
	assert.NoError(t, err)
}

func TestRenameOpAbortsOnEmptyRequiredTag(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.mkv")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	buf := &bytes.Buffer{}
	op := &RenameOp{
		Output:       output.NewPlainCollaborator(buf),
		TargetFormat: filepath.Join(dir, "%a_english%"),
		Abort:        true,
	}
	rec := NewRecord(src)
	rec.Attrs["info"] = map[string]interface{}{"a_english": ""}
	ok := op.Run(context.Background(), rec)
	assert.False(t, ok)
	_, err := os.Stat(src)
	assert.NoError(t, err, "source file must remain untouched on abort")
}
