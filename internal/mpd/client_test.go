package mpd

import (
	"context"
	"errors"
	"io"
	"strconv"
	"testing"

	"github.com/fhs/gompd/v2/mpd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vibechain/internal/core"
)

type fakeConn struct {
	queue     []string
	current   int
	state     string
	library   []mpd.Attrs
	missing   map[string]bool
	addErr    error
	failNext  error
	lostReply error // Add queues the file, then fails as if the OK never arrived
	closed    bool
}

func (f *fakeConn) fail() error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	return nil
}

func (f *fakeConn) Add(uri string) error {
	if err := f.fail(); err != nil {
		return err
	}
	if f.addErr != nil {
		return f.addErr
	}
	if f.missing[uri] {
		return &mpd.Error{Code: mpd.ErrorNoExist, CommandName: "add", Message: "No such directory"}
	}
	f.queue = append(f.queue, uri)
	if f.lostReply != nil {
		err := f.lostReply
		f.lostReply = nil
		return err
	}
	return nil
}

func (f *fakeConn) Clear() error {
	f.queue = nil
	f.current = -1
	return nil
}

func (f *fakeConn) Delete(start, end int) error {
	if end < 0 {
		end = start + 1
	}
	f.queue = append(f.queue[:start], f.queue[end:]...)
	if f.current >= end {
		f.current -= end - start
	}
	return nil
}

func (f *fakeConn) Play(int) error {
	f.state = core.PlayerStatePlay
	return nil
}

func (f *fakeConn) Stop() error {
	f.state = core.PlayerStateStop
	return nil
}

func (f *fakeConn) Status() (mpd.Attrs, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	attrs := mpd.Attrs{"state": f.state, "playlistlength": strconv.Itoa(len(f.queue))}
	if f.current >= 0 && f.current < len(f.queue) {
		attrs["song"] = strconv.Itoa(f.current)
	}
	return attrs, nil
}

func (f *fakeConn) CurrentSong() (mpd.Attrs, error) {
	if f.current < 0 || f.current >= len(f.queue) {
		return mpd.Attrs{}, nil
	}
	return mpd.Attrs{"file": f.queue[f.current], "Artist": "Massive Attack ", "Title": "Teardrop", "Album": "Mezzanine"}, nil
}

func (f *fakeConn) PlaylistInfo(int, int) ([]mpd.Attrs, error) {
	items := make([]mpd.Attrs, 0, len(f.queue))
	for _, file := range f.queue {
		items = append(items, mpd.Attrs{"file": file})
	}
	return items, nil
}

func (f *fakeConn) ListAllInfo(string) ([]mpd.Attrs, error) { return f.library, nil }
func (f *fakeConn) Ping() error                             { return f.fail() }

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func newTestClient(conns ...*fakeConn) (*Client, *int) {
	dials := 0
	client := NewClientWithDialer(func() (Conn, error) {
		if dials >= len(conns) {
			return nil, errors.New("connection refused")
		}
		conn := conns[dials]
		dials++
		return conn, nil
	}, zap.NewNop())
	return client, &dials
}

func TestClient_AppendClassifiesMissingFiles(t *testing.T) {
	conn := &fakeConn{current: -1, missing: map[string]bool{"USB/gone.flac": true}}
	client, _ := newTestClient(conn)
	ctx := context.Background()

	require.NoError(t, client.Append(ctx, "USB/a.flac"))

	err := client.Append(ctx, "USB/gone.flac")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)

	conn.addErr = &mpd.Error{Code: mpd.ErrorPermission, CommandName: "add", Message: "you don't have permission"}
	err = client.Append(ctx, "USB/b.flac")
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrNotFound)

	length, err := client.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, length)
}

func TestClient_CropKeepsOnlyCurrentSong(t *testing.T) {
	conn := &fakeConn{queue: []string{"a", "b", "c", "d", "e"}, current: 2}
	client, _ := newTestClient(conn)

	require.NoError(t, client.Crop(context.Background()))
	assert.Equal(t, []string{"c"}, conn.queue)
}

func TestClient_CropWithoutCurrentSongClears(t *testing.T) {
	conn := &fakeConn{queue: []string{"a", "b"}, current: -1}
	client, _ := newTestClient(conn)

	require.NoError(t, client.Crop(context.Background()))
	assert.Empty(t, conn.queue)
}

func TestClient_CurrentAndState(t *testing.T) {
	conn := &fakeConn{queue: []string{"USB/teardrop.flac"}, current: 0, state: core.PlayerStatePause}
	client, _ := newTestClient(conn)
	ctx := context.Background()

	current, err := client.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, core.NowPlaying{File: "USB/teardrop.flac", Artist: "Massive Attack", Title: "Teardrop", Album: "Mezzanine"}, *current)

	state, err := client.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.PlayerStatePause, state)

	require.NoError(t, client.Play(ctx))
	state, _ = client.State(ctx)
	assert.Equal(t, core.PlayerStatePlay, state)

	require.NoError(t, client.Clear(ctx))
	current, err = client.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestClient_RedialsOnceAfterBrokenConnection(t *testing.T) {
	first := &fakeConn{current: -1, failNext: io.EOF}
	second := &fakeConn{current: -1}
	client, dials := newTestClient(first, second)

	require.NoError(t, client.Ping(context.Background()))
	assert.True(t, first.closed)
	assert.Equal(t, 2, *dials)
}

func TestClient_AppendIsNotResentAfterLostReply(t *testing.T) {
	first := &fakeConn{current: -1, lostReply: io.ErrUnexpectedEOF}
	second := &fakeConn{current: -1}
	client, dials := newTestClient(first, second)

	err := client.Append(context.Background(), "USB/a.flac")
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.NotErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, []string{"USB/a.flac"}, first.queue)
	assert.Empty(t, second.queue)
	assert.Equal(t, 1, *dials)
	assert.True(t, first.closed)

	// The dropped connection is replaced on the next call.
	require.NoError(t, client.Append(context.Background(), "USB/b.flac"))
	assert.Equal(t, []string{"USB/b.flac"}, second.queue)
	assert.Equal(t, 2, *dials)
}

func TestClient_DoesNotRedialOnProtocolErrors(t *testing.T) {
	conn := &fakeConn{current: -1, failNext: &mpd.Error{Code: mpd.ErrorPermission, Message: "denied"}}
	client, dials := newTestClient(conn)

	require.Error(t, client.Ping(context.Background()))
	assert.Equal(t, 1, *dials)
	assert.False(t, conn.closed)
}

func TestClient_HonorsCancelledContext(t *testing.T) {
	client, dials := newTestClient(&fakeConn{current: -1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, client.Append(ctx, "USB/a.flac"), context.Canceled)
	assert.Equal(t, 0, *dials)
}

func TestClient_Entries(t *testing.T) {
	conn := &fakeConn{current: -1, library: []mpd.Attrs{
		{"directory": "USB/Massive Attack"},
		{"file": "USB/Massive Attack/Teardrop.flac", "Artist": "Massive Attack", "Title": "Teardrop", "MUSICBRAINZ_TRACKID": "ABC"},
		{"file": "USB/untagged.mp3"},
	}}
	client, _ := newTestClient(conn)

	tags := tagReaderFunc(func(string) core.Tags {
		return core.Tags{Artist: "Portishead", Title: "Roads"}
	})

	entries, err := client.Entries(context.Background(), tags)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ABC", entries[0].RecordingID)
	assert.Equal(t, "Massive Attack", entries[0].Artist)
	assert.Equal(t, "Portishead", entries[1].Artist)
	assert.Equal(t, "Roads", entries[1].Title)
}

type tagReaderFunc func(string) core.Tags

func (f tagReaderFunc) ReadTags(path string) core.Tags { return f(path) }

func TestPreview_NeverTouchesThePlayer(t *testing.T) {
	conn := &fakeConn{queue: []string{"a", "b"}, current: 0, state: core.PlayerStatePlay}
	client, _ := newTestClient(conn)
	preview := NewPreview(client)
	ctx := context.Background()

	require.NoError(t, preview.Clear(ctx))
	require.NoError(t, preview.Crop(ctx))
	require.NoError(t, preview.Append(ctx, "c"))
	require.NoError(t, preview.Stop(ctx))

	length, err := preview.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, length)

	files, err := preview.Files(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, files)
	assert.Equal(t, []string{"c"}, preview.Added())

	assert.Equal(t, []string{"a", "b"}, conn.queue)
	assert.Equal(t, core.PlayerStatePlay, conn.state)
}
