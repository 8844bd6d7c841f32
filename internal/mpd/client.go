// Package mpd drives an MPD server queue through gompd.
package mpd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/fhs/gompd/v2/mpd"
	"go.uber.org/zap"

	"vibechain/internal/core"
)

// Conn is the subset of *mpd.Client used here.
type Conn interface {
	Add(uri string) error
	Clear() error
	Delete(start, end int) error
	Play(pos int) error
	Stop() error
	Status() (mpd.Attrs, error)
	CurrentSong() (mpd.Attrs, error)
	PlaylistInfo(start, end int) ([]mpd.Attrs, error)
	ListAllInfo(uri string) ([]mpd.Attrs, error)
	Ping() error
	Close() error
}

// Dialer opens a new connection.
type Dialer func() (Conn, error)

// Client implements core.Player. It dials lazily and redials once when a connection drops.
type Client struct {
	dial   Dialer
	logger *zap.Logger

	mu   sync.Mutex
	conn Conn
}

func NewClient(config core.MPDConfig, logger *zap.Logger) *Client {
	network, addr := config.Address()
	dial := func() (Conn, error) {
		conn, err := mpd.DialAuthenticated(network, addr, config.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MPD at %s: %w", addr, err)
		}
		return conn, nil
	}
	return NewClientWithDialer(dial, logger)
}

func NewClientWithDialer(dial Dialer, logger *zap.Logger) *Client {
	return &Client{dial: dial, logger: logger}
}

// do runs fn on a live connection. Protocol errors are returned as-is; anything else is
// treated as a broken connection and fn is retried once on a fresh one.
func (c *Client) do(ctx context.Context, fn func(Conn) error) error {
	return c.run(ctx, true, fn)
}

// doOnce is do for commands that must not be sent twice. A broken connection is dropped and
// its error returned; the next call dials again.
func (c *Client) doOnce(ctx context.Context, fn func(Conn) error) error {
	return c.run(ctx, false, fn)
}

func (c *Client) run(ctx context.Context, redial bool, fn func(Conn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for attempt := 0; ; attempt++ {
		if c.conn == nil {
			conn, err := c.dial()
			if err != nil {
				return err
			}
			c.conn = conn
		}

		err := fn(c.conn)
		if _, isProto := protocolError(err); err == nil || isProto {
			return err
		}

		_ = c.conn.Close()
		c.conn = nil
		if !redial || attempt > 0 {
			return err
		}
		c.logger.Warn("MPD connection failed, reconnecting", zap.Error(err))
	}
}

// Append sends add exactly once. If the reply is lost the file may or may not be queued, so
// the error is returned rather than risking a second copy.
func (c *Client) Append(ctx context.Context, path string) error {
	return c.doOnce(ctx, func(conn Conn) error {
		if err := conn.Add(path); err != nil {
			if isNotFound(err) {
				return fmt.Errorf("%w: %s: %w", core.ErrNotFound, path, err)
			}
			return fmt.Errorf("failed to add %s: %w", path, err)
		}
		return nil
	})
}

func (c *Client) Len(ctx context.Context) (int, error) {
	var length int
	err := c.do(ctx, func(conn Conn) error {
		status, err := conn.Status()
		if err != nil {
			return err
		}
		length = atoi(status["playlistlength"])
		return nil
	})
	return length, err
}

func (c *Client) Files(ctx context.Context) ([]string, error) {
	var files []string
	err := c.do(ctx, func(conn Conn) error {
		items, err := conn.PlaylistInfo(-1, -1)
		if err != nil {
			return err
		}
		files = make([]string, 0, len(items))
		for _, item := range items {
			if file := item["file"]; file != "" {
				files = append(files, file)
			}
		}
		return nil
	})
	return files, err
}

// Current returns the current song, or nil when nothing is selected.
func (c *Client) Current(ctx context.Context) (*core.NowPlaying, error) {
	var current *core.NowPlaying
	err := c.do(ctx, func(conn Conn) error {
		song, err := conn.CurrentSong()
		if err != nil {
			return err
		}
		if song["file"] == "" {
			return nil
		}
		current = &core.NowPlaying{
			File:   song["file"],
			Artist: strings.TrimSpace(song["Artist"]),
			Title:  strings.TrimSpace(song["Title"]),
			Album:  strings.TrimSpace(song["Album"]),
		}
		return nil
	})
	return current, err
}

func (c *Client) State(ctx context.Context) (string, error) {
	state := core.PlayerStateUnknown
	err := c.do(ctx, func(conn Conn) error {
		status, err := conn.Status()
		if err != nil {
			return err
		}
		switch status["state"] {
		case core.PlayerStatePlay, core.PlayerStatePause, core.PlayerStateStop:
			state = status["state"]
		}
		return nil
	})
	return state, err
}

func (c *Client) Clear(ctx context.Context) error {
	return c.do(ctx, func(conn Conn) error {
		return conn.Clear()
	})
}

// Crop removes every queue entry except the current song. Without a current song the queue is cleared.
func (c *Client) Crop(ctx context.Context) error {
	return c.do(ctx, func(conn Conn) error {
		status, err := conn.Status()
		if err != nil {
			return err
		}
		songPos, ok := status["song"]
		if !ok {
			return conn.Clear()
		}

		pos := atoi(songPos)
		length := atoi(status["playlistlength"])
		if pos+1 < length {
			if err := conn.Delete(pos+1, length); err != nil {
				return fmt.Errorf("failed to crop after current song: %w", err)
			}
		}
		if pos > 0 {
			if err := conn.Delete(0, pos); err != nil {
				return fmt.Errorf("failed to crop before current song: %w", err)
			}
		}
		return nil
	})
}

func (c *Client) Play(ctx context.Context) error {
	return c.do(ctx, func(conn Conn) error {
		return conn.Play(-1)
	})
}

func (c *Client) Stop(ctx context.Context) error {
	return c.do(ctx, func(conn Conn) error {
		return conn.Stop()
	})
}

// Ping checks that MPD is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, func(conn Conn) error {
		return conn.Ping()
	})
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// isNotFound reports MPD answers that mean the URI cannot be queued.
func isNotFound(err error) bool {
	if protoErr, ok := protocolError(err); ok {
		if protoErr.Code == mpd.ErrorNoExist || protoErr.Code == mpd.ErrorArg {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such") || strings.Contains(msg, "not found")
}

// protocolError extracts an ACK reply from err, whether gompd returned it by value or by pointer.
func protocolError(err error) (mpd.Error, bool) {
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch v := any(e).(type) {
		case *mpd.Error:
			return *v, true
		case mpd.Error:
			return v, true
		}
	}
	return mpd.Error{}, false
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
