package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	msgs []*nats.Msg
	err  error
}

func (f *fakeConn) PublishMsg(msg *nats.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

type captured struct {
	dropped   []DocumentDropped
	completed []RunCompleted
}

func (c *captured) DocumentDropped(_ context.Context, e DocumentDropped) {
	c.dropped = append(c.dropped, e)
}

func (c *captured) RunCompleted(_ context.Context, e RunCompleted) {
	c.completed = append(c.completed, e)
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	r := LogReporter{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	r.DocumentDropped(context.Background(), DocumentDropped{RunID: "r1", Position: 1, Reason: "missing_field", Error: "boom"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "ingest: skipping document", line["msg"])
	assert.Equal(t, "missing_field", line["reason"])
	assert.EqualValues(t, 1, line["position"])
}

func TestNATSReporterSubjects(t *testing.T) {
	conn := &fakeConn{}
	r := NATSReporter{Conn: conn, Subject: "indexer.events"}

	r.DocumentDropped(context.Background(), DocumentDropped{RunID: "r1", ExternalID: "a"})
	r.RunCompleted(context.Background(), RunCompleted{RunID: "r1", Read: 2, Kept: 1, Dropped: 1})

	require.Len(t, conn.msgs, 2)
	assert.Equal(t, "indexer.events.dropped", conn.msgs[0].Subject)
	assert.Equal(t, "indexer.events.completed", conn.msgs[1].Subject)

	var got RunCompleted
	require.NoError(t, json.Unmarshal(conn.msgs[1].Data, &got))
	assert.Equal(t, 2, got.Read)
	assert.Equal(t, 1, got.Kept)
}

func TestNATSReporterPublishFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	r := NATSReporter{
		Conn:    &fakeConn{err: errors.New("nats: connection closed")},
		Subject: "indexer.events",
		Logger:  slog.New(slog.NewTextHandler(&buf, nil)),
	}
	r.RunCompleted(context.Background(), RunCompleted{RunID: "r1"})
	assert.Contains(t, buf.String(), "events: publish failed")
	assert.Contains(t, buf.String(), "indexer.events.completed")
}

func TestMulti(t *testing.T) {
	a, b := &captured{}, &captured{}
	m := Multi{a, Nop{}, b}

	m.DocumentDropped(context.Background(), DocumentDropped{Position: 3})
	m.RunCompleted(context.Background(), RunCompleted{Kept: 9})

	for _, c := range []*captured{a, b} {
		require.Len(t, c.dropped, 1)
		require.Len(t, c.completed, 1)
		assert.Equal(t, 3, c.dropped[0].Position)
		assert.Equal(t, 9, c.completed[0].Kept)
	}
}
