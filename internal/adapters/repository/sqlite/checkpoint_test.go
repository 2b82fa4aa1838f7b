package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgraph/ragagent/internal/core/checkpoint"
	"github.com/flowgraph/ragagent/internal/core/message"
	"github.com/flowgraph/ragagent/pkg/serialization"
)

func openSaver(t *testing.T, s *serialization.Serializer) *CheckpointSaver {
	t.Helper()
	saver, err := Open(context.Background(), ":memory:", s)
	require.NoError(t, err)
	t.Cleanup(func() { saver.Close() })
	return saver
}

func newCheckpoint(id, thread string, step int, ts time.Time, tags ...string) *checkpoint.Checkpoint {
	return &checkpoint.Checkpoint{
		ID:       id,
		GraphID:  "rag",
		ThreadID: thread,
		State: map[string]interface{}{
			"messages": []message.Message{message.Human("q-" + id).WithID("m-" + id)},
		},
		Metadata:  checkpoint.Metadata{Step: step, Source: checkpoint.SourceLoop, Tags: tags},
		Timestamp: ts,
		Version:   checkpoint.Version,
	}
}

func TestCheckpointSaver_SaveLoadDelete(t *testing.T) {
	for _, codec := range []string{"json", "msgpack"} {
		t.Run(codec, func(t *testing.T) {
			s, err := serialization.FromOptions(codec, "zstd", "")
			require.NoError(t, err)
			saver := openSaver(t, s)
			ctx := context.Background()

			cp := newCheckpoint("cp-1", "t1", 3, time.Now())
			cp.ParentID = "cp-0"
			cp.Next = []string{"generate"}
			cp.State["context"] = "retrieved"
			require.NoError(t, saver.Save(ctx, cp))

			loaded, err := saver.Load(ctx, "cp-1")
			require.NoError(t, err)
			assert.Equal(t, "rag", loaded.GraphID)
			assert.Equal(t, "cp-0", loaded.ParentID)
			assert.Equal(t, []string{"generate"}, loaded.Next)
			assert.Equal(t, 3, loaded.Metadata.Step)
			assert.Equal(t, checkpoint.SourceLoop, loaded.Metadata.Source)
			assert.Equal(t, "retrieved", loaded.State["context"])
			assert.True(t, cp.Timestamp.Equal(loaded.Timestamp))

			msgs, err := message.Coerce(loaded.State["messages"])
			require.NoError(t, err)
			assert.Equal(t, []message.Message{message.Human("q-cp-1").WithID("m-cp-1")}, msgs)

			require.NoError(t, saver.Delete(ctx, "cp-1"))
			_, err = saver.Load(ctx, "cp-1")
			assert.ErrorIs(t, err, checkpoint.ErrCheckpointNotFound)
			assert.ErrorIs(t, saver.Delete(ctx, "cp-1"), checkpoint.ErrCheckpointNotFound)
		})
	}
}

func TestCheckpointSaver_SaveReplaces(t *testing.T) {
	saver := openSaver(t, nil)
	ctx := context.Background()

	cp := newCheckpoint("cp-1", "t1", 1, time.Now())
	require.NoError(t, saver.Save(ctx, cp))
	cp.Next = []string{"retrieve"}
	require.NoError(t, saver.Save(ctx, cp))

	all, err := saver.List(ctx, checkpoint.Filter{ThreadID: "t1"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, []string{"retrieve"}, all[0].Next)
}

func TestCheckpointSaver_Validation(t *testing.T) {
	saver := openSaver(t, nil)
	ctx := context.Background()

	assert.ErrorIs(t, saver.Save(ctx, nil), checkpoint.ErrInvalidCheckpointID)
	assert.ErrorIs(t, saver.Save(ctx, newCheckpoint("x", "", 0, time.Now())), checkpoint.ErrInvalidThreadID)
	_, err := saver.Load(ctx, "")
	assert.ErrorIs(t, err, checkpoint.ErrInvalidCheckpointID)
	_, err = saver.List(ctx, checkpoint.Filter{Offset: -1})
	assert.ErrorIs(t, err, checkpoint.ErrInvalidOffset)
}

func TestCheckpointSaver_List(t *testing.T) {
	saver := openSaver(t, nil)
	ctx := context.Background()

	base := time.Now()
	require.NoError(t, saver.Save(ctx, newCheckpoint("a", "t1", 0, base, "input")))
	require.NoError(t, saver.Save(ctx, newCheckpoint("b", "t1", 1, base.Add(time.Millisecond), "loop")))
	require.NoError(t, saver.Save(ctx, newCheckpoint("c", "t1", 2, base.Add(time.Millisecond), "loop")))
	require.NoError(t, saver.Save(ctx, newCheckpoint("d", "t2", 0, base.Add(time.Second))))

	since := base
	tests := []struct {
		name   string
		filter checkpoint.Filter
		want   []string
	}{
		{"thread newest first", checkpoint.Filter{GraphID: "rag", ThreadID: "t1"}, []string{"c", "b", "a"}},
		{"limit", checkpoint.Filter{ThreadID: "t1", Limit: 2}, []string{"c", "b"}},
		{"offset without limit", checkpoint.Filter{ThreadID: "t1", Offset: 2}, []string{"a"}},
		{"since", checkpoint.Filter{ThreadID: "t1", Since: &since}, []string{"c", "b"}},
		{"tags", checkpoint.Filter{ThreadID: "t1", Tags: []string{"loop"}}, []string{"c", "b"}},
		{"tags paged", checkpoint.Filter{ThreadID: "t1", Tags: []string{"loop"}, Offset: 1, Limit: 1}, []string{"b"}},
		{"other graph", checkpoint.Filter{GraphID: "nope"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := saver.List(ctx, tt.filter)
			require.NoError(t, err)
			var ids []string
			for _, cp := range got {
				ids = append(ids, cp.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	latest, err := checkpoint.Latest(ctx, saver, "rag", "t1")
	require.NoError(t, err)
	assert.Equal(t, "c", latest.ID)
}

func TestCheckpointSaver_WithTableName(t *testing.T) {
	saver := openSaver(t, nil)
	saver.WithTableName("bad name; DROP TABLE x")
	assert.Equal(t, "checkpoints", saver.tableName)

	saver.WithTableName("thread_checkpoints")
	assert.Equal(t, "thread_checkpoints", saver.tableName)
	require.NoError(t, saver.CreateTables(context.Background()))
	require.NoError(t, saver.Save(context.Background(), newCheckpoint("x", "t1", 0, time.Now())))
}
