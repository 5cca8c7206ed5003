package events

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wuzhiguocarter/Aletheia/internal/errors"
)

type mockBus struct {
	mock.Mock
}

func (m *mockBus) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*eventbridge.PutEventsOutput)
	return out, args.Error(1)
}

func manyEvents(n int) []Event {
	out := make([]Event, n)
	for i := range out {
		out[i] = New(TypeBlockCreated, "p1", "b1", "u1")
	}
	return out
}

func TestEventWithCopiesData(t *testing.T) {
	e := New(TypeBlockUpdated, "p1", "b1", "u1").With("version", 2)
	f := e.With("content", "x")

	assert.Len(t, e.Data, 1)
	assert.Len(t, f.Data, 2)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.OccurredAt.IsZero())
}

func TestEventBridgeBatches(t *testing.T) {
	ctx := context.Background()
	bus := &mockBus{}
	bus.On("PutEvents", ctx, mock.MatchedBy(func(in *eventbridge.PutEventsInput) bool { return len(in.Entries) == 10 })).
		Return(&eventbridge.PutEventsOutput{}, nil).Twice()
	bus.On("PutEvents", ctx, mock.MatchedBy(func(in *eventbridge.PutEventsInput) bool { return len(in.Entries) == 3 })).
		Return(&eventbridge.PutEventsOutput{}, nil).Once()

	p := NewEventBridge(bus, "aletheia-bus", zap.NewNop())
	require.NoError(t, p.Publish(ctx, manyEvents(23)...))
	bus.AssertExpectations(t)
}

func TestEventBridgeEntryShape(t *testing.T) {
	ctx := context.Background()
	bus := &mockBus{}
	var captured *eventbridge.PutEventsInput
	bus.On("PutEvents", ctx, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).(*eventbridge.PutEventsInput)
	}).Return(&eventbridge.PutEventsOutput{}, nil)

	e := New(TypeExportCreated, "p1", "x1", "u1").With("format", "markdown")
	require.NoError(t, NewEventBridge(bus, "bus", nil).Publish(ctx, e))

	require.Len(t, captured.Entries, 1)
	entry := captured.Entries[0]
	assert.Equal(t, Source, aws.ToString(entry.Source))
	assert.Equal(t, TypeExportCreated, aws.ToString(entry.DetailType))
	assert.Equal(t, "bus", aws.ToString(entry.EventBusName))

	var decoded Event
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &decoded))
	assert.Equal(t, "markdown", decoded.Data["format"])
}

func TestEventBridgeFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("CallFails", func(t *testing.T) {
		bus := &mockBus{}
		bus.On("PutEvents", ctx, mock.Anything).Return(nil, stderrors.New("throttled"))

		err := NewEventBridge(bus, "bus", nil).Publish(ctx, manyEvents(1)...)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.CodeEventPublishFailed))
		assert.True(t, errors.IsRetryable(err))
	})

	t.Run("EntryRejected", func(t *testing.T) {
		bus := &mockBus{}
		bus.On("PutEvents", ctx, mock.Anything).Return(&eventbridge.PutEventsOutput{
			FailedEntryCount: 1,
			Entries:          []types.PutEventsResultEntry{{ErrorCode: aws.String("InternalFailure")}},
		}, nil)

		err := NewEventBridge(bus, "bus", nil).Publish(ctx, manyEvents(1)...)
		assert.True(t, errors.HasCode(err, errors.CodeEventPublishFailed))
	})
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	require.NoError(t, r.Publish(context.Background(),
		New(TypeBlockCreated, "p", "a", ""),
		New(TypeRelationshipCreated, "p", "r", ""),
	))
	assert.Equal(t, []string{TypeBlockCreated, TypeRelationshipCreated}, r.Types())
	r.Reset()
	assert.Empty(t, r.Events())
	assert.NoError(t, Noop{}.Publish(context.Background(), New(TypeBlockDeleted, "p", "a", "")))
}
