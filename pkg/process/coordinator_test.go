package process

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/aoide/internal/testutils"
	"github.com/aretw0/aoide/pkg/adapters/hyperbeam"
	"github.com/aretw0/aoide/pkg/domain"
	"github.com/aretw0/aoide/pkg/eventlog"
	"github.com/aretw0/aoide/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventTape struct {
	mu     sync.Mutex
	events []domain.LogEvent
}

func (e *eventTape) Record(ctx context.Context, ev domain.LogEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *eventTape) find(label string, kind domain.EventKind) []domain.LogEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []domain.LogEvent
	for _, ev := range e.events {
		if ev.Label == label && ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

var _ ports.EventSink = (*eventTape)(nil)

func setup(t *testing.T, opts ...Option) (*Coordinator, *testutils.FakeNode, *eventTape) {
	t.Helper()
	node := testutils.NewFakeNode(t)
	client, err := hyperbeam.New(node.URL())
	require.NoError(t, err)

	tape := &eventTape{}
	base := []Option{
		WithRecorder(eventlog.New(eventlog.WithSink(tape))),
		WithPollInterval(10 * time.Millisecond),
		WithReadyTimeout(time.Second),
		WithRegisterDelay(time.Millisecond),
		WithSeed(func() (string, error) { return "seed-1", nil }),
		WithAppVersion("0.1.0"),
	}
	return New(client, append(base, opts...)...), node, tape
}

func readyOnTick(n int) func(string, int) testutils.Reply {
	return func(path string, count int) testutils.Reply {
		if count < n {
			return testutils.Reply{Body: `{"ready":false}`}
		}
		return testutils.Reply{Body: `{"ready":true}`}
	}
}

func TestSpawn_AwaitsReadinessAndInitializesOnce(t *testing.T) {
	c, node, tape := setup(t)
	node.OnState = readyOnTick(3)

	res, err := c.Spawn(context.Background(), domain.SpawnRequest{
		Tags: domain.Tags{{Name: "Action", Value: "Eval"}},
		Data: "1+1",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.ProcessRef("P123"), res.Process)
	assert.Equal(t, domain.ReadinessReady, res.Readiness)
	assert.True(t, res.Initialized)
	assert.Empty(t, res.InitError)
	assert.Equal(t, 3, node.StateCalls(LivenessPath("P123")))

	pushes := node.Pushes()
	require.Len(t, pushes, 2, "spawn plus exactly one init call")
	init := pushes[1]
	assert.Equal(t, "P123", init.Process)
	assert.Equal(t, "Eval", init.Fields["Action"])
	assert.Equal(t, domain.VersionProbeCode, init.Fields["data"])
	assert.Equal(t, "P123", init.Fields[domain.KeyTarget])

	assert.Len(t, tape.find(LabelReady, domain.EventSuccess), 1)
	assert.Len(t, tape.find(LabelInit, domain.EventSuccess), 1)
}

func TestSpawn_FieldsAndOperatorResolution(t *testing.T) {
	c, node, _ := setup(t)

	_, err := c.Spawn(context.Background(), domain.SpawnRequest{
		Module: "module-1",
		Tags:   domain.Tags{{Name: "Name", Value: "counter"}, {Name: domain.KeyVariant, Value: "custom"}},
		Data:   "1+1",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, node.OperatorCalls(), "authority and scheduler resolve separately")

	spawn := node.Pushes()[0].Fields
	assert.Equal(t, "operator-1,"+domain.DefaultAuthority, spawn[domain.KeyAuthority])
	assert.Equal(t, "operator-1", spawn[domain.KeyScheduler])
	assert.Equal(t, "seed-1", spawn[domain.KeyRandomSeed])
	assert.Equal(t, "module-1", spawn[domain.KeyModule])
	assert.Equal(t, domain.TypeProcess, spawn[domain.KeyType])
	assert.Equal(t, domain.AppName, spawn[domain.TagAppName])
	assert.Equal(t, "0.1.0", spawn[domain.TagAppVersion])
	assert.Equal(t, "counter", spawn["Name"])
	assert.Equal(t, "custom", spawn[domain.KeyVariant], "caller tags override fixed keys")
	assert.Equal(t, "1+1", spawn[domain.KeyData])
}

func TestSpawn_CeilingReportsUnconfirmed(t *testing.T) {
	c, node, tape := setup(t, WithReadyTimeout(50*time.Millisecond))
	node.OnState = func(string, int) testutils.Reply { return testutils.Reply{Body: `{"ready":false}`} }

	res, err := c.Spawn(context.Background(), domain.SpawnRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessRef("P123"), res.Process)
	assert.Equal(t, domain.ReadinessUnconfirmed, res.Readiness)
	assert.False(t, res.Initialized)
	assert.Len(t, node.Pushes(), 1, "no init call without readiness")
	assert.Len(t, tape.find(LabelReady, domain.EventWarn), 1)
}

func TestSpawn_PollFailuresAreRetried(t *testing.T) {
	c, node, _ := setup(t)
	node.OnState = func(path string, n int) testutils.Reply {
		if n < 3 {
			return testutils.Reply{Status: http.StatusServiceUnavailable, Body: "booting"}
		}
		return testutils.Reply{Body: `{"ready":true}`}
	}

	res, err := c.Spawn(context.Background(), domain.SpawnRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.ReadinessReady, res.Readiness)
}

func TestSpawn_InitFailureDoesNotFailSpawn(t *testing.T) {
	c, node, tape := setup(t)
	node.OnMessage = func(string, map[string]string) testutils.Reply {
		return testutils.Reply{Status: http.StatusInternalServerError, Body: "lua error"}
	}

	res, err := c.Spawn(context.Background(), domain.SpawnRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.ReadinessReady, res.Readiness)
	assert.False(t, res.Initialized)
	assert.Contains(t, res.InitError, "lua error")
	assert.Len(t, tape.find(LabelInit, domain.EventWarn), 1)
}

func TestSpawn_FireAndForget(t *testing.T) {
	c, node, _ := setup(t, WithMode(ModeFireAndForget))
	node.OnState = readyOnTick(2)

	ctx, cancel := context.WithCancel(context.Background())
	res, err := c.Spawn(ctx, domain.SpawnRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.ReadinessPending, res.Readiness)
	assert.Equal(t, domain.ProcessRef("P123"), res.Process)

	// Cancelling the caller must not abort the background confirmation.
	cancel()
	c.Wait()

	pushes := node.Pushes()
	require.Len(t, pushes, 2)
	assert.Equal(t, "P123", pushes[1].Process)
}

func TestSpawn_MissingProcessRef(t *testing.T) {
	c, node, tape := setup(t)
	node.OnSpawn = func(map[string]string) testutils.Reply {
		return testutils.Reply{Body: `{"status":"accepted"}`}
	}

	_, err := c.Spawn(context.Background(), domain.SpawnRequest{})
	var se *domain.SpawnError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, domain.ErrNoProcessRef)
	assert.Equal(t, `{"status":"accepted"}`, se.Body)
	assert.Len(t, tape.find(LabelSpawn, domain.EventError), 1)
	assert.Zero(t, node.StateCalls(LivenessPath("")), "no monitor without a process")
}

func TestSpawn_TransportFailure(t *testing.T) {
	c, node, _ := setup(t)
	node.Operator = ""

	_, err := c.Spawn(context.Background(), domain.SpawnRequest{})
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Empty(t, node.Pushes())
}

func TestSpawn_InvalidTags(t *testing.T) {
	c, node, _ := setup(t)
	_, err := c.Spawn(context.Background(), domain.SpawnRequest{Tags: domain.Tags{{Name: " ", Value: "x"}}})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Zero(t, node.OperatorCalls())
}

func TestWrite_DecodesResult(t *testing.T) {
	c, node, tape := setup(t)
	node.OnMessage = func(string, map[string]string) testutils.Reply {
		return testutils.Reply{Body: `{"Output":{"data":"4"}}`}
	}

	out, err := c.Write(context.Background(), "P123", domain.Tags{{Name: "Action", Value: "Eval"}}, "2+2")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"Output": map[string]any{"data": "4"}}, out)

	push := node.Pushes()[0]
	assert.Equal(t, "P123", push.Process)
	assert.Equal(t, domain.TypeMessage, push.Fields[domain.KeyType])
	assert.Equal(t, "2+2", push.Fields[domain.KeyData])
	assert.Len(t, tape.find(LabelWrite, domain.EventSuccess), 1)
}

func TestWrite_UnreadableResult(t *testing.T) {
	for _, body := range []string{"not json", "[1,2]", "null", ""} {
		c, node, _ := setup(t)
		node.OnMessage = func(string, map[string]string) testutils.Reply {
			return testutils.Reply{Body: body}
		}

		_, err := c.Write(context.Background(), "P123", nil, "x")
		var we *domain.WriteError
		require.ErrorAs(t, err, &we, "body %q", body)
		assert.Equal(t, domain.ProcessRef("P123"), we.Process)
		assert.Equal(t, body, we.Body)
	}
}

func TestWrite_RequiresProcess(t *testing.T) {
	c, node, _ := setup(t)
	_, err := c.Write(context.Background(), "", nil, "x")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Empty(t, node.Pushes())
}

func TestEvaluate_SingleActionTag(t *testing.T) {
	c, node, tape := setup(t)

	_, err := c.Evaluate(context.Background(), "P9", "return 1")
	require.NoError(t, err)

	push := node.Pushes()[0]
	assert.Equal(t, "Eval", push.Fields[domain.TagAction])
	assert.Equal(t, "return 1", push.Fields[domain.KeyData])
	assert.Len(t, tape.find(LabelEvaluate, domain.EventSuccess), 1)
}

func TestState_JoinsPath(t *testing.T) {
	c, node, _ := setup(t)
	node.OnState = func(string, int) testutils.Reply {
		return testutils.Reply{Body: `{"at-slot":"7","host":"node"}`}
	}

	state, err := c.State(context.Background(), "P1", "/compute/at-slot")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"at-slot": "7"}, state)
	assert.Equal(t, 1, node.StateCalls("/P1/compute/at-slot"))

	_, err = c.State(context.Background(), "", "now")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestSpawn_CancelledDuringRegisterDelay(t *testing.T) {
	c, node, tape := setup(t, WithRegisterDelay(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res, err := c.Spawn(ctx, domain.SpawnRequest{})
	require.NoError(t, err, "the process exists once the node accepted it")
	assert.Equal(t, domain.ProcessRef("P123"), res.Process)
	assert.Equal(t, domain.ReadinessPending, res.Readiness)
	assert.Contains(t, res.InitError, context.Canceled.Error())
	assert.Len(t, node.Pushes(), 1)
	assert.Len(t, tape.find(LabelReady, domain.EventWarn), 1)
}

func TestSpawn_DeadlineBeforeReadyKeepsProcess(t *testing.T) {
	c, node, _ := setup(t, WithReadyTimeout(time.Hour))
	node.OnState = func(string, int) testutils.Reply { return testutils.Reply{Body: `{"ready":false}`} }

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	res, err := c.Spawn(ctx, domain.SpawnRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessRef("P123"), res.Process)
	assert.Equal(t, domain.ReadinessUnconfirmed, res.Readiness)
}

func TestSpawn_CancelledDuringInitStaysReady(t *testing.T) {
	c, node, tape := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	node.OnMessage = func(string, map[string]string) testutils.Reply {
		cancel()
		time.Sleep(100 * time.Millisecond)
		return testutils.Reply{Body: `{"Output":{"data":"1.0"}}`}
	}

	res, err := c.Spawn(ctx, domain.SpawnRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.ProcessRef("P123"), res.Process)
	assert.Equal(t, domain.ReadinessReady, res.Readiness)
	assert.False(t, res.Initialized)
	assert.Contains(t, res.InitError, context.Canceled.Error())
	assert.Len(t, tape.find(LabelInit, domain.EventWarn), 1)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAwait, m)

	m, err = ParseMode("Fire-And-Forget")
	require.NoError(t, err)
	assert.Equal(t, ModeFireAndForget, m)

	_, err = ParseMode("eventually")
	assert.Error(t, err)
}
