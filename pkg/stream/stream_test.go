package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventJSONShapes(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"status", Status("Starting Research..."), `{"type":"status","message":"Starting Research..."}`},
		{"token", Token("Hello"), `{"type":"token","content":"Hello"}`},
		{"metadata", Metadata([]string{"Amoxicillin"}, []string{"CBC"}), `{"type":"metadata","medications":["Amoxicillin"],"lab_tests":["CBC"]}`},
		{"metadata empty", Metadata(nil, nil), `{"type":"metadata","medications":[],"lab_tests":[]}`},
		{"done", Done(), `{"type":"done"}`},
		{"error", Error("boom"), `{"type":"error","message":"boom"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.ev)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestEventUnmarshal(t *testing.T) {
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(`{"type":"metadata","medications":["a"],"lab_tests":["b"]}`), &ev))
	assert.Equal(t, TypeMetadata, ev.Type)
	assert.Equal(t, []string{"a"}, ev.Medications)
	assert.Equal(t, []string{"b"}, ev.LabTests)
}

func TestEmitterTerminalInvariant(t *testing.T) {
	rec := &Recorder{}
	em := NewEmitter(rec)

	require.NoError(t, em.Send(Status("working")))
	require.NoError(t, em.Send(Done()))
	assert.True(t, em.Terminated())

	assert.ErrorIs(t, em.Send(Token("late")), ErrStreamClosed)
	assert.ErrorIs(t, em.Send(Error("late")), ErrStreamClosed)
	assert.NoError(t, em.Close())

	events := rec.Snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, TypeDone, events[1].Type)
}

func TestEmitterCloseSendsDone(t *testing.T) {
	rec := &Recorder{}
	em := NewEmitter(rec)

	require.NoError(t, em.Send(Token("a")))
	require.NoError(t, em.Close())
	require.NoError(t, em.Close())

	assert.Len(t, rec.OfType(TypeDone), 1)
}

func TestEmitterFail(t *testing.T) {
	rec := &Recorder{}
	em := NewEmitter(rec)

	require.NoError(t, em.Fail(errors.New("generator down")))
	require.NoError(t, em.Close())

	events := rec.Snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, TypeError, events[0].Type)
	assert.Equal(t, "generator down", events[0].Message)
}

func TestNewEmitterReusesEmitter(t *testing.T) {
	em := NewEmitter(&Recorder{})
	assert.Same(t, em, NewEmitter(em))
}

func TestEmitterConcurrentSends(t *testing.T) {
	rec := &Recorder{}
	em := NewEmitter(rec)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = em.Send(Status("tick"))
		}()
	}
	wg.Wait()
	require.NoError(t, em.Close())

	events := rec.Snapshot()
	assert.Len(t, events, 51)
	assert.True(t, events[len(events)-1].Terminal())
}

func TestEmitterConcurrentClose(t *testing.T) {
	for i := 0; i < 100; i++ {
		rec := &Recorder{}
		em := NewEmitter(rec)
		require.NoError(t, em.Send(Token("partial")))

		var wg sync.WaitGroup
		closeErrs := make(chan error, 8)
		for j := 0; j < 8; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				closeErrs <- em.Close()
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = em.Fail(errors.New("client gone"))
		}()
		wg.Wait()
		close(closeErrs)

		for err := range closeErrs {
			if err != nil {
				t.Fatalf("Close returned %v, want nil", err)
			}
		}
		events := rec.Snapshot()
		require.Len(t, events, 2)
		assert.True(t, events[1].Terminal())
	}
}

func TestNDJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewNDJSONWriter(&buf)

	require.NoError(t, w.Send(Status("Starting Research...")))
	require.NoError(t, w.Send(Token("<b>&")))
	require.NoError(t, w.Send(Done()))

	scanner := bufio.NewScanner(&buf)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 3)
	assert.Equal(t, `{"type":"token","content":"<b>&"}`, lines[1])

	for _, line := range lines {
		var ev Event
		assert.NoError(t, json.Unmarshal([]byte(line), &ev))
	}
}

func TestRecorderText(t *testing.T) {
	rec := &Recorder{}
	_ = rec.Send(Token("Hel"))
	_ = rec.Send(Status("ignored"))
	_ = rec.Send(Token("lo"))
	assert.Equal(t, "Hello", rec.Text())
}

func TestSinkFunc(t *testing.T) {
	var got []Type
	sink := SinkFunc(func(ev Event) error {
		got = append(got, ev.Type)
		return nil
	})
	em := NewEmitter(sink)
	require.NoError(t, em.Send(Token("x")))
	require.NoError(t, em.Close())
	assert.Equal(t, []Type{TypeToken, TypeDone}, got)
}
