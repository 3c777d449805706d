package instrument_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/qssage/internal/instrument"
)

func TestObservation_EvalLengthThreshold(t *testing.T) {
	o := instrument.NewObservation(0)
	o.MarkInstalled()

	o.Handle(instrument.Event{Kind: instrument.KindEval, Payload: strings.Repeat("x", 49)})
	assert.False(t, o.Snapshot().EvalFlagged)

	o.Handle(instrument.Event{Kind: instrument.KindEval, Payload: strings.Repeat("x", 50)})
	snap := o.Snapshot()
	assert.True(t, snap.EvalFlagged)
	assert.Equal(t, 2, snap.EvalCalls)
}

func TestObservation_LengthFieldCountsTruncatedPayload(t *testing.T) {
	o := instrument.NewObservation(50)
	o.MarkInstalled()
	o.Handle(instrument.Event{Kind: instrument.KindEval, Payload: "short", Length: 5000})
	assert.True(t, o.Snapshot().EvalFlagged)
}

func TestObservation_EvalLengthCountsCharacters(t *testing.T) {
	o := instrument.NewObservation(50)
	o.MarkInstalled()

	// 22 characters, 58 bytes
	korean := "x='" + strings.Repeat("가", 18) + "'"
	o.Handle(instrument.Event{Kind: instrument.KindEval, Payload: korean, Length: 22})
	o.Handle(instrument.Event{Kind: instrument.KindEval, Payload: korean})
	snap := o.Snapshot()
	assert.False(t, snap.EvalFlagged)
	assert.Equal(t, 2, snap.EvalCalls)

	o.Handle(instrument.Event{Kind: instrument.KindEval, Payload: strings.Repeat("가", 50)})
	assert.True(t, o.Snapshot().EvalFlagged)
}

func TestObservation_DecodeUsesSubScorer(t *testing.T) {
	o := instrument.NewObservation(0)
	o.MarkInstalled()

	o.Handle(instrument.Event{Kind: instrument.KindDecode, Payload: "plain text"})
	assert.False(t, o.Snapshot().DecodeFlagged)

	o.Handle(instrument.Event{Kind: instrument.KindDecode, Payload: `eval("location.replace('//evil.test')")`})
	snap := o.Snapshot()
	assert.True(t, snap.DecodeFlagged)
	assert.Equal(t, 2, snap.DecodeCalls)
}

func TestObservation_FlagsAreSticky(t *testing.T) {
	o := instrument.NewObservation(0)
	o.MarkInstalled()
	o.Handle(instrument.Event{Kind: instrument.KindEval, Payload: strings.Repeat("y", 80)})
	o.Handle(instrument.Event{Kind: instrument.KindEval, Payload: "1+1"})
	assert.True(t, o.Snapshot().EvalFlagged)
}

func TestObservation_NotInstalledReportsNothing(t *testing.T) {
	o := instrument.NewObservation(0)
	o.Handle(instrument.Event{Kind: instrument.KindEval, Payload: strings.Repeat("z", 200)})
	assert.Equal(t, instrument.Result{}, o.Snapshot())
}

func TestObservation_HandleJSON(t *testing.T) {
	o := instrument.NewObservation(0)
	o.MarkInstalled()

	require.NoError(t, o.HandleJSON(`{"kind":"eval","payload":"a","length":120}`))
	assert.True(t, o.Snapshot().EvalFlagged)

	assert.Error(t, o.HandleJSON(`{not json`))
	o.Handle(instrument.Event{Kind: "unknown", Payload: "x"})
	assert.Equal(t, 1, o.Snapshot().EvalCalls)
}

func TestObservation_ConcurrentHandle(t *testing.T) {
	o := instrument.NewObservation(0)
	o.MarkInstalled()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Handle(instrument.Event{Kind: instrument.KindDecode, Payload: "abc"})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, o.Snapshot().DecodeCalls)
}

func TestScript_ReferencesBindingAndPreservesResult(t *testing.T) {
	s := instrument.Script("myBinding")
	assert.Contains(t, s, `"myBinding"`)
	assert.Contains(t, s, "nativeEval.call(window, code)")
	assert.Contains(t, s, "return out;")

	assert.Contains(t, instrument.Script(""), instrument.DefaultBinding)
}
