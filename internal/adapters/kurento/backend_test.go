package kurento

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/Mosaic/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKMS answers the subset of the Kurento protocol the backend uses.
type fakeKMS struct {
	t *testing.T

	mu       sync.Mutex
	seq      int
	kinds    map[string]string
	calls    []string
	released []string
	failType map[string]string
	added    []json.RawMessage
}

func newFakeKMS(t *testing.T) *fakeKMS {
	return &fakeKMS{t: t, kinds: map[string]string{}, failType: map[string]string{}}
}

func (f *fakeKMS) serve(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	var writeMu sync.Mutex
	send := func(v any) {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.WriteJSON(v)
	}

	for {
		var req struct {
			ID     int64           `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		var p struct {
			Type            string          `json:"type"`
			Object          string          `json:"object"`
			Operation       string          `json:"operation"`
			OperationParams json.RawMessage `json:"operationParams"`
		}
		_ = json.Unmarshal(req.Params, &p)

		f.mu.Lock()
		f.calls = append(f.calls, req.Method+":"+p.Type+p.Operation)
		failMsg, fail := f.failType[p.Type]
		f.mu.Unlock()

		reply := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		switch {
		case fail && req.Method == "create":
			reply["error"] = map[string]any{"code": 40001, "message": failMsg}
		case req.Method == "create":
			f.mu.Lock()
			f.seq++
			id := fmt.Sprintf("%d_kurento.%s", f.seq, p.Type)
			f.kinds[id] = p.Type
			f.mu.Unlock()
			reply["result"] = map[string]any{"value": id, "sessionId": "kms-session"}
		case req.Method == "invoke" && p.Operation == "processOffer":
			reply["result"] = map[string]any{"value": "answer-for-" + p.Object, "sessionId": "kms-session"}
		case req.Method == "invoke" && p.Operation == "gatherCandidates":
			send(map[string]any{
				"jsonrpc": "2.0",
				"method":  "onEvent",
				"params": map[string]any{"value": map[string]any{
					"object": p.Object,
					"type":   "IceCandidateFound",
					"data": map[string]any{
						"source": p.Object,
						"candidate": map[string]any{
							"__module__":    "kurento",
							"__type__":      "IceCandidate",
							"candidate":     "candidate:1 1 UDP 2013266431 10.0.0.5 40000 typ host",
							"sdpMid":        "0",
							"sdpMLineIndex": 0,
						},
					},
				}},
			})
			reply["result"] = map[string]any{"sessionId": "kms-session"}
		case req.Method == "invoke" && p.Operation == "addIceCandidate":
			f.mu.Lock()
			f.added = append(f.added, p.OperationParams)
			f.mu.Unlock()
			reply["result"] = map[string]any{"sessionId": "kms-session"}
		case req.Method == "release":
			f.mu.Lock()
			f.released = append(f.released, p.Object)
			f.mu.Unlock()
			reply["result"] = map[string]any{"sessionId": "kms-session"}
		default:
			reply["result"] = map[string]any{"sessionId": "kms-session"}
		}
		send(reply)
	}
}

func startFake(t *testing.T) (*fakeKMS, string) {
	t.Helper()
	f := newFakeKMS(t)
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestBackendFullStream(t *testing.T) {
	f, url := startFake(t)
	b := New(Options{URL: url})
	t.Cleanup(func() { _ = b.Close() })
	ctx := context.Background()

	p, err := b.CreatePipeline(ctx)
	require.NoError(t, err)
	m, err := p.CreateMixer(ctx)
	require.NoError(t, err)
	port, err := m.CreatePort(ctx)
	require.NoError(t, err)
	ep, err := p.CreateEndpoint(ctx)
	require.NoError(t, err)

	require.NoError(t, ep.Connect(ctx, port))
	require.NoError(t, port.Connect(ctx, ep))

	got := make(chan domain.IceCandidate, 1)
	ep.OnIceCandidate(func(c domain.IceCandidate) { got <- c })

	answer, err := ep.ProcessOffer(ctx, "v=0")
	require.NoError(t, err)
	assert.Equal(t, "answer-for-"+ep.ID(), answer)

	require.NoError(t, ep.GatherCandidates(ctx))
	select {
	case c := <-got:
		assert.Equal(t, "0", c.SDPMid)
		assert.Contains(t, c.Candidate, "typ host")
	case <-time.After(time.Second):
		t.Fatal("candidate event not delivered")
	}

	require.NoError(t, ep.AddIceCandidate(ctx, domain.IceCandidate{Candidate: "remote", SDPMid: "0"}))
	require.NoError(t, p.Release(ctx))

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, []string{p.ID()}, f.released)
	require.Len(t, f.added, 1)
	assert.JSONEq(t, `{"candidate":{"__module__":"kurento","__type__":"IceCandidate","candidate":"remote","sdpMid":"0","sdpMLineIndex":0}}`, string(f.added[0]))
	assert.Equal(t, "HubPort", f.kinds[port.ID()])
	assert.Equal(t, "WebRtcEndpoint", f.kinds[ep.ID()])
	assert.Contains(t, f.calls, "subscribe:IceCandidateFound")
}

func TestBackendSurfacesServerError(t *testing.T) {
	f, url := startFake(t)
	f.failType["HubPort"] = "quota exceeded"
	b := New(Options{URL: url})
	t.Cleanup(func() { _ = b.Close() })

	p, err := b.CreatePipeline(context.Background())
	require.NoError(t, err)
	m, err := p.CreateMixer(context.Background())
	require.NoError(t, err)

	_, err = m.CreatePort(context.Background())
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "quota exceeded", err.Error())
}

func TestBackendDialFailure(t *testing.T) {
	b := New(Options{URL: "ws://127.0.0.1:1/kurento", DialAttempts: 2, DialWait: time.Millisecond})
	_, err := b.CreatePipeline(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not find media server at address ws://127.0.0.1:1/kurento")
}

func TestSlowDialDoesNotHoldOtherCallers(t *testing.T) {
	b := New(Options{URL: "ws://127.0.0.1:1/kurento", DialAttempts: 3, DialWait: 500 * time.Millisecond})

	first := make(chan error, 1)
	go func() {
		_, err := b.CreatePipeline(context.Background())
		first <- err
	}()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := b.CreatePipeline(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 400*time.Millisecond)

	select {
	case err := <-first:
		assert.Contains(t, err.Error(), "could not find media server")
	case <-time.After(3 * time.Second):
		t.Fatal("dial loop did not finish")
	}
}

func TestConcurrentCallersShareOneDial(t *testing.T) {
	f := newFakeKMS(t)
	var upgrades atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrades.Add(1)
		f.serve(w, r)
	}))
	t.Cleanup(srv.Close)
	b := New(Options{URL: "ws" + strings.TrimPrefix(srv.URL, "http")})
	t.Cleanup(func() { _ = b.Close() })

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.CreatePipeline(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), upgrades.Load())
}

func TestClosedBackendRefusesPipelines(t *testing.T) {
	_, url := startFake(t)
	b := New(Options{URL: url})
	require.NoError(t, b.Close())

	_, err := b.CreatePipeline(context.Background())
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestBackendRedialsAfterDrop(t *testing.T) {
	_, url := startFake(t)
	b := New(Options{URL: url})
	t.Cleanup(func() { _ = b.Close() })

	_, err := b.CreatePipeline(context.Background())
	require.NoError(t, err)
	first := b.client
	require.NoError(t, first.Close())

	_, err = b.CreatePipeline(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, b.client)
}

func TestCallHonoursTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	c, err := Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), 20*time.Millisecond, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = c.Create(context.Background(), typeMediaPipeline, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	c.mu.Lock()
	assert.Empty(t, c.pending)
	c.mu.Unlock()
}
