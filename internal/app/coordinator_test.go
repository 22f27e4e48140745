package app

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Mosaic/internal/core"
	"github.com/dkeye/Mosaic/internal/core/coretest"
	"github.com/dkeye/Mosaic/internal/core/mocks"
	"github.com/dkeye/Mosaic/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func provisioned(t *testing.T, b *coretest.Backend, n int) ([]core.Endpoint, []core.Port) {
	t.Helper()
	p, m := newGraph(t, b)
	pairs, err := Provisioner{}.Provision(context.Background(), p, m, n)
	require.NoError(t, err)
	eps := make([]core.Endpoint, n)
	ports := make([]core.Port, n)
	for i, pair := range pairs {
		eps[i], ports[i] = pair.Endpoint, pair.Port
	}
	return eps, ports
}

func TestNegotiateAlignsAnswers(t *testing.T) {
	b := &coretest.Backend{
		ProcessOfferFn: func(_ context.Context, offer string) (string, error) {
			time.Sleep(time.Duration(rand.IntN(5)) * time.Millisecond)
			return strings.Replace(offer, "offer", "ans", 1), nil
		},
	}
	eps, ports := provisioned(t, b, 4)
	ctrl := gomock.NewController(t)
	out := mocks.NewMockOutbound(ctrl)

	answers, err := Coordinator{}.Negotiate(context.Background(), out, eps, ports, []string{"offerA", "offerB", "offerC", "offerD"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ansA", "ansB", "ansC", "ansD"}, answers)

	for i, ep := range eps {
		port := ports[i]
		fake := ep.(*coretest.Endpoint)
		assert.Equal(t, []string{port.ID()}, fake.Sinks())
		assert.Equal(t, []string{ep.ID()}, port.(*coretest.Port).Sinks())
	}
}

func TestNegotiateTruncatesToShortest(t *testing.T) {
	eps, ports := provisioned(t, &coretest.Backend{}, 3)
	out := mocks.NewMockOutbound(gomock.NewController(t))

	answers, err := Coordinator{}.Negotiate(context.Background(), out, eps, ports[:2], []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"answer:a", "answer:b"}, answers)
	assert.Empty(t, eps[2].(*coretest.Endpoint).Offer())
}

func TestNegotiateForwardsCandidatesWithIndex(t *testing.T) {
	eps, ports := provisioned(t, &coretest.Backend{}, 2)
	ctrl := gomock.NewController(t)
	out := mocks.NewMockOutbound(ctrl)

	_, err := Coordinator{}.Negotiate(context.Background(), out, eps, ports, []string{"a", "b"})
	require.NoError(t, err)

	c := domain.IceCandidate{Candidate: "candidate:1 1 udp 1 10.0.0.1 5000 typ host", SDPMid: "0"}
	out.EXPECT().IceCandidate(1, c).Return(nil)
	require.True(t, eps[1].(*coretest.Endpoint).Emit(c))
}

func TestNegotiateFailsOnConnect(t *testing.T) {
	refused := errors.New("connect refused")
	b := &coretest.Backend{
		ConnectFn: func(_ context.Context, src, _ string) error {
			if strings.HasPrefix(src, "hubport") {
				return refused
			}
			return nil
		},
	}
	eps, ports := provisioned(t, b, 2)
	out := mocks.NewMockOutbound(gomock.NewController(t))

	answers, err := Coordinator{}.Negotiate(context.Background(), out, eps, ports, []string{"a", "b"})
	require.ErrorIs(t, err, refused)
	assert.Nil(t, answers)
	assert.True(t, domain.IsKind(err, domain.KindNegotiation))
}

func TestGatherErrorIsReportedNotFatal(t *testing.T) {
	b := &coretest.Backend{
		GatherFn: func(context.Context, *coretest.Endpoint) error { return errors.New("no interfaces") },
	}
	eps, _ := provisioned(t, b, 1)
	ctrl := gomock.NewController(t)
	out := mocks.NewMockOutbound(ctrl)

	done := make(chan struct{})
	out.EXPECT().Error("no interfaces").DoAndReturn(func(string) error {
		close(done)
		return nil
	})

	Coordinator{}.Gather(context.Background(), "sid", out, eps)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("gather error not reported")
	}
}
