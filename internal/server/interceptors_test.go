package server

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var testInfo = &grpc.UnaryServerInfo{FullMethod: "/" + BattleServiceName + "/GetSession"}

func TestRecoveryInterceptor(t *testing.T) {
	ic := RecoveryInterceptor(zaptest.NewLogger(t))

	resp, err := ic(context.Background(), nil, testInfo, func(context.Context, any) (any, error) {
		panic("sandworm")
	})
	assert.Nil(t, resp)
	assert.Equal(t, codes.Internal, status.Code(err))

	resp, err = ic(context.Background(), "in", testInfo, func(_ context.Context, req any) (any, error) {
		return req, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "in", resp)
}

func TestLoggingInterceptorPassesThrough(t *testing.T) {
	ic := LoggingInterceptor(zaptest.NewLogger(t))
	want := status.Error(codes.NotFound, "missing")

	_, err := ic(context.Background(), nil, testInfo, func(context.Context, any) (any, error) {
		return nil, want
	})
	assert.Equal(t, want, err)

	_, err = ic(context.Background(), nil, testInfo, func(context.Context, any) (any, error) {
		return nil, errors.New("boom")
	})
	assert.Equal(t, codes.Unknown, status.Code(err))
}

func TestChainUnaryInterceptorsOrder(t *testing.T) {
	var order []string
	tag := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			order = append(order, name+">")
			resp, err := handler(ctx, req)
			order = append(order, "<"+name)
			return resp, err
		}
	}

	chain := ChainUnaryInterceptors(tag("a"), tag("b"))
	resp, err := chain(context.Background(), 1, testInfo, func(_ context.Context, req any) (any, error) {
		order = append(order, "handler")
		return req.(int) + 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp)
	assert.Equal(t, []string{"a>", "b>", "handler", "<b", "<a"}, order)

	resp, err = ChainUnaryInterceptors()(context.Background(), 1, testInfo, func(_ context.Context, req any) (any, error) {
		return req, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp)
}
