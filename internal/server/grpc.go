package server

import (
	"context"
	"errors"
	"strings"

	"github.com/arrakis-sim/dune-server-go/internal/game"
	"github.com/arrakis-sim/dune-server-go/internal/game/battle"
	"github.com/arrakis-sim/dune-server-go/internal/game/rules"
	"github.com/arrakis-sim/dune-server-go/internal/game/state"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// BattleServiceName is the fully qualified gRPC service name.
const BattleServiceName = "dune.battle.v1.BattleService"

// BattleServiceServer is the battle service. Every method takes and returns a
// google.protobuf.Struct whose fields mirror the JSON shape of the engine views.
type BattleServiceServer interface {
	StartBattle(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitResponses(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetEvents(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResumeBattle(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FinishBattle(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// battleServer implements BattleServiceServer on a BattleEngine.
type battleServer struct {
	engine      *game.BattleEngine
	board       *state.Board
	maxSessions int
	logger      *zap.Logger
}

// NewBattleServer creates the battle service. maxSessions of 0 means unlimited.
func NewBattleServer(engine *game.BattleEngine, board *state.Board, maxSessions int, logger *zap.Logger) BattleServiceServer {
	if board == nil {
		board = state.DefaultBoard()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &battleServer{engine: engine, board: board, maxSessions: maxSessions, logger: logger}
}

type startBattleRequest struct {
	Scenario string `json:"scenario"`
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

type submitRequest struct {
	SessionID string           `json:"session_id"`
	Responses []rules.Response `json:"responses"`
}

type eventsRequest struct {
	SessionID string `json:"session_id"`
	Since     int    `json:"since"`
}

type eventsResponse struct {
	SessionID string        `json:"session_id"`
	Since     int           `json:"since"`
	Events    []rules.Event `json:"events"`
}

type finishResponse struct {
	SessionID string          `json:"session_id"`
	Game      state.GameState `json:"game"`
}

// StartBattle loads a YAML scenario and opens a session for its battle phase.
func (s *battleServer) StartBattle(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req startBattleRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Scenario) == "" {
		return nil, status.Error(codes.InvalidArgument, "scenario is required")
	}
	if s.maxSessions > 0 && len(s.engine.Sessions()) >= s.maxSessions {
		return nil, status.Errorf(codes.ResourceExhausted, "session limit %d reached", s.maxSessions)
	}

	g, err := state.LoadScenario([]byte(req.Scenario), s.board)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	view, err := s.engine.StartBattle(ctx, g)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return encodeStruct(view)
}

// SubmitResponses advances a session by one step.
func (s *battleServer) SubmitResponses(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req submitRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	if req.SessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}
	view, err := s.engine.Submit(ctx, req.SessionID, req.Responses)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return encodeStruct(view)
}

// GetSession returns the current view of a session.
func (s *battleServer) GetSession(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(in)
	if err != nil {
		return nil, err
	}
	view, err := s.engine.GetView(id)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return encodeStruct(view)
}

// GetEvents returns a session's event log from an index onward.
func (s *battleServer) GetEvents(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req eventsRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, err
	}
	if req.SessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}
	events, err := s.engine.Events(req.SessionID, req.Since)
	if err != nil {
		return nil, s.toStatus(err)
	}
	if events == nil {
		events = []rules.Event{}
	}
	return encodeStruct(eventsResponse{SessionID: req.SessionID, Since: req.Since, Events: events})
}

// GetStats returns the loss tallies of a session.
func (s *battleServer) GetStats(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(in)
	if err != nil {
		return nil, err
	}
	stats, err := s.engine.Stats(id)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return encodeStruct(stats)
}

// ResumeBattle reloads a session from the snapshot store.
func (s *battleServer) ResumeBattle(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(in)
	if err != nil {
		return nil, err
	}
	if s.maxSessions > 0 && len(s.engine.Sessions()) >= s.maxSessions {
		return nil, status.Errorf(codes.ResourceExhausted, "session limit %d reached", s.maxSessions)
	}
	view, err := s.engine.Resume(ctx, id)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return encodeStruct(view)
}

// FinishBattle closes a completed session and returns the game state for the
// next phase.
func (s *battleServer) FinishBattle(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := sessionID(in)
	if err != nil {
		return nil, err
	}
	g, err := s.engine.Finish(ctx, id)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return encodeStruct(finishResponse{SessionID: id, Game: g})
}

func sessionID(in *structpb.Struct) (string, error) {
	var req sessionRequest
	if err := decodeStruct(in, &req); err != nil {
		return "", err
	}
	if req.SessionID == "" {
		return "", status.Error(codes.InvalidArgument, "session_id is required")
	}
	return req.SessionID, nil
}

// toStatus maps engine errors onto gRPC codes.
func (s *battleServer) toStatus(err error) error {
	switch {
	case errors.Is(err, game.ErrSessionNotFound), errors.Is(err, game.ErrSnapshotNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, game.ErrSessionComplete), errors.Is(err, game.ErrSessionPending):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, game.ErrSessionExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, state.ErrUnknownTerritory),
		errors.Is(err, battle.ErrInvalidBattle),
		errors.Is(err, battle.ErrInvalidPlan),
		errors.Is(err, battle.ErrNoCurrentBattle):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		s.logger.Error("battle service error", zap.Error(err))
		return status.Error(codes.Internal, err.Error())
	}
}

// RegisterBattleService registers the battle service on a gRPC server.
func RegisterBattleService(r grpc.ServiceRegistrar, srv BattleServiceServer) {
	r.RegisterService(&battleServiceDesc, srv)
}

func unaryHandler(method string, call func(BattleServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(BattleServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + BattleServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(BattleServiceServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

var battleServiceDesc = grpc.ServiceDesc{
	ServiceName: BattleServiceName,
	HandlerType: (*BattleServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("StartBattle", BattleServiceServer.StartBattle),
		unaryHandler("SubmitResponses", BattleServiceServer.SubmitResponses),
		unaryHandler("GetSession", BattleServiceServer.GetSession),
		unaryHandler("GetEvents", BattleServiceServer.GetEvents),
		unaryHandler("GetStats", BattleServiceServer.GetStats),
		unaryHandler("ResumeBattle", BattleServiceServer.ResumeBattle),
		unaryHandler("FinishBattle", BattleServiceServer.FinishBattle),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dune/battle/v1/battle.proto",
}

// Client calls the battle service over a client connection.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps a connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) invoke(ctx context.Context, method string, req any, out any) error {
	in, err := encodeStruct(req)
	if err != nil {
		return err
	}
	reply := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+BattleServiceName+"/"+method, in, reply); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decodeStruct(reply, out)
}

// StartBattle opens a session from a YAML scenario.
func (c *Client) StartBattle(ctx context.Context, scenario string) (*game.SessionView, error) {
	var view game.SessionView
	if err := c.invoke(ctx, "StartBattle", startBattleRequest{Scenario: scenario}, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Submit sends responses to a session's pending requests.
func (c *Client) Submit(ctx context.Context, sessionID string, responses []rules.Response) (*game.SessionView, error) {
	var view game.SessionView
	if err := c.invoke(ctx, "SubmitResponses", submitRequest{SessionID: sessionID, Responses: responses}, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// GetSession fetches a session view.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*game.SessionView, error) {
	var view game.SessionView
	if err := c.invoke(ctx, "GetSession", sessionRequest{SessionID: sessionID}, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// GetEvents fetches the event log from index since onward.
func (c *Client) GetEvents(ctx context.Context, sessionID string, since int) ([]rules.Event, error) {
	var resp eventsResponse
	if err := c.invoke(ctx, "GetEvents", eventsRequest{SessionID: sessionID, Since: since}, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// GetStats fetches the loss tallies of a session.
func (c *Client) GetStats(ctx context.Context, sessionID string) (*game.SessionStats, error) {
	var stats game.SessionStats
	if err := c.invoke(ctx, "GetStats", sessionRequest{SessionID: sessionID}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Resume reloads a stored session.
func (c *Client) Resume(ctx context.Context, sessionID string) (*game.SessionView, error) {
	var view game.SessionView
	if err := c.invoke(ctx, "ResumeBattle", sessionRequest{SessionID: sessionID}, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Finish closes a completed session.
func (c *Client) Finish(ctx context.Context, sessionID string) (state.GameState, error) {
	var resp finishResponse
	if err := c.invoke(ctx, "FinishBattle", sessionRequest{SessionID: sessionID}, &resp); err != nil {
		return state.GameState{}, err
	}
	return resp.Game, nil
}
