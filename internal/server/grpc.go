package server

import (
	"context"
	"errors"
	"time"

	"github.com/corrosion/corrosion-server-go/internal/config"
	"github.com/corrosion/corrosion-server-go/internal/game"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// GameServiceName is the fully qualified gRPC service name.
const GameServiceName = "corrosion.v1.GameService"

// GameServiceServer is the server API for corrosion.v1.GameService.
type GameServiceServer interface {
	StartGame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitAction(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetView(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EndGame(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unaryHandler(method string, call func(GameServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(GameServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + GameServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(GameServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// GameServiceDesc describes corrosion.v1.GameService. Messages are
// google.protobuf.Struct so no generated code is required.
var GameServiceDesc = grpc.ServiceDesc{
	ServiceName: GameServiceName,
	HandlerType: (*GameServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartGame", Handler: unaryHandler("StartGame", GameServiceServer.StartGame)},
		{MethodName: "SubmitAction", Handler: unaryHandler("SubmitAction", GameServiceServer.SubmitAction)},
		{MethodName: "GetView", Handler: unaryHandler("GetView", GameServiceServer.GetView)},
		{MethodName: "EndGame", Handler: unaryHandler("EndGame", GameServiceServer.EndGame)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "corrosion/v1/game.proto",
}

// GameServiceClient calls corrosion.v1.GameService.
type GameServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewGameServiceClient creates a client on an established connection.
func NewGameServiceClient(cc grpc.ClientConnInterface) *GameServiceClient {
	return &GameServiceClient{cc: cc}
}

func (c *GameServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+GameServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *GameServiceClient) StartGame(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "StartGame", in, opts...)
}

func (c *GameServiceClient) SubmitAction(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "SubmitAction", in, opts...)
}

func (c *GameServiceClient) GetView(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetView", in, opts...)
}

func (c *GameServiceClient) EndGame(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "EndGame", in, opts...)
}

// GameService implements GameServiceServer on top of a game.Engine.
type GameService struct {
	engine *game.Engine
	tokens *SeatTokens
	hub    *Hub
	logger *zap.Logger
}

var _ GameServiceServer = (*GameService)(nil)

// NewGameService creates the service. hub may be nil when no WebSocket
// surface is running.
func NewGameService(engine *game.Engine, tokens *SeatTokens, hub *Hub, logger *zap.Logger) *GameService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GameService{
		engine: engine,
		tokens: tokens,
		hub:    hub,
		logger: logger,
	}
}

// toStatus maps engine and request errors onto gRPC codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if reason, ok := game.RejectionReason(err); ok {
		return status.Error(codes.FailedPrecondition, string(reason))
	}
	switch {
	case errors.Is(err, errBadRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, errUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, game.ErrGameNotFound),
		errors.Is(err, game.ErrPlayerNotFound),
		errors.Is(err, game.ErrObjectNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, game.ErrTooManyGames):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func respond(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return out, nil
}

// StartGame expects {"players": ["Alice", "Bob"]} and returns the game id and
// one seat token per player.
func (s *GameService) StartGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	players, err := stringsField(req.AsMap(), "players")
	if err != nil {
		return nil, toStatus(err)
	}

	gameID, err := s.engine.StartGame(players)
	if err != nil {
		return nil, toStatus(err)
	}
	state, err := s.engine.State(gameID)
	if err != nil {
		return nil, toStatus(err)
	}

	seats := make([]any, 0, len(state.TurnOrder))
	for _, id := range state.TurnOrder {
		token, err := s.tokens.Issue(gameID, id)
		if err != nil {
			s.tokens.Forget(gameID)
			_ = s.engine.EndGame(gameID)
			return nil, toStatus(err)
		}
		seats = append(seats, map[string]any{
			"player_id": uint64(id),
			"name":      state.Players[id].Name,
			"token":     token,
		})
	}

	return respond(map[string]any{
		"game_id":    gameID,
		"seats":      seats,
		"started_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// seat authenticates the game_id/player_id/token triple carried by a request.
func (s *GameService) seat(fields map[string]any) (string, game.ID, error) {
	gameID, err := stringField(fields, "game_id")
	if err != nil {
		return "", 0, err
	}
	playerID, err := idField(fields, "player_id")
	if err != nil {
		return "", 0, err
	}
	token, _ := fields["token"].(string)
	if !s.tokens.Verify(gameID, playerID, token) {
		return "", 0, errUnauthenticated
	}
	return gameID, playerID, nil
}

// SubmitAction expects {"game_id", "player_id", "token", "action": {...}} and
// returns the acting player's view after the action.
func (s *GameService) SubmitAction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.AsMap()
	gameID, playerID, err := s.seat(fields)
	if err != nil {
		return nil, toStatus(err)
	}
	actionFields, ok := fields["action"].(map[string]any)
	if !ok {
		return nil, toStatus(badRequest("action must be an object"))
	}
	action, err := decodeAction(actionFields)
	if err != nil {
		return nil, toStatus(err)
	}

	if err := s.engine.ProcessAction(ctx, gameID, playerID, action); err != nil {
		return nil, toStatus(err)
	}

	view, err := s.engine.View(gameID, playerID)
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(map[string]any{
		"accepted": true,
		"view":     encodeView(gameID, view),
	})
}

// GetView expects {"game_id", "player_id", "token"} and returns that player's
// redacted view.
func (s *GameService) GetView(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	gameID, playerID, err := s.seat(req.AsMap())
	if err != nil {
		return nil, toStatus(err)
	}
	view, err := s.engine.View(gameID, playerID)
	if err != nil {
		return nil, toStatus(err)
	}
	return respond(encodeView(gameID, view))
}

// EndGame lets a seated player close a game once it has ended.
func (s *GameService) EndGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	gameID, _, err := s.seat(req.AsMap())
	if err != nil {
		return nil, toStatus(err)
	}
	state, err := s.engine.State(gameID)
	if err != nil {
		return nil, toStatus(err)
	}
	if state.Status != game.StatusEnded {
		return nil, status.Error(codes.FailedPrecondition, "game is still in progress")
	}
	if err := s.engine.EndGame(gameID); err != nil {
		return nil, toStatus(err)
	}
	s.tokens.Forget(gameID)
	if s.hub != nil {
		s.hub.CloseGame(gameID)
	}
	return respond(map[string]any{"ended": true})
}

// NewGRPCServer builds a gRPC server exposing the game and health services.
func NewGRPCServer(cfg config.GRPCConfig, svc GameServiceServer, logger *zap.Logger) (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor(logger),
			LoggingInterceptor(logger),
		),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
		grpc.MaxConcurrentStreams(uint32(cfg.MaxConcurrentStreams)),
	)
	grpcServer.RegisterService(&GameServiceDesc, svc)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(GameServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return grpcServer, healthServer
}
