package source

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/SlightlyLoony/Monitor/agent/internal/config"
)

// ServerTarget is the target name used for the empty (whole server) service.
const ServerTarget = "server"

// GRPCHealthParams configures a grpc_health source.
type GRPCHealthParams struct {
	// Endpoint is the host:port of the gRPC server.
	Endpoint string `yaml:"endpoint"`

	// Services to check. "" checks the server as a whole. Defaults to [""].
	Services []string `yaml:"services"`

	// Plaintext disables TLS on the connection.
	Plaintext bool `yaml:"plaintext"`
}

// GRPCHealth queries grpc.health.v1.Health/Check for each service. Each
// service is a target with fields serving (0/1) and status (the
// HealthCheckResponse_ServingStatus value).
type GRPCHealth struct {
	params GRPCHealthParams
	conn   *grpc.ClientConn
	client healthpb.HealthClient
	now    func() time.Time
}

// NewGRPCHealth builds a grpc_health source. The connection is created lazily
// by gRPC and reused across cycles.
func NewGRPCHealth(m config.Monitor) (*GRPCHealth, error) {
	var p GRPCHealthParams
	if err := m.DecodeParams(&p); err != nil {
		return nil, err
	}
	if p.Endpoint == "" {
		return nil, fmt.Errorf("grpc_health: params.endpoint is required")
	}
	if len(p.Services) == 0 {
		p.Services = []string{""}
	}

	creds := insecure.NewCredentials()
	if !p.Plaintext {
		tlsCfg, err := tlsConfig(m.Auth, m.TLS)
		if err != nil {
			return nil, fmt.Errorf("grpc_health: %w", err)
		}
		creds = credentials.NewTLS(tlsCfg)
	}
	conn, err := grpc.Dial(p.Endpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("grpc_health: dial %s: %w", p.Endpoint, err)
	}
	return newGRPCHealth(p, conn), nil
}

func newGRPCHealth(p GRPCHealthParams, conn *grpc.ClientConn) *GRPCHealth {
	if len(p.Services) == 0 {
		p.Services = []string{""}
	}
	return &GRPCHealth{params: p, conn: conn, client: healthpb.NewHealthClient(conn), now: time.Now}
}

// Sample checks every service. A server that cannot be reached fails the
// sample; an unknown service is reported as not serving.
func (s *GRPCHealth) Sample(ctx context.Context) (*Sample, error) {
	smp := NewSample(s.now())
	for _, svc := range s.params.Services {
		target := svc
		if target == "" {
			target = ServerTarget
		}
		resp, err := s.client.Check(ctx, &healthpb.HealthCheckRequest{Service: svc})
		switch status.Code(err) {
		case codes.OK:
			st := resp.GetStatus()
			smp.Set(target, "status", float64(st))
			smp.Set(target, "serving", boolValue(st == healthpb.HealthCheckResponse_SERVING))
		case codes.NotFound:
			smp.Set(target, "status", float64(healthpb.HealthCheckResponse_SERVICE_UNKNOWN))
			smp.Set(target, "serving", 0)
		case codes.DeadlineExceeded:
			return nil, fmt.Errorf("grpc_health %s: %w", s.params.Endpoint, context.DeadlineExceeded)
		case codes.Unavailable:
			return nil, fmt.Errorf("grpc_health %s: %w: %w", s.params.Endpoint, ErrUnavailable, err)
		default:
			return nil, fmt.Errorf("grpc_health %s: check %q: %w", s.params.Endpoint, svc, err)
		}
	}
	return smp, nil
}

// Close releases the connection.
func (s *GRPCHealth) Close() error { return s.conn.Close() }
