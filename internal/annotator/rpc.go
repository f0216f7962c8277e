package annotator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Biomedical-Entity-Annotation-Platform/pkg/rpc"
)

// RegisterRPC exposes the annotator over the wire: Annotator.Annotate
// for synchronous recognition, Dictionary.Stats and Dictionary.Reload
// for terminology management.
func RegisterRPC(srv *rpc.Server, svc *Service) {
	srv.Register("Annotator.Annotate", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req rpc.AnnotateRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, fmt.Errorf("decoding annotate params: %w", err)
		}
		return svc.AnnotateText(ctx, req)
	})

	srv.Register("Dictionary.Stats", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req rpc.StatsRequest
		if len(params) > 0 {
			if err := json.Unmarshal(params, &req); err != nil {
				return nil, fmt.Errorf("decoding stats params: %w", err)
			}
		}
		return svc.Stats(req.Terminology)
	})

	srv.Register("Dictionary.Reload", func(ctx context.Context, params json.RawMessage) (any, error) {
		var req rpc.ReloadRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, fmt.Errorf("decoding reload params: %w", err)
		}
		if req.Terminology == "" {
			return nil, fmt.Errorf("terminology is required")
		}
		if err := svc.Reload(ctx, req.Terminology, req.Force); err != nil {
			return nil, err
		}
		return &rpc.ReloadResponse{
			Success: true,
			Message: fmt.Sprintf("terminology %s reloaded", req.Terminology),
		}, nil
	})
}
