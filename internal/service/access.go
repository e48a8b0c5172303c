package service

import (
	"context"
	"strconv"
	"time"

	"ferrybook/internal/domain"
	"ferrybook/internal/models"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// RouteAccessService restricts operators to the routes assigned to them in
// operator_routes. Assignments are cached per operator.
type RouteAccessService struct {
	store  domain.Store
	cache  *cache.Cache
	logger *zerolog.Logger
}

func NewRouteAccessService(store domain.Store, ttl time.Duration, logger *zerolog.Logger) *RouteAccessService {
	return &RouteAccessService{
		store:  store,
		cache:  cache.New(ttl, 2*ttl),
		logger: logger,
	}
}

func (s *RouteAccessService) CanAccess(ctx context.Context, actor models.Actor, routeID int64) (bool, error) {
	if actor.Privileged() {
		return true, nil
	}
	if !actor.IsOperator() {
		return false, nil
	}

	routes, err := s.routes(ctx, actor.ID)
	if err != nil {
		return false, err
	}
	_, ok := routes[routeID]
	return ok, nil
}

func (s *RouteAccessService) routes(ctx context.Context, operatorID int64) (map[int64]struct{}, error) {
	key := strconv.FormatInt(operatorID, 10)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(map[int64]struct{}), nil
	}

	ids, err := s.store.ListOperatorRoutes(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	routes := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		routes[id] = struct{}{}
	}
	s.cache.SetDefault(key, routes)
	return routes, nil
}

func (s *RouteAccessService) Assign(ctx context.Context, operatorID, routeID int64) error {
	if _, err := s.store.GetRoute(ctx, routeID); err != nil {
		return err
	}
	if err := s.store.AssignOperatorRoute(ctx, operatorID, routeID); err != nil {
		return err
	}
	s.cache.Delete(strconv.FormatInt(operatorID, 10))
	s.logger.Info().Int64("operator_id", operatorID).Int64("route_id", routeID).Msg("operator route assigned")
	return nil
}

func (s *RouteAccessService) Revoke(ctx context.Context, operatorID, routeID int64) error {
	if err := s.store.RevokeOperatorRoute(ctx, operatorID, routeID); err != nil {
		return err
	}
	s.cache.Delete(strconv.FormatInt(operatorID, 10))
	s.logger.Info().Int64("operator_id", operatorID).Int64("route_id", routeID).Msg("operator route revoked")
	return nil
}

// authorizeBooking checks that actor may act on b. Bookings outside the
// actor's reach are reported as not found.
func authorizeBooking(ctx context.Context, access domain.RouteAccessPolicy, b *models.Booking, actor models.Actor) error {
	switch {
	case actor.Privileged():
		return nil
	case actor.IsOperator():
		if access == nil {
			break
		}
		ok, err := access.CanAccess(ctx, actor, b.RouteID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	case actor.IsUser():
		if b.UserID == actor.ID {
			return nil
		}
	}
	return domain.NotFoundError{Resource: "booking", ID: b.ID}
}
