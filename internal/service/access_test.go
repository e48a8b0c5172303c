package service

import (
	"context"
	"errors"
	"testing"

	"ferrybook/internal/domain"
	"ferrybook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteAccessService(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	operator := models.OperatorActor(11)

	for _, actor := range []models.Actor{models.AdminActor(1), models.SystemActor()} {
		ok, err := env.access.CanAccess(ctx, actor, env.route.ID)
		require.NoError(t, err)
		assert.True(t, ok, actor.String())
	}

	ok, err := env.access.CanAccess(ctx, models.UserActor(42), env.route.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = env.access.CanAccess(ctx, operator, env.route.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, env.access.Assign(ctx, operator.ID, env.route.ID))
	ok, err = env.access.CanAccess(ctx, operator, env.route.ID)
	require.NoError(t, err)
	assert.True(t, ok, "assignment invalidates the cached routes")

	require.NoError(t, env.access.Revoke(ctx, operator.ID, env.route.ID))
	ok, err = env.access.CanAccess(ctx, operator, env.route.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAuthorizeBooking(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	b := &models.Booking{ID: 1, UserID: 42, RouteID: env.route.ID}

	assert.NoError(t, authorizeBooking(ctx, env.access, b, models.AdminActor(1)))
	assert.NoError(t, authorizeBooking(ctx, env.access, b, models.UserActor(42)))
	assert.True(t, domain.IsNotFound(authorizeBooking(ctx, env.access, b, models.UserActor(43))))
	assert.True(t, domain.IsNotFound(authorizeBooking(ctx, env.access, b, models.OperatorActor(2))))
	assert.True(t, domain.IsNotFound(authorizeBooking(ctx, nil, b, models.OperatorActor(2))))
}

func TestValidationError(t *testing.T) {
	v := newValidator()

	err := validationError(v.Struct(CreateBookingInput{
		UserID:        1,
		ScheduleID:    1,
		DepartureDate: "2026-01-01",
		Passengers:    []PassengerInput{{Name: "A"}},
		Vehicles:      []VehicleInput{{CategoryID: 1}},
	}))
	var verr domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "vehicles[0].license_plate", verr.Field)
	assert.Equal(t, "is required", verr.Msg)

	err = validationError(errors.New("plain"))
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "plain", verr.Msg)

	assert.Regexp(t, `^TKT-[0-9A-F]{10}$`, newCode("TKT"))
}
