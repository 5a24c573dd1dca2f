package hooks

import (
	"context"
	"errors"
	"evcentral/entity"
	"fmt"
)

var errNoResult = errors.New("hook returned no result")

func callAuthorize(ctx context.Context, hook AuthorizationHook, chargePointId, idTag string) (result *AuthorizationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	result, err = hook.Authorize(ctx, chargePointId, idTag)
	if err == nil && result == nil {
		err = errNoResult
	}
	return result, err
}

func callObserve(ctx context.Context, hook AuthorizationObserver, authorization *entity.Authorization) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return hook.OnAuthorization(ctx, authorization)
}

func callStateChange(ctx context.Context, hook StateChangeHook, stateChange *entity.StateChange) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return hook.OnStateChange(ctx, stateChange)
}
